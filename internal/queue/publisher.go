package queue

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Publisher defines the interface for publishing post events.
type Publisher interface {
	// Publish adds an event to the post stream.
	Publish(ctx context.Context, event PostEvent) error
}

// RedisPublisher implements Publisher using Redis Streams.
type RedisPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewPublisher creates a new Publisher backed by Redis Streams.
func NewPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client, stream: StreamPosts, maxLen: 10000}
}

// Publish adds the event using XADD with approximate trimming so the
// stream does not grow without bound.
func (p *RedisPublisher) Publish(ctx context.Context, event PostEvent) error {
	startTime := time.Now()

	values, err := event.ToMap()
	if err != nil {
		log.Printf("[Publisher] Publish FAILED: stream=%s type=%s err=%v", p.stream, event.Type, err)
		return fmt.Errorf("serialize event: %w", err)
	}

	messageID, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: values,
	}).Result()
	if err != nil {
		log.Printf("[Publisher] Publish FAILED: stream=%s type=%s err=%v", p.stream, event.Type, err)
		return fmt.Errorf("xadd to stream: %w", err)
	}

	log.Printf("[Publisher] Publish OK: stream=%s type=%s msgID=%s post=%s keys=%d duration=%v",
		p.stream, event.Type, messageID, event.PostID, len(event.StorageKeys), time.Since(startTime))
	return nil
}
