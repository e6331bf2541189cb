package queue

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Message represents a message read from a Redis stream.
type Message struct {
	ID    string    // Redis message ID (e.g., "1702000000000-0")
	Event PostEvent // Parsed event data
}

// Consumer reads post events as a member of a consumer group.
type Consumer interface {
	// EnsureGroup creates the consumer group if it doesn't exist.
	// Should be called at worker startup.
	EnsureGroup(ctx context.Context) error

	// Read reads new messages for this consumer with XREADGROUP ">".
	// block: how long to block waiting for new messages
	Read(ctx context.Context, consumer string, count int64, block time.Duration) ([]Message, error)

	// ReadPending reads messages delivered to this consumer but never
	// acknowledged, for recovery after a crash.
	ReadPending(ctx context.Context, consumer string, count int64) ([]Message, error)

	// Ack removes messages from the consumer's pending list.
	Ack(ctx context.Context, messageIDs ...string) error
}

// RedisConsumer implements Consumer using Redis Streams.
type RedisConsumer struct {
	client *redis.Client
	stream string
	group  string
}

// NewConsumer creates a Consumer for the post stream and worker group.
func NewConsumer(client *redis.Client) *RedisConsumer {
	return &RedisConsumer{client: client, stream: StreamPosts, group: ConsumerGroupPosts}
}

// EnsureGroup uses XGROUP CREATE with MKSTREAM to create both stream and
// group. "0" makes the group start from the beginning of the stream.
func (c *RedisConsumer) EnsureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.stream, c.group, "0").Err()
	if err != nil {
		if strings.HasPrefix(err.Error(), "BUSYGROUP") {
			log.Printf("[Consumer] EnsureGroup: stream=%s group=%s (already exists)", c.stream, c.group)
			return nil
		}
		log.Printf("[Consumer] EnsureGroup FAILED: stream=%s group=%s err=%v", c.stream, c.group, err)
		return fmt.Errorf("create consumer group: %w", err)
	}

	log.Printf("[Consumer] EnsureGroup OK: stream=%s group=%s (created)", c.stream, c.group)
	return nil
}

func (c *RedisConsumer) Read(ctx context.Context, consumer string, count int64, block time.Duration) ([]Message, error) {
	return c.read(ctx, consumer, ">", count, block)
}

func (c *RedisConsumer) ReadPending(ctx context.Context, consumer string, count int64) ([]Message, error) {
	// "0" instead of ">" returns this consumer's pending entries.
	return c.read(ctx, consumer, "0", count, -1)
}

// read issues XREADGROUP. A negative block omits BLOCK entirely.
func (c *RedisConsumer) read(ctx context.Context, consumer, start string, count int64, block time.Duration) ([]Message, error) {
	startTime := time.Now()

	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: consumer,
		Streams:  []string{c.stream, start},
		Count:    count,
		Block:    block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		log.Printf("[Consumer] Read FAILED: stream=%s consumer=%s start=%s err=%v", c.stream, consumer, start, err)
		return nil, fmt.Errorf("xreadgroup: %w", err)
	}

	var messages []Message
	var malformed []string
	for _, s := range streams {
		for _, msg := range s.Messages {
			event, err := ParsePostEvent(msg.Values)
			if err != nil {
				log.Printf("[Consumer] Read parse error: msgID=%s err=%v", msg.ID, err)
				malformed = append(malformed, msg.ID)
				continue
			}
			messages = append(messages, Message{ID: msg.ID, Event: event})
		}
	}
	// Malformed entries can never succeed; drop them from the pending list.
	if len(malformed) > 0 {
		if err := c.Ack(ctx, malformed...); err != nil {
			log.Printf("[Consumer] Ack malformed FAILED: ids=%v err=%v", malformed, err)
		}
	}

	if len(messages) > 0 {
		log.Printf("[Consumer] Read OK: stream=%s consumer=%s start=%s count=%d duration=%v",
			c.stream, consumer, start, len(messages), time.Since(startTime))
	}
	return messages, nil
}

// Ack acknowledges messages using XACK.
func (c *RedisConsumer) Ack(ctx context.Context, messageIDs ...string) error {
	if len(messageIDs) == 0 {
		return nil
	}

	acked, err := c.client.XAck(ctx, c.stream, c.group, messageIDs...).Result()
	if err != nil {
		log.Printf("[Consumer] Ack FAILED: stream=%s group=%s ids=%v err=%v", c.stream, c.group, messageIDs, err)
		return fmt.Errorf("xack: %w", err)
	}

	log.Printf("[Consumer] Ack OK: stream=%s group=%s acked=%d", c.stream, c.group, acked)
	return nil
}
