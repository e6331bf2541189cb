package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"recipehub/internal/queue"
)

// FeedInvalidator drops cached feed pages. cache.FeedCache satisfies it.
type FeedInvalidator interface {
	Invalidate(ctx context.Context) error
}

// ObjectDeleter removes stored media objects by key.
type ObjectDeleter interface {
	Delete(ctx context.Context, storageKey string) error
}

// Handler processes post events from the queue.
type Handler struct {
	feedCache FeedInvalidator // nil when Redis caching is off
	objects   ObjectDeleter   // nil when no media provider is configured
}

// NewHandler creates a new event handler. Either dependency may be nil.
func NewHandler(feedCache FeedInvalidator, objects ObjectDeleter) *Handler {
	return &Handler{feedCache: feedCache, objects: objects}
}

// HandleEvent routes an event to the appropriate handler based on type.
func (h *Handler) HandleEvent(ctx context.Context, event queue.PostEvent) error {
	startTime := time.Now()
	var err error

	switch event.Type {
	case queue.EventPostCreated:
		err = h.invalidate(ctx)
	case queue.EventPostDeleted:
		err = errors.Join(h.invalidate(ctx), h.deleteObjects(ctx, event.StorageKeys))
	case queue.EventMediaReleased:
		err = h.deleteObjects(ctx, event.StorageKeys)
	default:
		log.Printf("[Handler] Unknown event type: %s", event.Type)
		return nil
	}

	if err != nil {
		log.Printf("[Handler] %s FAILED: post=%s err=%v", event.Type, event.PostID, err)
		return err
	}
	log.Printf("[Handler] %s OK: post=%s duration=%v", event.Type, event.PostID, time.Since(startTime))
	return nil
}

func (h *Handler) invalidate(ctx context.Context) error {
	if h.feedCache == nil {
		return nil
	}
	if err := h.feedCache.Invalidate(ctx); err != nil {
		return fmt.Errorf("invalidate feed cache: %w", err)
	}
	return nil
}

// deleteObjects attempts every key and reports all failures.
func (h *Handler) deleteObjects(ctx context.Context, keys []string) error {
	if h.objects == nil || len(keys) == 0 {
		return nil
	}
	var errs []error
	for _, key := range keys {
		if err := h.objects.Delete(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("delete object %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

// InlinePublisher handles events synchronously in the calling goroutine.
// Used when no Redis stream is configured.
type InlinePublisher struct {
	handler *Handler
}

func NewInlinePublisher(handler *Handler) *InlinePublisher {
	return &InlinePublisher{handler: handler}
}

func (p *InlinePublisher) Publish(ctx context.Context, event queue.PostEvent) error {
	return p.handler.HandleEvent(ctx, event)
}
