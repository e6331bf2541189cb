package queue

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types for the post stream
const (
	EventPostCreated   = "post_created"
	EventPostDeleted   = "post_deleted"
	EventMediaReleased = "media_released"
)

// Stream names
const (
	StreamPosts = "stream:posts"
)

// Consumer group name for post workers
const (
	ConsumerGroupPosts = "post_workers"
)

// PostEvent is published on every change to the set of posts or to the
// objects they reference.
type PostEvent struct {
	Type      string `json:"type"`      // EventPostCreated, EventPostDeleted, EventMediaReleased
	Timestamp int64  `json:"timestamp"` // Unix timestamp when event occurred

	PostID   string `json:"post_id"`
	AuthorID string `json:"author_id,omitempty"`

	// StorageKeys lists objects that no post references anymore.
	StorageKeys []string `json:"storage_keys,omitempty"`
}

// NewPostCreatedEvent creates an event for a new post.
// Worker invalidates cached feed pages.
func NewPostCreatedEvent(postID, authorID string) PostEvent {
	return PostEvent{
		Type:      EventPostCreated,
		Timestamp: time.Now().Unix(),
		PostID:    postID,
		AuthorID:  authorID,
	}
}

// NewPostDeletedEvent creates an event for a deleted post.
// Worker invalidates cached feed pages and deletes the post's media objects.
func NewPostDeletedEvent(postID, authorID string, storageKeys []string) PostEvent {
	return PostEvent{
		Type:        EventPostDeleted,
		Timestamp:   time.Now().Unix(),
		PostID:      postID,
		AuthorID:    authorID,
		StorageKeys: storageKeys,
	}
}

// NewMediaReleasedEvent creates an event for media dropped by an edit.
func NewMediaReleasedEvent(postID string, storageKeys []string) PostEvent {
	return PostEvent{
		Type:        EventMediaReleased,
		Timestamp:   time.Now().Unix(),
		PostID:      postID,
		StorageKeys: storageKeys,
	}
}

// ToMap converts the event to a map for Redis XADD.
// Redis Streams store field-value pairs, so we serialize to JSON in a "data" field.
func (e PostEvent) ToMap() (map[string]interface{}, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return map[string]interface{}{
		"type": e.Type,
		"data": string(data),
	}, nil
}

// ParsePostEvent parses a PostEvent from Redis stream message values.
func ParsePostEvent(values map[string]interface{}) (PostEvent, error) {
	data, ok := values["data"].(string)
	if !ok {
		return PostEvent{}, fmt.Errorf("missing or invalid 'data' field")
	}

	var event PostEvent
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return PostEvent{}, fmt.Errorf("unmarshal event: %w", err)
	}
	return event, nil
}
