package repository

import (
	"context"

	"recipehub/internal/model"
)

// PostRepository persists posts. Listings are ordered by created_at DESC
// with insertion order breaking ties.
type PostRepository interface {
	// Create assigns ID, CreatedAt, UpdatedAt and Version=1 on post.
	Create(ctx context.Context, post *model.Post) error
	GetByID(ctx context.Context, postID string) (*model.Post, error)
	// GetByIDs returns the posts that exist, in input order.
	GetByIDs(ctx context.Context, postIDs []string) ([]model.Post, error)
	// UpdateContent writes content, tags, media and updated_at when the
	// stored version equals expectedVersion. On success post.Version is bumped.
	UpdateContent(ctx context.Context, post *model.Post, expectedVersion int64) error
	// Delete removes the post and every comment it holds.
	Delete(ctx context.Context, postID string) error
	List(ctx context.Context, q model.PostQuery) ([]model.Post, int, error)
	// SearchText is relevance ranked full-text matching over content,
	// author name and tags.
	SearchText(ctx context.Context, query string, skip, limit int) ([]model.Post, int, error)
	// SearchSubstring is case-insensitive substring matching over the same
	// fields, newest first.
	SearchSubstring(ctx context.Context, query string, skip, limit int) ([]model.Post, int, error)
	// SaveEngagement writes like and share state under the same version
	// condition as UpdateContent.
	SaveEngagement(ctx context.Context, post *model.Post, expectedVersion int64) error
}

// CommentRepository persists comments embedded in posts.
type CommentRepository interface {
	// Append assigns ID and CreatedAt on comment and returns the post's new
	// comment count.
	Append(ctx context.Context, postID string, comment *model.Comment) (int, error)
	GetByID(ctx context.Context, commentID string) (*model.Comment, error)
	// Delete removes the comment and returns its post and the new count.
	Delete(ctx context.Context, commentID string) (postID string, commentCount int, err error)
	// ListByPost returns comments newest first.
	ListByPost(ctx context.Context, postID string, skip, limit int) ([]model.Comment, int, error)
}

type UserRepository interface {
	GetProfile(ctx context.Context, uid string) (*model.UserProfile, error)
	UpsertProfile(ctx context.Context, profile *model.UserProfile) error
}
