package model

import (
	"fmt"
	"time"
)

// Comment is a comment embedded in a post. ParentID threads replies but
// listings are always flat.
type Comment struct {
	ID          string    `json:"id"`
	PostID      string    `json:"postId"`
	AuthorID    string    `json:"authorId"`
	AuthorName  string    `json:"authorName"`
	AuthorImage string    `json:"authorImage,omitempty"`
	Content     string    `json:"content"`
	ParentID    *string   `json:"parentId,omitempty"`
	LikeCount   int       `json:"likeCount"`
	LikedBy     []string  `json:"-"`
	CreatedAt   time.Time `json:"createdAt"`
}

// CreateCommentRequest is the request body for creating a comment.
type CreateCommentRequest struct {
	Content  string  `json:"content" validate:"required,max=500"`
	ParentID *string `json:"parentId,omitempty"`
}

// CommentListResponse is the paginated comment list response.
type CommentListResponse struct {
	Comments      []Comment `json:"comments"`
	CurrentPage   int       `json:"currentPage"`
	TotalPages    int       `json:"totalPages"`
	TotalComments int       `json:"totalComments"`
}

// MessageResponse is the body of acknowledgement-only endpoints.
type MessageResponse struct {
	Message string `json:"message"`
}

// Comment constraints
const (
	MaxCommentLength = 500
	// FallbackAuthorLength is how much of the viewer ID is shown when no
	// profile can be resolved.
	FallbackAuthorLength = 8
)

// Comment errors
var (
	ErrCommentNotFound = fmt.Errorf("comment %w", ErrNotFound)
	ErrNotCommentOwner = fmt.Errorf("not the owner of this comment: %w", ErrNotAuthorized)
	ErrContentRequired = NewValidationError("content", "comment content is required")
	ErrContentTooLong  = NewValidationError("content", fmt.Sprintf("comment content exceeds %d characters", MaxCommentLength))
)

// FallbackAuthorName derives a display name from a viewer ID.
func FallbackAuthorName(viewerID string) string {
	r := []rune(viewerID)
	if len(r) > FallbackAuthorLength {
		r = r[:FallbackAuthorLength]
	}
	return string(r)
}
