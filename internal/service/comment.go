package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"recipehub/internal/model"
	"recipehub/internal/repository"
)

const (
	commentLikedMessage   = "Comment liked successfully"
	commentDeletedMessage = "Comment deleted successfully"
)

type CommentService struct {
	postRepo    repository.PostRepository
	commentRepo repository.CommentRepository
	userRepo    repository.UserRepository
}

func NewCommentService(
	postRepo repository.PostRepository,
	commentRepo repository.CommentRepository,
	userRepo repository.UserRepository,
) *CommentService {
	return &CommentService{
		postRepo:    postRepo,
		commentRepo: commentRepo,
		userRepo:    userRepo,
	}
}

// commentValidationError maps tag failures on content to the comment
// sentinels.
func commentValidationError(req model.CreateCommentRequest, err error) error {
	var verr *model.ValidationError
	if !errors.As(err, &verr) || verr.Field != "content" {
		return err
	}
	if req.Content == "" {
		return model.ErrContentRequired
	}
	return model.ErrContentTooLong
}

// AddComment appends a comment to a post on behalf of viewerID.
func (s *CommentService) AddComment(ctx context.Context, postID, viewerID string, req model.CreateCommentRequest) (*model.Comment, error) {
	if viewerID == "" {
		return nil, model.ErrNotAuthorized
	}
	req.Content = strings.TrimSpace(req.Content)
	if err := model.Validate(req); err != nil {
		return nil, commentValidationError(req, err)
	}
	content := req.Content

	if _, err := s.postRepo.GetByID(ctx, postID); err != nil {
		return nil, err
	}

	var parentID *string
	if req.ParentID != nil && strings.TrimSpace(*req.ParentID) != "" {
		id := strings.TrimSpace(*req.ParentID)
		parent, err := s.commentRepo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if parent.PostID != postID {
			return nil, model.ErrCommentNotFound
		}
		parentID = &id
	}

	name, image := s.resolveAuthor(ctx, viewerID)
	comment := &model.Comment{
		PostID:      postID,
		AuthorID:    viewerID,
		AuthorName:  name,
		AuthorImage: image,
		Content:     content,
		ParentID:    parentID,
		LikedBy:     []string{},
	}

	count, err := s.commentRepo.Append(ctx, postID, comment)
	if err != nil {
		return nil, fmt.Errorf("append comment: %w", err)
	}
	log.Printf("[CommentService] Added comment=%s post=%s author=%s count=%d", comment.ID, postID, viewerID, count)
	return comment, nil
}

// resolveAuthor never fails: a missing or unreadable profile degrades to a
// name derived from the viewer ID and no image.
func (s *CommentService) resolveAuthor(ctx context.Context, viewerID string) (string, string) {
	fallback := model.FallbackAuthorName(viewerID)
	if s.userRepo == nil {
		return fallback, ""
	}
	profile, err := s.userRepo.GetProfile(ctx, viewerID)
	if err != nil {
		if !errors.Is(err, model.ErrUserNotFound) {
			log.Printf("[CommentService] Profile lookup failed, using fallback: uid=%s err=%v", viewerID, err)
		}
		return fallback, ""
	}
	name := strings.TrimSpace(profile.DisplayName)
	if name == "" {
		name = fallback
	}
	image := ""
	if profile.PhotoURL != nil {
		image = *profile.PhotoURL
	}
	return name, image
}

// DeleteComment removes a comment owned by viewerID.
func (s *CommentService) DeleteComment(ctx context.Context, commentID, viewerID string) (*model.MessageResponse, error) {
	comment, err := s.commentRepo.GetByID(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if comment.AuthorID != viewerID {
		return nil, model.ErrNotCommentOwner
	}

	postID, count, err := s.commentRepo.Delete(ctx, commentID)
	if err != nil {
		return nil, err
	}
	log.Printf("[CommentService] Deleted comment=%s post=%s count=%d", commentID, postID, count)
	return &model.MessageResponse{Message: commentDeletedMessage}, nil
}

// ListComments returns a page of a post's comments, newest first.
func (s *CommentService) ListComments(ctx context.Context, postID string, page model.Page) (*model.CommentListResponse, error) {
	if _, err := s.postRepo.GetByID(ctx, postID); err != nil {
		return nil, err
	}

	comments, total, err := s.commentRepo.ListByPost(ctx, postID, page.Skip(), page.Size)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	if comments == nil {
		comments = []model.Comment{}
	}
	return &model.CommentListResponse{
		Comments:      comments,
		CurrentPage:   page.Number,
		TotalPages:    model.TotalPages(total, page.Size),
		TotalComments: total,
	}, nil
}

// LikeComment acknowledges a comment like without recording it.
func (s *CommentService) LikeComment(ctx context.Context, commentID, viewerID string) (*model.MessageResponse, error) {
	if viewerID == "" {
		return nil, model.ErrNotAuthorized
	}
	return &model.MessageResponse{Message: commentLikedMessage}, nil
}

// ListReplies always returns an empty list; replies are only visible in
// the flat comment listing.
func (s *CommentService) ListReplies(ctx context.Context, commentID string) ([]model.Comment, error) {
	return []model.Comment{}, nil
}
