package service

import (
	"context"
	"log"

	"recipehub/internal/model"
	"recipehub/internal/repository"
)

// InteractionService owns like and share state. Both operations are
// read-modify-write loops conditioned on the post version.
type InteractionService struct {
	postRepo repository.PostRepository
}

func NewInteractionService(postRepo repository.PostRepository) *InteractionService {
	return &InteractionService{postRepo: postRepo}
}

// ToggleLike flips the viewer's like and returns the authoritative state.
func (s *InteractionService) ToggleLike(ctx context.Context, postID, viewerID string) (*model.LikeResponse, error) {
	if viewerID == "" {
		return nil, model.ErrNotAuthorized
	}

	var resp model.LikeResponse
	err := retryOnConflict(ctx, "InteractionService.ToggleLike", func() error {
		post, err := s.postRepo.GetByID(ctx, postID)
		if err != nil {
			return err
		}
		liked := post.ToggleLike(viewerID)
		if err := s.postRepo.SaveEngagement(ctx, post, post.Version); err != nil {
			return err
		}
		resp = model.LikeResponse{Likes: post.LikeCount, IsLiked: liked}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[InteractionService] ToggleLike post=%s viewer=%s liked=%t likes=%d", postID, viewerID, resp.IsLiked, resp.Likes)
	return &resp, nil
}

// Share records the viewer's share once. Repeat shares return the current
// count without writing.
func (s *InteractionService) Share(ctx context.Context, postID, viewerID string) (*model.ShareResponse, error) {
	if viewerID == "" {
		return nil, model.ErrNotAuthorized
	}

	var resp model.ShareResponse
	err := retryOnConflict(ctx, "InteractionService.Share", func() error {
		post, err := s.postRepo.GetByID(ctx, postID)
		if err != nil {
			return err
		}
		if !post.Share(viewerID) {
			resp = model.ShareResponse{Shares: post.ShareCount}
			return nil
		}
		if err := s.postRepo.SaveEngagement(ctx, post, post.Version); err != nil {
			return err
		}
		resp = model.ShareResponse{Shares: post.ShareCount}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}
