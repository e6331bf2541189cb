package service

import (
	"context"
	"strings"
	"time"

	"recipehub/internal/model"
	"recipehub/internal/repository"
)

type ProfileService struct {
	userRepo repository.UserRepository
}

func NewProfileService(userRepo repository.UserRepository) *ProfileService {
	return &ProfileService{userRepo: userRepo}
}

// Get returns the caller's profile or model.ErrUserNotFound.
func (s *ProfileService) Get(ctx context.Context, uid string) (*model.UserProfile, error) {
	if uid == "" {
		return nil, model.ErrNotAuthorized
	}
	return s.userRepo.GetProfile(ctx, uid)
}

// Update stores the caller's display identity.
func (s *ProfileService) Update(ctx context.Context, uid string, req model.UpdateProfileRequest) (*model.UserProfile, error) {
	if uid == "" {
		return nil, model.ErrNotAuthorized
	}
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	if req.PhotoURL != nil {
		trimmed := strings.TrimSpace(*req.PhotoURL)
		if trimmed == "" {
			req.PhotoURL = nil
		} else {
			req.PhotoURL = &trimmed
		}
	}
	if err := model.Validate(req); err != nil {
		return nil, err
	}

	profile := &model.UserProfile{
		UID:         uid,
		DisplayName: req.DisplayName,
		PhotoURL:    req.PhotoURL,
		UpdatedAt:   time.Now().UTC(),
	}
	if err := s.userRepo.UpsertProfile(ctx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}
