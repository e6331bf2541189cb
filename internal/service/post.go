package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"recipehub/internal/model"
	"recipehub/internal/queue"
	"recipehub/internal/repository"
)

type PostService struct {
	postRepo  repository.PostRepository
	userRepo  repository.UserRepository
	media     *MediaService
	publisher queue.Publisher
}

// NewPostService wires the post lifecycle. media and publisher may be nil.
func NewPostService(
	postRepo repository.PostRepository,
	userRepo repository.UserRepository,
	media *MediaService,
	publisher queue.Publisher,
) *PostService {
	return &PostService{
		postRepo:  postRepo,
		userRepo:  userRepo,
		media:     media,
		publisher: publisher,
	}
}

// CreateWithUploads uploads files all-or-nothing, then creates the post.
// Uploaded objects are discarded if creation fails.
func (s *PostService) CreateWithUploads(ctx context.Context, authorID string, req model.CreatePostRequest, files []MediaFile) (*model.PostView, error) {
	if len(files) == 0 {
		req.MediaAttempted = len(req.Media)
		return s.Create(ctx, authorID, req)
	}
	attempted := len(req.Media) + len(files)
	if attempted > model.MaxPostMediaCount {
		return nil, model.ErrTooManyMedia
	}
	// Reject bad input before uploading.
	if err := s.prepare(ctx, authorID, &req); err != nil {
		return nil, err
	}
	if s.media == nil {
		return nil, model.ErrStorageDisabled
	}

	uploaded, err := s.media.UploadAll(ctx, files)
	if err != nil {
		return nil, err
	}
	req.Media = append(req.Media, uploaded...)
	req.MediaAttempted = attempted

	view, err := s.Create(ctx, authorID, req)
	if err != nil {
		s.media.Discard(ctx, uploaded)
		return nil, err
	}
	return view, nil
}

// Create persists a post whose media is already resolved and publishes
// post_created.
func (s *PostService) Create(ctx context.Context, authorID string, req model.CreatePostRequest) (*model.PostView, error) {
	if err := s.prepare(ctx, authorID, &req); err != nil {
		return nil, err
	}
	if len(req.Media) > model.MaxPostMediaCount {
		return nil, model.ErrTooManyMedia
	}
	if req.MediaAttempted != len(req.Media) {
		return nil, model.ErrMediaMissing
	}
	if err := model.Validate(req); err != nil {
		return nil, err
	}

	post := &model.Post{
		AuthorID:    authorID,
		AuthorName:  req.AuthorName,
		AuthorImage: req.AuthorImage,
		Content:     req.Content,
		Media:       req.Media,
		Tags:        req.Tags,
		Recipe:      req.Recipe,
		LikedBy:     []string{},
		SharedBy:    []string{},
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	log.Printf("[PostService] Created post=%s author=%s media=%d", post.ID, authorID, len(post.Media))

	s.publish(ctx, queue.NewPostCreatedEvent(post.ID, authorID))

	view := post.ViewFor(authorID)
	return &view, nil
}

// prepare trims the request and fills the author name from the profile
// when the client did not send one.
func (s *PostService) prepare(ctx context.Context, authorID string, req *model.CreatePostRequest) error {
	if authorID == "" {
		return model.NewValidationError("authorId", "is required")
	}
	req.Content = strings.TrimSpace(req.Content)
	req.AuthorName = strings.TrimSpace(req.AuthorName)
	if req.Tags == nil {
		req.Tags = []string{}
	}
	if req.Media == nil {
		req.Media = []model.Media{}
	}

	if req.AuthorName == "" && s.userRepo != nil {
		profile, err := s.userRepo.GetProfile(ctx, authorID)
		switch {
		case err == nil:
			req.AuthorName = profile.DisplayName
			if req.AuthorImage == "" && profile.PhotoURL != nil {
				req.AuthorImage = *profile.PhotoURL
			}
		case !errors.Is(err, model.ErrUserNotFound):
			log.Printf("[PostService] Profile lookup failed: uid=%s err=%v", authorID, err)
		}
	}

	if req.Content == "" {
		return model.NewValidationError("content", "is required")
	}
	if req.AuthorName == "" {
		return model.NewValidationError("author", "is required")
	}
	return nil
}

// GetByID retrieves a single post personalized for the viewer.
func (s *PostService) GetByID(ctx context.Context, postID, viewerID string) (*model.PostView, error) {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	view := post.ViewFor(viewerID)
	return &view, nil
}

// Update applies a partial edit by the post owner. Media dropped by the
// edit is released for deletion.
func (s *PostService) Update(ctx context.Context, postID, viewerID string, req model.UpdatePostRequest) (*model.PostView, error) {
	if err := model.Validate(req); err != nil {
		return nil, err
	}
	if req.Content != nil {
		trimmed := strings.TrimSpace(*req.Content)
		if trimmed == "" {
			return nil, model.NewValidationError("content", "must not be empty")
		}
		req.Content = &trimmed
	}
	if req.Media != nil && len(req.Media) > model.MaxPostMediaCount {
		return nil, model.ErrTooManyMedia
	}

	var (
		post     *model.Post
		released []string
	)
	err := retryOnConflict(ctx, "PostService.Update", func() error {
		var err error
		post, err = s.postRepo.GetByID(ctx, postID)
		if err != nil {
			return err
		}
		if post.AuthorID != viewerID {
			return model.ErrNotPostOwner
		}

		before := post.StorageKeys()
		if req.Content != nil {
			post.Content = *req.Content
		}
		if req.Tags != nil {
			post.Tags = req.Tags
		}
		if req.Media != nil {
			post.Media = req.Media
		}
		released = missingKeys(before, post.StorageKeys())

		return s.postRepo.UpdateContent(ctx, post, post.Version)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[PostService] Updated post=%s released=%d", postID, len(released))
	if len(released) > 0 {
		s.publish(ctx, queue.NewMediaReleasedEvent(postID, released))
	}

	view := post.ViewFor(viewerID)
	return &view, nil
}

// Delete removes a post and its comments. The worker deletes its media.
func (s *PostService) Delete(ctx context.Context, postID, viewerID string) error {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if post.AuthorID != viewerID {
		return model.ErrNotPostOwner
	}

	if err := s.postRepo.Delete(ctx, postID); err != nil {
		return err
	}
	log.Printf("[PostService] Deleted post=%s author=%s", postID, viewerID)

	s.publish(ctx, queue.NewPostDeletedEvent(postID, post.AuthorID, post.StorageKeys()))
	return nil
}

// publish is best-effort: the write already happened.
func (s *PostService) publish(ctx context.Context, event queue.PostEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		log.Printf("[PostService] Failed to publish %s event: post=%s err=%v", event.Type, event.PostID, err)
	}
}

// missingKeys returns keys in before that are absent from after.
func missingKeys(before, after []string) []string {
	keep := make(map[string]struct{}, len(after))
	for _, k := range after {
		keep[k] = struct{}{}
	}
	var out []string
	for _, k := range before {
		if _, ok := keep[k]; !ok {
			out = append(out, k)
		}
	}
	return out
}
