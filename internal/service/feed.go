package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"recipehub/internal/cache"
	"recipehub/internal/model"
	"recipehub/internal/repository"
)

// FeedService serves paginated listings and search.
type FeedService struct {
	postRepo  repository.PostRepository
	feedCache cache.FeedCache // nil disables page caching
	now       func() time.Time
}

type FeedOption func(*FeedService)

// WithFeedClock overrides the clock used for the trending window.
func WithFeedClock(now func() time.Time) FeedOption {
	return func(s *FeedService) { s.now = now }
}

func NewFeedService(postRepo repository.PostRepository, feedCache cache.FeedCache, opts ...FeedOption) *FeedService {
	s := &FeedService{postRepo: postRepo, feedCache: feedCache, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListPosts returns a page of the community feed. The following filter
// lists the same posts as all.
func (s *FeedService) ListPosts(ctx context.Context, filter model.FeedFilter, page model.Page, viewerID string) (*model.PostListResponse, error) {
	q := model.PostQuery{Skip: page.Skip(), Limit: page.Size}
	scope := cache.ScopeAll
	switch filter {
	case model.FilterAll, model.FilterFollowing, "":
	case model.FilterTrending:
		since := s.now().Add(-model.TrendingWindow)
		q.Since = &since
		scope = cache.ScopeTrending
	default:
		return nil, model.NewValidationError("filter", fmt.Sprintf("unknown filter %q", filter))
	}

	posts, total, err := s.list(ctx, scope, page, q)
	if err != nil {
		return nil, err
	}
	return buildListResponse(posts, total, page, viewerID), nil
}

// ListByAuthor returns a page of one author's posts.
func (s *FeedService) ListByAuthor(ctx context.Context, authorID string, page model.Page, viewerID string) (*model.PostListResponse, error) {
	q := model.PostQuery{AuthorID: authorID, Skip: page.Skip(), Limit: page.Size}
	posts, total, err := s.list(ctx, cache.ScopeAuthor(authorID), page, q)
	if err != nil {
		return nil, err
	}
	return buildListResponse(posts, total, page, viewerID), nil
}

// Search runs relevance-ranked text search and falls back to substring
// matching when the requested page of text results is empty.
func (s *FeedService) Search(ctx context.Context, query string, page model.Page, viewerID string) (*model.SearchResponse, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, model.ErrEmptyQuery
	}

	method := model.SearchMethodText
	posts, total, err := s.postRepo.SearchText(ctx, query, page.Skip(), page.Size)
	if err != nil {
		return nil, fmt.Errorf("text search: %w", err)
	}
	if len(posts) == 0 {
		method = model.SearchMethodRegex
		posts, total, err = s.postRepo.SearchSubstring(ctx, query, page.Skip(), page.Size)
		if err != nil {
			return nil, fmt.Errorf("substring search: %w", err)
		}
	}
	log.Printf("[FeedService] Search q=%q method=%s total=%d page=%d", query, method, total, page.Number)

	return &model.SearchResponse{
		PostListResponse: *buildListResponse(posts, total, page, viewerID),
		Query:            query,
		SearchMethod:     method,
	}, nil
}

// list reads through the page cache. Cached entries hold only IDs, so
// engagement counters always come from the store.
func (s *FeedService) list(ctx context.Context, scope string, page model.Page, q model.PostQuery) ([]model.Post, int, error) {
	// The page may only be cached under the generation seen before the
	// store read.
	cacheable := false
	var gen int64
	if s.feedCache != nil {
		entry, err := s.feedCache.GetPage(ctx, scope, page.Number, page.Size)
		if err != nil {
			log.Printf("[FeedService] Cache read failed, using store: scope=%s err=%v", scope, err)
		} else if entry.Found {
			posts, err := s.postRepo.GetByIDs(ctx, entry.IDs)
			if err != nil {
				return nil, 0, fmt.Errorf("hydrate posts: %w", err)
			}
			return posts, entry.Total, nil
		} else {
			cacheable, gen = true, entry.Generation
		}
	}

	posts, total, err := s.postRepo.List(ctx, q)
	if err != nil {
		return nil, 0, fmt.Errorf("list posts: %w", err)
	}

	if cacheable {
		ids := make([]string, len(posts))
		for i, p := range posts {
			ids[i] = p.ID
		}
		if err := s.feedCache.SetPage(ctx, gen, scope, page.Number, page.Size, ids, total); err != nil {
			log.Printf("[FeedService] Cache write failed: scope=%s err=%v", scope, err)
		}
	}
	return posts, total, nil
}

func buildListResponse(posts []model.Post, total int, page model.Page, viewerID string) *model.PostListResponse {
	views := make([]model.PostView, len(posts))
	for i, p := range posts {
		views[i] = p.ViewFor(viewerID)
	}
	return &model.PostListResponse{
		Posts:       views,
		TotalPages:  model.TotalPages(total, page.Size),
		CurrentPage: page.Number,
		TotalPosts:  total,
	}
}
