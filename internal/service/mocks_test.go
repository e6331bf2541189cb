package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"recipehub/internal/cache"
	"recipehub/internal/model"
	"recipehub/internal/queue"
	"recipehub/internal/repository"
	"recipehub/internal/repository/memory"
)

// =============================================================================
// MOCKS
// =============================================================================
//
// Most tests run against the in-memory store. The mocks below wrap it so a
// test can override single methods (to inject conflicts or failures) while
// everything else behaves like a real repository.

type mockPostRepository struct {
	repository.PostRepository

	saveEngagementFn func(ctx context.Context, post *model.Post, expectedVersion int64) error
	createFn         func(ctx context.Context, post *model.Post) error
	afterListFn      func()

	mu         sync.Mutex
	listCalls  int
	getByIDs   int
	saveCalls  int
	textCalls  int
	substCalls int
}

func (m *mockPostRepository) Create(ctx context.Context, post *model.Post) error {
	if m.createFn != nil {
		return m.createFn(ctx, post)
	}
	return m.PostRepository.Create(ctx, post)
}

func (m *mockPostRepository) SaveEngagement(ctx context.Context, post *model.Post, expectedVersion int64) error {
	m.mu.Lock()
	m.saveCalls++
	m.mu.Unlock()
	if m.saveEngagementFn != nil {
		return m.saveEngagementFn(ctx, post, expectedVersion)
	}
	return m.PostRepository.SaveEngagement(ctx, post, expectedVersion)
}

func (m *mockPostRepository) List(ctx context.Context, q model.PostQuery) ([]model.Post, int, error) {
	m.mu.Lock()
	m.listCalls++
	m.mu.Unlock()
	posts, total, err := m.PostRepository.List(ctx, q)
	if m.afterListFn != nil {
		m.afterListFn()
	}
	return posts, total, err
}

func (m *mockPostRepository) GetByIDs(ctx context.Context, ids []string) ([]model.Post, error) {
	m.mu.Lock()
	m.getByIDs++
	m.mu.Unlock()
	return m.PostRepository.GetByIDs(ctx, ids)
}

func (m *mockPostRepository) SearchText(ctx context.Context, q string, skip, limit int) ([]model.Post, int, error) {
	m.mu.Lock()
	m.textCalls++
	m.mu.Unlock()
	return m.PostRepository.SearchText(ctx, q, skip, limit)
}

func (m *mockPostRepository) SearchSubstring(ctx context.Context, q string, skip, limit int) ([]model.Post, int, error) {
	m.mu.Lock()
	m.substCalls++
	m.mu.Unlock()
	return m.PostRepository.SearchSubstring(ctx, q, skip, limit)
}

type mockUserRepository struct {
	getProfileFn func(ctx context.Context, uid string) (*model.UserProfile, error)
	upserted     []model.UserProfile
}

func (m *mockUserRepository) GetProfile(ctx context.Context, uid string) (*model.UserProfile, error) {
	if m.getProfileFn != nil {
		return m.getProfileFn(ctx, uid)
	}
	return nil, model.ErrUserNotFound
}

func (m *mockUserRepository) UpsertProfile(ctx context.Context, profile *model.UserProfile) error {
	m.upserted = append(m.upserted, *profile)
	return nil
}

// mockStorage stores objects in a map. putFn can fail selected uploads.
type mockStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    int
	deleted []string
	putFn   func(n int, obj Object) error
}

func newMockStorage() *mockStorage {
	return &mockStorage{objects: map[string][]byte{}}
}

func (m *mockStorage) Put(ctx context.Context, obj Object) (model.Media, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	if m.putFn != nil {
		if err := m.putFn(m.puts, obj); err != nil {
			return model.Media{}, err
		}
	}
	m.objects[obj.Key] = obj.Data
	return model.Media{
		URL:        "https://cdn.example.com/" + obj.Key,
		Kind:       obj.Kind,
		Format:     model.FormatFor(obj.ContentType),
		Bytes:      int64(len(obj.Data)),
		StorageKey: obj.Key,
	}, nil
}

func (m *mockStorage) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	m.deleted = append(m.deleted, key)
	return nil
}

func (m *mockStorage) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

type mockPublisher struct {
	mu     sync.Mutex
	events []queue.PostEvent
	err    error
}

func (m *mockPublisher) Publish(ctx context.Context, event queue.PostEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return m.err
}

func (m *mockPublisher) Types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.events))
	for i, e := range m.events {
		out[i] = e.Type
	}
	return out
}

// mockFeedCache keeps pages in a map keyed like the Redis cache.
type mockFeedCache struct {
	pages  map[string][]string
	totals map[string]int
	gen    int64
	getErr error
}

func newMockFeedCache() *mockFeedCache {
	return &mockFeedCache{pages: map[string][]string{}, totals: map[string]int{}}
}

func cacheKey(scope string, page, limit int) string {
	return fmt.Sprintf("%s:%d:%d", scope, page, limit)
}

func (m *mockFeedCache) GetPage(ctx context.Context, scope string, page, limit int) (cache.PageEntry, error) {
	if m.getErr != nil {
		return cache.PageEntry{}, m.getErr
	}
	key := cacheKey(scope, page, limit)
	ids, ok := m.pages[key]
	return cache.PageEntry{IDs: ids, Total: m.totals[key], Found: ok, Generation: m.gen}, nil
}

func (m *mockFeedCache) SetPage(ctx context.Context, gen int64, scope string, page, limit int, ids []string, total int) error {
	if gen != m.gen {
		return nil
	}
	key := cacheKey(scope, page, limit)
	m.pages[key] = append([]string(nil), ids...)
	m.totals[key] = total
	return nil
}

func (m *mockFeedCache) Invalidate(ctx context.Context) error {
	m.gen++
	m.pages = map[string][]string{}
	m.totals = map[string]int{}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

type fixture struct {
	store       *memory.Store
	posts       *mockPostRepository
	users       *mockUserRepository
	publisher   *mockPublisher
	postSvc     *PostService
	feedSvc     *FeedService
	interaction *InteractionService
	comments    *CommentService
}

func newFixture(opts ...memory.Option) *fixture {
	store := memory.NewStore(opts...)
	posts := &mockPostRepository{PostRepository: store.Posts()}
	users := &mockUserRepository{}
	pub := &mockPublisher{}
	return &fixture{
		store:       store,
		posts:       posts,
		users:       users,
		publisher:   pub,
		postSvc:     NewPostService(posts, users, nil, pub),
		feedSvc:     NewFeedService(posts, nil),
		interaction: NewInteractionService(posts),
		comments:    NewCommentService(posts, store.Comments(), users),
	}
}

func (f *fixture) createPost(authorID, content string, tags ...string) *model.PostView {
	view, err := f.postSvc.Create(context.Background(), authorID, model.CreatePostRequest{
		AuthorName: "Author " + authorID,
		Content:    content,
		Tags:       tags,
	})
	if err != nil {
		panic(fmt.Sprintf("createPost: %v", err))
	}
	return view
}

func fileOf(name, contentType, body string) MediaFile {
	return MediaFile{
		Filename:    name,
		ContentType: contentType,
		Size:        int64(len(body)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(body)), nil
		},
	}
}

// steppingClock advances one second per call so creation order is
// observable in createdAt.
func steppingClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	now := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}
