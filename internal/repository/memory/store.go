// Package memory is a mutex-guarded in-process store implementing the
// repository interfaces. It backs STORE_DRIVER=memory and the service tests.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"

	"recipehub/internal/model"
	"recipehub/internal/repository"
)

type Option func(*Store)

// WithClock overrides the time source used for created/updated stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

type Store struct {
	mu       sync.RWMutex
	now      func() time.Time
	seq      int64
	posts    map[string]*postEntry
	comments map[string]string // commentID -> postID
	profiles map[string]model.UserProfile
}

type postEntry struct {
	post     model.Post
	seq      int64
	comments []commentEntry
}

type commentEntry struct {
	comment model.Comment
	seq     int64
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		now:      time.Now,
		posts:    map[string]*postEntry{},
		comments: map[string]string{},
		profiles: map[string]model.UserProfile{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Posts() repository.PostRepository       { return postRepo{s} }
func (s *Store) Comments() repository.CommentRepository { return commentRepo{s} }
func (s *Store) Users() repository.UserRepository       { return userRepo{s} }

func (s *Store) nextSeq() int64 {
	s.seq++
	return s.seq
}

// ---- posts ----

type postRepo struct{ s *Store }

func (r postRepo) Create(_ context.Context, post *model.Post) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	post.ID = uuid.NewString()
	post.CreatedAt = now
	post.UpdatedAt = now
	post.Version = 1
	post.LikeCount = len(post.LikedBy)
	post.ShareCount = len(post.SharedBy)
	post.CommentCount = 0

	s.posts[post.ID] = &postEntry{post: clonePost(*post), seq: s.nextSeq()}
	return nil
}

func (r postRepo) GetByID(_ context.Context, postID string) (*model.Post, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.posts[postID]
	if !ok {
		return nil, model.ErrPostNotFound
	}
	p := clonePost(e.post)
	return &p, nil
}

func (r postRepo) GetByIDs(_ context.Context, postIDs []string) ([]model.Post, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Post, 0, len(postIDs))
	for _, id := range postIDs {
		if e, ok := s.posts[id]; ok {
			out = append(out, clonePost(e.post))
		}
	}
	return out, nil
}

func (r postRepo) UpdateContent(_ context.Context, post *model.Post, expectedVersion int64) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.versioned(post.ID, expectedVersion)
	if err != nil {
		return err
	}
	e.post.Content = post.Content
	e.post.Tags = cloneStrings(post.Tags)
	e.post.Media = cloneMedia(post.Media)
	e.post.UpdatedAt = s.now().UTC()
	e.post.Version++

	post.UpdatedAt = e.post.UpdatedAt
	post.Version = e.post.Version
	return nil
}

func (r postRepo) SaveEngagement(_ context.Context, post *model.Post, expectedVersion int64) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.versioned(post.ID, expectedVersion)
	if err != nil {
		return err
	}
	e.post.LikedBy = cloneStrings(post.LikedBy)
	e.post.LikeCount = len(e.post.LikedBy)
	e.post.SharedBy = cloneStrings(post.SharedBy)
	e.post.ShareCount = len(e.post.SharedBy)
	e.post.Version++

	post.Version = e.post.Version
	return nil
}

func (s *Store) versioned(postID string, expectedVersion int64) (*postEntry, error) {
	e, ok := s.posts[postID]
	if !ok {
		return nil, model.ErrPostNotFound
	}
	if e.post.Version != expectedVersion {
		return nil, model.ErrVersionConflict
	}
	return e, nil
}

func (r postRepo) Delete(_ context.Context, postID string) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.posts[postID]
	if !ok {
		return model.ErrPostNotFound
	}
	for _, c := range e.comments {
		delete(s.comments, c.comment.ID)
	}
	delete(s.posts, postID)
	return nil
}

func (r postRepo) List(_ context.Context, q model.PostQuery) ([]model.Post, int, error) {
	return r.s.selectPosts(func(p *model.Post) bool {
		if q.AuthorID != "" && p.AuthorID != q.AuthorID {
			return false
		}
		if q.Since != nil && p.CreatedAt.Before(*q.Since) {
			return false
		}
		return true
	}, nil, q.Skip, q.Limit)
}

func (r postRepo) SearchText(_ context.Context, query string, skip, limit int) ([]model.Post, int, error) {
	terms := tokenize(query)
	scores := map[string]int{}
	match := func(p *model.Post) bool {
		if len(terms) == 0 {
			return false
		}
		doc := map[string]int{}
		for _, tok := range tokenize(p.SearchDocument()) {
			doc[tok]++
		}
		score := 0
		for _, t := range terms {
			score += doc[t]
		}
		if score == 0 {
			return false
		}
		scores[p.ID] = score
		return true
	}
	return r.s.selectPosts(match, scores, skip, limit)
}

func (r postRepo) SearchSubstring(_ context.Context, query string, skip, limit int) ([]model.Post, int, error) {
	needle := strings.ToLower(query)
	return r.s.selectPosts(func(p *model.Post) bool {
		if strings.Contains(strings.ToLower(p.Content), needle) ||
			strings.Contains(strings.ToLower(p.AuthorName), needle) {
			return true
		}
		for _, tag := range p.Tags {
			if strings.Contains(strings.ToLower(tag), needle) {
				return true
			}
		}
		return false
	}, nil, skip, limit)
}

// selectPosts filters, sorts and pages. When scores is non-nil the
// highest score sorts first.
func (s *Store) selectPosts(match func(*model.Post) bool, scores map[string]int, skip, limit int) ([]model.Post, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var hits []*postEntry
	for _, e := range s.posts {
		if match(&e.post) {
			hits = append(hits, e)
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if scores != nil && scores[a.post.ID] != scores[b.post.ID] {
			return scores[a.post.ID] > scores[b.post.ID]
		}
		if !a.post.CreatedAt.Equal(b.post.CreatedAt) {
			return a.post.CreatedAt.After(b.post.CreatedAt)
		}
		return a.seq < b.seq
	})

	total := len(hits)
	if skip >= total {
		return []model.Post{}, total, nil
	}
	end := total
	if limit > 0 && skip+limit < end {
		end = skip + limit
	}
	out := make([]model.Post, 0, end-skip)
	for _, e := range hits[skip:end] {
		out = append(out, clonePost(e.post))
	}
	return out, total, nil
}

// ---- comments ----

type commentRepo struct{ s *Store }

func (r commentRepo) Append(_ context.Context, postID string, c *model.Comment) (int, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.posts[postID]
	if !ok {
		return 0, model.ErrPostNotFound
	}
	c.ID = uuid.NewString()
	c.PostID = postID
	c.CreatedAt = s.now().UTC()
	c.LikeCount = len(c.LikedBy)

	e.comments = append(e.comments, commentEntry{comment: cloneComment(*c), seq: s.nextSeq()})
	e.post.CommentCount = len(e.comments)
	e.post.Version++
	s.comments[c.ID] = postID
	return e.post.CommentCount, nil
}

func (r commentRepo) GetByID(_ context.Context, commentID string) (*model.Comment, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, idx := s.findComment(commentID)
	if e == nil {
		return nil, model.ErrCommentNotFound
	}
	c := cloneComment(e.comments[idx].comment)
	return &c, nil
}

func (r commentRepo) Delete(_ context.Context, commentID string) (string, int, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	e, idx := s.findComment(commentID)
	if e == nil {
		return "", 0, model.ErrCommentNotFound
	}
	e.comments = append(e.comments[:idx:idx], e.comments[idx+1:]...)
	e.post.CommentCount = len(e.comments)
	e.post.Version++
	delete(s.comments, commentID)
	return e.post.ID, e.post.CommentCount, nil
}

func (r commentRepo) ListByPost(_ context.Context, postID string, skip, limit int) ([]model.Comment, int, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.posts[postID]
	if !ok {
		return []model.Comment{}, 0, nil
	}
	sorted := make([]commentEntry, len(e.comments))
	copy(sorted, e.comments)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if !a.comment.CreatedAt.Equal(b.comment.CreatedAt) {
			return a.comment.CreatedAt.After(b.comment.CreatedAt)
		}
		return a.seq < b.seq
	})

	total := len(sorted)
	if skip >= total {
		return []model.Comment{}, total, nil
	}
	end := total
	if limit > 0 && skip+limit < end {
		end = skip + limit
	}
	out := make([]model.Comment, 0, end-skip)
	for _, ce := range sorted[skip:end] {
		out = append(out, cloneComment(ce.comment))
	}
	return out, total, nil
}

func (s *Store) findComment(commentID string) (*postEntry, int) {
	postID, ok := s.comments[commentID]
	if !ok {
		return nil, -1
	}
	e, ok := s.posts[postID]
	if !ok {
		return nil, -1
	}
	for i, c := range e.comments {
		if c.comment.ID == commentID {
			return e, i
		}
	}
	return nil, -1
}

// ---- profiles ----

type userRepo struct{ s *Store }

func (r userRepo) GetProfile(_ context.Context, uid string) (*model.UserProfile, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[uid]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	return &p, nil
}

func (r userRepo) UpsertProfile(_ context.Context, p *model.UserProfile) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	p.UpdatedAt = s.now().UTC()
	s.profiles[p.UID] = *p
	return nil
}

// ---- helpers ----

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func cloneStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneMedia(in []model.Media) []model.Media {
	out := make([]model.Media, len(in))
	copy(out, in)
	return out
}

func clonePost(p model.Post) model.Post {
	p.Media = cloneMedia(p.Media)
	p.Tags = cloneStrings(p.Tags)
	p.LikedBy = cloneStrings(p.LikedBy)
	p.SharedBy = cloneStrings(p.SharedBy)
	if p.Recipe != nil {
		p.Recipe = append(json.RawMessage(nil), p.Recipe...)
	}
	return p
}

func cloneComment(c model.Comment) model.Comment {
	c.LikedBy = cloneStrings(c.LikedBy)
	if c.ParentID != nil {
		id := *c.ParentID
		c.ParentID = &id
	}
	return c
}
