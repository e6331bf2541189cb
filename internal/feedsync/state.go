package feedsync

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"recipehub/internal/model"
)

// API is the subset of Client a PostState drives.
type API interface {
	ToggleLike(ctx context.Context, postID string) (*model.LikeResponse, error)
	Share(ctx context.Context, postID string) (*model.ShareResponse, error)
	AddComment(ctx context.Context, postID string, req model.CreateCommentRequest) (*model.Comment, error)
	LikeComment(ctx context.Context, commentID string) error
}

// SaveFunc persists the saved flag. Saves have no server endpoint, so the
// caller decides where they live.
type SaveFunc func(ctx context.Context, postID string, saved bool) error

const (
	fieldLike  = "like"
	fieldShare = "share"
	fieldSave  = "save"
)

// TempCommentPrefix marks comments that have not been acknowledged yet.
const TempCommentPrefix = "temp-"

// Snapshot is a copy of the displayed state of one post.
type Snapshot struct {
	LikeCount    int
	IsLiked      bool
	ShareCount   int
	IsShared     bool
	IsSaved      bool
	CommentCount int
	Comments     []model.Comment
	CommentLiked map[string]bool
}

// PostState is the view-model of one post. Every mutation is applied
// locally first and tagged with a per-field sequence number; a response
// only lands if no newer request for that field was issued since. Each
// field also keeps the last server-confirmed value, and a failed newest
// request restores that baseline rather than the value it replaced, which
// may itself have been an unconfirmed guess.
type PostState struct {
	mu sync.Mutex

	api      API
	save     SaveFunc
	postID   string
	viewerID string
	now      func() time.Time

	likeCount    int
	isLiked      bool
	shareCount   int
	isShared     bool
	isSaved      bool
	commentCount int
	comments     []model.Comment
	commentLiked map[string]bool

	// server-confirmed baselines
	baseLikeCount    int
	baseLiked        bool
	baseShareCount   int
	baseShared       bool
	baseSaved        bool
	baseCommentLiked map[string]bool

	fields  map[string]*syncField
	tempSeq int
}

// syncField orders the requests issued for one field.
type syncField struct {
	seq        uint64 // newest request issued
	confirmed  uint64 // newest request the server acknowledged
	rolledBack bool   // newest request failed, display follows the baseline
}

type outcome int

const (
	keepDisplay outcome = iota
	showServer
	showBaseline
)

func (f *syncField) issue() uint64 {
	f.seq++
	f.rolledBack = false
	return f.seq
}

// settle records the result of request n. accept reports whether the
// response becomes the new baseline.
func (f *syncField) settle(n uint64, failed bool) (accept bool, o outcome) {
	accept = !failed && n > f.confirmed
	if accept {
		f.confirmed = n
	}
	switch {
	case n == f.seq && failed:
		f.rolledBack = true
		return accept, showBaseline
	case n == f.seq:
		return accept, showServer
	case accept && f.rolledBack:
		return accept, showBaseline
	}
	return accept, keepDisplay
}

type StateOption func(*PostState)

// WithSaveFunc sets where the saved flag is persisted. Without it saves
// are local only.
func WithSaveFunc(fn SaveFunc) StateOption {
	return func(s *PostState) { s.save = fn }
}

// WithViewer sets the identity stamped on temporary comments.
func WithViewer(viewerID string) StateOption {
	return func(s *PostState) { s.viewerID = viewerID }
}

func WithStateClock(now func() time.Time) StateOption {
	return func(s *PostState) { s.now = now }
}

// NewPostState seeds the view-model from a server view of the post.
func NewPostState(api API, post model.PostView, opts ...StateOption) *PostState {
	s := &PostState{
		api:              api,
		postID:           post.ID,
		now:              time.Now,
		likeCount:        post.LikeCount,
		isLiked:          post.IsLiked,
		shareCount:       post.ShareCount,
		commentCount:     post.CommentCount,
		comments:         []model.Comment{},
		commentLiked:     make(map[string]bool),
		baseLikeCount:    post.LikeCount,
		baseLiked:        post.IsLiked,
		baseShareCount:   post.ShareCount,
		baseCommentLiked: make(map[string]bool),
		fields:           make(map[string]*syncField),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetComments replaces the displayed comment list, e.g. after a fetch.
func (s *PostState) SetComments(comments []model.Comment, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.comments = append([]model.Comment(nil), comments...)
	s.commentCount = total
}

func (s *PostState) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	liked := make(map[string]bool, len(s.commentLiked))
	for k, v := range s.commentLiked {
		liked[k] = v
	}
	return Snapshot{
		LikeCount:    s.likeCount,
		IsLiked:      s.isLiked,
		ShareCount:   s.shareCount,
		IsShared:     s.isShared,
		IsSaved:      s.isSaved,
		CommentCount: s.commentCount,
		Comments:     append([]model.Comment(nil), s.comments...),
		CommentLiked: liked,
	}
}

// field returns the tracker for name. Caller holds mu.
func (s *PostState) field(name string) *syncField {
	f, ok := s.fields[name]
	if !ok {
		f = &syncField{}
		s.fields[name] = f
	}
	return f
}

// ToggleLike flips the like locally, then reconciles with the server's
// authoritative count or rolls back.
func (s *PostState) ToggleLike(ctx context.Context) error {
	s.mu.Lock()
	s.isLiked = !s.isLiked
	if s.isLiked {
		s.likeCount++
	} else if s.likeCount > 0 {
		s.likeCount--
	}
	n := s.field(fieldLike).issue()
	s.mu.Unlock()

	resp, err := s.api.ToggleLike(ctx, s.postID)

	s.mu.Lock()
	defer s.mu.Unlock()
	accept, o := s.field(fieldLike).settle(n, err != nil)
	if accept {
		s.baseLikeCount, s.baseLiked = resp.Likes, resp.IsLiked
	}
	if o != keepDisplay {
		s.likeCount, s.isLiked = s.baseLikeCount, s.baseLiked
	}
	return err
}

// Share counts the viewer's share locally once, then reconciles.
func (s *PostState) Share(ctx context.Context) error {
	s.mu.Lock()
	if !s.isShared {
		s.isShared = true
		s.shareCount++
	}
	n := s.field(fieldShare).issue()
	s.mu.Unlock()

	resp, err := s.api.Share(ctx, s.postID)

	s.mu.Lock()
	defer s.mu.Unlock()
	accept, o := s.field(fieldShare).settle(n, err != nil)
	if accept {
		s.baseShareCount, s.baseShared = resp.Shares, true
	}
	if o != keepDisplay {
		s.shareCount, s.isShared = s.baseShareCount, s.baseShared
	}
	return err
}

// ToggleSave flips the saved flag and persists it through the SaveFunc.
func (s *PostState) ToggleSave(ctx context.Context) error {
	s.mu.Lock()
	s.isSaved = !s.isSaved
	saved := s.isSaved
	n := s.field(fieldSave).issue()
	if s.save == nil {
		s.baseSaved = saved
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	err := s.save(ctx, s.postID, saved)

	s.mu.Lock()
	defer s.mu.Unlock()
	accept, o := s.field(fieldSave).settle(n, err != nil)
	if accept {
		s.baseSaved = saved
	}
	if o != keepDisplay {
		s.isSaved = s.baseSaved
	}
	return err
}

// SubmitComment prepends a temporary comment, then swaps in the server
// comment or removes the placeholder on failure.
func (s *PostState) SubmitComment(ctx context.Context, content string, parentID *string) (*model.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, model.ErrContentRequired
	}

	s.mu.Lock()
	s.tempSeq++
	temp := model.Comment{
		ID:         fmt.Sprintf("%s%d", TempCommentPrefix, s.tempSeq),
		PostID:     s.postID,
		AuthorID:   s.viewerID,
		AuthorName: model.FallbackAuthorName(s.viewerID),
		Content:    content,
		ParentID:   parentID,
		LikedBy:    []string{},
		CreatedAt:  s.now(),
	}
	s.comments = append([]model.Comment{temp}, s.comments...)
	s.commentCount++
	s.mu.Unlock()

	created, err := s.api.AddComment(ctx, s.postID, model.CreateCommentRequest{Content: content, ParentID: parentID})

	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(temp.ID)
	if err != nil {
		if i >= 0 {
			s.comments = append(s.comments[:i], s.comments[i+1:]...)
			s.commentCount--
		}
		return nil, err
	}
	if i >= 0 {
		s.comments[i] = *created
	}
	return created, nil
}

// LikeComment marks a comment liked locally and rolls back on failure.
func (s *PostState) LikeComment(ctx context.Context, commentID string) error {
	name := "comment-like:" + commentID

	s.mu.Lock()
	s.commentLiked[commentID] = true
	n := s.field(name).issue()
	s.mu.Unlock()

	err := s.api.LikeComment(ctx, commentID)

	s.mu.Lock()
	defer s.mu.Unlock()
	accept, o := s.field(name).settle(n, err != nil)
	if accept {
		s.baseCommentLiked[commentID] = true
	}
	if o != keepDisplay {
		if s.baseCommentLiked[commentID] {
			s.commentLiked[commentID] = true
		} else {
			delete(s.commentLiked, commentID)
		}
	}
	return err
}

// indexOf finds a displayed comment by ID. Caller holds mu.
func (s *PostState) indexOf(id string) int {
	for i := range s.comments {
		if s.comments[i].ID == id {
			return i
		}
	}
	return -1
}
