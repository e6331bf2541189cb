package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Post is a community feed entry. Comments are owned by the post and are
// read through the comment endpoints rather than embedded in responses.
type Post struct {
	ID           string          `json:"id"`
	AuthorID     string          `json:"authorId"`
	AuthorName   string          `json:"authorName"`
	AuthorImage  string          `json:"authorImage,omitempty"`
	Content      string          `json:"content"`
	Media        []Media         `json:"media"`
	Tags         []string        `json:"tags"`
	Recipe       json.RawMessage `json:"recipe,omitempty"`
	LikeCount    int             `json:"likeCount"`
	LikedBy      []string        `json:"-"`
	ShareCount   int             `json:"shareCount"`
	SharedBy     []string        `json:"-"`
	CommentCount int             `json:"commentCount"`
	Version      int64           `json:"-"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// PostView is a post personalized for one viewer.
type PostView struct {
	Post
	IsLiked bool `json:"isLiked"`
}

// IsLikedBy reports whether viewerID is in the liked-by set.
func (p *Post) IsLikedBy(viewerID string) bool {
	return contains(p.LikedBy, viewerID)
}

// IsSharedBy reports whether viewerID is in the shared-by set.
func (p *Post) IsSharedBy(viewerID string) bool {
	return contains(p.SharedBy, viewerID)
}

// ToggleLike flips viewerID's membership in the liked-by set and returns
// the new liked state. LikeCount is recomputed from the set.
func (p *Post) ToggleLike(viewerID string) bool {
	liked := !p.IsLikedBy(viewerID)
	if liked {
		p.LikedBy = append(p.LikedBy, viewerID)
	} else {
		p.LikedBy = remove(p.LikedBy, viewerID)
	}
	p.LikeCount = len(p.LikedBy)
	return liked
}

// Share records viewerID as a sharer. It returns false, leaving the post
// untouched, when the viewer already shared.
func (p *Post) Share(viewerID string) bool {
	if p.IsSharedBy(viewerID) {
		return false
	}
	p.SharedBy = append(p.SharedBy, viewerID)
	p.ShareCount = len(p.SharedBy)
	return true
}

// ViewFor personalizes the post for viewerID. An empty viewerID yields
// IsLiked=false.
func (p Post) ViewFor(viewerID string) PostView {
	return PostView{
		Post:    p,
		IsLiked: viewerID != "" && p.IsLikedBy(viewerID),
	}
}

// StorageKeys returns the object storage keys referenced by the post media.
func (p *Post) StorageKeys() []string {
	keys := make([]string, 0, len(p.Media))
	for _, m := range p.Media {
		if m.StorageKey != "" {
			keys = append(keys, m.StorageKey)
		}
	}
	return keys
}

// SearchDocument is the text indexed for full-text search.
func (p *Post) SearchDocument() string {
	return p.Content + " " + p.AuthorName + " " + strings.Join(p.Tags, " ")
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func remove(set []string, v string) []string {
	out := make([]string, 0, len(set))
	for _, s := range set {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}

// FeedFilter selects which posts a feed listing includes.
type FeedFilter string

const (
	FilterAll      FeedFilter = "all"
	FilterTrending FeedFilter = "trending"
	// FilterFollowing is accepted for client compatibility and lists the
	// same posts as FilterAll; there is no follow graph.
	FilterFollowing FeedFilter = "following"
)

// TrendingWindow is how far back the trending filter looks.
const TrendingWindow = 7 * 24 * time.Hour

// ParseFeedFilter validates a filter query value. Empty means all.
func ParseFeedFilter(s string) (FeedFilter, error) {
	switch f := FeedFilter(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FilterAll, nil
	case FilterAll, FilterTrending, FilterFollowing:
		return f, nil
	default:
		return "", NewValidationError("filter", fmt.Sprintf("unknown filter %q", s))
	}
}

// PostQuery is a store-level listing query. Results are ordered by
// createdAt descending with insertion order breaking ties.
type PostQuery struct {
	AuthorID string
	Since    *time.Time
	Skip     int
	Limit    int
}

// SearchMethod names the search tier that produced a result page.
type SearchMethod string

const (
	SearchMethodText  SearchMethod = "text"
	SearchMethodRegex SearchMethod = "regex"
)

// CreatePostRequest carries a fully resolved post. MediaAttempted is the
// number of files the caller tried to upload; creation is rejected when it
// differs from len(Media).
type CreatePostRequest struct {
	AuthorName     string          `json:"author" validate:"required,max=120"`
	AuthorImage    string          `json:"authorImage" validate:"omitempty,url"`
	Content        string          `json:"content" validate:"required"`
	Tags           []string        `json:"tags" validate:"max=30,dive,max=50"`
	Recipe         json.RawMessage `json:"recipe"`
	Media          []Media         `json:"media" validate:"max=5,dive"`
	MediaAttempted int             `json:"-"`
}

// UpdatePostRequest is a partial update; nil fields are left unchanged.
type UpdatePostRequest struct {
	Content *string  `json:"content"`
	Tags    []string `json:"tags" validate:"omitempty,max=30,dive,max=50"`
	Media   []Media  `json:"media" validate:"omitempty,max=5,dive"`
}

// PostListResponse is a page of posts.
type PostListResponse struct {
	Posts       []PostView `json:"posts"`
	TotalPages  int        `json:"totalPages"`
	CurrentPage int        `json:"currentPage"`
	TotalPosts  int        `json:"totalPosts"`
}

// SearchResponse is a page of search results with the tier that served it.
type SearchResponse struct {
	PostListResponse
	Query        string       `json:"query"`
	SearchMethod SearchMethod `json:"searchMethod"`
}

// LikeResponse is the authoritative like state after a toggle.
type LikeResponse struct {
	Likes   int  `json:"likes"`
	IsLiked bool `json:"isLiked"`
}

// ShareResponse is the authoritative share count after a share.
type ShareResponse struct {
	Shares int `json:"shares"`
}

// Post constraints
const (
	MaxPostMediaCount = 5
)

// Post errors
var (
	ErrPostNotFound = fmt.Errorf("post %w", ErrNotFound)
	ErrNotPostOwner = fmt.Errorf("not the owner of this post: %w", ErrNotAuthorized)
	ErrTooManyMedia = NewValidationError("media", fmt.Sprintf("at most %d media items are allowed", MaxPostMediaCount))
	ErrMediaMissing = NewValidationError("media", "not every attempted upload produced a media descriptor")
	ErrEmptyQuery   = NewValidationError("q", "search query is required")
)

// ParseTags accepts a JSON array or a comma-separated list.
func ParseTags(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []string{}
	}
	var tags []string
	if err := json.Unmarshal([]byte(raw), &tags); err == nil {
		return cleanTags(tags)
	}
	return cleanTags(strings.Split(raw, ","))
}

func cleanTags(in []string) []string {
	out := make([]string, 0, len(in))
	for _, t := range in {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
