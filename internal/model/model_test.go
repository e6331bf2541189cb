package model

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestToggleLikeAlternates(t *testing.T) {
	p := &Post{LikedBy: []string{}}

	want := []bool{true, false, true, false}
	for i, w := range want {
		got := p.ToggleLike("u1")
		if got != w {
			t.Fatalf("toggle %d: got liked=%t, want %t", i+1, got, w)
		}
		if p.LikeCount != len(p.LikedBy) {
			t.Fatalf("toggle %d: likeCount=%d but |likedBy|=%d", i+1, p.LikeCount, len(p.LikedBy))
		}
	}
	if p.LikeCount != 0 {
		t.Errorf("likeCount after even toggles: got %d, want 0", p.LikeCount)
	}
}

func TestToggleLikeDoesNotAliasInput(t *testing.T) {
	shared := []string{"u1", "u2"}
	p := &Post{LikedBy: shared, LikeCount: 2}

	p.ToggleLike("u1")
	if !reflect.DeepEqual(shared, []string{"u1", "u2"}) {
		t.Errorf("original slice mutated: %v", shared)
	}
	if !reflect.DeepEqual(p.LikedBy, []string{"u2"}) {
		t.Errorf("likedBy: got %v", p.LikedBy)
	}
}

func TestShareOncePerViewer(t *testing.T) {
	p := &Post{}
	if !p.Share("u2") {
		t.Fatal("first share should record")
	}
	if p.Share("u2") {
		t.Fatal("second share should be a no-op")
	}
	p.Share("u3")
	if p.ShareCount != 2 || len(p.SharedBy) != 2 {
		t.Errorf("shareCount=%d sharedBy=%v, want 2", p.ShareCount, p.SharedBy)
	}
}

func TestViewFor(t *testing.T) {
	p := Post{ID: "p1", LikedBy: []string{"u1"}, LikeCount: 1}

	if !p.ViewFor("u1").IsLiked {
		t.Error("u1 liked the post")
	}
	if p.ViewFor("u2").IsLiked {
		t.Error("u2 did not like the post")
	}
	if p.ViewFor("").IsLiked {
		t.Error("anonymous viewers never see isLiked")
	}
}

func TestParseTags(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"empty", "", []string{}},
		{"json array", `["pasta", " dinner ", ""]`, []string{"pasta", "dinner"}},
		{"comma separated", "pasta, dinner,,vegan ", []string{"pasta", "dinner", "vegan"}},
		{"single", "quick", []string{"quick"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseTags(tt.raw)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseTags(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseFeedFilter(t *testing.T) {
	for raw, want := range map[string]FeedFilter{
		"":          FilterAll,
		"all":       FilterAll,
		"Trending":  FilterTrending,
		"following": FilterFollowing,
	} {
		got, err := ParseFeedFilter(raw)
		if err != nil || got != want {
			t.Errorf("ParseFeedFilter(%q) = %q, %v; want %q", raw, got, err, want)
		}
	}
	if _, err := ParseFeedFilter("popular"); !errors.Is(err, ErrValidation) {
		t.Errorf("unknown filter should be a validation error, got %v", err)
	}
}

func TestFallbackAuthorName(t *testing.T) {
	tests := map[string]string{
		"abcdefghijkl": "abcdefgh",
		"short":        "short",
		"ñandú-ñandú":  "ñandú-ña",
	}
	for in, want := range tests {
		if got := FallbackAuthorName(in); got != want {
			t.Errorf("FallbackAuthorName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewPage(t *testing.T) {
	tests := []struct {
		number, size int
		want         Page
		skip         int
	}{
		{0, 0, Page{1, 10}, 0},
		{2, 10, Page{2, 10}, 10},
		{3, 500, Page{3, 50}, 100},
	}
	for _, tt := range tests {
		p := NewPage(tt.number, tt.size)
		if p != tt.want {
			t.Errorf("NewPage(%d, %d) = %+v, want %+v", tt.number, tt.size, p, tt.want)
		}
		if p.Skip() != tt.skip {
			t.Errorf("Skip() = %d, want %d", p.Skip(), tt.skip)
		}
	}
}

func TestTotalPages(t *testing.T) {
	tests := []struct{ total, size, want int }{
		{0, 10, 0},
		{10, 10, 1},
		{11, 10, 2},
		{25, 10, 3},
	}
	for _, tt := range tests {
		if got := TotalPages(tt.total, tt.size); got != tt.want {
			t.Errorf("TotalPages(%d, %d) = %d, want %d", tt.total, tt.size, got, tt.want)
		}
	}
}

func TestValidateReportsField(t *testing.T) {
	err := Validate(CreatePostRequest{AuthorName: "Ana"})

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if verr.Field != "content" {
		t.Errorf("field: got %q, want content", verr.Field)
	}
	if !errors.Is(err, ErrValidation) {
		t.Error("validation errors must unwrap to ErrValidation")
	}
}

func TestValidateCommentLimitMatchesConstant(t *testing.T) {
	ok := CreateCommentRequest{Content: strings.Repeat("é", MaxCommentLength)}
	if err := Validate(ok); err != nil {
		t.Errorf("%d runes should pass: %v", MaxCommentLength, err)
	}

	var verr *ValidationError
	long := CreateCommentRequest{Content: strings.Repeat("a", MaxCommentLength+1)}
	if err := Validate(long); !errors.As(err, &verr) || verr.Field != "content" {
		t.Errorf("expected content failure, got %v", err)
	}
	if err := Validate(CreateCommentRequest{}); !errors.As(err, &verr) || verr.Field != "content" {
		t.Errorf("expected required failure, got %v", err)
	}
}

func TestValidateMediaDescriptor(t *testing.T) {
	req := CreatePostRequest{
		AuthorName: "Ana",
		Content:    "Pasta night",
		Media:      []Media{{URL: "not a url", Kind: MediaKindImage}},
	}
	var verr *ValidationError
	if err := Validate(req); !errors.As(err, &verr) || verr.Field != "media[0].url" {
		t.Errorf("expected media[0].url failure, got %v", err)
	}
}

func TestMediaKindFor(t *testing.T) {
	if k, ok := MediaKindFor("image/jpeg; charset=binary"); !ok || k != MediaKindImage {
		t.Errorf("jpeg: got %q %t", k, ok)
	}
	if k, ok := MediaKindFor("video/quicktime"); !ok || k != MediaKindVideo {
		t.Errorf("quicktime: got %q %t", k, ok)
	}
	if _, ok := MediaKindFor("application/pdf"); ok {
		t.Error("pdf must be rejected")
	}
	if got := FormatFor("video/quicktime"); got != "mov" {
		t.Errorf("FormatFor(quicktime) = %q, want mov", got)
	}
}
