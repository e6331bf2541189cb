package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"recipehub/internal/model"
)

func TestCommentService_AddComment_FallbackAuthor(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	post := f.createPost("author", "x")

	comment, err := f.comments.AddComment(ctx, post.ID, "viewer-1234567890", model.CreateCommentRequest{Content: "hello"})
	if err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	if comment.AuthorName != "viewer-1" {
		t.Errorf("authorName = %q, want %q", comment.AuthorName, "viewer-1")
	}
	if comment.AuthorImage != "" {
		t.Errorf("fallback author has no image, got %q", comment.AuthorImage)
	}
	if comment.ID == "" || comment.PostID != post.ID {
		t.Errorf("comment ids not assigned: %+v", comment)
	}
}

func TestCommentService_AddComment_ProfileLookupFailureNeverAborts(t *testing.T) {
	f := newFixture()
	f.users.getProfileFn = func(ctx context.Context, uid string) (*model.UserProfile, error) {
		return nil, errors.New("profile store down")
	}
	post := f.createPost("author", "x")

	comment, err := f.comments.AddComment(context.Background(), post.ID, "u2", model.CreateCommentRequest{Content: "still works"})
	if err != nil {
		t.Fatalf("AddComment must degrade, got %v", err)
	}
	if comment.AuthorName != "u2" {
		t.Errorf("authorName = %q", comment.AuthorName)
	}
}

func TestCommentService_AddComment_UsesProfile(t *testing.T) {
	f := newFixture()
	photo := "https://img.example.com/ana.png"
	f.users.getProfileFn = func(ctx context.Context, uid string) (*model.UserProfile, error) {
		return &model.UserProfile{UID: uid, DisplayName: "Ana", PhotoURL: &photo}, nil
	}
	post := f.createPost("author", "x")

	comment, err := f.comments.AddComment(context.Background(), post.ID, "u2", model.CreateCommentRequest{Content: "yum"})
	if err != nil {
		t.Fatal(err)
	}
	if comment.AuthorName != "Ana" || comment.AuthorImage != photo {
		t.Errorf("author = %q %q", comment.AuthorName, comment.AuthorImage)
	}
}

func TestCommentService_AddComment_Validation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	post := f.createPost("author", "x")

	tests := []struct {
		name    string
		content string
		want    error
	}{
		{"empty", "", model.ErrContentRequired},
		{"whitespace", "   \n\t", model.ErrContentRequired},
		{"too long", strings.Repeat("a", model.MaxCommentLength+1), model.ErrContentTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.comments.AddComment(ctx, post.ID, "u2", model.CreateCommentRequest{Content: tt.content})
			if !errors.Is(err, tt.want) || !errors.Is(err, model.ErrValidation) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}

	// 500 multi-byte characters are within the limit.
	if _, err := f.comments.AddComment(ctx, post.ID, "u2", model.CreateCommentRequest{Content: strings.Repeat("é", model.MaxCommentLength)}); err != nil {
		t.Errorf("500 runes should be accepted: %v", err)
	}
	// The limit applies after trimming.
	padded := "  " + strings.Repeat("a", model.MaxCommentLength) + "\n"
	if _, err := f.comments.AddComment(ctx, post.ID, "u2", model.CreateCommentRequest{Content: padded}); err != nil {
		t.Errorf("padded 500 runes should be accepted: %v", err)
	}

	stored, _ := f.posts.GetByID(ctx, post.ID)
	if stored.CommentCount != 2 {
		t.Errorf("rejected comments must not be stored, count=%d", stored.CommentCount)
	}
}

func TestCommentService_AddComment_MissingPost(t *testing.T) {
	f := newFixture()
	_, err := f.comments.AddComment(context.Background(), "nope", "u2", model.CreateCommentRequest{Content: "hi"})
	if !errors.Is(err, model.ErrPostNotFound) {
		t.Errorf("got %v, want ErrPostNotFound", err)
	}
}

func TestCommentService_AddComment_ParentMustBelongToPost(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	a := f.createPost("author", "a")
	b := f.createPost("author", "b")

	parent, err := f.comments.AddComment(ctx, a.ID, "u2", model.CreateCommentRequest{Content: "parent"})
	if err != nil {
		t.Fatal(err)
	}

	reply, err := f.comments.AddComment(ctx, a.ID, "u3", model.CreateCommentRequest{Content: "reply", ParentID: &parent.ID})
	if err != nil {
		t.Fatalf("reply on same post: %v", err)
	}
	if reply.ParentID == nil || *reply.ParentID != parent.ID {
		t.Errorf("parentId not kept: %+v", reply.ParentID)
	}

	if _, err := f.comments.AddComment(ctx, b.ID, "u3", model.CreateCommentRequest{Content: "wrong post", ParentID: &parent.ID}); !errors.Is(err, model.ErrCommentNotFound) {
		t.Errorf("cross-post parent: got %v, want ErrCommentNotFound", err)
	}
}

func TestCommentService_DeleteComment_Ownership(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	post := f.createPost("author", "x")
	c, _ := f.comments.AddComment(ctx, post.ID, "u2", model.CreateCommentRequest{Content: "mine"})

	if _, err := f.comments.DeleteComment(ctx, c.ID, "u3"); !errors.Is(err, model.ErrNotAuthorized) {
		t.Fatalf("other user delete: got %v, want NotAuthorized", err)
	}
	list, _ := f.comments.ListComments(ctx, post.ID, model.NewPage(1, 10))
	if list.TotalComments != 1 {
		t.Fatalf("comment must remain after rejected delete, total=%d", list.TotalComments)
	}

	resp, err := f.comments.DeleteComment(ctx, c.ID, "u2")
	if err != nil {
		t.Fatalf("owner delete: %v", err)
	}
	if resp.Message != "Comment deleted successfully" {
		t.Errorf("message = %q", resp.Message)
	}
	stored, _ := f.posts.GetByID(ctx, post.ID)
	if stored.CommentCount != 0 {
		t.Errorf("commentCount after delete = %d", stored.CommentCount)
	}

	if _, err := f.comments.DeleteComment(ctx, c.ID, "u2"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("second delete: got %v, want NotFound", err)
	}
}

func TestCommentService_ListComments_NewestFirst(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	post := f.createPost("author", "x")
	for _, content := range []string{"one", "two", "three"} {
		if _, err := f.comments.AddComment(ctx, post.ID, "u2", model.CreateCommentRequest{Content: content}); err != nil {
			t.Fatal(err)
		}
	}

	page, err := f.comments.ListComments(ctx, post.ID, model.NewPage(1, 2))
	if err != nil {
		t.Fatal(err)
	}
	if page.TotalComments != 3 || page.TotalPages != 2 || page.CurrentPage != 1 {
		t.Errorf("meta: %+v", page)
	}
	if len(page.Comments) != 2 {
		t.Fatalf("len = %d", len(page.Comments))
	}

	if _, err := f.comments.ListComments(ctx, "missing", model.NewPage(1, 10)); !errors.Is(err, model.ErrPostNotFound) {
		t.Errorf("missing post: %v", err)
	}
}

func TestCommentService_Placeholders(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	resp, err := f.comments.LikeComment(ctx, "any", "u1")
	if err != nil || resp.Message != "Comment liked successfully" {
		t.Errorf("LikeComment = %+v, %v", resp, err)
	}
	replies, err := f.comments.ListReplies(ctx, "any")
	if err != nil || replies == nil || len(replies) != 0 {
		t.Errorf("ListReplies = %v, %v; want empty non-nil", replies, err)
	}
}

// TestCommunityFeed_EndToEnd walks through creating, liking, commenting
// and sharing a single post.
func TestCommunityFeed_EndToEnd(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	created, err := f.postSvc.Create(ctx, "chef", model.CreatePostRequest{
		AuthorName: "Chef",
		Content:    "Pasta night",
		Media:      []model.Media{},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == "" || created.LikeCount != 0 {
		t.Fatalf("created = %+v", created)
	}
	p1 := created.ID

	like, _ := f.interaction.ToggleLike(ctx, p1, "u1")
	if like.Likes != 1 || !like.IsLiked {
		t.Errorf("first toggle = %+v", *like)
	}
	like, _ = f.interaction.ToggleLike(ctx, p1, "u1")
	if like.Likes != 0 || like.IsLiked {
		t.Errorf("second toggle = %+v", *like)
	}

	if _, err := f.comments.AddComment(ctx, p1, "u2", model.CreateCommentRequest{Content: "looks great"}); err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	view, _ := f.postSvc.GetByID(ctx, p1, "u2")
	if view.CommentCount != 1 {
		t.Errorf("commentCount = %d, want 1", view.CommentCount)
	}

	s1, _ := f.interaction.Share(ctx, p1, "u2")
	s2, _ := f.interaction.Share(ctx, p1, "u2")
	if s1.Shares != 1 || s2.Shares != 1 {
		t.Errorf("shares = %d then %d, want 1 and 1", s1.Shares, s2.Shares)
	}
}
