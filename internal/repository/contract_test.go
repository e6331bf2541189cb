package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"recipehub/internal/database"
	"recipehub/internal/model"
)

// These tests run against live stores and skip unless
// TEST_DATABASE_URL or TEST_MONGO_URI is set.

type stores struct {
	posts    PostRepository
	comments CommentRepository
	users    UserRepository
}

func TestPostgresRepositories(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer db.Close()
	if err := database.EnsureSchema(ctx, db); err != nil {
		t.Fatalf("schema: %v", err)
	}
	reset := func() {
		db.MustExec(`TRUNCATE post_comments, posts, user_profiles`)
	}

	runContract(t, reset, stores{
		posts:    NewPostRepository(db),
		comments: NewCommentRepository(db),
		users:    NewUserRepository(db),
	})
}

func TestMongoRepositories(t *testing.T) {
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set")
	}
	ctx := context.Background()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Disconnect(ctx)

	db := client.Database(fmt.Sprintf("recipehub_test_%d", time.Now().UnixNano()))
	defer db.Drop(ctx)
	if err := EnsureMongoIndexes(ctx, db); err != nil {
		t.Fatalf("indexes: %v", err)
	}
	reset := func() {
		for _, name := range []string{postsCollection, profilesCollection} {
			if _, err := db.Collection(name).DeleteMany(ctx, map[string]any{}); err != nil {
				t.Fatalf("reset %s: %v", name, err)
			}
		}
	}

	runContract(t, reset, stores{
		posts:    NewMongoPostRepository(db),
		comments: NewMongoCommentRepository(db),
		users:    NewMongoUserRepository(db),
	})
}

func runContract(t *testing.T, reset func(), s stores) {
	cases := []struct {
		name string
		fn   func(t *testing.T, s stores)
	}{
		{"CreateAndGet", contractCreateAndGet},
		{"ListNewestFirst", contractListNewestFirst},
		{"VersionedWrites", contractVersionedWrites},
		{"Search", contractSearch},
		{"Comments", contractComments},
		{"Profiles", contractProfiles},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			reset()
			c.fn(t, s)
		})
	}
}

func newPost(authorID, content string, tags ...string) *model.Post {
	if tags == nil {
		tags = []string{}
	}
	return &model.Post{
		AuthorID:   authorID,
		AuthorName: "Author " + authorID,
		Content:    content,
		Tags:       tags,
		Media:      []model.Media{},
		LikedBy:    []string{},
		SharedBy:   []string{},
	}
}

func mustCreate(t *testing.T, s stores, p *model.Post) *model.Post {
	t.Helper()
	if err := s.posts.Create(context.Background(), p); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return p
}

func contractCreateAndGet(t *testing.T, s stores) {
	ctx := context.Background()
	p := mustCreate(t, s, newPost("u1", "Pasta night", "dinner"))
	if p.ID == "" || p.Version != 1 || p.CreatedAt.IsZero() {
		t.Fatalf("Create did not assign fields: %+v", p)
	}

	got, err := s.posts.GetByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Content != "Pasta night" || len(got.Tags) != 1 || got.LikedBy == nil {
		t.Errorf("got %+v", got)
	}

	if _, err := s.posts.GetByID(ctx, "not-an-id"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("malformed id: %v", err)
	}

	if err := s.posts.Delete(ctx, p.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.posts.Delete(ctx, p.ID); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("second delete: %v", err)
	}
}

func contractListNewestFirst(t *testing.T, s stores) {
	ctx := context.Background()
	var ids []string
	for i := 0; i < 3; i++ {
		ids = append(ids, mustCreate(t, s, newPost("u1", fmt.Sprintf("post %d", i))).ID)
		time.Sleep(5 * time.Millisecond)
	}
	mustCreate(t, s, newPost("u2", "other author"))

	posts, total, err := s.posts.List(ctx, model.PostQuery{AuthorID: "u1", Limit: 2})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 3 || len(posts) != 2 || posts[0].ID != ids[2] || posts[1].ID != ids[1] {
		t.Errorf("total=%d posts=%v", total, posts)
	}

	hydrated, err := s.posts.GetByIDs(ctx, []string{ids[0], "missing", ids[2]})
	if err != nil {
		t.Fatalf("GetByIDs: %v", err)
	}
	if len(hydrated) != 2 || hydrated[0].ID != ids[0] || hydrated[1].ID != ids[2] {
		t.Errorf("GetByIDs order: %v", hydrated)
	}
}

func contractVersionedWrites(t *testing.T, s stores) {
	ctx := context.Background()
	p := mustCreate(t, s, newPost("u1", "x"))

	stale := *p
	p.ToggleLike("v1")
	if err := s.posts.SaveEngagement(ctx, p, p.Version); err != nil {
		t.Fatalf("SaveEngagement: %v", err)
	}
	if p.Version != 2 {
		t.Errorf("version = %d, want 2", p.Version)
	}

	stale.ToggleLike("v2")
	if err := s.posts.SaveEngagement(ctx, &stale, stale.Version); !errors.Is(err, model.ErrVersionConflict) {
		t.Fatalf("stale write: %v", err)
	}

	got, _ := s.posts.GetByID(ctx, p.ID)
	if got.LikeCount != 1 || len(got.LikedBy) != 1 || got.LikedBy[0] != "v1" {
		t.Errorf("stored = %+v", got)
	}
}

func contractSearch(t *testing.T, s stores) {
	ctx := context.Background()
	mustCreate(t, s, newPost("u1", "Creamy pasta night", "dinner"))
	mustCreate(t, s, newPost("u1", "Lentil soup", "Vegetarian"))

	posts, total, err := s.posts.SearchText(ctx, "pasta", 0, 10)
	if err != nil {
		t.Fatalf("SearchText: %v", err)
	}
	if total != 1 || posts[0].Content != "Creamy pasta night" {
		t.Errorf("text search = %d %v", total, posts)
	}

	posts, total, err = s.posts.SearchSubstring(ctx, "VEG", 0, 10)
	if err != nil {
		t.Fatalf("SearchSubstring: %v", err)
	}
	if total != 1 || posts[0].Content != "Lentil soup" {
		t.Errorf("substring search = %d %v", total, posts)
	}
}

func contractComments(t *testing.T, s stores) {
	ctx := context.Background()
	p := mustCreate(t, s, newPost("u1", "x"))

	first := &model.Comment{AuthorID: "u2", AuthorName: "u2", Content: "first", LikedBy: []string{}}
	if n, err := s.comments.Append(ctx, p.ID, first); err != nil || n != 1 {
		t.Fatalf("Append = %d, %v", n, err)
	}
	time.Sleep(5 * time.Millisecond)
	second := &model.Comment{AuthorID: "u3", AuthorName: "u3", Content: "second", LikedBy: []string{}}
	if n, err := s.comments.Append(ctx, p.ID, second); err != nil || n != 2 {
		t.Fatalf("Append = %d, %v", n, err)
	}

	list, total, err := s.comments.ListByPost(ctx, p.ID, 0, 10)
	if err != nil || total != 2 || list[0].ID != second.ID {
		t.Fatalf("ListByPost = %v %d %v", list, total, err)
	}

	got, err := s.comments.GetByID(ctx, first.ID)
	if err != nil || got.PostID != p.ID {
		t.Fatalf("GetByID = %+v, %v", got, err)
	}

	postID, count, err := s.comments.Delete(ctx, first.ID)
	if err != nil || postID != p.ID || count != 1 {
		t.Fatalf("Delete = %s %d %v", postID, count, err)
	}
	stored, _ := s.posts.GetByID(ctx, p.ID)
	if stored.CommentCount != 1 {
		t.Errorf("commentCount = %d", stored.CommentCount)
	}

	// Comments go with their post.
	if err := s.posts.Delete(ctx, p.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.comments.GetByID(ctx, second.ID); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("comment survived post delete: %v", err)
	}
	if _, err := s.comments.Append(ctx, p.ID, &model.Comment{AuthorID: "u2", Content: "late"}); !errors.Is(err, model.ErrPostNotFound) {
		t.Errorf("append to deleted post: %v", err)
	}
}

func contractProfiles(t *testing.T, s stores) {
	ctx := context.Background()
	if _, err := s.users.GetProfile(ctx, "u1"); !errors.Is(err, model.ErrUserNotFound) {
		t.Fatalf("missing profile: %v", err)
	}

	photo := "https://img.example.com/a.png"
	if err := s.users.UpsertProfile(ctx, &model.UserProfile{UID: "u1", DisplayName: "Ana", PhotoURL: &photo, UpdatedAt: time.Now().UTC()}); err != nil {
		t.Fatal(err)
	}
	if err := s.users.UpsertProfile(ctx, &model.UserProfile{UID: "u1", DisplayName: "Ana B", UpdatedAt: time.Now().UTC()}); err != nil {
		t.Fatal(err)
	}
	got, err := s.users.GetProfile(ctx, "u1")
	if err != nil || got.DisplayName != "Ana B" || got.PhotoURL != nil {
		t.Errorf("profile = %+v, %v", got, err)
	}
}
