package http

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"recipehub/internal/handler"
	"recipehub/internal/httputil"
	"recipehub/internal/model"
	"recipehub/internal/repository/memory"
	"recipehub/internal/service"
	authmw "recipehub/internal/transport/http/middleware"
)

const testSecret = "test-secret"

// =============================================================================
// HELPERS
// =============================================================================

type testServer struct {
	*httptest.Server
	t *testing.T
}

func newTestServer(t *testing.T, limiter *authmw.RateLimiter) *testServer {
	t.Helper()
	store := memory.NewStore()
	posts, comments, users := store.Posts(), store.Comments(), store.Users()

	router := NewRouter(RouterConfig{
		PostHandler:        handler.NewPostHandler(service.NewPostService(posts, users, nil, nil), false),
		FeedHandler:        handler.NewFeedHandler(service.NewFeedService(posts, nil), false),
		InteractionHandler: handler.NewInteractionHandler(service.NewInteractionService(posts), false),
		CommentHandler:     handler.NewCommentHandler(service.NewCommentService(posts, comments, users), false),
		ProfileHandler:     handler.NewProfileHandler(service.NewProfileService(users), false),
		Verifier:           authmw.NewJWTVerifier(testSecret),
		RateLimiter:        limiter,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, t: t}
}

func token(t *testing.T, uid string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"uid": uid,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	s, err := tok.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

// do sends a request and decodes the JSON response into out when non-nil.
func (s *testServer) do(method, path, uid string, body any, out any) int {
	s.t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			s.t.Fatalf("marshal: %v", err)
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.URL+path, rdr)
	if err != nil {
		s.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if uid != "" {
		req.Header.Set("Authorization", "Bearer "+token(s.t, uid))
	}
	return s.send(req, out)
}

func (s *testServer) send(req *http.Request, out any) int {
	s.t.Helper()
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		s.t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			s.t.Fatalf("decode %s %s: %v", req.Method, req.URL.Path, err)
		}
	}
	return resp.StatusCode
}

func (s *testServer) createPost(uid, content string) model.PostView {
	s.t.Helper()
	var post model.PostView
	status := s.do(http.MethodPost, "/posts", uid, map[string]any{
		"author":  "Chef " + uid,
		"content": content,
		"tags":    []string{"dinner"},
	}, &post)
	if status != http.StatusCreated {
		s.t.Fatalf("create post: status %d", status)
	}
	return post
}

// =============================================================================
// ROUTING TESTS
// =============================================================================

func TestRouter_CommunityFlow(t *testing.T) {
	s := newTestServer(t, nil)
	post := s.createPost("chef", "Pasta night")

	var like model.LikeResponse
	if status := s.do(http.MethodPost, "/posts/"+post.ID+"/like", "u1", nil, &like); status != http.StatusOK {
		t.Fatalf("like: status %d", status)
	}
	if like.Likes != 1 || !like.IsLiked {
		t.Errorf("like = %+v", like)
	}

	var comment model.Comment
	if status := s.do(http.MethodPost, "/posts/"+post.ID+"/comment", "u2", map[string]string{"content": "yum"}, &comment); status != http.StatusCreated {
		t.Fatalf("comment: status %d", status)
	}

	var share model.ShareResponse
	s.do(http.MethodPost, "/posts/"+post.ID+"/share", "u2", nil, &share)
	s.do(http.MethodPost, "/posts/"+post.ID+"/share", "u2", nil, &share)
	if share.Shares != 1 {
		t.Errorf("shares = %d, want 1", share.Shares)
	}

	var view model.PostView
	if status := s.do(http.MethodGet, "/posts/"+post.ID, "u1", nil, &view); status != http.StatusOK {
		t.Fatalf("get: status %d", status)
	}
	if !view.IsLiked || view.CommentCount != 1 || view.ShareCount != 1 {
		t.Errorf("view = %+v", view)
	}

	var list model.CommentListResponse
	s.do(http.MethodGet, "/posts/"+post.ID+"/comments", "", nil, &list)
	if list.TotalComments != 1 || list.Comments[0].Content != "yum" {
		t.Errorf("comments = %+v", list)
	}
}

func TestRouter_ResponsesHideMembershipSets(t *testing.T) {
	s := newTestServer(t, nil)
	post := s.createPost("chef", "x")
	s.do(http.MethodPost, "/posts/"+post.ID+"/like", "u1", nil, nil)
	s.do(http.MethodPost, "/posts/"+post.ID+"/share", "u1", nil, nil)

	req, _ := http.NewRequest(http.MethodGet, s.URL+"/posts", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)

	for _, field := range []string{"likedBy", "sharedBy", "version"} {
		if strings.Contains(string(raw), field) {
			t.Errorf("response leaks %q: %s", field, raw)
		}
	}
	if !strings.Contains(string(raw), `"isLiked":false`) {
		t.Errorf("anonymous feed should carry isLiked=false: %s", raw)
	}
}

func TestRouter_StatusMapping(t *testing.T) {
	s := newTestServer(t, nil)
	post := s.createPost("chef", "x")

	tests := []struct {
		name   string
		method string
		path   string
		uid    string
		body   any
		want   int
		code   string
	}{
		{"missing auth", http.MethodPost, "/posts/" + post.ID + "/like", "", nil, http.StatusUnauthorized, httputil.ErrCodeUnauthorized},
		{"bad page", http.MethodGet, "/posts?page=abc", "", nil, http.StatusBadRequest, httputil.ErrCodeValidation},
		{"negative limit", http.MethodGet, "/posts?limit=-1", "", nil, http.StatusBadRequest, httputil.ErrCodeValidation},
		{"unknown filter", http.MethodGet, "/posts?filter=friends", "", nil, http.StatusBadRequest, httputil.ErrCodeValidation},
		{"empty search", http.MethodGet, "/posts/search?q=", "", nil, http.StatusBadRequest, httputil.ErrCodeValidation},
		{"missing post", http.MethodGet, "/posts/missing", "", nil, http.StatusNotFound, httputil.ErrCodeNotFound},
		{"like missing post", http.MethodPost, "/posts/missing/like", "u1", nil, http.StatusNotFound, httputil.ErrCodeNotFound},
		{"empty comment", http.MethodPost, "/posts/" + post.ID + "/comment", "u1", map[string]string{"content": "  "}, http.StatusBadRequest, httputil.ErrCodeValidation},
		{"non-owner delete", http.MethodDelete, "/posts/" + post.ID, "u9", nil, http.StatusForbidden, httputil.ErrCodeForbidden},
		{"non-owner update", http.MethodPut, "/posts/" + post.ID, "u9", map[string]string{"content": "hijack"}, http.StatusForbidden, httputil.ErrCodeForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var errResp httputil.ErrorResponse
			status := s.do(tt.method, tt.path, tt.uid, tt.body, &errResp)
			if status != tt.want {
				t.Fatalf("status = %d, want %d", status, tt.want)
			}
			if errResp.Error.Code != tt.code {
				t.Errorf("code = %q, want %q", errResp.Error.Code, tt.code)
			}
		})
	}
}

func TestRouter_InvalidTokenOnReadRouteIsAnonymous(t *testing.T) {
	s := newTestServer(t, nil)
	post := s.createPost("chef", "x")

	req, _ := http.NewRequest(http.MethodGet, s.URL+"/posts/"+post.ID, nil)
	req.Header.Set("Authorization", "Bearer garbage")
	var view model.PostView
	if status := s.send(req, &view); status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if view.IsLiked {
		t.Error("anonymous viewer cannot have liked")
	}
}

func TestRouter_MultipartCreateWithoutStorage(t *testing.T) {
	s := newTestServer(t, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("author", "Chef")
	_ = mw.WriteField("content", "Soup")
	_ = mw.WriteField("tags", "soup, winter")
	fw, _ := mw.CreateFormFile("media", "a.png")
	_, _ = fw.Write([]byte("\x89PNG\r\n\x1a\n"))
	_ = mw.Close()

	req, _ := http.NewRequest(http.MethodPost, s.URL+"/posts", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token(t, "chef"))

	var errResp httputil.ErrorResponse
	if status := s.send(req, &errResp); status != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502 with storage disabled", status)
	}
	if errResp.Error.Code != httputil.ErrCodeUpstream {
		t.Errorf("code = %q", errResp.Error.Code)
	}
}

func TestRouter_MultipartCreateTextOnly(t *testing.T) {
	s := newTestServer(t, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("author", "Chef")
	_ = mw.WriteField("content", "Soup")
	_ = mw.WriteField("tags", `["soup","winter"]`)
	_ = mw.WriteField("recipe", `{"servings":4}`)
	_ = mw.Close()

	req, _ := http.NewRequest(http.MethodPost, s.URL+"/posts", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token(t, "chef"))

	var post model.PostView
	if status := s.send(req, &post); status != http.StatusCreated {
		t.Fatalf("status = %d", status)
	}
	if len(post.Tags) != 2 || string(post.Recipe) != `{"servings":4}` {
		t.Errorf("post = %+v recipe=%s", post, post.Recipe)
	}
}

func TestRouter_RateLimitsMutations(t *testing.T) {
	s := newTestServer(t, authmw.NewRateLimiter(0.001, 2))
	post := s.createPost("chef", "x")

	s.do(http.MethodPost, "/posts/"+post.ID+"/like", "u1", nil, nil)
	if status := s.do(http.MethodPost, "/posts/"+post.ID+"/like", "u1", nil, nil); status != http.StatusTooManyRequests {
		t.Errorf("third mutation: status %d, want 429", status)
	}
	// Reads are not limited.
	if status := s.do(http.MethodGet, "/posts/"+post.ID, "u1", nil, nil); status != http.StatusOK {
		t.Errorf("read after limit: status %d", status)
	}
}

func TestRouter_Profile(t *testing.T) {
	s := newTestServer(t, nil)

	if status := s.do(http.MethodGet, "/me", "u1", nil, nil); status != http.StatusNotFound {
		t.Errorf("no profile yet: status %d", status)
	}
	var profile model.UserProfile
	if status := s.do(http.MethodPut, "/me/profile", "u1", map[string]string{"displayName": "Ana"}, &profile); status != http.StatusOK {
		t.Fatalf("update: status %d", status)
	}
	if profile.UID != "u1" || profile.DisplayName != "Ana" {
		t.Errorf("profile = %+v", profile)
	}

	// Posts now pick up the profile name when the client omits it.
	var post model.PostView
	s.do(http.MethodPost, "/posts", "u1", map[string]string{"content": "x"}, &post)
	if post.AuthorName != "Ana" {
		t.Errorf("authorName = %q", post.AuthorName)
	}
}
