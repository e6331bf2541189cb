// Package feedsync is a client for the community feed API plus a per-post
// view-model that applies interactions optimistically.
package feedsync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"recipehub/internal/httputil"
	"recipehub/internal/model"
)

const defaultTimeout = 10 * time.Second

// APIError is a non-2xx response decoded from the error envelope.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d code=%s message=%s", e.Status, e.Code, e.Message)
}

// Client calls the feed API with an optional bearer token.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

type ClientOption func(*Client)

func WithToken(token string) ClientOption {
	return func(c *Client) { c.token = token }
}

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) ListPosts(ctx context.Context, filter model.FeedFilter, page model.Page) (*model.PostListResponse, error) {
	q := pageQuery(page)
	if filter != "" {
		q.Set("filter", string(filter))
	}
	var out model.PostListResponse
	if err := c.do(ctx, http.MethodGet, "/posts?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Search(ctx context.Context, query string, page model.Page) (*model.SearchResponse, error) {
	q := pageQuery(page)
	q.Set("q", query)
	var out model.SearchResponse
	if err := c.do(ctx, http.MethodGet, "/posts/search?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetPost(ctx context.Context, postID string) (*model.PostView, error) {
	var out model.PostView
	if err := c.do(ctx, http.MethodGet, "/posts/"+url.PathEscape(postID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ToggleLike(ctx context.Context, postID string) (*model.LikeResponse, error) {
	var out model.LikeResponse
	if err := c.do(ctx, http.MethodPost, "/posts/"+url.PathEscape(postID)+"/like", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Share(ctx context.Context, postID string) (*model.ShareResponse, error) {
	var out model.ShareResponse
	if err := c.do(ctx, http.MethodPost, "/posts/"+url.PathEscape(postID)+"/share", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AddComment(ctx context.Context, postID string, req model.CreateCommentRequest) (*model.Comment, error) {
	var out model.Comment
	if err := c.do(ctx, http.MethodPost, "/posts/"+url.PathEscape(postID)+"/comment", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListComments(ctx context.Context, postID string, page model.Page) (*model.CommentListResponse, error) {
	var out model.CommentListResponse
	path := "/posts/" + url.PathEscape(postID) + "/comments?" + pageQuery(page).Encode()
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteComment(ctx context.Context, commentID string) error {
	return c.do(ctx, http.MethodDelete, "/comments/"+url.PathEscape(commentID), nil, nil)
}

func (c *Client) LikeComment(ctx context.Context, commentID string) error {
	return c.do(ctx, http.MethodPost, "/comments/"+url.PathEscape(commentID)+"/like", nil, nil)
}

func pageQuery(page model.Page) url.Values {
	q := url.Values{}
	if page.Number > 0 {
		q.Set("page", strconv.Itoa(page.Number))
	}
	if page.Size > 0 {
		q.Set("limit", strconv.Itoa(page.Size))
	}
	return q
}

// do sends body as JSON and decodes a 2xx response into out when non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var envelope httputil.ErrorResponse
		if json.Unmarshal(respBody, &envelope) == nil && envelope.Error.Code != "" {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
