package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"recipehub/internal/httputil"
	"recipehub/internal/model"
	"recipehub/internal/service"
)

type FeedHandler struct {
	errorWriter
	feedService *service.FeedService
}

func NewFeedHandler(feedService *service.FeedService, debug bool) *FeedHandler {
	return &FeedHandler{
		errorWriter: errorWriter{debug: debug},
		feedService: feedService,
	}
}

// ListPosts handles GET /posts
//
// Query params:
//   - page: optional, 1-indexed (default 1)
//   - limit: optional, posts per page (default 10, max 50)
//   - filter: optional, all | trending | following
func (h *FeedHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	filter, err := model.ParseFeedFilter(r.URL.Query().Get("filter"))
	if err != nil {
		h.fail(w, err)
		return
	}

	feed, err := h.feedService.ListPosts(r.Context(), filter, page, viewerID(r))
	if err != nil {
		h.fail(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, feed)
}

// Search handles GET /posts/search?q=
func (h *FeedHandler) Search(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		h.fail(w, err)
		return
	}

	results, err := h.feedService.Search(r.Context(), r.URL.Query().Get("q"), page, viewerID(r))
	if err != nil {
		h.fail(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, results)
}

// ListByAuthor handles GET /posts/user/:uid
func (h *FeedHandler) ListByAuthor(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		h.fail(w, err)
		return
	}

	feed, err := h.feedService.ListByAuthor(r.Context(), chi.URLParam(r, "uid"), page, viewerID(r))
	if err != nil {
		h.fail(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, feed)
}
