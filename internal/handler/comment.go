package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"recipehub/internal/httputil"
	"recipehub/internal/model"
	"recipehub/internal/service"
)

type CommentHandler struct {
	errorWriter
	commentService *service.CommentService
}

func NewCommentHandler(commentService *service.CommentService, debug bool) *CommentHandler {
	return &CommentHandler{
		errorWriter:    errorWriter{debug: debug},
		commentService: commentService,
	}
}

// Create handles POST /posts/:id/comment
// Creates a comment on a post for the authenticated user.
func (h *CommentHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireViewer(w, r)
	if !ok {
		return
	}
	postID := chi.URLParam(r, "id")

	var req model.CreateCommentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	comment, err := h.commentService.AddComment(r.Context(), postID, userID, req)
	if err != nil {
		h.fail(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, comment)
}

// List handles GET /posts/:id/comments
func (h *CommentHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		h.fail(w, err)
		return
	}

	comments, err := h.commentService.ListComments(r.Context(), chi.URLParam(r, "id"), page)
	if err != nil {
		h.fail(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, comments)
}

// Delete handles DELETE /comments/:id
// Deletes a comment (only owner can delete).
func (h *CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireViewer(w, r)
	if !ok {
		return
	}

	resp, err := h.commentService.DeleteComment(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		h.fail(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

// Like handles POST /comments/:id/like
func (h *CommentHandler) Like(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireViewer(w, r)
	if !ok {
		return
	}

	resp, err := h.commentService.LikeComment(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		h.fail(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

// Replies handles GET /comments/:id/replies
func (h *CommentHandler) Replies(w http.ResponseWriter, r *http.Request) {
	replies, err := h.commentService.ListReplies(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, replies)
}
