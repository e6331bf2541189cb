package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"recipehub/internal/httputil"
	"recipehub/internal/service"
)

type InteractionHandler struct {
	errorWriter
	interactionService *service.InteractionService
}

func NewInteractionHandler(interactionService *service.InteractionService, debug bool) *InteractionHandler {
	return &InteractionHandler{
		errorWriter:        errorWriter{debug: debug},
		interactionService: interactionService,
	}
}

// Like handles POST /posts/:id/like
// Toggles the viewer's like and returns {likes, isLiked}.
func (h *InteractionHandler) Like(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireViewer(w, r)
	if !ok {
		return
	}

	resp, err := h.interactionService.ToggleLike(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		h.fail(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

// Share handles POST /posts/:id/share
func (h *InteractionHandler) Share(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireViewer(w, r)
	if !ok {
		return
	}

	resp, err := h.interactionService.Share(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		h.fail(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}
