package handler

import (
	"net/http"

	"recipehub/internal/httputil"
	"recipehub/internal/model"
	"recipehub/internal/service"
)

type ProfileHandler struct {
	errorWriter
	profileService *service.ProfileService
}

func NewProfileHandler(profileService *service.ProfileService, debug bool) *ProfileHandler {
	return &ProfileHandler{
		errorWriter:    errorWriter{debug: debug},
		profileService: profileService,
	}
}

// Me handles GET /me
func (h *ProfileHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireViewer(w, r)
	if !ok {
		return
	}

	profile, err := h.profileService.Get(r.Context(), userID)
	if err != nil {
		h.fail(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, profile)
}

// UpdateProfile handles PUT /me/profile
func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireViewer(w, r)
	if !ok {
		return
	}

	var req model.UpdateProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	profile, err := h.profileService.Update(r.Context(), userID, req)
	if err != nil {
		h.fail(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, profile)
}
