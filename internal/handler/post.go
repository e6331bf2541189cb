package handler

import (
	"encoding/json"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"recipehub/internal/httputil"
	"recipehub/internal/model"
	"recipehub/internal/service"
)

const (
	multipartMemory = 32 << 20
	// maxMultipartBody allows a full set of maximum-size files plus form fields.
	maxMultipartBody = model.MaxPostMediaCount*model.MaxPostMediaSize + 1<<20
)

type PostHandler struct {
	errorWriter
	postService *service.PostService
}

func NewPostHandler(postService *service.PostService, debug bool) *PostHandler {
	return &PostHandler{
		errorWriter: errorWriter{debug: debug},
		postService: postService,
	}
}

// Create handles POST /posts
// Accepts multipart/form-data with up to 5 "media" files, or a JSON body
// whose media is already uploaded.
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireViewer(w, r)
	if !ok {
		return
	}

	var (
		req   model.CreatePostRequest
		files []service.MediaFile
	)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		parsed, parsedFiles, err := parseMultipartPost(w, r)
		if err != nil {
			h.fail(w, err)
			return
		}
		req, files = parsed, parsedFiles
	} else {
		if err := decodeJSON(w, r, &req); err != nil {
			httputil.WriteBadRequest(w, "Invalid request body")
			return
		}
		if len(req.Recipe) > 0 && !json.Valid(req.Recipe) {
			httputil.WriteBadRequest(w, "recipe must be valid JSON")
			return
		}
	}

	post, err := h.postService.CreateWithUploads(r.Context(), userID, req, files)
	if err != nil {
		h.fail(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, post)
}

func parseMultipartPost(w http.ResponseWriter, r *http.Request) (model.CreatePostRequest, []service.MediaFile, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxMultipartBody)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return model.CreatePostRequest{}, nil, model.NewValidationError("body", "invalid multipart form")
	}

	req := model.CreatePostRequest{
		AuthorName:  r.FormValue("author"),
		AuthorImage: strings.TrimSpace(r.FormValue("authorImage")),
		Content:     r.FormValue("content"),
		Tags:        model.ParseTags(r.FormValue("tags")),
	}
	if raw := strings.TrimSpace(r.FormValue("recipe")); raw != "" {
		if !json.Valid([]byte(raw)) {
			return req, nil, model.NewValidationError("recipe", "must be valid JSON")
		}
		req.Recipe = json.RawMessage(raw)
	}

	headers := r.MultipartForm.File["media"]
	if len(headers) > model.MaxPostMediaCount {
		return req, nil, model.ErrTooManyMedia
	}
	files := make([]service.MediaFile, 0, len(headers))
	for _, fh := range headers {
		files = append(files, service.FromFileHeader(fh))
	}
	return req, files, nil
}

// GetByID handles GET /posts/:id
func (h *PostHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "id")

	post, err := h.postService.GetByID(r.Context(), postID, viewerID(r))
	if err != nil {
		h.fail(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, post)
}

// Update handles PUT /posts/:id
// Partial edit of content, tags or media by the owner.
func (h *PostHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireViewer(w, r)
	if !ok {
		return
	}
	postID := chi.URLParam(r, "id")

	var req model.UpdatePostRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	post, err := h.postService.Update(r.Context(), postID, userID, req)
	if err != nil {
		h.fail(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, post)
}

// Delete handles DELETE /posts/:id
// Removes a post and its comments (only owner can delete).
func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireViewer(w, r)
	if !ok {
		return
	}
	postID := chi.URLParam(r, "id")

	if err := h.postService.Delete(r.Context(), postID, userID); err != nil {
		h.fail(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, model.MessageResponse{
		Message: "Post deleted successfully",
	})
}
