package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"recipehub/internal/httputil"
	"recipehub/internal/model"
	"recipehub/internal/transport/http/middleware"
)

// maxJSONBody bounds JSON request bodies.
const maxJSONBody = 1 << 20

// errorWriter maps service errors for every handler in the package.
type errorWriter struct {
	debug bool
}

func (e errorWriter) fail(w http.ResponseWriter, err error) {
	httputil.WriteServiceError(w, err, e.debug)
}

// parsePage reads page and limit. Missing values take the defaults;
// non-numeric or non-positive values are rejected.
func parsePage(r *http.Request) (model.Page, error) {
	q := r.URL.Query()
	number, err := positiveParam(q.Get("page"), "page")
	if err != nil {
		return model.Page{}, err
	}
	size, err := positiveParam(q.Get("limit"), "limit")
	if err != nil {
		return model.Page{}, err
	}
	return model.NewPage(number, size), nil
}

func positiveParam(raw, name string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, model.NewValidationError(name, "must be a positive integer")
	}
	return n, nil
}

// viewerID returns the authenticated viewer or "" for anonymous requests.
func viewerID(r *http.Request) string {
	uid, _ := middleware.GetViewerIDFromContext(r.Context())
	return uid
}

// requireViewer writes 401 and returns false for anonymous requests.
func requireViewer(w http.ResponseWriter, r *http.Request) (string, bool) {
	uid, ok := middleware.GetViewerIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return "", false
	}
	return uid, true
}

// decodeJSON decodes a bounded JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	return json.NewDecoder(r.Body).Decode(dst)
}
