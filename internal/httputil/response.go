package httputil

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"recipehub/internal/model"
)

// Error codes returned in the error envelope
const (
	ErrCodeBadRequest   = "BAD_REQUEST"
	ErrCodeValidation   = "VALIDATION_ERROR"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeForbidden    = "FORBIDDEN"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeConflict     = "CONFLICT"
	ErrCodeRateLimited  = "RATE_LIMITED"
	ErrCodeUpstream     = "UPSTREAM_FAILURE"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

// ErrorResponse represents the standard error response format
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error code and message. Detail carries the
// underlying error text and is only populated in debug mode.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Printf("[httputil] Failed to encode response: status=%d err=%v", status, err)
		}
	}
}

// WriteError writes an error response:
// {"error": {"code": "ERROR_CODE", "message": "Human readable message"}}
func WriteError(w http.ResponseWriter, status int, code string, message string) {
	WriteJSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// WriteBadRequest writes a 400 Bad Request error
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// WriteUnauthorized writes a 401 Unauthorized error
func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// WriteForbidden writes a 403 Forbidden error
func WriteForbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, ErrCodeForbidden, message)
}

// WriteNotFound writes a 404 Not Found error
func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// WriteConflict writes a 409 Conflict error
func WriteConflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, ErrCodeConflict, message)
}

// WriteTooManyRequests writes a 429 Too Many Requests error
func WriteTooManyRequests(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusTooManyRequests, ErrCodeRateLimited, message)
}

// WriteInternalError writes a 500 Internal Server Error
func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// WriteServiceError maps a service error onto the error taxonomy. The
// underlying error text is only exposed when debug is set.
func WriteServiceError(w http.ResponseWriter, err error, debug bool) {
	status, detail := http.StatusInternalServerError, ErrorDetail{
		Code:    ErrCodeInternal,
		Message: "Something went wrong",
	}

	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		status = http.StatusBadRequest
		detail = ErrorDetail{Code: ErrCodeValidation, Message: verr.Error(), Field: verr.Field}
	case errors.Is(err, model.ErrValidation):
		status = http.StatusBadRequest
		detail = ErrorDetail{Code: ErrCodeValidation, Message: err.Error()}
	case errors.Is(err, model.ErrNotAuthorized):
		status = http.StatusForbidden
		detail = ErrorDetail{Code: ErrCodeForbidden, Message: err.Error()}
	case errors.Is(err, model.ErrNotFound):
		status = http.StatusNotFound
		detail = ErrorDetail{Code: ErrCodeNotFound, Message: err.Error()}
	case errors.Is(err, model.ErrConflict):
		status = http.StatusConflict
		detail = ErrorDetail{Code: ErrCodeConflict, Message: "The resource was modified concurrently, please retry"}
	case errors.Is(err, model.ErrUpstream):
		status = http.StatusBadGateway
		detail = ErrorDetail{Code: ErrCodeUpstream, Message: "An upstream service failed"}
	}

	if status >= http.StatusInternalServerError || status == http.StatusConflict {
		log.Printf("[ERROR] status=%d err=%v", status, err)
		if debug {
			detail.Detail = err.Error()
		}
	}
	WriteJSON(w, status, ErrorResponse{Error: detail})
}
