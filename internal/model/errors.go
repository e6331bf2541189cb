package model

import (
	"errors"
	"fmt"
)

// Error taxonomy. Handlers map these to HTTP status codes with errors.Is.
var (
	ErrValidation    = errors.New("validation failed")
	ErrNotAuthorized = errors.New("not authorized")
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("write conflict")
	ErrUpstream      = errors.New("upstream service failure")
)

// ErrVersionConflict is returned by repositories when a conditional write
// finds that the stored version moved. Services retry on it.
var ErrVersionConflict = fmt.Errorf("version mismatch: %w", ErrConflict)

// ValidationError describes a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError builds a *ValidationError for the given field.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
