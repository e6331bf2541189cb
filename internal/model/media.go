package model

import (
	"fmt"
	"strings"
)

// MediaKind distinguishes images from videos.
type MediaKind string

const (
	MediaKindImage MediaKind = "image"
	MediaKindVideo MediaKind = "video"
)

// Media is a fully resolved descriptor of an uploaded object.
// StorageKey identifies the object for later deletion.
type Media struct {
	URL        string    `json:"url" validate:"required,url"`
	Kind       MediaKind `json:"kind" validate:"required,oneof=image video"`
	Format     string    `json:"format,omitempty"`
	Width      int       `json:"width,omitempty" validate:"gte=0"`
	Height     int       `json:"height,omitempty" validate:"gte=0"`
	Bytes      int64     `json:"bytes,omitempty" validate:"gte=0"`
	StorageKey string    `json:"storageKey,omitempty"`
}

const (
	MaxPostMediaSize  = 25 * 1024 * 1024 // 25MB per file
	PostMediaFolder   = "community"
	MediaCacheControl = "public, max-age=31536000" // 1 year
)

// Supported content types for upload validation
const (
	ContentTypeJPEG = "image/jpeg"
	ContentTypePNG  = "image/png"
	ContentTypeGIF  = "image/gif"
	ContentTypeWebP = "image/webp"
	ContentTypeMP4  = "video/mp4"
	ContentTypeMOV  = "video/quicktime"
	ContentTypeWebM = "video/webm"
)

var allowedMediaTypes = map[string]MediaKind{
	ContentTypeJPEG: MediaKindImage,
	ContentTypePNG:  MediaKindImage,
	ContentTypeGIF:  MediaKindImage,
	ContentTypeWebP: MediaKindImage,
	ContentTypeMP4:  MediaKindVideo,
	ContentTypeMOV:  MediaKindVideo,
	ContentTypeWebM: MediaKindVideo,
}

// Domain errors for media operations
var (
	ErrFileTooLarge     = &ValidationError{Field: "media", Message: fmt.Sprintf("file exceeds %dMB limit", MaxPostMediaSize/(1024*1024))}
	ErrInvalidMediaType = &ValidationError{Field: "media", Message: "unsupported media type"}
	ErrMediaStorage     = fmt.Errorf("media storage: %w", ErrUpstream)
	ErrStorageDisabled  = fmt.Errorf("media storage is not configured: %w", ErrUpstream)
)

// MediaKindFor returns the kind for a supported content type.
func MediaKindFor(contentType string) (MediaKind, bool) {
	if idx := strings.Index(contentType, ";"); idx != -1 {
		contentType = strings.TrimSpace(contentType[:idx])
	}
	kind, ok := allowedMediaTypes[strings.ToLower(contentType)]
	return kind, ok
}

// FormatFor returns the short format name of a content type ("jpeg", "mp4").
func FormatFor(contentType string) string {
	if idx := strings.Index(contentType, ";"); idx != -1 {
		contentType = contentType[:idx]
	}
	if idx := strings.Index(contentType, "/"); idx != -1 {
		contentType = contentType[idx+1:]
	}
	if contentType == "quicktime" {
		return "mov"
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}
