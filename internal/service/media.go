package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"

	"recipehub/internal/model"
)

// Object is a validated upload ready for storage.
type Object struct {
	Key         string // suggested key; backends may derive their own
	Data        []byte
	ContentType string
	Kind        model.MediaKind
}

// Storage is an object store for post media.
type Storage interface {
	// Put stores the object and returns its fully resolved descriptor,
	// including the key to delete it by.
	Put(ctx context.Context, obj Object) (model.Media, error)
	Delete(ctx context.Context, storageKey string) error
}

// MediaFile is one file of a multipart upload.
type MediaFile struct {
	Filename    string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// FromFileHeader adapts a multipart file header.
func FromFileHeader(h *multipart.FileHeader) MediaFile {
	return MediaFile{
		Filename:    h.Filename,
		ContentType: h.Header.Get("Content-Type"),
		Size:        h.Size,
		Open:        func() (io.ReadCloser, error) { return h.Open() },
	}
}

// MediaService uploads post media all-or-nothing.
type MediaService struct {
	storage Storage // nil when MEDIA_PROVIDER=none
}

func NewMediaService(storage Storage) *MediaService {
	return &MediaService{storage: storage}
}

// UploadAll validates and stores files in order. If any file fails, every
// object already stored by this call is deleted and the error returned.
func (s *MediaService) UploadAll(ctx context.Context, files []MediaFile) ([]model.Media, error) {
	if len(files) == 0 {
		return []model.Media{}, nil
	}
	if len(files) > model.MaxPostMediaCount {
		return nil, model.ErrTooManyMedia
	}
	if s.storage == nil {
		return nil, model.ErrStorageDisabled
	}

	// Validate everything before the first upload.
	objects := make([]Object, 0, len(files))
	for _, f := range files {
		obj, err := readAndValidate(f)
		if err != nil {
			return nil, err
		}
		objects = append(objects, obj)
	}

	uploaded := make([]model.Media, 0, len(objects))
	for i, obj := range objects {
		m, err := s.storage.Put(ctx, obj)
		if err != nil {
			log.Printf("[MediaService] Upload FAILED: file=%d/%d key=%s err=%v", i+1, len(objects), obj.Key, err)
			s.rollback(ctx, uploaded)
			return nil, fmt.Errorf("upload %s: %w", files[i].Filename, errors.Join(model.ErrMediaStorage, err))
		}
		uploaded = append(uploaded, m)
	}

	log.Printf("[MediaService] Upload OK: files=%d", len(uploaded))
	return uploaded, nil
}

// Discard deletes objects produced by UploadAll when the post that would
// reference them is not created.
func (s *MediaService) Discard(ctx context.Context, media []model.Media) {
	s.rollback(ctx, media)
}

func (s *MediaService) rollback(ctx context.Context, media []model.Media) {
	if s.storage == nil {
		return
	}
	// The request context may already be cancelled.
	ctx = context.WithoutCancel(ctx)
	for _, m := range media {
		if m.StorageKey == "" {
			continue
		}
		if err := s.storage.Delete(ctx, m.StorageKey); err != nil {
			log.Printf("[MediaService] Rollback delete FAILED: key=%s err=%v", m.StorageKey, err)
		}
	}
}

// Delete removes one stored object. It satisfies worker.ObjectDeleter.
func (s *MediaService) Delete(ctx context.Context, storageKey string) error {
	if s.storage == nil || storageKey == "" {
		return nil
	}
	return s.storage.Delete(ctx, storageKey)
}

// readAndValidate loads the upload into memory with size and type checks.
func readAndValidate(f MediaFile) (Object, error) {
	if f.Size > model.MaxPostMediaSize {
		return Object{}, model.ErrFileTooLarge
	}

	rc, err := f.Open()
	if err != nil {
		return Object{}, fmt.Errorf("failed to open upload: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, model.MaxPostMediaSize+1))
	if err != nil {
		return Object{}, fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > model.MaxPostMediaSize {
		return Object{}, model.ErrFileTooLarge
	}

	contentType := f.ContentType
	if (contentType == "" || contentType == "application/octet-stream") && len(data) > 0 {
		contentType = http.DetectContentType(data[:min(len(data), 512)])
	}
	kind, ok := model.MediaKindFor(contentType)
	if !ok {
		return Object{}, model.ErrInvalidMediaType
	}

	ext := strings.ToLower(path.Ext(f.Filename))
	if ext == "" {
		ext = "." + model.FormatFor(contentType)
	}
	return Object{
		Key:         fmt.Sprintf("%s/%s%s", model.PostMediaFolder, uuid.NewString(), ext),
		Data:        data,
		ContentType: contentType,
		Kind:        kind,
	}, nil
}
