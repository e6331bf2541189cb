package service

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"

	"recipehub/internal/model"
)

// CloudinaryStorage stores media in Cloudinary. Storage keys have the form
// "<resource_type>/<public_id>" because destroy needs both.
type CloudinaryStorage struct {
	cld *cloudinary.Cloudinary
}

func NewCloudinaryStorage(cloudinaryURL string) (*CloudinaryStorage, error) {
	if cloudinaryURL == "" {
		return nil, fmt.Errorf("missing CLOUDINARY_URL")
	}
	cld, err := cloudinary.NewFromURL(cloudinaryURL)
	if err != nil {
		return nil, fmt.Errorf("cloudinary configuration error: %w", err)
	}
	return &CloudinaryStorage{cld: cld}, nil
}

func (s *CloudinaryStorage) Put(ctx context.Context, obj Object) (model.Media, error) {
	resp, err := s.cld.Upload.Upload(ctx, bytes.NewReader(obj.Data), uploader.UploadParams{
		Folder:   model.PostMediaFolder,
		PublicID: uuid.NewString(),
	})
	if err != nil {
		return model.Media{}, fmt.Errorf("failed to upload to cloudinary: %w", err)
	}
	if resp.Error.Message != "" {
		return model.Media{}, fmt.Errorf("cloudinary upload rejected: %s", resp.Error.Message)
	}

	kind := obj.Kind
	if resp.ResourceType == string(model.MediaKindVideo) {
		kind = model.MediaKindVideo
	}
	return model.Media{
		URL:        resp.SecureURL,
		Kind:       kind,
		Format:     resp.Format,
		Width:      resp.Width,
		Height:     resp.Height,
		Bytes:      int64(resp.Bytes),
		StorageKey: resp.ResourceType + "/" + resp.PublicID,
	}, nil
}

func (s *CloudinaryStorage) Delete(ctx context.Context, storageKey string) error {
	resourceType, publicID, ok := strings.Cut(storageKey, "/")
	if !ok || publicID == "" {
		return fmt.Errorf("malformed cloudinary key %q", storageKey)
	}
	resp, err := s.cld.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:     publicID,
		ResourceType: resourceType,
	})
	if err != nil {
		return fmt.Errorf("failed to delete from cloudinary: %w", err)
	}
	if resp.Error.Message != "" {
		return fmt.Errorf("cloudinary destroy rejected: %s", resp.Error.Message)
	}
	return nil
}
