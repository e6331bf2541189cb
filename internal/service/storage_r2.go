package service

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/disintegration/imaging"

	"recipehub/internal/config"
	"recipehub/internal/model"
)

// R2Storage stores media in Cloudflare R2 through the S3 API.
type R2Storage struct {
	s3Client  *s3.Client
	bucket    string
	publicURL string
}

// NewR2Storage constructs an S3-compatible client for Cloudflare R2.
func NewR2Storage(ctx context.Context, cfg *config.Config) (*R2Storage, error) {
	if cfg.R2AccountID == "" || cfg.R2AccessKeyID == "" || cfg.R2SecretAccessKey == "" || cfg.R2BucketName == "" || cfg.R2PublicURL == "" {
		return nil, fmt.Errorf("missing Cloudflare R2 configuration")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(
		ctx,
		awsconfig.WithRegion("auto"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.R2AccessKeyID, cfg.R2SecretAccessKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config for R2: %w", err)
	}

	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.R2AccountID)
	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})

	return &R2Storage{
		s3Client:  s3Client,
		bucket:    cfg.R2BucketName,
		publicURL: strings.TrimSuffix(cfg.R2PublicURL, "/"),
	}, nil
}

// Put uploads the object under its suggested key. Image dimensions are
// read with imaging; videos carry none.
func (s *R2Storage) Put(ctx context.Context, obj Object) (model.Media, error) {
	_, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(obj.Key),
		Body:         bytes.NewReader(obj.Data),
		ContentType:  aws.String(obj.ContentType),
		CacheControl: aws.String(model.MediaCacheControl),
	})
	if err != nil {
		return model.Media{}, fmt.Errorf("failed to upload to r2: %w", err)
	}

	m := model.Media{
		URL:        fmt.Sprintf("%s/%s", s.publicURL, obj.Key),
		Kind:       obj.Kind,
		Format:     model.FormatFor(obj.ContentType),
		Bytes:      int64(len(obj.Data)),
		StorageKey: obj.Key,
	}
	if obj.Kind == model.MediaKindImage {
		if img, err := imaging.Decode(bytes.NewReader(obj.Data)); err == nil {
			b := img.Bounds()
			m.Width, m.Height = b.Dx(), b.Dy()
		} else {
			log.Printf("[R2Storage] Decode for dimensions failed: key=%s err=%v", obj.Key, err)
		}
	}
	return m, nil
}

// Delete removes an object by key.
func (s *R2Storage) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	_, err := s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete from r2: %w", err)
	}
	return nil
}
