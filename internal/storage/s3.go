package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"retouch/internal/domain"
)

const (
	S3Name   = "s3"
	s3Prefix = "s3:"
)

type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type S3Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

type S3Options struct {
	Bucket string
	Region string
	Prefix string
	// PresignTTL switches URLs from public object URLs to presigned GETs.
	PresignTTL time.Duration
}

type S3Store struct {
	client    S3API
	presigner S3Presigner
	opts      S3Options
}

// NewS3Store wraps an S3 client. presigner may be nil when PresignTTL is zero.
func NewS3Store(client S3API, presigner S3Presigner, opts S3Options) *S3Store {
	return &S3Store{client: client, presigner: presigner, opts: opts}
}

func (s *S3Store) Name() string { return S3Name }

func (s *S3Store) Upload(ctx context.Context, data []byte, opts UploadOptions) (domain.StoredImage, error) {
	contentType := opts.ContentType
	if contentType == "" {
		contentType = "image/jpeg"
	}
	key := path.Join(s.opts.Prefix, SanitizeName(opts.Folder), withExtension(SanitizeName(opts.Name), contentType))
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.opts.Bucket,
		Key:         &key,
		Body:        bytes.NewReader(data),
		ContentType: &contentType,
	})
	if err != nil {
		return domain.StoredImage{}, fmt.Errorf("storage: s3 put %s: %w", key, err)
	}
	url, err := s.objectURL(ctx, key)
	if err != nil {
		return domain.StoredImage{}, err
	}
	return domain.StoredImage{URL: url, PublicID: s3Prefix + key}, nil
}

func (s *S3Store) objectURL(ctx context.Context, key string) (string, error) {
	if s.opts.PresignTTL > 0 && s.presigner != nil {
		res, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
			Bucket: &s.opts.Bucket, Key: &key,
		}, func(o *s3.PresignOptions) {
			o.Expires = s.opts.PresignTTL
		})
		if err != nil {
			return "", fmt.Errorf("storage: presign %s: %w", key, err)
		}
		return res.URL, nil
	}
	region := s.opts.Region
	if region == "" {
		region = "us-east-1"
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.opts.Bucket, region, key), nil
}

func (s *S3Store) Delete(ctx context.Context, publicID string) error {
	key := strings.TrimPrefix(publicID, s3Prefix)
	if key == "" {
		return fmt.Errorf("storage: s3 key is required")
	}
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: &s.opts.Bucket, Key: &key}); err != nil {
		return fmt.Errorf("storage: s3 delete %s: %w", key, err)
	}
	return nil
}
