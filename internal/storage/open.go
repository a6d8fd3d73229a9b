package storage

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"retouch/internal/infra"
)

// Open picks Cloudinary, then S3, then the local directory as the upload
// target. The local store stays registered for deletes either way.
func Open(ctx context.Context, cfg *infra.Config, logger infra.Logger) (*Multi, error) {
	local, err := NewFileStore(cfg.UploadDir, cfg.PublicBaseURL)
	if err != nil {
		return nil, err
	}
	var others []Store

	if cfg.S3Bucket != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		client := s3.NewFromConfig(awsCfg)
		others = append(others, NewS3Store(client, s3.NewPresignClient(client), S3Options{
			Bucket:     cfg.S3Bucket,
			Region:     awsCfg.Region,
			Prefix:     cfg.S3Prefix,
			PresignTTL: cfg.S3PresignTTL,
		}))
	}

	var m *Multi
	switch {
	case cfg.CloudinaryURL != "":
		cld, err := NewCloudinaryStore(cfg.CloudinaryURL, cfg.CloudinaryFolder)
		if err != nil {
			return nil, err
		}
		m = NewMulti(cld, append(others, local)...)
	case len(others) > 0:
		m = NewMulti(others[0], append(others[1:], local)...)
	default:
		m = NewMulti(local)
	}
	logger.Info().Str("phase", "storage.selected").Str("store", m.Name()).Msg("storage ready")
	return m, nil
}
