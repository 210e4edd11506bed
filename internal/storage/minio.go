package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/andresuchdata/ingest-notifier/internal/config"
)

// minioAPI is the single-page listing call of minio.Core.
type minioAPI interface {
	ListObjectsV2(bucketName, objectPrefix, startAfter, continuationToken, delimiter string, maxkeys int) (minio.ListBucketV2Result, error)
}

// MinioLister implements ObjectStorage for S3-compatible services
// (MinIO, Sevalla, R2, ...) reachable through a custom endpoint.
type MinioLister struct {
	core    minioAPI
	maxKeys int
	logger  zerolog.Logger
}

// NewMinioLister builds a MinioLister from storage configuration.
func NewMinioLister(cfg config.StorageConfig, logger zerolog.Logger) (*MinioLister, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint must be provided")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("minio credentials must be provided")
	}

	endpoint := cfg.Endpoint
	secure := cfg.UseSSL
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		endpoint = strings.TrimPrefix(endpoint, "https://")
		secure = true
	case strings.HasPrefix(endpoint, "http://"):
		endpoint = strings.TrimPrefix(endpoint, "http://")
		secure = false
	}
	endpoint = strings.TrimSuffix(strings.TrimPrefix(endpoint, "//"), "/")

	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	core, err := minio.NewCore(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
		Region: region,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create minio client")
	}

	return &MinioLister{
		core:    core,
		maxKeys: cfg.MaxKeys,
		logger:  logger,
	}, nil
}

// ListObjects issues one ListObjectsV2 request and returns its page.
func (l *MinioLister) ListObjects(ctx context.Context, bucket string) ([]ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	page, err := l.core.ListObjectsV2(bucket, "", "", "", "", l.maxKeys)
	if err != nil {
		return nil, errors.Wrapf(err, "list objects in bucket %s", bucket)
	}

	results := make([]ObjectInfo, 0, len(page.Contents))
	for _, obj := range page.Contents {
		if obj.Key == "" {
			continue
		}
		results = append(results, ObjectInfo{
			Key:  obj.Key,
			Size: obj.Size,
		})
	}

	if page.IsTruncated {
		l.logger.Warn().
			Str("bucket", bucket).
			Int("listed", len(results)).
			Msg("listing truncated; only the first page is notified")
	}

	return results, nil
}

var _ ObjectStorage = (*MinioLister)(nil)
