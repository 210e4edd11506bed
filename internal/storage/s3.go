package storage

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/andresuchdata/ingest-notifier/internal/config"
)

// s3API is the subset of the S3 client used by S3Lister.
type s3API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Lister lists bucket contents through the AWS SDK.
type S3Lister struct {
	client  s3API
	maxKeys int32
	logger  zerolog.Logger
}

// NewS3Lister wraps an existing S3 client. maxKeys <= 0 leaves the page
// size to the backend (1000 for AWS).
func NewS3Lister(client s3API, maxKeys int, logger zerolog.Logger) *S3Lister {
	return &S3Lister{
		client:  client,
		maxKeys: int32(maxKeys),
		logger:  logger,
	}
}

// NewS3ListerFromConfig resolves AWS credentials through the default chain
// (or static keys when provided) and builds an S3Lister.
func NewS3ListerFromConfig(ctx context.Context, cfg config.StorageConfig, logger zerolog.Logger) (*S3Lister, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "load aws config")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(normalizeEndpoint(cfg.Endpoint, cfg.UseSSL))
			o.UsePathStyle = true
		}
	})

	return NewS3Lister(client, cfg.MaxKeys, logger), nil
}

// ListObjects issues exactly one ListObjectsV2 call. No continuation token is
// sent, so a bucket holding more keys than one page only yields the first page.
func (l *S3Lister) ListObjects(ctx context.Context, bucket string) ([]ObjectInfo, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
	}
	if l.maxKeys > 0 {
		input.MaxKeys = aws.Int32(l.maxKeys)
	}

	out, err := l.client.ListObjectsV2(ctx, input)
	if err != nil {
		return nil, errors.Wrapf(err, "list objects in bucket %s", bucket)
	}

	// An empty bucket may come back without Contents at all.
	results := make([]ObjectInfo, 0, len(out.Contents))
	for _, obj := range out.Contents {
		if obj.Key == nil {
			continue
		}
		results = append(results, ObjectInfo{
			Key:  *obj.Key,
			Size: aws.ToInt64(obj.Size),
		})
	}

	if aws.ToBool(out.IsTruncated) {
		l.logger.Warn().
			Str("bucket", bucket).
			Int("listed", len(results)).
			Msg("listing truncated; only the first page is notified")
	}

	return results, nil
}

var _ ObjectStorage = (*S3Lister)(nil)
