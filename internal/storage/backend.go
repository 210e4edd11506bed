package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/andresuchdata/ingest-notifier/internal/config"
)

// New builds the ObjectStorage selected by cfg.Backend.
func New(ctx context.Context, cfg config.StorageConfig, logger zerolog.Logger) (ObjectStorage, error) {
	switch cfg.Backend {
	case "", "s3":
		return NewS3ListerFromConfig(ctx, cfg, logger)
	case "minio":
		return NewMinioLister(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
}

func normalizeEndpoint(endpoint string, useSSL bool) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	scheme := "https"
	if !useSSL {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s", scheme, strings.TrimPrefix(endpoint, "//"))
}
