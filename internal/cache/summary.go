// Package cache keeps the latest run summary per bucket in Redis so other
// tools can see when a bucket was last announced without querying logs.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/andresuchdata/ingest-notifier/internal/config"
	"github.com/andresuchdata/ingest-notifier/internal/pipeline"
)

const summaryKeyPrefix = "notifier:summary"

// RunSummary is the cached view of one finished run.
type RunSummary struct {
	Bucket      string    `json:"bucket"`
	URL         string    `json:"url"`
	IngestionID string    `json:"ingestion_id"`
	Status      string    `json:"status"`
	Count       int       `json:"count"`
	Succeeded   int       `json:"succeeded"`
	Failed      int       `json:"failed"`
	DurationMS  int64     `json:"duration_ms"`
	CompletedAt time.Time `json:"completed_at"`
	Error       string    `json:"error,omitempty"`
}

type SummaryCache interface {
	GetLatest(ctx context.Context, bucket string) (*RunSummary, bool, error)
	SetLatest(ctx context.Context, summary *RunSummary) error
	Close() error
}

type redisSummaryCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopSummaryCache struct{}

// NewSummaryCache connects to Redis when caching is enabled and returns a
// no-op cache otherwise.
func NewSummaryCache(ctx context.Context, cfg config.CacheConfig) (SummaryCache, error) {
	if !cfg.Enabled {
		return &noopSummaryCache{}, nil
	}

	client, err := dialSummaryStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return &redisSummaryCache{client: client, ttl: summaryTTL(cfg)}, nil
}

func NewNoopSummaryCache() SummaryCache {
	return &noopSummaryCache{}
}

func (c *redisSummaryCache) GetLatest(ctx context.Context, bucket string) (*RunSummary, bool, error) {
	payload, err := c.client.Get(ctx, summaryKey(bucket)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var summary RunSummary
	if err := json.Unmarshal(payload, &summary); err != nil {
		return nil, false, fmt.Errorf("decode run summary cache: %w", err)
	}

	return &summary, true, nil
}

func (c *redisSummaryCache) SetLatest(ctx context.Context, summary *RunSummary) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encode run summary cache: %w", err)
	}

	if err := c.client.Set(ctx, summaryKey(summary.Bucket), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}

	return nil
}

func (c *redisSummaryCache) Close() error {
	return c.client.Close()
}

func (n *noopSummaryCache) GetLatest(ctx context.Context, bucket string) (*RunSummary, bool, error) {
	return nil, false, nil
}

func (n *noopSummaryCache) SetLatest(ctx context.Context, summary *RunSummary) error {
	return nil
}

func (n *noopSummaryCache) Close() error {
	return nil
}

func summaryKey(bucket string) string {
	return fmt.Sprintf("%s:%s", summaryKeyPrefix, bucket)
}

// Reporter stores each finished run as the bucket's latest summary.
type Reporter struct {
	cache SummaryCache
}

func NewReporter(cache SummaryCache) *Reporter {
	return &Reporter{cache: cache}
}

func (r *Reporter) Report(ctx context.Context, run *pipeline.Run) error {
	summary := &RunSummary{
		Bucket:      run.Bucket,
		URL:         run.URL,
		IngestionID: run.IngestionID,
		Status:      string(run.Status),
		Count:       run.TotalKeys,
		Succeeded:   run.Succeeded,
		Failed:      run.Failed,
		DurationMS:  run.Duration.Milliseconds(),
		Error:       run.ErrorMessage,
	}
	if run.CompletedAt != nil {
		summary.CompletedAt = run.CompletedAt.UTC()
	}
	return r.cache.SetLatest(ctx, summary)
}

var _ pipeline.Reporter = (*Reporter)(nil)
