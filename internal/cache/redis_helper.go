package cache

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/andresuchdata/ingest-notifier/internal/config"
)

const (
	defaultSummaryTTL = 24 * time.Hour
	pingTimeout       = 5 * time.Second
)

// dialSummaryStore opens the Redis client that holds run summaries. The
// client is only returned once it answers a ping.
func dialSummaryStore(ctx context.Context, cfg config.CacheConfig) (*redis.Client, error) {
	opts, err := buildRedisOptions(cfg)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping summary store at %s: %w", opts.Addr, err)
	}
	return client, nil
}

// summaryTTL is how long a bucket's latest summary survives without a new run.
func summaryTTL(cfg config.CacheConfig) time.Duration {
	if cfg.TTLSeconds <= 0 {
		return defaultSummaryTTL
	}
	return time.Duration(cfg.TTLSeconds) * time.Second
}

// buildRedisOptions prefers REDIS_URL and falls back to host and port.
func buildRedisOptions(cfg config.CacheConfig) (*redis.Options, error) {
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		return opts, nil
	}

	host, port := cfg.RedisHost, cfg.RedisPort
	if host == "" {
		host = "127.0.0.1"
	}
	if port == "" {
		port = "6379"
	}

	return &redis.Options{
		Addr:     net.JoinHostPort(host, port),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, nil
}
