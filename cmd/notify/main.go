package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/ingest-notifier/internal/cache"
	"github.com/andresuchdata/ingest-notifier/internal/config"
	"github.com/andresuchdata/ingest-notifier/internal/pipeline"
	"github.com/andresuchdata/ingest-notifier/internal/repository/postgres"
	"github.com/andresuchdata/ingest-notifier/internal/storage"
	"github.com/andresuchdata/ingest-notifier/pkg/logger"
)

// processStart is the reference point for the reported duration.
var processStart = time.Now()

// flagOverrides maps command line flags to the configuration keys they replace.
var flagOverrides = map[string]string{
	"url":                "URL",
	"bucket":             "BUCKET",
	"ingestion-id":       "INGESTION_ID",
	"concurrency":        "NOTIFY_CONCURRENCY",
	"request-timeout-ms": "NOTIFY_REQUEST_TIMEOUT_MS",
	"run-timeout":        "NOTIFY_RUN_TIMEOUT_SECONDS",
	"backend":            "STORAGE_BACKEND",
	"log-level":          "LOG_LEVEL",
	"log-format":         "LOG_FORMAT",
	"db-url":             "DATABASE_URL",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	app := newApp()
	if err := app.Run(os.Args); err != nil {
		logger.Log.Error().Err(err).Msg("notifier failed")
		os.Exit(pipeline.ExitCode(err))
	}
}

func newApp() *cli.App {
	var cfg *config.Config

	return &cli.App{
		Name:  "notify",
		Usage: "Notify the ingestion endpoint about every object in a bucket",
		Flags: notifyFlags(),
		Before: func(c *cli.Context) error {
			cfg = loadConfig(c)
			logger.Configure(cfg.Log.Format, cfg.Log.Level)
			return nil
		},
		Action: func(c *cli.Context) error {
			return runNotify(c.Context, cfg)
		},
		Commands: []*cli.Command{
			{
				Name:  "history",
				Usage: "Show recent runs from the audit trail",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Usage: "Number of runs to show", Value: 20},
				},
				Action: func(c *cli.Context) error {
					return showHistory(c.Context, cfg, c.Int("limit"))
				},
			},
			{
				Name:  "latest",
				Usage: "Show the cached summary of the latest run for the bucket",
				Action: func(c *cli.Context) error {
					return showLatest(c.Context, cfg)
				},
			},
		},
	}
}

func notifyFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "url", Usage: "Ingestion endpoint receiving one POST per object"},
		&cli.StringFlag{Name: "bucket", Usage: "Bucket to list"},
		&cli.StringFlag{Name: "ingestion-id", Usage: "Value sent as ingestion_id"},
		&cli.IntFlag{Name: "concurrency", Usage: "Requests in flight; 0 sends all at once"},
		&cli.IntFlag{Name: "request-timeout-ms", Usage: "Per-request timeout in milliseconds"},
		&cli.IntFlag{Name: "run-timeout", Usage: "Whole-run deadline in seconds; 0 disables it"},
		&cli.StringFlag{Name: "backend", Usage: "Listing backend: s3 or minio"},
		&cli.StringFlag{Name: "log-level", Usage: "Log level"},
		&cli.StringFlag{Name: "log-format", Usage: "Log format: console or json"},
		&cli.StringFlag{Name: "db-url", Usage: "Postgres connection string for the run audit trail"},
	}
}

// loadConfig reads environment and defaults, then applies explicit flags.
func loadConfig(c *cli.Context) *config.Config {
	v := config.NewViper()
	applyFlags(c, v)
	return config.FromViper(v)
}

// applyFlags lets explicitly set flags win over environment and defaults.
func applyFlags(c *cli.Context, v *viper.Viper) {
	for flag, key := range flagOverrides {
		if c.IsSet(flag) {
			v.Set(key, c.Value(flag))
		}
	}
}

func runNotify(ctx context.Context, cfg *config.Config) error {
	// Nothing is dialed until the required settings are known to be present.
	if err := cfg.Validate(); err != nil {
		return &pipeline.ConfigError{Err: err}
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	reporters, closeReporters := buildReporters(ctx, cfg)
	defer closeReporters()

	orchestrator := pipeline.NewOrchestrator(
		cfg,
		storage.New,
		logger.Log,
		pipeline.WithStartTime(processStart),
		pipeline.WithReporters(reporters...),
	)

	_, err := orchestrator.Run(ctx)
	return err
}

// buildReporters wires the optional audit trail and summary cache. Neither
// is required for a run, so failures to reach them are logged and skipped.
func buildReporters(ctx context.Context, cfg *config.Config) ([]pipeline.Reporter, func()) {
	var (
		reporters []pipeline.Reporter
		closers   []func() error
	)

	if cfg.Audit.DatabaseURL != "" {
		db, err := postgres.NewDB(ctx, cfg.Audit.DatabaseURL)
		if err != nil {
			logger.Log.Warn().Err(err).Msg("audit trail disabled")
		} else {
			repo := pipeline.NewRepository(db)
			if err := repo.EnsureSchema(ctx); err != nil {
				logger.Log.Warn().Err(err).Msg("audit trail disabled")
				_ = db.Close()
			} else {
				reporters = append(reporters, repo)
				closers = append(closers, db.Close)
			}
		}
	}

	if cfg.Cache.Enabled {
		summaries, err := cache.NewSummaryCache(ctx, cfg.Cache)
		if err != nil {
			logger.Log.Warn().Err(err).Msg("summary cache disabled")
		} else {
			reporters = append(reporters, cache.NewReporter(summaries))
			closers = append(closers, summaries.Close)
		}
	}

	return reporters, func() {
		for _, closeFn := range closers {
			if err := closeFn(); err != nil {
				logger.Log.Warn().Err(err).Msg("failed to close reporter")
			}
		}
	}
}

func showHistory(ctx context.Context, cfg *config.Config, limit int) error {
	if cfg.Audit.DatabaseURL == "" {
		return &pipeline.ConfigError{Err: &config.MissingError{Keys: []string{"DATABASE_URL"}}}
	}

	db, err := postgres.NewDB(ctx, cfg.Audit.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := pipeline.NewRepository(db).ListRecentRuns(ctx, limit)
	if err != nil {
		return err
	}

	for _, run := range runs {
		fmt.Printf("%d\t%s\t%s\t%d/%d ok\t%s\t%s\n",
			run.ID,
			run.StartedAt.Format(time.RFC3339),
			run.Bucket,
			run.Succeeded,
			run.TotalKeys,
			time.Duration(run.DurationMS)*time.Millisecond,
			run.Status,
		)
	}
	return nil
}

func showLatest(ctx context.Context, cfg *config.Config) error {
	if cfg.Storage.Bucket == "" {
		return &pipeline.ConfigError{Err: &config.MissingError{Keys: []string{"BUCKET"}}}
	}

	summaries, err := cache.NewSummaryCache(ctx, cfg.Cache)
	if err != nil {
		return err
	}
	defer summaries.Close()

	summary, ok, err := summaries.GetLatest(ctx, cfg.Storage.Bucket)
	if err != nil {
		return err
	}
	if !ok {
		logger.Log.Info().Str("bucket", cfg.Storage.Bucket).Msg("no cached run")
		return nil
	}

	logger.Log.Info().
		Str("bucket", summary.Bucket).
		Str("status", summary.Status).
		Int("count", summary.Count).
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Msg("latest run")
	return nil
}
