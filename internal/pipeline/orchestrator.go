package pipeline

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/andresuchdata/ingest-notifier/internal/config"
	"github.com/andresuchdata/ingest-notifier/internal/notify"
	"github.com/andresuchdata/ingest-notifier/internal/storage"
)

// ListerFactory builds the storage lister once configuration is known to be valid.
type ListerFactory func(ctx context.Context, cfg config.StorageConfig, logger zerolog.Logger) (storage.ObjectStorage, error)

// Reporter receives every finished run, successful or not.
type Reporter interface {
	Report(ctx context.Context, run *Run) error
}

// Orchestrator lists a bucket and notifies the ingestion endpoint about
// every key it finds.
type Orchestrator struct {
	cfg       *config.Config
	newLister ListerFactory
	client    *http.Client
	reporters []Reporter
	logger    zerolog.Logger
	startedAt time.Time
	now       func() time.Time
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithHTTPClient shares client across all notifications of the run.
func WithHTTPClient(client *http.Client) Option {
	return func(o *Orchestrator) { o.client = client }
}

// WithReporters adds run reporters.
func WithReporters(reporters ...Reporter) Option {
	return func(o *Orchestrator) { o.reporters = append(o.reporters, reporters...) }
}

// WithStartTime sets the instant the reported duration is measured from,
// normally process start.
func WithStartTime(t time.Time) Option {
	return func(o *Orchestrator) { o.startedAt = t }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// NewOrchestrator creates a new Orchestrator.
func NewOrchestrator(cfg *config.Config, newLister ListerFactory, logger zerolog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:       cfg,
		newLister: newLister,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.startedAt.IsZero() {
		o.startedAt = o.now()
	}
	return o
}

// Run executes listing -> dispatching -> awaiting completion -> done.
// Configuration and listing failures abort before any notification is sent.
// Per-key failures never abort the batch; they surface as a DispatchError
// once every key has reached a terminal state.
func (o *Orchestrator) Run(ctx context.Context) (*Run, error) {
	if err := o.cfg.Validate(); err != nil {
		return nil, &ConfigError{Err: err}
	}

	notifyCfg := o.cfg.Notify
	storageCfg := o.cfg.Storage

	o.logger.Info().Str("url", notifyCfg.URL).Msg("URL")
	o.logger.Info().Str("bucket", storageCfg.Bucket).Msg("BUCKET")

	if notifyCfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, notifyCfg.RunTimeout)
		defer cancel()
	}

	lister, err := o.newLister(ctx, storageCfg, o.logger)
	if err != nil {
		return nil, &ConfigError{Err: err}
	}

	run := &Run{
		Bucket:      storageCfg.Bucket,
		URL:         notifyCfg.URL,
		IngestionID: notifyCfg.IngestionID,
		Status:      StatusListing,
		StartedAt:   o.startedAt,
	}

	objects, err := lister.ListObjects(ctx, storageCfg.Bucket)
	if err != nil {
		listErr := &ListingError{Bucket: storageCfg.Bucket, Err: err}
		run.fail(listErr, o.now())
		o.report(ctx, run)
		return run, listErr
	}

	keys := storage.Keys(objects)
	for _, key := range keys {
		o.logger.Info().Str("key", key).Msg("listed")
	}

	run.Status = StatusDispatching
	run.Jobs = newJobs(keys, storageCfg.Scheme, storageCfg.Bucket)

	dispatcher := notify.NewDispatcher(notify.Options{
		URL:            notifyCfg.URL,
		IngestionID:    notifyCfg.IngestionID,
		Scheme:         storageCfg.Scheme,
		Bucket:         storageCfg.Bucket,
		Concurrency:    notifyCfg.Concurrency,
		RequestTimeout: notifyCfg.RequestTimeout,
		Client:         o.client,
		Observe: func(index int, state notify.State) {
			run.Jobs[index].Status = state
		},
		Submitted: func() {
			run.Status = StatusAwaitingCompletion
		},
	}, o.logger)

	outcomes := dispatcher.Dispatch(ctx, keys)

	finished := o.now()
	summary := notify.Summarize(outcomes, finished.Sub(o.startedAt))
	run.complete(outcomes, summary, finished)

	o.logger.Info().
		Int("count", summary.Count).
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Dur("took", summary.Duration).
		Msgf("Took %s", summary.Duration)
	o.logger.Info().Msg("Completed!")

	o.report(ctx, run)

	if summary.Failed > 0 {
		return run, &DispatchError{Failed: summary.Failed, Total: summary.Count}
	}
	return run, nil
}

func (o *Orchestrator) report(ctx context.Context, run *Run) {
	// The run deadline may already have passed; reporting still gets a chance.
	ctx = context.WithoutCancel(ctx)
	for _, r := range o.reporters {
		if err := r.Report(ctx, run); err != nil {
			o.logger.Warn().Err(err).Str("bucket", run.Bucket).Msg("failed to report run")
		}
	}
}
