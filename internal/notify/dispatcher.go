package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

const (
	// DefaultConcurrency caps requests in flight.
	DefaultConcurrency = 36
	// DefaultRequestTimeout covers connect, send and receive of one request.
	DefaultRequestTimeout = 79900 * time.Millisecond
	// ProgressEvery is how many submissions pass between "waiting..." markers.
	ProgressEvery = DefaultConcurrency + 1
)

// Options configures a Dispatcher.
type Options struct {
	URL         string
	IngestionID string
	Scheme      string
	Bucket      string

	// Concurrency bounds requests in flight. Zero starts every request at
	// once, with no cap.
	Concurrency    int
	RequestTimeout time.Duration

	// Client is shared by every request of the run. Nil builds one sized
	// for Concurrency.
	Client *http.Client

	// Observe, when set, is told about every state change of keys[index].
	// It runs on the goroutine that owns that key and must not block.
	Observe func(index int, state State)
	// Submitted, when set, runs once every key has been handed off and
	// Dispatch starts waiting for the remaining replies.
	Submitted func()
}

// Dispatcher issues one notification per object key.
type Dispatcher struct {
	opts   Options
	client *http.Client
	logger zerolog.Logger
}

// NewDispatcher creates a Dispatcher. A zero RequestTimeout falls back to
// DefaultRequestTimeout and a negative Concurrency to DefaultConcurrency.
func NewDispatcher(opts Options, logger zerolog.Logger) *Dispatcher {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if opts.Concurrency < 0 {
		opts.Concurrency = DefaultConcurrency
	}
	client := opts.Client
	if client == nil {
		client = NewHTTPClient(opts.Concurrency)
	}

	return &Dispatcher{
		opts:   opts,
		client: client,
		logger: logger,
	}
}

// NewHTTPClient returns a client whose pool keeps enough idle connections
// to serve concurrency requests to one host.
func NewHTTPClient(concurrency int) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if concurrency > 0 {
		transport.MaxIdleConnsPerHost = concurrency
		transport.MaxConnsPerHost = concurrency
	} else {
		transport.MaxIdleConnsPerHost = DefaultConcurrency
	}
	return &http.Client{Transport: transport}
}

// Dispatch sends one request per key and blocks until every request has
// succeeded or failed. outcomes[i] always belongs to keys[i]. Failures are
// recorded per key and never stop the remaining requests; once ctx is done,
// keys not yet started fail without a request being sent.
func (d *Dispatcher) Dispatch(ctx context.Context, keys []string) []Outcome {
	outcomes := make([]Outcome, len(keys))

	var sem *semaphore.Weighted
	if d.opts.Concurrency > 0 {
		sem = semaphore.NewWeighted(int64(d.opts.Concurrency))
	}

	var wg sync.WaitGroup
	for i, key := range keys {
		req := NewRequest(d.opts.URL, d.opts.IngestionID, d.opts.Scheme, d.opts.Bucket, key)

		if (i+1)%ProgressEvery == 0 {
			d.logger.Info().Int("submitted", i+1).Int("total", len(keys)).Msg("waiting...")
		}

		if sem != nil {
			if err := sem.Acquire(ctx, 1); err != nil {
				outcomes[i] = Outcome{Key: key, URI: req.Files[0], Err: fmt.Errorf("not sent: %w", err)}
				d.logFailure(outcomes[i])
				d.observe(i, StateFailed)
				continue
			}
		}

		wg.Add(1)
		go func(i int, req Request) {
			defer wg.Done()
			if sem != nil {
				defer sem.Release(1)
			}
			d.observe(i, StateInFlight)
			outcomes[i] = d.send(ctx, req)
			d.observe(i, outcomes[i].State())
		}(i, req)
	}

	if d.opts.Submitted != nil {
		d.opts.Submitted()
	}
	wg.Wait()
	return outcomes
}

func (d *Dispatcher) send(ctx context.Context, req Request) (outcome Outcome) {
	outcome = Outcome{Key: req.Key, URI: req.Files[0]}
	start := time.Now()
	defer func() {
		outcome.Duration = time.Since(start)
	}()

	if err := ctx.Err(); err != nil {
		outcome.Err = fmt.Errorf("not sent: %w", err)
		d.logFailure(outcome)
		return outcome
	}

	body, err := req.Body()
	if err != nil {
		outcome.Err = fmt.Errorf("encode notification: %w", err)
		d.logFailure(outcome)
		return outcome
	}

	d.logger.Info().Str("key", req.Key).RawJSON("data", body).Msg("Sending")

	reqCtx, cancel := context.WithTimeout(ctx, d.opts.RequestTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodPost, req.URL, bytes.NewReader(body))
	if err != nil {
		outcome.Err = fmt.Errorf("build request: %w", err)
		d.logFailure(outcome)
		return outcome
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(httpReq)
	if err != nil {
		outcome.Err = fmt.Errorf("post notification: %w", err)
		d.logFailure(outcome)
		return outcome
	}
	defer resp.Body.Close()

	outcome.StatusCode = resp.StatusCode
	reply, err := io.ReadAll(resp.Body)
	outcome.Body = string(reply)
	if err != nil {
		outcome.Err = fmt.Errorf("read reply: %w", err)
		d.logFailure(outcome)
		return outcome
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		outcome.Err = &StatusError{StatusCode: resp.StatusCode, Body: outcome.Body}
		d.logFailure(outcome)
		return outcome
	}

	d.logger.Info().Str("key", req.Key).Int("status", resp.StatusCode).Str("reply", outcome.Body).Msg("Got Reply")
	return outcome
}

func (d *Dispatcher) observe(i int, state State) {
	if d.opts.Observe != nil {
		d.opts.Observe(i, state)
	}
}

func (d *Dispatcher) logFailure(o Outcome) {
	d.logger.Error().
		Err(o.Err).
		Str("key", o.Key).
		Int("status", o.StatusCode).
		Str("reply", o.Body).
		Msg("notification failed")
}
