package pipeline

import (
	"time"

	"github.com/andresuchdata/ingest-notifier/internal/notify"
)

// RunStatus is the phase a notification run is in.
type RunStatus string

const (
	StatusListing            RunStatus = "listing"
	StatusDispatching        RunStatus = "dispatching"
	StatusAwaitingCompletion RunStatus = "awaiting_completion"
	StatusDone               RunStatus = "done"
	StatusFailed             RunStatus = "failed"
)

// Run tracks a single execution of the notifier against one bucket.
type Run struct {
	ID           int64
	Bucket       string
	URL          string
	IngestionID  string
	Status       RunStatus
	TotalKeys    int
	Succeeded    int
	Failed       int
	StartedAt    time.Time
	CompletedAt  *time.Time
	Duration     time.Duration
	ErrorMessage string
	Jobs         []KeyJob
}

// KeyJob tracks the notification of a single object key.
type KeyJob struct {
	ID           int64
	RunID        int64
	Key          string
	URI          string
	Status       notify.State
	StatusCode   int
	ErrorMessage string
	Duration     time.Duration
}

// Summary returns the aggregate view of the run.
func (r *Run) Summary() notify.Summary {
	return notify.Summary{
		Count:     r.TotalKeys,
		Succeeded: r.Succeeded,
		Failed:    r.Failed,
		Duration:  r.Duration,
	}
}

func newJobs(keys []string, scheme, bucket string) []KeyJob {
	jobs := make([]KeyJob, len(keys))
	for i, key := range keys {
		jobs[i] = KeyJob{
			Key:    key,
			URI:    notify.StorageURI(scheme, bucket, key),
			Status: notify.StatePending,
		}
	}
	return jobs
}

func (r *Run) complete(outcomes []notify.Outcome, summary notify.Summary, at time.Time) {
	for i, o := range outcomes {
		job := &r.Jobs[i]
		job.Status = o.State()
		job.StatusCode = o.StatusCode
		job.Duration = o.Duration
		if o.Err != nil {
			job.ErrorMessage = o.Err.Error()
		}
	}

	r.TotalKeys = summary.Count
	r.Succeeded = summary.Succeeded
	r.Failed = summary.Failed
	r.Duration = summary.Duration
	r.Status = StatusDone
	r.CompletedAt = &at
}

func (r *Run) fail(err error, at time.Time) {
	r.Status = StatusFailed
	r.ErrorMessage = err.Error()
	r.Duration = at.Sub(r.StartedAt)
	r.CompletedAt = &at
}
