// Package notify fans object keys out to an ingestion endpoint, one HTTP
// POST per key, with a bounded number of requests in flight.
package notify

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Request is the notification sent for a single object.
type Request struct {
	URL         string   `json:"-"`
	Key         string   `json:"-"`
	IngestionID string   `json:"ingestion_id"`
	Files       []string `json:"files"`
}

// StorageURI renders scheme://bucket/key.
func StorageURI(scheme, bucket, key string) string {
	return fmt.Sprintf("%s://%s/%s", scheme, bucket, key)
}

// NewRequest builds the notification for key. Files always holds exactly
// one storage URI.
func NewRequest(url, ingestionID, scheme, bucket, key string) Request {
	return Request{
		URL:         url,
		Key:         key,
		IngestionID: ingestionID,
		Files:       []string{StorageURI(scheme, bucket, key)},
	}
}

// Body encodes the request as JSON.
func (r Request) Body() ([]byte, error) {
	return json.Marshal(r)
}

// State is the lifecycle position of one notification:
// pending -> in_flight -> succeeded | failed.
type State string

const (
	StatePending   State = "pending"
	StateInFlight  State = "in_flight"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// Outcome is the terminal state of one Request.
type Outcome struct {
	Key        string
	URI        string
	StatusCode int
	Body       string
	Err        error
	Duration   time.Duration
}

// Succeeded reports whether the notification was accepted.
func (o Outcome) Succeeded() bool {
	return o.Err == nil
}

// State maps the outcome to its terminal State.
func (o Outcome) State() State {
	if o.Succeeded() {
		return StateSucceeded
	}
	return StateFailed
}

// StatusError is returned for replies outside the 2xx range.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// Summary aggregates the outcomes of a run.
type Summary struct {
	Count     int
	Succeeded int
	Failed    int
	Duration  time.Duration
}

// Summarize counts outcomes. elapsed is reported as-is.
func Summarize(outcomes []Outcome, elapsed time.Duration) Summary {
	s := Summary{Count: len(outcomes), Duration: elapsed}
	for _, o := range outcomes {
		if o.Succeeded() {
			s.Succeeded++
		} else {
			s.Failed++
		}
	}
	return s
}
