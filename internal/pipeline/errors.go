package pipeline

import (
	"errors"
	"fmt"
)

// Process exit codes, one per failure class.
const (
	ExitOK             = 0
	ExitUnknown        = 1
	ExitConfigError    = 2
	ExitListingError   = 3
	ExitDispatchFailed = 4
)

// ConfigError means the run could not start because its configuration is
// incomplete or invalid. Nothing was listed or sent.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string { return "configuration error: " + e.Err.Error() }
func (e *ConfigError) Unwrap() error { return e.Err }

// ListingError means the bucket could not be listed. Nothing was sent.
type ListingError struct {
	Bucket string
	Err    error
}

func (e *ListingError) Error() string {
	return fmt.Sprintf("listing bucket %s: %v", e.Bucket, e.Err)
}
func (e *ListingError) Unwrap() error { return e.Err }

// DispatchError reports that some notifications failed. Every key still
// reached a terminal state.
type DispatchError struct {
	Failed int
	Total  int
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("%d of %d notifications failed", e.Failed, e.Total)
}

// ExitCode maps an error returned by Orchestrator.Run to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var (
		cfgErr      *ConfigError
		listErr     *ListingError
		dispatchErr *DispatchError
	)
	switch {
	case errors.As(err, &cfgErr):
		return ExitConfigError
	case errors.As(err, &listErr):
		return ExitListingError
	case errors.As(err, &dispatchErr):
		return ExitDispatchFailed
	default:
		return ExitUnknown
	}
}
