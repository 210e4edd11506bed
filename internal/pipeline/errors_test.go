package pipeline

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: ExitOK},
		{name: "config", err: &ConfigError{Err: errors.New("missing URL")}, want: ExitConfigError},
		{name: "listing", err: &ListingError{Bucket: "b", Err: errors.New("denied")}, want: ExitListingError},
		{name: "dispatch", err: &DispatchError{Failed: 1, Total: 2}, want: ExitDispatchFailed},
		{name: "wrapped listing", err: fmt.Errorf("run: %w", &ListingError{Bucket: "b", Err: errors.New("x")}), want: ExitListingError},
		{name: "other", err: errors.New("boom"), want: ExitUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "configuration error: missing URL", (&ConfigError{Err: errors.New("missing URL")}).Error())
	assert.Equal(t, "listing bucket data-bucket: denied", (&ListingError{Bucket: "data-bucket", Err: errors.New("denied")}).Error())
	assert.Equal(t, "1 of 2 notifications failed", (&DispatchError{Failed: 1, Total: 2}).Error())
}
