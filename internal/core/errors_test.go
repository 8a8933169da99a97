package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJobError_ErrorString(t *testing.T) {
	wrapped := NewJobError(KindUploadFatal, "upload audio", errors.New("connection reset"))
	assert.Equal(t, "upload_fatal: upload audio: connection reset", wrapped.Error())

	bare := NewJobError(KindProbeFailure, "ffprobe missing", nil)
	assert.Equal(t, "probe_failure: ffprobe missing", bare.Error())
}

func TestJobError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	wrapped := NewJobError(KindRemoteCreateFailure, "create failed", cause)
	assert.ErrorIs(t, wrapped, cause)
}

func TestIsKind(t *testing.T) {
	err := NewJobError(KindRemoteTimeout, "timed out", nil)
	assert.True(t, IsKind(err, KindRemoteTimeout))
	assert.False(t, IsKind(err, KindUploadFatal))
	assert.False(t, IsKind(errors.New("plain error"), KindRemoteTimeout))
}

func TestIsJobFatal(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"plain non-JobError is treated as fatal", errors.New("boom"), true},
		{"cancelled is never fatal", ErrCancelled, false},
		{"extraction failure is fatal", NewJobError(KindExtractionFailure, "x", nil), true},
		{"probe failure is absorbed, not fatal", NewJobError(KindProbeFailure, "x", nil), false},
		{"notifier failure is absorbed, not fatal", NewJobError(KindNotifierFailure, "x", nil), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsJobFatal(tt.err))
		})
	}
}

func TestErrCancelled_IdentityCheck(t *testing.T) {
	// handleCancellation and batch fan-out both rely on errors.Is matching
	// the exact sentinel instance.
	assert.True(t, errors.Is(ErrCancelled, ErrCancelled))
}
