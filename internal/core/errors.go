package core

import (
	"errors"
	"fmt"
)

// Kind classifies a job-affecting error so callers can decide whether it
// promotes a job to failed, is absorbed silently, or is surfaced over HTTP.
type Kind string

const (
	KindConfigMissing          Kind = "config_missing"
	KindFileNotFound           Kind = "file_not_found"
	KindProbeFailure           Kind = "probe_failure"
	KindExtractionFailure      Kind = "extraction_failure"
	KindUploadTransient        Kind = "upload_transient"
	KindUploadFatal            Kind = "upload_fatal"
	KindRemoteCreateFailure    Kind = "remote_create_failure"
	KindRemoteJobFailed        Kind = "remote_job_failed"
	KindRemoteTimeout          Kind = "remote_timeout"
	KindCancelled              Kind = "cancelled"
	KindDeleteNotAllowed       Kind = "delete_not_allowed"
	KindNotifierFailure        Kind = "notifier_failure"
	KindIndexerRefreshFailure  Kind = "indexer_refresh_failure"
)

// JobError is a typed error carrying the Kind that governs how the
// orchestrator reacts to it. Wrap the underlying error so errors.Is/As
// keep working for callers that only care about the cause.
type JobError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *JobError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *JobError) Unwrap() error { return e.Err }

// NewJobError builds a *JobError, wrapping err if non-nil.
func NewJobError(kind Kind, message string, err error) *JobError {
	return &JobError{Kind: kind, Message: message, Err: err}
}

// IsKind reports whether err is a *JobError of the given Kind.
func IsKind(err error, kind Kind) bool {
	var je *JobError
	if errors.As(err, &je) {
		return je.Kind == kind
	}
	return false
}

// ErrCancelled is the sentinel typed-cancellation signal raised by the
// orchestrator when it observes a job's status has become Cancelled
// mid-pipeline. It is distinct from a generic failure: callers must check
// for it with errors.Is before treating a pipeline exit as a failure, so
// cleanup runs without falsely transitioning the job to failed.
var ErrCancelled = NewJobError(KindCancelled, "job was cancelled", nil)

// jobFatalKinds are the only kinds that promote a job to the failed state;
// everything else is absorbed locally and logged (see Propagation policy).
var jobFatalKinds = map[Kind]bool{
	KindFileNotFound:        true,
	KindExtractionFailure:   true,
	KindUploadTransient:     true,
	KindUploadFatal:         true,
	KindRemoteCreateFailure: true,
	KindRemoteJobFailed:     true,
	KindRemoteTimeout:       true,
}

// IsJobFatal reports whether err should promote a job to failed rather than
// being absorbed (logged) or treated as cancellation.
func IsJobFatal(err error) bool {
	var je *JobError
	if !errors.As(err, &je) {
		return err != nil
	}
	if je.Kind == KindCancelled {
		return false
	}
	return jobFatalKinds[je.Kind]
}
