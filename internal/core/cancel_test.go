package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRemoteClient is a minimal RemoteClient stand-in for orchestrator-level
// tests that never need to touch the real cloud service.
type fakeRemoteClient struct {
	deleteBlobOK    bool
	deleteBlobCalls []string
	deleteTxErr     error
	deleteTxCalls   []string

	uploadErr        error
	createTxErr      error
	waitResult       TranscriptionResult
	waitErr          error
	lastCreateLocale string
}

func (f *fakeRemoteClient) UploadAudio(ctx context.Context, path string) (string, string, error) {
	if f.uploadErr != nil {
		return "", "", f.uploadErr
	}
	return "https://example.invalid/blob", "blob-name", nil
}

func (f *fakeRemoteClient) DeleteBlob(ctx context.Context, blobName string) bool {
	f.deleteBlobCalls = append(f.deleteBlobCalls, blobName)
	return f.deleteBlobOK
}

func (f *fakeRemoteClient) CreateTranscription(ctx context.Context, contentURL, locale, displayName string, wordTimestamps, diarization bool, candidateLocales []string) (*RemoteJobHandle, error) {
	f.lastCreateLocale = locale
	if f.createTxErr != nil {
		return nil, f.createTxErr
	}
	return &RemoteJobHandle{RemoteJobID: "remote-job", Locale: locale}, nil
}

func (f *fakeRemoteClient) DeleteTranscription(ctx context.Context, remoteJobID string) error {
	f.deleteTxCalls = append(f.deleteTxCalls, remoteJobID)
	return f.deleteTxErr
}

func (f *fakeRemoteClient) WaitForCompletion(ctx context.Context, remoteJobID, declaredLocale string, pollInterval, timeout time.Duration, isCancelled func() bool) (TranscriptionResult, error) {
	if f.waitErr != nil {
		return TranscriptionResult{}, f.waitErr
	}
	return f.waitResult, nil
}

func newTestOrchestrator(remote RemoteClient) (*Orchestrator, *Store) {
	store := NewStore(nil, nil)
	gate := NewGate(10)
	return NewOrchestrator(nil, store, gate, nil, nil, remote, nil, OrchestratorConfig{}), store
}

func TestCancelSession_UnknownSession(t *testing.T) {
	orch, _ := newTestOrchestrator(&fakeRemoteClient{})
	result := orch.CancelSession(context.Background(), "does-not-exist")
	assert.Equal(t, 0, result.Cancelled)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "session not found")
}

func TestCancelSession_CancelsInFlightJobsOnly(t *testing.T) {
	fake := &fakeRemoteClient{deleteBlobOK: true}
	orch, store := newTestOrchestrator(fake)

	sess := store.CreateSession(SourceAPI, false)
	inFlight := store.AddJob(sess.SessionID, "/a.mkv", "en", SourceAPI)
	store.UpdateJobStatus(sess.SessionID, inFlight.JobID, StatusUploading, JobFields{})

	alreadyDone := store.AddJob(sess.SessionID, "/b.mkv", "en", SourceAPI)
	store.UpdateJobStatus(sess.SessionID, alreadyDone.JobID, StatusCompleted, JobFields{})

	result := orch.CancelSession(context.Background(), sess.SessionID)

	assert.Equal(t, 1, result.Cancelled)
	assert.Empty(t, result.Errors)

	gotInFlight, _ := store.GetJob(sess.SessionID, inFlight.JobID)
	assert.Equal(t, StatusCancelled, gotInFlight.Status)

	gotDone, _ := store.GetJob(sess.SessionID, alreadyDone.JobID)
	assert.Equal(t, StatusCompleted, gotDone.Status, "a job already in a terminal state must not be touched")
}

func TestCancelSession_BestEffortBlobAndRemoteJobCleanup(t *testing.T) {
	fake := &fakeRemoteClient{deleteBlobOK: false, deleteTxErr: errors.New("remote still running")}
	orch, store := newTestOrchestrator(fake)

	sess := store.CreateSession(SourceAPI, false)
	job := store.AddJob(sess.SessionID, "/a.mkv", "en", SourceAPI)
	remoteJobID := "remote-job-1"
	blobName := "blob-1"
	store.UpdateJobStatus(sess.SessionID, job.JobID, StatusTranscribing, JobFields{
		RemoteJobID:    &remoteJobID,
		RemoteBlobName: &blobName,
	})

	result := orch.CancelSession(context.Background(), sess.SessionID)

	assert.Equal(t, 1, result.Cancelled)
	assert.Equal(t, 0, result.CleanedBlobs, "blob delete failure must not count as cleaned")
	require.Len(t, result.Errors, 2)
	assert.Equal(t, []string{blobName}, fake.deleteBlobCalls)
	assert.Equal(t, []string{remoteJobID}, fake.deleteTxCalls)
}
