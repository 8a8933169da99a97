package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_CreateSessionAndAddJob(t *testing.T) {
	store := NewStore(nil, nil)
	sess := store.CreateSession(SourceAPI, true)
	require.NotEmpty(t, sess.SessionID)

	job := store.AddJob(sess.SessionID, "/movies/a.mkv", "en", SourceAPI)
	require.NotNil(t, job)
	assert.Equal(t, StatusPending, job.Status)

	got, ok := store.GetSession(sess.SessionID)
	require.True(t, ok)
	assert.Len(t, got.OrderedJobs(), 1)
	assert.Equal(t, job.JobID, got.OrderedJobs()[0].JobID)
}

func TestStore_AddJob_UnknownSessionReturnsNil(t *testing.T) {
	store := NewStore(nil, nil)
	assert.Nil(t, store.AddJob("does-not-exist", "/a.mkv", "en", SourceAPI))
}

func TestStore_OrderedJobs_PreservesInsertionOrder(t *testing.T) {
	store := NewStore(nil, nil)
	sess := store.CreateSession(SourceAPI, false)
	paths := []string{"/a.mkv", "/b.mkv", "/c.mkv"}
	for _, p := range paths {
		store.AddJob(sess.SessionID, p, "en", SourceAPI)
	}
	got, _ := store.GetSession(sess.SessionID)
	ordered := got.OrderedJobs()
	require.Len(t, ordered, 3)
	for i, p := range paths {
		assert.Equal(t, p, ordered[i].FilePath)
	}
}

func TestStore_UpdateJobStatus_SetsTimestampsAndFields(t *testing.T) {
	store := NewStore(nil, nil)
	sess := store.CreateSession(SourceAPI, false)
	job := store.AddJob(sess.SessionID, "/a.mkv", "en", SourceAPI)

	ok := store.UpdateJobStatus(sess.SessionID, job.JobID, StatusTranscribing, JobFields{})
	require.True(t, ok)
	updated, _ := store.GetJob(sess.SessionID, job.JobID)
	assert.NotNil(t, updated.StartedAt)
	assert.Nil(t, updated.CompletedAt)

	segments := 12
	ok = store.UpdateJobStatus(sess.SessionID, job.JobID, StatusCompleted, JobFields{SegmentsCount: &segments, OutputPath: "/a.en.srt"})
	require.True(t, ok)
	updated, _ = store.GetJob(sess.SessionID, job.JobID)
	assert.NotNil(t, updated.CompletedAt)
	assert.Equal(t, 12, updated.SegmentsCount)
	assert.Equal(t, "/a.en.srt", updated.OutputPath)
}

func TestStore_UpdateJobStatus_UnknownIDsReturnFalse(t *testing.T) {
	store := NewStore(nil, nil)
	sess := store.CreateSession(SourceAPI, false)
	assert.False(t, store.UpdateJobStatus(sess.SessionID, "no-such-job", StatusCompleted, JobFields{}))
	assert.False(t, store.UpdateJobStatus("no-such-session", "no-such-job", StatusCompleted, JobFields{}))
}

func TestStore_UpdateJobStatus_FiresNotifyFuncOnFailureOnly(t *testing.T) {
	notified := make(chan *Job, 1)
	store := NewStore(nil, func(sess *Session, job *Job) { notified <- job })
	sess := store.CreateSession(SourceWebhook, false)
	job := store.AddJob(sess.SessionID, "/a.mkv", "en", SourceWebhook)

	store.UpdateJobStatus(sess.SessionID, job.JobID, StatusTranscribing, JobFields{})
	select {
	case <-notified:
		t.Fatal("notify fired on a non-failure transition")
	case <-time.After(20 * time.Millisecond):
	}

	store.UpdateJobStatus(sess.SessionID, job.JobID, StatusFailed, JobFields{Error: "boom"})
	select {
	case got := <-notified:
		assert.Equal(t, "boom", got.Error)
	case <-time.After(time.Second):
		t.Fatal("notify never fired on failure transition")
	}
}

func TestStore_GetActiveJobs(t *testing.T) {
	store := NewStore(nil, nil)
	sess := store.CreateSession(SourceAPI, false)
	pending := store.AddJob(sess.SessionID, "/pending.mkv", "en", SourceAPI)
	active := store.AddJob(sess.SessionID, "/active.mkv", "en", SourceAPI)
	done := store.AddJob(sess.SessionID, "/done.mkv", "en", SourceAPI)
	_ = pending

	store.UpdateJobStatus(sess.SessionID, active.JobID, StatusUploading, JobFields{})
	store.UpdateJobStatus(sess.SessionID, done.JobID, StatusCompleted, JobFields{})

	got := store.GetActiveJobs()
	require.Len(t, got, 1)
	assert.Equal(t, active.JobID, got[0].JobID)
}

func TestStore_GetJob_ReturnsIndependentSnapshot(t *testing.T) {
	store := NewStore(nil, nil)
	sess := store.CreateSession(SourceAPI, false)
	job := store.AddJob(sess.SessionID, "/a.mkv", "en", SourceAPI)

	snapshot, ok := store.GetJob(sess.SessionID, job.JobID)
	require.True(t, ok)
	assert.Equal(t, StatusPending, snapshot.Status)

	store.UpdateJobStatus(sess.SessionID, job.JobID, StatusCompleted, JobFields{})

	// The earlier snapshot must not observe the later mutation: GetJob hands
	// back a copy, not the live struct UpdateJobStatus writes into.
	assert.Equal(t, StatusPending, snapshot.Status)

	refetched, _ := store.GetJob(sess.SessionID, job.JobID)
	assert.Equal(t, StatusCompleted, refetched.Status)
}

func TestStore_GetSession_ReturnsIndependentJobSnapshots(t *testing.T) {
	store := NewStore(nil, nil)
	sess := store.CreateSession(SourceAPI, false)
	job := store.AddJob(sess.SessionID, "/a.mkv", "en", SourceAPI)

	snapshot, ok := store.GetSession(sess.SessionID)
	require.True(t, ok)
	require.Len(t, snapshot.OrderedJobs(), 1)

	store.UpdateJobStatus(sess.SessionID, job.JobID, StatusFailed, JobFields{Error: "boom"})

	assert.Equal(t, StatusPending, snapshot.OrderedJobs()[0].Status, "a prior GetSession snapshot must not see a later UpdateJobStatus mutation")
}

func TestStore_DeleteSession(t *testing.T) {
	store := NewStore(nil, nil)
	sess := store.CreateSession(SourceAPI, false)
	assert.True(t, store.DeleteSession(sess.SessionID))
	assert.False(t, store.DeleteSession(sess.SessionID))
	_, ok := store.GetSession(sess.SessionID)
	assert.False(t, ok)
}

func TestStore_Reset(t *testing.T) {
	store := NewStore(nil, nil)
	store.CreateSession(SourceAPI, false)
	store.Reset()
	assert.Empty(t, store.ListSessions())
}

func TestStore_SweepExpiredSessions(t *testing.T) {
	store := NewStore(nil, nil)

	// Session with all jobs terminal, completed well in the past: eligible.
	expired := store.CreateSession(SourceAPI, false)
	job := store.AddJob(expired.SessionID, "/a.mkv", "en", SourceAPI)
	store.UpdateJobStatus(expired.SessionID, job.JobID, StatusCompleted, JobFields{})

	// Session with a job still in flight: never eligible regardless of age.
	active := store.CreateSession(SourceAPI, false)
	store.AddJob(active.SessionID, "/b.mkv", "en", SourceAPI)

	// Session with no jobs at all: never eligible.
	empty := store.CreateSession(SourceAPI, false)

	future := time.Now().Add(48 * time.Hour)
	removed := store.SweepExpiredSessions(future, 24*time.Hour)

	assert.Equal(t, 1, removed)
	_, ok := store.GetSession(expired.SessionID)
	assert.False(t, ok)
	_, ok = store.GetSession(active.SessionID)
	assert.True(t, ok)
	_, ok = store.GetSession(empty.SessionID)
	assert.True(t, ok)
}

func TestStore_SweepExpiredSessions_NotYetExpired(t *testing.T) {
	store := NewStore(nil, nil)
	sess := store.CreateSession(SourceAPI, false)
	job := store.AddJob(sess.SessionID, "/a.mkv", "en", SourceAPI)
	store.UpdateJobStatus(sess.SessionID, job.JobID, StatusCompleted, JobFields{})

	removed := store.SweepExpiredSessions(time.Now(), 24*time.Hour)
	assert.Equal(t, 0, removed)
	_, ok := store.GetSession(sess.SessionID)
	assert.True(t, ok)
}
