package core

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBatchIngress(t *testing.T) (*BatchIngress, *Store) {
	t.Helper()
	store := NewStore(nil, nil)
	inspector := NewMediaInspector(nil)
	stager := NewAudioStager(nil, t.TempDir())
	gate := NewGate(10)
	orch := NewOrchestrator(nil, store, gate, inspector, stager, &fakeRemoteClient{}, nil, OrchestratorConfig{})
	return NewBatchIngress(nil, store, inspector, orch), store
}

func TestExpandPaths(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "a.mkv"))
	touch(t, filepath.Join(dir, "b.txt"))
	sub := filepath.Join(dir, "season1")
	require.NoError(t, os.Mkdir(sub, 0o755))
	touch(t, filepath.Join(sub, "c.mp4"))

	out := expandPaths([]string{"/already/given.mkv"}, []string{dir})

	assert.Contains(t, out, "/already/given.mkv")
	assert.Contains(t, out, filepath.Join(dir, "a.mkv"))
	assert.Contains(t, out, filepath.Join(sub, "c.mp4"))
	assert.NotContains(t, out, filepath.Join(dir, "b.txt"))
}

func TestClassifyNoSurvivors(t *testing.T) {
	tests := []struct {
		name                                     string
		total, notFound, notMedia, skippedConfig int
		expected                                 BatchReason
	}{
		{"empty submission", 0, 0, 0, 0, ReasonNoMediaFiles},
		{"all not found", 3, 3, 0, 0, ReasonAllNotFound},
		{"all not media", 3, 0, 3, 0, ReasonNoMediaFiles},
		{"all skipped by config", 3, 0, 0, 3, ReasonAllSkippedByConfig},
		{"mixed reasons", 3, 1, 1, 1, ReasonMixed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyNoSurvivors(tt.total, tt.notFound, tt.notMedia, tt.skippedConfig)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestBatchIngress_Submit_NoSurvivors_NotFound(t *testing.T) {
	batch, _ := newTestBatchIngress(t)
	sess, err := batch.Submit(context.Background(), []string{"/nowhere/missing.mkv"}, nil, "en", false, true, SkipConfig{})

	require.NotNil(t, sess)
	var batchErr *BatchError
	require.True(t, errors.As(err, &batchErr))
	assert.Equal(t, ReasonAllNotFound, batchErr.Reason)
	require.Len(t, batchErr.Skipped, 1)
	assert.Equal(t, "file not found", batchErr.Skipped[0].Reason)
}

func TestBatchIngress_Submit_NoSurvivors_NotMediaFile(t *testing.T) {
	dir := t.TempDir()
	textFile := filepath.Join(dir, "notes.txt")
	touch(t, textFile)

	batch, _ := newTestBatchIngress(t)
	_, err := batch.Submit(context.Background(), []string{textFile}, nil, "en", false, true, SkipConfig{})

	var batchErr *BatchError
	require.True(t, errors.As(err, &batchErr))
	assert.Equal(t, ReasonNoMediaFiles, batchErr.Reason)
}

func TestBatchIngress_Submit_Survivors_CreatesSessionAndJobsImmediately(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.mkv")
	b := filepath.Join(dir, "b.avi")
	c := filepath.Join(dir, "c.txt")
	touch(t, a)
	touch(t, b)
	touch(t, c)

	batch, store := newTestBatchIngress(t)
	sess, err := batch.Submit(context.Background(), nil, []string{dir}, "en", false, false, SkipConfig{})

	require.NoError(t, err)
	require.NotNil(t, sess)

	// Submit must return as soon as jobs exist, without waiting on the
	// (backgrounded) orchestrator fan-out to reach a terminal state.
	got, ok := store.GetSession(sess.SessionID)
	require.True(t, ok)
	jobs := got.OrderedJobs()
	require.Len(t, jobs, 2)

	var paths []string
	for _, j := range jobs {
		paths = append(paths, j.FilePath)
	}
	assert.ElementsMatch(t, []string{a, b}, paths)

	require.Len(t, got.Skipped, 1)
	assert.Equal(t, c, got.Skipped[0].FilePath)
	assert.Equal(t, "not a media file", got.Skipped[0].Reason)
}

func TestBatchIngress_Submit_ApplySkipConfig_SkipsMatchingLanguage(t *testing.T) {
	dir := t.TempDir()
	media := filepath.Join(dir, "movie.mkv")
	touch(t, media)
	touch(t, filepath.Join(dir, "movie.en.srt"))

	batch, store := newTestBatchIngress(t)
	sess, err := batch.Submit(context.Background(), []string{media}, nil, "en", false, true, SkipConfig{SkipIfTargetExists: true})

	var batchErr *BatchError
	require.True(t, errors.As(err, &batchErr))
	assert.Equal(t, ReasonAllSkippedByConfig, batchErr.Reason)

	got, _ := store.GetSession(sess.SessionID)
	assert.Empty(t, got.OrderedJobs())

	// Submit starts no fan-out goroutine when no path survives; the short
	// sleep only guards against one starting anyway.
	time.Sleep(10 * time.Millisecond)
}
