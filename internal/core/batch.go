package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// BatchReason classifies why no job survived a batch submission (§4.9).
type BatchReason string

const (
	ReasonAllSkippedByConfig BatchReason = "all_skipped_by_config"
	ReasonAllNotFound        BatchReason = "all_not_found"
	ReasonNoMediaFiles       BatchReason = "no_media_files"
	ReasonMixed              BatchReason = "mixed_no_survivors"
)

// BatchError is returned when no path in a batch submission survives to
// become a job.
type BatchError struct {
	Reason  BatchReason
	Skipped []SkippedEntry
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch ingress: no job survived (%s, %d paths skipped)", e.Reason, len(e.Skipped))
}

// perSessionFanOut is the soft bound of §4.9: a cap on concurrent
// TranscribeFile calls kicked off per submission. The global Gate (§5) is
// the real throttle - this just keeps one huge batch from launching
// thousands of goroutines that all immediately block on the gate.
const perSessionFanOut = 50

// BatchIngress is the Skip-gated Batch Ingress of §4.9: it expands folder
// paths, applies the Skip Engine, enqueues surviving files as jobs in a new
// session, and fans them out to the Orchestrator.
type BatchIngress struct {
	log          *zerolog.Logger
	store        *Store
	inspector    *MediaInspector
	orchestrator *Orchestrator
}

func NewBatchIngress(log *zerolog.Logger, store *Store, inspector *MediaInspector, orchestrator *Orchestrator) *BatchIngress {
	return &BatchIngress{log: log, store: store, inspector: inspector, orchestrator: orchestrator}
}

// expandPaths recursively walks folderPaths collecting files with a
// recognized media extension, and appends them to filePaths.
func expandPaths(filePaths, folderPaths []string) []string {
	out := append([]string{}, filePaths...)
	for _, dir := range folderPaths {
		_ = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
			if err != nil || d == nil || d.IsDir() {
				return nil
			}
			if IsMediaFile(path) {
				out = append(out, path)
			}
			return nil
		})
	}
	return out
}

// Submit runs the full batch ingress pipeline: expand, gate, enqueue, fan
// out. It returns once the session and its pending jobs exist in the
// Store; the fan-out to the Orchestrator runs in a background goroutine,
// and TranscribeFile owns each job's lifecycle from there.
func (b *BatchIngress) Submit(ctx context.Context, filePaths, folderPaths []string, language string, notifyDownstream, applySkipConfig bool, skipCfg SkipConfig) (*Session, error) {
	allPaths := expandPaths(filePaths, folderPaths)
	// Non-media files found inside submitted folders are reported as skipped
	// rather than silently dropped.
	for _, dir := range folderPaths {
		_ = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
			if err == nil && d != nil && !d.IsDir() && !IsMediaFile(path) {
				allPaths = append(allPaths, path)
			}
			return nil
		})
	}

	sess := b.store.CreateSession(SourceAPI, notifyDownstream)

	type survivor struct {
		path string
	}
	var survivors []survivor
	var notFoundCount, notMediaCount, skippedByConfigCount int

	for _, path := range allPaths {
		if _, err := os.Stat(path); err != nil {
			b.store.AddSkipped(sess.SessionID, path, "file not found")
			notFoundCount++
			continue
		}
		if !IsMediaFile(path) {
			b.store.AddSkipped(sess.SessionID, path, "not a media file")
			notMediaCount++
			continue
		}
		if applySkipConfig {
			result := EvaluateSkip(path, language, skipCfg, b.inspector)
			if result.Skip {
				b.store.AddSkipped(sess.SessionID, path, result.Reason)
				skippedByConfigCount++
				continue
			}
		}
		survivors = append(survivors, survivor{path: path})
	}

	if len(survivors) == 0 {
		reason := classifyNoSurvivors(len(allPaths), notFoundCount, notMediaCount, skippedByConfigCount)
		sessSnapshot, _ := b.store.GetSession(sess.SessionID)
		var skipped []SkippedEntry
		if sessSnapshot != nil {
			skipped = sessSnapshot.Skipped
		}
		return sess, &BatchError{Reason: reason, Skipped: skipped}
	}

	for _, s := range survivors {
		b.store.AddJob(sess.SessionID, s.path, language, SourceAPI)
	}

	// Fan-out runs in the background: Submit returns as soon as the session
	// and its pending jobs exist, so an HTTP caller gets jobIds back without
	// blocking on the whole batch's transcription time.
	jobs := sess.OrderedJobs()
	go b.runFanOut(context.Background(), sess.SessionID, jobs, notifyDownstream)

	return sess, nil
}

func (b *BatchIngress) runFanOut(ctx context.Context, sessionID string, jobs []*Job, notifyDownstream bool) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(perSessionFanOut)
	for _, job := range jobs {
		job := job
		g.Go(func() error {
			_, _, err := b.orchestrator.TranscribeFile(gctx, job.FilePath, job.RequestedLanguage, SourceAPI, sessionID, job.JobID, true, notifyDownstream)
			if err != nil && !errors.Is(err, ErrCancelled) {
				if b.log != nil {
					b.log.Warn().Err(err).Str("path", job.FilePath).Msg("batch job failed")
				}
			}
			return nil // batch fan-out never aborts siblings over one failure
		})
	}
	_ = g.Wait()
}

func classifyNoSurvivors(total, notFound, notMedia, skippedByConfig int) BatchReason {
	switch {
	case total == 0:
		return ReasonNoMediaFiles
	case notFound == total:
		return ReasonAllNotFound
	case notMedia == total:
		return ReasonNoMediaFiles
	case skippedByConfig == total:
		return ReasonAllSkippedByConfig
	default:
		return ReasonMixed
	}
}
