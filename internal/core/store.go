package core

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// JobStatus is the job state machine of §4.8.
type JobStatus string

const (
	StatusPending      JobStatus = "pending"
	StatusExtracting   JobStatus = "extracting"
	StatusUploading    JobStatus = "uploading"
	StatusTranscribing JobStatus = "transcribing"
	StatusCompleted    JobStatus = "completed"
	StatusFailed       JobStatus = "failed"
	StatusCancelled    JobStatus = "cancelled"
)

// IsTerminal reports whether s is one of the three terminal states.
func (s JobStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// JobSource identifies which ingress created a job.
type JobSource string

const (
	SourceUI      JobSource = "ui"
	SourceWebhook JobSource = "webhook"
	SourceASR     JobSource = "asr"
	SourceAPI     JobSource = "api"
)

// Job is the per-file pipeline state (§3, §4.8), owned by exactly one
// Session and mutated exclusively through Store.UpdateJobStatus.
type Job struct {
	JobID              string
	FilePath           string
	RequestedLanguage  string
	Source             JobSource
	Status             JobStatus
	Error              string
	OutputPath         string
	RemoteJobID        string
	RemoteBlobName     string
	SegmentsCount      int
	DurationSeconds    float64
	CreatedAt          time.Time
	StartedAt          *time.Time
	CompletedAt        *time.Time
	MediaRefreshStatus map[string]bool
}

// Session groups jobs submitted together (§3).
type Session struct {
	SessionID        string
	Source           JobSource
	CreatedAt        time.Time
	NotifyDownstream bool
	jobOrder         []string
	Jobs             map[string]*Job
	Skipped          []SkippedEntry
}

// SkippedEntry records an ingress-time skip decision.
type SkippedEntry struct {
	FilePath string
	Reason   string
}

// OrderedJobs returns the session's jobs in insertion order, for UI
// listing.
func (s *Session) OrderedJobs() []*Job {
	out := make([]*Job, 0, len(s.jobOrder))
	for _, id := range s.jobOrder {
		if j, ok := s.Jobs[id]; ok {
			out = append(out, j)
		}
	}
	return out
}

// NotifyFunc is invoked fire-and-forget whenever a job transitions to
// failed, per §4.7's "spawns a fire-and-forget notifier task".
type NotifyFunc func(session *Session, job *Job)

// Store is the process-wide Session/Job Store (§4.7). All mutation after
// creation goes through UpdateJobStatus, serialized by mu, matching §5's
// "All mutations go through updateJobStatus under a mutex or equivalent".
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	log      *zerolog.Logger
	onFail   NotifyFunc
}

// NewStore constructs an empty Store. onFail may be nil.
func NewStore(log *zerolog.Logger, onFail NotifyFunc) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		log:      log,
		onFail:   onFail,
	}
}

// Reset releases all state, for test isolation per §9's "tests must be
// able to reset" design note.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = make(map[string]*Session)
}

func (s *Store) CreateSession(source JobSource, notifyDownstream bool) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := &Session{
		SessionID:        uuid.NewString(),
		Source:           source,
		CreatedAt:        time.Now(),
		NotifyDownstream: notifyDownstream,
		Jobs:             make(map[string]*Job),
	}
	s.sessions[sess.SessionID] = sess
	return sess
}

// AddJob appends a new pending job to sessionID. Returns nil if the
// session does not exist.
func (s *Store) AddJob(sessionID, filePath, language string, source JobSource) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}
	job := &Job{
		JobID:             uuid.NewString(),
		FilePath:          filePath,
		RequestedLanguage: language,
		Source:            source,
		Status:            StatusPending,
		CreatedAt:         time.Now(),
	}
	sess.Jobs[job.JobID] = job
	sess.jobOrder = append(sess.jobOrder, job.JobID)
	return job
}

// AddSkipped records a filePath/reason pair in sessionID's skip log.
func (s *Store) AddSkipped(sessionID, filePath, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[sessionID]; ok {
		sess.Skipped = append(sess.Skipped, SkippedEntry{FilePath: filePath, Reason: reason})
	}
}

// cloneJob takes a value copy of j, including an independent copy of its
// MediaRefreshStatus map, so the result is safe to read without s.mu held
// even while UpdateJobStatus keeps mutating the live job concurrently.
func cloneJob(j *Job) *Job {
	jc := *j
	if j.MediaRefreshStatus != nil {
		jc.MediaRefreshStatus = make(map[string]bool, len(j.MediaRefreshStatus))
		for k, v := range j.MediaRefreshStatus {
			jc.MediaRefreshStatus[k] = v
		}
	}
	return &jc
}

// cloneSession takes a full snapshot of sess: its own fields plus an
// independent clone of every job, so a caller holding the result never
// observes a live Job mutated by a concurrent UpdateJobStatus call.
func cloneSession(sess *Session) *Session {
	sc := &Session{
		SessionID:        sess.SessionID,
		Source:           sess.Source,
		CreatedAt:        sess.CreatedAt,
		NotifyDownstream: sess.NotifyDownstream,
		jobOrder:         append([]string(nil), sess.jobOrder...),
		Jobs:             make(map[string]*Job, len(sess.Jobs)),
		Skipped:          append([]SkippedEntry(nil), sess.Skipped...),
	}
	for id, j := range sess.Jobs {
		sc.Jobs[id] = cloneJob(j)
	}
	return sc
}

// GetSession returns an independent snapshot of the session, taken while
// s.mu is held: every job in it is a copy, so callers can read status
// fields with no lock and never race UpdateJobStatus's locked writes to the
// live job (§5's "readers never observe torn state").
func (s *Store) GetSession(sessionID string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, false
	}
	return cloneSession(sess), true
}

// GetJob returns an independent snapshot of the job, taken while s.mu is
// held; see GetSession's note on why a clone, not the live pointer.
func (s *Store) GetJob(sessionID, jobID string) (*Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, false
	}
	job, ok := sess.Jobs[jobID]
	if !ok {
		return nil, false
	}
	return cloneJob(job), true
}

// ListSessions returns all sessions (UI and ASR protocol) for summary
// listing, each an independent snapshot per GetSession's note.
func (s *Store) ListSessions() []*Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, cloneSession(sess))
	}
	return out
}

// DeleteSession removes a session entirely.
func (s *Store) DeleteSession(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return false
	}
	delete(s.sessions, sessionID)
	return true
}

// JobFields carries the optional field writes UpdateJobStatus applies
// atomically alongside the status transition.
type JobFields struct {
	Error              string
	OutputPath         string
	RemoteJobID        *string
	RemoteBlobName     *string
	SegmentsCount      *int
	DurationSeconds    *float64
	MediaRefreshStatus map[string]bool
}

// UpdateJobStatus is the sole mutator after job creation (§4.7). All field
// writes for one call are applied while s.mu is held, so readers never
// observe a torn job. Terminal states are final: a call that would move a
// terminal job to a different status changes nothing and returns false
// (re-entering the same terminal status is allowed).
func (s *Store) UpdateJobStatus(sessionID, jobID string, newStatus JobStatus, fields JobFields) bool {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		s.mu.Unlock()
		return false
	}
	job, ok := sess.Jobs[jobID]
	if !ok {
		s.mu.Unlock()
		return false
	}
	if job.Status.IsTerminal() && newStatus != job.Status {
		s.mu.Unlock()
		return false
	}

	job.Status = newStatus
	if fields.Error != "" {
		job.Error = fields.Error
	}
	if fields.OutputPath != "" {
		job.OutputPath = fields.OutputPath
	}
	if fields.RemoteJobID != nil {
		job.RemoteJobID = *fields.RemoteJobID
	}
	if fields.RemoteBlobName != nil {
		job.RemoteBlobName = *fields.RemoteBlobName
	}
	if fields.SegmentsCount != nil {
		job.SegmentsCount = *fields.SegmentsCount
	}
	if fields.DurationSeconds != nil {
		job.DurationSeconds = *fields.DurationSeconds
	}
	if fields.MediaRefreshStatus != nil {
		job.MediaRefreshStatus = fields.MediaRefreshStatus
	}

	now := time.Now()
	if newStatus == StatusTranscribing && job.StartedAt == nil {
		job.StartedAt = &now
	}
	if newStatus.IsTerminal() && job.CompletedAt == nil {
		job.CompletedAt = &now
	}

	var fireNotify func()
	if newStatus == StatusFailed && s.onFail != nil {
		jobCopy := *job
		sessCopy := sess
		fireNotify = func() { s.onFail(sessCopy, &jobCopy) }
	}
	s.mu.Unlock()

	if fireNotify != nil {
		go fireNotify()
	}
	return true
}

// sessionRetentionTTL is the default lifetime of a session past the point
// every one of its jobs has reached a terminal state (§9 Open Question:
// "Session retention").
const sessionRetentionTTL = 24 * time.Hour

// finishedAt returns the session's last job completion time and whether
// every job in it has reached a terminal state. A session with no jobs, or
// with any job still pending/in-flight, is never eligible for sweeping.
func (sess *Session) finishedAt() (time.Time, bool) {
	if len(sess.Jobs) == 0 {
		return time.Time{}, false
	}
	var latest time.Time
	for _, j := range sess.Jobs {
		if !j.Status.IsTerminal() || j.CompletedAt == nil {
			return time.Time{}, false
		}
		if j.CompletedAt.After(latest) {
			latest = *j.CompletedAt
		}
	}
	return latest, true
}

// SweepExpiredSessions deletes every session whose jobs all reached a
// terminal state more than ttl ago, relative to now. It returns the number
// of sessions removed. Exposed as a standalone method (rather than folded
// into a private ticker loop) so tests can drive it deterministically.
func (s *Store) SweepExpiredSessions(now time.Time, ttl time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, sess := range s.sessions {
		finishedAt, ok := sess.finishedAt()
		if !ok {
			continue
		}
		if now.Sub(finishedAt) >= ttl {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// StartRetentionSweeper launches a background goroutine that periodically
// evicts sessions idle past ttl (0 selects sessionRetentionTTL). It exits
// when ctx is cancelled, matching the teacher's own context-bound
// background-loop idiom elsewhere in this package.
func (s *Store) StartRetentionSweeper(ctx context.Context, ttl time.Duration) {
	if ttl <= 0 {
		ttl = sessionRetentionTTL
	}
	interval := ttl / 24
	if interval < time.Minute {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.SweepExpiredSessions(time.Now(), ttl); n > 0 && s.log != nil {
					s.log.Debug().Int("count", n).Msg("store: swept expired sessions")
				}
			}
		}
	}()
}

// GetActiveJobs returns every job across every session in any pre-terminal
// non-pending status (extracting, uploading, transcribing), each an
// independent snapshot per GetSession's note.
func (s *Store) GetActiveJobs() []*Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Job
	for _, sess := range s.sessions {
		for _, j := range sess.Jobs {
			switch j.Status {
			case StatusExtracting, StatusUploading, StatusTranscribing:
				out = append(out, cloneJob(j))
			}
		}
	}
	return out
}
