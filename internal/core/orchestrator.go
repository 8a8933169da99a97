package core

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// RemoteClient is the Orchestrator's view of §4.6's Remote Transcription
// Client: just enough surface for the pipeline below, satisfied by
// *remote.Client without internal/core importing internal/remote.
type RemoteClient interface {
	UploadAudio(ctx context.Context, path string) (readableURL, blobName string, err error)
	DeleteBlob(ctx context.Context, blobName string) bool
	CreateTranscription(ctx context.Context, contentURL, locale, displayName string, wordTimestamps, diarization bool, candidateLocales []string) (*RemoteJobHandle, error)
	DeleteTranscription(ctx context.Context, remoteJobID string) error
	WaitForCompletion(ctx context.Context, remoteJobID, declaredLocale string, pollInterval, timeout time.Duration, isCancelled func() bool) (TranscriptionResult, error)
}

// IndexerClient is one downstream media indexer (Plex/Jellyfin/Emby/Bazarr)
// refreshed best-effort at orchestrator step 10. Name is the key recorded
// into Job.MediaRefreshStatus.
type IndexerClient interface {
	Name() string
	RefreshByFilePath(ctx context.Context, filePath string) error
}

// Orchestrator threads a job through extract -> upload -> remote create ->
// poll -> parse -> persist (§4.8), bounded by Gate and enforcing the
// cleanup contract on every exit path.
type Orchestrator struct {
	log       *zerolog.Logger
	store     *Store
	gate      *Gate
	inspector *MediaInspector
	stager    *AudioStager
	remote    RemoteClient
	indexers  []IndexerClient

	naming                  SubtitleNamingConfig
	preferredAudioLanguages []string
	wordTimestamps          bool
	diarization             bool
	candidateLocales        []string
	lyricForAudio           bool
	creditLineEnabled       bool
	creditOffsetSeconds     float64

	uploadFormat AudioFormat
	sampleRate   int
	pollInterval time.Duration
	pollTimeout  time.Duration
}

// OrchestratorConfig is the construction-time snapshot of the orchestrator's
// tunables, so call sites don't need a dozen positional arguments.
type OrchestratorConfig struct {
	Naming                  SubtitleNamingConfig
	PreferredAudioLanguages []string
	WordTimestamps          bool
	Diarization             bool
	CandidateLocales        []string
	LyricForAudio           bool
	CreditLineEnabled       bool
	CreditOffsetSeconds     float64
	UploadFormat            AudioFormat
	SampleRate              int
	PollInterval            time.Duration
	PollTimeout             time.Duration
}

func NewOrchestrator(log *zerolog.Logger, store *Store, gate *Gate, inspector *MediaInspector, stager *AudioStager, remote RemoteClient, indexers []IndexerClient, cfg OrchestratorConfig) *Orchestrator {
	if cfg.UploadFormat == "" {
		cfg.UploadFormat = FormatOpusOgg
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 16000
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 10 * time.Second
	}
	if cfg.PollTimeout == 0 {
		cfg.PollTimeout = 1 * time.Hour // 360 polls at 10s, §5
	}
	return &Orchestrator{
		log: log, store: store, gate: gate, inspector: inspector, stager: stager,
		remote: remote, indexers: indexers,
		naming:                  cfg.Naming,
		preferredAudioLanguages: cfg.PreferredAudioLanguages,
		wordTimestamps:          cfg.WordTimestamps,
		diarization:             cfg.Diarization,
		candidateLocales:        cfg.CandidateLocales,
		lyricForAudio:           cfg.LyricForAudio,
		creditLineEnabled:       cfg.CreditLineEnabled,
		creditOffsetSeconds:     cfg.CreditOffsetSeconds,
		uploadFormat:            cfg.UploadFormat,
		sampleRate:              cfg.SampleRate,
		pollInterval:            cfg.PollInterval,
		pollTimeout:             cfg.PollTimeout,
	}
}

func priorityFor(source JobSource) Priority {
	if source == SourceASR {
		return PriorityHigh
	}
	return PriorityNormal
}

// isCancelled re-reads the job's live status from the store: the orchestrator
// never trusts a stack-local copy for the cancellation check (§5).
func (o *Orchestrator) isCancelled(sessionID, jobID string) bool {
	job, ok := o.store.GetJob(sessionID, jobID)
	return ok && job.Status == StatusCancelled
}

// TranscribeFile runs the 12-step pipeline of §4.8 for a file already on
// disk. sessionID/jobID are resolved or created when empty. On any exit from
// steps 3-11, the cleanup contract deletes the staged blob/remote job/temp
// audio it created, best-effort.
func (o *Orchestrator) TranscribeFile(ctx context.Context, filePath, language string, source JobSource, sessionID, jobID string, saveOutput, refreshIndexers bool) (*TranscriptionResult, *Job, error) {
	// Step 1: resolve/create the session and job.
	sessionID, jobID, err := o.resolveSessionAndJob(sessionID, jobID, filePath, language, source)
	if err != nil {
		return nil, nil, err
	}

	// Step 2: acquire one permit from the global gate.
	release, err := o.gate.Acquire(ctx, priorityFor(source))
	if err != nil {
		o.store.UpdateJobStatus(sessionID, jobID, StatusFailed, JobFields{Error: err.Error()})
		job, _ := o.store.GetJob(sessionID, jobID)
		return nil, job, err
	}
	defer release()

	var (
		remoteBlobName string
		remoteJobID    string
		tempAudioPath  string
		isTempAudio    bool
	)
	// Cleanup contract: runs on every exit from steps 3-11 (normal, error,
	// cancellation), never raises.
	defer func() {
		if remoteBlobName != "" {
			o.remote.DeleteBlob(context.Background(), remoteBlobName)
		}
		if remoteJobID != "" {
			_ = o.remote.DeleteTranscription(context.Background(), remoteJobID)
		}
		if isTempAudio && tempAudioPath != "" {
			o.stager.Cleanup(tempAudioPath)
		}
	}()

	// Step 3: extracting. Prepare passes a filePath with an audio extension
	// through unchanged (no format check), and the track probe is skipped
	// for it.
	o.store.UpdateJobStatus(sessionID, jobID, StatusExtracting, JobFields{})
	trackIndex := 0
	if !isAudioFile(filePath) {
		tracks := o.inspector.AudioTracks(filePath)
		trackIndex = SelectTrack(tracks, o.preferredAudioLanguages).Index
	}
	audioPath, isTemp, err := o.stager.Prepare(filePath, trackIndex, o.uploadFormat, o.sampleRate, true)
	if err != nil {
		o.failJob(sessionID, jobID, err)
		return nil, o.jobOrNil(sessionID, jobID), err
	}
	tempAudioPath, isTempAudio = audioPath, isTemp

	// Step 4: map requested language to a service locale.
	code := FromAny(language)
	locale := code.ServiceLocale
	if locale == "" {
		locale = DefaultRegion(language)
	}

	// Step 5: cancellation check covering steps 3-4.
	if o.isCancelled(sessionID, jobID) {
		return o.handleCancellation(sessionID, jobID)
	}

	// Step 6: uploading.
	o.store.UpdateJobStatus(sessionID, jobID, StatusUploading, JobFields{})
	readableURL, blobName, err := o.remote.UploadAudio(ctx, tempAudioPath)
	if err != nil {
		o.failJob(sessionID, jobID, err)
		return nil, o.jobOrNil(sessionID, jobID), err
	}
	remoteBlobName = blobName
	o.store.UpdateJobStatus(sessionID, jobID, StatusUploading, JobFields{RemoteBlobName: &blobName})

	// Step 7: re-check cancellation, then create the remote job.
	if o.isCancelled(sessionID, jobID) {
		return o.handleCancellation(sessionID, jobID)
	}
	o.store.UpdateJobStatus(sessionID, jobID, StatusTranscribing, JobFields{})
	handle, err := o.remote.CreateTranscription(ctx, readableURL, locale, filepath.Base(filePath), o.wordTimestamps, o.diarization, o.candidateLocales)
	if err != nil {
		o.failJob(sessionID, jobID, err)
		return nil, o.jobOrNil(sessionID, jobID), err
	}
	remoteJobID = handle.RemoteJobID
	o.store.UpdateJobStatus(sessionID, jobID, StatusTranscribing, JobFields{RemoteJobID: &remoteJobID})

	// Step 8: wait for completion, checking cancellation between polls.
	result, err := o.remote.WaitForCompletion(ctx, remoteJobID, locale, o.pollInterval, o.pollTimeout, func() bool {
		return o.isCancelled(sessionID, jobID)
	})
	if err != nil {
		if IsKind(err, KindCancelled) {
			return o.handleCancellation(sessionID, jobID)
		}
		o.failJob(sessionID, jobID, err)
		return nil, o.jobOrNil(sessionID, jobID), err
	}

	// Step 9: build the output.
	segments := result.Segments
	if o.creditLineEnabled {
		segments = WithCreditLine(segments, true, o.creditOffsetSeconds, time.Now())
	}
	var outputPath string
	if saveOutput {
		ext := ExtSRT
		body := EmitSRT(segments)
		if o.lyricForAudio && isAudioFile(filePath) {
			ext = ExtLRC
			body = EmitLyric(segments)
		}
		outputPath = OutputPath(filePath, o.naming, code, ext, "")
		if err := os.WriteFile(outputPath, []byte(body), 0o644); err != nil {
			wrapped := NewJobError(KindExtractionFailure, "write output file", err)
			o.failJob(sessionID, jobID, wrapped)
			return nil, o.jobOrNil(sessionID, jobID), wrapped
		}
	}

	// Step 10: best-effort downstream indexer refresh.
	refreshStatus := map[string]bool{}
	if refreshIndexers {
		refreshStatus = o.refreshIndexers(ctx, filePath)
	}

	segCount := len(segments)
	o.store.UpdateJobStatus(sessionID, jobID, StatusTranscribing, JobFields{
		OutputPath:         outputPath,
		SegmentsCount:      &segCount,
		DurationSeconds:    &result.DurationSeconds,
		MediaRefreshStatus: refreshStatus,
	})

	// Step 11 (blob/remote-job delete) and step 12 (temp audio removal) run
	// via the deferred cleanup contract above, after the job is marked
	// completed here.
	o.store.UpdateJobStatus(sessionID, jobID, StatusCompleted, JobFields{OutputPath: outputPath})

	result.Segments = segments
	final := result
	return &final, o.jobOrNil(sessionID, jobID), nil
}

// TranscribeAudioBytes is the sibling entry point for the ASR protocol path
// (§4.8): raw bytes are staged to a temp file (wrapped in a WAV container
// first when isRawPcm), transcoded, and run through steps 4-11, returning the
// result in memory without writing next to any media file.
func (o *Orchestrator) TranscribeAudioBytes(ctx context.Context, data []byte, language string, source JobSource, fileName string, isRawPcm bool, sessionID, jobID string) (*TranscriptionResult, *Job, error) {
	sessionID, jobID, err := o.resolveSessionAndJob(sessionID, jobID, fileName, language, source)
	if err != nil {
		return nil, nil, err
	}

	release, err := o.gate.Acquire(ctx, priorityFor(source))
	if err != nil {
		o.store.UpdateJobStatus(sessionID, jobID, StatusFailed, JobFields{Error: err.Error()})
		return nil, o.jobOrNil(sessionID, jobID), err
	}
	defer release()

	o.store.UpdateJobStatus(sessionID, jobID, StatusExtracting, JobFields{})

	rawPath, err := o.stager.SaveBytes(fileName, wrapIfRawPCM(data, isRawPcm, o.sampleRate))
	if err != nil {
		o.failJob(sessionID, jobID, err)
		return nil, o.jobOrNil(sessionID, jobID), err
	}
	defer o.stager.Cleanup(rawPath)

	audioPath, err := o.stager.Transcode(rawPath, o.uploadFormat, o.sampleRate, true)
	if err != nil {
		o.failJob(sessionID, jobID, err)
		return nil, o.jobOrNil(sessionID, jobID), err
	}

	var remoteBlobName, remoteJobID string
	defer func() {
		if remoteBlobName != "" {
			o.remote.DeleteBlob(context.Background(), remoteBlobName)
		}
		if remoteJobID != "" {
			_ = o.remote.DeleteTranscription(context.Background(), remoteJobID)
		}
		o.stager.Cleanup(audioPath)
	}()

	code := FromAny(language)
	locale := code.ServiceLocale
	if locale == "" {
		locale = DefaultRegion(language)
	}

	if o.isCancelled(sessionID, jobID) {
		return o.handleCancellation(sessionID, jobID)
	}

	o.store.UpdateJobStatus(sessionID, jobID, StatusUploading, JobFields{})
	readableURL, blobName, err := o.remote.UploadAudio(ctx, audioPath)
	if err != nil {
		o.failJob(sessionID, jobID, err)
		return nil, o.jobOrNil(sessionID, jobID), err
	}
	remoteBlobName = blobName
	o.store.UpdateJobStatus(sessionID, jobID, StatusUploading, JobFields{RemoteBlobName: &blobName})

	if o.isCancelled(sessionID, jobID) {
		return o.handleCancellation(sessionID, jobID)
	}
	o.store.UpdateJobStatus(sessionID, jobID, StatusTranscribing, JobFields{})
	handle, err := o.remote.CreateTranscription(ctx, readableURL, locale, fileName, o.wordTimestamps, o.diarization, o.candidateLocales)
	if err != nil {
		o.failJob(sessionID, jobID, err)
		return nil, o.jobOrNil(sessionID, jobID), err
	}
	remoteJobID = handle.RemoteJobID
	o.store.UpdateJobStatus(sessionID, jobID, StatusTranscribing, JobFields{RemoteJobID: &remoteJobID})

	result, err := o.remote.WaitForCompletion(ctx, remoteJobID, locale, o.pollInterval, o.pollTimeout, func() bool {
		return o.isCancelled(sessionID, jobID)
	})
	if err != nil {
		if IsKind(err, KindCancelled) {
			return o.handleCancellation(sessionID, jobID)
		}
		o.failJob(sessionID, jobID, err)
		return nil, o.jobOrNil(sessionID, jobID), err
	}

	segCount := len(result.Segments)
	o.store.UpdateJobStatus(sessionID, jobID, StatusCompleted, JobFields{
		SegmentsCount:   &segCount,
		DurationSeconds: &result.DurationSeconds,
	})

	return &result, o.jobOrNil(sessionID, jobID), nil
}

func (o *Orchestrator) resolveSessionAndJob(sessionID, jobID, filePath, language string, source JobSource) (string, string, error) {
	if sessionID == "" {
		sess := o.store.CreateSession(source, false)
		sessionID = sess.SessionID
	} else if _, ok := o.store.GetSession(sessionID); !ok {
		o.store.CreateSession(source, false)
	}
	if jobID == "" {
		job := o.store.AddJob(sessionID, filePath, language, source)
		if job == nil {
			return "", "", NewJobError(KindConfigMissing, "failed to create job in session "+sessionID, nil)
		}
		jobID = job.JobID
	}
	return sessionID, jobID, nil
}

func (o *Orchestrator) failJob(sessionID, jobID string, err error) {
	if !IsJobFatal(err) {
		if o.log != nil {
			o.log.Warn().Err(err).Str("sessionId", sessionID).Str("jobId", jobID).Msg("absorbed non-fatal job error")
		}
		return
	}
	o.store.UpdateJobStatus(sessionID, jobID, StatusFailed, JobFields{Error: err.Error()})
}

func (o *Orchestrator) handleCancellation(sessionID, jobID string) (*TranscriptionResult, *Job, error) {
	// Status is already Cancelled (set by cancelSession, §4.10); only
	// completedAt needs stamping, which UpdateJobStatus does on any
	// terminal-state transition, including a same-state re-entry.
	o.store.UpdateJobStatus(sessionID, jobID, StatusCancelled, JobFields{})
	return nil, o.jobOrNil(sessionID, jobID), ErrCancelled
}

func (o *Orchestrator) jobOrNil(sessionID, jobID string) *Job {
	job, _ := o.store.GetJob(sessionID, jobID)
	return job
}

// refreshIndexers fans out a best-effort metadata refresh to every
// configured downstream indexer (§4.8 step 10), recording one boolean per
// indexer name regardless of individual failures.
func (o *Orchestrator) refreshIndexers(ctx context.Context, filePath string) map[string]bool {
	status := make(map[string]bool, len(o.indexers))
	for _, idx := range o.indexers {
		refreshCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		err := idx.RefreshByFilePath(refreshCtx, filePath)
		cancel()
		status[idx.Name()] = err == nil
		if err != nil && o.log != nil {
			o.log.Warn().Err(err).Str("indexer", idx.Name()).Str("path", filePath).Msg("downstream indexer refresh failed")
		}
	}
	return status
}

// wrapIfRawPCM wraps raw 16-bit mono PCM in a minimal WAV container so the
// audio stager's ffmpeg transcode step can read it as a normal file;
// non-raw bytes (already a container format) pass through unchanged (§4.8).
func wrapIfRawPCM(data []byte, isRawPcm bool, sampleRate int) []byte {
	if !isRawPcm {
		return data
	}
	const (
		numChannels   = 1
		bitsPerSample = 16
	)
	byteRate := sampleRate * numChannels * bitsPerSample / 8
	blockAlign := numChannels * bitsPerSample / 8

	header := make([]byte, 44)
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+len(data)))
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(header[22:24], uint16(numChannels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], bitsPerSample)
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(len(data)))

	return append(header, data...)
}
