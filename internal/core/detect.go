package core

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// LanguageDetector is the small sibling pipeline of component 11: extract a
// short audio segment, drive a one-shot remote recognition in
// language-identification mode, and return the identified language.
type LanguageDetector struct {
	log    *zerolog.Logger
	stager *AudioStager
	remote RemoteClient

	candidateLocales []string
	segmentOffset    float64
	segmentDuration  float64
	pollInterval     time.Duration
	pollTimeout      time.Duration
}

// DefaultCandidateLocales is the language_detection_candidates default of
// SPEC_FULL §4.
var DefaultCandidateLocales = []string{"en-US", "nl-NL", "es-ES", "fr-FR"}

func NewLanguageDetector(log *zerolog.Logger, stager *AudioStager, remote RemoteClient, candidateLocales []string) *LanguageDetector {
	if len(candidateLocales) == 0 {
		candidateLocales = DefaultCandidateLocales
	}
	return &LanguageDetector{
		log:              log,
		stager:           stager,
		remote:           remote,
		candidateLocales: candidateLocales,
		segmentOffset:    60,
		segmentDuration:  30,
		pollInterval:     5 * time.Second,
		pollTimeout:      2 * time.Minute,
	}
}

// DetectFromFile extracts a short segment of path's primary audio track and
// identifies its language. Returns UnknownLanguage, nil when the service
// does not determine a language (§6's "und" case), never an error for that
// condition - only for genuine pipeline failures.
func (d *LanguageDetector) DetectFromFile(ctx context.Context, path string) (LanguageCode, error) {
	segPath, err := d.stager.ExtractSegment(path, d.segmentOffset, d.segmentDuration, FormatWAV)
	if err != nil {
		return UnknownLanguage, err
	}
	defer d.stager.Cleanup(segPath)
	return d.detect(ctx, segPath)
}

// DetectFromBytes identifies the language of an in-memory audio clip
// submitted over the ASR protocol's /detect-language endpoint.
func (d *LanguageDetector) DetectFromBytes(ctx context.Context, data []byte, isRawPcm bool) (LanguageCode, error) {
	wrapped := wrapIfRawPCM(data, isRawPcm, 16000)
	segPath, err := d.stager.SaveBytes("detect.wav", wrapped)
	if err != nil {
		return UnknownLanguage, err
	}
	defer d.stager.Cleanup(segPath)
	return d.detect(ctx, segPath)
}

func (d *LanguageDetector) detect(ctx context.Context, audioPath string) (LanguageCode, error) {
	readableURL, blobName, err := d.remote.UploadAudio(ctx, audioPath)
	if err != nil {
		return UnknownLanguage, err
	}
	defer d.remote.DeleteBlob(context.Background(), blobName)

	primary := d.candidateLocales[0]
	handle, err := d.remote.CreateTranscription(ctx, readableURL, primary, "language-detection", false, false, d.candidateLocales)
	if err != nil {
		return UnknownLanguage, err
	}
	defer func() { _ = d.remote.DeleteTranscription(context.Background(), handle.RemoteJobID) }()

	result, err := d.remote.WaitForCompletion(ctx, handle.RemoteJobID, primary, d.pollInterval, d.pollTimeout, nil)
	if err != nil {
		if d.log != nil {
			d.log.Warn().Err(err).Str("path", audioPath).Msg("language detection recognition failed")
		}
		return UnknownLanguage, nil
	}
	if strings.TrimSpace(result.Language) == "" || IsNoLanguageTag(result.Language) {
		return UnknownLanguage, nil
	}
	code := FromAny(result.Language)
	if code.isUnknown() {
		// The service reports region-qualified locales such as "fr-FR".
		if i := strings.Index(result.Language, "-"); i > 0 {
			code = FromAny(result.Language[:i])
		}
	}
	return code, nil
}
