package core

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDetector(t *testing.T, fake *fakeRemoteClient) *LanguageDetector {
	t.Helper()
	stager := NewAudioStager(nil, t.TempDir())
	return NewLanguageDetector(nil, stager, fake, []string{"en-US", "fr-FR"})
}

func TestNewLanguageDetector_DefaultsCandidateLocales(t *testing.T) {
	d := newTestDetector(t, &fakeRemoteClient{})
	assert.Equal(t, []string{"en-US", "fr-FR"}, d.candidateLocales)

	d2 := NewLanguageDetector(nil, NewAudioStager(nil, t.TempDir()), &fakeRemoteClient{}, nil)
	assert.Equal(t, DefaultCandidateLocales, d2.candidateLocales)
}

func TestDetectFromBytes_RecognizedLanguage(t *testing.T) {
	fake := &fakeRemoteClient{waitResult: TranscriptionResult{Language: "fr-FR"}}
	d := newTestDetector(t, fake)

	code, err := d.DetectFromBytes(context.Background(), []byte{1, 2, 3, 4}, true)
	require.NoError(t, err)
	assert.Equal(t, FromAny("fr"), code)
	assert.Equal(t, "en-US", fake.lastCreateLocale, "the first candidate locale seeds the detection request")
}

func TestDetectFromBytes_NoLanguageDetermined(t *testing.T) {
	fake := &fakeRemoteClient{waitResult: TranscriptionResult{Language: "und"}}
	d := newTestDetector(t, fake)

	code, err := d.DetectFromBytes(context.Background(), []byte{1, 2, 3, 4}, true)
	require.NoError(t, err)
	assert.Equal(t, UnknownLanguage, code)
}

func TestDetectFromBytes_RecognitionFailureIsAbsorbed(t *testing.T) {
	fake := &fakeRemoteClient{waitErr: errors.New("service unavailable")}
	d := newTestDetector(t, fake)

	code, err := d.DetectFromBytes(context.Background(), []byte{1, 2, 3, 4}, true)
	assert.NoError(t, err, "a failed recognition degrades to unknown, it is not a pipeline error")
	assert.Equal(t, UnknownLanguage, code)
}

func TestDetectFromBytes_UploadFailurePropagates(t *testing.T) {
	fake := &fakeRemoteClient{uploadErr: errors.New("network down")}
	d := newTestDetector(t, fake)

	_, err := d.DetectFromBytes(context.Background(), []byte{1, 2, 3, 4}, true)
	assert.Error(t, err)
}

func TestDetectFromFile_MissingFilePropagatesExtractionError(t *testing.T) {
	fake := &fakeRemoteClient{}
	d := newTestDetector(t, fake)

	_, err := d.DetectFromFile(context.Background(), filepath.Join(t.TempDir(), "missing.mkv"))
	assert.Error(t, err)
}

func TestDetectFromBytes_CleansUpStagedSegment(t *testing.T) {
	dir := t.TempDir()
	stager := NewAudioStager(nil, dir)
	d := NewLanguageDetector(nil, stager, &fakeRemoteClient{waitResult: TranscriptionResult{Language: "en-US"}}, nil)

	_, err := d.DetectFromBytes(context.Background(), []byte{1, 2, 3, 4}, true)
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "the staged detect.wav segment must be cleaned up after detection")
}
