package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsAudioFile_CaseInsensitiveExtension(t *testing.T) {
	assert.True(t, isAudioFile("clip.mp3"))
	assert.True(t, isAudioFile("clip.MP3"), "an uppercase extension must still classify as audio")
	assert.True(t, isAudioFile("CLIP.Wav"))
	assert.False(t, isAudioFile("movie.mkv"))
}

func TestAudioStager_Prepare_NoOpForAlreadyAudioInput(t *testing.T) {
	stager := NewAudioStager(nil, t.TempDir())
	src := filepath.Join(t.TempDir(), "clip.MP3")
	require.NoError(t, os.WriteFile(src, []byte("already audio"), 0o644))

	got, isTemp, err := stager.Prepare(src, 0, FormatOpusOgg, 16000, true)
	require.NoError(t, err)
	assert.False(t, isTemp, "an already-audio input must not be re-encoded")
	assert.Equal(t, src, got)
}

func TestAudioStager_Prepare_ExtractsNonAudioInput(t *testing.T) {
	prevFFmpeg := FFmpegPath
	t.Cleanup(func() { FFmpegPath = prevFFmpeg })

	dir := t.TempDir()
	script := filepath.Join(dir, "ffmpeg")
	body := `#!/bin/sh
for out; do :; done
: > "$out"
`
	require.NoError(t, os.WriteFile(script, []byte(body), 0o755))
	FFmpegPath = script

	stager := NewAudioStager(nil, t.TempDir())
	src := filepath.Join(t.TempDir(), "movie.mkv")
	require.NoError(t, os.WriteFile(src, []byte("not audio"), 0o644))

	got, isTemp, err := stager.Prepare(src, 0, FormatOpusOgg, 16000, true)
	require.NoError(t, err)
	assert.True(t, isTemp, "a video container must be extracted to a temp audio file")
	assert.NotEqual(t, src, got)
	assert.FileExists(t, got)
}
