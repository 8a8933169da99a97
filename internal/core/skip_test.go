package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestIsMediaFile(t *testing.T) {
	assert.True(t, IsMediaFile("/tv/show.s01e01.mkv"))
	assert.True(t, IsMediaFile("/music/track.MP3"))
	assert.False(t, IsMediaFile("/tv/show.s01e01.srt"))
	assert.False(t, IsMediaFile("/tv/readme.txt"))
}

func TestEvaluateSkip_R0_FileNotFound(t *testing.T) {
	result := EvaluateSkip(filepath.Join(t.TempDir(), "missing.mkv"), "en", SkipConfig{}, nil)
	assert.True(t, result.Skip)
	assert.Contains(t, result.Reason, "not found")
}

func TestEvaluateSkip_R1_TargetLanguageExists(t *testing.T) {
	dir := t.TempDir()
	media := filepath.Join(dir, "movie.mkv")
	touch(t, media)
	touch(t, filepath.Join(dir, "movie.en.srt"))

	result := EvaluateSkip(media, "en", SkipConfig{SkipIfTargetExists: true}, nil)
	assert.True(t, result.Skip)
}

func TestEvaluateSkip_R1_OnlySubgenIgnoresForeignSubtitle(t *testing.T) {
	dir := t.TempDir()
	media := filepath.Join(dir, "movie.mkv")
	touch(t, media)
	touch(t, filepath.Join(dir, "movie.en.srt")) // not our marker

	result := EvaluateSkip(media, "en", SkipConfig{SkipIfTargetExists: true, OnlySubgen: true}, nil)
	assert.False(t, result.Skip)
}

func TestEvaluateSkip_R1_OnlySubgenMatchesOurMarker(t *testing.T) {
	dir := t.TempDir()
	media := filepath.Join(dir, "movie.mkv")
	touch(t, media)
	touch(t, filepath.Join(dir, "movie.subgen.en.srt"))

	result := EvaluateSkip(media, "en", SkipConfig{SkipIfTargetExists: true, OnlySubgen: true}, nil)
	assert.True(t, result.Skip)
}

func TestEvaluateSkip_R2_AnyExternalExists(t *testing.T) {
	dir := t.TempDir()
	media := filepath.Join(dir, "movie.mkv")
	touch(t, media)
	touch(t, filepath.Join(dir, "movie.es.srt"))

	result := EvaluateSkip(media, "en", SkipConfig{SkipIfAnyExternalExists: true}, nil)
	assert.True(t, result.Skip)
}

func TestEvaluateSkip_NoRuleMatches_Proceeds(t *testing.T) {
	dir := t.TempDir()
	media := filepath.Join(dir, "movie.mkv")
	touch(t, media)

	result := EvaluateSkip(media, "en", SkipConfig{SkipIfTargetExists: true}, nil)
	assert.False(t, result.Skip)
	assert.Empty(t, result.Reason)
}

func TestEvaluateSkip_RuleOrder_R1BeforeR2(t *testing.T) {
	// Both R1 and R2 would fire; R1 (the more specific rule) must win since
	// rules are evaluated in order and the first match returns immediately.
	dir := t.TempDir()
	media := filepath.Join(dir, "movie.mkv")
	touch(t, media)
	touch(t, filepath.Join(dir, "movie.en.srt"))

	result := EvaluateSkip(media, "en", SkipConfig{SkipIfTargetExists: true, SkipIfAnyExternalExists: true}, nil)
	assert.True(t, result.Skip)
	assert.Contains(t, result.Reason, "subtitle already exists")
}
