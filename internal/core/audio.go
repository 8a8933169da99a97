package core

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// FFmpegPath is the executable used to extract/recompress audio;
// overridable for tests and packaging.
var FFmpegPath = "ffmpeg"

// AudioFormat selects the container/codec an extraction writes.
type AudioFormat string

const (
	FormatOpusOgg AudioFormat = "opus_ogg"
	FormatWAV     AudioFormat = "wav"
)

// AudioStager wraps an external media-encoding executable (§4.4).
type AudioStager struct {
	log       *zerolog.Logger
	scratchDir string // empty => os.TempDir()
}

func NewAudioStager(log *zerolog.Logger, scratchDir string) *AudioStager {
	return &AudioStager{log: log, scratchDir: scratchDir}
}

func (a *AudioStager) tempDir() string {
	if a.scratchDir != "" {
		return a.scratchDir
	}
	return os.TempDir()
}

func (a *AudioStager) tempPath(ext string) string {
	return filepath.Join(a.tempDir(), "subgen-"+uuid.NewString()+ext)
}

// extensionFor returns the file extension for a given AudioFormat.
func extensionFor(format AudioFormat) string {
	switch format {
	case FormatWAV:
		return ".wav"
	default:
		return ".ogg"
	}
}

// Extract stages the requested audio track of path to a new temp file:
// downmixed to mono, resampled to sampleRate, written in format. Writes
// into the configured scratch directory if set, else system temp.
func (a *AudioStager) Extract(path string, trackIndex int, format AudioFormat, sampleRate int, mono bool) (string, error) {
	out := a.tempPath(extensionFor(format))
	args := []string{
		"-y",
		"-loglevel", "error",
		"-i", path,
		"-map", fmt.Sprintf("0:a:%d", trackIndex),
		"-ar", fmt.Sprint(sampleRate),
	}
	if mono {
		args = append(args, "-ac", "1")
	}
	args = append(args, codecArgs(format)...)
	args = append(args, out)
	if err := a.run(args); err != nil {
		return "", err
	}
	return out, nil
}

// codecArgs returns the ffmpeg codec flags for a target format: a
// speech-quality compressed codec at 64 kbps for upload staging (opus/ogg),
// uncompressed 16-bit PCM for language-detection segments (wav).
func codecArgs(format AudioFormat) []string {
	switch format {
	case FormatWAV:
		return []string{"-c:a", "pcm_s16le"}
	default:
		return []string{"-c:a", "libopus", "-b:a", "64k"}
	}
}

// ExtractSegment stages a short offsetSec..offsetSec+durationSec window of
// path's primary audio, for language detection (§4.11).
func (a *AudioStager) ExtractSegment(path string, offsetSec, durationSec float64, format AudioFormat) (string, error) {
	out := a.tempPath(extensionFor(format))
	args := []string{
		"-y",
		"-loglevel", "error",
		"-ss", fmt.Sprintf("%.3f", offsetSec),
		"-t", fmt.Sprintf("%.3f", durationSec),
		"-i", path,
		"-map", "0:a:0",
		"-ar", "16000",
		"-ac", "1",
	}
	args = append(args, codecArgs(format)...)
	args = append(args, out)
	if err := a.run(args); err != nil {
		return "", err
	}
	return out, nil
}

// SaveBytes writes data to a new temp file under the scratch directory,
// preserving fileName's extension so ffmpeg can sniff its container.
func (a *AudioStager) SaveBytes(fileName string, data []byte) (string, error) {
	ext := filepath.Ext(fileName)
	if ext == "" {
		ext = ".bin"
	}
	out := a.tempPath(ext)
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return "", NewJobError(KindExtractionFailure, "stage ASR audio bytes", err)
	}
	return out, nil
}

// Transcode re-encodes an already-staged file to the upload codec, the
// bytes-path counterpart of Extract (§4.8's transcribeAudioBytes).
func (a *AudioStager) Transcode(path string, format AudioFormat, sampleRate int, mono bool) (string, error) {
	out := a.tempPath(extensionFor(format))
	args := []string{
		"-y",
		"-loglevel", "error",
		"-i", path,
		"-ar", fmt.Sprint(sampleRate),
	}
	if mono {
		args = append(args, "-ac", "1")
	}
	args = append(args, codecArgs(format)...)
	args = append(args, out)
	if err := a.run(args); err != nil {
		return "", err
	}
	return out, nil
}

// Prepare returns (audioPath, isTemp): a path with an audio extension is
// returned unchanged, without checking its codec, sample rate or channel
// layout against target; any other input is extracted via Extract.
func (a *AudioStager) Prepare(path string, trackIndex int, target AudioFormat, sampleRate int, mono bool) (audioPath string, isTemp bool, err error) {
	if isAudioFile(path) {
		// Already-audio input is passed through without probing or
		// re-encoding.
		return path, false, nil
	}
	out, err := a.Extract(path, trackIndex, target, sampleRate, mono)
	if err != nil {
		return "", false, err
	}
	return out, true, nil
}

var audioExtensions = map[string]bool{
	".mp3": true, ".wav": true, ".ogg": true, ".opus": true, ".flac": true,
	".m4a": true, ".aac": true, ".wma": true,
}

func isAudioFile(path string) bool {
	return audioExtensions[strings.ToLower(filepath.Ext(path))]
}

// Cleanup removes a temp artifact if non-empty, logging failures rather
// than raising: cleanup must never itself fail a job (§4.4, §5).
func (a *AudioStager) Cleanup(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		if a.log != nil {
			a.log.Warn().Err(err).Str("path", path).Msg("failed to remove temp audio artifact")
		}
	}
}

func (a *AudioStager) run(args []string) error {
	cmd := exec.Command(FFmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		tail := tailLines(stderr.String(), 20)
		if a.log != nil {
			a.log.Error().Err(err).Str("stderr_tail", tail).Strs("args", args).Msg("ffmpeg extraction failed")
		}
		return NewJobError(KindExtractionFailure, tail, err)
	}
	return nil
}

// tailLines returns at most n trailing lines of s, used to attach a
// stderr tail to ExtractionFailure per §4.4/§7.
func tailLines(s string, n int) string {
	if s == "" {
		return ""
	}
	lines := splitLines(s)
	if len(lines) <= n {
		return s
	}
	return joinLines(lines[len(lines)-n:])
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}

func joinLines(lines []string) string {
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "\n"
		}
		out += l
	}
	return out
}

// SelectTrack implements the preferred-language track selection policy of
// §4.4: exact match in preference order, then prefix match either way,
// then track 0.
func SelectTrack(tracks []AudioTrack, preferred []string) AudioTrack {
	if len(tracks) == 0 {
		return AudioTrack{}
	}
	for _, pref := range preferred {
		for _, t := range tracks {
			if SameLanguage(t.LanguageTag, pref) {
				return t
			}
		}
	}
	for _, pref := range preferred {
		for _, t := range tracks {
			if prefixMatch(t.LanguageTag, pref) {
				return t
			}
		}
	}
	return tracks[0]
}

func prefixMatch(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	la, lb := strings.ToLower(a), strings.ToLower(b)
	return strings.HasPrefix(la, lb) || strings.HasPrefix(lb, la)
}
