package core

import (
	"encoding/json"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// FFprobePath is the executable name/path used to probe media files;
// overridable for tests and packaging.
var FFprobePath = "ffprobe"

// ffprobeStream mirrors the subset of ffprobe's `-show_streams -show_format
// -print_format json` output this package cares about.
type ffprobeStream struct {
	Index      int               `json:"index"`
	CodecType  string            `json:"codec_type"`
	CodecName  string            `json:"codec_name"`
	Channels   int               `json:"channels"`
	Tags       map[string]string `json:"tags"`
	Disposition struct {
		Default int `json:"default"`
	} `json:"disposition"`
}

type ffprobeFormat struct {
	Duration string `json:"duration"`
}

type ffprobeOutput struct {
	Streams []ffprobeStream `json:"streams"`
	Format  ffprobeFormat   `json:"format"`
}

// AudioTrack is the value type of §3: one probed audio stream, indexed
// 0-based among audio streams only.
type AudioTrack struct {
	Index       int
	Codec       string
	Channels    int
	LanguageTag string
	Title       string
	IsDefault   bool
}

// MediaInspector wraps an external media-probing executable (§4.3).
// Failures are non-fatal: every method returns an empty/zero result on
// probe failure rather than propagating an error, per the error taxonomy's
// ProbeFailure policy.
type MediaInspector struct {
	log *zerolog.Logger
}

func NewMediaInspector(log *zerolog.Logger) *MediaInspector {
	return &MediaInspector{log: log}
}

func (m *MediaInspector) probe(path string) (ffprobeOutput, error) {
	cmd := exec.Command(FFprobePath,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return ffprobeOutput{}, err
	}
	var parsed ffprobeOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return ffprobeOutput{}, err
	}
	return parsed, nil
}

// AudioTracks returns the media's audio streams indexed 0..n-1 among audio
// streams only (not the container-wide ffprobe stream index). Empty slice
// on probe failure.
func (m *MediaInspector) AudioTracks(path string) []AudioTrack {
	probed, err := m.probe(path)
	if err != nil {
		if m.log != nil {
			m.log.Warn().Err(err).Str("path", path).Msg("ffprobe failed, treating as no audio tracks")
		}
		return nil
	}
	var tracks []AudioTrack
	audioIdx := 0
	for _, s := range probed.Streams {
		if s.CodecType != "audio" {
			continue
		}
		lang := normalizeLangTag(s.Tags["language"])
		tracks = append(tracks, AudioTrack{
			Index:       audioIdx,
			Codec:       s.CodecName,
			Channels:    s.Channels,
			LanguageTag: lang,
			Title:       s.Tags["title"],
			IsDefault:   s.Disposition.Default != 0,
		})
		audioIdx++
	}
	return tracks
}

// SubtitleStream is a probed subtitle stream inside the container.
type SubtitleStream struct {
	Codec       string
	LanguageTag string
	Title       string
}

// SubtitleStreams returns the media's internal subtitle streams. Empty
// slice on probe failure.
func (m *MediaInspector) SubtitleStreams(path string) []SubtitleStream {
	probed, err := m.probe(path)
	if err != nil {
		if m.log != nil {
			m.log.Warn().Err(err).Str("path", path).Msg("ffprobe failed, treating as no subtitle streams")
		}
		return nil
	}
	var streams []SubtitleStream
	for _, s := range probed.Streams {
		if s.CodecType != "subtitle" {
			continue
		}
		streams = append(streams, SubtitleStream{
			Codec:       s.CodecName,
			LanguageTag: normalizeLangTag(s.Tags["language"]),
			Title:       s.Tags["title"],
		})
	}
	return streams
}

// DurationSeconds returns the container duration, or 0 on probe failure.
func (m *MediaInspector) DurationSeconds(path string) float64 {
	probed, err := m.probe(path)
	if err != nil {
		if m.log != nil {
			m.log.Warn().Err(err).Str("path", path).Msg("ffprobe failed, treating as zero duration")
		}
		return 0
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(probed.Format.Duration), 64)
	if err != nil {
		return 0
	}
	return d
}

// normalizeLangTag lower-cases the tag and collapses "", "und", "unknown"
// to "" per §4.3's "no tag" rule.
func normalizeLangTag(tag string) string {
	lower := strings.ToLower(strings.TrimSpace(tag))
	if IsNoLanguageTag(lower) {
		return ""
	}
	return lower
}
