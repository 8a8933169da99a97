package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubtitleNamingConfig_LangToken(t *testing.T) {
	fr := FromAny("fr")

	tests := []struct {
		name     string
		cfg      SubtitleNamingConfig
		expected string
	}{
		{"default naming falls to iso2b", SubtitleNamingConfig{}, "fre"},
		{"explicit iso1", SubtitleNamingConfig{NamingType: NamingISO6391}, "fr"},
		{"override wins regardless of naming type", SubtitleNamingConfig{NamingType: NamingISO6391, Override: "french"}, "french"},
		{"override is used verbatim, surrounding whitespace included", SubtitleNamingConfig{Override: "  fr-custom  "}, "  fr-custom  "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.cfg.LangToken(fr))
		})
	}
}

func TestOutputPath(t *testing.T) {
	fr := FromAny("fr")

	tests := []struct {
		name     string
		source   string
		cfg      SubtitleNamingConfig
		ext      OutputExt
		suffix   string
		expected string
	}{
		{
			name:     "plain srt",
			source:   "/movies/Interstellar (2014).mkv",
			cfg:      SubtitleNamingConfig{NamingType: NamingISO6391},
			ext:      ExtSRT,
			expected: "/movies/Interstellar (2014).fr.srt",
		},
		{
			name:     "with subgen marker",
			source:   "/movies/Interstellar (2014).mkv",
			cfg:      SubtitleNamingConfig{NamingType: NamingISO6391, ShowMarker: true},
			ext:      ExtSRT,
			expected: "/movies/Interstellar (2014).subgen.fr.srt",
		},
		{
			name:     "lyric format for audio source with a suffix",
			source:   "/music/track.mp3",
			cfg:      SubtitleNamingConfig{NamingType: NamingISO6391},
			ext:      ExtLRC,
			suffix:   "detected",
			expected: "/music/track.fr.detected.lrc",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, OutputPath(tt.source, tt.cfg, fr, tt.ext, tt.suffix))
		})
	}
}
