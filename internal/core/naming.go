package core

import (
	"path/filepath"
	"strings"
)

// SubtitleNamingConfig is the read-only snapshot of §3/§4.2: how the
// language token embedded in an output filename is derived.
type SubtitleNamingConfig struct {
	NamingType NamingType
	ShowMarker bool
	Override   string
}

// LangToken renders the language token for an output filename: Override
// wins verbatim when non-empty, otherwise ToNaming(code, namingType).
func (c SubtitleNamingConfig) LangToken(code LanguageCode) string {
	if strings.TrimSpace(c.Override) != "" {
		return c.Override
	}
	naming := c.NamingType
	if naming == "" {
		naming = NamingISO6392B
	}
	return ToNaming(code, naming)
}

// OutputExt is the timed-text or lyric-format extension to use: ".srt" for
// video, or ".lrc" for audio sources when lyric-for-audio is configured.
type OutputExt string

const (
	ExtSRT  OutputExt = ".srt"
	ExtLRC  OutputExt = ".lrc"
)

// OutputPath builds <media-stem>[.subgen]?.<langToken>[.<suffix>]?.<ext>
// next to sourcePath, per §4.2/§6.
func OutputPath(sourcePath string, naming SubtitleNamingConfig, code LanguageCode, ext OutputExt, suffix string) string {
	dir := filepath.Dir(sourcePath)
	base := filepath.Base(sourcePath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	var b strings.Builder
	b.WriteString(stem)
	if naming.ShowMarker {
		b.WriteString(".subgen")
	}
	token := naming.LangToken(code)
	if token != "" {
		b.WriteString(".")
		b.WriteString(token)
	}
	if suffix != "" {
		b.WriteString(".")
		b.WriteString(suffix)
	}
	b.WriteString(string(ext))
	return filepath.Join(dir, b.String())
}
