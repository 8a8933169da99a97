package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SkipConfig is the read-only snapshot of §3/§4.5, mirroring
// app/config.py's SkipConfig dataclass field-for-field.
type SkipConfig struct {
	SkipIfTargetExists          bool
	SkipIfAnyExternalExists     bool
	OnlySubgen                  bool
	InternalLanguage            string
	AudioSkipLanguages          []string
	SubtitleSkipLanguages       []string
	SkipUnknownAudio            bool
	SkipIfNoAudioLangButSubsExist bool
	LimitToPreferredAudio       bool
	PreferredAudioLanguages     []string
}

// SkipResult is the Skip Engine's verdict.
type SkipResult struct {
	Skip   bool
	Reason string
}

func proceed() SkipResult { return SkipResult{} }

func skip(reason string) SkipResult { return SkipResult{Skip: true, Reason: reason} }

// subtitleExtensions is the recognized subtitle-extension set used for
// external-subtitle discovery.
var subtitleExtensions = map[string]bool{
	".srt": true, ".vtt": true, ".ass": true, ".ssa": true, ".sub": true, ".lrc": true,
}

// videoExtensions and audioExtensionsSet together define "media file" per
// the glossary.
var videoExtensions = map[string]bool{
	".mkv": true, ".mp4": true, ".avi": true, ".mov": true, ".m4v": true,
	".wmv": true, ".webm": true, ".ts": true, ".flv": true,
}

// IsMediaFile reports whether path's extension is in the configured video
// or audio set.
func IsMediaFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return videoExtensions[ext] || audioExtensions[ext]
}

// externalSubtitle describes one discovered sibling subtitle file.
type externalSubtitle struct {
	path    string
	isOurs  bool
	langTag string
}

// discoverExternalSubtitles scans the media's directory for files whose
// stem prefixes the media's stem and whose extension is a subtitle
// extension (§4.5). The language tag is taken from the dotted component
// immediately following the media stem (and the optional "subgen" marker),
// e.g. "show.s01e01.subgen.en.srt" -> langTag "en".
func discoverExternalSubtitles(mediaPath string) []externalSubtitle {
	dir := filepath.Dir(mediaPath)
	mediaBase := filepath.Base(mediaPath)
	mediaStem := strings.TrimSuffix(mediaBase, filepath.Ext(mediaBase))

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var found []externalSubtitle
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if !subtitleExtensions[ext] {
			continue
		}
		stem := strings.TrimSuffix(name, filepath.Ext(name))
		if !strings.HasPrefix(stem, mediaStem) {
			continue
		}
		rest := strings.TrimPrefix(stem, mediaStem)
		parts := strings.Split(strings.Trim(rest, "."), ".")
		isOurs := false
		var langTag string
		for _, p := range parts {
			if p == "" {
				continue
			}
			if strings.EqualFold(p, "subgen") {
				isOurs = true
				continue
			}
			if langTag == "" {
				langTag = p
			}
		}
		found = append(found, externalSubtitle{
			path:    filepath.Join(dir, name),
			isOurs:  isOurs,
			langTag: langTag,
		})
	}
	return found
}

// EvaluateSkip runs the Skip Engine (§4.5): rules R0-R8 in order, first
// match wins.
func EvaluateSkip(filePath, targetLanguage string, cfg SkipConfig, inspector *MediaInspector) SkipResult {
	// R0
	if _, err := os.Stat(filePath); err != nil {
		return skip("file not found")
	}

	externals := discoverExternalSubtitles(filePath)

	// R1
	if cfg.SkipIfTargetExists {
		for _, ext := range externals {
			if cfg.OnlySubgen && !ext.isOurs {
				continue
			}
			if SameLanguage(ext.langTag, targetLanguage) {
				return skip(fmt.Sprintf("subtitle already exists for '%s'", targetLanguage))
			}
		}
	}

	// R2
	if cfg.SkipIfAnyExternalExists {
		for _, ext := range externals {
			if cfg.OnlySubgen && !ext.isOurs {
				continue
			}
			_ = ext
			return skip("external subtitles already exist")
		}
	}

	var internalSubs []SubtitleStream
	var audioTracks []AudioTrack
	if inspector != nil {
		internalSubs = inspector.SubtitleStreams(filePath)
		audioTracks = inspector.AudioTracks(filePath)
	}

	// R3
	if cfg.InternalLanguage != "" {
		for _, s := range internalSubs {
			if SameLanguage(s.LanguageTag, cfg.InternalLanguage) {
				return skip(fmt.Sprintf("internal subtitles exist in '%s'", cfg.InternalLanguage))
			}
		}
	}

	// R4
	if len(cfg.AudioSkipLanguages) > 0 {
		for _, t := range audioTracks {
			for _, lang := range cfg.AudioSkipLanguages {
				if SameLanguage(t.LanguageTag, lang) {
					return skip("audio track language in skip list")
				}
			}
		}
	}

	// R5
	if len(cfg.SubtitleSkipLanguages) > 0 {
		for _, lang := range cfg.SubtitleSkipLanguages {
			for _, s := range internalSubs {
				if SameLanguage(s.LanguageTag, lang) {
					return skip(fmt.Sprintf("contains subtitle in skip list language '%s'", lang))
				}
			}
			for _, ext := range externals {
				if SameLanguage(ext.langTag, lang) {
					return skip(fmt.Sprintf("contains subtitle in skip list language '%s'", lang))
				}
			}
		}
	}

	// R6
	if cfg.SkipUnknownAudio {
		for _, t := range audioTracks {
			if IsNoLanguageTag(t.LanguageTag) {
				return skip("audio track has unknown language")
			}
		}
	}

	// R7
	if cfg.SkipIfNoAudioLangButSubsExist {
		anyAudioLang := false
		for _, t := range audioTracks {
			if !IsNoLanguageTag(t.LanguageTag) {
				anyAudioLang = true
				break
			}
		}
		if !anyAudioLang && (len(internalSubs) > 0 || len(externals) > 0) {
			return skip("no audio language set but subtitles already exist")
		}
	}

	// R8
	if cfg.LimitToPreferredAudio && len(cfg.PreferredAudioLanguages) > 0 {
		matched := false
		for _, t := range audioTracks {
			for _, pref := range cfg.PreferredAudioLanguages {
				if SameLanguage(t.LanguageTag, pref) {
					matched = true
					break
				}
			}
			if matched {
				break
			}
		}
		if !matched {
			return skip("no audio track in preferred languages")
		}
	}

	return proceed()
}
