package core

import (
	"strings"

	iso "github.com/barbashov/iso639-3"
)

// NamingType selects which column of a LanguageCode is used to build the
// language token embedded in an output filename.
type NamingType string

const (
	NamingISO6391  NamingType = "ISO_639_1"
	NamingISO6392T NamingType = "ISO_639_2_T"
	NamingISO6392B NamingType = "ISO_639_2_B"
	NamingName     NamingType = "NAME"
	NamingNative   NamingType = "NATIVE"
)

// LanguageCode is the value type described in the data model: a row of the
// registry table. Iso1/Iso2T/Iso2B are optional; every non-sentinel entry
// carries at least one of them.
type LanguageCode struct {
	Iso1          string
	Iso2T         string
	Iso2B         string
	EnglishName   string
	NativeName    string
	ServiceLocale string
}

func (l LanguageCode) isUnknown() bool { return l == UnknownLanguage }

// UnknownLanguage is the registry sentinel returned by FromAny when no
// entry matches.
var UnknownLanguage = LanguageCode{}

// registry is the static table of §4.1. It is intentionally small and
// curated rather than a full ISO-639 dump: entries cover the locales the
// cloud speech service actually recognizes plus their common aliases.
// Duplicate iso1/iso2t codes across entries are forbidden - registryIndex
// below panics at init if that invariant is violated.
var registry = []LanguageCode{
	{Iso1: "en", Iso2T: "eng", Iso2B: "eng", EnglishName: "English", NativeName: "English", ServiceLocale: "en-US"},
	{Iso1: "es", Iso2T: "spa", Iso2B: "spa", EnglishName: "Spanish", NativeName: "Español", ServiceLocale: "es-ES"},
	{Iso1: "fr", Iso2T: "fra", Iso2B: "fre", EnglishName: "French", NativeName: "Français", ServiceLocale: "fr-FR"},
	{Iso1: "de", Iso2T: "deu", Iso2B: "ger", EnglishName: "German", NativeName: "Deutsch", ServiceLocale: "de-DE"},
	{Iso1: "it", Iso2T: "ita", Iso2B: "ita", EnglishName: "Italian", NativeName: "Italiano", ServiceLocale: "it-IT"},
	{Iso1: "pt", Iso2T: "por", Iso2B: "por", EnglishName: "Portuguese", NativeName: "Português", ServiceLocale: "pt-PT"},
	{Iso1: "nl", Iso2T: "nld", Iso2B: "dut", EnglishName: "Dutch", NativeName: "Nederlands", ServiceLocale: "nl-NL"},
	{Iso1: "sv", Iso2T: "swe", Iso2B: "swe", EnglishName: "Swedish", NativeName: "Svenska", ServiceLocale: "sv-SE"},
	{Iso1: "da", Iso2T: "dan", Iso2B: "dan", EnglishName: "Danish", NativeName: "Dansk", ServiceLocale: "da-DK"},
	{Iso1: "nb", Iso2T: "nob", Iso2B: "nob", EnglishName: "Norwegian", NativeName: "Norsk", ServiceLocale: "nb-NO"},
	{Iso1: "fi", Iso2T: "fin", Iso2B: "fin", EnglishName: "Finnish", NativeName: "Suomi", ServiceLocale: "fi-FI"},
	{Iso1: "pl", Iso2T: "pol", Iso2B: "pol", EnglishName: "Polish", NativeName: "Polski", ServiceLocale: "pl-PL"},
	{Iso1: "ru", Iso2T: "rus", Iso2B: "rus", EnglishName: "Russian", NativeName: "Русский", ServiceLocale: "ru-RU"},
	{Iso1: "uk", Iso2T: "ukr", Iso2B: "ukr", EnglishName: "Ukrainian", NativeName: "Українська", ServiceLocale: "uk-UA"},
	{Iso1: "tr", Iso2T: "tur", Iso2B: "tur", EnglishName: "Turkish", NativeName: "Türkçe", ServiceLocale: "tr-TR"},
	{Iso1: "ar", Iso2T: "ara", Iso2B: "ara", EnglishName: "Arabic", NativeName: "العربية", ServiceLocale: "ar-SA"},
	{Iso1: "he", Iso2T: "heb", Iso2B: "heb", EnglishName: "Hebrew", NativeName: "עברית", ServiceLocale: "he-IL"},
	{Iso1: "hi", Iso2T: "hin", Iso2B: "hin", EnglishName: "Hindi", NativeName: "हिन्दी", ServiceLocale: "hi-IN"},
	{Iso1: "ja", Iso2T: "jpn", Iso2B: "jpn", EnglishName: "Japanese", NativeName: "日本語", ServiceLocale: "ja-JP"},
	{Iso1: "ko", Iso2T: "kor", Iso2B: "kor", EnglishName: "Korean", NativeName: "한국어", ServiceLocale: "ko-KR"},
	{Iso1: "zh", Iso2T: "zho", Iso2B: "chi", EnglishName: "Chinese", NativeName: "中文", ServiceLocale: "zh-CN"},
	{Iso1: "vi", Iso2T: "vie", Iso2B: "vie", EnglishName: "Vietnamese", NativeName: "Tiếng Việt", ServiceLocale: "vi-VN"},
	{Iso1: "th", Iso2T: "tha", Iso2B: "tha", EnglishName: "Thai", NativeName: "ไทย", ServiceLocale: "th-TH"},
	{Iso1: "el", Iso2T: "ell", Iso2B: "gre", EnglishName: "Greek", NativeName: "Ελληνικά", ServiceLocale: "el-GR"},
	{Iso1: "cs", Iso2T: "ces", Iso2B: "cze", EnglishName: "Czech", NativeName: "Čeština", ServiceLocale: "cs-CZ"},
	{Iso1: "ro", Iso2T: "ron", Iso2B: "rum", EnglishName: "Romanian", NativeName: "Română", ServiceLocale: "ro-RO"},
	{Iso1: "hu", Iso2T: "hun", Iso2B: "hun", EnglishName: "Hungarian", NativeName: "Magyar", ServiceLocale: "hu-HU"},
}

// registryIndex provides O(1) lookup by every spelling a LanguageCode can be
// addressed with; built once at init and never mutated afterward.
var registryIndex map[string]LanguageCode

func init() {
	registryIndex = make(map[string]LanguageCode, len(registry)*5)
	seenIso1 := map[string]bool{}
	seenIso2 := map[string]bool{}
	for _, lc := range registry {
		if lc.Iso1 != "" {
			if seenIso1[lc.Iso1] {
				panic("core: duplicate iso1 code in language registry: " + lc.Iso1)
			}
			seenIso1[lc.Iso1] = true
			registryIndex[lc.Iso1] = lc
		}
		for _, code := range []string{lc.Iso2T, lc.Iso2B} {
			if code == "" {
				continue
			}
			if seenIso2[code] && registryIndex[code] != lc {
				panic("core: duplicate iso2 code in language registry: " + code)
			}
			seenIso2[code] = true
			registryIndex[code] = lc
		}
		registryIndex[strings.ToLower(lc.EnglishName)] = lc
		registryIndex[strings.ToLower(lc.NativeName)] = lc
	}
}

// FromAny resolves a user-supplied string - an ISO-1 code, an ISO-2/T or
// ISO-2/B code, an English name, or a native name - to a LanguageCode.
// Matching is case-insensitive and trims whitespace. Returns UnknownLanguage
// on no match.
func FromAny(s string) LanguageCode {
	key := strings.ToLower(strings.TrimSpace(s))
	if key == "" {
		return UnknownLanguage
	}
	if lc, ok := registryIndex[key]; ok {
		return lc
	}
	// Fall back to iso639-3 for codes/spellings our curated table doesn't
	// carry: normalize through the library, then re-probe the registry
	// using its canonical Part1/Part3 codes.
	if l := iso.FromAnyCode(key); l != nil {
		for _, code := range []string{l.Part1, l.Part3, l.Part2B, l.Part2T} {
			if code == "" {
				continue
			}
			if lc, ok := registryIndex[code]; ok {
				return lc
			}
		}
	}
	return UnknownLanguage
}

// ToServiceLocale returns the cloud service's regional locale for code, or
// "" for UnknownLanguage.
func ToServiceLocale(code LanguageCode) string {
	return code.ServiceLocale
}

// ToNaming renders code using the requested naming scheme, for building the
// output filename's language token (§4.2).
func ToNaming(code LanguageCode, naming NamingType) string {
	switch naming {
	case NamingISO6391:
		if code.Iso1 != "" {
			return code.Iso1
		}
	case NamingISO6392T:
		if code.Iso2T != "" {
			return code.Iso2T
		}
	case NamingName:
		if code.EnglishName != "" {
			return code.EnglishName
		}
	case NamingNative:
		if code.NativeName != "" {
			return code.NativeName
		}
	case NamingISO6392B:
		if code.Iso2B != "" {
			return code.Iso2B
		}
	}
	// Degrade gracefully across the available spellings rather than
	// emitting an empty token.
	switch {
	case code.Iso2B != "":
		return code.Iso2B
	case code.Iso2T != "":
		return code.Iso2T
	case code.Iso1 != "":
		return code.Iso1
	case code.EnglishName != "":
		return code.EnglishName
	default:
		return "und"
	}
}

// DefaultRegion maps a bare language code to the cloud service's default
// region-qualified locale, e.g. "en" -> "en-US" (§4.8 step 4).
func DefaultRegion(s string) string {
	code := FromAny(s)
	if code.isUnknown() {
		// Already region-qualified or simply unrecognized; pass through so
		// the remote client can surface the service's own rejection.
		return s
	}
	return code.ServiceLocale
}

// IsNoLanguageTag reports whether a raw language tag (as reported by the
// media inspector) should be treated as "no tag" per §4.3.
func IsNoLanguageTag(tag string) bool {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "", "und", "unknown":
		return true
	default:
		return false
	}
}

// SameLanguage reports whether two raw tags denote the same language per
// the Skip Engine's comparison rule (§4.5): equal via the registry, or
// equal as raw case-insensitive strings as a fallback.
func SameLanguage(a, b string) bool {
	if strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b)) {
		return true
	}
	ca, cb := FromAny(a), FromAny(b)
	if ca.isUnknown() || cb.isUnknown() {
		return false
	}
	return ca == cb
}
