package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromAny(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected LanguageCode
	}{
		{"iso1 lowercase", "en", registryIndex["en"]},
		{"iso1 uppercase", "EN", registryIndex["en"]},
		{"iso2t code", "fra", registryIndex["fra"]},
		{"iso2b code", "ger", registryIndex["deu"]},
		{"english name", "French", registryIndex["fra"]},
		{"native name", "Français", registryIndex["fra"]},
		{"padded whitespace", "  nl  ", registryIndex["nl"]},
		{"empty string", "", UnknownLanguage},
		{"nonsense", "not-a-language", UnknownLanguage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FromAny(tt.input))
		})
	}
}

func TestFromAny_Iso3Fallback(t *testing.T) {
	// "jpn" is in our curated table directly, but "jav" (Javanese) is not -
	// it should still resolve through the iso639-3 library fallback to
	// UnknownLanguage rather than panicking, since our registry doesn't
	// carry Javanese at all.
	assert.Equal(t, UnknownLanguage, FromAny("jav"))
}

func TestToServiceLocale(t *testing.T) {
	assert.Equal(t, "en-US", ToServiceLocale(FromAny("en")))
	assert.Equal(t, "", ToServiceLocale(UnknownLanguage))
}

func TestToNaming(t *testing.T) {
	fr := FromAny("fr")
	tests := []struct {
		name     string
		naming   NamingType
		expected string
	}{
		{"iso1", NamingISO6391, "fr"},
		{"iso2t", NamingISO6392T, "fra"},
		{"iso2b", NamingISO6392B, "fre"},
		{"name", NamingName, "French"},
		{"native", NamingNative, "Français"},
		{"unknown naming falls back through spellings", NamingType("bogus"), "fre"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ToNaming(fr, tt.naming))
		})
	}
}

func TestToNaming_UnknownLanguage(t *testing.T) {
	assert.Equal(t, "und", ToNaming(UnknownLanguage, NamingISO6391))
}

func TestDefaultRegion(t *testing.T) {
	assert.Equal(t, "en-US", DefaultRegion("en"))
	assert.Equal(t, "es-ES", DefaultRegion("spanish"))
	// Unrecognized input passes through unchanged so the remote client can
	// surface the service's own rejection rather than silently swallowing it.
	assert.Equal(t, "xx-not-a-locale", DefaultRegion("xx-not-a-locale"))
}

func TestIsNoLanguageTag(t *testing.T) {
	for _, tag := range []string{"", "und", "UND", "unknown", " Unknown "} {
		assert.True(t, IsNoLanguageTag(tag), "expected %q to be treated as no-tag", tag)
	}
	for _, tag := range []string{"en", "fra", "Japanese"} {
		assert.False(t, IsNoLanguageTag(tag), "expected %q to carry a real tag", tag)
	}
}

func TestSameLanguage(t *testing.T) {
	assert.True(t, SameLanguage("en", "en"))
	assert.True(t, SameLanguage("EN", "en"))
	assert.True(t, SameLanguage("eng", "en"))
	assert.True(t, SameLanguage("French", "fra"))
	assert.False(t, SameLanguage("en", "fr"))
	// Two unrecognized-but-identical raw tags still match via the
	// case-insensitive string fallback.
	assert.True(t, SameLanguage("klingon", "Klingon"))
	// One side unrecognized, the other recognized: no match.
	assert.False(t, SameLanguage("klingon", "en"))
}
