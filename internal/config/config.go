// Package config loads the process-wide Config from environment variables
// via viper, mirroring original_source/app/config.py's dataclasses
// field-for-field, in the teacher's lsilvatti-bakasub-style
// viper.AutomaticEnv() idiom.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/timoverbrugghe/subgen-go/internal/core"
	"github.com/timoverbrugghe/subgen-go/internal/httpapi"
	"github.com/timoverbrugghe/subgen-go/internal/notify"
	"github.com/timoverbrugghe/subgen-go/internal/remote"
)

// AzureConfig addresses the cloud speech-to-text batch service and its
// object-storage staging area (app/config.py's AzureConfig).
type AzureConfig struct {
	SpeechKey               string
	SpeechRegion             string
	StorageAccountURL        string
	StorageContainer         string
	StorageAccountKey        string
}

func (c AzureConfig) IsConfigured() bool { return c.SpeechKey != "" && c.SpeechRegion != "" }

// BazarrConfig, PlexConfig, JellyfinConfig, EmbyConfig mirror the
// like-named dataclasses 1:1.
type BazarrConfig struct {
	URL    string
	APIKey string
}

type PlexConfig struct {
	Token  string
	Server string
}

type JellyfinConfig struct {
	Token  string
	Server string
}

type EmbyConfig struct {
	Token  string
	Server string
}

// ProcessingConfig mirrors ProcessingConfig: which webhook events trigger a
// transcription.
type ProcessingConfig struct {
	ProcessAddedMedia bool
	ProcessOnPlay     bool
}

// TranscriptionConfig mirrors TranscriptionConfig.
type TranscriptionConfig struct {
	ForceLanguage              string
	AppendCreditLine           bool
	LRCForAudioFiles           bool
	PreferredAudioLanguages    []string
	LimitToPreferredAudio      bool
	DetectLanguageLength       int
	DetectLanguageOffset       int
	LanguageDetectionCandidates []string
}

// Config is the process-wide application configuration, assembled once at
// startup by Load and threaded into every component constructor.
type Config struct {
	Debug                   bool
	MediaFolders            []string
	SubtitleLanguage        string
	ConcurrentTranscriptions int
	JobPollInterval         time.Duration
	AudioFormat             core.AudioFormat
	TranscodeDir            string

	Azure         AzureConfig
	PathMapping   httpapi.PathMapping
	Processing    ProcessingConfig
	Skip          core.SkipConfig
	Naming        core.SubtitleNamingConfig
	Transcription TranscriptionConfig

	Bazarr   BazarrConfig
	Plex     PlexConfig
	Jellyfin JellyfinConfig
	Emby     EmbyConfig

	Notification notify.Config

	ServerHost string
	ServerPort int
}

func getBool(v *viper.Viper, key string, def bool) bool {
	v.SetDefault(key, def)
	return v.GetBool(key)
}

func getString(v *viper.Viper, key, def string) string {
	v.SetDefault(key, def)
	return v.GetString(key)
}

func getInt(v *viper.Viper, key string, def int) int {
	v.SetDefault(key, def)
	return v.GetInt(key)
}

// getPipeList splits a pipe-separated env value, the same separator
// original_source/app/config.py uses for preferred/skip language lists.
func getPipeList(v *viper.Viper, key string) []string {
	raw := v.GetString(key)
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, "|") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, strings.ToLower(part))
		}
	}
	return out
}

// getCommaList splits a comma-separated env value (media folders, candidate
// locales).
func getCommaList(v *viper.Viper, key, def string) []string {
	v.SetDefault(key, def)
	raw := v.GetString(key)
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Load builds a Config from the process environment. Every field has the
// same default as app/config.py's from_env.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	cfg := &Config{
		Debug:                    getBool(v, "DEBUG", false),
		MediaFolders:             getCommaList(v, "MEDIA_FOLDERS", "/tv,/movies"),
		SubtitleLanguage:         getString(v, "SUBTITLE_LANGUAGE", ""),
		ConcurrentTranscriptions: getInt(v, "CONCURRENT_TRANSCRIPTIONS", 50),
		JobPollInterval:          time.Duration(getInt(v, "JOB_POLL_INTERVAL", 10)) * time.Second,
		AudioFormat:              core.AudioFormat(getString(v, "AUDIO_FORMAT", string(core.FormatOpusOgg))),
		TranscodeDir:             getString(v, "TRANSCODE_DIR", "/transcode"),

		Azure: AzureConfig{
			SpeechKey:         getString(v, "AZURE_SPEECH_KEY", ""),
			SpeechRegion:      getString(v, "AZURE_SPEECH_REGION", "swedencentral"),
			StorageAccountURL: getString(v, "AZURE_STORAGE_ACCOUNT_URL", ""),
			StorageContainer:  getString(v, "AZURE_STORAGE_CONTAINER", "transcription-audio"),
			StorageAccountKey: getString(v, "AZURE_STORAGE_ACCOUNT_KEY", ""),
		},

		PathMapping: httpapi.PathMapping{
			Enabled: getBool(v, "PATH_MAPPING_ENABLED", false),
			From:    getString(v, "PATH_MAPPING_FROM", ""),
			To:      getString(v, "PATH_MAPPING_TO", ""),
		},

		Processing: ProcessingConfig{
			ProcessAddedMedia: getBool(v, "PROCESS_ADDED_MEDIA", false),
			ProcessOnPlay:     getBool(v, "PROCESS_MEDIA_ON_PLAY", false),
		},

		Skip: core.SkipConfig{
			SkipIfTargetExists:            getBool(v, "SKIP_IF_TARGET_SUBTITLES_EXIST", true),
			SkipIfAnyExternalExists:       getBool(v, "SKIP_IF_EXTERNAL_SUBTITLES_EXIST", false),
			OnlySubgen:                    getBool(v, "SKIP_ONLY_SUBGEN_SUBTITLES", false),
			InternalLanguage:              getString(v, "SKIP_IF_INTERNAL_SUBTITLES_LANGUAGE", ""),
			AudioSkipLanguages:            getPipeList(v, "SKIP_IF_AUDIO_TRACK_IS"),
			SubtitleSkipLanguages:         getPipeList(v, "SKIP_SUBTITLE_LANGUAGES"),
			SkipUnknownAudio:              getBool(v, "SKIP_UNKNOWN_LANGUAGE", false),
			SkipIfNoAudioLangButSubsExist: getBool(v, "SKIP_IF_NO_LANGUAGE_BUT_SUBTITLES_EXIST", false),
			LimitToPreferredAudio:         getBool(v, "LIMIT_TO_PREFERRED_AUDIO_LANGUAGE", false),
			PreferredAudioLanguages:       getPipeList(v, "PREFERRED_AUDIO_LANGUAGES"),
		},

		Naming: core.SubtitleNamingConfig{
			NamingType: core.NamingType(strings.ToUpper(getString(v, "SUBTITLE_LANGUAGE_NAMING_TYPE", string(core.NamingISO6392B)))),
			ShowMarker: getBool(v, "SHOW_SUBGEN_MARKER", false),
			Override:   getString(v, "SUBTITLE_LANGUAGE_NAME", ""),
		},

		Transcription: TranscriptionConfig{
			ForceLanguage:               getString(v, "FORCE_DETECTED_LANGUAGE_TO", ""),
			AppendCreditLine:            getBool(v, "APPEND_CREDIT_LINE", false),
			LRCForAudioFiles:            getBool(v, "LRC_FOR_AUDIO_FILES", true),
			PreferredAudioLanguages:     getPipeList(v, "PREFERRED_AUDIO_LANGUAGES"),
			LimitToPreferredAudio:       getBool(v, "LIMIT_TO_PREFERRED_AUDIO_LANGUAGE", false),
			DetectLanguageLength:        getInt(v, "DETECT_LANGUAGE_LENGTH", 30),
			DetectLanguageOffset:        getInt(v, "DETECT_LANGUAGE_OFFSET", 0),
			LanguageDetectionCandidates: getCommaList(v, "LANGUAGE_DETECTION_CANDIDATES", "en-US,nl-NL,es-ES,fr-FR"),
		},

		Bazarr: BazarrConfig{
			URL:    getString(v, "BAZARR_URL", ""),
			APIKey: getString(v, "BAZARR_API_KEY", ""),
		},
		Plex: PlexConfig{
			Token:  getString(v, "PLEX_TOKEN", ""),
			Server: getString(v, "PLEX_SERVER", ""),
		},
		Jellyfin: JellyfinConfig{
			Token:  getString(v, "JELLYFIN_TOKEN", ""),
			Server: getString(v, "JELLYFIN_SERVER", ""),
		},
		Emby: EmbyConfig{
			Token:  getString(v, "EMBY_TOKEN", ""),
			Server: getString(v, "EMBY_SERVER", ""),
		},

		Notification: notify.Config{
			PushoverUserKey:  getString(v, "PUSHOVER_USER_KEY", ""),
			PushoverAPIToken: getString(v, "PUSHOVER_API_TOKEN", ""),
			NotifyOnFailure:  getBool(v, "NOTIFY_ON_FAILURE", false),
		},

		ServerHost: getString(v, "SERVER_HOST", "0.0.0.0"),
		ServerPort: getInt(v, "SERVER_PORT", 9000),
	}

	return cfg, nil
}

// RemoteConfig adapts Config's Azure section into internal/remote's Config,
// filling in the non-overridable protocol constants from its DefaultConfig.
func (c *Config) RemoteConfig() remote.Config {
	rc := remote.DefaultConfig()
	rc.SpeechKey = c.Azure.SpeechKey
	rc.SpeechRegion = c.Azure.SpeechRegion
	rc.StorageAccountURL = c.Azure.StorageAccountURL
	rc.StorageContainer = c.Azure.StorageContainer
	rc.StorageAccountKey = c.Azure.StorageAccountKey
	return rc
}

// envKeys is every environment variable Load reads, bound explicitly so
// viper.AutomaticEnv picks them up even when unset (matching BindEnv's
// documented purpose of registering a key before first read).
var envKeys = []string{
	"DEBUG", "MEDIA_FOLDERS", "SUBTITLE_LANGUAGE", "CONCURRENT_TRANSCRIPTIONS",
	"JOB_POLL_INTERVAL", "AUDIO_FORMAT", "TRANSCODE_DIR",
	"AZURE_SPEECH_KEY", "AZURE_SPEECH_REGION", "AZURE_STORAGE_ACCOUNT_URL",
	"AZURE_STORAGE_CONTAINER", "AZURE_STORAGE_ACCOUNT_KEY",
	"PATH_MAPPING_ENABLED", "PATH_MAPPING_FROM", "PATH_MAPPING_TO",
	"PROCESS_ADDED_MEDIA", "PROCESS_MEDIA_ON_PLAY",
	"SKIP_IF_TARGET_SUBTITLES_EXIST", "SKIP_IF_EXTERNAL_SUBTITLES_EXIST",
	"SKIP_ONLY_SUBGEN_SUBTITLES", "SKIP_IF_INTERNAL_SUBTITLES_LANGUAGE",
	"SKIP_IF_AUDIO_TRACK_IS", "SKIP_SUBTITLE_LANGUAGES", "SKIP_UNKNOWN_LANGUAGE",
	"SKIP_IF_NO_LANGUAGE_BUT_SUBTITLES_EXIST",
	"SUBTITLE_LANGUAGE_NAMING_TYPE", "SHOW_SUBGEN_MARKER", "SUBTITLE_LANGUAGE_NAME",
	"FORCE_DETECTED_LANGUAGE_TO", "APPEND_CREDIT_LINE", "LRC_FOR_AUDIO_FILES",
	"PREFERRED_AUDIO_LANGUAGES", "LIMIT_TO_PREFERRED_AUDIO_LANGUAGE",
	"DETECT_LANGUAGE_LENGTH", "DETECT_LANGUAGE_OFFSET", "LANGUAGE_DETECTION_CANDIDATES",
	"BAZARR_URL", "BAZARR_API_KEY", "PLEX_TOKEN", "PLEX_SERVER",
	"JELLYFIN_TOKEN", "JELLYFIN_SERVER", "EMBY_TOKEN", "EMBY_SERVER",
	"PUSHOVER_USER_KEY", "PUSHOVER_API_TOKEN", "NOTIFY_ON_FAILURE",
	"SERVER_HOST", "SERVER_PORT",
}
