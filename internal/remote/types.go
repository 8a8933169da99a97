// Package remote implements the Remote Transcription Client of §4.6: a
// hand-rolled REST client for the cloud batch speech-to-text service and
// its companion object-storage staging area. No Azure SDK is used - see
// DESIGN.md for why - this follows the same net/http + failsafe-go retry
// idiom as the teacher's internal/pkg/voice STT providers.
package remote

import (
	"time"

	"github.com/rs/zerolog"
)

// Config configures both halves of the Remote Transcription Client.
type Config struct {
	// SpeechKey/SpeechRegion address the cloud speech-to-text batch
	// service (§6): base URL is built as
	// https://<region>.api.cognitive.microsoft.com/speechtotext/v3.2.
	SpeechKey    string
	SpeechRegion string

	// StorageAccountURL/StorageContainer/StorageAccountKey address the
	// object-storage staging area. StorageAccountKey signs the
	// time-bounded read-access URL minted by UploadAudio.
	StorageAccountURL string
	StorageContainer  string
	StorageAccountKey string

	// UploadChunkSize/UploadChunkThreshold implement the chunked-multipart
	// rule of §6: size > threshold uses chunked upload.
	UploadChunkSize      int64
	UploadChunkThreshold int64
	UploadMaxParallel    int

	ReadURLTTL time.Duration
}

// DefaultConfig fills in §4.6/§6's literal constants.
func DefaultConfig() Config {
	return Config{
		UploadChunkSize:      4 * 1024 * 1024,
		UploadChunkThreshold: 64 * 1024 * 1024,
		UploadMaxParallel:    4,
		ReadURLTTL:           24 * time.Hour,
	}
}

func (c Config) speechBaseURL() string {
	return "https://" + c.SpeechRegion + ".api.cognitive.microsoft.com/speechtotext/v3.2"
}

// RemoteStatus mirrors the cloud service's job status enumeration (§4.6).
type RemoteStatus string

const (
	StatusNotStarted RemoteStatus = "NotStarted"
	StatusRunning     RemoteStatus = "Running"
	StatusSucceeded   RemoteStatus = "Succeeded"
	StatusFailed      RemoteStatus = "Failed"
)

// StatusResult is the result of GetStatus.
type StatusResult struct {
	Status       RemoteStatus
	ErrorMessage string
}

// Client is the Remote Transcription Client (§4.6).
type Client struct {
	cfg Config
	log *zerolog.Logger
}

func NewClient(cfg Config, log *zerolog.Logger) *Client {
	return &Client{cfg: cfg, log: log}
}
