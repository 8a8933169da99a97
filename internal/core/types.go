package core

// TranscriptionResult is the value type of §3: the parsed output of one
// completed remote transcription job.
type TranscriptionResult struct {
	JobID           string
	Language        string
	Segments        []SubtitleSegment
	DurationSeconds float64
}

// RemoteJobHandle is the opaque remote job handle returned by
// RemoteClient.CreateTranscription (§4.6).
type RemoteJobHandle struct {
	RemoteJobID string
	Locale      string
}
