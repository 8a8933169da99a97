package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/timoverbrugghe/subgen-go/internal/core"
)

// createTranscriptionRequest is the POST /transcriptions body (§6).
type createTranscriptionRequest struct {
	ContentURLs []string                `json:"contentUrls"`
	Locale      string                  `json:"locale"`
	DisplayName string                  `json:"displayName"`
	Properties  transcriptionProperties `json:"properties"`
	LanguageID  *languageIdentification `json:"languageIdentification,omitempty"`
}

type transcriptionProperties struct {
	WordLevelTimestampsEnabled           bool   `json:"wordLevelTimestampsEnabled"`
	DisplayFormWordLevelTimestampsEnabled bool  `json:"displayFormWordLevelTimestampsEnabled"`
	DiarizationEnabled                   bool   `json:"diarizationEnabled"`
	PunctuationMode                      string `json:"punctuationMode"`
	ProfanityFilterMode                  string `json:"profanityFilterMode"`
}

type languageIdentification struct {
	CandidateLocales []string `json:"candidateLocales"`
	Mode             string   `json:"mode"`
}

type transcriptionResponse struct {
	Self            string    `json:"self"`
	Status          string    `json:"status"`
	DisplayName     string    `json:"displayName"`
	CreatedDateTime time.Time `json:"createdDateTime"`
	Locale          string    `json:"locale"`
	Links           struct {
		Files string `json:"files"`
	} `json:"links"`
}

// maxCandidateLocales is the cap of §4.6/§8: a fifth candidate is
// truncated.
const maxCandidateLocales = 4

// CreateTranscription creates a remote transcription job (§4.6, §6). When
// candidateLocales is non-empty, "identify language at start" mode is
// enabled with the first <=4 candidates.
func (c *Client) CreateTranscription(ctx context.Context, contentURL, locale, displayName string, wordTimestamps, diarization bool, candidateLocales []string) (*core.RemoteJobHandle, error) {
	body := createTranscriptionRequest{
		ContentURLs: []string{contentURL},
		Locale:      locale,
		DisplayName: displayName,
		Properties: transcriptionProperties{
			WordLevelTimestampsEnabled:            wordTimestamps,
			DisplayFormWordLevelTimestampsEnabled:  wordTimestamps,
			DiarizationEnabled:                     diarization,
			PunctuationMode:                        "DictatedAndAutomatic",
			ProfanityFilterMode:                    "None",
		},
	}
	if len(candidateLocales) > 0 {
		capped := candidateLocales
		if len(capped) > maxCandidateLocales {
			capped = capped[:maxCandidateLocales]
		}
		body.LanguageID = &languageIdentification{CandidateLocales: capped, Mode: "Single"}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, core.NewJobError(core.KindRemoteCreateFailure, "encode request body", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.cfg.speechBaseURL()+"/transcriptions", bytes.NewReader(payload))
	if err != nil {
		return nil, core.NewJobError(core.KindRemoteCreateFailure, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Ocp-Apim-Subscription-Key", c.cfg.SpeechKey)

	resp, err := uploadHTTPClient.Do(req)
	if err != nil {
		return nil, core.NewJobError(core.KindRemoteCreateFailure, "request failed", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusCreated {
		return nil, core.NewJobError(core.KindRemoteCreateFailure, string(respBody), nil)
	}

	var parsed transcriptionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, core.NewJobError(core.KindRemoteCreateFailure, "decode response", err)
	}

	return &core.RemoteJobHandle{
		RemoteJobID: lastPathSegment(parsed.Self),
		Locale:      parsed.Locale,
	}, nil
}

func lastPathSegment(url string) string {
	parts := strings.Split(strings.TrimRight(url, "/"), "/")
	return parts[len(parts)-1]
}

type getTranscriptionResponse struct {
	Status string `json:"status"`
	Properties struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	} `json:"properties"`
}

// GetStatus polls the remote job's current status (§4.6).
func (c *Client) GetStatus(ctx context.Context, remoteJobID string) (StatusResult, error) {
	reqCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.cfg.speechBaseURL()+"/transcriptions/"+remoteJobID, nil)
	if err != nil {
		return StatusResult{}, err
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.cfg.SpeechKey)

	resp, err := uploadHTTPClient.Do(req)
	if err != nil {
		return StatusResult{}, err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return StatusResult{}, fmt.Errorf("get transcription status: %d %s", resp.StatusCode, string(respBody))
	}

	var parsed getTranscriptionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return StatusResult{}, err
	}
	return StatusResult{
		Status:       RemoteStatus(parsed.Status),
		ErrorMessage: parsed.Properties.Error.Message,
	}, nil
}

type filesResponse struct {
	Values []struct {
		Kind  string `json:"kind"`
		Links struct {
			ContentURL string `json:"contentUrl"`
		} `json:"links"`
	} `json:"values"`
}

type resultPhrase struct {
	OffsetInTicks   int64  `json:"offsetInTicks"`
	DurationInTicks int64  `json:"durationInTicks"`
	Locale          string `json:"locale"`
	NBest           []struct {
		Display    string  `json:"display"`
		Confidence float64 `json:"confidence"`
	} `json:"nBest"`
}

type resultDocument struct {
	RecognizedPhrases []resultPhrase `json:"recognizedPhrases"`
}

const ticksPerSecond = 10_000_000

// GetResult fetches and parses the completed job's transcription (§4.6).
func (c *Client) GetResult(ctx context.Context, remoteJobID, declaredLocale string) (core.TranscriptionResult, error) {
	filesURL := c.cfg.speechBaseURL() + "/transcriptions/" + remoteJobID + "/files"
	files, err := c.getJSON(ctx, filesURL)
	if err != nil {
		return core.TranscriptionResult{}, core.NewJobError(core.KindRemoteCreateFailure, "fetch result file list", err)
	}
	var parsedFiles filesResponse
	if err := json.Unmarshal(files, &parsedFiles); err != nil {
		return core.TranscriptionResult{}, err
	}

	var contentURL string
	for _, f := range parsedFiles.Values {
		if f.Kind == "Transcription" {
			contentURL = f.Links.ContentURL
			break
		}
	}
	if contentURL == "" {
		return core.TranscriptionResult{}, core.NewJobError(core.KindRemoteCreateFailure, "no Transcription file in result", nil)
	}

	content, err := c.getJSON(ctx, contentURL)
	if err != nil {
		return core.TranscriptionResult{}, core.NewJobError(core.KindRemoteCreateFailure, "download result content", err)
	}
	var doc resultDocument
	if err := json.Unmarshal(content, &doc); err != nil {
		return core.TranscriptionResult{}, err
	}

	result := core.TranscriptionResult{JobID: remoteJobID, Language: declaredLocale}
	var maxEnd float64
	for i, phrase := range doc.RecognizedPhrases {
		if i == 0 && phrase.Locale != "" {
			result.Language = phrase.Locale
		}
		var best struct {
			Display    string
			Confidence float64
		}
		for _, nb := range phrase.NBest {
			if nb.Confidence >= best.Confidence {
				best.Display = nb.Display
				best.Confidence = nb.Confidence
			}
		}
		if strings.TrimSpace(best.Display) == "" {
			continue
		}
		start := float64(phrase.OffsetInTicks) / ticksPerSecond
		end := float64(phrase.OffsetInTicks+phrase.DurationInTicks) / ticksPerSecond
		if end > maxEnd {
			maxEnd = end
		}
		result.Segments = append(result.Segments, core.SubtitleSegment{
			StartSeconds: start,
			EndSeconds:   end,
			Text:         best.Display,
			Confidence:   best.Confidence,
		})
	}
	result.DurationSeconds = maxEnd
	return result, nil
}

func (c *Client) getJSON(ctx context.Context, url string) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.cfg.SpeechKey)

	resp, err := uploadHTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: %d %s", url, resp.StatusCode, string(body))
	}
	return body, nil
}

// DeleteTranscription is a best-effort delete (§4.6, §7): a "still
// running" DeleteNotAllowed rejection is logged and treated as success,
// never retried.
func (c *Client) DeleteTranscription(ctx context.Context, remoteJobID string) error {
	reqCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodDelete, c.cfg.speechBaseURL()+"/transcriptions/"+remoteJobID, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.cfg.SpeechKey)

	resp, err := uploadHTTPClient.Do(req)
	if err != nil {
		if c.log != nil {
			c.log.Warn().Err(err).Str("remoteJobId", remoteJobID).Msg("best-effort remote job delete failed")
		}
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusBadRequest {
		body, _ := io.ReadAll(resp.Body)
		if strings.Contains(string(body), "DeleteNotAllowed") {
			if c.log != nil {
				c.log.Info().Str("remoteJobId", remoteJobID).Msg("remote job still running, delete deferred to the service")
			}
			return nil
		}
	}
	return nil
}

// WaitForCompletion polls GetStatus until the job succeeds, fails, or the
// timeout elapses (§4.6, §5). isCancelled is checked between polls so the
// orchestrator's cancellation semantics are honored without signaling
// across goroutines.
func (c *Client) WaitForCompletion(ctx context.Context, remoteJobID, declaredLocale string, pollInterval, timeout time.Duration, isCancelled func() bool) (core.TranscriptionResult, error) {
	deadline := time.Now().Add(timeout)
	var lastStatus RemoteStatus
	lastLog := time.Now()

	for {
		if isCancelled != nil && isCancelled() {
			return core.TranscriptionResult{}, core.ErrCancelled
		}

		status, err := c.GetStatus(ctx, remoteJobID)
		if err != nil {
			return core.TranscriptionResult{}, core.NewJobError(core.KindRemoteCreateFailure, "poll status", err)
		}

		if status.Status != lastStatus || time.Since(lastLog) > 30*time.Second {
			if c.log != nil {
				c.log.Info().Str("remoteJobId", remoteJobID).Str("status", string(status.Status)).Msg("transcription status")
			}
			lastStatus = status.Status
			lastLog = time.Now()
		}

		switch status.Status {
		case StatusSucceeded:
			return c.GetResult(ctx, remoteJobID, declaredLocale)
		case StatusFailed:
			return core.TranscriptionResult{}, core.NewJobError(core.KindRemoteJobFailed, status.ErrorMessage, nil)
		}

		if time.Now().After(deadline) {
			return core.TranscriptionResult{}, core.NewJobError(core.KindRemoteTimeout, "transcription timed out", nil)
		}

		select {
		case <-ctx.Done():
			return core.TranscriptionResult{}, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}
