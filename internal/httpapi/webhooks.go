package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/timoverbrugghe/subgen-go/internal/core"
)

// activeWebhookJobs is the duplicate-submission guard of
// original_source/app/routers/webhooks.py's module-level _active_jobs map:
// a file path present here already has a webhook-triggered transcription in
// flight. Entries are evicted once that transcription reaches a terminal
// status, not kept forever - a later webhook for the same path after
// completion is a legitimate re-request (e.g. the file changed).
var activeWebhookJobs sync.Map // map[string]struct{}

func markActive(path string) bool {
	_, loaded := activeWebhookJobs.LoadOrStore(path, struct{}{})
	return !loaded
}

func clearActive(path string) {
	activeWebhookJobs.Delete(path)
}

func mountWebhooks(r chi.Router, deps *Deps) {
	r.Post("/webhook/plex", handlePlexWebhook(deps))
	r.Post("/webhook/jellyfin", handleJellyfinWebhook(deps))
	r.Post("/webhook/emby", handleEmbyWebhook(deps))
	r.Post("/webhook/tautulli", handleTautulliWebhook(deps))
	r.Get("/webhook/status", handleWebhookStatus(deps))
}

// webhookOutcome is the small per-request decision result shared by all four
// handlers once they've resolved (event, filePath) down to a single path.
type webhookOutcome struct {
	status string
	path   string
}

// startIfEligible applies the path mapping, existence check, and duplicate
// guard, then - if everything clears - launches the transcription in a
// background goroutine and returns immediately, matching
// start_transcription_task's fire-and-forget scheduling.
func startIfEligible(deps *Deps, rawPath string) webhookOutcome {
	if rawPath == "" {
		return webhookOutcome{status: "no_path"}
	}
	path := deps.Webhook.PathMapping.Apply(rawPath)

	if _, err := os.Stat(path); err != nil {
		return webhookOutcome{status: "file_not_found", path: path}
	}
	if !core.IsMediaFile(path) {
		return webhookOutcome{status: "not_media", path: path}
	}
	if !markActive(path) {
		return webhookOutcome{status: "already_processing", path: path}
	}

	go func() {
		defer clearActive(path)
		_, _, err := deps.Orchestrator.TranscribeFile(
			context.Background(), path, deps.Webhook.SubtitleLanguage, core.SourceWebhook,
			"", "", true, deps.Webhook.NotifyDownstream,
		)
		if err != nil && deps.Log != nil {
			deps.Log.Warn().Err(err).Str("path", path).Msg("webhook transcription failed")
		}
	}()

	return webhookOutcome{status: "processing", path: path}
}

func respondOutcome(w http.ResponseWriter, outcome webhookOutcome) {
	status := http.StatusOK
	if outcome.status == "no_path" {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]string{"status": outcome.status, "filePath": outcome.path})
}

type plexPayload struct {
	Event    string `json:"event"`
	Metadata struct {
		Type     string `json:"type"`
		RatingKey string `json:"ratingKey"`
		Media    []struct {
			Part []struct {
				File string `json:"file"`
			} `json:"Part"`
		} `json:"Media"`
	} `json:"Metadata"`
}

// handlePlexWebhook parses Plex's multipart "payload" JSON field (Plex
// always posts webhooks as multipart/form-data, never bare JSON).
func handlePlexWebhook(deps *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			writeError(w, http.StatusBadRequest, "malformed multipart payload")
			return
		}
		raw := r.FormValue("payload")
		var payload plexPayload
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			writeError(w, http.StatusBadRequest, "malformed payload field")
			return
		}

		if !plexEventTriggers(deps.Webhook, payload.Event) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ignored_event"})
			return
		}

		var filePath string
		if len(payload.Metadata.Media) > 0 && len(payload.Metadata.Media[0].Part) > 0 {
			filePath = payload.Metadata.Media[0].Part[0].File
		}
		respondOutcome(w, startIfEligible(deps, filePath))
	}
}

func plexEventTriggers(cfg WebhookConfig, event string) bool {
	switch event {
	case "library.new":
		return cfg.ProcessAddedMedia
	case "media.play":
		return cfg.ProcessOnPlay
	default:
		return false
	}
}

type jellyfinPayload struct {
	NotificationType string `json:"NotificationType"`
	EventType        string `json:"EventType"`
	ItemId           string `json:"ItemId"`
	ItemType         string `json:"ItemType"`
	Path             string `json:"Path"`
	Item             struct {
		Id   string `json:"Id"`
		Path string `json:"Path"`
		Type string `json:"Type"`
	} `json:"Item"`
}

func (p jellyfinPayload) event() string {
	if p.NotificationType != "" {
		return p.NotificationType
	}
	return p.EventType
}

func (p jellyfinPayload) path() string {
	if p.Path != "" {
		return p.Path
	}
	return p.Item.Path
}

// handleJellyfinWebhook parses Jellyfin's JSON body - its webhook plugin
// emits either {NotificationType,ItemId,Path} or the richer
// {EventType,Item:{Id,Path,Type}} shape depending on plugin version; both
// are accepted (original_source/app/routers/webhooks.py).
func handleJellyfinWebhook(deps *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload jellyfinPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "malformed JSON body")
			return
		}
		if !jellyfinEventTriggers(deps.Webhook, payload.event()) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ignored_event"})
			return
		}
		respondOutcome(w, startIfEligible(deps, payload.path()))
	}
}

func jellyfinEventTriggers(cfg WebhookConfig, event string) bool {
	switch strings.ToLower(event) {
	case "itemadded":
		return cfg.ProcessAddedMedia
	case "playbackstart":
		return cfg.ProcessOnPlay
	default:
		return false
	}
}

type embyPayload struct {
	Event string `json:"Event"`
	Item  struct {
		Id   string `json:"Id"`
		Path string `json:"Path"`
		Type string `json:"Type"`
	} `json:"Item"`
}

func handleEmbyWebhook(deps *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload embyPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "malformed JSON body")
			return
		}
		if !jellyfinEventTriggers(deps.Webhook, payload.Event) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ignored_event"})
			return
		}
		respondOutcome(w, startIfEligible(deps, payload.Item.Path))
	}
}

// handleTautulliWebhook accepts Tautulli's configurable webhook body, which
// users typically wire as form fields but which some Tautulli versions post
// as JSON; both are tried.
func handleTautulliWebhook(deps *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		contentType := r.Header.Get("Content-Type")
		var filePath string
		if strings.HasPrefix(contentType, "application/json") {
			var payload struct {
				File      string `json:"file"`
				MediaType string `json:"media_type"`
			}
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				writeError(w, http.StatusBadRequest, "malformed JSON body")
				return
			}
			filePath = payload.File
		} else {
			if err := r.ParseForm(); err != nil {
				writeError(w, http.StatusBadRequest, "malformed form body")
				return
			}
			filePath = r.FormValue("file")
		}
		respondOutcome(w, startIfEligible(deps, filePath))
	}
}

func handleWebhookStatus(deps *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var paths []string
		activeWebhookJobs.Range(func(key, _ interface{}) bool {
			if len(paths) < 10 {
				paths = append(paths, key.(string))
			}
			return true
		})
		count := 0
		activeWebhookJobs.Range(func(_, _ interface{}) bool { count++; return true })
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"active_jobs": count,
			"job_paths":   paths,
		})
	}
}
