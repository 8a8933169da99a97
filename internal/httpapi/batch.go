package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/timoverbrugghe/subgen-go/internal/core"
)

func mountBatch(r chi.Router, deps *Deps) {
	r.Post("/api/batch/submit", handleBatchSubmit(deps))
	r.Get("/api/batch/session/{id}", handleBatchSessionGet(deps))
	r.Get("/api/batch/sessions", handleBatchSessionsList(deps))
	r.Post("/api/batch/session/{id}/cancel", handleBatchSessionCancel(deps))
	r.Delete("/api/batch/session/{id}", handleBatchSessionDelete(deps))
}

type batchSubmitRequest struct {
	Files            []string `json:"files"`
	Folders          []string `json:"folders"`
	Language         string   `json:"language"`
	NotifyDownstream bool     `json:"notifyDownstream"`
	ApplySkipConfig  bool     `json:"applySkipConfig"`
}

type jobView struct {
	ID       string `json:"id"`
	FilePath string `json:"filePath"`
	Status   string `json:"status"`
}

type skippedView struct {
	FilePath string `json:"filePath"`
	Reason   string `json:"reason"`
}

func jobViews(jobs []*core.Job) []jobView {
	out := make([]jobView, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, jobView{ID: j.JobID, FilePath: j.FilePath, Status: string(j.Status)})
	}
	return out
}

func skippedViews(entries []core.SkippedEntry) []skippedView {
	out := make([]skippedView, 0, len(entries))
	for _, e := range entries {
		out = append(out, skippedView{FilePath: e.FilePath, Reason: e.Reason})
	}
	return out
}

func handleBatchSubmit(deps *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req batchSubmitRequest
		if err := decodeJSONBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		language := req.Language
		if language == "" {
			language = deps.Webhook.SubtitleLanguage
		}

		sess, err := deps.Batch.Submit(r.Context(), req.Files, req.Folders, language, req.NotifyDownstream, req.ApplySkipConfig, deps.SkipConfig)
		if err != nil {
			var batchErr *core.BatchError
			if errors.As(err, &batchErr) {
				writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
					"sessionId": sess.SessionID,
					"jobCount":  0,
					"jobs":      []jobView{},
					"skipped":   skippedViews(batchErr.Skipped),
					"reason":    string(batchErr.Reason),
				})
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		// sess is the live session the background fan-out goroutine may
		// already be mutating via UpdateJobStatus; re-fetch a point-in-time
		// snapshot rather than read its job statuses directly.
		snapshot, _ := deps.Store.GetSession(sess.SessionID)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"sessionId": snapshot.SessionID,
			"jobCount":  len(snapshot.OrderedJobs()),
			"jobs":      jobViews(snapshot.OrderedJobs()),
			"skipped":   skippedViews(snapshot.Skipped),
		})
	}
}

func sessionView(sess *core.Session) map[string]interface{} {
	return map[string]interface{}{
		"sessionId": sess.SessionID,
		"source":    sess.Source,
		"createdAt": sess.CreatedAt.Format(time.RFC3339),
		"jobs":      jobViews(sess.OrderedJobs()),
		"skipped":   skippedViews(sess.Skipped),
	}
}

func handleBatchSessionGet(deps *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		sess, ok := deps.Store.GetSession(id)
		if !ok {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		writeJSON(w, http.StatusOK, sessionView(sess))
	}
}

func handleBatchSessionsList(deps *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessions := deps.Store.ListSessions()
		views := make([]map[string]interface{}, 0, len(sessions))
		for _, sess := range sessions {
			views = append(views, sessionView(sess))
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": views})
	}
}

func handleBatchSessionCancel(deps *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if _, ok := deps.Store.GetSession(id); !ok {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		result := deps.Orchestrator.CancelSession(r.Context(), id)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"cancelled":    result.Cancelled,
			"cleanedBlobs": result.CleanedBlobs,
			"errors":       result.Errors,
		})
	}
}

func handleBatchSessionDelete(deps *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if !deps.Store.DeleteSession(id) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

// decodeJSONBody is a tiny shared helper so every batch endpoint rejects a
// malformed body the same way.
func decodeJSONBody(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
