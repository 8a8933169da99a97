package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// mountUI registers the small set of routes a human or a monitoring probe
// hits directly, as opposed to the protocol endpoints driven by other
// software (§2's "UI" component, kept deliberately thin per spec's scope).
func mountUI(r chi.Router, deps *Deps) {
	r.Get("/health", handleHealth(deps))
}

func handleHealth(deps *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	}
}
