// Package notify implements the Failure Notifier named in spec.md §2's
// component list: a fire-and-forget Pushover notification fired when a job
// transitions to failed (original_source/app/notification_service.py).
// Notification failures never propagate - they are logged and swallowed,
// matching the Python original's "graceful degradation" design note.
package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const pushoverAPIURL = "https://api.pushover.net/1/messages.json"

// Config mirrors NotificationConfig's PUSHOVER_USER_KEY/PUSHOVER_API_TOKEN/
// NOTIFY_ON_FAILURE environment variables.
type Config struct {
	PushoverUserKey  string
	PushoverAPIToken string
	NotifyOnFailure  bool
}

func (c Config) pushoverConfigured() bool {
	return c.PushoverUserKey != "" && c.PushoverAPIToken != ""
}

// Notifier is the process-wide notification service. One HTTP connection
// pool is held for the process lifetime (§5's "Notification singleton"),
// matching the teacher's single-client-per-component idiom.
type Notifier struct {
	cfg  Config
	http *http.Client
	log  *zerolog.Logger
}

func New(cfg Config, log *zerolog.Logger) *Notifier {
	return &Notifier{
		cfg:  cfg,
		http: &http.Client{Timeout: 15 * time.Second},
		log:  log,
	}
}

// NotifyJobFailed sends a best-effort Pushover alert for a failed
// transcription job. It never returns an error: callers (the Store's
// fire-and-forget onFail hook) have nothing useful to do with one.
func (n *Notifier) NotifyJobFailed(ctx context.Context, filePath, errMsg, jobID, source string) {
	if !n.cfg.NotifyOnFailure || !n.cfg.pushoverConfigured() {
		return
	}

	title := "subgen: transcription failed"
	lines := []string{"File: " + filepath.Base(filePath)}
	if source != "" {
		lines = append(lines, "Source: "+source)
	}
	if jobID != "" {
		short := jobID
		if len(short) > 8 {
			short = short[:8]
		}
		lines = append(lines, "Job ID: "+short+"...")
	}
	lines = append(lines, "", "Error: "+errMsg)
	message := strings.Join(lines, "\n")

	if err := n.sendPushover(ctx, title, message); err != nil && n.log != nil {
		n.log.Warn().Err(err).Str("path", filePath).Msg("pushover notification failed")
	}
}

func (n *Notifier) sendPushover(ctx context.Context, title, message string) error {
	form := url.Values{
		"token":    {n.cfg.PushoverAPIToken},
		"user":     {n.cfg.PushoverUserKey},
		"title":    {title},
		"message":  {message},
		"priority": {"0"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, pushoverAPIURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("pushover: HTTP %d", resp.StatusCode)
	}
	if n.log != nil {
		n.log.Info().Str("title", title).Msg("pushover notification sent")
	}
	return nil
}
