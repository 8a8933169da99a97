package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gookit/color"
	"github.com/spf13/cobra"
)

var (
	submitServer           string
	submitLanguage         string
	submitFolders          []string
	submitNotifyDownstream bool
	submitApplySkipConfig  bool
)

var submitCmd = &cobra.Command{
	Use:   "submit <file>...",
	Short: "Submit files and folders to a running subgen server's batch API",
	Long: `submit is the interactive batch submitter: it POSTs the given files
and folders to a running server's /api/batch/submit endpoint and prints
the resulting session summary.

Example:
  subgen submit movie.mkv --language en
  subgen submit --folder /movies --folder /tv`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSubmit(args)
	},
}

func init() {
	submitCmd.Flags().StringVar(&submitServer, "server", "http://127.0.0.1:9000", "base URL of the running subgen server")
	submitCmd.Flags().StringVar(&submitLanguage, "language", "", "requested transcription language; when empty the server's configured subtitle language is used")
	submitCmd.Flags().StringArrayVar(&submitFolders, "folder", nil, "folder to expand and submit (repeatable)")
	submitCmd.Flags().BoolVar(&submitNotifyDownstream, "notify-downstream", true, "refresh downstream media indexers once each job completes")
	submitCmd.Flags().BoolVar(&submitApplySkipConfig, "apply-skip-config", true, "apply the configured skip engine rules to each candidate")
	rootCmd.AddCommand(submitCmd)
}

type submitRequestBody struct {
	Files            []string `json:"files"`
	Folders          []string `json:"folders"`
	Language         string   `json:"language,omitempty"`
	NotifyDownstream bool     `json:"notifyDownstream"`
	ApplySkipConfig  bool     `json:"applySkipConfig"`
}

type submitJobView struct {
	ID       string `json:"id"`
	FilePath string `json:"filePath"`
	Status   string `json:"status"`
}

type submitSkippedView struct {
	FilePath string `json:"filePath"`
	Reason   string `json:"reason"`
}

type submitResponseBody struct {
	SessionID string              `json:"sessionId"`
	JobCount  int                 `json:"jobCount"`
	Jobs      []submitJobView     `json:"jobs"`
	Skipped   []submitSkippedView `json:"skipped"`
}

func runSubmit(files []string) error {
	if len(files) == 0 && len(submitFolders) == 0 {
		return fmt.Errorf("submit: no files or --folder flags given")
	}

	body := submitRequestBody{
		Files:            files,
		Folders:          submitFolders,
		Language:         submitLanguage,
		NotifyDownstream: submitNotifyDownstream,
		ApplySkipConfig:  submitApplySkipConfig,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("submit: encode request: %w", err)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(submitServer+"/api/batch/submit", "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("submit: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("submit: read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		var errBody map[string]string
		if jsonErr := json.Unmarshal(raw, &errBody); jsonErr == nil && errBody["error"] != "" {
			return fmt.Errorf("submit: server returned %d: %s", resp.StatusCode, errBody["error"])
		}
		return fmt.Errorf("submit: server returned %d: %s", resp.StatusCode, string(raw))
	}

	var result submitResponseBody
	if err := json.Unmarshal(raw, &result); err != nil {
		return fmt.Errorf("submit: decode response: %w", err)
	}

	color.Green.Printf("session %s: %d job(s) created\n", result.SessionID, result.JobCount)
	for _, j := range result.Jobs {
		fmt.Printf("  %s  %-10s %s\n", j.ID, j.Status, j.FilePath)
	}
	for _, s := range result.Skipped {
		color.Yellow.Printf("  skipped: %s (%s)\n", s.FilePath, s.Reason)
	}
	return nil
}
