package mediaclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// JellyfinClient is a thin REST client shared by Jellyfin and Emby - the two
// APIs differ only in the Emby product name used in log lines
// (original_source/app/utils/media_server_client.py's JellyfinClient).
type JellyfinClient struct {
	server string
	token  string
	isEmby bool
	http   *http.Client
	log    *zerolog.Logger
}

func NewJellyfinClient(server, token string, isEmby bool, log *zerolog.Logger) *JellyfinClient {
	return &JellyfinClient{
		server: strings.TrimRight(server, "/"),
		token:  token,
		isEmby: isEmby,
		http:   &http.Client{Timeout: 30 * time.Second},
		log:    log,
	}
}

func (j *JellyfinClient) Name() string {
	if j.isEmby {
		return "emby"
	}
	return "jellyfin"
}

func (j *JellyfinClient) IsConfigured() bool { return j.server != "" && j.token != "" }

func (j *JellyfinClient) do(ctx context.Context, method, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", fmt.Sprintf("MediaBrowser Token=%s", j.token))
	return j.http.Do(req)
}

func (j *JellyfinClient) RefreshByItemID(ctx context.Context, itemID string) error {
	if !j.IsConfigured() {
		return fmt.Errorf("%s: not configured", j.Name())
	}
	resp, err := j.do(ctx, http.MethodPost, j.server+"/Items/"+itemID+"/Refresh")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("%s: metadata refresh failed: HTTP %d", j.Name(), resp.StatusCode)
	}
	return nil
}

func (j *JellyfinClient) GetFilePath(ctx context.Context, itemID string) (string, error) {
	if !j.IsConfigured() {
		return "", nil
	}
	resp, err := j.do(ctx, http.MethodGet, j.server+"/Items/"+itemID)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s: get item failed: HTTP %d", j.Name(), resp.StatusCode)
	}
	var parsed struct {
		Path string `json:"Path"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	return parsed.Path, nil
}

// RefreshByFilePath searches by filename stem, then refreshes the first
// exact path match - Jellyfin/Emby expose no "refresh by path" primitive.
func (j *JellyfinClient) RefreshByFilePath(ctx context.Context, filePath string) error {
	if !j.IsConfigured() {
		return errors.New(j.Name() + ": not configured")
	}
	stem := strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath))
	params := url.Values{
		"searchTerm":       {stem},
		"IncludeItemTypes": {"Episode,Movie"},
		"Recursive":        {"true"},
		"Fields":           {"Path"},
		"Limit":            {"20"},
	}
	resp, err := j.do(ctx, http.MethodGet, j.server+"/Items?"+params.Encode())
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: search failed: HTTP %d", j.Name(), resp.StatusCode)
	}
	var parsed struct {
		Items []struct {
			Id   string `json:"Id"`
			Path string `json:"Path"`
		} `json:"Items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return err
	}
	for _, item := range parsed.Items {
		if item.Path == filePath {
			return j.RefreshByItemID(ctx, item.Id)
		}
	}
	if j.log != nil {
		j.log.Info().Str("path", filePath).Str("server", j.Name()).Msg("no item found for path")
	}
	return nil
}
