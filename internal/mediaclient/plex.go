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

// PlexClient is a thin REST client for Plex Media Server's library API
// (original_source/app/utils/media_server_client.py's PlexClient).
type PlexClient struct {
	server string
	token  string
	http   *http.Client
	log    *zerolog.Logger
}

func NewPlexClient(server, token string, log *zerolog.Logger) *PlexClient {
	return &PlexClient{
		server: strings.TrimRight(server, "/"),
		token:  token,
		http:   &http.Client{Timeout: 30 * time.Second},
		log:    log,
	}
}

func (p *PlexClient) Name() string { return "plex" }

func (p *PlexClient) IsConfigured() bool { return p.server != "" && p.token != "" }

func (p *PlexClient) do(ctx context.Context, method, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Plex-Token", p.token)
	req.Header.Set("Accept", "application/json")
	return p.http.Do(req)
}

// RefreshByItemID tells Plex to re-scan a library item by its rating key.
func (p *PlexClient) RefreshByItemID(ctx context.Context, itemID string) error {
	if !p.IsConfigured() {
		return errors.New("plex: not configured")
	}
	resp, err := p.do(ctx, http.MethodPut, p.server+"/library/metadata/"+itemID+"/refresh")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("plex: metadata refresh failed: HTTP %d", resp.StatusCode)
	}
	return nil
}

type plexMetadataResponse struct {
	MediaContainer struct {
		Metadata []struct {
			Media []struct {
				Part []struct {
					File string `json:"file"`
				} `json:"Part"`
			} `json:"Media"`
		} `json:"Metadata"`
	} `json:"MediaContainer"`
}

func (p *PlexClient) GetFilePath(ctx context.Context, itemID string) (string, error) {
	if !p.IsConfigured() {
		return "", nil
	}
	resp, err := p.do(ctx, http.MethodGet, p.server+"/library/metadata/"+itemID)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("plex: get item failed: HTTP %d", resp.StatusCode)
	}
	var parsed plexMetadataResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	if len(parsed.MediaContainer.Metadata) == 0 || len(parsed.MediaContainer.Metadata[0].Media) == 0 ||
		len(parsed.MediaContainer.Metadata[0].Media[0].Part) == 0 {
		return "", nil
	}
	return parsed.MediaContainer.Metadata[0].Media[0].Part[0].File, nil
}

type plexLibrarySection struct {
	Key       string
	Locations []string
}

func (p *PlexClient) librarySections(ctx context.Context) ([]plexLibrarySection, error) {
	resp, err := p.do(ctx, http.MethodGet, p.server+"/library/sections")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("plex: get library sections failed: HTTP %d", resp.StatusCode)
	}
	var parsed struct {
		MediaContainer struct {
			Directory []struct {
				Key      string `json:"key"`
				Location []struct {
					Path string `json:"path"`
				} `json:"Location"`
			} `json:"Directory"`
		} `json:"MediaContainer"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	sections := make([]plexLibrarySection, 0, len(parsed.MediaContainer.Directory))
	for _, dir := range parsed.MediaContainer.Directory {
		var locs []string
		for _, l := range dir.Location {
			locs = append(locs, l.Path)
		}
		sections = append(sections, plexLibrarySection{Key: dir.Key, Locations: locs})
	}
	return sections, nil
}

func (p *PlexClient) refreshSectionPath(ctx context.Context, sectionKey, path string) error {
	u := p.server + "/library/sections/" + sectionKey + "/refresh?" + url.Values{"path": {path}}.Encode()
	resp, err := p.do(ctx, http.MethodGet, u)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("plex: partial scan failed: HTTP %d", resp.StatusCode)
	}
	return nil
}

// RefreshByFilePath finds the library section containing filePath and
// triggers a partial scan of its parent directory, the most reliable path
// to make Plex pick up a freshly written subtitle.
func (p *PlexClient) RefreshByFilePath(ctx context.Context, filePath string) error {
	if !p.IsConfigured() {
		return errors.New("plex: not configured")
	}
	sections, err := p.librarySections(ctx)
	if err != nil {
		return err
	}
	for _, s := range sections {
		for _, loc := range s.Locations {
			if strings.HasPrefix(filePath, loc) {
				return p.refreshSectionPath(ctx, s.Key, filepath.Dir(filePath))
			}
		}
	}
	if p.log != nil {
		p.log.Info().Str("path", filePath).Msg("plex: no library found containing path")
	}
	return nil
}
