package mediaclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// BazarrClient implements the subtitle-manager capability set named in
// spec.md §9: {testConnection, triggerSeriesScan, triggerMovieScan,
// triggerFullScan, lookupSeriesByPath, lookupMovieByPath}
// (original_source/app/bazarr_client.py).
type BazarrClient struct {
	url    string
	apiKey string
	http   *http.Client
	log    *zerolog.Logger
}

func NewBazarrClient(serverURL, apiKey string, log *zerolog.Logger) *BazarrClient {
	return &BazarrClient{
		url:    strings.TrimRight(serverURL, "/"),
		apiKey: apiKey,
		http:   &http.Client{Timeout: 30 * time.Second},
		log:    log,
	}
}

func (b *BazarrClient) Name() string { return "bazarr" }

func (b *BazarrClient) IsConfigured() bool { return b.url != "" && b.apiKey != "" }

func (b *BazarrClient) headers(req *http.Request) {
	req.Header.Set("X-API-KEY", b.apiKey)
	req.Header.Set("Content-Type", "application/json")
}

func (b *BazarrClient) do(ctx context.Context, method, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, err
	}
	b.headers(req)
	return b.http.Do(req)
}

// TestConnection checks Bazarr's system status endpoint.
func (b *BazarrClient) TestConnection(ctx context.Context) bool {
	if !b.IsConfigured() {
		return false
	}
	resp, err := b.do(ctx, http.MethodGet, b.url+"/api/system/status")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func ok(status int) bool { return status == http.StatusOK || status == http.StatusNoContent }

// TriggerSeriesScan runs a disk scan for one series (seriesID>0) or the
// full series-indexing task (seriesID==0).
func (b *BazarrClient) TriggerSeriesScan(ctx context.Context, seriesID int) bool {
	if !b.IsConfigured() {
		return false
	}
	var resp *http.Response
	var err error
	if seriesID > 0 {
		u := b.url + "/api/series?" + url.Values{"seriesid": {strconv.Itoa(seriesID)}, "action": {"scan-disk"}}.Encode()
		resp, err = b.do(ctx, http.MethodPatch, u)
	} else {
		u := b.url + "/api/system/tasks?" + url.Values{"taskid": {"update_series"}}.Encode()
		resp, err = b.do(ctx, http.MethodPost, u)
	}
	if err != nil {
		if b.log != nil {
			b.log.Warn().Err(err).Msg("bazarr: series scan request failed")
		}
		return false
	}
	defer resp.Body.Close()
	return ok(resp.StatusCode)
}

// TriggerMovieScan runs a disk scan for one movie (movieID>0) or the full
// movie-indexing task (movieID==0).
func (b *BazarrClient) TriggerMovieScan(ctx context.Context, movieID int) bool {
	if !b.IsConfigured() {
		return false
	}
	var resp *http.Response
	var err error
	if movieID > 0 {
		u := b.url + "/api/movies?" + url.Values{"radarrid": {strconv.Itoa(movieID)}, "action": {"scan-disk"}}.Encode()
		resp, err = b.do(ctx, http.MethodPatch, u)
	} else {
		u := b.url + "/api/system/tasks?" + url.Values{"taskid": {"update_movies"}}.Encode()
		resp, err = b.do(ctx, http.MethodPost, u)
	}
	if err != nil {
		if b.log != nil {
			b.log.Warn().Err(err).Msg("bazarr: movie scan request failed")
		}
		return false
	}
	defer resp.Body.Close()
	return ok(resp.StatusCode)
}

// TriggerFullScan runs both full series and full movie indexing tasks.
func (b *BazarrClient) TriggerFullScan(ctx context.Context) bool {
	series := b.TriggerSeriesScan(ctx, 0)
	movie := b.TriggerMovieScan(ctx, 0)
	return series || movie
}

// SeriesInfo is the subset of Bazarr's series listing used for path lookup.
type SeriesInfo struct {
	SonarrSeriesID int    `json:"sonarrSeriesId"`
	Path           string `json:"path"`
}

// MovieInfo is the subset of Bazarr's movie listing used for path lookup.
type MovieInfo struct {
	RadarrID int    `json:"radarrId"`
	Path     string `json:"path"`
}

// LookupSeriesByPath finds the Bazarr series whose library path is a prefix
// of path, if any.
func (b *BazarrClient) LookupSeriesByPath(ctx context.Context, path string) (*SeriesInfo, error) {
	if !b.IsConfigured() {
		return nil, nil
	}
	resp, err := b.do(ctx, http.MethodGet, b.url+"/api/series")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, nil
	}
	var parsed struct {
		Data []SeriesInfo `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	for _, s := range parsed.Data {
		if s.Path != "" && strings.HasPrefix(path, s.Path) {
			return &s, nil
		}
	}
	return nil, nil
}

// LookupMovieByPath finds the Bazarr movie whose library path is a prefix
// of path, if any.
func (b *BazarrClient) LookupMovieByPath(ctx context.Context, path string) (*MovieInfo, error) {
	if !b.IsConfigured() {
		return nil, nil
	}
	resp, err := b.do(ctx, http.MethodGet, b.url+"/api/movies")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, nil
	}
	var parsed struct {
		Data []MovieInfo `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	for _, m := range parsed.Data {
		if m.Path != "" && strings.HasPrefix(path, m.Path) {
			return &m, nil
		}
	}
	return nil, nil
}

// RefreshByFilePath implements core.IndexerClient: looks up the matching
// series, then movie, falling back to a full scan when neither matches
// (SPEC_FULL §4's scan-targeting enrichment over a blind full scan).
func (b *BazarrClient) RefreshByFilePath(ctx context.Context, filePath string) error {
	if series, err := b.LookupSeriesByPath(ctx, filePath); err == nil && series != nil && series.SonarrSeriesID > 0 {
		if b.TriggerSeriesScan(ctx, series.SonarrSeriesID) {
			return nil
		}
	}
	if movie, err := b.LookupMovieByPath(ctx, filePath); err == nil && movie != nil && movie.RadarrID > 0 {
		if b.TriggerMovieScan(ctx, movie.RadarrID) {
			return nil
		}
	}
	if b.TriggerFullScan(ctx) {
		return nil
	}
	if !b.IsConfigured() {
		return errBazarrNotConfigured
	}
	return errBazarrRefreshFailed
}

var (
	errBazarrNotConfigured = errors.New("bazarr: not configured")
	errBazarrRefreshFailed = errors.New("bazarr: refresh failed")
)
