// Package mediaclient implements the downstream indexer clients named in
// spec.md §9: Plex, Jellyfin, and Emby behind one shared capability
// interface, plus a separately-shaped Bazarr client. All methods are
// best-effort: failures are reported as errors but never panic, so the
// Orchestrator's step-10 fan-out (internal/core) can treat every client
// uniformly.
package mediaclient

import "context"

// MediaServerClient is the shared capability set of the Plex/Jellyfin/Emby
// clients (original_source/app/utils/media_server_client.py).
type MediaServerClient interface {
	Name() string
	IsConfigured() bool
	RefreshByItemID(ctx context.Context, itemID string) error
	RefreshByFilePath(ctx context.Context, filePath string) error
	GetFilePath(ctx context.Context, itemID string) (string, error)
}
