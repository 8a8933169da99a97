package mediaclient

import "github.com/rs/zerolog"

// NewEmbyClient builds a JellyfinClient configured for Emby's API surface,
// which differs from Jellyfin's only in the product name used in logs.
func NewEmbyClient(server, token string, log *zerolog.Logger) *JellyfinClient {
	return NewJellyfinClient(server, token, true, log)
}
