// Package version holds the build-time version/commit/branch stamped into
// the binary via -ldflags, surfaced by the ASR protocol's GET /status.
package version

import "fmt"

// Variables set via -ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Branch  = "unknown"
)

// Info is the version metadata reported over the wire.
type Info struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Branch  string `json:"branch"`
}

// GetInfo returns the current build's version metadata.
func GetInfo() Info {
	return Info{Version: Version, Commit: Commit, Branch: Branch}
}

// String implements fmt.Stringer for pretty-printing on the terminal.
func (i Info) String() string {
	return fmt.Sprintf("Version: %s\nCommit: %s\nBranch: %s\n", i.Version, i.Commit, i.Branch)
}

// StatusString renders the "<product> X.Y.Z, ..." form the ASR protocol's
// GET /status returns as its version field (§6).
func (i Info) StatusString() string {
	return fmt.Sprintf("subgen %s, commit %s, branch %s", i.Version, i.Commit, i.Branch)
}
