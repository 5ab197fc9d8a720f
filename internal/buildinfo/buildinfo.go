// Package buildinfo carries the build metadata of the binaries, set at link time with
// -ldflags "-X github.com/l7mp/incremental/internal/buildinfo.version=...".
package buildinfo

import "fmt"

var (
	version    = "dev"
	commitHash = "n/a"
	buildDate  = "<unknown>"
)

// BuildInfo holds all sorts of information about the build of an executable artifact.
type BuildInfo struct {
	Version    string
	CommitHash string
	BuildDate  string
}

// Current returns the metadata linked into the running binary.
func Current() BuildInfo {
	return BuildInfo{Version: version, CommitHash: commitHash, BuildDate: buildDate}
}

// String returns the build info as a string.
func (i BuildInfo) String() string {
	return fmt.Sprintf("version %s (%s) built on %s", i.Version, i.CommitHash, i.BuildDate)
}

// KeysAndValues returns the metadata as logr key/value pairs.
func (i BuildInfo) KeysAndValues() []any {
	return []any{"version", i.Version, "commit", i.CommitHash, "built", i.BuildDate}
}
