// Package version carries the build identity stamped in via ldflags:
//
//	go build -ldflags "-X sitewright/internal/version.Version=v1.4.0"
package version

import "fmt"

// Version is the release tag, or "dev" for untagged builds.
var Version = "dev"

// Build metadata, stamped alongside Version.
var (
	Commit    = "unknown"
	BuildTime = "unknown"
)

// String renders the line the CLI prints for --version.
func String() string {
	return fmt.Sprintf("sitewright %s (commit %s, built %s)", Version, Commit, BuildTime)
}
