// Package version provides build and version information for Quarry.
package version

import (
	"fmt"
	"runtime"
)

// Version is the current version, set via ldflags at build time:
//
//	-X github.com/quarrylabs/quarry/pkg/version.Version=$(VERSION)
var Version = "dev"

// Build information set via ldflags at build time.
var (
	// Commit is the git commit hash.
	Commit = "unknown"

	// Date is the build date in RFC3339 format.
	Date = "unknown"

	// GoVersion is the Go version used to build the binary.
	GoVersion = runtime.Version()
)

// String returns a human-readable version line.
func String() string {
	return fmt.Sprintf("quarry %s (commit %s, built %s, %s)", Version, Commit, Date, GoVersion)
}
