// Package buildinfo carries release metadata stamped in at link time.
package buildinfo

import "fmt"

// Set via -ldflags "-X github.com/settled-dev/settled/internal/buildinfo.Version=..."
// and friends by the release build.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String renders the stamped metadata in the form the CLI reports.
func String() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date)
}
