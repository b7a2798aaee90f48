// Package version holds build information injected at link time, e.g.
// go build -ldflags "-X legalflow/pkg/version.Version=v1.2.3".
package version

import "fmt"

//nolint:gochecknoglobals // set via ldflags
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String formats the build information on one line.
func String() string {
	return fmt.Sprintf("legalflow %s (commit %s, built %s)", Version, Commit, Date)
}
