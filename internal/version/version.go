// Package version holds build metadata injected with -ldflags.
package version

import "runtime"

var (
	Commit    = "dev"
	Ref       = "local"
	BuildTime = "unknown"
)

func GoVersion() string {
	return runtime.Version()
}
