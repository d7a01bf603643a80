// Package version holds build-time metadata, overridden via -ldflags at
// release time the way the teacher's own command does.
package version

var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)
