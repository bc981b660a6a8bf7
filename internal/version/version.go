// Package version holds build information for the fakedetect binaries.
package version

// Set at build time with -ldflags "-X fakedetect/internal/version.Version=..."
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
