// Package version provides build and version information.
package version

import "runtime"

// Version is set via ldflags at build time, defaulting to dev.
var Version = "dev"

// Build information set via ldflags at build time.
var (
	Commit    = "unknown"
	Date      = "unknown"
	GoVersion = runtime.Version()
)
