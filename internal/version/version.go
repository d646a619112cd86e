// Package version exposes build-time version information for the devserve
// binary, populated via -ldflags at release time.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// These variables are set at build time using -ldflags.
var (
	// Version is the semantic version of the application.
	Version = "dev"

	// GitCommit is the git commit hash when the binary was built.
	GitCommit = "unknown"
)

// GetVersion returns the application version, falling back to module build
// info when no release version was stamped in.
func GetVersion() string {
	if Version != "" && Version != "dev" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			return info.Main.Version
		}
	}
	return Version
}

// GetShortVersion returns a one-line version string for banners.
func GetShortVersion() string {
	commit := GitCommit
	if len(commit) > 8 {
		commit = commit[:8]
	}
	return fmt.Sprintf("%s (%s, %s/%s)", GetVersion(), commit, runtime.GOOS, runtime.GOARCH)
}
