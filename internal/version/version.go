// Package version holds build information for the survey-coder binaries.
// Release builds inject it with -ldflags:
//
// -X github.com/ferro-labs/survey-coder/internal/version.Version=v0.3.0
// -X github.com/ferro-labs/survey-coder/internal/version.Commit=abc1234
// -X github.com/ferro-labs/survey-coder/internal/version.Date=2026-10-01T00:00:00Z
//
// Local builds fall back to the VCS stamp the Go toolchain embeds.
package version

import (
	"fmt"
	"runtime/debug"
	"sync"
)

// Set at link time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var fillOnce sync.Once

// fill copies vcs.revision and vcs.time from the build info when ldflags
// left the defaults in place.
func fill() {
	fillOnce.Do(func() {
		info, ok := debug.ReadBuildInfo()
		if !ok {
			return
		}
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				if Commit == "none" && s.Value != "" {
					Commit = s.Value
					if len(Commit) > 7 {
						Commit = Commit[:7]
					}
				}
			case "vcs.time":
				if Date == "unknown" && s.Value != "" {
					Date = s.Value
				}
			}
		}
	})
}

// String returns e.g. "v0.3.0 (commit abc1234, built 2026-10-01T00:00:00Z)".
func String() string {
	fill()
	return fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, Date)
}

// Short returns just the version tag.
func Short() string {
	return Version
}
