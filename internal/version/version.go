// Package version exposes the build metadata stamped by the linker.
package version

import (
	"fmt"
	"strings"
)

// Set at build time via -ldflags "-X wg-console/internal/version.AppVersion=...".
var (
	AppVersion = "dev"
	GitCommit  = "unknown"
	BuildTime  = "unknown"
)

// Info describes the running binary.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

// Current returns the stamped metadata with blanks normalized, so callers
// never render an empty version string.
func Current() Info {
	return Info{
		Version:   orDefault(AppVersion, "dev"),
		Commit:    orDefault(GitCommit, "unknown"),
		BuildTime: orDefault(BuildTime, "unknown"),
	}
}

// String renders the one-line banner used by logs and --version output.
func (i Info) String() string {
	return fmt.Sprintf("wg-console %s (commit %s, built %s)", i.Version, i.Commit, i.BuildTime)
}

func orDefault(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}
