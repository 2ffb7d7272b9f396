// Package version carries the build identity stamped into mathdex
// binaries.
//
// Release builds inject the values via ldflags:
//
//	go build -ldflags "\
//	  -X github.com/paperlens/mathdex/pkg/version.Version=v1.2.3 \
//	  -X github.com/paperlens/mathdex/pkg/version.Commit=abc1234 \
//	  -X github.com/paperlens/mathdex/pkg/version.Date=2026-08-25"
//
// Unstamped values stay empty and render as "unknown", with the commit
// recovered from the VCS metadata Go embeds when available.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Build identity, overridden through ldflags on release builds.
var (
	// Version is the semantic version, "dev" when unset.
	Version = "dev"

	// Commit is the short git hash the binary was built from.
	Commit = ""

	// Date is the build date in ISO 8601 form.
	Date = ""
)

// Info is the build identity in a JSON-friendly shape.
type Info struct {
	Version  string `json:"version"`
	Commit   string `json:"commit"`
	Date     string `json:"date"`
	Go       string `json:"go"`
	Platform string `json:"platform"`
}

// commit prefers the ldflags value and falls back to the VCS revision
// embedded by the Go toolchain, so plain 'go install' builds still
// report something useful.
func commit() string {
	if Commit != "" {
		return Commit
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" && len(s.Value) >= 7 {
				return s.Value[:7]
			}
		}
	}
	return "unknown"
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

// Current collects the stamped identity plus the runtime platform.
func Current() Info {
	return Info{
		Version:  Version,
		Commit:   commit(),
		Date:     orUnknown(Date),
		Go:       runtime.Version(),
		Platform: runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// String renders the one-line form used by 'mathdex version':
// "mathdex v1.2.3 (commit: abc1234, built: 2026-08-25, go: go1.25.5)".
func (i Info) String() string {
	return fmt.Sprintf("mathdex %s (commit: %s, built: %s, go: %s)",
		i.Version, i.Commit, i.Date, i.Go)
}
