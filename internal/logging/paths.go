package logging

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultDir returns ~/.mathdex/logs, falling back to the temp
// directory when no home directory is available.
func DefaultDir() string {
	base, err := os.UserHomeDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, ".mathdex", "logs")
}

// DefaultPath returns the default log file location.
func DefaultPath() string {
	return filepath.Join(DefaultDir(), "mathdex.log")
}

// FindLog locates the log file for viewing. A requested path wins when
// given; otherwise the default location is tried.
func FindLog(requested string) (string, error) {
	if requested != "" {
		if exists(requested) {
			return requested, nil
		}
		return "", fmt.Errorf("log file not found: %s", requested)
	}

	if p := DefaultPath(); exists(p) {
		return p, nil
	}
	return "", fmt.Errorf("no log file found. Run a command with --debug first.\nExpected at: %s", DefaultPath())
}
