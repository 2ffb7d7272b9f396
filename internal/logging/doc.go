// Package logging provides opt-in file-based logging with rotation for mathdex.
// When the --debug flag is set, comprehensive logs are written to ~/.mathdex/logs/
// without interfering with terminal output.
package logging
