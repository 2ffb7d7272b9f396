package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config controls the opt-in file logger.
type Config struct {
	Level        string // minimum level written (debug, info, warn, error)
	Path         string // log file location
	MaxSizeMB    int    // rotation threshold in megabytes
	MaxFiles     int    // rotated files kept
	MirrorStderr bool   // copy log output to stderr
}

// Defaults returns the standard file-logging setup: info level, 10 MB
// rotation, five kept files, mirrored to stderr.
func Defaults() Config {
	return Config{
		Level:        "info",
		Path:         DefaultPath(),
		MaxSizeMB:    10,
		MaxFiles:     5,
		MirrorStderr: true,
	}
}

// Logger is a JSON-structured slog.Logger bound to the rolling file
// behind it.
type Logger struct {
	*slog.Logger
	file *RollingFile
}

// Close flushes and releases the log file.
func (l *Logger) Close() error {
	_ = l.file.Sync()
	return l.file.Close()
}

// Open starts file logging per cfg: a rolling log file at cfg.Path
// holding JSON records at cfg.Level, optionally mirrored to stderr.
// The file's directory is created as needed.
func Open(cfg Config) (*Logger, error) {
	f, err := OpenRollingFile(cfg.Path, cfg.MaxSizeMB, cfg.MaxFiles)
	if err != nil {
		return nil, err
	}

	var sink io.Writer = f
	if cfg.MirrorStderr {
		sink = io.MultiWriter(f, os.Stderr)
	}

	h := slog.NewJSONHandler(sink, &slog.HandlerOptions{
		Level: ParseLevel(cfg.Level),
	})
	return &Logger{Logger: slog.New(h), file: f}, nil
}

var levelNames = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// ParseLevel maps a level name to its slog.Level. Unknown names fall
// back to info, slog's zero level.
func ParseLevel(name string) slog.Level {
	return levelNames[strings.ToLower(name)]
}
