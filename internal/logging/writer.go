package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// RollingFile is an io.Writer that rolls its file over once it reaches
// a size limit. Rollovers shift mathdex.log to mathdex.log.1, .1 to .2
// and so on, dropping the oldest. Every write syncs to disk so that
// `mathdex logs -f` sees entries as they land.
type RollingFile struct {
	path  string
	limit int64
	keep  int

	mu   sync.Mutex
	file *os.File
	size int64
}

// OpenRollingFile opens path for appending, creating its directory if
// needed. maxSizeMB caps each file; maxFiles caps how many rolled files
// stay around.
func OpenRollingFile(path string, maxSizeMB, maxFiles int) (*RollingFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	rf := &RollingFile{path: path, limit: int64(maxSizeMB) * 1024 * 1024, keep: maxFiles}
	if err := rf.open(); err != nil {
		return nil, err
	}
	return rf, nil
}

// Write appends p, rolling over first when it would push the file past
// the size limit.
func (f *RollingFile) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.size+int64(len(p)) > f.limit {
		if rerr := f.roll(); rerr != nil {
			// Keep logging into the current file rather than drop entries.
			_, _ = fmt.Fprintf(os.Stderr, "log rotation failed: %v\n", rerr)
		}
	}

	n, err := f.file.Write(p)
	f.size += int64(n)
	if err == nil {
		_ = f.file.Sync()
	}
	return n, err
}

// Close releases the log file.
func (f *RollingFile) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.file == nil {
		return nil
	}
	return f.file.Close()
}

// Sync forces buffered log data to disk.
func (f *RollingFile) Sync() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.file == nil {
		return nil
	}
	return f.file.Sync()
}

// open opens the log file for appending and records its current size.
func (f *RollingFile) open() error {
	const flags = os.O_CREATE | os.O_APPEND | os.O_WRONLY
	fh, err := os.OpenFile(f.path, flags, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	st, err := fh.Stat()
	if err != nil {
		_ = fh.Close()
		return fmt.Errorf("stat log file: %w", err)
	}

	f.file = fh
	f.size = st.Size()
	return nil
}

// roll shifts every rolled file up one slot and reopens a fresh log.
// Callers hold the mutex.
func (f *RollingFile) roll() error {
	if f.file != nil {
		if err := f.file.Close(); err != nil {
			return fmt.Errorf("close log file: %w", err)
		}
		f.file = nil
	}

	// The highest slot falls off the end.
	_ = os.Remove(f.slot(f.keep))
	for n := f.keep - 1; n >= 1; n-- {
		if from := f.slot(n); exists(from) {
			_ = os.Rename(from, f.slot(n+1))
		}
	}

	if exists(f.path) {
		if err := os.Rename(f.path, f.slot(1)); err != nil {
			return fmt.Errorf("rotate log file: %w", err)
		}
	}

	f.size = 0
	return f.open()
}

func (f *RollingFile) slot(n int) string {
	return fmt.Sprintf("%s.%d", f.path, n)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
