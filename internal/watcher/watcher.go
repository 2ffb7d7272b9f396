package watcher

import "time"

// Change classifies a filesystem event.
type Change int

const (
	Created Change = iota
	Modified
	Deleted
	Renamed
)

var changeNames = [...]string{
	Created:  "created",
	Modified: "modified",
	Deleted:  "deleted",
	Renamed:  "renamed",
}

// String returns the change name in log form.
func (c Change) String() string {
	if c < 0 || int(c) >= len(changeNames) {
		return "unknown"
	}
	return changeNames[c]
}

// Event is one observed change to a watched document. Paths are
// absolute. A deleted or renamed directory arrives with IsDir set so
// consumers can prune everything under it.
type Event struct {
	Path   string
	Change Change
	IsDir  bool
}

// Config tunes watcher behavior. Zero values mean defaults.
type Config struct {
	// Debounce is how long to coalesce events before emitting a batch.
	Debounce time.Duration

	// BufferSize caps queued batches between emitter and consumer.
	BufferSize int

	// Extensions restricts which files under watched directories are
	// reported. Files named explicitly in Start always are.
	Extensions []string
}

// withDefaults fills zero-valued fields with the standard tuning: a
// half-second debounce window and the document extensions mathdex
// analyzes.
func (c Config) withDefaults() Config {
	if c.Debounce <= 0 {
		c.Debounce = 500 * time.Millisecond
	}
	if c.BufferSize <= 0 {
		c.BufferSize = 1000
	}
	if len(c.Extensions) == 0 {
		c.Extensions = []string{".tex", ".md", ".markdown", ".txt"}
	}
	return c
}
