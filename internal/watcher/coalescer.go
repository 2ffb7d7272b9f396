package watcher

import (
	"log/slog"
	"sync"
	"time"
)

// Coalescer folds rapid file events together so an editor save burst or
// a git checkout produces one event per document. Within the window,
// events for the same path merge: a create followed by modifies stays a
// create, a create followed by a delete cancels out entirely, and a
// delete followed by a recreate collapses into a modify.
type Coalescer struct {
	wait    time.Duration
	mu      sync.Mutex
	pending map[string]*pendingChange
	batches chan []Event
	delay   *time.Timer
	closed  bool
}

// pendingChange remembers the first change seen in the window; the
// merge rules key off it, not off whatever the event merged into.
type pendingChange struct {
	event Event
	first Change
}

// NewCoalescer creates a coalescer that releases batches after the
// given window of quiet.
func NewCoalescer(window time.Duration) *Coalescer {
	return &Coalescer{
		wait:    window,
		pending: make(map[string]*pendingChange),
		batches: make(chan []Event, 10),
	}
}

// Add queues an event, merging it with any pending event for the same
// path.
func (c *Coalescer) Add(event Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	existing, ok := c.pending[event.Path]
	if !ok {
		c.pending[event.Path] = &pendingChange{event: event, first: event.Change}
	} else if merged, keep := coalesce(existing.first, existing.event, event); keep {
		existing.event = merged
	} else {
		delete(c.pending, event.Path)
	}
	c.rearm()
}

// coalesce merges an incoming event into the pending one for the same
// path. Returns keep=false when the events cancel out.
func coalesce(first Change, pending, incoming Event) (Event, bool) {
	switch first {
	case Created:
		switch incoming.Change {
		case Modified:
			// Consumers still see a brand new file.
			return pending, true
		case Deleted:
			return Event{}, false
		}
	case Deleted:
		if incoming.Change == Created {
			// Delete-then-recreate is how many editors save.
			incoming.Change = Modified
			return incoming, true
		}
	}
	return incoming, true
}

// rearm resets the release timer to fire one window from now.
func (c *Coalescer) rearm() {
	if c.delay != nil {
		c.delay.Stop()
	}
	c.delay = time.AfterFunc(c.wait, c.release)
}

// release emits all pending events as a single batch. The send happens
// under the mutex so it cannot race a concurrent Stop closing the
// channel.
func (c *Coalescer) release() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || len(c.pending) == 0 {
		return
	}

	batch := make([]Event, 0, len(c.pending))
	for _, pc := range c.pending {
		batch = append(batch, pc.event)
	}
	clear(c.pending)

	select {
	case c.batches <- batch:
	default:
		// Consumer fell behind; drop rather than stall the event loop.
		slog.Warn("coalescer output full, dropping batch", slog.Int("events", len(batch)))
	}
}

// Output returns the channel of coalesced event batches.
func (c *Coalescer) Output() <-chan []Event {
	return c.batches
}

// Stop shuts the coalescer down and closes the output channel. Calling
// it again is a no-op.
func (c *Coalescer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true

	if c.delay != nil {
		c.delay.Stop()
	}
	close(c.batches)
}
