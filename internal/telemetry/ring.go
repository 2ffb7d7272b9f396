package telemetry

import "sync"

const defaultRingCap = 100

// Ring keeps the most recent values written to it, evicting the oldest
// once it reaches capacity.
type Ring[T any] struct {
	mu      sync.RWMutex
	slots   []T
	w       int
	wrapped bool
}

// NewRing creates a ring holding up to capacity values. Non-positive
// capacities fall back to defaultRingCap.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = defaultRingCap
	}
	return &Ring[T]{slots: make([]T, capacity)}
}

// Add writes a value, evicting the oldest once the ring is full.
func (r *Ring[T]) Add(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.slots[r.w] = v
	r.w++
	if r.w == len(r.slots) {
		r.w = 0
		r.wrapped = true
	}
}

// Items returns the buffered values oldest first. Always non-nil.
func (r *Ring[T]) Items() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.wrapped {
		return append([]T{}, r.slots[:r.w]...)
	}
	out := make([]T, len(r.slots))
	n := copy(out, r.slots[r.w:])
	copy(out[n:], r.slots[:r.w])
	return out
}

// Len returns the number of buffered values.
func (r *Ring[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.wrapped {
		return len(r.slots)
	}
	return r.w
}

// Reset empties the ring.
func (r *Ring[T]) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.w = 0
	r.wrapped = false
}
