package interval

import "sync"

// History is the Ring shared between the capture goroutine and readers.
// Every method holds the lock only for a bounded copy, append or reset, so
// statistics are always computed on a private snapshot.
type History struct {
	mu   sync.Mutex
	ring *Ring
}

// NewHistory creates a History with the given capacity.
func NewHistory(capacity int) *History {
	return &History{ring: NewRing(capacity)}
}

// Append stores rec, overwriting the oldest record when full.
func (h *History) Append(rec Record) {
	h.mu.Lock()
	h.ring.Push(rec)
	h.mu.Unlock()
}

// Clear discards all records.
func (h *History) Clear() {
	h.mu.Lock()
	h.ring.Clear()
	h.mu.Unlock()
}

// Snapshot returns a chronological copy of all records.
func (h *History) Snapshot() []Record {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ring.Snapshot()
}

// Drain returns a snapshot and clears the history in one critical section,
// so no record appended in between is lost or exported twice.
func (h *History) Drain() []Record {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := h.ring.Snapshot()
	h.ring.Clear()
	return out
}

// Len returns the number of buffered records.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ring.Len()
}

// Cap returns the history capacity.
func (h *History) Cap() int {
	return h.ring.Cap()
}
