package interval

// Ring is a fixed-capacity circular store of Records. When full, Push
// overwrites the oldest entry. The backing array is allocated once.
//
// Ring is not safe for concurrent use; History wraps it with a mutex.
type Ring struct {
	buf   []Record
	head  int // index of the oldest record
	count int
}

// NewRing allocates a ring holding up to capacity records. A non-positive
// capacity is replaced with DefaultCapacity.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ring{buf: make([]Record, capacity)}
}

// Push appends r, evicting the oldest record when the ring is full.
func (r *Ring) Push(rec Record) {
	if r.count < len(r.buf) {
		r.buf[(r.head+r.count)%len(r.buf)] = rec
		r.count++
		return
	}
	r.buf[r.head] = rec
	r.head = (r.head + 1) % len(r.buf)
}

// Clear empties the ring without releasing its storage.
func (r *Ring) Clear() {
	r.head = 0
	r.count = 0
}

// Len returns the number of stored records.
func (r *Ring) Len() int {
	return r.count
}

// Cap returns the fixed capacity.
func (r *Ring) Cap() int {
	return len(r.buf)
}

// Snapshot copies the records oldest-first into a new slice.
func (r *Ring) Snapshot() []Record {
	out := make([]Record, r.count)
	// The live region is at most two physical segments: head..end and 0..tail.
	first := copy(out, r.buf[r.head:min(r.head+r.count, len(r.buf))])
	copy(out[first:], r.buf[:r.count-first])
	return out
}
