// Package framebuffer keeps a fixed-capacity pre-roll window of recent frames
// for one camera.
package framebuffer

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"blackbox/internal/camera"
)

// ErrExhausted reports a ring holding more entries than its capacity. Push
// evicts instead of failing, so this only surfaces from CheckInvariant.
var ErrExhausted = errors.New("frame buffer exceeded capacity")

// Entry is one buffered frame and the time it was pushed.
type Entry struct {
	Frame     camera.Frame
	Timestamp time.Time
}

// Snapshot is an ordered, oldest-first copy of the ring contents.
type Snapshot struct {
	Entries []Entry
}

// Len returns the number of entries.
func (s Snapshot) Len() int { return len(s.Entries) }

// Span returns the time covered by the snapshot.
func (s Snapshot) Span() time.Duration {
	if len(s.Entries) < 2 {
		return 0
	}
	return s.Entries[len(s.Entries)-1].Timestamp.Sub(s.Entries[0].Timestamp)
}

// Newest returns the most recent entry.
func (s Snapshot) Newest() (Entry, bool) {
	if len(s.Entries) == 0 {
		return Entry{}, false
	}
	return s.Entries[len(s.Entries)-1], true
}

// Status describes fill level for diagnostics.
type Status struct {
	Len      int           `json:"len"`
	Capacity int           `json:"capacity"`
	Full     bool          `json:"full"`
	Oldest   time.Time     `json:"oldest,omitempty"`
	Newest   time.Time     `json:"newest,omitempty"`
	Span     time.Duration `json:"span"`
}

// Ring is a fixed-size FIFO. The backing array is allocated once.
type Ring struct {
	mu    sync.RWMutex
	slots []Entry
	head  int
	size  int
}

// New allocates a ring holding up to capacity entries (minimum 1).
func New(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{slots: make([]Entry, capacity)}
}

// CapacityFor returns the slot count that covers duration at fps.
func CapacityFor(duration time.Duration, fps int) int {
	if duration <= 0 || fps <= 0 {
		return 1
	}
	return max(1, int(math.Ceil(duration.Seconds()*float64(fps))))
}

// Capacity returns the fixed slot count.
func (r *Ring) Capacity() int { return len(r.slots) }

// Push appends an entry, evicting the oldest one when full.
func (r *Ring) Push(frame camera.Frame, ts time.Time) {
	r.mu.Lock()
	idx := (r.head + r.size) % len(r.slots)
	if r.size == len(r.slots) {
		r.head = (r.head + 1) % len(r.slots)
	} else {
		r.size++
	}
	r.slots[idx] = Entry{Frame: frame, Timestamp: ts}
	r.mu.Unlock()
}

// Snapshot copies the current contents in insertion order.
func (r *Ring) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.slots[(r.head+i)%len(r.slots)]
	}
	return Snapshot{Entries: out}
}

// Status reports fill level.
func (r *Ring) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st := Status{Len: r.size, Capacity: len(r.slots), Full: r.size == len(r.slots)}
	if r.size > 0 {
		st.Oldest = r.slots[r.head].Timestamp
		st.Newest = r.slots[(r.head+r.size-1)%len(r.slots)].Timestamp
		st.Span = st.Newest.Sub(st.Oldest)
	}
	return st
}

// Reset empties the ring and releases frame references.
func (r *Ring) Reset() {
	r.mu.Lock()
	clear(r.slots)
	r.head = 0
	r.size = 0
	r.mu.Unlock()
}

// CheckInvariant verifies size and ordering bookkeeping.
func (r *Ring) CheckInvariant() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.size > len(r.slots) || r.size < 0 {
		return fmt.Errorf("%w: %d entries, capacity %d", ErrExhausted, r.size, len(r.slots))
	}
	if r.head < 0 || r.head >= len(r.slots) {
		return fmt.Errorf("frame buffer head %d out of range", r.head)
	}
	return nil
}
