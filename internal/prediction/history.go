package prediction

import "github.com/foosbot/goalkeeper/pkg/core"

const (
	// DefaultHistoryCapacity is roughly one second of frames at 60 fps.
	DefaultHistoryCapacity = 60
	// DefaultEvictBatch is how many of the oldest samples are dropped at once
	// when the history is full.
	DefaultEvictBatch = 10
)

// History is a fixed-capacity ring of observations, most recent first.
type History struct {
	buf   []core.Observation
	head  int
	n     int
	batch int
}

// NewHistory creates a history holding at most capacity observations. When a
// push finds it full, the oldest batch observations are evicted together.
func NewHistory(capacity, batch int) *History {
	if capacity < 2 {
		capacity = 2
	}
	if batch < 1 || batch > capacity {
		batch = 1
	}
	return &History{buf: make([]core.Observation, capacity), batch: batch}
}

// Push inserts obs at the front.
func (h *History) Push(obs core.Observation) {
	if h.n == len(h.buf) {
		h.n -= h.batch
	}
	h.head = (h.head - 1 + len(h.buf)) % len(h.buf)
	h.buf[h.head] = obs
	h.n++
}

// At returns the i-th most recent observation. At(0) is the newest.
func (h *History) At(i int) (core.Observation, bool) {
	if i < 0 || i >= h.n {
		return core.Observation{}, false
	}
	return h.buf[(h.head+i)%len(h.buf)], true
}

// Len returns the number of stored observations.
func (h *History) Len() int { return h.n }

// Cap returns the capacity.
func (h *History) Cap() int { return len(h.buf) }

// Clear drops every observation.
func (h *History) Clear() {
	h.head, h.n = 0, 0
}

// Snapshot copies the history, most recent first.
func (h *History) Snapshot() []core.Observation {
	out := make([]core.Observation, h.n)
	for i := range out {
		out[i], _ = h.At(i)
	}
	return out
}
