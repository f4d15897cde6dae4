package ingestion

import (
	"sync"
	"sync/atomic"
	"time"
)

// WindowCounter is a fixed-window rate counter. State is explicit and
// injected into the service rather than living in package-level variables,
// so tests and multiple pipelines get independent counters.
type WindowCounter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	start  time.Time
	count  int
	now    func() time.Time
}

// NewWindowCounter allows up to limit calls per window. limit <= 0 allows
// everything.
func NewWindowCounter(limit int, window time.Duration) *WindowCounter {
	return &WindowCounter{
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// Allow reports whether another call fits in the current window and counts
// it if so.
func (w *WindowCounter) Allow() bool {
	if w.limit <= 0 {
		return true
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	if now.Sub(w.start) >= w.window {
		w.start = now
		w.count = 0
	}
	if w.count >= w.limit {
		return false
	}
	w.count++
	return true
}

// Sampler passes every nth item. n <= 1 passes everything.
type Sampler struct {
	n       uint64
	counter atomic.Uint64
}

// NewSampler creates a Sampler keeping one in every n items.
func NewSampler(n int) *Sampler {
	if n < 1 {
		n = 1
	}
	return &Sampler{n: uint64(n)}
}

// Keep reports whether this item should be processed.
func (s *Sampler) Keep() bool {
	if s.n <= 1 {
		return true
	}
	return (s.counter.Add(1)-1)%s.n == 0
}
