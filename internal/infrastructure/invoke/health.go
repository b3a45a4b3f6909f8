package invoke

import (
	"sync"
	"time"
)

const healthWindowSize = 50

// healthStats keeps a rolling window of recent call outcomes per backend.
// Updates are frequent and small; a slightly stale view only delays
// breaker trips, it never corrupts correctness.
type healthStats struct {
	mu        sync.Mutex
	outcomes  [healthWindowSize]bool
	latencies [healthWindowSize]time.Duration
	next      int
	filled    int
}

func newHealthStats() *healthStats {
	return &healthStats{}
}

func (h *healthStats) record(ok bool, latency time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.outcomes[h.next] = ok
	h.latencies[h.next] = latency
	h.next = (h.next + 1) % healthWindowSize
	if h.filled < healthWindowSize {
		h.filled++
	}
}

func (h *healthStats) snapshot() (errorRate float64, meanLatency time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.filled == 0 {
		return 0, 0
	}
	failures := 0
	var total time.Duration
	for i := 0; i < h.filled; i++ {
		if !h.outcomes[i] {
			failures++
		}
		total += h.latencies[i]
	}
	return float64(failures) / float64(h.filled), total / time.Duration(h.filled)
}
