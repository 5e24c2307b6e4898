package health

import (
	"math"
	"sort"
)

// latencyWindow keeps the last N probe latencies (milliseconds) in a ring
// and computes percentiles over whatever has been recorded so far.
type latencyWindow struct {
	samples []float64
	next    int
	full    bool
}

func newLatencyWindow(size int) *latencyWindow {
	if size < 1 {
		size = 1
	}
	return &latencyWindow{samples: make([]float64, 0, size)}
}

func (w *latencyWindow) add(ms float64) {
	if w.full {
		w.samples[w.next] = ms
		w.next = (w.next + 1) % cap(w.samples)
		return
	}
	w.samples = append(w.samples, ms)
	if len(w.samples) == cap(w.samples) {
		w.full = true
	}
}

func (w *latencyWindow) count() int {
	return len(w.samples)
}

// p95 returns the 95th percentile of the recorded samples, 0 when empty.
func (w *latencyWindow) p95() float64 {
	return w.percentile(0.95)
}

func (w *latencyWindow) percentile(p float64) float64 {
	n := len(w.samples)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, w.samples)
	sort.Float64s(sorted)

	idx := int(math.Ceil(p*float64(n))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return sorted[idx]
}
