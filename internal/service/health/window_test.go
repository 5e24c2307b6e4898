package health

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWindowP95(t *testing.T) {
	w := newLatencyWindow(20)
	for i := 1; i <= 20; i++ {
		w.add(float64(i * 10))
	}

	assert.Equal(t, 20, w.count())
	assert.Equal(t, 190.0, w.p95())
}

func TestWindowPartiallyFilled(t *testing.T) {
	w := newLatencyWindow(20)
	assert.Equal(t, 0.0, w.p95())

	w.add(42)
	assert.Equal(t, 42.0, w.p95())

	w.add(10)
	w.add(99)
	assert.Equal(t, 99.0, w.p95())
}

func TestWindowEvictsOldestSamples(t *testing.T) {
	w := newLatencyWindow(5)
	// One slow outlier followed by enough fast samples to push it out.
	w.add(1000)
	for i := 0; i < 5; i++ {
		w.add(10)
	}

	assert.Equal(t, 5, w.count())
	assert.Equal(t, 10.0, w.p95())
}
