package health

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/mesh-api/internal/model"
	"github.com/jwalitptl/mesh-api/pkg/clock"
)

type stubProber struct {
	fn func(region model.Region) (time.Duration, error)
}

func (p *stubProber) Probe(_ context.Context, region model.Region) (time.Duration, error) {
	return p.fn(region)
}

func testRegions() []model.Region {
	return []model.Region{
		{ID: "us-east-1", Active: true},
		{ID: "eu-west-1", Active: true},
		{ID: "sa-east-1", Active: false},
	}
}

func testSettings() Settings {
	s := DefaultSettings()
	s.ProbeInterval = 5 * time.Millisecond
	return s
}

func TestFailClosedBeforeFirstProbe(t *testing.T) {
	svc := NewService(testRegions(), &stubProber{}, testSettings(), clock.New(), nil, nil)

	snapshot := svc.Snapshot()
	require.Contains(t, snapshot, "us-east-1")
	assert.False(t, snapshot["us-east-1"].Healthy)
	assert.Equal(t, 0, snapshot["us-east-1"].ProbeCount)
}

func TestInactiveRegionNotTracked(t *testing.T) {
	svc := NewService(testRegions(), &stubProber{}, testSettings(), clock.New(), nil, nil)

	assert.NotContains(t, svc.Snapshot(), "sa-east-1")
}

func TestSuccessfulProbeMarksHealthy(t *testing.T) {
	svc := NewService(testRegions(), &stubProber{}, testSettings(), clock.New(), nil, nil)

	svc.record("us-east-1", 120*time.Millisecond, nil)

	status := svc.Snapshot()["us-east-1"]
	assert.True(t, status.Healthy)
	assert.Equal(t, 120.0, status.LatencyP95)
	assert.Equal(t, 1, status.ProbeCount)
	assert.False(t, status.LastProbeAt.IsZero())
}

func TestFailedProbeMarksUnhealthy(t *testing.T) {
	svc := NewService(testRegions(), &stubProber{}, testSettings(), clock.New(), nil, nil)

	svc.record("us-east-1", 80*time.Millisecond, nil)
	svc.record("us-east-1", 0, errors.New("connection refused"))
	svc.record("us-east-1", 0, errors.New("connection refused"))

	status := svc.Snapshot()["us-east-1"]
	assert.False(t, status.Healthy)
	assert.Equal(t, 2, status.ConsecutiveFailures)
	assert.Equal(t, "connection refused", status.LastError)
	// Failed probes contribute no latency samples; the window keeps the
	// last successful reading.
	assert.Equal(t, 80.0, status.LatencyP95)
}

func TestRecoveryClearsFailureState(t *testing.T) {
	svc := NewService(testRegions(), &stubProber{}, testSettings(), clock.New(), nil, nil)

	svc.record("us-east-1", 0, errors.New("timeout"))
	svc.record("us-east-1", 50*time.Millisecond, nil)

	status := svc.Snapshot()["us-east-1"]
	assert.True(t, status.Healthy)
	assert.Equal(t, 0, status.ConsecutiveFailures)
	assert.Empty(t, status.LastError)
}

func TestProbeFailureDoesNotAffectOtherRegions(t *testing.T) {
	svc := NewService(testRegions(), &stubProber{}, testSettings(), clock.New(), nil, nil)

	svc.record("us-east-1", 30*time.Millisecond, nil)
	svc.record("eu-west-1", 0, errors.New("unreachable"))

	snapshot := svc.Snapshot()
	assert.True(t, snapshot["us-east-1"].Healthy)
	assert.False(t, snapshot["eu-west-1"].Healthy)
}

func TestSnapshotIsACopy(t *testing.T) {
	svc := NewService(testRegions(), &stubProber{}, testSettings(), clock.New(), nil, nil)
	svc.record("us-east-1", 10*time.Millisecond, nil)

	snapshot := svc.Snapshot()
	snapshot["us-east-1"] = model.HealthStatus{Healthy: false}
	delete(snapshot, "eu-west-1")

	fresh := svc.Snapshot()
	assert.True(t, fresh["us-east-1"].Healthy)
	assert.Contains(t, fresh, "eu-west-1")
}

func TestOnChangeFiresOnFlipsOnly(t *testing.T) {
	svc := NewService(testRegions(), &stubProber{}, testSettings(), clock.New(), nil, nil)

	var mu sync.Mutex
	var flips []bool
	svc.OnChange(func(regionID string, healthy bool, lastError string) {
		mu.Lock()
		defer mu.Unlock()
		flips = append(flips, healthy)
	})

	svc.record("us-east-1", 10*time.Millisecond, nil) // false -> true
	svc.record("us-east-1", 12*time.Millisecond, nil) // no flip
	svc.record("us-east-1", 0, errors.New("down"))    // true -> false
	svc.record("us-east-1", 0, errors.New("down"))    // no flip

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []bool{true, false}, flips)
}

func TestStartStopLifecycle(t *testing.T) {
	var probes int64
	prober := &stubProber{fn: func(region model.Region) (time.Duration, error) {
		atomic.AddInt64(&probes, 1)
		return 5 * time.Millisecond, nil
	}}
	svc := NewService(testRegions(), prober, testSettings(), clock.New(), nil, nil)

	svc.Start()
	svc.Start() // second Start is a no-op
	time.Sleep(40 * time.Millisecond)
	svc.Stop()

	count := atomic.LoadInt64(&probes)
	assert.Greater(t, count, int64(2))
	assert.True(t, svc.Snapshot()["us-east-1"].Healthy)

	// No probes after Stop, and Stop stays idempotent.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, count, atomic.LoadInt64(&probes))
	svc.Stop()
}

func TestSlowRegionDoesNotDelayOthers(t *testing.T) {
	var fastProbes int64
	prober := &stubProber{fn: func(region model.Region) (time.Duration, error) {
		if region.ID == "us-east-1" {
			time.Sleep(50 * time.Millisecond)
			return 50 * time.Millisecond, nil
		}
		atomic.AddInt64(&fastProbes, 1)
		return time.Millisecond, nil
	}}
	svc := NewService(testRegions(), prober, testSettings(), clock.New(), nil, nil)

	svc.Start()
	time.Sleep(60 * time.Millisecond)
	svc.Stop()

	assert.GreaterOrEqual(t, atomic.LoadInt64(&fastProbes), int64(3))
}
