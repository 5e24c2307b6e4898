package breaker_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/mesh-api/internal/model"
	"github.com/jwalitptl/mesh-api/internal/service/breaker"
	"github.com/jwalitptl/mesh-api/pkg/clock"
)

var testRegions = []string{"us-east-1", "eu-west-1", "ap-southeast-1"}

func newTestService(clk clock.Clock) *breaker.Service {
	return breaker.NewService(testRegions, breaker.DefaultSettings(), clk, nil, nil)
}

func TestOpensAfterConsecutiveFailures(t *testing.T) {
	svc := newTestService(clock.NewMock(time.Now()))

	for i := 0; i < 4; i++ {
		svc.RecordFailure("us-east-1")
	}
	assert.Equal(t, model.CircuitClosed, svc.State("us-east-1"))

	svc.RecordFailure("us-east-1")
	assert.Equal(t, model.CircuitOpen, svc.State("us-east-1"))

	status := svc.Status()["us-east-1"]
	assert.Equal(t, model.CircuitOpen, status.State)
	assert.Equal(t, 5, status.ConsecutiveFailures)
}

func TestSuccessResetsFailureCount(t *testing.T) {
	svc := newTestService(clock.NewMock(time.Now()))

	for i := 0; i < 4; i++ {
		svc.RecordFailure("us-east-1")
	}
	svc.RecordSuccess("us-east-1")
	assert.Equal(t, 0, svc.Status()["us-east-1"].ConsecutiveFailures)

	// The reset means four more failures still leave the breaker closed.
	for i := 0; i < 4; i++ {
		svc.RecordFailure("us-east-1")
	}
	assert.Equal(t, model.CircuitClosed, svc.State("us-east-1"))

	svc.RecordFailure("us-east-1")
	assert.Equal(t, model.CircuitOpen, svc.State("us-east-1"))
}

func TestRegionsAreIndependent(t *testing.T) {
	svc := newTestService(clock.NewMock(time.Now()))

	for i := 0; i < 5; i++ {
		svc.RecordFailure("us-east-1")
	}

	assert.Equal(t, model.CircuitOpen, svc.State("us-east-1"))
	assert.Equal(t, model.CircuitClosed, svc.State("eu-west-1"))
	assert.Equal(t, model.CircuitClosed, svc.State("ap-southeast-1"))
	assert.Equal(t, 0, svc.Status()["eu-west-1"].ConsecutiveFailures)
}

func TestOpenToHalfOpenAfterRecoveryTimeout(t *testing.T) {
	clk := clock.NewMock(time.Now())
	svc := newTestService(clk)

	for i := 0; i < 5; i++ {
		svc.RecordFailure("us-east-1")
	}
	require.Equal(t, model.CircuitOpen, svc.State("us-east-1"))

	clk.Advance(29 * time.Second)
	assert.Equal(t, model.CircuitOpen, svc.State("us-east-1"))

	clk.Advance(1 * time.Second)
	assert.Equal(t, model.CircuitHalfOpen, svc.State("us-east-1"))
}

func TestHalfOpenReopensOnFailure(t *testing.T) {
	clk := clock.NewMock(time.Now())
	svc := newTestService(clk)

	for i := 0; i < 5; i++ {
		svc.RecordFailure("us-east-1")
	}
	clk.Advance(30 * time.Second)
	require.Equal(t, model.CircuitHalfOpen, svc.State("us-east-1"))

	// A single failure reopens the breaker with a fresh openedAt.
	svc.RecordFailure("us-east-1")
	assert.Equal(t, model.CircuitOpen, svc.State("us-east-1"))

	clk.Advance(29 * time.Second)
	assert.Equal(t, model.CircuitOpen, svc.State("us-east-1"))
	clk.Advance(1 * time.Second)
	assert.Equal(t, model.CircuitHalfOpen, svc.State("us-east-1"))
}

func TestHalfOpenClosesAfterTrialSuccesses(t *testing.T) {
	clk := clock.NewMock(time.Now())
	svc := newTestService(clk)

	for i := 0; i < 5; i++ {
		svc.RecordFailure("us-east-1")
	}
	clk.Advance(30 * time.Second)
	require.Equal(t, model.CircuitHalfOpen, svc.State("us-east-1"))

	svc.RecordSuccess("us-east-1")
	svc.RecordSuccess("us-east-1")
	assert.Equal(t, model.CircuitHalfOpen, svc.State("us-east-1"))

	svc.RecordSuccess("us-east-1")
	assert.Equal(t, model.CircuitClosed, svc.State("us-east-1"))
	assert.Equal(t, 0, svc.Status()["us-east-1"].ConsecutiveFailures)
}

func TestTransitionHookSequence(t *testing.T) {
	clk := clock.NewMock(time.Now())
	svc := newTestService(clk)

	var mu sync.Mutex
	var transitions [][2]model.CircuitState
	svc.OnTransition(func(regionID string, from, to model.CircuitState) {
		mu.Lock()
		defer mu.Unlock()
		transitions = append(transitions, [2]model.CircuitState{from, to})
	})

	for i := 0; i < 5; i++ {
		svc.RecordFailure("us-east-1")
	}
	clk.Advance(30 * time.Second)
	svc.State("us-east-1")
	for i := 0; i < 3; i++ {
		svc.RecordSuccess("us-east-1")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, transitions, 3)
	assert.Equal(t, [2]model.CircuitState{model.CircuitClosed, model.CircuitOpen}, transitions[0])
	assert.Equal(t, [2]model.CircuitState{model.CircuitOpen, model.CircuitHalfOpen}, transitions[1])
	assert.Equal(t, [2]model.CircuitState{model.CircuitHalfOpen, model.CircuitClosed}, transitions[2])
}

func TestConcurrentReadsFireSingleHalfOpenTransition(t *testing.T) {
	clk := clock.NewMock(time.Now())
	svc := newTestService(clk)

	var mu sync.Mutex
	halfOpenCount := 0
	svc.OnTransition(func(regionID string, from, to model.CircuitState) {
		if to == model.CircuitHalfOpen {
			mu.Lock()
			halfOpenCount++
			mu.Unlock()
		}
	})

	for i := 0; i < 5; i++ {
		svc.RecordFailure("us-east-1")
	}
	clk.Advance(30 * time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, model.CircuitHalfOpen, svc.State("us-east-1"))
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, halfOpenCount)
}

func TestUnknownRegionIsIgnored(t *testing.T) {
	svc := newTestService(clock.NewMock(time.Now()))

	svc.RecordFailure("mars-north-1")
	svc.RecordSuccess("mars-north-1")

	assert.Equal(t, model.CircuitClosed, svc.State("mars-north-1"))
	assert.NotContains(t, svc.Status(), "mars-north-1")
}
