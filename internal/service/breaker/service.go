package breaker

import (
	"sync"
	"time"

	"github.com/jwalitptl/mesh-api/internal/model"
	"github.com/jwalitptl/mesh-api/pkg/clock"
	"github.com/jwalitptl/mesh-api/pkg/logger"
	"github.com/jwalitptl/mesh-api/pkg/metrics"
)

// Settings holds per-region circuit breaker thresholds.
type Settings struct {
	FailureThreshold int
	SuccessThreshold int
	RecoveryTimeout  time.Duration
}

func DefaultSettings() Settings {
	return Settings{
		FailureThreshold: 5,
		SuccessThreshold: 3,
		RecoveryTimeout:  30 * time.Second,
	}
}

// TransitionFunc is invoked after a breaker changes state. Called outside
// the registry lock.
type TransitionFunc func(regionID string, from, to model.CircuitState)

type regionBreaker struct {
	state               model.CircuitState
	consecutiveFailures int
	trialSuccesses      int
	openedAt            time.Time
}

// Service is a registry of one circuit breaker per region. It is pure
// bookkeeping: it never returns errors and ignores unknown region IDs.
// The OPEN -> HALF_OPEN transition is evaluated lazily on every read or
// record under the registry mutex, so concurrent callers cannot double-fire
// it and no background timer is needed.
type Service struct {
	mu       sync.Mutex
	settings Settings
	clk      clock.Clock
	breakers map[string]*regionBreaker

	onTransition TransitionFunc

	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewService(regionIDs []string, settings Settings, clk clock.Clock, log *logger.Logger, m *metrics.Metrics) *Service {
	breakers := make(map[string]*regionBreaker, len(regionIDs))
	for _, id := range regionIDs {
		breakers[id] = &regionBreaker{state: model.CircuitClosed}
	}
	return &Service{
		settings: settings,
		clk:      clk,
		breakers: breakers,
		logger:   log,
		metrics:  m,
	}
}

// OnTransition registers a hook for state changes. Must be called before
// the service is shared across goroutines.
func (s *Service) OnTransition(fn TransitionFunc) {
	s.onTransition = fn
}

// RecordFailure counts one failure against the region. The breaker opens
// once FailureThreshold consecutive failures accumulate while CLOSED; a
// single failure while HALF_OPEN reopens it immediately.
func (s *Service) RecordFailure(regionID string) {
	s.mu.Lock()
	b, ok := s.breakers[regionID]
	if !ok {
		s.mu.Unlock()
		return
	}

	lazy := s.evaluate(regionID, b)
	b.consecutiveFailures++

	var transition *[2]model.CircuitState
	switch b.state {
	case model.CircuitClosed:
		if b.consecutiveFailures >= s.settings.FailureThreshold {
			transition = s.open(b, model.CircuitClosed)
		}
	case model.CircuitHalfOpen:
		transition = s.open(b, model.CircuitHalfOpen)
	}
	s.mu.Unlock()

	s.fire(regionID, lazy)
	s.fire(regionID, transition)
}

// RecordSuccess counts one success. While CLOSED it resets the failure
// counter; while HALF_OPEN it counts toward SuccessThreshold, closing the
// breaker once reached.
func (s *Service) RecordSuccess(regionID string) {
	s.mu.Lock()
	b, ok := s.breakers[regionID]
	if !ok {
		s.mu.Unlock()
		return
	}

	lazy := s.evaluate(regionID, b)

	var transition *[2]model.CircuitState
	switch b.state {
	case model.CircuitClosed:
		b.consecutiveFailures = 0
	case model.CircuitHalfOpen:
		b.trialSuccesses++
		if b.trialSuccesses >= s.settings.SuccessThreshold {
			from := b.state
			b.state = model.CircuitClosed
			b.consecutiveFailures = 0
			b.trialSuccesses = 0
			transition = &[2]model.CircuitState{from, model.CircuitClosed}
		}
	}
	s.mu.Unlock()

	s.fire(regionID, lazy)
	s.fire(regionID, transition)
}

// State returns the region's current state, advancing OPEN to HALF_OPEN
// when the recovery timeout has elapsed. Unknown regions report CLOSED.
func (s *Service) State(regionID string) model.CircuitState {
	s.mu.Lock()
	b, ok := s.breakers[regionID]
	if !ok {
		s.mu.Unlock()
		return model.CircuitClosed
	}
	transition := s.evaluate(regionID, b)
	state := b.state
	s.mu.Unlock()

	s.fire(regionID, transition)
	return state
}

// Status returns a snapshot of every breaker, applying the same lazy
// evaluation as State.
func (s *Service) Status() map[string]model.BreakerStatus {
	s.mu.Lock()
	statuses := make(map[string]model.BreakerStatus, len(s.breakers))
	var fired []struct {
		region     string
		transition *[2]model.CircuitState
	}
	for id, b := range s.breakers {
		if t := s.evaluate(id, b); t != nil {
			fired = append(fired, struct {
				region     string
				transition *[2]model.CircuitState
			}{id, t})
		}
		statuses[id] = model.BreakerStatus{
			State:               b.state,
			ConsecutiveFailures: b.consecutiveFailures,
			OpenedAt:            b.openedAt,
		}
	}
	s.mu.Unlock()

	for _, f := range fired {
		s.fire(f.region, f.transition)
	}
	return statuses
}

// evaluate applies the lazy OPEN -> HALF_OPEN transition. Caller holds the
// mutex, which makes the transition idempotent under concurrent readers.
func (s *Service) evaluate(regionID string, b *regionBreaker) *[2]model.CircuitState {
	if b.state == model.CircuitOpen && s.clk.Since(b.openedAt) >= s.settings.RecoveryTimeout {
		b.state = model.CircuitHalfOpen
		b.trialSuccesses = 0
		return &[2]model.CircuitState{model.CircuitOpen, model.CircuitHalfOpen}
	}
	return nil
}

// open trips the breaker. Caller holds the mutex.
func (s *Service) open(b *regionBreaker, from model.CircuitState) *[2]model.CircuitState {
	b.state = model.CircuitOpen
	b.openedAt = s.clk.Now()
	b.trialSuccesses = 0
	return &[2]model.CircuitState{from, model.CircuitOpen}
}

func (s *Service) fire(regionID string, transition *[2]model.CircuitState) {
	if transition == nil {
		return
	}
	from, to := transition[0], transition[1]
	if s.logger != nil {
		s.logger.Info("circuit breaker transition",
			"region", regionID, "from", string(from), "to", string(to))
	}
	s.metrics.SetBreakerState(regionID, stateGaugeValue(to))
	if s.onTransition != nil {
		s.onTransition(regionID, from, to)
	}
}

func stateGaugeValue(state model.CircuitState) float64 {
	switch state {
	case model.CircuitHalfOpen:
		return 1
	case model.CircuitOpen:
		return 2
	default:
		return 0
	}
}
