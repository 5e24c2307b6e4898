package replica

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jwalitptl/mesh-api/internal/model"
	"github.com/jwalitptl/mesh-api/pkg/clock"
	apperrors "github.com/jwalitptl/mesh-api/pkg/errors"
	"github.com/jwalitptl/mesh-api/pkg/logger"
	"github.com/jwalitptl/mesh-api/pkg/metrics"
)

// acquireRetryStep bounds how often an exhausted Acquire re-checks the pool
// while waiting for its lease deadline.
const acquireRetryStep = 50 * time.Millisecond

// BreakerSink receives success/failure outcomes from released connections.
type BreakerSink interface {
	RecordFailure(regionID string)
	RecordSuccess(regionID string)
}

// Settings holds replica pool sizing.
type Settings struct {
	ReplicasPerRegion int
	// LeaseWait bounds how long Acquire blocks for a free connection before
	// returning ErrPoolExhausted. Zero means fail immediately.
	LeaseWait time.Duration
}

func DefaultSettings() Settings {
	return Settings{
		ReplicasPerRegion: 3,
		LeaseWait:         2 * time.Second,
	}
}

// Service manages a static pool of read replica connections per region.
// Connections are created once at construction and only their lease/health
// flags change afterwards. Release outcomes feed the region's circuit
// breaker.
type Service struct {
	mu    sync.Mutex
	conns map[string][]*model.ReplicaConnection
	byID  map[string]*model.ReplicaConnection

	settings Settings
	breaker  BreakerSink
	clk      clock.Clock

	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewService(regions []model.Region, settings Settings, breaker BreakerSink, clk clock.Clock, log *logger.Logger, m *metrics.Metrics) *Service {
	conns := make(map[string][]*model.ReplicaConnection, len(regions))
	byID := make(map[string]*model.ReplicaConnection)
	for _, r := range regions {
		if !r.Active {
			continue
		}
		slots := make([]*model.ReplicaConnection, 0, settings.ReplicasPerRegion)
		for i := 0; i < settings.ReplicasPerRegion; i++ {
			conn := &model.ReplicaConnection{
				ID:      fmt.Sprintf("%s-replica-%d", r.ID, i+1),
				Region:  r.ID,
				Healthy: true,
			}
			slots = append(slots, conn)
			byID[conn.ID] = conn
		}
		conns[r.ID] = slots
	}

	return &Service{
		conns:    conns,
		byID:     byID,
		settings: settings,
		breaker:  breaker,
		clk:      clk,
		logger:   log,
		metrics:  m,
	}
}

// Acquire leases the first free healthy connection for the region. When
// none is free it waits, re-checking every acquireRetryStep, until LeaseWait
// elapses and then returns ErrPoolExhausted. The pool never grows beyond
// its configured size.
func (s *Service) Acquire(regionID string) (model.ReplicaConnection, error) {
	s.mu.Lock()
	_, known := s.conns[regionID]
	s.mu.Unlock()
	if !known {
		return model.ReplicaConnection{}, apperrors.NewUnknownRegion(regionID)
	}

	start := s.clk.Now()
	deadline := start.Add(s.settings.LeaseWait)
	for {
		if conn, ok := s.tryAcquire(regionID); ok {
			s.metrics.ObserveLeaseWait(s.clk.Since(start))
			return conn, nil
		}
		if !s.clk.Now().Before(deadline) {
			s.metrics.IncPoolExhausted(regionID)
			if s.logger != nil {
				s.logger.Warn("replica pool exhausted", "region", regionID)
			}
			return model.ReplicaConnection{}, apperrors.NewPoolExhausted(regionID)
		}
		time.Sleep(acquireRetryStep)
	}
}

func (s *Service) tryAcquire(regionID string) (model.ReplicaConnection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, conn := range s.conns[regionID] {
		if conn.InUse || !conn.Healthy {
			continue
		}
		conn.InUse = true
		s.metrics.SetPoolInUse(regionID, float64(s.inUseLocked(regionID)))
		return *conn, true
	}
	return model.ReplicaConnection{}, false
}

// Release returns a leased connection. A failed outcome marks the
// connection unhealthy and records a failure against the owning region's
// breaker; a successful one restores it and records a success.
func (s *Service) Release(connID string, success bool) error {
	s.mu.Lock()
	conn, ok := s.byID[connID]
	if !ok {
		s.mu.Unlock()
		return apperrors.NewUnknownConnection(connID)
	}
	conn.InUse = false
	conn.Healthy = success
	regionID := conn.Region
	s.metrics.SetPoolInUse(regionID, float64(s.inUseLocked(regionID)))
	s.mu.Unlock()

	if success {
		s.breaker.RecordSuccess(regionID)
	} else {
		s.breaker.RecordFailure(regionID)
	}
	return nil
}

// Statistics returns per-region connection counts. Read-only.
func (s *Service) Statistics() map[string]model.PoolStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := make(map[string]model.PoolStats, len(s.conns))
	for regionID, slots := range s.conns {
		st := model.PoolStats{Total: len(slots)}
		for _, conn := range slots {
			if conn.InUse {
				st.InUse++
			}
			if conn.Healthy {
				st.Healthy++
			}
		}
		stats[regionID] = st
	}
	return stats
}

// Regions returns the region IDs the pool manages, sorted.
func (s *Service) Regions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.conns))
	for id := range s.conns {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// inUseLocked counts leased connections for a region. Caller holds the
// mutex.
func (s *Service) inUseLocked(regionID string) int {
	n := 0
	for _, conn := range s.conns[regionID] {
		if conn.InUse {
			n++
		}
	}
	return n
}
