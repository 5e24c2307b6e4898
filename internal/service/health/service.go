package health

import (
	"context"
	"sync"
	"time"

	"github.com/jwalitptl/mesh-api/internal/model"
	"github.com/jwalitptl/mesh-api/pkg/clock"
	"github.com/jwalitptl/mesh-api/pkg/logger"
	"github.com/jwalitptl/mesh-api/pkg/metrics"
)

// Settings holds health monitor timings.
type Settings struct {
	ProbeInterval time.Duration
	ProbeTimeout  time.Duration
	WindowSize    int
}

func DefaultSettings() Settings {
	return Settings{
		ProbeInterval: 10 * time.Second,
		ProbeTimeout:  2 * time.Second,
		WindowSize:    20,
	}
}

// ChangeFunc is invoked when a region's healthy flag flips. Called outside
// the status lock.
type ChangeFunc func(regionID string, healthy bool, lastError string)

type regionHealth struct {
	status model.HealthStatus
	window *latencyWindow
}

// Service maintains a HealthStatus per active region via one independent
// probe goroutine per region. A region with no completed probe reports
// unhealthy, so routing fails closed until the first probe lands.
type Service struct {
	regions  []model.Region
	prober   Prober
	settings Settings
	clk      clock.Clock

	mu       sync.RWMutex
	statuses map[string]*regionHealth

	startMu sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	onChange ChangeFunc

	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewService(regions []model.Region, prober Prober, settings Settings, clk clock.Clock, log *logger.Logger, m *metrics.Metrics) *Service {
	statuses := make(map[string]*regionHealth, len(regions))
	for _, r := range regions {
		if !r.Active {
			continue
		}
		statuses[r.ID] = &regionHealth{
			window: newLatencyWindow(settings.WindowSize),
		}
	}
	return &Service{
		regions:  regions,
		prober:   prober,
		settings: settings,
		clk:      clk,
		statuses: statuses,
		logger:   log,
		metrics:  m,
	}
}

// OnChange registers a hook for healthy-flag flips. Must be called before
// Start.
func (s *Service) OnChange(fn ChangeFunc) {
	s.onChange = fn
}

// Start launches one probe loop per active region. Each loop probes
// immediately and then on every interval tick; a slow probe in one region
// never delays another's.
func (s *Service) Start() {
	s.startMu.Lock()
	defer s.startMu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	for _, r := range s.regions {
		if !r.Active {
			continue
		}
		s.wg.Add(1)
		go s.probeLoop(ctx, r)
	}
}

// Stop cancels all probe loops and waits for them to drain. Idempotent.
func (s *Service) Stop() {
	s.startMu.Lock()
	defer s.startMu.Unlock()
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.wg.Wait()
	s.cancel = nil
}

// Snapshot returns an immutable copy of the latest per-region status. It
// never blocks on in-flight probes.
func (s *Service) Snapshot() map[string]model.HealthStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := make(map[string]model.HealthStatus, len(s.statuses))
	for id, h := range s.statuses {
		snapshot[id] = h.status
	}
	return snapshot
}

func (s *Service) probeLoop(ctx context.Context, region model.Region) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.settings.ProbeInterval)
	defer ticker.Stop()

	s.probeRegion(ctx, region)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.probeRegion(ctx, region)
		}
	}
}

func (s *Service) probeRegion(ctx context.Context, region model.Region) {
	pctx, cancel := context.WithTimeout(ctx, s.settings.ProbeTimeout)
	defer cancel()

	latency, err := s.prober.Probe(pctx, region)
	s.record(region.ID, latency, err)
}

// record folds one probe result into the region's status. Probe errors are
// absorbed here; they mark the region unhealthy but never propagate.
func (s *Service) record(regionID string, latency time.Duration, probeErr error) {
	s.mu.Lock()
	h, ok := s.statuses[regionID]
	if !ok {
		s.mu.Unlock()
		return
	}

	wasHealthy := h.status.Healthy
	hadProbe := h.status.ProbeCount > 0
	h.status.LastProbeAt = s.clk.Now()
	h.status.ProbeCount++

	if probeErr != nil {
		h.status.Healthy = false
		h.status.ConsecutiveFailures++
		h.status.LastError = probeErr.Error()
	} else {
		h.window.add(float64(latency) / float64(time.Millisecond))
		h.status.Healthy = true
		h.status.ConsecutiveFailures = 0
		h.status.LastError = ""
		h.status.LatencyP95 = h.window.p95()
	}
	healthy := h.status.Healthy
	lastError := h.status.LastError
	s.mu.Unlock()

	s.metrics.ObserveProbe(regionID, latency, probeErr == nil)
	if probeErr != nil && s.logger != nil {
		s.logger.Warn("health probe failed", "region", regionID, "error", probeErr.Error())
	}
	if (healthy != wasHealthy || !hadProbe) && s.onChange != nil {
		s.onChange(regionID, healthy, lastError)
	}
}
