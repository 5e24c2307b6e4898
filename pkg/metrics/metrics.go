package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all routing subsystem metrics. All record methods are
// nil-safe so tests can pass a nil *Metrics.
type Metrics struct {
	// Health probe metrics
	ProbeLatency  *prometheus.HistogramVec
	ProbeFailures *prometheus.CounterVec
	RegionHealthy *prometheus.GaugeVec

	// Circuit breaker metrics
	BreakerState *prometheus.GaugeVec

	// Routing metrics
	RoutingDecisions *prometheus.CounterVec
	RoutingErrors    prometheus.Counter

	// Replica pool metrics
	PoolInUse     *prometheus.GaugeVec
	PoolExhausted *prometheus.CounterVec
	LeaseWait     prometheus.Histogram
}

// New creates all routing metrics under the given namespace. Collectors are
// not registered; call Register with a registerer.
func New(namespace string) *Metrics {
	return &Metrics{
		ProbeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "probe_duration_seconds",
			Help:      "Health probe round-trip time per region",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2},
		}, []string{"region"}),
		ProbeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probe_failures_total",
			Help:      "Total number of failed health probes",
		}, []string{"region"}),
		RegionHealthy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "region_healthy",
			Help:      "Whether the region passed its latest health probe (1/0)",
		}, []string{"region"}),
		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state per region (0=closed, 1=half-open, 2=open)",
		}, []string{"region"}),
		RoutingDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "routing_decisions_total",
			Help:      "Total routing decisions by selected region and relaxation level",
		}, []string{"region", "relaxation"}),
		RoutingErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "routing_errors_total",
			Help:      "Total requests for which no region could be selected",
		}),
		PoolInUse: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "replica_pool_in_use",
			Help:      "Leased replica connections per region",
		}, []string{"region"}),
		PoolExhausted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replica_pool_exhausted_total",
			Help:      "Total lease requests that timed out waiting for a connection",
		}, []string{"region"}),
		LeaseWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "replica_lease_wait_seconds",
			Help:      "Time callers spent waiting for a replica connection",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 2},
		}),
	}
}

// Register registers every collector with r.
func (m *Metrics) Register(r prometheus.Registerer) {
	r.MustRegister(
		m.ProbeLatency,
		m.ProbeFailures,
		m.RegionHealthy,
		m.BreakerState,
		m.RoutingDecisions,
		m.RoutingErrors,
		m.PoolInUse,
		m.PoolExhausted,
		m.LeaseWait,
	)
}

func (m *Metrics) ObserveProbe(region string, d time.Duration, ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.ProbeLatency.WithLabelValues(region).Observe(d.Seconds())
		m.RegionHealthy.WithLabelValues(region).Set(1)
	} else {
		m.ProbeFailures.WithLabelValues(region).Inc()
		m.RegionHealthy.WithLabelValues(region).Set(0)
	}
}

func (m *Metrics) SetBreakerState(region string, state float64) {
	if m == nil {
		return
	}
	m.BreakerState.WithLabelValues(region).Set(state)
}

func (m *Metrics) IncRoutingDecision(region, relaxation string) {
	if m == nil {
		return
	}
	m.RoutingDecisions.WithLabelValues(region, relaxation).Inc()
}

func (m *Metrics) IncRoutingError() {
	if m == nil {
		return
	}
	m.RoutingErrors.Inc()
}

func (m *Metrics) SetPoolInUse(region string, n float64) {
	if m == nil {
		return
	}
	m.PoolInUse.WithLabelValues(region).Set(n)
}

func (m *Metrics) IncPoolExhausted(region string) {
	if m == nil {
		return
	}
	m.PoolExhausted.WithLabelValues(region).Inc()
}

func (m *Metrics) ObserveLeaseWait(d time.Duration) {
	if m == nil {
		return
	}
	m.LeaseWait.Observe(d.Seconds())
}
