package model

import (
	"time"
)

// Region is an entry in the mesh region catalog. The catalog is loaded once
// at process start (from the database or the config file) and is never
// mutated at runtime.
type Region struct {
	ID          string   `json:"id" db:"id"`                     // e.g., us-east-1
	GeoPrefixes []string `json:"geo_prefixes" db:"geo_prefixes"` // country codes served by default, e.g., US, CA
	Endpoint    string   `json:"endpoint" db:"endpoint"`         // probe target URL
	Active      bool     `json:"active" db:"active"`
}

// CircuitState is the circuit breaker state for one region.
type CircuitState string

const (
	CircuitClosed   CircuitState = "CLOSED"
	CircuitOpen     CircuitState = "OPEN"
	CircuitHalfOpen CircuitState = "HALF_OPEN"
)

// BreakerStatus is the read-only view of one region's circuit breaker.
type BreakerStatus struct {
	State               CircuitState `json:"state"`
	ConsecutiveFailures int          `json:"consecutive_failures"`
	OpenedAt            time.Time    `json:"opened_at,omitempty"`
}

// HealthStatus is the monitor's latest view of one region. A region with no
// completed probe yet reports Healthy=false.
type HealthStatus struct {
	Healthy             bool      `json:"healthy"`
	LatencyP95          float64   `json:"latency_p95_ms"`
	LastProbeAt         time.Time `json:"last_probe_at"`
	ProbeCount          int       `json:"probe_count"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastError           string    `json:"last_error,omitempty"`
}
