package health

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jwalitptl/mesh-api/internal/model"
)

// Prober performs one reachability/latency check against a region.
type Prober interface {
	Probe(ctx context.Context, region model.Region) (time.Duration, error)
}

// HTTPProber probes a region's health endpoint with a GET request. Any
// transport error or 5xx response counts as a failed probe.
type HTTPProber struct {
	client *http.Client
}

func NewHTTPProber(timeout time.Duration) *HTTPProber {
	return &HTTPProber{
		client: &http.Client{Timeout: timeout},
	}
}

func (p *HTTPProber) Probe(ctx context.Context, region model.Region) (time.Duration, error) {
	if region.Endpoint == "" {
		return 0, fmt.Errorf("region %s has no probe endpoint", region.ID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, region.Endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build probe request: %w", err)
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusInternalServerError {
		return 0, fmt.Errorf("probe returned status %d", resp.StatusCode)
	}
	return time.Since(start), nil
}
