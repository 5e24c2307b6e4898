package routing

import (
	"sort"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/mesh-api/internal/model"
	apperrors "github.com/jwalitptl/mesh-api/pkg/errors"
	"github.com/jwalitptl/mesh-api/pkg/logger"
	"github.com/jwalitptl/mesh-api/pkg/metrics"
)

const geoCacheExpiry = 15 * time.Minute

// HealthSource supplies the latest per-region health snapshot.
type HealthSource interface {
	Snapshot() map[string]model.HealthStatus
}

// BreakerSource supplies per-region circuit breaker state.
type BreakerSource interface {
	State(regionID string) model.CircuitState
}

// Relaxation levels, tried in order until a candidate survives. The exact
// ladder is a documented policy: a request should get some region while any
// active region exists, so filters are shed from most to least optional.
const (
	relaxNone       = "none"           // geo + breaker + health filters
	relaxGeo        = "geo-dropped"    // breaker + health filters
	relaxBreaker    = "breaker-opened" // health filter only
	relaxLastResort = "last-resort"    // active regions only
)

// Service selects the best usable region for a request, combining geo
// affinity, circuit breaker state, health, and latency.
type Service struct {
	regions []model.Region
	byID    map[string]model.Region
	health  HealthSource
	breaker BreakerSource
	geo     *cache.Cache // country hint -> []string preferred region IDs

	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewService(regions []model.Region, health HealthSource, breaker BreakerSource, log *logger.Logger, m *metrics.Metrics) (*Service, error) {
	byID := make(map[string]model.Region, len(regions))
	active := 0
	for _, r := range regions {
		byID[r.ID] = r
		if r.Active {
			active++
		}
	}
	if active == 0 {
		return nil, apperrors.NewNoRegionAvailable()
	}

	return &Service{
		regions: regions,
		byID:    byID,
		health:  health,
		breaker: breaker,
		geo:     cache.New(geoCacheExpiry, 2*geoCacheExpiry),
		logger:  log,
		metrics: m,
	}, nil
}

// ActiveRegions returns the active subset of the catalog, ordered by ID.
func (s *Service) ActiveRegions() []model.Region {
	var active []model.Region
	for _, r := range s.regions {
		if r.Active {
			active = append(active, r)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].ID < active[j].ID })
	return active
}

// Region looks up a region by ID.
func (s *Service) Region(id string) (model.Region, error) {
	r, ok := s.byID[id]
	if !ok {
		return model.Region{}, apperrors.NewUnknownRegion(id)
	}
	return r, nil
}

// OptimalRegion returns the best currently-usable region. geoHint is an
// optional ISO country code; when it matches a region group, candidates are
// restricted to that group first. Filters are then relaxed step by step
// (geo, then breaker, then health) before giving up with
// ErrNoRegionAvailable.
func (s *Service) OptimalRegion(geoHint string) (model.Region, error) {
	active := s.ActiveRegions()
	if len(active) == 0 {
		s.metrics.IncRoutingError()
		return model.Region{}, apperrors.NewNoRegionAvailable()
	}

	snapshot := s.health.Snapshot()
	preferred := s.preferred(geoHint, active)

	type pass struct {
		relaxation   string
		pool         []model.Region
		checkBreaker bool
		checkHealth  bool
	}
	var passes []pass
	if len(preferred) > 0 {
		passes = append(passes,
			pass{relaxNone, preferred, true, true},
			pass{relaxGeo, active, true, true})
	} else {
		passes = append(passes, pass{relaxNone, active, true, true})
	}
	passes = append(passes,
		pass{relaxBreaker, active, false, true},
		pass{relaxLastResort, active, false, false})

	for _, p := range passes {
		candidates := s.filter(p.pool, snapshot, p.checkBreaker, p.checkHealth)
		if len(candidates) == 0 {
			continue
		}
		best := pickLowestLatency(candidates, snapshot)
		if p.relaxation != relaxNone && s.logger != nil {
			s.logger.Warn("routing filters relaxed",
				"relaxation", p.relaxation, "geo_hint", geoHint, "region", best.ID)
		}
		s.metrics.IncRoutingDecision(best.ID, p.relaxation)
		return best, nil
	}

	s.metrics.IncRoutingError()
	return model.Region{}, apperrors.NewNoRegionAvailable()
}

func (s *Service) filter(pool []model.Region, snapshot map[string]model.HealthStatus, checkBreaker, checkHealth bool) []model.Region {
	var out []model.Region
	for _, r := range pool {
		if checkBreaker && s.breaker.State(r.ID) == model.CircuitOpen {
			continue
		}
		if checkHealth && !snapshot[r.ID].Healthy {
			continue
		}
		out = append(out, r)
	}
	return out
}

// preferred computes the geo-affine subset of the active regions: regions
// listing the hint in their geo prefixes, or failing that, regions in the
// hint's mapped group. Results are cached since the catalog is static.
func (s *Service) preferred(geoHint string, active []model.Region) []model.Region {
	hint := strings.ToUpper(strings.TrimSpace(geoHint))
	if hint == "" {
		return nil
	}

	var ids []string
	if cached, found := s.geo.Get(hint); found {
		ids = cached.([]string)
	} else {
		ids = matchRegions(hint, active)
		s.geo.Set(hint, ids, cache.DefaultExpiration)
	}

	regions := make([]model.Region, 0, len(ids))
	for _, id := range ids {
		if r, ok := s.byID[id]; ok {
			regions = append(regions, r)
		}
	}
	return regions
}

func matchRegions(hint string, active []model.Region) []string {
	var byPrefix []string
	for _, r := range active {
		for _, c := range r.GeoPrefixes {
			if strings.EqualFold(c, hint) {
				byPrefix = append(byPrefix, r.ID)
				break
			}
		}
	}
	if len(byPrefix) > 0 {
		return byPrefix
	}

	group, ok := groupForCountry(hint)
	if !ok {
		return nil
	}
	var byGroup []string
	for _, r := range active {
		if strings.HasPrefix(r.ID, group+"-") {
			byGroup = append(byGroup, r.ID)
		}
	}
	return byGroup
}

// pickLowestLatency selects the candidate with the lowest p95 probe
// latency; ties break on region ID for determinism.
func pickLowestLatency(candidates []model.Region, snapshot map[string]model.HealthStatus) model.Region {
	best := candidates[0]
	bestLatency := snapshot[best.ID].LatencyP95
	for _, r := range candidates[1:] {
		latency := snapshot[r.ID].LatencyP95
		if latency < bestLatency || (latency == bestLatency && r.ID < best.ID) {
			best = r
			bestLatency = latency
		}
	}
	return best
}
