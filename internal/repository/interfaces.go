package repository

import (
	"context"

	"github.com/jwalitptl/mesh-api/internal/model"
)

// RegionRepository supplies the region catalog. It is read once at process
// start; the routing layer never mutates regions at runtime.
type RegionRepository interface {
	ListRegions(ctx context.Context) ([]model.Region, error)
}
