package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jwalitptl/mesh-api/internal/model"
	"github.com/jwalitptl/mesh-api/internal/repository"
)

type regionRepository struct {
	db *sqlx.DB
}

func NewRegionRepository(db *sqlx.DB) repository.RegionRepository {
	return &regionRepository{db: db}
}

type regionRow struct {
	ID          string         `db:"id"`
	GeoPrefixes pq.StringArray `db:"geo_prefixes"`
	Endpoint    string         `db:"endpoint"`
	Active      bool           `db:"active"`
}

func (r *regionRepository) ListRegions(ctx context.Context) ([]model.Region, error) {
	query := `
		SELECT id, geo_prefixes, endpoint, active
		FROM regions
		ORDER BY id
	`

	var rows []regionRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list regions: %w", err)
	}

	regions := make([]model.Region, 0, len(rows))
	for _, row := range rows {
		regions = append(regions, model.Region{
			ID:          row.ID,
			GeoPrefixes: []string(row.GeoPrefixes),
			Endpoint:    row.Endpoint,
			Active:      row.Active,
		})
	}
	return regions, nil
}
