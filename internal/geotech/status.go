package geotech

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/caprock-geo/gms-cli/internal/db"
)

// TableCount is the row count of one gms table.
type TableCount struct {
	Table string `json:"table"`
	Rows  int64  `json:"rows"`
}

// statusTables are counted by TableCounts, in display order.
var statusTables = []string{
	"gms.projects",
	"gms.geotechnical_points",
	"gms.spt_results",
	"gms.surface_observations",
	"gms.elevation_points",
	"gms.slope_cells",
	"gms.subsidence_regions",
	"gms.spatial_correlations",
}

// TableCounts returns per-table row counts for the gms schema.
func TableCounts(ctx context.Context, pool db.Pool) ([]TableCount, error) {
	counts := make([]TableCount, 0, len(statusTables))
	for _, table := range statusTables {
		var n int64
		if err := pool.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, table)).Scan(&n); err != nil {
			return nil, eris.Wrapf(err, "gms: count %s", table)
		}
		counts = append(counts, TableCount{Table: table, Rows: n})
	}
	return counts, nil
}
