package geotech

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/caprock-geo/gms-cli/internal/db"
)

// validTables is an allowlist of table names that may be passed to generic
// spatial query functions. This prevents SQL injection through the table
// parameter.
var validTables = map[string]bool{
	"gms.geotechnical_points":  true,
	"gms.surface_observations": true,
	"gms.elevation_points":     true,
	"gms.slope_cells":          true,
	"gms.subsidence_regions":   true,
}

// Neighbor is one row returned by a proximity query.
type Neighbor struct {
	ID        uuid.UUID `json:"id"`
	DistanceM float64   `json:"distance_m"`
}

// validateTable checks that the given table name is in the allowlist.
func validateTable(table string) error {
	if !validTables[table] {
		return eris.Errorf("gms: invalid table name %q", table)
	}
	return nil
}

// NearestWithin finds rows of table within meters of a lon/lat point, in
// strictly ascending geodesic distance, capped at limit. Ties are broken by
// row id so repeated runs return the same order.
func NearestWithin(ctx context.Context, pool db.Pool, table string, lng, lat, meters float64, limit int) ([]Neighbor, error) {
	if err := validateTable(table); err != nil {
		return nil, err
	}
	sql := fmt.Sprintf(
		`SELECT id, ST_Distance(geom::geography, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography) AS distance_m FROM %s WHERE ST_DWithin(geom::geography, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $3) ORDER BY distance_m, id LIMIT $4`,
		table,
	)
	rows, err := pool.Query(ctx, sql, lng, lat, meters, limit)
	if err != nil {
		return nil, eris.Wrap(err, "gms: query nearest within")
	}
	return scanNeighbors(rows)
}

// NearestToSource finds rows of targetTable within meters of the stored
// geometry of one source row, in strictly ascending geodesic distance with
// the same id tie-break. Distance is measured between the stored geometries,
// so a line-segment source is matched against its whole extent rather than
// a single representative point.
func NearestToSource(ctx context.Context, pool db.Pool, sourceTable string, sourceID uuid.UUID, targetTable string, meters float64, limit int) ([]Neighbor, error) {
	if err := validateTable(sourceTable); err != nil {
		return nil, err
	}
	if err := validateTable(targetTable); err != nil {
		return nil, err
	}
	sql := fmt.Sprintf(
		`SELECT t.id, ST_Distance(t.geom::geography, s.geom::geography) AS distance_m FROM %s s JOIN %s t ON ST_DWithin(t.geom::geography, s.geom::geography, $2) WHERE s.id = $1 ORDER BY distance_m, t.id LIMIT $3`,
		sourceTable, targetTable,
	)
	rows, err := pool.Query(ctx, sql, sourceID, meters, limit)
	if err != nil {
		return nil, eris.Wrap(err, "gms: query nearest to source")
	}
	return scanNeighbors(rows)
}

// AllIDs returns every row id in table in id order, for callers that fan
// work out over a whole table.
func AllIDs(ctx context.Context, pool db.Pool, table string) ([]uuid.UUID, error) {
	if err := validateTable(table); err != nil {
		return nil, err
	}
	rows, err := pool.Query(ctx, fmt.Sprintf(`SELECT id FROM %s ORDER BY id`, table))
	if err != nil {
		return nil, eris.Wrap(err, "gms: query all ids")
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "gms: scan id row")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "gms: iterate id rows")
	}
	return ids, nil
}

func scanNeighbors(rows pgx.Rows) ([]Neighbor, error) {
	defer rows.Close()

	var neighbors []Neighbor
	for rows.Next() {
		var n Neighbor
		if err := rows.Scan(&n.ID, &n.DistanceM); err != nil {
			return nil, eris.Wrap(err, "gms: scan neighbor row")
		}
		neighbors = append(neighbors, n)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "gms: iterate neighbor rows")
	}
	return neighbors, nil
}
