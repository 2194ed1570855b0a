package geotech

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/caprock-geo/gms-cli/internal/db"
)

// PostgresStore implements Store using a Postgres connection pool with PostGIS.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// GetOrCreateProject implements Store.
func (s *PostgresStore) GetOrCreateProject(ctx context.Context, projectNumber, name string) (*Project, error) {
	sql := `
		INSERT INTO gms.projects (project_number, name)
		VALUES ($1, $2)
		ON CONFLICT (project_number) DO UPDATE SET
			name = COALESCE(NULLIF(EXCLUDED.name, ''), projects.name),
			updated_at = now()
		RETURNING id, project_number, name, client, created_at, updated_at
	`
	var p Project
	err := s.pool.QueryRow(ctx, sql, projectNumber, name).Scan(
		&p.ID, &p.ProjectNumber, &p.Name, &p.Client, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "gms: get or create project")
	}
	return &p, nil
}

const upsertPointSQL = `
	INSERT INTO gms.geotechnical_points (
		project_id, boring_id, geom, latitude, longitude, ground_elevation_m,
		investigation_date, total_depth_m, rock_depth_m, water_depth_m,
		description, data_source, confidence
	)
	VALUES ($1, $2, ST_SetSRID(ST_MakePoint($4, $3), 4326), $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	ON CONFLICT (project_id, boring_id) DO UPDATE SET
		geom = EXCLUDED.geom,
		latitude = EXCLUDED.latitude,
		longitude = EXCLUDED.longitude,
		ground_elevation_m = EXCLUDED.ground_elevation_m,
		investigation_date = EXCLUDED.investigation_date,
		total_depth_m = EXCLUDED.total_depth_m,
		rock_depth_m = EXCLUDED.rock_depth_m,
		water_depth_m = EXCLUDED.water_depth_m,
		description = EXCLUDED.description,
		data_source = EXCLUDED.data_source,
		confidence = EXCLUDED.confidence,
		updated_at = now()
	RETURNING id
`

const upsertSPTSQL = `
	INSERT INTO gms.spt_results (
		point_id, depth_m, n_value, blow_counts, penetration_mm,
		refusal, sampler_type, hammer_type, notes
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (point_id, depth_m) DO UPDATE SET
		n_value = EXCLUDED.n_value,
		blow_counts = EXCLUDED.blow_counts,
		penetration_mm = EXCLUDED.penetration_mm,
		refusal = EXCLUDED.refusal,
		sampler_type = EXCLUDED.sampler_type,
		hammer_type = EXCLUDED.hammer_type,
		notes = EXCLUDED.notes
`

// ImportBoring implements Store. Intervals are written in the order given,
// so callers control the stored depth ordering.
func (s *PostgresStore) ImportBoring(ctx context.Context, p *GeotechnicalPoint, results []SPTResult) (uuid.UUID, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return uuid.Nil, eris.Wrap(err, "gms: import boring: begin tx")
	}
	defer tx.Rollback(ctx)

	var id uuid.UUID
	err = tx.QueryRow(ctx, upsertPointSQL,
		p.ProjectID, p.BoringID, p.Latitude, p.Longitude, p.GroundElevationM,
		p.InvestigationDate, p.TotalDepthM, p.RockDepthM, p.WaterDepthM,
		p.Description, p.DataSource, p.Confidence,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, eris.Wrapf(err, "gms: import boring %s: upsert point", p.BoringID)
	}

	for _, r := range results {
		_, err := tx.Exec(ctx, upsertSPTSQL,
			id, r.DepthM, r.NValue, r.BlowCounts, r.PenetrationMM,
			r.Refusal, r.SamplerType, r.HammerType, r.Notes,
		)
		if err != nil {
			return uuid.Nil, eris.Wrapf(err, "gms: import boring %s: spt at %.3f m", p.BoringID, r.DepthM)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, eris.Wrapf(err, "gms: import boring %s: commit tx", p.BoringID)
	}
	return id, nil
}

// InsertObservation implements Store.
func (s *PostgresStore) InsertObservation(ctx context.Context, o *SurfaceObservation) (uuid.UUID, error) {
	sql := `
		INSERT INTO gms.surface_observations (
			geom, survey_id, route_id, start_lat, start_lon, end_lat, end_lon,
			distress_type, severity, rut_depth_mm, iri_m_per_km, observed_at,
			source, metadata
		)
		VALUES (
			ST_SetSRID(ST_MakeLine(ST_MakePoint($4, $3), ST_MakePoint($6, $5)), 4326),
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		)
		RETURNING id
	`
	meta := o.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	var id uuid.UUID
	err := s.pool.QueryRow(ctx, sql,
		o.SurveyID, o.RouteID, o.StartLat, o.StartLon, o.EndLat, o.EndLon,
		o.DistressType, o.Severity, o.RutDepthMM, o.IRIMPerKM, o.ObservedAt,
		o.Source, meta,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, eris.Wrap(err, "gms: insert surface observation")
	}
	return id, nil
}

// ReplaceElevationPoints implements Store.
func (s *PostgresStore) ReplaceElevationPoints(ctx context.Context, source string, pts []ElevationPoint) (int64, error) {
	rows := make([][]any, 0, len(pts))
	for _, p := range pts {
		geomb, err := pointEWKB(p.Longitude, p.Latitude)
		if err != nil {
			return 0, err
		}
		rows = append(rows, []any{geomb, p.Latitude, p.Longitude, p.ElevationM, source})
	}

	return s.replaceRows(ctx, replaceSpec{
		table:     "elevation_points",
		deleteSQL: `DELETE FROM gms.elevation_points WHERE source = $1`,
		deleteArg: []any{source},
		columns:   []string{"geom", "latitude", "longitude", "elevation_m", "source"},
		rows:      rows,
	})
}

// ReplaceSlopeCells implements Store.
func (s *PostgresStore) ReplaceSlopeCells(ctx context.Context, source string, cells []SlopeCell) (int64, error) {
	rows := make([][]any, 0, len(cells))
	for _, c := range cells {
		geomb, err := ringEWKB(c.RingLonLat)
		if err != nil {
			return 0, err
		}
		rows = append(rows, []any{
			geomb, c.AvgSlopeDeg, c.MaxSlopeDeg, c.PctAboveThresh,
			c.PixelCount, c.RiskLevel, source,
		})
	}

	return s.replaceRows(ctx, replaceSpec{
		table:     "slope_cells",
		deleteSQL: `DELETE FROM gms.slope_cells WHERE source = $1`,
		deleteArg: []any{source},
		columns:   []string{"geom", "avg_slope_deg", "max_slope_deg", "pct_above_threshold", "pixel_count", "risk_level", "source"},
		rows:      rows,
	})
}

// ReplaceSubsidenceRegions implements Store.
func (s *PostgresStore) ReplaceSubsidenceRegions(ctx context.Context, oldSource, newSource string, regions []SubsidenceRegion) (int64, error) {
	now := time.Now().UTC()
	rows := make([][]any, 0, len(regions))
	for _, r := range regions {
		geomb, err := ringEWKB(r.RingLonLat)
		if err != nil {
			return 0, err
		}
		detected := r.DetectedAt
		if detected.IsZero() {
			detected = now
		}
		rows = append(rows, []any{
			geomb, r.AvgSubsidenceM, r.MaxSubsidenceM, r.AreaM2,
			r.PixelCount, oldSource, newSource, detected,
		})
	}

	return s.replaceRows(ctx, replaceSpec{
		table:     "subsidence_regions",
		deleteSQL: `DELETE FROM gms.subsidence_regions WHERE old_source = $1 AND new_source = $2`,
		deleteArg: []any{oldSource, newSource},
		columns:   []string{"geom", "avg_subsidence_m", "max_subsidence_m", "area_m2", "pixel_count", "old_source", "new_source", "detected_at"},
		rows:      rows,
	})
}

// UpsertCorrelationEdges implements Store.
func (s *PostgresStore) UpsertCorrelationEdges(ctx context.Context, edges []CorrelationEdge) (int64, error) {
	now := time.Now().UTC()
	rows := make([][]any, len(edges))
	for i, e := range edges {
		rows[i] = []any{e.SourceTable, e.SourceID, e.TargetTable, e.TargetID, e.DistanceM, e.Score, now}
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "gms.spatial_correlations",
		Columns:      []string{"source_table", "source_id", "target_table", "target_id", "distance_m", "score", "updated_at"},
		ConflictKeys: []string{"source_table", "source_id", "target_table", "target_id"},
		UpdateCols:   []string{"distance_m", "score", "updated_at"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "gms: upsert correlation edges")
	}
	return n, nil
}

// replaceSpec describes one delete-then-COPY replacement batch.
type replaceSpec struct {
	table     string
	deleteSQL string
	deleteArg []any
	columns   []string
	rows      [][]any
}

// replaceRows deletes prior rows and COPY-loads the new batch in one
// transaction. An empty batch still runs the delete, leaving the scope empty.
func (s *PostgresStore) replaceRows(ctx context.Context, spec replaceSpec) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrapf(err, "gms: replace %s: begin tx", spec.table)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, spec.deleteSQL, spec.deleteArg...); err != nil {
		return 0, eris.Wrapf(err, "gms: replace %s: delete prior rows", spec.table)
	}

	var n int64
	if len(spec.rows) > 0 {
		n, err = tx.CopyFrom(ctx, pgx.Identifier{"gms", spec.table}, spec.columns, pgx.CopyFromRows(spec.rows))
		if err != nil {
			return 0, eris.Wrapf(err, "gms: replace %s: COPY new rows", spec.table)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrapf(err, "gms: replace %s: commit tx", spec.table)
	}
	return n, nil
}
