package geotech

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/caprock-geo/gms-cli/internal/db"
)

// DistressPattern holds aggregated subsurface statistics for one distress
// type and severity combination, built from correlated borings.
type DistressPattern struct {
	DistressType     string   `json:"distress_type"`
	Severity         string   `json:"severity"`
	ObservationCount int      `json:"observation_count"`
	BoringCount      int      `json:"boring_count"`
	AvgRutDepthMM    *float64 `json:"avg_rut_depth_mm,omitempty"`
	AvgDistanceM     float64  `json:"avg_distance_m"`
	AvgScore         float64  `json:"avg_score"`
	AvgShallowN      float64  `json:"avg_shallow_n"`
	MinShallowN      int      `json:"min_shallow_n"`
	MaxShallowN      int      `json:"max_shallow_n"`
	SoilCondition    string   `json:"soil_condition"`
}

// DistressPatterns aggregates correlated observation/boring pairs by distress
// type and severity, averaging SPT N-values no deeper than maxDepthM. Groups
// correlated to fewer than minBorings distinct borings are dropped.
func DistressPatterns(ctx context.Context, pool db.Pool, maxDepthM float64, minBorings int) ([]DistressPattern, error) {
	sql := `
		SELECT
			o.distress_type,
			o.severity,
			COUNT(DISTINCT o.id) AS observation_count,
			COUNT(DISTINCT gp.id) AS boring_count,
			AVG(o.rut_depth_mm) AS avg_rut_depth_mm,
			AVG(sc.distance_m) AS avg_distance_m,
			AVG(sc.score) AS avg_score,
			AVG(spt.n_value) AS avg_shallow_n,
			MIN(spt.n_value) AS min_shallow_n,
			MAX(spt.n_value) AS max_shallow_n
		FROM gms.spatial_correlations sc
		JOIN gms.surface_observations o
			ON sc.source_table = 'gms.surface_observations' AND o.id = sc.source_id
		JOIN gms.geotechnical_points gp
			ON sc.target_table = 'gms.geotechnical_points' AND gp.id = sc.target_id
		JOIN gms.spt_results spt
			ON spt.point_id = gp.id AND spt.depth_m <= $1
		GROUP BY o.distress_type, o.severity
		HAVING COUNT(DISTINCT gp.id) >= $2
		ORDER BY o.distress_type, o.severity
	`
	rows, err := pool.Query(ctx, sql, maxDepthM, minBorings)
	if err != nil {
		return nil, eris.Wrap(err, "gms: query distress patterns")
	}
	defer rows.Close()

	var patterns []DistressPattern
	for rows.Next() {
		var p DistressPattern
		if err := rows.Scan(
			&p.DistressType, &p.Severity,
			&p.ObservationCount, &p.BoringCount,
			&p.AvgRutDepthMM, &p.AvgDistanceM, &p.AvgScore,
			&p.AvgShallowN, &p.MinShallowN, &p.MaxShallowN,
		); err != nil {
			return nil, eris.Wrap(err, "gms: scan distress pattern row")
		}
		p.SoilCondition = SoilCondition(p.AvgShallowN)
		patterns = append(patterns, p)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "gms: iterate distress pattern rows")
	}
	return patterns, nil
}

// SoilCondition labels an average N-value using standard consistency bands.
func SoilCondition(avgN float64) string {
	switch {
	case avgN < 5:
		return "Very Soft/Loose"
	case avgN < 10:
		return "Soft/Loose"
	case avgN < 30:
		return "Medium"
	case avgN < 50:
		return "Dense/Stiff"
	default:
		return "Very Dense/Hard"
	}
}
