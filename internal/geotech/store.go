package geotech

import (
	"context"

	"github.com/google/uuid"
)

// Store defines persistence operations for gms.* records.
type Store interface {
	// GetOrCreateProject returns the project with the given number,
	// creating it first if missing.
	GetOrCreateProject(ctx context.Context, projectNumber, name string) (*Project, error)

	// ImportBoring upserts a boring point by (project_id, boring_id) and its
	// SPT intervals by (point_id, depth_m) in one transaction, returning the
	// point id. A failure rolls back the whole record.
	ImportBoring(ctx context.Context, p *GeotechnicalPoint, results []SPTResult) (uuid.UUID, error)

	// InsertObservation inserts one surface observation and returns its id.
	InsertObservation(ctx context.Context, o *SurfaceObservation) (uuid.UUID, error)

	// ReplaceElevationPoints drops prior rows for the source and COPY-loads
	// the new batch in one transaction.
	ReplaceElevationPoints(ctx context.Context, source string, pts []ElevationPoint) (int64, error)

	// ReplaceSlopeCells drops prior rows for the source and COPY-loads the
	// new batch in one transaction.
	ReplaceSlopeCells(ctx context.Context, source string, cells []SlopeCell) (int64, error)

	// ReplaceSubsidenceRegions drops prior rows for the (old, new) source
	// pair and COPY-loads the new batch in one transaction.
	ReplaceSubsidenceRegions(ctx context.Context, oldSource, newSource string, regions []SubsidenceRegion) (int64, error)

	// UpsertCorrelationEdges inserts or updates edges by their 4-tuple key.
	// Re-running correlation overwrites distance and score in place.
	UpsertCorrelationEdges(ctx context.Context, edges []CorrelationEdge) (int64, error)
}
