// Package correlate links surface observations to nearby subsurface
// records, scoring each pair by geodesic distance tier.
package correlate

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/caprock-geo/gms-cli/internal/db"
	"github.com/caprock-geo/gms-cli/internal/geotech"
)

// Defaults for a correlation run.
const (
	DefaultSourceTable  = "gms.surface_observations"
	DefaultTargetTable  = "gms.geotechnical_points"
	DefaultMaxDistanceM = 50.0
	DefaultK            = 5
	DefaultConcurrency  = 4
)

// Score maps a distance in meters onto a confidence tier. Bounds are
// strict: exactly 10 m scores 0.8, not 1.0.
func Score(distanceM float64) float64 {
	switch {
	case distanceM < 10:
		return 1.0
	case distanceM < 25:
		return 0.8
	case distanceM < 50:
		return 0.6
	default:
		return 0.4
	}
}

// Correlator fans proximity queries out over source rows and upserts one
// edge batch per source. Zero fields fall back to the package defaults.
type Correlator struct {
	Pool         db.Pool
	Store        geotech.Store
	SourceTable  string
	TargetTable  string
	MaxDistanceM float64
	K            int
	Concurrency  int
}

// Summary reports one correlation run.
type Summary struct {
	Sources  int   `json:"sources"`
	Edges    int64 `json:"edges"`
	Failures int   `json:"failures"`
}

// Run correlates the given source rows, or every row in the source table
// when ids is empty. Re-runs update existing edges in place. Per-source
// failures are counted and logged, not fatal.
func (c *Correlator) Run(ctx context.Context, ids []uuid.UUID) (*Summary, error) {
	log := zap.L().With(zap.String("component", "correlate"))

	if len(ids) == 0 {
		var err error
		ids, err = geotech.AllIDs(ctx, c.Pool, c.sourceTable())
		if err != nil {
			return nil, err
		}
	}
	sum := &Summary{Sources: len(ids)}
	if len(ids) == 0 {
		log.Info("nothing to correlate", zap.String("source", c.sourceTable()))
		return sum, nil
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency())

	var mu sync.Mutex
	for _, id := range ids {
		id := id
		g.Go(func() error {
			edges, err := c.correlateSource(gCtx, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				sum.Failures++
				log.Warn("correlation failed for source",
					zap.String("source_id", id.String()), zap.Error(err))
				return nil
			}
			sum.Edges += edges
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return sum, eris.Wrap(err, "correlate: run cancelled")
	}

	log.Info("correlation complete",
		zap.Int("sources", sum.Sources),
		zap.Int64("edges", sum.Edges),
		zap.Int("failures", sum.Failures))
	return sum, nil
}

// correlateSource finds the nearest targets for one source row and writes
// its edges as a single batch.
func (c *Correlator) correlateSource(ctx context.Context, sourceID uuid.UUID) (int64, error) {
	neighbors, err := geotech.NearestToSource(ctx, c.Pool,
		c.sourceTable(), sourceID, c.targetTable(), c.maxDistance(), c.k())
	if err != nil {
		return 0, err
	}
	if len(neighbors) == 0 {
		return 0, nil
	}

	edges := make([]geotech.CorrelationEdge, 0, len(neighbors))
	for _, n := range neighbors {
		edges = append(edges, geotech.CorrelationEdge{
			SourceTable: c.sourceTable(),
			SourceID:    sourceID,
			TargetTable: c.targetTable(),
			TargetID:    n.ID,
			DistanceM:   n.DistanceM,
			Score:       Score(n.DistanceM),
		})
	}
	return c.Store.UpsertCorrelationEdges(ctx, edges)
}

func (c *Correlator) sourceTable() string {
	if c.SourceTable == "" {
		return DefaultSourceTable
	}
	return c.SourceTable
}

func (c *Correlator) targetTable() string {
	if c.TargetTable == "" {
		return DefaultTargetTable
	}
	return c.TargetTable
}

func (c *Correlator) maxDistance() float64 {
	if c.MaxDistanceM <= 0 {
		return DefaultMaxDistanceM
	}
	return c.MaxDistanceM
}

func (c *Correlator) k() int {
	if c.K <= 0 {
		return DefaultK
	}
	return c.K
}

func (c *Correlator) concurrency() int {
	if c.Concurrency <= 0 {
		return DefaultConcurrency
	}
	return c.Concurrency
}
