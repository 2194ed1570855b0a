package correlate

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caprock-geo/gms-cli/internal/geotech"
)

func TestScore_TierBoundaries(t *testing.T) {
	tests := []struct {
		distance float64
		want     float64
	}{
		{0, 1.0},
		{9.99, 1.0},
		{10, 0.8}, // upper bounds are strict
		{24.9, 0.8},
		{25, 0.6},
		{49.9, 0.6},
		{50, 0.4},
		{1200, 0.4},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Score(tt.distance), "distance %g", tt.distance)
	}
}

type fakeStore struct {
	batches    [][]geotech.CorrelationEdge
	failUpsert bool
}

func (s *fakeStore) GetOrCreateProject(ctx context.Context, projectNumber, name string) (*geotech.Project, error) {
	return nil, eris.New("not implemented")
}

func (s *fakeStore) ImportBoring(ctx context.Context, p *geotech.GeotechnicalPoint, results []geotech.SPTResult) (uuid.UUID, error) {
	return uuid.Nil, eris.New("not implemented")
}

func (s *fakeStore) InsertObservation(ctx context.Context, o *geotech.SurfaceObservation) (uuid.UUID, error) {
	return uuid.Nil, eris.New("not implemented")
}

func (s *fakeStore) ReplaceElevationPoints(ctx context.Context, source string, pts []geotech.ElevationPoint) (int64, error) {
	return 0, eris.New("not implemented")
}

func (s *fakeStore) ReplaceSlopeCells(ctx context.Context, source string, cells []geotech.SlopeCell) (int64, error) {
	return 0, eris.New("not implemented")
}

func (s *fakeStore) ReplaceSubsidenceRegions(ctx context.Context, oldSource, newSource string, regions []geotech.SubsidenceRegion) (int64, error) {
	return 0, eris.New("not implemented")
}

func (s *fakeStore) UpsertCorrelationEdges(ctx context.Context, edges []geotech.CorrelationEdge) (int64, error) {
	if s.failUpsert {
		return 0, eris.New("connection refused")
	}
	s.batches = append(s.batches, edges)
	return int64(len(edges)), nil
}

const nearestToSourceSQL = `SELECT t\.id, ST_Distance.+ FROM gms\.surface_observations s JOIN gms\.geotechnical_points t`

func TestCorrelator_RunWithIDs(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	source1 := uuid.New()
	source2 := uuid.New()
	target1 := uuid.New()
	target2 := uuid.New()

	mock.ExpectQuery(nearestToSourceSQL).
		WithArgs(source1, 50.0, 5).
		WillReturnRows(pgxmock.NewRows([]string{"id", "distance_m"}).
			AddRow(target1, 4.2).
			AddRow(target2, 31.9))
	mock.ExpectQuery(nearestToSourceSQL).
		WithArgs(source2, 50.0, 5).
		WillReturnRows(pgxmock.NewRows([]string{"id", "distance_m"}))

	store := &fakeStore{}
	c := &Correlator{Pool: mock, Store: store, Concurrency: 1}

	sum, err := c.Run(context.Background(), []uuid.UUID{source1, source2})
	require.NoError(t, err)

	assert.Equal(t, 2, sum.Sources)
	assert.Equal(t, int64(2), sum.Edges)
	assert.Equal(t, 0, sum.Failures)

	require.Len(t, store.batches, 1)
	batch := store.batches[0]
	require.Len(t, batch, 2)
	assert.Equal(t, DefaultSourceTable, batch[0].SourceTable)
	assert.Equal(t, source1, batch[0].SourceID)
	assert.Equal(t, DefaultTargetTable, batch[0].TargetTable)
	assert.Equal(t, target1, batch[0].TargetID)
	assert.Equal(t, 4.2, batch[0].DistanceM)
	assert.Equal(t, 1.0, batch[0].Score)
	assert.Equal(t, target2, batch[1].TargetID)
	assert.Equal(t, 0.6, batch[1].Score)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCorrelator_FetchesAllSourceIDsWhenEmpty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	source := uuid.New()
	target := uuid.New()

	mock.ExpectQuery(`SELECT id FROM gms\.surface_observations ORDER BY id`).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(source))
	mock.ExpectQuery(nearestToSourceSQL).
		WithArgs(source, 50.0, 5).
		WillReturnRows(pgxmock.NewRows([]string{"id", "distance_m"}).
			AddRow(target, 12.0))

	store := &fakeStore{}
	c := &Correlator{Pool: mock, Store: store, Concurrency: 1}

	sum, err := c.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Sources)
	assert.Equal(t, int64(1), sum.Edges)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCorrelator_EmptySourceTableIsNoOp(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT id FROM gms\.surface_observations ORDER BY id`).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	store := &fakeStore{}
	c := &Correlator{Pool: mock, Store: store}

	sum, err := c.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Sources)
	assert.Equal(t, int64(0), sum.Edges)
	assert.Empty(t, store.batches)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCorrelator_PerSourceQueryFailureIsCounted(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	source1 := uuid.New()
	source2 := uuid.New()
	target := uuid.New()

	mock.ExpectQuery(nearestToSourceSQL).
		WithArgs(source1, 50.0, 5).
		WillReturnError(fmt.Errorf("connection refused"))
	mock.ExpectQuery(nearestToSourceSQL).
		WithArgs(source2, 50.0, 5).
		WillReturnRows(pgxmock.NewRows([]string{"id", "distance_m"}).
			AddRow(target, 8.0))

	store := &fakeStore{}
	c := &Correlator{Pool: mock, Store: store, Concurrency: 1}

	sum, err := c.Run(context.Background(), []uuid.UUID{source1, source2})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Sources)
	assert.Equal(t, int64(1), sum.Edges)
	assert.Equal(t, 1, sum.Failures)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCorrelator_UpsertFailureIsCounted(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	source := uuid.New()
	target := uuid.New()

	mock.ExpectQuery(nearestToSourceSQL).
		WithArgs(source, 50.0, 5).
		WillReturnRows(pgxmock.NewRows([]string{"id", "distance_m"}).
			AddRow(target, 8.0))

	store := &fakeStore{failUpsert: true}
	c := &Correlator{Pool: mock, Store: store, Concurrency: 1}

	sum, err := c.Run(context.Background(), []uuid.UUID{source})
	require.NoError(t, err)
	assert.Equal(t, int64(0), sum.Edges)
	assert.Equal(t, 1, sum.Failures)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCorrelator_CustomTablesAndLimits(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	source := uuid.New()
	target := uuid.New()

	mock.ExpectQuery(`SELECT t\.id, ST_Distance.+ FROM gms\.slope_cells s JOIN gms\.geotechnical_points t`).
		WithArgs(source, 100.0, 3).
		WillReturnRows(pgxmock.NewRows([]string{"id", "distance_m"}).
			AddRow(target, 61.5))

	store := &fakeStore{}
	c := &Correlator{
		Pool:         mock,
		Store:        store,
		SourceTable:  "gms.slope_cells",
		MaxDistanceM: 100,
		K:            3,
		Concurrency:  1,
	}

	sum, err := c.Run(context.Background(), []uuid.UUID{source})
	require.NoError(t, err)
	assert.Equal(t, int64(1), sum.Edges)
	require.Len(t, store.batches, 1)
	assert.Equal(t, "gms.slope_cells", store.batches[0][0].SourceTable)
	assert.Equal(t, 0.4, store.batches[0][0].Score)
	assert.NoError(t, mock.ExpectationsWereMet())
}
