package terrain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caprock-geo/gms-cli/internal/raster"
)

func gridFrom(t *testing.T, width, height int, values []float64) *raster.Grid {
	t.Helper()
	require.Len(t, values, width*height)
	g := raster.NewGrid(width, height, raster.Affine{ScaleX: 1, ScaleY: -1})
	copy(g.Data, values)
	return g
}

func TestSlopeAspect_FlatGrid(t *testing.T) {
	g := gridFrom(t, 3, 3, []float64{
		7, 7, 7,
		7, 7, 7,
		7, 7, 7,
	})

	slope, aspect := SlopeAspect(g, 1)
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			assert.InDelta(t, 0, slope.At(c, r), 1e-9)
			assert.InDelta(t, 0, aspect.At(c, r), 1e-9)
		}
	}
}

func TestSlopeAspect_UnitRampIs45Degrees(t *testing.T) {
	// Elevation climbs one meter per one-meter pixel along the column axis.
	g := gridFrom(t, 3, 3, []float64{
		0, 1, 2,
		0, 1, 2,
		0, 1, 2,
	})

	slope, aspect := SlopeAspect(g, 1)
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			assert.InDelta(t, 45, slope.At(c, r), 1e-9)
			assert.InDelta(t, 0, aspect.At(c, r), 1e-9)
		}
	}
}

func TestSlopeAspect_RowRampAspect(t *testing.T) {
	// Elevation climbing with the row index puts the gradient at 270.
	down := gridFrom(t, 3, 3, []float64{
		0, 0, 0,
		1, 1, 1,
		2, 2, 2,
	})
	_, aspect := SlopeAspect(down, 1)
	assert.InDelta(t, 270, aspect.At(1, 1), 1e-9)

	// The opposite ramp faces 90.
	up := gridFrom(t, 3, 3, []float64{
		2, 2, 2,
		1, 1, 1,
		0, 0, 0,
	})
	_, aspect = SlopeAspect(up, 1)
	assert.InDelta(t, 90, aspect.At(1, 1), 1e-9)
}

func TestSlopeAspect_PixelSizeFlattens(t *testing.T) {
	g := gridFrom(t, 3, 1, []float64{0, 1, 2})

	slope, _ := SlopeAspect(g, 2)
	// Same one-meter rise over a two-meter run.
	assert.InDelta(t, math.Atan(0.5)*180/math.Pi, slope.At(1, 0), 1e-9)
}

func TestSlopeAspect_NaNTouchesNeighborsOnly(t *testing.T) {
	g := gridFrom(t, 3, 3, []float64{
		0, 1, 2,
		0, math.NaN(), 2,
		0, 1, 2,
	})

	slope, _ := SlopeAspect(g, 1)

	// Edge-adjacent pixels read the hole through one-sided differences.
	assert.True(t, math.IsNaN(slope.At(0, 1)))
	assert.True(t, math.IsNaN(slope.At(2, 1)))
	assert.True(t, math.IsNaN(slope.At(1, 0)))
	assert.True(t, math.IsNaN(slope.At(1, 2)))

	// Central differences at the hole itself skip it, as do the corners.
	assert.False(t, math.IsNaN(slope.At(1, 1)))
	assert.False(t, math.IsNaN(slope.At(0, 0)))
	assert.False(t, math.IsNaN(slope.At(2, 2)))
}

func TestSlopeAspect_SingleRow(t *testing.T) {
	g := gridFrom(t, 3, 1, []float64{0, 1, 2})

	slope, _ := SlopeAspect(g, 1)
	assert.InDelta(t, 45, slope.At(0, 0), 1e-9)
	assert.InDelta(t, 45, slope.At(2, 0), 1e-9)
}

func TestSlopeAspect_KeepsGeoreferencing(t *testing.T) {
	g := raster.NewGrid(2, 2, raster.Affine{OriginX: -95, ScaleX: 0.01, OriginY: 30, ScaleY: -0.01})
	g.CRS = "EPSG:4326"

	slope, aspect := SlopeAspect(g, 30)
	assert.Equal(t, g.Transform, slope.Transform)
	assert.Equal(t, g.CRS, slope.CRS)
	assert.Equal(t, g.Transform, aspect.Transform)
}

func TestClassifyRisk(t *testing.T) {
	tests := []struct {
		slope float64
		want  string
	}{
		{0, "low"},
		{14.9, "low"},
		{15, "moderate"},
		{29.9, "moderate"},
		{30, "high"},
		{44.9, "high"},
		{45, "very_high"},
		{60, "very_high"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyRisk(tt.slope), "slope %v", tt.slope)
	}
}
