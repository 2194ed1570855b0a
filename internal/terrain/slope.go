// Package terrain derives slope, aspect, elevation samples and subsidence
// regions from elevation grids.
package terrain

import (
	"math"

	"github.com/caprock-geo/gms-cli/internal/raster"
)

// SlopeAspect computes per-pixel slope and aspect in degrees from an
// elevation grid. cellSizeM is the ground distance between adjacent pixels
// in meters, applied to both axes. The gradient uses central differences in
// the interior and one-sided differences at the edges; an axis shorter than
// two pixels contributes a zero derivative. NaN elevations propagate into
// every derivative that reads them. Aspect is normalized into [0, 360).
func SlopeAspect(g *raster.Grid, cellSizeM float64) (slope, aspect *raster.Grid) {
	dRow := gradientRows(g, cellSizeM)
	dCol := gradientCols(g, cellSizeM)

	slope = raster.NewGrid(g.Width, g.Height, g.Transform)
	slope.CRS = g.CRS
	aspect = raster.NewGrid(g.Width, g.Height, g.Transform)
	aspect.CRS = g.CRS

	for i := range g.Data {
		dy, dx := dRow[i], dCol[i]
		slope.Data[i] = math.Atan(math.Hypot(dx, dy)) * 180 / math.Pi

		a := math.Atan2(-dy, dx) * 180 / math.Pi
		if a < 0 {
			a += 360
		}
		aspect.Data[i] = a
	}

	return slope, aspect
}

// gradientRows returns the derivative along the row axis for every pixel.
func gradientRows(g *raster.Grid, h float64) []float64 {
	out := make([]float64, len(g.Data))
	if g.Height < 2 {
		return out
	}
	last := g.Height - 1
	for c := 0; c < g.Width; c++ {
		out[c] = (g.At(c, 1) - g.At(c, 0)) / h
		for r := 1; r < last; r++ {
			out[r*g.Width+c] = (g.At(c, r+1) - g.At(c, r-1)) / (2 * h)
		}
		out[last*g.Width+c] = (g.At(c, last) - g.At(c, last-1)) / h
	}
	return out
}

// gradientCols returns the derivative along the column axis for every pixel.
func gradientCols(g *raster.Grid, h float64) []float64 {
	out := make([]float64, len(g.Data))
	if g.Width < 2 {
		return out
	}
	last := g.Width - 1
	for r := 0; r < g.Height; r++ {
		base := r * g.Width
		out[base] = (g.At(1, r) - g.At(0, r)) / h
		for c := 1; c < last; c++ {
			out[base+c] = (g.At(c+1, r) - g.At(c-1, r)) / (2 * h)
		}
		out[base+last] = (g.At(last, r) - g.At(last-1, r)) / h
	}
	return out
}

// ClassifyRisk maps a maximum slope in degrees to a risk category. Bounds
// are half-open: exactly 15 is moderate, 30 high, 45 very_high.
func ClassifyRisk(maxSlopeDeg float64) string {
	switch {
	case maxSlopeDeg < 15:
		return "low"
	case maxSlopeDeg < 30:
		return "moderate"
	case maxSlopeDeg < 45:
		return "high"
	default:
		return "very_high"
	}
}
