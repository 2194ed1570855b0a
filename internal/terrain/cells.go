package terrain

import (
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/caprock-geo/gms-cli/internal/geotech"
	"github.com/caprock-geo/gms-cli/internal/raster"
)

// AggregateCells partitions a slope grid into square cells of sizePx pixels
// (edge cells may be smaller) and emits one SlopeCell per cell holding at
// least one valid pixel strictly above thresholdDeg. Statistics cover valid
// (non-NaN) pixels only. The cell polygon is its pixel-corner rectangle
// pushed through tr as a closed ring.
func AggregateCells(slope *raster.Grid, tr raster.CoordTransformer, sizePx int, thresholdDeg float64) ([]geotech.SlopeCell, error) {
	if sizePx < 1 {
		return nil, eris.Errorf("terrain: cell size must be >= 1, got %d", sizePx)
	}

	log := zap.L().With(zap.String("component", "terrain.cells"))
	var cells []geotech.SlopeCell
	skipped := 0

	for r := 0; r < slope.Height; r += sizePx {
		rEnd := r + sizePx
		if rEnd > slope.Height {
			rEnd = slope.Height
		}
		for c := 0; c < slope.Width; c += sizePx {
			cEnd := c + sizePx
			if cEnd > slope.Width {
				cEnd = slope.Width
			}

			valid, exceed := 0, 0
			sum := 0.0
			maxDeg := math.Inf(-1)
			for rr := r; rr < rEnd; rr++ {
				for cc := c; cc < cEnd; cc++ {
					v := slope.At(cc, rr)
					if math.IsNaN(v) {
						continue
					}
					valid++
					sum += v
					if v > maxDeg {
						maxDeg = v
					}
					if v > thresholdDeg {
						exceed++
					}
				}
			}
			if exceed == 0 {
				continue
			}

			ring, err := cornerRing(slope.Transform, tr, c, r, cEnd, rEnd)
			if err != nil {
				log.Warn("skipping cell with untransformable corners",
					zap.Int("col", c), zap.Int("row", r), zap.Error(err))
				skipped++
				continue
			}

			cells = append(cells, geotech.SlopeCell{
				RingLonLat:     ring,
				AvgSlopeDeg:    sum / float64(valid),
				MaxSlopeDeg:    maxDeg,
				PctAboveThresh: float64(exceed) / float64(valid) * 100,
				PixelCount:     valid,
				RiskLevel:      ClassifyRisk(maxDeg),
			})
		}
	}

	if skipped > 0 {
		log.Warn("cells skipped during aggregation", zap.Int("count", skipped))
	}
	return cells, nil
}

// cornerRing builds the closed lon/lat ring for a pixel rectangle spanning
// columns [c0, c1) and rows [r0, r1).
func cornerRing(a raster.Affine, tr raster.CoordTransformer, c0, r0, c1, r1 int) ([][2]float64, error) {
	corners := [5][2]float64{
		{float64(c0), float64(r0)},
		{float64(c1), float64(r0)},
		{float64(c1), float64(r1)},
		{float64(c0), float64(r1)},
		{float64(c0), float64(r0)},
	}

	ring := make([][2]float64, 0, len(corners))
	for _, cr := range corners {
		x, y := a.Apply(cr[0], cr[1])
		lon, lat, err := tr.ToLonLat(x, y)
		if err != nil {
			return nil, err
		}
		ring = append(ring, [2]float64{lon, lat})
	}
	return ring, nil
}
