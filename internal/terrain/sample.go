package terrain

import (
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/caprock-geo/gms-cli/internal/geotech"
	"github.com/caprock-geo/gms-cli/internal/raster"
)

// SampleElevations extracts every stride-th pixel in both axes, skipping
// nodata cells, and converts each pixel center to lon/lat through tr.
func SampleElevations(g *raster.Grid, tr raster.CoordTransformer, stride int) ([]geotech.ElevationPoint, error) {
	if stride < 1 {
		return nil, eris.Errorf("terrain: sample stride must be >= 1, got %d", stride)
	}

	var pts []geotech.ElevationPoint
	skipped := 0

	for r := 0; r < g.Height; r += stride {
		for c := 0; c < g.Width; c += stride {
			v := g.At(c, r)
			if math.IsNaN(v) {
				continue
			}
			x, y := g.Transform.Apply(float64(c)+0.5, float64(r)+0.5)
			lon, lat, err := tr.ToLonLat(x, y)
			if err != nil {
				skipped++
				continue
			}
			pts = append(pts, geotech.ElevationPoint{
				Latitude:   lat,
				Longitude:  lon,
				ElevationM: v,
			})
		}
	}

	if skipped > 0 {
		zap.L().With(zap.String("component", "terrain.sample")).
			Warn("skipped untransformable sample positions", zap.Int("count", skipped))
	}
	return pts, nil
}
