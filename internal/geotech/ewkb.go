package geotech

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
)

// pointEWKB encodes a lon/lat position as EWKB with SRID 4326.
func pointEWKB(lon, lat float64) ([]byte, error) {
	pt := geom.NewPointFlat(geom.XY, []float64{lon, lat}).SetSRID(4326)
	data, err := ewkb.Marshal(pt, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "gms: encode point")
	}
	return data, nil
}

// ringEWKB encodes a closed lon/lat ring as a single-ring EWKB polygon with
// SRID 4326. The ring must repeat its first position at the end and hold at
// least four positions.
func ringEWKB(ring [][2]float64) ([]byte, error) {
	if len(ring) < 4 {
		return nil, eris.Errorf("gms: polygon ring needs at least 4 positions, got %d", len(ring))
	}
	flat := make([]float64, 0, len(ring)*2)
	for _, c := range ring {
		flat = append(flat, c[0], c[1])
	}
	poly := geom.NewPolygonFlat(geom.XY, flat, []int{len(flat)}).SetSRID(4326)
	data, err := ewkb.Marshal(poly, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "gms: encode polygon")
	}
	return data, nil
}
