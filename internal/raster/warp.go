package raster

import (
	"math"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-proj/v10"
)

// IsGeographic reports whether a CRS hint already describes geographic
// lon/lat coordinates. An empty hint is treated as geographic. WKT is
// checked for a projected wrapper before the geographic base it nests.
func IsGeographic(crs string) bool {
	s := strings.ToUpper(strings.TrimSpace(crs))
	switch {
	case s == "":
		return true
	case strings.Contains(s, "+PROJ=LONGLAT"):
		return true
	case strings.Contains(s, "PROJCS") || strings.Contains(s, "PROJCRS"):
		return false
	case strings.HasPrefix(s, "GEOGCS") || strings.HasPrefix(s, "GEOGCRS"):
		return true
	case s == "EPSG:4326":
		return true
	}
	return false
}

// WarpToLonLat reprojects g onto a WGS84 lon/lat grid with the same pixel
// dimensions. Output bounds come from projecting the source corners; each
// output pixel center is projected back into the source frame and sampled
// bilinearly, so output pixels outside the source footprint become NaN.
// Grids whose CRS hint is already geographic are returned unchanged.
func WarpToLonLat(g *Grid) (*Grid, error) {
	if IsGeographic(g.CRS) {
		return g, nil
	}

	pj, err := proj.NewCRSToCRS(g.CRS, wgs84LonLat, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "raster: create transform from %q", g.CRS)
	}
	tr := &projTransformer{pj: pj}

	minLon, minLat := math.Inf(1), math.Inf(1)
	maxLon, maxLat := math.Inf(-1), math.Inf(-1)
	corners := [4][2]float64{
		{0, 0},
		{float64(g.Width), 0},
		{0, float64(g.Height)},
		{float64(g.Width), float64(g.Height)},
	}
	for _, cr := range corners {
		x, y := g.Transform.Apply(cr[0], cr[1])
		lon, lat, err := tr.ToLonLat(x, y)
		if err != nil {
			return nil, eris.Wrap(err, "raster: project grid corner")
		}
		minLon = math.Min(minLon, lon)
		maxLon = math.Max(maxLon, lon)
		minLat = math.Min(minLat, lat)
		maxLat = math.Max(maxLat, lat)
	}
	if !(maxLon > minLon) || !(maxLat > minLat) {
		return nil, eris.New("raster: degenerate extent after reprojection")
	}

	out := NewGrid(g.Width, g.Height, Affine{
		OriginX: minLon,
		ScaleX:  (maxLon - minLon) / float64(g.Width),
		OriginY: maxLat,
		ScaleY:  -(maxLat - minLat) / float64(g.Height),
	})

	for r := 0; r < out.Height; r++ {
		for c := 0; c < out.Width; c++ {
			lon, lat := out.Transform.Apply(float64(c)+0.5, float64(r)+0.5)
			x, y, err := tr.fromLonLat(lon, lat)
			if err != nil {
				// Outside the projection's valid domain.
				out.Set(c, r, math.NaN())
				continue
			}
			pc, pr, err := g.Transform.Pixel(x, y)
			if err != nil {
				return nil, eris.Wrap(err, "raster: invert source transform")
			}
			out.Set(c, r, bilinearAt(g, pc-0.5, pr-0.5))
		}
	}

	return out, nil
}
