package raster

import (
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-proj/v10"
)

// wgs84LonLat is the target CRS for all pipeline output. The PROJ string
// form keeps longitude/latitude axis order, unlike the EPSG:4326 authority
// definition.
const wgs84LonLat = "+proj=longlat +datum=WGS84 +no_defs"

// CoordTransformer converts coordinates from a source reference system to
// WGS84 longitude/latitude.
type CoordTransformer interface {
	ToLonLat(x, y float64) (lon, lat float64, err error)
}

// NewTransformer builds a converter from crs to WGS84 lon/lat. Hints that
// already describe geographic coordinates (including an empty hint) get a
// passthrough converter.
func NewTransformer(crs string) (CoordTransformer, error) {
	if IsGeographic(crs) {
		return identityTransformer{}, nil
	}
	pj, err := proj.NewCRSToCRS(strings.TrimSpace(crs), wgs84LonLat, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "raster: create transform from %q", crs)
	}
	return &projTransformer{pj: pj}, nil
}

type identityTransformer struct{}

func (identityTransformer) ToLonLat(x, y float64) (float64, float64, error) {
	return x, y, nil
}

// projTransformer wraps a PROJ coordinate operation. PROJ handles are not
// safe for concurrent use, so Forward runs under a mutex.
type projTransformer struct {
	mu sync.Mutex
	pj *proj.PJ
}

func (t *projTransformer) ToLonLat(x, y float64) (float64, float64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	c, err := t.pj.Forward(proj.Coord{x, y, 0, 0})
	if err != nil {
		return 0, 0, eris.Wrap(err, "raster: transform coordinate")
	}
	return c.X(), c.Y(), nil
}

func (t *projTransformer) fromLonLat(lon, lat float64) (float64, float64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	c, err := t.pj.Inverse(proj.Coord{lon, lat, 0, 0})
	if err != nil {
		return 0, 0, eris.Wrap(err, "raster: inverse transform coordinate")
	}
	return c.X(), c.Y(), nil
}
