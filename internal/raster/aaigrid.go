package raster

import (
	"bufio"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// defaultNoData is the conventional Arc/Info nodata marker used when the
// header omits nodata_value.
const defaultNoData = -9999.0

// ReadFile parses an Arc/Info ASCII grid (.asc) from disk. A sidecar .prj
// file next to the grid, when present, becomes the grid CRS.
func ReadFile(path string) (*Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "raster: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	g, err := Read(f)
	if err != nil {
		return nil, eris.Wrapf(err, "raster: parse %s", path)
	}

	prjPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".prj"
	if data, err := os.ReadFile(prjPath); err == nil {
		g.CRS = strings.TrimSpace(string(data))
	}

	return g, nil
}

// Read parses an Arc/Info ASCII grid. Header keywords are case-insensitive
// and may use corner or center registration; nodata cells become NaN. Tokens
// past the declared cell count are ignored.
func Read(r io.Reader) (*Grid, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	sc.Split(bufio.ScanWords)

	next := func() (string, bool) {
		if sc.Scan() {
			return sc.Text(), true
		}
		return "", false
	}

	var (
		ncols, nrows     = -1, -1
		xll, yll         float64
		xCenter, yCenter bool
		cellSize         float64
		noData           = defaultNoData
		first            string
	)

	// The header is a run of keyword/value pairs; the first bare number
	// starts the cell data.
header:
	for {
		tok, ok := next()
		if !ok {
			return nil, eris.New("raster: truncated AAIGrid header")
		}
		key := strings.ToLower(tok)
		switch key {
		case "ncols", "nrows", "xllcorner", "xllcenter", "yllcorner", "yllcenter", "cellsize", "nodata_value":
			val, ok := next()
			if !ok {
				return nil, eris.Errorf("raster: missing value for header field %s", key)
			}
			if err := setHeaderField(key, val, &ncols, &nrows, &xll, &yll, &xCenter, &yCenter, &cellSize, &noData); err != nil {
				return nil, err
			}
		default:
			first = tok
			break header
		}
	}

	if ncols <= 0 || nrows <= 0 {
		return nil, eris.Errorf("raster: invalid grid dimensions %dx%d", ncols, nrows)
	}
	if cellSize <= 0 {
		return nil, eris.Errorf("raster: invalid cellsize %v", cellSize)
	}

	// Center registration shifts the stated lower-left by half a cell.
	if xCenter {
		xll -= cellSize / 2
	}
	if yCenter {
		yll -= cellSize / 2
	}

	g := NewGrid(ncols, nrows, Affine{
		OriginX: xll,
		ScaleX:  cellSize,
		OriginY: yll + float64(nrows)*cellSize,
		ScaleY:  -cellSize,
	})

	total := ncols * nrows
	tok := first
	for idx := 0; ; idx++ {
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return nil, eris.Wrapf(err, "raster: parse cell %d", idx)
		}
		if v == noData {
			v = math.NaN()
		}
		g.Data[idx] = v
		if idx+1 == total {
			break
		}
		var ok bool
		tok, ok = next()
		if !ok {
			return nil, eris.Errorf("raster: grid data ends after %d of %d cells", idx+1, total)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrap(err, "raster: read grid data")
	}

	return g, nil
}

func setHeaderField(key, val string, ncols, nrows *int, xll, yll *float64, xCenter, yCenter *bool, cellSize, noData *float64) error {
	switch key {
	case "ncols", "nrows":
		n, err := strconv.Atoi(val)
		if err != nil {
			return eris.Wrapf(err, "raster: parse header field %s", key)
		}
		if key == "ncols" {
			*ncols = n
		} else {
			*nrows = n
		}
		return nil
	}

	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return eris.Wrapf(err, "raster: parse header field %s", key)
	}
	switch key {
	case "xllcorner":
		*xll = f
	case "xllcenter":
		*xll = f
		*xCenter = true
	case "yllcorner":
		*yll = f
	case "yllcenter":
		*yll = f
		*yCenter = true
	case "cellsize":
		*cellSize = f
	case "nodata_value":
		*noData = f
	}
	return nil
}
