package terrain

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/caprock-geo/gms-cli/internal/fetch"
	"github.com/caprock-geo/gms-cli/internal/geotech"
	"github.com/caprock-geo/gms-cli/internal/raster"
)

// Options bundles the tunables for DEM analysis. CRS, when set, overrides
// the projection of grids whose .prj sidecar is missing or wrong.
type Options struct {
	SampleStride      int
	CellSizePx        int
	SlopeThresholdDeg float64
	PixelSizeM        float64
	SubsidenceStride  int
	SubsidenceThreshM float64
	MinRegionPixels   int
	CRS               string
}

// DefaultOptions returns the tunings used for 30 m DEM products.
func DefaultOptions() Options {
	return Options{
		SampleStride:      100,
		CellSizePx:        10,
		SlopeThresholdDeg: 30,
		PixelSizeM:        30,
		SubsidenceStride:  50,
		SubsidenceThreshM: 0.1,
		MinRegionPixels:   10,
	}
}

// Analyzer runs DEM pipelines and persists their products.
type Analyzer struct {
	store geotech.Store
	opts  Options
}

// NewAnalyzer creates an analyzer writing through store.
func NewAnalyzer(store geotech.Store, opts Options) *Analyzer {
	return &Analyzer{store: store, opts: opts}
}

// ProcessResult summarizes one DEM run.
type ProcessResult struct {
	Source          string
	Width           int
	Height          int
	ElevationPoints int64
	SlopeCells      int64
}

// SubsidenceResult summarizes one subsidence comparison run.
type SubsidenceResult struct {
	OldSource string
	NewSource string
	Regions   int64
}

// ProcessDEM loads a DEM, derives sampled elevation points and slope cells,
// and persists both, replacing prior rows from the same source. path may be
// an .asc/.agr grid or a .zip containing one; an empty source defaults to
// the file's base name.
func (a *Analyzer) ProcessDEM(ctx context.Context, path, source string) (*ProcessResult, error) {
	log := zap.L().With(zap.String("component", "terrain.analyzer"))

	if source == "" {
		source = filepath.Base(path)
	}

	g, err := loadGrid(path, a.opts.CRS)
	if err != nil {
		return nil, err
	}
	log.Info("loaded DEM",
		zap.String("path", path),
		zap.Int("width", g.Width),
		zap.Int("height", g.Height))

	tr, err := raster.NewTransformer(g.CRS)
	if err != nil {
		return nil, err
	}

	pts, err := SampleElevations(g, tr, a.opts.SampleStride)
	if err != nil {
		return nil, err
	}

	slope, _ := SlopeAspect(g, a.opts.PixelSizeM)
	cells, err := AggregateCells(slope, tr, a.opts.CellSizePx, a.opts.SlopeThresholdDeg)
	if err != nil {
		return nil, err
	}

	nPts, err := a.store.ReplaceElevationPoints(ctx, source, pts)
	if err != nil {
		return nil, err
	}
	nCells, err := a.store.ReplaceSlopeCells(ctx, source, cells)
	if err != nil {
		return nil, err
	}

	log.Info("DEM processed",
		zap.String("source", source),
		zap.Int64("elevation_points", nPts),
		zap.Int64("slope_cells", nCells))

	return &ProcessResult{
		Source:          source,
		Width:           g.Width,
		Height:          g.Height,
		ElevationPoints: nPts,
		SlopeCells:      nCells,
	}, nil
}

// CompareDEMs detects subsidence between two acquisitions of the same area
// and persists the regions, replacing prior rows for the same source pair.
// Empty sources default to file base names.
func (a *Analyzer) CompareDEMs(ctx context.Context, oldPath, newPath, oldSource, newSource string) (*SubsidenceResult, error) {
	log := zap.L().With(zap.String("component", "terrain.analyzer"))

	if oldSource == "" {
		oldSource = filepath.Base(oldPath)
	}
	if newSource == "" {
		newSource = filepath.Base(newPath)
	}

	oldG, err := loadGrid(oldPath, a.opts.CRS)
	if err != nil {
		return nil, err
	}
	newG, err := loadGrid(newPath, a.opts.CRS)
	if err != nil {
		return nil, err
	}

	tr, err := raster.NewTransformer(newG.CRS)
	if err != nil {
		return nil, err
	}

	regions, err := DetectSubsidence(oldG, newG, tr, SubsidenceOptions{
		Stride:     a.opts.SubsidenceStride,
		ThresholdM: a.opts.SubsidenceThreshM,
		MinPixels:  a.opts.MinRegionPixels,
		PixelSizeM: a.opts.PixelSizeM,
	})
	if err != nil {
		return nil, err
	}

	n, err := a.store.ReplaceSubsidenceRegions(ctx, oldSource, newSource, regions)
	if err != nil {
		return nil, err
	}

	log.Info("subsidence comparison persisted",
		zap.String("old_source", oldSource),
		zap.String("new_source", newSource),
		zap.Int64("regions", n))

	return &SubsidenceResult{OldSource: oldSource, NewSource: newSource, Regions: n}, nil
}

// loadGrid reads a DEM from path, unpacking a .zip into a temp dir first,
// and reprojects it to lon/lat when its CRS is projected. A non-empty
// crsOverride replaces whatever the .prj sidecar said.
func loadGrid(path, crsOverride string) (*raster.Grid, error) {
	if strings.EqualFold(filepath.Ext(path), ".zip") {
		tempDir, err := os.MkdirTemp("", "gms-dem-*")
		if err != nil {
			return nil, eris.Wrap(err, "terrain: create temp dir")
		}
		defer os.RemoveAll(tempDir) //nolint:errcheck

		if _, err := fetch.ExtractZIP(path, tempDir); err != nil {
			return nil, eris.Wrap(err, "terrain: extract DEM archive")
		}

		gridPath, err := fetch.FindByExt(tempDir, ".asc")
		if err != nil {
			return nil, eris.Wrap(err, "terrain: scan DEM archive")
		}
		if gridPath == "" {
			gridPath, err = fetch.FindByExt(tempDir, ".agr")
			if err != nil {
				return nil, eris.Wrap(err, "terrain: scan DEM archive")
			}
		}
		if gridPath == "" {
			return nil, eris.New("terrain: no .asc or .agr grid in archive")
		}
		path = gridPath
	}

	g, err := raster.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if crsOverride != "" {
		g.CRS = crsOverride
	}
	return raster.WarpToLonLat(g)
}
