package terrain

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/caprock-geo/gms-cli/internal/geotech"
	"github.com/caprock-geo/gms-cli/internal/raster"
)

// SubsidenceOptions controls temporal raster differencing.
type SubsidenceOptions struct {
	// Stride decimates both grids before differencing.
	Stride int
	// ThresholdM is the minimum drop, in meters, for a pixel to count.
	ThresholdM float64
	// MinPixels is the noise floor: regions with this many decimated
	// pixels or fewer are discarded.
	MinPixels int
	// PixelSizeM is the assumed ground edge length of one native pixel.
	PixelSizeM float64
}

// DefaultSubsidenceOptions mirror the tunings used for 30 m DEM products.
func DefaultSubsidenceOptions() SubsidenceOptions {
	return SubsidenceOptions{Stride: 50, ThresholdM: 0.1, MinPixels: 10, PixelSizeM: 30}
}

// DetectSubsidence compares two elevation grids of the same area and returns
// regions where the surface dropped by more than ThresholdM between the old
// and the new acquisition. Both grids are decimated by Stride and clipped to
// their common shape; diff = new - old; pixels with diff < -ThresholdM are
// grouped with 4-connectivity. Per region, avg is the mean drop, max the
// most negative drop, the polygon the native-resolution bounding box through
// tr, and area is pixel count times PixelSizeM squared. This is a coarse
// differencing heuristic that assumes both grids share alignment and
// resolution, not a geodetic deformation model.
func DetectSubsidence(oldG, newG *raster.Grid, tr raster.CoordTransformer, opts SubsidenceOptions) ([]geotech.SubsidenceRegion, error) {
	if opts.Stride < 1 {
		return nil, eris.Errorf("terrain: subsidence stride must be >= 1, got %d", opts.Stride)
	}
	if opts.ThresholdM <= 0 {
		return nil, eris.Errorf("terrain: subsidence threshold must be > 0, got %g", opts.ThresholdM)
	}
	if opts.PixelSizeM <= 0 {
		return nil, eris.Errorf("terrain: pixel size must be > 0, got %g", opts.PixelSizeM)
	}

	log := zap.L().With(zap.String("component", "terrain.subsidence"))

	ow, oh := decimatedDims(oldG, opts.Stride)
	nw, nh := decimatedDims(newG, opts.Stride)
	w, h := ow, oh
	if nw < w {
		w = nw
	}
	if nh < h {
		h = nh
	}
	if ow != nw || oh != nh {
		log.Warn("grid shapes differ, clipping to common extent",
			zap.Int("old_w", ow), zap.Int("old_h", oh),
			zap.Int("new_w", nw), zap.Int("new_h", nh))
	}

	diff := make([]float64, w*h)
	mask := make([]bool, w*h)
	for r := 0; r < h; r++ {
		for c := 0; c < w; c++ {
			d := newG.At(c*opts.Stride, r*opts.Stride) - oldG.At(c*opts.Stride, r*opts.Stride)
			diff[r*w+c] = d
			mask[r*w+c] = d < -opts.ThresholdM
		}
	}

	labels, n := labelRegions(mask, w, h)

	type acc struct {
		count                  int
		sum, most              float64
		minR, maxR, minC, maxC int
	}
	accs := make([]acc, n+1)
	for i, lb := range labels {
		if lb == 0 {
			continue
		}
		a := &accs[lb]
		r, c := i/w, i%w
		if a.count == 0 {
			a.most = diff[i]
			a.minR, a.maxR = r, r
			a.minC, a.maxC = c, c
		} else {
			if diff[i] < a.most {
				a.most = diff[i]
			}
			if r < a.minR {
				a.minR = r
			}
			if r > a.maxR {
				a.maxR = r
			}
			if c < a.minC {
				a.minC = c
			}
			if c > a.maxC {
				a.maxC = c
			}
		}
		a.count++
		a.sum += diff[i]
	}

	var regions []geotech.SubsidenceRegion
	for id := 1; id <= n; id++ {
		a := accs[id]
		if a.count <= opts.MinPixels {
			continue
		}

		ring, err := cornerRing(newG.Transform, tr,
			a.minC*opts.Stride, a.minR*opts.Stride,
			(a.maxC+1)*opts.Stride, (a.maxR+1)*opts.Stride)
		if err != nil {
			log.Warn("skipping region with untransformable bounds", zap.Error(err))
			continue
		}

		regions = append(regions, geotech.SubsidenceRegion{
			RingLonLat:     ring,
			AvgSubsidenceM: a.sum / float64(a.count),
			MaxSubsidenceM: a.most,
			AreaM2:         float64(a.count) * opts.PixelSizeM * opts.PixelSizeM,
			PixelCount:     a.count,
		})
	}

	log.Info("subsidence detection finished",
		zap.Int("mask_width", w), zap.Int("mask_height", h),
		zap.Int("raw_regions", n), zap.Int("kept_regions", len(regions)))
	return regions, nil
}

// labelRegions assigns 1-based labels to 4-connected runs of true pixels.
func labelRegions(mask []bool, w, h int) ([]int, int) {
	labels := make([]int, len(mask))
	next := 0
	var queue []int

	visit := func(j int) {
		if mask[j] && labels[j] == 0 {
			labels[j] = next
			queue = append(queue, j)
		}
	}

	for start := range mask {
		if !mask[start] || labels[start] != 0 {
			continue
		}
		next++
		labels[start] = next
		queue = append(queue[:0], start)

		for len(queue) > 0 {
			i := queue[len(queue)-1]
			queue = queue[:len(queue)-1]
			r, c := i/w, i%w
			if c > 0 {
				visit(i - 1)
			}
			if c < w-1 {
				visit(i + 1)
			}
			if r > 0 {
				visit(i - w)
			}
			if r < h-1 {
				visit(i + w)
			}
		}
	}

	return labels, next
}

func decimatedDims(g *raster.Grid, stride int) (int, int) {
	return (g.Width + stride - 1) / stride, (g.Height + stride - 1) / stride
}
