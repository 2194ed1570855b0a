package raster

import "math"

// Resample scales g to width x height with bilinear interpolation, keeping
// the geographic extent by stretching the affine transform. Sample positions
// align the first and last pixels of each axis. NaN cells propagate into any
// output pixel interpolated from them.
func Resample(g *Grid, width, height int) *Grid {
	out := NewGrid(width, height, g.Transform)
	out.CRS = g.CRS

	sx := float64(g.Width) / float64(width)
	sy := float64(g.Height) / float64(height)
	out.Transform.ScaleX = g.Transform.ScaleX * sx
	out.Transform.ScaleY = g.Transform.ScaleY * sy
	out.Transform.SkewX = g.Transform.SkewX * sy
	out.Transform.SkewY = g.Transform.SkewY * sx

	for r := 0; r < height; r++ {
		var srcR float64
		if height > 1 {
			srcR = float64(r) * float64(g.Height-1) / float64(height-1)
		}
		for c := 0; c < width; c++ {
			var srcC float64
			if width > 1 {
				srcC = float64(c) * float64(g.Width-1) / float64(width-1)
			}
			out.Set(c, r, bilinearAt(g, srcC, srcR))
		}
	}

	return out
}

// bilinearAt samples g at fractional pixel-index coordinates, where index i
// is the center of pixel i. Positions more than half a pixel outside the
// grid return NaN; the boundary half-pixel clamps to the edge row/column.
func bilinearAt(g *Grid, col, row float64) float64 {
	w, h := float64(g.Width), float64(g.Height)
	if col < -0.5 || row < -0.5 || col > w-0.5 || row > h-0.5 {
		return math.NaN()
	}
	col = math.Max(0, math.Min(col, w-1))
	row = math.Max(0, math.Min(row, h-1))

	c0, r0 := int(col), int(row)
	c1, r1 := c0+1, r0+1
	if c1 >= g.Width {
		c1 = g.Width - 1
	}
	if r1 >= g.Height {
		r1 = g.Height - 1
	}
	fc := col - float64(c0)
	fr := row - float64(r0)

	v00 := g.At(c0, r0)
	v10 := g.At(c1, r0)
	v01 := g.At(c0, r1)
	v11 := g.At(c1, r1)

	top := v00 + (v10-v00)*fc
	bot := v01 + (v11-v01)*fc
	return top + (bot-top)*fr
}
