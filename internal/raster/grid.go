// Package raster loads Arc/Info ASCII elevation grids and provides the
// georeferencing math used by the terrain pipeline.
package raster

import (
	"math"

	"github.com/rotisserie/eris"
)

// Affine maps pixel (col, row) positions to world coordinates:
//
//	X = OriginX + col*ScaleX + row*SkewX
//	Y = OriginY + col*SkewY + row*ScaleY
//
// For a north-up grid ScaleY is negative and the skews are zero.
type Affine struct {
	OriginX float64
	ScaleX  float64
	SkewX   float64
	OriginY float64
	SkewY   float64
	ScaleY  float64
}

// Apply maps a pixel position to world coordinates. Integer col/row give the
// upper-left corner of that pixel; add 0.5 to each for the pixel center.
func (a Affine) Apply(col, row float64) (x, y float64) {
	return a.OriginX + col*a.ScaleX + row*a.SkewX,
		a.OriginY + col*a.SkewY + row*a.ScaleY
}

// Pixel maps world coordinates back to a fractional (col, row) position.
func (a Affine) Pixel(x, y float64) (col, row float64, err error) {
	det := a.ScaleX*a.ScaleY - a.SkewX*a.SkewY
	if det == 0 {
		return 0, 0, eris.New("raster: affine transform is not invertible")
	}
	dx := x - a.OriginX
	dy := y - a.OriginY
	return (dx*a.ScaleY - dy*a.SkewX) / det, (dy*a.ScaleX - dx*a.SkewY) / det, nil
}

// Grid is a single-band raster in row-major order with row 0 at the top.
// Nodata cells are stored as NaN.
type Grid struct {
	Width     int
	Height    int
	Transform Affine
	CRS       string // PROJ string or WKT; empty means WGS84 lon/lat
	Data      []float64
}

// NewGrid allocates a zero-filled grid.
func NewGrid(width, height int, transform Affine) *Grid {
	return &Grid{
		Width:     width,
		Height:    height,
		Transform: transform,
		Data:      make([]float64, width*height),
	}
}

// At returns the value at (col, row).
func (g *Grid) At(col, row int) float64 {
	return g.Data[row*g.Width+col]
}

// Set stores v at (col, row).
func (g *Grid) Set(col, row int, v float64) {
	g.Data[row*g.Width+col] = v
}

// CellSize returns the pixel edge length in CRS units, assuming square
// axis-aligned pixels.
func (g *Grid) CellSize() float64 {
	return math.Abs(g.Transform.ScaleX)
}
