// Package raster holds the narrow raster collaborator the tiler consumes:
// typed sample buffers, affine geotransforms, sources, writers and a
// bilinear warp onto a destination grid.
package raster

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"

	"github.com/kiesman99/rgbify/pkg/crs"
)

// DataType is the scalar type of a band.
type DataType int

const (
	Unknown DataType = iota
	Byte
	UInt16
	Int16
	UInt32
	Int32
	Float32
	Float64
)

var dataTypeNames = map[DataType]string{
	Unknown: "unknown",
	Byte:    "uint8",
	UInt16:  "uint16",
	Int16:   "int16",
	UInt32:  "uint32",
	Int32:   "int32",
	Float32: "float32",
	Float64: "float64",
}

func (d DataType) String() string {
	if s, ok := dataTypeNames[d]; ok {
		return s
	}
	return fmt.Sprintf("DataType(%d)", int(d))
}

// Cast converts v to the nearest value representable by d, rounding and
// saturating for integer types.
func (d DataType) Cast(v float64) float64 {
	switch d {
	case Byte:
		return saturate(v, 0, math.MaxUint8)
	case UInt16:
		return saturate(v, 0, math.MaxUint16)
	case Int16:
		return saturate(v, math.MinInt16, math.MaxInt16)
	case UInt32:
		return saturate(v, 0, math.MaxUint32)
	case Int32:
		return saturate(v, math.MinInt32, math.MaxInt32)
	case Float32:
		return float64(float32(v))
	}
	return v
}

func saturate(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(lo, math.Min(hi, math.Round(v)))
}

// Window is a pixel rectangle of a raster.
type Window struct {
	Col, Row      int
	Width, Height int
}

// Intersect clips w to a width x height grid.
func (w Window) Intersect(width, height int) Window {
	c0, r0 := max(w.Col, 0), max(w.Row, 0)
	c1, r1 := min(w.Col+w.Width, width), min(w.Row+w.Height, height)
	if c1 < c0 {
		c1 = c0
	}
	if r1 < r0 {
		r1 = r0
	}
	return Window{Col: c0, Row: r0, Width: c1 - c0, Height: r1 - r0}
}

// Empty reports whether the window covers no pixel.
func (w Window) Empty() bool { return w.Width <= 0 || w.Height <= 0 }

// Source is a read handle on a single raster dataset. Handles are not safe
// for concurrent use; each worker opens its own.
type Source interface {
	Bounds() orb.Bound
	CRS() crs.CRS
	DType() DataType
	Size() (width, height int)
	Transform() Affine
	NoData() (float64, bool)
	// ReadWindow reads one band (1-based) of the window.
	ReadWindow(band int, w Window) (Array, error)
	Close() error
}

// Opener opens a fresh Source handle.
type Opener func() (Source, error)

// Writer receives encoded windows for single-file output.
type Writer interface {
	WriteWindow(w Window, a Array) error
	Close() error
}
