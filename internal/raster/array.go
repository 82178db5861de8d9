package raster

import (
	"fmt"
	"math"
)

// Array is a band-sequential (bands x rows x cols) sample buffer. Data is a
// typed slice matching DType: []uint8, []uint16, []int16, []uint32, []int32,
// []float32 or []float64.
type Array struct {
	DType DataType
	Bands int
	Rows  int
	Cols  int
	Data  any
}

// NewArray allocates a zeroed array.
func NewArray(dtype DataType, bands, rows, cols int) (Array, error) {
	n := bands * rows * cols
	var data any
	switch dtype {
	case Byte:
		data = make([]uint8, n)
	case UInt16:
		data = make([]uint16, n)
	case Int16:
		data = make([]int16, n)
	case UInt32:
		data = make([]uint32, n)
	case Int32:
		data = make([]int32, n)
	case Float32:
		data = make([]float32, n)
	case Float64:
		data = make([]float64, n)
	default:
		return Array{}, fmt.Errorf("unsupported data type %v", dtype)
	}
	return Array{DType: dtype, Bands: bands, Rows: rows, Cols: cols, Data: data}, nil
}

// FromFloat64 wraps float64 samples of a single band, stored with dtype.
func FromFloat64(dtype DataType, rows, cols int, values []float64) (Array, error) {
	if len(values) != rows*cols {
		return Array{}, fmt.Errorf("have %d values for a %dx%d band", len(values), rows, cols)
	}
	a, err := NewArray(dtype, 1, rows, cols)
	if err != nil {
		return Array{}, err
	}
	for i, v := range values {
		a.Set(i, v)
	}
	return a, nil
}

// Len is the number of samples.
func (a Array) Len() int { return a.Bands * a.Rows * a.Cols }

// At returns sample i as float64.
func (a Array) At(i int) float64 {
	switch d := a.Data.(type) {
	case []uint8:
		return float64(d[i])
	case []uint16:
		return float64(d[i])
	case []int16:
		return float64(d[i])
	case []uint32:
		return float64(d[i])
	case []int32:
		return float64(d[i])
	case []float32:
		return float64(d[i])
	case []float64:
		return d[i]
	}
	return math.NaN()
}

// Set stores v at i after casting it to the array's type.
func (a Array) Set(i int, v float64) {
	v = a.DType.Cast(v)
	switch d := a.Data.(type) {
	case []uint8:
		d[i] = uint8(v)
	case []uint16:
		d[i] = uint16(v)
	case []int16:
		d[i] = int16(v)
	case []uint32:
		d[i] = uint32(v)
	case []int32:
		d[i] = int32(v)
	case []float32:
		d[i] = float32(v)
	case []float64:
		d[i] = v
	}
}

// Float64s copies every sample into a new float64 slice.
func (a Array) Float64s() []float64 {
	if d, ok := a.Data.([]float64); ok {
		return append([]float64(nil), d...)
	}
	out := make([]float64, a.Len())
	for i := range out {
		out[i] = a.At(i)
	}
	return out
}

// Uint8s returns the raw bytes of a Byte array.
func (a Array) Uint8s() ([]uint8, bool) {
	d, ok := a.Data.([]uint8)
	return d, ok
}

// Band returns a single-band view sharing storage with a.
func (a Array) Band(b int) Array {
	n := a.Rows * a.Cols
	lo, hi := b*n, (b+1)*n
	out := Array{DType: a.DType, Bands: 1, Rows: a.Rows, Cols: a.Cols}
	switch d := a.Data.(type) {
	case []uint8:
		out.Data = d[lo:hi]
	case []uint16:
		out.Data = d[lo:hi]
	case []int16:
		out.Data = d[lo:hi]
	case []uint32:
		out.Data = d[lo:hi]
	case []int32:
		out.Data = d[lo:hi]
	case []float32:
		out.Data = d[lo:hi]
	case []float64:
		out.Data = d[lo:hi]
	}
	return out
}
