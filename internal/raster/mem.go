package raster

import (
	"errors"
	"fmt"
	"sync"

	"github.com/paulmach/orb"

	"github.com/kiesman99/rgbify/pkg/crs"
)

// ErrClosed is returned by operations on a closed handle.
var ErrClosed = errors.New("raster: handle is closed")

// Mem is an in-memory single or multi band raster. It serves as a Source
// for synthetic inputs and as a Writer capturing single-file output.
type Mem struct {
	grid      Grid
	nodata    float64
	hasNoData bool

	mu     sync.Mutex
	closed bool
}

// NewMem wraps an array with its georeferencing.
func NewMem(a Array, transform Affine, c crs.CRS) *Mem {
	return &Mem{grid: Grid{Array: a, Transform: transform, CRS: c}}
}

// WithNoData sets the nodata value reported to readers.
func (m *Mem) WithNoData(v float64) *Mem {
	m.nodata, m.hasNoData = v, true
	return m
}

// Opener returns an Opener handing out independent handles on the same
// backing array. The array is read-only for sources.
func (m *Mem) Opener() Opener {
	return func() (Source, error) {
		return &Mem{grid: m.grid, nodata: m.nodata, hasNoData: m.hasNoData}, nil
	}
}

func (m *Mem) Bounds() orb.Bound {
	return m.grid.Transform.Bounds(m.grid.Array.Cols, m.grid.Array.Rows)
}

func (m *Mem) CRS() crs.CRS            { return m.grid.CRS }
func (m *Mem) DType() DataType         { return m.grid.Array.DType }
func (m *Mem) Size() (int, int)        { return m.grid.Array.Cols, m.grid.Array.Rows }
func (m *Mem) Transform() Affine       { return m.grid.Transform }
func (m *Mem) NoData() (float64, bool) { return m.nodata, m.hasNoData }

// Array exposes the backing array.
func (m *Mem) Array() Array { return m.grid.Array }

func (m *Mem) ReadWindow(band int, w Window) (Array, error) {
	if err := m.check(); err != nil {
		return Array{}, err
	}
	a := m.grid.Array
	if band < 1 || band > a.Bands {
		return Array{}, fmt.Errorf("band %d out of range [1, %d]", band, a.Bands)
	}
	if w.Empty() || w.Intersect(a.Cols, a.Rows) != w {
		return Array{}, fmt.Errorf("window %+v outside %dx%d raster", w, a.Cols, a.Rows)
	}

	out, err := NewArray(a.DType, 1, w.Height, w.Width)
	if err != nil {
		return Array{}, err
	}
	src := a.Band(band - 1)
	for r := 0; r < w.Height; r++ {
		for c := 0; c < w.Width; c++ {
			out.Set(r*w.Width+c, src.At((w.Row+r)*a.Cols+w.Col+c))
		}
	}
	return out, nil
}

// WriteWindow copies every band of a into the window.
func (m *Mem) WriteWindow(w Window, a Array) error {
	if err := m.check(); err != nil {
		return err
	}
	dst := m.grid.Array
	if a.Bands != dst.Bands || a.Rows != w.Height || a.Cols != w.Width {
		return fmt.Errorf("array %dx%dx%d does not fit window %+v", a.Bands, a.Rows, a.Cols, w)
	}
	if w.Intersect(dst.Cols, dst.Rows) != w {
		return fmt.Errorf("window %+v outside %dx%d raster", w, dst.Cols, dst.Rows)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	plane := dst.Rows * dst.Cols
	for b := 0; b < a.Bands; b++ {
		for r := 0; r < w.Height; r++ {
			for c := 0; c < w.Width; c++ {
				v := a.At(b*w.Height*w.Width + r*w.Width + c)
				dst.Set(b*plane+(w.Row+r)*dst.Cols+w.Col+c, v)
			}
		}
	}
	return nil
}

func (m *Mem) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *Mem) check() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	return nil
}

var (
	_ Source = (*Mem)(nil)
	_ Writer = (*Mem)(nil)
)
