package raster

import (
	"errors"
	"math"

	"github.com/paulmach/orb"
)

// Affine maps pixel (col, row) to map coordinates:
//
//	x = A*col + B*row + C
//	y = D*col + E*row + F
type Affine struct {
	A, B, C float64
	D, E, F float64
}

// FromBounds builds a north-up transform spanning bound with width x height pixels.
func FromBounds(b orb.Bound, width, height int) Affine {
	return Affine{
		A: (b.Max[0] - b.Min[0]) / float64(width),
		C: b.Min[0],
		E: -(b.Max[1] - b.Min[1]) / float64(height),
		F: b.Max[1],
	}
}

// FromGDAL converts a GDAL geotransform.
func FromGDAL(gt [6]float64) Affine {
	return Affine{A: gt[1], B: gt[2], C: gt[0], D: gt[4], E: gt[5], F: gt[3]}
}

// GDAL returns the GDAL geotransform ordering.
func (t Affine) GDAL() [6]float64 {
	return [6]float64{t.C, t.A, t.B, t.F, t.D, t.E}
}

// Apply maps pixel coordinates to map coordinates.
func (t Affine) Apply(col, row float64) (float64, float64) {
	return t.A*col + t.B*row + t.C, t.D*col + t.E*row + t.F
}

// Inverse returns the map-to-pixel transform.
func (t Affine) Inverse() (Affine, error) {
	det := t.A*t.E - t.B*t.D
	if det == 0 {
		return Affine{}, errors.New("affine transform is not invertible")
	}
	ia, ib := t.E/det, -t.B/det
	id, ie := -t.D/det, t.A/det
	return Affine{
		A: ia, B: ib, C: -(ia*t.C + ib*t.F),
		D: id, E: ie, F: -(id*t.C + ie*t.F),
	}, nil
}

// Shift returns the transform of a window whose origin is (col, row).
func (t Affine) Shift(col, row int) Affine {
	x, y := t.Apply(float64(col), float64(row))
	out := t
	out.C, out.F = x, y
	return out
}

// Bounds returns the extent of a width x height grid under t.
func (t Affine) Bounds(width, height int) orb.Bound {
	x0, y0 := t.Apply(0, 0)
	x1, y1 := t.Apply(float64(width), float64(height))
	return orb.MultiPoint{{x0, y0}, {x1, y1}, {x0, y1}, {x1, y0}}.Bound()
}

// WindowFor returns the pixel window covering bound, padded by pad pixels on
// every side and clipped to the grid.
func (t Affine) WindowFor(b orb.Bound, width, height, pad int) (Window, error) {
	inv, err := t.Inverse()
	if err != nil {
		return Window{}, err
	}
	corners := orb.MultiPoint{}
	for _, p := range []orb.Point{b.Min, b.Max, {b.Min[0], b.Max[1]}, {b.Max[0], b.Min[1]}} {
		c, r := inv.Apply(p[0], p[1])
		corners = append(corners, orb.Point{c, r})
	}
	px := corners.Bound()
	w := Window{
		Col:    int(math.Floor(px.Min[0])) - pad,
		Row:    int(math.Floor(px.Min[1])) - pad,
		Width:  int(math.Ceil(px.Max[0])-math.Floor(px.Min[0])) + 2*pad,
		Height: int(math.Ceil(px.Max[1])-math.Floor(px.Min[1])) + 2*pad,
	}
	return w.Intersect(width, height), nil
}
