package gdal

import (
	"fmt"
	"math"

	"github.com/airbusgeo/godal"
	"github.com/paulmach/orb"

	"github.com/kiesman99/rgbify/pkg/crs"
)

func init() { crs.RegisterResolver(NewTransformer) }

type transformer struct {
	src, dst *godal.SpatialRef
	trn      *godal.Transform

	xs, ys, zs []float64
	ok         []bool
}

// NewTransformer builds a GDAL coordinate transformation between any two
// systems GDAL understands. Points keep the traditional GIS (x, y) axis
// order regardless of how the authority defines it.
func NewTransformer(src, dst crs.CRS) (crs.Transformer, error) {
	register()
	s, err := godal.NewSpatialRef(string(src))
	if err != nil {
		return nil, fmt.Errorf("spatial ref %s: %w", src, err)
	}
	d, err := godal.NewSpatialRef(string(dst))
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("spatial ref %s: %w", dst, err)
	}
	trn, err := godal.NewTransform(s, d)
	if err != nil {
		s.Close()
		d.Close()
		return nil, err
	}
	return &transformer{src: s, dst: d, trn: trn}, nil
}

// Transform reprojects pts in place. A point that GDAL cannot reproject is
// set to NaN; an error is returned only when no point succeeds.
func (t *transformer) Transform(pts []orb.Point) error {
	n := len(pts)
	if n == 0 {
		return nil
	}
	if cap(t.xs) < n {
		t.xs, t.ys, t.zs, t.ok = make([]float64, n), make([]float64, n), make([]float64, n), make([]bool, n)
	}
	xs, ys, zs, ok := t.xs[:n], t.ys[:n], t.zs[:n], t.ok[:n]
	for i, p := range pts {
		xs[i], ys[i], zs[i], ok[i] = p[0], p[1], 0, false
	}

	err := t.trn.TransformEx(xs, ys, zs, ok)
	moved := false
	for i := range pts {
		if ok[i] && !math.IsInf(xs[i], 0) && !math.IsInf(ys[i], 0) {
			pts[i] = orb.Point{xs[i], ys[i]}
			moved = true
			continue
		}
		pts[i] = orb.Point{math.NaN(), math.NaN()}
	}
	if err != nil && !moved {
		return fmt.Errorf("transform %d points: %w", n, err)
	}
	return nil
}

func (t *transformer) Close() error {
	if t.trn == nil {
		return nil
	}
	t.trn.Close()
	t.src.Close()
	t.dst.Close()
	t.trn = nil
	return nil
}
