package raster

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"

	"github.com/kiesman99/rgbify/pkg/crs"
)

// Grid is a georeferenced array.
type Grid struct {
	Array     Array
	Transform Affine
	CRS       crs.CRS
}

// WarpOptions tunes Warp.
type WarpOptions struct {
	SrcNoData    float64
	HasSrcNoData bool
	// Fill is written to destination pixels that fall outside the source or
	// only see nodata neighbours.
	Fill float64
}

// Warp resamples the first band of src onto dst with bilinear interpolation.
// Every destination pixel centre is projected into the source grid, and the
// four surrounding source pixel centres are blended. Centres that do not
// project get Fill. dst.Array must be
// allocated by the caller; its dtype decides how results are cast.
func Warp(src Grid, dst Grid, opts WarpOptions) error {
	inv, err := src.Transform.Inverse()
	if err != nil {
		return fmt.Errorf("source transform: %w", err)
	}
	tr, err := crs.NewTransformer(dst.CRS, src.CRS)
	if err != nil {
		return err
	}
	defer tr.Close()

	sw, sh := src.Array.Cols, src.Array.Rows
	line := make([]orb.Point, dst.Array.Cols)
	for row := 0; row < dst.Array.Rows; row++ {
		for col := range line {
			x, y := dst.Transform.Apply(float64(col)+0.5, float64(row)+0.5)
			line[col] = orb.Point{x, y}
		}
		// One call per row keeps the cost of library backed transforms down.
		if err := tr.Transform(line); err != nil {
			return err
		}
		for col, p := range line {
			fc, fr := inv.Apply(p[0], p[1])

			v := opts.Fill
			if fc >= 0 && fr >= 0 && fc <= float64(sw) && fr <= float64(sh) {
				if s, ok := bilinear(src.Array, fc-0.5, fr-0.5, opts); ok {
					v = s
				}
			}
			dst.Array.Set(row*dst.Array.Cols+col, v)
		}
	}
	return nil
}

// bilinear samples a at fractional pixel-centre coordinates (u, v), clamping
// neighbours to the grid edge and skipping nodata.
func bilinear(a Array, u, v float64, opts WarpOptions) (float64, bool) {
	c0, r0 := math.Floor(u), math.Floor(v)
	du, dv := u-c0, v-r0

	var sum, weight float64
	for _, n := range [4]struct {
		dc, dr int
		w      float64
	}{
		{0, 0, (1 - du) * (1 - dv)},
		{1, 0, du * (1 - dv)},
		{0, 1, (1 - du) * dv},
		{1, 1, du * dv},
	} {
		if n.w == 0 {
			continue
		}
		c := clampInt(int(c0)+n.dc, 0, a.Cols-1)
		r := clampInt(int(r0)+n.dr, 0, a.Rows-1)
		s := a.At(r*a.Cols + c)
		if math.IsNaN(s) || (opts.HasSrcNoData && s == opts.SrcNoData) {
			continue
		}
		sum += s * n.w
		weight += n.w
	}
	if weight == 0 {
		return 0, false
	}
	return sum / weight, true
}

func clampInt(v, lo, hi int) int {
	return max(lo, min(hi, v))
}
