package raster

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiesman99/rgbify/pkg/crs"
)

func TestDataType_Cast(t *testing.T) {
	assert.Equal(t, 255.0, Byte.Cast(300))
	assert.Equal(t, 0.0, Byte.Cast(-4))
	assert.Equal(t, 3.0, Int16.Cast(2.6))
	assert.Equal(t, -32768.0, Int16.Cast(-1e9))
	assert.Equal(t, float64(float32(0.1)), Float32.Cast(0.1))
	assert.Equal(t, 0.1, Float64.Cast(0.1))
	assert.Equal(t, "int16", Int16.String())
}

func TestArray_SetAtBand(t *testing.T) {
	a, err := NewArray(Int16, 2, 2, 3)
	require.NoError(t, err)
	require.Equal(t, 12, a.Len())

	for i := 0; i < a.Len(); i++ {
		a.Set(i, float64(i)-6)
	}
	b := a.Band(1)
	assert.Equal(t, []float64{0, 1, 2, 3, 4, 5}, b.Float64s())

	_, err = NewArray(Unknown, 1, 1, 1)
	assert.Error(t, err)
}

func TestAffine_InverseAndBounds(t *testing.T) {
	b := orb.Bound{Min: orb.Point{100, 200}, Max: orb.Point{612, 712}}
	tr := FromBounds(b, 512, 512)

	x, y := tr.Apply(0, 0)
	assert.Equal(t, 100.0, x)
	assert.Equal(t, 712.0, y)

	inv, err := tr.Inverse()
	require.NoError(t, err)
	c, r := inv.Apply(612, 200)
	assert.InDelta(t, 512, c, 1e-9)
	assert.InDelta(t, 512, r, 1e-9)

	assert.Equal(t, b, tr.Bounds(512, 512))
	assert.Equal(t, tr, FromGDAL(tr.GDAL()))

	_, err = Affine{}.Inverse()
	assert.Error(t, err)
}

func TestAffine_WindowFor(t *testing.T) {
	tr := FromBounds(orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{100, 100}}, 100, 100)

	w, err := tr.WindowFor(orb.Bound{Min: orb.Point{10.5, 20}, Max: orb.Point{30, 40.2}}, 100, 100, 1)
	require.NoError(t, err)
	assert.Equal(t, Window{Col: 9, Row: 58, Width: 22, Height: 23}, w)

	clipped, err := tr.WindowFor(orb.Bound{Min: orb.Point{-50, -50}, Max: orb.Point{10, 10}}, 100, 100, 1)
	require.NoError(t, err)
	assert.Equal(t, Window{Col: 0, Row: 89, Width: 11, Height: 11}, clipped)
}

func TestMem_ReadWriteWindow(t *testing.T) {
	values := make([]float64, 16)
	for i := range values {
		values[i] = float64(i)
	}
	a, err := FromFloat64(Float32, 4, 4, values)
	require.NoError(t, err)
	m := NewMem(a, FromBounds(orb.Bound{Max: orb.Point{4, 4}}, 4, 4), crs.WebMercator)

	win, err := m.ReadWindow(1, Window{Col: 1, Row: 2, Width: 2, Height: 2})
	require.NoError(t, err)
	assert.Equal(t, []float64{9, 10, 13, 14}, win.Float64s())

	_, err = m.ReadWindow(2, Window{Width: 1, Height: 1})
	assert.Error(t, err)
	_, err = m.ReadWindow(1, Window{Col: 3, Width: 2, Height: 1})
	assert.Error(t, err)

	out, err := NewArray(Byte, 3, 2, 2)
	require.NoError(t, err)
	dst := NewMem(out, m.Transform(), m.CRS())
	patch, err := NewArray(Byte, 3, 1, 2)
	require.NoError(t, err)
	for i := 0; i < patch.Len(); i++ {
		patch.Set(i, float64(i+1))
	}
	require.NoError(t, dst.WriteWindow(Window{Col: 0, Row: 1, Width: 2, Height: 1}, patch))
	got, _ := dst.Array().Uint8s()
	assert.Equal(t, []uint8{0, 0, 1, 2, 0, 0, 3, 4, 0, 0, 5, 6}, got)

	require.NoError(t, m.Close())
	_, err = m.ReadWindow(1, Window{Width: 1, Height: 1})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestWarp_IdentityGridReproducesSource(t *testing.T) {
	const n = 8
	values := make([]float64, n*n)
	for i := range values {
		values[i] = float64(i % n * 10)
	}
	a, err := FromFloat64(Float64, n, n, values)
	require.NoError(t, err)
	tr := FromBounds(orb.Bound{Max: orb.Point{n, n}}, n, n)

	dst, err := NewArray(Float64, 1, n, n)
	require.NoError(t, err)
	err = Warp(Grid{Array: a, Transform: tr, CRS: crs.WebMercator}, Grid{Array: dst, Transform: tr, CRS: crs.WebMercator}, WarpOptions{})
	require.NoError(t, err)

	assert.Equal(t, values, dst.Float64s())
}

func TestWarp_BilinearMidpoint(t *testing.T) {
	a, err := FromFloat64(Float64, 1, 2, []float64{0, 10})
	require.NoError(t, err)
	srcTr := FromBounds(orb.Bound{Max: orb.Point{2, 1}}, 2, 1)

	dst, err := NewArray(Int16, 1, 1, 1)
	require.NoError(t, err)
	dstTr := FromBounds(orb.Bound{Min: orb.Point{0.5, 0}, Max: orb.Point{1.5, 1}}, 1, 1)

	err = Warp(Grid{Array: a, Transform: srcTr, CRS: crs.WebMercator}, Grid{Array: dst, Transform: dstTr, CRS: crs.WebMercator}, WarpOptions{})
	require.NoError(t, err)
	assert.Equal(t, []float64{5}, dst.Float64s())
}

func TestWarp_OutsideAndNoData(t *testing.T) {
	a, err := FromFloat64(Float64, 1, 2, []float64{-9999, -9999})
	require.NoError(t, err)
	srcTr := FromBounds(orb.Bound{Max: orb.Point{2, 1}}, 2, 1)

	dst, err := NewArray(Float64, 1, 1, 2)
	require.NoError(t, err)
	dstTr := FromBounds(orb.Bound{Min: orb.Point{1, 0}, Max: orb.Point{5, 1}}, 2, 1)

	opts := WarpOptions{SrcNoData: -9999, HasSrcNoData: true, Fill: 7}
	err = Warp(Grid{Array: a, Transform: srcTr, CRS: crs.WebMercator}, Grid{Array: dst, Transform: dstTr, CRS: crs.WebMercator}, opts)
	require.NoError(t, err)
	assert.Equal(t, []float64{7, 7}, dst.Float64s())
	assert.False(t, math.IsNaN(dst.At(0)))
}

func TestWarp_GeographicSource(t *testing.T) {
	// A constant geographic raster sampled through web mercator stays constant.
	a, err := FromFloat64(Int16, 10, 10, constant(100, 42))
	require.NoError(t, err)
	srcTr := FromBounds(orb.Bound{Min: orb.Point{-10, -10}, Max: orb.Point{10, 10}}, 10, 10)

	dst, err := NewArray(Int16, 1, 4, 4)
	require.NoError(t, err)
	x0, y0 := crs.WGSToMercator(-5, -5)
	x1, y1 := crs.WGSToMercator(5, 5)
	dstTr := FromBounds(orb.Bound{Min: orb.Point{x0, y0}, Max: orb.Point{x1, y1}}, 4, 4)

	err = Warp(Grid{Array: a, Transform: srcTr, CRS: crs.WGS84}, Grid{Array: dst, Transform: dstTr, CRS: crs.WebMercator}, WarpOptions{})
	require.NoError(t, err)
	assert.Equal(t, constant(16, 42), dst.Float64s())
}

func constant(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}
