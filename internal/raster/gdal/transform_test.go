package gdal

import (
	"bytes"
	"context"
	"image/png"
	"math"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiesman99/rgbify/internal/imagecodec"
	"github.com/kiesman99/rgbify/internal/mbtiles"
	"github.com/kiesman99/rgbify/internal/raster"
	"github.com/kiesman99/rgbify/internal/tiler"
	"github.com/kiesman99/rgbify/pkg/crs"
	"github.com/kiesman99/rgbify/pkg/rgb"
)

func TestNewTransformer_UTM(t *testing.T) {
	tr, err := crs.NewTransformer(crs.CRS("EPSG:32633"), crs.WGS84)
	require.NoError(t, err)
	defer tr.Close()

	pts := []orb.Point{{500000, 0}, {500000, 1000000}}
	require.NoError(t, tr.Transform(pts))
	assert.InDelta(t, 15, pts[0][0], 1e-6)
	assert.InDelta(t, 0, pts[0][1], 1e-6)
	assert.InDelta(t, 15, pts[1][0], 1e-6)
	assert.InDelta(t, 9.04, pts[1][1], 0.01)
}

func TestNewTransformer_Unknown(t *testing.T) {
	_, err := crs.NewTransformer(crs.CRS("EPSG:999999"), crs.WGS84)
	assert.Error(t, err)
}

func TestTransformBound_Projected(t *testing.T) {
	b := orb.Bound{Min: orb.Point{400000, 0}, Max: orb.Point{600000, 1000000}}
	got, err := crs.TransformBound(b, crs.CRS("EPSG:32633"), crs.WGS84)
	require.NoError(t, err)
	assert.Less(t, got.Min[0], 14.2)
	assert.Greater(t, got.Max[0], 15.8)
	assert.InDelta(t, 0, got.Min[1], 1e-6)
	assert.InDelta(t, 9.04, got.Max[1], 0.01)
}

// A UTM zone 10N source over the San Francisco peninsula tiled end to end.
func TestTilerRun_ProjectedSource(t *testing.T) {
	const (
		value = 1234
		size  = 64
	)
	values := make([]float64, size*size)
	for i := range values {
		values[i] = value
	}
	a, err := raster.FromFloat64(raster.Float32, size, size, values)
	require.NoError(t, err)
	box := orb.Bound{Min: orb.Point{540000, 4170000}, Max: orb.Point{560000, 4190000}}
	src := raster.NewMem(a, raster.FromBounds(box, size, size), crs.CRS("EPSG:32610"))

	path := filepath.Join(t.TempDir(), "utm.mbtiles")
	tl, err := tiler.New(src.Opener(), path, tiler.Options{
		Config:  tiler.Config{Params: rgb.DefaultParams(), Format: imagecodec.PNG, Band: 1},
		MinZoom: 12,
		MaxZoom: 12,
		Workers: 2,
	})
	require.NoError(t, err)
	stats, err := tl.Run(context.Background())
	require.NoError(t, err)
	require.Positive(t, stats.Tiles)
	assert.Equal(t, stats.Tiles, stats.Written)

	archive, err := mbtiles.Open(path)
	require.NoError(t, err)
	defer archive.Close()

	p := rgb.DefaultParams()
	hits := 0
	for r, err := range archive.Rows(context.Background()) {
		require.NoError(t, err)
		img, err := png.Decode(bytes.NewReader(r.TileData))
		require.NoError(t, err)
		b := img.Bounds()
		for y := b.Min.Y; y < b.Max.Y; y += 16 {
			for x := b.Min.X; x < b.Max.X; x += 16 {
				cr, cg, cb, _ := img.At(x, y).RGBA()
				got := rgb.Decode(rgb.Triplet{R: uint8(cr >> 8), G: uint8(cg >> 8), B: uint8(cb >> 8)}, p.Base, p.Interval)
				// Pixels off the source decode to the fill value; the
				// edge blends sit between.
				require.False(t, math.IsNaN(got))
				assert.GreaterOrEqual(t, got, -p.Interval)
				assert.LessOrEqual(t, got, value+p.Interval)
				if math.Abs(got-value) < 1e-6 {
					hits++
				}
			}
		}
	}
	assert.Positive(t, hits)
}
