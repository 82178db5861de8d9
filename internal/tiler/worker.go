package tiler

import (
	"context"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"

	"github.com/kiesman99/rgbify/internal/imagecodec"
	"github.com/kiesman99/rgbify/internal/raster"
	"github.com/kiesman99/rgbify/pkg/crs"
	"github.com/kiesman99/rgbify/pkg/rgb"
	"github.com/kiesman99/rgbify/pkg/tile"
)

// windowPad keeps the bilinear neighbours of edge pixels inside the window
// read from the source.
const windowPad = 2

// worker renders tiles from a source handle it owns for its whole life.
type worker struct {
	src raster.Source
	cfg *Config
	enc imagecodec.Encoder
}

// newWorker opens a private source handle. It runs on the goroutine that
// will use the worker.
func newWorker(open raster.Opener, cfg *Config) (*worker, error) {
	enc, err := imagecodec.New(cfg.Format, cfg.Creation)
	if err != nil {
		return nil, err
	}
	src, err := open()
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	return &worker{src: src, cfg: cfg, enc: enc}, nil
}

func (w *worker) Process(ctx context.Context, t maptile.Tile) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := w.render(t)
	if err != nil {
		return nil, &TileError{Tile: t, Err: err}
	}
	return data, nil
}

func (w *worker) Close() error {
	return w.src.Close()
}

// render warps the source onto the tile grid, encodes the samples and
// serializes the image.
func (w *worker) render(t maptile.Tile) ([]byte, error) {
	bound := tile.MercatorBound(t)
	if w.cfg.ChinaOffset {
		bound = gcjBound(bound)
	}
	dstTransform := raster.FromBounds(bound, tile.Size, tile.Size)

	out, err := raster.NewArray(w.src.DType(), 1, tile.Size, tile.Size)
	if err != nil {
		return nil, err
	}
	if err := w.warp(bound, out, dstTransform); err != nil {
		return nil, fmt.Errorf("warp: %w", err)
	}

	planes, err := rgb.EncodeBuffer(out.Float64s(), w.cfg.Params)
	if err != nil {
		return nil, err
	}
	encoded := raster.Array{DType: raster.Byte, Bands: 3, Rows: tile.Size, Cols: tile.Size, Data: planes}
	return w.enc.Encode(encoded)
}

func (w *worker) warp(bound orb.Bound, out raster.Array, dstTransform raster.Affine) error {
	srcCRS := w.src.CRS()
	srcBound, err := crs.TransformBound(bound, crs.WebMercator, srcCRS)
	if err != nil {
		return err
	}
	width, height := w.src.Size()
	win, err := w.src.Transform().WindowFor(srcBound, width, height, windowPad)
	if err != nil {
		return err
	}

	nodata, hasNoData := w.src.NoData()
	opts := raster.WarpOptions{SrcNoData: nodata, HasSrcNoData: hasNoData}
	if win.Empty() {
		for i := 0; i < out.Len(); i++ {
			out.Set(i, opts.Fill)
		}
		return nil
	}

	data, err := w.src.ReadWindow(w.cfg.Band, win)
	if err != nil {
		return err
	}
	return raster.Warp(
		raster.Grid{Array: data, Transform: w.src.Transform().Shift(win.Col, win.Row), CRS: srcCRS},
		raster.Grid{Array: out, Transform: dstTransform, CRS: crs.WebMercator},
		opts,
	)
}

// gcjBound shifts a web mercator bound whose corners are GCJ-02 positions
// onto the WGS84 positions of the same ground points.
func gcjBound(b orb.Bound) orb.Bound {
	shift := func(p orb.Point) orb.Point {
		lon, lat := crs.MercatorToWGS(p[0], p[1])
		lon, lat = crs.GCJToWGS(lon, lat)
		x, y := crs.WGSToMercator(lon, lat)
		return orb.Point{x, y}
	}
	return orb.Bound{Min: shift(b.Min), Max: shift(b.Max)}
}
