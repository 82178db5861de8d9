// Package convert encodes a whole raster into a same-sized three band RGB
// raster, without tiling.
package convert

import (
	"context"
	"fmt"
	"math"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/kiesman99/rgbify/internal/logging"
	"github.com/kiesman99/rgbify/internal/raster"
	"github.com/kiesman99/rgbify/pkg/rgb"
	"github.com/kiesman99/rgbify/pkg/tile"
)

// DefaultBlockRows is the height of the row blocks read and written at once.
const DefaultBlockRows = 256

type Options struct {
	Params    rgb.Params
	Band      int
	Workers   int
	BlockRows int
	Logger    *logging.Logger
}

func (o *Options) defaults() error {
	if o.Band == 0 {
		o.Band = 1
	}
	if o.Workers == 0 {
		o.Workers = 1
	}
	if o.BlockRows == 0 {
		o.BlockRows = DefaultBlockRows
	}
	if o.Logger == nil {
		o.Logger = logging.Noop()
	}
	if err := o.Params.Validate(); err != nil {
		return tile.Configf("encoding", "%v", err)
	}
	if o.Band < 1 || o.Workers < 1 || o.BlockRows < 1 {
		return tile.Configf("options", "band, workers and block rows must be positive")
	}
	return nil
}

// Convert encodes band opts.Band of src into dst, which must have the same
// size and three Byte bands.
//
// The first pass scans the band for its extremes and fails with a
// *rgb.RangeError before anything is written. The second pass encodes row
// blocks on opts.Workers goroutines. Source reads and destination writes are
// serialized, since raster handles are not safe for concurrent use.
// Nodata and NaN samples are encoded as 0.
func Convert(ctx context.Context, src raster.Source, dst raster.Writer, opts Options) error {
	if err := opts.defaults(); err != nil {
		return err
	}
	width, height := src.Size()
	nodata, hasNoData := src.NoData()
	blocks := blockWindows(width, height, opts.BlockRows)
	if len(blocks) == 0 {
		return nil
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, w := range blocks {
		if err := ctx.Err(); err != nil {
			return err
		}
		a, err := src.ReadWindow(opts.Band, w)
		if err != nil {
			return fmt.Errorf("read %+v: %w", w, err)
		}
		for _, v := range cleaned(a, nodata, hasNoData) {
			lo, hi = min(lo, v), max(hi, v)
		}
	}
	if err := rgb.ValidateRange([]float64{lo, hi}, opts.Params.Base, opts.Params.Interval); err != nil {
		return err
	}
	opts.Logger.DebugContext(ctx, "data range",
		"min", lo,
		"max", hi,
		"blocks", len(blocks),
	)

	var readMu, writeMu sync.Mutex
	done := 0
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for _, w := range blocks {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			readMu.Lock()
			a, err := src.ReadWindow(opts.Band, w)
			readMu.Unlock()
			if err != nil {
				return fmt.Errorf("read %+v: %w", w, err)
			}

			planes, err := rgb.EncodeBuffer(cleaned(a, nodata, hasNoData), opts.Params)
			if err != nil {
				return fmt.Errorf("encode %+v: %w", w, err)
			}
			out := raster.Array{DType: raster.Byte, Bands: 3, Rows: w.Height, Cols: w.Width, Data: planes}

			writeMu.Lock()
			defer writeMu.Unlock()
			if err := dst.WriteWindow(w, out); err != nil {
				return fmt.Errorf("write %+v: %w", w, err)
			}
			done++
			opts.Logger.LogProgress(gctx, done, len(blocks))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// blockWindows splits a raster into full-width row blocks.
func blockWindows(width, height, rows int) []raster.Window {
	var out []raster.Window
	for row := 0; row < height; row += rows {
		out = append(out, raster.Window{Col: 0, Row: row, Width: width, Height: min(rows, height-row)})
	}
	return out
}

// cleaned returns the samples of a with nodata and NaN replaced by 0.
func cleaned(a raster.Array, nodata float64, hasNoData bool) []float64 {
	vals := a.Float64s()
	for i, v := range vals {
		if math.IsNaN(v) || (hasNoData && v == nodata) {
			vals[i] = 0
		}
	}
	return vals
}
