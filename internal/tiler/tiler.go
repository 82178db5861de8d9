// Package tiler renders a raster into an MBTiles archive of RGB-encoded
// tiles.
package tiler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kiesman99/rgbify/internal/logging"
	"github.com/kiesman99/rgbify/internal/mbtiles"
	"github.com/kiesman99/rgbify/internal/pool"
	"github.com/kiesman99/rgbify/internal/raster"
	"github.com/kiesman99/rgbify/pkg/tile"
)

// Stats summarizes a run.
type Stats struct {
	Tiles   int // tiles enumerated
	Written int
	Skipped int
	Elapsed time.Duration
}

// RGBTiler drives one run from source to archive.
type RGBTiler struct {
	open    raster.Opener
	outPath string
	opts    Options
	logger  *logging.Logger
}

// New validates opts. Nothing is opened or written until Run.
func New(open raster.Opener, outPath string, opts Options) (*RGBTiler, error) {
	if open == nil {
		return nil, errors.New("tiler: nil source opener")
	}
	if outPath == "" {
		return nil, tile.Configf("output", "path is empty")
	}
	if opts.Workers == 0 {
		opts.Workers = 1
	}
	if opts.BatchSize == 0 {
		opts.BatchSize = 1
	}
	if opts.Band == 0 {
		opts.Band = 1
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Noop()
	}
	return &RGBTiler{open: open, outPath: outPath, opts: opts, logger: logger}, nil
}

// Run enumerates the tiles covering the source, renders them on the worker
// pool and writes every result to the archive. Any existing file at the
// output path is replaced.
//
// Under Abort the first failed tile ends the run with its error; rows
// committed before it remain in the archive. Under Skip failed tiles are
// counted and logged. A worker that fails to start or close always aborts.
func (t *RGBTiler) Run(ctx context.Context) (stats Stats, err error) {
	start := time.Now()
	defer func() {
		stats.Elapsed = time.Since(start)
		t.logger.LogRun(ctx, t.outPath, stats.Written, stats.Skipped, stats.Elapsed, err)
	}()

	src, err := t.open()
	if err != nil {
		return stats, fmt.Errorf("open source: %w", err)
	}
	bounds, srcCRS := src.Bounds(), src.CRS()
	if err := src.Close(); err != nil {
		return stats, fmt.Errorf("close source: %w", err)
	}

	tiles, err := tile.Enumerate(bounds, srcCRS, t.opts.MinZoom, t.opts.MaxZoom, t.opts.BoundingTile)
	if err != nil {
		return stats, err
	}
	stats.Tiles = tile.Count(tiles)
	t.logger.InfoContext(ctx, "tiling",
		"output", t.outPath,
		"tiles", stats.Tiles,
		"min_zoom", t.opts.MinZoom,
		"max_zoom", t.opts.MaxZoom,
		"workers", t.opts.Workers,
		"format", t.opts.Format.String(),
	)

	w, err := mbtiles.Create(ctx, t.outPath, mbtiles.WithBatchSize(t.opts.BatchSize))
	if err != nil {
		return stats, err
	}
	defer func() {
		err = errors.Join(err, w.Close())
	}()

	cfg := t.opts.Config
	factory := func(int) (pool.Worker, error) {
		wk, err := newWorker(t.open, &cfg)
		if err != nil {
			return nil, err
		}
		return wk, nil
	}
	p := pool.New(t.opts.Workers, factory, t.logger)

	done := 0
	for r := range p.Run(ctx, tiles) {
		done++
		if r.Err != nil {
			if t.fatal(ctx, r.Err) {
				return stats, r.Err
			}
			stats.Skipped++
			t.logger.LogTile(ctx, r.Tile, 0, r.Err)
			continue
		}
		if err := w.Write(ctx, r.Tile, r.Data); err != nil {
			return stats, err
		}
		stats.Written++
		t.logger.LogTile(ctx, r.Tile, len(r.Data), nil)
		t.logger.LogProgress(ctx, done, stats.Tiles)
	}
	return stats, nil
}

// fatal reports whether err ends the run under the configured policy.
func (t *RGBTiler) fatal(ctx context.Context, err error) bool {
	var werr *pool.WorkerError
	switch {
	case errors.As(err, &werr), ctx.Err() != nil:
		return true
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return true
	}
	return t.opts.OnError == Abort
}
