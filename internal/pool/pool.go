// Package pool fans tile work out to a fixed set of long-lived workers and
// streams results back in completion order.
package pool

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/paulmach/orb/maptile"
	"golang.org/x/sync/errgroup"

	"github.com/kiesman99/rgbify/internal/logging"
)

// Worker processes tiles. A worker is used by a single goroutine for its
// whole life, so it may own resources that are not safe to share.
type Worker interface {
	Process(ctx context.Context, t maptile.Tile) ([]byte, error)
	Close() error
}

// Factory builds one worker. It is called once per worker per run, on the
// goroutine that will use the worker.
type Factory func(id int) (Worker, error)

// Result is a processed tile. Err carries the per-tile failure; a
// *WorkerError means a worker could not start or stop and no tile is set.
type Result struct {
	Tile maptile.Tile
	Data []byte
	Err  error
}

// WorkerError reports a worker lifecycle failure.
type WorkerError struct {
	ID  int
	Err error
}

func (e *WorkerError) Error() string {
	return fmt.Sprintf("worker %d: %v", e.ID, e.Err)
}

func (e *WorkerError) Unwrap() error { return e.Err }

// Pool runs tiles through a fixed number of workers.
type Pool struct {
	workers int
	factory Factory
	logger  *logging.Logger
}

// New creates a pool. workers below 1 is treated as 1.
func New(workers int, factory Factory, logger *logging.Logger) *Pool {
	if logger == nil {
		logger = logging.Noop()
	}
	return &Pool{workers: max(workers, 1), factory: factory, logger: logger}
}

// Workers returns the configured worker count.
func (p *Pool) Workers() int { return p.workers }

// Run processes tiles and yields results as they complete, not in input
// order. Tiles are pulled from the sequence only as workers free up, so at
// most O(workers) tiles are in flight.
//
// With a single worker everything runs synchronously on the caller's
// goroutine. Stopping the iteration early cancels outstanding work, and Run
// returns only after every worker has finished and been closed.
func (p *Pool) Run(ctx context.Context, tiles iter.Seq[maptile.Tile]) iter.Seq[Result] {
	if p.workers == 1 {
		return p.runSync(ctx, tiles)
	}
	return p.runParallel(ctx, tiles)
}

func (p *Pool) runSync(ctx context.Context, tiles iter.Seq[maptile.Tile]) iter.Seq[Result] {
	return func(yield func(Result) bool) {
		w, err := p.factory(0)
		if err != nil {
			yield(Result{Err: &WorkerError{ID: 0, Err: err}})
			return
		}

		stopped := false
		for t := range tiles {
			if err := ctx.Err(); err != nil {
				stopped = !yield(Result{Err: err})
				break
			}
			data, err := w.Process(ctx, t)
			if !yield(Result{Tile: t, Data: data, Err: err}) {
				stopped = true
				break
			}
		}

		if err := w.Close(); err != nil && !stopped {
			yield(Result{Err: &WorkerError{ID: 0, Err: err}})
		}
	}
}

func (p *Pool) runParallel(ctx context.Context, tiles iter.Seq[maptile.Tile]) iter.Seq[Result] {
	return func(yield func(Result) bool) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		jobs := make(chan maptile.Tile)
		results := make(chan Result, p.workers)
		g, gctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			defer close(jobs)
			for t := range tiles {
				select {
				case jobs <- t:
				case <-gctx.Done():
					return nil
				}
			}
			return nil
		})
		for id := 0; id < p.workers; id++ {
			g.Go(func() error {
				return p.work(gctx, id, jobs, results)
			})
		}

		done := make(chan error, 1)
		go func() {
			done <- g.Wait()
			close(results)
		}()

		for r := range results {
			if !yield(r) {
				cancel()
				for range results {
				}
				<-done
				return
			}
		}

		err := <-done
		var werr *WorkerError
		switch {
		case errors.As(err, &werr):
			yield(Result{Err: err})
		case ctx.Err() != nil:
			yield(Result{Err: ctx.Err()})
		}
	}
}

func (p *Pool) work(ctx context.Context, id int, jobs <-chan maptile.Tile, results chan<- Result) (err error) {
	log := p.logger.WithWorker(id)
	w, err := p.factory(id)
	if err != nil {
		return &WorkerError{ID: id, Err: err}
	}
	log.DebugContext(ctx, "worker started")
	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = &WorkerError{ID: id, Err: cerr}
		}
		log.DebugContext(ctx, "worker stopped")
	}()

	for t := range jobs {
		data, perr := w.Process(ctx, t)
		select {
		case results <- Result{Tile: t, Data: data, Err: perr}:
		case <-ctx.Done():
			return nil
		}
	}
	return nil
}
