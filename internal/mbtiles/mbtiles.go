// Package mbtiles writes the tile archive: a SQLite file holding a tiles
// table keyed by zoom, column and TMS row, and a name/value metadata table.
package mbtiles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/paulmach/orb/maptile"
	_ "modernc.org/sqlite"

	"github.com/kiesman99/rgbify/pkg/tile"
)

const (
	createTiles    = "CREATE TABLE tiles (zoom_level integer, tile_column integer, tile_row integer, tile_data blob);"
	createMetadata = "CREATE TABLE metadata (name text, value text);"
	insertTile     = "INSERT INTO tiles (zoom_level, tile_column, tile_row, tile_data) VALUES (?, ?, ?, ?);"
	insertMetadata = "INSERT INTO metadata (name, value) VALUES (?, ?);"
)

// Writer streams tiles into a freshly created archive. It is owned by a
// single goroutine.
type Writer struct {
	db        *sql.DB
	path      string
	batchSize int

	tx      *sql.Tx
	stmt    *sql.Stmt
	pending int
	written int
}

// Option configures a Writer.
type Option func(*Writer)

// WithBatchSize commits every n rows instead of after each row.
func WithBatchSize(n int) Option {
	return func(w *Writer) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

// Create deletes any file at path and creates an empty archive with the
// tiles and metadata tables.
func Create(ctx context.Context, path string, opts ...Option) (*Writer, error) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove existing archive: %w", err)
	}

	db, err := open(path)
	if err != nil {
		return nil, err
	}
	for _, stmt := range []string{createTiles, createMetadata} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}

	w := &Writer{db: db, path: path, batchSize: 1}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

func open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}
	// A single connection keeps transactions and statements on one handle.
	db.SetMaxOpenConns(1)
	return db, nil
}

// Path returns the archive location.
func (w *Writer) Path() string { return w.path }

// Written returns the number of rows inserted so far.
func (w *Writer) Written() int { return w.written }

// Write inserts one tile using the inverted TMS row and commits once the
// batch is full.
func (w *Writer) Write(ctx context.Context, t maptile.Tile, data []byte) error {
	if w.db == nil {
		return errors.New("mbtiles: writer is closed")
	}
	if w.tx == nil {
		// The batch outlives ctx: rows written before a cancel are still
		// committed by Flush or Close.
		txCtx := context.WithoutCancel(ctx)
		tx, err := w.db.BeginTx(txCtx, nil)
		if err != nil {
			return fmt.Errorf("begin: %w", err)
		}
		stmt, err := tx.PrepareContext(txCtx, insertTile)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("prepare insert: %w", err)
		}
		w.tx, w.stmt = tx, stmt
	}

	if _, err := w.stmt.ExecContext(ctx, int64(t.Z), int64(t.X), int64(tile.FlipY(t)), data); err != nil {
		return fmt.Errorf("insert tile %d/%d/%d: %w", t.Z, t.X, t.Y, err)
	}
	w.pending++
	w.written++

	if w.pending >= w.batchSize {
		return w.Flush()
	}
	return nil
}

// Flush commits the pending batch.
func (w *Writer) Flush() error {
	if w.tx == nil {
		return nil
	}
	w.stmt.Close()
	err := w.tx.Commit()
	w.tx, w.stmt, w.pending = nil, nil, 0
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Close commits outstanding rows and releases the handle. It is safe to
// call more than once.
func (w *Writer) Close() error {
	if w.db == nil {
		return nil
	}
	flushErr := w.Flush()
	closeErr := w.db.Close()
	w.db = nil
	return errors.Join(flushErr, closeErr)
}
