package mbtiles

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"iter"
	"os"
	"sort"

	"github.com/cespare/xxhash/v2"
)

// Row is one record of the tiles table.
type Row struct {
	ZoomLevel  uint32
	TileColumn uint32
	TileRow    uint32
	TileData   []byte
}

// Archive is a read/metadata handle on an existing archive.
type Archive struct {
	db *sql.DB
}

// Open opens an existing archive without touching its tiles.
func Open(path string) (*Archive, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	db, err := open(path)
	if err != nil {
		return nil, err
	}
	return &Archive{db: db}, nil
}

func (a *Archive) Close() error { return a.db.Close() }

// PutMetadata replaces the given metadata keys in one transaction. Keys are
// written in sorted order.
func (a *Archive) PutMetadata(ctx context.Context, kv map[string]string) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	keys := make([]string, 0, len(kv))
	for k := range kv {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, err := tx.ExecContext(ctx, "DELETE FROM metadata WHERE name = ?;", k); err != nil {
			return fmt.Errorf("metadata %s: %w", k, err)
		}
		if _, err := tx.ExecContext(ctx, insertMetadata, k, kv[k]); err != nil {
			return fmt.Errorf("metadata %s: %w", k, err)
		}
	}
	return tx.Commit()
}

// Metadata returns every metadata pair.
func (a *Archive) Metadata(ctx context.Context) (map[string]string, error) {
	rows, err := a.db.QueryContext(ctx, "SELECT name, value FROM metadata;")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

// Count returns the number of stored tiles.
func (a *Archive) Count(ctx context.Context) (int, error) {
	var n int
	err := a.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tiles;").Scan(&n)
	return n, err
}

// Rows iterates over every tile ordered by zoom, column and row. Iteration
// stops at the first error, which is yielded with a zero Row.
func (a *Archive) Rows(ctx context.Context) iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		rows, err := a.db.QueryContext(ctx,
			"SELECT zoom_level, tile_column, tile_row, tile_data FROM tiles ORDER BY zoom_level, tile_column, tile_row;")
		if err != nil {
			yield(Row{}, err)
			return
		}
		defer rows.Close()

		for rows.Next() {
			var r Row
			if err := rows.Scan(&r.ZoomLevel, &r.TileColumn, &r.TileRow, &r.TileData); err != nil {
				yield(Row{}, err)
				return
			}
			if !yield(r, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(Row{}, err)
		}
	}
}

// Fingerprint digests every tile row independently of insertion order, so
// two archives holding the same rows have the same fingerprint.
func (a *Archive) Fingerprint(ctx context.Context) (uint64, error) {
	var sum uint64
	for r, err := range a.Rows(ctx) {
		if err != nil {
			return 0, err
		}
		sum += rowHash(r)
	}
	return sum, nil
}

func rowHash(r Row) uint64 {
	d := xxhash.New()
	var key [12]byte
	binary.BigEndian.PutUint32(key[0:], r.ZoomLevel)
	binary.BigEndian.PutUint32(key[4:], r.TileColumn)
	binary.BigEndian.PutUint32(key[8:], r.TileRow)
	d.Write(key[:])
	d.Write(r.TileData)
	return d.Sum64()
}

