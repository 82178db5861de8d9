package mbtiles

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb/maptile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, a *Archive) []Row {
	t.Helper()
	var out []Row
	for r, err := range a.Rows(context.Background()) {
		require.NoError(t, err)
		out = append(out, r)
	}
	return out
}

func TestCreate_SchemaAndInvertedRows(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "out.mbtiles")

	w, err := Create(ctx, path)
	require.NoError(t, err)
	require.NoError(t, w.Write(ctx, maptile.New(654, 1582, 12), []byte("a")))
	require.NoError(t, w.Write(ctx, maptile.New(0, 0, 0), []byte("b")))
	assert.Equal(t, 2, w.Written())
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	a, err := Open(path)
	require.NoError(t, err)
	defer a.Close()

	rows := collect(t, a)
	assert.Equal(t, []Row{
		{ZoomLevel: 0, TileColumn: 0, TileRow: 0, TileData: []byte("b")},
		{ZoomLevel: 12, TileColumn: 654, TileRow: 2513, TileData: []byte("a")},
	}, rows)

	md, err := a.Metadata(ctx)
	require.NoError(t, err)
	assert.Empty(t, md)
}

func TestCreate_OverwritesExisting(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "out.mbtiles")
	require.NoError(t, os.WriteFile(path, []byte("not a database"), 0o644))

	w, err := Create(ctx, path)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	a, err := Open(path)
	require.NoError(t, err)
	defer a.Close()
	n, err := a.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestWriter_BatchedCommitsSurviveAbandonedBatch(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "out.mbtiles")

	w, err := Create(ctx, path, WithBatchSize(2))
	require.NoError(t, err)
	require.NoError(t, w.Write(ctx, maptile.New(0, 0, 1), []byte{1}))
	require.NoError(t, w.Write(ctx, maptile.New(1, 0, 1), []byte{2}))
	require.NoError(t, w.Write(ctx, maptile.New(0, 1, 1), []byte{3}))

	// Roll back the open batch as a crash would.
	require.NoError(t, w.tx.Rollback())
	w.tx, w.stmt, w.pending = nil, nil, 0
	require.NoError(t, w.Close())

	a, err := Open(path)
	require.NoError(t, err)
	defer a.Close()
	n, err := a.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestWriter_CancelKeepsPendingBatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.mbtiles")
	ctx, cancel := context.WithCancel(context.Background())

	w, err := Create(ctx, path, WithBatchSize(3))
	require.NoError(t, err)
	require.NoError(t, w.Write(ctx, maptile.New(0, 0, 1), []byte{1}))
	cancel()
	require.NoError(t, w.Close())

	a, err := Open(path)
	require.NoError(t, err)
	defer a.Close()
	n, err := a.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestWriter_WriteAfterClose(t *testing.T) {
	ctx := context.Background()
	w, err := Create(ctx, filepath.Join(t.TempDir(), "out.mbtiles"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.Error(t, w.Write(ctx, maptile.New(0, 0, 0), nil))
}

func TestArchive_PutMetadata(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "out.mbtiles")
	w, err := Create(ctx, path)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	a, err := Open(path)
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.PutMetadata(ctx, map[string]string{"format": "png", "minzoom": "3"}))
	require.NoError(t, a.PutMetadata(ctx, map[string]string{"minzoom": "4"}))

	md, err := a.Metadata(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"format": "png", "minzoom": "4"}, md)
}

func TestArchive_FingerprintIgnoresInsertOrder(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	tiles := []maptile.Tile{maptile.New(0, 0, 1), maptile.New(1, 0, 1), maptile.New(1, 1, 1)}

	write := func(name string, order []int) uint64 {
		path := filepath.Join(dir, name)
		w, err := Create(ctx, path, WithBatchSize(10))
		require.NoError(t, err)
		for _, i := range order {
			require.NoError(t, w.Write(ctx, tiles[i], []byte{byte(i)}))
		}
		require.NoError(t, w.Close())

		a, err := Open(path)
		require.NoError(t, err)
		defer a.Close()
		fp, err := a.Fingerprint(ctx)
		require.NoError(t, err)
		return fp
	}

	assert.Equal(t, write("a.mbtiles", []int{0, 1, 2}), write("b.mbtiles", []int{2, 0, 1}))
	assert.NotEqual(t, write("c.mbtiles", []int{0, 1}), write("d.mbtiles", []int{0, 2}))
}

func TestOpen_Missing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.mbtiles"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
