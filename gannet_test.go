package gannet_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gannet-io/gannet"
	"github.com/gannet-io/gannet/filter"
	"github.com/gannet-io/gannet/hnsw"
	"github.com/gannet-io/gannet/snapshot"
	"github.com/gannet-io/gannet/testutil"
)

func int64Ptr(v int64) *int64 { return &v }

func newTestIndex(t *testing.T, dim int, optFns ...func(o *gannet.Options)) *gannet.Index {
	t.Helper()

	fns := append([]func(o *gannet.Options){func(o *gannet.Options) {
		o.Index.Dimension = dim
		o.Index.RandomSeed = int64Ptr(42)
	}}, optFns...)

	idx, err := gannet.New(fns...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	return idx
}

func insertVectors(t *testing.T, idx *gannet.Index, vecs [][]float32) {
	t.Helper()

	ctx := context.Background()
	for i, vec := range vecs {
		require.NoError(t, idx.Insert(ctx, gannet.ID(i), vec))
	}
}

func TestNewDefaults(t *testing.T) {
	idx, err := gannet.New()
	require.NoError(t, err)

	assert.Equal(t, 0, idx.Len())
	assert.Equal(t, 0, idx.Dimension())

	require.NoError(t, idx.Insert(context.Background(), 1, []float32{1, 2, 3}))
	assert.Equal(t, 3, idx.Dimension())
	assert.Equal(t, 1, idx.Len())
}

func TestNewInvalidOptions(t *testing.T) {
	_, err := gannet.New(func(o *gannet.Options) {
		o.Index.M = 1
	})
	require.Error(t, err)

	var confErr *hnsw.ErrInvalidConfiguration
	assert.ErrorAs(t, err, &confErr)
}

func TestInsertSearchDelete(t *testing.T) {
	ctx := context.Background()

	idx := newTestIndex(t, 16)
	vecs := testutil.NewRNG(7).UniformVectors(200, 16)
	insertVectors(t, idx, vecs)

	require.Equal(t, 200, idx.Len())

	results, err := idx.Search(ctx, vecs[7], 5)
	require.NoError(t, err)
	require.Len(t, results, 5)
	assert.Equal(t, gannet.ID(7), results[0].ID)
	assert.Zero(t, results[0].Distance)

	require.NoError(t, idx.Delete(ctx, 7))
	assert.False(t, idx.Contains(7))
	assert.Equal(t, 199, idx.Len())

	results, err = idx.Search(ctx, vecs[7], 5)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, gannet.ID(7), r.ID)
	}

	_, err = idx.Vector(7)
	assert.ErrorIs(t, err, gannet.ErrNotFound)

	err = idx.Delete(ctx, 7)
	assert.ErrorIs(t, err, gannet.ErrNotFound)
}

func TestInsertDuplicate(t *testing.T) {
	ctx := context.Background()

	idx := newTestIndex(t, 4)
	require.NoError(t, idx.Insert(ctx, 1, []float32{1, 2, 3, 4}))

	err := idx.Insert(ctx, 1, []float32{4, 3, 2, 1})
	require.Error(t, err)

	var dupErr *hnsw.ErrDuplicateID
	assert.ErrorAs(t, err, &dupErr)
}

func TestBatchInsert(t *testing.T) {
	ctx := context.Background()

	idx := newTestIndex(t, 8)
	vecs := testutil.NewRNG(3).UniformVectors(50, 8)

	entries := make([]gannet.Entry, len(vecs))
	for i, vec := range vecs {
		entries[i] = gannet.Entry{ID: gannet.ID(i), Vector: vec}
	}
	entries[10].ID = entries[3].ID // duplicate

	result := idx.BatchInsert(ctx, entries)
	assert.Equal(t, 49, result.Inserted)
	assert.True(t, result.Failed())
	require.Len(t, result.Errors, 50)
	assert.Error(t, result.Errors[10])
	assert.NoError(t, result.Errors[3])

	assert.Equal(t, 49, idx.Len())
}

func TestSearchWithFilter(t *testing.T) {
	ctx := context.Background()

	idx := newTestIndex(t, 16)
	vecs := testutil.NewRNG(11).UniformVectors(150, 16)
	insertVectors(t, idx, vecs)

	allow := filter.BitmapOf(3, 17, 42, 99)

	results, err := idx.Search(ctx, vecs[0], 4, func(o *gannet.SearchOptions) {
		o.Filter = allow
		o.EF = 300
	})
	require.NoError(t, err)
	require.NotEmpty(t, results)

	for _, r := range results {
		assert.True(t, allow.Contains(uint64(r.ID)), "id %d not in filter", r.ID)
	}
}

func TestBruteSearch(t *testing.T) {
	ctx := context.Background()

	idx := newTestIndex(t, 8)
	vecs := testutil.NewRNG(5).UniformVectors(100, 8)
	insertVectors(t, idx, vecs)

	results, err := idx.BruteSearch(ctx, vecs[33], 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, gannet.ID(33), results[0].ID)

	allow := filter.BitmapOf(10, 20)
	results, err = idx.BruteSearch(ctx, vecs[33], 3, func(o *gannet.SearchOptions) {
		o.Filter = allow
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.True(t, allow.Contains(uint64(r.ID)))
	}
}

func TestSearchEmpty(t *testing.T) {
	idx := newTestIndex(t, 4)

	_, err := idx.Search(context.Background(), []float32{1, 2, 3, 4}, 3)
	assert.ErrorIs(t, err, hnsw.ErrEmptyIndex)
}

func TestCompact(t *testing.T) {
	ctx := context.Background()

	idx := newTestIndex(t, 16)
	vecs := testutil.NewRNG(13).UniformVectors(100, 16)
	insertVectors(t, idx, vecs)

	for id := 0; id < 30; id++ {
		require.NoError(t, idx.Delete(ctx, gannet.ID(id)))
	}

	st := idx.Stats()
	assert.Equal(t, 100, st.Nodes)
	assert.Equal(t, 30, st.Deleted)

	require.NoError(t, idx.Compact(ctx))

	st = idx.Stats()
	assert.Equal(t, 70, st.Nodes)
	assert.Zero(t, st.Deleted)
	assert.Equal(t, 70, idx.Len())
	require.NoError(t, idx.Validate())

	results, err := idx.Search(ctx, vecs[50], 1)
	require.NoError(t, err)
	assert.Equal(t, gannet.ID(50), results[0].ID)
}

func TestSnapshotAndRestore(t *testing.T) {
	ctx := context.Background()
	store := snapshot.NewMemoryStore()

	idx := newTestIndex(t, 16,
		gannet.WithSnapshotStore(store),
		gannet.WithSnapshotCodec(snapshot.CompressionZSTD),
	)

	vecs := testutil.NewRNG(17).UniformVectors(50, 16)
	insertVectors(t, idx, vecs)

	name, err := idx.Snapshot(ctx)
	require.NoError(t, err)
	assert.True(t, snapshot.IsSnapshotName(name))
	assert.Equal(t, 1, store.Len())

	extra := testutil.NewRNG(18).UniformVectors(10, 16)
	for i, vec := range extra {
		require.NoError(t, idx.Insert(ctx, gannet.ID(100+i), vec))
	}
	require.Equal(t, 60, idx.Len())

	restored, err := idx.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, name, restored)
	assert.Equal(t, 50, idx.Len())
	assert.False(t, idx.Contains(100))

	results, err := idx.Search(ctx, vecs[12], 1)
	require.NoError(t, err)
	assert.Equal(t, gannet.ID(12), results[0].ID)
}

func TestSnapshotWithoutStore(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t, 4)

	_, err := idx.Snapshot(ctx)
	assert.ErrorIs(t, err, gannet.ErrNoSnapshotStore)

	_, err = idx.Restore(ctx)
	assert.ErrorIs(t, err, gannet.ErrNoSnapshotStore)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	store := snapshot.NewMemoryStore()

	withStore := func(o *gannet.Options) {
		o.Index.Dimension = 8
		o.Snapshot.Store = store
	}

	idx, err := gannet.Open(ctx, withStore)
	require.NoError(t, err)
	assert.Equal(t, 0, idx.Len())

	vecs := testutil.NewRNG(23).UniformVectors(30, 8)
	for i, vec := range vecs {
		require.NoError(t, idx.Insert(ctx, gannet.ID(i), vec))
	}
	_, err = idx.Snapshot(ctx)
	require.NoError(t, err)
	require.NoError(t, idx.Close())

	reopened, err := gannet.Open(ctx, withStore)
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, 30, reopened.Len())

	results, err := reopened.Search(ctx, vecs[4], 1)
	require.NoError(t, err)
	assert.Equal(t, gannet.ID(4), results[0].ID)
}

func TestOpenCorruptSnapshot(t *testing.T) {
	ctx := context.Background()
	store := snapshot.NewMemoryStore()
	require.NoError(t, store.Put(ctx, snapshot.Name(time.Now()), []byte("not a snapshot")))

	_, err := gannet.Open(ctx, func(o *gannet.Options) {
		o.Snapshot.Store = store
	})
	require.Error(t, err)
}

func TestAutoSnapshotOpThreshold(t *testing.T) {
	ctx := context.Background()
	store := snapshot.NewMemoryStore()

	idx := newTestIndex(t, 8,
		gannet.WithSnapshotStore(store),
		gannet.WithAutoSnapshot(0, 10),
	)

	vecs := testutil.NewRNG(29).UniformVectors(10, 8)
	for i, vec := range vecs {
		require.NoError(t, idx.Insert(ctx, gannet.ID(i), vec))
	}

	assert.Eventually(t, func() bool {
		return store.Len() >= 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestNewFromReader(t *testing.T) {
	ctx := context.Background()

	idx := newTestIndex(t, 16)
	vecs := testutil.NewRNG(31).UniformVectors(40, 16)
	insertVectors(t, idx, vecs)

	var buf bytes.Buffer
	require.NoError(t, idx.SaveToWriter(&buf))

	loaded, err := gannet.NewFromReader(&buf)
	require.NoError(t, err)
	defer loaded.Close()

	assert.Equal(t, 40, loaded.Len())
	assert.Equal(t, 16, loaded.Dimension())

	results, err := loaded.Search(ctx, vecs[9], 1)
	require.NoError(t, err)
	assert.Equal(t, gannet.ID(9), results[0].ID)
}

func TestNewFromReaderCorrupt(t *testing.T) {
	_, err := gannet.NewFromReader(bytes.NewReader([]byte("garbage")))
	require.Error(t, err)
}

func TestMetricsCollection(t *testing.T) {
	ctx := context.Background()
	metrics := &gannet.BasicMetricsCollector{}

	idx := newTestIndex(t, 8, gannet.WithMetricsCollector(metrics))

	vecs := testutil.NewRNG(37).UniformVectors(5, 8)
	insertVectors(t, idx, vecs)

	for i := 0; i < 3; i++ {
		_, err := idx.Search(ctx, vecs[0], 2)
		require.NoError(t, err)
	}

	require.NoError(t, idx.Delete(ctx, 0))
	assert.Error(t, idx.Delete(ctx, 999))

	stats := metrics.GetStats()
	assert.EqualValues(t, 5, stats.InsertCount)
	assert.EqualValues(t, 0, stats.InsertErrors)
	assert.EqualValues(t, 3, stats.SearchCount)
	assert.EqualValues(t, 2, stats.DeleteCount)
	assert.EqualValues(t, 1, stats.DeleteErrors)
	assert.Positive(t, stats.AvgInsertTime)
	assert.Positive(t, stats.AvgSearchTime)
}

func TestLoggerRecords(t *testing.T) {
	ctx := context.Background()

	var buf bytes.Buffer
	logger := gannet.NewLogger(slog.NewTextHandler(&buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	store := snapshot.NewMemoryStore()
	idx := newTestIndex(t, 4,
		gannet.WithLogger(logger),
		gannet.WithSnapshotStore(store),
	)

	require.NoError(t, idx.Insert(ctx, 1, []float32{1, 2, 3, 4}))
	_, err := idx.Snapshot(ctx)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "insert completed")
	assert.Contains(t, out, "snapshot saved")
}

func TestConcurrentOperations(t *testing.T) {
	ctx := context.Background()

	idx := newTestIndex(t, 8)
	vecs := testutil.NewRNG(41).UniformVectors(200, 8)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				id := gannet.ID(base + i)
				if err := idx.Insert(ctx, id, vecs[base+i]); err != nil {
					t.Errorf("insert %d: %v", id, err)
				}
			}
		}(w * 50)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		query := vecs[0]
		for i := 0; i < 100; i++ {
			// Concurrent with inserts; the index may still be empty.
			if _, err := idx.Search(ctx, query, 3); err != nil && !errors.Is(err, hnsw.ErrEmptyIndex) {
				t.Errorf("search: %v", err)
			}
		}
	}()

	wg.Wait()

	assert.Equal(t, 200, idx.Len())
	require.NoError(t, idx.Validate())
}

func TestCloseIdempotent(t *testing.T) {
	idx, err := gannet.New()
	require.NoError(t, err)
	assert.NoError(t, idx.Close())
	assert.NoError(t, idx.Close())

	store := snapshot.NewMemoryStore()
	idx2, err := gannet.New(func(o *gannet.Options) {
		o.Snapshot.Store = store
	})
	require.NoError(t, err)
	assert.NoError(t, idx2.Close())
	assert.NoError(t, idx2.Close())
}
