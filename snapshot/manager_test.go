package snapshot

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gannet-io/gannet/distance"
	"github.com/gannet-io/gannet/hnsw"
	"github.com/gannet-io/gannet/testutil"
)

func TestManagerSnapshotAndRestore(t *testing.T) {
	ctx := context.Background()
	g := buildGraph(t, 150, 8)
	store := NewMemoryStore()

	mgr := NewManager(func() *hnsw.Graph { return g }, store, func(o *ManagerOptions) {
		o.Compression = CompressionZSTD
	})
	defer mgr.Close()

	name, err := mgr.Snapshot(ctx)
	require.NoError(t, err)
	assert.True(t, IsSnapshotName(name))
	assert.Equal(t, 1, store.Len())

	restored, from, err := mgr.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, name, from)
	assert.Equal(t, g.Len(), restored.Len())

	q := testutil.NewRNG(3).UniformVectors(1, 8)[0]
	want, err := g.KNNSearch(ctx, q, 5, 50)
	require.NoError(t, err)
	got, err := restored.KNNSearch(ctx, q, 5, 50)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestManagerRestoreEmpty(t *testing.T) {
	g := buildGraph(t, 10, 4)
	mgr := NewManager(func() *hnsw.Graph { return g }, NewMemoryStore())
	defer mgr.Close()

	_, _, err := mgr.Restore(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

// blockingStore gates its first Put so a test can hold a snapshot in
// flight while issuing a second one.
type blockingStore struct {
	*MemoryStore
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *blockingStore) Put(ctx context.Context, name string, data []byte) error {
	s.once.Do(func() {
		close(s.entered)
		<-s.release
	})
	return s.MemoryStore.Put(ctx, name, data)
}

func TestManagerSingleFlight(t *testing.T) {
	g := buildGraph(t, 30, 4)
	store := &blockingStore{
		MemoryStore: NewMemoryStore(),
		entered:     make(chan struct{}),
		release:     make(chan struct{}),
	}

	mgr := NewManager(func() *hnsw.Graph { return g }, store)
	defer mgr.Close()

	errCh := make(chan error, 1)
	go func() {
		_, err := mgr.Snapshot(context.Background())
		errCh <- err
	}()

	<-store.entered
	_, err := mgr.Snapshot(context.Background())
	assert.ErrorIs(t, err, ErrSnapshotInFlight)

	close(store.release)
	require.NoError(t, <-errCh)
	assert.Equal(t, 1, store.Len())
}

func TestManagerOpThreshold(t *testing.T) {
	g := buildGraph(t, 30, 4)
	store := NewMemoryStore()

	mgr := NewManager(func() *hnsw.Graph { return g }, store, func(o *ManagerOptions) {
		o.OpThreshold = 10
	})
	defer mgr.Close()

	mgr.RecordOps(9)
	assert.Equal(t, 0, store.Len())

	mgr.RecordOps(1)
	assert.Eventually(t, func() bool { return store.Len() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestManagerInterval(t *testing.T) {
	g := buildGraph(t, 30, 4)
	store := NewMemoryStore()

	mgr := NewManager(func() *hnsw.Graph { return g }, store, func(o *ManagerOptions) {
		o.Interval = 20 * time.Millisecond
		o.Retain = 3
	})

	assert.Eventually(t, func() bool { return store.Len() >= 2 }, 3*time.Second, 10*time.Millisecond)
	require.NoError(t, mgr.Close())

	n := store.Len()
	assert.LessOrEqual(t, n, 3)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, n, store.Len())
}

func TestManagerRetention(t *testing.T) {
	ctx := context.Background()
	g := buildGraph(t, 30, 4)
	store := NewMemoryStore()

	mgr := NewManager(func() *hnsw.Graph { return g }, store, func(o *ManagerOptions) {
		o.Retain = 2
	})
	defer mgr.Close()

	var names []string
	for i := 0; i < 4; i++ {
		name, err := mgr.Snapshot(ctx)
		require.NoError(t, err)
		names = append(names, name)
	}

	got, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, names[len(names)-2:], got)
}

func TestManagerUploadThrottle(t *testing.T) {
	ctx := context.Background()
	g := buildGraph(t, 100, 8)
	store := NewMemoryStore()

	mgr := NewManager(func() *hnsw.Graph { return g }, store, func(o *ManagerOptions) {
		o.UploadBytesPerSec = 1 << 20
	})
	defer mgr.Close()

	_, err := mgr.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, store.Len())
}

func TestManagerClosed(t *testing.T) {
	g := buildGraph(t, 10, 4)
	mgr := NewManager(func() *hnsw.Graph { return g }, NewMemoryStore())

	require.NoError(t, mgr.Close())
	require.NoError(t, mgr.Close())

	_, err := mgr.Snapshot(context.Background())
	assert.ErrorIs(t, err, ErrManagerClosed)
}

func TestManagerNotPersistable(t *testing.T) {
	ctx := context.Background()

	g, err := hnsw.New(func(o *hnsw.Options) {
		o.Dimension = 4
		o.DistanceFunc = distance.SquaredL2
	})
	require.NoError(t, err)
	require.NoError(t, g.Insert(ctx, 1, []float32{1, 2, 3, 4}))

	mgr := NewManager(func() *hnsw.Graph { return g }, NewMemoryStore())
	defer mgr.Close()

	_, err = mgr.Snapshot(ctx)
	assert.ErrorIs(t, err, hnsw.ErrNotPersistable)
}
