package gannet

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/gannet-io/gannet/filter"
	"github.com/gannet-io/gannet/hnsw"
	"github.com/gannet-io/gannet/snapshot"
)

// ID identifies a vector in the index.
type ID = hnsw.ID

// SearchResult pairs a vector id with its distance to the query.
type SearchResult = hnsw.SearchResult

// Stats is a point-in-time summary of index shape and occupancy.
type Stats = hnsw.Stats

// Entry is a vector with its id, used by BatchInsert.
type Entry struct {
	ID     ID
	Vector []float32
}

// BatchInsertResult reports per-item outcomes of a batch insert.
type BatchInsertResult struct {
	// Inserted is the number of entries stored successfully.
	Inserted int

	// Errors holds one slot per input entry; nil means success.
	Errors []error
}

// Failed reports whether any entry in the batch failed.
func (r BatchInsertResult) Failed() bool { return r.Inserted < len(r.Errors) }

// SearchOptions tunes a single search call.
type SearchOptions struct {
	// EF overrides the index's default beam width for this query. Zero
	// uses the configured EFSearch. Ignored by BruteSearch.
	EF int

	// Filter restricts results to ids present in the bitmap.
	Filter *filter.Bitmap
}

// Index is an in-memory approximate nearest neighbor index over float32
// vectors. All methods are safe for concurrent use.
type Index struct {
	// writeMu serializes mutations and graph swaps. Searches do not take
	// it; they run against the graph version current when they started.
	writeMu sync.Mutex

	// mu guards the graph pointer. Held only for the instant of a swap.
	mu    sync.RWMutex
	graph *hnsw.Graph

	manager     *snapshot.Manager
	compression snapshot.Compression
	metrics     MetricsCollector
	logger      *Logger
}

// New creates an empty index.
func New(optFns ...func(o *Options)) (*Index, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = NoopLogger()
	}
	if opts.Metrics == nil {
		opts.Metrics = NoopMetricsCollector{}
	}

	g, err := hnsw.New(func(o *hnsw.Options) { *o = opts.Index })
	if err != nil {
		return nil, err
	}

	idx := &Index{
		graph:       g,
		compression: opts.Snapshot.Compression,
		metrics:     opts.Metrics,
		logger:      opts.Logger,
	}

	if opts.Snapshot.Store != nil {
		idx.manager = snapshot.NewManager(idx.get, opts.Snapshot.Store, func(o *snapshot.ManagerOptions) {
			o.Compression = opts.Snapshot.Compression
			o.Interval = opts.Snapshot.Interval
			o.OpThreshold = opts.Snapshot.OpThreshold
			o.Retain = opts.Snapshot.Retain
			o.UploadBytesPerSec = opts.Snapshot.UploadBytesPerSec
			o.Logger = opts.Logger.Logger
		})
	}

	return idx, nil
}

// Open creates an index and restores the latest snapshot from the configured
// store. A store holding no snapshots yields an empty index.
func Open(ctx context.Context, optFns ...func(o *Options)) (*Index, error) {
	idx, err := New(optFns...)
	if err != nil {
		return nil, err
	}

	if idx.manager == nil {
		return idx, nil
	}

	g, name, err := idx.manager.Restore(ctx)
	if err != nil {
		if errors.Is(err, snapshot.ErrNotFound) {
			return idx, nil
		}
		_ = idx.Close()
		return nil, err
	}

	idx.swap(g)
	idx.logger.LogRestore(ctx, name, g.Len(), nil)

	return idx, nil
}

// NewFromReader builds an index from a snapshot envelope previously written
// with SaveToWriter or Snapshot. Graph parameters come from the envelope;
// opts contribute the logger, metrics, and snapshot configuration.
func NewFromReader(r io.Reader, optFns ...func(o *Options)) (*Index, error) {
	idx, err := New(optFns...)
	if err != nil {
		return nil, err
	}

	g, err := snapshot.Read(r)
	if err != nil {
		_ = idx.Close()
		return nil, err
	}
	idx.swap(g)

	return idx, nil
}

func (idx *Index) get() *hnsw.Graph {
	idx.mu.RLock()
	g := idx.graph
	idx.mu.RUnlock()
	return g
}

func (idx *Index) swap(g *hnsw.Graph) {
	idx.mu.Lock()
	idx.graph = g
	idx.mu.Unlock()
}

func (idx *Index) recordOps(n int64) {
	if idx.manager != nil {
		idx.manager.RecordOps(n)
	}
}

// Insert adds a vector under the given id.
func (idx *Index) Insert(ctx context.Context, id ID, vector []float32) error {
	start := time.Now()

	idx.writeMu.Lock()
	err := translateError(idx.get().Insert(ctx, id, vector))
	idx.writeMu.Unlock()

	idx.metrics.RecordInsert(time.Since(start), err)
	idx.logger.LogInsert(ctx, id, len(vector), err)

	if err == nil {
		idx.recordOps(1)
	}

	return err
}

// BatchInsert adds many vectors in one call. Entries are inserted in order;
// a failing entry does not stop the batch. The result carries one error slot
// per entry.
func (idx *Index) BatchInsert(ctx context.Context, entries []Entry) BatchInsertResult {
	start := time.Now()

	result := BatchInsertResult{Errors: make([]error, len(entries))}

	idx.writeMu.Lock()
	g := idx.get()
	for i, e := range entries {
		if err := translateError(g.Insert(ctx, e.ID, e.Vector)); err != nil {
			result.Errors[i] = err
		} else {
			result.Inserted++
		}
	}
	idx.writeMu.Unlock()

	failed := len(entries) - result.Inserted
	idx.metrics.RecordBatchInsert(len(entries), failed, time.Since(start))
	idx.logger.LogBatchInsert(ctx, len(entries), failed)

	if result.Inserted > 0 {
		idx.recordOps(int64(result.Inserted))
	}

	return result
}

// Delete removes the vector with the given id. The node is tombstoned and
// keeps routing traffic until Compact rebuilds the graph without it.
func (idx *Index) Delete(ctx context.Context, id ID) error {
	start := time.Now()

	idx.writeMu.Lock()
	err := translateError(idx.get().Delete(ctx, id))
	idx.writeMu.Unlock()

	idx.metrics.RecordDelete(time.Since(start), err)
	idx.logger.LogDelete(ctx, id, err)

	if err == nil {
		idx.recordOps(1)
	}

	return err
}

// Search returns the k nearest neighbors of the query vector, nearest first.
func (idx *Index) Search(ctx context.Context, query []float32, k int, optFns ...func(o *SearchOptions)) ([]SearchResult, error) {
	start := time.Now()

	var opts SearchOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	g := idx.get()

	var (
		results []SearchResult
		err     error
	)
	if opts.Filter != nil {
		results, err = g.SearchWithFilter(ctx, query, k, opts.EF, opts.Filter)
	} else {
		results, err = g.KNNSearch(ctx, query, k, opts.EF)
	}
	err = translateError(err)

	idx.metrics.RecordSearch(k, time.Since(start), err)
	idx.logger.LogSearch(ctx, k, len(results), err)

	return results, err
}

// BruteSearch returns exact nearest neighbors by scanning every live vector.
// Intended for recall measurement and small indexes.
func (idx *Index) BruteSearch(ctx context.Context, query []float32, k int, optFns ...func(o *SearchOptions)) ([]SearchResult, error) {
	start := time.Now()

	var opts SearchOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	results, err := idx.get().BruteSearch(ctx, query, k, opts.Filter)
	err = translateError(err)

	idx.metrics.RecordSearch(k, time.Since(start), err)
	idx.logger.LogSearch(ctx, k, len(results), err)

	return results, err
}

// Vector returns a copy of the stored vector for id.
func (idx *Index) Vector(id ID) ([]float32, error) {
	vec, err := idx.get().Vector(id)
	return vec, translateError(err)
}

// Contains reports whether id is in the index and not deleted.
func (idx *Index) Contains(id ID) bool { return idx.get().Contains(id) }

// Len returns the number of live vectors.
func (idx *Index) Len() int { return idx.get().Len() }

// Dimension returns the vector dimensionality, zero before the first insert
// when no dimension was configured.
func (idx *Index) Dimension() int { return idx.get().Dimension() }

// Stats summarizes graph shape and occupancy.
func (idx *Index) Stats() Stats { return idx.get().Stats() }

// Validate checks structural invariants of the graph.
func (idx *Index) Validate() error { return idx.get().Validate() }

// Compact rebuilds the index without tombstoned nodes and swaps the rebuilt
// graph in. Mutations block for the duration; searches proceed against the
// old graph and observe the new one once the swap completes.
func (idx *Index) Compact(ctx context.Context) error {
	start := time.Now()

	idx.writeMu.Lock()
	defer idx.writeMu.Unlock()

	g := idx.get()
	deleted := g.Stats().Deleted

	compacted, err := g.Compact(ctx)
	if err == nil {
		idx.swap(compacted)
	}

	idx.metrics.RecordCompact(time.Since(start), err)
	idx.logger.LogCompact(ctx, deleted, err)

	return err
}

// Snapshot writes the current state to the snapshot store and returns the
// stored snapshot name.
func (idx *Index) Snapshot(ctx context.Context) (string, error) {
	start := time.Now()

	if idx.manager == nil {
		return "", ErrNoSnapshotStore
	}

	name, err := idx.manager.Snapshot(ctx)

	idx.metrics.RecordSnapshot(time.Since(start), err)
	idx.logger.LogSnapshot(ctx, name, err)

	return name, err
}

// Restore replaces the index contents with the latest snapshot from the
// store. In-flight searches finish against the replaced graph.
func (idx *Index) Restore(ctx context.Context) (string, error) {
	if idx.manager == nil {
		return "", ErrNoSnapshotStore
	}

	idx.writeMu.Lock()
	defer idx.writeMu.Unlock()

	g, name, err := idx.manager.Restore(ctx)
	if err != nil {
		idx.logger.LogRestore(ctx, "", 0, err)
		return "", err
	}

	idx.swap(g)
	idx.logger.LogRestore(ctx, name, g.Len(), nil)

	return name, nil
}

// SaveToWriter writes a snapshot envelope to w using the configured
// compression. It does not touch the snapshot store.
func (idx *Index) SaveToWriter(w io.Writer) error {
	return snapshot.Write(w, idx.get(), idx.compression)
}

// Close stops the automatic snapshot loop and waits for an in-flight
// snapshot to finish. The index itself stays usable for in-memory
// operations.
func (idx *Index) Close() error {
	if idx == nil || idx.manager == nil {
		return nil
	}
	return idx.manager.Close()
}
