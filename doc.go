// Package gannet provides an embedded approximate nearest neighbor index
// for Go, built on a Hierarchical Navigable Small World (HNSW) graph.
//
// The index lives entirely in memory and supports concurrent inserts,
// deletes, and searches. Durability is optional and snapshot-based: the
// whole graph is serialized into a checksummed envelope and written to a
// pluggable store (local directory, S3, MinIO, or in-memory).
//
// # Quick Start
//
//	ctx := context.Background()
//
//	idx, _ := gannet.New(func(o *gannet.Options) {
//		o.Index.Dimension = 128
//		o.Index.M = 16
//		o.Index.Metric = distance.MetricCosine
//	})
//	defer idx.Close()
//
//	_ = idx.Insert(ctx, 1, vector)
//	results, _ := idx.Search(ctx, query, 10)
//
// # Snapshots
//
// With a snapshot store configured, Open restores the latest snapshot and
// the index writes new ones on demand, on an interval, or after a number of
// mutations:
//
//	store, _ := snapshot.NewLocalStore("./snapshots")
//
//	idx, _ := gannet.Open(ctx, func(o *gannet.Options) {
//		o.Index.Dimension = 128
//		o.Snapshot.Store = store
//		o.Snapshot.Compression = snapshot.CompressionZSTD
//		o.Snapshot.Interval = 5 * time.Minute
//		o.Snapshot.Retain = 3
//	})
//	defer idx.Close()
//
//	name, _ := idx.Snapshot(ctx) // explicit snapshot
//
// # Filtered Search
//
// Searches can be restricted to a set of ids with a bitmap filter:
//
//	allow := filter.BitmapOf(3, 17, 42)
//	results, _ := idx.Search(ctx, query, 10, func(o *gannet.SearchOptions) {
//		o.Filter = allow
//	})
//
// # Deletes and Compaction
//
// Delete tombstones a vector: it disappears from results immediately but
// its node keeps routing searches. Compact rebuilds the graph without
// tombstones once enough of them accumulate:
//
//	_ = idx.Delete(ctx, 42)
//	if st := idx.Stats(); st.Deleted > st.LiveNodes/5 {
//		_ = idx.Compact(ctx)
//	}
package gannet
