package gannet

import (
	"time"

	"github.com/gannet-io/gannet/hnsw"
	"github.com/gannet-io/gannet/snapshot"
)

// SnapshotOptions configures the snapshot manager attached to an Index. The
// zero value disables snapshots entirely.
type SnapshotOptions struct {
	// Store is the backend snapshots are written to and restored from.
	// Nil disables snapshot support.
	Store snapshot.Store

	// Compression selects the payload codec for written snapshots.
	Compression snapshot.Compression

	// Interval triggers an automatic snapshot at the given cadence. Zero
	// disables interval snapshots.
	Interval time.Duration

	// OpThreshold triggers an automatic snapshot after the given number
	// of successful mutations. Zero disables threshold snapshots.
	OpThreshold int64

	// Retain bounds how many snapshots are kept in the store; older ones
	// are pruned after each successful write. Zero keeps everything.
	Retain int

	// UploadBytesPerSec throttles snapshot uploads. Zero means unlimited.
	UploadBytesPerSec int64
}

// Options configures an Index.
type Options struct {
	// Index holds the graph construction parameters.
	Index hnsw.Options

	// Snapshot configures durability.
	Snapshot SnapshotOptions

	// Logger receives structured operation logs. Nil disables logging.
	Logger *Logger

	// Metrics receives operation timings. Nil disables metrics.
	Metrics MetricsCollector
}

// DefaultOptions holds the default configuration.
var DefaultOptions = Options{
	Index: hnsw.DefaultOptions,
}

// WithLogger sets the logger operations report to.
func WithLogger(l *Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

// WithMetricsCollector sets the collector operation timings are recorded to.
func WithMetricsCollector(mc MetricsCollector) func(o *Options) {
	return func(o *Options) { o.Metrics = mc }
}

// WithSnapshotStore enables snapshot support against the given store.
func WithSnapshotStore(s snapshot.Store) func(o *Options) {
	return func(o *Options) { o.Snapshot.Store = s }
}

// WithSnapshotCodec sets the compression codec for written snapshots.
func WithSnapshotCodec(c snapshot.Compression) func(o *Options) {
	return func(o *Options) { o.Snapshot.Compression = c }
}

// WithAutoSnapshot enables automatic snapshots on a fixed interval, after a
// number of successful mutations, or both. Zero disables a trigger.
func WithAutoSnapshot(interval time.Duration, opThreshold int64) func(o *Options) {
	return func(o *Options) {
		o.Snapshot.Interval = interval
		o.Snapshot.OpThreshold = opThreshold
	}
}
