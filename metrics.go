package gannet

import (
	"sync/atomic"
	"time"
)

// MetricsCollector receives timing and outcome signals for index operations.
// Implementations must be safe for concurrent use.
type MetricsCollector interface {
	// RecordInsert records a single insert operation.
	RecordInsert(duration time.Duration, err error)

	// RecordBatchInsert records a batch insert operation.
	RecordBatchInsert(count, failed int, duration time.Duration)

	// RecordSearch records a search operation.
	RecordSearch(k int, duration time.Duration, err error)

	// RecordDelete records a delete operation.
	RecordDelete(duration time.Duration, err error)

	// RecordCompact records a compaction.
	RecordCompact(duration time.Duration, err error)

	// RecordSnapshot records a snapshot write.
	RecordSnapshot(duration time.Duration, err error)
}

// NoopMetricsCollector discards all metrics. It is the default collector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordInsert(duration time.Duration, err error)              {}
func (NoopMetricsCollector) RecordBatchInsert(count, failed int, duration time.Duration) {}
func (NoopMetricsCollector) RecordSearch(k int, duration time.Duration, err error)       {}
func (NoopMetricsCollector) RecordDelete(duration time.Duration, err error)              {}
func (NoopMetricsCollector) RecordCompact(duration time.Duration, err error)             {}
func (NoopMetricsCollector) RecordSnapshot(duration time.Duration, err error)            {}

// BasicMetricsCollector counts operations, errors, and cumulative latencies
// with atomic counters. All methods are safe for concurrent use.
type BasicMetricsCollector struct {
	insertCount    atomic.Int64
	insertErrors   atomic.Int64
	insertNanos    atomic.Int64
	batchCount     atomic.Int64
	batchItems     atomic.Int64
	batchFailed    atomic.Int64
	searchCount    atomic.Int64
	searchErrors   atomic.Int64
	searchNanos    atomic.Int64
	deleteCount    atomic.Int64
	deleteErrors   atomic.Int64
	compactCount   atomic.Int64
	compactErrors  atomic.Int64
	snapshotCount  atomic.Int64
	snapshotErrors atomic.Int64
}

// RecordInsert implements MetricsCollector.
func (m *BasicMetricsCollector) RecordInsert(duration time.Duration, err error) {
	m.insertCount.Add(1)
	m.insertNanos.Add(int64(duration))
	if err != nil {
		m.insertErrors.Add(1)
	}
}

// RecordBatchInsert implements MetricsCollector.
func (m *BasicMetricsCollector) RecordBatchInsert(count, failed int, duration time.Duration) {
	m.batchCount.Add(1)
	m.batchItems.Add(int64(count))
	m.batchFailed.Add(int64(failed))
}

// RecordSearch implements MetricsCollector.
func (m *BasicMetricsCollector) RecordSearch(k int, duration time.Duration, err error) {
	m.searchCount.Add(1)
	m.searchNanos.Add(int64(duration))
	if err != nil {
		m.searchErrors.Add(1)
	}
}

// RecordDelete implements MetricsCollector.
func (m *BasicMetricsCollector) RecordDelete(duration time.Duration, err error) {
	m.deleteCount.Add(1)
	if err != nil {
		m.deleteErrors.Add(1)
	}
}

// RecordCompact implements MetricsCollector.
func (m *BasicMetricsCollector) RecordCompact(duration time.Duration, err error) {
	m.compactCount.Add(1)
	if err != nil {
		m.compactErrors.Add(1)
	}
}

// RecordSnapshot implements MetricsCollector.
func (m *BasicMetricsCollector) RecordSnapshot(duration time.Duration, err error) {
	m.snapshotCount.Add(1)
	if err != nil {
		m.snapshotErrors.Add(1)
	}
}

// BasicMetricsStats is a point-in-time copy of the collected metrics.
type BasicMetricsStats struct {
	InsertCount      int64
	InsertErrors     int64
	BatchInsertCount int64
	BatchInsertItems int64
	BatchInsertFails int64
	SearchCount      int64
	SearchErrors     int64
	DeleteCount      int64
	DeleteErrors     int64
	CompactCount     int64
	CompactErrors    int64
	SnapshotCount    int64
	SnapshotErrors   int64

	AvgInsertTime time.Duration
	AvgSearchTime time.Duration
}

// GetStats returns a snapshot of the collected metrics.
func (m *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		InsertCount:      m.insertCount.Load(),
		InsertErrors:     m.insertErrors.Load(),
		BatchInsertCount: m.batchCount.Load(),
		BatchInsertItems: m.batchItems.Load(),
		BatchInsertFails: m.batchFailed.Load(),
		SearchCount:      m.searchCount.Load(),
		SearchErrors:     m.searchErrors.Load(),
		DeleteCount:      m.deleteCount.Load(),
		DeleteErrors:     m.deleteErrors.Load(),
		CompactCount:     m.compactCount.Load(),
		CompactErrors:    m.compactErrors.Load(),
		SnapshotCount:    m.snapshotCount.Load(),
		SnapshotErrors:   m.snapshotErrors.Load(),
		AvgInsertTime:    time.Duration(m.avgNanos(&m.insertNanos, &m.insertCount)),
		AvgSearchTime:    time.Duration(m.avgNanos(&m.searchNanos, &m.searchCount)),
	}
}

func (m *BasicMetricsCollector) avgNanos(total, count *atomic.Int64) int64 {
	n := count.Load()
	if n == 0 {
		return 0
	}
	return total.Load() / n
}
