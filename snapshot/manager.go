package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/gannet-io/gannet/hnsw"
)

var (
	// ErrSnapshotInFlight is returned when a snapshot is requested while
	// another one is still being written.
	ErrSnapshotInFlight = errors.New("snapshot already in flight")

	// ErrManagerClosed is returned when the manager has been closed.
	ErrManagerClosed = errors.New("snapshot manager closed")
)

// Source returns the graph to snapshot. It is called once per snapshot,
// so a caller that swaps graphs (compaction, restore) can hand out the
// current one.
type Source func() *hnsw.Graph

// ManagerOptions configures a snapshot Manager.
type ManagerOptions struct {
	// Compression is the codec applied to snapshot payloads.
	Compression Compression

	// Interval triggers an automatic snapshot periodically.
	// Zero disables the timer.
	Interval time.Duration

	// OpThreshold triggers an automatic snapshot after this many
	// recorded write operations. Zero disables the trigger.
	OpThreshold int64

	// Retain keeps only the newest N snapshots after each successful
	// snapshot. Zero keeps all.
	Retain int

	// UploadBytesPerSec limits how fast snapshot bytes are handed to
	// the store. Zero means unlimited.
	UploadBytesPerSec int64

	// Logger receives automatic snapshot outcomes.
	// Defaults to a logger that discards everything.
	Logger *slog.Logger
}

// DefaultManagerOptions are the defaults used by NewManager.
var DefaultManagerOptions = ManagerOptions{
	Compression: CompressionNone,
}

// Manager writes snapshots of a graph to a Store, either on demand or
// automatically on a timer or after a number of write operations.
//
// Only one snapshot runs at a time. A second request while one is in
// flight fails fast with ErrSnapshotInFlight instead of queueing.
type Manager struct {
	opts   ManagerOptions
	source Source
	store  Store

	inflight *semaphore.Weighted
	limiter  *rate.Limiter // nil if unlimited

	ops    atomic.Int64
	closed atomic.Bool
	kick   chan struct{}
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewManager creates a snapshot manager for the graph returned by source.
// If automatic triggers are configured, a background goroutine runs until
// Close is called.
func NewManager(source Source, store Store, optFns ...func(o *ManagerOptions)) *Manager {
	opts := DefaultManagerOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.Level(1000), // Unreachable level
		}))
	}

	m := &Manager{
		opts:     opts,
		source:   source,
		store:    store,
		inflight: semaphore.NewWeighted(1),
		kick:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}

	if opts.UploadBytesPerSec > 0 {
		m.limiter = rate.NewLimiter(rate.Limit(opts.UploadBytesPerSec), int(opts.UploadBytesPerSec))
	}

	if opts.Interval > 0 || opts.OpThreshold > 0 {
		m.wg.Add(1)
		go m.loop()
	}

	return m
}

// Snapshot encodes the current graph and writes it to the store.
// Returns the name of the stored snapshot.
func (m *Manager) Snapshot(ctx context.Context) (string, error) {
	if m.closed.Load() {
		return "", ErrManagerClosed
	}
	if !m.inflight.TryAcquire(1) {
		return "", ErrSnapshotInFlight
	}
	defer m.inflight.Release(1)

	g := m.source()
	if g == nil {
		return "", errors.New("snapshot source returned no graph")
	}

	data, err := Encode(g, m.opts.Compression)
	if err != nil {
		return "", err
	}

	if err := m.throttle(ctx, len(data)); err != nil {
		return "", err
	}

	name := Name(time.Now())
	if err := m.store.Put(ctx, name, data); err != nil {
		return "", fmt.Errorf("store snapshot: %w", err)
	}
	m.ops.Store(0)

	if err := m.prune(ctx); err != nil {
		m.opts.Logger.Warn("snapshot retention cleanup failed", "error", err)
	}

	return name, nil
}

// Restore loads and decodes the newest snapshot in the store.
// Returns the graph and the name it was restored from.
func (m *Manager) Restore(ctx context.Context) (*hnsw.Graph, string, error) {
	name, err := Latest(ctx, m.store)
	if err != nil {
		return nil, "", err
	}

	data, err := m.store.Get(ctx, name)
	if err != nil {
		return nil, "", err
	}

	g, err := Decode(data)
	if err != nil {
		return nil, "", fmt.Errorf("decode snapshot %s: %w", name, err)
	}
	return g, name, nil
}

// RecordOps adds n to the write-operation counter. When the counter
// reaches OpThreshold an automatic snapshot is scheduled. The counter
// resets after each successful snapshot.
func (m *Manager) RecordOps(n int64) {
	if n <= 0 || m.opts.OpThreshold <= 0 || m.closed.Load() {
		return
	}
	if m.ops.Add(n) >= m.opts.OpThreshold {
		select {
		case m.kick <- struct{}{}:
		default:
		}
	}
}

// Close stops the automatic snapshot goroutine. It waits for an
// in-flight automatic snapshot to finish. Safe to call more than once.
func (m *Manager) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(m.done)
	m.wg.Wait()
	return nil
}

func (m *Manager) loop() {
	defer m.wg.Done()

	var tick <-chan time.Time
	if m.opts.Interval > 0 {
		t := time.NewTicker(m.opts.Interval)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case <-m.done:
			return
		case <-tick:
		case <-m.kick:
		}

		name, err := m.Snapshot(context.Background())
		switch {
		case err == nil:
			m.opts.Logger.Debug("snapshot written", "name", name)
		case errors.Is(err, ErrSnapshotInFlight) || errors.Is(err, ErrManagerClosed):
			// Another trigger already won the race
		default:
			m.opts.Logger.Error("automatic snapshot failed", "error", err)
		}
	}
}

// throttle waits for upload quota in limiter-burst sized chunks so a
// snapshot larger than one second of quota still goes through.
func (m *Manager) throttle(ctx context.Context, n int) error {
	if m.limiter == nil {
		return nil
	}
	burst := m.limiter.Burst()
	for n > 0 {
		chunk := min(n, burst)
		if err := m.limiter.WaitN(ctx, chunk); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}

// prune deletes all but the newest Retain snapshots.
func (m *Manager) prune(ctx context.Context) error {
	if m.opts.Retain <= 0 {
		return nil
	}

	names, err := m.store.List(ctx)
	if err != nil {
		return err
	}

	var snaps []string
	for _, name := range names {
		if IsSnapshotName(name) {
			snaps = append(snaps, name)
		}
	}
	sort.Strings(snaps)

	if len(snaps) <= m.opts.Retain {
		return nil
	}
	for _, name := range snaps[:len(snaps)-m.opts.Retain] {
		if err := m.store.Delete(ctx, name); err != nil {
			return err
		}
	}
	return nil
}
