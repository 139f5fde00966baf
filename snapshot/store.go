package snapshot

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned when a requested snapshot does not exist.
var ErrNotFound = errors.New("snapshot not found")

// Store is a backend that holds encoded snapshot envelopes by name.
//
// Implementations must be safe for concurrent use. Put must be atomic:
// a reader never observes a partially written snapshot.
type Store interface {
	// Put writes a snapshot. An existing snapshot with the same name is
	// replaced.
	Put(ctx context.Context, name string, data []byte) error

	// Get reads a snapshot. Returns ErrNotFound if it does not exist.
	Get(ctx context.Context, name string) ([]byte, error)

	// List returns all stored object names in ascending order.
	List(ctx context.Context) ([]string, error)

	// Delete removes a snapshot. Deleting a missing snapshot is not an
	// error.
	Delete(ctx context.Context, name string) error
}

// Latester is implemented by stores that resolve the newest snapshot
// without listing, such as a catalog-backed store.
type Latester interface {
	Latest(ctx context.Context) (string, error)
}

// Ext is the filename extension for snapshot objects.
const Ext = ".snap"

// nameFormat orders lexicographically by creation time.
const nameFormat = "20060102T150405.000000000"

// Name returns the snapshot object name for the given creation time.
// Names sort lexicographically in chronological order.
func Name(t time.Time) string {
	return t.UTC().Format(nameFormat) + Ext
}

// IsSnapshotName reports whether name looks like a snapshot object name.
func IsSnapshotName(name string) bool {
	return strings.HasSuffix(name, Ext)
}

// Latest returns the name of the newest snapshot in the store.
// Returns ErrNotFound when the store holds no snapshots.
func Latest(ctx context.Context, s Store) (string, error) {
	if l, ok := s.(Latester); ok {
		return l.Latest(ctx)
	}

	names, err := s.List(ctx)
	if err != nil {
		return "", err
	}

	latest := ""
	for _, name := range names {
		if IsSnapshotName(name) && name > latest {
			latest = name
		}
	}
	if latest == "" {
		return "", ErrNotFound
	}
	return latest, nil
}
