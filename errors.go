package gannet

import (
	"errors"
	"fmt"

	"github.com/gannet-io/gannet/hnsw"
)

var (
	// ErrNotFound is returned when the requested id is not in the index.
	ErrNotFound = errors.New("not found")

	// ErrNoSnapshotStore is returned by snapshot operations on an index
	// that was created without a snapshot store.
	ErrNoSnapshotStore = errors.New("no snapshot store configured")
)

// translateError maps graph-level errors onto the package's sentinels so
// callers can use errors.Is without importing the hnsw package. The original
// error stays in the chain.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	var unknownID *hnsw.ErrUnknownID
	if errors.As(err, &unknownID) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	return err
}
