package hnsw

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyIndex is returned by searches against a graph with no live
	// vectors.
	ErrEmptyIndex = errors.New("empty index")

	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("k must be positive")

	// ErrNotPersistable is returned by Save when the graph uses a custom
	// distance function, which cannot be serialized.
	ErrNotPersistable = errors.New("graph with custom distance function cannot be persisted")
)

// ErrDuplicateID indicates an insert under an id that is already stored.
type ErrDuplicateID struct {
	ID ID
}

func (e *ErrDuplicateID) Error() string {
	return fmt.Sprintf("duplicate id: %d", e.ID)
}

// ErrUnknownID indicates an operation on an id that is absent or deleted.
type ErrUnknownID struct {
	ID ID
}

func (e *ErrUnknownID) Error() string {
	return fmt.Sprintf("unknown id: %d", e.ID)
}

// ErrDimensionMismatch indicates a vector/query dimensionality mismatch.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// ErrInvalidConfiguration indicates a rejected Options value.
type ErrInvalidConfiguration struct {
	Param  string
	Value  any
	Reason string
}

func (e *ErrInvalidConfiguration) Error() string {
	return fmt.Sprintf("invalid configuration: %s = %v: %s", e.Param, e.Value, e.Reason)
}
