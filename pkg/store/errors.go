package store

import (
	"errors"
	"fmt"

	"github.com/oceanbase/finmem-go/pkg/record"
)

var (
	// ErrPersistence indicates a durable store I/O failure.
	ErrPersistence = errors.New("persistence failure")

	// ErrCacheFull indicates that a cache-only store has no room for a new record.
	ErrCacheFull = errors.New("cache full and persistence disabled")

	// ErrInvalidWindow indicates a non-positive retention window.
	ErrInvalidWindow = errors.New("retention window must be positive")

	// ErrInvalidOptions indicates invalid store options.
	ErrInvalidOptions = errors.New("invalid store options")
)

// Error wraps a store failure with the record kind and operation.
type Error struct {
	Kind record.Kind
	Op   string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s store: %s: %v", e.Kind, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind record.Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// persistenceError wraps a backend failure so it matches ErrPersistence.
func persistenceError(kind record.Kind, op string, err error) *Error {
	return newError(kind, op, fmt.Errorf("%w: %w", ErrPersistence, err))
}
