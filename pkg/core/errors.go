// Package core provides the memory manager that coordinates the record stores.
package core

import (
	"errors"
	"fmt"

	"github.com/oceanbase/finmem-go/pkg/record"
	"github.com/oceanbase/finmem-go/pkg/store"
)

// Predefined errors for common failure scenarios.
var (
	// ErrInvalidConfig indicates that the provided configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrUnknownKind indicates that a record kind has no store.
	ErrUnknownKind = errors.New("unknown record kind")

	// ErrManagerStopped indicates that the manager has been closed.
	ErrManagerStopped = errors.New("manager closed")

	// ErrPersistence indicates that the durable store failed.
	// Callers can match it with errors.Is on any manager error.
	ErrPersistence = store.ErrPersistence

	// ErrInvalidRecord indicates that a record failed validation.
	ErrInvalidRecord = record.ErrInvalidRecord
)

// MemoryError wraps errors with operation context.
//
// It provides additional context about which operation failed,
// making error messages more informative for debugging.
//
// Example:
//
//	err := &MemoryError{
//	    Op:  "Store",
//	    Err: ErrUnknownKind,
//	}
//	// Error() returns: "finmem: Store: unknown record kind"
type MemoryError struct {
	// Op is the name of the operation that failed.
	Op string

	// Err is the underlying error.
	Err error
}

// Error returns a formatted error message.
//
// The format is: "finmem: <Op>: <Err>"
func (e *MemoryError) Error() string {
	return fmt.Sprintf("finmem: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
//
// This allows using errors.Is() and errors.As() with MemoryError.
func (e *MemoryError) Unwrap() error {
	return e.Err
}

// NewMemoryError creates a new MemoryError wrapping the given error.
//
// If err is nil, returns nil. This allows safe error wrapping:
//
//	if err != nil {
//	    return NewMemoryError("Store", err)
//	}
//
// Parameters:
//   - op: Name of the operation (e.g., "Store", "Search", "CleanupExpired")
//   - err: The underlying error to wrap
//
// Returns a MemoryError, or nil if err is nil.
func NewMemoryError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &MemoryError{
		Op:  op,
		Err: err,
	}
}

func invalidConfig(format string, args ...interface{}) error {
	return NewMemoryError("Validate", fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...)))
}
