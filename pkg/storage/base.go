// Package storage provides interfaces and types for durable record storage backends.
//
// It defines the Backend interface that every persistence implementation must
// satisfy (one Backend per record kind, usually one table), and the Provider
// interface that opens backends on a shared connection.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates that a row does not exist in the backend.
var ErrNotFound = errors.New("row not found")

// Row is the persisted form of a record.
//
// Symbol and Action are denormalised from the payload so the backend can
// range-scan on them without decoding.
type Row struct {
	// ID is the unique identifier of the record.
	ID string

	// Symbol is the primary indexed field (ticker, or conversation topic).
	Symbol string

	// Action is the secondary indexed field (decision action, empty otherwise).
	Action string

	// Timestamp is the record timestamp used for ordering and retention.
	Timestamp time.Time

	// Payload is the JSON encoded record.
	Payload []byte
}

// ScanOptions contains options for range scans.
type ScanOptions struct {
	// Symbol restricts results to rows with this symbol.
	Symbol string

	// Action restricts results to rows with this action.
	Action string

	// Start is the inclusive lower time bound (zero means unbounded).
	Start time.Time

	// End is the inclusive upper time bound (zero means unbounded).
	End time.Time

	// Limit sets the maximum number of rows to return (0 means no limit).
	Limit int
}

// Backend defines the interface for durable per-kind storage.
//
// All implementations (SQLite, PostgreSQL, OceanBase, and the no-op backend
// used when persistence is disabled) must implement this interface.
type Backend interface {
	// Get retrieves a row by id. Returns ErrNotFound when absent.
	Get(ctx context.Context, id string) (*Row, error)

	// Upsert inserts the row or replaces an existing row with the same id.
	Upsert(ctx context.Context, row *Row) error

	// Delete removes a row by id and reports whether a row was removed.
	Delete(ctx context.Context, id string) (bool, error)

	// Scan returns rows matching opts ordered by timestamp, newest first.
	Scan(ctx context.Context, opts *ScanOptions) ([]*Row, error)

	// DeleteBefore removes every row with a timestamp strictly before cutoff
	// and returns the removed ids.
	DeleteBefore(ctx context.Context, cutoff time.Time) ([]string, error)

	// Count returns the number of stored rows.
	Count(ctx context.Context) (int, error)
}

// Provider opens per-kind backends on a shared connection.
type Provider interface {
	// Backend returns the backend stored under the given table name,
	// creating the table if needed.
	Backend(ctx context.Context, table string) (Backend, error)

	// Durable reports whether backends persist beyond the process.
	Durable() bool

	// Close closes the provider and releases resources.
	Close() error
}
