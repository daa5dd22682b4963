package store

import (
	"time"

	"github.com/oceanbase/finmem-go/pkg/record"
)

// Filter selects records for Query.
type Filter struct {
	// Symbol restricts results to one symbol (or conversation topic).
	Symbol string

	// Action restricts decisions to one action label.
	Action string

	// Start is the inclusive lower time bound (zero means unbounded).
	Start time.Time

	// End is the inclusive upper time bound (zero means unbounded).
	End time.Time

	// Limit caps the number of results (0 means no limit).
	Limit int
}

func (f *Filter) inRange(ts time.Time) bool {
	if !f.Start.IsZero() && ts.Before(f.Start) {
		return false
	}
	if !f.End.IsZero() && ts.After(f.End) {
		return false
	}
	return true
}

// SearchQuery describes a free-text search.
type SearchQuery struct {
	// Text is matched case-insensitively against searchable fields.
	// An empty text matches every record passing the other filters.
	Text string

	// Start is the inclusive lower time bound (zero means unbounded).
	Start time.Time

	// End is the inclusive upper time bound (zero means unbounded).
	End time.Time

	// Metadata must match the record metadata key by key.
	Metadata record.Metadata

	// Limit caps the number of results (0 means no limit).
	Limit int
}

// Result is a typed search match.
type Result[T record.Record] struct {
	Record T
	Score  float64
}

// Hit is an untyped search match, used when merging across kinds.
type Hit struct {
	Record record.Record
	Score  float64
}

// Stats reports the state of one store.
type Stats struct {
	Kind         record.Kind `json:"kind"`
	CacheCount   int         `json:"cache_count"`
	DurableCount int         `json:"durable_count"`
	CacheLimit   int         `json:"cache_limit"`
	IndexedIDs   int         `json:"indexed_ids"`
	IndexKeys    int         `json:"index_keys"`
	Durable      bool        `json:"durable"`
}
