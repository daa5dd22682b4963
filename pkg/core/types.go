package core

import (
	"time"

	"github.com/oceanbase/finmem-go/pkg/record"
	"github.com/oceanbase/finmem-go/pkg/store"
)

// SearchQuery describes a search across the stores.
//
// Build it with SearchOption values, or pass it to Manager.SearchWithQuery directly.
type SearchQuery struct {
	// Text is matched case-insensitively against the searchable fields of
	// every kind. An empty text matches everything else the query allows.
	Text string `json:"text"`

	// Kinds restricts the search to these kinds (empty means all kinds).
	Kinds []record.Kind `json:"kinds,omitempty"`

	// Start is the inclusive lower time bound (zero means unbounded).
	Start time.Time `json:"start,omitempty"`

	// End is the inclusive upper time bound (zero means unbounded).
	End time.Time `json:"end,omitempty"`

	// Metadata must match the record metadata key by key.
	Metadata record.Metadata `json:"metadata,omitempty"`

	// Limit caps the merged result (0 means no limit).
	Limit int `json:"limit"`

	limitSet bool
}

// allows reports whether the query covers kind.
func (q *SearchQuery) allows(kind record.Kind) bool {
	if len(q.Kinds) == 0 {
		return true
	}
	for _, k := range q.Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

func (q *SearchQuery) storeQuery() *store.SearchQuery {
	return &store.SearchQuery{
		Text:     q.Text,
		Start:    q.Start,
		End:      q.End,
		Metadata: q.Metadata,
		Limit:    q.Limit,
	}
}

// Counters are the manager-level operation counters.
type Counters struct {
	// Stored is the number of successful Store calls.
	Stored int64 `json:"stored"`

	// Deleted is the number of Delete calls that removed a record.
	Deleted int64 `json:"deleted"`

	// Searches is the number of Search calls.
	Searches int64 `json:"searches"`

	// CleanupRuns is the number of cleanup cycles, manual or scheduled.
	CleanupRuns int64 `json:"cleanup_runs"`

	// CleanupFailures is the number of cleanup cycles that returned an error.
	CleanupFailures int64 `json:"cleanup_failures"`

	// LastCleanupAt is when the last cycle finished (zero if none ran).
	LastCleanupAt time.Time `json:"last_cleanup_at,omitempty"`

	// LastCleanupRemoved is the number of records the last cycle removed.
	LastCleanupRemoved int `json:"last_cleanup_removed"`
}

// Stats aggregates the state of every store and the manager counters.
type Stats struct {
	// Stores holds the stats of each store by kind.
	Stores map[record.Kind]store.Stats `json:"stores"`

	// Counters are the manager-level counters.
	Counters Counters `json:"counters"`

	// RetentionRunning reports whether the background cleanup task is running.
	RetentionRunning bool `json:"retention_running"`
}

// TotalCached returns the number of cached records over every store.
func (s *Stats) TotalCached() int {
	n := 0
	for _, st := range s.Stores {
		n += st.CacheCount
	}
	return n
}

// TotalDurable returns the number of durable records over every store.
func (s *Stats) TotalDurable() int {
	n := 0
	for _, st := range s.Stores {
		n += st.DurableCount
	}
	return n
}

// StoreResult is the result of an asynchronous Store.
type StoreResult struct {
	// ID is the id of the stored record.
	ID string

	// Error contains any error that occurred.
	Error error
}

// EntryResult is the result of an asynchronous Get.
type EntryResult struct {
	// Entry is the retrieved entry (nil if not found).
	Entry *record.Entry

	// Found reports whether the record exists.
	Found bool

	// Error contains any error that occurred.
	Error error
}

// SearchResult is the result of an asynchronous Search.
type SearchResult struct {
	// Entries are the ranked matches.
	Entries []*record.Entry

	// Error contains any error that occurred.
	Error error
}

// DeleteResult is the result of an asynchronous Delete.
type DeleteResult struct {
	// Removed reports whether a record was removed (false if it did not exist).
	Removed bool

	// Error contains any error that occurred.
	Error error
}

// CleanupResult is the result of an asynchronous cleanup.
type CleanupResult struct {
	// Removed is the number of removed records.
	Removed int

	// Error contains any error that occurred.
	Error error
}
