package core

import (
	"context"

	"github.com/oceanbase/finmem-go/pkg/record"
)

// DefaultStreamLimit caps a streaming search without an explicit limit.
const DefaultStreamLimit = 1000

// StreamingSearchResult contains a batch of search results from streaming search.
type StreamingSearchResult struct {
	// Entries is a batch of matching entries.
	Entries []*record.Entry

	// BatchIndex is the index of this batch (0-based).
	BatchIndex int

	// IsLastBatch indicates whether this is the last batch.
	IsLastBatch bool

	// Error contains any error that occurred during streaming (if any).
	Error error
}

// SearchStream performs a search and delivers the merged results in batches.
//
// The search runs once; its ranked results are then sent batchSize at a
// time. Without WithLimit the stream is capped at DefaultStreamLimit
// results. An empty result produces a single empty last batch.
//
// Parameters:
//   - ctx: Context for cancellation
//   - text: Search text
//   - batchSize: Number of entries per batch (values below 1 mean 1)
//   - opts: Optional search parameters (Kinds, TimeRange, MetadataFilter, Limit)
//
// Returns a channel that receives StreamingSearchResult batches.
// The channel is closed when all results have been sent, an error occurs,
// or ctx is cancelled.
//
// Example:
//
//	for batch := range manager.SearchStream(ctx, "AAPL", 50) {
//	    if batch.Error != nil {
//	        log.Fatal(batch.Error)
//	    }
//	    for _, entry := range batch.Entries {
//	        process(entry)
//	    }
//	}
func (m *Manager) SearchStream(ctx context.Context, text string, batchSize int, opts ...SearchOption) <-chan *StreamingSearchResult {
	resultChan := make(chan *StreamingSearchResult, 1)
	if batchSize < 1 {
		batchSize = 1
	}

	q := applySearchOptions(text, opts)
	if !q.limitSet {
		q.Limit = DefaultStreamLimit
	}

	go func() {
		defer close(resultChan)

		send := func(r *StreamingSearchResult) bool {
			select {
			case resultChan <- r:
				return true
			case <-ctx.Done():
				return false
			}
		}

		entries, err := m.SearchWithQuery(ctx, q)
		if err != nil {
			send(&StreamingSearchResult{Error: err})
			return
		}
		if len(entries) == 0 {
			send(&StreamingSearchResult{IsLastBatch: true})
			return
		}

		batchIndex := 0
		for i := 0; i < len(entries); i += batchSize {
			if ctx.Err() != nil {
				send(&StreamingSearchResult{BatchIndex: batchIndex, Error: ctx.Err()})
				return
			}

			end := min(i+batchSize, len(entries))
			if !send(&StreamingSearchResult{
				Entries:     entries[i:end],
				BatchIndex:  batchIndex,
				IsLastBatch: end >= len(entries),
			}) {
				return
			}
			batchIndex++
		}
	}()

	return resultChan
}
