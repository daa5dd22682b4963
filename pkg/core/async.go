package core

import (
	"context"
	"sync"

	"github.com/oceanbase/finmem-go/pkg/record"
)

// AsyncManager provides asynchronous memory operations.
//
// It wraps the synchronous Manager and executes each operation in its own
// goroutine, so an agent pipeline can record observations and decisions
// without waiting on the durable store.
//
// All async methods return channels that receive exactly one result and are
// then closed. The manager tracks its goroutines; Wait blocks until they
// have all finished.
//
// Example:
//
//	async, _ := core.NewAsyncManager(ctx, config)
//	defer async.Close()
//
//	res := <-async.StoreAsync(ctx, &record.MarketObservation{Symbol: "AAPL", Price: 187.2})
//	if res.Error != nil {
//	    log.Fatal(res.Error)
//	}
type AsyncManager struct {
	*Manager
	wg sync.WaitGroup
}

// NewAsyncManager creates a new asynchronous manager.
//
// Parameters:
//   - ctx: Context for the initial connection and index rebuild
//   - cfg: Manager configuration
//   - opts: Optional manager settings
//
// Returns:
//   - *AsyncManager: The asynchronous manager instance
//   - error: Error if configuration is invalid or initialization fails
func NewAsyncManager(ctx context.Context, cfg *Config, opts ...Option) (*AsyncManager, error) {
	manager, err := NewManager(ctx, cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &AsyncManager{Manager: manager}, nil
}

// StoreAsync stores a record asynchronously.
//
// Parameters:
//   - ctx: Context for controlling request lifecycle
//   - rec: Record to store
//
// Returns:
//   - <-chan *StoreResult: Channel that receives the record id and error
func (am *AsyncManager) StoreAsync(ctx context.Context, rec record.Record) <-chan *StoreResult {
	resultChan := make(chan *StoreResult, 1)
	am.wg.Add(1)

	go func() {
		defer am.wg.Done()
		id, err := am.Store(ctx, rec)
		resultChan <- &StoreResult{ID: id, Error: err}
		close(resultChan)
	}()

	return resultChan
}

// GetAsync retrieves a record asynchronously.
//
// Returns:
//   - <-chan *EntryResult: Channel that receives the entry, whether it was found, and error
func (am *AsyncManager) GetAsync(ctx context.Context, kind record.Kind, id string) <-chan *EntryResult {
	resultChan := make(chan *EntryResult, 1)
	am.wg.Add(1)

	go func() {
		defer am.wg.Done()
		entry, found, err := am.Get(ctx, kind, id)
		resultChan <- &EntryResult{Entry: entry, Found: found, Error: err}
		close(resultChan)
	}()

	return resultChan
}

// SearchAsync searches asynchronously.
//
// Parameters:
//   - ctx: Context for controlling request lifecycle
//   - text: Search text
//   - opts: Optional search options (Kinds, TimeRange, MetadataFilter, Limit)
//
// Returns:
//   - <-chan *SearchResult: Channel that receives the ranked entries and error
func (am *AsyncManager) SearchAsync(ctx context.Context, text string, opts ...SearchOption) <-chan *SearchResult {
	resultChan := make(chan *SearchResult, 1)
	am.wg.Add(1)

	go func() {
		defer am.wg.Done()
		entries, err := am.Search(ctx, text, opts...)
		resultChan <- &SearchResult{Entries: entries, Error: err}
		close(resultChan)
	}()

	return resultChan
}

// DeleteAsync deletes a record asynchronously.
//
// Returns:
//   - <-chan *DeleteResult: Channel that receives whether a record was
//     removed and error
func (am *AsyncManager) DeleteAsync(ctx context.Context, kind record.Kind, id string) <-chan *DeleteResult {
	resultChan := make(chan *DeleteResult, 1)
	am.wg.Add(1)

	go func() {
		defer am.wg.Done()
		removed, err := am.Delete(ctx, kind, id)
		resultChan <- &DeleteResult{Removed: removed, Error: err}
		close(resultChan)
	}()

	return resultChan
}

// CleanupAsync runs CleanupExpired asynchronously.
//
// Returns:
//   - <-chan *CleanupResult: Channel that receives the removed count and error
func (am *AsyncManager) CleanupAsync(ctx context.Context) <-chan *CleanupResult {
	resultChan := make(chan *CleanupResult, 1)
	am.wg.Add(1)

	go func() {
		defer am.wg.Done()
		removed, err := am.CleanupExpired(ctx)
		resultChan <- &CleanupResult{Removed: removed, Error: err}
		close(resultChan)
	}()

	return resultChan
}

// Wait waits for all asynchronous operations to complete.
//
// This method blocks until all goroutines started by async methods have finished.
// It should be called before program exit to ensure all operations complete.
func (am *AsyncManager) Wait() {
	am.wg.Wait()
}

// Close waits for all asynchronous operations to complete, then closes the
// underlying manager.
func (am *AsyncManager) Close() error {
	am.Wait()
	return am.Manager.Close()
}
