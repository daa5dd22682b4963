// Package store implements the per-kind record stores.
//
// Each store owns a fixed-capacity cache, a durable backend and secondary
// indices for one record kind. The three stores share one engine; they only
// differ in how their records are keyed, indexed and scored.
//
// Locking: writers (Store, Delete, UpdateOutcome, AppendMessage, CleanupExpired)
// are serialized by a per-store write mutex. The cache and indices are guarded
// by a separate RWMutex that is never held across durable I/O, so readers keep
// running while a writer waits on the backend. A writer always finishes its
// durable operation before touching the cache or indices, and aborts without
// touching them if the backend fails.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oceanbase/finmem-go/pkg/idgen"
	"github.com/oceanbase/finmem-go/pkg/record"
	"github.com/oceanbase/finmem-go/pkg/storage"
)

// DefaultCacheLimit is the cache capacity used when none is configured.
const DefaultCacheLimit = 1000

// Options configures a store.
type Options struct {
	// CacheLimit is the cache capacity (0 means DefaultCacheLimit).
	CacheLimit int

	// Logger receives store events (default slog.Default()).
	Logger *slog.Logger

	// IDs generates ids for records stored without one (default snowflake node 1).
	IDs idgen.Generator

	// Weights overrides the relevance scoring constants.
	Weights *Weights

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// KindStore is the kind-agnostic view of a store used by the manager.
type KindStore interface {
	Kind() record.Kind
	StoreRecord(ctx context.Context, rec record.Record) (string, error)
	GetRecord(ctx context.Context, id string) (record.Record, bool, error)
	Delete(ctx context.Context, id string) (bool, error)
	SearchRecords(ctx context.Context, q *SearchQuery) ([]Hit, error)
	CleanupExpired(ctx context.Context, window time.Duration) (int, error)
	Stats(ctx context.Context) (Stats, error)
	Access(id string) (int, time.Time)
}

// adapter supplies the kind specific behaviour of a store.
type adapter[T record.Record] struct {
	kind  record.Kind
	table string

	isNil    func(T) bool
	setID    func(T, string)
	prepare  func(T, time.Time)
	validate func(T) error
	clone    func(T) T
	alloc    func() T

	// fields returns the denormalised (symbol, action) columns.
	fields func(T) (string, string)

	// normKey normalises a filter symbol the way fields does.
	normKey func(string) string

	// primaryKey builds the index key for a normalised symbol.
	primaryKey func(string) string

	// indexKeys returns every index key of a record.
	indexKeys func(T) []string

	// score returns the text score of a record for a lowered term.
	score func(*Weights, T, string) (float64, bool)

	// bonus returns a kind specific score bonus; may be nil.
	bonus func(*Weights, T) float64
}

type accessStat struct {
	count int
	last  time.Time
}

// base is the engine shared by the three stores.
type base[T record.Record] struct {
	ad      adapter[T]
	backend storage.Backend
	durable bool
	logger  *slog.Logger
	ids     idgen.Generator
	weights Weights
	now     func() time.Time

	// writeMu serializes writers.
	writeMu sync.Mutex

	// mu guards cache, index and version.
	mu      sync.RWMutex
	cache   *cache[T]
	index   *index
	version uint64

	accessMu sync.Mutex
	access   map[string]accessStat
}

func newBase[T record.Record](ctx context.Context, provider storage.Provider, ad adapter[T], opts *Options) (*base[T], error) {
	if opts == nil {
		opts = &Options{}
	}
	if provider == nil {
		provider = storage.NopProvider{}
	}

	limit := opts.CacheLimit
	if limit == 0 {
		limit = DefaultCacheLimit
	}
	if limit < 0 {
		return nil, newError(ad.kind, "New", fmt.Errorf("%w: cache limit %d", ErrInvalidOptions, limit))
	}

	ids := opts.IDs
	if ids == nil {
		sf, err := idgen.NewSnowflake(1)
		if err != nil {
			return nil, newError(ad.kind, "New", err)
		}
		ids = sf
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	weights := DefaultWeights()
	if opts.Weights != nil {
		weights = *opts.Weights
	}

	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	backend, err := provider.Backend(ctx, ad.table)
	if err != nil {
		return nil, persistenceError(ad.kind, "New", err)
	}

	b := &base[T]{
		ad:      ad,
		backend: backend,
		durable: provider.Durable(),
		logger:  logger.With("kind", string(ad.kind)),
		ids:     ids,
		weights: weights,
		now:     now,
		cache:   newCache[T](limit),
		index:   newIndex(),
		access:  make(map[string]accessStat),
	}

	if err := b.warm(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

// warm rebuilds the secondary indices from the durable store.
func (b *base[T]) warm(ctx context.Context) error {
	if !b.durable {
		return nil
	}
	rows, err := b.backend.Scan(ctx, nil)
	if err != nil {
		return persistenceError(b.ad.kind, "warm", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, row := range rows {
		rec, err := b.decode(row)
		if err != nil {
			b.logger.Warn("skipping undecodable row", "op", "warm", "id", row.ID, "err", err)
			continue
		}
		b.index.set(row.ID, b.ad.indexKeys(rec))
	}
	if len(rows) > 0 {
		b.logger.Debug("indices rebuilt", "count", b.index.size())
	}
	return nil
}

// Kind returns the record kind held by the store.
func (b *base[T]) Kind() record.Kind { return b.ad.kind }

// Durable reports whether the store has a durable backend.
func (b *base[T]) Durable() bool { return b.durable }

func (b *base[T]) encode(rec T) (*storage.Row, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	symbol, action := b.ad.fields(rec)
	return &storage.Row{
		ID:        rec.RecordID(),
		Symbol:    symbol,
		Action:    action,
		Timestamp: rec.RecordTime(),
		Payload:   payload,
	}, nil
}

func (b *base[T]) decode(row *storage.Row) (T, error) {
	rec := b.ad.alloc()
	if err := json.Unmarshal(row.Payload, rec); err != nil {
		var zero T
		return zero, fmt.Errorf("decode %s: %w", row.ID, err)
	}
	return rec, nil
}

// Store inserts or replaces a record and returns its id.
//
// Records without an id get a generated one. The durable write happens first;
// when it fails the cache and indices are left untouched.
func (b *base[T]) Store(ctx context.Context, rec T) (string, error) {
	if b.ad.isNil(rec) {
		return "", newError(b.ad.kind, "Store", fmt.Errorf("%w: nil record", record.ErrInvalidRecord))
	}

	rec = b.ad.clone(rec)
	if rec.RecordID() == "" {
		b.ad.setID(rec, b.ids.NewID())
	}
	b.ad.prepare(rec, b.now())
	if err := b.ad.validate(rec); err != nil {
		return "", newError(b.ad.kind, "Store", err)
	}

	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	if err := b.persist(ctx, "Store", rec); err != nil {
		return "", err
	}
	b.commit(rec)
	return rec.RecordID(), nil
}

// persist writes rec to the backend. Must be called with writeMu held.
func (b *base[T]) persist(ctx context.Context, op string, rec T) error {
	id := rec.RecordID()
	if !b.durable {
		b.mu.RLock()
		full := !b.cache.has(id) && b.cache.full()
		b.mu.RUnlock()
		if full {
			return newError(b.ad.kind, op, ErrCacheFull)
		}
		return nil
	}

	row, err := b.encode(rec)
	if err != nil {
		return newError(b.ad.kind, op, err)
	}
	if err := b.backend.Upsert(ctx, row); err != nil {
		return persistenceError(b.ad.kind, op, err)
	}
	return nil
}

// commit publishes rec to the cache and indices. Must be called with writeMu held.
func (b *base[T]) commit(rec T) {
	id := rec.RecordID()

	b.mu.Lock()
	defer b.mu.Unlock()

	b.cache.put(id, rec)
	b.index.set(id, b.ad.indexKeys(rec))
	b.version++
}

// Get returns the record with the given id.
//
// A cache miss falls through to the durable store and re-populates the cache
// when capacity allows. found is false when neither holds the id.
func (b *base[T]) Get(ctx context.Context, id string) (rec T, found bool, err error) {
	rec, found, err = b.load(ctx, id)
	if err != nil || !found {
		return rec, found, err
	}
	b.touch(id)
	return b.ad.clone(rec), true, nil
}

// load returns the shared (uncloned) record for id.
func (b *base[T]) load(ctx context.Context, id string) (T, bool, error) {
	var zero T

	b.mu.RLock()
	rec, ok := b.cache.get(id)
	version := b.version
	b.mu.RUnlock()

	if ok {
		return rec, true, nil
	}
	if !b.durable {
		return zero, false, nil
	}

	row, err := b.backend.Get(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, persistenceError(b.ad.kind, "Get", err)
	}
	rec, err = b.decode(row)
	if err != nil {
		return zero, false, persistenceError(b.ad.kind, "Get", err)
	}

	// Only populate the cache if no writer committed in the meantime.
	b.mu.Lock()
	if b.version == version {
		b.cache.put(id, rec)
	}
	b.mu.Unlock()

	return rec, true, nil
}

func (b *base[T]) touch(id string) {
	b.accessMu.Lock()
	st := b.access[id]
	st.count++
	st.last = b.now()
	b.access[id] = st
	b.accessMu.Unlock()
}

// Access returns the number of Get calls served for id and the time of the last one.
func (b *base[T]) Access(id string) (int, time.Time) {
	b.accessMu.Lock()
	defer b.accessMu.Unlock()
	st := b.access[id]
	return st.count, st.last
}

func (b *base[T]) forget(ids ...string) {
	b.accessMu.Lock()
	for _, id := range ids {
		delete(b.access, id)
	}
	b.accessMu.Unlock()
}

func (b *base[T]) matchesFilter(rec T, f *Filter) bool {
	symbol, action := b.ad.fields(rec)
	if f.Symbol != "" && symbol != f.Symbol {
		return false
	}
	if f.Action != "" && action != f.Action {
		return false
	}
	return f.inRange(rec.RecordTime())
}

// Query returns records matching f, newest first.
//
// Cache and durable results are merged by id with the cached copy taking
// precedence. A durable scan failure degrades to cache-only results.
func (b *base[T]) Query(ctx context.Context, f *Filter) ([]T, error) {
	var filter Filter
	if f != nil {
		filter = *f
	}
	filter.Symbol = b.ad.normKey(filter.Symbol)
	filter.Action = strings.ToUpper(strings.TrimSpace(filter.Action))

	merged := make(map[string]T)

	b.mu.RLock()
	visit := func(id string, rec T) {
		if b.matchesFilter(rec, &filter) {
			merged[id] = b.ad.clone(rec)
		}
	}
	if key := b.candidateKey(&filter); key != "" {
		for _, id := range b.index.lookup(key) {
			if rec, ok := b.cache.get(id); ok {
				visit(id, rec)
			}
		}
	} else {
		b.cache.each(visit)
	}
	b.mu.RUnlock()

	if b.durable {
		rows, err := b.backend.Scan(ctx, &storage.ScanOptions{
			Symbol: filter.Symbol,
			Action: filter.Action,
			Start:  filter.Start,
			End:    filter.End,
			Limit:  filter.Limit,
		})
		if err != nil {
			b.logger.Warn("durable scan failed, serving cached results", "op", "Query", "err", err)
		}
		for _, row := range rows {
			if _, ok := merged[row.ID]; ok {
				continue
			}
			rec, err := b.decode(row)
			if err != nil {
				b.logger.Warn("skipping undecodable row", "op", "Query", "id", row.ID, "err", err)
				continue
			}
			merged[row.ID] = rec
		}
	}

	out := make([]T, 0, len(merged))
	for _, rec := range merged {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		ti, tj := out[i].RecordTime(), out[j].RecordTime()
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return out[i].RecordID() < out[j].RecordID()
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// candidateKey picks an index key that narrows the cache scan, if any.
func (b *base[T]) candidateKey(f *Filter) string {
	switch {
	case f.Symbol != "":
		return b.ad.primaryKey(f.Symbol)
	case f.Action != "":
		return actionKey(f.Action)
	default:
		return ""
	}
}

// Search returns records matching q ranked by relevance score.
func (b *base[T]) Search(ctx context.Context, q *SearchQuery) ([]Result[T], error) {
	var query SearchQuery
	if q != nil {
		query = *q
	}
	term := strings.ToLower(strings.TrimSpace(query.Text))
	now := b.now()
	window := Filter{Start: query.Start, End: query.End}

	score := func(rec T) (float64, bool) {
		if !window.inRange(rec.RecordTime()) {
			return 0, false
		}
		if len(query.Metadata) > 0 && !rec.RecordMetadata().Matches(query.Metadata) {
			return 0, false
		}
		var s float64
		if term != "" {
			ts, ok := b.ad.score(&b.weights, rec, term)
			if !ok {
				return 0, false
			}
			s = ts
		}
		s += b.weights.recency(rec.RecordTime(), now)
		if b.ad.bonus != nil {
			s += b.ad.bonus(&b.weights, rec)
		}
		return record.Clamp01(s), true
	}

	seen := make(map[string]struct{})
	var results []Result[T]

	b.mu.RLock()
	b.cache.each(func(id string, rec T) {
		seen[id] = struct{}{}
		if s, ok := score(rec); ok {
			results = append(results, Result[T]{Record: b.ad.clone(rec), Score: s})
		}
	})
	b.mu.RUnlock()

	if b.durable {
		rows, err := b.backend.Scan(ctx, &storage.ScanOptions{Start: query.Start, End: query.End})
		if err != nil {
			b.logger.Warn("durable scan failed, serving cached results", "op", "Search", "err", err)
		}
		for _, row := range rows {
			if _, ok := seen[row.ID]; ok {
				continue
			}
			seen[row.ID] = struct{}{}
			rec, err := b.decode(row)
			if err != nil {
				b.logger.Warn("skipping undecodable row", "op", "Search", "id", row.ID, "err", err)
				continue
			}
			if s, ok := score(rec); ok {
				results = append(results, Result[T]{Record: rec, Score: s})
			}
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		ti, tj := results[i].Record.RecordTime(), results[j].Record.RecordTime()
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return results[i].Record.RecordID() < results[j].Record.RecordID()
	})
	if query.Limit > 0 && len(results) > query.Limit {
		results = results[:query.Limit]
	}
	return results, nil
}

// Delete removes a record from the durable store, the cache and every index.
func (b *base[T]) Delete(ctx context.Context, id string) (bool, error) {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	var removed bool
	if b.durable {
		ok, err := b.backend.Delete(ctx, id)
		if err != nil {
			return false, persistenceError(b.ad.kind, "Delete", err)
		}
		removed = ok
	}

	b.mu.Lock()
	if b.cache.remove(id) {
		removed = true
	}
	if b.index.remove(id) {
		removed = true
	}
	b.version++
	b.mu.Unlock()

	b.forget(id)
	return removed, nil
}

// CleanupExpired removes every record older than now minus window and
// returns how many were removed.
func (b *base[T]) CleanupExpired(ctx context.Context, window time.Duration) (int, error) {
	if window <= 0 {
		return 0, newError(b.ad.kind, "CleanupExpired", ErrInvalidWindow)
	}
	cutoff := b.now().Add(-window)

	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	var expired []string
	if b.durable {
		ids, err := b.backend.DeleteBefore(ctx, cutoff)
		if err != nil {
			return 0, persistenceError(b.ad.kind, "CleanupExpired", err)
		}
		expired = ids
	}

	removed := make(map[string]struct{}, len(expired))

	b.mu.Lock()
	for _, id := range expired {
		b.cache.remove(id)
		b.index.remove(id)
		removed[id] = struct{}{}
	}
	var stale []string
	b.cache.each(func(id string, rec T) {
		if rec.RecordTime().Before(cutoff) {
			stale = append(stale, id)
		}
	})
	for _, id := range stale {
		b.cache.remove(id)
		b.index.remove(id)
		removed[id] = struct{}{}
	}
	b.version++
	b.mu.Unlock()

	ids := make([]string, 0, len(removed))
	for id := range removed {
		ids = append(ids, id)
	}
	b.forget(ids...)

	if len(ids) > 0 {
		b.logger.Info("expired records removed", "op", "CleanupExpired", "count", len(ids), "cutoff", cutoff)
	}
	return len(ids), nil
}

// Stats reports cache and durable counts.
func (b *base[T]) Stats(ctx context.Context) (Stats, error) {
	b.mu.RLock()
	st := Stats{
		Kind:       b.ad.kind,
		CacheCount: b.cache.len(),
		CacheLimit: b.cache.limit,
		IndexedIDs: b.index.size(),
		IndexKeys:  b.index.keyCount(),
		Durable:    b.durable,
	}
	b.mu.RUnlock()

	st.DurableCount = st.CacheCount
	if b.durable {
		n, err := b.backend.Count(ctx)
		if err != nil {
			return st, persistenceError(b.ad.kind, "Stats", err)
		}
		st.DurableCount = n
	}
	return st, nil
}

// lookup returns the ids indexed under key.
func (b *base[T]) lookup(key string) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.index.lookup(key)
}

// IndexKeys returns the index keys currently held for id.
func (b *base[T]) IndexKeys(id string) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]string(nil), b.index.keysOf(id)...)
}

// mutate applies fn to a copy of the stored record and writes it back.
// found is false when the id is unknown.
func (b *base[T]) mutate(ctx context.Context, op, id string, fn func(T) error) (T, bool, error) {
	var zero T

	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	current, found, err := b.load(ctx, id)
	if err != nil || !found {
		return zero, found, err
	}

	rec := b.ad.clone(current)
	if err := fn(rec); err != nil {
		return zero, true, newError(b.ad.kind, op, err)
	}
	b.ad.prepare(rec, b.now())
	if err := b.ad.validate(rec); err != nil {
		return zero, true, newError(b.ad.kind, op, err)
	}
	if err := b.persist(ctx, op, rec); err != nil {
		return zero, true, err
	}
	b.commit(rec)
	return b.ad.clone(rec), true, nil
}

// StoreRecord implements KindStore.
func (b *base[T]) StoreRecord(ctx context.Context, rec record.Record) (string, error) {
	typed, ok := rec.(T)
	if !ok {
		return "", newError(b.ad.kind, "Store", fmt.Errorf("%w: got %T", record.ErrInvalidRecord, rec))
	}
	return b.Store(ctx, typed)
}

// GetRecord implements KindStore.
func (b *base[T]) GetRecord(ctx context.Context, id string) (record.Record, bool, error) {
	rec, found, err := b.Get(ctx, id)
	if err != nil || !found {
		return nil, found, err
	}
	return rec, true, nil
}

// SearchRecords implements KindStore.
func (b *base[T]) SearchRecords(ctx context.Context, q *SearchQuery) ([]Hit, error) {
	results, err := b.Search(ctx, q)
	if err != nil {
		return nil, err
	}
	hits := make([]Hit, len(results))
	for i, r := range results {
		hits[i] = Hit{Record: r.Record, Score: r.Score}
	}
	return hits, nil
}

func symbolKey(symbol string) string { return "symbol:" + symbol }

func actionKey(action string) string { return "action:" + action }
