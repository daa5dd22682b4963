package core

import (
	"log/slog"
	"time"

	"github.com/oceanbase/finmem-go/pkg/idgen"
	"github.com/oceanbase/finmem-go/pkg/record"
	"github.com/oceanbase/finmem-go/pkg/storage"
)

// DefaultSearchLimit is the result limit used when none is given.
const DefaultSearchLimit = 10

// Option configures a Manager.
type Option func(*managerOptions)

type managerOptions struct {
	logger   *slog.Logger
	provider storage.Provider
	ids      idgen.Generator
	now      func() time.Time
}

func applyOptions(opts []Option) *managerOptions {
	o := &managerOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.now == nil {
		o.now = func() time.Time { return time.Now().UTC() }
	}
	return o
}

// WithLogger sets the logger used by the manager and its stores.
//
// Example:
//
//	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
//	manager, _ := core.NewManager(ctx, config, core.WithLogger(logger))
func WithLogger(logger *slog.Logger) Option {
	return func(o *managerOptions) {
		o.logger = logger
	}
}

// WithProvider supplies an already opened storage provider instead of the
// one described by Config.Persistence. The manager does not close it.
//
// Example:
//
//	client, _ := sqlite.NewClient(&sqlite.Config{DBPath: "./finmem.db"})
//	defer client.Close()
//	manager, _ := core.NewManager(ctx, config, core.WithProvider(client))
func WithProvider(provider storage.Provider) Option {
	return func(o *managerOptions) {
		o.provider = provider
	}
}

// WithIDGenerator overrides the id generator selected by Config.IDs.
//
// Example:
//
//	manager, _ := core.NewManager(ctx, config, core.WithIDGenerator(idgen.NewULID()))
func WithIDGenerator(ids idgen.Generator) Option {
	return func(o *managerOptions) {
		o.ids = ids
	}
}

// WithClock overrides the clock used for ids, recency and retention.
func WithClock(now func() time.Time) Option {
	return func(o *managerOptions) {
		o.now = now
	}
}

// SearchOption configures a Search call.
type SearchOption func(*SearchQuery)

func applySearchOptions(text string, opts []SearchOption) *SearchQuery {
	q := &SearchQuery{
		Text:  text,
		Limit: DefaultSearchLimit,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// WithKinds restricts a search to the given record kinds.
//
// Example:
//
//	entries, _ := manager.Search(ctx, "AAPL",
//	    core.WithKinds(record.KindMarket, record.KindDecision),
//	)
func WithKinds(kinds ...record.Kind) SearchOption {
	return func(q *SearchQuery) {
		q.Kinds = append(q.Kinds, kinds...)
	}
}

// WithTimeRange restricts a search to records timestamped within
// [start, end]. A zero bound is open.
//
// Example:
//
//	entries, _ := manager.Search(ctx, "AAPL",
//	    core.WithTimeRange(time.Now().Add(-7*core.Day), time.Time{}),
//	)
func WithTimeRange(start, end time.Time) SearchOption {
	return func(q *SearchQuery) {
		q.Start = start
		q.End = end
	}
}

// WithMetadataFilter requires every key of filter to be present in the
// record metadata with an equal value.
//
// Example:
//
//	entries, _ := manager.Search(ctx, "",
//	    core.WithMetadataFilter(map[string]interface{}{
//	        "strategy": "momentum",
//	    }),
//	)
func WithMetadataFilter(filter map[string]interface{}) SearchOption {
	return func(q *SearchQuery) {
		q.Metadata = record.MetadataFrom(filter)
	}
}

// WithLimit sets the maximum number of results. Zero or a negative value
// removes the limit.
//
// Example:
//
//	entries, _ := manager.Search(ctx, "AAPL", core.WithLimit(5))
func WithLimit(limit int) SearchOption {
	return func(q *SearchQuery) {
		if limit < 0 {
			limit = 0
		}
		q.Limit = limit
		q.limitSet = true
	}
}
