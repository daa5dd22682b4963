package store

import (
	"context"
	"time"

	"github.com/oceanbase/finmem-go/pkg/record"
	"github.com/oceanbase/finmem-go/pkg/storage"
)

// MarketTable is the backend table holding market observations.
const MarketTable = "market_observations"

// MarketStore stores market observations indexed by symbol.
type MarketStore struct {
	*base[*record.MarketObservation]
}

var marketAdapter = adapter[*record.MarketObservation]{
	kind:  record.KindMarket,
	table: MarketTable,

	isNil:    func(m *record.MarketObservation) bool { return m == nil },
	setID:    func(m *record.MarketObservation, id string) { m.ID = id },
	prepare:  func(m *record.MarketObservation, now time.Time) { m.Normalize(now) },
	validate: func(m *record.MarketObservation) error { return m.Validate() },
	clone:    func(m *record.MarketObservation) *record.MarketObservation { return m.Clone() },
	alloc:    func() *record.MarketObservation { return &record.MarketObservation{} },

	fields:     func(m *record.MarketObservation) (string, string) { return m.Symbol, "" },
	normKey:    record.NormalizeSymbol,
	primaryKey: symbolKey,
	indexKeys: func(m *record.MarketObservation) []string {
		return []string{symbolKey(m.Symbol)}
	},
	score: func(w *Weights, m *record.MarketObservation, term string) (float64, bool) {
		return w.scoreMarket(m, term)
	},
}

// NewMarketStore opens the market store on provider.
// A nil provider gives a cache-only store.
func NewMarketStore(ctx context.Context, provider storage.Provider, opts *Options) (*MarketStore, error) {
	b, err := newBase(ctx, provider, marketAdapter, opts)
	if err != nil {
		return nil, err
	}
	return &MarketStore{base: b}, nil
}

// IDsBySymbol returns the ids of the observations for symbol.
func (s *MarketStore) IDsBySymbol(symbol string) []string {
	return s.lookup(symbolKey(record.NormalizeSymbol(symbol)))
}

// Latest returns the most recent observation for symbol.
func (s *MarketStore) Latest(ctx context.Context, symbol string) (*record.MarketObservation, bool, error) {
	recs, err := s.Query(ctx, &Filter{Symbol: symbol, Limit: 1})
	if err != nil || len(recs) == 0 {
		return nil, false, err
	}
	return recs[0], true, nil
}
