package store

import (
	"context"
	"strings"
	"time"

	"github.com/oceanbase/finmem-go/pkg/record"
	"github.com/oceanbase/finmem-go/pkg/storage"
)

// DecisionTable is the backend table holding decisions.
const DecisionTable = "decisions"

// DecisionStore stores trading decisions indexed by symbol, action and
// performance bucket.
type DecisionStore struct {
	*base[*record.Decision]
}

func bucketKey(b record.Bucket) string { return "bucket:" + string(b) }

var decisionAdapter = adapter[*record.Decision]{
	kind:  record.KindDecision,
	table: DecisionTable,

	isNil:    func(d *record.Decision) bool { return d == nil },
	setID:    func(d *record.Decision, id string) { d.ID = id },
	prepare:  func(d *record.Decision, now time.Time) { d.Normalize(now) },
	validate: func(d *record.Decision) error { return d.Validate() },
	clone:    func(d *record.Decision) *record.Decision { return d.Clone() },
	alloc:    func() *record.Decision { return &record.Decision{} },

	fields:     func(d *record.Decision) (string, string) { return d.Symbol, d.Action },
	normKey:    record.NormalizeSymbol,
	primaryKey: symbolKey,
	indexKeys: func(d *record.Decision) []string {
		return []string{
			symbolKey(d.Symbol),
			actionKey(d.Action),
			bucketKey(d.Bucket()),
		}
	},
	score: func(w *Weights, d *record.Decision, term string) (float64, bool) {
		return w.scoreDecision(d, term)
	},
	bonus: func(w *Weights, d *record.Decision) float64 {
		return w.outcome(d)
	},
}

// NewDecisionStore opens the decision store on provider.
// A nil provider gives a cache-only store.
func NewDecisionStore(ctx context.Context, provider storage.Provider, opts *Options) (*DecisionStore, error) {
	b, err := newBase(ctx, provider, decisionAdapter, opts)
	if err != nil {
		return nil, err
	}
	return &DecisionStore{base: b}, nil
}

// UpdateOutcome records the realized outcome of a decision.
//
// It returns false when the id is unknown. Calling it again replaces the
// previous outcome and moves the decision to its new performance bucket.
func (s *DecisionStore) UpdateOutcome(ctx context.Context, id string, outcome float64) (bool, error) {
	_, found, err := s.mutate(ctx, "UpdateOutcome", id, func(d *record.Decision) error {
		d.SetOutcome(outcome, s.now())
		return nil
	})
	return found, err
}

// IDsBySymbol returns the ids of the decisions about symbol.
func (s *DecisionStore) IDsBySymbol(symbol string) []string {
	return s.lookup(symbolKey(record.NormalizeSymbol(symbol)))
}

// IDsByAction returns the ids of the decisions with the given action.
func (s *DecisionStore) IDsByAction(action string) []string {
	return s.lookup(actionKey(strings.ToUpper(strings.TrimSpace(action))))
}

// IDsByBucket returns the ids of the decisions in a performance bucket.
func (s *DecisionStore) IDsByBucket(bucket record.Bucket) []string {
	return s.lookup(bucketKey(bucket))
}

// BucketCounts returns the number of decisions per performance bucket.
func (s *DecisionStore) BucketCounts() map[record.Bucket]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[record.Bucket]int, 4)
	for _, b := range []record.Bucket{record.BucketPending, record.BucketWin, record.BucketSmallLoss, record.BucketLoss} {
		out[b] = s.index.count(bucketKey(b))
	}
	return out
}
