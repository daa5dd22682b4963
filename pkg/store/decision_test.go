package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/finmem-go/pkg/record"
	"github.com/oceanbase/finmem-go/pkg/store"
)

func newDecisionStore(t *testing.T, opts *store.Options) *store.DecisionStore {
	t.Helper()
	s, err := store.NewDecisionStore(context.Background(), newSQLiteProvider(t), opts)
	require.NoError(t, err)
	return s
}

func TestDecisionStore_PerformanceAnalysis(t *testing.T) {
	ctx := context.Background()
	s := newDecisionStore(t, nil)

	win := decision("d1", "AAPL", record.ActionBuy, ago(3*day))
	win.ActualOutcome = ptr(0.10)
	loss := decision("d2", "AAPL", record.ActionSell, ago(2*day))
	loss.ActualOutcome = ptr(-0.02)
	loss.Confidence = record.ConfidenceLow
	pending := decision("d3", "AAPL", record.ActionBuy, ago(day))
	other := decision("d4", "MSFT", record.ActionBuy, ago(day))
	other.ActualOutcome = ptr(0.5)
	stale := decision("d5", "AAPL", record.ActionBuy, ago(90*day))
	stale.ActualOutcome = ptr(-0.5)

	for _, d := range []*record.Decision{win, loss, pending, other, stale} {
		_, err := s.Store(ctx, d)
		require.NoError(t, err)
	}

	perf, err := s.PerformanceAnalysis(ctx, "aapl", "", 30)
	require.NoError(t, err)
	assert.Equal(t, "AAPL", perf.Symbol)
	assert.Equal(t, 3, perf.TotalDecisions)
	assert.Equal(t, 2, perf.DecisionsWithOutcomes)
	assert.InDelta(t, 0.5, perf.SuccessRate, 1e-9)
	assert.InDelta(t, 0.04, perf.AverageReturn, 1e-9)
	assert.InDelta(t, 0.08, perf.TotalReturn, 1e-9)
	require.NotNil(t, perf.BestDecision)
	assert.Equal(t, "d1", perf.BestDecision.ID)
	require.NotNil(t, perf.WorstDecision)
	assert.Equal(t, "d2", perf.WorstDecision.ID)

	require.Contains(t, perf.ByAction, record.ActionBuy)
	assert.Equal(t, 1, perf.ByAction[record.ActionBuy].Count)
	assert.InDelta(t, 1.0, perf.ByAction[record.ActionBuy].SuccessRate, 1e-9)
	require.Contains(t, perf.ByAction, record.ActionSell)
	assert.InDelta(t, -0.02, perf.ByAction[record.ActionSell].AverageOutcome, 1e-9)
	assert.Equal(t, 0.0, perf.ByAction[record.ActionSell].SuccessRate)

	assert.Equal(t, 1, perf.ByConfidence[record.ConfidenceHigh].Count)
	assert.Equal(t, 1, perf.ByConfidence[record.ConfidenceLow].Count)

	// All-time window picks up the stale loss as the worst decision.
	perf, err = s.PerformanceAnalysis(ctx, "AAPL", "", 0)
	require.NoError(t, err)
	assert.Equal(t, 3, perf.DecisionsWithOutcomes)
	assert.Equal(t, "d5", perf.WorstDecision.ID)

	perf, err = s.PerformanceAnalysis(ctx, "", "buy", 30)
	require.NoError(t, err)
	assert.Equal(t, record.ActionBuy, perf.Action)
	assert.Equal(t, 2, perf.DecisionsWithOutcomes)
	assert.Equal(t, "d4", perf.BestDecision.ID)
}

func TestDecisionStore_PerformanceAnalysisEmpty(t *testing.T) {
	ctx := context.Background()
	s := newDecisionStore(t, nil)

	_, err := s.Store(ctx, decision("d1", "AAPL", record.ActionBuy, ago(day)))
	require.NoError(t, err)

	perf, err := s.PerformanceAnalysis(ctx, "TSLA", "", 30)
	require.NoError(t, err)
	assert.Equal(t, 0, perf.TotalDecisions)
	assert.Equal(t, 0, perf.DecisionsWithOutcomes)
	assert.Zero(t, perf.SuccessRate)
	assert.Zero(t, perf.AverageReturn)
	assert.Nil(t, perf.BestDecision)
	assert.Nil(t, perf.WorstDecision)
	assert.Empty(t, perf.ByAction)
	assert.Empty(t, perf.ByConfidence)

	perf, err = s.PerformanceAnalysis(ctx, "AAPL", "", 30)
	require.NoError(t, err)
	assert.Equal(t, 1, perf.TotalDecisions)
	assert.Equal(t, 0, perf.DecisionsWithOutcomes)
}

func TestDecisionStore_UpdateOutcome(t *testing.T) {
	ctx := context.Background()
	s := newDecisionStore(t, nil)

	_, err := s.Store(ctx, decision("d1", "AAPL", record.ActionBuy, ago(day)))
	require.NoError(t, err)
	assert.Equal(t, []string{"d1"}, s.IDsByBucket(record.BucketPending))

	ok, err := s.UpdateOutcome(ctx, "missing", 0.1)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.UpdateOutcome(ctx, "d1", 0.12)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, s.IDsByBucket(record.BucketPending))
	assert.Equal(t, []string{"d1"}, s.IDsByBucket(record.BucketWin))

	ok, err = s.UpdateOutcome(ctx, "d1", -0.03)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, s.IDsByBucket(record.BucketWin))
	assert.Equal(t, []string{"d1"}, s.IDsByBucket(record.BucketSmallLoss))

	got, found, err := s.Get(ctx, "d1")
	require.NoError(t, err)
	require.True(t, found)
	outcome, known := got.Outcome()
	assert.True(t, known)
	assert.Equal(t, -0.03, outcome)
	assert.False(t, got.UpdatedAt.Before(got.Timestamp))

	counts := s.BucketCounts()
	assert.Equal(t, 1, counts[record.BucketSmallLoss])
	assert.Equal(t, 0, counts[record.BucketWin])

	assert.ElementsMatch(t, []string{"symbol:AAPL", "action:BUY", "bucket:small_loss"}, s.IndexKeys("d1"))
}

func TestDecisionStore_UpdateOutcomePersists(t *testing.T) {
	ctx := context.Background()
	provider := newSQLiteProvider(t)

	s, err := store.NewDecisionStore(ctx, provider, &store.Options{CacheLimit: 1})
	require.NoError(t, err)
	_, err = s.Store(ctx, decision("cached", "AAPL", record.ActionBuy, ago(day)))
	require.NoError(t, err)
	_, err = s.Store(ctx, decision("durable", "AAPL", record.ActionSell, ago(day)))
	require.NoError(t, err)

	ok, err := s.UpdateOutcome(ctx, "durable", -0.2)
	require.NoError(t, err)
	require.True(t, ok)

	reopened, err := store.NewDecisionStore(ctx, provider, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"durable"}, reopened.IDsByBucket(record.BucketLoss))
	assert.Equal(t, []string{"cached"}, reopened.IDsByBucket(record.BucketPending))

	got, found, err := reopened.Get(ctx, "durable")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, ptr(-0.2), got.ActualOutcome)
}

func TestDecisionStore_UpdateOutcomeFailureKeepsBucket(t *testing.T) {
	ctx := context.Background()
	provider := newFlakyProvider()
	s, err := store.NewDecisionStore(ctx, provider, nil)
	require.NoError(t, err)

	_, err = s.Store(ctx, decision("d1", "AAPL", record.ActionBuy, ago(day)))
	require.NoError(t, err)

	provider.backends[store.DecisionTable].setFailWrites(true)
	ok, err := s.UpdateOutcome(ctx, "d1", 0.3)
	assert.True(t, ok)
	assert.ErrorIs(t, err, store.ErrPersistence)

	assert.Equal(t, []string{"d1"}, s.IDsByBucket(record.BucketPending))
	got, _, err := s.Get(ctx, "d1")
	require.NoError(t, err)
	assert.False(t, got.HasOutcome())
}

func TestDecisionStore_Indices(t *testing.T) {
	ctx := context.Background()
	s := newDecisionStore(t, nil)

	_, err := s.Store(ctx, decision("d1", "aapl", "buy", ago(day)))
	require.NoError(t, err)
	_, err = s.Store(ctx, decision("d2", "MSFT", record.ActionBuy, ago(day)))
	require.NoError(t, err)
	_, err = s.Store(ctx, decision("d3", "AAPL", record.ActionSell, ago(day)))
	require.NoError(t, err)

	assert.Equal(t, []string{"d1", "d3"}, s.IDsBySymbol("AAPL"))
	assert.Equal(t, []string{"d1", "d2"}, s.IDsByAction("buy"))

	recs, err := s.Query(ctx, &store.Filter{Symbol: "AAPL", Action: "sell"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "d3", recs[0].ID)

	recs, err = s.Query(ctx, &store.Filter{Action: record.ActionBuy})
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	removed, err := s.Delete(ctx, "d1")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, []string{"d3"}, s.IDsBySymbol("AAPL"))
	assert.Equal(t, []string{"d2"}, s.IDsByAction(record.ActionBuy))
	assert.NotContains(t, s.IDsByBucket(record.BucketPending), "d1")
}

func TestDecisionStore_SearchScoring(t *testing.T) {
	ctx := context.Background()
	s := newDecisionStore(t, nil)

	winner := decision("winner", "NVDA", record.ActionBuy, ago(10*day))
	winner.ActualOutcome = ptr(0.2)
	winner.Reasoning = "datacenter demand"
	pending := decision("pending", "NVDA", record.ActionBuy, ago(10*day))
	pending.Reasoning = "datacenter demand"
	loser := decision("loser", "NVDA", record.ActionBuy, ago(10*day))
	loser.ActualOutcome = ptr(-0.3)
	loser.Reasoning = "datacenter demand"

	for _, d := range []*record.Decision{winner, pending, loser} {
		_, err := s.Store(ctx, d)
		require.NoError(t, err)
	}

	results, err := s.Search(ctx, &store.SearchQuery{Text: "datacenter"})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "winner", results[0].Record.ID)
	assert.Greater(t, results[0].Score, results[1].Score)

	// Reasoning text matches case-insensitively.
	results, err = s.Search(ctx, &store.SearchQuery{Text: "DEMAND", Limit: 1})
	require.NoError(t, err)
	require.Len(t, results, 1)

	results, err = s.Search(ctx, &store.SearchQuery{Text: "buy"})
	require.NoError(t, err)
	assert.Len(t, results, 3)

	results, err = s.Search(ctx, &store.SearchQuery{Text: "crypto"})
	require.NoError(t, err)
	assert.Empty(t, results)
}
