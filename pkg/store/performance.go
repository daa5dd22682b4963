package store

import (
	"context"
	"strings"
	"time"

	"github.com/oceanbase/finmem-go/pkg/record"
)

// Breakdown aggregates the decisions sharing one label.
type Breakdown struct {
	Count          int     `json:"count"`
	SuccessRate    float64 `json:"success_rate"`
	AverageOutcome float64 `json:"average_outcome"`
	TotalOutcome   float64 `json:"total_outcome"`

	wins int
}

func (b *Breakdown) add(outcome float64) {
	b.Count++
	b.TotalOutcome += outcome
	if outcome > 0 {
		b.wins++
	}
}

func (b *Breakdown) finish() {
	if b.Count == 0 {
		return
	}
	b.SuccessRate = float64(b.wins) / float64(b.Count)
	b.AverageOutcome = b.TotalOutcome / float64(b.Count)
}

// Performance is the realized performance of a set of decisions.
// Only decisions with a known outcome are aggregated.
type Performance struct {
	Symbol     string `json:"symbol,omitempty"`
	Action     string `json:"action,omitempty"`
	WindowDays int    `json:"window_days"`

	// TotalDecisions counts every decision in the window, with or without outcome.
	TotalDecisions        int     `json:"total_decisions"`
	DecisionsWithOutcomes int     `json:"decisions_with_outcomes"`
	SuccessRate           float64 `json:"success_rate"`
	AverageReturn         float64 `json:"average_return"`
	TotalReturn           float64 `json:"total_return"`

	BestDecision  *record.Decision `json:"best_decision,omitempty"`
	WorstDecision *record.Decision `json:"worst_decision,omitempty"`

	ByAction     map[string]*Breakdown `json:"by_action"`
	ByConfidence map[string]*Breakdown `json:"by_confidence"`
}

// UnlabeledConfidence groups decisions stored without a confidence label.
const UnlabeledConfidence = "UNSPECIFIED"

// PerformanceAnalysis aggregates the realized outcomes of the decisions made
// in the last windowDays days, optionally restricted to a symbol and action.
// A non-positive windowDays covers all decisions. When nothing qualifies the
// result is empty rather than an error.
func (s *DecisionStore) PerformanceAnalysis(ctx context.Context, symbol, action string, windowDays int) (*Performance, error) {
	filter := &Filter{Symbol: symbol, Action: action}
	if windowDays > 0 {
		filter.Start = s.now().Add(-time.Duration(windowDays) * day)
	}

	decisions, err := s.Query(ctx, filter)
	if err != nil {
		return nil, err
	}

	perf := &Performance{
		Symbol:         record.NormalizeSymbol(symbol),
		Action:         strings.ToUpper(strings.TrimSpace(action)),
		WindowDays:     windowDays,
		TotalDecisions: len(decisions),
		ByAction:       make(map[string]*Breakdown),
		ByConfidence:   make(map[string]*Breakdown),
	}

	var all Breakdown
	var best, worst float64
	for _, d := range decisions {
		outcome, ok := d.Outcome()
		if !ok {
			continue
		}
		all.add(outcome)

		if perf.BestDecision == nil || outcome > best {
			perf.BestDecision, best = d, outcome
		}
		if perf.WorstDecision == nil || outcome < worst {
			perf.WorstDecision, worst = d, outcome
		}

		group(perf.ByAction, d.Action).add(outcome)
		conf := d.Confidence
		if conf == "" {
			conf = UnlabeledConfidence
		}
		group(perf.ByConfidence, conf).add(outcome)
	}

	all.finish()
	perf.DecisionsWithOutcomes = all.Count
	perf.SuccessRate = all.SuccessRate
	perf.AverageReturn = all.AverageOutcome
	perf.TotalReturn = all.TotalOutcome

	for _, b := range perf.ByAction {
		b.finish()
	}
	for _, b := range perf.ByConfidence {
		b.finish()
	}
	return perf, nil
}

func group(m map[string]*Breakdown, label string) *Breakdown {
	b, ok := m[label]
	if !ok {
		b = &Breakdown{}
		m[label] = b
	}
	return b
}
