package store

import (
	"strings"
	"time"

	"github.com/oceanbase/finmem-go/pkg/record"
)

// Weights are the relevance scoring constants. Only their ordering matters:
// an exact key match must outrank a substring match.
type Weights struct {
	// ExactKey is added when the key field (symbol or topic) equals the term.
	ExactKey float64 `json:"exact_key"`

	// KeySubstring is added when the key field contains the term.
	KeySubstring float64 `json:"key_substring"`

	// Text is added when any other searchable field contains the term.
	Text float64 `json:"text"`

	// ExactAction is added when a decision action equals the term.
	ExactAction float64 `json:"exact_action"`

	// Recency bonuses by record age.
	RecentDay   float64 `json:"recent_day"`
	RecentWeek  float64 `json:"recent_week"`
	RecentMonth float64 `json:"recent_month"`

	// Decision outcome bonuses.
	OutcomePositive float64 `json:"outcome_positive"`
	OutcomeMild     float64 `json:"outcome_mild"`
}

// DefaultWeights returns the default scoring constants.
func DefaultWeights() Weights {
	return Weights{
		ExactKey:        0.6,
		KeySubstring:    0.3,
		Text:            0.3,
		ExactAction:     0.2,
		RecentDay:       0.3,
		RecentWeek:      0.2,
		RecentMonth:     0.1,
		OutcomePositive: 0.2,
		OutcomeMild:     0.1,
	}
}

const day = 24 * time.Hour

// recency returns the age bonus for a record stamped ts.
func (w *Weights) recency(ts, now time.Time) float64 {
	age := now.Sub(ts)
	switch {
	case age < day:
		return w.RecentDay
	case age < 7*day:
		return w.RecentWeek
	case age < 30*day:
		return w.RecentMonth
	default:
		return 0
	}
}

// outcome returns the decision outcome bonus.
func (w *Weights) outcome(d *record.Decision) float64 {
	switch d.Bucket() {
	case record.BucketWin:
		return w.OutcomePositive
	case record.BucketSmallLoss:
		return w.OutcomeMild
	default:
		return 0
	}
}

// keyScore scores the key field against the lowered term.
func (w *Weights) keyScore(key, term string) (float64, bool) {
	if key == "" || term == "" {
		return 0, false
	}
	k := strings.ToLower(key)
	switch {
	case k == term:
		return w.ExactKey, true
	case strings.Contains(k, term):
		return w.KeySubstring, true
	default:
		return 0, false
	}
}

func containsFold(s, term string) bool {
	return s != "" && strings.Contains(strings.ToLower(s), term)
}

// scoreMarket returns the text score of m and whether it matched.
func (w *Weights) scoreMarket(m *record.MarketObservation, term string) (float64, bool) {
	score, matched := w.keyScore(m.Symbol, term)
	if m.Indicators.ContainsText(term) || m.Metadata.ContainsText(term) {
		score += w.Text
		matched = true
	}
	return score, matched
}

// scoreDecision returns the text score of d and whether it matched.
func (w *Weights) scoreDecision(d *record.Decision, term string) (float64, bool) {
	score, matched := w.keyScore(d.Symbol, term)
	if containsFold(d.Reasoning, term) {
		score += w.Text
		matched = true
	}
	if strings.EqualFold(d.Action, term) {
		score += w.ExactAction
		matched = true
	} else if containsFold(d.Action, term) || containsFold(d.Confidence, term) {
		matched = true
	}
	if !matched && (d.Metadata.ContainsText(term) || d.RiskAssessment.ContainsText(term)) {
		score += w.Text
		matched = true
	}
	return score, matched
}

// scoreConversation returns the text score of c and whether it matched.
func (w *Weights) scoreConversation(c *record.Conversation, term string) (float64, bool) {
	score, matched := w.keyScore(c.Topic(), term)
	for _, msg := range c.Messages {
		if containsFold(msg.Content, term) {
			score += w.Text
			matched = true
			break
		}
	}
	if !matched && c.Metadata.ContainsText(term) {
		score += w.Text
		matched = true
	}
	return score, matched
}
