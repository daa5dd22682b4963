package intelligence

import (
	"math"
	"strings"

	"github.com/oceanbase/finmem-go/pkg/record"
)

// ImportanceEvaluator scores records by rule-based heuristics.
//
// The evaluator looks at the signals the agent cares about for each kind:
//   - Decisions: confidence, action strength, expected return, realized outcome, risk notes
//   - Market observations: sentiment extremity, indicator coverage
//   - Conversations: length, question marks, finance keywords
//
// For every kind, a "priority" metadata value of high/medium and a non-empty
// "tags" list raise the score.
//
// Example usage:
//
//	evaluator := NewImportanceEvaluator()
//	score := evaluator.Evaluate(decision)
//	// score will be between 0.0 and 1.0
type ImportanceEvaluator struct {
	// keywords raise conversation importance when present.
	keywords []string
}

// NewImportanceEvaluator creates an evaluator with the default keyword list.
func NewImportanceEvaluator() *ImportanceEvaluator {
	return &ImportanceEvaluator{
		keywords: []string{
			"important", "urgent", "remember", "note",
			"risk", "stop loss", "earnings", "guidance",
			"buy", "sell", "position", "portfolio",
		},
	}
}

// Evaluate returns the importance of rec between 0.0 and 1.0.
func (e *ImportanceEvaluator) Evaluate(rec record.Record) float64 {
	var score float64
	switch r := rec.(type) {
	case *record.Decision:
		score = e.evaluateDecision(r)
	case *record.MarketObservation:
		score = e.evaluateMarket(r)
	case *record.Conversation:
		score = e.evaluateConversation(r)
	default:
		return 0
	}
	score += e.evaluateMetadata(rec.RecordMetadata())
	return math.Min(score, 1.0)
}

func (e *ImportanceEvaluator) evaluateDecision(d *record.Decision) float64 {
	score := 0.4

	switch d.Confidence {
	case record.ConfidenceVeryHigh:
		score += 0.2
	case record.ConfidenceHigh:
		score += 0.15
	case record.ConfidenceMedium:
		score += 0.05
	}

	if d.Action == record.ActionStrongBuy || d.Action == record.ActionStrongSell {
		score += 0.1
	}
	if math.Abs(d.ExpectedReturn) >= 0.05 {
		score += 0.1
	}
	if outcome, ok := d.Outcome(); ok {
		score += 0.05
		if math.Abs(outcome) >= 0.05 {
			score += 0.1
		}
	}
	if len(d.RiskAssessment) > 0 {
		score += 0.05
	}
	return score
}

func (e *ImportanceEvaluator) evaluateMarket(m *record.MarketObservation) float64 {
	score := 0.2

	if m.SentimentScore != nil && math.Abs(*m.SentimentScore) >= 0.5 {
		score += 0.15
	}
	switch n := len(m.Indicators); {
	case n >= 3:
		score += 0.1
	case n > 0:
		score += 0.05
	}
	if m.MarketCap != nil {
		score += 0.05
	}
	return score
}

func (e *ImportanceEvaluator) evaluateConversation(c *record.Conversation) float64 {
	score := 0.2

	var text strings.Builder
	for _, msg := range c.Messages {
		text.WriteString(strings.ToLower(msg.Content))
		text.WriteByte('\n')
	}
	content := text.String()

	// Length factor
	if len(content) > 500 {
		score += 0.1
	} else if len(content) > 100 {
		score += 0.05
	}

	for _, keyword := range e.keywords {
		if strings.Contains(content, keyword) {
			score += 0.05
		}
	}

	if strings.Contains(content, "?") {
		score += 0.05
	}
	return score
}

func (e *ImportanceEvaluator) evaluateMetadata(md record.Metadata) float64 {
	var score float64
	if priority, ok := md["priority"].AsString(); ok {
		switch strings.ToLower(priority) {
		case "high":
			score += 0.2
		case "medium":
			score += 0.1
		}
	}
	if tags, ok := md["tags"].AsList(); ok && len(tags) > 0 {
		score += 0.05
	}
	return score
}
