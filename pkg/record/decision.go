package record

import (
	"strings"
	"time"
)

// Common trading action labels. Actions are open labels; these are the ones
// the agent pipelines emit.
const (
	ActionBuy        = "BUY"
	ActionSell       = "SELL"
	ActionHold       = "HOLD"
	ActionStrongBuy  = "STRONG_BUY"
	ActionStrongSell = "STRONG_SELL"
)

// Common confidence labels.
const (
	ConfidenceLow      = "LOW"
	ConfidenceMedium   = "MEDIUM"
	ConfidenceHigh     = "HIGH"
	ConfidenceVeryHigh = "VERY_HIGH"
)

// Bucket classifies a decision by realized performance.
type Bucket string

const (
	// BucketPending holds decisions without a known outcome.
	BucketPending Bucket = "pending"

	// BucketWin holds decisions with a positive outcome.
	BucketWin Bucket = "win"

	// BucketSmallLoss holds decisions whose outcome is in (-5%, 0].
	BucketSmallLoss Bucket = "small_loss"

	// BucketLoss holds decisions that lost 5% or more.
	BucketLoss Bucket = "loss"
)

// SmallLossFloor is the outcome above which a loss counts as mild.
const SmallLossFloor = -0.05

// Decision is a trading decision and, once known, its realized outcome.
type Decision struct {
	// ID is the unique id of the decision.
	ID string `json:"id"`

	// Symbol is the upper-cased ticker the decision is about.
	Symbol string `json:"symbol"`

	// Timestamp is when the decision was made.
	Timestamp time.Time `json:"timestamp"`

	// UpdatedAt is when the decision was last changed.
	UpdatedAt time.Time `json:"updated_at"`

	// Action is the trading action label.
	Action string `json:"action"`

	// Confidence is the confidence label.
	Confidence string `json:"confidence"`

	// Reasoning is the free-text rationale.
	Reasoning string `json:"reasoning"`

	// ExpectedReturn is the return anticipated when deciding, as a fraction.
	ExpectedReturn float64 `json:"expected_return"`

	// ActualOutcome is the realized return, nil until known.
	ActualOutcome *float64 `json:"actual_outcome,omitempty"`

	// RiskAssessment holds risk attributes (stop loss, exposure, ...).
	RiskAssessment Metadata `json:"risk_assessment,omitempty"`

	// Metadata contains additional caller supplied attributes.
	Metadata Metadata `json:"metadata,omitempty"`
}

// RecordID implements Record.
func (d *Decision) RecordID() string { return d.ID }

// RecordKind implements Record.
func (d *Decision) RecordKind() Kind { return KindDecision }

// RecordTime implements Record.
func (d *Decision) RecordTime() time.Time { return d.Timestamp }

// RecordMetadata implements Record.
func (d *Decision) RecordMetadata() Metadata { return d.Metadata }

// HasOutcome reports whether the realized outcome is known.
func (d *Decision) HasOutcome() bool { return d.ActualOutcome != nil }

// Outcome returns the realized outcome and whether it is known.
func (d *Decision) Outcome() (float64, bool) {
	if d.ActualOutcome == nil {
		return 0, false
	}
	return *d.ActualOutcome, true
}

// SetOutcome records the realized outcome and bumps UpdatedAt.
func (d *Decision) SetOutcome(outcome float64, at time.Time) {
	d.ActualOutcome = &outcome
	if at.After(d.UpdatedAt) {
		d.UpdatedAt = at
	}
}

// Bucket returns the performance bucket of the decision.
func (d *Decision) Bucket() Bucket {
	return BucketFor(d.ActualOutcome)
}

// BucketFor classifies an optional outcome.
func BucketFor(outcome *float64) Bucket {
	switch {
	case outcome == nil:
		return BucketPending
	case *outcome > 0:
		return BucketWin
	case *outcome > SmallLossFloor:
		return BucketSmallLoss
	default:
		return BucketLoss
	}
}

// Normalize upper-cases the symbol and labels and fills zero timestamps.
func (d *Decision) Normalize(now time.Time) {
	d.Symbol = NormalizeSymbol(d.Symbol)
	d.Action = strings.ToUpper(strings.TrimSpace(d.Action))
	d.Confidence = strings.ToUpper(strings.TrimSpace(d.Confidence))
	if d.Timestamp.IsZero() {
		d.Timestamp = now
	}
	if d.UpdatedAt.Before(d.Timestamp) {
		d.UpdatedAt = d.Timestamp
	}
}

// Validate checks the decision invariants.
func (d *Decision) Validate() error {
	if d.ID == "" {
		return invalid("decision: empty id")
	}
	if d.Symbol == "" {
		return invalid("decision %s: empty symbol", d.ID)
	}
	if d.Action == "" {
		return invalid("decision %s: empty action", d.ID)
	}
	return nil
}

// Clone returns a deep copy.
func (d *Decision) Clone() *Decision {
	cp := *d
	if d.ActualOutcome != nil {
		v := *d.ActualOutcome
		cp.ActualOutcome = &v
	}
	cp.RiskAssessment = d.RiskAssessment.Clone()
	cp.Metadata = d.Metadata.Clone()
	return &cp
}
