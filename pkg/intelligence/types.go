package intelligence

import "time"

// Tier classifies an entry by retention strength.
type Tier string

const (
	// TierWorking holds weakly retained entries.
	TierWorking Tier = "working"

	// TierShortTerm holds moderately retained entries.
	TierShortTerm Tier = "short_term"

	// TierLongTerm holds strongly retained entries.
	TierLongTerm Tier = "long_term"
)

// Assessment is the result of evaluating one entry.
type Assessment struct {
	// Importance is the rule-based importance (0.0-1.0).
	Importance float64

	// Retention is the reinforced Ebbinghaus retention (0.0-1.0).
	Retention float64

	// DecayRate is the per-day decay rate applied (0.0-1.0).
	DecayRate float64

	// Relevance is importance weighted by retention (0.0-1.0).
	Relevance float64

	// Tier is the retention tier.
	Tier Tier

	// NextReview is when the entry should next be surfaced.
	NextReview time.Time
}
