// Package intelligence derives the decay and importance attributes of memory
// entries: Ebbinghaus retention, reinforcement on access, tier classification
// and rule-based importance.
package intelligence

import (
	"math"
	"time"

	"github.com/oceanbase/finmem-go/pkg/record"
)

// EbbinghausManager computes retention using the Ebbinghaus forgetting curve.
//
// Retention decays exponentially with the days elapsed since a record was
// last accessed (or created, if never accessed):
//
//	R = e^(-decay_rate * days_elapsed)
//
// Each access reinforces the retention towards 1.0.
//
// Example usage:
//
//	m := NewEbbinghausManager(0.1, 0.3)
//	r := m.Retention(0.1, entry.LastAccessedAt, time.Now())
//	tier := m.Classify(r)
type EbbinghausManager struct {
	// decayRate is the default per-day decay rate. Typical range: 0.05-0.2
	decayRate float64

	// reinforcementFactor determines how much retention is restored on access.
	// Typical range: 0.2-0.5
	reinforcementFactor float64

	// shortTermThreshold is the lowest retention classified as short-term.
	shortTermThreshold float64

	// longTermThreshold is the lowest retention classified as long-term.
	longTermThreshold float64

	// maxReinforcements caps how many accesses are counted.
	maxReinforcements int
}

// NewEbbinghausManager creates a manager with default thresholds
// (short-term 0.6, long-term 0.8).
func NewEbbinghausManager(decayRate, reinforcementFactor float64) *EbbinghausManager {
	return NewEbbinghausManagerWithConfig(decayRate, reinforcementFactor, 0.6, 0.8)
}

// NewEbbinghausManagerWithConfig creates a manager with custom thresholds.
func NewEbbinghausManagerWithConfig(decayRate, reinforcementFactor, shortTermThreshold, longTermThreshold float64) *EbbinghausManager {
	return &EbbinghausManager{
		decayRate:           record.Clamp01(decayRate),
		reinforcementFactor: record.Clamp01(reinforcementFactor),
		shortTermThreshold:  shortTermThreshold,
		longTermThreshold:   longTermThreshold,
		maxReinforcements:   10,
	}
}

// DecayRate returns the default decay rate.
func (m *EbbinghausManager) DecayRate() float64 { return m.decayRate }

// Retention returns the retention in [0, 1] of a record last touched at since,
// decaying at rate per day. A non-positive rate uses the default rate.
func (m *EbbinghausManager) Retention(rate float64, since, now time.Time) float64 {
	if rate <= 0 {
		rate = m.decayRate
	}
	days := now.Sub(since).Hours() / 24.0
	if days <= 0 {
		return 1.0
	}
	return record.Clamp01(math.Exp(-rate * days))
}

// Reinforce strengthens retention after one access:
//
//	new_strength = strength + reinforcement_factor * (1 - strength)
//
// Weak retention gains more than strong retention and the result never exceeds 1.0.
func (m *EbbinghausManager) Reinforce(strength float64) float64 {
	return record.Clamp01(strength + m.reinforcementFactor*(1.0-strength))
}

// ReinforceN applies Reinforce once per access, up to a fixed cap.
func (m *EbbinghausManager) ReinforceN(strength float64, accesses int) float64 {
	if accesses > m.maxReinforcements {
		accesses = m.maxReinforcements
	}
	for i := 0; i < accesses; i++ {
		strength = m.Reinforce(strength)
	}
	return strength
}

// Classify maps a retention value to its tier.
func (m *EbbinghausManager) Classify(retention float64) Tier {
	switch {
	case retention >= m.longTermThreshold:
		return TierLongTerm
	case retention >= m.shortTermThreshold:
		return TierShortTerm
	default:
		return TierWorking
	}
}

// DecayRateForTier scales rate by tier: working memory decays twice as fast,
// short-term one and a half times.
func (m *EbbinghausManager) DecayRateForTier(rate float64, tier Tier) float64 {
	switch tier {
	case TierWorking:
		return record.Clamp01(rate * 2.0)
	case TierShortTerm:
		return record.Clamp01(rate * 1.5)
	default:
		return rate
	}
}

// NextReview returns when a record with the given retention should next be
// surfaced: 24 * (1 + strength * 10) hours from now.
func (m *EbbinghausManager) NextReview(retention float64, now time.Time) time.Time {
	hours := 24.0 * (1.0 + record.Clamp01(retention)*10.0)
	return now.Add(time.Duration(hours * float64(time.Hour)))
}
