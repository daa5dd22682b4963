package intelligence

import (
	"time"

	"github.com/oceanbase/finmem-go/pkg/record"
)

// Manager combines importance evaluation and Ebbinghaus decay to fill the
// derived fields of memory entries.
//
// Example usage:
//
//	m := NewManager(DefaultConfig())
//	entry := record.NewEntry(rec)
//	m.Annotate(entry, accessCount, lastAccess, time.Now())
type Manager struct {
	importanceEvaluator *ImportanceEvaluator
	ebbinghausManager   *EbbinghausManager
	config              *Config
}

// Config contains configuration for entry evaluation.
type Config struct {
	// DecayRates is the per-day decay rate for each record kind.
	// Kinds without an entry use DefaultDecayRate.
	DecayRates map[record.Kind]float64 `json:"decay_rates,omitempty"`

	// DefaultDecayRate is the decay rate for kinds missing from DecayRates.
	DefaultDecayRate float64 `json:"default_decay_rate"`

	// ReinforcementFactor determines how much retention is restored per access.
	ReinforcementFactor float64 `json:"reinforcement_factor"`

	// ShortTermThreshold is the lowest retention classified as short-term.
	ShortTermThreshold float64 `json:"short_term_threshold"`

	// LongTermThreshold is the lowest retention classified as long-term.
	LongTermThreshold float64 `json:"long_term_threshold"`
}

// DefaultConfig returns the default evaluation configuration. Market data
// goes stale fastest, decisions are kept relevant longest.
func DefaultConfig() *Config {
	return &Config{
		DecayRates: map[record.Kind]float64{
			record.KindConversation: 0.1,
			record.KindMarket:       0.2,
			record.KindDecision:     0.05,
		},
		DefaultDecayRate:    0.1,
		ReinforcementFactor: 0.3,
		ShortTermThreshold:  0.6,
		LongTermThreshold:   0.8,
	}
}

// NewManager creates a manager. A nil config uses DefaultConfig.
func NewManager(config *Config) *Manager {
	if config == nil {
		config = DefaultConfig()
	}
	return &Manager{
		importanceEvaluator: NewImportanceEvaluator(),
		ebbinghausManager: NewEbbinghausManagerWithConfig(
			config.DefaultDecayRate,
			config.ReinforcementFactor,
			config.ShortTermThreshold,
			config.LongTermThreshold,
		),
		config: config,
	}
}

// DecayRate returns the configured decay rate for kind.
func (m *Manager) DecayRate(kind record.Kind) float64 {
	if rate, ok := m.config.DecayRates[kind]; ok && rate > 0 {
		return record.Clamp01(rate)
	}
	return m.ebbinghausManager.DecayRate()
}

// Assess evaluates rec given its access history.
// lastAccess is ignored when zero or earlier than the record timestamp.
func (m *Manager) Assess(rec record.Record, accessCount int, lastAccess, now time.Time) Assessment {
	since := rec.RecordTime()
	if lastAccess.After(since) {
		since = lastAccess
	}

	rate := m.DecayRate(rec.RecordKind())
	retention := m.ebbinghausManager.Retention(rate, since, now)
	retention = m.ebbinghausManager.ReinforceN(retention, accessCount)
	tier := m.ebbinghausManager.Classify(retention)
	importance := m.importanceEvaluator.Evaluate(rec)

	return Assessment{
		Importance: importance,
		Retention:  retention,
		DecayRate:  m.ebbinghausManager.DecayRateForTier(rate, tier),
		Relevance:  record.Clamp01(importance * retention),
		Tier:       tier,
		NextReview: m.ebbinghausManager.NextReview(retention, now),
	}
}

// Annotate fills the derived fields of e and returns the assessment.
func (m *Manager) Annotate(e *record.Entry, accessCount int, lastAccess, now time.Time) Assessment {
	a := m.Assess(e.Payload, accessCount, lastAccess, now)
	e.SetImportance(a.Importance)
	e.SetDecayRate(a.DecayRate)
	e.SetRelevance(a.Relevance)
	e.SetAccess(accessCount, lastAccess)
	return a
}

// ImportanceEvaluator returns the importance evaluator.
func (m *Manager) ImportanceEvaluator() *ImportanceEvaluator {
	return m.importanceEvaluator
}

// EbbinghausManager returns the Ebbinghaus manager.
func (m *Manager) EbbinghausManager() *EbbinghausManager {
	return m.ebbinghausManager
}
