package record

import "time"

// Entry is the generic envelope around a record of any kind.
//
// RelevanceScore and DecayRate are always kept in [0, 1] and LastAccessedAt
// is never earlier than CreatedAt; use the setters to preserve this.
type Entry struct {
	// ID is the id of the wrapped record.
	ID string `json:"id"`

	// Kind is the kind of the wrapped record.
	Kind Kind `json:"kind"`

	// Payload is the wrapped record.
	Payload Record `json:"payload"`

	// Metadata mirrors the record metadata.
	Metadata Metadata `json:"metadata,omitempty"`

	// Importance is the evaluated importance of the record (0.0-1.0).
	Importance float64 `json:"importance"`

	// CreatedAt is the record timestamp.
	CreatedAt time.Time `json:"created_at"`

	// LastAccessedAt is when the record was last read through a store.
	LastAccessedAt time.Time `json:"last_accessed_at"`

	// AccessCount is the number of reads served for the record.
	AccessCount int `json:"access_count"`

	// RelevanceScore is the decayed relevance (0.0-1.0).
	RelevanceScore float64 `json:"relevance_score"`

	// DecayRate is the per-day decay rate applied to relevance (0.0-1.0).
	DecayRate float64 `json:"decay_rate"`

	// Score is the search score when the entry came from a search (0.0-1.0).
	Score float64 `json:"score,omitempty"`
}

// NewEntry wraps rec. CreatedAt and LastAccessedAt start at the record timestamp.
func NewEntry(rec Record) *Entry {
	ts := rec.RecordTime()
	return &Entry{
		ID:             rec.RecordID(),
		Kind:           rec.RecordKind(),
		Payload:        rec,
		Metadata:       rec.RecordMetadata(),
		CreatedAt:      ts,
		LastAccessedAt: ts,
		RelevanceScore: 1,
	}
}

// SetRelevance stores a clamped relevance score.
func (e *Entry) SetRelevance(v float64) { e.RelevanceScore = Clamp01(v) }

// SetDecayRate stores a clamped decay rate.
func (e *Entry) SetDecayRate(v float64) { e.DecayRate = Clamp01(v) }

// SetImportance stores a clamped importance.
func (e *Entry) SetImportance(v float64) { e.Importance = Clamp01(v) }

// SetAccess records access statistics, never moving LastAccessedAt before CreatedAt.
func (e *Entry) SetAccess(count int, last time.Time) {
	e.AccessCount = count
	if last.Before(e.CreatedAt) {
		last = e.CreatedAt
	}
	e.LastAccessedAt = last
}

// Conversation returns the payload as a conversation.
func (e *Entry) Conversation() (*Conversation, bool) {
	c, ok := e.Payload.(*Conversation)
	return c, ok
}

// Market returns the payload as a market observation.
func (e *Entry) Market() (*MarketObservation, bool) {
	m, ok := e.Payload.(*MarketObservation)
	return m, ok
}

// Decision returns the payload as a decision.
func (e *Entry) Decision() (*Decision, bool) {
	d, ok := e.Payload.(*Decision)
	return d, ok
}
