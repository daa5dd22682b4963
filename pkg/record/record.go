// Package record defines the record model stored by the memory subsystem.
//
// Three record kinds are supported:
//   - Conversation: an append-only exchange between the user and the assistant
//   - MarketObservation: a point-in-time market snapshot for a symbol
//   - Decision: a trading decision whose outcome is filled in later
//
// Every kind implements the Record interface so that stores and the manager
// can route, index and age records without knowing their concrete shape.
// Entry is the generic envelope returned to callers, carrying the shared
// bookkeeping (importance, access statistics, decayed relevance).
package record

import (
	"errors"
	"fmt"
	"time"
)

// Kind discriminates the three record kinds.
type Kind string

const (
	// KindConversation identifies conversation records.
	KindConversation Kind = "conversation"

	// KindMarket identifies market observation records.
	KindMarket Kind = "market_observation"

	// KindDecision identifies trading decision records.
	KindDecision Kind = "decision"
)

// Kinds lists every record kind in routing order.
var Kinds = []Kind{KindConversation, KindMarket, KindDecision}

// Valid reports whether k is a known record kind.
func (k Kind) Valid() bool {
	switch k {
	case KindConversation, KindMarket, KindDecision:
		return true
	}
	return false
}

// String returns the string representation of the kind.
func (k Kind) String() string {
	return string(k)
}

// ParseKind parses a kind name. Short aliases ("market", "conv") are accepted.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "conversation", "conv":
		return KindConversation, nil
	case "market_observation", "market":
		return KindMarket, nil
	case "decision":
		return KindDecision, nil
	}
	return "", fmt.Errorf("unknown record kind %q", s)
}

// ErrInvalidRecord indicates that a record failed validation.
var ErrInvalidRecord = errors.New("invalid record")

// Record is implemented by the three record kinds.
type Record interface {
	// RecordID returns the unique id of the record.
	RecordID() string

	// RecordKind returns the record kind.
	RecordKind() Kind

	// RecordTime returns the timestamp used for ordering, range queries and retention.
	RecordTime() time.Time

	// RecordMetadata returns the open metadata of the record.
	RecordMetadata() Metadata
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidRecord, fmt.Sprintf(format, args...))
}

// Clamp01 clamps v into [0, 1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// ClampSigned clamps v into [-1, 1].
func ClampSigned(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}
