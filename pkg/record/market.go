package record

import (
	"strings"
	"time"
)

// MarketObservation is a point-in-time market snapshot for one symbol.
type MarketObservation struct {
	// ID is the unique id of the observation.
	ID string `json:"id"`

	// Symbol is the upper-cased ticker.
	Symbol string `json:"symbol"`

	// Timestamp is when the observation was taken.
	Timestamp time.Time `json:"timestamp"`

	// Price is the observed price. Must be positive.
	Price float64 `json:"price"`

	// Volume is the traded volume. Must not be negative.
	Volume float64 `json:"volume"`

	// MarketCap is the market capitalisation, if known.
	MarketCap *float64 `json:"market_cap,omitempty"`

	// Indicators holds technical indicator values (rsi, macd, trend, ...).
	Indicators Metadata `json:"indicators,omitempty"`

	// SentimentScore is the sentiment in [-1, 1], if known.
	SentimentScore *float64 `json:"sentiment_score,omitempty"`

	// Metadata contains additional caller supplied attributes.
	Metadata Metadata `json:"metadata,omitempty"`
}

// RecordID implements Record.
func (m *MarketObservation) RecordID() string { return m.ID }

// RecordKind implements Record.
func (m *MarketObservation) RecordKind() Kind { return KindMarket }

// RecordTime implements Record.
func (m *MarketObservation) RecordTime() time.Time { return m.Timestamp }

// RecordMetadata implements Record.
func (m *MarketObservation) RecordMetadata() Metadata { return m.Metadata }

// Normalize upper-cases the symbol, clamps the sentiment and fills a zero timestamp.
func (m *MarketObservation) Normalize(now time.Time) {
	m.Symbol = NormalizeSymbol(m.Symbol)
	if m.Timestamp.IsZero() {
		m.Timestamp = now
	}
	if m.SentimentScore != nil {
		s := ClampSigned(*m.SentimentScore)
		m.SentimentScore = &s
	}
}

// Validate checks the observation invariants.
func (m *MarketObservation) Validate() error {
	if m.ID == "" {
		return invalid("market observation: empty id")
	}
	if m.Symbol == "" {
		return invalid("market observation %s: empty symbol", m.ID)
	}
	if m.Price <= 0 {
		return invalid("market observation %s: price must be positive, got %v", m.ID, m.Price)
	}
	if m.Volume < 0 {
		return invalid("market observation %s: negative volume %v", m.ID, m.Volume)
	}
	return nil
}

// Clone returns a deep copy.
func (m *MarketObservation) Clone() *MarketObservation {
	cp := *m
	if m.MarketCap != nil {
		v := *m.MarketCap
		cp.MarketCap = &v
	}
	if m.SentimentScore != nil {
		v := *m.SentimentScore
		cp.SentimentScore = &v
	}
	cp.Indicators = m.Indicators.Clone()
	cp.Metadata = m.Metadata.Clone()
	return &cp
}

// NormalizeSymbol trims and upper-cases a ticker symbol.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
