package record_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/finmem-go/pkg/record"
)

func TestParseKind(t *testing.T) {
	for in, want := range map[string]record.Kind{
		"conversation":       record.KindConversation,
		"conv":               record.KindConversation,
		"market":             record.KindMarket,
		"market_observation": record.KindMarket,
		"decision":           record.KindDecision,
	} {
		got, err := record.ParseKind(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
		assert.True(t, got.Valid())
	}

	_, err := record.ParseKind("portfolio")
	assert.Error(t, err)
	assert.False(t, record.Kind("portfolio").Valid())
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, record.Clamp01(-0.5))
	assert.Equal(t, 1.0, record.Clamp01(1.7))
	assert.Equal(t, 0.3, record.Clamp01(0.3))
	assert.Equal(t, -1.0, record.ClampSigned(-3))
	assert.Equal(t, 1.0, record.ClampSigned(2))
	assert.Equal(t, -0.4, record.ClampSigned(-0.4))
}

func TestEntrySetters(t *testing.T) {
	created := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	e := record.NewEntry(&record.MarketObservation{ID: "m1", Symbol: "AAPL", Timestamp: created, Price: 1})

	assert.Equal(t, "m1", e.ID)
	assert.Equal(t, record.KindMarket, e.Kind)
	assert.Equal(t, 1.0, e.RelevanceScore)

	e.SetRelevance(1.4)
	assert.Equal(t, 1.0, e.RelevanceScore)
	e.SetRelevance(-0.2)
	assert.Equal(t, 0.0, e.RelevanceScore)
	e.SetDecayRate(2)
	assert.Equal(t, 1.0, e.DecayRate)
	e.SetDecayRate(-1)
	assert.Equal(t, 0.0, e.DecayRate)
	e.SetImportance(0.42)
	assert.Equal(t, 0.42, e.Importance)

	e.SetAccess(3, created.Add(-time.Hour))
	assert.Equal(t, 3, e.AccessCount)
	assert.Equal(t, created, e.LastAccessedAt)
	e.SetAccess(4, created.Add(time.Hour))
	assert.Equal(t, created.Add(time.Hour), e.LastAccessedAt)

	obs, ok := e.Market()
	require.True(t, ok)
	assert.Equal(t, "AAPL", obs.Symbol)
	_, ok = e.Decision()
	assert.False(t, ok)
}

func TestConversationAppend(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	c := &record.Conversation{ID: "c1", Context: "  Rebalancing ", CreatedAt: start, UpdatedAt: start}

	require.NoError(t, c.Append(record.RoleUser, "trim tech?", start.Add(time.Minute)))
	assert.Equal(t, start.Add(time.Minute), c.UpdatedAt)

	require.NoError(t, c.Append(record.RoleAssistant, "trim to 30%", start.Add(-time.Hour)))
	assert.Equal(t, start.Add(time.Minute), c.UpdatedAt, "UpdatedAt must not move backwards")
	require.Len(t, c.Messages, 2)
	assert.Equal(t, record.RoleAssistant, c.Messages[1].Role)

	err := c.Append(record.Role("broker"), "hello", start)
	assert.ErrorIs(t, err, record.ErrInvalidRecord)
	assert.Len(t, c.Messages, 2)

	assert.Equal(t, "rebalancing", c.Topic())
}

func TestConversationNormalizeAndClone(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	c := &record.Conversation{
		ID: "c1",
		Messages: []record.Message{
			{Role: record.RoleUser, Content: "hi", Timestamp: now.Add(time.Hour)},
		},
	}
	c.Normalize(now)
	assert.Equal(t, now, c.CreatedAt)
	assert.Equal(t, now.Add(time.Hour), c.UpdatedAt)
	require.NoError(t, c.Validate())

	cp := c.Clone()
	cp.Messages[0].Content = "changed"
	assert.Equal(t, "hi", c.Messages[0].Content)

	assert.ErrorIs(t, (&record.Conversation{}).Validate(), record.ErrInvalidRecord)
}

func TestMarketObservationNormalize(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	high, low := 3.5, -1.2
	m := &record.MarketObservation{ID: "m1", Symbol: " aapl ", Price: 187.2, SentimentScore: &high}
	m.Normalize(now)
	assert.Equal(t, "AAPL", m.Symbol)
	assert.Equal(t, now, m.Timestamp)
	assert.Equal(t, 1.0, *m.SentimentScore)
	assert.Equal(t, 3.5, high, "caller value is not modified")

	m.SentimentScore = &low
	m.Normalize(now)
	assert.Equal(t, -1.0, *m.SentimentScore)
	require.NoError(t, m.Validate())

	cp := m.Clone()
	*cp.SentimentScore = 0.5
	assert.Equal(t, -1.0, *m.SentimentScore)
}

func TestMarketObservationValidate(t *testing.T) {
	valid := func() *record.MarketObservation {
		return &record.MarketObservation{ID: "m1", Symbol: "AAPL", Price: 1, Volume: 0}
	}
	require.NoError(t, valid().Validate())

	for name, mutate := range map[string]func(m *record.MarketObservation){
		"empty id":        func(m *record.MarketObservation) { m.ID = "" },
		"empty symbol":    func(m *record.MarketObservation) { m.Symbol = "" },
		"zero price":      func(m *record.MarketObservation) { m.Price = 0 },
		"negative volume": func(m *record.MarketObservation) { m.Volume = -1 },
	} {
		m := valid()
		mutate(m)
		assert.ErrorIs(t, m.Validate(), record.ErrInvalidRecord, name)
	}
}

func TestDecisionOutcome(t *testing.T) {
	ts := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	d := &record.Decision{ID: "d1", Symbol: " aapl", Action: "buy", Confidence: "high", Timestamp: ts}
	d.Normalize(ts)
	assert.Equal(t, "AAPL", d.Symbol)
	assert.Equal(t, record.ActionBuy, d.Action)
	assert.Equal(t, record.ConfidenceHigh, d.Confidence)
	assert.Equal(t, ts, d.UpdatedAt)
	assert.Equal(t, record.BucketPending, d.Bucket())
	assert.False(t, d.HasOutcome())

	d.SetOutcome(0.1, ts.Add(time.Hour))
	v, ok := d.Outcome()
	require.True(t, ok)
	assert.Equal(t, 0.1, v)
	assert.Equal(t, ts.Add(time.Hour), d.UpdatedAt)
	assert.Equal(t, record.BucketWin, d.Bucket())

	d.SetOutcome(-0.02, ts)
	assert.Equal(t, ts.Add(time.Hour), d.UpdatedAt)
	assert.Equal(t, record.BucketSmallLoss, d.Bucket())

	d.SetOutcome(-0.05, ts)
	assert.Equal(t, record.BucketLoss, d.Bucket())

	zero := 0.0
	assert.Equal(t, record.BucketSmallLoss, record.BucketFor(&zero))

	cp := d.Clone()
	*cp.ActualOutcome = 1
	v, _ = d.Outcome()
	assert.Equal(t, -0.05, v)

	assert.ErrorIs(t, (&record.Decision{ID: "d2", Symbol: "AAPL"}).Validate(), record.ErrInvalidRecord)
}
