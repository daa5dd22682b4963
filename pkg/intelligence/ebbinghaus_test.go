package intelligence_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/oceanbase/finmem-go/pkg/intelligence"
)

func TestRetention(t *testing.T) {
	manager := intelligence.NewEbbinghausManager(0.1, 0.3)
	now := time.Now()

	// Just touched
	assert.Equal(t, 1.0, manager.Retention(0, now, now))
	assert.Equal(t, 1.0, manager.Retention(0, now.Add(time.Hour), now), "future timestamps do not decay")

	// One day at the default rate
	retention := manager.Retention(0, now.Add(-24*time.Hour), now)
	assert.InDelta(t, math.Exp(-0.1), retention, 1e-9)

	// A faster rate decays more
	faster := manager.Retention(0.5, now.Add(-24*time.Hour), now)
	assert.Less(t, faster, retention)
}

func TestRetentionDecaysOverTime(t *testing.T) {
	manager := intelligence.NewEbbinghausManager(0.1, 0.3)
	now := time.Now()

	previous := 1.0
	for _, hoursAgo := range []float64{1, 24, 168, 24 * 365} {
		since := now.Add(-time.Duration(hoursAgo * float64(time.Hour)))
		retention := manager.Retention(0, since, now)
		assert.Less(t, retention, previous, "retention should decrease after %v hours", hoursAgo)
		assert.GreaterOrEqual(t, retention, 0.0)
		previous = retention
	}
}

func TestReinforce(t *testing.T) {
	manager := intelligence.NewEbbinghausManager(0.1, 0.3)

	assert.InDelta(t, 0.65, manager.Reinforce(0.5), 1e-9)
	assert.Equal(t, 1.0, manager.Reinforce(1.0))

	// Weak retention gains more than strong retention.
	assert.Greater(t, manager.Reinforce(0.2)-0.2, manager.Reinforce(0.8)-0.8)

	assert.Equal(t, 0.5, manager.ReinforceN(0.5, 0))
	assert.Greater(t, manager.ReinforceN(0.5, 3), manager.ReinforceN(0.5, 1))
	assert.Equal(t, manager.ReinforceN(0.1, 10), manager.ReinforceN(0.1, 1000), "accesses are capped")
}

func TestClassify(t *testing.T) {
	manager := intelligence.NewEbbinghausManager(0.1, 0.3)

	assert.Equal(t, intelligence.TierLongTerm, manager.Classify(0.9))
	assert.Equal(t, intelligence.TierLongTerm, manager.Classify(0.8))
	assert.Equal(t, intelligence.TierShortTerm, manager.Classify(0.7))
	assert.Equal(t, intelligence.TierWorking, manager.Classify(0.3))
}

func TestDecayRateForTier(t *testing.T) {
	manager := intelligence.NewEbbinghausManager(0.1, 0.3)

	assert.InDelta(t, 0.2, manager.DecayRateForTier(0.1, intelligence.TierWorking), 1e-9)
	assert.InDelta(t, 0.15, manager.DecayRateForTier(0.1, intelligence.TierShortTerm), 1e-9)
	assert.InDelta(t, 0.1, manager.DecayRateForTier(0.1, intelligence.TierLongTerm), 1e-9)
	assert.Equal(t, 1.0, manager.DecayRateForTier(0.8, intelligence.TierWorking), "clamped")
}

func TestNextReview(t *testing.T) {
	manager := intelligence.NewEbbinghausManager(0.1, 0.3)
	now := time.Now()

	assert.Equal(t, now.Add(24*time.Hour), manager.NextReview(0, now))
	assert.Equal(t, now.Add(264*time.Hour), manager.NextReview(1, now))
}
