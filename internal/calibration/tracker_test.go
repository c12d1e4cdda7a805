package calibration

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/skyline-trading/weatherbot/internal/domain"
)

func newTracker(mutate func(*Config)) *Tracker {
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	return New(cfg, slog.Default())
}

func settlement(ticker string, won bool, at time.Time) domain.Settlement {
	return domain.Settlement{Ticker: ticker, Won: won, SettledAt: at}
}

func TestDrawdownMultiplier(t *testing.T) {
	tr := newTracker(nil)
	now := time.Now()

	assert.Equal(t, 1.0, tr.DrawdownMultiplier())

	tr.Observe(settlement("KXHIGHNY-26JAN28-T26", false, now))
	assert.Equal(t, 1.0, tr.DrawdownMultiplier())

	tr.Observe(settlement("KXHIGHCHI-26JAN28-T20", false, now))
	assert.Equal(t, 0.75, tr.DrawdownMultiplier())

	tr.Observe(settlement("KXHIGHMIA-26JAN28-T80", false, now))
	assert.Equal(t, 0.5, tr.DrawdownMultiplier())

	// A win resets the streak.
	tr.Observe(settlement("KXHIGHNY-26JAN29-T30", true, now))
	assert.Equal(t, 1.0, tr.DrawdownMultiplier())
}

func TestLossStreakCooldown(t *testing.T) {
	tr := newTracker(nil)
	now := time.Now()

	for _, ticker := range []string{
		"KXHIGHNY-26JAN28-T26",
		"KXHIGHCHI-26JAN28-T20",
		"KXHIGHMIA-26JAN28-T80",
	} {
		assert.False(t, tr.OnCooldown())
		tr.Observe(settlement(ticker, false, now))
	}
	assert.True(t, tr.OnCooldown())
}

func TestCooldownExpires(t *testing.T) {
	tr := newTracker(nil)
	past := time.Now().Add(-3 * time.Hour)

	for i := 0; i < 3; i++ {
		tr.Observe(settlement("KXHIGHNY-26JAN28-T26", false, past))
	}
	// Cooldown is anchored at the settlement time, 3h ago, and lasts 2h.
	assert.False(t, tr.OnCooldown())
}

func TestObserveIgnoresUnparseableTickers(t *testing.T) {
	tr := newTracker(nil)
	now := time.Now()

	tr.Observe(settlement("GARBAGE", false, now))
	tr.Observe(settlement("GARBAGE", false, now))
	tr.Observe(settlement("GARBAGE", false, now))
	assert.False(t, tr.OnCooldown())
	assert.Equal(t, 1.0, tr.DrawdownMultiplier())
}

func TestMarketEnabledWinRateFloor(t *testing.T) {
	tr := newTracker(nil)
	now := time.Now()

	// Below the sample minimum everything trades.
	assert.True(t, tr.MarketEnabled("KXHIGHNY"))

	// 2 wins, 8 losses: 20% is under the 25% floor.
	for i := 0; i < 2; i++ {
		tr.Observe(settlement("KXHIGHNY-26JAN28-T26", true, now))
	}
	for i := 0; i < 8; i++ {
		tr.Observe(settlement("KXHIGHNY-26JAN28-T26", false, now))
	}
	assert.False(t, tr.MarketEnabled("KXHIGHNY"))

	// One more win lifts the rate to 3/11 > 25%.
	tr.Observe(settlement("KXHIGHNY-26JAN28-T26", true, now))
	assert.True(t, tr.MarketEnabled("KXHIGHNY"))
}

func TestMarketEnabledOperatorDisable(t *testing.T) {
	tr := newTracker(func(c *Config) {
		c.DisabledSeries = []string{"kxhighden"}
	})
	assert.False(t, tr.MarketEnabled("KXHIGHDEN"))
	assert.True(t, tr.MarketEnabled("KXHIGHNY"))
}

func TestConfidenceMultiplier(t *testing.T) {
	tr := newTracker(nil)
	now := time.Now()

	assert.Equal(t, 1.0, tr.ConfidenceMultiplier("KXHIGHNY"))

	// 3 wins, 2 losses: rate 0.6 maps to 0.8.
	for i := 0; i < 3; i++ {
		tr.Observe(settlement("KXHIGHNY-26JAN28-T26", true, now))
	}
	for i := 0; i < 2; i++ {
		tr.Observe(settlement("KXHIGHNY-26JAN28-T26", false, now))
	}
	assert.InDelta(t, 0.8, tr.ConfidenceMultiplier("KXHIGHNY"), 1e-9)

	// Other series are unaffected.
	assert.Equal(t, 1.0, tr.ConfidenceMultiplier("KXHIGHCHI"))
}

func TestMinStd(t *testing.T) {
	tr := newTracker(nil)

	assert.Equal(t, 3.5, tr.MinStd("DEN", time.January))
	assert.Equal(t, 2.5, tr.MinStd("DEN", time.July))
	assert.Equal(t, 1.0, tr.MinStd("MIA", time.August))
	// March still counts as winter.
	assert.Equal(t, 2.5, tr.MinStd("NY", time.March))
	// Unknown cities fall back to the coastal defaults.
	assert.Equal(t, 2.0, tr.MinStd("ZZZ", time.December))
	assert.Equal(t, 1.5, tr.MinStd("ZZZ", time.June))
}
