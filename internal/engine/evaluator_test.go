package engine

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyline-trading/weatherbot/internal/cache/memory"
	"github.com/skyline-trading/weatherbot/internal/config"
	"github.com/skyline-trading/weatherbot/internal/domain"
	"github.com/skyline-trading/weatherbot/internal/probability"
)

func newTestEngine(t *testing.T, ex Exchange, mutate func(*config.Config)) *Engine {
	t.Helper()
	cfg := config.Defaults()
	cfg.Mode = "paper"
	if mutate != nil {
		mutate(&cfg)
	}
	return New(Options{
		Config:   &cfg,
		Exchange: ex,
		Books:    memory.NewBookCache(),
		Locks:    memory.NewLockManager(),
		Logger:   slog.Default(),
	})
}

func above(threshold float64) domain.MarketCondition {
	return domain.MarketCondition{Kind: domain.ConditionAbove, Threshold: threshold}
}

func below(threshold float64) domain.MarketCondition {
	return domain.MarketCondition{Kind: domain.ConditionBelow, Threshold: threshold}
}

func between(low, high float64) domain.MarketCondition {
	return domain.MarketCondition{Kind: domain.ConditionBetween, Low: low, High: high}
}

func TestWithinDateWindow(t *testing.T) {
	now := time.Date(2026, time.January, 28, 14, 0, 0, 0, time.UTC)
	day := func(offset int) time.Time { return now.AddDate(0, 0, offset) }

	assert.True(t, withinDateWindow(day(0), now, 1))
	assert.True(t, withinDateWindow(day(1), now, 1))
	assert.False(t, withinDateWindow(day(2), now, 1))
	assert.False(t, withinDateWindow(day(-1), now, 1))
	assert.True(t, withinDateWindow(day(3), now, 3))
}

func TestOutcomeDetermined(t *testing.T) {
	tests := []struct {
		name     string
		kind     domain.MarketType
		cond     domain.MarketCondition
		observed float64
		want     bool
	}{
		{"high above, reached", domain.MarketTypeHigh, above(50), 51, true},
		{"high above, not yet", domain.MarketTypeHigh, above(50), 48, false},
		{"high below, breached", domain.MarketTypeHigh, below(50), 50, true},
		{"high below, still under", domain.MarketTypeHigh, below(50), 47, false},
		{"high range, topped out", domain.MarketTypeHigh, between(48, 52), 52, true},
		{"high range, inside", domain.MarketTypeHigh, between(48, 52), 50, false},
		{"low below, reached", domain.MarketTypeLow, below(30), 29, true},
		{"low below, not yet", domain.MarketTypeLow, below(30), 33, false},
		{"low above, breached", domain.MarketTypeLow, above(30), 30, true},
		{"low above, holding", domain.MarketTypeLow, above(30), 34, false},
		{"low range, fell through", domain.MarketTypeLow, between(28, 32), 27, true},
		{"low range, inside", domain.MarketTypeLow, between(28, 32), 29, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, detail := outcomeDetermined(tt.kind, tt.cond, tt.observed)
			assert.Equal(t, tt.want, got)
			if got {
				assert.NotEmpty(t, detail)
			}
		})
	}
}

func TestDirectionAgrees(t *testing.T) {
	// YES on "above 50" wants the mean above the strike.
	assert.True(t, directionAgrees(above(50), domain.SideYes, 53))
	assert.False(t, directionAgrees(above(50), domain.SideYes, 47))

	// NO on "above 50" wants the mean below.
	assert.True(t, directionAgrees(above(50), domain.SideNo, 47))
	assert.False(t, directionAgrees(above(50), domain.SideNo, 53))

	// Below conditions mirror.
	assert.True(t, directionAgrees(below(50), domain.SideYes, 47))
	assert.False(t, directionAgrees(below(50), domain.SideNo, 47))

	// YES on a range wants the mean inside, NO outside.
	assert.True(t, directionAgrees(between(48, 52), domain.SideYes, 50))
	assert.False(t, directionAgrees(between(48, 52), domain.SideYes, 53))
	assert.True(t, directionAgrees(between(48, 52), domain.SideNo, 53))
}

func TestForecastDistanceGates(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	ens := func(mean float64) domain.Ensemble { return domain.Ensemble{WeightedMean: mean} }

	_, _, ok := e.forecastDistanceGates(above(50), ens(52.5))
	assert.True(t, ok)

	reason, _, ok := e.forecastDistanceGates(above(50), ens(50.4))
	assert.False(t, ok)
	assert.Equal(t, domain.SkipNearThreshold, reason)

	// Range markets gate on distance from either boundary.
	reason, _, ok = e.forecastDistanceGates(between(40, 60), ens(41.5))
	assert.False(t, ok)
	assert.Equal(t, domain.SkipRangeBoundary, reason)

	_, _, ok = e.forecastDistanceGates(between(40, 60), ens(50))
	assert.True(t, ok)
}

func TestChooseSidePicksLargerEdge(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	est := probability.Estimate{Prob: 0.45, CILow: 0.38, CIHigh: 0.55}
	quote := domain.Quote{YesBid: 24, YesAsk: 30, NoBid: 62, NoAsk: 76}

	side, ask, prob, ciLow, ciHigh, skip := e.chooseSide(above(50), est, quote)
	require.Nil(t, skip)
	assert.Equal(t, domain.SideYes, side)
	assert.Equal(t, int64(30), ask)
	assert.Equal(t, 0.45, prob)
	assert.Equal(t, 0.38, ciLow)
	assert.Equal(t, 0.55, ciHigh)
}

func TestChooseSideNoWithComplementedCI(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	est := probability.Estimate{Prob: 0.20, CILow: 0.15, CIHigh: 0.30}
	quote := domain.Quote{YesBid: 55, YesAsk: 75, NoBid: 18, NoAsk: 25}

	side, ask, prob, ciLow, ciHigh, skip := e.chooseSide(above(50), est, quote)
	require.Nil(t, skip)
	assert.Equal(t, domain.SideNo, side)
	assert.Equal(t, int64(25), ask)
	assert.InDelta(t, 0.80, prob, 1e-9)
	assert.InDelta(t, 0.70, ciLow, 1e-9)
	assert.InDelta(t, 0.85, ciHigh, 1e-9)
}

func TestChooseSideNoPriceCeiling(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	est := probability.Estimate{Prob: 0.20, CILow: 0.15, CIHigh: 0.30}
	// NO ask 35 breaches the 30 cent NO ceiling.
	quote := domain.Quote{YesBid: 55, YesAsk: 75, NoBid: 28, NoAsk: 35}

	_, _, _, _, _, skip := e.chooseSide(above(50), est, quote)
	require.NotNil(t, skip)
	assert.Equal(t, domain.SkipPriceCeiling, skip.Skip)
}

func TestChooseSideYesPriceCeiling(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	est := probability.Estimate{Prob: 0.90, CILow: 0.85, CIHigh: 0.95}
	// YES ask 60 breaches the 55 cent buy ceiling.
	quote := domain.Quote{YesBid: 50, YesAsk: 60, NoBid: 32, NoAsk: 45}

	_, _, _, _, _, skip := e.chooseSide(above(50), est, quote)
	require.NotNil(t, skip)
	assert.Equal(t, domain.SkipPriceCeiling, skip.Skip)
}

func TestExclusionExpires(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	now := time.Now()

	e.exclude("KXHIGHNY-26JAN28-T26", now.Add(time.Hour))
	assert.True(t, e.isExcluded("KXHIGHNY-26JAN28-T26", now))
	assert.False(t, e.isExcluded("KXHIGHNY-26JAN28-T26", now.Add(2*time.Hour)))
	// The expired entry was pruned.
	assert.False(t, e.isExcluded("KXHIGHNY-26JAN28-T26", now))
}

func TestTrackPositionAccumulates(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	now := time.Now()
	d := domain.TradeDecision{
		Ticker:     "KXHIGHNY-26JAN28-T26",
		BaseMarket: "KXHIGHNY-26JAN28",
		Side:       domain.SideYes,
		Count:      5,
		PriceCents: 30,
	}

	e.trackPosition(d, now)
	e.trackPosition(d, now)

	active := e.activePositions()
	require.Len(t, active, 1)
	assert.Equal(t, int64(10), active[0].Count)
	assert.Equal(t, int64(30), active[0].EntryCents)

	e.closePosition(d.Ticker, 40, now)
	assert.Empty(t, e.activePositions())
}

func TestEntriesHaltedResetsNextDay(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	day := time.Date(2026, time.January, 28, 20, 0, 0, 0, time.UTC)

	assert.False(t, e.entriesHalted(day))
	e.haltEntriesFor(day)
	assert.True(t, e.entriesHalted(day))
	assert.True(t, e.entriesHalted(day.Add(time.Hour)))
	assert.False(t, e.entriesHalted(day.AddDate(0, 0, 1)))
}
