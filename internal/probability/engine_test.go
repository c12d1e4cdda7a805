package probability

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyline-trading/weatherbot/internal/domain"
)

func ensembleOf(target time.Time, temps ...float64) domain.Ensemble {
	samples := make([]domain.ForecastSample, len(temps))
	var sum float64
	for i, v := range temps {
		samples[i] = domain.ForecastSample{Source: "test", TempF: v, Weight: 1}
		sum += v
	}
	return domain.Ensemble{
		City:         "NY",
		Series:       "KXHIGHNY",
		TargetDate:   target,
		Samples:      samples,
		WeightedMean: sum / float64(len(temps)),
	}
}

func TestDistributionBlendsHistoricalError(t *testing.T) {
	e := NewEngine(DefaultConfig())
	target := time.Date(2026, 1, 28, 0, 0, 0, 0, time.UTC)
	// Evaluate mid-target-day so horizon inflation is small and predictable.
	now := time.Date(2026, 1, 28, 14, 0, 0, 0, time.UTC)

	ens := ensembleOf(target, 30, 34, 38)
	sampleStd := math.Sqrt(32.0 / 3.0)
	noHist := e.Distribution(ens, HistoricalError{}, 0, now)
	withHist := e.Distribution(ens, HistoricalError{MeanAbsError: 1.0, Count: 20}, 0, now)

	assert.Equal(t, 34.0, noHist.Mean)
	// Historical MAE of 1°F implies sigma ~1.25, pulling the blend below
	// the pure sample std.
	assert.Less(t, withHist.Std, noHist.Std)

	expectedBlend := 0.7*sampleStd + 0.3*(1.0*math.Sqrt(math.Pi/2))
	inflation := 0.1 * 10 // 10 hours left on the target day
	assert.InDelta(t, expectedBlend+inflation, withHist.Std, 1e-9)
}

func TestDistributionSingleSampleUsesHistory(t *testing.T) {
	e := NewEngine(DefaultConfig())
	target := time.Date(2026, 1, 28, 0, 0, 0, 0, time.UTC)
	now := time.Date(2026, 1, 28, 14, 0, 0, 0, time.UTC)

	// One sample has no spread of its own: sigma comes from history alone
	// instead of a blend against zero.
	ens := ensembleOf(target, 34)
	dist := e.Distribution(ens, HistoricalError{MeanAbsError: 2.0, Count: 20}, 0, now)

	histStd := 2.0 * math.Sqrt(math.Pi/2)
	inflation := 0.1 * 10 // 10 hours left on the target day
	assert.InDelta(t, histStd+inflation, dist.Std, 1e-9)
}

func TestDistributionFloor(t *testing.T) {
	e := NewEngine(DefaultConfig())
	target := time.Date(2026, 6, 10, 0, 0, 0, 0, time.UTC)
	now := time.Date(2026, 6, 10, 22, 0, 0, 0, time.UTC)

	// Nearly identical samples: std collapses, floor takes over.
	ens := ensembleOf(target, 80, 80.1, 80.2)
	dist := e.Distribution(ens, HistoricalError{}, 0, now)
	assert.GreaterOrEqual(t, dist.Std, 1.0)

	// A higher per-city floor wins over the global one.
	dist = e.Distribution(ens, HistoricalError{}, 3.0, now)
	assert.GreaterOrEqual(t, dist.Std, 3.0)
}

func TestHorizonInflation(t *testing.T) {
	e := NewEngine(DefaultConfig())
	target := time.Date(2026, 1, 30, 0, 0, 0, 0, time.UTC)

	twoDaysOut := time.Date(2026, 1, 28, 0, 0, 0, 0, time.UTC)
	sameDayMorning := time.Date(2026, 1, 30, 6, 0, 0, 0, time.UTC)
	sameDayEvening := time.Date(2026, 1, 30, 21, 0, 0, 0, time.UTC)

	ens := ensembleOf(target, 30, 34, 38)
	base := e.Distribution(ens, HistoricalError{}, 0, sameDayEvening).Std - 0.1*3

	// Two full days out: half a degree per day.
	far := e.Distribution(ens, HistoricalError{}, 0, twoDaysOut)
	assert.InDelta(t, base+0.5*2, far.Std, 1e-9)

	// On the target day the remaining hours drive the inflation.
	morning := e.Distribution(ens, HistoricalError{}, 0, sameDayMorning)
	assert.InDelta(t, base+0.1*18, morning.Std, 1e-9)

	evening := e.Distribution(ens, HistoricalError{}, 0, sameDayEvening)
	assert.InDelta(t, base+0.1*3, evening.Std, 1e-9)
	assert.Less(t, evening.Std, far.Std)
}

func TestProbabilityOf(t *testing.T) {
	e := NewEngine(DefaultConfig())
	dist := Distribution{Mean: 34, Std: 2}

	above := e.ProbabilityOf(dist, domain.MarketCondition{Kind: domain.ConditionAbove, Threshold: 34})
	assert.InDelta(t, 0.5, above, 1e-6)

	below := e.ProbabilityOf(dist, domain.MarketCondition{Kind: domain.ConditionBelow, Threshold: 34})
	assert.InDelta(t, 0.5, below, 1e-6)

	// Above and below the same threshold partition the bracket table.
	assert.InDelta(t, 1.0, above+below, 1e-9)

	// One sigma above the threshold: ~84%.
	easy := e.ProbabilityOf(dist, domain.MarketCondition{Kind: domain.ConditionAbove, Threshold: 32})
	assert.InDelta(t, 0.8413, easy, 1e-3)

	// The range takes half of each flanking 2-degree bracket.
	rng := e.ProbabilityOf(dist, domain.MarketCondition{Kind: domain.ConditionBetween, Low: 33, High: 35})
	assert.InDelta(t, 0.3413, rng, 1e-3)
}

func TestProbabilityOfMidBracketThreshold(t *testing.T) {
	e := NewEngine(DefaultConfig())
	dist := Distribution{Mean: 34, Std: 2}

	// 33 cuts the [32, 34) bracket in half: everything at or above 34
	// plus half of that bracket's mass.
	cut := e.ProbabilityOf(dist, domain.MarketCondition{Kind: domain.ConditionAbove, Threshold: 33})
	assert.InDelta(t, 0.5+0.3413/2, cut, 1e-3)

	complement := e.ProbabilityOf(dist, domain.MarketCondition{Kind: domain.ConditionBelow, Threshold: 33})
	assert.InDelta(t, 1.0, cut+complement, 1e-9)
}

func TestProbabilityClamped(t *testing.T) {
	e := NewEngine(DefaultConfig())
	dist := Distribution{Mean: 80, Std: 1}

	sure := e.ProbabilityOf(dist, domain.MarketCondition{Kind: domain.ConditionAbove, Threshold: 40})
	assert.Equal(t, 0.99, sure)

	hopeless := e.ProbabilityOf(dist, domain.MarketCondition{Kind: domain.ConditionAbove, Threshold: 120})
	assert.Equal(t, 0.01, hopeless)
}

func TestConfidenceInterval(t *testing.T) {
	e := NewEngine(DefaultConfig())
	target := time.Date(2026, 1, 28, 0, 0, 0, 0, time.UTC)
	now := time.Date(2026, 1, 27, 12, 0, 0, 0, time.UTC)
	cond := domain.MarketCondition{Kind: domain.ConditionAbove, Threshold: 33}

	ens := ensembleOf(target, 32, 34, 35, 36, 33)
	dist := e.Distribution(ens, HistoricalError{}, 0, now)
	lo, hi := e.ConfidenceInterval(ens, dist, cond)

	require.LessOrEqual(t, lo, hi)
	assert.GreaterOrEqual(t, lo, 0.01)
	assert.LessOrEqual(t, hi, 0.99)

	p := e.ProbabilityOf(dist, cond)
	assert.GreaterOrEqual(t, p, lo)
	assert.LessOrEqual(t, p, hi)
}

func TestEstimateDegenerateEnsemble(t *testing.T) {
	e := NewEngine(DefaultConfig())
	cond := domain.MarketCondition{Kind: domain.ConditionAbove, Threshold: 33}

	est := e.Estimate(ensembleOf(time.Now(), 34), HistoricalError{}, 0, cond, time.Now())
	assert.Equal(t, 0.5, est.Prob)
	assert.Equal(t, 0.0, est.CILow)
	assert.Equal(t, 1.0, est.CIHigh)
}

func TestBrackets(t *testing.T) {
	dist := Distribution{Mean: 50, Std: 3}
	brackets := Brackets(dist, 2)

	require.NotEmpty(t, brackets)
	var total float64
	var best Bracket
	for _, b := range brackets {
		total += b.Prob
		if b.Prob > best.Prob {
			best = b
		}
	}
	assert.InDelta(t, 1.0, total, 1e-9)
	// The modal bracket straddles the mean.
	assert.LessOrEqual(t, best.Low, 50.0)
	assert.GreaterOrEqual(t, best.High, 50.0)
}
