package sizing

import (
	"math"

	"github.com/skyline-trading/weatherbot/internal/domain"
)

// ConfidenceInputs are the signals blended into the confidence score.
type ConfidenceInputs struct {
	Edge        float64 // cents
	CILow       float64
	CIHigh      float64
	SourceCount int
	EV          float64 // dollars per contract
}

// ConfidenceScore blends edge size, CI tightness, source count and EV into a
// single score in [0.1, 1.0]. The floor keeps a marginal-but-accepted trade
// from being sized to zero.
func ConfidenceScore(in ConfidenceInputs) float64 {
	edgeNorm := clamp01(in.Edge / 20)
	ciNorm := clamp01(1 - (in.CIHigh - in.CILow))
	srcNorm := clamp01(float64(in.SourceCount) / 5)
	evNorm := clamp01(in.EV / 0.10)

	score := 0.35*edgeNorm + 0.25*ciNorm + 0.20*srcNorm + 0.20*evNorm
	return math.Min(1.0, math.Max(0.1, score))
}

// ConfidenceMultiplier maps the score to a size multiplier. Longshot sizing
// leans much harder on confidence because the per-contract stake is small.
func ConfidenceMultiplier(score float64, mode domain.StrategyMode) float64 {
	if mode == domain.ModeLongshot {
		return 1 + 4*score
	}
	return 0.5 + 1.0*score
}

func clamp01(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}
