package sizing

import (
	"fmt"

	"github.com/skyline-trading/weatherbot/internal/config"
	"github.com/skyline-trading/weatherbot/internal/domain"
)

// GateInputs are the candidate metrics checked against entry thresholds.
type GateInputs struct {
	Mode     domain.StrategyMode
	IsRange  bool
	AskCents int64
	Prob     float64
	Edge     float64 // cents
	EV       float64 // dollars per contract
	CILow    float64
	CIHigh   float64
}

// EvaluateGates applies the entry thresholds for the candidate's mode.
// It returns ok=true when every gate passes, otherwise the skip reason and a
// human-readable detail.
func EvaluateGates(cfg config.StrategyConfig, in GateInputs) (reason domain.SkipReason, detail string, ok bool) {
	if in.Mode == domain.ModeLongshot {
		return evaluateLongshot(cfg, in)
	}
	return evaluateConservative(cfg, in)
}

func evaluateConservative(cfg config.StrategyConfig, in GateInputs) (domain.SkipReason, string, bool) {
	minEdge := cfg.MinEdge
	if cfg.ScaledEdgeEnabled && in.AskCents > cfg.ScaledEdgePriceThreshold {
		minEdge *= cfg.ScaledEdgeMultiplier
	}
	if in.IsRange {
		minEdge *= cfg.RangeEdgeMultiplier
	}

	if in.Edge < minEdge {
		return domain.SkipNoEdge, fmt.Sprintf("edge %.1f < %.1f", in.Edge, minEdge), false
	}
	if in.EV < cfg.MinEV {
		return domain.SkipLowEV, fmt.Sprintf("ev %.3f < %.3f", in.EV, cfg.MinEV), false
	}
	if cfg.RequireHighConfidence {
		// High confidence means the CI clears the ask on either side;
		// straddling it means the market might be right.
		ask := float64(in.AskCents)
		if in.CILow*100 <= ask && in.CIHigh*100 >= ask {
			return domain.SkipCIOverlap,
				fmt.Sprintf("ci [%.0f, %.0f] straddles ask %d", in.CILow*100, in.CIHigh*100, in.AskCents), false
		}
	}

	if in.IsRange && in.Prob > cfg.RangeMaxProbability {
		// The model rarely earns range probabilities this high; treat
		// them as overconfidence rather than signal.
		return domain.SkipNoEdge, fmt.Sprintf("range prob %.2f > %.2f", in.Prob, cfg.RangeMaxProbability), false
	}
	return "", "", true
}

func evaluateLongshot(cfg config.StrategyConfig, in GateInputs) (domain.SkipReason, string, bool) {
	if in.AskCents > cfg.LongshotMaxPrice {
		return domain.SkipPriceCeiling, fmt.Sprintf("ask %d > longshot max %d", in.AskCents, cfg.LongshotMaxPrice), false
	}
	if in.Prob < cfg.LongshotMinProb {
		return domain.SkipNoEdge, fmt.Sprintf("prob %.2f < %.2f", in.Prob, cfg.LongshotMinProb), false
	}
	if in.Edge < cfg.LongshotMinEdge {
		return domain.SkipNoEdge, fmt.Sprintf("edge %.1f < %.1f", in.Edge, cfg.LongshotMinEdge), false
	}
	return "", "", true
}
