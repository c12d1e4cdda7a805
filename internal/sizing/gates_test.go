package sizing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/skyline-trading/weatherbot/internal/config"
	"github.com/skyline-trading/weatherbot/internal/domain"
)

func strategyDefaults() config.StrategyConfig {
	return config.Defaults().Strategy
}

func TestConservativeGates(t *testing.T) {
	cfg := strategyDefaults()

	tests := []struct {
		name string
		in   GateInputs
		want domain.SkipReason
		ok   bool
	}{
		{
			name: "passes with solid edge and ev",
			in:   GateInputs{Mode: domain.ModeConservative, AskCents: 30, Prob: 0.42, Edge: 12, EV: 0.06},
			ok:   true,
		},
		{
			name: "edge below minimum",
			in:   GateInputs{Mode: domain.ModeConservative, AskCents: 30, Prob: 0.35, Edge: 5, EV: 0.06},
			want: domain.SkipNoEdge,
		},
		{
			name: "scaled edge on expensive contract",
			// 9¢ clears the base minimum of 8 but not 8 × 1.2 above 35¢.
			in:   GateInputs{Mode: domain.ModeConservative, AskCents: 40, Prob: 0.49, Edge: 9, EV: 0.06},
			want: domain.SkipNoEdge,
		},
		{
			name: "ev below minimum",
			in:   GateInputs{Mode: domain.ModeConservative, AskCents: 30, Prob: 0.40, Edge: 10, EV: 0.01},
			want: domain.SkipLowEV,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reason, _, ok := EvaluateGates(cfg, tt.in)
			assert.Equal(t, tt.ok, ok)
			if !tt.ok {
				assert.Equal(t, tt.want, reason)
			}
		})
	}
}

func TestHighConfidenceGate(t *testing.T) {
	cfg := strategyDefaults()
	cfg.RequireHighConfidence = true

	in := GateInputs{Mode: domain.ModeConservative, AskCents: 30, Prob: 0.45, Edge: 15, EV: 0.06, CILow: 0.28, CIHigh: 0.60}
	reason, _, ok := EvaluateGates(cfg, in)
	assert.False(t, ok)
	assert.Equal(t, domain.SkipCIOverlap, reason)

	// CI entirely above the ask passes.
	in.CILow = 0.35
	_, _, ok = EvaluateGates(cfg, in)
	assert.True(t, ok)

	// CI entirely below the ask also counts as conviction: the test is
	// whether the CI straddles the price, not which side it sits on.
	in.CILow = 0.10
	in.CIHigh = 0.25
	_, _, ok = EvaluateGates(cfg, in)
	assert.True(t, ok)
}

func TestRangeGates(t *testing.T) {
	cfg := strategyDefaults()

	// Range edge requirement is doubled: 12 < 8×2.
	in := GateInputs{Mode: domain.ModeConservative, IsRange: true, AskCents: 20, Prob: 0.32, Edge: 12, EV: 0.06}
	reason, _, ok := EvaluateGates(cfg, in)
	assert.False(t, ok)
	assert.Equal(t, domain.SkipNoEdge, reason)

	in.Edge = 18
	_, _, ok = EvaluateGates(cfg, in)
	assert.True(t, ok)

	// Overconfident range probability is treated as model error.
	in.Prob = 0.55
	reason, _, ok = EvaluateGates(cfg, in)
	assert.False(t, ok)
	assert.Equal(t, domain.SkipNoEdge, reason)
}

func TestLongshotGates(t *testing.T) {
	cfg := strategyDefaults()
	cfg.LongshotEnabled = true

	pass := GateInputs{Mode: domain.ModeLongshot, AskCents: 8, Prob: 0.55, Edge: 47, EV: 0.04}
	_, _, ok := EvaluateGates(cfg, pass)
	assert.True(t, ok)

	tooExpensive := pass
	tooExpensive.AskCents = 15
	reason, _, ok := EvaluateGates(cfg, tooExpensive)
	assert.False(t, ok)
	assert.Equal(t, domain.SkipPriceCeiling, reason)

	tooUncertain := pass
	tooUncertain.Prob = 0.40
	tooUncertain.Edge = 32
	reason, _, ok = EvaluateGates(cfg, tooUncertain)
	assert.False(t, ok)
	assert.Equal(t, domain.SkipNoEdge, reason)

	thinEdge := pass
	thinEdge.Edge = 20
	reason, _, ok = EvaluateGates(cfg, thinEdge)
	assert.False(t, ok)
	assert.Equal(t, domain.SkipNoEdge, reason)
}
