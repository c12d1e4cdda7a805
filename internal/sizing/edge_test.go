package sizing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEdge(t *testing.T) {
	assert.InDelta(t, 10.0, Edge(0.60, 50), 1e-9)
	assert.InDelta(t, -5.0, Edge(0.25, 30), 1e-9)
	assert.InDelta(t, 0.0, Edge(0.50, 50), 1e-9)
}

func TestExpectedValue(t *testing.T) {
	// p=0.70 at 50¢ with 5% fee: win nets 1 − 0.50 − 0.05, loss costs 0.50.
	ev := ExpectedValue(0.70, 50, 0.05)
	assert.InDelta(t, 0.70*0.45-0.30*0.50, ev, 1e-9)

	// Fair coin at fair price loses exactly the fee expectation.
	ev = ExpectedValue(0.50, 50, 0.05)
	assert.InDelta(t, -0.025, ev, 1e-9)
}

func TestKelly(t *testing.T) {
	// p=0.60 at 50¢: b=2, full Kelly = (1.2−0.4)/2 = 0.4, half Kelly = 0.2.
	assert.InDelta(t, 0.20, Kelly(0.60, 50, 0.5, 0.25), 1e-9)

	// Negative full Kelly stakes nothing.
	assert.Equal(t, 0.0, Kelly(0.25, 50, 0.5, 0.25))

	// The cap binds on extreme edges.
	assert.Equal(t, 0.25, Kelly(0.95, 10, 1.0, 0.25))

	// Degenerate prices stake nothing.
	assert.Equal(t, 0.0, Kelly(0.9, 0, 0.5, 0.25))
	assert.Equal(t, 0.0, Kelly(0.9, 100, 0.5, 0.25))
}

func TestConfidenceScore(t *testing.T) {
	// Strong signal everywhere pins the score at 1.
	high := ConfidenceScore(ConfidenceInputs{
		Edge: 25, CILow: 0.7, CIHigh: 0.8, SourceCount: 6, EV: 0.15,
	})
	assert.InDelta(t, 1.0, high, 1e-9)

	// Weak signal floors at 0.1.
	low := ConfidenceScore(ConfidenceInputs{
		Edge: 0, CILow: 0, CIHigh: 1, SourceCount: 0, EV: 0,
	})
	assert.InDelta(t, 0.1, low, 1e-9)

	mid := ConfidenceScore(ConfidenceInputs{
		Edge: 10, CILow: 0.5, CIHigh: 0.9, SourceCount: 5, EV: 0.05,
	})
	expected := 0.35*0.5 + 0.25*0.6 + 0.20*1.0 + 0.20*0.5
	assert.InDelta(t, expected, mid, 1e-9)
}
