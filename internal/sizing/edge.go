// Package sizing computes edge, expected value and position size for
// candidate trades.
package sizing

import "math"

// Edge returns the model's advantage over the market in cents: probability
// expressed on the centesimal scale minus the ask.
func Edge(prob float64, askCents int64) float64 {
	return prob*100 - float64(askCents)
}

// ExpectedValue returns the per-contract EV in dollars at the given ask,
// with the exchange fee charged on winnings only. Payout is $1.
func ExpectedValue(prob float64, askCents int64, feeRate float64) float64 {
	stake := float64(askCents) / 100
	winNet := 1.0 - stake - feeRate // payout − stake − fee on payout
	return prob*winNet - (1-prob)*stake
}

// Kelly returns the fraction of bankroll to stake: fractional Kelly on the
// binary payout at the ask, never negative and capped.
func Kelly(prob float64, askCents int64, fraction, cap float64) float64 {
	if askCents <= 0 || askCents >= 100 {
		return 0
	}
	b := 100 / float64(askCents) // payout over stake
	q := 1 - prob
	full := (prob*b - q) / b
	if full <= 0 {
		return 0
	}
	f := fraction * full
	return math.Min(f, cap)
}
