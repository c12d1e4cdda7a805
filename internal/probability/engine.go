// Package probability turns forecast ensembles into settlement probabilities
// with bootstrap confidence intervals.
package probability

import (
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/skyline-trading/weatherbot/internal/domain"
)

// Config tunes the probability model.
type Config struct {
	// SampleStdWeight is the share of the blended sigma taken from the
	// ensemble's own spread; the rest comes from historical forecast error.
	SampleStdWeight float64
	// StdFloor is the minimum sigma in °F.
	StdFloor float64
	// StdPerDay inflates sigma per day of forecast horizon.
	StdPerDay float64
	// StdPerHour inflates sigma per remaining hour on the target day.
	StdPerHour float64
	// BootstrapSamples is the resample count for confidence intervals.
	BootstrapSamples int
	// MinProb and MaxProb clamp every probability estimate. A model that
	// claims certainty is overfit, not right.
	MinProb float64
	MaxProb float64
}

// DefaultConfig returns the production model parameters.
func DefaultConfig() Config {
	return Config{
		SampleStdWeight:  0.7,
		StdFloor:         1.0,
		StdPerDay:        0.5,
		StdPerHour:       0.1,
		BootstrapSamples: 1000,
		MinProb:          0.01,
		MaxProb:          0.99,
	}
}

// Engine computes probabilities from ensembles. Safe for concurrent use.
type Engine struct {
	cfg Config

	mu  sync.Mutex
	rng *rand.Rand
}

// NewEngine creates an Engine with a time-seeded RNG.
func NewEngine(cfg Config) *Engine {
	if cfg.BootstrapSamples <= 0 {
		cfg.BootstrapSamples = 1000
	}
	if cfg.MaxProb <= 0 {
		cfg.MinProb, cfg.MaxProb = 0.01, 0.99
	}
	return &Engine{
		cfg: cfg,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Distribution is the normal model of the daily extreme.
type Distribution struct {
	Mean float64
	Std  float64
}

// HistoricalError is the recorded mean absolute forecast error for a
// city/month, with the number of settled days behind it.
type HistoricalError struct {
	MeanAbsError float64
	Count        int
}

// Distribution builds the temperature distribution for an ensemble. The
// sigma blends the ensemble's own spread with historical error, floored and
// inflated with forecast horizon: distant days are genuinely harder.
func (e *Engine) Distribution(ens domain.Ensemble, hist HistoricalError, minStd float64, now time.Time) Distribution {
	sampleStd := ens.Std()

	std := sampleStd
	if hist.Count > 0 && hist.MeanAbsError > 0 {
		// Mean absolute error of a normal is sigma·sqrt(2/pi).
		histStd := hist.MeanAbsError * math.Sqrt(math.Pi/2)
		if ens.Size() < 2 {
			// One sample has no spread of its own; blending its zero
			// std would just discount the historical estimate.
			std = histStd
		} else {
			std = e.cfg.SampleStdWeight*sampleStd + (1-e.cfg.SampleStdWeight)*histStd
		}
	}

	floor := e.cfg.StdFloor
	if minStd > floor {
		floor = minStd
	}
	if std < floor {
		std = floor
	}

	std += e.horizonInflation(ens.TargetDate, now)

	return Distribution{Mean: ens.WeightedMean, Std: std}
}

// horizonInflation widens sigma for horizon. Full days out count per day;
// on the target day itself the remaining hours count.
func (e *Engine) horizonInflation(target, now time.Time) float64 {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	targetDay := time.Date(target.Year(), target.Month(), target.Day(), 0, 0, 0, 0, now.Location())

	daysOut := targetDay.Sub(today).Hours() / 24
	if daysOut >= 1 {
		return e.cfg.StdPerDay * daysOut
	}
	if daysOut < 0 {
		return 0
	}

	endOfDay := targetDay.Add(24 * time.Hour)
	hoursLeft := endOfDay.Sub(now).Hours()
	if hoursLeft < 0 {
		hoursLeft = 0
	}
	return e.cfg.StdPerHour * hoursLeft
}

// ProbabilityOf returns the clamped probability that the settlement
// condition holds, summed over the renormalized bracket table.
func (e *Engine) ProbabilityOf(dist Distribution, cond domain.MarketCondition) float64 {
	return e.clamp(rawProbability(dist, cond))
}

func rawProbability(dist Distribution, cond domain.MarketCondition) float64 {
	if dist.Std <= 0 {
		// Degenerate distribution: the condition either holds or it doesn't.
		switch cond.Kind {
		case domain.ConditionAbove:
			if dist.Mean > cond.Threshold {
				return 1
			}
			return 0
		case domain.ConditionBelow:
			if dist.Mean < cond.Threshold {
				return 1
			}
			return 0
		default:
			if dist.Mean >= cond.Low && dist.Mean < cond.High {
				return 1
			}
			return 0
		}
	}
	return conditionProbability(Brackets(dist, 0), cond)
}

// conditionProbability sums bracket mass over the condition's region. A
// bracket the region's boundary cuts through contributes its fractional
// overlap, so P(above t) and P(below t) partition every bracket exactly.
func conditionProbability(brackets []Bracket, cond domain.MarketCondition) float64 {
	var p float64
	for _, b := range brackets {
		p += b.Prob * overlapFraction(b, cond)
	}
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

func overlapFraction(b Bracket, cond domain.MarketCondition) float64 {
	width := b.High - b.Low
	if width <= 0 {
		return 0
	}
	switch cond.Kind {
	case domain.ConditionAbove:
		if b.Low >= cond.Threshold {
			return 1
		}
		if b.High <= cond.Threshold {
			return 0
		}
		return (b.High - cond.Threshold) / width
	case domain.ConditionBelow:
		if b.High <= cond.Threshold {
			return 1
		}
		if b.Low >= cond.Threshold {
			return 0
		}
		return (cond.Threshold - b.Low) / width
	default:
		over := math.Min(b.High, cond.High) - math.Max(b.Low, cond.Low)
		if over <= 0 {
			return 0
		}
		return over / width
	}
}

func (e *Engine) clamp(p float64) float64 {
	return math.Min(e.cfg.MaxProb, math.Max(e.cfg.MinProb, p))
}

// normalCDF is P(X <= x) for X ~ N(mean, std).
func normalCDF(x, mean, std float64) float64 {
	return 0.5 * math.Erfc(-(x-mean)/(std*math.Sqrt2))
}

// ConfidenceInterval bootstraps a 95% CI on the condition probability by
// resampling the ensemble and recomputing the probability with the
// resampled mean. Fewer than two samples gives the maximally uncertain
// (0.5, [0, 1]).
func (e *Engine) ConfidenceInterval(ens domain.Ensemble, dist Distribution, cond domain.MarketCondition) (lo, hi float64) {
	vals := ens.Values()
	if len(vals) < 2 {
		return 0, 1
	}

	probs := make([]float64, e.cfg.BootstrapSamples)

	e.mu.Lock()
	for i := range probs {
		var sum float64
		for range vals {
			sum += vals[e.rng.Intn(len(vals))]
		}
		resampledMean := sum / float64(len(vals))
		probs[i] = e.clamp(rawProbability(Distribution{Mean: resampledMean, Std: dist.Std}, cond))
	}
	e.mu.Unlock()

	sort.Float64s(probs)
	lo = probs[int(0.025*float64(len(probs)))]
	hi = probs[int(0.975*float64(len(probs)))-1]
	if hi < lo {
		lo, hi = hi, lo
	}
	return lo, hi
}

// Estimate bundles the probability outputs for one market condition.
type Estimate struct {
	Prob   float64
	CILow  float64
	CIHigh float64
	Dist   Distribution
}

// Estimate computes probability and CI in one call.
func (e *Engine) Estimate(ens domain.Ensemble, hist HistoricalError, minStd float64, cond domain.MarketCondition, now time.Time) Estimate {
	if ens.Size() < 2 {
		return Estimate{Prob: 0.5, CILow: 0, CIHigh: 1, Dist: Distribution{Mean: ens.WeightedMean, Std: e.cfg.StdFloor}}
	}
	dist := e.Distribution(ens, hist, minStd, now)
	p := e.ProbabilityOf(dist, cond)
	lo, hi := e.ConfidenceInterval(ens, dist, cond)
	return Estimate{Prob: p, CILow: lo, CIHigh: hi, Dist: dist}
}

// Bracket is one 2°F-wide slice of the temperature distribution.
type Bracket struct {
	Low  float64
	High float64
	Prob float64
}

// Brackets discretizes the distribution into fixed-width brackets spanning
// mean±10°F, renormalized to sum to one. Every condition probability is read
// off this table rather than the raw CDF.
func Brackets(dist Distribution, width float64) []Bracket {
	if width <= 0 {
		width = 2
	}
	start := math.Floor((dist.Mean-10)/width) * width
	end := dist.Mean + 10

	var out []Bracket
	var total float64
	for low := start; low < end; low += width {
		p := normalCDF(low+width, dist.Mean, dist.Std) - normalCDF(low, dist.Mean, dist.Std)
		if p < 0 {
			p = 0
		}
		out = append(out, Bracket{Low: low, High: low + width, Prob: p})
		total += p
	}
	if total > 0 {
		for i := range out {
			out[i].Prob /= total
		}
	}
	return out
}
