package domain

import (
	"math"
	"time"
)

// ForecastSample is one source's temperature point estimate for a
// (city, target date) pair. Samples are ephemeral: produced per query and
// never persisted by the decision engine.
type ForecastSample struct {
	Source     string
	TempF      float64
	ObservedAt time.Time
	// Weight is the combined source-reliability and age weight in (0, 1].
	Weight float64
}

// Ensemble is the ordered set of surviving forecast samples for one
// (city, target date) pair. Immutable once built; lifetime is one decision
// cycle plus the external cache TTL.
type Ensemble struct {
	City       string
	Series     string
	TargetDate time.Time
	Samples    []ForecastSample
	// WeightedMean is the reliability- and age-weighted blend of the
	// samples. Individual sample temperatures retain their original spread
	// so Std reflects real inter-source disagreement.
	WeightedMean float64
	BuiltAt      time.Time
}

// Empty reports whether the ensemble carries no usable forecasts.
func (e Ensemble) Empty() bool { return len(e.Samples) == 0 }

// Size returns the number of surviving sources.
func (e Ensemble) Size() int { return len(e.Samples) }

// Values returns the sample temperatures in order.
func (e Ensemble) Values() []float64 {
	vals := make([]float64, len(e.Samples))
	for i, s := range e.Samples {
		vals[i] = s.TempF
	}
	return vals
}

// Mean is the unweighted sample mean.
func (e Ensemble) Mean() float64 {
	if len(e.Samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range e.Samples {
		sum += s.TempF
	}
	return sum / float64(len(e.Samples))
}

// Std is the population standard deviation of the sample temperatures.
// Zero for ensembles with fewer than two samples.
func (e Ensemble) Std() float64 {
	n := len(e.Samples)
	if n < 2 {
		return 0
	}
	mean := e.Mean()
	var ss float64
	for _, s := range e.Samples {
		d := s.TempF - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(n))
}

// Observation is an observed temperature extreme (today's running high or
// low) with the time it was recorded.
type Observation struct {
	TempF      float64
	ObservedAt time.Time
}
