package forecast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/skyline-trading/weatherbot/internal/domain"
)

// AggregatorConfig tunes ensemble construction.
type AggregatorConfig struct {
	// SourceTimeout bounds each provider call.
	SourceTimeout time.Duration
	// AgeHalfLifeHours controls the exponential age decay of sample weights.
	AgeHalfLifeHours float64
	// NWSWeight is an extra multiplier on the NWS sample.
	NWSWeight float64
	// SourceWeights maps sample source names to reliability weights.
	// Unlisted sources get 0.8.
	SourceWeights map[string]float64
	// CacheTTL is how long a built ensemble may be served from cache.
	CacheTTL time.Duration
}

// Aggregator fans a forecast query out to every configured source and
// distills the responses into a weighted ensemble.
type Aggregator struct {
	sources []Source
	cfg     AggregatorConfig
	cache   domain.EnsembleCache
	logger  *slog.Logger
}

// NewAggregator creates an Aggregator. cache may be nil to disable caching.
func NewAggregator(sources []Source, cfg AggregatorConfig, cache domain.EnsembleCache, logger *slog.Logger) *Aggregator {
	if cfg.SourceTimeout <= 0 {
		cfg.SourceTimeout = 10 * time.Second
	}
	if cfg.AgeHalfLifeHours <= 0 {
		cfg.AgeHalfLifeHours = 6
	}
	if cfg.NWSWeight <= 0 {
		cfg.NWSWeight = 1
	}
	return &Aggregator{
		sources: sources,
		cfg:     cfg,
		cache:   cache,
		logger:  logger.With(slog.String("component", "forecast")),
	}
}

// Ensemble builds (or serves from cache) the forecast ensemble for one
// series and target date. Individual source failures are logged and
// tolerated; only a fully empty result is an error.
func (a *Aggregator) Ensemble(ctx context.Context, series string, date time.Time) (domain.Ensemble, error) {
	cityCode := domain.CityFromSeries(series)
	kind, ok := domain.TypeFromSeries(series)
	if !ok {
		return domain.Ensemble{}, fmt.Errorf("forecast: %s is not a weather series", series)
	}
	city, err := LookupCity(cityCode)
	if err != nil {
		return domain.Ensemble{}, err
	}

	if a.cache != nil {
		if ens, ok, err := a.cache.Get(ctx, series, date); err == nil && ok {
			return ens, nil
		}
	}

	samples := a.fanOut(ctx, city, date, kind)
	if len(samples) == 0 {
		return domain.Ensemble{}, fmt.Errorf("forecast: %s %s: %w", series, date.Format("2006-01-02"), domain.ErrNoForecasts)
	}

	kept := fenceOutliers(samples)
	if dropped := len(samples) - len(kept); dropped > 0 {
		a.logger.Info("dropped outlier forecasts",
			slog.String("series", series),
			slog.Int("dropped", dropped),
			slog.Int("kept", len(kept)),
		)
	}

	a.applyWeights(kept)

	ens := domain.Ensemble{
		City:         cityCode,
		Series:       series,
		TargetDate:   date,
		Samples:      kept,
		WeightedMean: weightedMean(kept),
		BuiltAt:      time.Now(),
	}

	if a.cache != nil {
		if err := a.cache.Put(ctx, ens, a.cfg.CacheTTL); err != nil {
			a.logger.Warn("ensemble cache write failed", slog.String("error", err.Error()))
		}
	}

	return ens, nil
}

// fanOut queries every source concurrently, each under its own timeout.
func (a *Aggregator) fanOut(ctx context.Context, city City, date time.Time, kind domain.MarketType) []domain.ForecastSample {
	var (
		mu      sync.Mutex
		samples []domain.ForecastSample
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, src := range a.sources {
		src := src
		g.Go(func() error {
			sctx, cancel := context.WithTimeout(gctx, a.cfg.SourceTimeout)
			defer cancel()

			got, err := src.Fetch(sctx, city, date, kind)
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					a.logger.Warn("source fetch failed",
						slog.String("source", src.Name()),
						slog.String("city", city.Code),
						slog.String("error", err.Error()),
					)
				}
				return nil
			}

			mu.Lock()
			samples = append(samples, got...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return samples
}

// applyWeights sets each sample's weight to reliability × age decay.
func (a *Aggregator) applyWeights(samples []domain.ForecastSample) {
	now := time.Now()
	for i := range samples {
		w, ok := a.cfg.SourceWeights[samples[i].Source]
		if !ok {
			w = 0.8
		}
		if strings.HasPrefix(samples[i].Source, "nws") {
			w *= a.cfg.NWSWeight
		}

		ageHours := now.Sub(samples[i].ObservedAt).Hours()
		if ageHours < 0 {
			ageHours = 0
		}
		w *= math.Exp(-ageHours / a.cfg.AgeHalfLifeHours)

		samples[i].Weight = w
	}
}

// fenceOutliers drops samples outside the 1.5×IQR fence. With fewer than
// three samples, or when fencing would drop everything, the input is
// returned untouched.
func fenceOutliers(samples []domain.ForecastSample) []domain.ForecastSample {
	if len(samples) < 3 {
		return samples
	}

	vals := make([]float64, len(samples))
	for i, s := range samples {
		vals[i] = s.TempF
	}
	sort.Float64s(vals)

	q1 := percentile(vals, 25)
	q3 := percentile(vals, 75)
	iqr := q3 - q1
	lo := q1 - 1.5*iqr
	hi := q3 + 1.5*iqr

	kept := make([]domain.ForecastSample, 0, len(samples))
	for _, s := range samples {
		if s.TempF >= lo && s.TempF <= hi {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		return samples
	}
	return kept
}

// percentile computes the p-th percentile of sorted values using linear
// interpolation between closest ranks.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func weightedMean(samples []domain.ForecastSample) float64 {
	var num, den float64
	for _, s := range samples {
		num += s.TempF * s.Weight
		den += s.Weight
	}
	if den == 0 {
		// All weights zero; fall back to the plain mean.
		for _, s := range samples {
			num += s.TempF
		}
		return num / float64(len(samples))
	}
	return num / den
}

// BuildSources assembles the enabled provider list, each behind a circuit
// breaker. Keyless providers that require a key are skipped.
type SourcesConfig struct {
	EnableNWS            bool
	EnableOpenMeteo      bool
	EnableTomorrowIO     bool
	EnablePirateWeather  bool
	EnableVisualCrossing bool
	TomorrowIOKey        string
	PirateWeatherKey     string
	VisualCrossingKey    string
	Timeout              time.Duration
}

// BuildSources returns the configured sources plus the NWS client used for
// observed-extreme lookups (nil when NWS is disabled).
func BuildSources(cfg SourcesConfig, logger *slog.Logger) ([]Source, *NWS) {
	var sources []Source
	var nws *NWS

	if cfg.EnableNWS {
		nws = NewNWS(cfg.Timeout)
		sources = append(sources, WithBreaker(nws, logger))
	}
	if cfg.EnableOpenMeteo {
		sources = append(sources, WithBreaker(NewOpenMeteo(cfg.Timeout), logger))
	}
	if cfg.EnableTomorrowIO && cfg.TomorrowIOKey != "" {
		sources = append(sources, WithBreaker(NewTomorrowIO(cfg.TomorrowIOKey, cfg.Timeout), logger))
	}
	if cfg.EnablePirateWeather && cfg.PirateWeatherKey != "" {
		sources = append(sources, WithBreaker(NewPirateWeather(cfg.PirateWeatherKey, cfg.Timeout), logger))
	}
	if cfg.EnableVisualCrossing && cfg.VisualCrossingKey != "" {
		sources = append(sources, WithBreaker(NewVisualCrossing(cfg.VisualCrossingKey, cfg.Timeout), logger))
	}

	return sources, nws
}
