package forecast

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/skyline-trading/weatherbot/internal/domain"
)

// breakerSource wraps a Source in a circuit breaker so a degraded provider
// is skipped quickly instead of burning the per-source timeout every scan.
type breakerSource struct {
	inner Source
	cb    *gobreaker.CircuitBreaker[[]domain.ForecastSample]
}

// WithBreaker wraps src with a circuit breaker. The breaker opens after five
// consecutive failures and probes again after a minute; the ensemble simply
// runs without the source while it is open.
func WithBreaker(src Source, logger *slog.Logger) Source {
	log := logger.With(slog.String("component", "forecast"), slog.String("source", src.Name()))

	settings := gobreaker.Settings{
		Name:    src.Name(),
		Timeout: time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit state changed",
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	}

	return &breakerSource{
		inner: src,
		cb:    gobreaker.NewCircuitBreaker[[]domain.ForecastSample](settings),
	}
}

func (b *breakerSource) Name() string { return b.inner.Name() }

func (b *breakerSource) Fetch(ctx context.Context, city City, date time.Time, kind domain.MarketType) ([]domain.ForecastSample, error) {
	samples, err := b.cb.Execute(func() ([]domain.ForecastSample, error) {
		return b.inner.Fetch(ctx, city, date, kind)
	})
	if err != nil {
		return nil, fmt.Errorf("forecast: %s: %w", b.inner.Name(), err)
	}
	return samples, nil
}
