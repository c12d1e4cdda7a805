package engine

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyline-trading/weatherbot/internal/cache/memory"
	"github.com/skyline-trading/weatherbot/internal/config"
	"github.com/skyline-trading/weatherbot/internal/domain"
	"github.com/skyline-trading/weatherbot/internal/forecast"
)

// stubCalibration answers every calibration query with the neutral value.
type stubCalibration struct{}

func (stubCalibration) MinStd(string, time.Month) float64   { return 2.0 }
func (stubCalibration) MarketEnabled(string) bool           { return true }
func (stubCalibration) DrawdownMultiplier() float64         { return 1.0 }
func (stubCalibration) OnCooldown() bool                    { return false }
func (stubCalibration) ConfidenceMultiplier(string) float64 { return 1.0 }

var _ domain.Calibration = stubCalibration{}

// stubSource serves one canned sample per call.
type stubSource struct {
	name  string
	tempF float64
}

func (s stubSource) Name() string { return s.name }

func (s stubSource) Fetch(_ context.Context, _ forecast.City, _ time.Time, _ domain.MarketType) ([]domain.ForecastSample, error) {
	return []domain.ForecastSample{{
		Source:     s.name,
		TempF:      s.tempF,
		ObservedAt: time.Now(),
	}}, nil
}

// newPipelineEngine wires a full evaluation engine around canned forecast
// temperatures, one independent source per value.
func newPipelineEngine(t *testing.T, ex Exchange, temps []float64, mutate func(*config.Config)) *Engine {
	t.Helper()
	cfg := config.Defaults()
	cfg.Mode = "paper"
	if mutate != nil {
		mutate(&cfg)
	}

	sources := make([]forecast.Source, 0, len(temps))
	names := []string{"model-a", "model-b", "model-c", "model-d"}
	for i, temp := range temps {
		sources = append(sources, stubSource{name: names[i], tempF: temp})
	}
	agg := forecast.NewAggregator(sources, forecast.AggregatorConfig{
		SourceTimeout: time.Second,
	}, nil, slog.Default())

	return New(Options{
		Config:      &cfg,
		Exchange:    ex,
		Forecasts:   agg,
		Books:       memory.NewBookCache(),
		Locks:       memory.NewLockManager(),
		Calibration: stubCalibration{},
		Logger:      slog.Default(),
	})
}

// The market under evaluation: NY high above 26F on 2026-01-28, evaluated
// the afternoon before.
func pipelineMarket() domain.Market {
	return domain.Market{
		Ticker:       testTicker,
		SeriesTicker: "KXHIGHNY",
		Status:       domain.MarketStatusActive,
		Volume:       500,
		StrikeType:   "greater",
		FloorStrike:  26,
		CloseTime:    time.Date(2026, time.January, 29, 0, 0, 0, 0, time.UTC),
	}
}

var pipelineNow = time.Date(2026, time.January, 27, 15, 0, 0, 0, time.UTC)

func TestEvaluateMarketDecides(t *testing.T) {
	ex := &fakeExchange{books: map[string]domain.OrderbookSnapshot{
		// YES bid 40, YES ask 50.
		testTicker: bookAt(40, 50),
	}}
	e := newPipelineEngine(t, ex, []float64{30, 31.6}, nil)

	res := e.EvaluateMarket(context.Background(), pipelineMarket(), pipelineNow)
	require.NotNil(t, res.Decision, "skip %s: %s", res.Skip, res.Detail)
	assert.Equal(t, domain.SideYes, res.Decision.Side)
	assert.Equal(t, int64(50), res.Decision.PriceCents)
	// EV-proportional sizing at twice the base: 10 contracts doubled.
	assert.Equal(t, int64(20), res.Decision.Count)
}

func TestEvaluateMarketCorrelationDropsBelowMinOrder(t *testing.T) {
	ex := &fakeExchange{
		books: map[string]domain.OrderbookSnapshot{testTicker: bookAt(40, 50)},
		holdings: []domain.Holding{
			// Same city and date, sibling strike: near-full correlation.
			{Ticker: "KXHIGHNY-26JAN28-T30", NetContracts: 10, ExposureCents: 300},
		},
	}
	e := newPipelineEngine(t, ex, []float64{30, 31.6}, func(c *config.Config) {
		c.Sizing.MinOrderContracts = 11
	})

	// The correlation damping halves the 20-contract candidate to 10,
	// under the 11 minimum: the decision is dropped, not shrunk.
	res := e.EvaluateMarket(context.Background(), pipelineMarket(), pipelineNow)
	require.Nil(t, res.Decision)
	assert.Equal(t, domain.SkipBelowMinOrder, res.Skip)
}

func TestEvaluateMarketRequiresSourceDisagreement(t *testing.T) {
	ex := &fakeExchange{books: map[string]domain.OrderbookSnapshot{
		testTicker: bookAt(40, 50),
	}}
	// Max minus min is 0.8F but the std is only 0.4, under the 0.5 floor:
	// the sources look like reprints of one model run.
	e := newPipelineEngine(t, ex, []float64{50, 50.8}, nil)

	res := e.EvaluateMarket(context.Background(), pipelineMarket(), pipelineNow)
	require.Nil(t, res.Decision)
	assert.Equal(t, domain.SkipLowSpread, res.Skip)
}
