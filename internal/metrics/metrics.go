// Package metrics exposes Prometheus instrumentation for the trading engine.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector the engine reports into.
type Metrics struct {
	ScansTotal       prometheus.Counter
	MarketsEvaluated prometheus.Counter
	Skips            *prometheus.CounterVec
	Decisions        *prometheus.CounterVec
	OrdersSubmitted  *prometheus.CounterVec
	OrderFailures    prometheus.Counter
	SourceFailures   *prometheus.CounterVec
	EnsembleSize     prometheus.Histogram
	EvalDuration     prometheus.Histogram
	PortfolioVaR95   prometheus.Gauge
	DailyPnL         prometheus.Gauge
	OpenPositions    prometheus.Gauge
}

// New registers all collectors on the given registry. Pass nil to use the
// default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		ScansTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "weatherbot_scans_total",
			Help: "Completed market scan cycles.",
		}),
		MarketsEvaluated: factory.NewCounter(prometheus.CounterOpts{
			Name: "weatherbot_markets_evaluated_total",
			Help: "Individual market evaluations.",
		}),
		Skips: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "weatherbot_skips_total",
			Help: "Evaluations ended without a trade, by reason.",
		}, []string{"reason"}),
		Decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "weatherbot_decisions_total",
			Help: "Trade decisions produced, by mode and side.",
		}, []string{"mode", "side"}),
		OrdersSubmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "weatherbot_orders_submitted_total",
			Help: "Orders submitted to the exchange, by style.",
		}, []string{"style"}),
		OrderFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "weatherbot_order_failures_total",
			Help: "Order submissions rejected or errored.",
		}),
		SourceFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "weatherbot_forecast_source_failures_total",
			Help: "Forecast provider fetch failures, by source.",
		}, []string{"source"}),
		EnsembleSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "weatherbot_ensemble_size",
			Help:    "Surviving forecast samples per ensemble.",
			Buckets: prometheus.LinearBuckets(0, 1, 10),
		}),
		EvalDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "weatherbot_evaluation_duration_seconds",
			Help:    "Wall time of one market evaluation.",
			Buckets: prometheus.DefBuckets,
		}),
		PortfolioVaR95: factory.NewGauge(prometheus.GaugeOpts{
			Name: "weatherbot_portfolio_var95_dollars",
			Help: "95% one-day portfolio value at risk.",
		}),
		DailyPnL: factory.NewGauge(prometheus.GaugeOpts{
			Name: "weatherbot_daily_pnl_dollars",
			Help: "Realized PnL for the current UTC day.",
		}),
		OpenPositions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "weatherbot_open_positions",
			Help: "Positions currently tracked by the lifecycle controller.",
		}),
	}
}

// Serve runs the /metrics endpoint until ctx is cancelled.
func Serve(ctx context.Context, port int, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info("metrics listening", slog.Int("port", port))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics: serve: %w", err)
	}
}
