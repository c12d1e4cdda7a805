package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/skyline-trading/weatherbot/internal/domain"
	"github.com/skyline-trading/weatherbot/internal/forecast"
)

// Run drives the scan loop until the context is cancelled. Each cycle sweeps
// settlements, scans every configured series, then runs position and order
// maintenance.
func (e *Engine) Run(ctx context.Context) error {
	interval := e.cfg.Scanner.Interval.Duration
	if interval <= 0 {
		interval = time.Minute
	}
	e.logger.Info("scan loop starting",
		slog.Int("series", len(e.cfg.Scanner.Series)),
		slog.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		e.Scan(ctx)

		select {
		case <-ctx.Done():
			e.logger.Info("scan loop stopping")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Scan runs one full cycle. Failures in one market or series never abort
// the others.
func (e *Engine) Scan(ctx context.Context) {
	now := time.Now()
	if e.metrics != nil {
		e.metrics.ScansTotal.Inc()
	}

	e.sweepSettlements(ctx, now)
	e.enforceDailyLossLimit(ctx, now)

	entriesOpen := !e.entriesHalted(now)
	if !entriesOpen {
		e.logger.Warn("daily loss limit active, entries paused")
	}

	g, gctx := errgroup.WithContext(ctx)
	concurrency := e.cfg.Scanner.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	g.SetLimit(concurrency)

	for _, series := range e.cfg.Scanner.Series {
		series := series
		g.Go(func() error {
			e.scanSeries(gctx, series, now, entriesOpen)
			return nil
		})
	}
	_ = g.Wait()

	e.ManagePositions(ctx, now)
	e.ManageRestingOrders(ctx, now)
	e.archiveIfDayRolled(ctx, now)
}

func (e *Engine) scanSeries(ctx context.Context, series string, now time.Time, entriesOpen bool) {
	markets, err := e.exchange.GetSeriesMarkets(ctx, series)
	if err != nil {
		e.logger.Warn("series fetch failed",
			slog.String("series", series), slog.Any("error", err))
		return
	}

	for _, m := range markets {
		if ctx.Err() != nil {
			return
		}
		e.evaluateAndExecute(ctx, m, now, entriesOpen)
	}
}

func (e *Engine) evaluateAndExecute(ctx context.Context, m domain.Market, now time.Time, entriesOpen bool) {
	start := time.Now()
	defer func() {
		if e.metrics != nil {
			e.metrics.EvalDuration.Observe(time.Since(start).Seconds())
		}
		if r := recover(); r != nil {
			e.countSkip(domain.SkipEvaluationError)
			e.logger.Error("evaluation panic",
				slog.String("ticker", m.Ticker), slog.Any("panic", r))
		}
	}()

	if e.metrics != nil {
		e.metrics.MarketsEvaluated.Inc()
	}

	res := e.EvaluateMarket(ctx, m, now)
	if res.Decision == nil {
		e.countSkip(res.Skip)
		if res.Skip != domain.SkipNotWeatherSeries && res.Skip != domain.SkipMarketClosed &&
			res.Skip != domain.SkipLowVolume && res.Skip != domain.SkipDateOutOfWindow {
			e.logger.Debug("market skipped",
				slog.String("ticker", m.Ticker),
				slog.String("reason", string(res.Skip)),
				slog.String("detail", res.Detail))
		}
		return
	}

	if !entriesOpen {
		e.countSkip(domain.SkipDailyLossLimit)
		return
	}

	skip, err := e.Execute(ctx, res.Decision)
	if err != nil {
		e.countSkip(domain.SkipEvaluationError)
		e.logger.Error("execution failed",
			slog.String("ticker", m.Ticker), slog.Any("error", err))
		if e.notifier != nil {
			_ = e.notifier.EngineError(ctx, "execute "+m.Ticker, err)
		}
		return
	}
	if skip != "" {
		e.countSkip(skip)
	}
}

// sweepSettlements pulls new settlements from the exchange, persists them
// and feeds realized forecast errors back into the error store.
func (e *Engine) sweepSettlements(ctx context.Context, now time.Time) {
	if e.settlements == nil {
		return
	}
	since := e.lastSweepTime(now)
	settled, err := e.exchange.GetSettlements(ctx, since)
	if err != nil {
		e.logger.Warn("settlement fetch failed", slog.Any("error", err))
		return
	}

	for _, s := range settled {
		if err := e.settlements.Record(ctx, s); err != nil {
			e.logger.Error("settlement record failed",
				slog.String("ticker", s.Ticker), slog.Any("error", err))
			continue
		}
		e.logger.Info("settlement recorded",
			slog.String("ticker", s.Ticker),
			slog.Bool("won", s.Won),
			slog.Float64("pnl_dollars", s.PnLDollars))

		e.closePosition(s.Ticker, 0, s.SettledAt)
		e.recordForecastError(ctx, s)
		if t, ok := e.calibration.(settlementObserver); ok {
			t.Observe(s)
		}
		if e.notifier != nil {
			_ = e.notifier.SettlementRecorded(ctx, s)
		}
	}

	e.mu.Lock()
	e.lastSweep = now
	e.mu.Unlock()
}

// settlementObserver is implemented by calibration trackers that learn from
// outcomes.
type settlementObserver interface {
	Observe(s domain.Settlement)
}

func (e *Engine) lastSweepTime(now time.Time) time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lastSweep.IsZero() {
		return now.Add(-24 * time.Hour)
	}
	return e.lastSweep
}

// recordForecastError compares the forecast we traded on with the observed
// extreme for the settled day. Either side missing means no data point.
func (e *Engine) recordForecastError(ctx context.Context, s domain.Settlement) {
	if e.forecastErrs == nil || e.observer == nil {
		return
	}
	ref, err := domain.ParseTicker(s.Ticker)
	if err != nil {
		return
	}
	city, err := forecast.LookupCity(ref.City)
	if err != nil {
		return
	}

	ens, err := e.forecasts.Ensemble(ctx, ref.Series, ref.Date)
	if err != nil {
		return
	}
	obs, err := e.observer.ObservedExtreme(ctx, city, ref.Date, ref.Type)
	if err != nil {
		return
	}

	errF := ens.WeightedMean - obs.TempF
	if errF < 0 {
		errF = -errF
	}
	if err := e.forecastErrs.Record(ctx, ref.City, ref.Date.Month(), errF); err != nil {
		e.logger.Warn("forecast error record failed",
			slog.String("city", ref.City), slog.Any("error", err))
	}
}

// enforceDailyLossLimit sums today's realized PnL and halts new entries when
// the loss limit trips. Exits and settlements continue.
func (e *Engine) enforceDailyLossLimit(ctx context.Context, now time.Time) {
	if e.settlements == nil || e.cfg.Exposure.MaxDailyLossDollars <= 0 {
		return
	}
	day, err := e.settlements.ListByDay(ctx, now)
	if err != nil {
		e.logger.Warn("daily pnl lookup failed", slog.Any("error", err))
		return
	}
	var pnl float64
	for _, s := range day {
		pnl += s.PnLDollars
	}
	if e.metrics != nil {
		e.metrics.DailyPnL.Set(pnl)
	}
	if pnl <= -e.cfg.Exposure.MaxDailyLossDollars && !e.entriesHalted(now) {
		e.haltEntriesFor(now)
		e.logger.Error("daily loss limit reached",
			slog.Float64("pnl_dollars", pnl),
			slog.Float64("limit_dollars", e.cfg.Exposure.MaxDailyLossDollars))
		if e.notifier != nil {
			_ = e.notifier.EngineError(ctx, "daily loss limit",
				fmt.Errorf("engine: daily pnl %.2f breached limit %.2f", pnl, e.cfg.Exposure.MaxDailyLossDollars))
		}
	}
}

// SetArchiver wires the optional daily outcome archiver.
func (e *Engine) SetArchiver(a domain.Archiver) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.archiver = a
}

// archiveIfDayRolled writes yesterday's outcomes to blob storage once per
// day, on the first scan after UTC midnight.
func (e *Engine) archiveIfDayRolled(ctx context.Context, now time.Time) {
	e.mu.Lock()
	archiver := e.archiver
	last := e.lastArchived
	e.mu.Unlock()

	if archiver == nil {
		return
	}
	yesterday := now.UTC().AddDate(0, 0, -1)
	if sameDay(last, yesterday) {
		return
	}

	path, err := archiver.ArchiveDay(ctx, yesterday)
	if err != nil {
		e.logger.Warn("daily archive failed", slog.Any("error", err))
		return
	}
	e.mu.Lock()
	e.lastArchived = yesterday
	e.mu.Unlock()
	if path != "" {
		e.logger.Info("daily archive written", slog.String("path", path))
	}
}
