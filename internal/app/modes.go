package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/skyline-trading/weatherbot/internal/domain"
	"github.com/skyline-trading/weatherbot/internal/engine"
	"github.com/skyline-trading/weatherbot/internal/metrics"
	"github.com/skyline-trading/weatherbot/internal/platform/kalshi"
)

// paperStartingBalanceCents funds the simulated portfolio in paper and
// monitor modes.
const paperStartingBalanceCents = 100_000

// TradeMode runs the live scan loop against the real exchange. The
// scanner.paper_trading flag downgrades execution to the paper portfolio
// while keeping real market data.
func (a *App) TradeMode(ctx context.Context, deps *Dependencies) error {
	var ex engine.Exchange = deps.Exchange
	if a.cfg.Scanner.PaperTrading {
		a.logger.Warn("paper_trading enabled, orders are simulated")
		ex = engine.NewPaperExchange(deps.Exchange, paperStartingBalanceCents, a.logger)
	} else {
		a.logger.InfoContext(ctx, "starting trade mode, orders are live")
	}
	return a.runEngine(ctx, deps, ex)
}

// PaperMode is TradeMode with simulated execution regardless of flags.
func (a *App) PaperMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting paper mode")
	ex := engine.NewPaperExchange(deps.Exchange, paperStartingBalanceCents, a.logger)
	return a.runEngine(ctx, deps, ex)
}

// MonitorMode evaluates markets and publishes metrics without touching the
// real portfolio. Decisions land in the paper portfolio so skip counters and
// sizing output stay observable.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode, no orders will be placed")
	ex := engine.NewPaperExchange(deps.Exchange, paperStartingBalanceCents, a.logger)
	return a.runEngine(ctx, deps, ex)
}

func (a *App) runEngine(ctx context.Context, deps *Dependencies, ex engine.Exchange) error {
	eng := engine.New(engine.Options{
		Config:       a.cfg,
		Exchange:     ex,
		Forecasts:    deps.Forecasts,
		Observer:     deps.Observer,
		Books:        deps.Books,
		Locks:        deps.Locks,
		Calibration:  deps.Calibration,
		Trades:       deps.Trades,
		Settlements:  deps.Settlements,
		ForecastErrs: deps.ForecastErrs,
		Notifier:     deps.Notifier,
		Metrics:      deps.Metrics,
		Logger:       a.logger,
	})
	if deps.Archiver != nil {
		eng.SetArchiver(deps.Archiver)
	}

	g, ctx := errgroup.WithContext(ctx)

	if a.cfg.Metrics.Enabled {
		g.Go(func() error {
			return metrics.Serve(ctx, a.cfg.Metrics.Port, a.logger)
		})
	}

	if a.cfg.Kalshi.WsURL != "" {
		g.Go(func() error {
			a.streamBooks(ctx, deps)
			return nil
		})
	}

	g.Go(func() error {
		return eng.Run(ctx)
	})

	return g.Wait()
}

// streamBooks keeps the book cache warm from the exchange websocket so most
// evaluations skip the REST orderbook fetch. Best effort: REST remains the
// fallback on any failure.
func (a *App) streamBooks(ctx context.Context, deps *Dependencies) {
	ws := kalshi.NewWSClient(a.cfg.Kalshi.WsURL, a.logger)
	ws.OnBook(func(snap domain.OrderbookSnapshot) {
		if err := deps.Books.Put(ctx, snap, a.cfg.Kalshi.BookCacheTTL.Duration); err != nil {
			a.logger.Debug("ws book cache put failed", slog.Any("error", err))
		}
	})

	if err := ws.Connect(ctx); err != nil {
		a.logger.Warn("websocket connect failed, using REST books only", slog.Any("error", err))
		return
	}
	defer func() { _ = ws.Close() }()

	// Resubscribe periodically as markets open and close.
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		a.subscribeOpenMarkets(ctx, ws, deps)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (a *App) subscribeOpenMarkets(ctx context.Context, ws *kalshi.WSClient, deps *Dependencies) {
	var tickers []string
	for _, series := range a.cfg.Scanner.Series {
		markets, err := deps.Exchange.GetSeriesMarkets(ctx, series)
		if err != nil {
			a.logger.Debug("ws subscribe series fetch failed",
				slog.String("series", series), slog.Any("error", err))
			continue
		}
		for _, m := range markets {
			if m.Tradeable() {
				tickers = append(tickers, m.Ticker)
			}
		}
	}
	if len(tickers) == 0 {
		return
	}
	if err := ws.Subscribe(ctx, tickers); err != nil {
		a.logger.Warn("ws subscribe failed", slog.Any("error", err))
	}
}
