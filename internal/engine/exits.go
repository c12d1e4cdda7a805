package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/skyline-trading/weatherbot/internal/domain"
	"github.com/skyline-trading/weatherbot/internal/platform/kalshi"
	"github.com/skyline-trading/weatherbot/internal/router"
	"github.com/skyline-trading/weatherbot/internal/sizing"
)

// ManagePositions runs the exit pass over every active position: take-profit
// when the bid has moved far enough, edge-gone when the model no longer
// supports the entry. Longshot entries are held to settlement; selling a
// near-certain contract early only donates the spread.
func (e *Engine) ManagePositions(ctx context.Context, now time.Time) {
	if !e.cfg.Exit.Enabled {
		return
	}
	for _, p := range e.activePositions() {
		if err := e.checkExit(ctx, p, now); err != nil {
			e.logger.Warn("exit check failed",
				slog.String("ticker", p.Ticker), slog.Any("error", err))
		}
	}
}

func (e *Engine) checkExit(ctx context.Context, p domain.Position, now time.Time) error {
	if now.Sub(p.OpenedAt) < e.cfg.Exit.MinDwell.Duration {
		return nil
	}
	if p.EntryCents <= e.cfg.Exit.MinEntryCents {
		// Cheap entries are longshots; the upside is settlement, not the
		// next few cents of mark.
		return nil
	}

	book, err := e.exchange.GetOrderbook(ctx, p.Ticker)
	if err != nil {
		return err
	}
	quote := domain.QuoteFrom(book)
	bid := quote.Bid(p.Side)
	if bid <= 0 {
		return nil
	}

	profitCents := bid - p.EntryCents
	profitPct := float64(profitCents) / float64(p.EntryCents) * 100

	var reason domain.ExitReason
	switch {
	case profitPct >= e.cfg.Exit.TakeProfitPct && profitCents >= e.cfg.Exit.MinProfitCents:
		reason = domain.ExitTakeProfit
	case e.edgeGone(ctx, p, quote):
		reason = domain.ExitEdgeGone
	case e.cfg.Exit.SevereLossPct > 0 && profitPct <= -e.cfg.Exit.SevereLossPct:
		reason = domain.ExitStopLoss
	default:
		return nil
	}

	ins := e.router.RouteExit(p.Side, p.Count, quote)
	res, err := e.exchange.SubmitOrder(ctx, kalshi.OrderRequest{
		Ticker:     p.Ticker,
		Side:       p.Side,
		Action:     domain.ActionSell,
		Count:      ins.Count,
		PriceCents: ins.PriceCents,
		Type:       "limit",
	})
	if err != nil {
		if e.metrics != nil {
			e.metrics.OrderFailures.Inc()
		}
		return err
	}

	e.closePosition(p.Ticker, ins.PriceCents, now)
	e.logger.Info("position exit",
		slog.String("ticker", p.Ticker),
		slog.String("reason", string(reason)),
		slog.Int64("entry_cents", p.EntryCents),
		slog.Int64("exit_cents", ins.PriceCents),
		slog.Float64("profit_pct", profitPct),
		slog.String("order_id", res.OrderID))

	if e.notifier != nil {
		_ = e.notifier.PositionClosed(ctx, domain.ExitDecision{
			Ticker:     p.Ticker,
			Side:       p.Side,
			Count:      ins.Count,
			PriceCents: ins.PriceCents,
			Reason:     reason,
			ProfitPct:  profitPct,
		})
	}
	return nil
}

// edgeGone re-estimates the position's edge at the current ask. A position
// whose remaining edge went negative is a bet the model has disowned.
func (e *Engine) edgeGone(ctx context.Context, p domain.Position, quote domain.Quote) bool {
	m, err := e.exchange.GetMarket(ctx, p.Ticker)
	if err != nil {
		return false
	}
	cond, err := m.Condition()
	if err != nil {
		return false
	}
	ref, err := domain.ParseTicker(p.Ticker)
	if err != nil {
		return false
	}
	ens, err := e.forecasts.Ensemble(ctx, ref.Series, ref.Date)
	if err != nil {
		return false
	}

	hist := e.histError(ctx, ref.City, ref.Date.Month())
	minStd := e.calibration.MinStd(ref.City, ref.Date.Month())
	est := e.prob.Estimate(ens, hist, minStd, cond, time.Now())

	prob := est.Prob
	if p.Side == domain.SideNo {
		prob = 1 - est.Prob
	}
	ask := quote.Ask(p.Side)
	if ask <= 0 {
		return false
	}
	return sizing.Edge(prob, ask) <= 0
}

// ManageRestingOrders reprices or escalates stale maker orders that the
// market has moved away from.
func (e *Engine) ManageRestingOrders(ctx context.Context, now time.Time) {
	resting, err := e.exchange.GetRestingOrders(ctx, false)
	if err != nil {
		e.logger.Warn("resting order fetch failed", slog.Any("error", err))
		return
	}
	for _, o := range resting {
		if o.Action != domain.ActionBuy {
			continue
		}
		if now.Sub(o.PlacedAt) < e.cfg.Exit.StaleOrderMinAge.Duration {
			continue
		}
		if _, err := domain.ParseTicker(o.Ticker); err != nil {
			continue
		}

		book, err := e.exchange.GetOrderbook(ctx, o.Ticker)
		if err != nil {
			e.logger.Warn("book fetch for requote failed",
				slog.String("ticker", o.Ticker), slog.Any("error", err))
			continue
		}
		quote := domain.QuoteFrom(book)

		switch e.router.ShouldRequote(o, quote) {
		case router.KeepResting:
			continue
		case router.Reprice:
			newPrice := quote.Bid(o.Side) + 1
			if newPrice >= quote.Ask(o.Side) || newPrice <= o.PriceCents {
				continue
			}
			e.replaceOrder(ctx, o, newPrice)
		case router.TakeNow:
			ask := quote.Ask(o.Side)
			if ask <= 0 || ask > e.cfg.Exposure.MaxBuyPriceCents {
				continue
			}
			e.replaceOrder(ctx, o, ask)
		}
	}
}

// replaceOrder cancels a resting order and resubmits its remainder at the
// new price.
func (e *Engine) replaceOrder(ctx context.Context, o domain.RestingOrder, priceCents int64) {
	if err := e.exchange.CancelOrder(ctx, o.OrderID); err != nil {
		e.logger.Warn("requote cancel failed",
			slog.String("order_id", o.OrderID), slog.Any("error", err))
		return
	}
	if o.RemainingCount <= 0 {
		return
	}
	res, err := e.exchange.SubmitOrder(ctx, kalshi.OrderRequest{
		Ticker:     o.Ticker,
		Side:       o.Side,
		Action:     domain.ActionBuy,
		Count:      o.RemainingCount,
		PriceCents: priceCents,
		Type:       "limit",
	})
	if err != nil {
		if e.metrics != nil {
			e.metrics.OrderFailures.Inc()
		}
		e.logger.Error("requote submit failed",
			slog.String("ticker", o.Ticker), slog.Any("error", err))
		return
	}
	e.logger.Info("order requoted",
		slog.String("ticker", o.Ticker),
		slog.Int64("old_price", o.PriceCents),
		slog.Int64("new_price", priceCents),
		slog.String("order_id", res.OrderID))
}
