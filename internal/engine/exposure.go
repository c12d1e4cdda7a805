package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/skyline-trading/weatherbot/internal/domain"
	"github.com/skyline-trading/weatherbot/internal/platform/kalshi"
	"github.com/skyline-trading/weatherbot/internal/router"
)

// Execute submits a trade decision through the exposure controller. The base
// market is locked, exposure is recomputed from live portfolio state, the
// count is clipped to remaining headroom and the order is routed. Returns
// the skip reason when the order was suppressed rather than submitted.
func (e *Engine) Execute(ctx context.Context, d *domain.TradeDecision) (domain.SkipReason, error) {
	unlock, err := e.locks.Acquire(ctx, "exposure:"+d.BaseMarket, e.cfg.Exposure.LockTTL.Duration)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			return domain.SkipLiquidityExhausted, nil
		}
		return "", fmt.Errorf("engine: lock %s: %w", d.BaseMarket, err)
	}
	defer unlock()

	snap, resting, err := e.exposureSnapshot(ctx, d.BaseMarket)
	if err != nil {
		return "", err
	}

	for _, o := range resting {
		if o.Ticker == d.Ticker && o.Side == d.Side && o.Action == domain.ActionBuy {
			return domain.SkipDuplicateOrder, nil
		}
	}

	count := e.clipToHeadroom(d, snap)
	if count < e.cfg.Sizing.MinOrderContracts {
		// Remaining headroom cannot hold a viable order; shrinking below
		// the minimum is never worth the fees.
		e.logger.Info("exposure limit reached",
			slog.String("base_market", d.BaseMarket),
			slog.Int64("contracts", snap.Contracts),
			slog.Float64("dollars", snap.Dollars))
		return domain.SkipExposureLimit, nil
	}
	d.Count = count

	// Route against a fresh book; the evaluation quote may be seconds old.
	book, err := e.exchange.GetOrderbook(ctx, d.Ticker)
	if err != nil {
		return "", fmt.Errorf("engine: fresh book %s: %w", d.Ticker, err)
	}
	quote := domain.QuoteFrom(book)
	ask := quote.Ask(d.Side)
	if ask <= 0 {
		return domain.SkipEmptyOrderbook, nil
	}
	if ask > d.PriceCents+2 {
		// The ask ran away between evaluation and execution; the edge the
		// decision priced no longer exists at this level.
		return domain.SkipNoEdge, nil
	}
	ceiling := e.cfg.Exposure.MaxBuyPriceCents
	if d.Side == domain.SideNo && e.cfg.Exposure.MaxNoBuyPriceCents < ceiling {
		ceiling = e.cfg.Exposure.MaxNoBuyPriceCents
	}
	if ask > ceiling {
		// The drift tolerance above never licenses buying through the
		// hard price ceiling.
		return domain.SkipPriceCeiling, nil
	}

	instructions := e.router.Route(router.Request{
		Side:           d.Side,
		Count:          d.Count,
		Quote:          quote,
		Edge:           d.Edge,
		FairValueCents: int64(d.Prob * 100),
		Urgency:        d.Urgency,
	})
	if len(instructions) == 0 {
		return domain.SkipBelowMinOrder, nil
	}

	// Taker tranches cross the spread as limit orders priced at the ask;
	// a true market order has no price protection on a thin book.
	submitted := false
	for _, ins := range instructions {
		res, err := e.exchange.SubmitOrder(ctx, kalshi.OrderRequest{
			Ticker:     d.Ticker,
			Side:       d.Side,
			Action:     domain.ActionBuy,
			Count:      ins.Count,
			PriceCents: ins.PriceCents,
			Type:       "limit",
		})
		if err != nil {
			if e.metrics != nil {
				e.metrics.OrderFailures.Inc()
			}
			e.logger.Error("order submit failed",
				slog.String("ticker", d.Ticker),
				slog.Int64("price_cents", ins.PriceCents),
				slog.Any("error", err))
			if e.notifier != nil {
				_ = e.notifier.EngineError(ctx, "order submit "+d.Ticker, err)
			}
			continue
		}
		submitted = true
		d.Style = ins.Style
		if e.metrics != nil {
			e.metrics.OrdersSubmitted.WithLabelValues(string(ins.Style)).Inc()
		}
		e.logger.Info("order submitted",
			slog.String("ticker", d.Ticker),
			slog.String("side", string(d.Side)),
			slog.String("style", string(ins.Style)),
			slog.Int64("count", ins.Count),
			slog.Int64("price_cents", ins.PriceCents),
			slog.String("order_id", res.OrderID),
			slog.Float64("edge", d.Edge),
			slog.Float64("prob", d.Prob))

		if e.trades != nil {
			if err := e.trades.Record(ctx, *d, res.OrderID); err != nil {
				e.logger.Error("trade record failed", slog.Any("error", err))
			}
		}
	}
	if !submitted {
		return "", fmt.Errorf("engine: all order tranches failed for %s", d.Ticker)
	}

	e.trackPosition(*d, time.Now())
	if e.metrics != nil {
		e.metrics.Decisions.WithLabelValues(string(d.Mode), string(d.Side)).Inc()
	}
	if e.notifier != nil {
		_ = e.notifier.TradeEntered(ctx, *d)
	}
	if e.books != nil {
		_ = e.books.Invalidate(ctx, d.Ticker)
	}
	return "", nil
}

// exposureSnapshot recomputes base-market exposure from force-fresh holdings
// and resting orders. Filled contracts count at cost; resting buys count at
// their limit price.
func (e *Engine) exposureSnapshot(ctx context.Context, baseMarket string) (domain.ExposureSnapshot, []domain.RestingOrder, error) {
	holdings, err := e.exchange.GetPositions(ctx, true)
	if err != nil {
		return domain.ExposureSnapshot{}, nil, fmt.Errorf("engine: exposure positions: %w", err)
	}
	resting, err := e.exchange.GetRestingOrders(ctx, true)
	if err != nil {
		return domain.ExposureSnapshot{}, nil, fmt.Errorf("engine: exposure orders: %w", err)
	}

	snap := domain.ExposureSnapshot{BaseMarket: baseMarket, TakenAt: time.Now()}
	for _, h := range holdings {
		if domain.BaseMarketOf(h.Ticker) != baseMarket {
			continue
		}
		n := h.NetContracts
		if n < 0 {
			n = -n
		}
		snap.Contracts += n
		snap.Dollars += float64(h.ExposureCents) / 100
	}
	for _, o := range resting {
		if o.Action != domain.ActionBuy || domain.BaseMarketOf(o.Ticker) != baseMarket {
			continue
		}
		snap.Contracts += o.RemainingCount
		snap.Dollars += float64(o.RemainingCount*o.PriceCents) / 100
	}
	return snap, resting, nil
}

// clipToHeadroom reduces the decision count to what the contract and dollar
// limits still allow.
func (e *Engine) clipToHeadroom(d *domain.TradeDecision, snap domain.ExposureSnapshot) int64 {
	count := d.Count

	if room := e.cfg.Exposure.MaxContractsPerMarket - snap.Contracts; room < count {
		count = room
	}
	if count <= 0 {
		return 0
	}

	dollarRoom := e.cfg.Exposure.MaxDollarsPerMarket - snap.Dollars
	if dollarRoom <= 0 {
		return 0
	}
	perContract := float64(d.PriceCents) / 100
	if perContract > 0 {
		if byDollars := int64(dollarRoom / perContract); byDollars < count {
			count = byDollars
		}
	}
	return count
}
