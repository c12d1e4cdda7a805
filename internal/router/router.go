// Package router turns trade decisions into concrete order instructions:
// maker versus taker, limit price, and tranche splitting.
package router

import (
	"log/slog"

	"github.com/skyline-trading/weatherbot/internal/config"
	"github.com/skyline-trading/weatherbot/internal/domain"
)

// Router prices orders against the current book. It holds no state; every
// call reasons from the quote it is given.
type Router struct {
	cfg    config.RouterConfig
	logger *slog.Logger
}

// New creates a Router.
func New(cfg config.RouterConfig, logger *slog.Logger) *Router {
	return &Router{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "router")),
	}
}

// Request is one routing call.
type Request struct {
	Side    domain.Side
	Count   int64
	Quote   domain.Quote
	Edge    float64 // cents
	// FairValueCents is the model probability on the centesimal scale.
	FairValueCents int64
	Urgency        domain.Urgency
}

// Route produces the order instructions for a buy. The default posture is
// patient maker flow one tick above the bid; it crosses the spread only when
// urgency or an unusually large remaining edge justifies paying it.
func (r *Router) Route(req Request) []domain.OrderInstruction {
	if req.Count <= 0 {
		return nil
	}

	bid := req.Quote.Bid(req.Side)
	ask := req.Quote.Ask(req.Side)
	spread := ask - bid

	// Immediate execution wanted: pay the ask.
	if req.Urgency == domain.UrgencyHigh {
		return r.single(ask, req.Count, domain.OrderTaker)
	}

	// Taker escalation at normal urgency: the edge is big enough that queue
	// risk costs more than the spread, or the ask already sits at fair
	// value. Low urgency always posts maker.
	if req.Urgency != domain.UrgencyLow {
		fvGap := req.FairValueCents - ask
		if fvGap < 0 {
			fvGap = -fvGap
		}
		if req.Edge > r.cfg.AggressiveEdge || fvGap <= r.cfg.TakerFairValueGap {
			return r.single(ask, req.Count, domain.OrderTaker)
		}
	}

	var price int64
	if spread > r.cfg.MaxSpreadToMake {
		// Wide book: bid+1 would sit far from fair value and never fill.
		// Post near fair value instead, staying inside the spread.
		price = clampInt(req.FairValueCents-1, bid+1, ask-2)
	} else {
		price = bid + 1
	}
	if price < 1 {
		price = 1
	}
	if price >= ask {
		// The book is too tight to improve the bid; take instead.
		return r.single(ask, req.Count, domain.OrderTaker)
	}

	// Larger orders are split across two price levels so a single queue
	// position does not strand the whole size.
	if req.Count > r.cfg.SplitAbove && price+1 < ask {
		first := req.Count / 2
		if first == 0 {
			first = 1
		}
		return []domain.OrderInstruction{
			{PriceCents: price, Count: first, Style: domain.OrderMaker},
			{PriceCents: price + 1, Count: req.Count - first, Style: domain.OrderMaker},
		}
	}

	return r.single(price, req.Count, domain.OrderMaker)
}

// RouteExit prices a position exit: one tick inside the bid-side ask so the
// sale fills quickly without fully crossing.
func (r *Router) RouteExit(side domain.Side, count int64, quote domain.Quote) domain.OrderInstruction {
	ask := quote.Ask(side)
	price := ask - 1
	if bid := quote.Bid(side); price < bid {
		price = bid
	}
	if price < 1 {
		price = 1
	}
	return domain.OrderInstruction{PriceCents: price, Count: count, Style: domain.OrderMaker}
}

// RequoteAction says what to do with a resting maker order given the
// current quote.
type RequoteAction int

const (
	// KeepResting leaves the order where it is.
	KeepResting RequoteAction = iota
	// Reprice cancels and re-posts at a better level.
	Reprice
	// TakeNow cancels and crosses: the book has moved through the order's
	// price and waiting only risks the edge decaying.
	TakeNow
)

// ShouldRequote evaluates a resting buy order against the current quote.
func (r *Router) ShouldRequote(order domain.RestingOrder, quote domain.Quote) RequoteAction {
	bid := quote.Bid(order.Side)
	ask := quote.Ask(order.Side)

	if ask <= order.PriceCents {
		return TakeNow
	}
	if bid-order.PriceCents > r.cfg.RequoteThreshold {
		return Reprice
	}
	return KeepResting
}

func (r *Router) single(price, count int64, style domain.OrderStyle) []domain.OrderInstruction {
	if price < 1 {
		price = 1
	}
	if price > 99 {
		price = 99
	}
	return []domain.OrderInstruction{{PriceCents: price, Count: count, Style: style}}
}

func clampInt(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
