// Package engine contains the market evaluation pipeline, the exposure
// controller and the scan loop that drive trading.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skyline-trading/weatherbot/internal/domain"
	"github.com/skyline-trading/weatherbot/internal/platform/kalshi"
)

// Exchange is the slice of the exchange client the engine depends on.
// *kalshi.Client satisfies it; tests and paper mode substitute their own.
type Exchange interface {
	GetSeriesMarkets(ctx context.Context, series string) ([]domain.Market, error)
	GetMarket(ctx context.Context, ticker string) (domain.Market, error)
	GetOrderbook(ctx context.Context, ticker string) (domain.OrderbookSnapshot, error)
	GetPositions(ctx context.Context, forceFresh bool) ([]domain.Holding, error)
	GetRestingOrders(ctx context.Context, forceFresh bool) ([]domain.RestingOrder, error)
	SubmitOrder(ctx context.Context, req kalshi.OrderRequest) (kalshi.OrderResult, error)
	CancelOrder(ctx context.Context, orderID string) error
	GetSettlements(ctx context.Context, since time.Time) ([]domain.Settlement, error)
	GetBalance(ctx context.Context) (int64, error)
}

var _ Exchange = (*kalshi.Client)(nil)

// PaperExchange reads market data from the real exchange but simulates the
// portfolio locally: submits fill instantly at the requested price, nothing
// reaches the exchange.
type PaperExchange struct {
	real   Exchange
	logger *slog.Logger

	mu       sync.Mutex
	holdings map[string]*domain.Holding
	resting  map[string]domain.RestingOrder
	balance  int64
}

// NewPaperExchange wraps the given exchange for paper trading with the given
// starting balance in cents.
func NewPaperExchange(real Exchange, balanceCents int64, logger *slog.Logger) *PaperExchange {
	return &PaperExchange{
		real:     real,
		logger:   logger.With(slog.String("component", "paper")),
		holdings: make(map[string]*domain.Holding),
		resting:  make(map[string]domain.RestingOrder),
		balance:  balanceCents,
	}
}

func (p *PaperExchange) GetSeriesMarkets(ctx context.Context, series string) ([]domain.Market, error) {
	return p.real.GetSeriesMarkets(ctx, series)
}

func (p *PaperExchange) GetMarket(ctx context.Context, ticker string) (domain.Market, error) {
	return p.real.GetMarket(ctx, ticker)
}

func (p *PaperExchange) GetOrderbook(ctx context.Context, ticker string) (domain.OrderbookSnapshot, error) {
	return p.real.GetOrderbook(ctx, ticker)
}

func (p *PaperExchange) GetPositions(_ context.Context, _ bool) ([]domain.Holding, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.Holding, 0, len(p.holdings))
	for _, h := range p.holdings {
		out = append(out, *h)
	}
	return out, nil
}

func (p *PaperExchange) GetRestingOrders(_ context.Context, _ bool) ([]domain.RestingOrder, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.RestingOrder, 0, len(p.resting))
	for _, o := range p.resting {
		out = append(out, o)
	}
	return out, nil
}

// SubmitOrder fills buys immediately at the limit price and nets sells
// against the tracked holding.
func (p *PaperExchange) SubmitOrder(_ context.Context, req kalshi.OrderRequest) (kalshi.OrderResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cost := req.PriceCents * req.Count
	if req.Action == domain.ActionBuy && cost > p.balance {
		return kalshi.OrderResult{}, fmt.Errorf("paper: insufficient balance: %w", domain.ErrInvalidOrder)
	}

	h, ok := p.holdings[req.Ticker]
	if !ok {
		h = &domain.Holding{Ticker: req.Ticker}
		p.holdings[req.Ticker] = h
	}

	delta := req.Count
	if req.Side == domain.SideNo {
		delta = -req.Count
	}
	if req.Action == domain.ActionSell {
		delta = -delta
	}
	h.NetContracts += delta

	if req.Action == domain.ActionBuy {
		p.balance -= cost
		h.ExposureCents += cost
	} else {
		p.balance += cost
		h.ExposureCents -= cost
		if h.ExposureCents < 0 {
			h.ExposureCents = 0
		}
	}
	if h.NetContracts == 0 {
		delete(p.holdings, req.Ticker)
	}

	orderID := uuid.NewString()
	p.logger.Info("paper fill",
		slog.String("ticker", req.Ticker),
		slog.String("side", string(req.Side)),
		slog.String("action", string(req.Action)),
		slog.Int64("count", req.Count),
		slog.Int64("price_cents", req.PriceCents),
	)

	return kalshi.OrderResult{
		OrderID:     orderID,
		Status:      "executed",
		FilledCount: req.Count,
	}, nil
}

func (p *PaperExchange) CancelOrder(_ context.Context, orderID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.resting, orderID)
	return nil
}

func (p *PaperExchange) GetSettlements(_ context.Context, _ time.Time) ([]domain.Settlement, error) {
	return nil, nil
}

func (p *PaperExchange) GetBalance(_ context.Context) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.balance, nil
}
