package kalshi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/skyline-trading/weatherbot/internal/domain"
)

// OrderRequest describes an order to submit. Price is the limit price in
// cents for the side being traded.
type OrderRequest struct {
	Ticker     string
	Side       domain.Side
	Action     domain.Action
	Count      int64
	PriceCents int64
	Type       string // "limit" or "market"
}

// OrderResult is what survived of a submitted order.
type OrderResult struct {
	OrderID        string
	Status         string
	FilledCount    int64
	RemainingCount int64
}

// SubmitOrder places an order with a fresh client-generated idempotency ID.
func (c *Client) SubmitOrder(ctx context.Context, req OrderRequest) (OrderResult, error) {
	if req.Count <= 0 {
		return OrderResult{}, fmt.Errorf("kalshi: submit order: count %d: %w", req.Count, domain.ErrInvalidOrder)
	}
	if req.Type == "" {
		req.Type = "limit"
	}
	if req.Type == "limit" && (req.PriceCents < 1 || req.PriceCents > 99) {
		return OrderResult{}, fmt.Errorf("kalshi: submit order: price %d out of range: %w", req.PriceCents, domain.ErrInvalidOrder)
	}

	dto := OrderDTO{
		Ticker:        req.Ticker,
		ClientOrderID: uuid.NewString(),
		Action:        string(req.Action),
		Side:          string(req.Side),
		Type:          req.Type,
		Count:         req.Count,
	}
	if req.Type == "limit" {
		price := req.PriceCents
		switch req.Side {
		case domain.SideYes:
			dto.YesPrice = &price
		case domain.SideNo:
			dto.NoPrice = &price
		}
	}

	body, err := c.doSignedRequest(ctx, "POST", "/portfolio/orders", dto)
	if err != nil {
		return OrderResult{}, fmt.Errorf("kalshi: place order: %w", err)
	}

	var resp OrderResponseDTO
	if err := json.Unmarshal(body, &resp); err != nil {
		return OrderResult{}, fmt.Errorf("kalshi: decode order response: %w", err)
	}

	c.invalidatePortfolioCache()

	c.logger.Info("order submitted",
		slog.String("ticker", req.Ticker),
		slog.String("side", string(req.Side)),
		slog.String("action", string(req.Action)),
		slog.Int64("count", req.Count),
		slog.Int64("price_cents", req.PriceCents),
		slog.String("order_id", resp.Order.OrderID),
		slog.String("status", resp.Order.Status),
	)

	return OrderResult{
		OrderID:        resp.Order.OrderID,
		Status:         resp.Order.Status,
		FilledCount:    resp.Order.TakerFillCount + resp.Order.MakerFillCount,
		RemainingCount: resp.Order.RemainingCount,
	}, nil
}

// CancelOrder cancels a resting order by its ID.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	path := "/portfolio/orders/" + url.PathEscape(orderID)

	if _, err := c.doSignedRequest(ctx, "DELETE", path, nil); err != nil {
		return fmt.Errorf("kalshi: cancel order %s: %w", orderID, err)
	}

	c.invalidatePortfolioCache()
	return nil
}

// GetPositions returns the account's current market positions. When
// forceFresh is false a short-lived cache may serve the result; exposure
// checks pass true so limits are enforced against live state.
func (c *Client) GetPositions(ctx context.Context, forceFresh bool) ([]domain.Holding, error) {
	if !forceFresh {
		c.cacheMu.Lock()
		if !c.positionsCache.fetched.IsZero() && time.Since(c.positionsCache.fetched) < c.cacheTTL {
			v := c.positionsCache.value
			c.cacheMu.Unlock()
			return v, nil
		}
		c.cacheMu.Unlock()
	}

	var out []domain.Holding
	cursor := ""
	for {
		params := url.Values{}
		params.Set("limit", "200")
		params.Set("settlement_status", "unsettled")
		if cursor != "" {
			params.Set("cursor", cursor)
		}

		body, err := c.doSignedRequest(ctx, "GET", "/portfolio/positions?"+params.Encode(), nil)
		if err != nil {
			return nil, fmt.Errorf("kalshi: get positions: %w", err)
		}

		var resp struct {
			MarketPositions []PositionDTO `json:"market_positions"`
			Cursor          string        `json:"cursor"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("kalshi: decode positions: %w", err)
		}

		for _, p := range resp.MarketPositions {
			if p.Position == 0 {
				continue
			}
			out = append(out, domain.Holding{
				Ticker:        p.Ticker,
				NetContracts:  p.Position,
				ExposureCents: p.MarketExposure,
			})
		}

		if resp.Cursor == "" {
			break
		}
		cursor = resp.Cursor
	}

	c.cacheMu.Lock()
	c.positionsCache = cached[[]domain.Holding]{value: out, fetched: time.Now()}
	c.cacheMu.Unlock()

	return out, nil
}

// GetRestingOrders returns the account's open (resting) orders. Same cache
// semantics as GetPositions.
func (c *Client) GetRestingOrders(ctx context.Context, forceFresh bool) ([]domain.RestingOrder, error) {
	if !forceFresh {
		c.cacheMu.Lock()
		if !c.ordersCache.fetched.IsZero() && time.Since(c.ordersCache.fetched) < c.cacheTTL {
			v := c.ordersCache.value
			c.cacheMu.Unlock()
			return v, nil
		}
		c.cacheMu.Unlock()
	}

	var out []domain.RestingOrder
	cursor := ""
	for {
		params := url.Values{}
		params.Set("status", "resting")
		params.Set("limit", "200")
		if cursor != "" {
			params.Set("cursor", cursor)
		}

		body, err := c.doSignedRequest(ctx, "GET", "/portfolio/orders?"+params.Encode(), nil)
		if err != nil {
			return nil, fmt.Errorf("kalshi: get orders: %w", err)
		}

		var resp struct {
			Orders []RestingOrderDTO `json:"orders"`
			Cursor string            `json:"cursor"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("kalshi: decode orders: %w", err)
		}

		for _, o := range resp.Orders {
			out = append(out, o.ToDomain())
		}

		if resp.Cursor == "" {
			break
		}
		cursor = resp.Cursor
	}

	c.cacheMu.Lock()
	c.ordersCache = cached[[]domain.RestingOrder]{value: out, fetched: time.Now()}
	c.cacheMu.Unlock()

	return out, nil
}

// GetSettlements returns settlements recorded since the given time.
func (c *Client) GetSettlements(ctx context.Context, since time.Time) ([]domain.Settlement, error) {
	params := url.Values{}
	params.Set("limit", "200")
	if !since.IsZero() {
		params.Set("min_ts", fmt.Sprint(since.Unix()))
	}

	body, err := c.doSignedRequest(ctx, "GET", "/portfolio/settlements?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("kalshi: get settlements: %w", err)
	}

	var resp struct {
		Settlements []SettlementDTO `json:"settlements"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("kalshi: decode settlements: %w", err)
	}

	out := make([]domain.Settlement, 0, len(resp.Settlements))
	for _, s := range resp.Settlements {
		out = append(out, s.ToDomain())
	}
	return out, nil
}

// GetBalance returns the account's available balance in cents.
func (c *Client) GetBalance(ctx context.Context) (int64, error) {
	body, err := c.doSignedRequest(ctx, "GET", "/portfolio/balance", nil)
	if err != nil {
		return 0, fmt.Errorf("kalshi: get balance: %w", err)
	}

	var resp struct {
		Balance int64 `json:"balance"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("kalshi: decode balance: %w", err)
	}
	return resp.Balance, nil
}

func (c *Client) invalidatePortfolioCache() {
	c.cacheMu.Lock()
	c.positionsCache = cached[[]domain.Holding]{}
	c.ordersCache = cached[[]domain.RestingOrder]{}
	c.cacheMu.Unlock()
}
