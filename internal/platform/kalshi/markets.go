package kalshi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/skyline-trading/weatherbot/internal/domain"
)

// MarketsFilter narrows a GetMarkets call.
type MarketsFilter struct {
	SeriesTicker string
	Status       string
	Limit        int
	Cursor       string
}

// GetMarkets returns one page of markets plus the cursor for the next page.
// An empty cursor means the listing is exhausted.
func (c *Client) GetMarkets(ctx context.Context, f MarketsFilter) ([]domain.Market, string, error) {
	params := url.Values{}
	if f.SeriesTicker != "" {
		params.Set("series_ticker", f.SeriesTicker)
	}
	if f.Status != "" {
		params.Set("status", f.Status)
	}
	if f.Limit > 0 {
		params.Set("limit", fmt.Sprint(f.Limit))
	}
	if f.Cursor != "" {
		params.Set("cursor", f.Cursor)
	}

	path := "/markets"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	body, err := c.doSignedRequest(ctx, "GET", path, nil)
	if err != nil {
		return nil, "", fmt.Errorf("kalshi: get markets: %w", err)
	}

	var resp struct {
		Markets []MarketDTO `json:"markets"`
		Cursor  string      `json:"cursor"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, "", fmt.Errorf("kalshi: decode markets: %w", err)
	}

	markets := make([]domain.Market, 0, len(resp.Markets))
	for _, m := range resp.Markets {
		markets = append(markets, m.ToDomain())
	}
	return markets, resp.Cursor, nil
}

// GetSeriesMarkets pages through every open market under a series ticker.
func (c *Client) GetSeriesMarkets(ctx context.Context, series string) ([]domain.Market, error) {
	var out []domain.Market
	cursor := ""
	for {
		page, next, err := c.GetMarkets(ctx, MarketsFilter{
			SeriesTicker: series,
			Status:       "open",
			Limit:        100,
			Cursor:       cursor,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if next == "" {
			return out, nil
		}
		cursor = next
	}
}

// GetMarket returns a single market by its ticker.
func (c *Client) GetMarket(ctx context.Context, ticker string) (domain.Market, error) {
	path := "/markets/" + url.PathEscape(ticker)

	body, err := c.doSignedRequest(ctx, "GET", path, nil)
	if err != nil {
		return domain.Market{}, fmt.Errorf("kalshi: get market %s: %w", ticker, err)
	}

	var resp struct {
		Market MarketDTO `json:"market"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.Market{}, fmt.Errorf("kalshi: decode market: %w", err)
	}

	return resp.Market.ToDomain(), nil
}

// GetOrderbook returns the current orderbook for the given market ticker.
// Kalshi reports resting bids for both sides; asks are derived from the
// opposite side's bids (yes ask = 100 − best no bid).
func (c *Client) GetOrderbook(ctx context.Context, ticker string) (domain.OrderbookSnapshot, error) {
	path := "/markets/" + url.PathEscape(ticker) + "/orderbook"

	body, err := c.doSignedRequest(ctx, "GET", path, nil)
	if err != nil {
		return domain.OrderbookSnapshot{}, fmt.Errorf("kalshi: get orderbook %s: %w", ticker, err)
	}

	var resp struct {
		Orderbook OrderbookDTO `json:"orderbook"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.OrderbookSnapshot{}, fmt.Errorf("kalshi: decode orderbook: %w", err)
	}

	return resp.Orderbook.ToDomain(ticker, time.Now()), nil
}
