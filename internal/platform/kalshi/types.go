package kalshi

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/skyline-trading/weatherbot/internal/domain"
)

// --------------------------------------------------------------------------
// REST DTOs
// --------------------------------------------------------------------------

// MarketDTO is a market as returned by the Kalshi REST API.
type MarketDTO struct {
	Ticker       string  `json:"ticker"`
	EventTicker  string  `json:"event_ticker"`
	Title        string  `json:"title"`
	Subtitle     string  `json:"subtitle"`
	Status       string  `json:"status"`
	YesBid       int64   `json:"yes_bid"`
	YesAsk       int64   `json:"yes_ask"`
	NoBid        int64   `json:"no_bid"`
	NoAsk        int64   `json:"no_ask"`
	LastPrice    int64   `json:"last_price"`
	Volume       int64   `json:"volume"`
	Volume24H    int64   `json:"volume_24h"`
	OpenInterest int64   `json:"open_interest"`
	StrikeType   string  `json:"strike_type"`
	FloorStrike  float64 `json:"floor_strike"`
	CapStrike    float64 `json:"cap_strike"`
	Result       string  `json:"result"`
	OpenTime     string  `json:"open_time"`
	CloseTime    string  `json:"close_time"`
}

// ToDomain converts a REST market payload to the domain model. The series
// ticker is the portion of the event ticker before the date segment.
func (m MarketDTO) ToDomain() domain.Market {
	closeTime, _ := time.Parse(time.RFC3339, m.CloseTime)

	series := m.EventTicker
	if i := strings.Index(series, "-"); i > 0 {
		series = series[:i]
	}

	return domain.Market{
		Ticker:       m.Ticker,
		SeriesTicker: series,
		Title:        m.Title,
		Status:       domain.MarketStatus(m.Status),
		Volume:       m.Volume,
		YesBid:       m.YesBid,
		YesAsk:       m.YesAsk,
		NoBid:        m.NoBid,
		NoAsk:        m.NoAsk,
		StrikeType:   m.StrikeType,
		FloorStrike:  m.FloorStrike,
		CapStrike:    m.CapStrike,
		CloseTime:    closeTime,
	}
}

// LevelDTO is one orderbook price level. Kalshi encodes levels as
// two-element [price, quantity] arrays.
type LevelDTO struct {
	Price int64
	Qty   int64
}

// UnmarshalJSON accepts the [price, qty] pair encoding.
func (l *LevelDTO) UnmarshalJSON(data []byte) error {
	var pair [2]int64
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("orderbook level: %w", err)
	}
	l.Price = pair[0]
	l.Qty = pair[1]
	return nil
}

// OrderbookDTO is the orderbook payload for a market. Both arrays hold
// resting bids in ascending price order.
type OrderbookDTO struct {
	Yes []LevelDTO `json:"yes"`
	No  []LevelDTO `json:"no"`
}

// ToDomain converts the payload to an OrderbookSnapshot.
func (o OrderbookDTO) ToDomain(ticker string, ts time.Time) domain.OrderbookSnapshot {
	toLevels := func(in []LevelDTO) []domain.PriceLevel {
		out := make([]domain.PriceLevel, 0, len(in))
		for _, l := range in {
			out = append(out, domain.PriceLevel{Price: l.Price, Qty: l.Qty})
		}
		return out
	}
	return domain.OrderbookSnapshot{
		Ticker:    ticker,
		YesBids:   toLevels(o.Yes),
		NoBids:    toLevels(o.No),
		Timestamp: ts,
	}
}

// OrderDTO is the order-creation request body.
type OrderDTO struct {
	Ticker        string `json:"ticker"`
	ClientOrderID string `json:"client_order_id"`
	Action        string `json:"action"`
	Side          string `json:"side"`
	Type          string `json:"type"`
	Count         int64  `json:"count"`
	YesPrice      *int64 `json:"yes_price,omitempty"`
	NoPrice       *int64 `json:"no_price,omitempty"`
	Expiration    *int64 `json:"expiration_ts,omitempty"`
	BuyMaxCost    *int64 `json:"buy_max_cost,omitempty"`
}

// OrderResponseDTO is the API response after placing an order.
type OrderResponseDTO struct {
	Order struct {
		OrderID        string `json:"order_id"`
		Ticker         string `json:"ticker"`
		Status         string `json:"status"`
		Action         string `json:"action"`
		Side           string `json:"side"`
		YesPrice       int64  `json:"yes_price"`
		NoPrice        int64  `json:"no_price"`
		RemainingCount int64  `json:"remaining_count"`
		TakerFillCount int64  `json:"taker_fill_count"`
		MakerFillCount int64  `json:"maker_fill_count"`
	} `json:"order"`
}

// PositionDTO is one entry from /portfolio/positions.
type PositionDTO struct {
	Ticker         string `json:"ticker"`
	Position       int64  `json:"position"` // positive = yes, negative = no
	MarketExposure int64  `json:"market_exposure"`
	RealizedPnl    int64  `json:"realized_pnl"`
	TotalTraded    int64  `json:"total_traded"`
}

// RestingOrderDTO is one entry from /portfolio/orders.
type RestingOrderDTO struct {
	OrderID        string `json:"order_id"`
	Ticker         string `json:"ticker"`
	Action         string `json:"action"`
	Side           string `json:"side"`
	YesPrice       int64  `json:"yes_price"`
	NoPrice        int64  `json:"no_price"`
	RemainingCount int64  `json:"remaining_count"`
	CreatedTime    string `json:"created_time"`
}

// ToDomain converts a resting order payload to the domain model.
func (o RestingOrderDTO) ToDomain() domain.RestingOrder {
	placed, _ := time.Parse(time.RFC3339, o.CreatedTime)
	price := o.YesPrice
	if domain.Side(o.Side) == domain.SideNo {
		price = o.NoPrice
	}
	return domain.RestingOrder{
		OrderID:        o.OrderID,
		Ticker:         o.Ticker,
		Side:           domain.Side(o.Side),
		Action:         domain.Action(o.Action),
		PriceCents:     price,
		RemainingCount: o.RemainingCount,
		PlacedAt:       placed,
	}
}

// SettlementDTO is one entry from /portfolio/settlements.
type SettlementDTO struct {
	Ticker      string `json:"ticker"`
	MarketResult string `json:"market_result"`
	YesCount    int64  `json:"yes_count"`
	NoCount     int64  `json:"no_count"`
	Revenue     int64  `json:"revenue"` // cents
	SettledTime string `json:"settled_time"`
}

// ToDomain converts a settlement payload to the domain model. PnL is revenue
// minus cost, which Kalshi folds into the revenue figure already.
func (s SettlementDTO) ToDomain() domain.Settlement {
	settled, _ := time.Parse(time.RFC3339, s.SettledTime)
	won := (s.MarketResult == "yes" && s.YesCount > 0) ||
		(s.MarketResult == "no" && s.NoCount > 0)
	return domain.Settlement{
		Ticker:     s.Ticker,
		Won:        won,
		PnLDollars: float64(s.Revenue) / 100,
		SettledAt:  settled,
	}
}

// ErrorResponse is the Kalshi API error body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// --------------------------------------------------------------------------
// WebSocket DTOs
// --------------------------------------------------------------------------

// WSMessage is the envelope for Kalshi WebSocket messages.
type WSMessage struct {
	Type string          `json:"type"`
	Msg  json.RawMessage `json:"msg"`
	SID  int64           `json:"sid"`
}

// WSOrderbookSnapshot is the full book sent when a subscription starts.
type WSOrderbookSnapshot struct {
	Ticker string     `json:"market_ticker"`
	Yes    []LevelDTO `json:"yes"`
	No     []LevelDTO `json:"no"`
}

// WSOrderbookDelta is a single level change.
type WSOrderbookDelta struct {
	Ticker string `json:"market_ticker"`
	Price  int64  `json:"price"`
	Delta  int64  `json:"delta"`
	Side   string `json:"side"`
}

// WSTicker carries top-of-book and volume updates.
type WSTicker struct {
	Ticker string `json:"market_ticker"`
	YesBid int64  `json:"yes_bid"`
	YesAsk int64  `json:"yes_ask"`
	Volume int64  `json:"volume"`
}

// WSSubscribeCmd is the command sent to subscribe to channels.
type WSSubscribeCmd struct {
	ID     int64             `json:"id"`
	Cmd    string            `json:"cmd"`
	Params WSSubscribeParams `json:"params"`
}

// WSSubscribeParams defines the subscription parameters.
type WSSubscribeParams struct {
	Channels []string `json:"channels"`
	Tickers  []string `json:"market_tickers"`
}
