package domain

import "time"

// Action is the order direction.
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
)

// StrategyMode identifies which entry rule produced a decision.
type StrategyMode string

const (
	ModeConservative StrategyMode = "conservative"
	ModeLongshot     StrategyMode = "longshot"
)

// OrderStyle distinguishes resting orders from ones that cross the spread.
type OrderStyle string

const (
	OrderMaker OrderStyle = "maker"
	OrderTaker OrderStyle = "taker"
)

// Urgency steers the order router between patience and immediacy.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyNormal Urgency = "normal"
	UrgencyHigh   Urgency = "high"
)

// SkipReason enumerates every way a market evaluation can end without a
// trade. Skips are decision outcomes, not errors: each one is loggable and
// countable.
type SkipReason string

const (
	SkipNotWeatherSeries    SkipReason = "not_weather_series"
	SkipMarketClosed        SkipReason = "market_closed"
	SkipLowVolume           SkipReason = "low_volume"
	SkipDateOutOfWindow     SkipReason = "date_out_of_window"
	SkipNoCondition         SkipReason = "no_condition"
	SkipOutcomeDetermined   SkipReason = "outcome_determined"
	SkipPastExtreme         SkipReason = "past_extreme_of_day"
	SkipNoForecasts         SkipReason = "no_forecasts"
	SkipTooFewSources       SkipReason = "too_few_sources"
	SkipLowSpread           SkipReason = "forecast_spread_too_low"
	SkipNearThreshold       SkipReason = "forecast_near_threshold"
	SkipWrongDirection      SkipReason = "forecast_direction_mismatch"
	SkipEmptyOrderbook      SkipReason = "empty_orderbook"
	SkipNoEdge              SkipReason = "no_edge"
	SkipLowEV               SkipReason = "low_ev"
	SkipCIOverlap           SkipReason = "ci_overlaps_ask"
	SkipPriceCeiling        SkipReason = "price_above_ceiling"
	SkipExposureLimit       SkipReason = "exposure_limit"
	SkipBelowMinOrder       SkipReason = "below_min_order_size"
	SkipDuplicateOrder      SkipReason = "resting_order_exists"
	SkipMarketDisabled      SkipReason = "market_disabled"
	SkipCooldown            SkipReason = "cooldown"
	SkipDailyLossLimit      SkipReason = "daily_loss_limit"
	SkipRangeDisabled       SkipReason = "range_markets_disabled"
	SkipRangeBoundary       SkipReason = "forecast_near_range_boundary"
	SkipEvaluationError     SkipReason = "evaluation_error"
	SkipOutcomeExcluded     SkipReason = "previously_determined"
	SkipLiquidityExhausted  SkipReason = "no_capacity"
)

// TradeDecision is the immutable output of one market evaluation. Produced
// at most once per market per scan and consumed immediately by the exposure
// controller.
type TradeDecision struct {
	ID         string
	Ticker     string
	BaseMarket string
	Side       Side
	Action     Action
	Count      int64
	PriceCents int64
	Edge       float64
	EV         float64
	Prob       float64
	CILow      float64
	CIHigh     float64
	Mode       StrategyMode
	Style      OrderStyle
	Urgency    Urgency
	CreatedAt  time.Time
}

// Dollars is the total stake of the decision in dollars.
func (d TradeDecision) Dollars() float64 {
	return float64(d.Count) * float64(d.PriceCents) / 100.0
}

// EvalResult is the outcome of evaluating one market: either a decision or
// an enumerated skip reason, never both.
type EvalResult struct {
	Decision *TradeDecision
	Skip     SkipReason
	Detail   string
}

// Skipped builds a skip result.
func Skipped(reason SkipReason, detail string) EvalResult {
	return EvalResult{Skip: reason, Detail: detail}
}

// Decided builds a trade result.
func Decided(d *TradeDecision) EvalResult {
	return EvalResult{Decision: d}
}

// ExitReason enumerates why an active position is being closed.
type ExitReason string

const (
	ExitTakeProfit ExitReason = "take_profit"
	ExitEdgeGone   ExitReason = "edge_gone"
	ExitStopLoss   ExitReason = "stop_loss"
)

// ExitDecision requests the sale of an active position.
type ExitDecision struct {
	Ticker     string
	Side       Side
	Count      int64
	PriceCents int64
	Reason     ExitReason
	ProfitPct  float64
}

// OrderInstruction is one tranche produced by the order router.
type OrderInstruction struct {
	PriceCents int64
	Count      int64
	Style      OrderStyle
}
