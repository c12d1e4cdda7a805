package domain

import "time"

// PositionState is the lifecycle state of a tracked market position.
//
//	NoPosition -> PendingOrder -> Filled -> Active -> Exiting -> Closed
//	PendingOrder -> Rejected
type PositionState string

const (
	PositionPending  PositionState = "pending_order"
	PositionFilled   PositionState = "filled"
	PositionActive   PositionState = "active"
	PositionExiting  PositionState = "exiting"
	PositionClosed   PositionState = "closed"
	PositionRejected PositionState = "rejected"
)

// Position is an entry tracked by the lifecycle controller from order fill
// until exit or external settlement.
type Position struct {
	Ticker     string
	BaseMarket string
	Side       Side
	Count      int64
	EntryCents int64
	EntryEdge  float64
	Mode       StrategyMode
	State      PositionState
	OpenedAt   time.Time
	ExitedAt   *time.Time
	ExitCents  *int64
}

// ExposureSnapshot aggregates contracts and dollars across every threshold
// variant of one base market, from live holdings plus live resting orders.
// It must be recomputed immediately before every order; reusing a cached
// snapshot is an invariant violation, not an optimization.
type ExposureSnapshot struct {
	BaseMarket string
	Contracts  int64
	Dollars    float64
	TakenAt    time.Time
}

// Holding is a live exchange position as reported by the exchange client.
type Holding struct {
	Ticker       string
	NetContracts int64 // negative for short
	ExposureCents int64
}

// RestingOrder is a live open order as reported by the exchange client.
type RestingOrder struct {
	OrderID        string
	Ticker         string
	Side           Side
	Action         Action
	PriceCents     int64
	RemainingCount int64
	PlacedAt       time.Time
}

// Settlement is a market outcome fed back into the historical-error store.
type Settlement struct {
	Ticker     string
	Won        bool
	PnLDollars float64
	SettledAt  time.Time
}
