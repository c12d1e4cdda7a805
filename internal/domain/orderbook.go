package domain

import "time"

// Side is the contract side of a binary market.
type Side string

const (
	SideYes Side = "yes"
	SideNo  Side = "no"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideYes {
		return SideNo
	}
	return SideYes
}

// PriceLevel is one price+quantity entry in an orderbook, in cents (1-99).
type PriceLevel struct {
	Price int64
	Qty   int64
}

// OrderbookSnapshot is a full snapshot of resting bids for a market. Kalshi
// books list only bids per side, sorted ascending; the ask for a side is
// derived as 100 minus the best bid of the opposite side (contracts settle
// at 0 or 100 on a centesimal scale).
type OrderbookSnapshot struct {
	Ticker    string
	YesBids   []PriceLevel
	NoBids    []PriceLevel
	Timestamp time.Time
}

// Empty reports whether either side of the book has no resting bids.
func (b OrderbookSnapshot) Empty() bool {
	return len(b.YesBids) == 0 || len(b.NoBids) == 0
}

// BestBid returns the highest resting bid for the side, or 0 when the side
// is empty. Levels are sorted ascending so the best bid is the last entry.
func (b OrderbookSnapshot) BestBid(side Side) int64 {
	levels := b.YesBids
	if side == SideNo {
		levels = b.NoBids
	}
	if len(levels) == 0 {
		return 0
	}
	return levels[len(levels)-1].Price
}

// BestAsk returns the lowest price at which the side can be bought:
// 100 - best bid of the opposite side. Returns 100 when the opposite side
// is empty.
func (b OrderbookSnapshot) BestAsk(side Side) int64 {
	opp := b.BestBid(side.Opposite())
	if opp == 0 {
		return 100
	}
	return 100 - opp
}

// DepthNear sums resting quantity on the opposite side whose implied ask is
// within tolerance cents of price. This is the liquidity visible to a buyer
// of side at or near price.
func (b OrderbookSnapshot) DepthNear(side Side, price, tolerance int64) int64 {
	levels := b.NoBids
	if side == SideNo {
		levels = b.YesBids
	}
	var depth int64
	for _, lvl := range levels {
		ask := 100 - lvl.Price
		if ask >= price-tolerance && ask <= price+tolerance {
			depth += lvl.Qty
		}
	}
	return depth
}

// Quote is the best bid/ask pair for both sides of a market, derived from an
// orderbook snapshot. Quotes are short-lived: they must be re-derived from a
// fresh snapshot before every order decision and never reused across cycles.
type Quote struct {
	Ticker    string
	YesBid    int64
	YesAsk    int64
	NoBid     int64
	NoAsk     int64
	FetchedAt time.Time
}

// QuoteFrom derives a Quote from a book snapshot.
func QuoteFrom(b OrderbookSnapshot) Quote {
	return Quote{
		Ticker:    b.Ticker,
		YesBid:    b.BestBid(SideYes),
		YesAsk:    b.BestAsk(SideYes),
		NoBid:     b.BestBid(SideNo),
		NoAsk:     b.BestAsk(SideNo),
		FetchedAt: b.Timestamp,
	}
}

// Bid returns the best bid for the side.
func (q Quote) Bid(side Side) int64 {
	if side == SideYes {
		return q.YesBid
	}
	return q.NoBid
}

// Ask returns the best ask for the side.
func (q Quote) Ask(side Side) int64 {
	if side == SideYes {
		return q.YesAsk
	}
	return q.NoAsk
}

// Spread returns ask minus bid for the side.
func (q Quote) Spread(side Side) int64 {
	return q.Ask(side) - q.Bid(side)
}
