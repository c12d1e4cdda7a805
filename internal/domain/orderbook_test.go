package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func sampleBook() OrderbookSnapshot {
	return OrderbookSnapshot{
		Ticker: "KXHIGHNY-26JAN28-T26",
		YesBids: []PriceLevel{
			{Price: 20, Qty: 100},
			{Price: 24, Qty: 50},
			{Price: 25, Qty: 30},
		},
		NoBids: []PriceLevel{
			{Price: 60, Qty: 200},
			{Price: 70, Qty: 80},
		},
	}
}

func TestOrderbookBestPrices(t *testing.T) {
	b := sampleBook()

	assert.Equal(t, int64(25), b.BestBid(SideYes))
	assert.Equal(t, int64(70), b.BestBid(SideNo))

	// Ask is 100 minus the opposite side's best bid.
	assert.Equal(t, int64(30), b.BestAsk(SideYes))
	assert.Equal(t, int64(75), b.BestAsk(SideNo))
}

func TestOrderbookEmptySides(t *testing.T) {
	b := OrderbookSnapshot{YesBids: []PriceLevel{{Price: 10, Qty: 1}}}
	assert.True(t, b.Empty())
	assert.Equal(t, int64(0), b.BestBid(SideNo))
	assert.Equal(t, int64(100), b.BestAsk(SideYes))
}

func TestDepthNear(t *testing.T) {
	b := sampleBook()

	// A YES buyer at 30 sees NO bids at 70 (ask 30) within 2 cents.
	assert.Equal(t, int64(80), b.DepthNear(SideYes, 30, 2))

	// Widen the tolerance and nothing else comes in range (ask 40 is far).
	assert.Equal(t, int64(80), b.DepthNear(SideYes, 30, 5))

	// NO buyer at 75 sees YES bids at 25 (ask 75) and 24 (ask 76).
	assert.Equal(t, int64(80), b.DepthNear(SideNo, 75, 1))
}

func TestQuoteFrom(t *testing.T) {
	q := QuoteFrom(sampleBook())

	assert.Equal(t, int64(25), q.Bid(SideYes))
	assert.Equal(t, int64(30), q.Ask(SideYes))
	assert.Equal(t, int64(70), q.Bid(SideNo))
	assert.Equal(t, int64(75), q.Ask(SideNo))
	assert.Equal(t, int64(5), q.Spread(SideYes))
}
