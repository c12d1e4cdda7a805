package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyline-trading/weatherbot/internal/config"
	"github.com/skyline-trading/weatherbot/internal/domain"
)

func TestManagePositionsTakeProfit(t *testing.T) {
	ex := &fakeExchange{books: map[string]domain.OrderbookSnapshot{
		// YES bid 40 against a 30 cent entry: +33% and +10 cents.
		testTicker: bookAt(40, 55),
	}}
	e := newTestEngine(t, ex, nil)
	e.trackPosition(*decision(5, 30), time.Now().Add(-10*time.Minute))

	e.ManagePositions(context.Background(), time.Now())

	require.Len(t, ex.submitted, 1)
	req := ex.submitted[0]
	assert.Equal(t, domain.ActionSell, req.Action)
	assert.Equal(t, int64(5), req.Count)
	assert.Equal(t, int64(44), req.PriceCents) // ask 45 less one tick
	assert.Equal(t, "limit", req.Type)
	assert.Empty(t, e.activePositions())
}

func TestManagePositionsRespectsDwell(t *testing.T) {
	ex := &fakeExchange{books: map[string]domain.OrderbookSnapshot{
		testTicker: bookAt(40, 55),
	}}
	e := newTestEngine(t, ex, nil)
	e.trackPosition(*decision(5, 30), time.Now().Add(-1*time.Minute))

	e.ManagePositions(context.Background(), time.Now())

	assert.Empty(t, ex.submitted)
	assert.Len(t, e.activePositions(), 1)
}

func TestManagePositionsHoldsCheapEntries(t *testing.T) {
	ex := &fakeExchange{books: map[string]domain.OrderbookSnapshot{
		// A 12 cent entry marked at 40 would be a huge gain, but longshots
		// ride to settlement.
		testTicker: bookAt(40, 55),
	}}
	e := newTestEngine(t, ex, nil)
	e.trackPosition(*decision(5, 12), time.Now().Add(-10*time.Minute))

	e.ManagePositions(context.Background(), time.Now())

	assert.Empty(t, ex.submitted)
	assert.Len(t, e.activePositions(), 1)
}

func TestManagePositionsStopLoss(t *testing.T) {
	ex := &fakeExchange{books: map[string]domain.OrderbookSnapshot{
		// Bid 25 against a 40 cent entry: -37.5%, past the 30% stop.
		testTicker: bookAt(25, 65),
	}}
	e := newTestEngine(t, ex, nil)
	e.trackPosition(*decision(5, 40), time.Now().Add(-10*time.Minute))

	e.ManagePositions(context.Background(), time.Now())

	require.Len(t, ex.submitted, 1)
	assert.Equal(t, domain.ActionSell, ex.submitted[0].Action)
	assert.Empty(t, e.activePositions())
}

func TestManagePositionsDisabled(t *testing.T) {
	ex := &fakeExchange{books: map[string]domain.OrderbookSnapshot{
		testTicker: bookAt(40, 55),
	}}
	e := newTestEngine(t, ex, func(c *config.Config) {
		c.Exit.Enabled = false
	})
	e.trackPosition(*decision(5, 30), time.Now().Add(-10*time.Minute))

	e.ManagePositions(context.Background(), time.Now())
	assert.Empty(t, ex.submitted)
}

func staleBuy(priceCents int64) domain.RestingOrder {
	return domain.RestingOrder{
		OrderID:        "ord-old",
		Ticker:         testTicker,
		Side:           domain.SideYes,
		Action:         domain.ActionBuy,
		PriceCents:     priceCents,
		RemainingCount: 3,
		PlacedAt:       time.Now().Add(-10 * time.Minute),
	}
}

func TestManageRestingOrdersReprices(t *testing.T) {
	ex := &fakeExchange{
		books:   map[string]domain.OrderbookSnapshot{testTicker: bookAt(30, 62)},
		resting: []domain.RestingOrder{staleBuy(25)},
	}
	e := newTestEngine(t, ex, nil)

	e.ManageRestingOrders(context.Background(), time.Now())

	// Bid 30 ran 5 cents past the 25 cent order: cancel and re-post at 31.
	assert.Equal(t, []string{"ord-old"}, ex.cancelled)
	require.Len(t, ex.submitted, 1)
	assert.Equal(t, int64(31), ex.submitted[0].PriceCents)
	assert.Equal(t, int64(3), ex.submitted[0].Count)
	assert.Equal(t, domain.ActionBuy, ex.submitted[0].Action)
}

func TestManageRestingOrdersTakesWhenAskDropped(t *testing.T) {
	ex := &fakeExchange{
		// YES ask 100-70=30, at the order's resting price.
		books:   map[string]domain.OrderbookSnapshot{testTicker: bookAt(28, 70)},
		resting: []domain.RestingOrder{staleBuy(31)},
	}
	e := newTestEngine(t, ex, nil)

	e.ManageRestingOrders(context.Background(), time.Now())

	assert.Equal(t, []string{"ord-old"}, ex.cancelled)
	require.Len(t, ex.submitted, 1)
	assert.Equal(t, int64(30), ex.submitted[0].PriceCents)
}

func TestManageRestingOrdersLeavesFreshOrders(t *testing.T) {
	o := staleBuy(25)
	o.PlacedAt = time.Now()
	ex := &fakeExchange{
		books:   map[string]domain.OrderbookSnapshot{testTicker: bookAt(30, 62)},
		resting: []domain.RestingOrder{o},
	}
	e := newTestEngine(t, ex, nil)

	e.ManageRestingOrders(context.Background(), time.Now())

	assert.Empty(t, ex.cancelled)
	assert.Empty(t, ex.submitted)
}

func TestManageRestingOrdersKeepsQueuedOrder(t *testing.T) {
	ex := &fakeExchange{
		// Bid 26 is only one cent past the order: stay in queue.
		books:   map[string]domain.OrderbookSnapshot{testTicker: bookAt(26, 62)},
		resting: []domain.RestingOrder{staleBuy(25)},
	}
	e := newTestEngine(t, ex, nil)

	e.ManageRestingOrders(context.Background(), time.Now())

	assert.Empty(t, ex.cancelled)
	assert.Empty(t, ex.submitted)
}
