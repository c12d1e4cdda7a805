package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyline-trading/weatherbot/internal/config"
	"github.com/skyline-trading/weatherbot/internal/domain"
	"github.com/skyline-trading/weatherbot/internal/platform/kalshi"
)

// fakeExchange is a scriptable Exchange for controller tests.
type fakeExchange struct {
	books     map[string]domain.OrderbookSnapshot
	holdings  []domain.Holding
	resting   []domain.RestingOrder
	balance   int64
	submitted []kalshi.OrderRequest
	submitErr error
	cancelled []string
}

func (f *fakeExchange) GetSeriesMarkets(context.Context, string) ([]domain.Market, error) {
	return nil, nil
}

func (f *fakeExchange) GetMarket(context.Context, string) (domain.Market, error) {
	return domain.Market{}, nil
}

func (f *fakeExchange) GetOrderbook(_ context.Context, ticker string) (domain.OrderbookSnapshot, error) {
	return f.books[ticker], nil
}

func (f *fakeExchange) GetPositions(context.Context, bool) ([]domain.Holding, error) {
	return f.holdings, nil
}

func (f *fakeExchange) GetRestingOrders(context.Context, bool) ([]domain.RestingOrder, error) {
	return f.resting, nil
}

func (f *fakeExchange) SubmitOrder(_ context.Context, req kalshi.OrderRequest) (kalshi.OrderResult, error) {
	if f.submitErr != nil {
		return kalshi.OrderResult{}, f.submitErr
	}
	f.submitted = append(f.submitted, req)
	return kalshi.OrderResult{OrderID: "ord-1", Status: "resting"}, nil
}

func (f *fakeExchange) CancelOrder(_ context.Context, orderID string) error {
	f.cancelled = append(f.cancelled, orderID)
	return nil
}

func (f *fakeExchange) GetSettlements(context.Context, time.Time) ([]domain.Settlement, error) {
	return nil, nil
}

func (f *fakeExchange) GetBalance(context.Context) (int64, error) {
	return f.balance, nil
}

var _ Exchange = (*fakeExchange)(nil)

const (
	testTicker = "KXHIGHNY-26JAN28-T26"
	testBase   = "KXHIGHNY-26JAN28"
)

func decision(count, priceCents int64) *domain.TradeDecision {
	return &domain.TradeDecision{
		ID:         "d-1",
		Ticker:     testTicker,
		BaseMarket: testBase,
		Side:       domain.SideYes,
		Action:     domain.ActionBuy,
		Count:      count,
		PriceCents: priceCents,
		Edge:       15,
		EV:         0.04,
		Prob:       0.45,
		Mode:       domain.ModeConservative,
		Urgency:    domain.UrgencyNormal,
		CreatedAt:  time.Now(),
	}
}

func bookAt(yesBid, noBid int64) domain.OrderbookSnapshot {
	return domain.OrderbookSnapshot{
		Ticker:  testTicker,
		YesBids: []domain.PriceLevel{{Price: yesBid, Qty: 100}},
		NoBids:  []domain.PriceLevel{{Price: noBid, Qty: 100}},
	}
}

func TestExecuteSubmitsMakerOrder(t *testing.T) {
	ex := &fakeExchange{books: map[string]domain.OrderbookSnapshot{
		// YES bid 24, YES ask 100-70=30.
		testTicker: bookAt(24, 70),
	}}
	e := newTestEngine(t, ex, nil)

	d := decision(2, 30)
	skip, err := e.Execute(context.Background(), d)
	require.NoError(t, err)
	assert.Empty(t, skip)

	require.Len(t, ex.submitted, 1)
	req := ex.submitted[0]
	assert.Equal(t, testTicker, req.Ticker)
	assert.Equal(t, domain.SideYes, req.Side)
	assert.Equal(t, domain.ActionBuy, req.Action)
	assert.Equal(t, int64(2), req.Count)
	assert.Equal(t, int64(25), req.PriceCents) // bid+1
	assert.Equal(t, "limit", req.Type)

	require.Len(t, e.activePositions(), 1)
}

func TestExecuteSkipsDuplicateResting(t *testing.T) {
	ex := &fakeExchange{
		books: map[string]domain.OrderbookSnapshot{testTicker: bookAt(24, 70)},
		resting: []domain.RestingOrder{{
			OrderID: "old-1", Ticker: testTicker, Side: domain.SideYes,
			Action: domain.ActionBuy, PriceCents: 25, RemainingCount: 2,
		}},
	}
	e := newTestEngine(t, ex, nil)

	skip, err := e.Execute(context.Background(), decision(2, 30))
	require.NoError(t, err)
	assert.Equal(t, domain.SkipDuplicateOrder, skip)
	assert.Empty(t, ex.submitted)
}

func TestExecuteContractLimit(t *testing.T) {
	ex := &fakeExchange{
		books: map[string]domain.OrderbookSnapshot{testTicker: bookAt(24, 70)},
		holdings: []domain.Holding{{
			// A sibling strike of the same base market counts too.
			Ticker: "KXHIGHNY-26JAN28-T30", NetContracts: 10, ExposureCents: 300,
		}},
	}
	e := newTestEngine(t, ex, nil)

	skip, err := e.Execute(context.Background(), decision(2, 30))
	require.NoError(t, err)
	assert.Equal(t, domain.SkipExposureLimit, skip)
	assert.Empty(t, ex.submitted)
}

func TestExecuteDropsSubMinimumHeadroom(t *testing.T) {
	ex := &fakeExchange{
		books: map[string]domain.OrderbookSnapshot{testTicker: bookAt(24, 70)},
		holdings: []domain.Holding{{
			// 8 of 10 contracts taken: 2 of headroom, under the 3 minimum.
			Ticker: "KXHIGHNY-26JAN28-T30", NetContracts: 8, ExposureCents: 240,
		}},
	}
	e := newTestEngine(t, ex, func(c *config.Config) {
		c.Sizing.MinOrderContracts = 3
	})

	skip, err := e.Execute(context.Background(), decision(5, 30))
	require.NoError(t, err)
	assert.Equal(t, domain.SkipExposureLimit, skip)
	assert.Empty(t, ex.submitted)
}

func TestExecuteDollarLimitClips(t *testing.T) {
	ex := &fakeExchange{
		books: map[string]domain.OrderbookSnapshot{testTicker: bookAt(24, 70)},
		holdings: []domain.Holding{{
			// $4.40 of the $5 budget spent, 30 cent contracts: room for 2.
			Ticker: "KXHIGHNY-26JAN28-T30", NetContracts: 8, ExposureCents: 440,
		}},
	}
	e := newTestEngine(t, ex, nil)

	d := decision(5, 30)
	skip, err := e.Execute(context.Background(), d)
	require.NoError(t, err)
	assert.Empty(t, skip)
	require.Len(t, ex.submitted, 1)
	assert.Equal(t, int64(2), ex.submitted[0].Count)
}

func TestExecuteCountsRestingTowardExposure(t *testing.T) {
	ex := &fakeExchange{
		books: map[string]domain.OrderbookSnapshot{testTicker: bookAt(24, 70)},
		resting: []domain.RestingOrder{{
			OrderID: "old-1", Ticker: "KXHIGHNY-26JAN28-T30", Side: domain.SideYes,
			Action: domain.ActionBuy, PriceCents: 40, RemainingCount: 9,
		}},
	}
	e := newTestEngine(t, ex, nil)

	d := decision(5, 30)
	skip, err := e.Execute(context.Background(), d)
	require.NoError(t, err)
	assert.Empty(t, skip)
	require.Len(t, ex.submitted, 1)
	// 10 contract cap minus 9 resting leaves one.
	assert.Equal(t, int64(1), ex.submitted[0].Count)
}

func TestExecuteAbortsWhenAskRanAway(t *testing.T) {
	ex := &fakeExchange{books: map[string]domain.OrderbookSnapshot{
		// YES ask moved to 100-65=35, 5 cents past the decision price.
		testTicker: bookAt(24, 65),
	}}
	e := newTestEngine(t, ex, nil)

	skip, err := e.Execute(context.Background(), decision(2, 30))
	require.NoError(t, err)
	assert.Equal(t, domain.SkipNoEdge, skip)
	assert.Empty(t, ex.submitted)
}

func TestExecuteHoldsPriceCeilingOnFreshBook(t *testing.T) {
	ex := &fakeExchange{books: map[string]domain.OrderbookSnapshot{
		// YES ask 100-44=56: within the 2 cent drift tolerance of the
		// 54 cent decision, but past the 55 cent buy ceiling.
		testTicker: bookAt(50, 44),
	}}
	e := newTestEngine(t, ex, nil)

	skip, err := e.Execute(context.Background(), decision(2, 54))
	require.NoError(t, err)
	assert.Equal(t, domain.SkipPriceCeiling, skip)
	assert.Empty(t, ex.submitted)
}

func TestExecuteLockContention(t *testing.T) {
	ex := &fakeExchange{books: map[string]domain.OrderbookSnapshot{testTicker: bookAt(24, 70)}}
	e := newTestEngine(t, ex, nil)

	_, err := e.locks.Acquire(context.Background(), "exposure:"+testBase, time.Minute)
	require.NoError(t, err)

	skip, err := e.Execute(context.Background(), decision(2, 30))
	require.NoError(t, err)
	assert.Equal(t, domain.SkipLiquidityExhausted, skip)
	assert.Empty(t, ex.submitted)
}

func TestExecuteSplitsLargeDecision(t *testing.T) {
	ex := &fakeExchange{books: map[string]domain.OrderbookSnapshot{testTicker: bookAt(24, 70)}}
	e := newTestEngine(t, ex, func(c *config.Config) {
		c.Exposure.MaxContractsPerMarket = 20
		c.Exposure.MaxDollarsPerMarket = 20
	})

	d := decision(8, 30)
	skip, err := e.Execute(context.Background(), d)
	require.NoError(t, err)
	assert.Empty(t, skip)
	require.Len(t, ex.submitted, 2)
	assert.Equal(t, int64(25), ex.submitted[0].PriceCents)
	assert.Equal(t, int64(4), ex.submitted[0].Count)
	assert.Equal(t, int64(26), ex.submitted[1].PriceCents)
	assert.Equal(t, int64(4), ex.submitted[1].Count)
}
