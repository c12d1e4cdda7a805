package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTicker(t *testing.T) {
	tests := []struct {
		name   string
		ticker string
		want   TickerRef
		ok     bool
	}{
		{
			name:   "threshold high",
			ticker: "KXHIGHNY-26JAN28-T26",
			want: TickerRef{
				Series: "KXHIGHNY", City: "NY", Type: MarketTypeHigh,
				Date:       time.Date(2026, time.January, 28, 0, 0, 0, 0, time.UTC),
				StrikeKind: "T", Strike: 26,
			},
			ok: true,
		},
		{
			name:   "bracket with half degree",
			ticker: "KXHIGHMIA-26FEB01-B51.5",
			want: TickerRef{
				Series: "KXHIGHMIA", City: "MIA", Type: MarketTypeHigh,
				Date:       time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC),
				StrikeKind: "B", Strike: 51.5,
			},
			ok: true,
		},
		{
			name:   "low temperature series",
			ticker: "KXLOWCHI-26JAN15-T5",
			want: TickerRef{
				Series: "KXLOWCHI", City: "CHI", Type: MarketTypeLow,
				Date:       time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC),
				StrikeKind: "T", Strike: 5,
			},
			ok: true,
		},
		{
			name:   "KXHIGHT prefix wins over KXHIGH",
			ticker: "KXHIGHTDAL-26JUL04-T101",
			want: TickerRef{
				Series: "KXHIGHTDAL", City: "DAL", Type: MarketTypeHigh,
				Date:       time.Date(2026, time.July, 4, 0, 0, 0, 0, time.UTC),
				StrikeKind: "T", Strike: 101,
			},
			ok: true,
		},
		{
			name:   "base market without strike",
			ticker: "KXHIGHNY-26JAN28",
			want: TickerRef{
				Series: "KXHIGHNY", City: "NY", Type: MarketTypeHigh,
				Date: time.Date(2026, time.January, 28, 0, 0, 0, 0, time.UTC),
			},
			ok: true,
		},
		{name: "non-weather series", ticker: "PRES-24NOV05-DJT", ok: false},
		{name: "garbage", ticker: "hello", ok: false},
		{name: "bad month", ticker: "KXHIGHNY-26XXX28-T26", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTicker(tt.ticker)
			if !tt.ok {
				assert.ErrorIs(t, err, ErrMarketNotParsed)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBaseMarket(t *testing.T) {
	ref, err := ParseTicker("KXHIGHNY-26JAN28-T26")
	require.NoError(t, err)
	assert.Equal(t, "KXHIGHNY-26JAN28", ref.BaseMarket())

	assert.Equal(t, "KXHIGHNY-26JAN28", BaseMarketOf("KXHIGHNY-26JAN28-T30"))
	assert.Equal(t, "KXHIGHNY", BaseMarketOf("KXHIGHNY"))
}

func TestMarketCondition(t *testing.T) {
	t.Run("from strike fields", func(t *testing.T) {
		m := Market{Ticker: "KXHIGHNY-26JAN28-T26", StrikeType: "greater", FloorStrike: 26}
		cond, err := m.Condition()
		require.NoError(t, err)
		assert.Equal(t, ConditionAbove, cond.Kind)
		assert.Equal(t, 26.0, cond.Threshold)
	})

	t.Run("between", func(t *testing.T) {
		m := Market{Ticker: "KXHIGHMIA-26FEB01-B51.5", StrikeType: "between", FloorStrike: 51, CapStrike: 52}
		cond, err := m.Condition()
		require.NoError(t, err)
		assert.True(t, cond.IsRange())
		assert.Equal(t, 51.0, cond.Low)
		assert.Equal(t, 52.0, cond.High)
		assert.Equal(t, 51.5, cond.ReferenceThreshold())
	})

	t.Run("fallback to ticker bracket", func(t *testing.T) {
		m := Market{Ticker: "KXHIGHMIA-26FEB01-B51.5"}
		cond, err := m.Condition()
		require.NoError(t, err)
		assert.True(t, cond.IsRange())
		assert.Equal(t, 50.5, cond.Low)
		assert.Equal(t, 52.5, cond.High)
	})

	t.Run("fallback to title direction", func(t *testing.T) {
		m := Market{Ticker: "KXLOWCHI-26JAN15-T5", Title: "Will the low temperature in Chicago be below 5?"}
		cond, err := m.Condition()
		require.NoError(t, err)
		assert.Equal(t, ConditionBelow, cond.Kind)
		assert.Equal(t, 5.0, cond.Threshold)
	})

	t.Run("complement flips direction", func(t *testing.T) {
		c := MarketCondition{Kind: ConditionAbove, Threshold: 40}
		assert.Equal(t, ConditionBelow, c.Complement().Kind)
		assert.Equal(t, 40.0, c.Complement().Threshold)
	})
}

func TestTypeFromSeries(t *testing.T) {
	typ, ok := TypeFromSeries("KXHIGHNY")
	assert.True(t, ok)
	assert.Equal(t, MarketTypeHigh, typ)

	typ, ok = TypeFromSeries("KXLOWT")
	assert.True(t, ok)
	assert.Equal(t, MarketTypeLow, typ)

	_, ok = TypeFromSeries("INXD")
	assert.False(t, ok)
}
