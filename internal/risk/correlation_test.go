package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyline-trading/weatherbot/internal/domain"
)

func leg(t *testing.T, ticker string, side domain.Side) Leg {
	t.Helper()
	ref, err := domain.ParseTicker(ticker)
	require.NoError(t, err)
	return Leg{Ref: ref, Side: side}
}

func TestCorrelation(t *testing.T) {
	jan28 := "26JAN28"
	tests := []struct {
		name string
		a, b Leg
		want float64
	}{
		{
			name: "same ticker same side",
			a:    leg(t, "KXHIGHNY-"+jan28+"-T26", domain.SideYes),
			b:    leg(t, "KXHIGHNY-"+jan28+"-T26", domain.SideYes),
			want: 1.0,
		},
		{
			name: "same ticker opposite side",
			a:    leg(t, "KXHIGHNY-"+jan28+"-T26", domain.SideYes),
			b:    leg(t, "KXHIGHNY-"+jan28+"-T26", domain.SideNo),
			want: -1.0,
		},
		{
			name: "same city and date, both highs",
			a:    leg(t, "KXHIGHNY-"+jan28+"-T26", domain.SideYes),
			b:    leg(t, "KXHIGHNY-"+jan28+"-T30", domain.SideYes),
			want: 0.95,
		},
		{
			name: "same city and date, high vs low",
			a:    leg(t, "KXHIGHNY-"+jan28+"-T26", domain.SideYes),
			b:    leg(t, "KXLOWNY-"+jan28+"-T10", domain.SideYes),
			want: -0.3,
		},
		{
			name: "same city different date",
			a:    leg(t, "KXHIGHNY-"+jan28+"-T26", domain.SideYes),
			b:    leg(t, "KXHIGHNY-26JAN29-T26", domain.SideYes),
			want: 0.5,
		},
		{
			name: "linked cities same date and type",
			a:    leg(t, "KXHIGHCHI-"+jan28+"-T20", domain.SideYes),
			b:    leg(t, "KXHIGHNY-"+jan28+"-T26", domain.SideYes),
			want: 0.5 * 1.5 * 1.2, // CHI-NY base, same date, same type
		},
		{
			name: "climate cluster residual",
			a:    leg(t, "KXHIGHMIA-"+jan28+"-T80", domain.SideYes),
			b:    leg(t, "KXHIGHTPHX-"+jan28+"-T75", domain.SideYes),
			want: 0.2 * 1.5 * 1.2,
		},
		{
			name: "unrelated cities",
			a:    leg(t, "KXHIGHMIA-"+jan28+"-T80", domain.SideYes),
			b:    leg(t, "KXHIGHCHI-"+jan28+"-T20", domain.SideYes),
			want: 0,
		},
		{
			name: "opposite sides flip the sign",
			a:    leg(t, "KXHIGHCHI-"+jan28+"-T20", domain.SideYes),
			b:    leg(t, "KXHIGHNY-"+jan28+"-T26", domain.SideNo),
			want: -0.5 * 1.5 * 1.2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Correlation(tt.a, tt.b)
			assert.InDelta(t, tt.want, got, 1e-9)
			// Symmetry.
			assert.InDelta(t, got, Correlation(tt.b, tt.a), 1e-9)
			assert.LessOrEqual(t, got, 1.0)
			assert.GreaterOrEqual(t, got, -1.0)
		})
	}
}

func TestMatrix(t *testing.T) {
	legs := []Leg{
		leg(t, "KXHIGHNY-26JAN28-T26", domain.SideYes),
		leg(t, "KXHIGHNY-26JAN28-T30", domain.SideYes),
		leg(t, "KXHIGHMIA-26JAN28-T80", domain.SideYes),
	}
	m := Matrix(legs)

	require.Len(t, m, 3)
	for i := range m {
		assert.Equal(t, 1.0, m[i][i])
		for j := range m {
			assert.Equal(t, m[i][j], m[j][i])
		}
	}
	assert.InDelta(t, 0.95, m[0][1], 1e-9)
}

func TestPortfolioDiversification(t *testing.T) {
	a := PortfolioLeg{Leg: leg(t, "KXHIGHNY-26JAN28-T26", domain.SideYes), Count: 10, Prob: 0.5}
	correlated := PortfolioLeg{Leg: leg(t, "KXHIGHNY-26JAN28-T30", domain.SideYes), Count: 10, Prob: 0.5}
	unrelated := PortfolioLeg{Leg: leg(t, "KXHIGHCHI-26FEB10-T20", domain.SideYes), Count: 10, Prob: 0.5}

	concentrated := Portfolio([]PortfolioLeg{a, correlated})
	diversified := Portfolio([]PortfolioLeg{a, unrelated})

	assert.Greater(t, concentrated.VaR95, diversified.VaR95)
	assert.InDelta(t, 1.645*concentrated.Volatility, concentrated.VaR95, 1e-9)
	assert.InDelta(t, 2.326*concentrated.Volatility, concentrated.VaR99, 1e-9)
	assert.Greater(t, concentrated.ExpectedShortfall, concentrated.VaR95)
}

func TestSingleLegVaR(t *testing.T) {
	l := PortfolioLeg{Leg: leg(t, "KXHIGHNY-26JAN28-T26", domain.SideYes), Count: 10, Prob: 0.5}
	r := Portfolio([]PortfolioLeg{l})
	// Binomial vol: sqrt(0.25) * 10 = 5.
	assert.InDelta(t, 5.0, r.Volatility, 1e-9)
	assert.InDelta(t, 8.225, r.VaR95, 1e-9)
}
