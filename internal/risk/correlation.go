// Package risk estimates cross-market correlation and portfolio tail risk
// for weather positions.
package risk

import (
	"math"

	"github.com/skyline-trading/weatherbot/internal/domain"
)

// cityPairCorrelation holds empirically estimated same-day temperature
// correlations for city pairs with linked weather regimes.
var cityPairCorrelation = map[[2]string]float64{
	{"AUS", "MIA"}: 0.3,
	{"LAX", "MIA"}: 0.4,
	{"AUS", "LAX"}: 0.3,
	{"CHI", "NY"}:  0.5,
	{"CHI", "DEN"}: 0.4,
	{"DEN", "NY"}:  0.3,
}

// climateClusters group cities that share a broad climate regime; members
// of one cluster get a small residual correlation.
var climateClusters = map[string]string{
	"MIA": "hot", "AUS": "hot", "PHX": "hot", "HOU": "hot",
	"CHI": "cold", "MIN": "cold", "DEN": "cold", "BOS": "cold",
	"LAX": "coastal", "SFO": "coastal", "SEA": "coastal",
	"NY": "inland_east", "PHIL": "inland_east", "DC": "inland_east", "ATL": "inland_east",
	"DAL": "plains", "OKC": "plains",
}

// Leg is one side of a correlation comparison.
type Leg struct {
	Ref  domain.TickerRef
	Side domain.Side
}

// Correlation estimates the settlement correlation between two market legs
// in [-1, 1]. Same-ticker legs are perfectly correlated (sign by side);
// everything else decays with city, date and market-type distance.
func Correlation(a, b Leg) float64 {
	sameSide := a.Side == b.Side

	if a.Ref.Series == b.Ref.Series && a.Ref.Date.Equal(b.Ref.Date) &&
		a.Ref.StrikeKind == b.Ref.StrikeKind && a.Ref.Strike == b.Ref.Strike {
		if sameSide {
			return 1.0
		}
		return -1.0
	}

	sameDate := a.Ref.Date.Equal(b.Ref.Date)
	sameType := a.Ref.Type == b.Ref.Type

	var rho float64
	switch {
	case a.Ref.City == b.Ref.City && sameDate:
		// Different strikes of the same city+date settle off one
		// observed temperature.
		if sameType {
			rho = 0.95
		} else {
			// A hot day raises the high and usually the low a little,
			// but high/low strikes mostly diverge.
			rho = -0.3
		}
	case a.Ref.City == b.Ref.City:
		rho = 0.5
	default:
		rho = cityPair(a.Ref.City, b.Ref.City)
		if sameDate {
			rho *= 1.5
		}
		if sameType {
			rho *= 1.2
		}
	}

	if !sameSide {
		rho = -rho
	}
	return clamp(rho, -1, 1)
}

func cityPair(a, b string) float64 {
	key := [2]string{a, b}
	if a > b {
		key = [2]string{b, a}
	}
	if rho, ok := cityPairCorrelation[key]; ok {
		return rho
	}
	if climateClusters[a] != "" && climateClusters[a] == climateClusters[b] {
		return 0.2
	}
	return 0
}

// Matrix computes the pairwise correlation matrix for a set of legs.
func Matrix(legs []Leg) [][]float64 {
	n := len(legs)
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
		m[i][i] = 1
		for j := 0; j < i; j++ {
			rho := Correlation(legs[i], legs[j])
			m[i][j] = rho
			m[j][i] = rho
		}
	}
	return m
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
