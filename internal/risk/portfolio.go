package risk

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/skyline-trading/weatherbot/internal/config"
)

// PortfolioLeg is one held position with its settlement probability.
type PortfolioLeg struct {
	Leg
	Count int64
	// Prob is the probability the leg pays out; the binomial variance
	// p(1-p) drives its volatility contribution.
	Prob float64
}

// Report summarizes portfolio tail risk in contract-value units (dollars,
// with $1 max payout per contract).
type Report struct {
	Volatility float64
	VaR95      float64
	VaR99      float64
	// ExpectedShortfall is the mean loss beyond VaR95 under normality.
	ExpectedShortfall float64
}

// Portfolio computes correlation-adjusted portfolio risk over the given
// legs. The full covariance sum is used, not just the diagonal; that is the
// whole point of tracking correlation.
func Portfolio(legs []PortfolioLeg) Report {
	vols := make([]float64, len(legs))
	rl := make([]Leg, len(legs))
	for i, l := range legs {
		vols[i] = math.Sqrt(l.Prob*(1-l.Prob)) * float64(l.Count)
		rl[i] = l.Leg
	}

	m := Matrix(rl)
	var sum float64
	for i := range legs {
		for j := range legs {
			sum += m[i][j] * vols[i] * vols[j]
		}
	}
	if sum < 0 {
		sum = 0
	}
	vol := math.Sqrt(sum)

	return Report{
		Volatility:        vol,
		VaR95:             1.645 * vol,
		VaR99:             2.326 * vol,
		ExpectedShortfall: 2.063 * vol,
	}
}

// Adjuster dampens proposed position sizes against existing correlated
// exposure.
type Adjuster struct {
	cfg    config.RiskConfig
	logger *slog.Logger
}

// NewAdjuster creates an Adjuster.
func NewAdjuster(cfg config.RiskConfig, logger *slog.Logger) *Adjuster {
	return &Adjuster{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "risk")),
	}
}

// AdjustSize reduces the proposed contract count when the candidate is
// meaningfully correlated with existing holdings. Negative correlation is a
// hedge and never reduces size.
func (a *Adjuster) AdjustSize(candidate Leg, proposed int64, holdings []PortfolioLeg) (int64, string) {
	if !a.cfg.CorrelationEnabled || proposed <= 0 || len(holdings) == 0 {
		return proposed, ""
	}

	var correlatedContracts int64
	var maxRho float64
	for _, h := range holdings {
		rho := Correlation(candidate, h.Leg)
		if rho >= a.cfg.CorrelationThreshold {
			correlatedContracts += h.Count
			if rho > maxRho {
				maxRho = rho
			}
		}
	}

	if correlatedContracts == 0 {
		return proposed, ""
	}

	frac := float64(correlatedContracts) / float64(a.cfg.FullReductionContracts)
	reduction := math.Min(a.cfg.MaxReduction, frac*a.cfg.MaxReduction)
	adjusted := int64(math.Floor(float64(proposed) * (1 - reduction)))

	detail := fmt.Sprintf("correlated %d contracts (max rho %.2f), size %d -> %d",
		correlatedContracts, maxRho, proposed, adjusted)
	a.logger.Debug("correlation damped size", slog.String("detail", detail))
	return adjusted, detail
}
