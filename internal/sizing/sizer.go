package sizing

import (
	"log/slog"
	"math"
	"time"

	"github.com/skyline-trading/weatherbot/internal/config"
	"github.com/skyline-trading/weatherbot/internal/domain"
)

// Inputs carries everything the sizing chain needs for one candidate trade.
type Inputs struct {
	Mode       domain.StrategyMode
	Side       domain.Side
	AskCents   int64
	Prob       float64
	Edge       float64
	EV         float64
	CILow      float64
	CIHigh     float64
	SourceCount int

	// BankrollCents sizes the Kelly stake; zero falls back to BaseSize
	// scaling.
	BankrollCents int64

	// Market timing for intraday decay.
	Kind       domain.MarketType
	LocalNow   time.Time
	TargetDate time.Time

	// Book liquidity near the ask.
	Book domain.OrderbookSnapshot

	// CalibrationMultiplier folds in drawdown and per-series confidence
	// scaling, in [0, 1].
	CalibrationMultiplier float64
}

// Sizer picks a base position from one of three mutually exclusive modes
// (EV-proportional, fractional Kelly, confidence-scaled), then applies the
// intraday decay, calibration and liquidity reductions. Hard exposure limits
// are enforced later by the controller, never here.
type Sizer struct {
	cfg    config.SizingConfig
	logger *slog.Logger
}

// NewSizer creates a Sizer.
func NewSizer(cfg config.SizingConfig, logger *slog.Logger) *Sizer {
	return &Sizer{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "sizing")),
	}
}

// Contracts returns the number of contracts to buy, zero when the chain
// lands below the minimum order size.
func (s *Sizer) Contracts(in Inputs) int64 {
	fraction := s.cfg.KellyFractionConservative
	maxMultiple := s.cfg.ConservativeMaxMultiple
	evBaseline := s.cfg.EVBaselineConservative
	if in.Mode == domain.ModeLongshot {
		fraction = s.cfg.KellyFractionLongshot
		maxMultiple = s.cfg.LongshotMaxMultiple
		evBaseline = s.cfg.EVBaselineLongshot
	}

	askFrac := float64(in.AskCents) / 100

	// High confidence means the bootstrap CI sits entirely on one side of
	// the ask and at least two sources agree; only then is Kelly trusted.
	useKelly := (in.CILow > askFrac || in.CIHigh < askFrac) && in.SourceCount >= 2

	var raw float64
	switch {
	case s.cfg.EVProportionalEnabled && evBaseline > 0:
		raw = float64(s.cfg.BaseSize) * clampRange(in.EV/evBaseline, 0.5, float64(maxMultiple))

	case useKelly:
		f := Kelly(in.Prob, in.AskCents, fraction, s.cfg.KellyCap)
		if f <= 0 {
			return 0
		}
		if in.BankrollCents > 0 {
			raw = f * float64(in.BankrollCents) / float64(in.AskCents)
		} else {
			raw = float64(s.cfg.BaseSize) * (f / s.cfg.KellyCap)
		}

	default:
		score := ConfidenceScore(ConfidenceInputs{
			Edge:        in.Edge,
			CILow:       in.CILow,
			CIHigh:      in.CIHigh,
			SourceCount: in.SourceCount,
			EV:          in.EV,
		})
		raw = float64(s.cfg.BaseSize) * ConfidenceMultiplier(score, in.Mode)
		if s.cfg.FeeAwareEnabled {
			raw *= s.feeBandMultiplier(in.AskCents)
		}
	}

	if s.cfg.TimeDecayEnabled {
		raw *= s.timeDecay(in.Kind, in.LocalNow, in.TargetDate)
	}

	if in.CalibrationMultiplier > 0 {
		raw *= in.CalibrationMultiplier
	}

	contracts := int64(math.Floor(raw))

	hardCap := s.cfg.BaseSize * maxMultiple
	if contracts > hardCap {
		contracts = hardCap
	}

	if s.cfg.LiquidityCapEnabled && !in.Book.Empty() {
		depth := in.Book.DepthNear(in.Side, in.AskCents, s.cfg.LiquidityPriceTolerance)
		liqCap := int64(math.Floor(float64(depth) * s.cfg.LiquidityCapFraction))
		if contracts > liqCap {
			s.logger.Debug("liquidity capped",
				slog.String("ticker", in.Book.Ticker),
				slog.Int64("wanted", contracts),
				slog.Int64("cap", liqCap),
			)
			contracts = liqCap
		}
	}

	if contracts < s.cfg.MinOrderContracts {
		return 0
	}
	return contracts
}

// timeDecay shrinks size as the day's extreme approaches: a high forecast
// stops being an edge once the high has effectively happened.
func (s *Sizer) timeDecay(kind domain.MarketType, localNow, targetDate time.Time) float64 {
	if localNow.Year() != targetDate.Year() || localNow.YearDay() != targetDate.YearDay() {
		// Not the target day yet.
		return 1.0
	}

	extremeHour := s.cfg.HighExtremeHour
	if kind == domain.MarketTypeLow {
		extremeHour = s.cfg.LowExtremeHour
	}
	if extremeHour <= 0 {
		return 1.0
	}

	hour := float64(localNow.Hour()) + float64(localNow.Minute())/60
	progress := clampRange(hour/float64(extremeHour), 0, 1)
	return 1 - progress*(1-s.cfg.TimeDecayMin)
}

// feeBandMultiplier favors the 15-40¢ band where the fee structure is most
// favorable relative to payoff.
func (s *Sizer) feeBandMultiplier(askCents int64) float64 {
	switch {
	case askCents >= s.cfg.FeeAwareSweetLow && askCents <= s.cfg.FeeAwareSweetHigh:
		return s.cfg.FeeAwareSweetMultiplier
	case askCents < s.cfg.FeeAwareSweetLow:
		return s.cfg.FeeAwareCheapMultiplier
	default:
		return s.cfg.FeeAwareExpensiveMultiplier
	}
}

func clampRange(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
