package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/skyline-trading/weatherbot/internal/domain"
	"github.com/skyline-trading/weatherbot/internal/forecast"
	"github.com/skyline-trading/weatherbot/internal/probability"
	"github.com/skyline-trading/weatherbot/internal/risk"
	"github.com/skyline-trading/weatherbot/internal/sizing"

	"github.com/google/uuid"
)

// EvaluateMarket runs the full decision pipeline for one market and returns
// either a trade decision or the first skip reason hit. The ordering is
// deliberate: cheap structural checks first, forecast fetches in the middle,
// book reads last.
func (e *Engine) EvaluateMarket(ctx context.Context, m domain.Market, now time.Time) domain.EvalResult {
	ref, err := domain.ParseTicker(m.Ticker)
	if err != nil {
		return domain.Skipped(domain.SkipNotWeatherSeries, m.Ticker)
	}

	if !m.Tradeable() {
		return domain.Skipped(domain.SkipMarketClosed, string(m.Status))
	}
	if m.Volume < e.cfg.Scanner.MinVolume {
		return domain.Skipped(domain.SkipLowVolume, fmt.Sprintf("volume %d < %d", m.Volume, e.cfg.Scanner.MinVolume))
	}

	if e.cfg.DisabledCity(ref.City) || !e.calibration.MarketEnabled(ref.Series) {
		return domain.Skipped(domain.SkipMarketDisabled, ref.Series)
	}
	if e.calibration.OnCooldown() {
		return domain.Skipped(domain.SkipCooldown, "loss streak cooldown")
	}

	city, err := forecast.LookupCity(ref.City)
	if err != nil {
		return domain.Skipped(domain.SkipNotWeatherSeries, ref.City)
	}
	localNow := now.In(city.Location())

	if !withinDateWindow(ref.Date, localNow, e.cfg.Scanner.MaxDateDays) {
		return domain.Skipped(domain.SkipDateOutOfWindow, ref.Date.Format("2006-01-02"))
	}

	if e.isExcluded(m.Ticker, now) {
		return domain.Skipped(domain.SkipOutcomeExcluded, m.Ticker)
	}

	cond, err := m.Condition()
	if err != nil {
		return domain.Skipped(domain.SkipNoCondition, err.Error())
	}
	if cond.IsRange() && !e.cfg.Strategy.RangeEnabled {
		return domain.Skipped(domain.SkipRangeDisabled, m.Ticker)
	}

	ens, err := e.forecasts.Ensemble(ctx, ref.Series, ref.Date)
	if err != nil {
		if errors.Is(err, domain.ErrNoForecasts) {
			return domain.Skipped(domain.SkipNoForecasts, ref.Series)
		}
		return domain.Skipped(domain.SkipEvaluationError, err.Error())
	}
	if e.metrics != nil {
		e.metrics.EnsembleSize.Observe(float64(ens.Size()))
	}
	if ens.Size() < e.cfg.Strategy.MinForecastSources {
		return domain.Skipped(domain.SkipTooFewSources, fmt.Sprintf("%d sources", ens.Size()))
	}
	// Std below the floor means the sources are likely republishing the
	// same model run, not independently agreeing.
	if ens.Std() < e.cfg.Strategy.MinForecastSpread {
		return domain.Skipped(domain.SkipLowSpread, fmt.Sprintf("std %.1f", ens.Std()))
	}

	// On the target day itself, the observed running extreme can settle
	// the question before the market does.
	if res, done := e.checkObservedExtreme(ctx, m, ref, city, cond, ens, localNow); done {
		return res
	}

	if skip, detail, ok := e.forecastDistanceGates(cond, ens); !ok {
		return domain.Skipped(skip, detail)
	}

	book, err := e.fetchBook(ctx, m.Ticker)
	if err != nil {
		return domain.Skipped(domain.SkipEvaluationError, err.Error())
	}
	if book.Empty() {
		return domain.Skipped(domain.SkipEmptyOrderbook, m.Ticker)
	}
	quote := domain.QuoteFrom(book)

	hist := e.histError(ctx, ref.City, ref.Date.Month())
	minStd := e.calibration.MinStd(ref.City, ref.Date.Month())
	if cond.IsRange() && e.cfg.Strategy.RangeStdFloor > minStd {
		minStd = e.cfg.Strategy.RangeStdFloor
	}
	est := e.prob.Estimate(ens, hist, minStd, cond, now)

	side, ask, prob, ciLow, ciHigh, skipRes := e.chooseSide(cond, est, quote)
	if skipRes != nil {
		return *skipRes
	}

	if e.cfg.Strategy.RequireForecastDirection && !directionAgrees(cond, side, ens.WeightedMean) {
		return domain.Skipped(domain.SkipWrongDirection,
			fmt.Sprintf("mean %.1f vs %s on %s", ens.WeightedMean, cond, side))
	}

	mode := domain.ModeConservative
	if e.cfg.Strategy.LongshotEnabled && ask <= e.cfg.Strategy.LongshotMaxPrice {
		mode = domain.ModeLongshot
	}

	edge := sizing.Edge(prob, ask)
	ev := sizing.ExpectedValue(prob, ask, e.cfg.Strategy.FeeRate)

	if reason, detail, ok := sizing.EvaluateGates(e.cfg.Strategy, sizing.GateInputs{
		Mode:     mode,
		IsRange:  cond.IsRange(),
		AskCents: ask,
		Prob:     prob,
		Edge:     edge,
		EV:       ev,
		CILow:    ciLow,
		CIHigh:   ciHigh,
	}); !ok {
		return domain.Skipped(reason, detail)
	}

	bankroll, err := e.exchange.GetBalance(ctx)
	if err != nil {
		e.logger.Warn("balance fetch failed, sizing from base size", slog.Any("error", err))
		bankroll = 0
	}

	count := e.sizer.Contracts(sizing.Inputs{
		Mode:                  mode,
		Side:                  side,
		AskCents:              ask,
		Prob:                  prob,
		Edge:                  edge,
		EV:                    ev,
		CILow:                 ciLow,
		CIHigh:                ciHigh,
		SourceCount:           ens.Size(),
		BankrollCents:         bankroll,
		Kind:                  ref.Type,
		LocalNow:              localNow,
		TargetDate:            ref.Date,
		Book:                  book,
		CalibrationMultiplier: e.calibration.DrawdownMultiplier() * e.calibration.ConfidenceMultiplier(ref.Series),
	})
	if count <= 0 {
		return domain.Skipped(domain.SkipBelowMinOrder, "sizing chain below minimum")
	}

	count = e.correlationAdjust(ctx, ref, side, prob, count)
	if count < e.cfg.Sizing.MinOrderContracts {
		return domain.Skipped(domain.SkipBelowMinOrder, "correlation reduction below minimum")
	}

	d := &domain.TradeDecision{
		ID:         uuid.NewString(),
		Ticker:     m.Ticker,
		BaseMarket: ref.BaseMarket(),
		Side:       side,
		Action:     domain.ActionBuy,
		Count:      count,
		PriceCents: ask,
		Edge:       edge,
		EV:         ev,
		Prob:       prob,
		CILow:      ciLow,
		CIHigh:     ciHigh,
		Mode:       mode,
		Urgency:    domain.Urgency(e.cfg.Router.Urgency),
		CreatedAt:  now,
	}
	return domain.Decided(d)
}

// withinDateWindow accepts target dates from today (local) up to maxDays
// ahead.
func withinDateWindow(target, localNow time.Time, maxDays int) bool {
	today := time.Date(localNow.Year(), localNow.Month(), localNow.Day(), 0, 0, 0, 0, time.UTC)
	t := time.Date(target.Year(), target.Month(), target.Day(), 0, 0, 0, 0, time.UTC)
	if t.Before(today) {
		return false
	}
	return int(t.Sub(today).Hours()/24) <= maxDays
}

// forecastDistanceGates rejects coin flips where the mean forecast sits too
// close to the strike to carry real information.
func (e *Engine) forecastDistanceGates(cond domain.MarketCondition, ens domain.Ensemble) (domain.SkipReason, string, bool) {
	mean := ens.WeightedMean
	if cond.IsRange() {
		if d := e.cfg.Strategy.RangeBoundaryDistance; d > 0 {
			if math.Abs(mean-cond.Low) < d || math.Abs(mean-cond.High) < d {
				return domain.SkipRangeBoundary,
					fmt.Sprintf("mean %.1f within %.1f of [%.1f,%.1f)", mean, d, cond.Low, cond.High), false
			}
		}
		return "", "", true
	}
	if d := e.cfg.Strategy.MinDegreesFromThreshold; d > 0 {
		if math.Abs(mean-cond.Threshold) < d {
			return domain.SkipNearThreshold,
				fmt.Sprintf("mean %.1f within %.1f of %.1f", mean, d, cond.Threshold), false
		}
	}
	return "", "", true
}

// checkObservedExtreme consults today's running high or low. A determined
// outcome cancels our resting orders and excludes the ticker; late in the
// day an extreme matching the forecast means the remaining move is noise.
func (e *Engine) checkObservedExtreme(ctx context.Context, m domain.Market, ref domain.TickerRef, city forecast.City, cond domain.MarketCondition, ens domain.Ensemble, localNow time.Time) (domain.EvalResult, bool) {
	if e.observer == nil {
		return domain.EvalResult{}, false
	}
	if !sameDay(ref.Date, localNow) {
		return domain.EvalResult{}, false
	}

	cutoff := e.cfg.Sizing.HighExtremeHour
	if ref.Type == domain.MarketTypeLow {
		cutoff = e.cfg.Sizing.LowExtremeHour
	}
	// Two hours before the climatological extreme the observation starts
	// to carry weight; before that it is still in motion.
	if ref.Type == domain.MarketTypeHigh && localNow.Hour() < cutoff-2 {
		return domain.EvalResult{}, false
	}
	if ref.Type == domain.MarketTypeLow && localNow.Hour() < cutoff {
		return domain.EvalResult{}, false
	}

	obs, err := e.observer.ObservedExtreme(ctx, city, ref.Date, ref.Type)
	if err != nil {
		e.logger.Debug("observed extreme unavailable",
			slog.String("city", ref.City), slog.Any("error", err))
		return domain.EvalResult{}, false
	}

	if determined, detail := outcomeDetermined(ref.Type, cond, obs.TempF); determined {
		e.cancelRestingFor(ctx, m.Ticker)
		e.exclude(m.Ticker, m.CloseTime)
		return domain.Skipped(domain.SkipOutcomeDetermined, detail), true
	}

	// Past the extreme hour with the observation already tracking the
	// forecast, the edge the model sees is stale.
	if localNow.Hour() >= cutoff && math.Abs(obs.TempF-ens.WeightedMean) <= 2.0 {
		return domain.Skipped(domain.SkipPastExtreme,
			fmt.Sprintf("observed %.1f near forecast %.1f after %02d:00", obs.TempF, ens.WeightedMean, cutoff)), true
	}
	return domain.EvalResult{}, false
}

// outcomeDetermined applies the monotonicity of daily extremes: a running
// high only rises, a running low only falls.
func outcomeDetermined(kind domain.MarketType, cond domain.MarketCondition, observed float64) (bool, string) {
	switch kind {
	case domain.MarketTypeHigh:
		switch cond.Kind {
		case domain.ConditionAbove:
			if observed >= cond.Threshold {
				return true, fmt.Sprintf("high %.1f already above %.1f", observed, cond.Threshold)
			}
		case domain.ConditionBelow:
			if observed >= cond.Threshold {
				return true, fmt.Sprintf("high %.1f already breached %.1f", observed, cond.Threshold)
			}
		case domain.ConditionBetween:
			if observed >= cond.High {
				return true, fmt.Sprintf("high %.1f already above range top %.1f", observed, cond.High)
			}
		}
	case domain.MarketTypeLow:
		switch cond.Kind {
		case domain.ConditionBelow:
			if observed <= cond.Threshold {
				return true, fmt.Sprintf("low %.1f already below %.1f", observed, cond.Threshold)
			}
		case domain.ConditionAbove:
			if observed <= cond.Threshold {
				return true, fmt.Sprintf("low %.1f already breached %.1f", observed, cond.Threshold)
			}
		case domain.ConditionBetween:
			if observed < cond.Low {
				return true, fmt.Sprintf("low %.1f already below range bottom %.1f", observed, cond.Low)
			}
		}
	}
	return false, ""
}

// chooseSide evaluates both sides of the book and picks the one with the
// larger edge, subject to the price ceilings. Returns a skip result when
// neither side is buyable.
func (e *Engine) chooseSide(cond domain.MarketCondition, est probability.Estimate, quote domain.Quote) (domain.Side, int64, float64, float64, float64, *domain.EvalResult) {
	yesAsk := quote.Ask(domain.SideYes)
	noAsk := quote.Ask(domain.SideNo)

	type candidate struct {
		side   domain.Side
		ask    int64
		prob   float64
		ciLow  float64
		ciHigh float64
		edge   float64
	}
	var cands []candidate
	if yesAsk > 0 && yesAsk < 100 {
		cands = append(cands, candidate{
			side: domain.SideYes, ask: yesAsk,
			prob: est.Prob, ciLow: est.CILow, ciHigh: est.CIHigh,
			edge: sizing.Edge(est.Prob, yesAsk),
		})
	}
	if noAsk > 0 && noAsk < 100 {
		// NO pays when the condition fails; its CI is the complement.
		cands = append(cands, candidate{
			side: domain.SideNo, ask: noAsk,
			prob: 1 - est.Prob, ciLow: 1 - est.CIHigh, ciHigh: 1 - est.CILow,
			edge: sizing.Edge(1-est.Prob, noAsk),
		})
	}
	if len(cands) == 0 {
		r := domain.Skipped(domain.SkipEmptyOrderbook, "no quotable side")
		return "", 0, 0, 0, 0, &r
	}

	best := cands[0]
	for _, c := range cands[1:] {
		if c.edge > best.edge {
			best = c
		}
	}

	if best.side == domain.SideNo && best.ask > e.cfg.Exposure.MaxNoBuyPriceCents {
		r := domain.Skipped(domain.SkipPriceCeiling,
			fmt.Sprintf("no ask %d > %d", best.ask, e.cfg.Exposure.MaxNoBuyPriceCents))
		return "", 0, 0, 0, 0, &r
	}
	if best.ask > e.cfg.Exposure.MaxBuyPriceCents {
		r := domain.Skipped(domain.SkipPriceCeiling,
			fmt.Sprintf("ask %d > %d", best.ask, e.cfg.Exposure.MaxBuyPriceCents))
		return "", 0, 0, 0, 0, &r
	}
	if cond.IsRange() && best.ask > e.cfg.Strategy.RangeMaxPrice {
		r := domain.Skipped(domain.SkipPriceCeiling,
			fmt.Sprintf("range ask %d > %d", best.ask, e.cfg.Strategy.RangeMaxPrice))
		return "", 0, 0, 0, 0, &r
	}
	return best.side, best.ask, best.prob, best.ciLow, best.ciHigh, nil
}

// directionAgrees requires the mean forecast to sit on the side of the
// strike that the trade is betting on.
func directionAgrees(cond domain.MarketCondition, side domain.Side, mean float64) bool {
	if cond.IsRange() {
		inside := mean >= cond.Low && mean < cond.High
		if side == domain.SideYes {
			return inside
		}
		return !inside
	}
	above := mean > cond.Threshold
	wantAbove := cond.Kind == domain.ConditionAbove
	if side == domain.SideNo {
		wantAbove = !wantAbove
	}
	return above == wantAbove
}

// fetchBook reads through the book cache, falling back to the exchange.
func (e *Engine) fetchBook(ctx context.Context, ticker string) (domain.OrderbookSnapshot, error) {
	if e.books != nil {
		if snap, ok, err := e.books.Get(ctx, ticker); err == nil && ok {
			return snap, nil
		}
	}
	snap, err := e.exchange.GetOrderbook(ctx, ticker)
	if err != nil {
		return domain.OrderbookSnapshot{}, err
	}
	if e.books != nil {
		if err := e.books.Put(ctx, snap, e.cfg.Kalshi.BookCacheTTL.Duration); err != nil {
			e.logger.Debug("book cache put failed", slog.Any("error", err))
		}
	}
	return snap, nil
}

// histError loads the rolling forecast error for the city and month. Missing
// history degrades to the sample std alone.
func (e *Engine) histError(ctx context.Context, city string, month time.Month) probability.HistoricalError {
	if e.forecastErrs == nil {
		return probability.HistoricalError{}
	}
	avg, count, err := e.forecastErrs.Average(ctx, city, month)
	if err != nil {
		e.logger.Debug("forecast error lookup failed",
			slog.String("city", city), slog.Any("error", err))
		return probability.HistoricalError{}
	}
	return probability.HistoricalError{MeanAbsError: avg, Count: count}
}

// correlationAdjust dampens size against correlated live holdings.
func (e *Engine) correlationAdjust(ctx context.Context, ref domain.TickerRef, side domain.Side, prob float64, count int64) int64 {
	if !e.cfg.Risk.CorrelationEnabled {
		return count
	}
	holdings, err := e.exchange.GetPositions(ctx, false)
	if err != nil {
		e.logger.Warn("positions fetch failed, skipping correlation adjustment", slog.Any("error", err))
		return count
	}
	legs := make([]risk.PortfolioLeg, 0, len(holdings))
	for _, h := range holdings {
		hr, err := domain.ParseTicker(h.Ticker)
		if err != nil {
			continue
		}
		hside := domain.SideYes
		n := h.NetContracts
		if n < 0 {
			hside = domain.SideNo
			n = -n
		}
		legs = append(legs, risk.PortfolioLeg{
			Leg:   risk.Leg{Ref: hr, Side: hside},
			Count: n,
			Prob:  0.5,
		})
	}
	adjusted, detail := e.adjuster.AdjustSize(risk.Leg{Ref: ref, Side: side}, count, legs)
	if adjusted != count {
		e.logger.Info("correlation size reduction",
			slog.String("ticker", ref.Series), slog.Int64("from", count),
			slog.Int64("to", adjusted), slog.String("detail", detail))
	}
	if e.metrics != nil && len(legs) > 0 {
		report := risk.Portfolio(append(legs, risk.PortfolioLeg{
			Leg: risk.Leg{Ref: ref, Side: side}, Count: adjusted, Prob: prob,
		}))
		e.metrics.PortfolioVaR95.Set(report.VaR95 / 100)
	}
	return adjusted
}

// cancelRestingFor cancels our open buy orders on a ticker whose outcome is
// now determined.
func (e *Engine) cancelRestingFor(ctx context.Context, ticker string) {
	resting, err := e.exchange.GetRestingOrders(ctx, true)
	if err != nil {
		e.logger.Warn("resting order fetch failed", slog.Any("error", err))
		return
	}
	for _, o := range resting {
		if o.Ticker != ticker || o.Action != domain.ActionBuy {
			continue
		}
		if err := e.exchange.CancelOrder(ctx, o.OrderID); err != nil {
			e.logger.Warn("cancel failed",
				slog.String("order_id", o.OrderID), slog.Any("error", err))
			continue
		}
		e.logger.Info("cancelled order on determined outcome",
			slog.String("ticker", ticker), slog.String("order_id", o.OrderID))
	}
}
