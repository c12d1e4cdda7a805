package engine

import (
	"log/slog"
	"sync"
	"time"

	"github.com/skyline-trading/weatherbot/internal/config"
	"github.com/skyline-trading/weatherbot/internal/domain"
	"github.com/skyline-trading/weatherbot/internal/forecast"
	"github.com/skyline-trading/weatherbot/internal/metrics"
	"github.com/skyline-trading/weatherbot/internal/notify"
	"github.com/skyline-trading/weatherbot/internal/probability"
	"github.com/skyline-trading/weatherbot/internal/risk"
	"github.com/skyline-trading/weatherbot/internal/router"
	"github.com/skyline-trading/weatherbot/internal/sizing"
)

// Options carries the engine's collaborators. Exchange, Forecasts, Books,
// Locks and Calibration are required; stores, notifier and the NWS observer
// are optional and disable the features that depend on them when nil.
type Options struct {
	Config      *config.Config
	Exchange    Exchange
	Forecasts   *forecast.Aggregator
	Observer    *forecast.NWS
	Books       domain.BookCache
	Locks       domain.LockManager
	Calibration domain.Calibration

	Trades       domain.TradeStore
	Settlements  domain.SettlementStore
	ForecastErrs domain.ForecastErrorStore
	Notifier     *notify.Notifier
	Metrics      *metrics.Metrics
	Logger       *slog.Logger
}

// Engine evaluates markets, enforces exposure limits and manages position
// lifecycle. One engine instance drives one scan loop.
type Engine struct {
	cfg         *config.Config
	exchange    Exchange
	forecasts   *forecast.Aggregator
	observer    *forecast.NWS
	prob        *probability.Engine
	sizer       *sizing.Sizer
	adjuster    *risk.Adjuster
	router      *router.Router
	books       domain.BookCache
	locks       domain.LockManager
	calibration domain.Calibration

	trades       domain.TradeStore
	settlements  domain.SettlementStore
	forecastErrs domain.ForecastErrorStore
	notifier     *notify.Notifier
	metrics      *metrics.Metrics
	logger       *slog.Logger

	mu        sync.Mutex
	positions map[string]*domain.Position
	// excluded holds tickers whose outcome the observed temperature has
	// already determined; they stay skipped until their close time passes.
	excluded map[string]time.Time
	// haltEntries pauses new entries for the rest of the day after the
	// daily loss limit trips.
	haltEntries  bool
	haltDay      time.Time
	lastSweep    time.Time
	lastArchived time.Time
	archiver     domain.Archiver
}

// New builds an engine from options.
func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	probCfg := probability.Config{
		SampleStdWeight:  opts.Config.Strategy.SampleStdWeight,
		StdFloor:         opts.Config.Strategy.StdFloor,
		StdPerDay:        opts.Config.Strategy.StdPerDay,
		StdPerHour:       opts.Config.Strategy.StdPerHour,
		BootstrapSamples: opts.Config.Strategy.BootstrapSamples,
		MinProb:          probability.DefaultConfig().MinProb,
		MaxProb:          probability.DefaultConfig().MaxProb,
	}
	return &Engine{
		cfg:          opts.Config,
		exchange:     opts.Exchange,
		forecasts:    opts.Forecasts,
		observer:     opts.Observer,
		prob:         probability.NewEngine(probCfg),
		sizer:        sizing.NewSizer(opts.Config.Sizing, logger),
		adjuster:     risk.NewAdjuster(opts.Config.Risk, logger),
		router:       router.New(opts.Config.Router, logger),
		books:        opts.Books,
		locks:        opts.Locks,
		calibration:  opts.Calibration,
		trades:       opts.Trades,
		settlements:  opts.Settlements,
		forecastErrs: opts.ForecastErrs,
		notifier:     opts.Notifier,
		metrics:      opts.Metrics,
		logger:       logger.With(slog.String("component", "engine")),
		positions:    make(map[string]*domain.Position),
		excluded:     make(map[string]time.Time),
	}
}

// exclude marks a ticker as outcome-determined until the given close time.
func (e *Engine) exclude(ticker string, until time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.excluded[ticker] = until
}

func (e *Engine) isExcluded(ticker string, now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	until, ok := e.excluded[ticker]
	if !ok {
		return false
	}
	if now.After(until) {
		delete(e.excluded, ticker)
		return false
	}
	return true
}

// trackPosition records an entry for lifecycle management.
func (e *Engine) trackPosition(d domain.TradeDecision, now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if p, ok := e.positions[d.Ticker]; ok && p.State != domain.PositionClosed {
		p.Count += d.Count
		return
	}
	e.positions[d.Ticker] = &domain.Position{
		Ticker:     d.Ticker,
		BaseMarket: d.BaseMarket,
		Side:       d.Side,
		Count:      d.Count,
		EntryCents: d.PriceCents,
		EntryEdge:  d.Edge,
		Mode:       d.Mode,
		State:      domain.PositionActive,
		OpenedAt:   now,
	}
	if e.metrics != nil {
		e.metrics.OpenPositions.Set(float64(e.openPositionsLocked()))
	}
}

func (e *Engine) openPositionsLocked() int {
	n := 0
	for _, p := range e.positions {
		if p.State == domain.PositionActive || p.State == domain.PositionExiting {
			n++
		}
	}
	return n
}

func (e *Engine) closePosition(ticker string, exitCents int64, now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.positions[ticker]
	if !ok {
		return
	}
	p.State = domain.PositionClosed
	p.ExitedAt = &now
	p.ExitCents = &exitCents
	if e.metrics != nil {
		e.metrics.OpenPositions.Set(float64(e.openPositionsLocked()))
	}
}

// activePositions snapshots the lifecycle table for the exit pass.
func (e *Engine) activePositions() []domain.Position {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.Position, 0, len(e.positions))
	for _, p := range e.positions {
		if p.State == domain.PositionActive {
			out = append(out, *p)
		}
	}
	return out
}

// entriesHalted reports whether the daily loss limit has paused new entries
// for the given day.
func (e *Engine) entriesHalted(day time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.haltEntries {
		return false
	}
	if !sameDay(e.haltDay, day) {
		e.haltEntries = false
		return false
	}
	return true
}

func (e *Engine) haltEntriesFor(day time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.haltEntries = true
	e.haltDay = day
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

func (e *Engine) countSkip(reason domain.SkipReason) {
	if e.metrics != nil {
		e.metrics.Skips.WithLabelValues(string(reason)).Inc()
	}
}
