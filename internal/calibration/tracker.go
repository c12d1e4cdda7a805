// Package calibration turns settlement history into the numeric hints the
// decision engine consumes: uncertainty floors, drawdown scaling, loss-streak
// cooldowns and per-series confidence.
package calibration

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/skyline-trading/weatherbot/internal/domain"
)

// Config holds the tracker's policy knobs.
type Config struct {
	// LossStreakCooldown is the consecutive-loss count that pauses entries.
	LossStreakCooldown int
	// CooldownDuration is how long entries stay paused.
	CooldownDuration time.Duration
	// DisabledSeries are series turned off by the operator.
	DisabledSeries []string
	// MinSeriesSamples is the settlement count before win rates matter.
	MinSeriesSamples int
	// MinSeriesWinRate disables a series performing below it.
	MinSeriesWinRate float64
}

// DefaultConfig returns the production calibration policy.
func DefaultConfig() Config {
	return Config{
		LossStreakCooldown: 3,
		CooldownDuration:   2 * time.Hour,
		MinSeriesSamples:   10,
		MinSeriesWinRate:   0.25,
	}
}

type seriesRecord struct {
	wins   int
	losses int
}

// Tracker implements domain.Calibration from observed settlements. Safe for
// concurrent use.
type Tracker struct {
	cfg    Config
	logger *slog.Logger

	mu            sync.Mutex
	streak        int
	cooldownUntil time.Time
	series        map[string]seriesRecord
	disabled      map[string]bool
}

var _ domain.Calibration = (*Tracker)(nil)

// New creates a tracker. Settlements observed before restart are not
// replayed; the tracker warms up from live flow.
func New(cfg Config, logger *slog.Logger) *Tracker {
	disabled := make(map[string]bool, len(cfg.DisabledSeries))
	for _, s := range cfg.DisabledSeries {
		disabled[strings.ToUpper(s)] = true
	}
	return &Tracker{
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "calibration")),
		series:   make(map[string]seriesRecord),
		disabled: disabled,
	}
}

// Observe folds one settlement into the running records. The engine calls
// this from its settlement sweep.
func (t *Tracker) Observe(s domain.Settlement) {
	ref, err := domain.ParseTicker(s.Ticker)
	if err != nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	rec := t.series[ref.Series]
	if s.Won {
		rec.wins++
		t.streak = 0
	} else {
		rec.losses++
		t.streak++
		if t.cfg.LossStreakCooldown > 0 && t.streak >= t.cfg.LossStreakCooldown {
			t.cooldownUntil = s.SettledAt.Add(t.cfg.CooldownDuration)
			t.logger.Warn("loss streak cooldown engaged",
				slog.Int("streak", t.streak),
				slog.Time("until", t.cooldownUntil))
		}
	}
	t.series[ref.Series] = rec
}

// MinStd returns the per-(city, month) sigma floor. Continental cities in
// winter run hotter forecast errors than the coastal defaults.
func (t *Tracker) MinStd(city string, month time.Month) float64 {
	if floor, ok := minStdTable[city]; ok {
		if winter(month) {
			return floor.winter
		}
		return floor.summer
	}
	if winter(month) {
		return 2.0
	}
	return 1.5
}

type stdFloor struct {
	winter float64
	summer float64
}

// minStdTable holds observed per-city floors. Derived from historical
// NWS CLI verification spreads.
var minStdTable = map[string]stdFloor{
	"NY":   {winter: 2.5, summer: 1.5},
	"CHI":  {winter: 3.0, summer: 2.0},
	"DEN":  {winter: 3.5, summer: 2.5},
	"MIN":  {winter: 3.0, summer: 2.0},
	"MIA":  {winter: 1.5, summer: 1.0},
	"LAX":  {winter: 1.5, summer: 1.0},
	"SFO":  {winter: 1.5, summer: 1.5},
	"AUS":  {winter: 2.5, summer: 1.5},
	"DAL":  {winter: 2.5, summer: 1.5},
	"PHIL": {winter: 2.5, summer: 1.5},
	"PHX":  {winter: 1.5, summer: 1.5},
}

func winter(m time.Month) bool {
	return m == time.November || m == time.December || m == time.January ||
		m == time.February || m == time.March
}

// MarketEnabled reports whether a series may trade: not operator-disabled
// and not performing below the win-rate floor.
func (t *Tracker) MarketEnabled(series string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.disabled[strings.ToUpper(series)] {
		return false
	}
	rec := t.series[series]
	total := rec.wins + rec.losses
	if total < t.cfg.MinSeriesSamples {
		return true
	}
	rate := float64(rec.wins) / float64(total)
	return rate >= t.cfg.MinSeriesWinRate
}

// DrawdownMultiplier scales size down during loss streaks: full size with no
// streak, three quarters after two losses, half after three or more.
func (t *Tracker) DrawdownMultiplier() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch {
	case t.streak >= 3:
		return 0.5
	case t.streak == 2:
		return 0.75
	default:
		return 1.0
	}
}

// OnCooldown reports whether the loss-streak pause is active.
func (t *Tracker) OnCooldown() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return time.Now().Before(t.cooldownUntil)
}

// ConfidenceMultiplier scales size by the series' observed win rate, mapped
// into [0.5, 1]. Thin history returns full confidence.
func (t *Tracker) ConfidenceMultiplier(series string) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec := t.series[series]
	total := rec.wins + rec.losses
	if total < 5 {
		return 1.0
	}
	rate := float64(rec.wins) / float64(total)
	m := 0.5 + rate/2
	if m > 1 {
		m = 1
	}
	return m
}
