package domain

import (
	"context"
	"time"
)

// EnsembleCache stores built forecast ensembles keyed by (series, date) with
// a TTL. The aggregator is stateless apart from this cache.
type EnsembleCache interface {
	Get(ctx context.Context, series string, date time.Time) (Ensemble, bool, error)
	Put(ctx context.Context, e Ensemble, ttl time.Duration) error
}

// BookCache stores orderbook snapshots with a short TTL. ForceFresh callers
// (the exposure controller) bypass the cache entirely.
type BookCache interface {
	Get(ctx context.Context, ticker string) (OrderbookSnapshot, bool, error)
	Put(ctx context.Context, snap OrderbookSnapshot, ttl time.Duration) error
	Invalidate(ctx context.Context, ticker string) error
}

// LockManager serializes exposure recomputation per base market so two
// concurrent evaluations cannot both see pre-trade exposure and jointly
// exceed a limit.
type LockManager interface {
	// Acquire returns an unlock function, or ErrLockHeld when another
	// holder owns the key.
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// Calibration supplies read-only numeric hints from the external
// calibration collaborators. The decision engine treats every value as an
// opaque multiplier or gate; it never computes them.
type Calibration interface {
	// MinStd is the per-(city, month) uncertainty floor in °F.
	MinStd(city string, month time.Month) float64
	// MarketEnabled gates a series on historical performance.
	MarketEnabled(series string) bool
	// DrawdownMultiplier scales position size in [0, 1].
	DrawdownMultiplier() float64
	// OnCooldown pauses new entries after a loss streak.
	OnCooldown() bool
	// ConfidenceMultiplier reflects settlement divergence, in [0, 1].
	ConfidenceMultiplier(series string) float64
}
