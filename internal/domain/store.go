package domain

import (
	"context"
	"io"
	"time"
)

// TradeStore persists executed trade decisions for later attribution.
type TradeStore interface {
	Record(ctx context.Context, d TradeDecision, orderID string) error
	ListSince(ctx context.Context, since time.Time) ([]TradeDecision, error)
}

// SettlementStore persists market outcomes.
type SettlementStore interface {
	Record(ctx context.Context, s Settlement) error
	ListByDay(ctx context.Context, day time.Time) ([]Settlement, error)
}

// ForecastErrorStore holds per-(city, month) absolute forecast errors. The
// probability engine blends its rolling average into the distribution's
// standard deviation.
type ForecastErrorStore interface {
	Record(ctx context.Context, city string, month time.Month, errorF float64) error
	// Average returns the mean absolute error and sample count for the
	// city/month. Count zero means no history.
	Average(ctx context.Context, city string, month time.Month) (float64, int, error)
}

// BlobWriter uploads an object to blob storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// Archiver writes daily outcome archives to blob storage.
type Archiver interface {
	ArchiveDay(ctx context.Context, day time.Time) (string, error)
}
