package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/skyline-trading/weatherbot/internal/domain"
)

// BookCache implements domain.BookCache as JSON snapshots with a short TTL.
// The snapshot is a value object refreshed wholesale each scan; callers that
// need live state (the exposure controller) never read through this cache.
type BookCache struct {
	rdb *redis.Client
}

// NewBookCache creates a BookCache backed by the given Client.
func NewBookCache(c *Client) *BookCache {
	return &BookCache{rdb: c.Underlying()}
}

func bookKey(ticker string) string {
	return "book:" + ticker
}

// Get returns the cached snapshot, with found=false on a miss.
func (bc *BookCache) Get(ctx context.Context, ticker string) (domain.OrderbookSnapshot, bool, error) {
	raw, err := bc.rdb.Get(ctx, bookKey(ticker)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.OrderbookSnapshot{}, false, nil
		}
		return domain.OrderbookSnapshot{}, false, fmt.Errorf("redis: get book %s: %w", ticker, err)
	}

	var snap domain.OrderbookSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return domain.OrderbookSnapshot{}, false, fmt.Errorf("redis: decode book %s: %w", ticker, err)
	}
	return snap, true, nil
}

// Put stores the snapshot under its ticker.
func (bc *BookCache) Put(ctx context.Context, snap domain.OrderbookSnapshot, ttl time.Duration) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("redis: encode book %s: %w", snap.Ticker, err)
	}
	if err := bc.rdb.Set(ctx, bookKey(snap.Ticker), raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis: put book %s: %w", snap.Ticker, err)
	}
	return nil
}

// Invalidate drops the cached snapshot, typically after an order changed the
// book.
func (bc *BookCache) Invalidate(ctx context.Context, ticker string) error {
	if err := bc.rdb.Del(ctx, bookKey(ticker)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate book %s: %w", ticker, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.BookCache = (*BookCache)(nil)
