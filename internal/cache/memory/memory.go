// Package memory provides in-process implementations of the cache and lock
// interfaces, used when Redis is not configured and in tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/skyline-trading/weatherbot/internal/domain"
)

type entry[T any] struct {
	value   T
	expires time.Time
}

func (e entry[T]) live(now time.Time) bool {
	return e.expires.IsZero() || now.Before(e.expires)
}

// EnsembleCache is an in-process domain.EnsembleCache.
type EnsembleCache struct {
	mu sync.Mutex
	m  map[string]entry[domain.Ensemble]
}

// NewEnsembleCache creates an empty cache.
func NewEnsembleCache() *EnsembleCache {
	return &EnsembleCache{m: make(map[string]entry[domain.Ensemble])}
}

func ensembleKey(series string, date time.Time) string {
	return series + ":" + date.Format("2006-01-02")
}

func (c *EnsembleCache) Get(_ context.Context, series string, date time.Time) (domain.Ensemble, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.m[ensembleKey(series, date)]
	if !ok || !e.live(time.Now()) {
		delete(c.m, ensembleKey(series, date))
		return domain.Ensemble{}, false, nil
	}
	return e.value, true, nil
}

func (c *EnsembleCache) Put(_ context.Context, ens domain.Ensemble, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	c.m[ensembleKey(ens.Series, ens.TargetDate)] = entry[domain.Ensemble]{value: ens, expires: exp}
	return nil
}

// BookCache is an in-process domain.BookCache.
type BookCache struct {
	mu sync.Mutex
	m  map[string]entry[domain.OrderbookSnapshot]
}

// NewBookCache creates an empty cache.
func NewBookCache() *BookCache {
	return &BookCache{m: make(map[string]entry[domain.OrderbookSnapshot])}
}

func (c *BookCache) Get(_ context.Context, ticker string) (domain.OrderbookSnapshot, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.m[ticker]
	if !ok || !e.live(time.Now()) {
		delete(c.m, ticker)
		return domain.OrderbookSnapshot{}, false, nil
	}
	return e.value, true, nil
}

func (c *BookCache) Put(_ context.Context, snap domain.OrderbookSnapshot, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	c.m[snap.Ticker] = entry[domain.OrderbookSnapshot]{value: snap, expires: exp}
	return nil
}

func (c *BookCache) Invalidate(_ context.Context, ticker string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, ticker)
	return nil
}

// LockManager is an in-process domain.LockManager. Locks expire after their
// TTL so a crashed holder cannot wedge a base market forever.
type LockManager struct {
	mu    sync.Mutex
	locks map[string]time.Time
}

// NewLockManager creates an empty lock table.
func NewLockManager() *LockManager {
	return &LockManager{locks: make(map[string]time.Time)}
}

func (lm *LockManager) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	now := time.Now()
	if exp, held := lm.locks[key]; held && now.Before(exp) {
		return nil, domain.ErrLockHeld
	}
	lm.locks[key] = now.Add(ttl)

	released := false
	unlock := func() {
		lm.mu.Lock()
		defer lm.mu.Unlock()
		if released {
			return
		}
		released = true
		delete(lm.locks, key)
	}
	return unlock, nil
}

// Compile-time interface checks.
var (
	_ domain.EnsembleCache = (*EnsembleCache)(nil)
	_ domain.BookCache     = (*BookCache)(nil)
	_ domain.LockManager   = (*LockManager)(nil)
)
