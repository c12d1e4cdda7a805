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

// EnsembleCache implements domain.EnsembleCache as JSON blobs keyed by
// series and target date. Ensembles are immutable once built, so a plain
// SET with TTL is enough.
type EnsembleCache struct {
	rdb *redis.Client
}

// NewEnsembleCache creates an EnsembleCache backed by the given Client.
func NewEnsembleCache(c *Client) *EnsembleCache {
	return &EnsembleCache{rdb: c.Underlying()}
}

func ensembleKey(series string, date time.Time) string {
	return "ensemble:" + series + ":" + date.Format("2006-01-02")
}

// Get returns the cached ensemble, with found=false on a miss.
func (ec *EnsembleCache) Get(ctx context.Context, series string, date time.Time) (domain.Ensemble, bool, error) {
	raw, err := ec.rdb.Get(ctx, ensembleKey(series, date)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Ensemble{}, false, nil
		}
		return domain.Ensemble{}, false, fmt.Errorf("redis: get ensemble %s: %w", series, err)
	}

	var ens domain.Ensemble
	if err := json.Unmarshal(raw, &ens); err != nil {
		return domain.Ensemble{}, false, fmt.Errorf("redis: decode ensemble %s: %w", series, err)
	}
	return ens, true, nil
}

// Put stores the ensemble under its series+date key.
func (ec *EnsembleCache) Put(ctx context.Context, e domain.Ensemble, ttl time.Duration) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("redis: encode ensemble %s: %w", e.Series, err)
	}
	if err := ec.rdb.Set(ctx, ensembleKey(e.Series, e.TargetDate), raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis: put ensemble %s: %w", e.Series, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.EnsembleCache = (*EnsembleCache)(nil)
