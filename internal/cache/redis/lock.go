package redis

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/skyline-trading/weatherbot/internal/domain"
)

// unlockLua deletes a lock key only if its value matches the caller's unique
// token, so one holder cannot release another holder's lock.
const unlockLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// unlockTimeout bounds the conditional-delete round trip when the caller's
// context is already gone.
const unlockTimeout = 5 * time.Second

// LockManager implements domain.LockManager using Redis SETNX with a TTL and
// a Lua-based conditional unlock. The engine serializes exposure
// recomputation and order submission on one lock per base market; the TTL is
// the backstop if a holder dies mid-cycle.
type LockManager struct {
	rdb      *redis.Client
	unlockSc *redis.Script
	logger   *slog.Logger
}

// NewLockManager creates a LockManager backed by the given Client.
func NewLockManager(c *Client, logger *slog.Logger) *LockManager {
	return &LockManager{
		rdb:      c.Underlying(),
		unlockSc: redis.NewScript(unlockLua),
		logger:   logger.With(slog.String("component", "redis_locks")),
	}
}

func lockKey(key string) string {
	return "lock:" + key
}

// Acquire obtains the lock for key or returns domain.ErrLockHeld if another
// holder has it. The returned unlock releases it and is safe to call more
// than once; an unreleased lock expires after ttl.
func (lm *LockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.New().String()
	lk := lockKey(key)

	ok, err := lm.rdb.SetNX(ctx, lk, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, domain.ErrLockHeld
	}

	var once sync.Once
	unlock := func() {
		once.Do(func() {
			// The caller's context may already be cancelled; the lock
			// still has to go.
			unlockCtx, cancel := context.WithTimeout(context.Background(), unlockTimeout)
			defer cancel()

			if err := lm.unlockSc.Run(unlockCtx, lm.rdb, []string{lk}, token).Err(); err != nil {
				lm.logger.Warn("lock release failed, waiting out TTL",
					slog.String("key", key),
					slog.Any("error", err))
			}
		})
	}

	return unlock, nil
}

var _ domain.LockManager = (*LockManager)(nil)
