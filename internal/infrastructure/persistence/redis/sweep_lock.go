package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ══════════════════════════════════════════════════════════════════════════════
// SWEEP LOCK
// Распределённая блокировка для фоновых обходов (streak, KPI, verify).
// Гарантирует, что при нескольких воркерах обход выполняет только один.
// ══════════════════════════════════════════════════════════════════════════════

// ErrLockHeld is returned when another worker holds the sweep lock.
var ErrLockHeld = errors.New("sweep lock: held by another worker")

// releaseScript deletes the lock only when the token matches, so a worker
// cannot release a lock it lost to TTL expiry.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`

// SweepLock is a token-based distributed lock over a single Redis key.
type SweepLock struct {
	cache    *Cache
	resource string
	ttl      time.Duration
	token    string
}

// NewSweepLock creates a lock for the named resource (job name).
// A non-positive TTL falls back to TTLSweepLock.
func NewSweepLock(cache *Cache, resource string, ttl time.Duration) *SweepLock {
	if ttl <= 0 {
		ttl = TTLSweepLock
	}
	return &SweepLock{
		cache:    cache,
		resource: resource,
		ttl:      ttl,
	}
}

// Acquire takes the lock. Returns ErrLockHeld when another worker owns it.
func (l *SweepLock) Acquire(ctx context.Context) error {
	token := uuid.NewString()

	ok, err := l.cache.SetNX(ctx, LockKey(l.resource), token, l.ttl)
	if err != nil {
		return fmt.Errorf("failed to acquire lock %s: %w", l.resource, err)
	}
	if !ok {
		return ErrLockHeld
	}

	l.token = token
	return nil
}

// Release frees the lock if this worker still owns it. Releasing a lock
// already expired or taken over is a no-op.
func (l *SweepLock) Release(ctx context.Context) error {
	if l.token == "" {
		return nil
	}

	err := l.cache.Client().Eval(ctx, releaseScript, []string{LockKey(l.resource)}, l.token).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to release lock %s: %w", l.resource, err)
	}

	l.token = ""
	return nil
}

// WithLock runs fn under the lock, releasing it afterwards. When the lock is
// held elsewhere it returns ErrLockHeld without running fn.
func (l *SweepLock) WithLock(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := l.Acquire(ctx); err != nil {
		return err
	}

	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = l.Release(releaseCtx)
	}()

	return fn(ctx)
}
