package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ══════════════════════════════════════════════════════════════════════════════
// BALANCE CACHE
// Кэш балансов счетов. Источник правды - PostgreSQL; кэш инвалидируется
// после каждой транзакции и живёт с коротким TTL на случай пропущенной
// инвалидации.
// ══════════════════════════════════════════════════════════════════════════════

// BalanceCache caches account balances. The ledger engine invalidates an
// entry after every committed mutation; readers repopulate on miss.
type BalanceCache struct {
	cache *Cache
}

// NewBalanceCache creates a new BalanceCache.
func NewBalanceCache(cache *Cache) *BalanceCache {
	return &BalanceCache{cache: cache}
}

// GetBalance returns the cached balance for an account.
// Returns ErrCacheMiss when the entry is absent.
func (b *BalanceCache) GetBalance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	if accountID == "" {
		return decimal.Zero, ErrCacheKeyEmpty
	}

	raw, err := b.cache.GetString(ctx, BalanceKey(accountID))
	if err != nil {
		return decimal.Zero, err
	}

	balance, err := decimal.NewFromString(raw)
	if err != nil {
		// Corrupt entry: drop it and report a miss.
		_ = b.cache.Delete(ctx, BalanceKey(accountID))
		return decimal.Zero, ErrCacheMiss
	}

	return balance, nil
}

// SetBalance stores the balance for an account. Balances are stored as
// decimal strings, never floats.
func (b *BalanceCache) SetBalance(ctx context.Context, accountID string, balance decimal.Decimal) error {
	if accountID == "" {
		return ErrCacheKeyEmpty
	}

	return b.cache.SetString(ctx, BalanceKey(accountID), balance.String(), TTLBalanceCache)
}

// InvalidateBalance drops the cached balance after a ledger mutation.
func (b *BalanceCache) InvalidateBalance(ctx context.Context, accountID string) error {
	if accountID == "" {
		return ErrCacheKeyEmpty
	}

	if err := b.cache.Delete(ctx, BalanceKey(accountID)); err != nil {
		return fmt.Errorf("failed to invalidate balance for account %s: %w", accountID, err)
	}

	return nil
}

// InvalidateAll drops every cached balance. Used after bulk recomputation.
func (b *BalanceCache) InvalidateAll(ctx context.Context) error {
	err := b.cache.DeleteByPattern(ctx, PrefixBalance+"*")
	if err != nil && !errors.Is(err, ErrCacheMiss) {
		return fmt.Errorf("failed to invalidate balances: %w", err)
	}

	return nil
}
