package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// TransactionRepository defines read access to persisted transactions.
// Writes go through the ledger engine's transactional store, never here.
type TransactionRepository interface {
	// GetByID returns a transaction by ID.
	// Returns shared.ErrTransactionNotFound if missing.
	GetByID(ctx context.Context, id string) (*Transaction, error)

	// GetByAccount returns all transactions of an account, newest first.
	GetByAccount(ctx context.Context, accountID string, limit, offset int) ([]*Transaction, error)

	// SumEffectiveByAccount returns the sum of effective amounts over all
	// non-deleted transactions of the account. The stored balance must equal
	// this sum at any time.
	SumEffectiveByAccount(ctx context.Context, accountID string) (decimal.Decimal, error)
}

// AuditRepository defines read access to the append-only audit log.
type AuditRepository interface {
	// GetByAccount returns audit entries for an account, oldest first.
	GetByAccount(ctx context.Context, accountID string, limit, offset int) ([]*AuditLogEntry, error)

	// CountByAccount returns the number of audit entries for an account.
	CountByAccount(ctx context.Context, accountID string) (int, error)
}
