// Package engine contains the application-level processes that orchestrate
// multiple domain operations: balance mutations, KPI sweeps, streak
// evaluation and archival lifecycles.
package engine

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/bilim-hub/bilim-erp-core/internal/domain/account"
	"github.com/bilim-hub/bilim-erp-core/internal/domain/archive"
	"github.com/bilim-hub/bilim-erp-core/internal/domain/group"
	"github.com/bilim-hub/bilim-erp-core/internal/domain/lead"
	"github.com/bilim-hub/bilim-erp-core/internal/domain/ledger"
)

// ══════════════════════════════════════════════════════════════════════════════
// TRANSACTIONAL STORE CONTRACTS
// Балансовые мутации и архивации должны происходить атомарно: несколько
// записей в одной storage-транзакции. Репозитории доменного слоя для этого
// не подходят - они по одной операции за вызов. Поэтому движки работают
// через сторы с транзакционными замыканиями.
// ══════════════════════════════════════════════════════════════════════════════

// LedgerStore opens transactional scopes for balance mutations.
type LedgerStore interface {
	// WithinTx runs fn inside a single storage transaction. The transaction
	// commits when fn returns nil and rolls back otherwise. Implementations
	// map lock conflicts to shared.ErrConcurrentBalanceConflict.
	WithinTx(ctx context.Context, fn func(tx LedgerTx) error) error
}

// LedgerTx is the set of writes available inside a ledger transaction.
// Account reads acquire a row lock, so two concurrent mutations of the same
// account serialize on the database.
type LedgerTx interface {
	// GetAccountForUpdate reads the account and locks its row until commit.
	// Returns shared.ErrAccountNotFound if missing.
	GetAccountForUpdate(ctx context.Context, accountID string) (*account.Account, error)

	// UpdateBalance sets the account balance.
	UpdateBalance(ctx context.Context, accountID string, balance decimal.Decimal) error

	// InsertTransaction persists a new ledger transaction.
	InsertTransaction(ctx context.Context, t *ledger.Transaction) error

	// GetTransaction reads a transaction by ID.
	// Returns shared.ErrTransactionNotFound if missing.
	GetTransaction(ctx context.Context, id string) (*ledger.Transaction, error)

	// DeleteTransaction removes a transaction row.
	DeleteTransaction(ctx context.Context, id string) error

	// InsertAuditEntry appends an audit log entry.
	InsertAuditEntry(ctx context.Context, e *ledger.AuditLogEntry) error
}

// LifecycleStore opens transactional scopes for archival operations.
type LifecycleStore interface {
	// WithinTx runs fn inside a single storage transaction.
	WithinTx(ctx context.Context, fn func(tx LifecycleTx) error) error
}

// LifecycleTx is the set of reads and writes available inside an archival
// transaction: the subject, its archive record and any cascaded memberships
// all change together or not at all.
type LifecycleTx interface {
	// GetAccountForUpdate reads the account and locks its row until commit.
	GetAccountForUpdate(ctx context.Context, accountID string) (*account.Account, error)

	// UpdateAccount persists account state changes (not the balance).
	UpdateAccount(ctx context.Context, acc *account.Account) error

	// GetLeadForUpdate reads the lead and locks its row until commit.
	GetLeadForUpdate(ctx context.Context, leadID string) (*lead.Lead, error)

	// UpdateLead persists lead state changes.
	UpdateLead(ctx context.Context, l *lead.Lead) error

	// InsertArchiveRecord persists a new archive record.
	InsertArchiveRecord(ctx context.Context, r *archive.Record) error

	// GetArchiveRecord reads an archive record by ID.
	// Returns shared.ErrArchiveRecordNotFound if missing.
	GetArchiveRecord(ctx context.Context, id string) (*archive.Record, error)

	// UpdateArchiveRecord persists the unarchive stamp.
	UpdateArchiveRecord(ctx context.Context, r *archive.Record) error

	// GetMembership reads a membership by ID.
	// Returns shared.ErrMembershipNotFound if missing.
	GetMembership(ctx context.Context, id string) (*group.Membership, error)

	// UpdateMembership persists membership state changes.
	UpdateMembership(ctx context.Context, m *group.Membership) error

	// GetActiveMemberships returns the non-archived memberships of an account.
	GetActiveMemberships(ctx context.Context, accountID string) ([]*group.Membership, error)

	// GetCascadedMemberships returns memberships archived as a consequence of
	// the account's archival.
	GetCascadedMemberships(ctx context.Context, accountID string) ([]*group.Membership, error)

	// CountActiveMemberships returns how many non-archived memberships the
	// account still has.
	CountActiveMemberships(ctx context.Context, accountID string) (int, error)
}

// BalanceCache invalidates cached balance reads after a mutation. A nil
// cache is valid: the engines skip invalidation.
type BalanceCache interface {
	// InvalidateBalance drops the cached balance for an account.
	InvalidateBalance(ctx context.Context, accountID string) error
}
