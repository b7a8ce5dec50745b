package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bilim-hub/bilim-erp-core/internal/domain/account"
	"github.com/bilim-hub/bilim-erp-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACCOUNT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// AccountRepository implements account.Repository for PostgreSQL.
type AccountRepository struct {
	conn *Connection
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(conn *Connection) *AccountRepository {
	return &AccountRepository{conn: conn}
}

const accountColumns = `id, kind, holder_name, stage, balance, archived, archived_at,
	   archived_by, frozen_until, created_at, updated_at`

// Create creates a new account.
func (r *AccountRepository) Create(ctx context.Context, acc *account.Account) error {
	query := `
		INSERT INTO accounts (
			id, kind, holder_name, stage, balance, archived, archived_at,
			archived_by, frozen_until, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.conn.Exec(ctx, query,
		acc.ID,
		string(acc.Kind),
		acc.HolderName,
		string(acc.Stage),
		acc.Balance,
		acc.Archived,
		nullableTime(acc.ArchivedAt),
		acc.ArchivedBy,
		acc.FrozenUntil,
		acc.CreatedAt,
		acc.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create account: %w", err)
	}

	return nil
}

// GetByID returns an account by ID.
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*account.Account, error) {
	query := fmt.Sprintf(`SELECT %s FROM accounts WHERE id = $1`, accountColumns)

	row := r.conn.QueryRow(ctx, query, id)
	return scanAccount(row)
}

// Update persists account state changes. The balance column is deliberately
// excluded: only the ledger store moves money.
func (r *AccountRepository) Update(ctx context.Context, acc *account.Account) error {
	query := `
		UPDATE accounts
		SET holder_name = $2, stage = $3, archived = $4, archived_at = $5,
		    archived_by = $6, frozen_until = $7, updated_at = $8
		WHERE id = $1
	`

	tag, err := r.conn.Exec(ctx, query,
		acc.ID,
		acc.HolderName,
		string(acc.Stage),
		acc.Archived,
		nullableTime(acc.ArchivedAt),
		acc.ArchivedBy,
		acc.FrozenUntil,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrAccountNotFound
	}

	return nil
}

// GetByKind returns all accounts of the given kind.
func (r *AccountRepository) GetByKind(ctx context.Context, kind account.Kind) ([]*account.Account, error) {
	query := fmt.Sprintf(`SELECT %s FROM accounts WHERE kind = $1 ORDER BY created_at`, accountColumns)

	rows, err := r.conn.Query(ctx, query, string(kind))
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	return scanAccounts(rows)
}

// GetActiveByKind returns non-archived accounts of the given kind.
func (r *AccountRepository) GetActiveByKind(ctx context.Context, kind account.Kind) ([]*account.Account, error) {
	query := fmt.Sprintf(`SELECT %s FROM accounts WHERE kind = $1 AND NOT archived ORDER BY created_at`, accountColumns)

	rows, err := r.conn.Query(ctx, query, string(kind))
	if err != nil {
		return nil, fmt.Errorf("failed to query active accounts: %w", err)
	}
	defer rows.Close()

	return scanAccounts(rows)
}

// CountNonNegativeByKind returns how many non-archived accounts of the kind
// have a non-negative balance. Feeds the KPI discipline metric.
func (r *AccountRepository) CountNonNegativeByKind(ctx context.Context, kind account.Kind) (int, error) {
	query := `SELECT COUNT(*) FROM accounts WHERE kind = $1 AND NOT archived AND balance >= 0`

	var count int
	if err := r.conn.QueryRow(ctx, query, string(kind)).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count non-negative accounts: %w", err)
	}

	return count, nil
}

// FindFrozenExpired returns accounts whose freeze window ended before the
// given date. The unfreeze sweep clears them.
func (r *AccountRepository) FindFrozenExpired(ctx context.Context, asOf time.Time) ([]*account.Account, error) {
	query := fmt.Sprintf(`SELECT %s FROM accounts WHERE frozen_until IS NOT NULL AND frozen_until < $1::date`, accountColumns)

	rows, err := r.conn.Query(ctx, query, asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to query frozen accounts: %w", err)
	}
	defer rows.Close()

	return scanAccounts(rows)
}

// ─────────────────────────────────────────────────────────────────────────────
// Scan helpers
// ─────────────────────────────────────────────────────────────────────────────

func scanAccount(row pgx.Row) (*account.Account, error) {
	var acc account.Account
	var kind, stage string
	var archivedAt *time.Time

	err := row.Scan(
		&acc.ID,
		&kind,
		&acc.HolderName,
		&stage,
		&acc.Balance,
		&acc.Archived,
		&archivedAt,
		&acc.ArchivedBy,
		&acc.FrozenUntil,
		&acc.CreatedAt,
		&acc.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}

	acc.Kind = account.Kind(kind)
	acc.Stage = account.Stage(stage)
	if archivedAt != nil {
		acc.ArchivedAt = *archivedAt
	}

	return &acc, nil
}

func scanAccounts(rows pgx.Rows) ([]*account.Account, error) {
	var accounts []*account.Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, acc)
	}
	return accounts, rows.Err()
}

// nullableTime maps the zero time to NULL.
func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
