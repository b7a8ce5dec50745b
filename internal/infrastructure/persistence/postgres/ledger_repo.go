package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/bilim-hub/bilim-erp-core/internal/domain/account"
	"github.com/bilim-hub/bilim-erp-core/internal/domain/ledger"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEDGER READ REPOSITORIES
// ══════════════════════════════════════════════════════════════════════════════

// TransactionRepository implements ledger.TransactionRepository for PostgreSQL.
type TransactionRepository struct {
	conn *Connection
}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository(conn *Connection) *TransactionRepository {
	return &TransactionRepository{conn: conn}
}

// GetByID returns a transaction by ID.
func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*ledger.Transaction, error) {
	query := `
		SELECT id, account_id, account_kind, reason, action, amount,
		       effective_amount, created_by, comment, created_at
		FROM ledger_transactions
		WHERE id = $1
	`

	return scanTransaction(r.conn.QueryRow(ctx, query, id))
}

// GetByAccount returns transactions of an account, newest first.
func (r *TransactionRepository) GetByAccount(ctx context.Context, accountID string, limit, offset int) ([]*ledger.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, account_id, account_kind, reason, action, amount,
		       effective_amount, created_by, comment, created_at
		FROM ledger_transactions
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.conn.Query(ctx, query, accountID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var out []*ledger.Transaction
	for rows.Next() {
		tr, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tr)
	}
	return out, rows.Err()
}

// SumEffectiveByAccount returns the ledger sum of the account. COALESCE
// keeps an account without transactions at zero rather than NULL.
func (r *TransactionRepository) SumEffectiveByAccount(ctx context.Context, accountID string) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(effective_amount), 0) FROM ledger_transactions WHERE account_id = $1`

	var sum decimal.Decimal
	if err := r.conn.QueryRow(ctx, query, accountID).Scan(&sum); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum transactions: %w", err)
	}

	return sum, nil
}

// AuditRepository implements ledger.AuditRepository for PostgreSQL.
type AuditRepository struct {
	conn *Connection
}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository(conn *Connection) *AuditRepository {
	return &AuditRepository{conn: conn}
}

// GetByAccount returns audit entries of an account, oldest first.
func (r *AuditRepository) GetByAccount(ctx context.Context, accountID string, limit, offset int) ([]*ledger.AuditLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, subject_kind, account_id, transaction_id, action, comment,
		       balance_before, balance_after, created_at
		FROM audit_log
		WHERE account_id = $1
		ORDER BY created_at
		LIMIT $2 OFFSET $3
	`

	rows, err := r.conn.Query(ctx, query, accountID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var out []*ledger.AuditLogEntry
	for rows.Next() {
		entry, err := scanAuditEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// CountByAccount returns the number of audit entries of an account.
func (r *AuditRepository) CountByAccount(ctx context.Context, accountID string) (int, error) {
	var count int
	err := r.conn.QueryRow(ctx, `SELECT COUNT(*) FROM audit_log WHERE account_id = $1`, accountID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count audit entries: %w", err)
	}
	return count, nil
}

func scanAuditEntry(row pgx.Row) (*ledger.AuditLogEntry, error) {
	var e ledger.AuditLogEntry
	var kind, action string
	var createdAt time.Time

	err := row.Scan(
		&e.ID,
		&kind,
		&e.AccountID,
		&e.TransactionID,
		&action,
		&e.Comment,
		&e.BalanceBefore,
		&e.BalanceAfter,
		&createdAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan audit entry: %w", err)
	}

	e.SubjectKind = account.Kind(kind)
	e.Action = ledger.AuditAction(action)
	e.CreatedAt = createdAt

	return &e, nil
}
