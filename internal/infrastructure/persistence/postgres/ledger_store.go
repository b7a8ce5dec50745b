package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/bilim-hub/bilim-erp-core/internal/application/engine"
	"github.com/bilim-hub/bilim-erp-core/internal/domain/account"
	"github.com/bilim-hub/bilim-erp-core/internal/domain/ledger"
	"github.com/bilim-hub/bilim-erp-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEDGER STORE
// Транзакционная граница движка балансов. Чтение счёта берёт блокировку
// строки (SELECT ... FOR UPDATE): конкурентные мутации одного счёта
// сериализуются на уровне БД, проигравшая сторона при дедлоке получает
// shared.ErrConcurrentBalanceConflict и может повторить попытку.
// ══════════════════════════════════════════════════════════════════════════════

// LedgerStore implements engine.LedgerStore for PostgreSQL.
type LedgerStore struct {
	conn *Connection
}

// NewLedgerStore creates a new LedgerStore.
func NewLedgerStore(conn *Connection) *LedgerStore {
	return &LedgerStore{conn: conn}
}

// WithinTx runs fn inside a storage transaction. Lock conflicts surface as
// shared.ErrConcurrentBalanceConflict so callers can retry.
func (s *LedgerStore) WithinTx(ctx context.Context, fn func(tx engine.LedgerTx) error) error {
	err := s.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		return fn(&ledgerTx{tx: tx})
	})
	return wrapLockConflict(err)
}

// wrapLockConflict maps database lock conflicts to the retryable sentinel.
// All other errors pass through untouched.
func wrapLockConflict(err error) error {
	if err != nil && IsLockConflict(err) {
		return shared.WrapError("ledger", "WithinTx", shared.ErrConcurrentBalanceConflict,
			"concurrent balance update conflict", err)
	}
	return err
}

// ledgerTx implements engine.LedgerTx over a pgx transaction.
type ledgerTx struct {
	tx pgx.Tx
}

// GetAccountForUpdate reads the account and locks its row until commit.
func (t *ledgerTx) GetAccountForUpdate(ctx context.Context, accountID string) (*account.Account, error) {
	query := fmt.Sprintf(`SELECT %s FROM accounts WHERE id = $1 FOR UPDATE`, accountColumns)

	return scanAccount(t.tx.QueryRow(ctx, query, accountID))
}

// UpdateBalance sets the account balance.
func (t *ledgerTx) UpdateBalance(ctx context.Context, accountID string, balance decimal.Decimal) error {
	query := `UPDATE accounts SET balance = $2, updated_at = $3 WHERE id = $1`

	tag, err := t.tx.Exec(ctx, query, accountID, balance, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrAccountNotFound
	}

	return nil
}

// InsertTransaction persists a new ledger transaction.
func (t *ledgerTx) InsertTransaction(ctx context.Context, tr *ledger.Transaction) error {
	query := `
		INSERT INTO ledger_transactions (
			id, account_id, account_kind, reason, action, amount,
			effective_amount, created_by, comment, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := t.tx.Exec(ctx, query,
		tr.ID,
		tr.AccountID,
		string(tr.AccountKind),
		string(tr.Reason),
		string(tr.Action),
		tr.Amount,
		tr.EffectiveAmount,
		tr.CreatedBy,
		tr.Comment,
		tr.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}

	return nil
}

// GetTransaction reads a transaction by ID.
func (t *ledgerTx) GetTransaction(ctx context.Context, id string) (*ledger.Transaction, error) {
	query := `
		SELECT id, account_id, account_kind, reason, action, amount,
		       effective_amount, created_by, comment, created_at
		FROM ledger_transactions
		WHERE id = $1
	`

	return scanTransaction(t.tx.QueryRow(ctx, query, id))
}

// DeleteTransaction removes a transaction row.
func (t *ledgerTx) DeleteTransaction(ctx context.Context, id string) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM ledger_transactions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrTransactionNotFound
	}

	return nil
}

// InsertAuditEntry appends an audit log entry.
func (t *ledgerTx) InsertAuditEntry(ctx context.Context, e *ledger.AuditLogEntry) error {
	query := `
		INSERT INTO audit_log (
			id, subject_kind, account_id, transaction_id, action, comment,
			balance_before, balance_after, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := t.tx.Exec(ctx, query,
		e.ID,
		string(e.SubjectKind),
		e.AccountID,
		e.TransactionID,
		string(e.Action),
		e.Comment,
		e.BalanceBefore,
		e.BalanceAfter,
		e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}

	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Scan helpers
// ─────────────────────────────────────────────────────────────────────────────

func scanTransaction(row pgx.Row) (*ledger.Transaction, error) {
	var tr ledger.Transaction
	var kind, reason, action string

	err := row.Scan(
		&tr.ID,
		&tr.AccountID,
		&kind,
		&reason,
		&action,
		&tr.Amount,
		&tr.EffectiveAmount,
		&tr.CreatedBy,
		&tr.Comment,
		&tr.CreatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}

	tr.AccountKind = account.Kind(kind)
	tr.Reason = ledger.Reason(reason)
	tr.Action = ledger.Action(action)

	return &tr, nil
}
