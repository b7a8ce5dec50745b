package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bilim-hub/bilim-erp-core/internal/application/engine"
	"github.com/bilim-hub/bilim-erp-core/internal/domain/account"
	"github.com/bilim-hub/bilim-erp-core/internal/domain/archive"
	"github.com/bilim-hub/bilim-erp-core/internal/domain/group"
	"github.com/bilim-hub/bilim-erp-core/internal/domain/lead"
	"github.com/bilim-hub/bilim-erp-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE STORE
// Транзакционная граница архивных операций: субъект, архивная запись и
// каскадные членства меняются в одной транзакции.
// ══════════════════════════════════════════════════════════════════════════════

// LifecycleStore implements engine.LifecycleStore for PostgreSQL.
type LifecycleStore struct {
	conn *Connection
}

// NewLifecycleStore creates a new LifecycleStore.
func NewLifecycleStore(conn *Connection) *LifecycleStore {
	return &LifecycleStore{conn: conn}
}

// WithinTx runs fn inside a storage transaction.
func (s *LifecycleStore) WithinTx(ctx context.Context, fn func(tx engine.LifecycleTx) error) error {
	return s.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		return fn(&lifecycleTx{tx: tx})
	})
}

// lifecycleTx implements engine.LifecycleTx over a pgx transaction.
type lifecycleTx struct {
	tx pgx.Tx
}

// GetAccountForUpdate reads the account and locks its row until commit.
func (t *lifecycleTx) GetAccountForUpdate(ctx context.Context, accountID string) (*account.Account, error) {
	query := fmt.Sprintf(`SELECT %s FROM accounts WHERE id = $1 FOR UPDATE`, accountColumns)

	return scanAccount(t.tx.QueryRow(ctx, query, accountID))
}

// UpdateAccount persists account state changes (not the balance).
func (t *lifecycleTx) UpdateAccount(ctx context.Context, acc *account.Account) error {
	query := `
		UPDATE accounts
		SET holder_name = $2, stage = $3, archived = $4, archived_at = $5,
		    archived_by = $6, frozen_until = $7, updated_at = $8
		WHERE id = $1
	`

	tag, err := t.tx.Exec(ctx, query,
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

// GetLeadForUpdate reads the lead and locks its row until commit.
func (t *lifecycleTx) GetLeadForUpdate(ctx context.Context, leadID string) (*lead.Lead, error) {
	query := `
		SELECT id, full_name, phone, source, archived, archived_at,
		       converted_at, created_at, updated_at
		FROM leads
		WHERE id = $1
		FOR UPDATE
	`

	return scanLead(t.tx.QueryRow(ctx, query, leadID))
}

// UpdateLead persists lead state changes.
func (t *lifecycleTx) UpdateLead(ctx context.Context, l *lead.Lead) error {
	query := `
		UPDATE leads
		SET full_name = $2, phone = $3, source = $4, archived = $5,
		    archived_at = $6, converted_at = $7, updated_at = $8
		WHERE id = $1
	`

	tag, err := t.tx.Exec(ctx, query,
		l.ID,
		l.FullName,
		l.Phone,
		l.Source,
		l.Archived,
		l.ArchivedAt,
		l.ConvertedAt,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to update lead: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}

	return nil
}

// InsertArchiveRecord persists a new archive record. The lead/student
// exclusive-or is backed by the archive_subject_xor CHECK constraint.
func (t *lifecycleTx) InsertArchiveRecord(ctx context.Context, r *archive.Record) error {
	query := `
		INSERT INTO archive_records (
			id, student_id, lead_id, reason_code, reason_text, created_by,
			unarchived_at, unarchived_by, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := t.tx.Exec(ctx, query,
		r.ID,
		r.StudentID,
		r.LeadID,
		string(r.ReasonCode),
		r.ReasonText,
		r.CreatedBy,
		r.UnarchivedAt,
		r.UnarchivedBy,
		r.CreatedAt,
	)
	if err != nil {
		if IsCheckViolation(err) {
			return shared.ErrArchiveSubjectExclusivity
		}
		return fmt.Errorf("failed to insert archive record: %w", err)
	}

	return nil
}

// GetArchiveRecord reads an archive record by ID.
func (t *lifecycleTx) GetArchiveRecord(ctx context.Context, id string) (*archive.Record, error) {
	query := `
		SELECT id, student_id, lead_id, reason_code, reason_text, created_by,
		       unarchived_at, unarchived_by, created_at
		FROM archive_records
		WHERE id = $1
		FOR UPDATE
	`

	return scanArchiveRecord(t.tx.QueryRow(ctx, query, id))
}

// UpdateArchiveRecord persists the unarchive stamp.
func (t *lifecycleTx) UpdateArchiveRecord(ctx context.Context, r *archive.Record) error {
	query := `UPDATE archive_records SET unarchived_at = $2, unarchived_by = $3 WHERE id = $1`

	tag, err := t.tx.Exec(ctx, query, r.ID, r.UnarchivedAt, r.UnarchivedBy)
	if err != nil {
		return fmt.Errorf("failed to update archive record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrArchiveRecordNotFound
	}

	return nil
}

// GetMembership reads a membership by ID.
func (t *lifecycleTx) GetMembership(ctx context.Context, id string) (*group.Membership, error) {
	query := fmt.Sprintf(`SELECT %s FROM memberships WHERE id = $1 FOR UPDATE`, membershipColumns)

	return scanMembership(t.tx.QueryRow(ctx, query, id))
}

// UpdateMembership persists membership state changes.
func (t *lifecycleTx) UpdateMembership(ctx context.Context, m *group.Membership) error {
	return updateMembership(ctx, t.tx, m)
}

// GetActiveMemberships returns non-archived memberships of the account.
func (t *lifecycleTx) GetActiveMemberships(ctx context.Context, accountID string) ([]*group.Membership, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM memberships WHERE account_id = $1 AND NOT archived ORDER BY created_at FOR UPDATE`,
		membershipColumns,
	)

	rows, err := t.tx.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query active memberships: %w", err)
	}
	defer rows.Close()

	return scanMemberships(rows)
}

// GetCascadedMemberships returns memberships archived by the account cascade.
func (t *lifecycleTx) GetCascadedMemberships(ctx context.Context, accountID string) ([]*group.Membership, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM memberships WHERE account_id = $1 AND archived AND cascaded ORDER BY created_at FOR UPDATE`,
		membershipColumns,
	)

	rows, err := t.tx.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cascaded memberships: %w", err)
	}
	defer rows.Close()

	return scanMemberships(rows)
}

// CountActiveMemberships returns how many non-archived memberships remain.
func (t *lifecycleTx) CountActiveMemberships(ctx context.Context, accountID string) (int, error) {
	var count int
	err := t.tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM memberships WHERE account_id = $1 AND NOT archived`,
		accountID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active memberships: %w", err)
	}
	return count, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Scan helpers
// ─────────────────────────────────────────────────────────────────────────────

func scanLead(row pgx.Row) (*lead.Lead, error) {
	var l lead.Lead

	err := row.Scan(
		&l.ID,
		&l.FullName,
		&l.Phone,
		&l.Source,
		&l.Archived,
		&l.ArchivedAt,
		&l.ConvertedAt,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan lead: %w", err)
	}

	return &l, nil
}

func scanArchiveRecord(row pgx.Row) (*archive.Record, error) {
	var r archive.Record
	var reasonCode string

	err := row.Scan(
		&r.ID,
		&r.StudentID,
		&r.LeadID,
		&reasonCode,
		&r.ReasonText,
		&r.CreatedBy,
		&r.UnarchivedAt,
		&r.UnarchivedBy,
		&r.CreatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrArchiveRecordNotFound
		}
		return nil, fmt.Errorf("failed to scan archive record: %w", err)
	}

	r.ReasonCode = archive.ReasonCode(reasonCode)

	return &r, nil
}
