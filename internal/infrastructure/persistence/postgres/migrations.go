package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION SUPPORT
// ══════════════════════════════════════════════════════════════════════════════

// Migration represents a database migration.
type Migration struct {
	Version   int
	Name      string
	UpSQL     string
	DownSQL   string
	AppliedAt time.Time
	IsApplied bool
}

// Migrator handles database migrations.
type Migrator struct {
	conn       *Connection
	migrations []Migration
	tableName  string
}

// NewMigrator creates a new migrator with embedded migrations.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{
		conn:       conn,
		migrations: GetMigrations(),
		tableName:  "schema_migrations",
	}
}

// NewMigratorWithMigrations creates a migrator with custom migrations.
func NewMigratorWithMigrations(conn *Connection, migrations []Migration) *Migrator {
	return &Migrator{
		conn:       conn,
		migrations: migrations,
		tableName:  "schema_migrations",
	}
}

// EnsureMigrationTable creates the migration tracking table if it doesn't exist.
func (m *Migrator) EnsureMigrationTable(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`, m.tableName)

	_, err := m.conn.Exec(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	return nil
}

// GetAppliedMigrations returns all applied migrations.
func (m *Migrator) GetAppliedMigrations(ctx context.Context) (map[int]time.Time, error) {
	query := fmt.Sprintf("SELECT version, applied_at FROM %s ORDER BY version", m.tableName)

	rows, err := m.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]time.Time)
	for rows.Next() {
		var version int
		var appliedAt time.Time

		if err := rows.Scan(&version, &appliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}

		applied[version] = appliedAt
	}

	return applied, rows.Err()
}

// Migrate applies all pending migrations.
func (m *Migrator) Migrate(ctx context.Context) error {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return err
	}

	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return err
	}

	for _, mig := range m.migrations {
		if _, isApplied := applied[mig.Version]; isApplied {
			continue
		}

		if mig.UpSQL == "" {
			return fmt.Errorf("%w: missing up SQL for migration %d", ErrMigrationFailed, mig.Version)
		}

		err := m.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, mig.UpSQL); err != nil {
				return fmt.Errorf("failed to execute migration %d: %w", mig.Version, err)
			}

			insertQuery := fmt.Sprintf(
				"INSERT INTO %s (version, name) VALUES ($1, $2)",
				m.tableName,
			)
			_, err := tx.Exec(ctx, insertQuery, mig.Version, mig.Name)
			return err
		})
		if err != nil {
			return fmt.Errorf("%w: version %d: %v", ErrMigrationFailed, mig.Version, err)
		}
	}

	return nil
}

// Rollback rolls back the last applied migration.
func (m *Migrator) Rollback(ctx context.Context) error {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return err
	}

	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return err
	}

	var lastVersion int
	for v := range applied {
		if v > lastVersion {
			lastVersion = v
		}
	}

	if lastVersion == 0 {
		return nil // Nothing to rollback
	}

	var migration *Migration
	for i := range m.migrations {
		if m.migrations[i].Version == lastVersion {
			migration = &m.migrations[i]
			break
		}
	}

	if migration == nil || migration.DownSQL == "" {
		return fmt.Errorf("%w: missing down SQL for migration %d", ErrMigrationFailed, lastVersion)
	}

	return m.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, migration.DownSQL); err != nil {
			return fmt.Errorf("failed to rollback migration %d: %w", lastVersion, err)
		}

		deleteQuery := fmt.Sprintf("DELETE FROM %s WHERE version = $1", m.tableName)
		_, err := tx.Exec(ctx, deleteQuery, lastVersion)
		return err
	})
}

// Status returns the migration status.
func (m *Migrator) Status(ctx context.Context) ([]Migration, error) {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return nil, err
	}

	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]Migration, len(m.migrations))
	copy(result, m.migrations)

	for i := range result {
		if appliedAt, ok := applied[result[i].Version]; ok {
			result[i].IsApplied = true
			result[i].AppliedAt = appliedAt
		}
	}

	return result, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// EMBEDDED MIGRATIONS
// ══════════════════════════════════════════════════════════════════════════════

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_accounts",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "create_ledger",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
		{
			Version: 3,
			Name:    "create_groups_attendance",
			UpSQL:   migration003Up,
			DownSQL: migration003Down,
		},
		{
			Version: 4,
			Name:    "create_archive_kpi",
			UpSQL:   migration004Up,
			DownSQL: migration004Down,
		},
	}
}

const migration001Up = `
CREATE TABLE accounts (
    id              UUID PRIMARY KEY,
    kind            TEXT NOT NULL CHECK (kind IN ('STUDENT', 'STAFF')),
    holder_name     TEXT NOT NULL,
    stage           TEXT NOT NULL DEFAULT 'NEW' CHECK (stage IN ('NEW', 'ACTIVE')),
    balance         NUMERIC(14, 2) NOT NULL DEFAULT 0,
    archived        BOOLEAN NOT NULL DEFAULT FALSE,
    archived_at     TIMESTAMPTZ,
    archived_by     TEXT NOT NULL DEFAULT '',
    frozen_until    DATE,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX idx_accounts_kind ON accounts (kind) WHERE NOT archived;
CREATE INDEX idx_accounts_frozen ON accounts (frozen_until) WHERE frozen_until IS NOT NULL;

CREATE TABLE leads (
    id              UUID PRIMARY KEY,
    full_name       TEXT NOT NULL,
    phone           TEXT NOT NULL DEFAULT '',
    source          TEXT NOT NULL DEFAULT '',
    archived        BOOLEAN NOT NULL DEFAULT FALSE,
    archived_at     TIMESTAMPTZ,
    converted_at    TIMESTAMPTZ,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

const migration001Down = `
DROP TABLE IF EXISTS leads;
DROP TABLE IF EXISTS accounts;
`

const migration002Up = `
CREATE TABLE ledger_transactions (
    id               UUID PRIMARY KEY,
    account_id       UUID NOT NULL REFERENCES accounts (id),
    account_kind     TEXT NOT NULL,
    reason           TEXT NOT NULL,
    action           TEXT NOT NULL CHECK (action IN ('CREDIT', 'DEBIT')),
    amount           NUMERIC(14, 2) NOT NULL CHECK (amount > 0),
    effective_amount NUMERIC(14, 2) NOT NULL,
    created_by       TEXT NOT NULL DEFAULT '',
    comment          TEXT NOT NULL DEFAULT '',
    created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX idx_ledger_transactions_account ON ledger_transactions (account_id, created_at DESC);

CREATE TABLE audit_log (
    id              UUID PRIMARY KEY,
    subject_kind    TEXT NOT NULL,
    account_id      UUID NOT NULL REFERENCES accounts (id),
    transaction_id  UUID,
    action          TEXT NOT NULL,
    comment         TEXT NOT NULL,
    balance_before  NUMERIC(14, 2) NOT NULL,
    balance_after   NUMERIC(14, 2) NOT NULL,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX idx_audit_log_account ON audit_log (account_id, created_at);
`

const migration002Down = `
DROP TABLE IF EXISTS audit_log;
DROP TABLE IF EXISTS ledger_transactions;
`

const migration003Up = `
CREATE TABLE memberships (
    id               UUID PRIMARY KEY,
    account_id       UUID NOT NULL REFERENCES accounts (id),
    group_id         UUID NOT NULL,
    price            NUMERIC(14, 2) NOT NULL DEFAULT 0 CHECK (price >= 0),
    archived         BOOLEAN NOT NULL DEFAULT FALSE,
    archived_at      TIMESTAMPTZ,
    archive_comment  TEXT NOT NULL DEFAULT '',
    cascaded         BOOLEAN NOT NULL DEFAULT FALSE,
    created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX idx_memberships_account ON memberships (account_id) WHERE NOT archived;
CREATE INDEX idx_memberships_active ON memberships (id) WHERE NOT archived;

CREATE TABLE attendance_events (
    id             UUID PRIMARY KEY,
    membership_id  UUID NOT NULL REFERENCES memberships (id),
    event_date     DATE NOT NULL,
    status         TEXT NOT NULL CHECK (status IN ('PRESENT', 'EXCUSED', 'UNEXCUSED', 'HOLIDAY')),
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX idx_attendance_membership_date ON attendance_events (membership_id, event_date);
`

const migration003Down = `
DROP TABLE IF EXISTS attendance_events;
DROP TABLE IF EXISTS memberships;
`

const migration004Up = `
CREATE TABLE archive_records (
    id             UUID PRIMARY KEY,
    student_id     UUID REFERENCES accounts (id),
    lead_id        UUID REFERENCES leads (id),
    reason_code    TEXT NOT NULL,
    reason_text    TEXT NOT NULL DEFAULT '',
    created_by     TEXT NOT NULL DEFAULT '',
    unarchived_at  TIMESTAMPTZ,
    unarchived_by  TEXT NOT NULL DEFAULT '',
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CONSTRAINT archive_subject_xor CHECK (
        (student_id IS NOT NULL AND lead_id IS NULL) OR
        (student_id IS NULL AND lead_id IS NOT NULL)
    )
);

CREATE INDEX idx_archive_records_student ON archive_records (student_id, created_at DESC) WHERE student_id IS NOT NULL;
CREATE INDEX idx_archive_records_lead ON archive_records (lead_id, created_at DESC) WHERE lead_id IS NOT NULL;

CREATE TABLE kpi_rulesets (
    id          UUID PRIMARY KEY,
    name        TEXT NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE kpi_rules (
    id          UUID PRIMARY KEY,
    ruleset_id  UUID NOT NULL REFERENCES kpi_rulesets (id) ON DELETE CASCADE,
    range_from  DOUBLE PRECISION NOT NULL CHECK (range_from >= 0),
    range_to    DOUBLE PRECISION NOT NULL,
    action      TEXT NOT NULL CHECK (action IN ('BONUS', 'FINE')),
    amount      NUMERIC(14, 2) NOT NULL CHECK (amount > 0),
    position    INTEGER NOT NULL DEFAULT 0,
    CHECK (range_to > range_from)
);

CREATE INDEX idx_kpi_rules_ruleset ON kpi_rules (ruleset_id, position);
`

const migration004Down = `
DROP TABLE IF EXISTS kpi_rules;
DROP TABLE IF EXISTS kpi_rulesets;
DROP TABLE IF EXISTS archive_records;
`
