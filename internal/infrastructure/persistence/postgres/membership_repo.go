package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bilim-hub/bilim-erp-core/internal/domain/group"
	"github.com/bilim-hub/bilim-erp-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// MEMBERSHIP REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// MembershipRepository implements group.Repository for PostgreSQL.
type MembershipRepository struct {
	conn *Connection
}

// NewMembershipRepository creates a new MembershipRepository.
func NewMembershipRepository(conn *Connection) *MembershipRepository {
	return &MembershipRepository{conn: conn}
}

const membershipColumns = `id, account_id, group_id, price, archived, archived_at,
	   archive_comment, cascaded, created_at, updated_at`

// Create persists a new membership.
func (r *MembershipRepository) Create(ctx context.Context, m *group.Membership) error {
	query := fmt.Sprintf(`
		INSERT INTO memberships (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, membershipColumns)

	_, err := r.conn.Exec(ctx, query,
		m.ID,
		m.AccountID,
		m.GroupID,
		m.Price,
		m.Archived,
		nullableTime(m.ArchivedAt),
		m.ArchiveComment,
		m.Cascaded,
		m.CreatedAt,
		m.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrAlreadyExists
		}
		if IsForeignKeyViolation(err) {
			return shared.ErrAccountNotFound
		}
		return fmt.Errorf("failed to create membership: %w", err)
	}

	return nil
}

// GetByID returns a membership by ID.
func (r *MembershipRepository) GetByID(ctx context.Context, id string) (*group.Membership, error) {
	query := fmt.Sprintf(`SELECT %s FROM memberships WHERE id = $1`, membershipColumns)

	return scanMembership(r.conn.QueryRow(ctx, query, id))
}

// Update persists membership changes.
func (r *MembershipRepository) Update(ctx context.Context, m *group.Membership) error {
	return updateMembership(ctx, r.conn, m)
}

// GetAllActive returns every non-archived membership, oldest first. This is
// the population the streak sweep walks.
func (r *MembershipRepository) GetAllActive(ctx context.Context) ([]*group.Membership, error) {
	query := fmt.Sprintf(`SELECT %s FROM memberships WHERE NOT archived ORDER BY created_at`, membershipColumns)

	rows, err := r.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query active memberships: %w", err)
	}
	defer rows.Close()

	return scanMemberships(rows)
}

// GetActiveByAccount returns the non-archived memberships of an account.
func (r *MembershipRepository) GetActiveByAccount(ctx context.Context, accountID string) ([]*group.Membership, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM memberships WHERE account_id = $1 AND NOT archived ORDER BY created_at`,
		membershipColumns,
	)

	rows, err := r.conn.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query active memberships: %w", err)
	}
	defer rows.Close()

	return scanMemberships(rows)
}

// CountActiveByAccount returns how many non-archived memberships remain.
func (r *MembershipRepository) CountActiveByAccount(ctx context.Context, accountID string) (int, error) {
	var count int
	err := r.conn.QueryRow(ctx,
		`SELECT COUNT(*) FROM memberships WHERE account_id = $1 AND NOT archived`,
		accountID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active memberships: %w", err)
	}
	return count, nil
}

// GetCascadedByAccount returns memberships archived by the account cascade.
func (r *MembershipRepository) GetCascadedByAccount(ctx context.Context, accountID string) ([]*group.Membership, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM memberships WHERE account_id = $1 AND archived AND cascaded ORDER BY created_at`,
		membershipColumns,
	)

	rows, err := r.conn.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cascaded memberships: %w", err)
	}
	defer rows.Close()

	return scanMemberships(rows)
}

// ─────────────────────────────────────────────────────────────────────────────
// Shared helpers: the lifecycle store runs the same statements inside its
// transactions, so they accept any Querier.
// ─────────────────────────────────────────────────────────────────────────────

func updateMembership(ctx context.Context, q Querier, m *group.Membership) error {
	query := `
		UPDATE memberships
		SET price = $2, archived = $3, archived_at = $4, archive_comment = $5,
		    cascaded = $6, updated_at = $7
		WHERE id = $1
	`

	tag, err := q.Exec(ctx, query,
		m.ID,
		m.Price,
		m.Archived,
		nullableTime(m.ArchivedAt),
		m.ArchiveComment,
		m.Cascaded,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to update membership: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrMembershipNotFound
	}

	return nil
}

func scanMembership(row pgx.Row) (*group.Membership, error) {
	var m group.Membership
	var archivedAt *time.Time

	err := row.Scan(
		&m.ID,
		&m.AccountID,
		&m.GroupID,
		&m.Price,
		&m.Archived,
		&archivedAt,
		&m.ArchiveComment,
		&m.Cascaded,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrMembershipNotFound
		}
		return nil, fmt.Errorf("failed to scan membership: %w", err)
	}

	if archivedAt != nil {
		m.ArchivedAt = *archivedAt
	}

	return &m, nil
}

func scanMemberships(rows pgx.Rows) ([]*group.Membership, error) {
	var memberships []*group.Membership

	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		memberships = append(memberships, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate memberships: %w", err)
	}

	return memberships, nil
}
