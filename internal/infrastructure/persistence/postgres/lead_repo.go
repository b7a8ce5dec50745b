package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/bilim-hub/bilim-erp-core/internal/domain/lead"
	"github.com/bilim-hub/bilim-erp-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEAD REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// LeadRepository implements lead.Repository for PostgreSQL.
type LeadRepository struct {
	conn *Connection
}

// NewLeadRepository creates a new LeadRepository.
func NewLeadRepository(conn *Connection) *LeadRepository {
	return &LeadRepository{conn: conn}
}

// Create persists a new lead.
func (r *LeadRepository) Create(ctx context.Context, l *lead.Lead) error {
	query := `
		INSERT INTO leads (id, full_name, phone, source, archived, archived_at,
		                   converted_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.conn.Exec(ctx, query,
		l.ID,
		l.FullName,
		l.Phone,
		l.Source,
		l.Archived,
		l.ArchivedAt,
		l.ConvertedAt,
		l.CreatedAt,
		l.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create lead: %w", err)
	}

	return nil
}

// GetByID returns a lead by ID.
func (r *LeadRepository) GetByID(ctx context.Context, id string) (*lead.Lead, error) {
	query := `
		SELECT id, full_name, phone, source, archived, archived_at,
		       converted_at, created_at, updated_at
		FROM leads
		WHERE id = $1
	`

	return scanLead(r.conn.QueryRow(ctx, query, id))
}

// Update persists lead changes.
func (r *LeadRepository) Update(ctx context.Context, l *lead.Lead) error {
	query := `
		UPDATE leads
		SET full_name = $2, phone = $3, source = $4, archived = $5,
		    archived_at = $6, converted_at = $7, updated_at = $8
		WHERE id = $1
	`

	tag, err := r.conn.Exec(ctx, query,
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
