package postgres

import (
	"context"
	"fmt"

	"github.com/bilim-hub/bilim-erp-core/internal/domain/archive"
	"github.com/bilim-hub/bilim-erp-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ARCHIVE REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// ArchiveRepository implements archive.Repository for PostgreSQL. It is the
// read side of archive records; mutations during archival run through the
// lifecycle store transaction.
type ArchiveRepository struct {
	conn *Connection
}

// NewArchiveRepository creates a new ArchiveRepository.
func NewArchiveRepository(conn *Connection) *ArchiveRepository {
	return &ArchiveRepository{conn: conn}
}

const archiveRecordColumns = `id, student_id, lead_id, reason_code, reason_text, created_by,
	   unarchived_at, unarchived_by, created_at`

// Create persists a new archive record.
func (r *ArchiveRepository) Create(ctx context.Context, rec *archive.Record) error {
	query := fmt.Sprintf(`
		INSERT INTO archive_records (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, archiveRecordColumns)

	_, err := r.conn.Exec(ctx, query,
		rec.ID,
		rec.StudentID,
		rec.LeadID,
		string(rec.ReasonCode),
		rec.ReasonText,
		rec.CreatedBy,
		rec.UnarchivedAt,
		rec.UnarchivedBy,
		rec.CreatedAt,
	)
	if err != nil {
		if IsCheckViolation(err) {
			return shared.ErrArchiveSubjectExclusivity
		}
		return fmt.Errorf("failed to create archive record: %w", err)
	}

	return nil
}

// GetByID returns a record by ID.
func (r *ArchiveRepository) GetByID(ctx context.Context, id string) (*archive.Record, error) {
	query := fmt.Sprintf(`SELECT %s FROM archive_records WHERE id = $1`, archiveRecordColumns)

	return scanArchiveRecord(r.conn.QueryRow(ctx, query, id))
}

// Update persists the unarchive stamp.
func (r *ArchiveRepository) Update(ctx context.Context, rec *archive.Record) error {
	query := `UPDATE archive_records SET unarchived_at = $2, unarchived_by = $3 WHERE id = $1`

	tag, err := r.conn.Exec(ctx, query, rec.ID, rec.UnarchivedAt, rec.UnarchivedBy)
	if err != nil {
		return fmt.Errorf("failed to update archive record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrArchiveRecordNotFound
	}

	return nil
}

// GetLatestByStudent returns the most recent record for a student account.
func (r *ArchiveRepository) GetLatestByStudent(ctx context.Context, studentID string) (*archive.Record, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM archive_records
		WHERE student_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, archiveRecordColumns)

	return scanArchiveRecord(r.conn.QueryRow(ctx, query, studentID))
}

// GetLatestByLead returns the most recent record for a lead.
func (r *ArchiveRepository) GetLatestByLead(ctx context.Context, leadID string) (*archive.Record, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM archive_records
		WHERE lead_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, archiveRecordColumns)

	return scanArchiveRecord(r.conn.QueryRow(ctx, query, leadID))
}
