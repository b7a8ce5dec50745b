package archive

import (
	"context"
)

// Repository defines persistence for archive records.
type Repository interface {
	// Create persists a new record. Implementations repeat the lead/student
	// exclusive-or as a storage-level constraint.
	Create(ctx context.Context, r *Record) error

	// GetByID returns a record by ID.
	// Returns shared.ErrArchiveRecordNotFound if missing.
	GetByID(ctx context.Context, id string) (*Record, error)

	// Update persists the unarchive stamp. The only mutation a record sees.
	Update(ctx context.Context, r *Record) error

	// GetLatestByStudent returns the most recent record for a student
	// account, or shared.ErrArchiveRecordNotFound.
	GetLatestByStudent(ctx context.Context, studentID string) (*Record, error)

	// GetLatestByLead returns the most recent record for a lead, or
	// shared.ErrArchiveRecordNotFound.
	GetLatestByLead(ctx context.Context, leadID string) (*Record, error)
}
