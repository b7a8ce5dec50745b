// Package archive contains the archive record: the audit trail of every
// account or lead archival and its eventual unarchival. A record references
// exactly one origin - a lead or a student account, never both, never neither.
package archive

import (
	"errors"
	"fmt"
	"time"

	"github.com/bilim-hub/bilim-erp-core/internal/domain/shared"
)

// ReasonCode classifies what kind of subject was archived and at what stage.
type ReasonCode string

const (
	ReasonNewStudent    ReasonCode = "NEW_STUDENT"
	ReasonActiveStudent ReasonCode = "ACTIVE_STUDENT"
	ReasonNewLead       ReasonCode = "NEW_LEAD"
	ReasonFirstLesson   ReasonCode = "FIRST_LESSON"
	ReasonStaff         ReasonCode = "STAFF"
)

// IsValid reports whether the reason code is known.
func (c ReasonCode) IsValid() bool {
	switch c {
	case ReasonNewStudent, ReasonActiveStudent, ReasonNewLead, ReasonFirstLesson, ReasonStaff:
		return true
	default:
		return false
	}
}

// ErrAlreadyUnarchived means the record's unarchive metadata is already stamped.
var ErrAlreadyUnarchived = errors.New("archive record is already unarchived")

// Record is created at archival time and mutated exactly once, on unarchival,
// to stamp the unarchive metadata. Records are never deleted.
type Record struct {
	// ID is the record UUID.
	ID string

	// StudentID references the archived student account. Mutually exclusive
	// with LeadID.
	StudentID *string

	// LeadID references the archived lead. Mutually exclusive with StudentID.
	LeadID *string

	// ReasonCode classifies the archival.
	ReasonCode ReasonCode

	// ReasonText is the free-text explanation.
	ReasonText string

	// CreatedBy references the employee who archived. Empty for system
	// archivals (streak sweeps).
	CreatedBy string

	// UnarchivedAt is stamped when the subject is unarchived; nil until then.
	UnarchivedAt *time.Time

	// UnarchivedBy references the employee who unarchived.
	UnarchivedBy string

	// CreatedAt is the archival timestamp.
	CreatedAt time.Time
}

// NewRecordParams holds parameters for creating an archive record.
// Exactly one of StudentID and LeadID must be non-empty.
type NewRecordParams struct {
	ID         string
	StudentID  string
	LeadID     string
	ReasonCode ReasonCode
	ReasonText string
	CreatedBy  string
}

// NewRecord builds a validated archive record. The lead/student exclusive-or
// is enforced here, before any persistence: both set or neither set fails
// with shared.ErrArchiveSubjectExclusivity.
func NewRecord(params NewRecordParams) (*Record, error) {
	if params.ID == "" {
		return nil, errors.New("archive record id is required")
	}

	hasStudent := params.StudentID != ""
	hasLead := params.LeadID != ""
	if hasStudent == hasLead {
		return nil, shared.ErrArchiveSubjectExclusivity
	}

	if !params.ReasonCode.IsValid() {
		return nil, fmt.Errorf("invalid archive reason code %q", params.ReasonCode)
	}

	r := &Record{
		ID:         params.ID,
		ReasonCode: params.ReasonCode,
		ReasonText: params.ReasonText,
		CreatedBy:  params.CreatedBy,
		CreatedAt:  time.Now().UTC(),
	}

	if hasStudent {
		s := params.StudentID
		r.StudentID = &s
	} else {
		l := params.LeadID
		r.LeadID = &l
	}

	return r, nil
}

// SubjectID returns the ID of whichever subject the record references.
func (r *Record) SubjectID() string {
	if r.StudentID != nil {
		return *r.StudentID
	}
	if r.LeadID != nil {
		return *r.LeadID
	}
	return ""
}

// IsUnarchived reports whether the unarchive metadata has been stamped.
func (r *Record) IsUnarchived() bool {
	return r.UnarchivedAt != nil
}

// StampUnarchived records who unarchived the subject and when. A record is
// stamped at most once.
func (r *Record) StampUnarchived(actorID string, at time.Time) error {
	if r.IsUnarchived() {
		return ErrAlreadyUnarchived
	}

	u := at.UTC()
	r.UnarchivedAt = &u
	r.UnarchivedBy = actorID
	return nil
}

// String returns a log-friendly representation.
func (r *Record) String() string {
	subject := "lead"
	if r.StudentID != nil {
		subject = "student"
	}
	return fmt.Sprintf(
		"ArchiveRecord{ID: %s, Subject: %s %s, Reason: %s, Unarchived: %t}",
		r.ID, subject, r.SubjectID(), r.ReasonCode, r.IsUnarchived(),
	)
}
