package postgres

import (
	"context"
	"fmt"

	"github.com/bilim-hub/bilim-erp-core/internal/domain/attendance"
	"github.com/bilim-hub/bilim-erp-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ATTENDANCE REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// AttendanceRepository implements attendance.Repository for PostgreSQL.
type AttendanceRepository struct {
	conn *Connection
}

// NewAttendanceRepository creates a new AttendanceRepository.
func NewAttendanceRepository(conn *Connection) *AttendanceRepository {
	return &AttendanceRepository{conn: conn}
}

// Create appends an attendance event.
func (r *AttendanceRepository) Create(ctx context.Context, e *attendance.Event) error {
	query := `
		INSERT INTO attendance_events (id, membership_id, event_date, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.conn.Exec(ctx, query, e.ID, e.MembershipID, e.Date, string(e.Status), e.CreatedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrAlreadyExists
		}
		if IsForeignKeyViolation(err) {
			return shared.ErrMembershipNotFound
		}
		return fmt.Errorf("failed to create attendance event: %w", err)
	}

	return nil
}

// GetByMembership returns all events of a membership, oldest first.
func (r *AttendanceRepository) GetByMembership(ctx context.Context, membershipID string) ([]*attendance.Event, error) {
	query := `
		SELECT id, membership_id, event_date, status, created_at
		FROM attendance_events
		WHERE membership_id = $1
		ORDER BY event_date
	`

	rows, err := r.conn.Query(ctx, query, membershipID)
	if err != nil {
		return nil, fmt.Errorf("failed to query attendance events: %w", err)
	}
	defer rows.Close()

	var events []*attendance.Event
	for rows.Next() {
		var e attendance.Event
		var status string

		if err := rows.Scan(&e.ID, &e.MembershipID, &e.Date, &status, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan attendance event: %w", err)
		}
		e.Status = attendance.Status(status)
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate attendance events: %w", err)
	}

	return events, nil
}

// CurrentStreak computes the unexcused streak storage-side: the count of
// UNEXCUSED events dated strictly after the latest PRESENT event. With no
// PRESENT events the baseline is the epoch, so every unexcused absence
// counts. EXCUSED and HOLIDAY rows affect neither side.
func (r *AttendanceRepository) CurrentStreak(ctx context.Context, membershipID string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM attendance_events
		WHERE membership_id = $1
		  AND status = 'UNEXCUSED'
		  AND event_date > COALESCE(
			(SELECT MAX(event_date)
			 FROM attendance_events
			 WHERE membership_id = $1 AND status = 'PRESENT'),
			'epoch'::date
		  )
	`

	var streak int
	if err := r.conn.QueryRow(ctx, query, membershipID).Scan(&streak); err != nil {
		return 0, fmt.Errorf("failed to compute streak: %w", err)
	}

	return streak, nil
}
