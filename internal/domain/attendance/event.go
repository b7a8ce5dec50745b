// Package attendance contains the per-day attendance event model and the pure
// streak computation over it. A streak is the count of consecutive unexcused
// absences since the last event that breaks it.
package attendance

import (
	"errors"
	"time"
)

// Status is the per-day attendance outcome for a membership.
type Status string

const (
	// StatusPresent means the student came. Breaks the streak.
	StatusPresent Status = "PRESENT"
	// StatusExcused is an excused absence. Neutral: neither counts nor breaks.
	StatusExcused Status = "EXCUSED"
	// StatusUnexcused is an unexcused absence. Accumulates the streak.
	StatusUnexcused Status = "UNEXCUSED"
	// StatusHoliday marks a non-working day. Neutral, like EXCUSED.
	StatusHoliday Status = "HOLIDAY"
)

// IsValid reports whether the status is known.
func (s Status) IsValid() bool {
	switch s {
	case StatusPresent, StatusExcused, StatusUnexcused, StatusHoliday:
		return true
	default:
		return false
	}
}

// Breaks reports whether the status resets the streak baseline.
func (s Status) Breaks() bool {
	return s == StatusPresent
}

// Counts reports whether the status accumulates the streak.
func (s Status) Counts() bool {
	return s == StatusUnexcused
}

// Event is a single attendance record for a membership on a given day.
type Event struct {
	// ID is the event UUID.
	ID string

	// MembershipID references the (account, group) membership.
	MembershipID string

	// Date is the lesson day, stored date-only in UTC.
	Date time.Time

	// Status is the attendance outcome.
	Status Status

	// CreatedAt is the record timestamp.
	CreatedAt time.Time
}

// NewEvent builds a validated attendance event. The date is truncated to the
// day: two events on the same calendar day compare equal by date.
func NewEvent(id, membershipID string, date time.Time, status Status) (*Event, error) {
	if id == "" || membershipID == "" {
		return nil, errors.New("event id and membership id are required")
	}
	if !status.IsValid() {
		return nil, errors.New("invalid attendance status")
	}

	y, m, d := date.UTC().Date()
	return &Event{
		ID:           id,
		MembershipID: membershipID,
		Date:         time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
		Status:       status,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// CurrentStreak computes the unexcused-absence streak over the membership's
// events: the number of UNEXCUSED events dated strictly after the most recent
// breaking event. With no breaking event on record the baseline is the epoch,
// so every UNEXCUSED event counts. EXCUSED and HOLIDAY are neutral on both
// sides: they neither extend nor reset the streak. Order of the input slice
// does not matter.
func CurrentStreak(events []*Event) int {
	var lastBreak time.Time // zero value: epoch baseline

	for _, e := range events {
		if e.Status.Breaks() && e.Date.After(lastBreak) {
			lastBreak = e.Date
		}
	}

	streak := 0
	for _, e := range events {
		if e.Status.Counts() && e.Date.After(lastBreak) {
			streak++
		}
	}

	return streak
}
