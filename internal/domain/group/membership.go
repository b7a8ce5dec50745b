// Package group contains the enrollment model: a membership links an account
// to a study group. Memberships are the unit the streak monitor archives when
// unexcused absences pile up.
package group

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Domain errors.
var (
	// ErrMembershipArchived means the membership is already archived.
	ErrMembershipArchived = errors.New("membership is already archived")

	// ErrMembershipNotArchived means the membership is not archived.
	ErrMembershipNotArchived = errors.New("membership is not archived")
)

// Membership links an account to a group.
type Membership struct {
	// ID is the membership UUID.
	ID string

	// AccountID references the enrolled account.
	AccountID string

	// GroupID references the group.
	GroupID string

	// Price is the monthly price for this membership, synced from the group
	// price at enrollment and on demand.
	Price decimal.Decimal

	// Archived marks the membership as no longer active.
	Archived bool

	// ArchivedAt is the archival timestamp (zero while active).
	ArchivedAt time.Time

	// ArchiveComment explains why the membership was archived.
	ArchiveComment string

	// Cascaded is true when the membership was archived as a consequence of
	// its account being archived. Cascaded archivals are reversed by a
	// cascaded unarchival; direct ones are not.
	Cascaded bool

	// CreatedAt is the enrollment timestamp.
	CreatedAt time.Time

	// UpdatedAt is the last modification timestamp.
	UpdatedAt time.Time
}

// NewMembership enrolls an account into a group at the given price.
func NewMembership(id, accountID, groupID string, price decimal.Decimal) (*Membership, error) {
	if id == "" || accountID == "" || groupID == "" {
		return nil, errors.New("membership id, account id and group id are required")
	}
	if price.IsNegative() {
		return nil, errors.New("membership price cannot be negative")
	}

	now := time.Now().UTC()
	return &Membership{
		ID:        id,
		AccountID: accountID,
		GroupID:   groupID,
		Price:     price,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Archive marks the membership archived with the given comment.
func (m *Membership) Archive(comment string, cascaded bool, at time.Time) error {
	if m.Archived {
		return ErrMembershipArchived
	}

	m.Archived = true
	m.ArchivedAt = at.UTC()
	m.ArchiveComment = comment
	m.Cascaded = cascaded
	m.UpdatedAt = time.Now().UTC()
	return nil
}

// Unarchive returns the membership to the active state.
func (m *Membership) Unarchive() error {
	if !m.Archived {
		return ErrMembershipNotArchived
	}

	m.Archived = false
	m.ArchivedAt = time.Time{}
	m.ArchiveComment = ""
	m.Cascaded = false
	m.UpdatedAt = time.Now().UTC()
	return nil
}

// SyncPrice updates the membership price from the group price.
func (m *Membership) SyncPrice(groupPrice decimal.Decimal) {
	m.Price = groupPrice
	m.UpdatedAt = time.Now().UTC()
}

// String returns a log-friendly representation.
func (m *Membership) String() string {
	return fmt.Sprintf(
		"Membership{ID: %s, Account: %s, Group: %s, Archived: %t}",
		m.ID, m.AccountID, m.GroupID, m.Archived,
	)
}
