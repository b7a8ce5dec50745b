package group

import (
	"context"
)

// Repository defines persistence for memberships.
type Repository interface {
	// Create persists a new membership.
	Create(ctx context.Context, m *Membership) error

	// GetByID returns a membership by ID.
	// Returns shared.ErrMembershipNotFound if missing.
	GetByID(ctx context.Context, id string) (*Membership, error)

	// Update persists membership changes.
	Update(ctx context.Context, m *Membership) error

	// GetAllActive returns every non-archived membership. This is the
	// population the streak sweep walks.
	GetAllActive(ctx context.Context) ([]*Membership, error)

	// GetActiveByAccount returns the non-archived memberships of an account.
	GetActiveByAccount(ctx context.Context, accountID string) ([]*Membership, error)

	// CountActiveByAccount returns how many non-archived memberships the
	// account still has. Zero means account archival may cascade.
	CountActiveByAccount(ctx context.Context, accountID string) (int, error)

	// GetCascadedByAccount returns memberships archived as a consequence of
	// the account's archival. Used by cascaded unarchival.
	GetCascadedByAccount(ctx context.Context, accountID string) ([]*Membership, error)
}
