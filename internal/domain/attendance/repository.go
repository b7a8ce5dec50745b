package attendance

import (
	"context"
)

// Repository defines persistence for attendance events.
type Repository interface {
	// Create appends an attendance event.
	Create(ctx context.Context, e *Event) error

	// GetByMembership returns all events of a membership.
	GetByMembership(ctx context.Context, membershipID string) ([]*Event, error)

	// CurrentStreak returns the unexcused streak for a membership, computed
	// storage-side: count of UNEXCUSED events dated after the latest PRESENT
	// event (epoch baseline when none exists).
	CurrentStreak(ctx context.Context, membershipID string) (int, error)
}
