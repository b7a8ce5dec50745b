package kpi

import (
	"context"
)

// Repository defines read access to configured rulesets.
type Repository interface {
	// GetRuleset returns a ruleset by ID with its rules in configured order.
	GetRuleset(ctx context.Context, id string) (*Ruleset, error)
}
