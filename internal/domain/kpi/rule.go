// Package kpi contains percentage-banded bonus/fine rules. Rules are admin
// data: configured out-of-band, read-only to the engine that applies them.
package kpi

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/bilim-hub/bilim-erp-core/internal/domain/shared"
)

// RuleAction is the kind of transaction a matched rule issues.
type RuleAction string

const (
	// ActionBonus credits every population member with the rule amount.
	ActionBonus RuleAction = "BONUS"
	// ActionFine debits every population member with the rule amount.
	ActionFine RuleAction = "FINE"
)

// IsValid reports whether the action is known.
func (a RuleAction) IsValid() bool {
	return a == ActionBonus || a == ActionFine
}

// Rule is a single percentage band: when the metric falls inside [From, To)
// the rule's amount is issued to every member of the population.
type Rule struct {
	// ID is the rule UUID.
	ID string

	// From is the inclusive lower bound of the percentage band.
	From float64

	// To is the exclusive upper bound of the percentage band. A band that
	// should include 100 uses To > 100.
	To float64

	// Action decides bonus or fine.
	Action RuleAction

	// Amount is the per-member magnitude.
	Amount decimal.Decimal

	// Position is the configured order. Bands are assumed non-overlapping;
	// when they do overlap, the lowest position wins. That tie-break is a
	// configuration contract, not engine logic.
	Position int
}

// Contains reports whether the metric falls inside the band.
func (r *Rule) Contains(metric float64) bool {
	return metric >= r.From && metric < r.To
}

// Validate checks the rule's internal consistency.
func (r *Rule) Validate() error {
	if r.ID == "" {
		return errors.New("rule id is required")
	}
	if r.From < 0 || r.To <= r.From {
		return fmt.Errorf("invalid rule range [%v, %v)", r.From, r.To)
	}
	if !r.Action.IsValid() {
		return fmt.Errorf("invalid rule action %q", r.Action)
	}
	if !r.Amount.IsPositive() {
		return errors.New("rule amount must be positive")
	}
	return nil
}

// Ruleset is an ordered collection of rules applied to one population.
type Ruleset struct {
	// ID identifies the ruleset.
	ID string

	// Rules are the bands, in configured order.
	Rules []*Rule
}

// NewRuleset builds a ruleset, validating and ordering the rules by position.
func NewRuleset(id string, rules []*Rule) (*Ruleset, error) {
	if id == "" {
		return nil, errors.New("ruleset id is required")
	}

	for _, r := range rules {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("rule %s: %w", r.ID, err)
		}
	}

	ordered := make([]*Rule, len(rules))
	copy(ordered, rules)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Position < ordered[j].Position
	})

	return &Ruleset{ID: id, Rules: ordered}, nil
}

// Match returns the first rule (by configured order) whose band contains the
// metric. Returns shared.ErrNoMatchingRule when no band contains it.
func (rs *Ruleset) Match(metric float64) (*Rule, error) {
	for _, r := range rs.Rules {
		if r.Contains(metric) {
			return r, nil
		}
	}
	return nil, shared.ErrNoMatchingRule
}
