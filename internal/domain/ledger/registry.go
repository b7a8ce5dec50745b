package ledger

import (
	"github.com/bilim-hub/bilim-erp-core/internal/domain/account"
	"github.com/bilim-hub/bilim-erp-core/internal/domain/shared"
)

// ReasonRegistry is a closed mapping from transaction reason to action, kept
// per account kind. There is no default action: a reason missing from the
// table is a hard validation failure, not a no-op.
type ReasonRegistry struct {
	tables map[account.Kind]map[Reason]Action
}

// NewReasonRegistry builds an empty registry.
func NewReasonRegistry() *ReasonRegistry {
	return &ReasonRegistry{
		tables: make(map[account.Kind]map[Reason]Action),
	}
}

// Register binds a reason to an action for the given account kind.
// Later registrations overwrite earlier ones; the registry is meant to be
// fully populated at startup and read-only afterwards.
func (r *ReasonRegistry) Register(kind account.Kind, reason Reason, action Action) *ReasonRegistry {
	table, ok := r.tables[kind]
	if !ok {
		table = make(map[Reason]Action)
		r.tables[kind] = table
	}
	table[reason] = action
	return r
}

// Resolve returns the action for the reason under the given account kind.
// Returns shared.ErrUnknownReason when the reason is not registered.
func (r *ReasonRegistry) Resolve(kind account.Kind, reason Reason) (Action, error) {
	table, ok := r.tables[kind]
	if !ok {
		return "", shared.ErrUnknownReason
	}

	action, ok := table[reason]
	if !ok {
		return "", shared.ErrUnknownReason
	}

	return action, nil
}

// Known reports whether the reason resolves under the given account kind.
func (r *ReasonRegistry) Known(kind account.Kind, reason Reason) bool {
	_, err := r.Resolve(kind, reason)
	return err == nil
}

// Reasons returns the registered reasons for the given account kind.
func (r *ReasonRegistry) Reasons(kind account.Kind) []Reason {
	table := r.tables[kind]
	reasons := make([]Reason, 0, len(table))
	for reason := range table {
		reasons = append(reasons, reason)
	}
	return reasons
}

// DefaultRegistry returns the registry used in production: the student and
// staff reason vocabularies of the learning center.
func DefaultRegistry() *ReasonRegistry {
	return NewReasonRegistry().
		// Student accounts
		Register(account.KindStudent, ReasonCoursePayment, ActionCredit).
		Register(account.KindStudent, ReasonRefund, ActionDebit).
		Register(account.KindStudent, ReasonLessonCharge, ActionDebit).
		Register(account.KindStudent, ReasonBonus, ActionCredit).
		Register(account.KindStudent, ReasonFine, ActionDebit).
		Register(account.KindStudent, ReasonKpiBonus, ActionCredit).
		Register(account.KindStudent, ReasonKpiFine, ActionDebit).
		// Staff accounts
		Register(account.KindStaff, ReasonSalary, ActionCredit).
		Register(account.KindStaff, ReasonAdvance, ActionDebit).
		Register(account.KindStaff, ReasonBonus, ActionCredit).
		Register(account.KindStaff, ReasonFine, ActionDebit).
		Register(account.KindStaff, ReasonKpiBonus, ActionCredit).
		Register(account.KindStaff, ReasonKpiFine, ActionDebit)
}
