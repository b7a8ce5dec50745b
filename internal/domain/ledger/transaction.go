// Package ledger contains the monetary core of the ERP: immutable
// transactions, the reason registry that derives their direction, and the
// append-only audit log. Account balances are running sums over this package's
// transactions and are never mutated anywhere else.
package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bilim-hub/bilim-erp-core/internal/domain/account"
)

// Action is the direction a transaction applies to the balance.
type Action string

const (
	// ActionCredit increases the balance.
	ActionCredit Action = "CREDIT"
	// ActionDebit decreases the balance.
	ActionDebit Action = "DEBIT"
)

// IsValid reports whether the action is a known direction.
func (a Action) IsValid() bool {
	return a == ActionCredit || a == ActionDebit
}

// Sign returns +1 for credit and -1 for debit.
func (a Action) Sign() decimal.Decimal {
	if a == ActionDebit {
		return decimal.NewFromInt(-1)
	}
	return decimal.NewFromInt(1)
}

// Reason classifies why a transaction happened. The reason alone determines
// the action; callers never choose the direction directly.
type Reason string

// Student account reasons.
const (
	ReasonCoursePayment Reason = "COURSE_PAYMENT"
	ReasonLessonCharge  Reason = "LESSON_CHARGE"
	ReasonBonus         Reason = "BONUS"
	ReasonFine          Reason = "FINE"
	ReasonRefund        Reason = "REFUND"
)

// Staff account reasons.
const (
	ReasonSalary   Reason = "SALARY"
	ReasonAdvance  Reason = "ADVANCE"
	ReasonKpiBonus Reason = "KPI_BONUS"
	ReasonKpiFine  Reason = "KPI_FINE"
)

// Domain errors.
var (
	// ErrImmutableTransaction is returned by any attempt to edit a persisted
	// transaction. Correcting a mistake means deleting (reversing) it and
	// creating a new one.
	ErrImmutableTransaction = errors.New("transactions cannot be modified after creation")

	// ErrInvalidMagnitude is returned when the raw amount is zero or negative.
	ErrInvalidMagnitude = errors.New("transaction amount must be a positive magnitude")
)

// Transaction is a single immutable monetary movement against an account.
type Transaction struct {
	// ID is the transaction UUID.
	ID string

	// AccountID references the owning account.
	AccountID string

	// AccountKind is the kind of the owning account; it selects the reason
	// vocabulary the transaction was validated against.
	AccountKind account.Kind

	// Reason classifies the movement and derives Action.
	Reason Reason

	// Action is CREDIT or DEBIT, derived from Reason at creation time.
	Action Action

	// Amount is the unsigned magnitude as entered.
	Amount decimal.Decimal

	// EffectiveAmount is the signed amount applied to the balance:
	// +Amount for CREDIT, -Amount for DEBIT.
	EffectiveAmount decimal.Decimal

	// CreatedBy references the employee who issued the transaction.
	// Empty for system-issued transactions (KPI sweeps).
	CreatedBy string

	// Comment is free-text context entered by the creator.
	Comment string

	// CreatedAt is the creation timestamp.
	CreatedAt time.Time
}

// NewTransactionParams holds parameters for building a transaction.
// The action is not a parameter: it is always derived from the reason.
type NewTransactionParams struct {
	ID          string
	AccountID   string
	AccountKind account.Kind
	Reason      Reason
	Action      Action
	Amount      decimal.Decimal
	CreatedBy   string
	Comment     string
}

// NewTransaction builds a validated transaction with the effective amount
// computed from the already-resolved action.
func NewTransaction(params NewTransactionParams) (*Transaction, error) {
	if params.ID == "" {
		return nil, errors.New("transaction id is required")
	}
	if params.AccountID == "" {
		return nil, errors.New("transaction account id is required")
	}
	if !params.AccountKind.IsValid() {
		return nil, account.ErrInvalidKind
	}
	if !params.Action.IsValid() {
		return nil, fmt.Errorf("invalid action %q", params.Action)
	}
	if !params.Amount.IsPositive() {
		return nil, ErrInvalidMagnitude
	}

	return &Transaction{
		ID:              params.ID,
		AccountID:       params.AccountID,
		AccountKind:     params.AccountKind,
		Reason:          params.Reason,
		Action:          params.Action,
		Amount:          params.Amount,
		EffectiveAmount: params.Amount.Mul(params.Action.Sign()),
		CreatedBy:       params.CreatedBy,
		Comment:         params.Comment,
		CreatedAt:       time.Now().UTC(),
	}, nil
}

// String returns a log-friendly representation.
func (t *Transaction) String() string {
	return fmt.Sprintf(
		"Transaction{ID: %s, Account: %s, Reason: %s, Effective: %s}",
		t.ID, t.AccountID, t.Reason, t.EffectiveAmount.String(),
	)
}
