// Package shared contains common domain types, errors and events that are used
// across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrInvalidEntity = errors.New("invalid entity")

	// Validation errors
	ErrValidation    = errors.New("validation error")
	ErrInvalidID     = errors.New("invalid ID")
	ErrInvalidInput  = errors.New("invalid input")
	ErrEmptyValue    = errors.New("value cannot be empty")
	ErrNegativeValue = errors.New("value cannot be negative")

	// State errors
	ErrInvalidState    = errors.New("invalid state")
	ErrStateTransition = errors.New("invalid state transition")

	// Invariant errors
	ErrInvariantViolation = errors.New("invariant violation")

	// Concurrency errors
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "ledger", "archive", "account"
	Op      string // Operation that failed, e.g., "CreateTransaction"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Ledger errors
var (
	ErrUnknownReason = NewDomainError("ledger", "Resolve", ErrValidation, "transaction reason is not registered")
	ErrInvalidAmount = NewDomainError("ledger", "Validate", ErrNegativeValue, "amount must be a positive magnitude")

	ErrTransactionNotFound = NewDomainError("ledger", "Find", ErrNotFound, "transaction not found")
	ErrAccountNotFound     = NewDomainError("ledger", "FindAccount", ErrNotFound, "account not found")

	// ErrConcurrentBalanceConflict means the account-row lock could not be
	// acquired cleanly; the single operation is safe to retry.
	ErrConcurrentBalanceConflict = NewDomainError("ledger", "UpdateBalance", ErrConcurrentModification, "concurrent balance update conflict")
)

// Lifecycle errors
var (
	ErrAlreadyArchived = NewDomainError("lifecycle", "Archive", ErrInvalidState, "entity is already archived")
	ErrNotArchived     = NewDomainError("lifecycle", "Unarchive", ErrInvalidState, "entity is not archived")

	ErrArchiveRecordNotFound = NewDomainError("lifecycle", "FindRecord", ErrNotFound, "archive record not found")

	// ErrArchiveSubjectExclusivity enforces the lead/student exclusive-or:
	// an archive record references exactly one origin, never both, never neither.
	ErrArchiveSubjectExclusivity = NewDomainError("archive", "Validate", ErrInvariantViolation, "archive record must reference exactly one of lead or student")
)

// Membership errors
var (
	ErrMembershipNotFound = NewDomainError("group", "Find", ErrNotFound, "membership not found")
)

// KPI errors
var (
	ErrNoMatchingRule = NewDomainError("kpi", "Match", ErrNotFound, "no rule range contains the metric")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue)
}

// IsInvariantViolation checks if the error is a domain invariant violation.
func IsInvariantViolation(err error) bool {
	return errors.Is(err, ErrInvariantViolation)
}

// IsRetryable checks if the single operation can be retried as-is.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}
