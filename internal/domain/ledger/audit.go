package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bilim-hub/bilim-erp-core/internal/domain/account"
)

// AuditAction is what the audit entry records.
type AuditAction string

const (
	// AuditTransactionCreated is written exactly once per transaction creation.
	AuditTransactionCreated AuditAction = "TRANSACTION_CREATED"
	// AuditTransactionDeleted is written exactly once per transaction deletion.
	AuditTransactionDeleted AuditAction = "TRANSACTION_DELETED"
)

// AuditLogEntry is an append-only record of a balance mutation. Entries are
// written in the same storage transaction as the mutation they describe, so
// their order is always consistent with the balance history. They are never
// updated or deleted.
type AuditLogEntry struct {
	// ID is the entry UUID.
	ID string

	// SubjectKind is the kind of the account the entry is about.
	SubjectKind account.Kind

	// AccountID references the subject account.
	AccountID string

	// TransactionID references the originating transaction. Nil on deletion
	// entries: the transaction row itself is gone by then.
	TransactionID *string

	// Action is the audited operation.
	Action AuditAction

	// Comment is the narrative: who did what, with before/after balances.
	Comment string

	// BalanceBefore is the account balance before the mutation.
	BalanceBefore decimal.Decimal

	// BalanceAfter is the account balance after the mutation.
	BalanceAfter decimal.Decimal

	// CreatedAt is the entry timestamp.
	CreatedAt time.Time
}

// NewCreationAuditEntry builds the audit entry for a transaction creation.
func NewCreationAuditEntry(id string, tx *Transaction, before, after decimal.Decimal) *AuditLogEntry {
	txID := tx.ID
	return &AuditLogEntry{
		ID:            id,
		SubjectKind:   tx.AccountKind,
		AccountID:     tx.AccountID,
		TransactionID: &txID,
		Action:        AuditTransactionCreated,
		Comment: fmt.Sprintf(
			"Transaction %s created for account %s. %s Start: %s, Change: %s, Final: %s.",
			tx.ID, tx.AccountID, creatorNote(tx.CreatedBy),
			before.String(), signedChange(tx.EffectiveAmount), after.String(),
		),
		BalanceBefore: before,
		BalanceAfter:  after,
		CreatedAt:     time.Now().UTC(),
	}
}

// NewDeletionAuditEntry builds the audit entry for a transaction deletion.
// The transaction reference is deliberately nil: the row is removed in the
// same storage transaction that writes this entry.
func NewDeletionAuditEntry(id string, tx *Transaction, before, after decimal.Decimal) *AuditLogEntry {
	return &AuditLogEntry{
		ID:            id,
		SubjectKind:   tx.AccountKind,
		AccountID:     tx.AccountID,
		TransactionID: nil,
		Action:        AuditTransactionDeleted,
		Comment: fmt.Sprintf(
			"Transaction %s deleted for account %s. %s Start: %s, Change: %s, Final: %s.",
			tx.ID, tx.AccountID, creatorNote(tx.CreatedBy),
			before.String(), signedChange(tx.EffectiveAmount.Neg()), after.String(),
		),
		BalanceBefore: before,
		BalanceAfter:  after,
		CreatedAt:     time.Now().UTC(),
	}
}

func creatorNote(createdBy string) string {
	if createdBy == "" {
		return "By system,"
	}
	return fmt.Sprintf("By %s,", createdBy)
}

func signedChange(d decimal.Decimal) string {
	if d.IsNegative() {
		return d.String()
	}
	return "+" + d.String()
}
