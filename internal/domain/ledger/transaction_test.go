package ledger

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bilim-hub/bilim-erp-core/internal/domain/account"
)

func newTx(t *testing.T, action Action, amount int64) *Transaction {
	t.Helper()
	tx, err := NewTransaction(NewTransactionParams{
		ID:          uuid.NewString(),
		AccountID:   "acc-1",
		AccountKind: account.KindStudent,
		Reason:      ReasonBonus,
		Action:      action,
		Amount:      decimal.NewFromInt(amount),
		CreatedBy:   "emp-1",
	})
	require.NoError(t, err)
	return tx
}

func TestNewTransaction_EffectiveAmount(t *testing.T) {
	credit := newTx(t, ActionCredit, 150000)
	assert.True(t, credit.EffectiveAmount.Equal(decimal.NewFromInt(150000)))

	debit := newTx(t, ActionDebit, 150000)
	assert.True(t, debit.EffectiveAmount.Equal(decimal.NewFromInt(-150000)))

	// The stored magnitude stays unsigned either way.
	assert.True(t, credit.Amount.Equal(debit.Amount))
}

func TestNewTransaction_RejectsNonPositiveMagnitude(t *testing.T) {
	for _, amount := range []decimal.Decimal{decimal.Zero, decimal.NewFromInt(-10)} {
		_, err := NewTransaction(NewTransactionParams{
			ID:          uuid.NewString(),
			AccountID:   "acc-1",
			AccountKind: account.KindStudent,
			Reason:      ReasonBonus,
			Action:      ActionCredit,
			Amount:      amount,
		})
		assert.ErrorIs(t, err, ErrInvalidMagnitude)
	}
}

func TestNewTransaction_RejectsInvalidAction(t *testing.T) {
	_, err := NewTransaction(NewTransactionParams{
		ID:          uuid.NewString(),
		AccountID:   "acc-1",
		AccountKind: account.KindStudent,
		Reason:      ReasonBonus,
		Action:      Action("TRANSFER"),
		Amount:      decimal.NewFromInt(100),
	})
	assert.Error(t, err)
}

func TestAction_Sign(t *testing.T) {
	assert.True(t, ActionCredit.Sign().Equal(decimal.NewFromInt(1)))
	assert.True(t, ActionDebit.Sign().Equal(decimal.NewFromInt(-1)))
}

func TestAuditEntries_Narrative(t *testing.T) {
	tx := newTx(t, ActionCredit, 500000)
	before := decimal.NewFromInt(100000)
	after := decimal.NewFromInt(600000)

	created := NewCreationAuditEntry(uuid.NewString(), tx, before, after)
	require.NotNil(t, created.TransactionID)
	assert.Equal(t, tx.ID, *created.TransactionID)
	assert.Equal(t, AuditTransactionCreated, created.Action)
	assert.True(t, strings.Contains(created.Comment, "Start: 100000"))
	assert.True(t, strings.Contains(created.Comment, "Change: +500000"))
	assert.True(t, strings.Contains(created.Comment, "Final: 600000"))
	assert.True(t, strings.Contains(created.Comment, "By emp-1"))

	deleted := NewDeletionAuditEntry(uuid.NewString(), tx, after, before)
	assert.Nil(t, deleted.TransactionID)
	assert.Equal(t, AuditTransactionDeleted, deleted.Action)
	assert.True(t, strings.Contains(deleted.Comment, "Change: -500000"))
}

func TestAuditEntries_SystemCreator(t *testing.T) {
	tx, err := NewTransaction(NewTransactionParams{
		ID:          uuid.NewString(),
		AccountID:   "acc-1",
		AccountKind: account.KindStaff,
		Reason:      ReasonKpiBonus,
		Action:      ActionCredit,
		Amount:      decimal.NewFromInt(200000),
	})
	require.NoError(t, err)

	entry := NewCreationAuditEntry(uuid.NewString(), tx, decimal.Zero, decimal.NewFromInt(200000))
	assert.True(t, strings.Contains(entry.Comment, "By system"))
}
