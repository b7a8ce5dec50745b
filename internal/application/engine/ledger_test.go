package engine

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bilim-hub/bilim-erp-core/internal/domain/account"
	"github.com/bilim-hub/bilim-erp-core/internal/domain/ledger"
	"github.com/bilim-hub/bilim-erp-core/internal/domain/shared"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestAccount(t *testing.T, store *memStore, kind account.Kind, stage account.Stage) *account.Account {
	t.Helper()
	acc, err := account.NewAccount(account.NewAccountParams{
		ID:         uuid.NewString(),
		Kind:       kind,
		HolderName: "Test Holder",
		Stage:      stage,
	})
	require.NoError(t, err)
	store.accounts[acc.ID] = acc
	return acc
}

func newLedgerFixture(t *testing.T) (*LedgerEngine, *memStore, *recordingPublisher) {
	t.Helper()
	store := newMemStore()
	pub := &recordingPublisher{}
	eng := NewLedgerEngine(
		ledgerStore{store},
		ledger.DefaultRegistry(),
		memTxRepo{store},
		pub,
		nil,
		testLogger(),
	)
	return eng, store, pub
}

func TestLedgerEngine_CreateTransaction_CreditAndDebit(t *testing.T) {
	eng, store, pub := newLedgerFixture(t)
	acc := newTestAccount(t, store, account.KindStudent, account.StageActive)

	res, err := eng.CreateTransaction(context.Background(), CreateTransactionInput{
		AccountID: acc.ID,
		Reason:    ledger.ReasonCoursePayment,
		Amount:    decimal.NewFromInt(500000),
		CreatedBy: "emp-1",
	})
	require.NoError(t, err)
	assert.Equal(t, ledger.ActionCredit, res.Transaction.Action)
	assert.True(t, res.BalanceAfter.Equal(decimal.NewFromInt(500000)))
	assert.True(t, store.accounts[acc.ID].Balance.Equal(decimal.NewFromInt(500000)))

	res, err = eng.CreateTransaction(context.Background(), CreateTransactionInput{
		AccountID: acc.ID,
		Reason:    ledger.ReasonLessonCharge,
		Amount:    decimal.NewFromInt(120000),
		CreatedBy: "emp-1",
	})
	require.NoError(t, err)
	assert.Equal(t, ledger.ActionDebit, res.Transaction.Action)
	assert.True(t, res.BalanceAfter.Equal(decimal.NewFromInt(380000)))

	assert.Len(t, pub.byType(shared.EventTransactionCreated), 2)
	assert.Len(t, store.audits, 2)
}

func TestLedgerEngine_CreateTransaction_BalanceEqualsLedgerSum(t *testing.T) {
	eng, store, _ := newLedgerFixture(t)
	acc := newTestAccount(t, store, account.KindStudent, account.StageActive)

	inputs := []CreateTransactionInput{
		{AccountID: acc.ID, Reason: ledger.ReasonCoursePayment, Amount: decimal.NewFromInt(300000)},
		{AccountID: acc.ID, Reason: ledger.ReasonLessonCharge, Amount: decimal.NewFromInt(45000)},
		{AccountID: acc.ID, Reason: ledger.ReasonFine, Amount: decimal.NewFromInt(10000)},
		{AccountID: acc.ID, Reason: ledger.ReasonBonus, Amount: decimal.NewFromInt(5000)},
	}
	for _, in := range inputs {
		_, err := eng.CreateTransaction(context.Background(), in)
		require.NoError(t, err)
	}

	sum, err := memTxRepo{store}.SumEffectiveByAccount(context.Background(), acc.ID)
	require.NoError(t, err)
	assert.True(t, store.accounts[acc.ID].Balance.Equal(sum),
		"stored balance %s must equal ledger sum %s", store.accounts[acc.ID].Balance, sum)
}

func TestLedgerEngine_CreateTransaction_NegativeBalanceAllowed(t *testing.T) {
	eng, store, _ := newLedgerFixture(t)
	acc := newTestAccount(t, store, account.KindStudent, account.StageNew)

	res, err := eng.CreateTransaction(context.Background(), CreateTransactionInput{
		AccountID: acc.ID,
		Reason:    ledger.ReasonLessonCharge,
		Amount:    decimal.NewFromInt(90000),
	})
	require.NoError(t, err)
	assert.True(t, res.BalanceAfter.IsNegative())
	assert.True(t, store.accounts[acc.ID].IsDebtor())
}

func TestLedgerEngine_CreateTransaction_UnknownReason(t *testing.T) {
	eng, store, _ := newLedgerFixture(t)
	student := newTestAccount(t, store, account.KindStudent, account.StageActive)

	// Staff-vocabulary reason against a student account.
	_, err := eng.CreateTransaction(context.Background(), CreateTransactionInput{
		AccountID: student.ID,
		Reason:    ledger.ReasonSalary,
		Amount:    decimal.NewFromInt(1000),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrUnknownReason)

	// Nothing may be written on rejection.
	assert.Empty(t, store.txs)
	assert.Empty(t, store.audits)
	assert.True(t, store.accounts[student.ID].Balance.IsZero())
}

func TestLedgerEngine_CreateTransaction_InvalidAmount(t *testing.T) {
	eng, store, _ := newLedgerFixture(t)
	acc := newTestAccount(t, store, account.KindStudent, account.StageActive)

	for _, amount := range []decimal.Decimal{decimal.Zero, decimal.NewFromInt(-100)} {
		_, err := eng.CreateTransaction(context.Background(), CreateTransactionInput{
			AccountID: acc.ID,
			Reason:    ledger.ReasonBonus,
			Amount:    amount,
		})
		assert.ErrorIs(t, err, shared.ErrInvalidAmount)
	}
}

func TestLedgerEngine_CreateTransaction_AccountNotFound(t *testing.T) {
	eng, _, _ := newLedgerFixture(t)

	_, err := eng.CreateTransaction(context.Background(), CreateTransactionInput{
		AccountID: uuid.NewString(),
		Reason:    ledger.ReasonBonus,
		Amount:    decimal.NewFromInt(100),
	})
	assert.ErrorIs(t, err, shared.ErrAccountNotFound)
}

func TestLedgerEngine_DeleteTransaction_RestoresBalance(t *testing.T) {
	eng, store, pub := newLedgerFixture(t)
	acc := newTestAccount(t, store, account.KindStaff, account.StageActive)

	created, err := eng.CreateTransaction(context.Background(), CreateTransactionInput{
		AccountID: acc.ID,
		Reason:    ledger.ReasonSalary,
		Amount:    decimal.NewFromInt(2500000),
		CreatedBy: "emp-9",
	})
	require.NoError(t, err)
	require.True(t, store.accounts[acc.ID].Balance.Equal(decimal.NewFromInt(2500000)))

	deleted, err := eng.DeleteTransaction(context.Background(), created.Transaction.ID)
	require.NoError(t, err)

	// Create followed by delete is a no-op on the balance.
	assert.True(t, deleted.BalanceAfter.IsZero())
	assert.True(t, store.accounts[acc.ID].Balance.IsZero())
	assert.Empty(t, store.txs)

	// Both mutations are audited; the deletion entry carries no
	// transaction reference.
	require.Len(t, store.audits, 2)
	assert.NotNil(t, store.audits[0].TransactionID)
	assert.Nil(t, store.audits[1].TransactionID)

	assert.Len(t, pub.byType(shared.EventTransactionDeleted), 1)
}

func TestLedgerEngine_DeleteTransaction_NotFound(t *testing.T) {
	eng, _, _ := newLedgerFixture(t)

	_, err := eng.DeleteTransaction(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, shared.ErrTransactionNotFound)
}

func TestLedgerEngine_VerifyBalance(t *testing.T) {
	eng, store, pub := newLedgerFixture(t)
	acc := newTestAccount(t, store, account.KindStudent, account.StageActive)

	_, err := eng.CreateTransaction(context.Background(), CreateTransactionInput{
		AccountID: acc.ID,
		Reason:    ledger.ReasonCoursePayment,
		Amount:    decimal.NewFromInt(100000),
	})
	require.NoError(t, err)

	v, err := eng.VerifyBalance(context.Background(), acc.ID)
	require.NoError(t, err)
	assert.True(t, v.Consistent())
	assert.Empty(t, pub.byType(shared.EventBalanceDriftDetected))

	// Corrupt the stored balance behind the engine's back.
	store.accounts[acc.ID].Balance = decimal.NewFromInt(999)

	v, err = eng.VerifyBalance(context.Background(), acc.ID)
	require.NoError(t, err)
	assert.False(t, v.Consistent())
	assert.Len(t, pub.byType(shared.EventBalanceDriftDetected), 1)
}

func TestLedgerEngine_RecomputeBalance(t *testing.T) {
	eng, store, _ := newLedgerFixture(t)
	acc := newTestAccount(t, store, account.KindStudent, account.StageActive)

	_, err := eng.CreateTransaction(context.Background(), CreateTransactionInput{
		AccountID: acc.ID,
		Reason:    ledger.ReasonCoursePayment,
		Amount:    decimal.NewFromInt(70000),
	})
	require.NoError(t, err)

	store.accounts[acc.ID].Balance = decimal.NewFromInt(-1)

	recomputed, err := eng.RecomputeBalance(context.Background(), acc.ID)
	require.NoError(t, err)
	assert.True(t, recomputed.Equal(decimal.NewFromInt(70000)))
	assert.True(t, store.accounts[acc.ID].Balance.Equal(decimal.NewFromInt(70000)))
}
