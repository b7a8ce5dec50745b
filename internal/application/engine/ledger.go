package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bilim-hub/bilim-erp-core/internal/domain/account"
	"github.com/bilim-hub/bilim-erp-core/internal/domain/ledger"
	"github.com/bilim-hub/bilim-erp-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEDGER ENGINE
// Единственная точка изменения балансов. Любое движение денег проходит
// через CreateTransaction / DeleteTransaction: проводка, баланс и аудитная
// запись пишутся в одной storage-транзакции под блокировкой строки счёта.
// ══════════════════════════════════════════════════════════════════════════════

// LedgerEngine applies monetary movements to accounts.
type LedgerEngine struct {
	store     LedgerStore
	registry  *ledger.ReasonRegistry
	txRepo    ledger.TransactionRepository
	publisher shared.EventPublisher
	cache     BalanceCache
	logger    *slog.Logger
}

// NewLedgerEngine creates a ledger engine. The publisher must not be nil
// (use shared.NopPublisher); cache may be nil.
func NewLedgerEngine(
	store LedgerStore,
	registry *ledger.ReasonRegistry,
	txRepo ledger.TransactionRepository,
	publisher shared.EventPublisher,
	cache BalanceCache,
	logger *slog.Logger,
) *LedgerEngine {
	return &LedgerEngine{
		store:     store,
		registry:  registry,
		txRepo:    txRepo,
		publisher: publisher,
		cache:     cache,
		logger:    logger.With(slog.String("component", "ledger_engine")),
	}
}

// CreateTransactionInput contains all data required to post a transaction.
// The caller never chooses credit or debit: the reason decides.
type CreateTransactionInput struct {
	// AccountID - счёт, по которому проводится движение.
	AccountID string

	// Reason - причина движения; по ней резолвится действие.
	Reason ledger.Reason

	// Amount - беззнаковая величина движения, строго положительная.
	Amount decimal.Decimal

	// CreatedBy - сотрудник-инициатор. Пусто для системных проводок.
	CreatedBy string

	// Comment - свободный комментарий.
	Comment string
}

// Validate checks the input before any storage work happens.
func (i CreateTransactionInput) Validate() error {
	if strings.TrimSpace(i.AccountID) == "" {
		return shared.NewDomainError("ledger", "CreateTransaction", shared.ErrInvalidInput, "account id is required")
	}
	if !i.Amount.IsPositive() {
		return shared.ErrInvalidAmount
	}
	return nil
}

// CreateTransactionResult describes a posted transaction.
type CreateTransactionResult struct {
	// Transaction - созданная проводка.
	Transaction *ledger.Transaction

	// BalanceBefore - баланс счёта до проводки.
	BalanceBefore decimal.Decimal

	// BalanceAfter - баланс счёта после проводки.
	BalanceAfter decimal.Decimal
}

// CreateTransaction posts a movement against an account.
//
// The reason is resolved against the account's kind before anything is
// written; unknown reasons fail with shared.ErrUnknownReason. Inside one
// storage transaction the engine locks the account row, inserts the
// transaction, moves the balance by the effective amount and appends the
// audit entry. Negative resulting balances are allowed: a debtor is a
// business state, not an error.
func (e *LedgerEngine) CreateTransaction(ctx context.Context, input CreateTransactionInput) (*CreateTransactionResult, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	var result CreateTransactionResult

	err := e.store.WithinTx(ctx, func(tx LedgerTx) error {
		acc, err := tx.GetAccountForUpdate(ctx, input.AccountID)
		if err != nil {
			return err
		}

		action, err := e.registry.Resolve(acc.Kind, input.Reason)
		if err != nil {
			return fmt.Errorf("resolve reason %q for kind %s: %w", input.Reason, acc.Kind, err)
		}

		t, err := ledger.NewTransaction(ledger.NewTransactionParams{
			ID:          uuid.NewString(),
			AccountID:   acc.ID,
			AccountKind: acc.Kind,
			Reason:      input.Reason,
			Action:      action,
			Amount:      input.Amount,
			CreatedBy:   input.CreatedBy,
			Comment:     input.Comment,
		})
		if err != nil {
			return err
		}

		before := acc.Balance
		after := before.Add(t.EffectiveAmount)

		if err := tx.InsertTransaction(ctx, t); err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
		if err := tx.UpdateBalance(ctx, acc.ID, after); err != nil {
			return fmt.Errorf("update balance: %w", err)
		}

		entry := ledger.NewCreationAuditEntry(uuid.NewString(), t, before, after)
		if err := tx.InsertAuditEntry(ctx, entry); err != nil {
			return fmt.Errorf("insert audit entry: %w", err)
		}

		result = CreateTransactionResult{
			Transaction:   t,
			BalanceBefore: before,
			BalanceAfter:  after,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.afterMutation(ctx, result.Transaction.AccountID)

	e.logger.Info("transaction created",
		slog.String("transaction_id", result.Transaction.ID),
		slog.String("account_id", result.Transaction.AccountID),
		slog.String("reason", string(result.Transaction.Reason)),
		slog.String("effective_amount", result.Transaction.EffectiveAmount.String()),
		slog.String("balance_after", result.BalanceAfter.String()),
	)

	if err := e.publisher.Publish(shared.NewTransactionCreatedEvent(
		result.Transaction.ID,
		result.Transaction.AccountID,
		string(result.Transaction.Reason),
		result.Transaction.EffectiveAmount.String(),
		result.BalanceAfter.String(),
	)); err != nil {
		e.logger.Warn("failed to publish transaction created event", slog.Any("error", err))
	}

	return &result, nil
}

// DeleteTransactionResult describes a reversed transaction.
type DeleteTransactionResult struct {
	// TransactionID - ID удалённой проводки.
	TransactionID string

	// BalanceBefore - баланс счёта до удаления.
	BalanceBefore decimal.Decimal

	// BalanceAfter - баланс счёта после удаления.
	BalanceAfter decimal.Decimal
}

// DeleteTransaction reverses a posted transaction.
//
// Deletion is the inverse of creation: the balance moves by the negated
// effective amount, the transaction row is removed and a deletion audit
// entry (with no transaction reference) is appended, all atomically.
// Create followed by delete always restores the original balance.
func (e *LedgerEngine) DeleteTransaction(ctx context.Context, transactionID string) (*DeleteTransactionResult, error) {
	if strings.TrimSpace(transactionID) == "" {
		return nil, shared.NewDomainError("ledger", "DeleteTransaction", shared.ErrInvalidInput, "transaction id is required")
	}

	var result DeleteTransactionResult
	var accountID string

	err := e.store.WithinTx(ctx, func(tx LedgerTx) error {
		t, err := tx.GetTransaction(ctx, transactionID)
		if err != nil {
			return err
		}

		acc, err := tx.GetAccountForUpdate(ctx, t.AccountID)
		if err != nil {
			return err
		}

		before := acc.Balance
		after := before.Sub(t.EffectiveAmount)

		if err := tx.DeleteTransaction(ctx, t.ID); err != nil {
			return fmt.Errorf("delete transaction: %w", err)
		}
		if err := tx.UpdateBalance(ctx, acc.ID, after); err != nil {
			return fmt.Errorf("update balance: %w", err)
		}

		entry := ledger.NewDeletionAuditEntry(uuid.NewString(), t, before, after)
		if err := tx.InsertAuditEntry(ctx, entry); err != nil {
			return fmt.Errorf("insert audit entry: %w", err)
		}

		result = DeleteTransactionResult{
			TransactionID: t.ID,
			BalanceBefore: before,
			BalanceAfter:  after,
		}
		accountID = acc.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.afterMutation(ctx, accountID)

	e.logger.Info("transaction deleted",
		slog.String("transaction_id", result.TransactionID),
		slog.String("account_id", accountID),
		slog.String("balance_after", result.BalanceAfter.String()),
	)

	if err := e.publisher.Publish(shared.NewTransactionDeletedEvent(
		result.TransactionID, accountID, result.BalanceAfter.String(),
	)); err != nil {
		e.logger.Warn("failed to publish transaction deleted event", slog.Any("error", err))
	}

	return &result, nil
}

// BalanceVerification is the outcome of checking one account's invariant.
type BalanceVerification struct {
	AccountID     string
	StoredBalance decimal.Decimal
	LedgerSum     decimal.Decimal
	CheckedAt     time.Time
}

// Consistent reports whether the stored balance equals the ledger sum.
func (v BalanceVerification) Consistent() bool {
	return v.StoredBalance.Equal(v.LedgerSum)
}

// VerifyBalance проверяет балансовый инвариант счёта: хранимый баланс
// должен равняться сумме effective_amount всех неудалённых проводок.
// Расхождение означает, что кто-то менял данные в обход движка.
func (e *LedgerEngine) VerifyBalance(ctx context.Context, accountID string) (*BalanceVerification, error) {
	var v BalanceVerification

	err := e.store.WithinTx(ctx, func(tx LedgerTx) error {
		acc, err := tx.GetAccountForUpdate(ctx, accountID)
		if err != nil {
			return err
		}

		sum, err := e.txRepo.SumEffectiveByAccount(ctx, accountID)
		if err != nil {
			return fmt.Errorf("sum effective amounts: %w", err)
		}

		v = BalanceVerification{
			AccountID:     acc.ID,
			StoredBalance: acc.Balance,
			LedgerSum:     sum,
			CheckedAt:     time.Now().UTC(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !v.Consistent() {
		e.logger.Error("balance drift detected",
			slog.String("account_id", v.AccountID),
			slog.String("stored", v.StoredBalance.String()),
			slog.String("ledger_sum", v.LedgerSum.String()),
		)
		if pubErr := e.publisher.Publish(shared.NewBalanceDriftDetectedEvent(
			v.AccountID, v.StoredBalance.String(), v.LedgerSum.String(),
		)); pubErr != nil {
			e.logger.Warn("failed to publish balance drift event", slog.Any("error", pubErr))
		}
	}

	return &v, nil
}

// RecomputeBalance rewrites the stored balance from the ledger sum. The
// repair path for drift found by VerifyBalance; it never touches the
// transactions themselves.
func (e *LedgerEngine) RecomputeBalance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	var recomputed decimal.Decimal

	err := e.store.WithinTx(ctx, func(tx LedgerTx) error {
		if _, err := tx.GetAccountForUpdate(ctx, accountID); err != nil {
			return err
		}

		sum, err := e.txRepo.SumEffectiveByAccount(ctx, accountID)
		if err != nil {
			return fmt.Errorf("sum effective amounts: %w", err)
		}

		if err := tx.UpdateBalance(ctx, accountID, sum); err != nil {
			return fmt.Errorf("update balance: %w", err)
		}

		recomputed = sum
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}

	e.afterMutation(ctx, accountID)

	e.logger.Info("balance recomputed",
		slog.String("account_id", accountID),
		slog.String("balance", recomputed.String()),
	)

	return recomputed, nil
}

// Known reports whether the reason is registered for the account kind.
// Lets interface layers validate input before opening a transaction.
func (e *LedgerEngine) Known(kind account.Kind, reason ledger.Reason) bool {
	return e.registry.Known(kind, reason)
}

// afterMutation drops the cached balance. Cache errors are logged only: the
// мутация уже закоммичена, откатывать её из-за кэша нельзя.
func (e *LedgerEngine) afterMutation(ctx context.Context, accountID string) {
	if e.cache == nil {
		return
	}
	if err := e.cache.InvalidateBalance(ctx, accountID); err != nil {
		e.logger.Warn("failed to invalidate balance cache",
			slog.String("account_id", accountID),
			slog.Any("error", err),
		)
	}
}
