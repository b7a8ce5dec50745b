// Package account содержит доменную модель счёта учебного центра.
// Счёт принадлежит либо ученику, либо сотруднику; баланс счёта изменяется
// исключительно через ledger-движок, напрямую его трогать нельзя.
package account

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// Kind определяет владельца счёта: ученик или сотрудник.
// У каждого вида счетов свой словарь причин транзакций.
type Kind string

const (
	// KindStudent - счёт ученика.
	KindStudent Kind = "STUDENT"
	// KindStaff - счёт сотрудника (зарплаты, KPI-бонусы и штрафы).
	KindStaff Kind = "STAFF"
)

// IsValid проверяет, что вид счёта корректен.
func (k Kind) IsValid() bool {
	return k == KindStudent || k == KindStaff
}

// Stage определяет этап жизни счёта ученика.
// Новые счета архивируются при меньшем пороге пропусков, чем активные.
type Stage string

const (
	// StageNew - новый счёт: ученик ещё не перешёл в актив.
	StageNew Stage = "NEW"
	// StageActive - устоявшийся счёт.
	StageActive Stage = "ACTIVE"
)

// IsValid проверяет, что этап корректен.
func (s Stage) IsValid() bool {
	return s == StageNew || s == StageActive
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrInvalidKind - неизвестный вид счёта.
	ErrInvalidKind = errors.New("invalid account kind")

	// ErrInvalidStage - неизвестный этап счёта.
	ErrInvalidStage = errors.New("invalid account stage")

	// ErrInvalidHolderName - невалидное имя владельца.
	ErrInvalidHolderName = errors.New("invalid holder name: must be 1-150 chars")

	// ErrAccountArchived - счёт уже в архиве.
	ErrAccountArchived = errors.New("account is already archived")

	// ErrAccountNotArchived - счёт не в архиве.
	ErrAccountNotArchived = errors.New("account is not archived")

	// ErrAlreadyActive - счёт уже переведён в актив.
	ErrAlreadyActive = errors.New("account is already active")
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: ACCOUNT
// ══════════════════════════════════════════════════════════════════════════════

// Account - расчётный счёт ученика или сотрудника.
type Account struct {
	// ID - внутренний уникальный идентификатор (UUID в строковом формате).
	ID string

	// Kind - вид счёта (ученик / сотрудник).
	Kind Kind

	// HolderName - отображаемое имя владельца счёта.
	HolderName string

	// Stage - этап счёта: новый или активный.
	Stage Stage

	// Balance - текущий баланс. Инвариант: баланс всегда равен сумме
	// effective_amount всех неудалённых транзакций счёта.
	Balance decimal.Decimal

	// Archived - признак архивности.
	Archived bool

	// ArchivedAt - время архивации (нулевое, если счёт активен).
	ArchivedAt time.Time

	// ArchivedBy - кто архивировал (пустая строка для системных архиваций).
	ArchivedBy string

	// FrozenUntil - дата, до которой счёт заморожен. Замороженные счета
	// пропускаются при вычислении пропусков (streak). nil - не заморожен.
	FrozenUntil *time.Time

	// CreatedAt - время создания записи.
	CreatedAt time.Time

	// UpdatedAt - время последнего обновления.
	UpdatedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// FACTORY & VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

// NewAccountParams содержит параметры для создания нового счёта.
type NewAccountParams struct {
	ID         string
	Kind       Kind
	HolderName string
	Stage      Stage
}

// NewAccount создаёт новый счёт с валидацией всех полей.
// Баланс нового счёта всегда нулевой.
func NewAccount(params NewAccountParams) (*Account, error) {
	if params.ID == "" {
		return nil, errors.New("account id is required")
	}

	if !params.Kind.IsValid() {
		return nil, ErrInvalidKind
	}

	holderName := strings.TrimSpace(params.HolderName)
	if len(holderName) == 0 || len(holderName) > 150 {
		return nil, ErrInvalidHolderName
	}

	stage := params.Stage
	if stage == "" {
		stage = StageNew
	}
	if !stage.IsValid() {
		return nil, ErrInvalidStage
	}

	now := time.Now().UTC()

	return &Account{
		ID:         params.ID,
		Kind:       params.Kind,
		HolderName: holderName,
		Stage:      stage,
		Balance:    decimal.Zero,
		Archived:   false,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN METHODS (Business Logic)
// ══════════════════════════════════════════════════════════════════════════════

// Archive переводит счёт в архив.
// Возвращает ошибку, если счёт уже в архиве.
func (a *Account) Archive(actorID string, at time.Time) error {
	if a.Archived {
		return ErrAccountArchived
	}

	a.Archived = true
	a.ArchivedAt = at.UTC()
	a.ArchivedBy = actorID
	a.UpdatedAt = time.Now().UTC()
	return nil
}

// Unarchive возвращает счёт из архива в активное состояние.
// Повторная архивация после разархивации разрешена - терминального
// состояния у счёта нет.
func (a *Account) Unarchive() error {
	if !a.Archived {
		return ErrAccountNotArchived
	}

	a.Archived = false
	a.ArchivedAt = time.Time{}
	a.ArchivedBy = ""
	a.UpdatedAt = time.Now().UTC()
	return nil
}

// Activate переводит новый счёт в актив (NEW → ACTIVE).
func (a *Account) Activate() error {
	if a.Stage == StageActive {
		return ErrAlreadyActive
	}

	a.Stage = StageActive
	a.UpdatedAt = time.Now().UTC()
	return nil
}

// Freeze замораживает счёт до указанной даты.
func (a *Account) Freeze(until time.Time) {
	u := until.UTC()
	a.FrozenUntil = &u
	a.UpdatedAt = time.Now().UTC()
}

// Unfreeze снимает заморозку со счёта.
func (a *Account) Unfreeze() {
	a.FrozenUntil = nil
	a.UpdatedAt = time.Now().UTC()
}

// IsFrozen возвращает true, если на указанный момент счёт заморожен.
// Счёт считается замороженным, пока FrozenUntil не раньше текущей даты.
func (a *Account) IsFrozen(at time.Time) bool {
	if a.FrozenUntil == nil {
		return false
	}

	y1, m1, d1 := a.FrozenUntil.UTC().Date()
	y2, m2, d2 := at.UTC().Date()
	frozenDay := time.Date(y1, m1, d1, 0, 0, 0, 0, time.UTC)
	day := time.Date(y2, m2, d2, 0, 0, 0, 0, time.UTC)

	return !frozenDay.Before(day)
}

// IsDebtor возвращает true, если баланс счёта отрицательный.
func (a *Account) IsDebtor() bool {
	return a.Balance.IsNegative()
}

// String возвращает строковое представление счёта для логирования.
func (a *Account) String() string {
	return fmt.Sprintf(
		"Account{ID: %s, Kind: %s, Stage: %s, Balance: %s, Archived: %t}",
		a.ID, a.Kind, a.Stage, a.Balance.String(), a.Archived,
	)
}

// Clone создаёт копию счёта.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}

	clone := *a
	if a.FrozenUntil != nil {
		u := *a.FrozenUntil
		clone.FrozenUntil = &u
	}
	return &clone
}
