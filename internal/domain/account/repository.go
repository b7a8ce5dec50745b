package account

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACE
// Интерфейс определяет контракт для работы с хранилищем счетов.
// Реализация находится в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции над счетами.
type Repository interface {
	// Create создаёт новый счёт.
	Create(ctx context.Context, acc *Account) error

	// GetByID возвращает счёт по ID.
	// Возвращает shared.ErrAccountNotFound, если счёт не найден.
	GetByID(ctx context.Context, id string) (*Account, error)

	// Update обновляет счёт. Баланс этим методом не трогается -
	// баланс меняет только ledger-движок внутри своей транзакции.
	Update(ctx context.Context, acc *Account) error

	// GetByKind возвращает все счета указанного вида.
	GetByKind(ctx context.Context, kind Kind) ([]*Account, error)

	// GetActiveByKind возвращает неархивные счета указанного вида.
	GetActiveByKind(ctx context.Context, kind Kind) ([]*Account, error)

	// CountNonNegativeByKind возвращает количество неархивных счетов вида kind
	// с неотрицательным балансом. Используется KPI-движком для метрики.
	CountNonNegativeByKind(ctx context.Context, kind Kind) (int, error)

	// FindFrozenExpired находит счета, у которых заморозка истекла
	// к указанной дате. Используется джобой разморозки.
	FindFrozenExpired(ctx context.Context, asOf time.Time) ([]*Account, error)
}
