package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bilim-hub/bilim-erp-core/internal/domain/account"
	"github.com/bilim-hub/bilim-erp-core/internal/domain/archive"
	"github.com/bilim-hub/bilim-erp-core/internal/domain/attendance"
	"github.com/bilim-hub/bilim-erp-core/internal/domain/group"
	"github.com/bilim-hub/bilim-erp-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// STREAK MONITOR
// Ночной обход активных членств: считаем подряд идущие пропуски без
// уважительной причины и архивируем членства, пробившие порог. Порог
// зависит от этапа счёта: новые ученики выбывают после 3 пропусков,
// активные - после 5. Замороженные счета обход пропускает.
// ══════════════════════════════════════════════════════════════════════════════

// Streak thresholds per account stage.
const (
	// NewStageThreshold - допустимое число пропусков для нового ученика.
	NewStageThreshold = 3

	// ActiveStageThreshold - допустимое число пропусков для активного.
	ActiveStageThreshold = 5
)

// StreakMonitor evaluates unexcused-absence streaks over memberships.
type StreakMonitor struct {
	memberships group.Repository
	attendance  attendance.Repository
	accounts    account.Repository
	lifecycle   *LifecycleManager
	logger      *slog.Logger
}

// NewStreakMonitor creates a streak monitor.
func NewStreakMonitor(
	memberships group.Repository,
	att attendance.Repository,
	accounts account.Repository,
	lifecycle *LifecycleManager,
	logger *slog.Logger,
) *StreakMonitor {
	return &StreakMonitor{
		memberships: memberships,
		attendance:  att,
		accounts:    accounts,
		lifecycle:   lifecycle,
		logger:      logger.With(slog.String("component", "streak_monitor")),
	}
}

// Threshold returns the streak limit for an account stage.
func Threshold(stage account.Stage) int {
	if stage == account.StageNew {
		return NewStageThreshold
	}
	return ActiveStageThreshold
}

// SweepReport summarizes one full evaluation pass.
type SweepReport struct {
	// Evaluated - сколько членств было рассмотрено.
	Evaluated int

	// SkippedFrozen - сколько членств пропущено из-за заморозки счёта.
	SkippedFrozen int

	// MembershipsArchived - сколько членств заархивировано за пропуски.
	MembershipsArchived int

	// AccountsArchived - сколько счетов заархивировано каскадом (не
	// осталось активных членств).
	AccountsArchived int

	// Failures - сколько членств не удалось обработать.
	Failures int

	// StartedAt / FinishedAt - границы прохода.
	StartedAt  time.Time
	FinishedAt time.Time
}

// EvaluateAll walks every active membership and archives those whose
// unexcused streak reached the stage threshold. Per-item failures are
// logged and counted, never abort the sweep; cancellation stops between
// items and returns the partial report with ctx.Err().
func (s *StreakMonitor) EvaluateAll(ctx context.Context) (*SweepReport, error) {
	report := &SweepReport{StartedAt: time.Now().UTC()}

	memberships, err := s.memberships.GetAllActive(ctx)
	if err != nil {
		return report, fmt.Errorf("load active memberships: %w", err)
	}

	s.logger.Info("streak sweep started", slog.Int("memberships", len(memberships)))

	for _, ms := range memberships {
		select {
		case <-ctx.Done():
			report.FinishedAt = time.Now().UTC()
			s.logger.Warn("streak sweep cancelled",
				slog.Int("evaluated", report.Evaluated),
				slog.Int("remaining", len(memberships)-report.Evaluated),
			)
			return report, ctx.Err()
		default:
		}

		if err := s.evaluate(ctx, ms, report); err != nil {
			report.Failures++
			s.logger.Error("failed to evaluate membership",
				slog.String("membership_id", ms.ID),
				slog.Any("error", err),
			)
		}
	}

	report.FinishedAt = time.Now().UTC()
	s.logger.Info("streak sweep finished",
		slog.Int("evaluated", report.Evaluated),
		slog.Int("skipped_frozen", report.SkippedFrozen),
		slog.Int("memberships_archived", report.MembershipsArchived),
		slog.Int("accounts_archived", report.AccountsArchived),
		slog.Int("failures", report.Failures),
	)

	return report, nil
}

// evaluate handles a single membership.
func (s *StreakMonitor) evaluate(ctx context.Context, ms *group.Membership, report *SweepReport) error {
	report.Evaluated++

	acc, err := s.accounts.GetByID(ctx, ms.AccountID)
	if err != nil {
		return fmt.Errorf("load account %s: %w", ms.AccountID, err)
	}

	// Архивный счёт мог появиться по ходу этого же прохода (каскад от
	// другого членства) - такие членства уже закрыты каскадом.
	if acc.Archived {
		return nil
	}

	if acc.IsFrozen(time.Now()) {
		report.SkippedFrozen++
		return nil
	}

	streak, err := s.attendance.CurrentStreak(ctx, ms.ID)
	if err != nil {
		return fmt.Errorf("compute streak: %w", err)
	}

	threshold := Threshold(acc.Stage)
	if streak < threshold {
		return nil
	}

	comment := fmt.Sprintf("Archived automatically: %d consecutive unexcused absences (limit %d)", streak, threshold)

	remaining, err := s.lifecycle.ArchiveMembership(ctx, ms.ID, comment)
	if err != nil {
		// Гонка с каскадной архивацией - не ошибка прохода.
		if errors.Is(err, shared.ErrAlreadyArchived) {
			return nil
		}
		return fmt.Errorf("archive membership: %w", err)
	}
	report.MembershipsArchived++

	s.logger.Info("membership archived for absences",
		slog.String("membership_id", ms.ID),
		slog.String("account_id", acc.ID),
		slog.Int("streak", streak),
		slog.Int("threshold", threshold),
	)

	if remaining > 0 {
		return nil
	}

	// Последнее активное членство закрыто - счёт уходит в архив с
	// системной записью.
	reasonCode := archive.ReasonActiveStudent
	if acc.Stage == account.StageNew {
		reasonCode = archive.ReasonNewStudent
	}

	_, err = s.lifecycle.ArchiveAccount(ctx, ArchiveAccountInput{
		AccountID:  acc.ID,
		ReasonCode: reasonCode,
		ReasonText: comment,
	})
	if err != nil {
		if errors.Is(err, shared.ErrAlreadyArchived) {
			return nil
		}
		return fmt.Errorf("archive account: %w", err)
	}
	report.AccountsArchived++

	return nil
}
