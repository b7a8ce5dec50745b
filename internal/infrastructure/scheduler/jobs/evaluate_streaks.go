// Package jobs contains the scheduled sweeps of the ERP worker: streak
// evaluation, KPI application, account unfreezing and balance verification.
package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/bilim-hub/bilim-erp-core/internal/application/engine"
	"github.com/bilim-hub/bilim-erp-core/internal/infrastructure/persistence/redis"
)

// Locker serializes a sweep across worker instances. A nil Locker runs the
// sweep without coordination (single-instance deployments, tests).
type Locker interface {
	WithLock(ctx context.Context, fn func(ctx context.Context) error) error
}

// runLocked runs fn under the lock when one is configured. A held lock is
// not an error: another worker is already doing the sweep.
func runLocked(ctx context.Context, lock Locker, logger *slog.Logger, jobName string, fn func(ctx context.Context) error) error {
	if lock == nil {
		return fn(ctx)
	}

	err := lock.WithLock(ctx, fn)
	if errors.Is(err, redis.ErrLockHeld) {
		logger.Info("sweep skipped: lock held by another worker", "job", jobName)
		return nil
	}
	return err
}

// ══════════════════════════════════════════════════════════════════════════════
// EVALUATE STREAKS JOB
// ══════════════════════════════════════════════════════════════════════════════

// EvaluateStreaksJob walks every active membership and archives those whose
// unexcused-absence streak crossed the stage threshold. Runs daily after the
// attendance for the day has been recorded.
type EvaluateStreaksJob struct {
	streaks *engine.StreakMonitor
	lock    Locker
	logger  *slog.Logger
	timeout time.Duration

	lastReport atomic.Value // *engine.SweepReport
}

// NewEvaluateStreaksJob creates a new streak evaluation job.
func NewEvaluateStreaksJob(streaks *engine.StreakMonitor, lock Locker, logger *slog.Logger, timeout time.Duration) *EvaluateStreaksJob {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}

	return &EvaluateStreaksJob{
		streaks: streaks,
		lock:    lock,
		logger:  logger,
		timeout: timeout,
	}
}

// Name implements scheduler.Job.
func (j *EvaluateStreaksJob) Name() string {
	return "evaluate_streaks"
}

// Description implements scheduler.Job.
func (j *EvaluateStreaksJob) Description() string {
	return "Archives memberships and accounts whose unexcused-absence streak crossed the stage threshold"
}

// Run implements scheduler.Job.
func (j *EvaluateStreaksJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	return runLocked(ctx, j.lock, j.logger, j.Name(), func(ctx context.Context) error {
		report, err := j.streaks.EvaluateAll(ctx)
		if report != nil {
			j.lastReport.Store(report)

			j.logger.Info("streak sweep finished",
				"evaluated", report.Evaluated,
				"skipped_frozen", report.SkippedFrozen,
				"memberships_archived", report.MembershipsArchived,
				"accounts_archived", report.AccountsArchived,
				"failures", report.Failures,
				"duration", report.FinishedAt.Sub(report.StartedAt).String(),
			)
		}
		return err
	})
}

// LastReport returns the report of the most recent run, or nil.
func (j *EvaluateStreaksJob) LastReport() *engine.SweepReport {
	report, _ := j.lastReport.Load().(*engine.SweepReport)
	return report
}
