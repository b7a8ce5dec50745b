package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/bilim-hub/bilim-erp-core/internal/domain/account"
	"github.com/bilim-hub/bilim-erp-core/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// UNFREEZE ACCOUNTS JOB
// ══════════════════════════════════════════════════════════════════════════════

// UnfreezeAccountsJob clears expired freezes. A freeze through its last day
// keeps the account out of streak evaluation; the morning after, this job
// returns it to normal processing.
type UnfreezeAccountsJob struct {
	accounts account.Repository
	lock     Locker
	logger   *slog.Logger
	timeout  time.Duration
}

// NewUnfreezeAccountsJob creates a new unfreeze job.
func NewUnfreezeAccountsJob(accounts account.Repository, lock Locker, logger *slog.Logger, timeout time.Duration) *UnfreezeAccountsJob {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	return &UnfreezeAccountsJob{
		accounts: accounts,
		lock:     lock,
		logger:   logger,
		timeout:  timeout,
	}
}

// Name implements scheduler.Job.
func (j *UnfreezeAccountsJob) Name() string {
	return "unfreeze_accounts"
}

// Description implements scheduler.Job.
func (j *UnfreezeAccountsJob) Description() string {
	return "Clears freezes whose end date has passed"
}

// Run implements scheduler.Job.
func (j *UnfreezeAccountsJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	return runLocked(ctx, j.lock, j.logger, j.Name(), func(ctx context.Context) error {
		expired, err := j.accounts.FindFrozenExpired(ctx, timeutil.Now())
		if err != nil {
			return err
		}

		var unfrozen, failed int
		for _, acc := range expired {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			acc.Unfreeze()
			if err := j.accounts.Update(ctx, acc); err != nil {
				failed++
				j.logger.Error("failed to unfreeze account", "account_id", acc.ID, "error", err)
				continue
			}
			unfrozen++
		}

		j.logger.Info("unfreeze sweep finished", "unfrozen", unfrozen, "failed", failed)
		return nil
	})
}
