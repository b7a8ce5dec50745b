package jobs

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/bilim-hub/bilim-erp-core/internal/application/engine"
	"github.com/bilim-hub/bilim-erp-core/internal/domain/account"
)

// ══════════════════════════════════════════════════════════════════════════════
// VERIFY BALANCES JOB
// ══════════════════════════════════════════════════════════════════════════════

// VerifyBalancesJob recomputes every account balance from the transaction
// ledger and reports drift. Stored balances are a cached projection; the sum
// of effective amounts is the truth.
type VerifyBalancesJob struct {
	ledger   *engine.LedgerEngine
	accounts account.Repository
	lock     Locker
	logger   *slog.Logger
	timeout  time.Duration

	lastStats atomic.Value // *VerifyBalancesStats
}

// VerifyBalancesStats contains the result of a verification sweep.
type VerifyBalancesStats struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Checked    int
	Drifted    int
	Failures   int
}

// NewVerifyBalancesJob creates a new balance verification job.
func NewVerifyBalancesJob(ledger *engine.LedgerEngine, accounts account.Repository, lock Locker, logger *slog.Logger, timeout time.Duration) *VerifyBalancesJob {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}

	return &VerifyBalancesJob{
		ledger:   ledger,
		accounts: accounts,
		lock:     lock,
		logger:   logger,
		timeout:  timeout,
	}
}

// Name implements scheduler.Job.
func (j *VerifyBalancesJob) Name() string {
	return "verify_balances"
}

// Description implements scheduler.Job.
func (j *VerifyBalancesJob) Description() string {
	return "Recomputes account balances from the ledger and reports drift"
}

// Run implements scheduler.Job.
func (j *VerifyBalancesJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	return runLocked(ctx, j.lock, j.logger, j.Name(), func(ctx context.Context) error {
		stats := &VerifyBalancesStats{StartedAt: time.Now()}
		defer func() {
			stats.FinishedAt = time.Now()
			j.lastStats.Store(stats)

			j.logger.Info("balance verification finished",
				"checked", stats.Checked,
				"drifted", stats.Drifted,
				"failures", stats.Failures,
				"duration", stats.FinishedAt.Sub(stats.StartedAt).String(),
			)
		}()

		for _, kind := range []account.Kind{account.KindStudent, account.KindStaff} {
			accounts, err := j.accounts.GetByKind(ctx, kind)
			if err != nil {
				return err
			}

			for _, acc := range accounts {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}

				verification, err := j.ledger.VerifyBalance(ctx, acc.ID)
				if err != nil {
					stats.Failures++
					j.logger.Error("balance verification failed", "account_id", acc.ID, "error", err)
					continue
				}

				stats.Checked++
				if !verification.Consistent() {
					stats.Drifted++
					j.logger.Warn("balance drift detected",
						"account_id", acc.ID,
						"stored", verification.StoredBalance.String(),
						"ledger_sum", verification.LedgerSum.String(),
					)
				}
			}
		}

		return nil
	})
}

// LastStats returns the stats of the most recent run, or nil.
func (j *VerifyBalancesJob) LastStats() *VerifyBalancesStats {
	stats, _ := j.lastStats.Load().(*VerifyBalancesStats)
	return stats
}
