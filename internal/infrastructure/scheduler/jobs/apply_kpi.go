package jobs

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/bilim-hub/bilim-erp-core/internal/application/engine"
)

// ══════════════════════════════════════════════════════════════════════════════
// APPLY KPI JOB
// ══════════════════════════════════════════════════════════════════════════════

// ApplyKpiJob computes the discipline metric and issues the matching bonus or
// fine to every active staff account. Scheduled for the end of each month.
type ApplyKpiJob struct {
	kpi       *engine.KpiEngine
	rulesetID string
	lock      Locker
	logger    *slog.Logger
	timeout   time.Duration

	lastReport atomic.Value // *engine.KpiReport
}

// NewApplyKpiJob creates a new KPI application job for the given ruleset.
func NewApplyKpiJob(kpi *engine.KpiEngine, rulesetID string, lock Locker, logger *slog.Logger, timeout time.Duration) *ApplyKpiJob {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 15 * time.Minute
	}

	return &ApplyKpiJob{
		kpi:       kpi,
		rulesetID: rulesetID,
		lock:      lock,
		logger:    logger,
		timeout:   timeout,
	}
}

// Name implements scheduler.Job.
func (j *ApplyKpiJob) Name() string {
	return "apply_kpi"
}

// Description implements scheduler.Job.
func (j *ApplyKpiJob) Description() string {
	return "Issues KPI bonuses or fines to staff accounts based on the discipline metric"
}

// Run implements scheduler.Job.
func (j *ApplyKpiJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	return runLocked(ctx, j.lock, j.logger, j.Name(), func(ctx context.Context) error {
		report, err := j.kpi.ApplyForPeriod(ctx, j.rulesetID)
		if report != nil {
			j.lastReport.Store(report)

			j.logger.Info("kpi run finished",
				"ruleset_id", report.RulesetID,
				"metric", report.Metric,
				"matched_rule_id", report.MatchedRuleID,
				"population", report.Population,
				"issued", report.Issued,
				"skipped", report.Skipped,
				"duration", report.FinishedAt.Sub(report.StartedAt).String(),
			)
		}
		return err
	})
}

// LastReport returns the report of the most recent run, or nil.
func (j *ApplyKpiJob) LastReport() *engine.KpiReport {
	report, _ := j.lastReport.Load().(*engine.KpiReport)
	return report
}
