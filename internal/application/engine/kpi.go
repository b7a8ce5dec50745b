package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bilim-hub/bilim-erp-core/internal/domain/account"
	"github.com/bilim-hub/bilim-erp-core/internal/domain/kpi"
	"github.com/bilim-hub/bilim-erp-core/internal/domain/ledger"
	"github.com/bilim-hub/bilim-erp-core/internal/domain/shared"
	"github.com/bilim-hub/bilim-erp-core/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// KPI ENGINE
// Периодический расчёт компенсаций по метрике платёжной дисциплины: доля
// активных ученических счетов с неотрицательным балансом. Метрика попадает
// в одну из настроенных процентных полос, и каждому активному сотруднику
// проводится бонус или штраф на сумму полосы.
// ══════════════════════════════════════════════════════════════════════════════

// KpiEngine computes the discipline metric and fans compensation out over
// the staff population.
type KpiEngine struct {
	accounts  account.Repository
	rules     kpi.Repository
	ledger    *LedgerEngine
	publisher shared.EventPublisher
	retrier   *retry.Retrier
	logger    *slog.Logger
}

// NewKpiEngine creates a KPI engine. Balance conflicts during the fan-out
// are retried with short backoff before the member is skipped.
//
// The ledger engine's registry must resolve both KPI reasons for staff
// accounts; a registry missing them fails construction, not the first
// monthly run.
func NewKpiEngine(
	accounts account.Repository,
	rules kpi.Repository,
	ledgerEngine *LedgerEngine,
	publisher shared.EventPublisher,
	logger *slog.Logger,
) (*KpiEngine, error) {
	for _, reason := range []ledger.Reason{ledger.ReasonKpiBonus, ledger.ReasonKpiFine} {
		if !ledgerEngine.Known(account.KindStaff, reason) {
			return nil, fmt.Errorf("reason %q is not registered for %s accounts: %w",
				reason, account.KindStaff, shared.ErrUnknownReason)
		}
	}

	return &KpiEngine{
		accounts:  accounts,
		rules:     rules,
		ledger:    ledgerEngine,
		publisher: publisher,
		retrier:   retry.BalanceConflictRetrier(),
		logger:    logger.With(slog.String("component", "kpi_engine")),
	}, nil
}

// KpiReport summarizes one KPI application run.
type KpiReport struct {
	// RulesetID - применённый набор правил.
	RulesetID string

	// Metric - вычисленная метрика, процент [0, 100].
	Metric float64

	// MatchedRuleID - правило, в полосу которого попала метрика. Пусто,
	// если ни одна полоса не накрыла метрику.
	MatchedRuleID string

	// Population - размер популяции сотрудников.
	Population int

	// Issued - сколько проводок реально создано.
	Issued int

	// Skipped - сколько сотрудников пропущено из-за ошибок.
	Skipped int

	// StartedAt / FinishedAt - границы прогона.
	StartedAt  time.Time
	FinishedAt time.Time
}

// ApplyForPeriod computes the metric, matches it against the ruleset and
// issues one transaction per active staff account.
//
// The metric snapshot is taken once, before the fan-out: a payment arriving
// mid-run does not change which rule applies. Per-member failures are
// retried on balance conflicts, then logged and skipped; the run never
// aborts because one member failed. Cancellation stops between members and
// returns the partial report with ctx.Err().
func (e *KpiEngine) ApplyForPeriod(ctx context.Context, rulesetID string) (*KpiReport, error) {
	report := &KpiReport{RulesetID: rulesetID, StartedAt: time.Now().UTC()}

	ruleset, err := e.rules.GetRuleset(ctx, rulesetID)
	if err != nil {
		return report, fmt.Errorf("load ruleset %s: %w", rulesetID, err)
	}

	metric, err := e.disciplineMetric(ctx)
	if err != nil {
		return report, err
	}
	report.Metric = metric

	rule, err := ruleset.Match(metric)
	if err != nil {
		if errors.Is(err, shared.ErrNoMatchingRule) {
			// Полосы не накрывают метрику - прогон пустой, но не ошибочный.
			report.FinishedAt = time.Now().UTC()
			e.logger.Warn("no rule matches metric",
				slog.String("ruleset_id", rulesetID),
				slog.Float64("metric", metric),
			)
			return report, nil
		}
		return report, err
	}
	report.MatchedRuleID = rule.ID

	reason := ledger.ReasonKpiBonus
	if rule.Action == kpi.ActionFine {
		reason = ledger.ReasonKpiFine
	}

	staff, err := e.accounts.GetActiveByKind(ctx, account.KindStaff)
	if err != nil {
		return report, fmt.Errorf("load staff population: %w", err)
	}
	report.Population = len(staff)

	e.logger.Info("kpi run started",
		slog.String("ruleset_id", rulesetID),
		slog.Float64("metric", metric),
		slog.String("rule_id", rule.ID),
		slog.String("reason", string(reason)),
		slog.Int("population", len(staff)),
	)

	comment := fmt.Sprintf("KPI %s: discipline metric %.2f%% in band [%.2f, %.2f)",
		rule.Action, metric, rule.From, rule.To)

	for _, member := range staff {
		select {
		case <-ctx.Done():
			report.FinishedAt = time.Now().UTC()
			e.logger.Warn("kpi run cancelled",
				slog.Int("issued", report.Issued),
				slog.Int("remaining", len(staff)-report.Issued-report.Skipped),
			)
			return report, ctx.Err()
		default:
		}

		err := e.retrier.Do(ctx, func(ctx context.Context) error {
			_, err := e.ledger.CreateTransaction(ctx, CreateTransactionInput{
				AccountID: member.ID,
				Reason:    reason,
				Amount:    rule.Amount,
				Comment:   comment,
			})
			if err != nil && shared.IsRetryable(err) {
				return retry.Retryable(err)
			}
			return err
		})
		if err != nil {
			report.Skipped++
			e.logger.Error("failed to issue kpi transaction",
				slog.String("account_id", member.ID),
				slog.Any("error", err),
			)
			continue
		}
		report.Issued++
	}

	report.FinishedAt = time.Now().UTC()

	e.logger.Info("kpi run finished",
		slog.String("ruleset_id", rulesetID),
		slog.Int("issued", report.Issued),
		slog.Int("skipped", report.Skipped),
	)

	if err := e.publisher.Publish(shared.NewKpiAppliedEvent(
		rulesetID, metric, report.Issued, report.Skipped,
	)); err != nil {
		e.logger.Warn("failed to publish kpi applied event", slog.Any("error", err))
	}

	return report, nil
}

// disciplineMetric returns the share of active student accounts with a
// non-negative balance, in percent. An empty population yields 100: no
// students means no debtors.
func (e *KpiEngine) disciplineMetric(ctx context.Context) (float64, error) {
	students, err := e.accounts.GetActiveByKind(ctx, account.KindStudent)
	if err != nil {
		return 0, fmt.Errorf("load student population: %w", err)
	}
	if len(students) == 0 {
		return 100, nil
	}

	nonNegative, err := e.accounts.CountNonNegativeByKind(ctx, account.KindStudent)
	if err != nil {
		return 0, fmt.Errorf("count non-negative students: %w", err)
	}

	return 100 * float64(nonNegative) / float64(len(students)), nil
}
