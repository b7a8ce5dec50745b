package postgres

import (
	"context"
	"fmt"

	"github.com/bilim-hub/bilim-erp-core/internal/domain/kpi"
	"github.com/bilim-hub/bilim-erp-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// KPI REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// KpiRepository implements kpi.Repository for PostgreSQL.
type KpiRepository struct {
	conn *Connection
}

// NewKpiRepository creates a new KpiRepository.
func NewKpiRepository(conn *Connection) *KpiRepository {
	return &KpiRepository{conn: conn}
}

// GetRuleset returns a ruleset with its rules in configured order.
func (r *KpiRepository) GetRuleset(ctx context.Context, id string) (*kpi.Ruleset, error) {
	var exists bool
	err := r.conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM kpi_rulesets WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check ruleset: %w", err)
	}
	if !exists {
		return nil, shared.NewDomainError("kpi", "GetRuleset", shared.ErrNotFound, "ruleset not found")
	}

	query := `
		SELECT id, range_from, range_to, action, amount, position
		FROM kpi_rules
		WHERE ruleset_id = $1
		ORDER BY position
	`

	rows, err := r.conn.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query kpi rules: %w", err)
	}
	defer rows.Close()

	var rules []*kpi.Rule
	for rows.Next() {
		var rule kpi.Rule
		var action string

		if err := rows.Scan(&rule.ID, &rule.From, &rule.To, &action, &rule.Amount, &rule.Position); err != nil {
			return nil, fmt.Errorf("failed to scan kpi rule: %w", err)
		}
		rule.Action = kpi.RuleAction(action)
		rules = append(rules, &rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate kpi rules: %w", err)
	}

	return kpi.NewRuleset(id, rules)
}
