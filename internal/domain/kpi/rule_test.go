package kpi

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bilim-hub/bilim-erp-core/internal/domain/shared"
)

func testRuleset(t *testing.T) *Ruleset {
	t.Helper()
	rs, err := NewRuleset("rs-1", []*Rule{
		{ID: "low", From: 0, To: 50, Action: ActionFine, Amount: decimal.NewFromInt(100000), Position: 1},
		{ID: "mid", From: 50, To: 80, Action: ActionBonus, Amount: decimal.NewFromInt(50000), Position: 2},
		{ID: "high", From: 80, To: 101, Action: ActionBonus, Amount: decimal.NewFromInt(200000), Position: 3},
	})
	require.NoError(t, err)
	return rs
}

func TestRuleset_Match(t *testing.T) {
	rs := testRuleset(t)

	cases := []struct {
		metric float64
		ruleID string
	}{
		{0, "low"},
		{49.99, "low"},
		{50, "mid"}, // lower bound inclusive, upper exclusive
		{79.99, "mid"},
		{80, "high"},
		{100, "high"},
	}
	for _, tc := range cases {
		rule, err := rs.Match(tc.metric)
		require.NoError(t, err, "metric %v", tc.metric)
		assert.Equal(t, tc.ruleID, rule.ID, "metric %v", tc.metric)
	}
}

func TestRuleset_Match_NoBand(t *testing.T) {
	rs, err := NewRuleset("rs-2", []*Rule{
		{ID: "only", From: 0, To: 50, Action: ActionFine, Amount: decimal.NewFromInt(1), Position: 1},
	})
	require.NoError(t, err)

	_, err = rs.Match(75)
	assert.ErrorIs(t, err, shared.ErrNoMatchingRule)
}

func TestRuleset_Match_OverlapResolvedByPosition(t *testing.T) {
	rs, err := NewRuleset("rs-3", []*Rule{
		{ID: "second", From: 0, To: 100, Action: ActionBonus, Amount: decimal.NewFromInt(2), Position: 2},
		{ID: "first", From: 40, To: 60, Action: ActionFine, Amount: decimal.NewFromInt(1), Position: 1},
	})
	require.NoError(t, err)

	rule, err := rs.Match(50)
	require.NoError(t, err)
	assert.Equal(t, "first", rule.ID)
}

func TestRuleset_Deterministic(t *testing.T) {
	rs := testRuleset(t)

	first, err := rs.Match(65)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := rs.Match(65)
		require.NoError(t, err)
		assert.Equal(t, first.ID, again.ID)
	}
}

func TestNewRuleset_RejectsInvalidRules(t *testing.T) {
	_, err := NewRuleset("bad", []*Rule{
		{ID: "inverted", From: 60, To: 40, Action: ActionBonus, Amount: decimal.NewFromInt(1)},
	})
	assert.Error(t, err)

	_, err = NewRuleset("bad", []*Rule{
		{ID: "negative", From: 0, To: 50, Action: ActionFine, Amount: decimal.NewFromInt(-5)},
	})
	assert.Error(t, err)

	_, err = NewRuleset("bad", []*Rule{
		{ID: "action", From: 0, To: 50, Action: RuleAction("REBATE"), Amount: decimal.NewFromInt(5)},
	})
	assert.Error(t, err)
}

func TestRule_Contains(t *testing.T) {
	r := &Rule{ID: "r", From: 10, To: 20, Action: ActionBonus, Amount: decimal.NewFromInt(1)}

	assert.True(t, r.Contains(10))
	assert.True(t, r.Contains(19.999))
	assert.False(t, r.Contains(20))
	assert.False(t, r.Contains(9.999))
}
