package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bilim-hub/bilim-erp-core/pkg/timeutil"
)

func TestIntervalSchedule(t *testing.T) {
	s := NewIntervalSchedule(6 * time.Hour)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, base.Add(6*time.Hour), s.Next(base))
	assert.Equal(t, "@every 6h0m0s", s.String())
}

func TestParseCron_Valid(t *testing.T) {
	cs, err := ParseCron("30 21 * * *")
	require.NoError(t, err)
	assert.Equal(t, []int{30}, cs.minutes)
	assert.Equal(t, []int{21}, cs.hours)
	assert.Len(t, cs.days, 31)
	assert.Equal(t, "30 21 * * *", cs.String())
}

func TestParseCron_StepsRangesLists(t *testing.T) {
	cs, err := ParseCron("*/15 9-11 1,15 * 1-5")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 15, 30, 45}, cs.minutes)
	assert.Equal(t, []int{9, 10, 11}, cs.hours)
	assert.Equal(t, []int{1, 15}, cs.days)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, cs.weekdays)
}

func TestParseCron_Invalid(t *testing.T) {
	cases := []string{
		"",
		"30 21 * *",
		"30 21 * * * *",
		"61 * * * *",
		"* 25 * * *",
		"*/x * * * *",
		"*/0 * * * *",
	}
	for _, expr := range cases {
		_, err := ParseCron(expr)
		assert.Error(t, err, "expression %q", expr)
	}
}

func TestCronSchedule_NextDaily(t *testing.T) {
	cs := MustParseCron("30 21 * * *")

	// Before the slot the same day.
	after := time.Date(2026, 5, 10, 14, 0, 0, 0, timeutil.TashkentTZ)
	next := cs.Next(after)
	assert.Equal(t, time.Date(2026, 5, 10, 21, 30, 0, 0, timeutil.TashkentTZ), next)

	// Exactly on the slot rolls over to the next day.
	next = cs.Next(next)
	assert.Equal(t, time.Date(2026, 5, 11, 21, 30, 0, 0, timeutil.TashkentTZ), next)
}

func TestCronSchedule_NextMonthly(t *testing.T) {
	cs := MustParseCron("0 23 28 * *")

	after := time.Date(2026, 2, 1, 0, 0, 0, 0, timeutil.TashkentTZ)
	next := cs.Next(after)
	assert.Equal(t, time.Date(2026, 2, 28, 23, 0, 0, 0, timeutil.TashkentTZ), next)

	// From just past the February slot the next match is in March.
	next = cs.Next(next)
	assert.Equal(t, time.Date(2026, 3, 28, 23, 0, 0, 0, timeutil.TashkentTZ), next)
}

func TestCronSchedule_NextWeekday(t *testing.T) {
	// Sundays at midnight. 2026-06-07 is a Sunday.
	cs := MustParseCron("0 0 * * 0")

	after := time.Date(2026, 6, 3, 12, 0, 0, 0, timeutil.TashkentTZ)
	next := cs.Next(after)
	assert.Equal(t, time.Date(2026, 6, 7, 0, 0, 0, 0, timeutil.TashkentTZ), next)
	assert.Equal(t, time.Sunday, next.Weekday())
}

func TestMustParseCron_Panics(t *testing.T) {
	assert.Panics(t, func() {
		MustParseCron("not a cron")
	})
}
