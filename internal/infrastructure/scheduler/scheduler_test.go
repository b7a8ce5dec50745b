package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubJob struct {
	name string
	runs int
	err  error
}

func (j *stubJob) Name() string        { return j.name }
func (j *stubJob) Description() string { return "stub job" }

func (j *stubJob) Run(ctx context.Context) error {
	j.runs++
	return j.err
}

func newTestScheduler() *Scheduler {
	return NewScheduler(SchedulerConfig{
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		MaxHistorySize: 5,
	})
}

func TestScheduler_Register(t *testing.T) {
	s := newTestScheduler()
	job := &stubJob{name: "sweep"}

	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))

	err := s.Register(job, NewIntervalSchedule(time.Hour))
	assert.ErrorIs(t, err, ErrJobAlreadyExists)

	assert.ErrorIs(t, s.Register(nil, NewIntervalSchedule(time.Hour)), ErrNilJob)
	assert.ErrorIs(t, s.Register(&stubJob{name: "other"}, nil), ErrNilSchedule)

	jobs := s.ListJobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "sweep", jobs[0].Name)
	assert.True(t, jobs[0].Enabled)
	assert.False(t, jobs[0].NextRun.IsZero())
}

func TestScheduler_RunNow(t *testing.T) {
	s := newTestScheduler()
	job := &stubJob{name: "sweep"}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))

	result, err := s.RunNow(context.Background(), "sweep")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.True(t, result.Manual)
	assert.Equal(t, 1, job.runs)

	_, err = s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestScheduler_RunNowFailure(t *testing.T) {
	s := newTestScheduler()
	boom := errors.New("sweep failed")
	job := &stubJob{name: "sweep", err: boom}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))

	result, err := s.RunNow(context.Background(), "sweep")
	assert.ErrorIs(t, err, boom)
	require.NotNil(t, result)
	assert.False(t, result.Success)

	snapshot := s.GetMetrics().Snapshot()
	assert.Equal(t, int64(1), snapshot.TotalFailures)
	assert.Equal(t, int64(1), s.GetMetrics().FailuresByJob["sweep"])
}

func TestScheduler_HistoryBounded(t *testing.T) {
	s := newTestScheduler()
	job := &stubJob{name: "sweep"}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))

	for i := 0; i < 8; i++ {
		_, err := s.RunNow(context.Background(), "sweep")
		require.NoError(t, err)
	}

	history := s.GetHistory(0)
	assert.Len(t, history, 5)

	history = s.GetHistory(2)
	assert.Len(t, history, 2)
}

func TestScheduler_StartStop(t *testing.T) {
	s := newTestScheduler()
	require.NoError(t, s.Register(&stubJob{name: "sweep"}, NewIntervalSchedule(time.Hour)))

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)
}

func TestScheduler_EnableDisable(t *testing.T) {
	s := newTestScheduler()
	require.NoError(t, s.Register(&stubJob{name: "sweep"}, NewIntervalSchedule(time.Hour)))

	require.NoError(t, s.DisableJob("sweep"))
	assert.False(t, s.ListJobs()[0].Enabled)

	require.NoError(t, s.EnableJob("sweep"))
	assert.True(t, s.ListJobs()[0].Enabled)

	assert.ErrorIs(t, s.DisableJob("missing"), ErrJobNotFound)
}
