package scheduler

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/rulegate/internal/clock"
	"grimm.is/rulegate/internal/logging"
)

// futureSchedule returns time + 1 hour
type futureSchedule struct{}

func (s futureSchedule) Next(t time.Time) time.Time {
	return t.Add(time.Hour)
}

func quietScheduler() *Scheduler {
	s := New(logging.New(logging.Config{Output: io.Discard, Diagnostics: logging.NewRingBuffer(10)}))
	s.tick = 5 * time.Millisecond
	return s
}

func TestIntervalSchedule(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, now.Add(time.Hour), Every(time.Hour).Next(now))
}

func TestAddTask_Validation(t *testing.T) {
	s := quietScheduler()
	noop := func(context.Context) error { return nil }

	assert.Error(t, s.AddTask(&Task{Schedule: futureSchedule{}, Func: noop}), "missing id")
	assert.Error(t, s.AddTask(&Task{ID: "a", Func: noop}), "missing schedule")
	assert.Error(t, s.AddTask(&Task{ID: "a", Schedule: futureSchedule{}}), "missing func")

	require.NoError(t, s.AddTask(&Task{ID: "a", Name: "A", Schedule: futureSchedule{}, Func: noop, Enabled: true}))
	assert.Error(t, s.AddTask(&Task{ID: "a", Schedule: futureSchedule{}, Func: noop}), "duplicate")

	st, ok := s.GetTaskStatus("a")
	require.True(t, ok)
	assert.False(t, st.NextRun.IsZero())
	assert.Len(t, s.GetStatus(), 1)
}

func TestRunTask(t *testing.T) {
	s := quietScheduler()
	assert.Error(t, s.RunTask("missing"))

	ran := make(chan struct{})
	require.NoError(t, s.AddTask(&Task{
		ID:       "manual",
		Name:     "Manual",
		Schedule: futureSchedule{},
		Func: func(context.Context) error {
			close(ran)
			return nil
		},
	}))
	assert.Error(t, s.RunTask("manual"), "not started")

	s.Start(context.Background())
	defer s.Stop()
	require.NoError(t, s.RunTask("manual"))

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for manual task run")
	}
}

func TestEvery_RunsAndRecordsErrors(t *testing.T) {
	mock := clock.NewMockClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	defer clock.Use(mock)()

	s := quietScheduler()
	var runs atomic.Int32
	require.NoError(t, s.Every("prune", "Prune", time.Minute, func(context.Context) error {
		runs.Add(1)
		return errors.New("db locked")
	}))

	s.Start(context.Background())
	defer s.Stop()

	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, runs.Load(), "not due yet")

	mock.Advance(time.Minute)
	require.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		st, _ := s.GetTaskStatus("prune")
		return st.ErrorCount == 1
	}, time.Second, 5*time.Millisecond)

	st, _ := s.GetTaskStatus("prune")
	assert.Equal(t, "db locked", st.LastError)
	assert.Equal(t, mock.Now().Add(time.Minute), st.NextRun)
}

func TestRunOnStart(t *testing.T) {
	s := quietScheduler()
	ran := make(chan struct{})
	require.NoError(t, s.AddTask(&Task{
		ID:         "start-run",
		Name:       "Start Run",
		Enabled:    true,
		RunOnStart: true,
		Schedule:   futureSchedule{},
		Func: func(context.Context) error {
			close(ran)
			return nil
		},
	}))

	s.Start(context.Background())
	defer s.Stop()

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("task with RunOnStart did not run on start")
	}
}

func TestStop_CancelsRunningTask(t *testing.T) {
	s := quietScheduler()
	started := make(chan struct{})
	require.NoError(t, s.AddTask(&Task{
		ID:         "slow",
		Enabled:    true,
		RunOnStart: true,
		Schedule:   futureSchedule{},
		Func: func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			return ctx.Err()
		},
	}))

	s.Start(context.Background())
	<-started
	s.Stop()
	assert.False(t, s.IsRunning())

	st, _ := s.GetTaskStatus("slow")
	assert.Equal(t, int64(1), st.RunCount)
}

func TestStart_StopsWithContext(t *testing.T) {
	s := quietScheduler()
	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	require.True(t, s.IsRunning())

	cancel()
	require.Eventually(t, func() bool { return !s.IsRunning() }, time.Second, 5*time.Millisecond)
}
