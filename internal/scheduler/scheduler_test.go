package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipstream/aria2d/internal/testutil"
)

func newScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s, err := New(testutil.NewTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { s.Stop() })
	return s
}

func TestRegisterTask_Duplicate(t *testing.T) {
	s := newScheduler(t)
	cfg := TaskConfig{ID: "stats", Name: "Stats", Cron: "*/2 * * * * *", Func: func(context.Context) error { return nil }}

	require.NoError(t, s.RegisterTask(cfg))
	assert.Error(t, s.RegisterTask(cfg))
}

func TestRegisterTask_InvalidCron(t *testing.T) {
	s := newScheduler(t)
	err := s.RegisterTask(TaskConfig{ID: "bad", Cron: "not a cron", Func: func(context.Context) error { return nil }})
	assert.Error(t, err)
}

func TestRegisterTask_NoFunc(t *testing.T) {
	s := newScheduler(t)
	assert.Error(t, s.RegisterTask(TaskConfig{ID: "empty", Cron: "* * * * * *"}))
}

func TestRunNow(t *testing.T) {
	s := newScheduler(t)
	boom := errors.New("engine unreachable")
	var runs atomic.Int32

	require.NoError(t, s.RegisterTask(TaskConfig{
		ID:   "stats",
		Name: "Stats",
		Cron: "0 0 0 1 1 *",
		Func: func(context.Context) error {
			runs.Add(1)
			return boom
		},
	}))

	require.NoError(t, s.RunNow("stats"))
	assert.Equal(t, int32(1), runs.Load())

	info, err := s.GetTask("stats")
	require.NoError(t, err)
	assert.NotNil(t, info.LastRun)
	assert.Equal(t, "engine unreachable", info.LastErr)
	assert.False(t, info.Running)

	assert.Error(t, s.RunNow("missing"))
}

func TestRunNow_Timeout(t *testing.T) {
	s := newScheduler(t)
	var sawDeadline atomic.Bool

	require.NoError(t, s.RegisterTask(TaskConfig{
		ID:      "slow",
		Cron:    "0 0 0 1 1 *",
		Timeout: time.Second,
		Func: func(ctx context.Context) error {
			_, ok := ctx.Deadline()
			sawDeadline.Store(ok)
			return nil
		},
	}))

	require.NoError(t, s.RunNow("slow"))
	assert.True(t, sawDeadline.Load())
}

func TestStart_RunsOnSchedule(t *testing.T) {
	s := newScheduler(t)
	var runs atomic.Int32

	require.NoError(t, s.RegisterTask(TaskConfig{
		ID:         "tick",
		Cron:       "* * * * * *",
		RunOnStart: true,
		Func: func(context.Context) error {
			runs.Add(1)
			return nil
		},
	}))

	s.Start()
	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, 5*time.Second, 50*time.Millisecond)
}

func TestGetTask_NotFound(t *testing.T) {
	s := newScheduler(t)
	_, err := s.GetTask("nope")
	assert.Error(t, err)
}

func TestListTasks_Sorted(t *testing.T) {
	s := newScheduler(t)
	noop := func(context.Context) error { return nil }

	require.NoError(t, s.RegisterTask(TaskConfig{ID: "b", Name: "B", Cron: "0 0 0 1 1 *", Func: noop}))
	require.NoError(t, s.RegisterTask(TaskConfig{ID: "a", Name: "A", Cron: "0 0 0 1 1 *", Func: noop}))

	tasks := s.ListTasks()
	require.Len(t, tasks, 2)
	assert.Equal(t, "a", tasks[0].ID)
	assert.Equal(t, "b", tasks[1].ID)
}
