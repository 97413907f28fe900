package bot

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/checkmate/checkmate/internal/bot/tasks"
	"github.com/checkmate/checkmate/internal/config"
	"github.com/checkmate/checkmate/internal/webhook"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type countingWaiter struct {
	calls atomic.Int32
}

func (w *countingWaiter) Wait() { w.calls.Add(1) }

func noopTask(context.Context) error { return nil }

func TestScheduler_Start(t *testing.T) {
	t.Parallel()

	cfg := &config.SchedulerConfig{Tasks: map[string]config.TaskConfig{
		"enabled":  {Enabled: true, Schedule: "0 0 3 * * *"},
		"disabled": {Enabled: false, Schedule: "0 0 3 * * *"},
		"unknown":  {Enabled: true, Schedule: "0 0 3 * * *"},
		"bad_cron": {Enabled: true, Schedule: "not a cron"},
	}}
	taskMap := map[string]tasks.ScheduledTaskFunc{
		"enabled":  noopTask,
		"disabled": noopTask,
		"bad_cron": noopTask,
	}

	s, err := NewScheduler(discardLogger(), cfg, taskMap)
	require.NoError(t, err)

	require.NoError(t, s.Start())
	assert.Equal(t, 1, s.jobs)
	assert.Error(t, s.Start(), "starting twice must fail")

	require.NoError(t, s.Stop())
	assert.NoError(t, s.Stop(), "stopping a stopped scheduler is a no-op")
}

func TestScheduler_NoTasks(t *testing.T) {
	t.Parallel()

	s, err := NewScheduler(discardLogger(), nil, nil)
	require.NoError(t, err)
	require.NoError(t, s.Start())
	assert.Zero(t, s.jobs)
	require.NoError(t, s.Stop())
}

func TestBot_RunDrainsWaitersOnShutdown(t *testing.T) {
	t.Parallel()

	s, err := NewScheduler(discardLogger(), nil, nil)
	require.NoError(t, err)

	waiter := &countingWaiter{}
	b := NewBot(discardLogger(), Options{
		Server:          webhook.NewServer("127.0.0.1:0", discardLogger()),
		ShutdownTimeout: time.Second,
		Scheduler:       s,
		Waiters:         []Waiter{waiter},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	assert.Equal(t, int32(1), waiter.calls.Load())
}
