package task_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/0xkanth/mojave-sequencer/internal/task"
)

type echoTask struct {
	started  atomic.Bool
	shutdown atomic.Bool
}

func (e *echoTask) OnStart(ctx context.Context) error { e.started.Store(true); return nil }
func (e *echoTask) HandleRequest(ctx context.Context, req int) (int, error) {
	return req * 2, nil
}
func (e *echoTask) OnShutdown(ctx context.Context) { e.shutdown.Store(true) }

func TestSpawnRequestReply(t *testing.T) {
	ctx := context.Background()
	et := &echoTask{}
	h := task.Spawn[int, int](ctx, et, 4, zerolog.Nop())

	resp, err := h.Request(ctx, 21)
	require.NoError(t, err)
	require.Equal(t, 42, resp)
	require.Eventually(t, et.started.Load, time.Second, time.Millisecond)
}

func TestSpawnFIFOOrdering(t *testing.T) {
	ctx := context.Background()
	et := &echoTask{}
	h := task.Spawn[int, int](ctx, et, 8, zerolog.Nop())

	for i := 0; i < 5; i++ {
		resp, err := h.Request(ctx, i)
		require.NoError(t, err)
		require.Equal(t, i*2, resp)
	}
}

func TestShutdownRunsOnShutdownHook(t *testing.T) {
	ctx := context.Background()
	et := &echoTask{}
	h := task.Spawn[int, int](ctx, et, 4, zerolog.Nop())

	_, err := h.Shutdown(ctx)
	require.NoError(t, err)
	require.True(t, et.shutdown.Load())
}

func TestReleaseLastCloneTriggersShutdown(t *testing.T) {
	ctx := context.Background()
	et := &echoTask{}
	h := task.Spawn[int, int](ctx, et, 4, zerolog.Nop())
	clone := h.Clone()

	h.Release()
	require.False(t, et.shutdown.Load(), "shutdown must not fire while a clone remains")

	clone.Release()
	require.Eventually(t, et.shutdown.Load, time.Second, time.Millisecond)
}

func TestSpawnPeriodicFiresOnInterval(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	et := &echoTask{}
	task.SpawnPeriodic[int, int](ctx, et, 4, 10*time.Millisecond, func() int {
		calls.Add(1)
		return 1
	}, zerolog.Nop())

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
}
