package proofcoordinator

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/0xkanth/mojave-sequencer/internal/task"
)

// Spawn launches the coordinator as a task. The worker stops when ctx is
// cancelled; the leader coordinator stops it that way on step-down and
// does not call Release on the returned handle.
func Spawn(ctx context.Context, c *Coordinator, logger zerolog.Logger) *task.Handle[Request, Response] {
	return task.Spawn(ctx, c, task.DefaultCapacity, logger)
}

var _ task.Task[Request, Response] = (*Coordinator)(nil)
