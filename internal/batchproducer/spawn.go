package batchproducer

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/0xkanth/mojave-sequencer/internal/task"
	"github.com/0xkanth/mojave-sequencer/pkg/rolluptypes"
)

// Spawn starts the periodic batch-build task on interval. The worker and
// its ticker stop when ctx is cancelled; the leader coordinator stops
// them that way on step-down and does not call Release on the handle.
func Spawn(ctx context.Context, p *Producer, interval time.Duration, logger zerolog.Logger) *task.Handle[tick, *rolluptypes.Batch] {
	if interval <= 0 {
		interval = DefaultBuildInterval
	}
	return task.SpawnPeriodic(ctx, p, task.DefaultCapacity, interval, func() tick { return tick{} }, logger)
}

var _ task.Task[tick, *rolluptypes.Batch] = (*Producer)(nil)
