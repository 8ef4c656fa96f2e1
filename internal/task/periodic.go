package task

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// SpawnPeriodic spawns t the same way Spawn does, and additionally starts
// a ticker goroutine that calls makeRequest every interval and sends the
// result as a blocking request. A tick that fires while the previous
// request is still in flight waits for it to finish before re-arming —
// a delay policy, never a coalesce-and-burst of queued ticks.
func SpawnPeriodic[Req any, Resp any](ctx context.Context, t Task[Req, Resp], capacity int, interval time.Duration, makeRequest func() Req, logger zerolog.Logger) *Handle[Req, Resp] {
	h := Spawn(ctx, t, capacity, logger)

	go func() {
		timer := time.NewTimer(interval)
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
				req := makeRequest()
				if _, err := h.RequestBlocking(ctx, req); err != nil {
					logger.Warn().Err(err).Msg("periodic tick request failed")
				}
				timer.Reset(interval)
			}
		}
	}()

	return h
}
