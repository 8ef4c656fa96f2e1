// Package task implements the generic request/reply actor used by every
// long-lived subsystem in the coordination core (block producer, batch
// producer, proof coordinator, prover worker, ...). An implementer
// supplies a Task[Req, Resp]; Spawn turns it into a goroutine reachable
// only through a cloneable Handle.
package task

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/0xkanth/mojave-sequencer/internal/mjerr"
)

// DefaultCapacity is used by producer tasks unless a caller overrides it.
const DefaultCapacity = 100

// Task is implemented by every subsystem that wants actor semantics.
// HandleRequest is called sequentially, in FIFO order, for every request
// delivered to the spawned worker; it must not block on unbounded work.
type Task[Req any, Resp any] interface {
	OnStart(ctx context.Context) error
	HandleRequest(ctx context.Context, req Req) (Resp, error)
	OnShutdown(ctx context.Context)
}

type requestEnvelope[Req any, Resp any] struct {
	req   Req
	reply chan result[Resp]
}

type result[Resp any] struct {
	resp Resp
	err  error
}

// Handle is a cloneable reference to a running task. Clone increments
// its clone count (copying the struct value does not); call Release when
// a clone is done with it. When the logical clone count reaches zero, a best-effort
// asynchronous shutdown is fired, mirroring the source's
// drop-last-clone-triggers-shutdown behaviour with Go's explicit-release
// idiom.
type Handle[Req any, Resp any] struct {
	requests chan requestEnvelope[Req, Resp]
	shutdown chan chan struct{}
	refs     *atomic.Int32
	logger   zerolog.Logger
}

// Clone returns a new reference to the same task, bumping the refcount.
func (h *Handle[Req, Resp]) Clone() *Handle[Req, Resp] {
	h.refs.Add(1)
	clone := *h
	return &clone
}

// Release drops this reference. If it was the last outstanding clone, a
// best-effort shutdown is fired in the background.
func (h *Handle[Req, Resp]) Release() {
	if h.refs.Add(-1) == 0 {
		go func() {
			if _, err := h.Shutdown(context.Background()); err != nil {
				h.logger.Warn().Err(err).Msg("best-effort shutdown on last release failed")
			}
		}()
	}
}

// Request sends req and blocks for the worker's reply. Fails with
// mjerr.Full if the request channel is saturated (a blocking send would
// suspend instead, see RequestBlocking), with mjerr.Stopped if the
// worker has already exited.
func (h *Handle[Req, Resp]) Request(ctx context.Context, req Req) (Resp, error) {
	var zero Resp
	reply := make(chan result[Resp], 1)
	select {
	case h.requests <- requestEnvelope[Req, Resp]{req: req, reply: reply}:
	case <-ctx.Done():
		return zero, ctx.Err()
	default:
		return zero, mjerr.Full()
	}
	select {
	case r := <-reply:
		return r.resp, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// RequestBlocking is Request without the non-blocking fast path; used by
// periodic tickers, which must suspend rather than drop a tick.
func (h *Handle[Req, Resp]) RequestBlocking(ctx context.Context, req Req) (Resp, error) {
	var zero Resp
	reply := make(chan result[Resp], 1)
	select {
	case h.requests <- requestEnvelope[Req, Resp]{req: req, reply: reply}:
	case <-ctx.Done():
		return zero, ctx.Err()
	}
	select {
	case r := <-reply:
		return r.resp, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Shutdown signals the worker to stop and waits for OnShutdown to run.
func (h *Handle[Req, Resp]) Shutdown(ctx context.Context) (struct{}, error) {
	done := make(chan struct{})
	select {
	case h.shutdown <- done:
	case <-ctx.Done():
		return struct{}{}, ctx.Err()
	default:
		return struct{}{}, mjerr.Stopped()
	}
	select {
	case <-done:
		return struct{}{}, nil
	case <-ctx.Done():
		return struct{}{}, ctx.Err()
	}
}

// Spawn launches t on its own goroutine and returns a handle to it.
func Spawn[Req any, Resp any](ctx context.Context, t Task[Req, Resp], capacity int, logger zerolog.Logger) *Handle[Req, Resp] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	h := &Handle[Req, Resp]{
		requests: make(chan requestEnvelope[Req, Resp], capacity),
		shutdown: make(chan chan struct{}, 1),
		refs:     &atomic.Int32{},
		logger:   logger,
	}
	h.refs.Store(1)

	go runWorker(ctx, t, h, logger)

	return h
}

func runWorker[Req any, Resp any](ctx context.Context, t Task[Req, Resp], h *Handle[Req, Resp], logger zerolog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("task worker panicked; it is now unreachable")
		}
	}()

	if err := t.OnStart(ctx); err != nil {
		logger.Error().Err(err).Msg("task OnStart failed")
	}

	for {
		select {
		case env := <-h.requests:
			resp, err := t.HandleRequest(ctx, env.req)
			env.reply <- result[Resp]{resp: resp, err: err}
		case done := <-h.shutdown:
			t.OnShutdown(ctx)
			close(done)
			return
		case <-ctx.Done():
			t.OnShutdown(ctx)
			return
		}
	}
}
