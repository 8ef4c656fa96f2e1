package blockqueue

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/0xkanth/mojave-sequencer/internal/chainstore"
	"github.com/0xkanth/mojave-sequencer/pkg/rolluptypes"
)

// Processor drains a Queue with PopWait and, for every block, appends it
// to the chain store and advances fork choice. It is not a request/reply
// actor (nothing calls into it besides the queue itself) so it is
// implemented as a plain cancellable loop, the same shape as the
// source's block_process.rs tokio::select! loop.
type Processor struct {
	queue  *Queue
	chain  chainstore.ChainStore
	logger zerolog.Logger

	wg sync.WaitGroup
}

func NewProcessor(queue *Queue, chain chainstore.ChainStore, logger zerolog.Logger) *Processor {
	return &Processor{queue: queue, chain: chain, logger: logger.With().Str("component", "blockqueue.processor").Logger()}
}

// Start launches the drain loop; it returns once ctx is cancelled.
func (p *Processor) Start(ctx context.Context) {
	p.wg.Add(1)
	go p.run(ctx)
}

// Wait blocks until the drain loop has fully exited.
func (p *Processor) Wait() { p.wg.Wait() }

func (p *Processor) run(ctx context.Context) {
	defer p.wg.Done()

	for {
		block := p.popWaitOrDone(ctx)
		if block == nil {
			return
		}

		if err := p.chain.AddBlock(ctx, block); err != nil {
			p.logger.Error().Err(err).Uint64("number", block.Number()).Msg("add_block failed; block may be superseded by a later canonical one")
			continue
		}

		if err := p.chain.UpdateEarliestBlock(ctx, block.Number()); err != nil {
			p.logger.Error().Err(err).Msg("update earliest block failed")
		}

		if err := p.chain.UpdateForkChoice(ctx, block.Number(), block.Hash()); err != nil {
			p.logger.Error().Err(err).Msg("update fork choice failed")
		}
	}
}

// popWaitOrDone pops the next block, honoring ctx cancellation. Returns
// nil only when ctx is done. On cancellation the spawned PopWait
// goroutine stays blocked until the next push; harmless since the
// process exits shortly after shutdown.
func (p *Processor) popWaitOrDone(ctx context.Context) *rolluptypes.Block {
	result := make(chan *rolluptypes.Block, 1)
	go func() { result <- p.queue.PopWait() }()

	select {
	case block := <-result:
		return block
	case <-ctx.Done():
		return nil
	}
}
