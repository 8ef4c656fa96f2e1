// Package ingestor implements the pending block ingestor (C6): signed
// blocks are verified and pushed to a pending heap; a background loop
// pops them in height order, gap-filling missing heights from an
// upstream chain RPC.
package ingestor

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/0xkanth/mojave-sequencer/internal/blockqueue"
	"github.com/0xkanth/mojave-sequencer/internal/heap"
	"github.com/0xkanth/mojave-sequencer/internal/mjerr"
	"github.com/0xkanth/mojave-sequencer/internal/signature"
	"github.com/0xkanth/mojave-sequencer/pkg/rolluptypes"
)

// MinBackoff is the minimum delay between failed upstream-fetch retries.
const MinBackoff = 1 * time.Second

// Upstream is the gap-fill collaborator: an RPC client able to fetch a
// canonical block by number from another node.
type Upstream interface {
	BlockByNumber(ctx context.Context, number uint64) (*rolluptypes.Block, error)
}

// Ingestor owns the pending heap and drives the gap-filling loop.
type Ingestor struct {
	pending  *heap.UniqueHeap[uint64, rolluptypes.OrderedBlock]
	queue    *blockqueue.Queue
	verifier signature.Verifier
	upstream Upstream
	logger   zerolog.Logger

	mu           sync.Mutex
	nextExpected uint64
}

func New(queue *blockqueue.Queue, verifier signature.Verifier, upstream Upstream, startNextExpected uint64, logger zerolog.Logger) *Ingestor {
	return &Ingestor{
		pending:      heap.New[uint64, rolluptypes.OrderedBlock](),
		queue:        queue,
		verifier:     verifier,
		upstream:     upstream,
		nextExpected: startNextExpected,
		logger:       logger.With().Str("component", "ingestor").Logger(),
	}
}

// SubmitSignedBlock is the handler backing moj_sendBroadcastBlock: verify
// the signature over the block header hash, then push to the pending
// heap. Duplicates by height are silently dropped (both by the signature
// check passing harmlessly twice and by the heap's own dedupe).
func (ing *Ingestor) SubmitSignedBlock(ctx context.Context, sb *rolluptypes.SignedBlock) error {
	hash := sb.Block.Hash()
	ok, err := ing.verifier.Verify(hash.Bytes(), sb.Signature)
	if err != nil {
		return mjerr.Internal(err, "signature verification error")
	}
	if !ok {
		return mjerr.Internal(nil, "invalid block signature")
	}

	ing.pending.Push(rolluptypes.OrderedBlock{Block: sb.Block})
	return nil
}

// PendingLen reports the current pending-heap size (used by metrics and
// health probes).
func (ing *Ingestor) PendingLen() int { return ing.pending.Len() }

// Run drives the gap-filling ingestion loop until ctx is cancelled.
func (ing *Ingestor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := ing.ingestOne(ctx); err != nil {
			ing.logger.Warn().Err(err).Msg("ingestion step failed; retrying after backoff")
			select {
			case <-time.After(MinBackoff):
			case <-ctx.Done():
				return
			}
		}
	}
}

// ingestOne reserves the current next_expected height under the mutex
// before doing any I/O, so concurrent invocations never double-fetch the
// same height.
func (ing *Ingestor) ingestOne(ctx context.Context) error {
	ing.mu.Lock()
	defer ing.mu.Unlock()
	n := ing.nextExpected

	if peeked, ok := ing.pending.Peek(); ok && peeked.Key() == n {
		item, ok := ing.pending.Pop()
		if !ok {
			return nil
		}
		ing.queue.Push(item.Block)
		ing.nextExpected = n + 1
		return nil
	}

	block, err := ing.upstream.BlockByNumber(ctx, n)
	if err != nil {
		return err
	}
	ing.queue.Push(block)
	ing.nextExpected = n + 1
	return nil
}

func (ing *Ingestor) advance(from uint64) {
	ing.mu.Lock()
	defer ing.mu.Unlock()
	if ing.nextExpected == from {
		ing.nextExpected = from + 1
	}
}
