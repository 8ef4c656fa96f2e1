// Package batchproducer implements the batch producer (C8): a periodic,
// leader-only task that groups contiguous committed blocks into a sealed
// batch once their folded state diff is ready to ship as a blob.
package batchproducer

import (
	"context"
	"time"

	"golang.org/x/crypto/sha3"

	"github.com/ethereum/go-ethereum/common"
	gethrlp "github.com/ethereum/go-ethereum/rlp"
	"github.com/rs/zerolog"

	"github.com/0xkanth/mojave-sequencer/internal/chainstore"
	"github.com/0xkanth/mojave-sequencer/internal/engine"
	"github.com/0xkanth/mojave-sequencer/internal/mjerr"
	"github.com/0xkanth/mojave-sequencer/internal/notify"
	"github.com/0xkanth/mojave-sequencer/pkg/rolluptypes"
)

// DefaultBuildInterval matches the source's 100s default batch tick.
const DefaultBuildInterval = 100 * time.Second

// tick is the periodic request; BuildBatch reads all state it needs from
// the stores and engine at tick time.
type tick struct{}

// Producer implements task.Task[tick, *rolluptypes.Batch].
type Producer struct {
	chain     chainstore.ChainStore
	rollup    chainstore.RollupStore
	engine    engine.Engine
	encoder   BlobEncoder
	publisher *notify.Publisher
	logger    zerolog.Logger
}

func New(chain chainstore.ChainStore, rollup chainstore.RollupStore, eng engine.Engine, encoder BlobEncoder, logger zerolog.Logger) *Producer {
	if encoder == nil {
		encoder = SimpleBlobEncoder{}
	}
	return &Producer{chain: chain, rollup: rollup, engine: eng, encoder: encoder, logger: logger.With().Str("component", "batchproducer").Logger()}
}

// WithPublisher attaches the notification queue sealed batches are
// announced on, for the downstream batch committer to consume. Nil
// leaves publishing disabled.
func (p *Producer) WithPublisher(publisher *notify.Publisher) *Producer {
	p.publisher = publisher
	return p
}

func (p *Producer) OnStart(ctx context.Context) error {
	p.logger.Info().Msg("batch producer starting")
	return nil
}

func (p *Producer) OnShutdown(ctx context.Context) {
	p.logger.Info().Msg("batch producer stopping")
}

// HandleRequest runs one BuildBatch attempt, sealing at most one batch.
// Returns (nil, nil) when there are no new blocks to batch, matching
// spec.md's "no new blocks -> return None without sealing".
func (p *Producer) HandleRequest(ctx context.Context, _ tick) (*rolluptypes.Batch, error) {
	lastSealed, hasSealed, err := p.rollup.LastSealedBatch(ctx)
	if err != nil {
		return nil, mjerr.Internal(err, "load last sealed batch")
	}

	// Sealed batch numbers start at 1 (spec.md invariant 5); seed both
	// counters from genesis when nothing has sealed yet, matching the
	// original's batch_number = batch_counter + 1 with a genesis batch.
	firstBlock := uint64(1)
	nextBatchNumber := uint64(1)
	if hasSealed {
		firstBlock = lastSealed.LastBlock + 1
		nextBatchNumber = lastSealed.Number + 1
	}

	acc := NewAccumulator()
	var lastIncluded uint64
	included := 0
	var messageHashes []common.Hash
	var privilegedHashes []common.Hash

	for number := firstBlock; ; number++ {
		block, ok, err := p.chain.GetBlockByNumber(ctx, number)
		if err != nil {
			return nil, mjerr.Internal(err, "load block %d", number)
		}
		if !ok {
			break
		}

		updates, _, err := p.accountUpdatesFor(ctx, block)
		if err != nil {
			return nil, mjerr.Internal(err, "collect account updates for block %d", number)
		}
		msgs, err := p.engine.L1Messages(ctx, block)
		if err != nil {
			return nil, mjerr.Internal(err, "collect L1 messages for block %d", number)
		}
		priv, err := p.engine.PrivilegedTransactions(ctx, block)
		if err != nil {
			return nil, mjerr.Internal(err, "collect privileged transactions for block %d", number)
		}

		trial := acc.Clone()
		size := trial.Add(updates, msgs)

		if !p.encoder.Fits(size) {
			if included == 0 {
				return nil, mjerr.Unreachable("single block %d exceeds blob capacity", number)
			}
			break
		}

		acc = trial
		lastIncluded = number
		included++
		messageHashes = append(messageHashes, msgs...)
		privilegedHashes = append(privilegedHashes, priv...)
	}

	if included == 0 {
		return nil, nil
	}

	bundle, err := p.encoder.Encode(acc.Updates())
	if err != nil {
		return nil, mjerr.Internal(err, "encode blob")
	}

	stateRoot, err := p.engine.StateRootAt(ctx, lastIncluded)
	if err != nil {
		return nil, mjerr.Internal(err, "state root at %d", lastIncluded)
	}

	privHash, err := hashList(privilegedHashes)
	if err != nil {
		return nil, mjerr.Internal(err, "hash privileged transactions")
	}

	batch := &rolluptypes.Batch{
		Number:                    nextBatchNumber,
		FirstBlock:                firstBlock,
		LastBlock:                 lastIncluded,
		StateRoot:                 stateRoot,
		PrivilegedTransactionHash: privHash,
		MessageHashes:             messageHashes,
		BlobsBundle:               bundle,
	}

	if err := p.rollup.SealBatch(ctx, batch); err != nil {
		return nil, mjerr.Internal(err, "seal batch %d", batch.Number)
	}

	numbers := make([]uint64, 0, included)
	for n := firstBlock; n <= lastIncluded; n++ {
		numbers = append(numbers, n)
	}
	if err := p.rollup.PutBatchBlockNumbers(ctx, batch.Number, numbers); err != nil {
		p.logger.Error().Err(err).Msg("persist batch block numbers failed")
	}
	if err := p.rollup.PutBlobsByBatch(ctx, batch.Number, bundle); err != nil {
		p.logger.Error().Err(err).Msg("persist blob bundle failed")
	}

	p.logger.Info().Uint64("batch", batch.Number).Uint64("first", firstBlock).Uint64("last", lastIncluded).Msg("batch sealed")

	if p.publisher != nil {
		if err := p.publisher.PublishSealed(ctx, batch); err != nil {
			p.logger.Error().Err(err).Uint64("batch", batch.Number).Msg("publish sealed batch notification failed")
		}
	}

	return batch, nil
}

// accountUpdatesFor returns the folded per-block account updates, reusing
// a cached value when the engine has already computed one.
func (p *Producer) accountUpdatesFor(ctx context.Context, block *rolluptypes.Block) ([]rolluptypes.AccountUpdate, bool, error) {
	number := block.Number()
	if cached, ok, err := p.rollup.GetAccountUpdatesByBlockNumber(ctx, number); err != nil {
		return nil, false, err
	} else if ok {
		return cached, true, nil
	}

	updates, err := p.engine.ExecuteBlock(ctx, block)
	if err != nil {
		return nil, false, err
	}
	if err := p.rollup.PutAccountUpdatesByBlockNumber(ctx, number, updates); err != nil {
		return nil, false, err
	}
	return updates, false, nil
}

// hashList derives a single stable hash over an ordered list of hashes,
// the same RLP+Keccak-256 construction rolluptypes.NewJobId uses for its
// block-hash set, applied here to the privileged-transaction hash list.
func hashList(hashes []common.Hash) (common.Hash, error) {
	encoded, err := gethrlp.EncodeToBytes(hashes)
	if err != nil {
		return common.Hash{}, err
	}
	h := sha3.NewLegacyKeccak256()
	h.Write(encoded)
	return common.BytesToHash(h.Sum(nil)), nil
}
