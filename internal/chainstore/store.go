// Package chainstore defines the persistence contracts the coordination
// core depends on (chain store + rollup store) and provides a bbolt-
// backed implementation for single-node deployments plus an optional
// Postgres-backed implementation for full-node scale.
package chainstore

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/0xkanth/mojave-sequencer/pkg/rolluptypes"
)

// ChainStore exclusively owns persistent block data and fork-choice
// state. It must provide its own internal serialisation: the core never
// locks around it.
type ChainStore interface {
	AddBlock(ctx context.Context, block *rolluptypes.Block) error
	GetBlockByNumber(ctx context.Context, number uint64) (*rolluptypes.Block, bool, error)
	LatestBlockNumber(ctx context.Context) (uint64, error)
	UpdateEarliestBlock(ctx context.Context, number uint64) error
	UpdateForkChoice(ctx context.Context, number uint64, hash common.Hash) error
	ForkChoiceHead(ctx context.Context) (number uint64, hash common.Hash, err error)
}

// RollupStore exclusively owns rollup-specific artifacts: sealed
// batches, cached account updates, and blob bundles.
type RollupStore interface {
	LastSealedBatch(ctx context.Context) (*rolluptypes.Batch, bool, error)
	SealBatch(ctx context.Context, batch *rolluptypes.Batch) error
	GetBatchBlockNumbers(ctx context.Context, batchNumber uint64) ([]uint64, error)
	PutBatchBlockNumbers(ctx context.Context, batchNumber uint64, numbers []uint64) error
	GetAccountUpdatesByBlockNumber(ctx context.Context, blockNumber uint64) ([]rolluptypes.AccountUpdate, bool, error)
	PutAccountUpdatesByBlockNumber(ctx context.Context, blockNumber uint64, updates []rolluptypes.AccountUpdate) error
	GetBlobsByBatch(ctx context.Context, batchNumber uint64) (*rolluptypes.BlobsBundle, bool, error)
	PutBlobsByBatch(ctx context.Context, batchNumber uint64, bundle *rolluptypes.BlobsBundle) error
}

// CheckpointStore persists the ingestor's cursor across restarts,
// mirroring the teacher's checkpoint.go pattern.
type CheckpointStore interface {
	GetNextExpected(ctx context.Context) (uint64, bool, error)
	SetNextExpected(ctx context.Context, blockNumber uint64) error
}
