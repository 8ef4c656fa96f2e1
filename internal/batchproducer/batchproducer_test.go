package batchproducer_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/0xkanth/mojave-sequencer/internal/batchproducer"
	"github.com/0xkanth/mojave-sequencer/pkg/rolluptypes"
)

type fakeChain struct {
	blocks map[uint64]*rolluptypes.Block
}

func (f *fakeChain) AddBlock(ctx context.Context, block *rolluptypes.Block) error { return nil }
func (f *fakeChain) GetBlockByNumber(ctx context.Context, number uint64) (*rolluptypes.Block, bool, error) {
	b, ok := f.blocks[number]
	return b, ok, nil
}
func (f *fakeChain) LatestBlockNumber(ctx context.Context) (uint64, error) { return 0, nil }
func (f *fakeChain) UpdateEarliestBlock(ctx context.Context, number uint64) error { return nil }
func (f *fakeChain) UpdateForkChoice(ctx context.Context, number uint64, hash common.Hash) error {
	return nil
}
func (f *fakeChain) ForkChoiceHead(ctx context.Context) (uint64, common.Hash, error) {
	return 0, common.Hash{}, nil
}

type fakeRollup struct {
	sealed    []*rolluptypes.Batch
	batchNums map[uint64][]uint64
	updates   map[uint64][]rolluptypes.AccountUpdate
	blobs     map[uint64]*rolluptypes.BlobsBundle
}

func newFakeRollup() *fakeRollup {
	return &fakeRollup{
		batchNums: map[uint64][]uint64{},
		updates:   map[uint64][]rolluptypes.AccountUpdate{},
		blobs:     map[uint64]*rolluptypes.BlobsBundle{},
	}
}

func (f *fakeRollup) LastSealedBatch(ctx context.Context) (*rolluptypes.Batch, bool, error) {
	if len(f.sealed) == 0 {
		return nil, false, nil
	}
	return f.sealed[len(f.sealed)-1], true, nil
}
func (f *fakeRollup) SealBatch(ctx context.Context, batch *rolluptypes.Batch) error {
	f.sealed = append(f.sealed, batch)
	return nil
}
func (f *fakeRollup) GetBatchBlockNumbers(ctx context.Context, batchNumber uint64) ([]uint64, error) {
	return f.batchNums[batchNumber], nil
}
func (f *fakeRollup) PutBatchBlockNumbers(ctx context.Context, batchNumber uint64, numbers []uint64) error {
	f.batchNums[batchNumber] = numbers
	return nil
}
func (f *fakeRollup) GetAccountUpdatesByBlockNumber(ctx context.Context, blockNumber uint64) ([]rolluptypes.AccountUpdate, bool, error) {
	u, ok := f.updates[blockNumber]
	return u, ok, nil
}
func (f *fakeRollup) PutAccountUpdatesByBlockNumber(ctx context.Context, blockNumber uint64, updates []rolluptypes.AccountUpdate) error {
	f.updates[blockNumber] = updates
	return nil
}
func (f *fakeRollup) GetBlobsByBatch(ctx context.Context, batchNumber uint64) (*rolluptypes.BlobsBundle, bool, error) {
	b, ok := f.blobs[batchNumber]
	return b, ok, nil
}
func (f *fakeRollup) PutBlobsByBatch(ctx context.Context, batchNumber uint64, bundle *rolluptypes.BlobsBundle) error {
	f.blobs[batchNumber] = bundle
	return nil
}

type fakeEngine struct{}

func (fakeEngine) BuildBlock(ctx context.Context) (*rolluptypes.Block, error) { return nil, nil }
func (fakeEngine) GenerateWitnessForBlocks(ctx context.Context, blocks []*rolluptypes.Block) ([]byte, error) {
	return nil, nil
}
func (fakeEngine) StateRootAt(ctx context.Context, number uint64) (common.Hash, error) {
	return common.BigToHash(new(big.Int).SetUint64(number)), nil
}
func (fakeEngine) L1Messages(ctx context.Context, block *rolluptypes.Block) ([]common.Hash, error) {
	return nil, nil
}
func (fakeEngine) PrivilegedTransactions(ctx context.Context, block *rolluptypes.Block) ([]common.Hash, error) {
	return nil, nil
}
func (fakeEngine) ExecuteBlock(ctx context.Context, block *rolluptypes.Block) ([]rolluptypes.AccountUpdate, error) {
	addr := common.BigToAddress(new(big.Int).SetUint64(block.Number()))
	return []rolluptypes.AccountUpdate{{Address: addr, Code: make([]byte, 100)}}, nil
}

// overflowAfter rejects any size beyond maxBytes. Each fakeEngine block
// adds 120 bytes (a 20-byte address plus 100 bytes of code), so a limit
// of k*120 bytes forces a capacity split at exactly k blocks.
type overflowAfter struct{ maxBytes int }

func (o overflowAfter) Fits(size int) bool { return size <= o.maxBytes }
func (o overflowAfter) Encode(updates []rolluptypes.AccountUpdate) (*rolluptypes.BlobsBundle, error) {
	return &rolluptypes.BlobsBundle{Blobs: [][]byte{{1}}}, nil
}

func block(number uint64) *rolluptypes.Block {
	return &rolluptypes.Block{Header: &types.Header{Number: new(big.Int).SetUint64(number)}}
}

func TestNoNewBlocksReturnsNilWithoutSealing(t *testing.T) {
	chain := &fakeChain{blocks: map[uint64]*rolluptypes.Block{}}
	rollup := newFakeRollup()
	p := batchproducer.New(chain, rollup, fakeEngine{}, batchproducer.SimpleBlobEncoder{}, zerolog.Nop())

	batch, err := p.HandleRequest(context.Background(), struct{}{})
	require.NoError(t, err)
	require.Nil(t, batch)
	require.Empty(t, rollup.sealed)
}

func TestSealsAvailableBlocksAndAdvancesFirstBlock(t *testing.T) {
	chain := &fakeChain{blocks: map[uint64]*rolluptypes.Block{
		1: block(1),
		2: block(2),
		3: block(3),
	}}
	rollup := newFakeRollup()
	p := batchproducer.New(chain, rollup, fakeEngine{}, batchproducer.SimpleBlobEncoder{}, zerolog.Nop())

	batch, err := p.HandleRequest(context.Background(), struct{}{})
	require.NoError(t, err)
	require.NotNil(t, batch)
	require.Equal(t, uint64(1), batch.FirstBlock)
	require.Equal(t, uint64(3), batch.LastBlock)
	require.Equal(t, uint64(1), batch.Number)
	require.Len(t, rollup.sealed, 1)

	batch2, err := p.HandleRequest(context.Background(), struct{}{})
	require.NoError(t, err)
	require.Nil(t, batch2)
}

func TestCapacityOverflowSealsPartialBatch(t *testing.T) {
	chain := &fakeChain{blocks: map[uint64]*rolluptypes.Block{
		1: block(1),
		2: block(2),
		3: block(3),
	}}
	rollup := newFakeRollup()
	encoder := overflowAfter{maxBytes: 120}
	p := batchproducer.New(chain, rollup, fakeEngine{}, encoder, zerolog.Nop())

	batch, err := p.HandleRequest(context.Background(), struct{}{})
	require.NoError(t, err)
	require.NotNil(t, batch)
	require.Equal(t, uint64(1), batch.FirstBlock)
	require.Equal(t, uint64(1), batch.LastBlock)
	require.Equal(t, uint64(1), batch.Number)
}

func TestSingleBlockOverflowIsUnreachable(t *testing.T) {
	chain := &fakeChain{blocks: map[uint64]*rolluptypes.Block{1: block(1)}}
	rollup := newFakeRollup()
	encoder := overflowAfter{maxBytes: 1}
	p := batchproducer.New(chain, rollup, fakeEngine{}, encoder, zerolog.Nop())

	batch, err := p.HandleRequest(context.Background(), struct{}{})
	require.Error(t, err)
	require.Nil(t, batch)
}
