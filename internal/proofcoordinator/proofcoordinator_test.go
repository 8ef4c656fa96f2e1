package proofcoordinator_test

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/0xkanth/mojave-sequencer/internal/client"
	"github.com/0xkanth/mojave-sequencer/internal/mjerr"
	"github.com/0xkanth/mojave-sequencer/internal/proofcoordinator"
	"github.com/0xkanth/mojave-sequencer/internal/signature"
	"github.com/0xkanth/mojave-sequencer/pkg/rolluptypes"
)

type fakeChain struct{ blocks map[uint64]*rolluptypes.Block }

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
	batchNums map[uint64][]uint64
	blobs     map[uint64]*rolluptypes.BlobsBundle
}

func (f *fakeRollup) LastSealedBatch(ctx context.Context) (*rolluptypes.Batch, bool, error) {
	return nil, false, nil
}
func (f *fakeRollup) SealBatch(ctx context.Context, batch *rolluptypes.Batch) error { return nil }
func (f *fakeRollup) GetBatchBlockNumbers(ctx context.Context, batchNumber uint64) ([]uint64, error) {
	return f.batchNums[batchNumber], nil
}
func (f *fakeRollup) PutBatchBlockNumbers(ctx context.Context, batchNumber uint64, numbers []uint64) error {
	f.batchNums[batchNumber] = numbers
	return nil
}
func (f *fakeRollup) GetAccountUpdatesByBlockNumber(ctx context.Context, blockNumber uint64) ([]rolluptypes.AccountUpdate, bool, error) {
	return nil, false, nil
}
func (f *fakeRollup) PutAccountUpdatesByBlockNumber(ctx context.Context, blockNumber uint64, updates []rolluptypes.AccountUpdate) error {
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
	return []byte("witness"), nil
}
func (fakeEngine) StateRootAt(ctx context.Context, number uint64) (common.Hash, error) {
	return common.Hash{}, nil
}
func (fakeEngine) L1Messages(ctx context.Context, block *rolluptypes.Block) ([]common.Hash, error) {
	return nil, nil
}
func (fakeEngine) PrivilegedTransactions(ctx context.Context, block *rolluptypes.Block) ([]common.Hash, error) {
	return nil, nil
}
func (fakeEngine) ExecuteBlock(ctx context.Context, block *rolluptypes.Block) ([]rolluptypes.AccountUpdate, error) {
	return nil, nil
}

func block(number uint64) *rolluptypes.Block {
	return &rolluptypes.Block{Header: &types.Header{Number: new(big.Int).SetUint64(number)}}
}

func newSigner(t *testing.T) (signature.Signer, []byte) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	signer, err := signature.FromSlice(rolluptypes.SchemeEd25519, priv)
	require.NoError(t, err)
	return signer, pub
}

func TestProcessBatchDispatchesProverInput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":"abc123"}`))
	}))
	defer srv.Close()

	chain := &fakeChain{blocks: map[uint64]*rolluptypes.Block{0: block(0), 1: block(1)}}
	rollup := &fakeRollup{
		batchNums: map[uint64][]uint64{1: {0, 1}},
		blobs: map[uint64]*rolluptypes.BlobsBundle{
			1: {Commitments: []common.Hash{{1}}, Proofs: []common.Hash{{2}}},
		},
	}
	c := client.New(client.WithProverURLs(srv.URL))
	coord := proofcoordinator.New(chain, rollup, fakeEngine{}, c, "http://self", zerolog.Nop())

	resp, err := coord.HandleRequest(context.Background(), proofcoordinator.Request{Kind: proofcoordinator.KindProcessBatch, BatchNumber: 1})
	require.NoError(t, err)
	require.NotEmpty(t, resp.JobId)
}

func TestProcessBatchMissingBlobErrors(t *testing.T) {
	chain := &fakeChain{blocks: map[uint64]*rolluptypes.Block{0: block(0)}}
	rollup := &fakeRollup{batchNums: map[uint64][]uint64{1: {0}}, blobs: map[uint64]*rolluptypes.BlobsBundle{}}
	c := client.New(client.WithProverURLs("http://127.0.0.1:0"))
	coord := proofcoordinator.New(chain, rollup, fakeEngine{}, c, "http://self", zerolog.Nop())

	_, err := coord.HandleRequest(context.Background(), proofcoordinator.Request{Kind: proofcoordinator.KindProcessBatch, BatchNumber: 1})
	require.Error(t, err)
	mjErr, ok := mjerr.As(err)
	require.True(t, ok)
	require.Equal(t, mjerr.KindMissingBlob, mjErr.Kind)
}

func TestProcessBatchUnknownBatchIsItemNotFound(t *testing.T) {
	chain := &fakeChain{blocks: map[uint64]*rolluptypes.Block{}}
	rollup := &fakeRollup{batchNums: map[uint64][]uint64{}, blobs: map[uint64]*rolluptypes.BlobsBundle{}}
	c := client.New(client.WithProverURLs("http://127.0.0.1:0"))
	coord := proofcoordinator.New(chain, rollup, fakeEngine{}, c, "http://self", zerolog.Nop())

	_, err := coord.HandleRequest(context.Background(), proofcoordinator.Request{Kind: proofcoordinator.KindProcessBatch, BatchNumber: 99})
	require.Error(t, err)
	mjErr, ok := mjerr.As(err)
	require.True(t, ok)
	require.Equal(t, mjerr.KindItemNotFound, mjErr.Kind)
}

func signResponse(t *testing.T, signer signature.Signer, pub []byte, resp rolluptypes.ProofResponse) *rolluptypes.SignedProofResponse {
	payload, err := json.Marshal(resp)
	require.NoError(t, err)
	sig, err := signer.Sign(payload)
	require.NoError(t, err)
	return &rolluptypes.SignedProofResponse{ProofResponse: resp, Signature: sig, VerifyingKey: pub}
}

func TestStoreProofDuplicateProverTypeSkipped(t *testing.T) {
	chain := &fakeChain{blocks: map[uint64]*rolluptypes.Block{}}
	rollup := &fakeRollup{batchNums: map[uint64][]uint64{}, blobs: map[uint64]*rolluptypes.BlobsBundle{}}
	c := client.New()
	coord := proofcoordinator.New(chain, rollup, fakeEngine{}, c, "http://self", zerolog.Nop())

	signer, pub := newSigner(t)
	resp := rolluptypes.ProofResponse{JobId: "job1", BatchNumber: 1, ProverType: "sp1", Result: rolluptypes.ProofResult{Proof: &rolluptypes.BatchProof{Proof: []byte("p")}}}
	signed := signResponse(t, signer, pub, resp)

	_, err := coord.HandleRequest(context.Background(), proofcoordinator.Request{Kind: proofcoordinator.KindStoreProof, SignedProof: signed})
	require.NoError(t, err)
	_, err = coord.HandleRequest(context.Background(), proofcoordinator.Request{Kind: proofcoordinator.KindStoreProof, SignedProof: signed})
	require.NoError(t, err)

	require.Len(t, coord.ProofsForBatch(1), 1)
}

func TestStoreProofInvalidSignatureRejected(t *testing.T) {
	chain := &fakeChain{blocks: map[uint64]*rolluptypes.Block{}}
	rollup := &fakeRollup{batchNums: map[uint64][]uint64{}, blobs: map[uint64]*rolluptypes.BlobsBundle{}}
	c := client.New()
	coord := proofcoordinator.New(chain, rollup, fakeEngine{}, c, "http://self", zerolog.Nop())

	signer, pub := newSigner(t)
	resp := rolluptypes.ProofResponse{JobId: "job1", BatchNumber: 1, ProverType: "sp1"}
	signed := signResponse(t, signer, pub, resp)
	signed.ProofResponse.BatchNumber = 2 // mutate after signing to invalidate

	_, err := coord.HandleRequest(context.Background(), proofcoordinator.Request{Kind: proofcoordinator.KindStoreProof, SignedProof: signed})
	require.Error(t, err)
}

func TestStoreProofFailedResultReturnsProofFailed(t *testing.T) {
	chain := &fakeChain{blocks: map[uint64]*rolluptypes.Block{}}
	rollup := &fakeRollup{batchNums: map[uint64][]uint64{}, blobs: map[uint64]*rolluptypes.BlobsBundle{}}
	c := client.New()
	coord := proofcoordinator.New(chain, rollup, fakeEngine{}, c, "http://self", zerolog.Nop())

	signer, pub := newSigner(t)
	resp := rolluptypes.ProofResponse{JobId: "job1", BatchNumber: 3, ProverType: "sp1", Result: rolluptypes.ProofResult{Error: "oom"}}
	signed := signResponse(t, signer, pub, resp)

	_, err := coord.HandleRequest(context.Background(), proofcoordinator.Request{Kind: proofcoordinator.KindStoreProof, SignedProof: signed})
	require.Error(t, err)
	mjErr, ok := mjerr.As(err)
	require.True(t, ok)
	require.Equal(t, mjerr.KindProofFailed, mjErr.Kind)
	require.Len(t, coord.ProofsForBatch(3), 1)
}
