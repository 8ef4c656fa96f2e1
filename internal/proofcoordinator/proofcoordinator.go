// Package proofcoordinator implements the proof coordinator (C9): a
// leader-only task that assembles prover input for a sealed batch,
// dispatches it to the prover pool, and records proof responses as they
// come back.
package proofcoordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/0xkanth/mojave-sequencer/internal/chainstore"
	"github.com/0xkanth/mojave-sequencer/internal/client"
	"github.com/0xkanth/mojave-sequencer/internal/engine"
	"github.com/0xkanth/mojave-sequencer/internal/mjerr"
	"github.com/0xkanth/mojave-sequencer/internal/signature"
	"github.com/0xkanth/mojave-sequencer/pkg/rolluptypes"
)

// RequestKind distinguishes the coordinator's two request shapes; they
// share one Task[Request, Response] so both run on the same serialized
// worker (spec.md: "single worker, FIFO").
type RequestKind int

const (
	KindProcessBatch RequestKind = iota
	KindStoreProof
)

type Request struct {
	Kind         RequestKind
	BatchNumber  uint64                           // ProcessBatch
	SignedProof  *rolluptypes.SignedProofResponse // StoreProof
}

type Response struct {
	JobId rolluptypes.JobId // ProcessBatch: the dispatched job's id
}

// Coordinator runs ProcessBatch/StoreProof on a single serialized
// worker. selfURL is the address a prover should post the proof back
// to; it is passed as the sequencer_url parameter of moj_sendProofInput.
type Coordinator struct {
	chain   chainstore.ChainStore
	rollup  chainstore.RollupStore
	engine  engine.Engine
	client  *client.Client
	selfURL string
	logger  zerolog.Logger

	mu     sync.Mutex
	proofs map[uint64]map[string]*rolluptypes.ProofResponse
}

func New(chain chainstore.ChainStore, rollup chainstore.RollupStore, eng engine.Engine, c *client.Client, selfURL string, logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		chain:   chain,
		rollup:  rollup,
		engine:  eng,
		client:  c,
		selfURL: selfURL,
		logger:  logger.With().Str("component", "proofcoordinator").Logger(),
		proofs:  make(map[uint64]map[string]*rolluptypes.ProofResponse),
	}
}

func (c *Coordinator) OnStart(ctx context.Context) error {
	c.logger.Info().Msg("proof coordinator starting")
	return nil
}

func (c *Coordinator) OnShutdown(ctx context.Context) {
	c.logger.Info().Msg("proof coordinator stopping")
}

func (c *Coordinator) HandleRequest(ctx context.Context, req Request) (Response, error) {
	switch req.Kind {
	case KindProcessBatch:
		return c.processBatch(ctx, req.BatchNumber)
	case KindStoreProof:
		return Response{}, c.storeProof(ctx, req.SignedProof)
	default:
		return Response{}, mjerr.Internal(nil, "unknown proof coordinator request kind")
	}
}

func (c *Coordinator) processBatch(ctx context.Context, batchNumber uint64) (Response, error) {
	numbers, err := c.rollup.GetBatchBlockNumbers(ctx, batchNumber)
	if err != nil {
		return Response{}, mjerr.Internal(err, "load batch block numbers")
	}
	if len(numbers) == 0 {
		return Response{}, mjerr.ItemNotFound(fmt.Sprintf("batch %d block numbers", batchNumber))
	}

	blocks := make([]*rolluptypes.Block, 0, len(numbers))
	for _, n := range numbers {
		block, ok, err := c.chain.GetBlockByNumber(ctx, n)
		if err != nil {
			return Response{}, mjerr.Internal(err, "load block %d", n)
		}
		if !ok {
			return Response{}, mjerr.ItemNotFound(fmt.Sprintf("block %d", n))
		}
		blocks = append(blocks, block)
	}

	witness, err := c.engine.GenerateWitnessForBlocks(ctx, blocks)
	if err != nil {
		return Response{}, mjerr.Internal(err, "generate witness for batch %d", batchNumber)
	}

	bundle, ok, err := c.rollup.GetBlobsByBatch(ctx, batchNumber)
	if err != nil {
		return Response{}, mjerr.Internal(err, "load blob bundle")
	}
	if !ok || len(bundle.Commitments) == 0 || len(bundle.Proofs) == 0 {
		return Response{}, mjerr.MissingBlob(batchNumber)
	}

	input := rolluptypes.ProgramInput{
		ExecutionWitness: witness,
		Blocks:           blocks,
		BlobCommitment:   bundle.Commitments[0],
		BlobProof:        bundle.Proofs[0],
	}
	data := rolluptypes.ProverData{BatchNumber: batchNumber, Input: input}

	jobId, err := rolluptypes.NewJobId(data.BlockHashes())
	if err != nil {
		return Response{}, mjerr.Internal(err, "derive job id")
	}

	// The prover derives the same JobId deterministically from the
	// dispatched block hashes, so the returned id is not re-read here.
	if _, err := c.client.SendProofInput(ctx, &data, c.selfURL); err != nil {
		return Response{}, mjerr.Internal(err, "dispatch prover input for batch %d", batchNumber)
	}

	c.logger.Info().Uint64("batch", batchNumber).Str("job_id", string(jobId)).Msg("prover input dispatched")
	return Response{JobId: jobId}, nil
}

// storeProof verifies the envelope before recording it: a failed proof
// is recorded as ProofFailed and returned as an error so callers can
// surface it, a duplicate prover-type submission is logged and skipped.
func (c *Coordinator) storeProof(ctx context.Context, signed *rolluptypes.SignedProofResponse) error {
	if signed == nil {
		return mjerr.BadParams("missing signed proof response")
	}

	payload, err := json.Marshal(signed.ProofResponse)
	if err != nil {
		return mjerr.Internal(err, "encode proof response for verification")
	}

	verifier, err := signature.VerifierFromSlice(signed.Signature.Scheme, signed.VerifyingKey)
	if err != nil {
		return mjerr.Internal(err, "construct verifier for proof response")
	}
	ok, err := verifier.Verify(payload, signed.Signature)
	if err != nil {
		return mjerr.Internal(err, "verify proof response signature")
	}
	if !ok {
		return mjerr.BadParams("invalid proof response signature")
	}

	resp := signed.ProofResponse
	if resp.Result.Failed() {
		c.recordProof(resp)
		return mjerr.ProofFailed(resp.BatchNumber, resp.Result.Error)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	byType := c.proofs[resp.BatchNumber]
	if byType != nil {
		if _, already := byType[resp.ProverType]; already {
			c.logger.Info().Uint64("batch", resp.BatchNumber).Str("prover_type", resp.ProverType).Msg("duplicate proof for prover type, skipping")
			return nil
		}
	} else {
		byType = make(map[string]*rolluptypes.ProofResponse)
		c.proofs[resp.BatchNumber] = byType
	}
	stored := resp
	byType[resp.ProverType] = &stored
	return nil
}

func (c *Coordinator) recordProof(resp rolluptypes.ProofResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	byType := c.proofs[resp.BatchNumber]
	if byType == nil {
		byType = make(map[string]*rolluptypes.ProofResponse)
		c.proofs[resp.BatchNumber] = byType
	}
	stored := resp
	byType[resp.ProverType] = &stored
}

// ProofsForBatch returns every recorded proof response for batchNumber,
// keyed by prover type.
func (c *Coordinator) ProofsForBatch(batchNumber uint64) map[string]*rolluptypes.ProofResponse {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]*rolluptypes.ProofResponse, len(c.proofs[batchNumber]))
	for k, v := range c.proofs[batchNumber] {
		out[k] = v
	}
	return out
}
