package rolluptypes

import (
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"golang.org/x/crypto/sha3"
)

// JobId is a deterministic, content-addressed identifier for a proving
// job, derived from the sorted set of block hashes the job covers. Two
// batches with identical block sets yield identical JobIds — this is the
// prover's dedupe key.
type JobId string

// NewJobId computes hex(keccak256(rlp(sorted(hashes)))). RLP stands in
// for the source's bincode: it is the canonical deterministic encoding
// already in use throughout this module via go-ethereum.
func NewJobId(hashes []common.Hash) (JobId, error) {
	sorted := make([]common.Hash, len(hashes))
	copy(sorted, hashes)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Cmp(sorted[j]) < 0
	})

	encoded, err := rlp.EncodeToBytes(sorted)
	if err != nil {
		return "", fmt.Errorf("encode block hash set: %w", err)
	}

	h := sha3.NewLegacyKeccak256()
	h.Write(encoded)
	digest := h.Sum(nil)

	return JobId(hex.EncodeToString(digest)), nil
}

func (j JobId) String() string { return string(j) }

// ProgramInput is the fully self-contained input a prover needs to
// produce a batch proof.
type ProgramInput struct {
	ExecutionWitness     []byte        `json:"execution_witness"`
	Blocks               []*Block      `json:"blocks"`
	BlobCommitment       common.Hash   `json:"blob_commitment"`
	BlobProof            common.Hash   `json:"blob_proof"`
	ElasticityMultiplier uint64        `json:"elasticity_multiplier"`
}

// ProverData is the request payload sent to a prover.
type ProverData struct {
	BatchNumber uint64       `json:"batch_number"`
	Input       ProgramInput `json:"input"`
}

// BlockHashes returns the set of block hashes this input covers, used to
// derive the JobId.
func (p *ProverData) BlockHashes() []common.Hash {
	hashes := make([]common.Hash, len(p.Input.Blocks))
	for i, b := range p.Input.Blocks {
		hashes[i] = b.Hash()
	}
	return hashes
}

// BatchProof is the proving backend's successful output.
type BatchProof struct {
	Proof      []byte `json:"proof"`
	PublicInputs []byte `json:"public_inputs"`
}

// ProofResult is either a successful proof or a failure reason, never
// both — the prover still reports failed jobs so the coordinator can
// record them instead of retrying blindly.
type ProofResult struct {
	Proof *BatchProof `json:"proof,omitempty"`
	Error string      `json:"error,omitempty"`
}

func (r ProofResult) Failed() bool { return r.Error != "" }

// ProofResponse is what a prover sends back for a completed job.
type ProofResponse struct {
	JobId       JobId       `json:"job_id"`
	BatchNumber uint64      `json:"batch_number"`
	Result      ProofResult `json:"result"`
	ProverType  string      `json:"prover_type"`
}

// SignedProofResponse carries the authentication envelope required
// before a sequencer accepts a ProofResponse.
type SignedProofResponse struct {
	ProofResponse ProofResponse `json:"proof_response"`
	Signature     Signature     `json:"signature"`
	VerifyingKey  []byte        `json:"verifying_key"`
}

// JobRecord is what the prover's job queue carries from request intake
// to the proof worker.
type JobRecord struct {
	JobId        JobId      `json:"job_id"`
	ProverData   ProverData `json:"prover_data"`
	SequencerURL string     `json:"sequencer_url"`
}
