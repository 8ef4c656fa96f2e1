package prover

import (
	"context"

	"golang.org/x/crypto/sha3"

	"github.com/0xkanth/mojave-sequencer/pkg/rolluptypes"
)

// DeterministicBackend is a zkVM stand-in sufficient to exercise the
// worker/dispatch path without a real proving backend: the "proof" is a
// Keccak-256 digest over the execution witness.
type DeterministicBackend struct{}

func (DeterministicBackend) Prove(ctx context.Context, data rolluptypes.ProverData) (*rolluptypes.BatchProof, error) {
	h := sha3.NewLegacyKeccak256()
	h.Write(data.Input.ExecutionWitness)
	return &rolluptypes.BatchProof{Proof: h.Sum(nil)}, nil
}

var _ Backend = DeterministicBackend{}
