package prover

import (
	"encoding/json"

	"github.com/0xkanth/mojave-sequencer/pkg/rolluptypes"
)

// marshalForSigning is the canonical payload a proof response is signed
// over; it must match exactly what proofcoordinator.Coordinator verifies
// against on receipt.
func marshalForSigning(resp rolluptypes.ProofResponse) ([]byte, error) {
	return json.Marshal(resp)
}
