package rolluptypes

import "github.com/ethereum/go-ethereum/common"

// BlobsBundle is the blob-encoded state diff for a sealed batch, plus the
// commitment/proof pair the proof coordinator needs to build prover input.
type BlobsBundle struct {
	Blobs       [][]byte     `json:"blobs"`
	Commitments []common.Hash `json:"commitments"`
	Proofs      []common.Hash `json:"proofs"`
}

// Batch is an ordered, contiguous range of blocks committed as a single
// proving unit. Once sealed it is immutable.
type Batch struct {
	Number                   uint64       `json:"number"`
	FirstBlock               uint64       `json:"first_block"`
	LastBlock                uint64       `json:"last_block"`
	StateRoot                common.Hash  `json:"state_root"`
	PrivilegedTransactionHash common.Hash  `json:"privileged_tx_hash"`
	MessageHashes             []common.Hash `json:"message_hashes"`
	BlobsBundle               *BlobsBundle `json:"blobs_bundle"`
	CommitTxHash              *common.Hash `json:"commit_tx,omitempty"`
	VerifyTxHash              *common.Hash `json:"verify_tx,omitempty"`
}

// AccountUpdate is a per-address state delta collected while folding a
// block's execution results into a batch accumulator.
type AccountUpdate struct {
	Address common.Address `json:"address"`
	Balance *common.Hash   `json:"balance,omitempty"`
	Nonce   *uint64        `json:"nonce,omitempty"`
	Code    []byte         `json:"code,omitempty"`
	Removed bool           `json:"removed"`
}

// Merge folds another update for the same address on top of this one,
// matching the Rust accumulator's Entry::Occupied merge semantics: later
// writes to a field win, but a field left nil in the incoming update
// doesn't clobber an already-known value.
func (u *AccountUpdate) Merge(next AccountUpdate) {
	if next.Balance != nil {
		u.Balance = next.Balance
	}
	if next.Nonce != nil {
		u.Nonce = next.Nonce
	}
	if next.Code != nil {
		u.Code = next.Code
	}
	if next.Removed {
		u.Removed = true
	}
}
