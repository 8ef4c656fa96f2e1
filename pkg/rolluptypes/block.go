// Package rolluptypes holds the data model shared by every coordination
// component: blocks, batches, jobs and prover artifacts.
package rolluptypes

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Block is the opaque aggregate the coordination core operates over. The
// core only ever inspects header.Number; everything else is delegated to
// the chain engine and carried as-is.
type Block struct {
	Header       *types.Header
	Transactions types.Transactions
	Withdrawals  types.Withdrawals
}

// Number returns the block height.
func (b *Block) Number() uint64 {
	return b.Header.Number.Uint64()
}

// Hash is the content address of the block, computed over its header only
// (the same convention as go-ethereum: body changes don't change the
// block hash).
func (b *Block) Hash() common.Hash {
	return b.Header.Hash()
}

// FromUpstream converts a full go-ethereum block retrieved from an
// upstream RPC endpoint into the internal Block representation, dropping
// ommers and lifting withdrawals into the body.
func FromUpstream(full *types.Block) *Block {
	return &Block{
		Header:       full.Header(),
		Transactions: full.Transactions(),
		Withdrawals:  full.Withdrawals(),
	}
}

// SignedBlock pairs a Block with the signature and verifying key that
// attest to its origin.
type SignedBlock struct {
	Block        *Block    `json:"block"`
	Signature    Signature `json:"signature"`
	VerifyingKey []byte    `json:"verifying_key"`
}

func (sb *SignedBlock) String() string {
	if sb == nil || sb.Block == nil {
		return "SignedBlock(nil)"
	}
	return fmt.Sprintf("SignedBlock(number=%d, hash=%s)", sb.Block.Number(), sb.Block.Hash())
}
