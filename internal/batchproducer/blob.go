package batchproducer

import (
	"golang.org/x/crypto/sha3"

	"github.com/ethereum/go-ethereum/common"

	"github.com/0xkanth/mojave-sequencer/pkg/rolluptypes"
)

// MaxBlobBytes matches EIP-4844's single-blob capacity (4096 field
// elements of 32 bytes each); the batch producer fails loudly rather
// than silently truncate a diff that doesn't fit.
const MaxBlobBytes = 4096 * 32

// BlobEncoder turns a folded account-update diff into a blob bundle. The
// engine owns the real KZG commitment machinery; this package only needs
// to know whether a diff fits and what its commitment/proof pair is.
type BlobEncoder interface {
	Encode(updates []rolluptypes.AccountUpdate) (*rolluptypes.BlobsBundle, error)
	Fits(sizeBytes int) bool
}

// SimpleBlobEncoder is a deterministic stand-in: it packs each update's
// address and balance (not its nonce or code) into a single blob padded
// to MaxBlobBytes, and derives a commitment/proof via
// Keccak-256 rather than a real KZG ceremony, sufficient to exercise the
// producer's capacity-check and dispatch logic end to end.
type SimpleBlobEncoder struct{}

func (SimpleBlobEncoder) Fits(sizeBytes int) bool { return sizeBytes <= MaxBlobBytes }

func (SimpleBlobEncoder) Encode(updates []rolluptypes.AccountUpdate) (*rolluptypes.BlobsBundle, error) {
	blob := make([]byte, MaxBlobBytes)
	offset := 0
	for _, u := range updates {
		offset += copy(blob[offset:], u.Address.Bytes())
		if u.Balance != nil {
			offset += copy(blob[offset:], u.Balance.Bytes())
		}
	}

	h := sha3.NewLegacyKeccak256()
	h.Write(blob)
	commitment := common.BytesToHash(h.Sum(nil))

	h2 := sha3.NewLegacyKeccak256()
	h2.Write(commitment.Bytes())
	proof := common.BytesToHash(h2.Sum(nil))

	return &rolluptypes.BlobsBundle{
		Blobs:       [][]byte{blob},
		Commitments: []common.Hash{commitment},
		Proofs:      []common.Hash{proof},
	}, nil
}

var _ BlobEncoder = SimpleBlobEncoder{}
