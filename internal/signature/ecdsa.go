package signature

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/0xkanth/mojave-sequencer/pkg/rolluptypes"
)

// secp256k1Signer wraps a go-ethereum ECDSA private key. Signing digests
// the payload with Keccak256 before calling crypto.Sign, matching every
// other secp256k1 call site go-ethereum exposes (this module standardizes
// on Keccak256 as its canonical digest; see DESIGN.md).
type secp256k1Signer struct {
	priv *ecdsa.PrivateKey
}

func newSecp256k1Signer(keyBytes []byte) (Signer, error) {
	priv, err := crypto.ToECDSA(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("secp256k1: parse private key: %w", err)
	}
	return &secp256k1Signer{priv: priv}, nil
}

func (s *secp256k1Signer) Sign(payload []byte) (rolluptypes.Signature, error) {
	digest := crypto.Keccak256(payload)
	sig, err := crypto.Sign(digest, s.priv)
	if err != nil {
		return rolluptypes.Signature{}, fmt.Errorf("secp256k1: sign: %w", err)
	}
	// drop the recovery id byte: verification below is key-known, not
	// recovery-based, matching the source's compact-signature handling.
	return rolluptypes.Signature{Bytes: sig[:64], Scheme: rolluptypes.SchemeSecp256k1}, nil
}

func (s *secp256k1Signer) VerifyingKey() []byte {
	return crypto.FromECDSAPub(&s.priv.PublicKey)
}

type secp256k1Verifier struct {
	pubKeyBytes []byte
}

func newSecp256k1Verifier(keyBytes []byte) (Verifier, error) {
	if _, err := crypto.UnmarshalPubkey(keyBytes); err != nil {
		return nil, fmt.Errorf("secp256k1: parse public key: %w", err)
	}
	return &secp256k1Verifier{pubKeyBytes: keyBytes}, nil
}

func (v *secp256k1Verifier) Verify(payload []byte, sig rolluptypes.Signature) (bool, error) {
	if sig.Scheme != rolluptypes.SchemeSecp256k1 {
		return false, fmt.Errorf("secp256k1: signature scheme mismatch: got %q", sig.Scheme)
	}
	digest := crypto.Keccak256(payload)
	return crypto.VerifySignature(v.pubKeyBytes, digest, sig.Bytes), nil
}
