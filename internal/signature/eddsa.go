package signature

import (
	"crypto/ed25519"
	"fmt"

	"github.com/0xkanth/mojave-sequencer/pkg/rolluptypes"
)

// ed25519Signer signs the raw payload directly: unlike the secp256k1
// backend, Ed25519 hashes internally, so no extra digest step is needed.
type ed25519Signer struct {
	priv ed25519.PrivateKey
}

func newEd25519Signer(keyBytes []byte) (Signer, error) {
	if len(keyBytes) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("ed25519: private key must be %d bytes, got %d", ed25519.PrivateKeySize, len(keyBytes))
	}
	return &ed25519Signer{priv: ed25519.PrivateKey(keyBytes)}, nil
}

func (s *ed25519Signer) Sign(payload []byte) (rolluptypes.Signature, error) {
	sig := ed25519.Sign(s.priv, payload)
	return rolluptypes.Signature{Bytes: sig, Scheme: rolluptypes.SchemeEd25519}, nil
}

func (s *ed25519Signer) VerifyingKey() []byte {
	pub := s.priv.Public().(ed25519.PublicKey)
	return []byte(pub)
}

type ed25519Verifier struct {
	pub ed25519.PublicKey
}

func newEd25519Verifier(keyBytes []byte) (Verifier, error) {
	if len(keyBytes) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("ed25519: public key must be %d bytes, got %d", ed25519.PublicKeySize, len(keyBytes))
	}
	return &ed25519Verifier{pub: ed25519.PublicKey(keyBytes)}, nil
}

func (v *ed25519Verifier) Verify(payload []byte, sig rolluptypes.Signature) (bool, error) {
	if sig.Scheme != rolluptypes.SchemeEd25519 {
		return false, fmt.Errorf("ed25519: signature scheme mismatch: got %q", sig.Scheme)
	}
	return ed25519.Verify(v.pub, payload, sig.Bytes), nil
}
