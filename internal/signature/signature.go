// Package signature implements the pluggable signing/verification
// capability used by sequencers, full nodes and provers to authenticate
// blocks and proof responses without a shared secret (C3).
package signature

import (
	"github.com/0xkanth/mojave-sequencer/pkg/rolluptypes"
)

// Signer signs payloads under a single scheme.
type Signer interface {
	Sign(payload []byte) (rolluptypes.Signature, error)
	VerifyingKey() []byte
}

// Verifier checks a Signature against a payload. It returns (false, nil)
// for a well-formed but non-matching signature, and a non-nil error only
// when the signature's scheme tag doesn't match the verifier's own
// scheme or the input is malformed.
type Verifier interface {
	Verify(payload []byte, sig rolluptypes.Signature) (bool, error)
}

// FromSlice constructs a Signer for the given scheme from raw key bytes.
func FromSlice(scheme rolluptypes.Scheme, keyBytes []byte) (Signer, error) {
	switch scheme {
	case rolluptypes.SchemeEd25519:
		return newEd25519Signer(keyBytes)
	case rolluptypes.SchemeSecp256k1:
		return newSecp256k1Signer(keyBytes)
	default:
		return nil, unknownScheme(scheme)
	}
}

// VerifierFromSlice constructs a Verifier for the given scheme from a
// raw verifying-key encoding.
func VerifierFromSlice(scheme rolluptypes.Scheme, keyBytes []byte) (Verifier, error) {
	switch scheme {
	case rolluptypes.SchemeEd25519:
		return newEd25519Verifier(keyBytes)
	case rolluptypes.SchemeSecp256k1:
		return newSecp256k1Verifier(keyBytes)
	default:
		return nil, unknownScheme(scheme)
	}
}
