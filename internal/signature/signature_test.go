package signature_test

import (
	"crypto/ed25519"
	"testing"

	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/0xkanth/mojave-sequencer/internal/signature"
	"github.com/0xkanth/mojave-sequencer/pkg/rolluptypes"
)

func TestEd25519RoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	signer, err := signature.FromSlice(rolluptypes.SchemeEd25519, priv)
	require.NoError(t, err)
	verifier, err := signature.VerifierFromSlice(rolluptypes.SchemeEd25519, pub)
	require.NoError(t, err)

	payload := []byte("block header hash goes here")
	sig, err := signer.Sign(payload)
	require.NoError(t, err)

	ok, err := verifier.Verify(payload, sig)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestEd25519RejectsPerturbedPayload(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	signer, _ := signature.FromSlice(rolluptypes.SchemeEd25519, priv)
	verifier, _ := signature.VerifierFromSlice(rolluptypes.SchemeEd25519, pub)

	payload := []byte("original payload")
	sig, err := signer.Sign(payload)
	require.NoError(t, err)

	perturbed := append([]byte(nil), payload...)
	perturbed[0] ^= 0x01
	ok, err := verifier.Verify(perturbed, sig)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestEd25519RejectsPerturbedSignature(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	signer, _ := signature.FromSlice(rolluptypes.SchemeEd25519, priv)
	verifier, _ := signature.VerifierFromSlice(rolluptypes.SchemeEd25519, pub)

	payload := []byte("original payload")
	sig, err := signer.Sign(payload)
	require.NoError(t, err)
	sig.Bytes[0] ^= 0x01

	ok, err := verifier.Verify(payload, sig)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSecp256k1RoundTrip(t *testing.T) {
	priv, err := gethcrypto.GenerateKey()
	require.NoError(t, err)

	signer, err := signature.FromSlice(rolluptypes.SchemeSecp256k1, gethcrypto.FromECDSA(priv))
	require.NoError(t, err)
	verifier, err := signature.VerifierFromSlice(rolluptypes.SchemeSecp256k1, signer.VerifyingKey())
	require.NoError(t, err)

	payload := []byte("batch proof response payload")
	sig, err := signer.Sign(payload)
	require.NoError(t, err)

	ok, err := verifier.Verify(payload, sig)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestSchemeMismatchErrors(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	verifier, err := signature.VerifierFromSlice(rolluptypes.SchemeEd25519, pub)
	require.NoError(t, err)

	_, err = verifier.Verify([]byte("x"), rolluptypes.Signature{Bytes: []byte{1, 2, 3}, Scheme: rolluptypes.SchemeSecp256k1})
	require.Error(t, err)
}
