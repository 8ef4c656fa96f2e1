package rolluptypes

// Scheme tags which signing primitive produced a Signature.
type Scheme string

const (
	SchemeEd25519   Scheme = "ed25519"
	SchemeSecp256k1 Scheme = "secp256k1"
)

// Signature carries its scheme tag alongside the raw signature bytes so
// a verifier can reject it outright if the tag doesn't match its own
// scheme.
type Signature struct {
	Bytes  []byte `json:"bytes"`
	Scheme Scheme `json:"scheme"`
}
