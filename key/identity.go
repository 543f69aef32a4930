// Package key holds participant identities (ed25519 signing keys, their
// deterministically derived X25519 agreement keys), the pre-shared-key
// store, and the seed-based PRNG used to make a user's whole cryptographic
// material reconstructible from one seed string.
//
// It follows the split the teacher uses in its own key package
// (key/keys.go: a Private half and a public Identity half, each TOML-able)
// but replaces the bn256/kyber group key pair with the ed25519/X25519 pair
// spec.md §4.C calls for.
package key

import (
	"crypto/ed25519"
	"crypto/sha512"
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/curve25519"
)

// ErrBadPublicKey is returned when a byte slice does not decode into a
// valid ed25519 or X25519 public key.
var ErrBadPublicKey = errors.New("key: malformed public key")

// PublicIdentity is the stable, transmissible identifier of a participant:
// an ed25519 verification key plus its deterministically-derived X25519
// agreement key.
type PublicIdentity struct {
	Ed25519  ed25519.PublicKey
	X25519PK [32]byte
}

// PrivateIdentity is a participant's full keypair, generated from a single
// seed so that it can be reconstructed by recover() without any transported
// backup (spec.md §4.C, "Seed-based determinism").
type PrivateIdentity struct {
	Ed25519 ed25519.PrivateKey
	X25519  [32]byte
	Public  PublicIdentity
}

// NewIdentity derives a full keypair from a 32-byte seed. Equal seeds
// always yield equal identities; this is the determinism recover() relies
// on.
func NewIdentity(seed [32]byte) *PrivateIdentity {
	edPriv := ed25519.NewKeyFromSeed(seed[:])
	edPub := edPriv.Public().(ed25519.PublicKey)

	x25519Priv := deriveX25519Scalar(edPriv)
	var x25519Pub [32]byte
	pk, err := curve25519.X25519(x25519Priv[:], curve25519.Basepoint)
	if err != nil {
		// curve25519.X25519 only fails on malformed scalars/points, which
		// cannot happen for a freshly clamped 32-byte scalar.
		panic("key: x25519 base-point multiplication failed: " + err.Error())
	}
	copy(x25519Pub[:], pk)

	return &PrivateIdentity{
		Ed25519: edPriv,
		X25519:  x25519Priv,
		Public: PublicIdentity{
			Ed25519:  edPub,
			X25519PK: x25519Pub,
		},
	}
}

// deriveX25519Scalar derives an X25519 private scalar from an ed25519
// private key deterministically: same seed in, same X25519 key out, per
// spec.md §4.C. ed25519 and X25519 scalars are not directly
// interchangeable (different clamping, different use of the seed vs. the
// SHA-512 expansion used internally by ed25519), so the agreement key is
// derived via a domain-separated hash of the signing seed rather than by
// reusing ed25519's internal expanded secret.
func deriveX25519Scalar(edPriv ed25519.PrivateKey) [32]byte {
	h := sha512.New()
	h.Write([]byte("channels-x25519-v1"))
	h.Write(edPriv.Seed())
	sum := h.Sum(nil)

	var scalar [32]byte
	copy(scalar[:], sum[:32])
	clamp(&scalar)
	return scalar
}

func clamp(s *[32]byte) {
	s[0] &= 248
	s[31] &= 127
	s[31] |= 64
}

// Sign signs msg (normally a spongos-squeezed digest, per spec.md §4.B's
// Mssig field) with the identity's ed25519 key.
func (p *PrivateIdentity) Sign(msg []byte) []byte {
	return ed25519.Sign(p.Ed25519, msg)
}

// Verify checks an ed25519 signature produced by Sign.
func (p *PublicIdentity) Verify(msg, sig []byte) bool {
	return ed25519.Verify(p.Ed25519, msg, sig)
}

// Equal reports whether two public identities carry the same ed25519 key.
// The ed25519 key is the identifier; the X25519 key is a pure function of
// it and does not need its own comparison.
func (p *PublicIdentity) Equal(o *PublicIdentity) bool {
	if p == nil || o == nil {
		return p == o
	}
	return p.Ed25519.Equal(o.Ed25519)
}

// Bytes returns the 32-byte ed25519 verification key.
func (p *PublicIdentity) Bytes() []byte {
	return []byte(p.Ed25519)
}

// ParsePublicIdentity reconstructs a PublicIdentity from a 32-byte ed25519
// verification key. The returned identity's X25519PK is left zero: it
// cannot be derived from the ed25519 public key, so X25519 agreement with
// it needs the X25519 key carried separately (see NewPublicIdentity).
func ParsePublicIdentity(edPub []byte) (*PublicIdentity, error) {
	if len(edPub) != ed25519.PublicKeySize {
		return nil, ErrBadPublicKey
	}
	// X25519 public keys cannot be derived from an ed25519 *public* key
	// alone (that would require the discrete log); instead every message
	// that introduces a new identity (Announcement, Subscribe) explicitly
	// carries the X25519 public key alongside the ed25519 one. Callers use
	// NewPublicIdentity below once both halves are known.
	pub := &PublicIdentity{Ed25519: append(ed25519.PublicKey(nil), edPub...)}
	return pub, nil
}

// NewPublicIdentity builds a PublicIdentity from both of its wire-carried
// halves.
func NewPublicIdentity(edPub []byte, x25519Pub [32]byte) (*PublicIdentity, error) {
	if len(edPub) != ed25519.PublicKeySize {
		return nil, ErrBadPublicKey
	}
	return &PublicIdentity{
		Ed25519:  append(ed25519.PublicKey(nil), edPub...),
		X25519PK: x25519Pub,
	}, nil
}

// String renders the ed25519 verification key as lowercase hex, the form
// used in TOML-exported identities and in log lines.
func (p *PublicIdentity) String() string {
	return hex.EncodeToString(p.Bytes())
}

// PublicTOML is the TOML-able form of a PublicIdentity, named and shaped
// like the teacher's key.PublicTOML in key/keys.go.
type PublicTOML struct {
	Ed25519 string
	X25519  string
}

// TOML returns the TOML-able projection of the public identity.
func (p *PublicIdentity) TOML() *PublicTOML {
	return &PublicTOML{
		Ed25519: hex.EncodeToString(p.Bytes()),
		X25519:  hex.EncodeToString(p.X25519PK[:]),
	}
}

// FromTOML populates the public identity from its TOML projection,
// mirroring the teacher's Identity.FromTOML in key/keys.go.
func (p *PublicIdentity) FromTOML(t *PublicTOML) error {
	edBuf, err := hex.DecodeString(t.Ed25519)
	if err != nil || len(edBuf) != ed25519.PublicKeySize {
		return ErrBadPublicKey
	}
	xBuf, err := hex.DecodeString(t.X25519)
	if err != nil || len(xBuf) != 32 {
		return ErrBadPublicKey
	}
	p.Ed25519 = ed25519.PublicKey(edBuf)
	copy(p.X25519PK[:], xBuf)
	return nil
}

// PrivateTOML is the TOML-able form of a PrivateIdentity, mirroring the
// teacher's key.PrivateTOML.
type PrivateTOML struct {
	Seed string
}

// TOML returns the TOML-able projection of the private identity. Only the
// seed is persisted: every other piece of key material is a pure function
// of it.
func (p *PrivateIdentity) TOML() *PrivateTOML {
	return &PrivateTOML{Seed: hex.EncodeToString(p.Ed25519.Seed())}
}

// FromTOML reconstructs a PrivateIdentity from its TOML projection.
func FromTOML(t *PrivateTOML) (*PrivateIdentity, error) {
	seedBuf, err := hex.DecodeString(t.Seed)
	if err != nil || len(seedBuf) != ed25519.SeedSize {
		return nil, errors.New("key: malformed seed in TOML")
	}
	var seed [32]byte
	copy(seed[:], seedBuf)
	return NewIdentity(seed), nil
}
