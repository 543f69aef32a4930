package key

import (
	"golang.org/x/crypto/curve25519"

	"github.com/drand/channels/spongos"
)

// Prng is the seed-based deterministic byte source spec.md §4.C and §6
// describe: "a user-supplied string; the library derives a fixed-size
// secret via a sponge-based KDF," used both to derive the user's own
// identity and to derive per-message ephemeral scalars (the X25519
// ephemeral key generated inside the DDML X25519 field, spec.md §4.B) so
// that recover(seed, ...) can regenerate equivalent state without a
// transported backup. It is grounded on coruus/go-sha3's use of a sponge
// XOF (SHAKE) as an arbitrary-length deterministic byte stream.
type Prng struct {
	root *spongos.Spongos
}

// NewPrng seeds a Prng from an arbitrary-length seed string.
func NewPrng(seed string) *Prng {
	s := spongos.New(spongos.DefaultRate)
	s.Absorb([]byte("channels-prng-v1"))
	s.Absorb([]byte(seed))
	s.Commit()
	return &Prng{root: s}
}

// SeedKey derives the 32-byte secret seed used to build a user's identity
// keypair. It forks off the root so that calling SeedKey repeatedly is
// idempotent and does not disturb the stream used by Sub.
func (p *Prng) SeedKey() [32]byte {
	fork := p.root.Fork()
	fork.Absorb([]byte("identity"))
	fork.Commit()
	out := fork.Squeeze(32)
	var seed [32]byte
	copy(seed[:], out)
	return seed
}

// Sub derives a labeled, independent sub-stream of arbitrary length, for
// ephemeral per-message scalars (nonces, X25519 ephemeral keys). Distinct
// labels always yield distinct, reproducible sub-streams from the same
// root seed.
func (p *Prng) Sub(label string, n int) []byte {
	fork := p.root.Fork()
	fork.Absorb([]byte(label))
	fork.Commit()
	return fork.Squeeze(n)
}

// X25519Ephemeral derives a fresh X25519 keypair for a single message (the
// "per-message ephemeral scalars" of spec.md §4.C) from a labelled
// sub-stream, so that the same seed always regenerates the same ephemeral
// for a given label (needed by recover(), which must reproduce a user's
// entire message history deterministically).
func (p *Prng) X25519Ephemeral(label string) (priv, pub [32]byte) {
	scalar := p.Sub(label, 32)
	copy(priv[:], scalar)
	clamp(&priv)
	pk, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		panic("key: x25519 ephemeral base-point multiplication failed: " + err.Error())
	}
	copy(pub[:], pk)
	return priv, pub
}
