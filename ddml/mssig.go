package ddml

import (
	"crypto/ed25519"

	"github.com/drand/channels/key"
)

// mssigDigestSize is the length of the spongos-squeezed digest an Mssig
// field signs, per spec.md §4.B ("Mssig: Squeeze a digest, sign it").
const mssigDigestSize = 64

// MssigWrap implements the Mssig field kind on Wrap: it squeezes a digest
// from the current spongos state, signs it with priv, and writes the
// ed25519 signature (not the digest) to the wire. The digest itself is
// never transmitted, only recomputed by the verifier from its own spongos
// transcript, which is what binds the signature to everything absorbed or
// masked before it.
func (c *Context) MssigWrap(priv *key.PrivateIdentity) error {
	if c.mode == ModeSizeof {
		*c.size += ed25519.SignatureSize
		return nil
	}
	if c.mode != ModeWrap {
		return ErrWrongMode
	}
	digest := c.spongos.Squeeze(mssigDigestSize)
	sig := priv.Sign(digest)
	c.buf.Write(sig)
	return nil
}

// MssigUnwrap implements the Mssig field kind on Unwrap: it squeezes the
// same digest from the current spongos state, reads the signature off the
// wire, and verifies it against pub. A failed verification is reported as
// ErrSignature, distinct from ErrDecode, so callers can distinguish
// malformed framing from a message that parsed but was not authentic.
func (c *Context) MssigUnwrap(pub *key.PublicIdentity) error {
	if c.mode != ModeUnwrap {
		return ErrWrongMode
	}
	digest := c.spongos.Squeeze(mssigDigestSize)
	if len(*c.in) < ed25519.SignatureSize {
		return ErrDecode
	}
	sig := (*c.in)[:ed25519.SignatureSize]
	*c.in = (*c.in)[ed25519.SignatureSize:]
	if !pub.Verify(digest, sig) {
		return ErrSignature
	}
	return nil
}
