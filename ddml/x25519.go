package ddml

import "golang.org/x/crypto/curve25519"

// x25519PubSize is the wire length of an X25519 public key.
const x25519PubSize = 32

// X25519Wrap implements the X25519 field kind on Wrap (spec.md §4.B): it
// writes the sender's ephemeral public key in the clear, performs ECDH
// against the recipient's static X25519 public key, and absorbs the shared
// secret into the spongos. The ephemeral public key travels unmasked (a
// recipient without the session key still needs it to derive one), while
// the shared secret it produces is never placed on the wire at all.
func (c *Context) X25519Wrap(ephemeralPriv, ephemeralPub, recipientPub [32]byte) error {
	if c.mode == ModeSizeof {
		*c.size += x25519PubSize
		return nil
	}
	if c.mode != ModeWrap {
		return ErrWrongMode
	}
	pubCopy := ephemeralPub
	if err := c.FixedBytes(sliceOf(&pubCopy), x25519PubSize); err != nil {
		return err
	}
	shared, err := curve25519.X25519(ephemeralPriv[:], recipientPub[:])
	if err != nil {
		return ErrDecode
	}
	c.spongos.Absorb(shared)
	return nil
}

// X25519Unwrap implements the X25519 field kind on Unwrap: it reads the
// sender's ephemeral public key off the wire, performs ECDH against the
// local static X25519 private key, and absorbs the resulting shared secret
// so it joins the transcript the same way it did on Wrap.
func (c *Context) X25519Unwrap(myPriv [32]byte) ([32]byte, error) {
	var ephemeralPub [32]byte
	if c.mode != ModeUnwrap {
		return ephemeralPub, ErrWrongMode
	}
	buf := make([]byte, 0, x25519PubSize)
	if err := c.FixedBytes(&buf, x25519PubSize); err != nil {
		return ephemeralPub, err
	}
	copy(ephemeralPub[:], buf)
	shared, err := curve25519.X25519(myPriv[:], ephemeralPub[:])
	if err != nil {
		return ephemeralPub, ErrDecode
	}
	c.spongos.Absorb(shared)
	return ephemeralPub, nil
}

func sliceOf(a *[32]byte) *[]byte {
	s := a[:]
	return &s
}
