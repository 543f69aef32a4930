package content

import (
	"github.com/drand/channels/ddml"
	"github.com/drand/channels/key"
)

// Subscribe (and, with identical shape, Unsubscribe) proves a
// subscriber's identity to the Author and establishes the X25519 shared
// secret the author needs to target that subscriber in future keyloads
// (spec.md §4.E). The shared secret produced by the X25519 field is folded
// into the message's own spongos only; it does not need to be reused
// afterwards since the Author already holds the subscriber's static
// X25519 public key once this unwraps.
//
// Schema: Absorb ed25519_pubkey; Absorb x25519_pubkey;
// X25519(author_x25519, <no payload — the field only needs to bind the
// shared secret, there is nothing left to mask here>); Commit;
// Mssig(subscriber_ed25519).
type Subscribe struct {
	SubscriberPub key.PublicIdentity
}

// Wrap serializes and signs a subscribe (or, called on an Unsubscribe
// alias, unsubscribe) request. ephemeralPriv/ephemeralPub is a fresh X25519
// keypair minted for this one message (spec.md §4.C, "per-message ephemeral
// scalars").
func (s *Subscribe) Wrap(c *ddml.Context, priv *key.PrivateIdentity, authorPub *key.PublicIdentity, ephemeralPriv, ephemeralPub [32]byte) error {
	edPub := []byte(priv.Public.Ed25519)
	if err := c.AbsorbSizedBytes(&edPub); err != nil {
		return err
	}
	xPub := priv.Public.X25519PK[:]
	if err := c.AbsorbFixedBytes(&xPub, 32); err != nil {
		return err
	}
	if err := c.X25519Wrap(ephemeralPriv, ephemeralPub, authorPub.X25519PK); err != nil {
		return err
	}
	c.Commit()
	return c.MssigWrap(priv)
}

// Unwrap parses and verifies a subscribe/unsubscribe request using the
// author's own X25519 private key to complete the ECDH exchange.
func (s *Subscribe) Unwrap(c *ddml.Context, authorPriv *key.PrivateIdentity) error {
	var edPub []byte
	if err := c.AbsorbSizedBytes(&edPub); err != nil {
		return err
	}
	xBuf := make([]byte, 0, 32)
	if err := c.AbsorbFixedBytes(&xBuf, 32); err != nil {
		return err
	}
	var xPub [32]byte
	copy(xPub[:], xBuf)

	if _, err := c.X25519Unwrap(authorPriv.X25519); err != nil {
		return err
	}
	c.Commit()

	pub, err := key.NewPublicIdentity(edPub, xPub)
	if err != nil {
		return err
	}
	if err := c.MssigUnwrap(pub); err != nil {
		return err
	}
	s.SubscriberPub = *pub
	return nil
}

// Unsubscribe has the identical wire shape and schema as Subscribe
// (spec.md §4.E); only the User driver's handling of a successful unwrap
// differs (it removes the subscriber instead of adding it).
type Unsubscribe = Subscribe
