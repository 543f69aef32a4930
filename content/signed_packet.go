package content

import (
	"github.com/drand/channels/ddml"
	"github.com/drand/channels/key"
)

// SignedPacket carries an authenticated, optionally-encrypted payload on a
// branch (spec.md §4.E). It runs under the spongos state inherited from the
// link it follows (typically seeded from a Keyload's session key), so the
// same session key that was distributed there is what makes
// MaskedPayload's encryption and PublicPayload's binding meaningful to
// other branch members.
//
// Schema: Absorb public_payload(Bytes); Mask masked_payload(Bytes); Commit;
// Mssig(publisher_ed25519).
type SignedPacket struct {
	PublicPayload []byte
	MaskedPayload []byte
}

// Wrap serializes and signs the packet.
func (p *SignedPacket) Wrap(c *ddml.Context, priv *key.PrivateIdentity) error {
	if err := c.AbsorbSizedBytes(&p.PublicPayload); err != nil {
		return err
	}
	if err := c.MaskSizedBytes(&p.MaskedPayload); err != nil {
		return err
	}
	c.Commit()
	return c.MssigWrap(priv)
}

// Unwrap parses and verifies the packet.
func (p *SignedPacket) Unwrap(c *ddml.Context, publisherPub *key.PublicIdentity) error {
	if err := c.AbsorbSizedBytes(&p.PublicPayload); err != nil {
		return err
	}
	if err := c.MaskSizedBytes(&p.MaskedPayload); err != nil {
		return err
	}
	c.Commit()
	return c.MssigUnwrap(publisherPub)
}
