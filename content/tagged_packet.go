package content

import "github.com/drand/channels/ddml"

// taggedPacketMacSize matches the 64-byte trailer width an ed25519
// signature occupies elsewhere, so the on-wire layout of spec.md §6 (a
// fixed 64-byte trailer "per content type") holds for TaggedPacket too.
const taggedPacketMacSize = 64

// TaggedPacket is SignedPacket without a signature: authentication instead
// comes from the squeezed MAC tag, which only verifies if the unwrapper's
// spongos transcript (and therefore its session key) matches the
// wrapper's (spec.md §4.E).
type TaggedPacket struct {
	PublicPayload []byte
	MaskedPayload []byte
}

// Wrap serializes the packet and appends its MAC tag.
func (p *TaggedPacket) Wrap(c *ddml.Context) error {
	if err := c.AbsorbSizedBytes(&p.PublicPayload); err != nil {
		return err
	}
	if err := c.MaskSizedBytes(&p.MaskedPayload); err != nil {
		return err
	}
	c.Commit()
	var tag []byte
	return c.Squeeze(taggedPacketMacSize, &tag)
}

// Unwrap parses the packet and verifies its MAC tag.
func (p *TaggedPacket) Unwrap(c *ddml.Context) error {
	if err := c.AbsorbSizedBytes(&p.PublicPayload); err != nil {
		return err
	}
	if err := c.MaskSizedBytes(&p.MaskedPayload); err != nil {
		return err
	}
	c.Commit()
	var tag []byte
	return c.Squeeze(taggedPacketMacSize, &tag)
}
