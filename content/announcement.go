package content

import (
	"github.com/drand/channels/ddml"
	"github.com/drand/channels/key"
)

// ChannelFlags discriminates the fan-out discipline a channel uses once a
// Keyload opens a branch, per spec.md §4.F.
type ChannelFlags byte

const (
	// FlagSingleBranch is the lockstep mode: all publishers share one
	// cursor line.
	FlagSingleBranch ChannelFlags = iota
	// FlagMultiBranch gives every publisher an independent Cursor and
	// requires Sequence messages on the anchor branch.
	FlagMultiBranch
)

// Announcement is the channel-creating message (spec.md §4.E): it
// establishes the Author's identity and the channel's fan-out mode.
//
// Schema: Absorb ed25519_pubkey; Absorb x25519_pubkey; Absorb
// channel_flags; Commit; Mssig(ed25519). The X25519 public key is carried
// explicitly because it cannot be derived from the ed25519 public key
// alone (see key.ParsePublicIdentity); this is the one place the wire
// layout adds a field spec.md's prose omits.
type Announcement struct {
	AuthorPub    key.PublicIdentity
	ChannelFlags ChannelFlags
}

// Wrap serializes and signs the announcement with the author's identity.
func (a *Announcement) Wrap(c *ddml.Context, priv *key.PrivateIdentity) error {
	edPub := []byte(priv.Public.Ed25519)
	if err := c.AbsorbSizedBytes(&edPub); err != nil {
		return err
	}
	xPub := priv.Public.X25519PK[:]
	if err := c.AbsorbFixedBytes(&xPub, 32); err != nil {
		return err
	}
	flags := byte(a.ChannelFlags)
	if err := c.AbsorbByte(&flags); err != nil {
		return err
	}
	c.Commit()
	return c.MssigWrap(priv)
}

// Unwrap parses and verifies the announcement, populating a.
func (a *Announcement) Unwrap(c *ddml.Context) error {
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

	var flags byte
	if err := c.AbsorbByte(&flags); err != nil {
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

	a.AuthorPub = *pub
	a.ChannelFlags = ChannelFlags(flags)
	return nil
}
