package message

import (
	"errors"

	"github.com/drand/channels/ddml"
)

// ContentType identifies which content schema (package content) a message
// body must be parsed with, spec.md §4.D's "ContentType" header field.
type ContentType byte

const (
	ContentAnnouncement ContentType = iota
	ContentSubscribe
	ContentUnsubscribe
	ContentKeyload
	ContentSignedPacket
	ContentTaggedPacket
	ContentSequence
)

// ErrUnknownContentType is returned when a header names a ContentType this
// build does not recognize.
var ErrUnknownContentType = errors.New("message: unknown content type")

func (ct ContentType) String() string {
	switch ct {
	case ContentAnnouncement:
		return "announcement"
	case ContentSubscribe:
		return "subscribe"
	case ContentUnsubscribe:
		return "unsubscribe"
	case ContentKeyload:
		return "keyload"
	case ContentSignedPacket:
		return "signed_packet"
	case ContentTaggedPacket:
		return "tagged_packet"
	case ContentSequence:
		return "sequence"
	default:
		return "unknown"
	}
}

// HeaderVersion is the only wire version this build emits or accepts,
// 0x01 per the on-wire layout.
const HeaderVersion = 1

// ErrUnsupportedVersion is returned when a header names a wire version
// other than HeaderVersion; there is no cross-version interop.
var ErrUnsupportedVersion = errors.New("message: unsupported wire version")

// Header is the fixed preamble every message carries ahead of its
// content-specific body (spec.md §4.D). Every field is absorbed, since the
// header is always public and always binds into the transcript that the
// body's own Mssig or Squeeze authenticates.
type Header struct {
	Version       byte
	AppInst       [AppInstSize]byte
	MsgID         MsgID
	ContentType   ContentType
	PreviousMsgID MsgID
	PublisherID   []byte // ed25519 public key, 32 bytes
}

// Wrap serializes and absorbs the header via c.
func (h *Header) Wrap(c *ddml.Context) error {
	version := h.Version
	if err := c.AbsorbByte(&version); err != nil {
		return err
	}
	appInst := h.AppInst[:]
	if err := c.AbsorbFixedBytes(&appInst, AppInstSize); err != nil {
		return err
	}
	msgID := h.MsgID[:]
	if err := c.AbsorbFixedBytes(&msgID, MsgIDSize); err != nil {
		return err
	}
	ct := byte(h.ContentType)
	if err := c.AbsorbByte(&ct); err != nil {
		return err
	}
	prev := h.PreviousMsgID[:]
	if err := c.AbsorbFixedBytes(&prev, MsgIDSize); err != nil {
		return err
	}
	pub := h.PublisherID
	return c.AbsorbSizedBytes(&pub)
}

// Unwrap parses and absorbs the header via c, populating h.
func (h *Header) Unwrap(c *ddml.Context) error {
	var version byte
	if err := c.AbsorbByte(&version); err != nil {
		return err
	}
	if version != HeaderVersion {
		return ErrUnsupportedVersion
	}
	h.Version = version

	appInst := make([]byte, 0, AppInstSize)
	if err := c.AbsorbFixedBytes(&appInst, AppInstSize); err != nil {
		return err
	}
	copy(h.AppInst[:], appInst)

	msgID := make([]byte, 0, MsgIDSize)
	if err := c.AbsorbFixedBytes(&msgID, MsgIDSize); err != nil {
		return err
	}
	copy(h.MsgID[:], msgID)

	var ct byte
	if err := c.AbsorbByte(&ct); err != nil {
		return err
	}
	h.ContentType = ContentType(ct)
	if h.ContentType > ContentSequence {
		return ErrUnknownContentType
	}

	prev := make([]byte, 0, MsgIDSize)
	if err := c.AbsorbFixedBytes(&prev, MsgIDSize); err != nil {
		return err
	}
	copy(h.PreviousMsgID[:], prev)

	return c.AbsorbSizedBytes(&h.PublisherID)
}

// Link returns the (Address, MsgID) pair this header's message is stored
// and retrieved under.
func (h *Header) Link(nonce [NonceSize]byte) Link {
	return Link{Address: Address{AppInst: h.AppInst, Nonce: nonce}, MsgID: h.MsgID}
}
