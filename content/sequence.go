package content

import (
	"github.com/drand/channels/ddml"
	"github.com/drand/channels/key"
	"github.com/drand/channels/message"
)

// Sequence is the multi-branch-mode pointer message a publisher posts on
// the anchor branch for every non-sequence message it sends, so other
// users can discover the new message without a linear scan (spec.md §4.E,
// §4.F).
//
// Schema: Absorb ref_publisher_id; Absorb ref_branch_no(u32); Absorb
// ref_seq_no(u32); Absorb ref_msg_id(12B); Commit; Mssig(publisher_ed25519).
type Sequence struct {
	RefPublisherID []byte
	RefBranchNo    uint32
	RefSeqNo       uint32
	RefMsgID       message.MsgID
}

// Wrap serializes and signs the sequence pointer.
func (s *Sequence) Wrap(c *ddml.Context, priv *key.PrivateIdentity) error {
	if err := c.AbsorbSizedBytes(&s.RefPublisherID); err != nil {
		return err
	}
	if err := c.AbsorbUint32(&s.RefBranchNo); err != nil {
		return err
	}
	if err := c.AbsorbUint32(&s.RefSeqNo); err != nil {
		return err
	}
	refMsgID := s.RefMsgID[:]
	if err := c.AbsorbFixedBytes(&refMsgID, message.MsgIDSize); err != nil {
		return err
	}
	c.Commit()
	return c.MssigWrap(priv)
}

// Unwrap parses and verifies the sequence pointer.
func (s *Sequence) Unwrap(c *ddml.Context, publisherPub *key.PublicIdentity) error {
	if err := c.AbsorbSizedBytes(&s.RefPublisherID); err != nil {
		return err
	}
	if err := c.AbsorbUint32(&s.RefBranchNo); err != nil {
		return err
	}
	if err := c.AbsorbUint32(&s.RefSeqNo); err != nil {
		return err
	}
	refMsgID := make([]byte, 0, message.MsgIDSize)
	if err := c.AbsorbFixedBytes(&refMsgID, message.MsgIDSize); err != nil {
		return err
	}
	copy(s.RefMsgID[:], refMsgID)
	c.Commit()
	return c.MssigUnwrap(publisherPub)
}
