package message

import "github.com/drand/channels/spongos"

// MsgIDSize is the length, in bytes, of a MsgId.
const MsgIDSize = 12

// MsgID uniquely identifies a message on the transport within a channel
// (spec.md §3).
type MsgID [MsgIDSize]byte

// Link pairs an Address with a MsgID, spec.md §3's "pair (AppInst, MsgId)".
type Link struct {
	Address Address
	MsgID   MsgID
}

// Equal reports whether two links name the same message.
func (l Link) Equal(o Link) bool {
	return l.Address.Equal(o.Address) && l.MsgID == o.MsgID
}

// IsZero reports whether l is the zero Link, used to mark "no previous
// link" (the Announcement's PreviousLink, spec.md §4.D).
func (l Link) IsZero() bool {
	var zero Link
	return l == zero
}

// DeriveMsgID computes the deterministic message identifier spec.md §4.D
// defines: seed a spongos with (AppInst || PublisherId || PreviousLink.MsgId
// || BranchNo || SeqNo), commit, squeeze 12 bytes. Determinism here is what
// lets a peer discover the next message without being told its id
// out-of-band (spec.md §8, gen_next_msg_ids).
func DeriveMsgID(appInst Address, publisherPubKey []byte, previous MsgID, branchNo, seqNo uint32) MsgID {
	s := spongos.New(spongos.DefaultRate)
	s.Absorb([]byte("channels-msgid-v1"))
	s.Absorb(appInst.AppInst[:])
	s.Absorb(publisherPubKey)
	s.Absorb(previous[:])
	s.Absorb(uint32LE(branchNo))
	s.Absorb(uint32LE(seqNo))
	s.Commit()
	var id MsgID
	copy(id[:], s.Squeeze(MsgIDSize))
	return id
}

func uint32LE(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}

// AnnouncementMsgID returns the MsgID of a channel's Announcement: the hash
// of AppInst, per spec.md §3 ("The announcement's link is
// (AppInst, H(AppInst))").
func AnnouncementMsgID(appInst Address) MsgID {
	s := spongos.New(spongos.DefaultRate)
	s.Absorb([]byte("channels-announcement-id-v1"))
	s.Absorb(appInst.AppInst[:])
	s.Commit()
	var id MsgID
	copy(id[:], s.Squeeze(MsgIDSize))
	return id
}
