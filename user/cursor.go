package user

import "github.com/drand/channels/message"

// Cursor is a per-publisher position in the channel, spec.md §3: the link
// of the last message seen from that publisher, which branch it is on, and
// its sequence number. SeqNo starts at 2 for ordinary content (0 is
// reserved for the Announcement, 1 for a publisher's first Subscribe).
type Cursor struct {
	LastLink message.Link
	BranchNo uint32
	SeqNo    uint32
}

// ChannelType selects the fan-out discipline a channel uses, spec.md §4.F
// and §9 ("preserve the channel-type enumeration {SingleBranch,
// MultiBranch, SingleDepth}").
type ChannelType int

const (
	// SingleBranch is the lockstep mode: every known publisher's cursor
	// advances together after any wrap or unwrap.
	SingleBranch ChannelType = iota
	// MultiBranch gives every publisher an independent Cursor; Sequence
	// messages on the anchor branch let others discover new messages
	// without a linear scan.
	MultiBranch
	// SingleDepth is the anchor-indexed direct-retrieval mode spec.md §9
	// flags as under-specified in the source ("receive_msg_by_sequence_
	// number"). Its MsgId derivation is left unimplemented here pending
	// reference vectors; NewAuthor/NewAuthorWithNonce reject it explicitly
	// rather than silently falling back to another mode.
	SingleDepth
)

func (t ChannelType) String() string {
	switch t {
	case SingleBranch:
		return "single-branch"
	case MultiBranch:
		return "multi-branch"
	case SingleDepth:
		return "single-depth"
	default:
		return "unknown"
	}
}

// nextSeqNo computes the sequence number a publisher's next message should
// carry, given its existing cursor (nil if this is its first message).
// isAnnouncement and isFirstSubscribeLike name the two reserved low values;
// every other message gets max(existing+1, 2), skipping over whichever of
// 0/1 the publisher did not use for its very first message.
func nextSeqNo(existing *Cursor, isAnnouncement, isFirstSubscribeLike bool) uint32 {
	if existing == nil {
		switch {
		case isAnnouncement:
			return 0
		case isFirstSubscribeLike:
			return 1
		default:
			return 2
		}
	}
	n := existing.SeqNo + 1
	if n < 2 {
		n = 2
	}
	return n
}
