package user

import (
	"context"

	"github.com/drand/channels/content"
	"github.com/drand/channels/ddml"
	"github.com/drand/channels/key"
	"github.com/drand/channels/message"
)

// scanIndexForDiscovery looks for messages this user has no cursor to
// predict yet among everything ever sent to the channel address, starting
// where the previous scan left off: Subscribe/Unsubscribe requests (Author
// only, spec.md §4.E) and Sequence pointers from a not-yet-known publisher
// (every user, spec.md §4.F, "a Sequence message is emitted on the anchor
// branch for every non-sequence message ... so other users can discover
// new messages"). Ordinary content messages from an already-known
// publisher are still found the cheap way, by predicting their MsgID
// (genNextMsgIDs); this scan only carries the load of bootstrapping a
// publisher nobody has a Cursor for yet.
func (s *State) scanIndexForDiscovery(ctx context.Context) ([]*Decoded, error) {
	s.mu.Lock()
	addr := s.address
	start := s.indexScanned
	author := s.authorPub != nil && s.authorPub.Ed25519.Equal(s.priv.Public.Ed25519)
	s.mu.Unlock()

	all, err := s.tr.RecvIndex(ctx, addr)
	if err != nil {
		return nil, err
	}
	if start >= len(all) {
		return nil, nil
	}

	var out []*Decoded
	for _, raw := range all[start:] {
		if author {
			if d, ct, derr := s.tryDecodeRegistration(raw); derr == nil {
				sub, _ := d.Content.(*content.Subscribe)
				s.mu.Lock()
				switch ct {
				case message.ContentSubscribe:
					s.subscribers[pubKey(&sub.SubscriberPub)] = &sub.SubscriberPub
				case message.ContentUnsubscribe:
					delete(s.subscribers, pubKey(&sub.SubscriberPub))
				}
				s.recordDecoded(d)
				s.mu.Unlock()
				out = append(out, d)
				continue
			}
		}

		seqDecoded, refDecoded, derr := s.tryDecodeSequenceBootstrap(ctx, raw)
		if derr != nil {
			continue
		}
		out = append(out, seqDecoded)
		if refDecoded != nil {
			out = append(out, refDecoded)
		}
	}

	s.mu.Lock()
	s.indexScanned = len(all)
	s.mu.Unlock()
	return out, nil
}

// tryDecodeRegistration attempts to unwrap raw as a Subscribe or
// Unsubscribe, resolving its predecessor automatically since the scanner
// has no cursor to assert one in advance (it may be the Announcement, for a
// subscriber's first registration message, or an earlier registration from
// the same subscriber). It fails fast (ErrDecode) for any other message
// type without consuming the rest of the schema.
func (s *State) tryDecodeRegistration(raw []byte) (*Decoded, message.ContentType, error) {
	ctx, h, err := s.beginUnwrapAuto(raw)
	if err != nil {
		return nil, 0, err
	}
	if h.ContentType != message.ContentSubscribe && h.ContentType != message.ContentUnsubscribe {
		return nil, 0, ddml.ErrDecode
	}

	s.mu.Lock()
	authorPriv := s.priv
	s.mu.Unlock()

	sub := &content.Subscribe{}
	if err := sub.Unwrap(ctx, authorPriv); err != nil {
		return nil, 0, err
	}
	s.finishUnwrap(h.MsgID, ctx)

	link := message.Link{Address: s.address, MsgID: h.MsgID}
	d := &Decoded{Link: link, Header: *h, Publisher: &sub.SubscriberPub, Content: sub}
	return d, h.ContentType, nil
}

// tryDecodeSequenceBootstrap attempts to unwrap raw as a Sequence pointer.
// A Sequence needs no secret to verify (Mssig only), so any user can parse
// one from any publisher, known or not. If the referenced publisher has no
// Cursor yet, this also fetches and decodes the content message it points
// at (assuming it is that publisher's first, resuming from branchRoot) and
// registers the publisher so future ordinary messages are found by
// prediction instead. A referenced message that does not resume from
// branchRoot (i.e. the bootstrap missed an earlier message of theirs) is
// left undecoded rather than guessed at; see DESIGN.md.
func (s *State) tryDecodeSequenceBootstrap(ctx context.Context, raw []byte) (*Decoded, *Decoded, error) {
	uctx, h, err := s.beginUnwrapAuto(raw)
	if err != nil {
		return nil, nil, err
	}
	if h.ContentType != message.ContentSequence {
		return nil, nil, ddml.ErrDecode
	}

	publisherPub, err := key.ParsePublicIdentity(h.PublisherID)
	if err != nil {
		return nil, nil, err
	}

	seq := &content.Sequence{}
	if err := seq.Unwrap(uctx, publisherPub); err != nil {
		return nil, nil, err
	}
	s.finishUnwrap(h.MsgID, uctx)

	seqLink := message.Link{Address: s.address, MsgID: h.MsgID}
	seqDecoded := &Decoded{Link: seqLink, Header: *h, Publisher: publisherPub, Content: seq}

	s.mu.Lock()
	s.recordDecoded(seqDecoded)
	cur, known := s.cursors[pubKey(publisherPub)]
	branchRoot := s.branchRoot
	s.mu.Unlock()
	if known {
		// A pointer referencing a sequence number below the publisher's
		// known cursor is a replay or a fork of its line; the one equal to
		// it is just the echo of a message already decoded by prediction.
		if seq.RefSeqNo < cur.SeqNo {
			return nil, nil, ErrDuplicateSequence
		}
		return seqDecoded, nil, nil
	}

	refLink := message.Link{Address: s.address, MsgID: seq.RefMsgID}
	refRaw, err := s.tr.Recv(ctx, refLink)
	if err != nil {
		return seqDecoded, nil, nil
	}
	refDecoded, err := s.decodeContentMessage(refRaw, branchRoot, refLink)
	if err != nil {
		return seqDecoded, nil, nil
	}

	s.mu.Lock()
	s.subscribers[pubKey(publisherPub)] = publisherPub
	s.advanceCursor(publisherPub, refLink, seq.RefBranchNo, seq.RefSeqNo)
	s.recordDecoded(refDecoded)
	s.mu.Unlock()
	return seqDecoded, refDecoded, nil
}
