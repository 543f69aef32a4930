package user

import (
	"context"
	"errors"

	"github.com/drand/channels/content"
	"github.com/drand/channels/ddml"
	"github.com/drand/channels/key"
	"github.com/drand/channels/message"
	"github.com/drand/channels/metrics"
	"github.com/drand/channels/spongos"
)

// candidate is one publisher's speculative next message, per spec.md §4.F
// ("gen_next_msg_ids: for every publisher in state.cursors, compute the
// candidate MsgId... without yet consuming it").
type candidate struct {
	publisher *key.PublicIdentity
	prevLink  message.Link
	branchNo  uint32
	seqNo     uint32
	link      message.Link
}

// genNextMsgIDs computes, for every publisher this user currently knows
// about (the Author, plus every known subscriber), the
// MsgID its next ordinary content message would carry, and probes the
// transport for each. A publisher with no Cursor yet predicts off
// branchRoot exactly as nextContentParamsLocked does when that publisher is
// this user wrapping its own first message, since the formula is the same
// regardless of which side computes it. It returns only the candidates
// that hit.
func (s *State) genNextMsgIDs(ctx context.Context) ([]candidate, error) {
	s.mu.Lock()
	pubs := s.candidatePublishersLocked()
	want := make([]candidate, 0, len(pubs))
	for _, pub := range pubs {
		prevLink, branchNo, seqNo, err := s.nextContentParamsLocked(pub)
		if err != nil {
			// A publisher whose cursor cannot advance (seq_no exhausted)
			// has no predictable next message.
			continue
		}
		id := message.DeriveMsgID(s.address, pub.Bytes(), prevLink.MsgID, branchNo, seqNo)
		want = append(want, candidate{
			publisher: pub,
			prevLink:  prevLink,
			branchNo:  branchNo,
			seqNo:     seqNo,
			link:      message.Link{Address: s.address, MsgID: id},
		})
	}
	s.mu.Unlock()

	var hits []candidate
	for _, c := range want {
		if _, err := s.tr.Recv(ctx, c.link); err == nil {
			hits = append(hits, c)
		}
	}
	return hits, nil
}

// candidatePublishersLocked returns every publisher whose next ordinary
// content message this user could predict: the Author always, plus every
// currently known subscriber, in either channel mode (spec.md §4.F's
// gen_next_msg_ids runs over every publisher the local state knows of, not
// only ones a cursor already exists for). Callers must hold s.mu.
func (s *State) candidatePublishersLocked() []*key.PublicIdentity {
	seen := make(map[string]bool)
	var out []*key.PublicIdentity
	add := func(p *key.PublicIdentity) {
		if p == nil {
			return
		}
		k := pubKey(p)
		if seen[k] {
			return
		}
		seen[k] = true
		out = append(out, p)
	}
	add(s.authorPub)
	for _, p := range s.subscribers {
		add(p)
	}
	return out
}

// fetchNextMsgs performs one gen-then-fetch-then-unwrap pass and returns
// the newly decoded messages (spec.md §4.F, "Fetch-next-msgs").
func (s *State) fetchNextMsgs(ctx context.Context) ([]*Decoded, error) {
	var out []*Decoded

	// Predict known publishers' next messages first, so branchRoot and any
	// cursors are as fresh as possible before the discovery scan below tries
	// to bootstrap an unknown publisher off of them.
	hits, err := s.genNextMsgIDs(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range hits {
		raw, err := s.tr.Recv(ctx, c.link)
		if err != nil {
			continue
		}
		d, err := s.decodeContentMessage(raw, c.prevLink, c.link)
		if err != nil {
			s.log.Debugw("discarding message that failed to decode", "link", message.FormatLink(c.link), "err", err)
			metrics.UnwrapErrors.WithLabelValues(errorKind(err)).Inc()
			continue
		}
		s.mu.Lock()
		s.advanceCursor(c.publisher, c.link, c.branchNo, c.seqNo)
		s.recordDecoded(d)
		s.mu.Unlock()
		metrics.MessagesUnwrapped.WithLabelValues(d.Header.ContentType.String()).Inc()
		out = append(out, d)
	}

	disc, err := s.scanIndexForDiscovery(ctx)
	if err != nil {
		return nil, err
	}
	out = append(out, disc...)

	return out, nil
}

// sync repeatedly calls fetchNextMsgs until a pass yields nothing new,
// returning the ordered list of newly decoded messages (spec.md §4.F).
func (s *State) sync(ctx context.Context) ([]*Decoded, error) {
	var all []*Decoded
	for {
		batch, err := s.fetchNextMsgs(ctx)
		if err != nil {
			return all, err
		}
		if len(batch) == 0 {
			metrics.SyncMessagesFound.Observe(float64(len(all)))
			return all, nil
		}
		all = append(all, batch...)
	}
}

// errorKind maps an unwrap failure onto the stable label set the
// channels_unwrap_errors_total metric uses.
func errorKind(err error) string {
	switch {
	case errors.Is(err, ddml.ErrSignature):
		return "signature"
	case errors.Is(err, ddml.ErrDecode):
		return "decode"
	case errors.Is(err, ErrNotPermitted), errors.Is(err, content.ErrNotPermitted):
		return "not_permitted"
	case errors.Is(err, ErrUnknownPredecessor):
		return "unknown_predecessor"
	default:
		return "other"
	}
}

// fetchPrevMsg follows link's PreviousLink backwards one hop, by looking
// up link in the local decode log: spec.md §9's checkpoint-chaining design
// means a message this user has not already decoded forward from has no
// available transcript to resume from, so backward traversal is local
// history lookup rather than a live re-decode (see DESIGN.md).
func (s *State) fetchPrevMsg(link message.Link) (*Decoded, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.byMsgID[link.MsgID]
	if !ok {
		return nil, ErrUnknownPredecessor
	}
	prev, ok := s.byMsgID[d.Header.PreviousMsgID]
	if !ok {
		return nil, ErrUnknownPredecessor
	}
	return prev, nil
}

// fetchPrevMsgs walks fetchPrevMsg backwards from link up to max hops.
func (s *State) fetchPrevMsgs(link message.Link, maxHops int) ([]*Decoded, error) {
	var out []*Decoded
	cur := link
	for i := 0; i < maxHops; i++ {
		d, err := s.fetchPrevMsg(cur)
		if err != nil {
			break
		}
		out = append(out, d)
		cur = d.Link
	}
	return out, nil
}

// resetState zeroes every cursor and registration flag, so the caller can
// resync from scratch without changing identity (spec.md §4.F,
// "Reset-state").
func (s *State) resetState() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shared = nil
	s.cursors = make(map[string]*Cursor)
	s.seqCursors = make(map[string]*Cursor)
	s.checkpoints = make(map[message.MsgID]*spongos.Spongos)
	s.byMsgID = make(map[message.MsgID]*Decoded)
	s.decodeLog = nil
	s.indexScanned = 0
	s.registered = false
	s.authorPub = nil
	s.haveSession = false
	s.sessionKey = [32]byte{}
	s.branchNo = 0
	s.branchRoot = message.Link{}
	s.ownRegCursor = nil
	s.nonceCounter = 0
}

// decodeContentMessage dispatches an ordinary content message (Keyload,
// SignedPacket, TaggedPacket) by ContentType, using the known publisher
// identity for the cursor this candidate was generated against.
func (s *State) decodeContentMessage(raw []byte, prevLink, link message.Link) (*Decoded, error) {
	s.mu.Lock()
	sessionKey, haveSession := s.sessionKeyFor()
	authorPub := s.authorPub
	psks := s.psks
	x25519 := s.priv.X25519
	s.mu.Unlock()

	ctx, h, err := s.beginUnwrap(raw, prevLink)
	if err != nil {
		return nil, err
	}
	if h.MsgID != link.MsgID {
		return nil, ddml.ErrDecode
	}

	publisherPub, err := key.ParsePublicIdentity(h.PublisherID)
	if err != nil {
		return nil, err
	}

	switch h.ContentType {
	case message.ContentKeyload:
		if authorPub == nil || !publisherPub.Ed25519.Equal(authorPub.Ed25519) {
			return nil, ErrUnknownPublisher
		}
		kl := &content.Keyload{}
		uerr := kl.Unwrap(ctx, authorPub, content.KeyloadIdentity{X25519: x25519, Psks: psks})
		s.finishUnwrap(h.MsgID, ctx)
		s.mu.Lock()
		if uerr == nil {
			s.sessionKey = kl.SessionKey
			s.haveSession = true
			s.branchNo++
			s.branchRoot = link
		}
		s.mu.Unlock()
		if uerr == content.ErrNotPermitted {
			return &Decoded{Link: link, Header: *h, Publisher: publisherPub, Content: kl, NotPermitted: true}, nil
		}
		if uerr != nil {
			return nil, uerr
		}
		return &Decoded{Link: link, Header: *h, Publisher: publisherPub, Content: kl}, nil

	case message.ContentSignedPacket:
		if !haveSession {
			return nil, ErrNotPermitted
		}
		absorbSession(ctx, sessionKey)
		sp := &content.SignedPacket{}
		if err := sp.Unwrap(ctx, publisherPub); err != nil {
			return nil, err
		}
		s.finishUnwrap(h.MsgID, ctx)
		return &Decoded{Link: link, Header: *h, Publisher: publisherPub, Content: sp}, nil

	case message.ContentTaggedPacket:
		if !haveSession {
			return nil, ErrNotPermitted
		}
		absorbSession(ctx, sessionKey)
		tp := &content.TaggedPacket{}
		if err := tp.Unwrap(ctx); err != nil {
			return nil, err
		}
		s.finishUnwrap(h.MsgID, ctx)
		return &Decoded{Link: link, Header: *h, Publisher: publisherPub, Content: tp}, nil

	case message.ContentSequence:
		seq := &content.Sequence{}
		if err := seq.Unwrap(ctx, publisherPub); err != nil {
			return nil, err
		}
		s.finishUnwrap(h.MsgID, ctx)
		return &Decoded{Link: link, Header: *h, Publisher: publisherPub, Content: seq}, nil

	default:
		return nil, ddml.ErrDecode
	}
}
