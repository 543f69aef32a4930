package user

import (
	"context"

	"github.com/drand/channels/content"
	"github.com/drand/channels/key"
	"github.com/drand/channels/message"
	"github.com/drand/channels/metrics"
)

// publishSignedPacket wraps, signs and sends a SignedPacket from pub,
// running it under the branch session key per spec.md §4.E ("executed
// under the inherited session state of the link it follows"). The cursor
// only advances after the transport Send succeeds, which is this package's
// reading of spec.md §5's requirement (a) for send_*: nothing observable
// changes until the message is actually delivered.
func (s *State) publishSignedPacket(ctx context.Context, priv *key.PrivateIdentity, pub *key.PublicIdentity, public, masked []byte) (message.Link, error) {
	if !s.IsRegistered() {
		return message.Link{}, ErrNotRegistered
	}
	s.mu.Lock()
	sessionKey, have := s.sessionKeyFor()
	if !have {
		s.mu.Unlock()
		return message.Link{}, ErrNotPermitted
	}
	prevLink, branchNo, seqNo, err := s.nextContentParamsLocked(pub)
	s.mu.Unlock()
	if err != nil {
		return message.Link{}, err
	}

	p, err := s.beginWrap(message.ContentSignedPacket, prevLink, pub.Bytes(), branchNo, seqNo)
	if err != nil {
		return message.Link{}, err
	}
	absorbSession(p.ctx, sessionKey)
	sp := &content.SignedPacket{PublicPayload: public, MaskedPayload: masked}
	if err := sp.Wrap(p.ctx, priv); err != nil {
		return message.Link{}, err
	}
	raw := s.finishWrap(p)

	if err := s.tr.Send(ctx, p.link, raw); err != nil {
		return message.Link{}, err
	}

	s.mu.Lock()
	s.advanceCursor(pub, p.link, branchNo, seqNo)
	s.recordDecoded(&Decoded{Link: p.link, Header: *p.header, Publisher: pub, Content: sp})
	s.mu.Unlock()
	metrics.MessagesWrapped.WithLabelValues(message.ContentSignedPacket.String()).Inc()

	s.emitSequenceIfMultiBranch(ctx, priv, pub, branchNo, seqNo, p.link.MsgID)
	return p.link, nil
}

// publishTaggedPacket is publishSignedPacket's unsigned counterpart (spec.md
// §4.E, TaggedPacket): authentication is the squeezed MAC tag bound to the
// session key rather than an ed25519 signature.
func (s *State) publishTaggedPacket(ctx context.Context, priv *key.PrivateIdentity, pub *key.PublicIdentity, public, masked []byte) (message.Link, error) {
	if !s.IsRegistered() {
		return message.Link{}, ErrNotRegistered
	}
	s.mu.Lock()
	sessionKey, have := s.sessionKeyFor()
	if !have {
		s.mu.Unlock()
		return message.Link{}, ErrNotPermitted
	}
	prevLink, branchNo, seqNo, err := s.nextContentParamsLocked(pub)
	s.mu.Unlock()
	if err != nil {
		return message.Link{}, err
	}

	p, err := s.beginWrap(message.ContentTaggedPacket, prevLink, pub.Bytes(), branchNo, seqNo)
	if err != nil {
		return message.Link{}, err
	}
	absorbSession(p.ctx, sessionKey)
	tp := &content.TaggedPacket{PublicPayload: public, MaskedPayload: masked}
	if err := tp.Wrap(p.ctx); err != nil {
		return message.Link{}, err
	}
	raw := s.finishWrap(p)

	if err := s.tr.Send(ctx, p.link, raw); err != nil {
		return message.Link{}, err
	}

	s.mu.Lock()
	s.advanceCursor(pub, p.link, branchNo, seqNo)
	s.recordDecoded(&Decoded{Link: p.link, Header: *p.header, Publisher: pub, Content: tp})
	s.mu.Unlock()
	metrics.MessagesWrapped.WithLabelValues(message.ContentTaggedPacket.String()).Inc()

	s.emitSequenceIfMultiBranch(ctx, priv, pub, branchNo, seqNo, p.link.MsgID)
	return p.link, nil
}

// emitSequenceIfMultiBranch posts a Sequence pointer message on the anchor
// branch (branch 0) for the message pub just published, per spec.md §4.F
// ("A Sequence message is emitted on the anchor branch for every
// non-sequence message"). Failures here are logged, not propagated: the
// real content message is already durably sent, and a missing Sequence
// only costs a linear scan for peers that rely on it for discovery.
func (s *State) emitSequenceIfMultiBranch(ctx context.Context, priv *key.PrivateIdentity, pub *key.PublicIdentity, refBranchNo, refSeqNo uint32, refMsgID message.MsgID) {
	if s.chanType != MultiBranch {
		return
	}
	if err := s.wrapAndSendSequence(ctx, priv, pub, refBranchNo, refSeqNo, refMsgID); err != nil {
		s.log.Warnw("failed to publish sequence pointer", "err", err)
	}
}

// wrapAndSendSequence wraps, signs and sends a Sequence message referencing
// the (publisher, branchNo, seqNo, msgID) of a just-published content
// message, linking it to pub's previous sequence-chain message or to the
// Announcement if this is pub's first (spec.md §4.E, §4.F).
func (s *State) wrapAndSendSequence(ctx context.Context, priv *key.PrivateIdentity, pub *key.PublicIdentity, refBranchNo, refSeqNo uint32, refMsgID message.MsgID) error {
	s.mu.Lock()
	seqCur := s.seqCursorFor(pub)
	var prevLink message.Link
	var seqNo uint32
	if seqCur == nil {
		prevLink = s.announceLnk
		seqNo = 0
	} else {
		prevLink = seqCur.LastLink
		seqNo = seqCur.SeqNo + 1
	}
	s.mu.Unlock()

	p, err := s.beginWrap(message.ContentSequence, prevLink, pub.Bytes(), 0, seqNo)
	if err != nil {
		return err
	}
	seq := &content.Sequence{RefPublisherID: pub.Bytes(), RefBranchNo: refBranchNo, RefSeqNo: refSeqNo, RefMsgID: refMsgID}
	if err := seq.Wrap(p.ctx, priv); err != nil {
		return err
	}
	raw := s.finishWrap(p)

	if err := s.tr.Send(ctx, p.link, raw); err != nil {
		return err
	}

	s.mu.Lock()
	s.advanceSeqCursor(pub, p.link, seqNo)
	s.recordDecoded(&Decoded{Link: p.link, Header: *p.header, Publisher: pub, Content: seq})
	s.mu.Unlock()
	metrics.MessagesWrapped.WithLabelValues(message.ContentSequence.String()).Inc()
	return nil
}

// wrapAndSendKeyload wraps, signs and sends a Keyload establishing a fresh
// session key for recipients (spec.md §4.E), advancing the author's own
// cursor and local session state only once the transport Send succeeds.
func (s *State) wrapAndSendKeyload(ctx context.Context, priv *key.PrivateIdentity, pub *key.PublicIdentity, recipients []content.KeyloadRecipient, psks *key.PskStore, sessionKey [32]byte) (message.Link, error) {
	if !s.IsRegistered() {
		return message.Link{}, ErrNotRegistered
	}
	s.mu.Lock()
	prevLink, branchNo, seqNo, err := s.nextContentParamsLocked(pub)
	s.mu.Unlock()
	if err != nil {
		return message.Link{}, err
	}

	p, err := s.beginWrap(message.ContentKeyload, prevLink, pub.Bytes(), branchNo, seqNo)
	if err != nil {
		return message.Link{}, err
	}
	kl := &content.Keyload{Nonce: s.randomNonce(), SessionKey: sessionKey}
	if err := kl.Wrap(p.ctx, priv, recipients, psks); err != nil {
		return message.Link{}, err
	}
	raw := s.finishWrap(p)

	if err := s.tr.Send(ctx, p.link, raw); err != nil {
		return message.Link{}, err
	}

	s.mu.Lock()
	s.advanceCursor(pub, p.link, branchNo, seqNo)
	s.branchNo++
	s.branchRoot = p.link
	s.sessionKey = sessionKey
	s.haveSession = true
	s.recordDecoded(&Decoded{Link: p.link, Header: *p.header, Publisher: pub, Content: kl})
	s.mu.Unlock()
	metrics.MessagesWrapped.WithLabelValues(message.ContentKeyload.String()).Inc()

	s.emitSequenceIfMultiBranch(ctx, priv, pub, branchNo, seqNo, p.link.MsgID)
	return p.link, nil
}

// randomNonce draws a fresh 16-byte Keyload nonce from the user's seed-based
// PRNG (spec.md §4.C, "per-message ephemeral scalars"). Each call uses a
// distinct label (a monotonically increasing counter) so that repeated
// Keyloads from one State never reuse a nonce. The counter is not part of
// the recovered state: a State rebuilt by recovery starts it from zero.
func (s *State) randomNonce() [16]byte {
	s.mu.Lock()
	label := s.nonceCounter
	s.nonceCounter++
	s.mu.Unlock()

	var n [16]byte
	copy(n[:], s.prng.Sub(nonceLabel(label), 16))
	return n
}

func nonceLabel(n uint64) string {
	const hex = "0123456789abcdef"
	buf := make([]byte, 0, len("keyload-nonce-")+16)
	buf = append(buf, "keyload-nonce-"...)
	for i := 60; i >= 0; i -= 4 {
		buf = append(buf, hex[(n>>uint(i))&0xf])
	}
	return string(buf)
}
