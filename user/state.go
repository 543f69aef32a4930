// Package user implements the per-publisher cursor engine and the
// Author/Subscriber drivers built on top of it (spec.md §4.F, §4.G). State
// is the shared engine: cursor bookkeeping, next-message-id derivation,
// spongos transcript chaining and sync/fetch. Author and Subscriber (in
// author.go / subscriber.go) wrap a *State and add the role-specific
// operations spec.md §4.G names.
//
// It follows the teacher's core.DrandDaemon construction pattern (a struct
// wrapping identity, storage and a logger, built through a single
// NewX(...) constructor) and its crypto/vault.Vault model of "one mutable
// crypto-adjacent struct guarded by one mutex."
package user

import (
	"encoding/hex"
	"math"
	"sync"

	"github.com/drand/channels/ddml"
	"github.com/drand/channels/key"
	"github.com/drand/channels/log"
	"github.com/drand/channels/message"
	"github.com/drand/channels/spongos"
	"github.com/drand/channels/transport"
)

// genesisDomain seeds the spongos of every message that has no predecessor
// (the Announcement). Every other message resumes from a checkpointed
// fork of its predecessor's committed spongos instead of being reseeded,
// per spec.md §9 ("do not re-seed from scratch per message").
const genesisDomain = "channels-genesis-v1"

// Decoded is one message this user has successfully unwrapped (or wrapped
// locally), recorded so FetchPrevMsg(s) can walk the link chain without
// needing to re-derive a spongos transcript it no longer holds a
// checkpoint for.
type Decoded struct {
	Link         message.Link
	Header       message.Header
	Publisher    *key.PublicIdentity
	Content      interface{} // *content.Announcement, *content.Subscribe, *content.Keyload, *content.SignedPacket, *content.TaggedPacket, or *content.Sequence
	NotPermitted bool
}

// State is the cursor engine and transcript-checkpoint store shared by
// Author and Subscriber. It is not exported on its own; callers use
// NewAuthor/NewSubscriber.
type State struct {
	mu sync.Mutex

	log log.Logger
	tr  transport.Transport

	priv *key.PrivateIdentity
	prng *key.Prng

	address  message.Address
	chanType ChannelType

	authorPub   *key.PublicIdentity
	registered  bool
	announceLnk message.Link

	// single-branch mode: one cursor shared by every publisher (spec.md
	// §4.F, "lockstep").
	shared *Cursor

	// multi-branch mode: one cursor per publisher, plus a parallel
	// sequence-chain cursor per publisher for the anchor-branch pointer
	// messages.
	cursors    map[string]*Cursor
	seqCursors map[string]*Cursor

	subscribers map[string]*key.PublicIdentity
	psks        *key.PskStore

	sessionKey  [32]byte
	haveSession bool
	branchNo    uint32

	// branchRoot is the link a publisher's very first content message on
	// the current branch resumes from when it has no Cursor of its own
	// yet (spec.md §4.F): the Keyload that opened the branch, or the
	// Announcement if no Keyload has been seen.
	branchRoot message.Link

	checkpoints map[message.MsgID]*spongos.Spongos

	byMsgID   map[message.MsgID]*Decoded
	decodeLog []*Decoded // decode order, for Sync's return value

	// indexScanned is how many entries of transport.RecvIndex(address)
	// have already been inspected for Subscribe/Unsubscribe/Sequence
	// discovery (spec.md §4.F's index-based discovery, extended here to
	// cover Subscribe too: see DESIGN.md).
	indexScanned int

	// nonceCounter labels successive Keyload nonce draws from prng so that
	// repeated Keyloads from the same seed never collide (see randomNonce
	// in content.go).
	nonceCounter uint64

	// ownRegCursor chains this Subscriber's own Subscribe/Unsubscribe
	// messages, kept separate from cursors/seqCursors since those track
	// ordinary content and the anchor-branch sequence chain respectively.
	ownRegCursor *Cursor
}

func newState(priv *key.PrivateIdentity, prng *key.Prng, addr message.Address, ct ChannelType, tr transport.Transport, lg log.Logger) *State {
	if lg == nil {
		lg = log.NewNop()
	}
	return &State{
		log:         lg,
		tr:          tr,
		priv:        priv,
		prng:        prng,
		address:     addr,
		chanType:    ct,
		cursors:     make(map[string]*Cursor),
		seqCursors:  make(map[string]*Cursor),
		subscribers: make(map[string]*key.PublicIdentity),
		psks:        key.NewPskStore(),
		checkpoints: make(map[message.MsgID]*spongos.Spongos),
		byMsgID:     make(map[message.MsgID]*Decoded),
	}
}

func pubKey(p *key.PublicIdentity) string { return hex.EncodeToString(p.Bytes()) }

// cursorFor returns the Cursor governing pub's next message, and whether it
// is pub's first-ever content message.
func (s *State) cursorFor(pub *key.PublicIdentity) (*Cursor, bool) {
	if s.chanType == SingleBranch {
		if s.shared == nil {
			return nil, true
		}
		return s.shared, false
	}
	c, ok := s.cursors[pubKey(pub)]
	return c, !ok
}

// advanceCursor records pub's new position after a successful wrap/unwrap
// of an ordinary content message (Keyload, SignedPacket, TaggedPacket). In
// single-branch mode this is a lockstep update visible to every publisher;
// in multi-branch mode it only touches pub's own line.
func (s *State) advanceCursor(pub *key.PublicIdentity, link message.Link, branchNo, seqNo uint32) {
	next := &Cursor{LastLink: link, BranchNo: branchNo, SeqNo: seqNo}
	if s.chanType == SingleBranch {
		s.shared = next
		return
	}
	s.cursors[pubKey(pub)] = next
}

// nextContentParamsLocked returns the (prevLink, branchNo, seqNo) an
// ordinary content message (Keyload, SignedPacket, TaggedPacket) from pub
// should carry next. A cursor already at the maximum sequence number
// cannot advance (seq_no rollover is forbidden); that yields
// ErrBadArgument. Callers must hold s.mu.
func (s *State) nextContentParamsLocked(pub *key.PublicIdentity) (message.Link, uint32, uint32, error) {
	cur, isFirst := s.cursorFor(pub)
	if isFirst {
		return s.branchRoot, s.branchNo, nextSeqNo(nil, false, false), nil
	}
	if cur.SeqNo == math.MaxUint32 {
		return message.Link{}, 0, 0, ErrBadArgument
	}
	return cur.LastLink, cur.BranchNo, nextSeqNo(cur, false, false), nil
}

func (s *State) seqCursorFor(pub *key.PublicIdentity) *Cursor {
	return s.seqCursors[pubKey(pub)]
}

func (s *State) advanceSeqCursor(pub *key.PublicIdentity, link message.Link, seqNo uint32) {
	s.seqCursors[pubKey(pub)] = &Cursor{LastLink: link, BranchNo: 0, SeqNo: seqNo}
}

// checkpoint snapshots sp (post-Commit) as the resumable transcript state
// for id, per spec.md §9. A squeezed digest alone cannot reseed a one-way
// sponge, so what is stored here is a cloned live Spongos rather than a
// short tag; it never appears on the wire, and leaves process memory only
// inside the password-encrypted Export blob, so the "Spongos state is
// never observed externally" invariant (spec.md §3) still holds for
// anyone without that password.
func (s *State) checkpoint(id message.MsgID, sp *spongos.Spongos) {
	s.checkpoints[id] = sp.Clone()
}

// spongosAfter returns the spongos a message naming prev as its
// PreviousLink should resume from: a fresh genesis spongos if prev is zero
// (the Announcement), or a fork of prev's checkpoint otherwise.
func (s *State) spongosAfter(prev message.Link) (*spongos.Spongos, error) {
	if prev.IsZero() {
		sp := spongos.New(spongos.DefaultRate)
		sp.Absorb([]byte(genesisDomain))
		sp.Commit()
		return sp, nil
	}
	cp, ok := s.checkpoints[prev.MsgID]
	if !ok {
		return nil, ErrUnknownPredecessor
	}
	return cp.Fork(), nil
}

// wrapParams bundles what every content-message Wrap call shares: its
// header fields, the resulting MsgID, and the forked spongos to run the
// content schema on.
type wrapParams struct {
	ctx    *ddml.Context
	header *message.Header
	link   message.Link
}

// beginWrap forks the spongos after prevLink, absorbs the header, and
// returns a Context ready for a content.* schema's Wrap method.
func (s *State) beginWrap(ct message.ContentType, prevLink message.Link, publisherPub []byte, branchNo, seqNo uint32) (*wrapParams, error) {
	sp, err := s.spongosAfter(prevLink)
	if err != nil {
		return nil, err
	}
	msgID := message.DeriveMsgID(s.address, publisherPub, prevLink.MsgID, branchNo, seqNo)
	h := &message.Header{
		Version:       message.HeaderVersion,
		AppInst:       s.address.AppInst,
		MsgID:         msgID,
		ContentType:   ct,
		PreviousMsgID: prevLink.MsgID,
		PublisherID:   publisherPub,
	}
	ctx := ddml.NewWrapContext(sp)
	if err := h.Wrap(ctx); err != nil {
		return nil, err
	}
	return &wrapParams{ctx: ctx, header: h, link: message.Link{Address: s.address, MsgID: msgID}}, nil
}

// finishWrap checkpoints the transcript after the content schema ran and
// returns the serialized message.
func (s *State) finishWrap(p *wrapParams) []byte {
	s.checkpoint(p.link.MsgID, p.ctx.Spongos())
	return p.ctx.Bytes()
}

// beginUnwrap forks the spongos after prevLink and parses the header,
// verifying it actually names prevLink as its predecessor.
func (s *State) beginUnwrap(raw []byte, prevLink message.Link) (*ddml.Context, *message.Header, error) {
	sp, err := s.spongosAfter(prevLink)
	if err != nil {
		return nil, nil, err
	}
	ctx := ddml.NewUnwrapContext(sp, raw)
	h := &message.Header{}
	if err := h.Unwrap(ctx); err != nil {
		return nil, nil, err
	}
	if h.PreviousMsgID != prevLink.MsgID {
		return nil, nil, ddml.ErrDecode
	}
	return ctx, h, nil
}

func (s *State) finishUnwrap(msgID message.MsgID, ctx *ddml.Context) {
	s.checkpoint(msgID, ctx.Spongos())
}

// spongosAfterMsgID is spongosAfter's counterpart for callers that only have
// a bare MsgID (not a full Link) to resume from: a fresh genesis spongos if
// id is the zero MsgID, or a fork of id's checkpoint otherwise.
func (s *State) spongosAfterMsgID(id message.MsgID) (*spongos.Spongos, error) {
	var zero message.MsgID
	if id == zero {
		sp := spongos.New(spongos.DefaultRate)
		sp.Absorb([]byte(genesisDomain))
		sp.Commit()
		return sp, nil
	}
	cp, ok := s.checkpoints[id]
	if !ok {
		return nil, ErrUnknownPredecessor
	}
	return cp.Fork(), nil
}

// beginUnwrapAuto parses raw's header against a throwaway spongos just to
// learn which predecessor it actually names (unlike beginUnwrap, it does not
// require the caller to already know that predecessor), then re-parses the
// header from scratch on the correct forked spongos so the returned Context
// resumes exactly where that predecessor's sender left off. This is what
// registration scanning needs: an Unsubscribe's PreviousLink is whichever
// registration message that same subscriber sent last, not necessarily the
// Announcement, and the scanner has no cursor to predict it from.
func (s *State) beginUnwrapAuto(raw []byte) (*ddml.Context, *message.Header, error) {
	peekSp := spongos.New(spongos.DefaultRate)
	peekCtx := ddml.NewUnwrapContext(peekSp, raw)
	peekHeader := &message.Header{}
	if err := peekHeader.Unwrap(peekCtx); err != nil {
		return nil, nil, err
	}

	sp, err := s.spongosAfterMsgID(peekHeader.PreviousMsgID)
	if err != nil {
		return nil, nil, err
	}
	ctx := ddml.NewUnwrapContext(sp, raw)
	h := &message.Header{}
	if err := h.Unwrap(ctx); err != nil {
		return nil, nil, err
	}
	return ctx, h, nil
}

// recordDecoded appends d to the decode log, indexed by MsgID.
func (s *State) recordDecoded(d *Decoded) {
	s.byMsgID[d.Link.MsgID] = d
	s.decodeLog = append(s.decodeLog, d)
}

// sessionKeyFor returns the current branch session key. SignedPacket/
// TaggedPacket wrap/unwrap absorb it into the transcript right after the
// preceding message's checkpoint, which is what makes "under the
// inherited session state of the link it follows" (spec.md §4.E) true: a
// recipient that never derived the session key from the Keyload gets a
// diverging transcript for every later message on that branch, exactly
// spec.md §7's "NotPermitted ... subsequent messages on that branch will
// also be NotPermitted."
func (s *State) sessionKeyFor() ([]byte, bool) {
	if !s.haveSession {
		return nil, false
	}
	return s.sessionKey[:], true
}

// absorbSession folds the branch session key into ctx's transcript and
// commits, right after a message's own Commit/Mssig. Both sender and an
// authorized receiver perform this identically; an unauthorized receiver
// cannot, so its checkpoint for this message silently diverges.
func absorbSession(ctx *ddml.Context, sessionKey []byte) {
	ctx.AbsorbSecret(sessionKey)
	ctx.Commit()
}

// Address returns the channel address.
func (s *State) Address() message.Address { return s.address }

// ChannelType reports the channel's fan-out discipline.
func (s *State) ChannelType() ChannelType { return s.chanType }

// IsRegistered reports whether the Announcement has been processed.
func (s *State) IsRegistered() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registered
}

// Subscribers returns the currently known subscriber public identities.
func (s *State) Subscribers() []*key.PublicIdentity {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*key.PublicIdentity, 0, len(s.subscribers))
	for _, p := range s.subscribers {
		out = append(out, p)
	}
	return out
}

// AddPsk registers a pre-shared key, returning its PskID.
func (s *State) AddPsk(p key.Psk) key.PskID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.psks.Add(p)
}

// RemovePsk removes a pre-shared key by id.
func (s *State) RemovePsk(id key.PskID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.psks.Remove(id)
}
