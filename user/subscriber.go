package user

import (
	"context"

	"github.com/drand/channels/content"
	"github.com/drand/channels/ddml"
	"github.com/drand/channels/key"
	"github.com/drand/channels/log"
	"github.com/drand/channels/message"
	"github.com/drand/channels/metrics"
	"github.com/drand/channels/spongos"
	"github.com/drand/channels/transport"
)

// Subscriber is the non-creating role (spec.md §4.G): it processes an
// Announcement to register, may Subscribe (or set a PSK as an alternative),
// publishes signed/tagged packets subject to branch access, and syncs.
type Subscriber struct {
	state *State
}

// NewSubscriber derives the Subscriber's identity from seed. The resulting
// Subscriber knows nothing about any channel until ProcessAnnouncement is
// called.
func NewSubscriber(seed string, tr transport.Transport, lg log.Logger) *Subscriber {
	prng := key.NewPrng(seed)
	priv := key.NewIdentity(prng.SeedKey())
	// The address is a placeholder until ProcessAnnouncement learns the
	// real one; SingleBranch is likewise just the pre-registration default.
	s := newState(priv, prng, message.Address{}, SingleBranch, tr, lg)
	return &Subscriber{state: s}
}

// Identity exposes this Subscriber's public identity, e.g. so the Author
// can be told out-of-band which key to add via AddSubscriber.
func (sub *Subscriber) Identity() *key.PublicIdentity { return &sub.state.priv.Public }

// IsRegistered reports whether ProcessAnnouncement has already run.
func (sub *Subscriber) IsRegistered() bool { return sub.state.IsRegistered() }

// Address returns the channel address, valid only once registered.
func (sub *Subscriber) Address() message.Address { return sub.state.Address() }

// ChannelType reports the channel's fan-out discipline, valid only once
// ProcessAnnouncement has run.
func (sub *Subscriber) ChannelType() ChannelType { return sub.state.ChannelType() }

// AddPsk registers a pre-shared key as an alternative to Subscribe (spec.md
// §4.G, "May set PSKs as an alternative to subscribing").
func (sub *Subscriber) AddPsk(p key.Psk) key.PskID { return sub.state.AddPsk(p) }

// RemovePsk removes a pre-shared key from this Subscriber's store.
func (sub *Subscriber) RemovePsk(id key.PskID) { sub.state.RemovePsk(id) }

func channelTypeFor(flags content.ChannelFlags) ChannelType {
	if flags == content.FlagMultiBranch {
		return MultiBranch
	}
	return SingleBranch
}

// ProcessAnnouncement fetches and unwraps the Announcement at annLink,
// learning the Author's identity and the channel's fan-out mode, and marks
// this Subscriber Registered (spec.md §4.E). annLink must carry the full
// channel Address (AppInst and Nonce), normally obtained out-of-band from
// the Author.
func (sub *Subscriber) ProcessAnnouncement(ctx context.Context, annLink message.Link) (message.Link, error) {
	s := sub.state
	s.mu.Lock()
	if s.registered {
		s.mu.Unlock()
		return message.Link{}, ErrAlreadyAnnounced
	}
	s.mu.Unlock()

	raw, err := s.tr.Recv(ctx, annLink)
	if err != nil {
		return message.Link{}, err
	}

	sp := spongos.New(spongos.DefaultRate)
	sp.Absorb([]byte(genesisDomain))
	sp.Commit()

	uc := ddml.NewUnwrapContext(sp, raw)
	h := &message.Header{}
	if err := h.Unwrap(uc); err != nil {
		return message.Link{}, err
	}
	if h.ContentType != message.ContentAnnouncement {
		return message.Link{}, ddml.ErrDecode
	}
	var zeroMsgID message.MsgID
	if h.AppInst != annLink.Address.AppInst || h.MsgID != annLink.MsgID || h.PreviousMsgID != zeroMsgID {
		return message.Link{}, ddml.ErrDecode
	}

	ann := &content.Announcement{}
	if err := ann.Unwrap(uc); err != nil {
		return message.Link{}, err
	}

	s.mu.Lock()
	s.address = annLink.Address
	s.chanType = channelTypeFor(ann.ChannelFlags)
	s.authorPub = &ann.AuthorPub
	s.registered = true
	s.announceLnk = annLink
	s.branchRoot = annLink
	s.checkpoint(annLink.MsgID, uc.Spongos())
	s.recordDecoded(&Decoded{Link: annLink, Header: *h, Publisher: &ann.AuthorPub, Content: ann})
	s.mu.Unlock()
	metrics.MessagesUnwrapped.WithLabelValues(message.ContentAnnouncement.String()).Inc()

	return annLink, nil
}

// Subscribe sends a Subscribe request proving this Subscriber's identity to
// the Author (spec.md §4.E, §4.G). A Subscriber's first registration
// message links directly to the Announcement and carries the reserved
// sequence number 1 (spec.md §3); a Subscribe sent after an earlier
// Subscribe/Unsubscribe links to that message with the next number.
func (sub *Subscriber) Subscribe(ctx context.Context) (message.Link, error) {
	return sub.sendRegistration(ctx, message.ContentSubscribe)
}

// Unsubscribe sends an Unsubscribe request; on successful processing the
// Author removes this Subscriber's key from future keyloads-for-everyone
// (spec.md §4.E).
func (sub *Subscriber) Unsubscribe(ctx context.Context) (message.Link, error) {
	return sub.sendRegistration(ctx, message.ContentUnsubscribe)
}

func (sub *Subscriber) sendRegistration(ctx context.Context, ct message.ContentType) (message.Link, error) {
	s := sub.state
	if !s.IsRegistered() {
		return message.Link{}, ErrNotRegistered
	}
	s.mu.Lock()
	authorPub := s.authorPub
	announceLnk := s.announceLnk
	existing := s.ownRegCursor
	s.mu.Unlock()

	prevLink := announceLnk
	if existing != nil {
		prevLink = existing.LastLink
	}
	seqNo := nextSeqNo(existing, false, true)

	p, err := s.beginWrap(ct, prevLink, s.priv.Public.Bytes(), 0, seqNo)
	if err != nil {
		return message.Link{}, err
	}

	ephPriv, ephPub := s.prng.X25519Ephemeral(registrationEphemeralLabel(ct, seqNo))
	regMsg := &content.Subscribe{SubscriberPub: s.priv.Public}
	if err := regMsg.Wrap(p.ctx, s.priv, authorPub, ephPriv, ephPub); err != nil {
		return message.Link{}, err
	}
	raw := s.finishWrap(p)

	if err := s.tr.Send(ctx, p.link, raw); err != nil {
		return message.Link{}, err
	}

	s.mu.Lock()
	s.ownRegCursor = &Cursor{LastLink: p.link, BranchNo: 0, SeqNo: seqNo}
	s.recordDecoded(&Decoded{Link: p.link, Header: *p.header, Publisher: &s.priv.Public, Content: regMsg})
	s.mu.Unlock()
	metrics.MessagesWrapped.WithLabelValues(ct.String()).Inc()

	return p.link, nil
}

func registrationEphemeralLabel(ct message.ContentType, seqNo uint32) string {
	if ct == message.ContentUnsubscribe {
		return "unsubscribe-" + seqNoHex(seqNo)
	}
	return "subscribe-" + seqNoHex(seqNo)
}

func seqNoHex(n uint32) string {
	const hex = "0123456789abcdef"
	buf := make([]byte, 8)
	for i := 0; i < 8; i++ {
		buf[7-i] = hex[(n>>uint(i*4))&0xf]
	}
	return string(buf)
}

// PublishSigned wraps, signs and sends a SignedPacket on the current branch
// (spec.md §4.E, §4.G), subject to this Subscriber holding a session key
// from a Keyload it could unmask.
func (sub *Subscriber) PublishSigned(ctx context.Context, public, masked []byte) (message.Link, error) {
	s := sub.state
	return s.publishSignedPacket(ctx, s.priv, &s.priv.Public, public, masked)
}

// PublishTagged wraps and sends a TaggedPacket on the current branch.
func (sub *Subscriber) PublishTagged(ctx context.Context, public, masked []byte) (message.Link, error) {
	s := sub.state
	return s.publishTaggedPacket(ctx, s.priv, &s.priv.Public, public, masked)
}

// Sync repeatedly syncs until no new messages are found (spec.md §4.F).
func (sub *Subscriber) Sync(ctx context.Context) ([]*Decoded, error) { return sub.state.sync(ctx) }

// FetchNextMsgs performs a single discovery pass.
func (sub *Subscriber) FetchNextMsgs(ctx context.Context) ([]*Decoded, error) {
	return sub.state.fetchNextMsgs(ctx)
}

// FetchPrevMsg follows link's PreviousLink backwards one hop.
func (sub *Subscriber) FetchPrevMsg(link message.Link) (*Decoded, error) {
	return sub.state.fetchPrevMsg(link)
}

// FetchPrevMsgs walks FetchPrevMsg backwards up to maxHops times.
func (sub *Subscriber) FetchPrevMsgs(link message.Link, maxHops int) ([]*Decoded, error) {
	return sub.state.fetchPrevMsgs(link, maxHops)
}

// ResetState zeroes all cursors and local registration, so the caller can
// resync from scratch without changing identity (spec.md §4.F).
func (sub *Subscriber) ResetState() { sub.state.resetState() }

// Export serializes this Subscriber's full state under a password-derived
// key (spec.md §4.G, §6).
func (sub *Subscriber) Export(password string) ([]byte, error) { return sub.state.export(password) }

// ImportSubscriber reverses Export into a fresh Subscriber driven by tr/lg.
func ImportSubscriber(blob []byte, password string, tr transport.Transport, lg log.Logger) (*Subscriber, error) {
	s, err := importState(blob, password, tr, lg)
	if err != nil {
		return nil, err
	}
	return &Subscriber{state: s}, nil
}
