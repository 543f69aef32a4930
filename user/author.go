package user

import (
	"context"
	"crypto/rand"
	"errors"

	"github.com/drand/channels/content"
	"github.com/drand/channels/ddml"
	"github.com/drand/channels/key"
	"github.com/drand/channels/log"
	"github.com/drand/channels/message"
	"github.com/drand/channels/metrics"
	"github.com/drand/channels/spongos"
	"github.com/drand/channels/transport"
)

// ErrAlreadyAnnounced is returned by Announce when the channel has already
// been created by this Author instance.
var ErrAlreadyAnnounced = errors.New("user: channel already announced")

// Author is the channel-creating role (spec.md §4.G): it constructs the
// channel, accepts subscribes/unsubscribes, issues keyloads, publishes
// signed/tagged packets and manages the PSK/subscriber sets. It follows the
// teacher's core.DrandDaemon pattern of a thin role wrapper constructed
// once via NewAuthor and driven through explicit lifecycle methods.
type Author struct {
	state *State
}

// NewAuthor derives the Author's identity from seed and creates a new,
// not-yet-announced channel address using a random 8-byte nonce (spec.md
// §3, "a nonce chosen by Author at creation"). The channel is not visible
// on the transport until Announce is called.
func NewAuthor(seed string, chanType ChannelType, tr transport.Transport, lg log.Logger) (*Author, error) {
	if chanType == SingleDepth {
		return nil, ErrUnsupportedChannelType
	}
	var nonce [message.NonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, err
	}
	return newAuthor(seed, nonce, chanType, tr, lg)
}

// NewAuthorWithNonce is NewAuthor with an explicit nonce, for deterministic
// tests and for reopening an existing channel's address from its known
// nonce (as the CLI's publish command does).
func NewAuthorWithNonce(seed string, nonce [message.NonceSize]byte, chanType ChannelType, tr transport.Transport, lg log.Logger) (*Author, error) {
	if chanType == SingleDepth {
		return nil, ErrUnsupportedChannelType
	}
	return newAuthor(seed, nonce, chanType, tr, lg)
}

func newAuthor(seed string, nonce [message.NonceSize]byte, chanType ChannelType, tr transport.Transport, lg log.Logger) (*Author, error) {
	prng := key.NewPrng(seed)
	priv := key.NewIdentity(prng.SeedKey())
	addr := message.NewAddress(priv.Public.Bytes(), nonce)

	s := newState(priv, prng, addr, chanType, tr, lg)
	s.authorPub = &priv.Public
	return &Author{state: s}, nil
}

// Address returns the channel address (valid even before Announce, since
// the Author derives it deterministically from its seed and nonce).
func (a *Author) Address() message.Address { return a.state.Address() }

// IsRegistered reports whether Announce has already run.
func (a *Author) IsRegistered() bool { return a.state.IsRegistered() }

// ChannelType reports the channel's fan-out discipline.
func (a *Author) ChannelType() ChannelType { return a.state.ChannelType() }

// Subscribers returns the currently known subscriber identities.
func (a *Author) Subscribers() []*key.PublicIdentity { return a.state.Subscribers() }

// AddPsk registers a pre-shared key the Author can target in a Keyload.
func (a *Author) AddPsk(p key.Psk) key.PskID { return a.state.AddPsk(p) }

// RemovePsk removes a pre-shared key from the Author's store.
func (a *Author) RemovePsk(id key.PskID) { a.state.RemovePsk(id) }

// AddSubscriber explicitly registers pub as a subscriber without requiring
// it to send a Subscribe message (spec.md §4.G, "stores ... subscribers
// explicitly").
func (a *Author) AddSubscriber(pub *key.PublicIdentity) {
	s := a.state
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers[pubKey(pub)] = pub
}

// RemoveSubscriber explicitly revokes pub, excluding it from future
// keyloads-for-everyone (spec.md §4.G).
func (a *Author) RemoveSubscriber(pub *key.PublicIdentity) {
	s := a.state
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subscribers, pubKey(pub))
}

// channelFlagsFor projects a ChannelType onto the wire-level ChannelFlags
// an Announcement carries (spec.md §4.E).
func channelFlagsFor(ct ChannelType) content.ChannelFlags {
	if ct == MultiBranch {
		return content.FlagMultiBranch
	}
	return content.FlagSingleBranch
}

// Announce creates the channel by wrapping and sending its Announcement
// message, establishing this Author's identity and the channel's fan-out
// mode for every future subscriber (spec.md §4.E). The Announcement's MsgID
// is not derived through the ordinary per-sequence formula; per spec.md §3
// it is simply H(AppInst), since it is the one message with no
// predecessor and no sequence number of its own.
func (a *Author) Announce(ctx context.Context) (message.Link, error) {
	s := a.state

	s.mu.Lock()
	if s.registered {
		s.mu.Unlock()
		return message.Link{}, ErrAlreadyAnnounced
	}
	addr := s.address
	s.mu.Unlock()

	msgID := message.AnnouncementMsgID(addr)
	link := message.Link{Address: addr, MsgID: msgID}

	sp := spongos.New(spongos.DefaultRate)
	sp.Absorb([]byte(genesisDomain))
	sp.Commit()

	h := &message.Header{
		Version:     message.HeaderVersion,
		AppInst:     addr.AppInst,
		MsgID:       msgID,
		ContentType: message.ContentAnnouncement,
		PublisherID: s.priv.Public.Bytes(),
	}
	wc := ddml.NewWrapContext(sp)
	if err := h.Wrap(wc); err != nil {
		return message.Link{}, err
	}

	ann := &content.Announcement{AuthorPub: s.priv.Public, ChannelFlags: channelFlagsFor(s.chanType)}
	if err := ann.Wrap(wc, s.priv); err != nil {
		return message.Link{}, err
	}

	raw := wc.Bytes()
	if err := s.tr.Send(ctx, link, raw); err != nil {
		return message.Link{}, err
	}

	s.mu.Lock()
	s.registered = true
	s.announceLnk = link
	s.branchRoot = link
	s.checkpoint(msgID, wc.Spongos())
	s.recordDecoded(&Decoded{Link: link, Header: *h, Publisher: &s.priv.Public, Content: ann})
	s.mu.Unlock()
	metrics.MessagesWrapped.WithLabelValues(message.ContentAnnouncement.String()).Inc()

	return link, nil
}

// NewKeyloadForEveryone issues a Keyload naming every currently known
// subscriber (by X25519 key) and every PSK in the Author's own store
// (spec.md §4.G, "for-everyone"), establishing a fresh, random session key
// for the branch.
func (a *Author) NewKeyloadForEveryone(ctx context.Context) (message.Link, error) {
	s := a.state
	s.mu.Lock()
	subs := make([]*key.PublicIdentity, 0, len(s.subscribers))
	for _, p := range s.subscribers {
		subs = append(subs, p)
	}
	pskIDs := s.psks.IDs()
	s.mu.Unlock()
	return a.NewKeyload(ctx, pskIDs, subs)
}

// NewKeyload issues a Keyload naming exactly the given PSKs and subscriber
// public keys (spec.md §4.E, §4.G): only holders of one of those secrets
// can reconstruct the resulting session key.
func (a *Author) NewKeyload(ctx context.Context, pskIDs []key.PskID, pubKeys []*key.PublicIdentity) (message.Link, error) {
	s := a.state
	if !s.IsRegistered() {
		return message.Link{}, ErrNotRegistered
	}

	var sessionKey [32]byte
	if _, err := rand.Read(sessionKey[:]); err != nil {
		return message.Link{}, err
	}

	recipients := make([]content.KeyloadRecipient, 0, len(pskIDs)+len(pubKeys))
	for _, id := range pskIDs {
		recipients = append(recipients, content.KeyloadRecipient{Kind: content.RecipientPsk, PskID: id})
	}
	for i, pub := range pubKeys {
		priv, epub := s.prng.X25519Ephemeral(ephemeralKeyloadLabel(i))
		recipients = append(recipients, content.KeyloadRecipient{
			Kind:          content.RecipientSubscriber,
			SubscriberPub: pub,
			EphemeralPriv: priv,
			EphemeralPub:  epub,
		})
	}

	return s.wrapAndSendKeyload(ctx, s.priv, &s.priv.Public, recipients, s.psks, sessionKey)
}

func ephemeralKeyloadLabel(i int) string {
	const hex = "0123456789abcdef"
	buf := []byte("keyload-ephemeral-0000")
	for p := 0; p < 4; p++ {
		buf[len(buf)-1-p] = hex[(i>>uint(p*4))&0xf]
	}
	return string(buf)
}

// PublishSigned wraps, signs and sends a SignedPacket on the current branch
// (spec.md §4.E, §4.G).
func (a *Author) PublishSigned(ctx context.Context, public, masked []byte) (message.Link, error) {
	return a.state.publishSignedPacket(ctx, a.state.priv, &a.state.priv.Public, public, masked)
}

// PublishTagged wraps and sends a TaggedPacket on the current branch.
func (a *Author) PublishTagged(ctx context.Context, public, masked []byte) (message.Link, error) {
	return a.state.publishTaggedPacket(ctx, a.state.priv, &a.state.priv.Public, public, masked)
}

// Sync repeatedly syncs until no new messages are found (spec.md §4.F).
func (a *Author) Sync(ctx context.Context) ([]*Decoded, error) { return a.state.sync(ctx) }

// FetchNextMsgs performs a single discovery pass.
func (a *Author) FetchNextMsgs(ctx context.Context) ([]*Decoded, error) {
	return a.state.fetchNextMsgs(ctx)
}

// FetchPrevMsg follows link's PreviousLink backwards one hop.
func (a *Author) FetchPrevMsg(link message.Link) (*Decoded, error) { return a.state.fetchPrevMsg(link) }

// FetchPrevMsgs walks FetchPrevMsg backwards up to maxHops times.
func (a *Author) FetchPrevMsgs(link message.Link, maxHops int) ([]*Decoded, error) {
	return a.state.fetchPrevMsgs(link, maxHops)
}

// ResetState zeroes all cursors, checkpoints, session state and the
// registration flag (spec.md §4.F). It does not re-announce:
// IsRegistered reports false afterwards.
func (a *Author) ResetState() { a.state.resetState() }

// Export serializes the Author's full state under a password-derived key
// (spec.md §4.G, §6).
func (a *Author) Export(password string) ([]byte, error) { return a.state.export(password) }

// ImportAuthor reverses Export into a fresh Author driven by tr/lg.
func ImportAuthor(blob []byte, password string, tr transport.Transport, lg log.Logger) (*Author, error) {
	s, err := importState(blob, password, tr, lg)
	if err != nil {
		return nil, err
	}
	return &Author{state: s}, nil
}
