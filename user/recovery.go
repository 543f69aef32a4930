package user

import (
	"context"
	"errors"

	"github.com/drand/channels/key"
	"github.com/drand/channels/log"
	"github.com/drand/channels/message"
	"github.com/drand/channels/transport"
)

// ErrNotTheAuthor is returned by RecoverAuthor when seed does not derive
// the ed25519 key the channel's Announcement was actually signed by.
var ErrNotTheAuthor = errors.New("user: seed is not this channel's author")

// recoverState derives an identity from seed, processes the Announcement
// at annLink to learn the channel's address/type/author, and syncs forward
// until no new messages are found (spec.md §4.G, "recover(seed, ann_link,
// channel_type, transport)"). Per spec.md §9's checkpoint design, resyncing
// is the only way to rebuild this user's spongos checkpoints: no backup
// beyond the seed itself is required.
func recoverState(ctx context.Context, seed string, annLink message.Link, tr transport.Transport, lg log.Logger) (*State, []*Decoded, error) {
	prng := key.NewPrng(seed)
	priv := key.NewIdentity(prng.SeedKey())
	s := newState(priv, prng, annLink.Address, SingleBranch, tr, lg)
	sub := &Subscriber{state: s}

	if _, err := sub.ProcessAnnouncement(ctx, annLink); err != nil {
		return nil, nil, err
	}

	decoded, err := sub.Sync(ctx)
	if err != nil {
		return nil, nil, err
	}
	return s, decoded, nil
}

// RecoverSubscriber reconstructs a Subscriber purely from its seed and the
// channel's Announcement link, resyncing its cursor table from the
// transport's contents (spec.md §4.G, §8: "recover(seed, ann_link).
// sync_state() converges to the same cursor table"). It returns every
// message discovered during the catch-up sync.
func RecoverSubscriber(ctx context.Context, seed string, annLink message.Link, tr transport.Transport, lg log.Logger) (*Subscriber, []*Decoded, error) {
	s, decoded, err := recoverState(ctx, seed, annLink, tr, lg)
	if err != nil {
		return nil, nil, err
	}
	return &Subscriber{state: s}, decoded, nil
}

// RecoverAuthor is RecoverSubscriber for the special case where seed is
// the channel's own Author: it additionally verifies that the recovered
// Announcement was signed by this seed's own key (ErrNotTheAuthor
// otherwise), then returns a fully functional Author able to issue new
// Keyloads/packets, exactly as if it had never lost its state.
func RecoverAuthor(ctx context.Context, seed string, annLink message.Link, tr transport.Transport, lg log.Logger) (*Author, []*Decoded, error) {
	s, decoded, err := recoverState(ctx, seed, annLink, tr, lg)
	if err != nil {
		return nil, nil, err
	}
	if s.authorPub == nil || !s.authorPub.Ed25519.Equal(s.priv.Public.Ed25519) {
		return nil, nil, ErrNotTheAuthor
	}
	return &Author{state: s}, decoded, nil
}
