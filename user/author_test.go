package user_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/drand/channels/content"
	"github.com/drand/channels/log"
	"github.com/drand/channels/message"
	"github.com/drand/channels/transport/memtransport"
	"github.com/drand/channels/user"
)

func fixedNonce(s string) [message.NonceSize]byte {
	var n [message.NonceSize]byte
	copy(n[:], s)
	return n
}

func TestAnnounceAndSubscribeMultiBranch(t *testing.T) {
	ctx := context.Background()
	tr := memtransport.New()

	author, err := user.NewAuthorWithNonce("author-seed-multibranch-0001", fixedNonce("nonce0001"), user.MultiBranch, tr, log.NewNop())
	require.NoError(t, err)

	annLink, err := author.Announce(ctx)
	require.NoError(t, err)
	require.True(t, author.IsRegistered())

	sub := user.NewSubscriber("subscriber-seed-0001", tr, log.NewNop())
	gotAnn, err := sub.ProcessAnnouncement(ctx, annLink)
	require.NoError(t, err)
	require.True(t, gotAnn.Equal(annLink))
	require.True(t, sub.IsRegistered())
	require.Equal(t, author.Address(), sub.Address())
	require.Equal(t, user.MultiBranch, sub.ChannelType())

	subLink, err := sub.Subscribe(ctx)
	require.NoError(t, err)

	decoded, err := author.Sync(ctx)
	require.NoError(t, err)
	require.Len(t, decoded, 1)
	require.Equal(t, subLink, decoded[0].Link)
	require.Len(t, author.Subscribers(), 1)
	require.True(t, author.Subscribers()[0].Equal(sub.Identity()))
}

func TestAnnounceTwiceFails(t *testing.T) {
	ctx := context.Background()
	tr := memtransport.New()

	author, err := user.NewAuthorWithNonce("author-seed-twice-0001", fixedNonce("nonceonce"), user.SingleBranch, tr, log.NewNop())
	require.NoError(t, err)

	_, err = author.Announce(ctx)
	require.NoError(t, err)

	_, err = author.Announce(ctx)
	require.ErrorIs(t, err, user.ErrAlreadyAnnounced)
}

func TestSingleDepthIsRejected(t *testing.T) {
	tr := memtransport.New()
	_, err := user.NewAuthor("author-seed-single-depth", user.SingleDepth, tr, log.NewNop())
	require.ErrorIs(t, err, user.ErrUnsupportedChannelType)
}

func TestKeyloadForEveryoneAndSignedPacketSingleBranch(t *testing.T) {
	ctx := context.Background()
	tr := memtransport.New()

	author, err := user.NewAuthorWithNonce("author-seed-keyload-0001", fixedNonce("kl-nonce1"), user.SingleBranch, tr, log.NewNop())
	require.NoError(t, err)
	annLink, err := author.Announce(ctx)
	require.NoError(t, err)

	subA := user.NewSubscriber("subscriber-a-seed-0001", tr, log.NewNop())
	_, err = subA.ProcessAnnouncement(ctx, annLink)
	require.NoError(t, err)
	_, err = subA.Subscribe(ctx)
	require.NoError(t, err)

	_, err = author.Sync(ctx)
	require.NoError(t, err)

	_, err = author.NewKeyloadForEveryone(ctx)
	require.NoError(t, err)

	decoded, err := subA.Sync(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, decoded)
	var sawKeyload bool
	for _, d := range decoded {
		if _, ok := d.Content.(*content.Keyload); ok {
			sawKeyload = true
		}
	}
	require.True(t, sawKeyload)

	packetLink, err := author.PublishSigned(ctx, []byte("public"), []byte("masked-payload"))
	require.NoError(t, err)

	decoded2, err := subA.Sync(ctx)
	require.NoError(t, err)
	require.Len(t, decoded2, 1)
	require.Equal(t, packetLink, decoded2[0].Link)
	sp, ok := decoded2[0].Content.(*content.SignedPacket)
	require.True(t, ok)
	require.Equal(t, []byte("public"), sp.PublicPayload)
	require.Equal(t, []byte("masked-payload"), sp.MaskedPayload)
}

func TestUnsubscribeRemovesFromFutureKeyload(t *testing.T) {
	ctx := context.Background()
	tr := memtransport.New()

	author, err := user.NewAuthorWithNonce("author-seed-unsub-0001", fixedNonce("uns-nonce"), user.MultiBranch, tr, log.NewNop())
	require.NoError(t, err)
	annLink, err := author.Announce(ctx)
	require.NoError(t, err)

	sub := user.NewSubscriber("subscriber-unsub-seed-0001", tr, log.NewNop())
	_, err = sub.ProcessAnnouncement(ctx, annLink)
	require.NoError(t, err)
	_, err = sub.Subscribe(ctx)
	require.NoError(t, err)

	_, err = author.Sync(ctx)
	require.NoError(t, err)
	require.Len(t, author.Subscribers(), 1)

	_, err = sub.Unsubscribe(ctx)
	require.NoError(t, err)

	_, err = author.Sync(ctx)
	require.NoError(t, err)
	require.Empty(t, author.Subscribers())

	// A keyload issued after the Unsubscribe no longer names sub.
	_, err = author.NewKeyloadForEveryone(ctx)
	require.NoError(t, err)
	decoded, err := sub.Sync(ctx)
	require.NoError(t, err)
	var sawKeyload bool
	for _, d := range decoded {
		if _, ok := d.Content.(*content.Keyload); ok {
			sawKeyload = true
			require.True(t, d.NotPermitted)
		}
	}
	require.True(t, sawKeyload)
}

func TestSignedPacketWithoutSessionIsNotPermitted(t *testing.T) {
	ctx := context.Background()
	tr := memtransport.New()

	author, err := user.NewAuthorWithNonce("author-seed-noperm-0001", fixedNonce("nop-nonce"), user.SingleBranch, tr, log.NewNop())
	require.NoError(t, err)
	_, err = author.Announce(ctx)
	require.NoError(t, err)

	_, err = author.PublishSigned(ctx, []byte("a"), []byte("b"))
	require.ErrorIs(t, err, user.ErrNotPermitted)
}

func TestPublishBeforeRegisteredFails(t *testing.T) {
	tr := memtransport.New()
	sub := user.NewSubscriber("subscriber-unregistered-0001", tr, log.NewNop())
	_, err := sub.PublishTagged(context.Background(), nil, nil)
	require.ErrorIs(t, err, user.ErrNotRegistered)
}
