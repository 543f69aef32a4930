package user_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/drand/channels/content"
	"github.com/drand/channels/key"
	"github.com/drand/channels/log"
	"github.com/drand/channels/transport/memtransport"
	"github.com/drand/channels/user"
)

func TestTamperedPacketIsRejectedAndCursorUnchanged(t *testing.T) {
	ctx := context.Background()
	tr := memtransport.New()

	author, err := user.NewAuthorWithNonce("author-seed-tamper-0001", fixedNonce("tmp-nonc"), user.SingleBranch, tr, log.NewNop())
	require.NoError(t, err)
	annLink, err := author.Announce(ctx)
	require.NoError(t, err)

	sub := user.NewSubscriber("subscriber-tamper-seed-0001", tr, log.NewNop())
	_, err = sub.ProcessAnnouncement(ctx, annLink)
	require.NoError(t, err)
	_, err = sub.Subscribe(ctx)
	require.NoError(t, err)
	_, err = author.Sync(ctx)
	require.NoError(t, err)
	_, err = author.NewKeyloadForEveryone(ctx)
	require.NoError(t, err)
	_, err = sub.Sync(ctx)
	require.NoError(t, err)

	packetLink, err := author.PublishSigned(ctx, []byte("pub"), []byte("msk"))
	require.NoError(t, err)

	original, err := tr.Recv(ctx, packetLink)
	require.NoError(t, err)

	// Flip one byte in the middle of the stored message. Send is
	// idempotent by link, so this overwrites what the subscriber will
	// fetch.
	tampered := append([]byte(nil), original...)
	tampered[len(tampered)/2] ^= 0x01
	require.NoError(t, tr.Send(ctx, packetLink, tampered))

	decoded, err := sub.Sync(ctx)
	require.NoError(t, err)
	require.Empty(t, decoded)

	// The failed decode must not have advanced any cursor: restoring the
	// original bytes and resyncing decodes the packet as if the tampered
	// copy had never been seen.
	require.NoError(t, tr.Send(ctx, packetLink, original))
	decoded, err = sub.Sync(ctx)
	require.NoError(t, err)
	require.Len(t, decoded, 1)
	sp, ok := decoded[0].Content.(*content.SignedPacket)
	require.True(t, ok)
	require.Equal(t, []byte("pub"), sp.PublicPayload)
	require.Equal(t, []byte("msk"), sp.MaskedPayload)
}

func TestEmptyPayloadsAreValid(t *testing.T) {
	ctx := context.Background()
	tr := memtransport.New()

	author, err := user.NewAuthorWithNonce("author-seed-empty-0001", fixedNonce("emp-nonc"), user.SingleBranch, tr, log.NewNop())
	require.NoError(t, err)
	annLink, err := author.Announce(ctx)
	require.NoError(t, err)

	var psk [32]byte
	copy(psk[:], []byte("another-shared-secret-for-empty!"))
	pskID := author.AddPsk(psk)
	_, err = author.NewKeyload(ctx, []key.PskID{pskID}, nil)
	require.NoError(t, err)

	sub := user.NewSubscriber("subscriber-empty-seed-0001", tr, log.NewNop())
	_, err = sub.ProcessAnnouncement(ctx, annLink)
	require.NoError(t, err)
	sub.AddPsk(psk)

	_, err = author.PublishTagged(ctx, nil, nil)
	require.NoError(t, err)

	decoded, err := sub.Sync(ctx)
	require.NoError(t, err)
	var sawPacket bool
	for _, d := range decoded {
		if tp, ok := d.Content.(*content.TaggedPacket); ok {
			sawPacket = true
			require.Empty(t, tp.PublicPayload)
			require.Empty(t, tp.MaskedPayload)
		}
	}
	require.True(t, sawPacket)
}
