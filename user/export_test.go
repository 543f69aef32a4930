package user_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/drand/channels/content"
	"github.com/drand/channels/log"
	"github.com/drand/channels/transport/memtransport"
	"github.com/drand/channels/user"
)

func TestExportImportAuthorContinuesChannel(t *testing.T) {
	ctx := context.Background()
	tr := memtransport.New()

	author, err := user.NewAuthorWithNonce("author-seed-export-0001", fixedNonce("exp-nonc"), user.SingleBranch, tr, log.NewNop())
	require.NoError(t, err)
	annLink, err := author.Announce(ctx)
	require.NoError(t, err)

	sub := user.NewSubscriber("subscriber-export-seed-0001", tr, log.NewNop())
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

	blob, err := author.Export("pw")
	require.NoError(t, err)

	imported, err := user.ImportAuthor(blob, "pw", tr, log.NewNop())
	require.NoError(t, err)
	require.Equal(t, author.Address(), imported.Address())
	require.Equal(t, author.ChannelType(), imported.ChannelType())
	require.Len(t, imported.Subscribers(), 1)

	// The imported instance continues the cursor line where the original
	// left off: its next packet still verifies against the keyload the
	// original issued.
	link, err := imported.PublishSigned(ctx, []byte("after-import"), []byte("still-masked"))
	require.NoError(t, err)

	decoded, err := sub.Sync(ctx)
	require.NoError(t, err)
	require.Len(t, decoded, 1)
	require.Equal(t, link, decoded[0].Link)
	sp, ok := decoded[0].Content.(*content.SignedPacket)
	require.True(t, ok)
	require.Equal(t, []byte("after-import"), sp.PublicPayload)
	require.Equal(t, []byte("still-masked"), sp.MaskedPayload)
}

func TestImportWithWrongPasswordFails(t *testing.T) {
	ctx := context.Background()
	tr := memtransport.New()

	author, err := user.NewAuthorWithNonce("author-seed-export-0002", fixedNonce("exp-non2"), user.SingleBranch, tr, log.NewNop())
	require.NoError(t, err)
	_, err = author.Announce(ctx)
	require.NoError(t, err)

	blob, err := author.Export("pw")
	require.NoError(t, err)

	_, err = user.ImportAuthor(blob, "not-pw", tr, log.NewNop())
	require.ErrorIs(t, err, user.ErrDecryptError)
}

func TestImportRejectsTruncatedBlob(t *testing.T) {
	_, err := user.ImportAuthor([]byte("chnl"), "pw", memtransport.New(), log.NewNop())
	require.ErrorIs(t, err, user.ErrDecryptError)
}
