package content_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/drand/channels/content"
	"github.com/drand/channels/ddml"
	"github.com/drand/channels/key"
	"github.com/drand/channels/spongos"
)

func seedOf(t *testing.T, s string) [32]byte {
	t.Helper()
	var out [32]byte
	copy(out[:], s)
	return out
}

func TestAnnouncementRoundTrip(t *testing.T) {
	author := key.NewIdentity(seedOf(t, "author-seed-aaaaaaaaaaaaaaaaaaaa"))

	a := &content.Announcement{ChannelFlags: content.FlagMultiBranch}
	wrap := ddml.NewWrapContext(spongos.New(spongos.DefaultRate))
	require.NoError(t, a.Wrap(wrap, author))

	var got content.Announcement
	unwrap := ddml.NewUnwrapContext(spongos.New(spongos.DefaultRate), wrap.Bytes())
	require.NoError(t, got.Unwrap(unwrap))

	require.True(t, got.AuthorPub.Equal(&author.Public))
	require.Equal(t, content.FlagMultiBranch, got.ChannelFlags)
}

func TestAnnouncementTamperedFlagsFailsSignature(t *testing.T) {
	author := key.NewIdentity(seedOf(t, "author-seed-bbbbbbbbbbbbbbbbbbbb"))

	a := &content.Announcement{ChannelFlags: content.FlagSingleBranch}
	wrap := ddml.NewWrapContext(spongos.New(spongos.DefaultRate))
	require.NoError(t, a.Wrap(wrap, author))

	wire := append([]byte(nil), wrap.Bytes()...)
	// flip the channel_flags byte: 4(pubkey len)+32(pubkey)+32(x25519)=68
	wire[68] ^= 0x01

	var got content.Announcement
	unwrap := ddml.NewUnwrapContext(spongos.New(spongos.DefaultRate), wire)
	err := got.Unwrap(unwrap)
	require.ErrorIs(t, err, ddml.ErrSignature)
}
