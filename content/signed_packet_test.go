package content_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/drand/channels/content"
	"github.com/drand/channels/ddml"
	"github.com/drand/channels/key"
	"github.com/drand/channels/spongos"
)

func TestSignedPacketRoundTrip(t *testing.T) {
	publisher := key.NewIdentity(seedOf(t, "signed-packet-pub-aaaaaaaaaaaaaaaaa"))

	p := &content.SignedPacket{PublicPayload: []byte("public hello"), MaskedPayload: []byte("secret payload")}
	wrap := ddml.NewWrapContext(spongos.New(spongos.DefaultRate))
	require.NoError(t, p.Wrap(wrap, publisher))

	var got content.SignedPacket
	unwrap := ddml.NewUnwrapContext(spongos.New(spongos.DefaultRate), wrap.Bytes())
	require.NoError(t, got.Unwrap(unwrap, &publisher.Public))

	require.Equal(t, p.PublicPayload, got.PublicPayload)
	require.Equal(t, p.MaskedPayload, got.MaskedPayload)
}

func TestSignedPacketWrongSignerFailsVerification(t *testing.T) {
	publisher := key.NewIdentity(seedOf(t, "signed-packet-pub-bbbbbbbbbbbbbbbbb"))
	impostor := key.NewIdentity(seedOf(t, "signed-packet-imp-ccccccccccccccccc"))

	p := &content.SignedPacket{PublicPayload: []byte("public"), MaskedPayload: []byte("masked")}
	wrap := ddml.NewWrapContext(spongos.New(spongos.DefaultRate))
	require.NoError(t, p.Wrap(wrap, publisher))

	var got content.SignedPacket
	unwrap := ddml.NewUnwrapContext(spongos.New(spongos.DefaultRate), wrap.Bytes())
	require.ErrorIs(t, got.Unwrap(unwrap, &impostor.Public), ddml.ErrSignature)
}
