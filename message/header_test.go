package message_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/drand/channels/ddml"
	"github.com/drand/channels/message"
	"github.com/drand/channels/spongos"
)

func TestHeaderWrapUnwrapRoundTrip(t *testing.T) {
	h := &message.Header{
		Version:     message.HeaderVersion,
		ContentType: message.ContentSignedPacket,
		PublisherID: []byte("0123456789abcdef0123456789abcdef"),
	}
	h.AppInst[0] = 0xAB
	h.MsgID[0] = 0xCD
	h.PreviousMsgID[0] = 0xEF

	wrap := ddml.NewWrapContext(spongos.New(spongos.DefaultRate))
	require.NoError(t, h.Wrap(wrap))

	var got message.Header
	unwrap := ddml.NewUnwrapContext(spongos.New(spongos.DefaultRate), wrap.Bytes())
	require.NoError(t, got.Unwrap(unwrap))

	require.Equal(t, h.Version, got.Version)
	require.Equal(t, h.AppInst, got.AppInst)
	require.Equal(t, h.MsgID, got.MsgID)
	require.Equal(t, h.ContentType, got.ContentType)
	require.Equal(t, h.PreviousMsgID, got.PreviousMsgID)
	require.Equal(t, h.PublisherID, got.PublisherID)
}

func TestHeaderRejectsUnknownContentType(t *testing.T) {
	h := &message.Header{Version: message.HeaderVersion, ContentType: message.ContentSequence, PublisherID: []byte("x")}
	wrap := ddml.NewWrapContext(spongos.New(spongos.DefaultRate))
	require.NoError(t, h.Wrap(wrap))

	wire := wrap.Bytes()
	// content type byte sits right after version(1) + app_inst(32) + msg_id(12)
	wire[1+32+12] = 0xFF

	var got message.Header
	unwrap := ddml.NewUnwrapContext(spongos.New(spongos.DefaultRate), wire)
	err := got.Unwrap(unwrap)
	require.ErrorIs(t, err, message.ErrUnknownContentType)
}

func TestHeaderRejectsWrongVersion(t *testing.T) {
	h := &message.Header{Version: message.HeaderVersion, ContentType: message.ContentSignedPacket, PublisherID: []byte("x")}
	wrap := ddml.NewWrapContext(spongos.New(spongos.DefaultRate))
	require.NoError(t, h.Wrap(wrap))

	wire := wrap.Bytes()
	wire[0] = message.HeaderVersion + 1

	var got message.Header
	unwrap := ddml.NewUnwrapContext(spongos.New(spongos.DefaultRate), wire)
	require.ErrorIs(t, got.Unwrap(unwrap), message.ErrUnsupportedVersion)
}
