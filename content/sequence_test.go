package content_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/drand/channels/content"
	"github.com/drand/channels/ddml"
	"github.com/drand/channels/key"
	"github.com/drand/channels/message"
	"github.com/drand/channels/spongos"
)

func TestSequenceRoundTrip(t *testing.T) {
	publisher := key.NewIdentity(seedOf(t, "sequence-pub-aaaaaaaaaaaaaaaaaaaaa"))

	var refMsgID message.MsgID
	copy(refMsgID[:], []byte("refmsgid1234"))

	seq := &content.Sequence{
		RefPublisherID: publisher.Public.Bytes(),
		RefBranchNo:    1,
		RefSeqNo:       7,
		RefMsgID:       refMsgID,
	}
	wrap := ddml.NewWrapContext(spongos.New(spongos.DefaultRate))
	require.NoError(t, seq.Wrap(wrap, publisher))

	var got content.Sequence
	unwrap := ddml.NewUnwrapContext(spongos.New(spongos.DefaultRate), wrap.Bytes())
	require.NoError(t, got.Unwrap(unwrap, &publisher.Public))

	require.Equal(t, seq.RefPublisherID, got.RefPublisherID)
	require.Equal(t, seq.RefBranchNo, got.RefBranchNo)
	require.Equal(t, seq.RefSeqNo, got.RefSeqNo)
	require.Equal(t, seq.RefMsgID, got.RefMsgID)
}
