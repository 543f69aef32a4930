package boltstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/drand/channels/log"
	"github.com/drand/channels/message"
	"github.com/drand/channels/transport"
)

func TestBoltStoreSendRecv(t *testing.T) {
	tmp := t.TempDir()
	ctx := context.Background()
	st, err := New(ctx, log.DefaultLogger(), tmp, nil)
	require.NoError(t, err)
	defer func() { require.NoError(t, st.Close()) }()

	var addr message.Address
	addr.AppInst[0] = 0xAB
	var id1, id2 message.MsgID
	id1[0] = 1
	id2[0] = 2
	link1 := message.Link{Address: addr, MsgID: id1}
	link2 := message.Link{Address: addr, MsgID: id2}

	_, err = st.Recv(ctx, link1)
	require.ErrorIs(t, err, transport.ErrNotFound)

	require.NoError(t, st.Send(ctx, link1, []byte("first")))
	require.NoError(t, st.Send(ctx, link2, []byte("second")))

	got, err := st.Recv(ctx, link1)
	require.NoError(t, err)
	require.Equal(t, []byte("first"), got)

	idx, err := st.RecvIndex(ctx, addr)
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("first"), []byte("second")}, idx)
}

func TestBoltStorePersistsAcrossReopen(t *testing.T) {
	tmp := t.TempDir()
	ctx := context.Background()

	st1, err := New(ctx, log.DefaultLogger(), tmp, nil)
	require.NoError(t, err)
	var addr message.Address
	var id message.MsgID
	id[0] = 9
	link := message.Link{Address: addr, MsgID: id}
	require.NoError(t, st1.Send(ctx, link, []byte("persisted")))
	require.NoError(t, st1.Close())

	st2, err := New(ctx, log.DefaultLogger(), tmp, nil)
	require.NoError(t, err)
	defer func() { require.NoError(t, st2.Close()) }()

	got, err := st2.Recv(ctx, link)
	require.NoError(t, err)
	require.Equal(t, []byte("persisted"), got)
}
