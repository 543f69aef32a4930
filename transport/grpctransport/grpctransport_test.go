package grpctransport

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/drand/channels/message"
	"github.com/drand/channels/transport"
	"github.com/drand/channels/transport/memtransport"
)

func TestGRPCTransportRoundTrip(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	inner := memtransport.New()
	gs := NewGRPCServer(NewServer(inner, nil))
	go func() { _ = gs.Serve(lis) }()
	defer gs.Stop()

	ctx := context.Background()
	client, err := Dial(ctx, lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer client.Close()

	var addr message.Address
	addr.AppInst[0] = 7
	var id message.MsgID
	id[0] = 1
	link := message.Link{Address: addr, MsgID: id}

	_, err = client.Recv(ctx, link)
	require.ErrorIs(t, err, transport.ErrNotFound)

	require.NoError(t, client.Send(ctx, link, []byte("hello")))

	got, err := client.Recv(ctx, link)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), got)

	idx, err := client.RecvIndex(ctx, addr)
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("hello")}, idx)

	// The underlying memtransport observes the same data directly.
	direct, err := inner.Recv(ctx, link)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), direct)
}
