package grpctransport

import (
	"context"

	"google.golang.org/grpc"

	"github.com/drand/channels/message"
	"github.com/drand/channels/transport"
)

// Client dials a grpctransport.Server and implements transport.Transport
// over the connection, so Author/Subscriber code written against
// transport.Transport runs unmodified whether the underlying store is
// memtransport, boltstore, or a remote process reached over gRPC.
type Client struct {
	conn *grpc.ClientConn
}

var _ transport.Transport = (*Client)(nil)

// Dial connects to target with this package's codec forced on the call
// path (see codec.go), mirroring the teacher's NewGrpcClient's use of
// grpc.DialOption to configure every call uniformly.
func Dial(ctx context.Context, target string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithDefaultCallOptions(grpc.ForceCodec(jsonCodec{})),
	}, opts...)
	conn, err := grpc.DialContext(ctx, target, opts...) //nolint:staticcheck // grpc.NewClient requires a resolver scheme this facade does not assume
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn}, nil
}

// Close tears down the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }

func (c *Client) Send(ctx context.Context, link message.Link, payload []byte) error {
	req := &SendRequest{
		RequestID: newRequestID(),
		AppInst:   link.Address.AppInst[:],
		Nonce:     link.Address.Nonce[:],
		MsgID:     link.MsgID[:],
		Payload:   payload,
	}
	resp := new(SendResponse)
	return c.conn.Invoke(ctx, serviceName+"/Send", req, resp)
}

func (c *Client) Recv(ctx context.Context, link message.Link) ([]byte, error) {
	req := &RecvRequest{
		RequestID: newRequestID(),
		AppInst:   link.Address.AppInst[:],
		Nonce:     link.Address.Nonce[:],
		MsgID:     link.MsgID[:],
	}
	resp := new(RecvResponse)
	if err := c.conn.Invoke(ctx, serviceName+"/Recv", req, resp); err != nil {
		return nil, err
	}
	if resp.NotFound {
		return nil, transport.ErrNotFound
	}
	return resp.Payload, nil
}

func (c *Client) RecvIndex(ctx context.Context, addr message.Address) ([][]byte, error) {
	req := &RecvIndexRequest{
		RequestID: newRequestID(),
		AppInst:   addr.AppInst[:],
		Nonce:     addr.Nonce[:],
	}
	resp := new(RecvIndexResponse)
	if err := c.conn.Invoke(ctx, serviceName+"/RecvIndex", req, resp); err != nil {
		return nil, err
	}
	return resp.Payloads, nil
}
