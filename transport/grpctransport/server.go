package grpctransport

import (
	"context"
	"errors"

	"google.golang.org/grpc"

	"github.com/drand/channels/log"
	"github.com/drand/channels/transport"
)

// Server adapts a transport.Transport to the gRPC transportServer
// contract, grounded on the teacher's net/listener_grpc.go (a thin struct
// wrapping the real implementation, registered on a *grpc.Server).
type Server struct {
	inner transport.Transport
	log   log.Logger
}

var _ transportServer = (*Server)(nil)

// NewServer wraps inner for gRPC registration.
func NewServer(inner transport.Transport, lg log.Logger) *Server {
	if lg == nil {
		lg = log.DefaultLogger()
	}
	return &Server{inner: inner, log: lg}
}

// Register registers s on gs using the hand-written ServiceDesc. It does
// not configure gs's codec: gs must already be built with this package's
// JSON codec (see codec.go) to decode the request types. NewGRPCServer
// below does this for the common single-service case.
func (s *Server) Register(gs *grpc.Server) {
	gs.RegisterService(&serviceDesc, s)
}

// NewGRPCServer returns a *grpc.Server configured with this package's codec
// and s already registered, for the common case of a process that serves
// nothing but this Transport facade.
func NewGRPCServer(s *Server, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{grpc.ForceServerCodec(jsonCodec{})}, opts...)
	gs := grpc.NewServer(opts...)
	s.Register(gs)
	return gs
}

func (s *Server) Send(ctx context.Context, req *SendRequest) (*SendResponse, error) {
	link := toLink(req.AppInst, req.Nonce, req.MsgID)
	if err := s.inner.Send(ctx, link, req.Payload); err != nil {
		return nil, err
	}
	return &SendResponse{RequestID: req.RequestID}, nil
}

func (s *Server) Recv(ctx context.Context, req *RecvRequest) (*RecvResponse, error) {
	link := toLink(req.AppInst, req.Nonce, req.MsgID)
	payload, err := s.inner.Recv(ctx, link)
	if errors.Is(err, transport.ErrNotFound) {
		return &RecvResponse{RequestID: req.RequestID, NotFound: true}, nil
	}
	if err != nil {
		return nil, err
	}
	return &RecvResponse{RequestID: req.RequestID, Payload: payload}, nil
}

func (s *Server) RecvIndex(ctx context.Context, req *RecvIndexRequest) (*RecvIndexResponse, error) {
	addr := toAddress(req.AppInst, req.Nonce)
	payloads, err := s.inner.RecvIndex(ctx, addr)
	if err != nil {
		return nil, err
	}
	return &RecvIndexResponse{RequestID: req.RequestID, Payloads: payloads}, nil
}
