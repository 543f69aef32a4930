package grpctransport

import (
	"context"

	"google.golang.org/grpc"
)

// serviceName is the gRPC service path, mirroring the teacher's
// protobuf-declared service names (e.g. "drand.Protocol").
const serviceName = "channels.transport.Transport"

// transportServer is the server-side contract the hand-written ServiceDesc
// below dispatches to. It is the same shape protoc-gen-go-grpc would
// generate for a three-RPC service; Server (server.go) is the concrete
// implementation wrapping a transport.Transport.
type transportServer interface {
	Send(context.Context, *SendRequest) (*SendResponse, error)
	Recv(context.Context, *RecvRequest) (*RecvResponse, error)
	RecvIndex(context.Context, *RecvIndexRequest) (*RecvIndexResponse, error)
}

func sendHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(SendRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(transportServer).Send(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: serviceName + "/Send"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(transportServer).Send(ctx, req.(*SendRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func recvHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(RecvRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(transportServer).Recv(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: serviceName + "/Recv"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(transportServer).Recv(ctx, req.(*RecvRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func recvIndexHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(RecvIndexRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(transportServer).RecvIndex(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: serviceName + "/RecvIndex"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(transportServer).RecvIndex(ctx, req.(*RecvIndexRequest))
	}
	return interceptor(ctx, req, info, handler)
}

// serviceDesc is the grpc.ServiceDesc protoc-gen-go-grpc would otherwise
// generate from a .proto file for a three-method "Transport" service.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*transportServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Send", Handler: sendHandler},
		{MethodName: "Recv", Handler: recvHandler},
		{MethodName: "RecvIndex", Handler: recvIndexHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "channels/transport.proto",
}
