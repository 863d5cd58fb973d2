package grpcpeer

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const serviceName = "moments.relay.v1.Relay"

const (
	methodSend          = "/" + serviceName + "/Send"
	methodRequestFriend = "/" + serviceName + "/RequestFriend"
	methodAcceptFriend  = "/" + serviceName + "/AcceptFriend"
	methodListPeers     = "/" + serviceName + "/ListPeers"
	methodGetMeta       = "/" + serviceName + "/GetMeta"
	methodSetMeta       = "/" + serviceName + "/SetMeta"
	methodSubscribe     = "/" + serviceName + "/Subscribe"
)

// RelayServer is the server API of the relay. The caller identity is taken
// from the request context (see PeerIDFromContext).
type RelayServer interface {
	Send(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	RequestFriend(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	AcceptFriend(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error)
	ListPeers(context.Context, *emptypb.Empty) (*structpb.ListValue, error)
	GetMeta(context.Context, *wrapperspb.StringValue) (*wrapperspb.StringValue, error)
	SetMeta(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	Subscribe(*emptypb.Empty, grpc.ServerStream) error
}

func unaryHandler[Req, Resp any](method string, call func(RelayServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(RelayServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(RelayServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func subscribeHandler(srv any, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(RelayServer).Subscribe(in, stream)
}

// ServiceDesc describes the relay service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*RelayServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Send", Handler: unaryHandler(methodSend, RelayServer.Send)},
		{MethodName: "RequestFriend", Handler: unaryHandler(methodRequestFriend, RelayServer.RequestFriend)},
		{MethodName: "AcceptFriend", Handler: unaryHandler(methodAcceptFriend, RelayServer.AcceptFriend)},
		{MethodName: "ListPeers", Handler: unaryHandler(methodListPeers, RelayServer.ListPeers)},
		{MethodName: "GetMeta", Handler: unaryHandler(methodGetMeta, RelayServer.GetMeta)},
		{MethodName: "SetMeta", Handler: unaryHandler(methodSetMeta, RelayServer.SetMeta)},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Subscribe", Handler: subscribeHandler, ServerStreams: true},
	},
}
