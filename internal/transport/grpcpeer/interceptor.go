package grpcpeer

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/moments/internal/common"
)

type ctxKey string

const peerIDKey ctxKey = "peerID"

// PeerIDFromContext returns the caller identity set by the interceptors.
func PeerIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(peerIDKey).(string)
	return id, ok && id != ""
}

func peerIDFromMetadata(ctx context.Context) (string, error) {
	var id string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(common.PeerIDHeaderName); len(values) > 0 {
			id = values[0]
		}
	}
	if id == "" {
		return "", status.Error(codes.Unauthenticated, "missing peer id")
	}
	return id, nil
}

func identityUnaryInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	id, err := peerIDFromMetadata(ctx)
	if err != nil {
		return nil, err
	}
	return handler(context.WithValue(ctx, peerIDKey, id), req)
}

type identityStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *identityStream) Context() context.Context { return s.ctx }

func identityStreamInterceptor(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	id, err := peerIDFromMetadata(ss.Context())
	if err != nil {
		return err
	}
	return handler(srv, &identityStream{ServerStream: ss, ctx: context.WithValue(ss.Context(), peerIDKey, id)})
}

// withPeerID attaches the identity header to an outgoing context.
func withPeerID(ctx context.Context, id string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(common.PeerIDHeaderName, id)
	return metadata.NewOutgoingContext(ctx, md)
}
