package grpcpeer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/dmitrijs2005/moments/internal/common"
	"github.com/dmitrijs2005/moments/internal/logging"
	"github.com/dmitrijs2005/moments/internal/transport"
)

// Client connects one local user to a relay and implements
// transport.Transport.
type Client struct {
	userID string
	conn   *grpc.ClientConn
	log    logging.Logger

	mu       sync.RWMutex
	listener transport.Listener
}

var _ transport.Transport = (*Client)(nil)

// NewClient prepares a connection to the relay at target. The connection is
// established lazily on the first call.
func NewClient(target, userID string, log logging.Logger, opts ...grpc.DialOption) (*Client, error) {
	c := &Client{userID: userID, log: log.With("module", "relay_client", "user", userID)}

	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithChainUnaryInterceptor(c.identityUnaryInterceptor),
		grpc.WithChainStreamInterceptor(c.identityStreamInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	return c, nil
}

func (c *Client) identityUnaryInterceptor(ctx context.Context, method string, req, reply any,
	cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
	return invoker(withPeerID(ctx, c.userID), method, req, reply, cc, opts...)
}

func (c *Client) identityStreamInterceptor(ctx context.Context, desc *grpc.StreamDesc,
	cc *grpc.ClientConn, method string, streamer grpc.Streamer, opts ...grpc.CallOption) (grpc.ClientStream, error) {
	return streamer(withPeerID(ctx, c.userID), desc, cc, method, opts...)
}

func (c *Client) Close() error { return c.conn.Close() }

func (c *Client) UserID() string { return c.userID }

func (c *Client) SetListener(l transport.Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listener = l
}

func (c *Client) SendMessage(ctx context.Context, peer string, payload []byte) error {
	req := &SendRequest{To: peer, Payload: payload}
	err := c.conn.Invoke(ctx, methodSend, req.toProto(), &emptypb.Empty{})
	if err == nil {
		return nil
	}
	if status.Code(err) == codes.Unavailable {
		return fmt.Errorf("%w: %w: %w", common.ErrTransportSendFailed, common.ErrPeerOffline, err)
	}
	return fmt.Errorf("%w: %w", common.ErrTransportSendFailed, err)
}

// RequestFriend asks peer to become a contact.
func (c *Client) RequestFriend(ctx context.Context, peer, summary string) error {
	req := &FriendRequest{To: peer, Summary: summary}
	return c.conn.Invoke(ctx, methodRequestFriend, req.toProto(), &emptypb.Empty{})
}

func (c *Client) AcceptFriend(ctx context.Context, peer string) error {
	return c.conn.Invoke(ctx, methodAcceptFriend, wrapperspb.String(peer), &emptypb.Empty{})
}

func (c *Client) ListKnownPeers(ctx context.Context) ([]transport.Peer, error) {
	resp := &structpb.ListValue{}
	if err := c.conn.Invoke(ctx, methodListPeers, &emptypb.Empty{}, resp); err != nil {
		return nil, err
	}
	return peersFromProto(resp), nil
}

func (c *Client) PeerMetadata(ctx context.Context, peer string) (string, error) {
	resp := &wrapperspb.StringValue{}
	if err := c.conn.Invoke(ctx, methodGetMeta, wrapperspb.String(peer), resp); err != nil {
		return "", err
	}
	return resp.GetValue(), nil
}

func (c *Client) SetPeerMetadata(ctx context.Context, peer, value string) error {
	req := &SetMetaRequest{Peer: peer, Value: value}
	return c.conn.Invoke(ctx, methodSetMeta, req.toProto(), &emptypb.Empty{})
}

// ErrStreamClosed is returned by Subscribe when the relay ends the stream.
var ErrStreamClosed = errors.New("relay closed the event stream")

// Subscribe opens the event stream and hands every event to the listener
// on the calling goroutine. It returns nil once ctx is cancelled. However the
// stream ends, every peer reported online on it, the local user included,
// is then reported offline so a later subscription starts from a clean
// presence state.
func (c *Client) Subscribe(ctx context.Context) error {
	var online []string
	defer func() { c.dropPresence(context.WithoutCancel(ctx), online) }()

	stream, err := c.conn.NewStream(ctx, &ServiceDesc.Streams[0], methodSubscribe)
	if err != nil {
		return err
	}
	if err := stream.SendMsg(&emptypb.Empty{}); err != nil {
		return err
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}

	for {
		msg := new(structpb.Struct)
		if err := stream.RecvMsg(msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, io.EOF) {
				return ErrStreamClosed
			}
			return err
		}
		ev := eventFromProto(msg)
		if ev.Kind == KindPresence {
			online = slices.DeleteFunc(online, func(p string) bool { return p == ev.Peer })
			if ev.Online {
				online = append(online, ev.Peer)
			}
		}
		c.deliver(ctx, ev)
	}
}

// dropPresence reports peers offline, most recent first, so the local user
// goes last.
func (c *Client) dropPresence(ctx context.Context, online []string) {
	for _, peer := range slices.Backward(online) {
		c.deliver(ctx, &Event{Kind: KindPresence, Peer: peer, Online: false})
	}
}

func (c *Client) deliver(ctx context.Context, ev *Event) {
	c.mu.RLock()
	l := c.listener
	c.mu.RUnlock()
	if l == nil {
		c.log.Debug(ctx, "event without listener", "kind", ev.Kind, "peer", ev.Peer)
		return
	}

	switch ev.Kind {
	case KindPresence:
		l.OnEvent(ctx, transport.PresenceEvent{PeerID: ev.Peer, Online: ev.Online})
	case KindFriendRequest:
		l.OnEvent(ctx, transport.FriendRequestEvent{PeerID: ev.Peer, Summary: ev.Summary})
	case KindInfoChanged:
		l.OnEvent(ctx, transport.InfoChangedEvent{PeerID: ev.Peer})
	case KindMessage:
		l.OnMessage(ctx, ev.Peer, ev.Payload)
	default:
		c.log.Warn(ctx, "unknown event kind", "kind", ev.Kind)
	}
}
