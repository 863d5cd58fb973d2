package grpcpeer

import (
	"context"
	"net"
	"slices"
	"sync"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/dmitrijs2005/moments/internal/logging"
	"github.com/dmitrijs2005/moments/internal/transport"
)

// DefaultQueueSize bounds the events buffered per subscriber.
const DefaultQueueSize = 256

type metaKey struct {
	user, peer string
}

type subscriber struct {
	ch   chan *Event
	done chan struct{}
}

// Relay is an in-memory development implementation of the peer transport:
// it keeps friendships, pending friend requests, per-contact metadata and
// one event stream per connected user. Nothing survives a restart.
type Relay struct {
	log       logging.Logger
	queueSize int

	mu      sync.Mutex
	friends map[string][]string
	pending map[string]map[string]string // target -> requester -> summary
	meta    map[metaKey]string
	subs    map[string]*subscriber
}

var _ RelayServer = (*Relay)(nil)

func NewRelay(log logging.Logger, queueSize int) *Relay {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Relay{
		log:       log.With("module", "relay"),
		queueSize: queueSize,
		friends:   map[string][]string{},
		pending:   map[string]map[string]string{},
		meta:      map[metaKey]string{},
		subs:      map[string]*subscriber{},
	}
}

// NewServer builds a grpc.Server with the identity interceptors and the relay
// registered.
func NewServer(r *Relay, opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts,
		grpc.ChainUnaryInterceptor(identityUnaryInterceptor),
		grpc.ChainStreamInterceptor(identityStreamInterceptor),
	)
	srv := grpc.NewServer(opts...)
	srv.RegisterService(&ServiceDesc, r)
	return srv
}

// Run serves the relay on address until ctx is cancelled.
func (r *Relay) Run(ctx context.Context, address string) error {
	listen, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}

	srv := NewServer(r)

	go func() {
		<-ctx.Done()
		r.log.Info(ctx, "Stopping relay...")
		r.closeAll()
		srv.GracefulStop()
	}()

	r.log.Info(ctx, "Starting relay", "address", listen.Addr().String())

	return srv.Serve(listen)
}

// closeAll ends every open Subscribe stream.
func (r *Relay) closeAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, sub := range r.subs {
		close(sub.done)
		delete(r.subs, id)
	}
}

func caller(ctx context.Context) (string, error) {
	id, ok := PeerIDFromContext(ctx)
	if !ok {
		return "", status.Error(codes.Unauthenticated, "missing peer id")
	}
	return id, nil
}

// deliverLocked queues ev for user. It reports false when the user is not
// connected or its queue is full. r.mu must be held.
func (r *Relay) deliverLocked(user string, ev *Event) bool {
	sub, ok := r.subs[user]
	if !ok {
		return false
	}
	ev.ID = uuid.NewString()
	select {
	case sub.ch <- ev:
		return true
	default:
		r.log.Warn(context.Background(), "subscriber queue full, event dropped", "peer", user, "kind", ev.Kind)
		return false
	}
}

func (r *Relay) areFriendsLocked(a, b string) bool {
	return slices.Contains(r.friends[a], b)
}

func (r *Relay) Send(ctx context.Context, in *structpb.Struct) (*emptypb.Empty, error) {
	from, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	req := sendRequestFromProto(in)

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.areFriendsLocked(from, req.To) {
		return nil, status.Errorf(codes.PermissionDenied, "%s is not a friend", req.To)
	}
	if _, online := r.subs[req.To]; !online {
		return nil, status.Errorf(codes.Unavailable, "%s is offline", req.To)
	}
	if !r.deliverLocked(req.To, &Event{Kind: KindMessage, Peer: from, Payload: req.Payload}) {
		return nil, status.Errorf(codes.ResourceExhausted, "%s queue is full", req.To)
	}
	return &emptypb.Empty{}, nil
}

func (r *Relay) RequestFriend(ctx context.Context, in *structpb.Struct) (*emptypb.Empty, error) {
	from, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	req := friendRequestFromProto(in)
	if req.To == "" || req.To == from {
		return nil, status.Error(codes.InvalidArgument, "invalid friend")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.areFriendsLocked(from, req.To) {
		return &emptypb.Empty{}, nil
	}
	if r.pending[req.To] == nil {
		r.pending[req.To] = map[string]string{}
	}
	r.pending[req.To][from] = req.Summary
	r.deliverLocked(req.To, &Event{Kind: KindFriendRequest, Peer: from, Summary: req.Summary})
	return &emptypb.Empty{}, nil
}

func (r *Relay) AcceptFriend(ctx context.Context, in *wrapperspb.StringValue) (*emptypb.Empty, error) {
	user, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	peer := in.GetValue()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.areFriendsLocked(user, peer) {
		return &emptypb.Empty{}, nil
	}
	if _, ok := r.pending[user][peer]; !ok {
		return nil, status.Errorf(codes.FailedPrecondition, "no friend request from %s", peer)
	}
	delete(r.pending[user], peer)

	r.friends[user] = append(r.friends[user], peer)
	r.friends[peer] = append(r.friends[peer], user)

	_, userOnline := r.subs[user]
	_, peerOnline := r.subs[peer]
	if userOnline && peerOnline {
		r.deliverLocked(user, &Event{Kind: KindPresence, Peer: peer, Online: true})
		r.deliverLocked(peer, &Event{Kind: KindPresence, Peer: user, Online: true})
	}
	return &emptypb.Empty{}, nil
}

func (r *Relay) ListPeers(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	user, err := caller(ctx)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	peers := make([]transport.Peer, 0, len(r.friends[user]))
	for _, f := range r.friends[user] {
		_, online := r.subs[f]
		peers = append(peers, transport.Peer{ID: f, Online: online})
	}
	return peersToProto(peers), nil
}

func (r *Relay) GetMeta(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	user, err := caller(ctx)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return wrapperspb.String(r.meta[metaKey{user, in.GetValue()}]), nil
}

func (r *Relay) SetMeta(ctx context.Context, in *structpb.Struct) (*emptypb.Empty, error) {
	user, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	req := setMetaRequestFromProto(in)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.meta[metaKey{user, req.Peer}] = req.Value
	return &emptypb.Empty{}, nil
}

// Subscribe streams events to the caller until it disconnects or the relay
// stops. A second subscription by the same user replaces the first.
func (r *Relay) Subscribe(_ *emptypb.Empty, stream grpc.ServerStream) error {
	ctx := stream.Context()
	user, err := caller(ctx)
	if err != nil {
		return err
	}

	sub := r.connect(user)
	defer r.disconnect(user, sub)

	r.log.Info(ctx, "peer connected", "peer", user)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sub.done:
			return nil
		case ev := <-sub.ch:
			if err := stream.SendMsg(ev.toProto()); err != nil {
				return err
			}
		}
	}
}

func (r *Relay) connect(user string) *subscriber {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.subs[user]; ok {
		close(old.done)
	}
	sub := &subscriber{ch: make(chan *Event, r.queueSize), done: make(chan struct{})}
	r.subs[user] = sub

	r.deliverLocked(user, &Event{Kind: KindPresence, Peer: user, Online: true})
	for _, f := range r.friends[user] {
		if _, online := r.subs[f]; online {
			r.deliverLocked(user, &Event{Kind: KindPresence, Peer: f, Online: true})
			r.deliverLocked(f, &Event{Kind: KindPresence, Peer: user, Online: true})
		}
	}
	for from, summary := range r.pending[user] {
		r.deliverLocked(user, &Event{Kind: KindFriendRequest, Peer: from, Summary: summary})
	}
	return sub
}

func (r *Relay) disconnect(user string, sub *subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.subs[user] != sub {
		return
	}
	delete(r.subs, user)
	for _, f := range r.friends[user] {
		r.deliverLocked(f, &Event{Kind: KindPresence, Peer: user, Online: false})
	}
	r.log.Info(context.Background(), "peer disconnected", "peer", user)
}
