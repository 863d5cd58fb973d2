// Package transport declares the peer-to-peer messaging contract the moments
// service runs on. Discovery, delivery, presence and the friend handshake are
// the transport's business; the service only sees the calls and events below.
package transport

import "context"

// Peer is a known contact as reported by the transport.
type Peer struct {
	ID     string `json:"id"`
	Online bool   `json:"online"`
}

// Transport sends messages to peers and keeps opaque per-contact metadata.
// Implementations bound the latency of their own calls; callers impose no
// timeout beyond ctx.
type Transport interface {
	// UserID is the identity of the local session.
	UserID() string
	// SendMessage delivers payload to peer. A nil error means the transport
	// accepted the message for delivery.
	SendMessage(ctx context.Context, peer string, payload []byte) error
	// AcceptFriend confirms a pending friend request from peer.
	AcceptFriend(ctx context.Context, peer string) error
	// ListKnownPeers returns every contact of the local user.
	ListKnownPeers(ctx context.Context) ([]Peer, error)
	// PeerMetadata returns the metadata stored for peer, "" when unset.
	PeerMetadata(ctx context.Context, peer string) (string, error)
	// SetPeerMetadata replaces the metadata stored for peer.
	SetPeerMetadata(ctx context.Context, peer, value string) error
	// SetListener installs the receiver of inbound events and messages.
	SetListener(l Listener)
}

// Listener receives everything the transport delivers to the local user.
type Listener interface {
	OnEvent(ctx context.Context, ev Event)
	OnMessage(ctx context.Context, from string, payload []byte)
}

// Event is one of PresenceEvent, FriendRequestEvent or InfoChangedEvent.
type Event interface {
	isEvent()
}

// PresenceEvent reports a peer (or the local session itself) going online
// or offline.
type PresenceEvent struct {
	PeerID string
	Online bool
}

// FriendRequestEvent is an incoming friend request.
type FriendRequestEvent struct {
	PeerID  string
	Summary string
}

// InfoChangedEvent reports a profile change of a contact.
type InfoChangedEvent struct {
	PeerID string
}

func (PresenceEvent) isEvent()      {}
func (FriendRequestEvent) isEvent() {}
func (InfoChangedEvent) isEvent()   {}
