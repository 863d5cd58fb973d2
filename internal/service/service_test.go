package service

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/moments/internal/common"
	"github.com/dmitrijs2005/moments/internal/models"
	"github.com/dmitrijs2005/moments/internal/protocol"
	"github.com/dmitrijs2005/moments/internal/transport"
)

const (
	self  = "did:plc:service"
	owner = "did:plc:owner"
	bob   = "did:plc:bob"
)

type memTransport struct {
	mu       sync.Mutex
	peers    []transport.Peer
	meta     map[string]string
	sent     map[string][][]byte
	accepted []string
	listener transport.Listener
}

func newMemTransport(peers ...transport.Peer) *memTransport {
	return &memTransport{peers: peers, meta: map[string]string{}, sent: map[string][][]byte{}}
}

func (m *memTransport) UserID() string { return self }

func (m *memTransport) SendMessage(_ context.Context, peer string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent[peer] = append(m.sent[peer], payload)
	return nil
}

func (m *memTransport) AcceptFriend(_ context.Context, peer string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accepted = append(m.accepted, peer)
	return nil
}

func (m *memTransport) ListKnownPeers(context.Context) ([]transport.Peer, error) {
	return m.peers, nil
}

func (m *memTransport) PeerMetadata(_ context.Context, peer string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.meta[peer], nil
}

func (m *memTransport) SetPeerMetadata(_ context.Context, peer, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.meta[peer] = value
	return nil
}

func (m *memTransport) SetListener(l transport.Listener) { m.listener = l }

func (m *memTransport) cursor(peer string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.meta[peer]
}

func (m *memTransport) commands(peer string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, p := range m.sent[peer] {
		var env struct {
			Content struct {
				Command string `json:"command"`
			} `json:"content"`
		}
		if json.Unmarshal(p, &env) == nil {
			out = append(out, env.Content.Command)
		}
	}
	return out
}

func create(t *testing.T, tr *memTransport) *Service {
	t.Helper()
	svc, err := Create(context.Background(), t.TempDir(), tr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Destroy() })
	return svc
}

func TestCreate_OpensDatabaseUnderUserDir(t *testing.T) {
	root := t.TempDir()
	tr := newMemTransport()

	svc, err := Create(context.Background(), root, tr)
	require.NoError(t, err)
	defer svc.Destroy()

	_, err = os.Stat(filepath.Join(root, self, DirName, common.DatabaseFile))
	require.NoError(t, err)
	assert.Same(t, svc, tr.listener)
}

func TestCreate_StorageUnavailable(t *testing.T) {
	root := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(root, []byte("x"), 0o600))

	_, err := Create(context.Background(), root, newMemTransport())
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrStorageUnavailable)
}

func TestCreate_AssignsFirstDIDPeerAsOwner(t *testing.T) {
	tr := newMemTransport(
		transport.Peer{ID: "plain-name"},
		transport.Peer{ID: owner},
		transport.Peer{ID: bob},
	)
	svc := create(t, tr)

	got, err := svc.store.Owner(context.Background())
	require.NoError(t, err)
	assert.Equal(t, owner, got)
}

func TestCreate_NoDIDPeerLeavesOwnerEmpty(t *testing.T) {
	svc := create(t, newMemTransport(transport.Peer{ID: "plain-name"}))

	got, err := svc.store.Owner(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCreate_KeepsStoredOwner(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()

	svc, err := Create(ctx, root, newMemTransport(transport.Peer{ID: owner}))
	require.NoError(t, err)
	require.NoError(t, svc.Destroy())

	svc, err = Create(ctx, root, newMemTransport(transport.Peer{ID: bob}))
	require.NoError(t, err)
	defer svc.Destroy()

	got, err := svc.store.Owner(ctx)
	require.NoError(t, err)
	assert.Equal(t, owner, got)
}

func TestSelfPresence_StartsAndStopsWorker(t *testing.T) {
	svc := create(t, newMemTransport(transport.Peer{ID: owner}))
	ctx := context.Background()

	svc.OnEvent(ctx, transport.PresenceEvent{PeerID: self, Online: true})
	assert.True(t, svc.engine.Running())

	svc.OnEvent(ctx, transport.PresenceEvent{PeerID: self, Online: false})
	assert.False(t, svc.engine.Running())
}

func TestPeerPresence_UpdatesOnlineSet(t *testing.T) {
	svc := create(t, newMemTransport(transport.Peer{ID: owner}))
	ctx := context.Background()

	svc.OnEvent(ctx, transport.PresenceEvent{PeerID: bob, Online: true})
	assert.Equal(t, []string{bob}, svc.engine.OnlinePeers())

	svc.OnEvent(ctx, transport.PresenceEvent{PeerID: bob, Online: false})
	assert.Empty(t, svc.engine.OnlinePeers())
	assert.False(t, svc.engine.Running(), "peer presence does not start the worker")
}

func TestPublishThenPeerOnline_PushesOnce(t *testing.T) {
	tr := newMemTransport(transport.Peer{ID: owner})
	svc := create(t, tr)
	ctx := context.Background()

	svc.OnEvent(ctx, transport.PresenceEvent{PeerID: self, Online: true})
	svc.OnMessage(ctx, owner, []byte(`{"serviceName":"moments","content":{"command":"publish","type":0,"content":"hello","time":1000,"access":"public"}}`))
	require.Equal(t, []string{protocol.CmdPublish}, tr.commands(owner))

	svc.OnEvent(ctx, transport.PresenceEvent{PeerID: bob, Online: true})

	require.Eventually(t, func() bool { return tr.cursor(bob) == "1000" }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, svc.Destroy())

	assert.Equal(t, []string{protocol.CmdPushData}, tr.commands(bob))

	tr.mu.Lock()
	payload := tr.sent[bob][0]
	tr.mu.Unlock()
	_, body, err := protocol.Open(payload)
	require.NoError(t, err)
	var push protocol.PushData
	require.NoError(t, json.Unmarshal(body, &push))
	require.Len(t, push.Content, 1)
	assert.Equal(t, "hello", push.Content[0].Content)
	assert.Equal(t, int64(1000), push.Content[0].CreatedAt)
}

func TestDelete_AnnouncedToOnlinePeers(t *testing.T) {
	tr := newMemTransport(transport.Peer{ID: owner})
	svc := create(t, tr)
	ctx := context.Background()

	_, err := svc.store.Insert(ctx, models.NewPost{Content: "x", CreatedAt: 1})
	require.NoError(t, err)

	svc.OnEvent(ctx, transport.PresenceEvent{PeerID: owner, Online: true})
	svc.OnEvent(ctx, transport.PresenceEvent{PeerID: bob, Online: true})
	svc.OnMessage(ctx, owner, []byte(`{"serviceName":"moments","content":{"command":"delete","id":1}}`))

	assert.Equal(t, []string{protocol.CmdDelete}, tr.commands(owner), "owner gets only the response")
	assert.Equal(t, []string{protocol.CmdDelete}, tr.commands(bob))
}

func TestFriendRequestEvent_Routed(t *testing.T) {
	tr := newMemTransport()
	svc := create(t, tr)
	ctx := context.Background()

	svc.OnEvent(ctx, transport.FriendRequestEvent{PeerID: bob, Summary: `{"content":"hi"}`})

	assert.Equal(t, []string{bob}, tr.accepted)
	got, err := svc.store.Owner(ctx)
	require.NoError(t, err)
	assert.Equal(t, bob, got)
}

func TestInfoChangedAndComment(t *testing.T) {
	svc := create(t, newMemTransport())
	svc.OnEvent(context.Background(), transport.InfoChangedEvent{PeerID: bob})

	assert.ErrorIs(t, svc.Comment(context.Background(), bob, "nice"), common.ErrNotImplemented)
}

func TestDestroy_Idempotent(t *testing.T) {
	svc, err := Create(context.Background(), t.TempDir(), newMemTransport())
	require.NoError(t, err)
	svc.OnEvent(context.Background(), transport.PresenceEvent{PeerID: self, Online: true})

	require.NoError(t, svc.Destroy())
	require.NoError(t, svc.Destroy())
	assert.False(t, svc.engine.Running())
}
