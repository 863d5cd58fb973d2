package syncengine

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/moments/internal/common"
	"github.com/dmitrijs2005/moments/internal/logging"
	"github.com/dmitrijs2005/moments/internal/models"
	"github.com/dmitrijs2005/moments/internal/protocol"
	"github.com/dmitrijs2005/moments/internal/store"
)

type fakeSender struct {
	mu       sync.Mutex
	sent     map[string][][]byte
	meta     map[string]string
	failPeer map[string]bool
	failNth  int // fail the n-th send overall (1-based); 0 disables
	sends    int

	gate    chan struct{}
	entered chan struct{}
}

func newFakeSender() *fakeSender {
	return &fakeSender{
		sent:     map[string][][]byte{},
		meta:     map[string]string{},
		failPeer: map[string]bool{},
	}
}

func (f *fakeSender) SendMessage(_ context.Context, peer string, payload []byte) error {
	if f.entered != nil {
		select {
		case f.entered <- struct{}{}:
		default:
		}
	}
	if f.gate != nil {
		<-f.gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends++
	if f.failPeer[peer] || f.sends == f.failNth {
		return errors.New("unreachable")
	}
	f.sent[peer] = append(f.sent[peer], payload)
	return nil
}

func (f *fakeSender) PeerMetadata(_ context.Context, peer string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.meta[peer], nil
}

func (f *fakeSender) SetPeerMetadata(_ context.Context, peer, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.meta[peer] = value
	return nil
}

func (f *fakeSender) cursor(peer string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.meta[peer]
}

func (f *fakeSender) messages(peer string) [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.sent[peer]...)
}

func decodePush(t *testing.T, payload []byte) []models.Post {
	t.Helper()
	name, body, err := protocol.Open(payload)
	require.NoError(t, err)
	require.Equal(t, protocol.CmdPushData, name)

	var msg protocol.PushData
	require.NoError(t, json.Unmarshal(body, &msg))
	return msg.Content
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(context.Background(), filepath.Join(t.TempDir(), common.DatabaseFile))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func insert(t *testing.T, s *store.Store, content string, at int64) int64 {
	t.Helper()
	id, err := s.Insert(context.Background(), models.NewPost{Content: content, CreatedAt: at, Access: "public"})
	require.NoError(t, err)
	return id
}

func TestSweep_PublishThenPeerOnline(t *testing.T) {
	s := openStore(t)
	f := newFakeSender()
	e := New(s, f, logging.Discard(), 10)

	insert(t, s, "hello", 1000)
	e.PeerOnline("did:plc:bob")
	e.sweep(context.Background())

	msgs := f.messages("did:plc:bob")
	require.Len(t, msgs, 1)
	posts := decodePush(t, msgs[0])
	require.Len(t, posts, 1)
	assert.Equal(t, "hello", posts[0].Content)
	assert.Equal(t, "1000", f.cursor("did:plc:bob"))

	// nothing new: no second push
	e.sweep(context.Background())
	assert.Len(t, f.messages("did:plc:bob"), 1)
}

func TestSweep_OnlySendsPostsAfterCursor(t *testing.T) {
	s := openStore(t)
	f := newFakeSender()
	f.meta["peer"] = "500"
	e := New(s, f, logging.Discard(), 10)

	insert(t, s, "old", 400)
	insert(t, s, "new", 600)
	e.PeerOnline("peer")
	e.sweep(context.Background())

	msgs := f.messages("peer")
	require.Len(t, msgs, 1)
	posts := decodePush(t, msgs[0])
	require.Len(t, posts, 1)
	assert.Equal(t, int64(600), posts[0].CreatedAt)
	assert.Equal(t, "600", f.cursor("peer"))
}

func TestSweep_NonPositiveTimesNeverLoop(t *testing.T) {
	s := openStore(t)
	f := newFakeSender()
	e := New(s, f, logging.Discard(), 10)

	insert(t, s, "zero", 0)
	insert(t, s, "negative", -3)
	e.PeerOnline("peer")

	for i := 0; i < 3; i++ {
		e.sweep(context.Background())
	}
	assert.Empty(t, f.messages("peer"))
	assert.Empty(t, f.cursor("peer"))

	insert(t, s, "real", 5)
	for i := 0; i < 3; i++ {
		e.sweep(context.Background())
	}
	msgs := f.messages("peer")
	require.Len(t, msgs, 1)
	posts := decodePush(t, msgs[0])
	require.Len(t, posts, 1)
	assert.Equal(t, "real", posts[0].Content)
	assert.Equal(t, "5", f.cursor("peer"))
}

func TestSweep_SendFailureDoesNotAbortOtherPeers(t *testing.T) {
	s := openStore(t)
	f := newFakeSender()
	f.failPeer["down"] = true
	e := New(s, f, logging.Discard(), 10)

	insert(t, s, "x", 100)
	e.PeerOnline("down")
	e.PeerOnline("up")
	e.sweep(context.Background())

	assert.Empty(t, f.cursor("down"), "failed peer keeps its cursor")
	assert.Equal(t, "100", f.cursor("up"))

	f.mu.Lock()
	delete(f.failPeer, "down")
	f.mu.Unlock()

	e.sweep(context.Background())
	assert.Equal(t, "100", f.cursor("down"))
	assert.Len(t, f.messages("down"), 1)
	assert.Len(t, f.messages("up"), 1)
}

func TestSweep_SplitsIntoPageSizedBatches(t *testing.T) {
	s := openStore(t)
	f := newFakeSender()
	e := New(s, f, logging.Discard(), 2)

	for i := int64(1); i <= 5; i++ {
		insert(t, s, "p", i*100)
	}
	e.PeerOnline("peer")
	e.sweep(context.Background())

	msgs := f.messages("peer")
	require.Len(t, msgs, 3)

	var times []int64
	for _, m := range msgs {
		for _, p := range decodePush(t, m) {
			times = append(times, p.CreatedAt)
		}
	}
	assert.Equal(t, []int64{500, 400, 300, 200, 100}, times)
	assert.Equal(t, "500", f.cursor("peer"))
}

func TestSweep_PartialBatchFailureKeepsCursor(t *testing.T) {
	s := openStore(t)
	f := newFakeSender()
	f.failNth = 2
	e := New(s, f, logging.Discard(), 1)

	insert(t, s, "a", 10)
	insert(t, s, "b", 20)
	e.PeerOnline("peer")
	e.sweep(context.Background())

	assert.Empty(t, f.cursor("peer"))
}

func TestSweep_SkipsOfflinePeers(t *testing.T) {
	s := openStore(t)
	f := newFakeSender()
	e := New(s, f, logging.Discard(), 10)

	insert(t, s, "x", 1)
	e.PeerOnline("a")
	e.PeerOnline("b")
	e.PeerOffline("a")
	assert.Equal(t, []string{"b"}, e.OnlinePeers())

	e.sweep(context.Background())
	assert.Empty(t, f.messages("a"))
	assert.Len(t, f.messages("b"), 1)
}

func TestPeerOnline_Deduplicates(t *testing.T) {
	e := New(openStore(t), newFakeSender(), logging.Discard(), 0)
	e.PeerOnline("a")
	e.PeerOnline("b")
	e.PeerOnline("a")
	assert.Equal(t, []string{"a", "b"}, e.OnlinePeers())
	assert.Equal(t, common.DefaultPageSize, e.pageSize)
}

func TestNotify_Coalesces(t *testing.T) {
	e := New(openStore(t), newFakeSender(), logging.Discard(), 10)
	for i := 0; i < 100; i++ {
		e.Notify()
	}
	assert.Len(t, e.wake, 1)
}

func TestNotify_DuringSweepRunsAnotherSweep(t *testing.T) {
	s := openStore(t)
	f := newFakeSender()
	f.gate = make(chan struct{})
	f.entered = make(chan struct{}, 1)
	e := New(s, f, logging.Discard(), 10)

	insert(t, s, "first", 100)
	e.PeerOnline("peer")
	e.Start(context.Background())
	defer e.Stop()

	select {
	case <-f.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("send never started")
	}

	// the worker is blocked inside the first sweep
	insert(t, s, "second", 200)
	e.Notify()
	close(f.gate)

	require.Eventually(t, func() bool { return f.cursor("peer") == "200" }, 2*time.Second, 10*time.Millisecond)

	var contents []string
	for _, m := range f.messages("peer") {
		for _, p := range decodePush(t, m) {
			contents = append(contents, p.Content)
		}
	}
	assert.Equal(t, []string{"first", "second"}, contents)
}

func TestStartStop_Lifecycle(t *testing.T) {
	s := openStore(t)
	f := newFakeSender()
	e := New(s, f, logging.Discard(), 10)

	e.Stop() // idle: no-op
	assert.False(t, e.Running())

	e.Start(context.Background())
	e.Start(context.Background())
	assert.True(t, e.Running())

	insert(t, s, "hello", 1000)
	e.PeerOnline("peer")

	require.Eventually(t, func() bool { return f.cursor("peer") == "1000" }, 2*time.Second, 10*time.Millisecond)

	e.Stop()
	assert.False(t, e.Running())
	assert.Len(t, f.messages("peer"), 1)

	// restart picks up new work
	insert(t, s, "again", 2000)
	e.Start(context.Background())
	require.Eventually(t, func() bool { return f.cursor("peer") == "2000" }, 2*time.Second, 10*time.Millisecond)
	e.Stop()
}

func TestStop_WaitsForSweepInProgress(t *testing.T) {
	s := openStore(t)
	f := newFakeSender()
	f.gate = make(chan struct{})
	f.entered = make(chan struct{}, 1)
	e := New(s, f, logging.Discard(), 10)

	insert(t, s, "slow", 42)
	e.PeerOnline("peer")
	e.Start(context.Background())

	select {
	case <-f.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("send never started")
	}

	stopped := make(chan struct{})
	go func() {
		e.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a send was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(f.gate)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
	assert.Equal(t, "42", f.cursor("peer"), "sweep completed before exit")
}

func TestBroadcast_ExcludesAndCountsFailures(t *testing.T) {
	f := newFakeSender()
	f.failPeer["c"] = true
	e := New(openStore(t), f, logging.Discard(), 10)
	e.PeerOnline("owner")
	e.PeerOnline("b")
	e.PeerOnline("c")

	failed := e.Broadcast(context.Background(), []byte("x"), "owner")
	assert.Equal(t, 1, failed)
	assert.Empty(t, f.messages("owner"))
	assert.Len(t, f.messages("b"), 1)
}

func TestCursorCodec(t *testing.T) {
	assert.Equal(t, int64(0), ParseCursor(""))
	assert.Equal(t, int64(0), ParseCursor("garbage"))
	assert.Equal(t, int64(0), ParseCursor("-5"))
	assert.Equal(t, int64(1700000000000), ParseCursor("1700000000000"))
	assert.Equal(t, "600", FormatCursor(600))
}
