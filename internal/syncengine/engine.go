// Package syncengine pushes unseen posts to online peers.
//
// Progress is tracked per peer by a cursor: the createdAt of the newest post
// the peer has successfully received, kept in the transport's per-contact
// metadata. Every sweep recomputes what each online peer is missing from the
// store, so nothing is buffered in memory and a restart loses no work.
//
// One worker goroutine performs sweeps. Wakes are coalesced through a
// capacity-1 channel: any number of Notify calls before the worker drains
// the channel collapse into one sweep, and a Notify that lands during a
// sweep leaves the channel full so another sweep follows.
package syncengine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"

	"github.com/dmitrijs2005/moments/internal/common"
	"github.com/dmitrijs2005/moments/internal/logging"
	"github.com/dmitrijs2005/moments/internal/models"
	"github.com/dmitrijs2005/moments/internal/protocol"
)

// Source lists live posts newer than a cursor.
type Source interface {
	ListSince(ctx context.Context, after int64, limit int) ([]models.Post, int64, error)
}

// Sender is the part of the transport the engine uses.
type Sender interface {
	SendMessage(ctx context.Context, peer string, payload []byte) error
	PeerMetadata(ctx context.Context, peer string) (string, error)
	SetPeerMetadata(ctx context.Context, peer, value string) error
}

type Engine struct {
	source   Source
	sender   Sender
	log      logging.Logger
	pageSize int

	wake chan struct{}

	mu      sync.Mutex
	online  []string
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// New creates an idle engine. pageSize bounds the number of posts per
// pushData message; values <= 0 fall back to common.DefaultPageSize.
func New(source Source, sender Sender, log logging.Logger, pageSize int) *Engine {
	if pageSize <= 0 {
		pageSize = common.DefaultPageSize
	}
	return &Engine{
		source:   source,
		sender:   sender,
		log:      log.With("module", "syncengine"),
		pageSize: pageSize,
		wake:     make(chan struct{}, 1),
	}
}

// Start launches the worker and schedules a sweep. Calling Start on a running
// engine only schedules a sweep. The worker keeps ctx values but ignores its
// cancellation; use Stop.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	if !e.running {
		e.running = true
		e.stop = make(chan struct{})
		e.done = make(chan struct{})
		go e.run(context.WithoutCancel(ctx), e.stop, e.done)
		e.log.Info(ctx, "sync worker started")
	}
	e.mu.Unlock()

	e.Notify()
}

// Stop asks the worker to exit and waits until it has. A sweep in progress
// runs to completion first. Stop on an idle engine is a no-op.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	close(e.stop)
	done := e.done
	e.mu.Unlock()

	<-done
}

// Running reports whether the worker is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Notify schedules a sweep. It never blocks.
func (e *Engine) Notify() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// PeerOnline adds peer to the online set and schedules a sweep.
func (e *Engine) PeerOnline(peer string) {
	e.mu.Lock()
	if !slices.Contains(e.online, peer) {
		e.online = append(e.online, peer)
	}
	e.mu.Unlock()

	e.Notify()
}

// PeerOffline removes peer from the online set.
func (e *Engine) PeerOffline(peer string) {
	e.mu.Lock()
	e.online = slices.DeleteFunc(e.online, func(p string) bool { return p == peer })
	e.mu.Unlock()
}

// OnlinePeers returns a snapshot of the online set in the order peers came
// online.
func (e *Engine) OnlinePeers() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.online)
}

// Broadcast sends payload to every online peer except the excluded ids.
// Failures are logged and counted; delivery is best effort.
func (e *Engine) Broadcast(ctx context.Context, payload []byte, exclude ...string) (failed int) {
	for _, peer := range e.OnlinePeers() {
		if slices.Contains(exclude, peer) {
			continue
		}
		if err := e.sender.SendMessage(ctx, peer, payload); err != nil {
			failed++
			e.log.Warn(ctx, "broadcast failed", "peer", peer, "err", err)
		}
	}
	return failed
}

func (e *Engine) run(ctx context.Context, stop, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			e.log.Info(ctx, "sync worker stopped")
			return
		case <-e.wake:
			select {
			case <-stop:
				e.log.Info(ctx, "sync worker stopped")
				return
			default:
			}
			e.sweep(ctx)
		}
	}
}

// sweep visits a snapshot of the online set once.
func (e *Engine) sweep(ctx context.Context) {
	peers := e.OnlinePeers()
	e.log.Debug(ctx, "sweep", "peers", len(peers))

	for _, peer := range peers {
		if err := e.pushPeer(ctx, peer); err != nil {
			e.log.Warn(ctx, "push failed", "peer", peer, "err", err)
		}
	}
}

// pushPeer sends everything newer than the peer's cursor and advances the
// cursor once all batches were accepted by the transport.
func (e *Engine) pushPeer(ctx context.Context, peer string) error {
	raw, err := e.sender.PeerMetadata(ctx, peer)
	if err != nil {
		return fmt.Errorf("read cursor: %w", err)
	}
	cursor := ParseCursor(raw)

	list, _, err := e.source.ListSince(ctx, cursor, 0)
	if err != nil {
		return fmt.Errorf("list since %d: %w", cursor, err)
	}
	// A zero cursor lists everything, including rows whose time could never
	// move the cursor forward.
	list = slices.DeleteFunc(list, func(p models.Post) bool { return p.CreatedAt <= cursor })
	if len(list) == 0 {
		return nil
	}
	newest := list[0].CreatedAt

	for batch := range slices.Chunk(list, e.pageSize) {
		payload, err := protocol.Encode(protocol.NewPushData(batch))
		if err != nil {
			return err
		}
		if err := e.sender.SendMessage(ctx, peer, payload); err != nil {
			return errors.Join(common.ErrTransportSendFailed, err)
		}
	}

	if err := e.sender.SetPeerMetadata(ctx, peer, FormatCursor(newest)); err != nil {
		return fmt.Errorf("write cursor: %w", err)
	}
	e.log.Debug(ctx, "pushed", "peer", peer, "count", len(list), "cursor", newest)
	return nil
}

// ParseCursor decodes a stored cursor. Empty or unparseable metadata means
// the peer has seen nothing.
func ParseCursor(raw string) int64 {
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

// FormatCursor encodes a cursor for the transport metadata.
func FormatCursor(v int64) string {
	return strconv.FormatInt(v, 10)
}
