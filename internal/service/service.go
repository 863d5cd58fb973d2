// Package service wires the moments store, sync engine and command
// dispatcher to a peer transport. A Service is created per local user and
// receives every transport event through its Listener methods.
package service

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/dmitrijs2005/moments/internal/common"
	"github.com/dmitrijs2005/moments/internal/dispatch"
	"github.com/dmitrijs2005/moments/internal/filex"
	"github.com/dmitrijs2005/moments/internal/identity"
	"github.com/dmitrijs2005/moments/internal/logging"
	"github.com/dmitrijs2005/moments/internal/store"
	"github.com/dmitrijs2005/moments/internal/syncengine"
	"github.com/dmitrijs2005/moments/internal/transport"
)

// DirName is the per-user directory holding the moments database.
const DirName = "Moments"

type options struct {
	log       logging.Logger
	pageSize  int
	presigner dispatch.Presigner
}

type Option func(*options)

func WithLogger(l logging.Logger) Option {
	return func(o *options) { o.log = l }
}

func WithPageSize(n int) Option {
	return func(o *options) { o.pageSize = n }
}

// WithPresigner enables attachment URLs.
func WithPresigner(p dispatch.Presigner) Option {
	return func(o *options) { o.presigner = p }
}

type Service struct {
	userID     string
	transport  transport.Transport
	store      *store.Store
	engine     *syncengine.Engine
	dispatcher *dispatch.Dispatcher
	log        logging.Logger

	destroyOnce sync.Once
}

var _ transport.Listener = (*Service)(nil)

// Create opens <storageRoot>/<userID>/Moments/moments.db, assigns an owner
// if none is stored and registers the service as the transport listener.
// The sync worker starts once the transport reports the local session
// online.
func Create(ctx context.Context, storageRoot string, tr transport.Transport, opts ...Option) (*Service, error) {
	o := options{log: logging.Discard(), pageSize: common.DefaultPageSize}
	for _, fn := range opts {
		fn(&o)
	}

	userID := tr.UserID()
	log := o.log.With("user", userID)

	dir, err := filex.EnsureDir(filex.ServiceDir(storageRoot, userID, DirName))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrStorageUnavailable, err)
	}

	st, err := store.Open(ctx, filepath.Join(dir, common.DatabaseFile))
	if err != nil {
		return nil, err
	}

	s := &Service{
		userID:    userID,
		transport: tr,
		store:     st,
		log:       log.With("module", "service"),
	}

	if err := s.ensureOwner(ctx); err != nil {
		st.Close()
		return nil, err
	}

	s.engine = syncengine.New(st, tr, log, o.pageSize)

	dopts := []dispatch.Option{dispatch.WithPageSize(o.pageSize)}
	if o.presigner != nil {
		dopts = append(dopts, dispatch.WithPresigner(o.presigner))
	}
	s.dispatcher = dispatch.New(st, s.engine, tr, log, dopts...)

	tr.SetListener(s)
	s.log.Info(ctx, "moments service created", "path", dir)
	return s, nil
}

// ensureOwner assigns the first known DID peer as owner when none is stored.
func (s *Service) ensureOwner(ctx context.Context) error {
	owner, err := s.store.Owner(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrStorageUnavailable, err)
	}
	if owner != "" {
		return nil
	}

	peers, err := s.transport.ListKnownPeers(ctx)
	if err != nil {
		s.log.Warn(ctx, "list peers for owner assignment", "err", err)
		return nil
	}
	for _, p := range peers {
		if !identity.IsDID(p.ID) {
			continue
		}
		if err := s.store.SetOwner(ctx, p.ID); err != nil {
			return err
		}
		s.log.Info(ctx, "owner assigned", "peer", p.ID)
		return nil
	}
	return nil
}

// Destroy stops the sync worker, waiting for a running sweep, and closes the
// store.
func (s *Service) Destroy() error {
	var err error
	s.destroyOnce.Do(func() {
		s.engine.Stop()
		err = s.store.Close()
	})
	return err
}

func (s *Service) OnEvent(ctx context.Context, ev transport.Event) {
	switch e := ev.(type) {
	case transport.PresenceEvent:
		s.presence(ctx, e)
	case transport.FriendRequestEvent:
		s.log.Info(ctx, "friend request", "peer", e.PeerID)
		s.dispatcher.FriendRequest(ctx, e.PeerID, e.Summary)
	case transport.InfoChangedEvent:
		s.log.Info(ctx, "contact info changed", "peer", e.PeerID)
	default:
		s.log.Warn(ctx, "unhandled event", "type", fmt.Sprintf("%T", ev))
	}
}

func (s *Service) presence(ctx context.Context, e transport.PresenceEvent) {
	if e.PeerID == s.userID {
		if e.Online {
			s.engine.Start(ctx)
		} else {
			s.engine.Stop()
		}
		return
	}

	if e.Online {
		s.engine.PeerOnline(e.PeerID)
	} else {
		s.engine.PeerOffline(e.PeerID)
	}
}

func (s *Service) OnMessage(ctx context.Context, from string, payload []byte) {
	s.dispatcher.Handle(ctx, from, payload)
}

// Comment is reserved for comments on posts.
func (s *Service) Comment(ctx context.Context, peer, content string) error {
	return common.ErrNotImplemented
}
