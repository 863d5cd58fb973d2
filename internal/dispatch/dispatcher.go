// Package dispatch executes inbound peer commands against the moments store.
//
// Every message is decoded once into the closed protocol.Command set and then
// handled by a type switch. Owner-only commands from anyone but the stored
// owner are dropped without a response. Storage errors become negative
// result codes; nothing is returned to the caller as an error.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/dmitrijs2005/moments/internal/common"
	"github.com/dmitrijs2005/moments/internal/identity"
	"github.com/dmitrijs2005/moments/internal/logging"
	"github.com/dmitrijs2005/moments/internal/models"
	"github.com/dmitrijs2005/moments/internal/protocol"
	"github.com/dmitrijs2005/moments/internal/transport"
)

// Store is the part of the repository the dispatcher uses.
type Store interface {
	Owner(ctx context.Context) (string, error)
	SetOwner(ctx context.Context, owner string) error
	Visibility(ctx context.Context) (models.Visibility, error)
	SetVisibility(ctx context.Context, v models.Visibility) error
	Insert(ctx context.Context, p models.NewPost) (int64, error)
	SoftDelete(ctx context.Context, id int64) (bool, error)
	SoftDeleteAll(ctx context.Context) (int64, error)
	ListSince(ctx context.Context, after int64, limit int) ([]models.Post, int64, error)
	GetOne(ctx context.Context, id int64) (*models.Post, error)
	HasAttachment(ctx context.Context, key string) (bool, error)
}

// Engine is the part of the sync engine the dispatcher uses.
type Engine interface {
	Notify()
	Broadcast(ctx context.Context, payload []byte, exclude ...string) int
}

// Transport is the part of the peer transport the dispatcher uses.
type Transport interface {
	SendMessage(ctx context.Context, peer string, payload []byte) error
	AcceptFriend(ctx context.Context, peer string) error
	ListKnownPeers(ctx context.Context) ([]transport.Peer, error)
}

// Presigner issues attachment URLs.
type Presigner interface {
	PresignUpload(ctx context.Context) (key, url string, err error)
	PresignDownload(ctx context.Context, key string) (string, error)
}

type Dispatcher struct {
	store     Store
	engine    Engine
	transport Transport
	files     Presigner
	log       logging.Logger
	pageSize  int
}

type Option func(*Dispatcher)

// WithPresigner enables getUploadUrl and getFileUrl.
func WithPresigner(p Presigner) Option {
	return func(d *Dispatcher) { d.files = p }
}

// WithPageSize sets the getDataList cap.
func WithPageSize(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.pageSize = n
		}
	}
}

func New(store Store, engine Engine, tr Transport, log logging.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:     store,
		engine:    engine,
		transport: tr,
		log:       log.With("module", "dispatch"),
		pageSize:  common.DefaultPageSize,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Handle processes one inbound message from peer `from`.
func (d *Dispatcher) Handle(ctx context.Context, from string, payload []byte) {
	cmd, err := protocol.Decode(payload)
	if err != nil {
		d.log.Warn(ctx, "dropping message", "peer", from, "err", err)
		return
	}

	owner, err := d.store.Owner(ctx)
	if err != nil {
		d.log.Error(ctx, "read owner", "command", cmd.Name(), "err", err)
		return
	}

	to := from
	if cmd.OwnerOnly() {
		if owner == "" || from != owner {
			d.log.Warn(ctx, "owner command from non-owner dropped",
				"peer", from, "command", cmd.Name(), "err", common.ErrUnauthorized)
			return
		}
		to = owner
	}

	resp := d.execute(ctx, owner, cmd)
	if resp == nil {
		return
	}
	d.reply(ctx, to, cmd.Name(), resp)
}

func (d *Dispatcher) reply(ctx context.Context, to, command string, resp any) {
	payload, err := protocol.Encode(resp)
	if err != nil {
		d.log.Error(ctx, "encode response", "command", command, "err", err)
		return
	}
	if err := d.transport.SendMessage(ctx, to, payload); err != nil {
		d.log.Warn(ctx, "send response", "peer", to, "command", command, "err", err)
	}
}

func (d *Dispatcher) execute(ctx context.Context, owner string, cmd protocol.Command) any {
	switch c := cmd.(type) {
	case protocol.Setting:
		return d.setting(ctx, c)
	case protocol.GetSetting:
		return d.getSetting(ctx, c)
	case protocol.Publish:
		return d.publish(ctx, c)
	case protocol.Delete:
		return d.delete(ctx, owner, c)
	case protocol.Clear:
		return d.clear(ctx, owner)
	case protocol.AcceptFriend:
		if err := d.transport.AcceptFriend(ctx, c.FriendCode); err != nil {
			d.log.Warn(ctx, "accept friend", "peer", c.FriendCode, "err", err)
		}
		return nil
	case protocol.GetFollowList:
		return d.followList(ctx, owner)
	case protocol.GetData:
		return d.getData(ctx, c)
	case protocol.GetDataList:
		return d.getDataList(ctx, c)
	case protocol.GetUploadURL:
		return d.uploadURL(ctx)
	case protocol.GetFileURL:
		return d.fileURL(ctx, c)
	}

	d.log.Error(ctx, "unhandled command", "command", cmd.Name())
	return nil
}

func (d *Dispatcher) setting(ctx context.Context, c protocol.Setting) any {
	if c.Type != protocol.SettingAccess {
		d.log.Warn(ctx, "unsupported setting", "type", c.Type)
		return nil
	}
	resp := protocol.ResultResponse{Command: protocol.CmdSetting, Result: protocol.ResultFailed}
	if err := d.store.SetVisibility(ctx, c.Value); err != nil {
		d.log.Error(ctx, "set visibility", "err", err)
		return resp
	}
	d.engine.Notify()
	resp.Result = protocol.ResultOK
	return resp
}

func (d *Dispatcher) getSetting(ctx context.Context, c protocol.GetSetting) any {
	resp := protocol.GetSettingResponse{Command: protocol.CmdGetSetting, Type: c.Type}
	if c.Type != protocol.SettingAccess {
		d.log.Warn(ctx, "unsupported setting", "type", c.Type)
		return resp
	}
	v, err := d.store.Visibility(ctx)
	if err != nil {
		d.log.Error(ctx, "read visibility", "err", err)
		return resp
	}
	resp.Value = v.String()
	return resp
}

func (d *Dispatcher) publish(ctx context.Context, c protocol.Publish) any {
	resp := protocol.PublishResponse{Command: protocol.CmdPublish, Time: c.CreatedAt, Result: protocol.ResultFailed}
	id, err := d.store.Insert(ctx, models.NewPost{
		Kind:        c.Kind,
		Content:     c.Content,
		CreatedAt:   c.CreatedAt,
		Attachments: c.Attachments,
		Access:      c.Access,
	})
	if err != nil {
		d.log.Error(ctx, "publish", "err", err)
		return resp
	}
	d.engine.Notify()
	resp.Result = id
	return resp
}

func (d *Dispatcher) delete(ctx context.Context, owner string, c protocol.Delete) any {
	resp := protocol.DeleteResponse{Command: protocol.CmdDelete, ID: c.ID, Result: protocol.ResultFailed}
	changed, err := d.store.SoftDelete(ctx, c.ID)
	if err != nil {
		d.log.Error(ctx, "delete", "id", c.ID, "err", err)
		return resp
	}
	resp.Result = protocol.ResultOK
	if changed {
		d.announce(ctx, owner, protocol.DeleteResponse{Command: protocol.CmdDelete, ID: c.ID})
	}
	return resp
}

func (d *Dispatcher) clear(ctx context.Context, owner string) any {
	resp := protocol.ResultResponse{Command: protocol.CmdClear, Result: protocol.ResultFailed}
	n, err := d.store.SoftDeleteAll(ctx)
	if err != nil {
		d.log.Error(ctx, "clear", "err", err)
		return resp
	}
	d.log.Info(ctx, "cleared", "count", n)
	resp.Result = protocol.ResultOK
	if n > 0 {
		d.announce(ctx, owner, protocol.ResultResponse{Command: protocol.CmdClear})
	}
	return resp
}

// announce tells online peers about a deletion. Best effort.
func (d *Dispatcher) announce(ctx context.Context, owner string, notice any) {
	payload, err := protocol.Encode(notice)
	if err != nil {
		d.log.Error(ctx, "encode notice", "err", err)
		return
	}
	if failed := d.engine.Broadcast(ctx, payload, owner); failed > 0 {
		d.log.Warn(ctx, "deletion notice not delivered", "count", failed)
	}
}

func (d *Dispatcher) followList(ctx context.Context, owner string) any {
	resp := protocol.FollowListResponse{Command: protocol.CmdGetFollowList, Content: []string{}}
	peers, err := d.transport.ListKnownPeers(ctx)
	if err != nil {
		d.log.Error(ctx, "list peers", "err", err)
		return resp
	}
	for _, p := range peers {
		if p.ID != owner {
			resp.Content = append(resp.Content, p.ID)
		}
	}
	return resp
}

func (d *Dispatcher) getData(ctx context.Context, c protocol.GetData) any {
	resp := protocol.GetDataResponse{Command: protocol.CmdGetData, ID: c.ID, Content: struct{}{}}
	p, err := d.store.GetOne(ctx, c.ID)
	switch {
	case err == nil:
		resp.Content = p
	case errors.Is(err, common.ErrNotFound):
	default:
		d.log.Error(ctx, "get post", "id", c.ID, "err", err)
	}
	return resp
}

func (d *Dispatcher) getDataList(ctx context.Context, c protocol.GetDataList) any {
	resp := protocol.GetDataListResponse{Command: protocol.CmdGetDataList, Time: c.After, Content: []models.Post{}}
	list, _, err := d.store.ListSince(ctx, c.After, d.pageSize)
	if err != nil {
		d.log.Error(ctx, "list posts", "after", c.After, "err", err)
		return resp
	}
	resp.Content = list
	return resp
}

func (d *Dispatcher) uploadURL(ctx context.Context) any {
	resp := protocol.URLResponse{Command: protocol.CmdGetUploadURL, Result: protocol.ResultFailed}
	if d.files == nil {
		d.log.Warn(ctx, "upload url requested", "err", common.ErrAttachmentsDisabled)
		return resp
	}
	key, url, err := d.files.PresignUpload(ctx)
	if err != nil {
		d.log.Error(ctx, "presign upload", "err", err)
		return resp
	}
	resp.Key, resp.URL, resp.Result = key, url, protocol.ResultOK
	return resp
}

func (d *Dispatcher) fileURL(ctx context.Context, c protocol.GetFileURL) any {
	resp := protocol.URLResponse{Command: protocol.CmdGetFileURL, Key: c.Key, Result: protocol.ResultFailed}
	if d.files == nil {
		d.log.Warn(ctx, "file url requested", "err", common.ErrAttachmentsDisabled)
		return resp
	}
	ok, err := d.store.HasAttachment(ctx, c.Key)
	if err != nil {
		d.log.Error(ctx, "lookup attachment", "key", c.Key, "err", err)
		return resp
	}
	if !ok {
		return resp
	}
	url, err := d.files.PresignDownload(ctx, c.Key)
	if err != nil {
		d.log.Error(ctx, "presign download", "key", c.Key, "err", err)
		return resp
	}
	resp.URL, resp.Result = url, protocol.ResultOK
	return resp
}

// FriendRequest applies the visibility policy to an incoming request. In
// private mode the request is forwarded to the owner. In public mode it is
// accepted; when no owner exists yet the requester becomes owner, but only
// if its id is a DID, and requests from other ids are ignored.
func (d *Dispatcher) FriendRequest(ctx context.Context, from, summary string) {
	owner, err := d.store.Owner(ctx)
	if err != nil {
		d.log.Error(ctx, "read owner", "err", err)
		return
	}
	vis, err := d.store.Visibility(ctx)
	if err != nil {
		d.log.Error(ctx, "read visibility", "err", err)
		return
	}

	if vis == models.Private {
		if owner == "" {
			d.log.Warn(ctx, "friend request with no owner to forward to", "peer", from)
			return
		}
		d.reply(ctx, owner, protocol.CmdFriendRequest, protocol.FriendRequest{
			Command:    protocol.CmdFriendRequest,
			FriendCode: from,
			Summary:    summaryText(summary),
		})
		return
	}

	if owner == "" {
		if !identity.IsDID(from) {
			d.log.Info(ctx, "ignoring friend request", "peer", from)
			return
		}
		if err := d.store.SetOwner(ctx, from); err != nil {
			d.log.Error(ctx, "assign owner", "peer", from, "err", err)
			return
		}
		d.log.Info(ctx, "owner assigned", "peer", from)
		d.engine.Notify()
	}

	if err := d.transport.AcceptFriend(ctx, from); err != nil {
		d.log.Warn(ctx, "accept friend", "peer", from, "err", err)
	}
}

// summaryText extracts the "content" field of a JSON summary; any other
// summary is passed through unchanged.
func summaryText(summary string) string {
	var s struct {
		Content *string `json:"content"`
	}
	if err := json.Unmarshal([]byte(summary), &s); err != nil || s.Content == nil {
		return summary
	}
	return *s.Content
}
