package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/moments/internal/common"
	"github.com/dmitrijs2005/moments/internal/models"
)

// Command is one decoded inbound request. The set of implementations is
// closed; consumers switch on the concrete type.
type Command interface {
	Name() string
	// OwnerOnly reports whether only the owner may issue the command.
	OwnerOnly() bool
}

type Setting struct {
	Type  string
	Value models.Visibility
}

type GetSetting struct {
	Type string
}

type Publish struct {
	Kind        int
	Content     string
	CreatedAt   int64
	Access      string
	Attachments string
}

type Delete struct {
	ID int64
}

type Clear struct{}

type AcceptFriend struct {
	FriendCode string
}

type GetFollowList struct{}

type GetData struct {
	ID int64
}

type GetDataList struct {
	After int64
}

type GetUploadURL struct{}

type GetFileURL struct {
	Key string
}

func (Setting) Name() string       { return CmdSetting }
func (GetSetting) Name() string    { return CmdGetSetting }
func (Publish) Name() string       { return CmdPublish }
func (Delete) Name() string        { return CmdDelete }
func (Clear) Name() string         { return CmdClear }
func (AcceptFriend) Name() string  { return CmdAcceptFriend }
func (GetFollowList) Name() string { return CmdGetFollowList }
func (GetData) Name() string       { return CmdGetData }
func (GetDataList) Name() string   { return CmdGetDataList }
func (GetUploadURL) Name() string  { return CmdGetUploadURL }
func (GetFileURL) Name() string    { return CmdGetFileURL }

func (Setting) OwnerOnly() bool       { return true }
func (GetSetting) OwnerOnly() bool    { return true }
func (Publish) OwnerOnly() bool       { return true }
func (Delete) OwnerOnly() bool        { return true }
func (Clear) OwnerOnly() bool         { return true }
func (AcceptFriend) OwnerOnly() bool  { return true }
func (GetFollowList) OwnerOnly() bool { return true }
func (GetData) OwnerOnly() bool       { return false }
func (GetDataList) OwnerOnly() bool   { return false }
func (GetUploadURL) OwnerOnly() bool  { return true }
func (GetFileURL) OwnerOnly() bool    { return false }

// visibilityValue accepts the setting value either as a boolean (true means
// private) or as the "private"/"public" literal.
type visibilityValue struct {
	set bool
	v   models.Visibility
}

func (vv *visibilityValue) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var flag bool
	if err := json.Unmarshal(b, &flag); err == nil {
		vv.set, vv.v = true, models.Visibility(flag)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("setting value: %w", err)
	}
	v, err := models.ParseVisibility(s)
	if err != nil {
		return err
	}
	vv.set, vv.v = true, v
	return nil
}

// Decode parses a full envelope into a Command. Unparseable input and
// missing required fields yield common.ErrMalformedMessage; an unknown
// command name yields common.ErrUnknownCommand.
func Decode(payload []byte) (Command, error) {
	name, body, err := Open(payload)
	if err != nil {
		return nil, err
	}

	switch name {
	case CmdSetting:
		var req struct {
			Type  string          `json:"type"`
			Value visibilityValue `json:"value"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		if req.Type == "" || !req.Value.set {
			return nil, missing(name, "type/value")
		}
		return Setting{Type: req.Type, Value: req.Value.v}, nil

	case CmdGetSetting:
		var req struct {
			Type string `json:"type"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		if req.Type == "" {
			return nil, missing(name, "type")
		}
		return GetSetting{Type: req.Type}, nil

	case CmdPublish:
		var req struct {
			Kind    *int    `json:"type"`
			Content *string `json:"content"`
			Time    *int64  `json:"time"`
			Access  *string `json:"access"`
			Files   string  `json:"files"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		switch {
		case req.Kind == nil:
			return nil, missing(name, "type")
		case req.Content == nil:
			return nil, missing(name, "content")
		case req.Access == nil:
			return nil, missing(name, "access")
		case req.Time == nil:
			return nil, missing(name, "time")
		case *req.Time <= 0:
			// time is the sync cursor; a non-positive value could never be
			// passed by one.
			return nil, fmt.Errorf("%w: publish time must be positive, got %d", common.ErrMalformedMessage, *req.Time)
		}
		return Publish{
			Kind:        *req.Kind,
			Content:     *req.Content,
			CreatedAt:   *req.Time,
			Access:      *req.Access,
			Attachments: req.Files,
		}, nil

	case CmdDelete, CmdGetData:
		var req struct {
			ID *int64 `json:"id"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		if req.ID == nil {
			return nil, missing(name, "id")
		}
		if name == CmdDelete {
			return Delete{ID: *req.ID}, nil
		}
		return GetData{ID: *req.ID}, nil

	case CmdClear:
		return Clear{}, nil

	case CmdAcceptFriend:
		var req struct {
			FriendCode string `json:"friendCode"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		if req.FriendCode == "" {
			return nil, missing(name, "friendCode")
		}
		return AcceptFriend{FriendCode: req.FriendCode}, nil

	case CmdGetFollowList:
		return GetFollowList{}, nil

	case CmdGetDataList:
		var req struct {
			Time int64 `json:"time"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		return GetDataList{After: req.Time}, nil

	case CmdGetUploadURL:
		return GetUploadURL{}, nil

	case CmdGetFileURL:
		var req struct {
			Key string `json:"key"`
		}
		if err := unmarshal(body, &req); err != nil {
			return nil, err
		}
		if req.Key == "" {
			return nil, missing(name, "key")
		}
		return GetFileURL{Key: req.Key}, nil
	}

	return nil, fmt.Errorf("%w: %q", common.ErrUnknownCommand, name)
}

func unmarshal(body json.RawMessage, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %w", common.ErrMalformedMessage, err)
	}
	return nil
}

func missing(cmd, field string) error {
	return fmt.Errorf("%w: %s requires %s", common.ErrMalformedMessage, cmd, field)
}
