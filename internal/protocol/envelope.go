// Package protocol defines the JSON messages the moments service exchanges
// with peers: the envelope, the closed set of inbound commands, and the
// response and push payloads.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/moments/internal/common"
)

// Command names as they appear in content.command.
const (
	CmdSetting       = "setting"
	CmdGetSetting    = "getSetting"
	CmdPublish       = "publish"
	CmdDelete        = "delete"
	CmdClear         = "clear"
	CmdAcceptFriend  = "acceptFriend"
	CmdGetFollowList = "getFollowList"
	CmdGetData       = "getData"
	CmdGetDataList   = "getDataList"
	CmdGetUploadURL  = "getUploadUrl"
	CmdGetFileURL    = "getFileUrl"

	CmdPushData      = "pushData"
	CmdFriendRequest = "friendRequest"
)

// SettingAccess is the only supported settings type.
const SettingAccess = "access"

// Result codes carried in the "result" field.
const (
	ResultOK     = 0
	ResultFailed = -1
)

// Envelope is the outer frame of every message.
type Envelope struct {
	ServiceName string          `json:"serviceName"`
	Content     json.RawMessage `json:"content"`
}

// Encode wraps content into an envelope addressed to the moments service.
func Encode(content any) ([]byte, error) {
	raw, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("encode content: %w", err)
	}
	return json.Marshal(Envelope{ServiceName: common.ServiceName, Content: raw})
}

// Open unwraps an envelope and returns the command name and the raw content.
func Open(payload []byte) (string, json.RawMessage, error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return "", nil, fmt.Errorf("%w: %w", common.ErrMalformedMessage, err)
	}
	if env.ServiceName != common.ServiceName {
		return "", nil, fmt.Errorf("%w: service %q", common.ErrMalformedMessage, env.ServiceName)
	}
	if len(env.Content) == 0 {
		return "", nil, fmt.Errorf("%w: missing content", common.ErrMalformedMessage)
	}

	var head struct {
		Command string `json:"command"`
	}
	if err := json.Unmarshal(env.Content, &head); err != nil {
		return "", nil, fmt.Errorf("%w: %w", common.ErrMalformedMessage, err)
	}
	if head.Command == "" {
		return "", nil, fmt.Errorf("%w: missing command", common.ErrMalformedMessage)
	}
	return head.Command, env.Content, nil
}
