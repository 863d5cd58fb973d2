package protocol

import "github.com/dmitrijs2005/moments/internal/models"

// ResultResponse answers setting and clear, and announces clear to peers.
type ResultResponse struct {
	Command string `json:"command"`
	Result  int    `json:"result"`
}

// PublishResponse carries the new post id in Result, or ResultFailed.
type PublishResponse struct {
	Command string `json:"command"`
	Time    int64  `json:"time"`
	Result  int64  `json:"result"`
}

// DeleteResponse answers delete and announces the deletion to peers.
type DeleteResponse struct {
	Command string `json:"command"`
	ID      int64  `json:"id"`
	Result  int    `json:"result"`
}

type GetSettingResponse struct {
	Command string `json:"command"`
	Type    string `json:"type"`
	Value   string `json:"value"`
}

type FollowListResponse struct {
	Command string   `json:"command"`
	Content []string `json:"content"`
}

// GetDataResponse holds a *models.Post, or an empty object when the post
// does not exist.
type GetDataResponse struct {
	Command string `json:"command"`
	ID      int64  `json:"id"`
	Content any    `json:"content"`
}

type GetDataListResponse struct {
	Command string        `json:"command"`
	Time    int64         `json:"time"`
	Content []models.Post `json:"content"`
}

// PushData is the unsolicited batch the sync engine sends to a peer.
type PushData struct {
	Command string        `json:"command"`
	Content []models.Post `json:"content"`
}

// FriendRequest forwards a pending request to the owner in private mode.
type FriendRequest struct {
	Command    string `json:"command"`
	FriendCode string `json:"friendCode"`
	Summary    string `json:"summary"`
}

// URLResponse answers getUploadUrl and getFileUrl.
type URLResponse struct {
	Command string `json:"command"`
	Key     string `json:"key"`
	URL     string `json:"url"`
	Result  int    `json:"result"`
}

// NewPushData builds a pushData payload; a nil batch is sent as [].
func NewPushData(batch []models.Post) PushData {
	if batch == nil {
		batch = []models.Post{}
	}
	return PushData{Command: CmdPushData, Content: batch}
}
