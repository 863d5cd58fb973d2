// Package models defines the moments domain types: posts and settings.
package models

// Post is a single moment. The JSON shape is the wire payload shared by
// getData, getDataList and pushData: every key is always present and
// optional text fields are sent as empty strings.
type Post struct {
	ID          int64  `json:"id"`
	Kind        int    `json:"type"`
	Content     string `json:"content"`
	CreatedAt   int64  `json:"time"`
	Attachments string `json:"files"`
	Access      string `json:"access"`
	Deleted     bool   `json:"-"`
}

// NewPost describes a post to be inserted; the store assigns the id.
type NewPost struct {
	Kind        int
	Content     string
	CreatedAt   int64
	Attachments string
	Access      string
}
