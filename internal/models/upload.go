package models

import "time"

// UploadKind distinguishes pinned JSON documents from binary assets.
type UploadKind string

const (
	UploadJSON UploadKind = "json"
	UploadFile UploadKind = "file"
)

// UploadRecord is a content item the gateway pinned.
type UploadRecord struct {
	ID        string     `json:"id"` // ULID
	CID       string     `json:"cid"`
	Kind      UploadKind `json:"kind"`
	Name      string     `json:"name,omitempty"`
	Category  string     `json:"category,omitempty"`
	MimeType  string     `json:"mimeType,omitempty"`
	Size      int64      `json:"size"`
	CreatedAt time.Time  `json:"createdAt"`
}
