package types

import "time"

// Payload is a downloaded document body together with the metadata
// reported by the store. Payloads are shared between callers and must be
// treated as read-only once cached.
type Payload struct {
	FileID       string    `json:"file_id"`
	Name         string    `json:"name"`
	MimeType     string    `json:"mime_type"`
	Size         int64     `json:"size"`
	ModifiedTime time.Time `json:"modified_time"`
	Content      string    `json:"-"`
	FetchedAt    time.Time `json:"fetched_at"`
}
