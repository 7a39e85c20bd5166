package remote

import (
	"slices"
	"strings"
	"time"
)

// MIME types recognised by the store layer
const (
	MimeJSON    = "application/json"
	MimeText    = "text/plain"
	MimeOctet   = "application/octet-stream"
	MimeMindmup = "application/vnd.mindmup"
	MimeFolder  = "application/vnd.google-apps.folder"
)

// GoogleAppsMimeTypes are document types that cannot be downloaded as files
var GoogleAppsMimeTypes = []string{
	"application/vnd.google-apps.document",
	"application/vnd.google-apps.spreadsheet",
	"application/vnd.google-apps.presentation",
	"application/vnd.google-apps.drawing",
	"application/vnd.google-apps.script",
	"application/vnd.google-apps.form",
}

// FileInfo is the metadata a store reports for a file
type FileInfo struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	MimeType     string    `json:"mime_type"`
	Size         int64     `json:"size"`
	CreatedTime  time.Time `json:"created_time"`
	ModifiedTime time.Time `json:"modified_time"`
	Parents      []string  `json:"parents,omitempty"`
	WebViewLink  string    `json:"web_view_link,omitempty"`
	Trashed      bool      `json:"trashed,omitempty"`
}

// IsFolder reports whether the file is a folder
func (f *FileInfo) IsFolder() bool {
	return f.MimeType == MimeFolder
}

// IsDownloadable reports whether the file body can be fetched as-is
func (f *FileInfo) IsDownloadable() bool {
	return !f.IsFolder() && !slices.Contains(GoogleAppsMimeTypes, f.MimeType)
}

// IsMindmup reports whether the file looks like a MindMup document.
// Folders and Google Apps documents never qualify. The MindMup MIME type or
// a ".mup" suffix always does. JSON, text and binary files qualify only when
// their name mentions ".mup", "mindmup" or "mindmap".
func (f *FileInfo) IsMindmup() bool {
	if !f.IsDownloadable() {
		return false
	}
	if f.MimeType == MimeMindmup || strings.HasSuffix(f.Name, ".mup") {
		return true
	}

	switch f.MimeType {
	case MimeJSON, MimeText, MimeOctet:
		name := strings.ToLower(f.Name)
		for _, marker := range []string{".mup", "mindmup", "mindmap"} {
			if strings.Contains(name, marker) {
				return true
			}
		}
	}
	return false
}

// DefaultMaxResults caps a listing when the query sets no limit
const DefaultMaxResults = 1000

// Query filters a listing
type Query struct {
	FolderID       string
	NameContains   string
	MimeTypes      []string
	MaxResults     int
	IncludeTrashed bool
}

// Limit returns the effective result cap
func (q Query) Limit() int {
	if q.MaxResults <= 0 {
		return DefaultMaxResults
	}
	return q.MaxResults
}

// Matches reports whether f satisfies the query. Stores that cannot filter
// server-side apply it after listing.
func (q Query) Matches(f *FileInfo) bool {
	if f.Trashed && !q.IncludeTrashed {
		return false
	}
	if q.FolderID != "" && !slices.Contains(f.Parents, q.FolderID) {
		return false
	}
	if q.NameContains != "" && !strings.Contains(strings.ToLower(f.Name), strings.ToLower(q.NameContains)) {
		return false
	}
	if len(q.MimeTypes) > 0 && !slices.Contains(q.MimeTypes, f.MimeType) {
		return false
	}
	return true
}
