package storage

import (
	"context"
	"time"

	"github.com/dshills/mindmup-mcp/internal/remote"
)

// Storage persists MindMup documents for local and offline serving
type Storage interface {
	remote.Store

	// Document operations
	UpsertDocument(ctx context.Context, doc *Document) (changed bool, err error)
	GetDocument(ctx context.Context, id string) (*Document, error)
	DeleteDocument(ctx context.Context, id string) error
	ListDocuments(ctx context.Context, q remote.Query) ([]*Document, error)
	CountDocuments(ctx context.Context) (int, error)

	// Import operations
	ImportFile(ctx context.Context, path string, opts ImportOptions) (*ImportResult, error)
	ImportFiles(ctx context.Context, paths []string, opts ImportOptions) ([]*ImportResult, error)

	// Database operations
	Close() error
}

// Document is a stored file. Content is nil in listings.
type Document struct {
	ID          string
	Name        string
	MimeType    string
	ParentID    string
	Content     []byte
	ContentHash [32]byte
	SizeBytes   int64
	Trashed     bool
	CreatedAt   time.Time
	ModifiedAt  time.Time
}

// FileInfo converts the document to the metadata shape stores report
func (d *Document) FileInfo() remote.FileInfo {
	info := remote.FileInfo{
		ID:           d.ID,
		Name:         d.Name,
		MimeType:     d.MimeType,
		Size:         d.SizeBytes,
		CreatedTime:  d.CreatedAt,
		ModifiedTime: d.ModifiedAt,
		Trashed:      d.Trashed,
	}
	if d.ParentID != "" {
		info.Parents = []string{d.ParentID}
	}
	return info
}

// ImportOptions controls how files on disk become documents
type ImportOptions struct {
	// ID overrides the document id. Only valid for single-file imports.
	ID       string
	ParentID string
}

// ImportResult reports one imported file
type ImportResult struct {
	Path      string `json:"path"`
	ID        string `json:"id"`
	Title     string `json:"title"`
	NodeCount int    `json:"node_count"`
	SizeBytes int64  `json:"size_bytes"`
	Changed   bool   `json:"changed"`
}
