package remote

import "context"

// Store is the remote object store holding MindMup documents.
//
// Implementations classify failures by wrapping types.ErrNotFound,
// types.ErrPermissionDenied or types.ErrTransient.
type Store interface {
	// Metadata returns the file's metadata
	Metadata(ctx context.Context, fileID string) (*FileInfo, error)

	// Content returns the raw file body
	Content(ctx context.Context, fileID string) ([]byte, error)

	// List returns files matching q, newest first
	List(ctx context.Context, q Query) ([]FileInfo, error)
}
