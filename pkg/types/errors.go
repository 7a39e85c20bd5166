package types

import (
	"errors"
	"fmt"
)

// Store and fetch errors
var (
	ErrNotFound         = errors.New("not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrTransient        = errors.New("transient store failure")
	ErrTooLarge         = errors.New("file exceeds maximum size")
	ErrEmptyContent     = errors.New("file is empty or unreadable")
)

// FetchError reports a failed download. Err is one of the store errors
// above, possibly wrapped.
type FetchError struct {
	FileID string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch %s: %v", e.FileID, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ParseError reports malformed document JSON. Offset is the byte offset
// reached when the problem was detected.
type ParseError struct {
	Offset  int64
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Offset > 0 {
		return fmt.Sprintf("parse error at offset %d: %s", e.Offset, e.Message)
	}
	return "parse error: " + e.Message
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// InvalidChunkIndexError is returned for a chunk request outside [0, Total).
type InvalidChunkIndexError struct {
	Index int
	Total int
}

func (e *InvalidChunkIndexError) Error() string {
	return fmt.Sprintf("chunk index %d out of range (total chunks: %d)", e.Index, e.Total)
}

// EmptyContentError is returned when a download decodes to nothing.
type EmptyContentError struct {
	FileID string
}

func (e *EmptyContentError) Error() string {
	return fmt.Sprintf("file %s is empty or unreadable", e.FileID)
}

func (e *EmptyContentError) Unwrap() error {
	return ErrEmptyContent
}
