package types

import "errors"

// Tier is the shape chosen for delivering a document's content
type Tier string

const (
	TierFull       Tier = "full"
	TierStructured Tier = "structured"
	TierChunked    Tier = "chunked"
)

// Chunk is one window of a document's flattened text.
// Offsets are byte offsets into the flattened text; End is exclusive.
type Chunk struct {
	Index       int    `json:"chunk_index"`
	Start       int    `json:"start_position"`
	End         int    `json:"end_position"`
	TotalChunks int    `json:"total_chunks"`
	Content     string `json:"content"`
}

// Size returns the chunk length in bytes
func (c *Chunk) Size() int {
	return c.End - c.Start
}

// Validate checks the chunk's bookkeeping fields
func (c *Chunk) Validate() error {
	if c.Index < 0 || c.Index >= c.TotalChunks {
		return errors.New("chunk index out of range")
	}
	if c.Start < 0 || c.End < c.Start {
		return errors.New("invalid chunk offsets")
	}
	if len(c.Content) != c.End-c.Start {
		return errors.New("chunk content does not match offsets")
	}
	return nil
}
