package chunker

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dshills/mindmup-mcp/pkg/types"
)

const (
	// DefaultChunkSize is the target chunk length in bytes
	DefaultChunkSize = 100000

	// DefaultOverlap is the number of bytes repeated between neighbouring chunks
	DefaultOverlap = 1000

	// DefaultParagraphWindow is how far back from a naive cut to look for "\n"
	DefaultParagraphWindow = 1000

	// DefaultSentenceWindow is how far back from a naive cut to look for ". "
	DefaultSentenceWindow = 500
)

var (
	ErrInvalidChunkSize = errors.New("chunk size must be positive")
	ErrInvalidOverlap   = errors.New("overlap must be non-negative and smaller than chunk size")
)

// Config controls chunk geometry
type Config struct {
	ChunkSize       int
	Overlap         int
	ParagraphWindow int
	SentenceWindow  int
}

// DefaultConfig returns the standard chunk geometry
func DefaultConfig() Config {
	return Config{
		ChunkSize:       DefaultChunkSize,
		Overlap:         DefaultOverlap,
		ParagraphWindow: DefaultParagraphWindow,
		SentenceWindow:  DefaultSentenceWindow,
	}
}

// Validate checks that the geometry guarantees forward progress
func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return ErrInvalidChunkSize
	}
	if c.Overlap < 0 || c.Overlap >= c.ChunkSize {
		return fmt.Errorf("%w (overlap %d, chunk size %d)", ErrInvalidOverlap, c.Overlap, c.ChunkSize)
	}
	return nil
}

// Chunker splits flattened document text into overlapping windows
type Chunker struct {
	cfg Config
}

// New creates a Chunker; zero search windows fall back to the defaults
func New(cfg Config) (*Chunker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.ParagraphWindow <= 0 {
		cfg.ParagraphWindow = DefaultParagraphWindow
	}
	if cfg.SentenceWindow <= 0 {
		cfg.SentenceWindow = DefaultSentenceWindow
	}
	return &Chunker{cfg: cfg}, nil
}

// Split splits text with the default geometry and the given chunk size
func Split(text string, chunkSize int) ([]*types.Chunk, error) {
	cfg := DefaultConfig()
	cfg.ChunkSize = chunkSize
	c, err := New(cfg)
	if err != nil {
		return nil, err
	}
	return c.Split(text), nil
}

// Config returns the chunk geometry in use
func (c *Chunker) Config() Config {
	return c.cfg
}

// Split cuts text into ordered chunks.
//
// Text no longer than the chunk size yields a single chunk. Otherwise each
// naive cut at cursor+ChunkSize is pulled back to the last paragraph break
// in the paragraph window, else the last ". " in the sentence window. A
// break is only used when it lies beyond cursor+Overlap, so every chunk
// advances the cursor. The next chunk starts Overlap bytes before the
// previous end. Cuts never land inside a UTF-8 sequence.
func (c *Chunker) Split(text string) []*types.Chunk {
	if len(text) <= c.cfg.ChunkSize {
		return []*types.Chunk{{
			Index:       0,
			Start:       0,
			End:         len(text),
			TotalChunks: 1,
			Content:     text,
		}}
	}

	var chunks []*types.Chunk
	cursor := 0
	for cursor < len(text) {
		end := cursor + c.cfg.ChunkSize
		if end >= len(text) {
			end = len(text)
		} else {
			end = c.boundary(text, cursor, alignCut(text, cursor, end))
		}

		chunks = append(chunks, &types.Chunk{
			Index:   len(chunks),
			Start:   cursor,
			End:     end,
			Content: text[cursor:end],
		})

		if end == len(text) {
			break
		}
		// end-Overlap can fall at or before the cursor once a cut is
		// pulled back to a rune boundary
		cursor = alignForward(text, max(end-c.cfg.Overlap, cursor+1), end)
	}

	for _, ch := range chunks {
		ch.TotalChunks = len(chunks)
	}
	return chunks
}

// Chunk returns the chunk at index, recomputing the split
func (c *Chunker) Chunk(text string, index int) (*types.Chunk, error) {
	chunks := c.Split(text)
	if index < 0 || index >= len(chunks) {
		return nil, &types.InvalidChunkIndexError{Index: index, Total: len(chunks)}
	}
	return chunks[index], nil
}

// Count returns how many chunks text splits into
func (c *Chunker) Count(text string) int {
	return len(c.Split(text))
}

// boundary pulls a naive cut back to a paragraph or sentence break
func (c *Chunker) boundary(text string, cursor, end int) int {
	floor := cursor + c.cfg.Overlap + 1

	if i := lastIndexIn(text, "\n", max(end-c.cfg.ParagraphWindow, floor), end); i >= 0 {
		return i + 1
	}
	if i := lastIndexIn(text, ". ", max(end-c.cfg.SentenceWindow, floor), end); i >= 0 {
		return i + 2
	}
	return end
}

// lastIndexIn finds the last sep lying entirely inside text[from:to]
func lastIndexIn(text, sep string, from, to int) int {
	if from >= to {
		return -1
	}
	i := strings.LastIndex(text[from:to], sep)
	if i < 0 {
		return -1
	}
	return from + i
}

// alignCut moves end back to a rune boundary, or forward when that would
// produce an empty chunk
func alignCut(text string, cursor, end int) int {
	e := end
	for e > cursor && !utf8.RuneStart(text[e]) {
		e--
	}
	if e > cursor {
		return e
	}
	return alignForward(text, end, len(text))
}

// alignForward moves pos forward to a rune boundary without passing limit
func alignForward(text string, pos, limit int) int {
	for pos < limit && pos < len(text) && !utf8.RuneStart(text[pos]) {
		pos++
	}
	return pos
}
