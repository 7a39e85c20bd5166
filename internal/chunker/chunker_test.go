package chunker

import (
	"errors"
	"math/rand/v2"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/dshills/mindmup-mcp/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestChunker(t *testing.T, size, overlap int) *Chunker {
	t.Helper()
	c, err := New(Config{ChunkSize: size, Overlap: overlap, ParagraphWindow: 30, SentenceWindow: 20})
	require.NoError(t, err)
	return c
}

// assertCovers checks ordering, coverage, overlap and bookkeeping
func assertCovers(t *testing.T, text string, chunks []*types.Chunk, maxSize int) {
	t.Helper()
	require.NotEmpty(t, chunks)

	assert.Equal(t, 0, chunks[0].Start)
	assert.Equal(t, len(text), chunks[len(chunks)-1].End)

	for i, ch := range chunks {
		assert.Equal(t, i, ch.Index)
		assert.Equal(t, len(chunks), ch.TotalChunks)
		assert.NoError(t, ch.Validate())
		assert.LessOrEqual(t, ch.Size(), maxSize)
		assert.True(t, utf8.ValidString(ch.Content), "chunk %d splits a rune", i)
		if i > 0 {
			prev := chunks[i-1]
			assert.Greater(t, ch.Start, prev.Start, "cursor must advance")
			assert.LessOrEqual(t, ch.Start, prev.End, "gap between chunks %d and %d", i-1, i)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{"defaults", DefaultConfig(), nil},
		{"zero overlap", Config{ChunkSize: 10}, nil},
		{"zero size", Config{ChunkSize: 0}, ErrInvalidChunkSize},
		{"overlap equals size", Config{ChunkSize: 10, Overlap: 10}, ErrInvalidOverlap},
		{"overlap exceeds size", Config{ChunkSize: 10, Overlap: 20}, ErrInvalidOverlap},
		{"negative overlap", Config{ChunkSize: 10, Overlap: -1}, ErrInvalidOverlap},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestSplit_ShortText(t *testing.T) {
	c := newTestChunker(t, 100, 10)

	for _, text := range []string{"", "short", strings.Repeat("x", 100)} {
		chunks := c.Split(text)
		require.Len(t, chunks, 1)
		assert.Equal(t, text, chunks[0].Content)
		assert.Equal(t, 1, chunks[0].TotalChunks)
	}
}

func TestSplit_NoBreaks(t *testing.T) {
	c := newTestChunker(t, 100, 10)
	text := strings.Repeat("a", 250)

	chunks := c.Split(text)
	assertCovers(t, text, chunks, 100)

	require.Len(t, chunks, 3)
	assert.Equal(t, 100, chunks[0].End)
	assert.Equal(t, 90, chunks[1].Start)
	assert.Equal(t, 190, chunks[1].End)
	assert.Equal(t, 180, chunks[2].Start)
}

func TestSplit_PrefersParagraphBreak(t *testing.T) {
	c := newTestChunker(t, 100, 10)
	text := strings.Repeat("a", 85) + "\n" + strings.Repeat("b", 20) + ". " + strings.Repeat("c", 100)

	chunks := c.Split(text)
	assertCovers(t, text, chunks, 100)

	assert.Equal(t, 86, chunks[0].End)
	assert.True(t, strings.HasSuffix(chunks[0].Content, "\n"))
}

func TestSplit_FallsBackToSentenceBreak(t *testing.T) {
	c := newTestChunker(t, 100, 10)
	// sentence break inside the 20 byte window, no newline anywhere
	text := strings.Repeat("a", 88) + ". " + strings.Repeat("c", 150)

	chunks := c.Split(text)
	assertCovers(t, text, chunks, 100)

	assert.Equal(t, 90, chunks[0].End)
	assert.True(t, strings.HasSuffix(chunks[0].Content, ". "))
}

func TestSplit_IgnoresBreaksOutsideWindow(t *testing.T) {
	c := newTestChunker(t, 100, 10)
	// newline 40 bytes before the naive cut is outside the 30 byte window
	text := strings.Repeat("a", 60) + "\n" + strings.Repeat("b", 150)

	chunks := c.Split(text)
	assertCovers(t, text, chunks, 100)
	assert.Equal(t, 100, chunks[0].End)
}

func TestSplit_BreakNeverStallsCursor(t *testing.T) {
	// break lands right after the cursor; it must be ignored
	c, err := New(Config{ChunkSize: 20, Overlap: 15, ParagraphWindow: 1000, SentenceWindow: 500})
	require.NoError(t, err)

	text := "\n" + strings.Repeat("z", 200)
	chunks := c.Split(text)
	assertCovers(t, text, chunks, 20)
}

func TestSplit_MultiByteText(t *testing.T) {
	c := newTestChunker(t, 100, 10)
	text := strings.Repeat("測試場景登入", 40)

	chunks := c.Split(text)
	assertCovers(t, text, chunks, 100)
}

func TestSplit_TinyChunksOverMultiByte(t *testing.T) {
	c, err := New(Config{ChunkSize: 4, Overlap: 3})
	require.NoError(t, err)

	text := strings.Repeat("界", 10)
	chunks := c.Split(text)
	require.NotEmpty(t, chunks)
	assert.Equal(t, len(text), chunks[len(chunks)-1].End)
	for _, ch := range chunks {
		assert.True(t, utf8.ValidString(ch.Content))
	}
}

func TestSplit_MaxOverlapOverMultiByte(t *testing.T) {
	tests := []struct {
		name string
		size int
		text string
	}{
		{"ascii lead", 6, "a漢漢漢"},
		{"cjk only", 4, strings.Repeat("漢", 12)},
		{"mixed", 7, strings.Repeat("ab漢", 9)},
		{"size one", 1, "x漢y漢z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(Config{ChunkSize: tt.size, Overlap: tt.size - 1})
			require.NoError(t, err)

			var chunks []*types.Chunk
			require.NotPanics(t, func() { chunks = c.Split(tt.text) })
			assertCovers(t, tt.text, chunks, max(tt.size, 3))
		})
	}
}

func TestSplit_RandomMixedText(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	pieces := []string{"a", "b", " ", "\n", ". ", "漢", "字", "界"}

	for i := 0; i < 300; i++ {
		var sb strings.Builder
		for n := rng.IntN(200); n > 0; n-- {
			sb.WriteString(pieces[rng.IntN(len(pieces))])
		}
		text := sb.String()
		if text == "" {
			continue
		}
		size := 1 + rng.IntN(40)
		overlap := rng.IntN(size)

		c, err := New(Config{
			ChunkSize:       size,
			Overlap:         overlap,
			ParagraphWindow: rng.IntN(size + 1),
			SentenceWindow:  rng.IntN(size + 1),
		})
		require.NoError(t, err)

		var chunks []*types.Chunk
		require.NotPanics(t, func() { chunks = c.Split(text) }, "size=%d overlap=%d text=%q", size, overlap, text)
		assertCovers(t, text, chunks, max(size, 3))
		for _, ch := range chunks {
			assert.Equal(t, text[ch.Start:ch.End], ch.Content)
		}
		assert.Equal(t, len(chunks), c.Count(text))
	}
}

func TestSplit_PackageFunction(t *testing.T) {
	text := strings.Repeat("line of text\n", 1000)

	chunks, err := Split(text, 5000)
	require.NoError(t, err)
	assertCovers(t, text, chunks, 5000)

	_, err = Split(text, 500)
	assert.ErrorIs(t, err, ErrInvalidOverlap)
}

func TestChunk_Index(t *testing.T) {
	c := newTestChunker(t, 100, 10)
	text := strings.Repeat("a", 250)

	ch, err := c.Chunk(text, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, ch.Index)
	assert.Equal(t, 3, c.Count(text))

	for _, idx := range []int{-1, 3, 100} {
		_, err := c.Chunk(text, idx)
		var idxErr *types.InvalidChunkIndexError
		require.True(t, errors.As(err, &idxErr))
		assert.Equal(t, 3, idxErr.Total)
		assert.Equal(t, idx, idxErr.Index)
	}
}
