package strategy

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/mindmup-mcp/internal/chunker"
	"github.com/dshills/mindmup-mcp/internal/extractor"
	"github.com/dshills/mindmup-mcp/internal/metrics"
	"github.com/dshills/mindmup-mcp/internal/searcher"
	"github.com/dshills/mindmup-mcp/pkg/types"
)

const (
	// DefaultChunkThreshold is the flattened length above which content is chunked
	DefaultChunkThreshold = 800000

	// DefaultFullLimit is the largest flattened text delivered whole, in bytes.
	// It equals the chunk threshold, so the structured band is empty unless
	// configured.
	DefaultFullLimit = DefaultChunkThreshold

	// DefaultHardCeiling is the largest response a consumer accepts, in bytes
	DefaultHardCeiling = 1048576

	// KeywordOnlyIndex requests keyword matches instead of a chunk
	KeywordOnlyIndex = -1
)

var (
	ErrInvalidThresholds = errors.New("thresholds must be positive with full limit <= chunk threshold")
	ErrChunkTooLarge     = errors.New("chunk size must be smaller than the hard ceiling")
	ErrKeywordRequired   = errors.New("keyword is required when chunk index is -1")
)

// Thresholds select the delivery tier from the flattened text length L:
// Full when L <= FullLimit, Structured when FullLimit < L <= ChunkThreshold
// and Chunked when L > ChunkThreshold.
type Thresholds struct {
	FullLimit      int
	ChunkThreshold int
	HardCeiling    int
}

// DefaultThresholds returns the standard tier thresholds
func DefaultThresholds() Thresholds {
	return Thresholds{
		FullLimit:      DefaultFullLimit,
		ChunkThreshold: DefaultChunkThreshold,
		HardCeiling:    DefaultHardCeiling,
	}
}

// Validate checks the ordering of the thresholds
func (t Thresholds) Validate() error {
	if t.FullLimit <= 0 || t.ChunkThreshold <= 0 || t.HardCeiling <= 0 || t.FullLimit > t.ChunkThreshold {
		return fmt.Errorf("%w (full %d, chunk %d, ceiling %d)", ErrInvalidThresholds, t.FullLimit, t.ChunkThreshold, t.HardCeiling)
	}
	return nil
}

// Selector chooses and builds the delivery envelope for a document
type Selector struct {
	thresholds Thresholds
	chunker    *chunker.Chunker
	limits     extractor.Limits
	logger     *zap.Logger
}

// New creates a Selector. The chunk size must leave room under the hard
// ceiling for the chunk response wrapper.
func New(thresholds Thresholds, ch *chunker.Chunker, limits extractor.Limits, logger *zap.Logger) (*Selector, error) {
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}
	if ch == nil {
		return nil, errors.New("chunker is required")
	}
	if ch.Config().ChunkSize >= thresholds.HardCeiling {
		return nil, fmt.Errorf("%w (chunk size %d, ceiling %d)", ErrChunkTooLarge, ch.Config().ChunkSize, thresholds.HardCeiling)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Selector{
		thresholds: thresholds,
		chunker:    ch,
		limits:     limits,
		logger:     logger,
	}, nil
}

// Thresholds returns the thresholds in use
func (s *Selector) Thresholds() Thresholds {
	return s.thresholds
}

// Tier maps a flattened text length to a delivery tier
func (s *Selector) Tier(length int) types.Tier {
	switch {
	case length > s.thresholds.ChunkThreshold:
		return types.TierChunked
	case length > s.thresholds.FullLimit:
		return types.TierStructured
	default:
		return types.TierFull
	}
}

// ChunkMeta locates one chunk without its content
type ChunkMeta struct {
	Index int `json:"chunk_index"`
	Start int `json:"start_position"`
	End   int `json:"end_position"`
	Size  int `json:"size"`
}

// Envelope is the response shape for a delivered document
type Envelope struct {
	ContentType    types.Tier `json:"content_type"`
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	VersionTag     string     `json:"version_tag"`
	NodeCount      int        `json:"node_count"`
	MaxDepth       int        `json:"max_depth"`
	OriginalLength int        `json:"original_length"`
	CreatedAt      time.Time  `json:"created_at"`
	ModifiedAt     time.Time  `json:"modified_at"`

	// Full tier
	Root    *types.Node `json:"root_node,omitempty"`
	AllText string      `json:"all_text,omitempty"`

	// Structured and chunked tiers
	Overview *extractor.Overview `json:"structured_overview,omitempty"`

	// Chunked tier
	TotalChunks int         `json:"total_chunks,omitempty"`
	ChunkSize   int         `json:"chunk_size,omitempty"`
	Chunks      []ChunkMeta `json:"chunks,omitempty"`
	NextStep    string      `json:"next_step,omitempty"`

	// Downgraded is set when a full envelope would exceed the hard ceiling
	Downgraded bool `json:"downgraded,omitempty"`
}

// Deliver sizes doc for the consumer and builds the matching envelope
func (s *Selector) Deliver(doc *types.Document) (*Envelope, error) {
	text := doc.FlatText()
	tier := s.Tier(len(text))

	env := s.base(doc, len(text))
	switch tier {
	case types.TierFull:
		env.ContentType = types.TierFull
		env.Root = doc.Root
		env.AllText = text

		size, err := encodedSize(env)
		if err != nil {
			return nil, err
		}
		if size > s.thresholds.HardCeiling {
			s.logger.Info("full envelope exceeds ceiling, delivering structured overview",
				zap.String("document", doc.ID),
				zap.Int("encoded_bytes", size),
				zap.Int("ceiling", s.thresholds.HardCeiling))
			env = s.structured(doc, len(text))
			env.Downgraded = true
			tier = types.TierStructured
		}

	case types.TierStructured:
		env = s.structured(doc, len(text))

	case types.TierChunked:
		env = s.structured(doc, len(text))
		env.ContentType = types.TierChunked

		chunks := s.chunker.Split(text)
		env.TotalChunks = len(chunks)
		env.ChunkSize = s.chunker.Config().ChunkSize
		env.Chunks = make([]ChunkMeta, 0, len(chunks))
		for _, ch := range chunks {
			env.Chunks = append(env.Chunks, ChunkMeta{Index: ch.Index, Start: ch.Start, End: ch.End, Size: ch.Size()})
		}
		env.NextStep = fmt.Sprintf(
			"Content is split into %d chunks. Call get_mindmap_chunk with chunk_index 0 to %d, or chunk_index -1 with a keyword to locate matches.",
			len(chunks), len(chunks)-1)
	}

	metrics.TierSelectionsTotal.WithLabelValues(string(tier)).Inc()
	return env, nil
}

func (s *Selector) base(doc *types.Document, length int) *Envelope {
	return &Envelope{
		ID:             doc.ID,
		Title:          doc.Title,
		VersionTag:     doc.VersionTag,
		NodeCount:      doc.NodeCount(),
		MaxDepth:       doc.MaxDepth(),
		OriginalLength: length,
		CreatedAt:      doc.CreatedAt,
		ModifiedAt:     doc.ModifiedAt,
	}
}

func (s *Selector) structured(doc *types.Document, length int) *Envelope {
	env := s.base(doc, length)
	env.ContentType = types.TierStructured
	env.Overview = extractor.BuildOverview(doc, s.limits)
	return env
}

// ChunkResult is the response to a chunk request
type ChunkResult struct {
	Mode        string `json:"mode"`
	ID          string `json:"id"`
	Title       string `json:"title"`
	TotalChunks int    `json:"total_chunks"`

	Chunk *types.Chunk `json:"chunk,omitempty"`

	Keyword        string           `json:"keyword,omitempty"`
	KeywordInChunk *bool            `json:"keyword_in_chunk,omitempty"`
	MatchingChunks []int            `json:"matching_chunks,omitempty"`
	Matches        *searcher.Result `json:"matches,omitempty"`
}

const (
	ModeChunk         = "chunk"
	ModeKeywordSearch = "keyword_search"
)

// ChunkRequest selects a chunk or, with KeywordOnlyIndex, keyword matches
type ChunkRequest struct {
	Index         int
	Keyword       string
	CaseSensitive bool
	MaxResults    int
}

// Chunk recomputes the split of doc's flattened text and answers req.
// Indices outside [0, total) other than KeywordOnlyIndex yield an
// *types.InvalidChunkIndexError carrying the total.
func (s *Selector) Chunk(doc *types.Document, req ChunkRequest) (*ChunkResult, error) {
	chunks := s.chunker.Split(doc.FlatText())
	res := &ChunkResult{
		ID:          doc.ID,
		Title:       doc.Title,
		TotalChunks: len(chunks),
		Keyword:     req.Keyword,
	}

	if req.Index == KeywordOnlyIndex {
		if req.Keyword == "" {
			return nil, ErrKeywordRequired
		}
		matches, err := searcher.Search(doc.Root, searcher.Options{
			Keyword:       req.Keyword,
			CaseSensitive: req.CaseSensitive,
			MaxResults:    req.MaxResults,
		})
		if err != nil {
			return nil, err
		}
		res.Mode = ModeKeywordSearch
		res.Matches = matches
		res.MatchingChunks = make([]int, 0)
		for _, ch := range chunks {
			if searcher.Contains(ch.Content, req.Keyword, req.CaseSensitive) {
				res.MatchingChunks = append(res.MatchingChunks, ch.Index)
			}
		}
		return res, nil
	}

	if req.Index < 0 || req.Index >= len(chunks) {
		return nil, &types.InvalidChunkIndexError{Index: req.Index, Total: len(chunks)}
	}

	res.Mode = ModeChunk
	res.Chunk = chunks[req.Index]
	if req.Keyword != "" {
		found := searcher.Contains(res.Chunk.Content, req.Keyword, req.CaseSensitive)
		res.KeywordInChunk = &found
	}
	return res, nil
}

func encodedSize(v any) (int, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return 0, fmt.Errorf("failed to encode envelope: %w", err)
	}
	return len(data), nil
}
