package mindmap

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/dshills/mindmup-mcp/internal/extractor"
	"github.com/dshills/mindmup-mcp/internal/fetcher"
	"github.com/dshills/mindmup-mcp/internal/parser"
	"github.com/dshills/mindmup-mcp/internal/remote"
	"github.com/dshills/mindmup-mcp/internal/searcher"
	"github.com/dshills/mindmup-mcp/internal/strategy"
	"github.com/dshills/mindmup-mcp/pkg/types"
)

// DefaultPreviewLength is the number of runes of text shown per document in summaries
const DefaultPreviewLength = 500

// ErrNodeNotFound is returned when a node id does not exist in a document
var ErrNodeNotFound = errors.New("node not found")

// Config tunes the service
type Config struct {
	Limits        extractor.Limits
	Scoring       extractor.ScoringTable
	MaxScenarios  int
	PreviewLength int
}

// Service answers document questions: fetch -> parse -> extract or deliver
type Service struct {
	store    remote.Store
	fetcher  *fetcher.Fetcher
	parser   *parser.Parser
	selector *strategy.Selector
	cfg      Config
	logger   *zap.Logger
}

// New creates a Service
func New(store remote.Store, f *fetcher.Fetcher, p *parser.Parser, sel *strategy.Selector, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(cfg.Scoring.Terms) == 0 {
		cfg.Scoring = extractor.DefaultScoringTable()
	}
	if cfg.MaxScenarios <= 0 {
		cfg.MaxScenarios = extractor.DefaultMaxScenarios
	}
	if cfg.PreviewLength <= 0 {
		cfg.PreviewLength = DefaultPreviewLength
	}
	return &Service{
		store:    store,
		fetcher:  f,
		parser:   p,
		selector: sel,
		cfg:      cfg,
		logger:   logger,
	}
}

// Fetcher returns the fetcher backing the service
func (s *Service) Fetcher() *fetcher.Fetcher {
	return s.fetcher
}

// Selector returns the content strategy selector
func (s *Service) Selector() *strategy.Selector {
	return s.selector
}

// loaded is a parsed document with the payload it came from
type loaded struct {
	payload *types.Payload
	doc     *types.Document
}

// load fetches and parses ref. A ref that is not a file id is resolved by
// name. A payload that fails to parse is dropped from the cache.
func (s *Service) load(ctx context.Context, ref string) (*loaded, error) {
	payload, err := s.fetcher.Fetch(ctx, ref)
	if errors.Is(err, types.ErrNotFound) {
		id, rerr := s.resolveName(ctx, ref)
		if rerr != nil {
			return nil, err
		}
		s.logger.Debug("resolved document by name", zap.String("ref", ref), zap.String("file_id", id))
		payload, err = s.fetcher.Fetch(ctx, id)
	}
	if err != nil {
		return nil, err
	}

	doc, err := s.parser.Parse([]byte(payload.Content))
	if err != nil {
		s.fetcher.Invalidate(payload.FileID)
		s.logger.Warn("document failed to parse",
			zap.String("file_id", payload.FileID),
			zap.Error(err))
		return nil, err
	}
	if !payload.ModifiedTime.IsZero() {
		doc.ModifiedAt = payload.ModifiedTime
	}
	return &loaded{payload: payload, doc: doc}, nil
}

// Resolve returns the file id for ref, which is either a file id or a
// fragment of a MindMup file name. Names resolve to the newest match.
func (s *Service) Resolve(ctx context.Context, ref string) (string, error) {
	_, err := s.store.Metadata(ctx, ref)
	if err == nil {
		return ref, nil
	}
	if !errors.Is(err, types.ErrNotFound) {
		return "", &types.FetchError{FileID: ref, Err: err}
	}
	return s.resolveName(ctx, ref)
}

func (s *Service) resolveName(ctx context.Context, name string) (string, error) {
	files, err := s.Find(ctx, FindOptions{NameContains: name, MaxResults: 1})
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "", &types.FetchError{FileID: name, Err: fmt.Errorf("no mindmap matches %q: %w", name, types.ErrNotFound)}
	}
	return files[0].ID, nil
}

// Delivery is a sized document envelope with its file identity
type Delivery struct {
	FileID   string `json:"file_id"`
	FileName string `json:"file_name"`
	*strategy.Envelope
}

// Content delivers ref at the tier its size allows
func (s *Service) Content(ctx context.Context, ref string) (*Delivery, error) {
	l, err := s.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	env, err := s.selector.Deliver(l.doc)
	if err != nil {
		return nil, err
	}
	return &Delivery{FileID: l.payload.FileID, FileName: l.payload.Name, Envelope: env}, nil
}

// ChunkDelivery is one chunk, or keyword matches, of a document
type ChunkDelivery struct {
	FileID string `json:"file_id"`
	*strategy.ChunkResult
}

// Chunk returns one chunk of ref's flattened text
func (s *Service) Chunk(ctx context.Context, ref string, req strategy.ChunkRequest) (*ChunkDelivery, error) {
	l, err := s.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	res, err := s.selector.Chunk(l.doc, req)
	if err != nil {
		return nil, err
	}
	return &ChunkDelivery{FileID: l.payload.FileID, ChunkResult: res}, nil
}

// SearchResult is a keyword search over one document
type SearchResult struct {
	FileID       string `json:"file_id"`
	MindmapTitle string `json:"mindmap_title"`
	*searcher.Result
}

// Search finds nodes in ref whose title contains the keyword
func (s *Service) Search(ctx context.Context, ref string, opts searcher.Options) (*SearchResult, error) {
	if opts.Keyword == "" {
		return nil, searcher.ErrEmptyKeyword
	}
	l, err := s.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	res, err := searcher.Search(l.doc.Root, opts)
	if err != nil {
		return nil, err
	}
	return &SearchResult{FileID: l.payload.FileID, MindmapTitle: l.doc.Title, Result: res}, nil
}

// NodeResult is a node with its surroundings
type NodeResult struct {
	FileID       string `json:"file_id"`
	MindmapTitle string `json:"mindmap_title"`
	*extractor.NodeContext
}

// Node returns the node with nodeID and its parent, children and optionally siblings
func (s *Service) Node(ctx context.Context, ref, nodeID string, includeSiblings bool) (*NodeResult, error) {
	l, err := s.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	nc, ok := extractor.FindContext(l.doc.Root, nodeID, includeSiblings)
	if !ok {
		return nil, fmt.Errorf("%w: %q in %s", ErrNodeNotFound, nodeID, l.payload.FileID)
	}
	return &NodeResult{FileID: l.payload.FileID, MindmapTitle: l.doc.Title, NodeContext: nc}, nil
}

// OverviewResult is the bounded structure of a document
type OverviewResult struct {
	FileID   string `json:"file_id"`
	FileName string `json:"file_name"`
	*extractor.Overview
}

// Overview returns a bounded hierarchy and key sections regardless of size
func (s *Service) Overview(ctx context.Context, ref string) (*OverviewResult, error) {
	l, err := s.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	return &OverviewResult{
		FileID:   l.payload.FileID,
		FileName: l.payload.Name,
		Overview: extractor.BuildOverview(l.doc, s.cfg.Limits),
	}, nil
}

// ScenarioResult lists proposed test scenarios for a document
type ScenarioResult struct {
	FileID       string               `json:"file_id"`
	MindmapTitle string               `json:"mindmap_title"`
	Total        int                  `json:"total_scenarios"`
	Scenarios    []extractor.Scenario `json:"scenarios"`
}

// Scenarios extracts up to maxCases test scenarios; zero uses the configured default
func (s *Service) Scenarios(ctx context.Context, ref string, maxCases int) (*ScenarioResult, error) {
	l, err := s.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	if maxCases <= 0 {
		maxCases = s.cfg.MaxScenarios
	}
	scenarios := extractor.ExtractScenarios(l.doc.Root, maxCases, s.cfg.Scoring)
	if scenarios == nil {
		scenarios = []extractor.Scenario{}
	}
	return &ScenarioResult{
		FileID:       l.payload.FileID,
		MindmapTitle: l.doc.Title,
		Total:        len(scenarios),
		Scenarios:    scenarios,
	}, nil
}

// DocumentSummary is a short description of one document
type DocumentSummary struct {
	FileID         string     `json:"file_id"`
	FileName       string     `json:"file_name"`
	FileURL        string     `json:"file_url,omitempty"`
	LastModified   string     `json:"last_modified,omitempty"`
	Title          string     `json:"title"`
	NodeCount      int        `json:"node_count"`
	MaxDepth       int        `json:"max_depth"`
	OriginalLength int        `json:"original_length"`
	ContentType    types.Tier `json:"content_type"`
	Preview        string     `json:"preview"`
}

// FailedDocument is a document that could not be summarized
type FailedDocument struct {
	FileID   string `json:"file_id"`
	FileName string `json:"file_name"`
	Error    string `json:"error"`
}

// SummaryResult is the outcome of summarizing many documents
type SummaryResult struct {
	Results []DocumentSummary `json:"results"`
	Failed  []FailedDocument  `json:"failed,omitempty"`
	Count   int               `json:"count"`
}

// Summaries finds documents and summarizes each one. Per-document failures
// are reported alongside the successes.
func (s *Service) Summaries(ctx context.Context, opts FindOptions) (*SummaryResult, error) {
	files, err := s.Find(ctx, opts)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(files))
	for i, f := range files {
		ids[i] = f.ID
	}
	fetched, err := s.fetcher.FetchMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := &SummaryResult{Results: make([]DocumentSummary, 0, len(files))}
	for i, r := range fetched {
		file := files[i]
		if r.Err != nil {
			out.Failed = append(out.Failed, FailedDocument{FileID: file.ID, FileName: file.Name, Error: r.Err.Error()})
			continue
		}
		doc, err := s.parser.Parse([]byte(r.Payload.Content))
		if err != nil {
			s.fetcher.Invalidate(file.ID)
			out.Failed = append(out.Failed, FailedDocument{FileID: file.ID, FileName: file.Name, Error: err.Error()})
			continue
		}

		text := doc.FlatText()
		summary := DocumentSummary{
			FileID:         file.ID,
			FileName:       file.Name,
			FileURL:        file.WebViewLink,
			Title:          doc.Title,
			NodeCount:      doc.NodeCount(),
			MaxDepth:       doc.MaxDepth(),
			OriginalLength: len(text),
			ContentType:    s.selector.Tier(len(text)),
			Preview:        preview(text, s.cfg.PreviewLength),
		}
		if !file.ModifiedTime.IsZero() {
			summary.LastModified = file.ModifiedTime.Format(time.RFC3339)
		}
		out.Results = append(out.Results, summary)
	}
	out.Count = len(out.Results)
	return out, nil
}

// preview returns the first n runes of text, marking a cut with "..."
func preview(text string, n int) string {
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	i := 0
	for pos := range text {
		if i == n {
			return text[:pos] + "..."
		}
		i++
	}
	return text
}
