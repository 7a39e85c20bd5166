package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/dshills/mindmup-mcp/internal/logger"
	"github.com/dshills/mindmup-mcp/internal/metrics"
	"github.com/dshills/mindmup-mcp/internal/mindmap"
	"github.com/dshills/mindmup-mcp/internal/searcher"
	"github.com/dshills/mindmup-mcp/internal/strategy"
	"github.com/dshills/mindmup-mcp/pkg/types"
)

// Error codes carried in the "code" field of failure payloads
const (
	CodeFetchError        = "fetch_error"
	CodeParseError        = "parse_error"
	CodeInvalidChunkIndex = "invalid_chunk_index"
	CodeEmptyContent      = "empty_content"
	CodeInvalidParams     = "invalid_params"
	CodeNotFound          = "not_found"
	CodeInternalError     = "internal_error"
)

// ParamError reports a missing or malformed tool argument
type ParamError struct {
	Param  string
	Reason string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("invalid parameter %s: %s", e.Param, e.Reason)
}

// toolFunc is a tool body: it receives decoded arguments and returns a value to encode
type toolFunc func(ctx context.Context, args map[string]interface{}) (interface{}, error)

// tool adapts fn into an MCP handler. Each call gets a request-scoped logger,
// metrics, and failures converted into a structured error payload.
func (s *Server) tool(name string, fn toolFunc) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		ctx, log := logger.WithRequest(ctx, s.logger, zap.String("tool", name))

		var (
			result interface{}
			err    error
		)
		switch args := request.Params.Arguments.(type) {
		case nil:
			result, err = fn(ctx, map[string]interface{}{})
		case map[string]interface{}:
			result, err = fn(ctx, args)
		default:
			err = &ParamError{Param: "arguments", Reason: "must be an object"}
		}

		elapsed := time.Since(start)
		metrics.ToolCallDuration.WithLabelValues(name).Observe(elapsed.Seconds())

		if err != nil {
			payload := errorPayload(err)
			code := payload["code"].(string)
			metrics.ToolCallsTotal.WithLabelValues(name, code).Inc()
			log.Warn("tool call failed",
				zap.String("code", code),
				zap.Duration("duration", elapsed),
				zap.Error(err))
			return mcp.NewToolResultError(formatJSON(payload)), nil
		}

		metrics.ToolCallsTotal.WithLabelValues(name, "ok").Inc()
		log.Debug("tool call completed", zap.Duration("duration", elapsed))
		return mcp.NewToolResultText(formatJSON(result)), nil
	}
}

// errorPayload classifies err into the {error, code} payload returned to clients
func errorPayload(err error) map[string]interface{} {
	payload := map[string]interface{}{"error": err.Error()}

	var (
		paramErr *ParamError
		chunkErr *types.InvalidChunkIndexError
		emptyErr *types.EmptyContentError
		parseErr *types.ParseError
		fetchErr *types.FetchError
	)
	switch {
	case errors.As(err, &paramErr):
		payload["code"] = CodeInvalidParams
		payload["param"] = paramErr.Param
	case errors.Is(err, searcher.ErrEmptyKeyword), errors.Is(err, strategy.ErrKeywordRequired):
		payload["code"] = CodeInvalidParams
		payload["param"] = "keyword"
	case errors.As(err, &chunkErr):
		payload["code"] = CodeInvalidChunkIndex
		payload["requested_index"] = chunkErr.Index
		payload["total_chunks"] = chunkErr.Total
	case errors.As(err, &emptyErr):
		payload["code"] = CodeEmptyContent
		payload["file_id"] = emptyErr.FileID
	case errors.As(err, &parseErr):
		payload["code"] = CodeParseError
		if parseErr.Offset > 0 {
			payload["offset"] = parseErr.Offset
		}
	case errors.As(err, &fetchErr):
		payload["code"] = CodeFetchError
		payload["file_id"] = fetchErr.FileID
		payload["reason"] = fetchReason(fetchErr)
	case errors.Is(err, mindmap.ErrNodeNotFound), errors.Is(err, types.ErrNotFound):
		payload["code"] = CodeNotFound
	default:
		payload["code"] = CodeInternalError
	}
	return payload
}

func fetchReason(err error) string {
	switch {
	case errors.Is(err, types.ErrNotFound):
		return "not_found"
	case errors.Is(err, types.ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, types.ErrTooLarge):
		return "too_large"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, types.ErrTransient):
		return "transient"
	default:
		return "error"
	}
}

// handleListMindmaps handles the list_mindmaps tool invocation
func (s *Server) handleListMindmaps(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	maxResults, err := intInRange(args, "max_results", mindmap.DefaultFindResults, 1, 1000)
	if err != nil {
		return nil, err
	}
	opts := mindmap.FindOptions{
		FolderID:     getStringDefault(args, "folder_id", ""),
		NameContains: getStringDefault(args, "name_contains", ""),
		MaxResults:   maxResults,
	}

	files, err := s.service.Find(ctx, opts)
	if err != nil {
		return nil, err
	}

	response := map[string]interface{}{
		"files": files,
		"count": len(files),
	}
	if opts.FolderID != "" {
		response["folder_id"] = opts.FolderID
	}
	if opts.NameContains != "" {
		response["name_contains"] = opts.NameContains
	}
	return response, nil
}

// handleListFolders handles the list_folders tool invocation
func (s *Server) handleListFolders(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	maxResults, err := intInRange(args, "max_results", 100, 1, 1000)
	if err != nil {
		return nil, err
	}
	folders, err := s.service.ListFolders(ctx, maxResults)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"folders": folders,
		"count":   len(folders),
	}, nil
}

// handleGetContent handles the get_mindmap_content tool invocation
func (s *Server) handleGetContent(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	ref, err := requireString(args, "file_id")
	if err != nil {
		return nil, err
	}
	return s.service.Content(ctx, ref)
}

// handleGetChunk handles the get_mindmap_chunk tool invocation
func (s *Server) handleGetChunk(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	ref, err := requireString(args, "file_id")
	if err != nil {
		return nil, err
	}
	index, err := requireInt(args, "chunk_index")
	if err != nil {
		return nil, err
	}
	if index < strategy.KeywordOnlyIndex {
		return nil, &ParamError{Param: "chunk_index", Reason: "must be -1 or a chunk index"}
	}

	return s.service.Chunk(ctx, ref, strategy.ChunkRequest{
		Index:         index,
		Keyword:       getStringDefault(args, "keyword", ""),
		CaseSensitive: getBoolDefault(args, "case_sensitive", false),
		MaxResults:    s.opts.SearchMaxResults,
	})
}

// handleSearchContent handles the search_mindmap_content tool invocation
func (s *Server) handleSearchContent(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	ref, err := requireString(args, "file_id")
	if err != nil {
		return nil, err
	}
	keyword, err := requireString(args, "keyword")
	if err != nil {
		return nil, err
	}
	maxResults, err := intInRange(args, "max_results", s.opts.SearchMaxResults, 1, 500)
	if err != nil {
		return nil, err
	}

	return s.service.Search(ctx, ref, searcher.Options{
		Keyword:       keyword,
		CaseSensitive: getBoolDefault(args, "case_sensitive", false),
		MaxResults:    maxResults,
	})
}

// handleGetNode handles the get_mindmap_node tool invocation
func (s *Server) handleGetNode(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	ref, err := requireString(args, "file_id")
	if err != nil {
		return nil, err
	}
	nodeID, err := requireString(args, "node_id")
	if err != nil {
		return nil, err
	}
	return s.service.Node(ctx, ref, nodeID, getBoolDefault(args, "include_siblings", false))
}

// handleGetOverview handles the get_mindmap_overview tool invocation
func (s *Server) handleGetOverview(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	ref, err := requireString(args, "file_id")
	if err != nil {
		return nil, err
	}
	return s.service.Overview(ctx, ref)
}

// handleExtractScenarios handles the extract_test_scenarios tool invocation
func (s *Server) handleExtractScenarios(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	ref, err := requireString(args, "file_id")
	if err != nil {
		return nil, err
	}
	maxCases, err := intInRange(args, "max_cases", 0, 1, 200)
	if err != nil {
		return nil, err
	}
	return s.service.Scenarios(ctx, ref, maxCases)
}

// handleSearchAndParse handles the search_and_parse_mindmaps tool invocation
func (s *Server) handleSearchAndParse(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	maxResults, err := intInRange(args, "max_results", 10, 1, 50)
	if err != nil {
		return nil, err
	}
	return s.service.Summaries(ctx, mindmap.FindOptions{
		FolderID:     getStringDefault(args, "folder_id", ""),
		NameContains: getStringDefault(args, "name_contains", ""),
		MaxResults:   maxResults,
	})
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
	thresholds := s.service.Selector().Thresholds()

	store := map[string]interface{}{"driver": s.opts.StoreDriver}
	if s.opts.StoreStatus != nil {
		for k, v := range s.opts.StoreStatus(ctx) {
			store[k] = v
		}
	}

	return map[string]interface{}{
		"server": map[string]interface{}{
			"name":           ServerName,
			"version":        ServerVersion,
			"started_at":     s.started.UTC().Format(time.RFC3339),
			"uptime_seconds": int64(time.Since(s.started).Seconds()),
		},
		"store": store,
		"cache": map[string]interface{}{
			"entries":     s.cache.Len(),
			"capacity":    s.cache.Capacity(),
			"ttl_seconds": int64(s.cache.TTL().Seconds()),
		},
		"fetcher": s.service.Fetcher().Stats(),
		"thresholds": map[string]interface{}{
			"full_limit":      thresholds.FullLimit,
			"chunk_threshold": thresholds.ChunkThreshold,
			"hard_ceiling":    thresholds.HardCeiling,
		},
	}, nil
}

// Helper functions

func formatJSON(data interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

func requireString(args map[string]interface{}, key string) (string, error) {
	val, ok := args[key].(string)
	if !ok || val == "" {
		return "", &ParamError{Param: key, Reason: "missing or empty"}
	}
	return val, nil
}

func requireInt(args map[string]interface{}, key string) (int, error) {
	switch val := args[key].(type) {
	case float64:
		if val != float64(int(val)) {
			return 0, &ParamError{Param: key, Reason: "must be an integer"}
		}
		return int(val), nil
	case int:
		return val, nil
	case nil:
		return 0, &ParamError{Param: key, Reason: "missing"}
	default:
		return 0, &ParamError{Param: key, Reason: "must be an integer"}
	}
}

// intInRange reads an optional integer, rejecting values outside [lo, hi]
func intInRange(args map[string]interface{}, key string, defaultValue, lo, hi int) (int, error) {
	if _, present := args[key]; !present {
		return defaultValue, nil
	}
	val := getIntDefault(args, key, lo-1)
	if val < lo || val > hi {
		return 0, &ParamError{Param: key, Reason: fmt.Sprintf("must be between %d and %d", lo, hi)}
	}
	return val, nil
}
