package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/mindmup-mcp/internal/cache"
	"github.com/dshills/mindmup-mcp/internal/chunker"
	"github.com/dshills/mindmup-mcp/internal/extractor"
	"github.com/dshills/mindmup-mcp/internal/fetcher"
	"github.com/dshills/mindmup-mcp/internal/mindmap"
	"github.com/dshills/mindmup-mcp/internal/parser"
	"github.com/dshills/mindmup-mcp/internal/remote"
	"github.com/dshills/mindmup-mcp/internal/storage"
	"github.com/dshills/mindmup-mcp/internal/strategy"
	"github.com/dshills/mindmup-mcp/pkg/types"
)

const releaseMap = `{
	"title": "Release",
	"id": "r",
	"ideas": {
		"1": {"id": "login", "title": "Login", "ideas": {
			"1": {"id": "pw", "title": "Verify password reset"},
			"2": {"id": "lock", "title": "Account lockout"}
		}},
		"2": {"id": "pay", "title": "Payment"}
	}
}`

type testServer struct {
	*Server
	store *storage.SQLiteStorage
}

func newTestServer(t *testing.T, th strategy.Thresholds) *testServer {
	t.Helper()
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	c, err := cache.New[*types.Payload](time.Minute, 10)
	require.NoError(t, err)
	ch, err := chunker.New(chunker.Config{ChunkSize: 100, Overlap: 10})
	require.NoError(t, err)
	sel, err := strategy.New(th, ch, extractor.DefaultLimits(), nil)
	require.NoError(t, err)

	f := fetcher.New(store, c, fetcher.Config{Workers: 2}, nil)
	svc := mindmap.New(store, f, parser.New(), sel, mindmap.Config{}, nil)

	s := NewServer(svc, c, Options{
		StoreDriver: "sqlite",
		StoreStatus: func(ctx context.Context) map[string]interface{} {
			n, err := store.CountDocuments(ctx)
			if err != nil {
				return map[string]interface{}{"error": err.Error()}
			}
			return map[string]interface{}{"documents": n}
		},
	}, nil)
	return &testServer{Server: s, store: store}
}

func (ts *testServer) put(t *testing.T, id, name, content string) {
	t.Helper()
	_, err := ts.store.UpsertDocument(context.Background(), &storage.Document{
		ID:         id,
		Name:       name,
		MimeType:   remote.MimeMindmup,
		Content:    []byte(content),
		ModifiedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
}

// call invokes the named tool and decodes its JSON text
func (ts *testServer) call(t *testing.T, name string, args map[string]interface{}) (map[string]interface{}, bool) {
	t.Helper()
	handlers := map[string]toolFunc{
		"list_mindmaps":             ts.handleListMindmaps,
		"list_folders":              ts.handleListFolders,
		"get_mindmap_content":       ts.handleGetContent,
		"get_mindmap_chunk":         ts.handleGetChunk,
		"search_mindmap_content":    ts.handleSearchContent,
		"get_mindmap_node":          ts.handleGetNode,
		"get_mindmap_overview":      ts.handleGetOverview,
		"extract_test_scenarios":    ts.handleExtractScenarios,
		"search_and_parse_mindmaps": ts.handleSearchAndParse,
		"get_status":                ts.handleGetStatus,
	}
	fn, ok := handlers[name]
	require.True(t, ok, "unknown tool %s", name)

	var request mcp.CallToolRequest
	request.Params.Name = name
	if args != nil {
		request.Params.Arguments = args
	}
	result, err := ts.tool(name, fn)(context.Background(), request)
	require.NoError(t, err)
	require.NotNil(t, result)
	return decodeResult(t, result), result.IsError
}

func decodeResult(t *testing.T, result *mcp.CallToolResult) map[string]interface{} {
	t.Helper()
	require.Len(t, result.Content, 1)
	var text string
	switch c := result.Content[0].(type) {
	case mcp.TextContent:
		text = c.Text
	case *mcp.TextContent:
		text = c.Text
	default:
		t.Fatalf("unexpected content type %T", c)
	}
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text), &out), text)
	return out
}

func TestNewServer(t *testing.T) {
	ts := newTestServer(t, strategy.DefaultThresholds())
	assert.NotNil(t, ts.MCPServer())
	assert.True(t, ts.Ready())
	assert.Equal(t, 0, ts.CacheEntries())
}

func TestGetMindmapContent(t *testing.T) {
	ts := newTestServer(t, strategy.DefaultThresholds())
	ts.put(t, "rel", "release.mup", releaseMap)

	out, isErr := ts.call(t, "get_mindmap_content", map[string]interface{}{"file_id": "rel"})
	require.False(t, isErr, out)
	assert.Equal(t, "full", out["content_type"])
	assert.Equal(t, "rel", out["file_id"])
	assert.Equal(t, "release.mup", out["file_name"])
	assert.Equal(t, float64(5), out["node_count"])
	assert.Contains(t, out["all_text"], "Account lockout")
	assert.Equal(t, 1, ts.CacheEntries())

	t.Run("by name", func(t *testing.T) {
		out, isErr := ts.call(t, "get_mindmap_content", map[string]interface{}{"file_id": "release"})
		require.False(t, isErr, out)
		assert.Equal(t, "rel", out["file_id"])
	})

	t.Run("missing file_id", func(t *testing.T) {
		out, isErr := ts.call(t, "get_mindmap_content", nil)
		assert.True(t, isErr)
		assert.Equal(t, CodeInvalidParams, out["code"])
		assert.Equal(t, "file_id", out["param"])
	})

	t.Run("unknown file", func(t *testing.T) {
		out, isErr := ts.call(t, "get_mindmap_content", map[string]interface{}{"file_id": "nothing-like-this"})
		assert.True(t, isErr)
		assert.Equal(t, CodeFetchError, out["code"])
		assert.Equal(t, "not_found", out["reason"])
	})
}

func TestGetMindmapContent_Failures(t *testing.T) {
	ts := newTestServer(t, strategy.DefaultThresholds())
	ts.put(t, "bad", "broken.mup", `{"title": "Broken", "ideas": {"1": {"title": `)
	ts.put(t, "blank", "blank.mup", "   \n ")

	out, isErr := ts.call(t, "get_mindmap_content", map[string]interface{}{"file_id": "bad"})
	assert.True(t, isErr)
	assert.Equal(t, CodeParseError, out["code"])
	assert.Equal(t, 0, ts.CacheEntries(), "malformed documents are not cached")

	out, isErr = ts.call(t, "get_mindmap_content", map[string]interface{}{"file_id": "blank"})
	assert.True(t, isErr)
	assert.Equal(t, CodeEmptyContent, out["code"])
	assert.Equal(t, "blank", out["file_id"])
}

func TestGetMindmapChunk(t *testing.T) {
	ts := newTestServer(t, strategy.Thresholds{FullLimit: 50, ChunkThreshold: 100, HardCeiling: 1 << 20})

	ideas := make([]string, 0, 30)
	for i := 0; i < 30; i++ {
		ideas = append(ideas, fmt.Sprintf(`"%d": {"id": "n%d", "title": "Checkout step %02d"}`, i+1, i, i))
	}
	ts.put(t, "big", "big.mup", `{"title": "Big", "ideas": {`+strings.Join(ideas, ",")+`}}`)

	content, isErr := ts.call(t, "get_mindmap_content", map[string]interface{}{"file_id": "big"})
	require.False(t, isErr, content)
	require.Equal(t, "chunked", content["content_type"])
	total := content["total_chunks"].(float64)
	require.Greater(t, total, float64(1))

	t.Run("chunk", func(t *testing.T) {
		out, isErr := ts.call(t, "get_mindmap_chunk", map[string]interface{}{"file_id": "big", "chunk_index": float64(0), "keyword": "step 00"})
		require.False(t, isErr, out)
		assert.Equal(t, strategy.ModeChunk, out["mode"])
		assert.Equal(t, total, out["total_chunks"])
		assert.Equal(t, true, out["keyword_in_chunk"])
		chunk := out["chunk"].(map[string]interface{})
		assert.Equal(t, float64(0), chunk["start_position"])
	})

	t.Run("out of range", func(t *testing.T) {
		out, isErr := ts.call(t, "get_mindmap_chunk", map[string]interface{}{"file_id": "big", "chunk_index": total})
		assert.True(t, isErr)
		assert.Equal(t, CodeInvalidChunkIndex, out["code"])
		assert.Equal(t, total, out["total_chunks"])
	})

	t.Run("keyword only", func(t *testing.T) {
		out, isErr := ts.call(t, "get_mindmap_chunk", map[string]interface{}{"file_id": "big", "chunk_index": float64(-1), "keyword": "STEP 29"})
		require.False(t, isErr, out)
		assert.Equal(t, strategy.ModeKeywordSearch, out["mode"])
		matches := out["matches"].(map[string]interface{})
		assert.Equal(t, float64(1), matches["total_matches"])
		assert.NotEmpty(t, out["matching_chunks"])
	})

	t.Run("keyword only without keyword", func(t *testing.T) {
		out, isErr := ts.call(t, "get_mindmap_chunk", map[string]interface{}{"file_id": "big", "chunk_index": float64(-1)})
		assert.True(t, isErr)
		assert.Equal(t, CodeInvalidParams, out["code"])
		assert.Equal(t, "keyword", out["param"])
	})

	t.Run("bad index", func(t *testing.T) {
		for _, idx := range []interface{}{nil, "one", 1.5, float64(-2)} {
			args := map[string]interface{}{"file_id": "big"}
			if idx != nil {
				args["chunk_index"] = idx
			}
			out, isErr := ts.call(t, "get_mindmap_chunk", args)
			assert.True(t, isErr, "index %v", idx)
			assert.Equal(t, CodeInvalidParams, out["code"], "index %v", idx)
		}
	})
}

func TestSearchMindmapContent(t *testing.T) {
	ts := newTestServer(t, strategy.DefaultThresholds())
	ts.put(t, "rel", "release.mup", releaseMap)

	out, isErr := ts.call(t, "search_mindmap_content", map[string]interface{}{"file_id": "rel", "keyword": "PASSWORD"})
	require.False(t, isErr, out)
	assert.Equal(t, "Release", out["mindmap_title"])
	assert.Equal(t, float64(1), out["total_matches"])
	match := out["matches"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "pw", match["node_id"])
	assert.Equal(t, "Release > Login > Verify password reset", match["path"])

	out, _ = ts.call(t, "search_mindmap_content", map[string]interface{}{"file_id": "rel", "keyword": "PASSWORD", "case_sensitive": true})
	assert.Equal(t, float64(0), out["total_matches"])

	out, isErr = ts.call(t, "search_mindmap_content", map[string]interface{}{"file_id": "rel", "keyword": ""})
	assert.True(t, isErr)
	assert.Equal(t, CodeInvalidParams, out["code"])

	out, isErr = ts.call(t, "search_mindmap_content", map[string]interface{}{"file_id": "rel", "keyword": "a", "max_results": float64(0)})
	assert.True(t, isErr)
	assert.Equal(t, "max_results", out["param"])
}

func TestGetMindmapNode(t *testing.T) {
	ts := newTestServer(t, strategy.DefaultThresholds())
	ts.put(t, "rel", "release.mup", releaseMap)

	out, isErr := ts.call(t, "get_mindmap_node", map[string]interface{}{"file_id": "rel", "node_id": "pw", "include_siblings": true})
	require.False(t, isErr, out)
	node := out["node"].(map[string]interface{})
	assert.Equal(t, "Verify password reset", node["title"])
	parent := out["parent"].(map[string]interface{})
	assert.Equal(t, "login", parent["id"])
	assert.Len(t, out["siblings"], 1)

	out, isErr = ts.call(t, "get_mindmap_node", map[string]interface{}{"file_id": "rel", "node_id": "ghost"})
	assert.True(t, isErr)
	assert.Equal(t, CodeNotFound, out["code"])
}

func TestOverviewAndScenarios(t *testing.T) {
	ts := newTestServer(t, strategy.DefaultThresholds())
	ts.put(t, "rel", "release.mup", releaseMap)

	out, isErr := ts.call(t, "get_mindmap_overview", map[string]interface{}{"file_id": "rel"})
	require.False(t, isErr, out)
	assert.Equal(t, "release.mup", out["file_name"])

	out, isErr = ts.call(t, "extract_test_scenarios", map[string]interface{}{"file_id": "rel", "max_cases": float64(3)})
	require.False(t, isErr, out)
	assert.LessOrEqual(t, out["total_scenarios"].(float64), float64(3))
	assert.NotEmpty(t, out["scenarios"])

	out, isErr = ts.call(t, "extract_test_scenarios", map[string]interface{}{"file_id": "rel", "max_cases": float64(500)})
	assert.True(t, isErr)
	assert.Equal(t, CodeInvalidParams, out["code"])
}

func TestListAndSummaries(t *testing.T) {
	ts := newTestServer(t, strategy.DefaultThresholds())
	ts.put(t, "rel", "release.mup", releaseMap)
	ts.put(t, "bad", "broken mindmap.mup", `{"ideas": [`)

	out, isErr := ts.call(t, "list_mindmaps", nil)
	require.False(t, isErr, out)
	assert.Equal(t, float64(2), out["count"])

	out, isErr = ts.call(t, "list_mindmaps", map[string]interface{}{"name_contains": "release"})
	require.False(t, isErr, out)
	assert.Equal(t, float64(1), out["count"])
	assert.Equal(t, "release", out["name_contains"])

	out, isErr = ts.call(t, "search_and_parse_mindmaps", map[string]interface{}{})
	require.False(t, isErr, out)
	assert.Equal(t, float64(1), out["count"])
	results := out["results"].([]interface{})
	assert.Equal(t, "Release", results[0].(map[string]interface{})["title"])
	failed := out["failed"].([]interface{})
	assert.Equal(t, "bad", failed[0].(map[string]interface{})["file_id"])

	out, isErr = ts.call(t, "list_folders", nil)
	require.False(t, isErr, out)
	assert.Equal(t, float64(0), out["count"])
}

func TestGetStatus(t *testing.T) {
	ts := newTestServer(t, strategy.DefaultThresholds())
	ts.put(t, "rel", "release.mup", releaseMap)
	_, isErr := ts.call(t, "get_mindmap_content", map[string]interface{}{"file_id": "rel"})
	require.False(t, isErr)

	out, isErr := ts.call(t, "get_status", nil)
	require.False(t, isErr, out)
	server := out["server"].(map[string]interface{})
	assert.Equal(t, ServerName, server["name"])
	store := out["store"].(map[string]interface{})
	assert.Equal(t, "sqlite", store["driver"])
	assert.Equal(t, float64(1), store["documents"])
	cacheInfo := out["cache"].(map[string]interface{})
	assert.Equal(t, float64(1), cacheInfo["entries"])
	assert.Equal(t, float64(10), cacheInfo["capacity"])
	fetch := out["fetcher"].(map[string]interface{})
	assert.Equal(t, float64(1), fetch["downloads"])
	thresholds := out["thresholds"].(map[string]interface{})
	assert.Equal(t, float64(strategy.DefaultHardCeiling), thresholds["hard_ceiling"])
}

func TestTool_InvalidArguments(t *testing.T) {
	ts := newTestServer(t, strategy.DefaultThresholds())

	var request mcp.CallToolRequest
	request.Params.Arguments = []string{"not", "an", "object"}
	result, err := ts.tool("get_status", ts.handleGetStatus)(context.Background(), request)
	require.NoError(t, err)
	assert.True(t, result.IsError)
	out := decodeResult(t, result)
	assert.Equal(t, CodeInvalidParams, out["code"])
}

func TestErrorPayload(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"param", &ParamError{Param: "x", Reason: "missing"}, CodeInvalidParams},
		{"chunk", &types.InvalidChunkIndexError{Index: 4, Total: 2}, CodeInvalidChunkIndex},
		{"empty", &types.EmptyContentError{FileID: "f"}, CodeEmptyContent},
		{"parse", &types.ParseError{Offset: 12, Message: "unexpected EOF"}, CodeParseError},
		{"fetch", &types.FetchError{FileID: "f", Err: types.ErrPermissionDenied}, CodeFetchError},
		{"node", fmt.Errorf("%w: x", mindmap.ErrNodeNotFound), CodeNotFound},
		{"other", fmt.Errorf("boom"), CodeInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := errorPayload(tt.err)
			assert.Equal(t, tt.code, p["code"])
			assert.Equal(t, tt.err.Error(), p["error"])
		})
	}

	p := errorPayload(&types.FetchError{FileID: "f", Err: fmt.Errorf("wrapped: %w", types.ErrTooLarge)})
	assert.Equal(t, "too_large", p["reason"])
}

func TestArgumentHelpers(t *testing.T) {
	args := map[string]interface{}{
		"flag":  true,
		"count": float64(7),
		"n":     3,
		"name":  "x",
	}
	assert.True(t, getBoolDefault(args, "flag", false))
	assert.False(t, getBoolDefault(args, "missing", false))
	assert.Equal(t, 7, getIntDefault(args, "count", 0))
	assert.Equal(t, 3, getIntDefault(args, "n", 0))
	assert.Equal(t, 9, getIntDefault(args, "missing", 9))
	assert.Equal(t, "x", getStringDefault(args, "name", ""))
	assert.Equal(t, "d", getStringDefault(args, "missing", "d"))

	v, err := intInRange(args, "count", 1, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	v, err = intInRange(args, "missing", 5, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 5, v)
	_, err = intInRange(args, "count", 1, 1, 5)
	assert.Error(t, err)
	_, err = intInRange(args, "name", 1, 1, 5)
	assert.Error(t, err)
}
