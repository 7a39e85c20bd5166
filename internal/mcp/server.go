package mcp

import (
	"context"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/dshills/mindmup-mcp/internal/cache"
	"github.com/dshills/mindmup-mcp/internal/mindmap"
	"github.com/dshills/mindmup-mcp/pkg/types"
)

const (
	// ServerName is the MCP server name
	ServerName = "mindmup-mcp"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Options configures the tool layer
type Options struct {
	// StoreDriver names the document store backend for status reports
	StoreDriver string
	// StoreStatus reports backend specific health, if set
	StoreStatus func(ctx context.Context) map[string]interface{}
	// SearchMaxResults is the default cap for search_mindmap_content
	SearchMaxResults int
}

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp     *server.MCPServer
	service *mindmap.Service
	cache   *cache.Cache[*types.Payload]
	opts    Options
	logger  *zap.Logger
	started time.Time
}

// NewServer creates a new MCP server instance and registers its tools
func NewServer(svc *mindmap.Service, c *cache.Cache[*types.Payload], opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.SearchMaxResults <= 0 {
		opts.SearchMaxResults = 50
	}

	mcpServer := server.NewMCPServer(
		ServerName,
		ServerVersion,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	s := &Server{
		mcp:     mcpServer,
		service: svc,
		cache:   c,
		opts:    opts,
		logger:  logger,
		started: time.Now(),
	}
	s.registerTools()
	return s
}

// MCPServer returns the underlying protocol server, for mounting on other transports
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// Ready reports whether the document service is wired
func (s *Server) Ready() bool {
	return s.service != nil
}

// CacheEntries returns the number of cached payloads
func (s *Server) CacheEntries() int {
	return s.cache.Len()
}

// Serve runs the MCP server on stdio and blocks until ctx ends or stdin closes
func (s *Server) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(zap.NewStdLog(s.logger.Named("stdio")))
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(listMindmapsTool(), s.tool("list_mindmaps", s.handleListMindmaps))
	s.mcp.AddTool(listFoldersTool(), s.tool("list_folders", s.handleListFolders))
	s.mcp.AddTool(getMindmapContentTool(), s.tool("get_mindmap_content", s.handleGetContent))
	s.mcp.AddTool(getMindmapChunkTool(), s.tool("get_mindmap_chunk", s.handleGetChunk))
	s.mcp.AddTool(searchMindmapContentTool(), s.tool("search_mindmap_content", s.handleSearchContent))
	s.mcp.AddTool(getMindmapNodeTool(), s.tool("get_mindmap_node", s.handleGetNode))
	s.mcp.AddTool(getMindmapOverviewTool(), s.tool("get_mindmap_overview", s.handleGetOverview))
	s.mcp.AddTool(extractTestScenariosTool(), s.tool("extract_test_scenarios", s.handleExtractScenarios))
	s.mcp.AddTool(searchAndParseMindmapsTool(), s.tool("search_and_parse_mindmaps", s.handleSearchAndParse))
	s.mcp.AddTool(getStatusTool(), s.tool("get_status", s.handleGetStatus))
}
