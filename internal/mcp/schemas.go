package mcp

import "github.com/mark3labs/mcp-go/mcp"

// fileIDProperty is shared by every tool that reads a single document
var fileIDProperty = map[string]interface{}{
	"type":        "string",
	"description": "MindMup file id, or a fragment of the file name (the newest matching file is used)",
}

// listMindmapsTool returns the tool definition for list_mindmaps
func listMindmapsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "list_mindmaps",
		Description: "List MindMup mind map files, newest first, optionally within a folder or matching a name fragment",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"folder_id": map[string]interface{}{
					"type":        "string",
					"description": "Only list mind maps in this folder and its sub-folders",
				},
				"name_contains": map[string]interface{}{
					"type":        "string",
					"description": "Only list files whose name contains this text",
				},
				"max_results": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of files to return (1-1000)",
					"default":     50,
					"minimum":     1,
					"maximum":     1000,
				},
			},
		},
	}
}

// listFoldersTool returns the tool definition for list_folders
func listFoldersTool() mcp.Tool {
	return mcp.Tool{
		Name:        "list_folders",
		Description: "List folders in the document store, for use as folder_id",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"max_results": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of folders to return (1-1000)",
					"default":     100,
					"minimum":     1,
					"maximum":     1000,
				},
			},
		},
	}
}

// getMindmapContentTool returns the tool definition for get_mindmap_content
func getMindmapContentTool() mcp.Tool {
	return mcp.Tool{
		Name: "get_mindmap_content",
		Description: "Get a mind map sized for delivery: the full tree when small, a structured overview when large, " +
			"or chunk metadata plus an overview when very large (use get_mindmap_chunk to read chunks)",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"file_id": fileIDProperty,
			},
			Required: []string{"file_id"},
		},
	}
}

// getMindmapChunkTool returns the tool definition for get_mindmap_chunk
func getMindmapChunkTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_mindmap_chunk",
		Description: "Get one chunk of a mind map's flattened text, or with chunk_index -1 only the nodes and chunks matching a keyword",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"file_id": fileIDProperty,
				"chunk_index": map[string]interface{}{
					"type":        "integer",
					"description": "Zero-based chunk index, or -1 for keyword matches only",
					"minimum":     -1,
				},
				"keyword": map[string]interface{}{
					"type":        "string",
					"description": "Keyword to look for; required when chunk_index is -1",
				},
				"case_sensitive": map[string]interface{}{
					"type":        "boolean",
					"description": "Match the keyword case-sensitively",
					"default":     false,
				},
			},
			Required: []string{"file_id", "chunk_index"},
		},
	}
}

// searchMindmapContentTool returns the tool definition for search_mindmap_content
func searchMindmapContentTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_mindmap_content",
		Description: "Find nodes in a mind map whose title contains a keyword, with their ancestor path",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"file_id": fileIDProperty,
				"keyword": map[string]interface{}{
					"type":        "string",
					"description": "Text to search node titles for",
				},
				"case_sensitive": map[string]interface{}{
					"type":        "boolean",
					"description": "Match case-sensitively",
					"default":     false,
				},
				"max_results": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of matches to return (1-500)",
					"default":     50,
					"minimum":     1,
					"maximum":     500,
				},
			},
			Required: []string{"file_id", "keyword"},
		},
	}
}

// getMindmapNodeTool returns the tool definition for get_mindmap_node
func getMindmapNodeTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_mindmap_node",
		Description: "Get a single node with its parent, children and optionally its siblings",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"file_id": fileIDProperty,
				"node_id": map[string]interface{}{
					"type":        "string",
					"description": "Node id as returned by search or overview results",
				},
				"include_siblings": map[string]interface{}{
					"type":        "boolean",
					"description": "Include the node's siblings",
					"default":     false,
				},
			},
			Required: []string{"file_id", "node_id"},
		},
	}
}

// getMindmapOverviewTool returns the tool definition for get_mindmap_overview
func getMindmapOverviewTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_mindmap_overview",
		Description: "Get a bounded hierarchy and the key sections of a mind map regardless of its size",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"file_id": fileIDProperty,
			},
			Required: []string{"file_id"},
		},
	}
}

// extractTestScenariosTool returns the tool definition for extract_test_scenarios
func extractTestScenariosTool() mcp.Tool {
	return mcp.Tool{
		Name:        "extract_test_scenarios",
		Description: "Propose test scenarios from a mind map, ranked by keyword relevance",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"file_id": fileIDProperty,
				"max_cases": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of scenarios to return (1-200)",
					"default":     20,
					"minimum":     1,
					"maximum":     200,
				},
			},
			Required: []string{"file_id"},
		},
	}
}

// searchAndParseMindmapsTool returns the tool definition for search_and_parse_mindmaps
func searchAndParseMindmapsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_and_parse_mindmaps",
		Description: "Find mind maps and summarize each one (title, size, delivery tier and a text preview)",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"folder_id": map[string]interface{}{
					"type":        "string",
					"description": "Only consider mind maps in this folder and its sub-folders",
				},
				"name_contains": map[string]interface{}{
					"type":        "string",
					"description": "Only consider files whose name contains this text",
				},
				"max_results": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of mind maps to parse (1-50)",
					"default":     10,
					"minimum":     1,
					"maximum":     50,
				},
			},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report server, cache, fetcher and store status",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
