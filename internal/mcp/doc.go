// Package mcp implements the Model Context Protocol (MCP) tool layer for
// MindMup mind maps.
//
// The server exposes these tools to MCP clients:
//   - list_mindmaps: find MindMup files, newest first
//   - list_folders: list folders usable as folder_id
//   - get_mindmap_content: deliver a document at the tier its size allows
//   - get_mindmap_chunk: read one chunk, or keyword matches with chunk_index -1
//   - search_mindmap_content: keyword search over node titles
//   - get_mindmap_node: a node with its parent, children and siblings
//   - get_mindmap_overview: bounded hierarchy and key sections
//   - extract_test_scenarios: ranked test scenario proposals
//   - search_and_parse_mindmaps: summaries of many documents at once
//   - get_status: server, cache, fetcher and store status
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol. The server speaks it over stdio by default;
// MCPServer exposes the protocol server so it can also be mounted on the SSE
// transport:
//
//	Client → Server: {"method": "tools/call", "params": {"name": "get_mindmap_content", "arguments": {"file_id": "..."}}}
//	Server → Client: {"result": {"content": [{"type": "text", "text": "{...}"}]}}
//
// # Responses
//
// Every tool answers with indented JSON text. A document reference may be a
// file id or a name fragment. Failures never surface as protocol errors;
// they are returned as a tool result flagged isError whose text is
//
//	{"error": "chunk index 9 out of range (total chunks: 4)", "code": "invalid_chunk_index", "total_chunks": 4, "requested_index": 9}
//
// with code one of fetch_error, parse_error, invalid_chunk_index,
// empty_content, invalid_params, not_found or internal_error.
//
// # Logging and Metrics
//
// Each call is logged with a fresh request_id and counted in the
// mindmup_tool_calls_total and mindmup_tool_call_duration_seconds metrics.
package mcp
