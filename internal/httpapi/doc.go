// Package httpapi serves the side HTTP surface of the MindMup MCP server.
//
// Routes:
//
//	GET /ping     {"time": "...", "server": "mindmup-mcp"}
//	GET /health   {"time": "...", "clients_initialized": true, "cache_entries": 3}
//	GET /metrics  Prometheus exposition
//	/sse, /message  MCP SSE transport, when the server runs with transport sse
//
// Every request gets a chi request id, panic recovery, a debug log line and
// the mindmup_http_* metrics.
package httpapi
