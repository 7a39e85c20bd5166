// Package mindmap is the document service behind the MCP tools.
//
// Every operation runs the same sequence: fetch through the cache, parse,
// then extract or deliver. A document that fails to parse is removed from
// the cache so the next request downloads it again. Documents can be named
// by file id or by a fragment of their file name.
package mindmap
