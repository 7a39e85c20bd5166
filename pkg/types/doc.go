// Package types provides shared type definitions for the MindMup MCP server.
//
// This package defines the mind-map document model, the delivery types used
// when a document is sized for a consumer, and the error taxonomy shared by
// the fetch, parse and delivery components.
//
// # Document Model
//
// A Document owns a single Root node. Every Node has an ID, a Title and an
// ordered list of Children; attributes and position are carried through from
// the source JSON untouched:
//
//	doc := &types.Document{
//	    Title: "Release plan",
//	    Root: &types.Node{
//	        ID:    "root",
//	        Title: "Release plan",
//	        Children: []*types.Node{
//	            {ID: "1", Title: "Login"},
//	        },
//	    },
//	}
//
// Derived views (NodeCount, MaxDepth, Texts, FlatText) walk the tree in
// pre-order with an explicit stack via Walk.
//
// # Delivery
//
// Tier names the response shape selected for a document (full, structured or
// chunked) and Chunk is one overlapping window over the flattened text.
//
// # Errors
//
// Store failures are classified with ErrNotFound, ErrPermissionDenied and
// ErrTransient and wrapped in a FetchError. ParseError, InvalidChunkIndexError
// and EmptyContentError cover the remaining failure kinds; use errors.As to
// recover their fields.
package types
