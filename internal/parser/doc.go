// Package parser converts MindMup JSON payloads into the document model.
//
// The parser reads the payload with a streaming json.Decoder and builds the
// node tree with an explicit frame stack, so it never recurses and keeps the
// order of each node's "ideas" entries exactly as they appear in the source.
//
// # Basic Usage
//
//	p := parser.New()
//	doc, err := p.Parse(payload)
//	if err != nil {
//	    var parseErr *types.ParseError
//	    if errors.As(err, &parseErr) {
//	        fmt.Printf("bad document at offset %d\n", parseErr.Offset)
//	    }
//	    return err
//	}
//	fmt.Println(doc.Title, doc.NodeCount())
//
// # Field Mapping
//
//   - "title" becomes the node title ("untitled" when absent)
//   - "id" becomes the node id ("root" when absent); numeric ids are kept as text
//   - "ideas" supplies the children, one per object value, in source order
//   - "attr" and "position" are passed through untouched
//   - "formatVersion" on the top-level object becomes the version tag ("1.0" when absent)
//
// # Limits
//
// Nesting deeper than DefaultMaxDepth (or the WithMaxDepth override) is
// rejected with a *types.ParseError instead of growing the stack without bound.
package parser
