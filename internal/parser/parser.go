package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dshills/mindmup-mcp/pkg/types"
)

const (
	// DefaultMaxDepth bounds the node levels accepted from a document, root included
	DefaultMaxDepth = 10000
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Parser turns MindMup JSON into a types.Document.
// A Parser holds no per-call state and is safe for concurrent use.
type Parser struct {
	maxDepth int
	now      func() time.Time
}

// Option configures a Parser
type Option func(*Parser)

// WithMaxDepth sets the deepest node nesting accepted before a ParseError
func WithMaxDepth(depth int) Option {
	return func(p *Parser) {
		if depth > 0 {
			p.maxDepth = depth
		}
	}
}

// WithClock overrides the clock used for creation and modification times
func WithClock(now func() time.Time) Option {
	return func(p *Parser) {
		if now != nil {
			p.now = now
		}
	}
}

// New creates a new Parser instance
func New(opts ...Option) *Parser {
	p := &Parser{
		maxDepth: DefaultMaxDepth,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ParseFile reads and parses a MindMup file from disk
func (p *Parser) ParseFile(path string) (*types.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return p.Parse(data)
}

// frame is a node under construction
type frame struct {
	node     *types.Node
	hasTitle bool
	inIdeas  bool
}

// Parse decodes a MindMup document in a single streaming pass.
//
// Children are taken from each node's "ideas" object in source order.
// Non-object entries inside "ideas" are ignored. Unknown keys are skipped.
// Nesting deeper than the configured maximum is reported as a ParseError.
func (p *Parser) Parse(data []byte) (*types.Document, error) {
	data = bytes.TrimPrefix(data, utf8BOM)

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &types.ParseError{Message: "document is empty"}
		}
		return nil, parseError(dec, "invalid JSON", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, parseError(dec, "document root must be a JSON object", nil)
	}

	now := p.now()
	doc := &types.Document{
		VersionTag: types.DefaultVersionTag,
		CreatedAt:  now,
		ModifiedAt: now,
		Raw:        data,
	}

	stack := []*frame{{node: &types.Node{}}}
	var root *types.Node

	for len(stack) > 0 {
		top := stack[len(stack)-1]

		if !dec.More() {
			tok, err := dec.Token()
			if err != nil {
				return nil, parseError(dec, "unexpected end of document", err)
			}
			if d, ok := tok.(json.Delim); !ok || d != '}' {
				return nil, parseError(dec, "malformed object", nil)
			}
			if top.inIdeas {
				top.inIdeas = false
				continue
			}

			finishNode(top)
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				root = top.node
			} else {
				parent := stack[len(stack)-1].node
				parent.Children = append(parent.Children, top.node)
			}
			continue
		}

		tok, err := dec.Token()
		if err != nil {
			return nil, parseError(dec, "invalid JSON", err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, parseError(dec, "expected object key", nil)
		}

		if top.inIdeas {
			child, err := p.readIdea(dec, len(stack))
			if err != nil {
				return nil, err
			}
			if child != nil {
				stack = append(stack, child)
			}
			continue
		}

		if err := p.readField(dec, top, key, len(stack) == 1, doc); err != nil {
			return nil, err
		}
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, parseError(dec, "unexpected data after document", nil)
	}

	doc.Root = root
	doc.ID = root.ID
	doc.Title = root.Title
	return doc, nil
}

// readIdea consumes one value of an "ideas" object. Objects open a new
// frame; anything else is discarded. parentLevel is the level of the node
// owning the "ideas" object, with the root at level 1.
func (p *Parser) readIdea(dec *json.Decoder, parentLevel int) (*frame, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, parseError(dec, "invalid JSON", err)
	}

	d, ok := tok.(json.Delim)
	if !ok {
		return nil, nil
	}

	switch d {
	case '{':
		if parentLevel >= p.maxDepth {
			return nil, parseError(dec, fmt.Sprintf("node nesting exceeds %d levels", p.maxDepth), nil)
		}
		return &frame{node: &types.Node{}}, nil
	case '[':
		if err := skipRest(dec); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

// readField consumes the value for key on the node being built
func (p *Parser) readField(dec *json.Decoder, f *frame, key string, isRoot bool, doc *types.Document) error {
	switch key {
	case "ideas":
		tok, err := dec.Token()
		if err != nil {
			return parseError(dec, "invalid JSON", err)
		}
		if d, ok := tok.(json.Delim); ok {
			switch d {
			case '{':
				f.inIdeas = true
			case '[':
				return skipRest(dec)
			}
		}
		return nil

	case "title":
		v, err := decodeScalar(dec)
		if err != nil {
			return err
		}
		if s, ok := v.(string); ok {
			f.node.Title = s
			f.hasTitle = true
		} else if n, ok := v.(json.Number); ok {
			f.node.Title = n.String()
			f.hasTitle = true
		}
		return nil

	case "id":
		v, err := decodeScalar(dec)
		if err != nil {
			return err
		}
		f.node.ID = scalarString(v)
		return nil

	case "attr":
		var v any
		if err := dec.Decode(&v); err != nil {
			return parseError(dec, "invalid attr value", err)
		}
		if attrs, ok := v.(map[string]any); ok && len(attrs) > 0 {
			f.node.Attributes = attrs
		}
		return nil

	case "position":
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return parseError(dec, "invalid position value", err)
		}
		if !bytes.Equal(raw, []byte("null")) {
			f.node.Position = raw
		}
		return nil

	case "formatVersion":
		v, err := decodeScalar(dec)
		if err != nil {
			return err
		}
		if s := scalarString(v); isRoot && s != "" {
			doc.VersionTag = s
		}
		return nil
	}

	var skipped json.RawMessage
	if err := dec.Decode(&skipped); err != nil {
		return parseError(dec, fmt.Sprintf("invalid value for %q", key), err)
	}
	return nil
}

func finishNode(f *frame) {
	if f.node.ID == "" {
		f.node.ID = types.RootIDPlaceholder
	}
	if !f.hasTitle {
		f.node.Title = types.UntitledPlaceholder
	}
}

func decodeScalar(dec *json.Decoder) (any, error) {
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, parseError(dec, "invalid JSON", err)
	}
	return v, nil
}

func scalarString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case json.Number:
		return s.String()
	case bool:
		return fmt.Sprint(s)
	}
	return ""
}

// skipRest consumes tokens until the array or object just opened is closed
func skipRest(dec *json.Decoder) error {
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return parseError(dec, "invalid JSON", err)
		}
		if d, ok := tok.(json.Delim); ok {
			switch d {
			case '{', '[':
				depth++
			case '}', ']':
				depth--
			}
		}
	}
	return nil
}

func parseError(dec *json.Decoder, msg string, err error) *types.ParseError {
	offset := dec.InputOffset()
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		offset = syntaxErr.Offset
	}
	if err != nil && !errors.Is(err, io.EOF) {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	return &types.ParseError{Offset: offset, Message: msg, Err: err}
}
