package extractor

import (
	"encoding/json"
	"strings"

	"github.com/dshills/mindmup-mcp/pkg/types"
)

// NodeRef identifies a related node
type NodeRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// NodeDetail is the full description of the requested node
type NodeDetail struct {
	ID         string          `json:"id"`
	Title      string          `json:"title"`
	Path       string          `json:"path"`
	Depth      int             `json:"depth"`
	ChildCount int             `json:"child_count"`
	Attributes map[string]any  `json:"attributes,omitempty"`
	Position   json.RawMessage `json:"position,omitempty"`
}

// NodeContext is a node with its immediate neighbourhood
type NodeContext struct {
	Node     NodeDetail `json:"node"`
	Children []NodeRef  `json:"children"`
	Parent   *NodeRef   `json:"parent"`
	Siblings []NodeRef  `json:"siblings,omitempty"`
}

type contextFrame struct {
	node   *types.Node
	parent *types.Node
	depth  int
	path   []string
}

// FindContext locates the first node with nodeID in pre-order and returns
// it with its children, its parent and optionally its siblings.
func FindContext(root *types.Node, nodeID string, includeSiblings bool) (*NodeContext, bool) {
	if root == nil {
		return nil, false
	}

	stack := []contextFrame{{node: root, path: []string{root.Title}}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if f.node.ID == nodeID {
			return buildContext(f, includeSiblings), true
		}

		for i := len(f.node.Children) - 1; i >= 0; i-- {
			c := f.node.Children[i]
			if c == nil {
				continue
			}
			path := make([]string, len(f.path), len(f.path)+1)
			copy(path, f.path)
			stack = append(stack, contextFrame{
				node:   c,
				parent: f.node,
				depth:  f.depth + 1,
				path:   append(path, c.Title),
			})
		}
	}
	return nil, false
}

func buildContext(f contextFrame, includeSiblings bool) *NodeContext {
	n := f.node
	ctx := &NodeContext{
		Node: NodeDetail{
			ID:         n.ID,
			Title:      n.Title,
			Path:       strings.Join(f.path, " > "),
			Depth:      f.depth,
			ChildCount: len(n.Children),
			Attributes: n.Attributes,
			Position:   n.Position,
		},
		Children: refs(n.Children, nil),
	}

	if f.parent != nil {
		ctx.Parent = &NodeRef{ID: f.parent.ID, Title: f.parent.Title}
		if includeSiblings {
			ctx.Siblings = refs(f.parent.Children, n)
		}
	}
	return ctx
}

// refs lists nodes, leaving out skip
func refs(nodes []*types.Node, skip *types.Node) []NodeRef {
	out := make([]NodeRef, 0, len(nodes))
	for _, c := range nodes {
		if c == nil || c == skip {
			continue
		}
		out = append(out, NodeRef{ID: c.ID, Title: c.Title})
	}
	return out
}
