package types

import (
	"encoding/json"
	"strings"
	"time"
)

// Placeholders used when a document omits identifying fields
const (
	UntitledPlaceholder = "untitled"
	RootIDPlaceholder   = "root"
	DefaultVersionTag   = "1.0"
)

// Node is one titled element of a mind-map tree.
// Children keep the order in which they appeared in the source document.
type Node struct {
	ID         string          `json:"id"`
	Title      string          `json:"title"`
	Children   []*Node         `json:"children,omitempty"`
	Attributes map[string]any  `json:"attributes,omitempty"`
	Position   json.RawMessage `json:"position,omitempty"`
}

// Document is a parsed mind map.
type Document struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	VersionTag string    `json:"version_tag"`
	Root       *Node     `json:"root"`
	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`

	// Raw is the source payload the document was parsed from
	Raw []byte `json:"-"`
}

// VisitFunc is called for every node during a walk. depth is 0 for the
// starting node and path holds the titles from the starting node down to n,
// inclusive. path is reused between calls; copy it to retain it.
// Returning false skips the node's children.
type VisitFunc func(n *Node, depth int, path []string) bool

type walkFrame struct {
	node  *Node
	depth int
}

// Walk visits n and its descendants in pre-order using an explicit stack,
// so arbitrarily deep trees cannot exhaust the goroutine stack.
func Walk(n *Node, visit VisitFunc) {
	if n == nil {
		return
	}

	stack := []walkFrame{{node: n}}
	path := make([]string, 0, 16)

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		path = append(path[:f.depth], f.node.Title)
		if !visit(f.node, f.depth, path) {
			continue
		}

		// Push in reverse so the first child is visited first
		for i := len(f.node.Children) - 1; i >= 0; i-- {
			if c := f.node.Children[i]; c != nil {
				stack = append(stack, walkFrame{node: c, depth: f.depth + 1})
			}
		}
	}
}

// NodeCount returns the number of nodes reachable from the root.
func (d *Document) NodeCount() int {
	count := 0
	Walk(d.Root, func(*Node, int, []string) bool {
		count++
		return true
	})
	return count
}

// MaxDepth returns the number of nodes on the longest root-to-leaf path.
// A lone root has depth 1; a document without a root has depth 0.
func (d *Document) MaxDepth() int {
	if d.Root == nil {
		return 0
	}
	deepest := 0
	Walk(d.Root, func(_ *Node, depth int, _ []string) bool {
		deepest = max(deepest, depth)
		return true
	})
	return deepest + 1
}

// Texts returns every node title in pre-order.
func (d *Document) Texts() []string {
	var texts []string
	Walk(d.Root, func(n *Node, _ int, _ []string) bool {
		texts = append(texts, n.Title)
		return true
	})
	return texts
}

// FlatText joins all titles in pre-order, one per line.
func (d *Document) FlatText() string {
	return strings.Join(d.Texts(), "\n")
}

// Find returns the first node in pre-order with the given id.
func (d *Document) Find(id string) *Node {
	var found *Node
	Walk(d.Root, func(n *Node, _ int, _ []string) bool {
		if found != nil {
			return false
		}
		if n.ID == id {
			found = n
			return false
		}
		return true
	})
	return found
}
