package extractor

import (
	"unicode/utf8"

	"github.com/dshills/mindmup-mcp/pkg/types"
)

const (
	// DefaultMaxDepth is how many node levels a summary shows, counting the root
	DefaultMaxDepth = 10

	// DefaultMaxChildren is how many children a summary node lists
	DefaultMaxChildren = 10

	// DefaultMaxSubsections is how many sub-sections a key section lists
	DefaultMaxSubsections = 20

	// DefaultSampleSize is how many grandchildren are sampled per sub-section
	DefaultSampleSize = 5

	// DefaultMaxNodes is the total node budget of one hierarchy summary
	DefaultMaxNodes = 1000

	// DefaultMaxTitleLength clips titles in derived views, in bytes
	DefaultMaxTitleLength = 200
)

// Limits bounds every view produced by this package
type Limits struct {
	MaxDepth       int
	MaxChildren    int
	MaxSubsections int
	SampleSize     int
	MaxNodes       int
	MaxTitleLength int
}

// DefaultLimits returns the standard extraction bounds
func DefaultLimits() Limits {
	return Limits{
		MaxDepth:       DefaultMaxDepth,
		MaxChildren:    DefaultMaxChildren,
		MaxSubsections: DefaultMaxSubsections,
		SampleSize:     DefaultSampleSize,
		MaxNodes:       DefaultMaxNodes,
		MaxTitleLength: DefaultMaxTitleLength,
	}
}

// withDefaults fills non-positive fields
func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l.MaxDepth <= 0 {
		l.MaxDepth = d.MaxDepth
	}
	if l.MaxChildren <= 0 {
		l.MaxChildren = d.MaxChildren
	}
	if l.MaxSubsections <= 0 {
		l.MaxSubsections = d.MaxSubsections
	}
	if l.SampleSize <= 0 {
		l.SampleSize = d.SampleSize
	}
	if l.MaxNodes <= 0 {
		l.MaxNodes = d.MaxNodes
	}
	if l.MaxTitleLength <= 0 {
		l.MaxTitleLength = d.MaxTitleLength
	}
	return l
}

// SummaryNode is a bounded view of a node and its descendants
type SummaryNode struct {
	ID                string         `json:"id"`
	Title             string         `json:"title"`
	ChildCount        int            `json:"child_count"`
	Children          []*SummaryNode `json:"children,omitempty"`
	TruncatedChildren int            `json:"truncated_children,omitempty"`
	DepthLimitReached bool           `json:"depth_limit_reached,omitempty"`
}

type summaryItem struct {
	src   *types.Node
	dst   *SummaryNode
	depth int
}

// Summarize builds a hierarchy overview of root.
//
// Levels are counted in nodes with the root at level 1, the same way as
// Document.MaxDepth. Nodes at level MaxDepth report only their title and
// child count. Elsewhere at
// most MaxChildren children are listed and the remainder is reported in
// TruncatedChildren. The tree is built breadth first against a budget of
// MaxNodes, so shallow levels are always filled before deeper ones.
func Summarize(root *types.Node, limits Limits) *SummaryNode {
	if root == nil {
		return nil
	}
	limits = limits.withDefaults()

	top := limits.summaryNode(root)
	budget := limits.MaxNodes - 1
	queue := []summaryItem{{src: root, dst: top, depth: 1}}

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		children := item.src.Children
		if len(children) == 0 {
			continue
		}
		if item.depth >= limits.MaxDepth {
			item.dst.DepthLimitReached = true
			continue
		}

		shown := min(len(children), limits.MaxChildren, max(budget, 0))
		for _, c := range children[:shown] {
			child := limits.summaryNode(c)
			item.dst.Children = append(item.dst.Children, child)
			queue = append(queue, summaryItem{src: c, dst: child, depth: item.depth + 1})
		}
		budget -= shown
		item.dst.TruncatedChildren = len(children) - shown
	}
	return top
}

func (l Limits) summaryNode(n *types.Node) *SummaryNode {
	return &SummaryNode{
		ID:         n.ID,
		Title:      clip(n.Title, l.MaxTitleLength),
		ChildCount: len(n.Children),
	}
}

// Subsection is a child of a key section with sampled grandchildren
type Subsection struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	ChildCount     int      `json:"child_count"`
	SampleChildren []string `json:"sample_children,omitempty"`
}

// Section is a top-level branch of the map
type Section struct {
	ID                    string       `json:"id"`
	Title                 string       `json:"title"`
	SubsectionCount       int          `json:"subsection_count"`
	DescendantCount       int          `json:"descendant_count"`
	Subsections           []Subsection `json:"subsections,omitempty"`
	AdditionalSubsections int          `json:"additional_subsections,omitempty"`
}

// KeySections describes each top-level branch of root. At most
// MaxSubsections sub-sections are listed per branch, each with up to
// SampleSize grandchild titles.
func KeySections(root *types.Node, limits Limits) []Section {
	if root == nil {
		return nil
	}
	limits = limits.withDefaults()

	sections := make([]Section, 0, len(root.Children))
	for _, top := range root.Children {
		sec := Section{
			ID:              top.ID,
			Title:           clip(top.Title, limits.MaxTitleLength),
			SubsectionCount: len(top.Children),
			DescendantCount: descendants(top),
		}

		shown := min(len(top.Children), limits.MaxSubsections)
		for _, sub := range top.Children[:shown] {
			sec.Subsections = append(sec.Subsections, Subsection{
				ID:             sub.ID,
				Title:          clip(sub.Title, limits.MaxTitleLength),
				ChildCount:     len(sub.Children),
				SampleChildren: sampleTitles(sub, limits.SampleSize, limits.MaxTitleLength),
			})
		}
		sec.AdditionalSubsections = len(top.Children) - shown
		sections = append(sections, sec)
	}
	return sections
}

// Overview is the structured description of a whole document
type Overview struct {
	Title           string       `json:"title"`
	NodeCount       int          `json:"node_count"`
	MaxDepth        int          `json:"max_depth"`
	TotalTextLength int          `json:"total_text_length"`
	Hierarchy       *SummaryNode `json:"hierarchy"`
	KeySections     []Section    `json:"key_sections"`
}

// BuildOverview combines document statistics, the hierarchy summary and key sections
func BuildOverview(doc *types.Document, limits Limits) *Overview {
	textLen := 0
	for _, t := range doc.Texts() {
		textLen += len(t)
	}

	return &Overview{
		Title:           doc.Title,
		NodeCount:       doc.NodeCount(),
		MaxDepth:        doc.MaxDepth(),
		TotalTextLength: textLen,
		Hierarchy:       Summarize(doc.Root, limits),
		KeySections:     KeySections(doc.Root, limits),
	}
}

// sampleTitles returns up to limit child titles of n, each clipped to maxLen
func sampleTitles(n *types.Node, limit, maxLen int) []string {
	if len(n.Children) == 0 {
		return nil
	}
	count := min(len(n.Children), limit)
	titles := make([]string, 0, count)
	for _, c := range n.Children[:count] {
		titles = append(titles, clip(c.Title, maxLen))
	}
	return titles
}

// clip shortens s to at most maxLen bytes without splitting a character
func clip(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

// descendants counts the nodes below n
func descendants(n *types.Node) int {
	count := -1
	types.Walk(n, func(*types.Node, int, []string) bool {
		count++
		return true
	})
	return count
}
