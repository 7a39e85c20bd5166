package searcher

import (
	"errors"
	"strings"

	"github.com/dshills/mindmup-mcp/pkg/types"
)

const (
	// DefaultMaxResults caps the matches returned when no limit is given
	DefaultMaxResults = 50

	// MaxSampleChildren caps the child titles reported with each match
	MaxSampleChildren = 10

	// PathSeparator joins ancestor titles in a match path
	PathSeparator = " > "
)

var ErrEmptyKeyword = errors.New("keyword cannot be empty")

// Options controls a keyword search
type Options struct {
	Keyword       string
	CaseSensitive bool
	MaxResults    int
}

// Match is a node whose title contains the keyword
type Match struct {
	NodeID         string         `json:"node_id"`
	Title          string         `json:"title"`
	Path           string         `json:"path"`
	Depth          int            `json:"depth"`
	ChildCount     int            `json:"children_count"`
	SampleChildren []string       `json:"sample_children,omitempty"`
	Attributes     map[string]any `json:"attributes,omitempty"`
}

// Result is the outcome of a search.
//
// LimitReached reports that the walk stopped at the MaxResults cap with
// nodes left unvisited. It does not mean further matches exist.
type Result struct {
	Keyword       string  `json:"keyword"`
	CaseSensitive bool    `json:"case_sensitive"`
	TotalMatches  int     `json:"total_matches"`
	LimitReached  bool    `json:"limit_reached"`
	Matches       []Match `json:"matches"`
}

// Search walks root in pre-order and returns nodes whose title contains
// the keyword, stopping as soon as MaxResults matches are collected.
func Search(root *types.Node, opts Options) (*Result, error) {
	if strings.TrimSpace(opts.Keyword) == "" {
		return nil, ErrEmptyKeyword
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = DefaultMaxResults
	}

	needle := opts.Keyword
	if !opts.CaseSensitive {
		needle = strings.ToLower(needle)
	}

	result := &Result{
		Keyword:       opts.Keyword,
		CaseSensitive: opts.CaseSensitive,
		Matches:       make([]Match, 0),
	}

	types.Walk(root, func(n *types.Node, depth int, path []string) bool {
		if len(result.Matches) >= opts.MaxResults {
			result.LimitReached = true
			return false
		}

		title := n.Title
		if !opts.CaseSensitive {
			title = strings.ToLower(title)
		}
		if strings.Contains(title, needle) {
			result.Matches = append(result.Matches, newMatch(n, depth, path))
		}
		return true
	})

	result.TotalMatches = len(result.Matches)
	return result, nil
}

// Contains reports whether text contains keyword under the same matching rules
func Contains(text, keyword string, caseSensitive bool) bool {
	if keyword == "" {
		return false
	}
	if caseSensitive {
		return strings.Contains(text, keyword)
	}
	return strings.Contains(strings.ToLower(text), strings.ToLower(keyword))
}

func newMatch(n *types.Node, depth int, path []string) Match {
	m := Match{
		NodeID:     n.ID,
		Title:      n.Title,
		Path:       strings.Join(path, PathSeparator),
		Depth:      depth,
		ChildCount: len(n.Children),
		Attributes: n.Attributes,
	}
	for _, c := range n.Children {
		if len(m.SampleChildren) >= MaxSampleChildren {
			break
		}
		m.SampleChildren = append(m.SampleChildren, c.Title)
	}
	return m
}
