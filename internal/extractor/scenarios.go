package extractor

import (
	"sort"
	"strings"

	"github.com/dshills/mindmup-mcp/pkg/types"
)

// DefaultMaxScenarios caps the scenarios returned when the caller gives no limit
const DefaultMaxScenarios = 20

// Term is a vocabulary entry and the score a matching title earns
type Term struct {
	Text   string
	Weight int
}

// ScoringTable drives scenario extraction. Terms are matched as
// case-insensitive substrings of node titles.
type ScoringTable struct {
	Terms []Term

	// DepthBonus is added to a match at depth 1 and shrinks by one per level
	DepthBonus int

	// TopSections is how many of the largest top-level branches are always included
	TopSections int
}

// DefaultScoringTable returns the built-in English and Chinese vocabulary
func DefaultScoringTable() ScoringTable {
	var terms []Term
	for _, t := range []string{
		"test", "scenario", "case", "feature", "requirement", "story", "flow", "function",
		"測試", "場景", "情境", "案例", "用例", "功能", "需求", "流程",
	} {
		terms = append(terms, Term{Text: t, Weight: 3})
	}
	for _, t := range []string{
		"login", "logout", "register", "create", "update", "delete", "search",
		"upload", "download", "submit", "verify", "validate", "error",
		"登入", "登出", "註冊", "新增", "修改", "刪除", "查詢", "搜尋",
		"上傳", "下載", "提交", "驗證", "錯誤",
	} {
		terms = append(terms, Term{Text: t, Weight: 2})
	}
	return ScoringTable{Terms: terms, DepthBonus: 5, TopSections: 3}
}

// Scenario is a node proposed as a test scenario
type Scenario struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Path           string   `json:"path"`
	Depth          int      `json:"depth"`
	Priority       int      `json:"priority"`
	Source         string   `json:"source"`
	MatchedTerms   []string `json:"matched_terms,omitempty"`
	ChildCount     int      `json:"child_count"`
	SampleChildren []string `json:"sample_children,omitempty"`

	node  *types.Node
	order int
}

const (
	SourceSection = "section"
	SourceKeyword = "keyword"
)

// ExtractScenarios proposes up to maxCases scenarios from root.
//
// The TopSections largest top-level branches are always included. The
// remaining slots go to the highest priority keyword matches, where priority
// is the summed weight of matched terms plus a bonus for shallow nodes. The
// result is ordered by descending priority, then ascending depth.
func ExtractScenarios(root *types.Node, maxCases int, table ScoringTable) []Scenario {
	if root == nil {
		return nil
	}
	if maxCases <= 0 {
		maxCases = DefaultMaxScenarios
	}

	matchers := make([]Term, 0, len(table.Terms))
	for _, t := range table.Terms {
		if t.Text != "" {
			matchers = append(matchers, Term{Text: strings.ToLower(t.Text), Weight: t.Weight})
		}
	}

	var matches []Scenario
	sectionOrder := make(map[*types.Node]int, len(root.Children))
	order := 0
	types.Walk(root, func(n *types.Node, depth int, path []string) bool {
		order++
		if depth == 0 {
			return true
		}
		if depth == 1 {
			sectionOrder[n] = order
		}
		s := newScenario(n, depth, path, order)
		score := s.score(n.Title, matchers)
		if score > 0 {
			s.Priority = score + max(0, table.DepthBonus-depth+1)
			s.Source = SourceKeyword
			matches = append(matches, s)
		}
		return true
	})

	chosen := make(map[*types.Node]bool)
	var result []Scenario

	for _, n := range topSections(root, table.TopSections) {
		if len(result) >= maxCases {
			break
		}
		s := newScenario(n, 1, []string{root.Title, n.Title}, sectionOrder[n])
		s.Priority = s.score(n.Title, matchers) + max(0, table.DepthBonus)
		s.Source = SourceSection
		result = append(result, s)
		chosen[n] = true
	}

	sortScenarios(matches)
	for _, m := range matches {
		if len(result) >= maxCases {
			break
		}
		if chosen[m.node] {
			continue
		}
		result = append(result, m)
	}

	sortScenarios(result)
	return result
}

func newScenario(n *types.Node, depth int, path []string, order int) Scenario {
	return Scenario{
		ID:             n.ID,
		Title:          clip(n.Title, DefaultMaxTitleLength),
		Path:           strings.Join(path, " > "),
		Depth:          depth,
		ChildCount:     len(n.Children),
		SampleChildren: sampleTitles(n, DefaultSampleSize, DefaultMaxTitleLength),
		node:           n,
		order:          order,
	}
}

// score sums the weights of the distinct terms found in the title
func (s *Scenario) score(title string, matchers []Term) int {
	title = strings.ToLower(title)
	total := 0
	for _, m := range matchers {
		if strings.Contains(title, m.Text) {
			total += m.Weight
			s.MatchedTerms = append(s.MatchedTerms, m.Text)
		}
	}
	return total
}

// topSections returns up to n top-level children with the most descendants
func topSections(root *types.Node, n int) []*types.Node {
	if n <= 0 {
		return nil
	}
	sections := make([]*types.Node, len(root.Children))
	copy(sections, root.Children)

	sizes := make(map[*types.Node]int, len(sections))
	for _, s := range sections {
		sizes[s] = descendants(s)
	}
	sort.SliceStable(sections, func(i, j int) bool {
		return sizes[sections[i]] > sizes[sections[j]]
	})
	return sections[:min(n, len(sections))]
}

func sortScenarios(s []Scenario) {
	sort.SliceStable(s, func(i, j int) bool {
		if s[i].Priority != s[j].Priority {
			return s[i].Priority > s[j].Priority
		}
		if s[i].Depth != s[j].Depth {
			return s[i].Depth < s[j].Depth
		}
		return s[i].order < s[j].order
	})
}
