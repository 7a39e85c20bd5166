package extractor

import (
	"fmt"
	"testing"

	"github.com/dshills/mindmup-mcp/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func node(id, title string, children ...*types.Node) *types.Node {
	return &types.Node{ID: id, Title: title, Children: children}
}

func wide(id string, n int) *types.Node {
	parent := node(id, "wide "+id)
	for i := 0; i < n; i++ {
		parent.Children = append(parent.Children, node(fmt.Sprintf("%s-%d", id, i), fmt.Sprintf("child %d", i)))
	}
	return parent
}

func chain(depth int) *types.Node {
	root := node("n0", "level 0")
	cur := root
	for i := 1; i <= depth; i++ {
		next := node(fmt.Sprintf("n%d", i), fmt.Sprintf("level %d", i))
		cur.Children = []*types.Node{next}
		cur = next
	}
	return root
}

func TestSummarize_TruncatesChildren(t *testing.T) {
	s := Summarize(wide("w", 25), DefaultLimits())

	require.NotNil(t, s)
	assert.Equal(t, 25, s.ChildCount)
	assert.Len(t, s.Children, DefaultMaxChildren)
	assert.Equal(t, 15, s.TruncatedChildren)
	assert.Equal(t, "child 0", s.Children[0].Title)
}

func TestSummarize_DepthLimit(t *testing.T) {
	s := Summarize(chain(30), Limits{MaxDepth: 3})

	levels := 1
	cur := s
	for len(cur.Children) > 0 {
		cur = cur.Children[0]
		levels++
	}
	assert.Equal(t, 3, levels)
	assert.True(t, cur.DepthLimitReached)
	assert.Equal(t, 1, cur.ChildCount)
	assert.Equal(t, "level 2", cur.Title)
}

func TestSummarize_Leaf(t *testing.T) {
	s := Summarize(node("a", "leaf"), DefaultLimits())
	assert.Equal(t, 0, s.ChildCount)
	assert.False(t, s.DepthLimitReached)
	assert.Nil(t, Summarize(nil, DefaultLimits()))
}

func TestKeySections(t *testing.T) {
	big := wide("big", 30)
	for i := 0; i < 8; i++ {
		big.Children[0].Children = append(big.Children[0].Children, node(fmt.Sprint("g", i), fmt.Sprint("grand ", i)))
	}
	root := node("root", "R", big, node("small", "Small"))

	sections := KeySections(root, DefaultLimits())
	require.Len(t, sections, 2)

	sec := sections[0]
	assert.Equal(t, 30, sec.SubsectionCount)
	assert.Len(t, sec.Subsections, DefaultMaxSubsections)
	assert.Equal(t, 10, sec.AdditionalSubsections)
	assert.Equal(t, 38, sec.DescendantCount)
	assert.Len(t, sec.Subsections[0].SampleChildren, DefaultSampleSize)
	assert.Equal(t, 8, sec.Subsections[0].ChildCount)

	assert.Equal(t, 0, sections[1].SubsectionCount)
	assert.Empty(t, sections[1].Subsections)
}

func TestBuildOverview(t *testing.T) {
	doc := &types.Document{
		Title: "Plan",
		Root:  node("root", "Plan", node("a", "Alpha", node("b", "Beta"))),
	}

	ov := BuildOverview(doc, DefaultLimits())
	assert.Equal(t, "Plan", ov.Title)
	assert.Equal(t, 3, ov.NodeCount)
	assert.Equal(t, 3, ov.MaxDepth)
	assert.Equal(t, len("Plan")+len("Alpha")+len("Beta"), ov.TotalTextLength)
	require.Len(t, ov.KeySections, 1)
	assert.Equal(t, "Alpha", ov.Hierarchy.Children[0].Title)
}

func scenarioTree() *types.Node {
	return node("root", "測試計畫",
		node("s1", "Account",
			node("s1a", "Login test"),
			node("s1b", "Logout"),
			node("s1c", "Profile"),
		),
		node("s2", "Search feature",
			node("s2a", "Search by keyword"),
		),
		node("s3", "Payments",
			node("s3a", "Refund"),
			node("s3b", "Invoices"),
			node("s3c", "Receipts"),
			node("s3d", "Taxes"),
		),
		node("s4", "About"),
		node("s5", "其他",
			node("s5a", "登入功能驗證"),
		),
	)
}

func TestExtractScenarios_IncludesTopSections(t *testing.T) {
	got := ExtractScenarios(scenarioTree(), 20, DefaultScoringTable())

	sections := map[string]bool{}
	for _, s := range got {
		if s.Source == SourceSection {
			sections[s.ID] = true
		}
	}
	// the three largest branches by descendant count
	assert.Equal(t, map[string]bool{"s3": true, "s1": true, "s2": true}, sections)
}

func TestExtractScenarios_Ordering(t *testing.T) {
	got := ExtractScenarios(scenarioTree(), 20, DefaultScoringTable())
	require.NotEmpty(t, got)

	for i := 1; i < len(got); i++ {
		prev, cur := got[i-1], got[i]
		if prev.Priority == cur.Priority {
			assert.LessOrEqual(t, prev.Depth, cur.Depth)
		} else {
			assert.Greater(t, prev.Priority, cur.Priority)
		}
	}
}

func TestExtractScenarios_BilingualMatches(t *testing.T) {
	got := ExtractScenarios(scenarioTree(), 20, DefaultScoringTable())

	byID := map[string]Scenario{}
	for _, s := range got {
		byID[s.ID] = s
	}

	require.Contains(t, byID, "s5a")
	assert.ElementsMatch(t, []string{"功能", "登入", "驗證"}, byID["s5a"].MatchedTerms)
	assert.Equal(t, "測試計畫 > 其他 > 登入功能驗證", byID["s5a"].Path)

	require.Contains(t, byID, "s1a")
	assert.Equal(t, SourceKeyword, byID["s1a"].Source)

	assert.NotContains(t, byID, "root", "the root is never a scenario")
	assert.NotContains(t, byID, "s4")
	assert.NotContains(t, byID, "s3b")
}

func TestExtractScenarios_NoDuplicateSections(t *testing.T) {
	got := ExtractScenarios(scenarioTree(), 20, DefaultScoringTable())

	seen := map[string]int{}
	for _, s := range got {
		seen[s.ID]++
	}
	for id, n := range seen {
		assert.Equal(t, 1, n, id)
	}
}

func TestExtractScenarios_Cap(t *testing.T) {
	got := ExtractScenarios(scenarioTree(), 2, DefaultScoringTable())
	assert.Len(t, got, 2)
	for _, s := range got {
		assert.Equal(t, SourceSection, s.Source)
	}
}

func TestExtractScenarios_CustomTable(t *testing.T) {
	table := ScoringTable{Terms: []Term{{Text: "REFUND", Weight: 10}}, DepthBonus: 0}

	got := ExtractScenarios(scenarioTree(), 5, table)
	require.Len(t, got, 1)
	assert.Equal(t, "s3a", got[0].ID)
	assert.Equal(t, 10, got[0].Priority)
}

func TestFindContext(t *testing.T) {
	root := scenarioTree()

	ctx, ok := FindContext(root, "s1b", true)
	require.True(t, ok)
	assert.Equal(t, "Logout", ctx.Node.Title)
	assert.Equal(t, 2, ctx.Node.Depth)
	assert.Equal(t, "測試計畫 > Account > Logout", ctx.Node.Path)
	require.NotNil(t, ctx.Parent)
	assert.Equal(t, "s1", ctx.Parent.ID)
	assert.Equal(t, []NodeRef{{ID: "s1a", Title: "Login test"}, {ID: "s1c", Title: "Profile"}}, ctx.Siblings)
	assert.Empty(t, ctx.Children)

	ctx, ok = FindContext(root, "s1", false)
	require.True(t, ok)
	assert.Len(t, ctx.Children, 3)
	assert.Nil(t, ctx.Siblings)

	ctx, ok = FindContext(root, "root", true)
	require.True(t, ok)
	assert.Nil(t, ctx.Parent)
	assert.Nil(t, ctx.Siblings)

	_, ok = FindContext(root, "missing", false)
	assert.False(t, ok)
}

func TestSummarize_NodeBudget(t *testing.T) {
	root := wide("r", 10)
	for _, c := range root.Children {
		for i := 0; i < 10; i++ {
			c.Children = append(c.Children, node(fmt.Sprint(c.ID, "-", i), "leaf"))
		}
	}

	s := Summarize(root, Limits{MaxNodes: 21})

	total := 0
	var count func(n *SummaryNode)
	count = func(n *SummaryNode) {
		total++
		for _, c := range n.Children {
			count(c)
		}
	}
	count(s)

	assert.Equal(t, 21, total)
	assert.Len(t, s.Children, 10, "first level is filled before deeper ones")
	assert.Len(t, s.Children[0].Children, 10)
	assert.Equal(t, 10, s.Children[1].TruncatedChildren)
}

func TestClip(t *testing.T) {
	assert.Equal(t, "short", clip("short", 10))
	assert.Equal(t, "abc...", clip("abcdef", 3))
	// 2 bytes would split the first character
	assert.Equal(t, "...", clip("測試", 2))
	assert.Equal(t, "測...", clip("測試", 4))
}
