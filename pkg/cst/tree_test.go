package cst_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yaklabco/cedar/internal/grammars"
	"github.com/yaklabco/cedar/pkg/cst"
	"github.com/yaklabco/cedar/pkg/parser"
)

func parseWith(t *testing.T, grammar, source string) *cst.Tree {
	t.Helper()
	lang, err := grammars.Get(grammar)
	require.NoError(t, err)
	p := parser.NewParser()
	require.NoError(t, p.SetLanguage(lang))
	tree, err := p.Parse([]byte(source), nil)
	require.NoError(t, err)
	return tree
}

func TestTreeBasics(t *testing.T) {
	t.Parallel()

	tree := parseWith(t, "arithmetic", "1+2")
	assert.Equal(t, "arithmetic", tree.Language().Name())
	require.Len(t, tree.IncludedRanges(), 1)
	assert.Equal(t, uint32(3), tree.IncludedRanges()[0].EndByte)

	clone := tree.Clone()
	assert.True(t, clone.RootNode().Subtree().Same(tree.RootNode().Subtree()))
}

func TestEditMarksSpineAndShiftsExtents(t *testing.T) {
	t.Parallel()

	tree := parseWith(t, "arithmetic", "1+2")
	edited := tree.Edit(cst.InputEdit{
		StartByte: 2, OldEndByte: 3, NewEndByte: 4,
		StartPosition:  cst.Point{Column: 2},
		OldEndPosition: cst.Point{Column: 3},
		NewEndPosition: cst.Point{Column: 4},
	})

	// The original is untouched.
	assert.False(t, tree.RootNode().HasChanges())
	assert.Equal(t, uint32(3), tree.RootNode().EndByte())

	// The edited tree's dirty spine carries has-changes and the new
	// extents.
	root := edited.RootNode()
	assert.True(t, root.HasChanges())
	assert.Equal(t, uint32(4), root.EndByte())

	sum := root.Child(0)
	assert.True(t, sum.HasChanges())
	assert.True(t, sum.Child(2).HasChanges(), "edited number is marked")

	// Subtrees left of the edit are shared, not cloned.
	assert.False(t, sum.Child(0).HasChanges())
	assert.False(t, sum.Child(1).HasChanges())
	assert.True(t, sum.Child(0).Subtree().Same(tree.RootNode().Child(0).Child(0).Subtree()))
}

func TestEditBeforeNodeShiftsPadding(t *testing.T) {
	t.Parallel()

	tree := parseWith(t, "words", "a b")
	// Insert two bytes inside the gap between the words.
	edited := tree.Edit(cst.InputEdit{
		StartByte: 2, OldEndByte: 2, NewEndByte: 4,
		StartPosition:  cst.Point{Column: 2},
		OldEndPosition: cst.Point{Column: 2},
		NewEndPosition: cst.Point{Column: 4},
	})

	root := edited.RootNode()
	assert.Equal(t, uint32(5), root.EndByte())

	// The second word shifted right by two bytes.
	children := root.Children()
	last := children[len(children)-1]
	assert.Equal(t, "word", last.Kind())
	assert.Equal(t, uint32(4), last.StartByte())
	assert.Equal(t, uint32(5), last.EndByte())
}

func TestEditAdjustsIncludedRanges(t *testing.T) {
	t.Parallel()

	lang, err := grammars.Words()
	require.NoError(t, err)
	p := parser.NewParser()
	require.NoError(t, p.SetLanguage(lang))
	require.NoError(t, p.SetIncludedRanges([]cst.Range{{
		StartByte: 0, EndByte: 5, EndPoint: cst.Point{Column: 5},
	}}))
	tree, err := p.Parse([]byte("a b c"), nil)
	require.NoError(t, err)

	edited := tree.Edit(cst.InputEdit{
		StartByte: 0, OldEndByte: 0, NewEndByte: 2,
		NewEndPosition: cst.Point{Column: 2},
	})
	ranges := edited.IncludedRanges()
	require.Len(t, ranges, 1)
	assert.Equal(t, uint32(7), ranges[0].EndByte)
}

func TestWalkReturnsRootCursor(t *testing.T) {
	t.Parallel()

	tree := parseWith(t, "arithmetic", "1+2")
	cursor := tree.Walk()
	assert.Equal(t, "source", cursor.Node().Kind())
}

func TestNodeNavigation(t *testing.T) {
	t.Parallel()

	tree := parseWith(t, "arithmetic", "1+2+3")
	root := tree.RootNode()
	outer := root.Child(0)
	inner := outer.Child(0)

	assert.Equal(t, "sum", outer.Kind())
	assert.Equal(t, "sum", inner.Kind())

	// Parent and siblings.
	assert.True(t, inner.Parent().Same(outer))
	assert.True(t, outer.Parent().Same(root))
	assert.True(t, root.Parent().IsZero())

	plus := inner.NextSibling()
	assert.Equal(t, "+", plus.Kind())
	assert.True(t, plus.PrevSibling().Same(inner))

	num3 := plus.NextNamedSibling()
	assert.Equal(t, "number", num3.Kind())
	assert.Equal(t, uint32(4), num3.StartByte())

	// Named children skip the anonymous operator.
	assert.Equal(t, uint32(2), outer.NamedChildCount())
	assert.True(t, outer.NamedChild(1).Same(num3))

	// Descendant lookup by byte range.
	num2 := root.DescendantForByteRange(2, 3)
	assert.Equal(t, "number", num2.Kind())
	assert.Equal(t, uint32(2), num2.StartByte())

	named := root.NamedDescendantForByteRange(1, 2)
	assert.True(t, named.IsNamed())

	// Visible-descendant counting: source, 2 sums, 3 numbers, 2 "+".
	assert.Equal(t, uint32(8), root.DescendantCount())
}

func TestNodeContentAndRange(t *testing.T) {
	t.Parallel()

	source := "1+2+3"
	tree := parseWith(t, "arithmetic", source)
	inner := tree.RootNode().Child(0).Child(0)

	assert.Equal(t, []byte("1+2"), inner.Content([]byte(source)))
	r := inner.Range()
	assert.Equal(t, uint32(0), r.StartByte)
	assert.Equal(t, uint32(3), r.EndByte)
	assert.Equal(t, cst.Point{Column: 3}, r.EndPoint)
}

func TestCursorTraversal(t *testing.T) {
	t.Parallel()

	tree := parseWith(t, "arithmetic", "1+2+3")
	cursor := tree.Walk()

	require.True(t, cursor.GotoFirstChild()) // sum (outer)
	assert.Equal(t, "sum", cursor.Node().Kind())
	assert.Equal(t, uint32(1), cursor.Depth())

	require.True(t, cursor.GotoFirstChild()) // sum (inner)
	assert.Equal(t, "sum", cursor.Node().Kind())
	assert.Equal(t, "left", cursor.FieldName())

	require.True(t, cursor.GotoNextSibling()) // "+"
	assert.Equal(t, "+", cursor.Node().Kind())
	assert.Zero(t, cursor.FieldID())

	require.True(t, cursor.GotoNextSibling()) // number "3"
	assert.Equal(t, "number", cursor.Node().Kind())
	assert.Equal(t, "right", cursor.FieldName())
	assert.False(t, cursor.GotoNextSibling())

	require.True(t, cursor.GotoPreviousSibling())
	assert.Equal(t, "+", cursor.Node().Kind())

	require.True(t, cursor.GotoParent())
	assert.Equal(t, "sum", cursor.Node().Kind())
	require.True(t, cursor.GotoParent())
	assert.Equal(t, "source", cursor.Node().Kind())
	assert.False(t, cursor.GotoParent())
}

func TestCursorLastChildAndByteSeek(t *testing.T) {
	t.Parallel()

	tree := parseWith(t, "arithmetic", "1+2")
	cursor := tree.Walk()

	require.True(t, cursor.GotoFirstChild()) // sum
	require.True(t, cursor.GotoLastChild())
	assert.Equal(t, uint32(2), cursor.Node().StartByte())

	require.True(t, cursor.GotoParent())
	idx := cursor.GotoFirstChildForByte(1)
	assert.Equal(t, 1, idx)
	assert.Equal(t, "+", cursor.Node().Kind())

	cursor.Reset(tree.RootNode())
	assert.Equal(t, "source", cursor.Node().Kind())
	assert.Zero(t, cursor.Depth())
}

func TestCursorPointSeek(t *testing.T) {
	t.Parallel()

	tree := parseWith(t, "words", "ab\ncd")
	cursor := tree.Walk()
	idx := cursor.GotoFirstChildForPoint(cst.Point{Row: 1, Column: 0})
	require.GreaterOrEqual(t, idx, 0)
	assert.Equal(t, cst.Point{Row: 1, Column: 0}, cursor.Node().StartPoint())
}

func TestCursorGotoDescendant(t *testing.T) {
	t.Parallel()

	tree := parseWith(t, "arithmetic", "1+2")
	root := tree.RootNode()

	// Pre-order: 0 source, 1 sum, 2 number, 3 "+", 4 number.
	wantKinds := []string{"source", "sum", "number", "+", "number"}
	for i, want := range wantKinds {
		cursor := tree.Walk()
		require.True(t, cursor.GotoDescendant(uint32(i)), "descendant %d", i)
		assert.Equal(t, want, cursor.Node().Kind(), "descendant %d", i)
	}

	cursor := tree.Walk()
	assert.False(t, cursor.GotoDescendant(root.DescendantCount()))
}

func TestCursorCopyIsIndependent(t *testing.T) {
	t.Parallel()

	tree := parseWith(t, "arithmetic", "1+2")
	cursor := tree.Walk()
	require.True(t, cursor.GotoFirstChild())

	clone := cursor.Copy()
	require.True(t, clone.GotoFirstChild())

	assert.Equal(t, "sum", cursor.Node().Kind())
	assert.Equal(t, "number", clone.Node().Kind())
}
