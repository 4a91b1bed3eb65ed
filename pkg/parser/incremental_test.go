package parser_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yaklabco/cedar/pkg/cst"
)

// editReplace builds the InputEdit for replacing [start, oldEnd) with
// newLen bytes in single-row content.
func editReplace(start, oldEnd, newLen uint32) cst.InputEdit {
	return cst.InputEdit{
		StartByte:      start,
		OldEndByte:     oldEnd,
		NewEndByte:     start + newLen,
		StartPosition:  cst.Point{Column: start},
		OldEndPosition: cst.Point{Column: oldEnd},
		NewEndPosition: cst.Point{Column: start + newLen},
	}
}

func TestIncrementalReuseSharesUntouchedLeaves(t *testing.T) {
	t.Parallel()

	p := newParser(t, "arithmetic")
	oldTree, err := p.Parse([]byte("1+2"), nil)
	require.NoError(t, err)

	oldSum := oldTree.RootNode().Child(0)
	oldNum1 := oldSum.Child(0)
	oldPlus := oldSum.Child(1)

	// Replace "2" with "34".
	edited := oldTree.Edit(editReplace(2, 3, 2))
	newTree, err := p.Parse([]byte("1+34"), edited)
	require.NoError(t, err)

	stats := p.Stats()

	// Only the changed number and END were lexed; "1" and "+" were
	// shifted whole from the old tree.
	assert.Equal(t, uint64(2), stats.TokensLexed)
	assert.Equal(t, uint64(2), stats.SubtreesReused)

	newSum := newTree.RootNode().Child(0)
	assert.True(t, newSum.Child(0).Subtree().Same(oldNum1.Subtree()))
	assert.True(t, newSum.Child(1).Subtree().Same(oldPlus.Subtree()))

	num34 := newSum.Child(2)
	assert.Equal(t, "number", num34.Kind())
	assert.Equal(t, uint32(2), num34.StartByte())
	assert.Equal(t, uint32(4), num34.EndByte())
	assert.False(t, newTree.RootNode().HasError())
}

func TestEditRoundTripEquivalence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		before  string
		after   string
		edit    cst.InputEdit
		grammar string
	}{
		{
			name: "replace number", grammar: "arithmetic",
			before: "1+2", after: "1+34",
			edit: editReplace(2, 3, 2),
		},
		{
			name: "insert operand", grammar: "arithmetic",
			before: "1+2", after: "1+2+3",
			edit: editReplace(3, 3, 2),
		},
		{
			name: "delete word", grammar: "words",
			before: "a b c", after: "a c",
			edit: editReplace(2, 4, 0),
		},
		{
			name: "insert word", grammar: "words",
			before: "a c", after: "a b c",
			edit: editReplace(2, 2, 2),
		},
		{
			name: "edit first token", grammar: "arithmetic",
			before: "1+2+3", after: "9+2+3",
			edit: editReplace(0, 1, 1),
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			p := newParser(t, testCase.grammar)
			oldTree, err := p.Parse([]byte(testCase.before), nil)
			require.NoError(t, err)

			incremental, err := p.Parse([]byte(testCase.after), oldTree.Edit(testCase.edit))
			require.NoError(t, err)

			fresh, err := newParser(t, testCase.grammar).Parse([]byte(testCase.after), nil)
			require.NoError(t, err)

			assert.Equal(t,
				fresh.RootNode().ToSexp(),
				incremental.RootNode().ToSexp(),
				"incremental parse must match a cold parse")
			assert.Equal(t, fresh.RootNode().EndByte(), incremental.RootNode().EndByte())
		})
	}
}

func TestChangedRangesAfterDeletion(t *testing.T) {
	t.Parallel()

	p := newParser(t, "words")
	oldTree, err := p.Parse([]byte("a b c"), nil)
	require.NoError(t, err)

	// Delete "b " (bytes 2..4).
	edited := oldTree.Edit(editReplace(2, 4, 0))
	newTree, err := p.Parse([]byte("a c"), edited)
	require.NoError(t, err)

	ranges := edited.ChangedRanges(newTree)
	require.Len(t, ranges, 1)
	assert.Equal(t, uint32(2), ranges[0].StartByte)
	assert.Equal(t, uint32(3), ranges[0].EndByte)
}

func TestChangedRangesAfterInsertion(t *testing.T) {
	t.Parallel()

	p := newParser(t, "words")
	oldTree, err := p.Parse([]byte("a c"), nil)
	require.NoError(t, err)

	edited := oldTree.Edit(editReplace(2, 2, 2))
	newTree, err := p.Parse([]byte("a b c"), edited)
	require.NoError(t, err)

	ranges := edited.ChangedRanges(newTree)
	require.NotEmpty(t, ranges)

	// Sorted, non-overlapping, and covering the insertion point.
	var prevEnd uint32
	covered := false
	for _, r := range ranges {
		assert.LessOrEqual(t, prevEnd, r.StartByte)
		assert.Less(t, r.StartByte, r.EndByte)
		if r.StartByte <= 2 && 2 < r.EndByte {
			covered = true
		}
		prevEnd = r.EndByte
	}
	assert.True(t, covered, "ranges %v must cover the inserted region", ranges)

	// The untouched first word is not reported.
	assert.Positive(t, ranges[0].StartByte)
}

func TestChangedRangesIdenticalTrees(t *testing.T) {
	t.Parallel()

	p := newParser(t, "words")
	first, err := p.Parse([]byte("a b c"), nil)
	require.NoError(t, err)
	second, err := newParser(t, "words").Parse([]byte("a b c"), nil)
	require.NoError(t, err)

	assert.Empty(t, first.ChangedRanges(second))
}

func TestReuseLowerBound(t *testing.T) {
	t.Parallel()

	p := newParser(t, "words")
	source := []byte(strings.Repeat("alpha beta gamma ", 64))
	oldTree, err := p.Parse(source, nil)
	require.NoError(t, err)

	// Replace one byte in the middle of the final word.
	pos := uint32(len(source) - 3)
	edited := oldTree.Edit(editReplace(pos, pos+1, 1))

	changedSource := append([]byte(nil), source...)
	changedSource[pos] = 'X'
	_, err = p.Parse(changedSource, edited)
	require.NoError(t, err)

	// Every maximal unchanged span left of the edit shares subtrees
	// with the old tree; the prefix is reused wholesale.
	assert.Positive(t, p.Stats().SubtreesReused)
	assert.Less(t, p.Stats().TokensLexed, uint64(8))
}

func TestIncrementalReparseIsSublinear(t *testing.T) {
	t.Parallel()

	// Roughly 1 MB of words.
	source := []byte(strings.Repeat("lorem ipsum dolor sit amet ", 40000))

	p := newParser(t, "words")
	oldTree, err := p.Parse(source, nil)
	require.NoError(t, err)
	coldOps := p.Stats().Operations
	require.Positive(t, coldOps)

	// Flip a single byte near the end.
	pos := uint32(len(source) - 10)
	edited := oldTree.Edit(editReplace(pos, pos+1, 1))
	changed := append([]byte(nil), source...)
	changed[pos] = 'x'

	newTree, err := p.Parse(changed, edited)
	require.NoError(t, err)
	assert.False(t, newTree.RootNode().HasError())

	incrementalOps := p.Stats().Operations
	assert.Less(t, incrementalOps*100, coldOps,
		"re-parse after a one-byte edit must be far cheaper than the cold parse (cold=%d incremental=%d)",
		coldOps, incrementalOps)
}
