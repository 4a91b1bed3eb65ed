package cst

import (
	"github.com/yaklabco/cedar/pkg/language"
)

// Tree owns a root subtree together with the language and included ranges
// it was parsed with. Trees are immutable: Edit returns a new handle that
// shares every unaffected subtree with the original.
type Tree struct {
	root           Subtree
	lang           *language.Language
	includedRanges []Range
}

// NewTree wraps a root subtree produced by a parser. The tree takes over
// the caller's reference to root.
func NewTree(root Subtree, lang *language.Language, includedRanges []Range) *Tree {
	return &Tree{root: root, lang: lang, includedRanges: includedRanges}
}

// RootNode returns the root of the visible tree.
func (t *Tree) RootNode() Node {
	return Node{tree: t, s: t.root}
}

// Language returns the language the tree was parsed with.
func (t *Tree) Language() *language.Language { return t.lang }

// IncludedRanges returns the ranges the parser consumed.
func (t *Tree) IncludedRanges() []Range { return t.includedRanges }

// RootSubtree exposes the raw root for the parser's reuse machinery.
func (t *Tree) RootSubtree() Subtree { return t.root }

// Clone returns a new handle on the same root. Cheap: a refcount bump.
func (t *Tree) Clone() *Tree {
	t.root.Retain()
	return &Tree{root: t.root, lang: t.lang, includedRanges: t.includedRanges}
}

// Walk returns a cursor positioned on the root node.
func (t *Tree) Walk() *TreeCursor {
	return NewTreeCursor(t.RootNode())
}

// Edit applies an input edit, returning a new tree whose dirty spine is
// reallocated and marked has-changes while all other subtrees are shared
// with the receiver. The receiver is unchanged.
func (t *Tree) Edit(e InputEdit) *Tree {
	edit := subtreeEdit{
		start:  Length{Bytes: e.StartByte, Extent: e.StartPosition},
		oldEnd: Length{Bytes: e.OldEndByte, Extent: e.OldEndPosition},
		newEnd: Length{Bytes: e.NewEndByte, Extent: e.NewEndPosition},
	}
	root := editSubtree(t.root, edit)
	ranges := make([]Range, len(t.includedRanges))
	for i, r := range t.includedRanges {
		ranges[i] = adjustRange(r, e)
	}
	return &Tree{root: root, lang: t.lang, includedRanges: ranges}
}

type subtreeEdit struct {
	start  Length
	oldEnd Length
	newEnd Length
}

// editSubtree rewrites the spine a relative edit intersects, returning a
// node that shares every untouched child with the original.
func editSubtree(s Subtree, edit subtreeEdit) Subtree {
	padding := s.Padding()
	size := s.Size()
	total := padding.Add(size)
	isPureInsertion := edit.oldEnd.Bytes == edit.start.Bytes

	// The lexer examined bytes [total, total+lookahead); an edit at or
	// past that window cannot change how this subtree lexed.
	endByte := total.Bytes + s.LookaheadBytes()
	if edit.start.Bytes >= endByte {
		return s
	}

	switch {
	// The edit is entirely within the space before this subtree: shift
	// without resizing.
	case edit.oldEnd.Bytes <= padding.Bytes:
		padding = edit.newEnd.Add(padding.Sub(edit.oldEnd))

	// The edit starts in the space before this subtree and extends into
	// it: shrink the content to compensate.
	case edit.start.Bytes < padding.Bytes:
		removed := edit.oldEnd.Sub(padding)
		if removed.Bytes > size.Bytes {
			size = Length{}
		} else {
			size = size.Sub(removed)
		}
		padding = edit.newEnd

	// A pure insertion right at the start shifts the subtree over.
	case edit.start.Bytes == padding.Bytes && isPureInsertion:
		padding = edit.newEnd

	// The edit is within the subtree: resize it.
	case edit.start.Bytes < total.Bytes ||
		(edit.start.Bytes == total.Bytes && isPureInsertion):
		oldEnd := edit.oldEnd
		if oldEnd.Bytes > total.Bytes {
			oldEnd = total
		}
		after := total.Sub(oldEnd)
		size = edit.newEnd.Add(after).Sub(padding)
	}

	d := materialize(s)
	d.padding = padding
	d.size = size
	d.flags |= flagHasChanges

	if len(d.children) > 0 {
		children := make([]Subtree, len(d.children))

		var childLeft, childRight Length
		done := false
		for i, child := range d.children {
			childSize := child.TotalLength()
			childLeft = childRight
			childRight = childLeft.Add(childSize)

			// Children whose lookahead window ends at or before the
			// edit are unaffected, and children that start after
			// the edited region are position-derived and need no
			// rewrite.
			affected := !done &&
				childRight.Bytes+child.LookaheadBytes() > edit.start.Bytes
			if affected &&
				(childLeft.Bytes > edit.oldEnd.Bytes ||
					(childLeft.Bytes == edit.oldEnd.Bytes && childSize.Bytes > 0 && i > 0)) {
				affected = false
				done = true
			}

			if !affected {
				// Shared with the original tree.
				children[i] = child.Retain()
				continue
			}

			childEdit := subtreeEdit{
				start:  clampSub(edit.start, childLeft),
				oldEnd: clampSub(edit.oldEnd, childLeft),
				newEnd: clampSub(edit.newEnd, childLeft),
			}
			if edit.oldEnd.Bytes > childRight.Bytes {
				childEdit.oldEnd = childSize
			}
			edited := editSubtree(child, childEdit)
			if edited.Same(child) {
				edited.Retain()
			}
			children[i] = edited
		}
		d.children = children
	}

	return Subtree{d: d}
}

func clampSub(a, b Length) Length {
	if a.Bytes <= b.Bytes {
		return Length{}
	}
	return a.Sub(b)
}

// materialize clones heap data (or expands an inline leaf) so the caller
// may mutate the copy. The original is untouched.
func materialize(s Subtree) *subtreeData {
	if s.d == nil {
		leaf := s.inline
		d := &subtreeData{
			symbol:     leaf.symbol,
			parseState: leaf.parseState,
			padding: Length{
				Bytes:  uint32(leaf.paddingBytes),
				Extent: Point{Row: uint32(leaf.paddingRows), Column: uint32(leaf.paddingCols)},
			},
			size: Length{
				Bytes:  uint32(leaf.sizeBytes),
				Extent: Point{Column: uint32(leaf.sizeBytes)},
			},
			lookaheadBytes:      uint32(leaf.lookaheadBytes),
			flags:               leaf.flags,
			firstLeafSymbol:     leaf.symbol,
			firstLeafParseState: leaf.parseState,
		}
		if leaf.flags&flagVisible != 0 {
			d.visibleDescendantCount = 1
		}
		d.refCount.Store(1)
		return d
	}

	src := s.d
	d := &subtreeData{
		symbol:                 src.symbol,
		parseState:             src.parseState,
		production:             src.production,
		flags:                  src.flags,
		padding:                src.padding,
		size:                   src.size,
		lookaheadBytes:         src.lookaheadBytes,
		errorCost:              src.errorCost,
		dynamicPrecedence:      src.dynamicPrecedence,
		visibleChildCount:      src.visibleChildCount,
		namedChildCount:        src.namedChildCount,
		visibleDescendantCount: src.visibleDescendantCount,
		firstLeafSymbol:        src.firstLeafSymbol,
		firstLeafParseState:    src.firstLeafParseState,
		children:               src.children,
		externalState:          src.externalState,
		includedRangeIndex:     src.includedRangeIndex,
	}
	d.refCount.Store(1)
	return d
}

// adjustRange shifts a range's coordinates across an edit.
func adjustRange(r Range, e InputEdit) Range {
	r.StartByte, r.StartPoint = adjustPosition(r.StartByte, r.StartPoint, e)
	r.EndByte, r.EndPoint = adjustPosition(r.EndByte, r.EndPoint, e)
	if r.EndByte < r.StartByte {
		r.EndByte = r.StartByte
		r.EndPoint = r.StartPoint
	}
	return r
}

func adjustPosition(b uint32, p Point, e InputEdit) (uint32, Point) {
	switch {
	case b >= e.OldEndByte:
		delta := b - e.OldEndByte
		newByte := e.NewEndByte + delta
		newPoint := e.NewEndPosition.Add(p.Sub(e.OldEndPosition))
		return newByte, newPoint
	case b > e.StartByte:
		return e.NewEndByte, e.NewEndPosition
	default:
		return b, p
	}
}

// leafSpan records one token's absolute extent for tree diffing.
type leafSpan struct {
	symbol     language.Symbol
	startByte  uint32
	endByte    uint32
	startPoint Point
	endPoint   Point
	changed    bool
	missing    bool
}

func collectLeaves(root Subtree) []leafSpan {
	var leaves []leafSpan
	type frame struct {
		s        Subtree
		position Length
	}
	stack := []frame{{s: root}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if f.s.IsLeaf() {
			start := f.position.Add(f.s.Padding())
			end := start.Add(f.s.Size())
			if f.s.Size().Bytes == 0 && !f.s.IsMissing() && !f.s.HasChanges() {
				continue
			}
			leaves = append(leaves, leafSpan{
				symbol:     f.s.Symbol(),
				startByte:  start.Bytes,
				endByte:    end.Bytes,
				startPoint: start.Extent,
				endPoint:   end.Extent,
				changed:    f.s.HasChanges(),
				missing:    f.s.IsMissing(),
			})
			continue
		}
		children := f.s.Children()
		position := f.position
		// Push in reverse so children pop in source order.
		offsets := make([]Length, len(children))
		for i, child := range children {
			offsets[i] = position
			position = position.Add(child.TotalLength())
		}
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, frame{s: children[i], position: offsets[i]})
		}
	}
	return leaves
}

// ChangedRanges compares the receiver (an edited tree from a previous
// parse) with a freshly parsed tree and returns the byte ranges in which
// the two disagree. Output is sorted, non-overlapping, and covers every
// textual difference.
func (t *Tree) ChangedRanges(other *Tree) []Range {
	oldLeaves := collectLeaves(t.root)
	newLeaves := collectLeaves(other.root)

	var ranges []Range
	var cur *Range

	extend := func(startByte uint32, startPoint Point, endByte uint32, endPoint Point) {
		if cur != nil && startByte <= cur.EndByte {
			if endByte > cur.EndByte {
				cur.EndByte = endByte
				cur.EndPoint = endPoint
			}
			return
		}
		if cur != nil {
			ranges = append(ranges, *cur)
		}
		cur = &Range{
			StartByte:  startByte,
			EndByte:    endByte,
			StartPoint: startPoint,
			EndPoint:   endPoint,
		}
	}

	i, j := 0, 0
	for i < len(oldLeaves) || j < len(newLeaves) {
		switch {
		case i < len(oldLeaves) && j < len(newLeaves):
			a, b := oldLeaves[i], newLeaves[j]
			if a.symbol == b.symbol &&
				a.startByte == b.startByte &&
				a.endByte == b.endByte &&
				a.missing == b.missing &&
				!a.changed && !b.changed {
				i++
				j++
				continue
			}
			// Mismatch: cover the earlier leaf and advance it.
			if a.endByte <= b.endByte {
				extend(minU32(a.startByte, b.startByte), minPoint(a.startPoint, b.startPoint), a.endByte, a.endPoint)
				i++
			} else {
				extend(minU32(a.startByte, b.startByte), minPoint(a.startPoint, b.startPoint), b.endByte, b.endPoint)
				j++
			}
		case i < len(oldLeaves):
			a := oldLeaves[i]
			extend(a.startByte, a.startPoint, a.endByte, a.endPoint)
			i++
		default:
			b := newLeaves[j]
			extend(b.startByte, b.startPoint, b.endByte, b.endPoint)
			j++
		}
	}
	if cur != nil {
		ranges = append(ranges, *cur)
	}
	return ranges
}

func minU32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}

func minPoint(a, b Point) Point {
	if a.Less(b) {
		return a
	}
	return b
}
