package cst

import (
	"sync/atomic"

	"github.com/yaklabco/cedar/pkg/language"
)

// Subtree is the immutable node type underlying every tree node. It is a
// small value: either an inline leaf packed directly into the struct or a
// handle onto refcounted heap data. Consumers cannot observe which
// representation a subtree uses.
type Subtree struct {
	d      *subtreeData
	inline inlineLeaf
}

// inlineLeaf packs a tiny single-line token without heap allocation.
type inlineLeaf struct {
	valid          bool
	symbol         language.Symbol
	parseState     language.StateID
	paddingBytes   uint8
	paddingRows    uint8
	paddingCols    uint8
	sizeBytes      uint8
	lookaheadBytes uint8
	flags          subtreeFlags
}

type subtreeFlags uint16

const (
	flagVisible subtreeFlags = 1 << iota
	flagNamed
	flagExtra
	flagHasChanges
	flagHasExternalTokens
	flagMissing
	flagKeyword
	flagFragileLeft
	flagFragileRight
)

type subtreeData struct {
	refCount atomic.Int32

	symbol     language.Symbol
	parseState language.StateID
	production language.ProductionID
	flags      subtreeFlags

	padding        Length
	size           Length
	lookaheadBytes uint32

	errorCost         uint32
	dynamicPrecedence int32

	visibleChildCount      uint32
	namedChildCount        uint32
	visibleDescendantCount uint32

	firstLeafSymbol     language.Symbol
	firstLeafParseState language.StateID

	children []Subtree

	// Leaf-only payloads.
	externalState      []byte
	includedRangeIndex uint32
}

// IsEmpty reports whether this is the zero Subtree.
func (s Subtree) IsEmpty() bool { return s.d == nil && !s.inline.valid }

// IsLeaf reports whether the subtree has no children.
func (s Subtree) IsLeaf() bool { return s.d == nil || len(s.d.children) == 0 }

// Same reports representation identity: heap subtrees compare by pointer,
// inline leaves by value. Used by tests asserting incremental reuse.
func (s Subtree) Same(o Subtree) bool {
	if s.d != nil || o.d != nil {
		return s.d == o.d
	}
	return s.inline == o.inline
}

// Symbol returns the grammar symbol.
func (s Subtree) Symbol() language.Symbol {
	if s.d == nil {
		return s.inline.symbol
	}
	return s.d.symbol
}

// ParseState returns the state the subtree was produced in.
func (s Subtree) ParseState() language.StateID {
	if s.d == nil {
		return s.inline.parseState
	}
	return s.d.parseState
}

// Production returns the production that built an internal node.
func (s Subtree) Production() language.ProductionID {
	if s.d == nil {
		return 0
	}
	return s.d.production
}

// Padding returns the whitespace span preceding the subtree's content.
func (s Subtree) Padding() Length {
	if s.d == nil {
		return Length{
			Bytes: uint32(s.inline.paddingBytes),
			Extent: Point{
				Row:    uint32(s.inline.paddingRows),
				Column: uint32(s.inline.paddingCols),
			},
		}
	}
	return s.d.padding
}

// Size returns the content span, excluding padding.
func (s Subtree) Size() Length {
	if s.d == nil {
		return Length{
			Bytes:  uint32(s.inline.sizeBytes),
			Extent: Point{Column: uint32(s.inline.sizeBytes)},
		}
	}
	return s.d.size
}

// TotalLength returns padding plus content.
func (s Subtree) TotalLength() Length { return s.Padding().Add(s.Size()) }

// LookaheadBytes returns how many bytes past the content end the lexer
// examined while recognizing the subtree's last token.
func (s Subtree) LookaheadBytes() uint32 {
	if s.d == nil {
		return uint32(s.inline.lookaheadBytes)
	}
	return s.d.lookaheadBytes
}

// ErrorCost returns the accumulated recovery cost.
func (s Subtree) ErrorCost() uint32 {
	if s.d == nil {
		return 0
	}
	return s.d.errorCost
}

// DynamicPrecedence returns the accumulated dynamic precedence.
func (s Subtree) DynamicPrecedence() int32 {
	if s.d == nil {
		return 0
	}
	return s.d.dynamicPrecedence
}

// ChildCount returns the number of direct children.
func (s Subtree) ChildCount() int {
	if s.d == nil {
		return 0
	}
	return len(s.d.children)
}

// Child returns the i'th direct child.
func (s Subtree) Child(i int) Subtree {
	if s.d == nil || i < 0 || i >= len(s.d.children) {
		return Subtree{}
	}
	return s.d.children[i]
}

// Children returns the shared child slice. Callers must not mutate it.
func (s Subtree) Children() []Subtree {
	if s.d == nil {
		return nil
	}
	return s.d.children
}

// VisibleChildCount counts children that surface in the visible tree,
// alias adjustments included.
func (s Subtree) VisibleChildCount() uint32 {
	if s.d == nil {
		return 0
	}
	return s.d.visibleChildCount
}

// NamedChildCount counts visible named children.
func (s Subtree) NamedChildCount() uint32 {
	if s.d == nil {
		return 0
	}
	return s.d.namedChildCount
}

// VisibleDescendantCount counts visible nodes in the subtree, including
// the subtree itself when visible.
func (s Subtree) VisibleDescendantCount() uint32 {
	if s.d == nil {
		if s.inline.flags&flagVisible != 0 {
			return 1
		}
		return 0
	}
	return s.d.visibleDescendantCount
}

func (s Subtree) flagSet(f subtreeFlags) bool {
	if s.d == nil {
		return s.inline.flags&f != 0
	}
	return s.d.flags&f != 0
}

// Visible reports whether the subtree surfaces as a tree node under its
// own metadata (a parent alias may override this).
func (s Subtree) Visible() bool { return s.flagSet(flagVisible) }

// Named reports whether the subtree is a named rule.
func (s Subtree) Named() bool { return s.flagSet(flagNamed) }

// Extra reports whether the subtree is an extra (whitespace/comment).
func (s Subtree) Extra() bool { return s.flagSet(flagExtra) }

// HasChanges reports whether an edit touched the subtree since the last
// parse; changed subtrees are never reused.
func (s Subtree) HasChanges() bool { return s.flagSet(flagHasChanges) }

// HasExternalTokens reports whether any descendant token came from the
// external scanner.
func (s Subtree) HasExternalTokens() bool { return s.flagSet(flagHasExternalTokens) }

// IsMissing reports whether the subtree is a zero-width token inserted by
// error recovery.
func (s Subtree) IsMissing() bool { return s.flagSet(flagMissing) }

// IsKeyword reports whether the token was reclassified via the keyword
// DFA.
func (s Subtree) IsKeyword() bool { return s.flagSet(flagKeyword) }

// IsErrorNode reports whether the subtree is an ERROR node.
func (s Subtree) IsErrorNode() bool { return s.Symbol() == language.SymbolError }

// HasError reports whether the subtree contains any ERROR or MISSING
// content.
func (s Subtree) HasError() bool { return s.ErrorCost() > 0 }

// FragileLeft reports that the left boundary depends on lookahead that
// edits may invalidate, disqualifying reuse at that edge.
func (s Subtree) FragileLeft() bool { return s.flagSet(flagFragileLeft) }

// FragileRight is the right-edge counterpart of FragileLeft.
func (s Subtree) FragileRight() bool { return s.flagSet(flagFragileRight) }

// ExternalState returns the serialized external scanner state captured
// after the subtree's last external token.
func (s Subtree) ExternalState() []byte {
	if s.d == nil {
		return nil
	}
	return s.d.externalState
}

// IncludedRangeIndex returns which included range produced a leaf.
func (s Subtree) IncludedRangeIndex() uint32 {
	if s.d == nil {
		return 0
	}
	return s.d.includedRangeIndex
}

// FirstLeafSymbol returns the symbol of the leftmost leaf.
func (s Subtree) FirstLeafSymbol() language.Symbol {
	if s.d == nil {
		return s.inline.symbol
	}
	return s.d.firstLeafSymbol
}

// FirstLeafParseState returns the parse state of the leftmost leaf.
func (s Subtree) FirstLeafParseState() language.StateID {
	if s.d == nil {
		return s.inline.parseState
	}
	return s.d.firstLeafParseState
}

// Retain increments the refcount. Inline leaves are values and need no
// accounting.
func (s Subtree) Retain() Subtree {
	if s.d != nil {
		s.d.refCount.Add(1)
	}
	return s
}

// Release decrements the refcount, iteratively releasing children when a
// subtree dies. Safe to call from multiple goroutines holding independent
// tree handles.
func (s Subtree) Release() {
	if s.d == nil {
		return
	}
	stack := []*subtreeData{s.d}
	for len(stack) > 0 {
		d := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if d.refCount.Add(-1) != 0 {
			continue
		}
		for _, child := range d.children {
			if child.d != nil {
				stack = append(stack, child.d)
			}
		}
		d.children = nil
		d.externalState = nil
	}
}
