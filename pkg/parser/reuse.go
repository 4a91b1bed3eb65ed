package parser

import (
	"github.com/yaklabco/cedar/pkg/cst"
)

// reusableNode walks the previous (edited) tree left to right, offering
// subtrees whose extents align with the parser's position. The driver
// descends into a subtree when the whole fails but a prefix child might
// qualify, and abandons candidates that edits or fragility disqualify.
type reusableNode struct {
	stack []reusableEntry
}

type reusableEntry struct {
	s        cst.Subtree
	position cst.Length

	// siblings is the parent's child slice; index locates s in it.
	// The root entry has no siblings.
	siblings []cst.Subtree
	index    int
}

func newReusableNode(root cst.Subtree) *reusableNode {
	r := &reusableNode{}
	if !root.IsEmpty() {
		r.stack = append(r.stack, reusableEntry{s: root})
	}
	return r
}

// current returns the subtree under the cursor and its absolute start.
func (r *reusableNode) current() (cst.Subtree, cst.Length, bool) {
	if len(r.stack) == 0 {
		return cst.Subtree{}, cst.Length{}, false
	}
	top := r.stack[len(r.stack)-1]
	return top.s, top.position, true
}

// descend moves to the first child of the current subtree.
func (r *reusableNode) descend() bool {
	if len(r.stack) == 0 {
		return false
	}
	top := r.stack[len(r.stack)-1]
	children := top.s.Children()
	if len(children) == 0 {
		return false
	}
	r.stack = append(r.stack, reusableEntry{
		s:        children[0],
		position: top.position,
		siblings: children,
		index:    0,
	})
	return true
}

// advance moves past the current subtree to the next sibling, climbing
// out of exhausted parents.
func (r *reusableNode) advance() {
	for len(r.stack) > 0 {
		top := r.stack[len(r.stack)-1]
		r.stack = r.stack[:len(r.stack)-1]
		if top.siblings == nil {
			continue
		}
		next := top.index + 1
		if next < len(top.siblings) {
			r.stack = append(r.stack, reusableEntry{
				s:        top.siblings[next],
				position: top.position.Add(top.s.TotalLength()),
				siblings: top.siblings,
				index:    next,
			})
			return
		}
	}
}

// advanceTo positions the cursor on the first subtree starting at or
// after pos, descending through subtrees that straddle it.
func (r *reusableNode) advanceTo(pos uint32) {
	for {
		s, sPos, ok := r.current()
		if !ok {
			return
		}
		end := sPos.Add(s.TotalLength()).Bytes
		switch {
		case end <= pos && s.TotalLength().Bytes > 0:
			r.advance()
		case sPos.Bytes < pos:
			if !r.descend() {
				r.advance()
			}
		default:
			return
		}
	}
}
