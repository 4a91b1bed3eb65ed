package cst

import "github.com/yaklabco/cedar/pkg/language"

// TreeCursor walks a tree's visible nodes. It is a mutable borrow: the
// underlying tree is never modified, and a cursor must not be shared
// across goroutines. Sibling and parent moves are O(1) once a level's
// child list has been resolved.
type TreeCursor struct {
	levels []cursorLevel
}

type cursorLevel struct {
	node Node

	// children caches the resolved visible children; nil until first
	// descent.
	children []childEntry

	// index is this level's position in the parent's child list; -1 at
	// the cursor root.
	index int
}

// NewTreeCursor creates a cursor positioned on node.
func NewTreeCursor(node Node) *TreeCursor {
	c := &TreeCursor{}
	c.Reset(node)
	return c
}

// Reset repositions the cursor on an arbitrary node, reusing the cursor's
// allocation.
func (c *TreeCursor) Reset(node Node) {
	c.levels = c.levels[:0]
	c.levels = append(c.levels, cursorLevel{node: node, index: -1})
}

// Copy returns an independent cursor at the same position.
func (c *TreeCursor) Copy() *TreeCursor {
	clone := &TreeCursor{levels: make([]cursorLevel, len(c.levels))}
	copy(clone.levels, c.levels)
	return clone
}

// Node returns the node the cursor is on.
func (c *TreeCursor) Node() Node {
	return c.top().node
}

// Depth returns how many levels the current node lies below the node the
// cursor was created on or last reset to (0 on that node itself).
func (c *TreeCursor) Depth() uint32 {
	return uint32(len(c.levels) - 1)
}

// FieldID returns the field of the current node within its parent, or 0.
func (c *TreeCursor) FieldID() language.FieldID {
	return c.top().node.field
}

// FieldName returns the field name of the current node within its parent.
func (c *TreeCursor) FieldName() string {
	return c.top().node.FieldName()
}

func (c *TreeCursor) top() *cursorLevel {
	return &c.levels[len(c.levels)-1]
}

func (c *TreeCursor) resolvedChildren() []childEntry {
	top := c.top()
	if top.children == nil {
		top.children = top.node.visibleChildren()
	}
	return top.children
}

// GotoFirstChild moves to the first visible child.
func (c *TreeCursor) GotoFirstChild() bool {
	children := c.resolvedChildren()
	if len(children) == 0 {
		return false
	}
	c.levels = append(c.levels, cursorLevel{node: children[0].node, index: 0})
	return true
}

// GotoLastChild moves to the last visible child.
func (c *TreeCursor) GotoLastChild() bool {
	children := c.resolvedChildren()
	if len(children) == 0 {
		return false
	}
	last := len(children) - 1
	c.levels = append(c.levels, cursorLevel{node: children[last].node, index: last})
	return true
}

// GotoParent moves up one level. Returns false at the cursor root.
func (c *TreeCursor) GotoParent() bool {
	if len(c.levels) <= 1 {
		return false
	}
	c.levels = c.levels[:len(c.levels)-1]
	return true
}

// GotoNextSibling moves to the following sibling.
func (c *TreeCursor) GotoNextSibling() bool {
	if len(c.levels) <= 1 {
		return false
	}
	parent := &c.levels[len(c.levels)-2]
	top := c.top()
	next := top.index + 1
	if next >= len(parent.children) {
		return false
	}
	*top = cursorLevel{node: parent.children[next].node, index: next}
	return true
}

// GotoPreviousSibling moves to the preceding sibling.
func (c *TreeCursor) GotoPreviousSibling() bool {
	if len(c.levels) <= 1 {
		return false
	}
	parent := &c.levels[len(c.levels)-2]
	top := c.top()
	prev := top.index - 1
	if prev < 0 {
		return false
	}
	*top = cursorLevel{node: parent.children[prev].node, index: prev}
	return true
}

// GotoFirstChildForByte moves to the first child whose extent ends after
// the given byte. Returns the child index, or -1 without moving.
func (c *TreeCursor) GotoFirstChildForByte(b uint32) int {
	children := c.resolvedChildren()
	for i, entry := range children {
		if entry.node.EndByte() > b {
			c.levels = append(c.levels, cursorLevel{node: entry.node, index: i})
			return i
		}
	}
	return -1
}

// GotoFirstChildForPoint moves to the first child whose extent ends after
// the given point. Returns the child index, or -1 without moving.
func (c *TreeCursor) GotoFirstChildForPoint(p Point) int {
	children := c.resolvedChildren()
	for i, entry := range children {
		if p.Less(entry.node.EndPoint()) {
			c.levels = append(c.levels, cursorLevel{node: entry.node, index: i})
			return i
		}
	}
	return -1
}

// GotoDescendant moves to the visible descendant with the given pre-order
// index relative to the current node (index 0 is the current node).
func (c *TreeCursor) GotoDescendant(index uint32) bool {
	if index == 0 {
		return true
	}
	if index >= c.Node().DescendantCount() {
		return false
	}
	remaining := index
	for {
		acc := uint32(1) // the current node occupies index 0
		descended := false
		for i, entry := range c.resolvedChildren() {
			count := entry.node.DescendantCount()
			if remaining < acc+count {
				c.levels = append(c.levels, cursorLevel{node: entry.node, index: i})
				remaining -= acc
				descended = true
				break
			}
			acc += count
		}
		if !descended {
			return false
		}
		if remaining == 0 {
			return true
		}
	}
}
