package cst

import (
	"fmt"
	"strings"

	"github.com/yaklabco/cedar/pkg/language"
)

// Node is a lightweight view onto one visible subtree within a Tree. The
// zero Node is "no node".
type Node struct {
	tree     *Tree
	s        Subtree
	position Length
	alias    language.Symbol
	field    language.FieldID
}

// IsZero reports whether this is the null node.
func (n Node) IsZero() bool { return n.tree == nil || n.s.IsEmpty() }

// Tree returns the owning tree.
func (n Node) Tree() *Tree { return n.tree }

// Symbol returns the node's symbol, alias applied.
func (n Node) Symbol() language.Symbol {
	if n.alias != 0 {
		return n.alias
	}
	return n.s.Symbol()
}

// Kind returns the symbol name, e.g. "sum" or "+".
func (n Node) Kind() string {
	if n.IsZero() {
		return ""
	}
	return n.tree.lang.SymbolName(n.Symbol())
}

// IsNamed reports whether the node is a named rule.
func (n Node) IsNamed() bool {
	if n.alias != 0 {
		return n.tree.lang.SymbolMetadata(n.alias).Named
	}
	return n.s.Named()
}

// IsExtra reports whether the node is an extra.
func (n Node) IsExtra() bool { return n.s.Extra() }

// IsMissing reports whether the node was inserted by error recovery.
func (n Node) IsMissing() bool { return n.s.IsMissing() }

// IsError reports whether the node is an ERROR node.
func (n Node) IsError() bool { return n.s.IsErrorNode() }

// HasError reports whether the node or any descendant is an ERROR or
// MISSING node.
func (n Node) HasError() bool { return n.s.HasError() }

// HasChanges reports whether an edit touched this node since its tree
// was parsed.
func (n Node) HasChanges() bool { return n.s.HasChanges() }

// ErrorCost exposes the accumulated recovery cost.
func (n Node) ErrorCost() uint32 { return n.s.ErrorCost() }

// StartByte returns the byte offset where the node's content starts.
func (n Node) StartByte() uint32 { return n.position.Bytes + n.s.Padding().Bytes }

// EndByte returns the byte offset just past the node's content.
func (n Node) EndByte() uint32 { return n.position.Add(n.s.TotalLength()).Bytes }

// StartPoint returns the row/column where the node's content starts.
func (n Node) StartPoint() Point {
	return n.position.Add(n.s.Padding()).Extent
}

// EndPoint returns the row/column just past the node's content.
func (n Node) EndPoint() Point {
	return n.position.Add(n.s.TotalLength()).Extent
}

// Range returns the node's full extent.
func (n Node) Range() Range {
	return Range{
		StartByte:  n.StartByte(),
		EndByte:    n.EndByte(),
		StartPoint: n.StartPoint(),
		EndPoint:   n.EndPoint(),
	}
}

// Content slices the node's text out of the source it was parsed from.
func (n Node) Content(source []byte) []byte {
	start, end := n.StartByte(), n.EndByte()
	if int(start) > len(source) || int(end) > len(source) || start > end {
		return nil
	}
	return source[start:end]
}

// DescendantCount returns the number of visible nodes in this subtree,
// itself included.
func (n Node) DescendantCount() uint32 {
	count := n.s.VisibleDescendantCount()
	if n.alias != 0 && !n.s.Visible() {
		count++
	}
	return count
}

// Subtree exposes the underlying subtree; used by the query engine and by
// tests asserting reuse.
func (n Node) Subtree() Subtree { return n.s }

// Same reports whether two nodes view the same subtree at the same
// position.
func (n Node) Same(o Node) bool {
	return n.tree == o.tree && n.position == o.position && n.s.Same(o.s)
}

// childEntry is one resolved visible child.
type childEntry struct {
	node Node
}

// visibleChildren flattens the node's visible children, descending
// through hidden subtrees and applying aliases and fields.
func (n Node) visibleChildren() []childEntry {
	if n.s.IsLeaf() {
		return nil
	}
	entries := make([]childEntry, 0, n.s.VisibleChildCount())
	n.appendVisibleChildren(&entries, n.s, n.position, 0)
	return entries
}

// appendVisibleChildren walks one subtree level. inheritedField labels
// visible descendants of hidden children whose field entry is inherited.
func (n Node) appendVisibleChildren(
	entries *[]childEntry,
	s Subtree,
	position Length,
	inheritedField language.FieldID,
) {
	lang := n.tree.lang
	aliases := lang.AliasSequence(s.Production())
	fields := lang.FieldMap(s.Production())

	structuralIndex := 0
	childPos := position
	for _, child := range s.Children() {
		var alias language.Symbol
		field := inheritedField
		if !child.Extra() {
			if structuralIndex < len(aliases) {
				alias = aliases[structuralIndex]
			}
			for _, entry := range fields {
				if int(entry.ChildIndex) == structuralIndex {
					field = entry.Field
					break
				}
			}
			structuralIndex++
		}

		if child.Visible() || alias != 0 {
			*entries = append(*entries, childEntry{node: Node{
				tree:     n.tree,
				s:        child,
				position: childPos,
				alias:    alias,
				field:    field,
			}})
		} else if child.ChildCount() > 0 {
			n.appendVisibleChildren(entries, child, childPos, field)
		}
		childPos = childPos.Add(child.TotalLength())
	}
}

// ChildCount returns the number of visible children.
func (n Node) ChildCount() uint32 { return n.s.VisibleChildCount() }

// NamedChildCount returns the number of visible named children.
func (n Node) NamedChildCount() uint32 { return n.s.NamedChildCount() }

// Child returns the i'th visible child.
func (n Node) Child(i int) Node {
	children := n.visibleChildren()
	if i < 0 || i >= len(children) {
		return Node{}
	}
	return children[i].node
}

// NamedChild returns the i'th visible named child.
func (n Node) NamedChild(i int) Node {
	if i < 0 {
		return Node{}
	}
	for _, entry := range n.visibleChildren() {
		if !entry.node.IsNamed() {
			continue
		}
		if i == 0 {
			return entry.node
		}
		i--
	}
	return Node{}
}

// Children returns all visible children.
func (n Node) Children() []Node {
	entries := n.visibleChildren()
	nodes := make([]Node, len(entries))
	for i, entry := range entries {
		nodes[i] = entry.node
	}
	return nodes
}

// FieldID returns the field this node occupies in its parent, or 0.
func (n Node) FieldID() language.FieldID { return n.field }

// FieldName returns the field name this node occupies in its parent.
func (n Node) FieldName() string {
	if n.field == 0 || n.tree == nil {
		return ""
	}
	return n.tree.lang.FieldName(n.field)
}

// ChildByFieldID returns the first visible child with the given field.
func (n Node) ChildByFieldID(field language.FieldID) Node {
	if field == 0 {
		return Node{}
	}
	for _, entry := range n.visibleChildren() {
		if entry.node.field == field {
			return entry.node
		}
	}
	return Node{}
}

// ChildByFieldName resolves a field name and returns the matching child.
func (n Node) ChildByFieldName(name string) Node {
	if n.tree == nil {
		return Node{}
	}
	field, ok := n.tree.lang.FieldIDForName(name)
	if !ok {
		return Node{}
	}
	return n.ChildByFieldID(field)
}

// Parent returns the nearest visible ancestor, found by descending from
// the root.
func (n Node) Parent() Node {
	if n.IsZero() {
		return Node{}
	}
	current := n.tree.RootNode()
	if current.Same(n) {
		return Node{}
	}
	for {
		descended := false
		for _, entry := range current.visibleChildren() {
			child := entry.node
			if child.Same(n) {
				return current
			}
			if child.StartByte() <= n.StartByte() && n.EndByte() <= child.EndByte() &&
				child.DescendantCount() >= n.DescendantCount() {
				current = child
				descended = true
				break
			}
		}
		if !descended {
			return Node{}
		}
	}
}

// NextSibling returns the following visible sibling.
func (n Node) NextSibling() Node { return n.sibling(1) }

// PrevSibling returns the preceding visible sibling.
func (n Node) PrevSibling() Node { return n.sibling(-1) }

func (n Node) sibling(offset int) Node {
	parent := n.Parent()
	if parent.IsZero() {
		return Node{}
	}
	children := parent.visibleChildren()
	for i, entry := range children {
		if entry.node.Same(n) {
			j := i + offset
			if j < 0 || j >= len(children) {
				return Node{}
			}
			return children[j].node
		}
	}
	return Node{}
}

// NextNamedSibling returns the following visible named sibling.
func (n Node) NextNamedSibling() Node {
	for sib := n.NextSibling(); !sib.IsZero(); sib = sib.NextSibling() {
		if sib.IsNamed() {
			return sib
		}
	}
	return Node{}
}

// DescendantForByteRange returns the smallest visible node spanning
// [start, end).
func (n Node) DescendantForByteRange(start, end uint32) Node {
	return n.descendantForByteRange(start, end, false)
}

// NamedDescendantForByteRange returns the smallest named node spanning
// [start, end).
func (n Node) NamedDescendantForByteRange(start, end uint32) Node {
	return n.descendantForByteRange(start, end, true)
}

func (n Node) descendantForByteRange(start, end uint32, namedOnly bool) Node {
	current := n
	result := n
	for {
		descended := false
		for _, entry := range current.visibleChildren() {
			child := entry.node
			if child.StartByte() <= start && end <= child.EndByte() {
				current = child
				if !namedOnly || child.IsNamed() {
					result = child
				}
				descended = true
				break
			}
		}
		if !descended {
			return result
		}
	}
}

// ToSexp renders the named structure of the subtree as an S-expression,
// e.g. (sum left: (number) right: (number)).
func (n Node) ToSexp() string {
	var b strings.Builder
	n.writeSexp(&b)
	return b.String()
}

func (n Node) writeSexp(b *strings.Builder) {
	switch {
	case n.IsMissing():
		fmt.Fprintf(b, "(MISSING %q)", n.Kind())
		return
	case !n.IsNamed():
		fmt.Fprintf(b, "%q", n.Kind())
		return
	}
	b.WriteByte('(')
	b.WriteString(n.Kind())
	for _, entry := range n.visibleChildren() {
		child := entry.node
		if !child.IsNamed() && !child.IsMissing() {
			continue
		}
		b.WriteByte(' ')
		if name := child.FieldName(); name != "" {
			b.WriteString(name)
			b.WriteString(": ")
		}
		child.writeSexp(b)
	}
	b.WriteByte(')')
}
