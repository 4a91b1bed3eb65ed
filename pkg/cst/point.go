// Package cst holds the concrete syntax tree: byte/point geometry, the
// refcounted Subtree pool, the persistent Tree handle with its edit and
// diff machinery, the Node view, and the TreeCursor.
package cst

import "fmt"

// Point is a zero-based row and byte column in the source text.
type Point struct {
	Row    uint32
	Column uint32
}

func (p Point) String() string {
	return fmt.Sprintf("(%d, %d)", p.Row, p.Column)
}

// Add composes two relative extents: if the right extent spans rows, its
// column restarts the count.
func (p Point) Add(o Point) Point {
	if o.Row > 0 {
		return Point{Row: p.Row + o.Row, Column: o.Column}
	}
	return Point{Row: p.Row, Column: p.Column + o.Column}
}

// Sub computes the extent from o to p. p must not precede o.
func (p Point) Sub(o Point) Point {
	if p.Row > o.Row {
		return Point{Row: p.Row - o.Row, Column: p.Column}
	}
	return Point{Row: 0, Column: p.Column - o.Column}
}

// Cmp orders points lexicographically by row then column.
func (p Point) Cmp(o Point) int {
	switch {
	case p.Row < o.Row:
		return -1
	case p.Row > o.Row:
		return 1
	case p.Column < o.Column:
		return -1
	case p.Column > o.Column:
		return 1
	default:
		return 0
	}
}

// Less reports whether p precedes o.
func (p Point) Less(o Point) bool { return p.Cmp(o) < 0 }

// Length is a span measured both in bytes and in rows/columns.
type Length struct {
	Bytes  uint32
	Extent Point
}

// Add concatenates two spans.
func (l Length) Add(o Length) Length {
	return Length{Bytes: l.Bytes + o.Bytes, Extent: l.Extent.Add(o.Extent)}
}

// Sub removes a prefix span. o must not exceed l.
func (l Length) Sub(o Length) Length {
	return Length{Bytes: l.Bytes - o.Bytes, Extent: l.Extent.Sub(o.Extent)}
}

// Range is a byte range with its row/column counterpart.
type Range struct {
	StartByte  uint32
	EndByte    uint32
	StartPoint Point
	EndPoint   Point
}

func (r Range) String() string {
	return fmt.Sprintf("[%d..%d]", r.StartByte, r.EndByte)
}

// Len returns the range length in bytes.
func (r Range) Len() uint32 { return r.EndByte - r.StartByte }

// InputEdit describes a text replacement: the bytes
// [StartByte, OldEndByte) were replaced with [StartByte, NewEndByte) in
// the new document.
type InputEdit struct {
	StartByte  uint32
	OldEndByte uint32
	NewEndByte uint32

	StartPosition  Point
	OldEndPosition Point
	NewEndPosition Point
}
