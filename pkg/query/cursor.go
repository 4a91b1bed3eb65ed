package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/yaklabco/cedar/pkg/cst"
	"github.com/yaklabco/cedar/pkg/language"
)

// defaultMatchLimit bounds how many candidate bindings a single run may
// accumulate before truncating.
const defaultMatchLimit = 1 << 16

// Capture binds one capture ID to a node.
type Capture struct {
	Index uint16
	Node  cst.Node
}

// Match is one completed pattern match.
type Match struct {
	PatternIndex int
	Captures     []Capture

	// Predicates carries the pattern's uninterpreted predicates for
	// external evaluation.
	Predicates []Predicate
}

// CaptureItem is one entry of the flat capture stream.
type CaptureItem struct {
	Match Match

	// Index locates the capture within Match.Captures.
	Index int
}

// QueryCursor executes a query over a tree. It is a mutable borrow and
// must not be shared across goroutines; the tree and query may be.
type QueryCursor struct {
	hasByteRange bool
	startByte    uint32
	endByte      uint32

	hasPointRange bool
	startPoint    cst.Point
	endPoint      cst.Point

	matchLimit uint32
	exceeded   bool
}

// NewQueryCursor creates a cursor with no range restriction.
func NewQueryCursor() *QueryCursor {
	return &QueryCursor{matchLimit: defaultMatchLimit}
}

// SetByteRange restricts execution to patterns rooted in [start, end).
func (c *QueryCursor) SetByteRange(start, end uint32) {
	c.hasByteRange = true
	c.startByte = start
	c.endByte = end
}

// SetPointRange restricts execution to patterns rooted in [start, end).
func (c *QueryCursor) SetPointRange(start, end cst.Point) {
	c.hasPointRange = true
	c.startPoint = start
	c.endPoint = end
}

// SetMatchLimit bounds in-flight candidate states; overflow truncates
// and sets DidExceedMatchLimit.
func (c *QueryCursor) SetMatchLimit(limit uint32) {
	if limit > 0 {
		c.matchLimit = limit
	}
}

// MatchLimit returns the configured limit.
func (c *QueryCursor) MatchLimit() uint32 { return c.matchLimit }

// DidExceedMatchLimit reports whether the previous run truncated.
func (c *QueryCursor) DidExceedMatchLimit() bool { return c.exceeded }

// Matches executes the query below node. text is the source the tree was
// parsed from; predicates compare capture contents against it. Matches
// are ordered by the start byte of their first capture, ties broken by
// pattern index.
func (c *QueryCursor) Matches(q *Query, node cst.Node, text []byte) []Match {
	c.exceeded = false
	m := &matcher{cursor: c, budget: int(c.matchLimit)}

	var matches []Match
	seen := map[string]bool{}

	var visit func(n cst.Node)
	visit = func(n cst.Node) {
		if m.budget <= 0 {
			return
		}
		if c.hasByteRange && (n.EndByte() <= c.startByte || n.StartByte() >= c.endByte) {
			return
		}
		if c.hasPointRange &&
			(!c.startPoint.Less(n.EndPoint()) || !n.StartPoint().Less(c.endPoint)) {
			return
		}
		for pi := range q.patterns {
			pattern := &q.patterns[pi]
			for _, combo := range m.matchOne(n, pattern.node, false) {
				match := Match{
					PatternIndex: pi,
					Captures:     combo,
					Predicates:   pattern.general,
				}
				if !evalPredicates(pattern.predicates, match, text) {
					continue
				}
				key := matchKey(match)
				if seen[key] {
					continue
				}
				seen[key] = true
				matches = append(matches, match)
			}
		}
		for _, child := range n.Children() {
			visit(child)
		}
	}
	visit(node)

	if m.budget <= 0 {
		c.exceeded = true
	}

	sort.SliceStable(matches, func(i, j int) bool {
		bi, bj := firstCaptureStart(matches[i]), firstCaptureStart(matches[j])
		if bi != bj {
			return bi < bj
		}
		return matches[i].PatternIndex < matches[j].PatternIndex
	})
	return matches
}

// Captures flattens matches into a per-capture stream ordered by capture
// start byte.
func (c *QueryCursor) Captures(q *Query, node cst.Node, text []byte) []CaptureItem {
	matches := c.Matches(q, node, text)
	var items []CaptureItem
	for _, match := range matches {
		for i := range match.Captures {
			items = append(items, CaptureItem{Match: match, Index: i})
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		ni := items[i].Match.Captures[items[i].Index].Node
		nj := items[j].Match.Captures[items[j].Index].Node
		if ni.StartByte() != nj.StartByte() {
			return ni.StartByte() < nj.StartByte()
		}
		return items[i].Match.PatternIndex < items[j].Match.PatternIndex
	})
	return items
}

func firstCaptureStart(m Match) uint32 {
	if len(m.Captures) == 0 {
		return ^uint32(0)
	}
	return m.Captures[0].Node.StartByte()
}

func matchKey(m Match) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d", m.PatternIndex)
	for _, capture := range m.Captures {
		fmt.Fprintf(&b, "|%d:%d-%d", capture.Index,
			capture.Node.StartByte(), capture.Node.EndByte())
	}
	return b.String()
}

type binding = []Capture

// matcher carries the shared budget through a run.
type matcher struct {
	cursor *QueryCursor
	budget int
}

// matchOne returns every way a pattern matches a node. ignoreField skips
// the field check for repeated quantifier occurrences.
func (m *matcher) matchOne(n cst.Node, pat *patternNode, ignoreField bool) []binding {
	if m.budget <= 0 {
		return nil
	}

	if len(pat.alternatives) > 0 {
		var out []binding
		for _, alt := range pat.alternatives {
			for _, combo := range m.matchOne(n, alt, ignoreField) {
				full := make(binding, 0, len(pat.captures)+len(combo))
				for _, id := range pat.captures {
					full = append(full, Capture{Index: id, Node: n})
				}
				full = append(full, combo...)
				out = append(out, full)
			}
		}
		return out
	}

	if !ignoreField && pat.field != 0 && n.FieldID() != pat.field {
		return nil
	}

	switch {
	case pat.wildcard:
		// `_` matches any node.
	case pat.namedWildcard:
		if !n.IsNamed() {
			return nil
		}
	case pat.anonymous:
		if n.IsNamed() || !symbolIn(pat.symbols, n) {
			return nil
		}
	default:
		if !n.IsNamed() || !symbolIn(pat.symbols, n) {
			return nil
		}
	}

	for _, field := range pat.negatedFields {
		if !n.ChildByFieldID(field).IsZero() {
			return nil
		}
	}

	children := n.Children()
	childCombos := m.seq(children, pat.children, 0, 0, pat.anchorEnd)
	if len(childCombos) == 0 {
		return nil
	}

	out := make([]binding, 0, len(childCombos))
	for _, combo := range childCombos {
		full := make(binding, 0, len(pat.captures)+len(combo))
		for _, id := range pat.captures {
			full = append(full, Capture{Index: id, Node: n})
		}
		full = append(full, combo...)
		out = append(out, full)
		m.budget--
		if m.budget <= 0 {
			break
		}
	}
	return out
}

func symbolIn(symbols []language.Symbol, n cst.Node) bool {
	sym := n.Symbol()
	for _, s := range symbols {
		if s == sym {
			return true
		}
	}
	return false
}

// seq matches a pattern-child sequence against a node's children,
// allowing unmatched children between pattern steps unless anchored.
func (m *matcher) seq(children []cst.Node, pats []*patternNode, pi, ci int, anchorEnd bool) []binding {
	if m.budget <= 0 {
		return nil
	}
	if pi == len(pats) {
		if anchorEnd && len(pats) > 0 && anyNamed(children[ci:]) {
			return nil
		}
		return []binding{nil}
	}

	pat := pats[pi]
	var out []binding
	if pat.quantifier.allowsZero() {
		out = append(out, m.seq(children, pats, pi+1, ci, anchorEnd)...)
	}
	out = append(out, m.occurrences(children, pats, pi, ci, anchorEnd, false)...)
	return out
}

// occurrences matches one-or-more instances of pats[pi] starting at or
// after ci, then the remaining pattern children.
func (m *matcher) occurrences(children []cst.Node, pats []*patternNode, pi, ci int, anchorEnd, repeating bool) []binding {
	pat := pats[pi]
	var out []binding
	for idx := ci; idx < len(children); idx++ {
		if m.budget <= 0 {
			return out
		}
		child := children[idx]

		// An anchored step may not skip named siblings.
		if pat.immediate && !repeating && idx > ci && anyNamed(children[ci:idx]) {
			break
		}

		combos := m.matchOne(child, pat, false)
		if len(combos) > 0 {
			rest := m.seq(children, pats, pi+1, idx+1, anchorEnd)
			var more []binding
			if pat.quantifier.allowsMany() {
				more = m.occurrences(children, pats, pi, idx+1, anchorEnd, true)
			}
			for _, combo := range combos {
				for _, r := range rest {
					out = append(out, concatBinding(combo, r))
				}
				for _, r := range more {
					out = append(out, concatBinding(combo, r))
				}
			}
		}
		if pat.immediate && !repeating && child.IsNamed() {
			break
		}
	}
	return out
}

func concatBinding(a, b binding) binding {
	if len(b) == 0 {
		return a
	}
	out := make(binding, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return out
}

func anyNamed(children []cst.Node) bool {
	for _, child := range children {
		if child.IsNamed() {
			return true
		}
	}
	return false
}
