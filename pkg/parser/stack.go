package parser

import (
	"github.com/yaklabco/cedar/pkg/cst"
	"github.com/yaklabco/cedar/pkg/language"
)

// The parse stack is a persistent DAG. Heads ("versions") share older
// vertices; every vertex links only to strictly older vertices, so the
// structure is acyclic even when GLR merging makes it look diamond-shaped.

// maxVersionCount bounds how many GLR heads run concurrently; weaker
// heads are pruned by the merge policy before the cap is reached.
const maxVersionCount = 6

type versionStatus uint8

const (
	versionActive versionStatus = iota
	versionPaused
	versionHalted
)

type stackNode struct {
	state    language.StateID
	position cst.Length
	links    []stackLink

	// errorCost, dynamicPrecedence and nodeCount accumulate along the
	// path through each vertex's first link; heads are merged only when
	// their error cost and dynamic precedence tie.
	errorCost         uint32
	dynamicPrecedence int32
	nodeCount         uint32
}

type stackLink struct {
	node       *stackNode
	subtree    cst.Subtree
	hasSubtree bool
}

type stackVersion struct {
	node              *stackNode
	status            versionStatus
	lastExternalToken cst.Subtree

	// errorDepth counts recovery insertions made at the current
	// position, bounding how deep recovery may speculate.
	errorDepth int
}

// stackSlice is one concrete path enumerated by pop: the subtrees along
// it in source order, and the vertex the path ends on.
type stackSlice struct {
	subtrees []cst.Subtree
	node     *stackNode
}

type parseStack struct {
	versions []stackVersion
	base     *stackNode
}

func newParseStack() *parseStack {
	base := &stackNode{}
	return &parseStack{
		base:     base,
		versions: []stackVersion{{node: base}},
	}
}

func (s *parseStack) versionCount() int { return len(s.versions) }

func (s *parseStack) version(v int) *stackVersion { return &s.versions[v] }

func (s *parseStack) state(v int) language.StateID { return s.versions[v].node.state }

func (s *parseStack) position(v int) cst.Length { return s.versions[v].node.position }

func (s *parseStack) errorCost(v int) uint32 { return s.versions[v].node.errorCost }

// push extends a version with a new vertex.
func (s *parseStack) push(v int, subtree cst.Subtree, hasSubtree bool, state language.StateID) {
	version := &s.versions[v]
	prev := version.node
	node := &stackNode{
		state:             state,
		position:          prev.position,
		errorCost:         prev.errorCost,
		dynamicPrecedence: prev.dynamicPrecedence,
		nodeCount:         prev.nodeCount + 1,
		links:             []stackLink{{node: prev, subtree: subtree, hasSubtree: hasSubtree}},
	}
	if hasSubtree {
		node.position = node.position.Add(subtree.TotalLength())
		node.errorCost += subtree.ErrorCost()
		node.dynamicPrecedence += subtree.DynamicPrecedence()
	}
	version.node = node
}

// pop enumerates every path of exactly count non-extra subtrees below a
// version head. Extras encountered along the way ride along in the
// slices without counting.
func (s *parseStack) pop(v, count int) []stackSlice {
	var slices []stackSlice
	var acc []cst.Subtree

	var walk func(n *stackNode, remaining int)
	walk = func(n *stackNode, remaining int) {
		if remaining == 0 {
			subtrees := make([]cst.Subtree, len(acc))
			for i, t := range acc {
				subtrees[len(acc)-1-i] = t
			}
			slices = append(slices, stackSlice{subtrees: subtrees, node: n})
			return
		}
		for _, link := range n.links {
			next := remaining
			if link.hasSubtree && !link.subtree.Extra() {
				next--
			}
			if link.hasSubtree {
				acc = append(acc, link.subtree)
			}
			walk(link.node, next)
			if link.hasSubtree {
				acc = acc[:len(acc)-1]
			}
		}
	}
	walk(s.versions[v].node, count)
	return slices
}

// popAll enumerates complete paths down to the stack base. Only the first
// path is used by accept; competing paths were already resolved by the
// merge policy.
func (s *parseStack) popAll(v int) []stackSlice {
	var slices []stackSlice
	var acc []cst.Subtree

	var walk func(n *stackNode)
	walk = func(n *stackNode) {
		if len(n.links) == 0 {
			subtrees := make([]cst.Subtree, len(acc))
			for i, t := range acc {
				subtrees[len(acc)-1-i] = t
			}
			slices = append(slices, stackSlice{subtrees: subtrees, node: n})
			return
		}
		for _, link := range n.links {
			if link.hasSubtree {
				acc = append(acc, link.subtree)
			}
			walk(link.node)
			if link.hasSubtree {
				acc = acc[:len(acc)-1]
			}
			if len(slices) > 0 {
				return
			}
		}
	}
	walk(s.versions[v].node)
	return slices
}

// popError pops consecutive error-state links, returning the skipped
// subtrees in source order and leaving the version below the error run.
func (s *parseStack) popError(v int) []cst.Subtree {
	version := &s.versions[v]
	var reversed []cst.Subtree
	node := version.node
	for node.state == language.ErrorState && len(node.links) > 0 {
		link := node.links[0]
		if link.hasSubtree {
			reversed = append(reversed, link.subtree)
		}
		node = link.node
	}
	version.node = node
	subtrees := make([]cst.Subtree, len(reversed))
	for i, t := range reversed {
		subtrees[len(reversed)-1-i] = t
	}
	return subtrees
}

// inErrorRecovery reports whether a version's head sits in the synthetic
// error state.
func (s *parseStack) inErrorRecovery(v int) bool {
	return s.versions[v].node.state == language.ErrorState
}

// copyVersion forks a version, sharing the head vertex.
func (s *parseStack) copyVersion(v int) int {
	s.versions = append(s.versions, s.versions[v])
	return len(s.versions) - 1
}

// forkAt creates a new version rooted at an arbitrary vertex, inheriting
// bookkeeping from an existing version.
func (s *parseStack) forkAt(v int, node *stackNode) int {
	version := s.versions[v]
	version.node = node
	s.versions = append(s.versions, version)
	return len(s.versions) - 1
}

func (s *parseStack) halt(v int) {
	s.versions[v].status = versionHalted
}

func (s *parseStack) pause(v int) {
	s.versions[v].status = versionPaused
}

func (s *parseStack) activate(v int) {
	s.versions[v].status = versionActive
}

func (s *parseStack) removeVersion(v int) {
	s.versions = append(s.versions[:v], s.versions[v+1:]...)
}

// condense unifies equivalent heads and prunes strictly worse ones. Two
// heads are equivalent when they sit on the same state at the same
// position with the same external scanner state. The kept head is the
// one with lower error cost; on a tie, higher dynamic precedence; on a
// full tie the earlier head absorbs the later one's links.
func (s *parseStack) condense() {
	for i := 0; i < len(s.versions); i++ {
		if s.versions[i].status == versionHalted {
			s.removeVersion(i)
			i--
			continue
		}
		for j := i + 1; j < len(s.versions); j++ {
			vi, vj := &s.versions[i], &s.versions[j]
			if vj.status == versionHalted {
				continue
			}
			if vi.node.state != vj.node.state ||
				vi.node.position.Bytes != vj.node.position.Bytes ||
				!vi.lastExternalToken.Same(vj.lastExternalToken) {
				continue
			}
			switch {
			case vi.node.errorCost < vj.node.errorCost:
				s.removeVersion(j)
				j--
			case vj.node.errorCost < vi.node.errorCost:
				s.versions[i] = s.versions[j]
				s.removeVersion(j)
				j--
			case vi.node.dynamicPrecedence > vj.node.dynamicPrecedence:
				s.removeVersion(j)
				j--
			case vj.node.dynamicPrecedence > vi.node.dynamicPrecedence:
				s.versions[i] = s.versions[j]
				s.removeVersion(j)
				j--
			default:
				// Full tie: earlier head wins; merge links so
				// both derivations survive as ambiguity.
				if vi.node != vj.node {
					vi.node.links = append(vi.node.links, vj.node.links...)
				}
				s.removeVersion(j)
				j--
			}
		}
	}
	for len(s.versions) > maxVersionCount {
		worst := 0
		for v := 1; v < len(s.versions); v++ {
			if s.versions[v].node.errorCost >= s.versions[worst].node.errorCost {
				worst = v
			}
		}
		s.removeVersion(worst)
	}
}
