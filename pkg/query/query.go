// Package query compiles S-expression tree patterns and executes them
// against syntax trees, yielding matches with named captures and
// predicate filtering.
package query

import (
	"fmt"

	"github.com/dlclark/regexp2"

	"github.com/yaklabco/cedar/pkg/language"
)

// ErrorKind classifies query compilation failures.
type ErrorKind uint8

// Query error kinds.
const (
	ErrorSyntax ErrorKind = iota
	ErrorNodeType
	ErrorField
	ErrorCapture
	ErrorPredicate
	ErrorStructure
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorSyntax:
		return "syntax"
	case ErrorNodeType:
		return "node type"
	case ErrorField:
		return "field"
	case ErrorCapture:
		return "capture"
	case ErrorPredicate:
		return "predicate"
	case ErrorStructure:
		return "structure"
	default:
		return "unknown"
	}
}

// Error reports a query compilation failure with the byte offset of the
// offending construct in the pattern source.
type Error struct {
	Kind    ErrorKind
	Offset  uint32
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("query: %s error at offset %d: %s", e.Kind, e.Offset, e.Message)
}

type quantifier uint8

const (
	quantOne quantifier = iota
	quantZeroOrOne
	quantZeroOrMore
	quantOneOrMore
)

func (q quantifier) allowsZero() bool {
	return q == quantZeroOrOne || q == quantZeroOrMore
}

func (q quantifier) allowsMany() bool {
	return q == quantZeroOrMore || q == quantOneOrMore
}

// patternNode is one step of a compiled pattern tree.
type patternNode struct {
	// Matching modes: wildcard `_` matches anything, namedWildcard
	// `(_)` named nodes only, anonymous matches unnamed literals.
	wildcard      bool
	namedWildcard bool
	anonymous     bool

	// symbols lists acceptable node symbols; supertype patterns carry
	// every subtype.
	symbols []language.Symbol

	field         language.FieldID
	negatedFields []language.FieldID
	captures      []uint16

	children []*patternNode

	quantifier quantifier

	// immediate requires this node to be the next named sibling after
	// the previous pattern child (the `.` anchor).
	immediate bool

	// anchorEnd requires the previous pattern child to match the last
	// named child (trailing `.`).
	anchorEnd bool

	// alternatives implements `[...]`: the node matches when any
	// branch matches.
	alternatives []*patternNode
}

// patternRoot is one top-level pattern with its predicates.
type patternRoot struct {
	node       *patternNode
	predicates []compiledPredicate

	// general carries predicates the engine does not evaluate; they
	// surface on every match for the consumer.
	general []Predicate
}

// Query is a compiled set of patterns for one language.
type Query struct {
	lang         *language.Language
	patterns     []patternRoot
	captureNames []string
}

// New compiles query source against a language.
func New(lang *language.Language, source []byte) (*Query, error) {
	c := &compiler{
		lang:   lang,
		source: source,
		query:  &Query{lang: lang},
	}
	if err := c.compile(); err != nil {
		return nil, err
	}
	return c.query, nil
}

// CaptureNames returns capture names indexed by capture ID.
func (q *Query) CaptureNames() []string {
	return append([]string(nil), q.captureNames...)
}

// CaptureIndexForName resolves a capture name.
func (q *Query) CaptureIndexForName(name string) (uint16, bool) {
	for i, n := range q.captureNames {
		if n == name {
			return uint16(i), true
		}
	}
	return 0, false
}

// PatternCount returns the number of top-level patterns.
func (q *Query) PatternCount() int { return len(q.patterns) }

// GeneralPredicates returns the uninterpreted predicates of a pattern.
func (q *Query) GeneralPredicates(pattern int) []Predicate {
	if pattern < 0 || pattern >= len(q.patterns) {
		return nil
	}
	return q.patterns[pattern].general
}

func (q *Query) captureID(name string) uint16 {
	for i, n := range q.captureNames {
		if n == name {
			return uint16(i)
		}
	}
	q.captureNames = append(q.captureNames, name)
	return uint16(len(q.captureNames) - 1)
}

// Predicate is an uninterpreted predicate attached to a pattern, exposed
// to consumers on every match of that pattern.
type Predicate struct {
	Name string
	Args []PredicateArg
}

// PredicateArg is either a capture reference or a string literal.
type PredicateArg struct {
	IsCapture bool
	Capture   uint16
	Value     string
}

type predicateKind uint8

const (
	predEq predicateKind = iota
	predNotEq
	predMatch
	predNotMatch
	predAnyOf
	predNotAnyOf
)

type compiledPredicate struct {
	kind     predicateKind
	capture  uint16
	otherCap uint16
	hasOther bool
	value    string
	values   []string
	re       *regexp2.Regexp
}
