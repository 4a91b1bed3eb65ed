package query

import (
	"fmt"
	"strings"

	"github.com/dlclark/regexp2"

	"github.com/yaklabco/cedar/pkg/language"
)

// compiler turns S-expression pattern source into patternRoots.
type compiler struct {
	lang   *language.Language
	source []byte
	pos    int
	query  *Query
}

func (c *compiler) compile() error {
	for {
		c.skipSpace()
		if c.pos >= len(c.source) {
			break
		}
		root, err := c.parseTopLevel()
		if err != nil {
			return err
		}
		c.query.patterns = append(c.query.patterns, *root)
	}
	if len(c.query.patterns) == 0 {
		return c.errorf(ErrorSyntax, 0, "empty query")
	}
	return c.resolvePredicateCaptures()
}

func (c *compiler) errorf(kind ErrorKind, offset int, format string, args ...any) error {
	return &Error{Kind: kind, Offset: uint32(offset), Message: fmt.Sprintf(format, args...)}
}

func (c *compiler) skipSpace() {
	for c.pos < len(c.source) {
		ch := c.source[c.pos]
		switch {
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			c.pos++
		case ch == ';':
			for c.pos < len(c.source) && c.source[c.pos] != '\n' {
				c.pos++
			}
		default:
			return
		}
	}
}

func (c *compiler) peek() byte {
	if c.pos >= len(c.source) {
		return 0
	}
	return c.source[c.pos]
}

// parseTopLevel parses one pattern, unwrapping predicate groups of the
// form ((node) (#pred ...) ...).
func (c *compiler) parseTopLevel() (*patternRoot, error) {
	start := c.pos
	if c.peek() == '(' && c.isGroup() {
		c.pos++ // consume '('
		root := &patternRoot{}
		sawNode := false
		for {
			c.skipSpace()
			switch {
			case c.pos >= len(c.source):
				return nil, c.errorf(ErrorSyntax, start, "unterminated pattern group")
			case c.peek() == ')':
				c.pos++
				if !sawNode {
					return nil, c.errorf(ErrorStructure, start, "pattern group has no pattern")
				}
				c.parseSuffixes(root.node)
				return root, nil
			case c.isPredicateStart():
				pred, err := c.parsePredicate()
				if err != nil {
					return nil, err
				}
				if err := c.adoptPredicate(root, pred); err != nil {
					return nil, err
				}
			default:
				if sawNode {
					return nil, c.errorf(ErrorStructure, c.pos,
						"pattern group may contain only one pattern")
				}
				node, err := c.parseNode()
				if err != nil {
					return nil, err
				}
				root.node = node
				sawNode = true
			}
		}
	}

	node, err := c.parseNode()
	if err != nil {
		return nil, err
	}
	return &patternRoot{node: node}, nil
}

// isGroup looks ahead past '(' to decide between a predicate group and a
// plain node pattern.
func (c *compiler) isGroup() bool {
	i := c.pos + 1
	for i < len(c.source) {
		switch c.source[i] {
		case ' ', '\t', '\n', '\r':
			i++
		default:
			ch := c.source[i]
			return ch == '(' || ch == '[' || ch == '"' || ch == '#'
		}
	}
	return false
}

func (c *compiler) isPredicateStart() bool {
	if c.peek() != '(' {
		return false
	}
	i := c.pos + 1
	for i < len(c.source) && (c.source[i] == ' ' || c.source[i] == '\t') {
		i++
	}
	return i < len(c.source) && c.source[i] == '#'
}

// parseNode parses one pattern element with its quantifier and capture
// suffixes.
func (c *compiler) parseNode() (*patternNode, error) {
	c.skipSpace()
	start := c.pos
	var node *patternNode
	var err error

	switch {
	case c.peek() == '(':
		node, err = c.parseParenNode()
	case c.peek() == '[':
		node, err = c.parseAlternation()
	case c.peek() == '"':
		node, err = c.parseAnonymous()
	case c.peek() == '_':
		c.pos++
		node = &patternNode{wildcard: true}
	default:
		return nil, c.errorf(ErrorSyntax, start, "expected pattern, found %q", c.peek())
	}
	if err != nil {
		return nil, err
	}

	c.parseSuffixes(node)
	return node, nil
}

// parseSuffixes consumes quantifiers and captures in any order.
func (c *compiler) parseSuffixes(node *patternNode) {
	if node == nil {
		return
	}
	for {
		c.skipSpace()
		switch c.peek() {
		case '?':
			c.pos++
			node.quantifier = quantZeroOrOne
		case '*':
			c.pos++
			node.quantifier = quantZeroOrMore
		case '+':
			c.pos++
			node.quantifier = quantOneOrMore
		case '@':
			c.pos++
			name := c.parseIdent()
			node.captures = append(node.captures, c.query.captureID(name))
		default:
			return
		}
	}
}

func (c *compiler) parseParenNode() (*patternNode, error) {
	start := c.pos
	c.pos++ // '('
	c.skipSpace()

	node := &patternNode{}
	switch {
	case c.peek() == '_':
		c.pos++
		node.namedWildcard = true
	default:
		name := c.parseIdent()
		if name == "" {
			return nil, c.errorf(ErrorSyntax, c.pos, "expected node name")
		}
		syms, err := c.resolveNamedSymbol(name, start)
		if err != nil {
			return nil, err
		}
		node.symbols = syms
	}

	// Children.
	for {
		c.skipSpace()
		switch {
		case c.pos >= len(c.source):
			return nil, c.errorf(ErrorSyntax, start, "unterminated pattern")
		case c.peek() == ')':
			c.pos++
			return node, nil
		case c.peek() == '.':
			c.pos++
			// A trailing anchor pins the previous child to the last
			// named child; between children it pins adjacency.
			c.skipSpace()
			if c.peek() == ')' {
				node.anchorEnd = true
				continue
			}
			child, err := c.parseNode()
			if err != nil {
				return nil, err
			}
			child.immediate = true
			node.children = append(node.children, child)
		case c.peek() == '!':
			c.pos++
			fieldStart := c.pos
			name := c.parseIdent()
			field, ok := c.lang.FieldIDForName(name)
			if !ok {
				return nil, c.errorf(ErrorField, fieldStart, "unknown field %q", name)
			}
			node.negatedFields = append(node.negatedFields, field)
		default:
			fieldStart := c.pos
			fieldName := c.tryParseFieldLabel()
			child, err := c.parseNode()
			if err != nil {
				return nil, err
			}
			if fieldName != "" {
				field, ok := c.lang.FieldIDForName(fieldName)
				if !ok {
					return nil, c.errorf(ErrorField, fieldStart, "unknown field %q", fieldName)
				}
				child.field = field
			}
			node.children = append(node.children, child)
		}
	}
}

// tryParseFieldLabel consumes "name:" if present.
func (c *compiler) tryParseFieldLabel() string {
	save := c.pos
	name := c.parseIdent()
	if name == "" {
		c.pos = save
		return ""
	}
	if c.peek() == ':' {
		c.pos++
		return name
	}
	c.pos = save
	return ""
}

func (c *compiler) parseAlternation() (*patternNode, error) {
	start := c.pos
	c.pos++ // '['
	node := &patternNode{}
	for {
		c.skipSpace()
		switch {
		case c.pos >= len(c.source):
			return nil, c.errorf(ErrorSyntax, start, "unterminated alternation")
		case c.peek() == ']':
			c.pos++
			if len(node.alternatives) == 0 {
				return nil, c.errorf(ErrorStructure, start, "empty alternation")
			}
			return node, nil
		default:
			alt, err := c.parseNode()
			if err != nil {
				return nil, err
			}
			node.alternatives = append(node.alternatives, alt)
		}
	}
}

func (c *compiler) parseAnonymous() (*patternNode, error) {
	start := c.pos
	text, err := c.parseString()
	if err != nil {
		return nil, err
	}
	sym, ok := c.lang.SymbolForName(text, false)
	if !ok {
		return nil, c.errorf(ErrorNodeType, start, "unknown token %q", text)
	}
	return &patternNode{anonymous: true, symbols: []language.Symbol{sym}}, nil
}

// resolveNamedSymbol resolves a rule name, expanding supertypes into
// their subtypes. "ERROR" resolves to the builtin error symbol;
// "MISSING" has no builtin meaning and resolves only if the language
// defines a symbol of that name.
func (c *compiler) resolveNamedSymbol(name string, offset int) ([]language.Symbol, error) {
	sym, ok := c.lang.SymbolForName(name, true)
	if !ok {
		return nil, c.errorf(ErrorNodeType, offset, "unknown node type %q", name)
	}
	if c.lang.SymbolMetadata(sym).Supertype {
		subtypes := c.lang.Subtypes(sym)
		if len(subtypes) > 0 {
			return append([]language.Symbol(nil), subtypes...), nil
		}
	}
	return []language.Symbol{sym}, nil
}

func (c *compiler) parseIdent() string {
	start := c.pos
	for c.pos < len(c.source) {
		ch := c.source[c.pos]
		if ch == '_' || ch == '-' ||
			ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || ch >= '0' && ch <= '9' {
			c.pos++
			continue
		}
		break
	}
	return string(c.source[start:c.pos])
}

func (c *compiler) parseString() (string, error) {
	start := c.pos
	if c.peek() != '"' {
		return "", c.errorf(ErrorSyntax, start, "expected string")
	}
	c.pos++
	var b strings.Builder
	for c.pos < len(c.source) {
		ch := c.source[c.pos]
		switch ch {
		case '"':
			c.pos++
			return b.String(), nil
		case '\\':
			c.pos++
			if c.pos >= len(c.source) {
				return "", c.errorf(ErrorSyntax, start, "unterminated string")
			}
			esc := c.source[c.pos]
			switch esc {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			default:
				b.WriteByte(esc)
			}
			c.pos++
		default:
			b.WriteByte(ch)
			c.pos++
		}
	}
	return "", c.errorf(ErrorSyntax, start, "unterminated string")
}

// parsePredicate parses (#name? arg...) into an uninterpreted Predicate;
// adoptPredicate later compiles the built-ins.
func (c *compiler) parsePredicate() (*rawPredicate, error) {
	start := c.pos
	c.pos++ // '('
	c.skipSpace()
	if c.peek() != '#' {
		return nil, c.errorf(ErrorSyntax, c.pos, "expected predicate name")
	}
	c.pos++
	name := "#" + c.parsePredicateName()
	pred := &rawPredicate{name: name, offset: start}
	for {
		c.skipSpace()
		switch {
		case c.pos >= len(c.source):
			return nil, c.errorf(ErrorSyntax, start, "unterminated predicate")
		case c.peek() == ')':
			c.pos++
			return pred, nil
		case c.peek() == '@':
			c.pos++
			argStart := c.pos
			pred.args = append(pred.args, rawArg{
				isCapture: true,
				value:     c.parseIdent(),
				offset:    argStart,
			})
		case c.peek() == '"':
			argStart := c.pos
			text, err := c.parseString()
			if err != nil {
				return nil, err
			}
			pred.args = append(pred.args, rawArg{value: text, offset: argStart})
		default:
			argStart := c.pos
			word := c.parseIdent()
			if word == "" {
				return nil, c.errorf(ErrorSyntax, c.pos, "bad predicate argument")
			}
			pred.args = append(pred.args, rawArg{value: word, offset: argStart})
		}
	}
}

func (c *compiler) parsePredicateName() string {
	start := c.pos
	for c.pos < len(c.source) {
		ch := c.source[c.pos]
		if ch == '?' || ch == '!' {
			c.pos++
			break
		}
		if ch == '-' || ch == '_' ||
			ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || ch >= '0' && ch <= '9' {
			c.pos++
			continue
		}
		break
	}
	return string(c.source[start:c.pos])
}

type rawPredicate struct {
	name   string
	args   []rawArg
	offset int
}

type rawArg struct {
	isCapture bool
	value     string
	offset    int
}

// adoptPredicate compiles built-in predicates; anything unrecognized is
// preserved as data on the pattern.
func (c *compiler) adoptPredicate(root *patternRoot, raw *rawPredicate) error {
	requireCapture := func(i int) (string, error) {
		if i >= len(raw.args) || !raw.args[i].isCapture {
			return "", c.errorf(ErrorPredicate, raw.offset,
				"%s expects a capture as argument %d", raw.name, i+1)
		}
		return raw.args[i].value, nil
	}

	switch raw.name {
	case "#eq?", "#not-eq?":
		if len(raw.args) != 2 {
			return c.errorf(ErrorPredicate, raw.offset, "%s expects two arguments", raw.name)
		}
		capName, err := requireCapture(0)
		if err != nil {
			return err
		}
		pred := compiledPredicate{kind: predEq, capture: c.query.captureID(capName)}
		if raw.name == "#not-eq?" {
			pred.kind = predNotEq
		}
		if raw.args[1].isCapture {
			pred.hasOther = true
			pred.otherCap = c.query.captureID(raw.args[1].value)
		} else {
			pred.value = raw.args[1].value
		}
		root.predicates = append(root.predicates, pred)

	case "#match?", "#not-match?":
		if len(raw.args) != 2 || raw.args[1].isCapture {
			return c.errorf(ErrorPredicate, raw.offset,
				"%s expects a capture and a regex string", raw.name)
		}
		capName, err := requireCapture(0)
		if err != nil {
			return err
		}
		re, err := regexp2.Compile(raw.args[1].value, regexp2.RE2)
		if err != nil {
			return c.errorf(ErrorPredicate, raw.args[1].offset, "bad regex: %v", err)
		}
		pred := compiledPredicate{
			kind:    predMatch,
			capture: c.query.captureID(capName),
			re:      re,
		}
		if raw.name == "#not-match?" {
			pred.kind = predNotMatch
		}
		root.predicates = append(root.predicates, pred)

	case "#any-of?", "#not-any-of?":
		if len(raw.args) < 2 {
			return c.errorf(ErrorPredicate, raw.offset,
				"%s expects a capture and at least one string", raw.name)
		}
		capName, err := requireCapture(0)
		if err != nil {
			return err
		}
		pred := compiledPredicate{kind: predAnyOf, capture: c.query.captureID(capName)}
		if raw.name == "#not-any-of?" {
			pred.kind = predNotAnyOf
		}
		for _, arg := range raw.args[1:] {
			if arg.isCapture {
				return c.errorf(ErrorPredicate, arg.offset,
					"%s expects string arguments after the capture", raw.name)
			}
			pred.values = append(pred.values, arg.value)
		}
		root.predicates = append(root.predicates, pred)

	default:
		general := Predicate{Name: raw.name}
		for _, arg := range raw.args {
			pa := PredicateArg{IsCapture: arg.isCapture, Value: arg.value}
			if arg.isCapture {
				pa.Capture = c.query.captureID(arg.value)
			}
			general.Args = append(general.Args, pa)
		}
		root.general = append(root.general, general)
	}
	return nil
}

// resolvePredicateCaptures verifies every capture a predicate references
// is bound somewhere in its pattern.
func (c *compiler) resolvePredicateCaptures() error {
	for pi := range c.query.patterns {
		root := &c.query.patterns[pi]
		bound := map[uint16]bool{}
		collectCaptures(root.node, bound)
		check := func(id uint16) error {
			if !bound[id] {
				return c.errorf(ErrorCapture, 0,
					"pattern %d: predicate references uncaptured @%s",
					pi, c.query.captureNames[id])
			}
			return nil
		}
		for _, pred := range root.predicates {
			if err := check(pred.capture); err != nil {
				return err
			}
			if pred.hasOther {
				if err := check(pred.otherCap); err != nil {
					return err
				}
			}
		}
		for _, pred := range root.general {
			for _, arg := range pred.Args {
				if arg.IsCapture {
					if err := check(arg.Capture); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}

func collectCaptures(node *patternNode, out map[uint16]bool) {
	if node == nil {
		return
	}
	for _, id := range node.captures {
		out[id] = true
	}
	for _, child := range node.children {
		collectCaptures(child, out)
	}
	for _, alt := range node.alternatives {
		collectCaptures(alt, out)
	}
}
