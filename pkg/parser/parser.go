package parser

import (
	"fmt"
	"sort"
	"time"

	"github.com/yaklabco/cedar/pkg/cst"
	"github.com/yaklabco/cedar/pkg/language"
)

// defaultRecoveryDepth bounds how many speculative insertions error
// recovery may chain at one position before giving up.
const defaultRecoveryDepth = 8

// progressInterval is how many driver steps run between progress
// callback invocations.
const progressInterval = 64

// ProgressCallback is invoked periodically with the current byte offset;
// returning false cancels the parse.
type ProgressCallback func(offset uint32) bool

// Stats exposes counters from the most recent parse. Tests use them to
// assert incremental reuse; the CLI reports them under --time.
type Stats struct {
	// Operations counts driver steps (shift, reduce, recovery moves).
	Operations uint64

	// TokensLexed counts tokens produced by the lexer, END included.
	TokensLexed uint64

	// SubtreesReused counts subtrees shifted whole from the old tree.
	SubtreesReused uint64
}

// Parser drives the GLR parse. One parse runs at a time per parser; the
// parser is reusable afterward, including after cancellation.
type Parser struct {
	lang  *language.Language
	pool  *cst.Pool
	stack *parseStack
	lexer *lexer

	includedRanges []cst.Range
	timeoutMicros  uint64
	opLimit        uint64
	recoveryDepth  int
	logger         Logger
	progress       ProgressCallback

	// Per-parse state.
	input          Input
	reuse          *reusableNode
	scannerPayload any
	deadline       time.Time
	hasDeadline    bool
	stats          Stats

	cachedTok     token
	cachedPos     uint32
	cachedMode    language.LexMode
	cachedExt     cst.Subtree
	hasCachedTok  bool
	finishedRoot  cst.Subtree
	finishedValid bool
}

// NewParser creates a parser with no language set.
func NewParser() *Parser {
	pool := cst.NewPool()
	return &Parser{
		pool:          pool,
		lexer:         newLexer(pool),
		recoveryDepth: defaultRecoveryDepth,
	}
}

// SetLanguage installs the language, rejecting incompatible ABI versions.
func (p *Parser) SetLanguage(lang *language.Language) error {
	if err := language.CheckCompatible(lang.Version()); err != nil {
		return err
	}
	p.lang = lang
	return nil
}

// Language returns the current language, or nil.
func (p *Parser) Language() *language.Language { return p.lang }

// SetIncludedRanges restricts parsing to the given ranges, which must be
// sorted and non-overlapping. An empty slice restores whole-document
// parsing.
func (p *Parser) SetIncludedRanges(ranges []cst.Range) error {
	var prevEnd uint32
	for i, r := range ranges {
		if r.StartByte < prevEnd || r.EndByte < r.StartByte {
			return &IncludedRangesError{Index: i}
		}
		prevEnd = r.EndByte
	}
	p.includedRanges = append([]cst.Range(nil), ranges...)
	return nil
}

// IncludedRanges returns the configured ranges.
func (p *Parser) IncludedRanges() []cst.Range {
	return append([]cst.Range(nil), p.includedRanges...)
}

// SetTimeoutMicros sets a wall-clock parse deadline; 0 disables it.
func (p *Parser) SetTimeoutMicros(micros uint64) { p.timeoutMicros = micros }

// TimeoutMicros returns the configured deadline.
func (p *Parser) TimeoutMicros() uint64 { return p.timeoutMicros }

// SetOperationLimit bounds driver steps per parse; 0 disables it.
func (p *Parser) SetOperationLimit(limit uint64) { p.opLimit = limit }

// SetErrorRecoveryDepth bounds speculative recovery insertions.
func (p *Parser) SetErrorRecoveryDepth(depth int) {
	if depth > 0 {
		p.recoveryDepth = depth
	}
}

// SetLogger installs a callback for lex and parse events.
func (p *Parser) SetLogger(logger Logger) { p.logger = logger }

// SetProgressCallback installs a cancellation hook.
func (p *Parser) SetProgressCallback(cb ProgressCallback) { p.progress = cb }

// Stats returns counters from the most recent parse.
func (p *Parser) Stats() Stats { return p.stats }

// Parse parses a byte slice. oldTree, when non-nil, must be an edited
// tree from a previous parse of the same document; its unchanged
// subtrees are reused.
func (p *Parser) Parse(text []byte, oldTree *cst.Tree) (*cst.Tree, error) {
	return p.ParseWith(func(offset uint32, _ cst.Point) []byte {
		if int(offset) < len(text) {
			return text[offset:]
		}
		return nil
	}, oldTree)
}

// ParseWith parses text pulled from a chunk reader.
func (p *Parser) ParseWith(input Input, oldTree *cst.Tree) (*cst.Tree, error) {
	if p.lang == nil {
		return nil, ErrNoLanguage
	}

	ranges := p.includedRanges
	if len(ranges) == 0 {
		ranges = []cst.Range{{EndByte: ^uint32(0), EndPoint: cst.Point{Row: ^uint32(0)}}}
	}

	p.input = input
	p.stack = newParseStack()
	p.lexer.reset(input, p.lang, ranges, p.logger)
	p.stats = Stats{}
	p.hasCachedTok = false
	p.finishedValid = false
	p.finishedRoot = cst.Subtree{}

	if oldTree != nil {
		p.reuse = newReusableNode(oldTree.RootSubtree())
	} else {
		p.reuse = nil
	}

	if scanner := p.lang.Scanner(); scanner != nil && scanner.Create != nil {
		p.scannerPayload = scanner.Create()
		defer func() {
			if scanner.Destroy != nil {
				scanner.Destroy(p.scannerPayload)
			}
			p.scannerPayload = nil
		}()
	}

	p.hasDeadline = p.timeoutMicros > 0
	if p.hasDeadline {
		p.deadline = time.Now().Add(time.Duration(p.timeoutMicros) * time.Microsecond)
	}

	for p.stack.versionCount() > 0 {
		for v := 0; v < p.stack.versionCount(); v++ {
			if p.stack.version(v).status != versionActive {
				continue
			}
			for {
				if err := p.checkBudget(v); err != nil {
					return nil, err
				}
				if !p.advanceVersion(v) {
					break
				}
			}
		}
		p.stack.condense()
	}

	root := p.finishedRoot
	if !p.finishedValid {
		// Recovery gave up entirely; produce an ERROR root spanning
		// the input so parsing still yields a tree.
		errRoot, err := p.lastResortErrorRoot(ranges)
		if err != nil {
			return nil, err
		}
		root = errRoot
	}

	treeRanges := p.treeRanges(ranges, root)
	return cst.NewTree(root, p.lang, treeRanges), nil
}

// treeRanges clamps the default whole-document range to the parsed
// extent so trees report concrete coverage.
func (p *Parser) treeRanges(ranges []cst.Range, root cst.Subtree) []cst.Range {
	out := make([]cst.Range, len(ranges))
	copy(out, ranges)
	if len(p.includedRanges) == 0 && len(out) == 1 {
		total := root.TotalLength()
		out[0] = cst.Range{EndByte: total.Bytes, EndPoint: total.Extent}
	}
	return out
}

func (p *Parser) checkBudget(v int) error {
	p.stats.Operations++
	if p.opLimit > 0 && p.stats.Operations > p.opLimit {
		return ErrCancelled
	}
	if p.hasDeadline && time.Now().After(p.deadline) {
		return ErrCancelled
	}
	if p.progress != nil && p.stats.Operations%progressInterval == 0 {
		if !p.progress(p.stack.position(v).Bytes) {
			return ErrCancelled
		}
	}
	return nil
}

// advanceVersion runs one driver step for a version. It returns true
// when the same version should keep advancing (after reductions) and
// false once a token was consumed or the version retired.
func (p *Parser) advanceVersion(v int) bool {
	if p.stack.version(v).status != versionActive {
		return false
	}
	state := p.stack.state(v)
	pos := p.stack.position(v)

	// Whole-subtree reuse is only sound while a single head is live;
	// branched heads would fight over the shared cursor.
	if p.reuse != nil && p.stack.versionCount() == 1 && !p.stack.inErrorRecovery(v) {
		if sub, nextState, ok := p.reuseSubtree(state, pos); ok {
			p.stack.push(v, sub, true, nextState)
			p.stats.SubtreesReused++
			p.hasCachedTok = false
			p.logf(LogTypeParse, "reused subtree sym=%s bytes=%d",
				p.lang.SymbolName(sub.Symbol()), sub.TotalLength().Bytes)
			return false
		}
	}

	tok := p.lookaheadToken(v, state, pos)
	leaf, sym := p.tokenForState(tok, state)

	actions := p.lang.Actions(state, sym)
	if len(actions) == 0 {
		if p.lang.IsExtra(sym) && !p.stack.inErrorRecovery(v) {
			p.stack.push(v, leaf, true, state)
			p.hasCachedTok = false
			return false
		}
		return p.handleError(v, leaf, sym)
	}

	// Fork a head per extra action; the forks advance on their own
	// turns with the cached lookahead.
	for i := 1; i < len(actions); i++ {
		fork := p.stack.copyVersion(v)
		p.applyAction(fork, actions[i], leaf, sym, true)
	}
	return p.applyAction(v, actions[0], leaf, sym, len(actions) > 1)
}

// applyAction performs one parse action. The return value follows
// advanceVersion's contract.
func (p *Parser) applyAction(v int, action language.ParseAction, leaf cst.Subtree, sym language.Symbol, ambiguous bool) bool {
	switch action.Type {
	case language.ActionShift:
		state := action.State
		if action.Extra {
			state = p.stack.state(v)
		}
		p.stack.push(v, leaf, true, state)
		if leaf.HasExternalTokens() {
			p.stack.version(v).lastExternalToken = leaf
		}
		p.stack.version(v).errorDepth = 0
		p.hasCachedTok = false
		p.logf(LogTypeParse, "shift sym=%s state=%d", p.lang.SymbolName(sym), state)
		return false

	case language.ActionReduce:
		p.reduce(v, action, ambiguous)
		return true

	case language.ActionAccept:
		// Push the END leaf so trailing padding stays in the tree.
		p.stack.push(v, leaf, true, p.stack.state(v))
		p.accept(v)
		return false

	default:
		p.stack.halt(v)
		return false
	}
}

// reduce pops a production's children and pushes the new node, forking a
// version for every additional GLR path.
func (p *Parser) reduce(v int, action language.ParseAction, ambiguous bool) {
	slices := p.stack.pop(v, int(action.ChildCount))
	if len(slices) == 0 {
		p.stack.halt(v)
		return
	}
	fragile := ambiguous || len(slices) > 1
	for i, slice := range slices {
		target := v
		if i > 0 {
			target = p.stack.forkAt(v, slice.node)
		} else {
			p.stack.version(v).node = slice.node
		}

		children := slice.subtrees
		// Trailing extras belong after the reduced node, not inside
		// it.
		var trailing []cst.Subtree
		for len(children) > 0 && children[len(children)-1].Extra() {
			trailing = append([]cst.Subtree{children[len(children)-1]}, trailing...)
			children = children[:len(children)-1]
		}

		node := p.pool.NewNode(p.lang, action.Symbol, children, action.Production, cst.NodeOptions{
			DynamicPrecedence: action.DynamicPrecedence,
			Fragile:           fragile,
		})
		nextState := p.lang.NextState(slice.node.state, action.Symbol)
		p.stack.push(target, node, true, nextState)
		for _, extra := range trailing {
			p.stack.push(target, extra, true, nextState)
		}
		p.logf(LogTypeParse, "reduce sym=%s children=%d state=%d",
			p.lang.SymbolName(action.Symbol), len(children), nextState)
	}
}

// accept retires a version, keeping the best finished root by error cost
// then dynamic precedence; the earlier head wins full ties.
func (p *Parser) accept(v int) {
	slices := p.stack.popAll(v)
	p.stack.halt(v)
	if len(slices) == 0 {
		return
	}
	trees := slices[0].subtrees
	var root cst.Subtree
	for i, t := range trees {
		if t.Extra() || t.Symbol() == language.SymbolEnd {
			continue
		}
		if t.ChildCount() > 0 {
			// Absorb surrounding extras into the root node.
			children := make([]cst.Subtree, 0, len(trees)+t.ChildCount()-1)
			children = append(children, trees[:i]...)
			children = append(children, t.Children()...)
			children = append(children, dropEnd(trees[i+1:])...)
			root = p.pool.NewNode(p.lang, t.Symbol(), children, t.Production(), cst.NodeOptions{})
		} else if len(trees) > 1 {
			root = p.pool.NewNode(p.lang, t.Symbol(), dropEnd(trees), 0, cst.NodeOptions{})
		} else {
			root = t
		}
		break
	}
	if root.IsEmpty() {
		if len(trees) > 0 {
			root = p.pool.NewErrorNode(p.lang, dropEnd(trees))
		} else {
			root = p.pool.NewErrorNode(p.lang, nil)
		}
	}
	if !p.finishedValid ||
		root.ErrorCost() < p.finishedRoot.ErrorCost() ||
		(root.ErrorCost() == p.finishedRoot.ErrorCost() &&
			root.DynamicPrecedence() > p.finishedRoot.DynamicPrecedence()) {
		p.finishedRoot = root
		p.finishedValid = true
	}
	p.logf(LogTypeParse, "accept cost=%d", root.ErrorCost())
}

// dropEnd filters zero-width END leaves out of a root's children.
func dropEnd(trees []cst.Subtree) []cst.Subtree {
	out := make([]cst.Subtree, 0, len(trees))
	for _, t := range trees {
		if t.Symbol() == language.SymbolEnd && t.TotalLength().Bytes == 0 {
			continue
		}
		out = append(out, t)
	}
	return out
}

// handleError runs one recovery step for a version that has no action on
// the lookahead.
func (p *Parser) handleError(v int, leaf cst.Subtree, sym language.Symbol) bool {
	if p.stack.inErrorRecovery(v) {
		below := p.errorBaseState(v)
		if sym != language.SymbolEnd && len(p.lang.Actions(below, sym)) == 0 && !p.lang.IsExtra(sym) {
			// Keep skipping into the pending ERROR.
			p.stack.push(v, leaf, true, language.ErrorState)
			p.hasCachedTok = false
			p.logf(LogTypeParse, "skip sym=%s into error", p.lang.SymbolName(sym))
			return false
		}
		// The lookahead is viable below the error: close it.
		skipped := p.stack.popError(v)
		if len(skipped) == 0 {
			p.stack.halt(v)
			return false
		}
		errNode := p.pool.NewErrorNode(p.lang, skipped)
		resumeState := p.lang.NextState(p.stack.state(v), language.SymbolError)
		if resumeState == 0 {
			resumeState = p.stack.state(v)
		}
		p.stack.push(v, errNode, true, resumeState)
		p.logf(LogTypeParse, "closed error node bytes=%d", errNode.TotalLength().Bytes)
		return true
	}

	state := p.stack.state(v)
	depth := p.stack.version(v).errorDepth

	// Branch A: insert MISSING tokens that unlock progress.
	if depth < p.recoveryDepth {
		for _, missing := range p.insertableSymbols(state, sym) {
			fork := p.stack.copyVersion(v)
			nextState := p.lang.NextState(state, missing)
			leafMissing := p.pool.NewMissingLeaf(p.lang, missing, state)
			p.stack.push(fork, leafMissing, true, nextState)
			p.stack.version(fork).errorDepth = depth + 1
			p.logf(LogTypeParse, "insert missing sym=%s", p.lang.SymbolName(missing))
		}
	}

	// Branch B: skip the offending token into a fresh ERROR.
	if sym != language.SymbolEnd {
		p.stack.push(v, leaf, true, language.ErrorState)
		p.hasCachedTok = false
		p.logf(LogTypeParse, "open error, skip sym=%s", p.lang.SymbolName(sym))
		return false
	}

	p.stack.halt(v)
	return false
}

// errorBaseState finds the parse state beneath a version's error run.
func (p *Parser) errorBaseState(v int) language.StateID {
	node := p.stack.version(v).node
	for node.state == language.ErrorState && len(node.links) > 0 {
		node = node.links[0].node
	}
	return node.state
}

// insertableSymbols lists terminals whose insertion as MISSING leaves
// would let the current lookahead make progress.
func (p *Parser) insertableSymbols(state language.StateID, lookahead language.Symbol) []language.Symbol {
	var out []language.Symbol
	seen := map[language.Symbol]bool{}
	for sym := language.Symbol(1); sym < language.Symbol(p.lang.SymbolCount()); sym++ {
		if seen[sym] || p.lang.IsExtra(sym) {
			continue
		}
		hasShift := false
		for _, action := range p.lang.Actions(state, sym) {
			if action.Type == language.ActionShift && !action.Extra {
				hasShift = true
				break
			}
		}
		if !hasShift {
			continue
		}
		next := p.lang.NextState(state, sym)
		if next == 0 || len(p.lang.Actions(next, lookahead)) == 0 {
			continue
		}
		seen[sym] = true
		out = append(out, sym)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// lookaheadToken returns the token at a position, caching it so sibling
// versions at the same position do not re-lex.
func (p *Parser) lookaheadToken(v int, state language.StateID, pos cst.Length) token {
	mode := p.lang.LexMode(state)
	version := p.stack.version(v)

	if p.hasCachedTok && p.cachedPos == pos.Bytes && p.cachedMode == mode &&
		p.cachedExt.Same(version.lastExternalToken) {
		return p.cachedTok
	}

	if mode.ExternalState != 0 {
		if scanner := p.lang.Scanner(); scanner != nil {
			if scanner.Deserialize != nil {
				scanner.Deserialize(p.scannerPayload, version.lastExternalToken.ExternalState())
			}
			valid := p.lang.ValidExternalTokens(mode.ExternalState)
			if leaf, ok := p.lexer.scanExternal(pos, valid, p.scannerPayload, uint32(p.lexer.rangeIndex)); ok {
				tok := token{subtree: leaf}
				p.stats.TokensLexed++
				p.cacheToken(tok, pos.Bytes, mode, version.lastExternalToken)
				return tok
			}
		}
	}

	tok := p.lexer.nextToken(pos, mode, state)
	p.stats.TokensLexed++
	p.cacheToken(tok, pos.Bytes, mode, version.lastExternalToken)
	return tok
}

func (p *Parser) cacheToken(tok token, pos uint32, mode language.LexMode, ext cst.Subtree) {
	p.cachedTok = tok
	p.cachedPos = pos
	p.cachedMode = mode
	p.cachedExt = ext
	p.hasCachedTok = true
}

// tokenForState applies keyword reclassification when the parse state
// accepts the keyword variant.
func (p *Parser) tokenForState(tok token, state language.StateID) (cst.Subtree, language.Symbol) {
	leaf := tok.subtree
	sym := leaf.Symbol()
	if tok.hasKeywordCandidate && len(p.lang.Actions(state, tok.keywordCandidate)) > 0 {
		kw := tok.keywordCandidate
		meta := p.lang.SymbolMetadata(kw)
		leaf = p.pool.NewLeaf(cst.LeafData{
			Symbol:         kw,
			ParseState:     leaf.ParseState(),
			Padding:        leaf.Padding(),
			Size:           leaf.Size(),
			LookaheadBytes: leaf.LookaheadBytes(),
			Visible:        meta.Visible,
			Named:          meta.Named,
			Extra:          meta.Extra,
			Keyword:        true,
		})
		return leaf, kw
	}
	return leaf, sym
}

// reuseSubtree offers the next reusable subtree aligned with pos, or
// reports that the driver must lex.
func (p *Parser) reuseSubtree(state language.StateID, pos cst.Length) (cst.Subtree, language.StateID, bool) {
	p.reuse.advanceTo(pos.Bytes)
	for {
		s, sPos, ok := p.reuse.current()
		if !ok || sPos.Bytes != pos.Bytes {
			return cst.Subtree{}, 0, false
		}
		if s.TotalLength().Bytes == 0 {
			p.reuse.advance()
			continue
		}
		if s.HasChanges() || s.HasError() || s.IsMissing() ||
			s.FragileLeft() || s.FragileRight() || s.HasExternalTokens() {
			if p.reuse.descend() {
				continue
			}
			return cst.Subtree{}, 0, false
		}
		if p.lang.LexMode(s.FirstLeafParseState()) != p.lang.LexMode(state) {
			if p.reuse.descend() {
				continue
			}
			return cst.Subtree{}, 0, false
		}

		sym := s.Symbol()
		if s.Extra() {
			p.reuse.advance()
			return s.Retain(), state, true
		}
		if s.IsLeaf() {
			hasShift := false
			var shiftState language.StateID
			for _, action := range p.lang.Actions(state, sym) {
				if action.Type == language.ActionShift && !action.Extra {
					hasShift = true
					shiftState = action.State
					break
				}
			}
			if !hasShift {
				return cst.Subtree{}, 0, false
			}
			p.reuse.advance()
			return s.Retain(), shiftState, true
		}
		next := p.lang.NextState(state, sym)
		if next == 0 {
			if p.reuse.descend() {
				continue
			}
			return cst.Subtree{}, 0, false
		}
		p.reuse.advance()
		return s.Retain(), next, true
	}
}

// lastResortErrorRoot lexes the input, from the start of the first
// included range, into a flat ERROR node so a tree is produced even when
// recovery gave up.
func (p *Parser) lastResortErrorRoot(ranges []cst.Range) (cst.Subtree, error) {
	var children []cst.Subtree
	pos := cst.Length{Bytes: ranges[0].StartByte, Extent: ranges[0].StartPoint}
	mode := p.lang.LexMode(0)
	for {
		p.stats.Operations++
		if p.opLimit > 0 && p.stats.Operations > p.opLimit {
			return cst.Subtree{}, ErrCancelled
		}
		tok := p.lexer.nextToken(pos, mode, language.ErrorState)
		total := tok.subtree.TotalLength()
		if tok.subtree.Symbol() == language.SymbolEnd || total.Bytes == 0 {
			break
		}
		children = append(children, tok.subtree)
		pos = pos.Add(total)
	}
	return p.pool.NewErrorNode(p.lang, children), nil
}

func (p *Parser) logf(logType LogType, format string, args ...any) {
	if p.logger != nil {
		p.logger(logType, fmt.Sprintf(format, args...))
	}
}
