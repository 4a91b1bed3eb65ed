package parser

import (
	"fmt"
	"unicode/utf8"

	"github.com/yaklabco/cedar/pkg/cst"
	"github.com/yaklabco/cedar/pkg/language"
)

// Input is the pull-style chunk reader the parser consumes. Given a byte
// offset and its point, it returns a chunk of text starting there; an
// empty chunk signals end of input. Chunks may be arbitrarily small and
// the lexer may re-seek.
type Input func(offset uint32, position cst.Point) []byte

// token is one lexed unit plus the metadata the driver needs.
type token struct {
	subtree cst.Subtree

	// keywordCandidate is set when the keyword DFA reclassified the
	// token; the driver applies it only if the parse state accepts it.
	keywordCandidate    language.Symbol
	hasKeywordCandidate bool
}

// lexer runs the language DFA over the input reader. It is a resumable
// state machine: every call starts from an explicit position, so the
// driver may re-lex freely after stack branching.
type lexer struct {
	input  Input
	pool   *cst.Pool
	lang   *language.Language
	logger Logger

	chunk      []byte
	chunkStart uint32

	current       cst.Length
	lookahead     rune
	lookaheadSize uint32
	physicalEOF   bool

	includedRanges []cst.Range
	rangeIndex     int

	// contentStart and markedEnd implement the external scanner
	// protocol.
	contentStart    cst.Length
	contentStarted  bool
	markedEnd       cst.Length
	markedSet       bool
	externalPadding cst.Length
}

func newLexer(pool *cst.Pool) *lexer {
	return &lexer{pool: pool}
}

func (l *lexer) reset(input Input, lang *language.Language, ranges []cst.Range, logger Logger) {
	l.input = input
	l.lang = lang
	l.logger = logger
	l.includedRanges = ranges
	l.rangeIndex = 0
	l.chunk = nil
	l.chunkStart = 0
	l.physicalEOF = false
	if len(ranges) > 0 {
		l.current = cst.Length{Bytes: ranges[0].StartByte, Extent: ranges[0].StartPoint}
	} else {
		l.current = cst.Length{}
	}
}

// byteAt reads one byte, refilling the chunk as needed.
func (l *lexer) byteAt(offset uint32) (byte, bool) {
	if offset < l.chunkStart || offset >= l.chunkStart+uint32(len(l.chunk)) {
		chunk := l.input(offset, l.current.Extent)
		if len(chunk) == 0 {
			return 0, false
		}
		l.chunk = chunk
		l.chunkStart = offset
	}
	return l.chunk[offset-l.chunkStart], true
}

// runeAt decodes a UTF-8 rune at an offset, tolerating chunk boundaries
// that split a codepoint.
func (l *lexer) runeAt(offset uint32) (rune, uint32, bool) {
	var buf [4]byte
	n := 0
	for ; n < 4; n++ {
		b, ok := l.byteAt(offset + uint32(n))
		if !ok {
			break
		}
		buf[n] = b
		if n == 0 && b < utf8.RuneSelf {
			return rune(b), 1, true
		}
		if r, size := utf8.DecodeRune(buf[:n+1]); r != utf8.RuneError || size > 1 {
			if r == utf8.RuneError {
				return utf8.RuneError, 1, true
			}
			return r, uint32(size), true
		}
	}
	if n == 0 {
		return 0, 0, false
	}
	// Truncated or invalid sequence: consume one byte.
	return utf8.RuneError, 1, true
}

// normalize hops the position across included-range gaps and refreshes
// the lookahead rune.
func (l *lexer) normalize() {
	for l.rangeIndex < len(l.includedRanges) {
		r := l.includedRanges[l.rangeIndex]
		if l.current.Bytes < r.StartByte {
			l.current = cst.Length{Bytes: r.StartByte, Extent: r.StartPoint}
		}
		if l.current.Bytes < r.EndByte {
			break
		}
		l.rangeIndex++
	}
	if l.rangeIndex >= len(l.includedRanges) {
		l.lookahead = -1
		l.lookaheadSize = 0
		return
	}
	r, size, ok := l.runeAt(l.current.Bytes)
	if !ok {
		l.physicalEOF = true
		l.lookahead = -1
		l.lookaheadSize = 0
		return
	}
	l.lookahead = r
	l.lookaheadSize = size
}

// seek repositions the lexer, rewinding the range index when needed.
func (l *lexer) seek(pos cst.Length) {
	l.current = pos
	l.physicalEOF = false
	l.rangeIndex = 0
	for l.rangeIndex < len(l.includedRanges) &&
		l.includedRanges[l.rangeIndex].EndByte <= pos.Bytes {
		l.rangeIndex++
	}
	l.normalize()
}

func (l *lexer) atEOF() bool { return l.lookahead < 0 }

// advanceRune consumes the lookahead rune and refreshes position state.
func (l *lexer) advanceRune() {
	if l.lookahead < 0 {
		return
	}
	if l.lookahead == '\n' {
		l.current.Extent.Row++
		l.current.Extent.Column = 0
	} else {
		l.current.Extent.Column += l.lookaheadSize
	}
	l.current.Bytes += l.lookaheadSize
	l.normalize()
}

// LexerControl implementation for external scanners.

// Lookahead returns the current rune, or -1 at end of input.
func (l *lexer) Lookahead() rune { return l.lookahead }

// AtEOF reports whether the position reached the end of the last range.
func (l *lexer) AtEOF() bool { return l.atEOF() }

// Advance consumes the current rune; skipped runes become padding.
func (l *lexer) Advance(skip bool) {
	if skip && !l.contentStarted {
		l.advanceRune()
		l.externalPadding = l.current
		return
	}
	if !l.contentStarted {
		l.contentStarted = true
		l.contentStart = l.current
	}
	l.advanceRune()
}

// MarkEnd records the token end for the external scanner protocol.
func (l *lexer) MarkEnd() {
	l.markedEnd = l.current
	l.markedSet = true
}

// Column returns the byte column of the current position.
func (l *lexer) Column() uint32 { return l.current.Extent.Column }

// scanExternal runs the external scanner at pos. It returns the lexed
// token and true, or false when the scanner matched nothing.
func (l *lexer) scanExternal(
	pos cst.Length,
	valid []bool,
	payload any,
	rangeIndex uint32,
) (cst.Subtree, bool) {
	scanner := l.lang.Scanner()
	if scanner == nil || scanner.Scan == nil {
		return cst.Subtree{}, false
	}
	l.seek(pos)
	l.contentStarted = false
	l.markedSet = false
	l.externalPadding = pos

	sym, ok := scanner.Scan(payload, l, valid)
	if !ok {
		return cst.Subtree{}, false
	}
	idx, known := l.lang.ExternalTokenIndex(sym)
	if !known || int(idx) >= len(valid) || !valid[idx] {
		// Inconsistent result; treat as a lexer failure here and let
		// recovery absorb it.
		l.logf(LogTypeLex, "external scanner returned invalid symbol %d", sym)
		return cst.Subtree{}, false
	}

	end := l.current
	if l.markedSet {
		end = l.markedEnd
	}
	contentStart := l.externalPadding
	if l.contentStarted {
		contentStart = l.contentStart
	}
	if end.Bytes < contentStart.Bytes {
		end = contentStart
	}
	if end.Bytes == pos.Bytes {
		// A zero-width token at an unadvanced position would let the
		// driver shift forever without consuming input.
		return cst.Subtree{}, false
	}

	var state []byte
	if scanner.Serialize != nil {
		state = scanner.Serialize(payload)
	}
	meta := l.lang.SymbolMetadata(sym)
	leaf := l.pool.NewLeaf(cst.LeafData{
		Symbol:             sym,
		Padding:            contentStart.Sub(pos),
		Size:               end.Sub(contentStart),
		Visible:            meta.Visible,
		Named:              meta.Named,
		Extra:              meta.Extra,
		External:           true,
		ExternalState:      state,
		IncludedRangeIndex: rangeIndex,
	})
	l.logf(LogTypeLex, "external token sym=%s size=%d", l.lang.SymbolName(sym), end.Bytes-contentStart.Bytes)
	return leaf, true
}

// nextToken lexes one token at pos with the given mode. It always
// produces a token: END at end of input, a single-codepoint ERROR leaf
// when the DFA recognizes nothing.
func (l *lexer) nextToken(pos cst.Length, mode language.LexMode, parseState language.StateID) token {
	l.seek(pos)
	rangeIndex := uint32(l.rangeIndex)
	states := l.lang.LexStates()

	tokenStart := l.current
	state := int32(mode.State)
	var acceptSym language.Symbol
	var acceptEnd cst.Length
	hasAccept := false
	examinedEnd := l.current.Bytes

	for {
		if int(state) >= len(states) {
			break
		}
		st := &states[state]
		if st.HasAccept {
			acceptSym = st.AcceptSymbol
			acceptEnd = l.current
			hasAccept = true
		}
		if l.atEOF() {
			if st.EOFNext >= 0 {
				state = st.EOFNext
				continue
			}
			if len(st.Transitions) > 0 {
				// The DFA consulted end-of-input to stop, so text
				// appended here must invalidate the token.
				examinedEnd = l.current.Bytes + 1
			}
			break
		}
		if len(st.Transitions) == 0 {
			// Dead end regardless of input: the next rune is never
			// examined, so it cannot invalidate this token.
			break
		}
		examinedEnd = l.current.Bytes + l.lookaheadSize
		tr, ok := st.Step(l.lookahead)
		if !ok {
			break
		}
		if tr.Skip && !hasAccept && l.current.Bytes == tokenStart.Bytes {
			l.advanceRune()
			tokenStart = l.current
		} else {
			l.advanceRune()
		}
		state = tr.Next
	}

	if hasAccept {
		lookaheadBytes := uint32(0)
		if examinedEnd > acceptEnd.Bytes {
			lookaheadBytes = examinedEnd - acceptEnd.Bytes
		}
		meta := l.lang.SymbolMetadata(acceptSym)
		tok := token{subtree: l.pool.NewLeaf(cst.LeafData{
			Symbol:             acceptSym,
			ParseState:         parseState,
			Padding:            tokenStart.Sub(pos),
			Size:               acceptEnd.Sub(tokenStart),
			LookaheadBytes:     lookaheadBytes,
			Visible:            meta.Visible,
			Named:              meta.Named,
			Extra:              meta.Extra,
			IncludedRangeIndex: rangeIndex,
		})}
		if capture, ok := l.lang.KeywordCaptureToken(); ok && acceptSym == capture {
			if kw, matched := l.keywordFor(tokenStart.Bytes, acceptEnd.Bytes); matched {
				tok.keywordCandidate = kw
				tok.hasKeywordCandidate = true
			}
		}
		l.logf(LogTypeLex, "token sym=%s start=%d size=%d",
			l.lang.SymbolName(acceptSym), tokenStart.Bytes, acceptEnd.Bytes-tokenStart.Bytes)
		return tok
	}

	if l.atEOF() && l.current.Bytes == tokenStart.Bytes {
		return token{subtree: l.pool.NewLeaf(cst.LeafData{
			Symbol:             language.SymbolEnd,
			ParseState:         parseState,
			Padding:            tokenStart.Sub(pos),
			IncludedRangeIndex: rangeIndex,
		})}
	}

	// Nothing recognized: emit a one-codepoint ERROR leaf so recovery
	// can resume past it.
	l.seek(tokenStart)
	size := cst.Length{}
	if !l.atEOF() {
		if l.lookahead == '\n' {
			size = cst.Length{Bytes: l.lookaheadSize, Extent: cst.Point{Row: 1}}
		} else {
			size = cst.Length{Bytes: l.lookaheadSize, Extent: cst.Point{Column: l.lookaheadSize}}
		}
	}
	l.logf(LogTypeLex, "error char at byte %d", tokenStart.Bytes)
	return token{subtree: l.pool.NewLeaf(cst.LeafData{
		Symbol:             language.SymbolError,
		ParseState:         parseState,
		Padding:            tokenStart.Sub(pos),
		Size:               size,
		IncludedRangeIndex: rangeIndex,
	})}
}

// keywordFor re-lexes a token span through the keyword DFA.
func (l *lexer) keywordFor(startByte, endByte uint32) (language.Symbol, bool) {
	states := l.lang.KeywordLexStates()
	if len(states) == 0 {
		return 0, false
	}
	state := int32(0)
	offset := startByte
	for offset < endByte {
		r, size, ok := l.runeAt(offset)
		if !ok || int(state) >= len(states) {
			return 0, false
		}
		tr, matched := states[state].Step(r)
		if !matched {
			return 0, false
		}
		state = tr.Next
		offset += size
	}
	if int(state) < len(states) && states[state].HasAccept {
		return states[state].AcceptSymbol, true
	}
	return 0, false
}

func (l *lexer) logf(logType LogType, format string, args ...any) {
	if l.logger != nil {
		l.logger(logType, fmt.Sprintf(format, args...))
	}
}
