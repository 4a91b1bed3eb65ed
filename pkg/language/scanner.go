package language

// LexerControl is the view of the lexer an external scanner drives. The
// scanner examines Lookahead, consumes characters with Advance, and marks
// the token end with MarkEnd. Characters advanced past the last MarkEnd
// are treated as lookahead, not token content.
type LexerControl interface {
	// Lookahead returns the current rune, or -1 at end of input.
	Lookahead() rune

	// AtEOF reports whether the logical position is at the end of the
	// last included range.
	AtEOF() bool

	// Advance consumes the current rune. With skip set the rune is
	// recorded as padding rather than token content.
	Advance(skip bool)

	// MarkEnd records the current position as the token end.
	MarkEnd()

	// Column returns the byte column of the current position, counted
	// from the start of the line. It may re-read the current line.
	Column() uint32
}

// ExternalScanner is the callback suite a language supplies for tokens the
// DFA cannot recognize (indentation, heredocs, raw strings). The payload
// returned by Create is threaded through every call; its serialized form
// travels with the subtrees that carry external tokens so scanner state
// can round-trip across incremental parses.
type ExternalScanner struct {
	// Create allocates scanner state for one parse.
	Create func() any

	// Destroy releases scanner state.
	Destroy func(payload any)

	// Scan attempts to recognize one external token. valid flags which
	// external token indices the current parse state admits. It returns
	// the recognized symbol and true, or false when nothing matched.
	Scan func(payload any, lexer LexerControl, valid []bool) (Symbol, bool)

	// Serialize snapshots scanner state into a byte blob.
	Serialize func(payload any) []byte

	// Deserialize restores scanner state from a blob. A nil blob resets
	// to the initial state.
	Deserialize func(payload any, data []byte)
}
