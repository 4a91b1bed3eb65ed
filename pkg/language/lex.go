package language

// LexMode selects the lexer configuration for a parse state.
type LexMode struct {
	// State is the DFA start state for main-lexer tokens.
	State uint16

	// ExternalState indexes the external scanner validity table; 0
	// means the external scanner is not consulted in this parse state.
	ExternalState uint16
}

// LexTransition is one DFA edge: runes in [Lo, Hi] move to Next.
type LexTransition struct {
	Lo, Hi rune

	// Next is the successor DFA state.
	Next int32

	// Skip transitions consume whitespace-class characters before a
	// token starts; skipped bytes become the token's padding.
	Skip bool
}

// LexState is one node of a lexer DFA.
type LexState struct {
	Transitions []LexTransition

	// AcceptSymbol is the token recognized when the DFA stops here.
	AcceptSymbol Symbol
	HasAccept    bool

	// EOFNext is the successor state on end of input, or -1.
	EOFNext int32
}

// NewLexState is a convenience constructor with no EOF edge.
func NewLexState(accept Symbol, hasAccept bool, transitions ...LexTransition) LexState {
	return LexState{
		Transitions:  transitions,
		AcceptSymbol: accept,
		HasAccept:    hasAccept,
		EOFNext:      -1,
	}
}

// Advance builds an ordinary DFA edge.
func Advance(lo, hi rune, next int32) LexTransition {
	return LexTransition{Lo: lo, Hi: hi, Next: next}
}

// SkipTo builds a skip edge.
func SkipTo(lo, hi rune, next int32) LexTransition {
	return LexTransition{Lo: lo, Hi: hi, Next: next, Skip: true}
}

// Step finds the transition matching a rune, if any.
func (s *LexState) Step(r rune) (LexTransition, bool) {
	for _, tr := range s.Transitions {
		if r >= tr.Lo && r <= tr.Hi {
			return tr, true
		}
	}
	return LexTransition{}, false
}
