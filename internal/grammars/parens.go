package grammars

import "github.com/yaklabco/cedar/pkg/language"

// Balanced-parenthesis grammar:
//
//	paren := "(" ")" | "(" paren ")"
//
// Small enough to trace recovery by hand: truncated input exercises
// MISSING insertion, stray closers exercise ERROR wrapping.
const (
	parensOpen  language.Symbol = 1
	parensClose language.Symbol = 2
	parensParen language.Symbol = 3
)

// Parens loads the balanced-parenthesis demo language.
var Parens = cached(buildParens)

func buildParens() (*language.Language, error) {
	def := language.Definition{
		Name:    "parens",
		Version: language.LanguageVersion,
		SymbolNames: []string{
			"end", "(", ")", "paren",
		},
		SymbolMeta: []language.SymbolMetadata{
			{},
			{Visible: true},
			{Visible: true},
			{Visible: true, Named: true},
		},
		Productions: []language.ProductionInfo{
			{},
			{}, // paren := "(" ")"
			{}, // paren := "(" paren ")"
		},
		Actions: []map[language.Symbol][]language.ParseAction{
			{ // 0: start
				parensOpen: {language.Shift(1)},
			},
			{ // 1: "("
				parensClose: {language.Shift(2)},
				parensOpen:  {language.Shift(1)},
			},
			{ // 2: "(" ")"
				language.SymbolEnd: {language.Reduce(parensParen, 2, 1)},
				parensClose:        {language.Reduce(parensParen, 2, 1)},
			},
			{ // 3: "(" paren
				parensClose: {language.Shift(4)},
			},
			{ // 4: "(" paren ")"
				language.SymbolEnd: {language.Reduce(parensParen, 3, 2)},
				parensClose:        {language.Reduce(parensParen, 3, 2)},
			},
			{ // 5: paren
				language.SymbolEnd: {language.Accept()},
			},
		},
		Gotos: []map[language.Symbol]language.StateID{
			{parensParen: 5},
			{parensParen: 3},
			{}, {}, {}, {},
		},
		LexModes: make([]language.LexMode, 6),
		LexStates: []language.LexState{
			{ // 0: start
				Transitions: []language.LexTransition{
					language.SkipTo(' ', ' ', 0),
					language.SkipTo('\t', '\t', 0),
					language.SkipTo('\n', '\n', 0),
					language.Advance('(', '(', 1),
					language.Advance(')', ')', 2),
				},
				EOFNext: -1,
			},
			language.NewLexState(parensOpen, true),
			language.NewLexState(parensClose, true),
		},
		MaxLookaheadBytes: 1,
	}
	return language.New(def)
}

func init() {
	Register(Entry{
		Name:       "parens",
		Extensions: []string{".paren"},
		Load:       Parens,
	})
}
