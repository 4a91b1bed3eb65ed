package grammars

import "github.com/yaklabco/cedar/pkg/language"

// Symbol and state layout for the arithmetic grammar:
//
//	source := sum | number
//	sum    := number "+" number | sum "+" number
//
// Whitespace is skipped by the lexer. The sum productions label their
// operands with the fields "left" and "right".
const (
	arithNumber     language.Symbol = 1
	arithPlus       language.Symbol = 2
	arithSum        language.Symbol = 3
	arithSource     language.Symbol = 4
	arithExpression language.Symbol = 5
)

const (
	arithFieldLeft  language.FieldID = 1
	arithFieldRight language.FieldID = 2
)

// Arithmetic loads the arithmetic demo language.
var Arithmetic = cached(buildArithmetic)

func buildArithmetic() (*language.Language, error) {
	sumFields := []language.FieldMapEntry{
		{Field: arithFieldLeft, ChildIndex: 0},
		{Field: arithFieldRight, ChildIndex: 2},
	}

	def := language.Definition{
		Name:    "arithmetic",
		Version: language.LanguageVersion,
		SymbolNames: []string{
			"end", "number", "+", "sum", "source", "expression",
		},
		SymbolMeta: []language.SymbolMetadata{
			{},
			{Visible: true, Named: true},
			{Visible: true},
			{Visible: true, Named: true},
			{Visible: true, Named: true},
			{Named: true, Supertype: true},
		},
		Supertypes: []language.Symbol{arithExpression},
		Subtypes: map[language.Symbol][]language.Symbol{
			arithExpression: {arithNumber, arithSum},
		},
		FieldNames: []string{"", "left", "right"},
		Productions: []language.ProductionInfo{
			{},
			{Fields: sumFields}, // sum := number "+" number
			{Fields: sumFields}, // sum := sum "+" number
			{},                  // source := sum | number
		},
		Actions: []map[language.Symbol][]language.ParseAction{
			{ // 0: start
				arithNumber: {language.Shift(1)},
			},
			{ // 1: number
				arithPlus:          {language.Shift(3)},
				language.SymbolEnd: {language.Reduce(arithSource, 1, 3)},
			},
			{ // 2: sum
				arithPlus:          {language.Shift(4)},
				language.SymbolEnd: {language.Reduce(arithSource, 1, 3)},
			},
			{ // 3: number "+"
				arithNumber: {language.Shift(5)},
			},
			{ // 4: sum "+"
				arithNumber: {language.Shift(7)},
			},
			{ // 5: number "+" number
				language.SymbolEnd: {language.Reduce(arithSum, 3, 1)},
				arithPlus:          {language.Reduce(arithSum, 3, 1)},
			},
			{ // 6: source
				language.SymbolEnd: {language.Accept()},
			},
			{ // 7: sum "+" number
				language.SymbolEnd: {language.Reduce(arithSum, 3, 2)},
				arithPlus:          {language.Reduce(arithSum, 3, 2)},
			},
		},
		Gotos: []map[language.Symbol]language.StateID{
			{arithSum: 2, arithSource: 6},
			{}, {}, {}, {}, {}, {}, {},
		},
		LexModes: make([]language.LexMode, 8),
		LexStates: []language.LexState{
			{ // 0: start
				Transitions: []language.LexTransition{
					language.SkipTo(' ', ' ', 0),
					language.SkipTo('\t', '\t', 0),
					language.SkipTo('\n', '\n', 0),
					language.SkipTo('\r', '\r', 0),
					language.Advance('0', '9', 1),
					language.Advance('+', '+', 2),
				},
				EOFNext: -1,
			},
			language.NewLexState(arithNumber, true,
				language.Advance('0', '9', 1)),
			language.NewLexState(arithPlus, true),
		},
		MaxLookaheadBytes: 1,
	}
	return language.New(def)
}

func init() {
	Register(Entry{
		Name:       "arithmetic",
		Extensions: []string{".sum", ".arith"},
		Load:       Arithmetic,
	})
}
