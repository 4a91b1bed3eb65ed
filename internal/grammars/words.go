package grammars

import "github.com/yaklabco/cedar/pkg/language"

// Word-sequence grammar:
//
//	seq := word | seq word
//
// The smallest useful incremental-parsing workload: flat documents of
// identifiers with skipped whitespace, producing a left-leaning spine
// that re-parses in time proportional to the edit.
const (
	wordsWord    language.Symbol = 1
	wordsSeq     language.Symbol = 2
	wordsComment language.Symbol = 3
)

// Words loads the word-sequence demo language.
var Words = cached(buildWords)

func buildWords() (*language.Language, error) {
	def := language.Definition{
		Name:    "words",
		Version: language.LanguageVersion,
		SymbolNames: []string{
			"end", "word", "seq", "comment",
		},
		SymbolMeta: []language.SymbolMetadata{
			{},
			{Visible: true, Named: true},
			{Visible: true, Named: true},
			{Visible: true, Named: true, Extra: true},
		},
		Productions: []language.ProductionInfo{
			{},
			{}, // seq := word
			{}, // seq := seq word
		},
		Actions: []map[language.Symbol][]language.ParseAction{
			{ // 0: start
				wordsWord: {language.Shift(1)},
			},
			{ // 1: word
				language.SymbolEnd: {language.Reduce(wordsSeq, 1, 1)},
				wordsWord:          {language.Reduce(wordsSeq, 1, 1)},
			},
			{ // 2: seq
				wordsWord:          {language.Shift(3)},
				language.SymbolEnd: {language.Accept()},
			},
			{ // 3: seq word
				language.SymbolEnd: {language.Reduce(wordsSeq, 2, 2)},
				wordsWord:          {language.Reduce(wordsSeq, 2, 2)},
			},
		},
		Gotos: []map[language.Symbol]language.StateID{
			{wordsSeq: 2},
			{}, {}, {},
		},
		LexModes: make([]language.LexMode, 4),
		LexStates: []language.LexState{
			{ // 0: start
				Transitions: []language.LexTransition{
					language.SkipTo(' ', ' ', 0),
					language.SkipTo('\t', '\t', 0),
					language.SkipTo('\n', '\n', 0),
					language.SkipTo('\r', '\r', 0),
					language.Advance('a', 'z', 1),
					language.Advance('A', 'Z', 1),
					language.Advance('#', '#', 2),
				},
				EOFNext: -1,
			},
			language.NewLexState(wordsWord, true,
				language.Advance('a', 'z', 1),
				language.Advance('A', 'Z', 1),
				language.Advance('0', '9', 1)),
			{ // 2: "#" comment body
				AcceptSymbol: wordsComment,
				HasAccept:    true,
				EOFNext:      -1,
				Transitions: []language.LexTransition{
					language.Advance(0, '\t', 2),
					language.Advance(0x0b, 0x10FFFF, 2),
				},
			},
		},
		MaxLookaheadBytes: 1,
	}
	return language.New(def)
}

func init() {
	Register(Entry{
		Name:       "words",
		Extensions: []string{".words"},
		Load:       Words,
	})
}
