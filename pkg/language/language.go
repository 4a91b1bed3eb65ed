// Package language models a compiled grammar: symbol metadata, lexer DFAs,
// parse tables, field maps, alias sequences, and the external scanner
// contract. A Language is immutable after construction and may be shared
// freely across parsers, trees, and queries.
package language

import (
	"errors"
	"fmt"
)

// Symbol identifies a grammar symbol within a single Language.
// Symbol 0 is always the end-of-input marker.
type Symbol uint16

// StateID identifies a parse state within a Language's parse table.
type StateID uint16

// FieldID identifies a field name within a Language. Field IDs are 1-based;
// 0 means "no field".
type FieldID uint16

// ProductionID selects a production's alias sequence and field map.
type ProductionID uint16

// Builtin symbols. These are not part of any language's symbol table.
const (
	// SymbolEnd marks end of input.
	SymbolEnd Symbol = 0

	// SymbolError is the symbol of ERROR nodes produced by recovery.
	SymbolError Symbol = 0xFFFE
)

// ErrorState is the sentinel parse state carried by nodes produced outside
// normal table-driven parsing.
const ErrorState StateID = 0xFFFF

// SymbolType classifies a symbol.
type SymbolType uint8

// Symbol classifications.
const (
	// SymbolTypeRegular is a visible, named rule.
	SymbolTypeRegular SymbolType = iota

	// SymbolTypeAnonymous is a visible but unnamed token, such as "+".
	SymbolTypeAnonymous

	// SymbolTypeAuxiliary is hidden: helper rules, repetitions, extras
	// that do not surface as named tree nodes.
	SymbolTypeAuxiliary
)

func (t SymbolType) String() string {
	switch t {
	case SymbolTypeRegular:
		return "regular"
	case SymbolTypeAnonymous:
		return "anonymous"
	case SymbolTypeAuxiliary:
		return "auxiliary"
	default:
		return "unknown"
	}
}

// SymbolMetadata describes how a symbol surfaces in trees.
type SymbolMetadata struct {
	// Visible symbols appear as tree nodes.
	Visible bool

	// Named symbols are regular rules; unnamed visible symbols are
	// anonymous literals.
	Named bool

	// Extra symbols (whitespace, comments) may appear anywhere and are
	// not counted in production lengths.
	Extra bool

	// Supertype symbols never appear in trees themselves; they group
	// subtypes for queries.
	Supertype bool
}

// FieldMapEntry assigns a field to one child position of a production.
type FieldMapEntry struct {
	Field      FieldID
	ChildIndex uint8

	// Inherited fields pass through hidden children to their visible
	// descendants.
	Inherited bool
}

// ProductionInfo carries the per-production alias sequence and field map.
type ProductionInfo struct {
	// Aliases holds one entry per child position; 0 means no alias.
	// May be shorter than the production (trailing positions unaliased).
	Aliases []Symbol

	// Fields assigns field IDs to child positions.
	Fields []FieldMapEntry
}

// Definition is the mutable input to New. All tables are copied by
// reference; callers must not mutate them after construction.
type Definition struct {
	Name    string
	Version uint32

	// SymbolNames and SymbolMeta are indexed by Symbol. Index 0 is the
	// end symbol (conventionally named "end").
	SymbolNames []string
	SymbolMeta  []SymbolMetadata

	// FieldNames is indexed by FieldID; index 0 is unused.
	FieldNames []string

	// Actions is indexed by state; each state maps a lookahead symbol to
	// its parse actions, in declaration order.
	Actions []map[Symbol][]ParseAction

	// Gotos is indexed by state; each state maps a nonterminal to the
	// successor state.
	Gotos []map[Symbol]StateID

	// LexModes is indexed by parse state.
	LexModes []LexMode

	// LexStates is the main lexer DFA.
	LexStates []LexState

	// KeywordLexStates is the keyword DFA, run over tokens whose symbol
	// is KeywordCapture to reclassify identifiers into keywords.
	KeywordLexStates []LexState
	KeywordCapture   Symbol

	// Productions is indexed by ProductionID.
	Productions []ProductionInfo

	// ExternalTokens maps external scanner token indices to symbols.
	ExternalTokens []Symbol

	// ExternalScannerStates is indexed by LexMode.ExternalState; each
	// entry flags which external token indices are valid.
	ExternalScannerStates [][]bool

	// Scanner is the optional external scanner implementation.
	Scanner *ExternalScanner

	// Supertypes lists supertype symbols; Subtypes maps each to its
	// concrete members.
	Supertypes []Symbol
	Subtypes   map[Symbol][]Symbol

	// MaxLookaheadBytes bounds how far the lexer reads past a token end.
	// Zero means unknown; reuse checks then fall back to per-leaf data.
	MaxLookaheadBytes uint32
}

// Language is an immutable compiled grammar.
type Language struct {
	def Definition

	symbolsByName map[string]Symbol
	fieldsByName  map[string]FieldID
}

// New validates a definition and returns an immutable Language.
func New(def Definition) (*Language, error) {
	if def.Name == "" {
		return nil, errors.New("language: name is required")
	}
	if def.Version == 0 {
		def.Version = LanguageVersion
	}
	if err := CheckCompatible(def.Version); err != nil {
		return nil, err
	}
	if len(def.SymbolNames) != len(def.SymbolMeta) {
		return nil, fmt.Errorf("language %s: %d symbol names but %d metadata entries",
			def.Name, len(def.SymbolNames), len(def.SymbolMeta))
	}
	if len(def.SymbolNames) == 0 {
		return nil, fmt.Errorf("language %s: no symbols", def.Name)
	}
	if len(def.Actions) != len(def.Gotos) {
		return nil, fmt.Errorf("language %s: %d action states but %d goto states",
			def.Name, len(def.Actions), len(def.Gotos))
	}
	if len(def.LexModes) != len(def.Actions) {
		return nil, fmt.Errorf("language %s: %d lex modes for %d states",
			def.Name, len(def.LexModes), len(def.Actions))
	}
	for state, mode := range def.LexModes {
		if int(mode.State) >= len(def.LexStates) {
			return nil, fmt.Errorf("language %s: state %d lex mode %d out of range",
				def.Name, state, mode.State)
		}
		if mode.ExternalState != 0 && int(mode.ExternalState) >= len(def.ExternalScannerStates) {
			return nil, fmt.Errorf("language %s: state %d external lex state %d out of range",
				def.Name, state, mode.ExternalState)
		}
	}
	for sym, count := 0, len(def.SymbolNames); sym < count; sym++ {
		if def.SymbolNames[sym] == "" {
			return nil, fmt.Errorf("language %s: symbol %d has no name", def.Name, sym)
		}
	}

	lang := &Language{
		def:           def,
		symbolsByName: make(map[string]Symbol, len(def.SymbolNames)),
		fieldsByName:  make(map[string]FieldID, len(def.FieldNames)),
	}
	for i, name := range def.SymbolNames {
		// First declaration wins so hidden duplicates don't shadow
		// the public symbol.
		if _, ok := lang.symbolsByName[name]; !ok {
			lang.symbolsByName[name] = Symbol(i)
		}
	}
	for i, name := range def.FieldNames {
		if i == 0 || name == "" {
			continue
		}
		lang.fieldsByName[name] = FieldID(i)
	}
	return lang, nil
}

// Name returns the language name.
func (l *Language) Name() string { return l.def.Name }

// Version returns the ABI version the language was compiled against.
func (l *Language) Version() uint32 { return l.def.Version }

// SymbolCount returns the number of symbols, including the end symbol.
func (l *Language) SymbolCount() uint32 { return uint32(len(l.def.SymbolNames)) }

// StateCount returns the number of parse states.
func (l *Language) StateCount() uint32 { return uint32(len(l.def.Actions)) }

// FieldCount returns the number of fields, excluding the unused 0 slot.
func (l *Language) FieldCount() uint32 {
	if len(l.def.FieldNames) == 0 {
		return 0
	}
	return uint32(len(l.def.FieldNames) - 1)
}

// SymbolName returns the name of a symbol, including the builtin ERROR
// symbol.
func (l *Language) SymbolName(sym Symbol) string {
	switch {
	case sym == SymbolError:
		return "ERROR"
	case int(sym) < len(l.def.SymbolNames):
		return l.def.SymbolNames[sym]
	default:
		return ""
	}
}

// SymbolForName resolves a symbol by name, restricted to named or unnamed
// symbols.
func (l *Language) SymbolForName(name string, named bool) (Symbol, bool) {
	if name == "ERROR" {
		return SymbolError, true
	}
	sym, ok := l.symbolsByName[name]
	if !ok {
		return 0, false
	}
	if meta := l.SymbolMetadata(sym); meta.Named != named {
		// Fall back to scanning: an anonymous token and a rule can
		// share a name.
		for i := range l.def.SymbolNames {
			if l.def.SymbolNames[i] == name && l.def.SymbolMeta[i].Named == named {
				return Symbol(i), true
			}
		}
		return 0, false
	}
	return sym, true
}

// SymbolType classifies a symbol.
func (l *Language) SymbolType(sym Symbol) SymbolType {
	if sym == SymbolError {
		return SymbolTypeRegular
	}
	meta := l.SymbolMetadata(sym)
	switch {
	case meta.Visible && meta.Named:
		return SymbolTypeRegular
	case meta.Visible:
		return SymbolTypeAnonymous
	default:
		return SymbolTypeAuxiliary
	}
}

// SymbolMetadata returns visibility metadata for a symbol.
func (l *Language) SymbolMetadata(sym Symbol) SymbolMetadata {
	if sym == SymbolError {
		return SymbolMetadata{Visible: true, Named: true}
	}
	if int(sym) >= len(l.def.SymbolMeta) {
		return SymbolMetadata{}
	}
	return l.def.SymbolMeta[sym]
}

// FieldName returns the name of a field ID, or "" if out of range.
func (l *Language) FieldName(id FieldID) string {
	if id == 0 || int(id) >= len(l.def.FieldNames) {
		return ""
	}
	return l.def.FieldNames[id]
}

// FieldIDForName resolves a field name.
func (l *Language) FieldIDForName(name string) (FieldID, bool) {
	id, ok := l.fieldsByName[name]
	return id, ok
}

// Actions returns the parse actions for a lookahead symbol in a state.
func (l *Language) Actions(state StateID, sym Symbol) []ParseAction {
	if int(state) >= len(l.def.Actions) {
		return nil
	}
	return l.def.Actions[state][sym]
}

// NextState returns the goto successor for a symbol, or 0 when the state
// has no transition on it. For terminals it consults the shift action.
func (l *Language) NextState(state StateID, sym Symbol) StateID {
	if int(state) >= len(l.def.Gotos) {
		return 0
	}
	if next, ok := l.def.Gotos[state][sym]; ok {
		return next
	}
	for _, action := range l.def.Actions[state][sym] {
		if action.Type == ActionShift && !action.Extra {
			return action.State
		}
	}
	return 0
}

// HasActions reports whether a state has any action on a symbol, counting
// goto transitions for nonterminals.
func (l *Language) HasActions(state StateID, sym Symbol) bool {
	if int(state) >= len(l.def.Actions) {
		return false
	}
	if len(l.def.Actions[state][sym]) > 0 {
		return true
	}
	_, ok := l.def.Gotos[state][sym]
	return ok
}

// LexMode returns the lexer configuration for a parse state.
func (l *Language) LexMode(state StateID) LexMode {
	if int(state) >= len(l.def.LexModes) {
		return LexMode{}
	}
	return l.def.LexModes[state]
}

// LexStates returns the main DFA.
func (l *Language) LexStates() []LexState { return l.def.LexStates }

// KeywordLexStates returns the keyword DFA, or nil when the language has
// no keyword extraction.
func (l *Language) KeywordLexStates() []LexState { return l.def.KeywordLexStates }

// KeywordCaptureToken returns the symbol whose tokens are re-lexed through
// the keyword DFA, and whether the language uses keyword extraction.
func (l *Language) KeywordCaptureToken() (Symbol, bool) {
	return l.def.KeywordCapture, len(l.def.KeywordLexStates) > 0
}

// AliasSequence returns the per-child alias symbols for a production.
// Entry 0 means no alias at that position.
func (l *Language) AliasSequence(production ProductionID) []Symbol {
	if int(production) >= len(l.def.Productions) {
		return nil
	}
	return l.def.Productions[production].Aliases
}

// FieldMap returns the field entries for a production.
func (l *Language) FieldMap(production ProductionID) []FieldMapEntry {
	if int(production) >= len(l.def.Productions) {
		return nil
	}
	return l.def.Productions[production].Fields
}

// Supertypes returns the language's supertype symbols.
func (l *Language) Supertypes() []Symbol { return l.def.Supertypes }

// Subtypes returns the concrete members of a supertype.
func (l *Language) Subtypes(supertype Symbol) []Symbol {
	return l.def.Subtypes[supertype]
}

// ExternalTokens returns the symbols served by the external scanner, in
// scanner token-index order.
func (l *Language) ExternalTokens() []Symbol { return l.def.ExternalTokens }

// ExternalTokenIndex resolves a symbol to its external token index.
func (l *Language) ExternalTokenIndex(sym Symbol) (int, bool) {
	for i, s := range l.def.ExternalTokens {
		if s == sym {
			return i, true
		}
	}
	return 0, false
}

// ValidExternalTokens returns the validity flags for an external lex state.
func (l *Language) ValidExternalTokens(externalState uint16) []bool {
	if externalState == 0 || int(externalState) >= len(l.def.ExternalScannerStates) {
		return nil
	}
	return l.def.ExternalScannerStates[externalState]
}

// Scanner returns the external scanner, or nil.
func (l *Language) Scanner() *ExternalScanner { return l.def.Scanner }

// MaxLookaheadBytes returns the declared maximum lexer lookahead.
func (l *Language) MaxLookaheadBytes() uint32 { return l.def.MaxLookaheadBytes }

// IsExtra reports whether a symbol is an extra (whitespace/comment class).
func (l *Language) IsExtra(sym Symbol) bool {
	return l.SymbolMetadata(sym).Extra
}
