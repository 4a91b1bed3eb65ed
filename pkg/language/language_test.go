package language_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yaklabco/cedar/internal/grammars"
	"github.com/yaklabco/cedar/pkg/language"
)

func TestCheckCompatible(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		version uint32
		wantErr bool
	}{
		{"current version", language.LanguageVersion, false},
		{"minimum version", language.MinCompatibleVersion, false},
		{"too old", language.MinCompatibleVersion - 1, true},
		{"too new", language.LanguageVersion + 1, true},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			err := language.CheckCompatible(testCase.version)
			if testCase.wantErr {
				require.Error(t, err)
				var langErr *language.LanguageError
				require.ErrorAs(t, err, &langErr)
				assert.Equal(t, testCase.version, langErr.Version)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewRejectsBadDefinitions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		def  language.Definition
	}{
		{"missing name", language.Definition{}},
		{
			"mismatched symbol tables",
			language.Definition{
				Name:        "bad",
				SymbolNames: []string{"end", "x"},
				SymbolMeta:  []language.SymbolMetadata{{}},
			},
		},
		{
			"no symbols",
			language.Definition{Name: "bad"},
		},
		{
			"incompatible version",
			language.Definition{
				Name:        "bad",
				Version:     language.LanguageVersion + 10,
				SymbolNames: []string{"end"},
				SymbolMeta:  []language.SymbolMetadata{{}},
			},
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			_, err := language.New(testCase.def)
			assert.Error(t, err)
		})
	}
}

func TestArithmeticAccessors(t *testing.T) {
	t.Parallel()

	lang, err := grammars.Arithmetic()
	require.NoError(t, err)

	assert.Equal(t, "arithmetic", lang.Name())
	assert.Equal(t, language.LanguageVersion, lang.Version())
	assert.Equal(t, uint32(6), lang.SymbolCount())
	assert.Equal(t, uint32(8), lang.StateCount())
	assert.Equal(t, uint32(2), lang.FieldCount())

	assert.Equal(t, "number", lang.SymbolName(1))
	assert.Equal(t, "+", lang.SymbolName(2))
	assert.Equal(t, "ERROR", lang.SymbolName(language.SymbolError))

	sum, ok := lang.SymbolForName("sum", true)
	require.True(t, ok)
	assert.Equal(t, language.SymbolTypeRegular, lang.SymbolType(sum))

	plus, ok := lang.SymbolForName("+", false)
	require.True(t, ok)
	assert.Equal(t, language.SymbolTypeAnonymous, lang.SymbolType(plus))

	_, ok = lang.SymbolForName("nope", true)
	assert.False(t, ok)

	left, ok := lang.FieldIDForName("left")
	require.True(t, ok)
	assert.Equal(t, "left", lang.FieldName(left))
	_, ok = lang.FieldIDForName("middle")
	assert.False(t, ok)
}

func TestArithmeticTables(t *testing.T) {
	t.Parallel()

	lang, err := grammars.Arithmetic()
	require.NoError(t, err)

	number, _ := lang.SymbolForName("number", true)
	sum, _ := lang.SymbolForName("sum", true)

	// Shift on number from the start state.
	actions := lang.Actions(0, number)
	require.Len(t, actions, 1)
	assert.Equal(t, language.ActionShift, actions[0].Type)

	// Goto on sum from the start state.
	assert.NotZero(t, lang.NextState(0, sum))
	assert.True(t, lang.HasActions(0, sum))
	assert.False(t, lang.HasActions(0, language.Symbol(99)))

	// Lex mode of every state points into the DFA.
	for state := language.StateID(0); uint32(state) < lang.StateCount(); state++ {
		mode := lang.LexMode(state)
		assert.Less(t, int(mode.State), len(lang.LexStates()))
	}
}

func TestSupertypes(t *testing.T) {
	t.Parallel()

	lang, err := grammars.Arithmetic()
	require.NoError(t, err)

	supertypes := lang.Supertypes()
	require.Len(t, supertypes, 1)
	assert.True(t, lang.SymbolMetadata(supertypes[0]).Supertype)

	subtypes := lang.Subtypes(supertypes[0])
	assert.Len(t, subtypes, 2)
}

func TestLexStateStep(t *testing.T) {
	t.Parallel()

	state := language.NewLexState(0, false,
		language.Advance('a', 'z', 1),
		language.Advance('0', '9', 2),
	)

	tr, ok := state.Step('m')
	require.True(t, ok)
	assert.Equal(t, int32(1), tr.Next)

	tr, ok = state.Step('5')
	require.True(t, ok)
	assert.Equal(t, int32(2), tr.Next)

	_, ok = state.Step('+')
	assert.False(t, ok)
}
