package grammars_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yaklabco/cedar/internal/grammars"
)

func TestRegistryLists(t *testing.T) {
	t.Parallel()

	names := grammars.Names()
	assert.Contains(t, names, "arithmetic")
	assert.Contains(t, names, "words")
	assert.Contains(t, names, "parens")
	assert.IsIncreasing(t, names)
}

func TestGetUnknownLanguage(t *testing.T) {
	t.Parallel()

	_, err := grammars.Get("klingon")
	assert.Error(t, err)
}

func TestGetReturnsCachedInstance(t *testing.T) {
	t.Parallel()

	first, err := grammars.Get("words")
	require.NoError(t, err)
	second, err := grammars.Get("words")
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestByExtension(t *testing.T) {
	t.Parallel()

	entry, ok := grammars.ByExtension(".sum")
	require.True(t, ok)
	assert.Equal(t, "arithmetic", entry.Name)

	_, ok = grammars.ByExtension(".xyz")
	assert.False(t, ok)
}

func TestEveryGrammarBuilds(t *testing.T) {
	t.Parallel()

	for _, name := range grammars.Names() {
		lang, err := grammars.Get(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, lang.Name())
		assert.Positive(t, lang.SymbolCount())
		assert.Positive(t, lang.StateCount())
		assert.NotEmpty(t, lang.LexStates())
	}
}
