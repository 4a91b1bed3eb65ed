package language_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yaklabco/cedar/internal/grammars"
	"github.com/yaklabco/cedar/pkg/language"
)

func TestBlobRoundTrip(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"arithmetic", "words", "parens"} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			lang, err := grammars.Get(name)
			require.NoError(t, err)

			blob := language.Encode(lang)
			decoded, err := language.Decode(blob)
			require.NoError(t, err)

			assert.Equal(t, lang.Name(), decoded.Name())
			assert.Equal(t, lang.Version(), decoded.Version())
			assert.Equal(t, lang.SymbolCount(), decoded.SymbolCount())
			assert.Equal(t, lang.StateCount(), decoded.StateCount())
			assert.Equal(t, lang.FieldCount(), decoded.FieldCount())

			for sym := language.Symbol(0); uint32(sym) < lang.SymbolCount(); sym++ {
				assert.Equal(t, lang.SymbolName(sym), decoded.SymbolName(sym))
				assert.Equal(t, lang.SymbolMetadata(sym), decoded.SymbolMetadata(sym))
			}
			for state := language.StateID(0); uint32(state) < lang.StateCount(); state++ {
				assert.Equal(t, lang.LexMode(state), decoded.LexMode(state))
				for sym := language.Symbol(0); uint32(sym) < lang.SymbolCount(); sym++ {
					assert.Equal(t, lang.Actions(state, sym), decoded.Actions(state, sym),
						"state %d symbol %d", state, sym)
					assert.Equal(t, lang.NextState(state, sym), decoded.NextState(state, sym))
				}
			}
			assert.Equal(t, len(lang.LexStates()), len(decoded.LexStates()))
			assert.Equal(t, lang.Supertypes(), decoded.Supertypes())
			assert.Equal(t, lang.MaxLookaheadBytes(), decoded.MaxLookaheadBytes())
		})
	}
}

func TestDecodeRejectsBadBlobs(t *testing.T) {
	t.Parallel()

	lang, err := grammars.Words()
	require.NoError(t, err)
	good := language.Encode(lang)

	t.Run("empty", func(t *testing.T) {
		t.Parallel()
		_, err := language.Decode(nil)
		assert.ErrorIs(t, err, language.ErrBadBlob)
	})

	t.Run("bad magic", func(t *testing.T) {
		t.Parallel()
		blob := append([]byte(nil), good...)
		blob[0] = 'X'
		_, err := language.Decode(blob)
		assert.ErrorIs(t, err, language.ErrBadBlob)
	})

	t.Run("truncated", func(t *testing.T) {
		t.Parallel()
		for _, cut := range []int{8, len(good) / 4, len(good) / 2, len(good) - 1} {
			_, err := language.Decode(good[:cut])
			assert.Error(t, err, "cut at %d", cut)
		}
	})

	t.Run("incompatible version", func(t *testing.T) {
		t.Parallel()
		blob := append([]byte(nil), good...)
		// The ABI version sits right after the 4-byte magic.
		blob[4] = 1
		blob[5] = 0
		_, err := language.Decode(blob)
		var langErr *language.LanguageError
		assert.ErrorAs(t, err, &langErr)
	})
}
