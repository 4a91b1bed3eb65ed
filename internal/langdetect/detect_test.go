package langdetect_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yaklabco/cedar/internal/langdetect"
)

func TestDetectByRegisteredExtension(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "arithmetic", langdetect.Detect("example.sum", []byte("1+2")))
	assert.Equal(t, "words", langdetect.Detect("notes.words", []byte("a b")))
	assert.Equal(t, "parens", langdetect.Detect("deep.paren", []byte("(())")))
}

func TestDetectUnknown(t *testing.T) {
	t.Parallel()

	assert.Empty(t, langdetect.Detect("main.rs", []byte("fn main() {}")))
	assert.Empty(t, langdetect.Detect("noext", nil))
}

func TestIsBinary(t *testing.T) {
	t.Parallel()

	assert.False(t, langdetect.IsBinary([]byte("plain text")))
	assert.True(t, langdetect.IsBinary([]byte{0x00, 0x01, 0x02, 0xff}))
}
