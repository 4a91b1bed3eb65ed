// Package langdetect maps files to registered languages, combining the
// grammar registry's extension claims with go-enry's content-based
// detection.
package langdetect

import (
	"path/filepath"
	"strings"

	"github.com/go-enry/go-enry/v2"

	"github.com/yaklabco/cedar/internal/grammars"
)

// Detect returns the registered language name for a file, or "" when no
// registered grammar claims it. Registry extensions win over enry so the
// demo grammars' private extensions resolve without an enry entry.
func Detect(path string, content []byte) string {
	ext := strings.ToLower(filepath.Ext(path))
	if entry, ok := grammars.ByExtension(ext); ok {
		return entry.Name
	}

	name := enry.GetLanguage(filepath.Base(path), content)
	if name == "" {
		return ""
	}
	normalized := strings.ToLower(name)
	for _, registered := range grammars.Names() {
		if registered == normalized {
			return registered
		}
	}
	return ""
}

// IsBinary reports whether content looks like a binary file; the CLI
// refuses to parse those.
func IsBinary(content []byte) bool {
	return enry.IsBinary(content)
}
