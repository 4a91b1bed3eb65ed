// Package grammars ships the built-in demo languages: small hand-built
// lex and parse tables exercising the engine's full surface. Real
// deployments load compiled language blobs instead.
package grammars

import (
	"fmt"
	"sort"
	"sync"

	"github.com/yaklabco/cedar/pkg/language"
)

// Entry is one registered language with the file extensions it claims.
type Entry struct {
	Name       string
	Extensions []string

	// Load builds (or returns the cached) language.
	Load func() (*language.Language, error)
}

var (
	mu       sync.RWMutex
	registry = map[string]Entry{}
)

// Register adds a language to the registry. Later registrations under
// the same name replace earlier ones.
func Register(entry Entry) {
	mu.Lock()
	defer mu.Unlock()
	registry[entry.Name] = entry
}

// Get loads a registered language by name.
func Get(name string) (*language.Language, error) {
	mu.RLock()
	entry, ok := registry[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("grammars: unknown language %q", name)
	}
	return entry.Load()
}

// ByExtension finds the language claiming a file extension (with dot).
func ByExtension(ext string) (Entry, bool) {
	mu.RLock()
	defer mu.RUnlock()
	for _, entry := range registry {
		for _, candidate := range entry.Extensions {
			if candidate == ext {
				return entry, true
			}
		}
	}
	return Entry{}, false
}

// Names lists registered languages in sorted order.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// cached wraps a language constructor with a once-guarded cache.
func cached(build func() (*language.Language, error)) func() (*language.Language, error) {
	var once sync.Once
	var lang *language.Language
	var err error
	return func() (*language.Language, error) {
		once.Do(func() {
			lang, err = build()
		})
		return lang, err
	}
}
