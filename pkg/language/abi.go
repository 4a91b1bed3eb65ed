package language

import "fmt"

// ABI version window. A language blob or definition carries the version it
// was generated against; the engine refuses versions outside this window.
const (
	// LanguageVersion is the current ABI version.
	LanguageVersion uint32 = 15

	// MinCompatibleVersion is the oldest ABI version this engine still
	// accepts.
	MinCompatibleVersion uint32 = 13
)

// LanguageError reports an ABI version outside the supported window.
type LanguageError struct {
	Version uint32
}

func (e *LanguageError) Error() string {
	return fmt.Sprintf(
		"incompatible language version %d (supported range: %d..%d)",
		e.Version, MinCompatibleVersion, LanguageVersion,
	)
}

// CheckCompatible validates a language ABI version.
func CheckCompatible(version uint32) error {
	if version < MinCompatibleVersion || version > LanguageVersion {
		return &LanguageError{Version: version}
	}
	return nil
}
