// Package parser drives the incremental GLR parse: it owns the lexer,
// the parse stack, and the subtree pool, and produces cst.Tree values.
package parser

import (
	"errors"
	"fmt"
)

// ErrNoLanguage reports a parse attempted before SetLanguage.
var ErrNoLanguage = errors.New("parser: no language set")

// ErrCancelled reports that the progress callback, timeout, or operation
// budget fired. No partial tree is produced.
var ErrCancelled = errors.New("parser: cancelled")

// IncludedRangesError reports an invalid included-range configuration;
// Index points at the first offending range.
type IncludedRangesError struct {
	Index int
}

func (e *IncludedRangesError) Error() string {
	return fmt.Sprintf("parser: invalid included range at index %d", e.Index)
}

// ExternalScannerError describes an inconsistent external scanner result.
// The lexer does not return it: an inconsistent result is logged as a lex
// event and treated as no external match.
type ExternalScannerError struct {
	Offset uint32
}

func (e *ExternalScannerError) Error() string {
	return fmt.Sprintf("parser: external scanner failed at byte %d", e.Offset)
}
