// Package logging provides a structured logging wrapper around charmbracelet/log.
package logging

// Field name constants for structured logging.
// Using constants prevents typos and enables IDE autocomplete.
const (
	// Common fields.
	FieldError = "error"
	FieldPath  = "path"
	FieldInput = "input"
	FieldKind  = "kind"

	// Parsing fields.
	FieldLanguage   = "language"
	FieldBytes      = "bytes"
	FieldNodes      = "nodes"
	FieldOperations = "operations"
	FieldTokens     = "tokens"
	FieldReused     = "reused"
	FieldDuration   = "duration"
	FieldErrorCost  = "error_cost"

	// Query fields.
	FieldQuery    = "query"
	FieldPattern  = "pattern"
	FieldMatches  = "matches"
	FieldCaptures = "captures"

	// Version fields.
	FieldVersion = "version"
	FieldCommit  = "commit"
	FieldBuilt   = "built"
)
