// Package logging is cedar's structured logging entry point. It wraps
// charmbracelet/log with level parsing for config strings, a
// process-wide default logger, context plumbing, and an adapter that
// surfaces the parser's lex/parse event stream at debug level.
package logging

import (
	"context"
	"os"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/log"

	"github.com/yaklabco/cedar/pkg/parser"
)

// DefaultLevel is used when no level is configured.
const DefaultLevel = "info"

//nolint:gochecknoglobals // Process-wide default logger is intentional
var defaultLogger atomic.Pointer[log.Logger]

// ParseLevel maps a configuration string onto a log level. Unknown or
// empty strings resolve to info.
func ParseLevel(level string) log.Level {
	switch strings.ToLower(level) {
	case "debug":
		return log.DebugLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// New creates a stderr logger at the given level. Timestamps and caller
// reporting are off; cedar's output is meant for terminals, not log
// aggregation.
func New(level string) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: false,
		ReportCaller:    false,
	})
	logger.SetLevel(ParseLevel(level))
	return logger
}

// Default returns the process-wide logger, creating it on first use.
func Default() *log.Logger {
	if logger := defaultLogger.Load(); logger != nil {
		return logger
	}
	logger := New(DefaultLevel)
	if defaultLogger.CompareAndSwap(nil, logger) {
		return logger
	}
	return defaultLogger.Load()
}

// SetDefault replaces the process-wide logger.
func SetDefault(logger *log.Logger) {
	defaultLogger.Store(logger)
}

// SetLevel updates the level of the process-wide logger in place.
func SetLevel(level string) {
	Default().SetLevel(ParseLevel(level))
}

// ParserEvents adapts a structured logger onto the parser's logging
// callback. Every lex and parse event is emitted at debug level with
// its kind attached, so `--debug` traces a parse end to end.
func ParserEvents(logger *log.Logger) parser.Logger {
	return func(logType parser.LogType, message string) {
		logger.Debug(message, FieldKind, logType.String())
	}
}

// loggerKey stores a logger in a context.
type loggerKey struct{}

// WithLogger attaches a logger to a context.
func WithLogger(ctx context.Context, logger *log.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext returns the context's logger, falling back to Default.
func FromContext(ctx context.Context) *log.Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(loggerKey{}).(*log.Logger); ok && logger != nil {
			return logger
		}
	}
	return Default()
}
