// Package main is the entry point for the cedar CLI.
package main

import (
	"errors"
	"os"

	"github.com/yaklabco/cedar/internal/cli"
	"github.com/yaklabco/cedar/internal/logging"

	// Import grammars to register the built-in languages via init().
	_ "github.com/yaklabco/cedar/internal/grammars"
)

// Build-time variables set by GoReleaser via ldflags.
//
//nolint:gochecknoglobals // Version variables must be package-level for ldflags injection
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	info := cli.BuildInfo{
		Version: version,
		Commit:  commit,
		Date:    date,
	}

	rootCmd := cli.NewRootCommand(info)

	if err := rootCmd.Execute(); err != nil {
		// ErrParseIssuesFound is just a signal for the exit code.
		if errors.Is(err, cli.ErrParseIssuesFound) {
			return cli.ExitParseIssues
		}
		logger := logging.Default()
		logger.Error("command failed", logging.FieldError, err)
		return cli.ExitInternalError
	}

	return cli.ExitSuccess
}
