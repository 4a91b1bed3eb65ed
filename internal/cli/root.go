// Package cli provides the Cobra command structure for cedar.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/yaklabco/cedar/internal/configloader"
	"github.com/yaklabco/cedar/internal/logging"
)

// BuildInfo holds build-time version information.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// globalFlags are shared by every subcommand.
type globalFlags struct {
	debug      bool
	configPath string
	color      string
}

// NewRootCommand creates the root cedar command with all subcommands.
func NewRootCommand(info BuildInfo) *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "cedar",
		Short: "An incremental parsing engine and query tool",
		Long: `cedar parses source files into concrete syntax trees and re-parses
them incrementally after edits, reusing every subtree an edit did not
touch. Trees are queried with S-expression patterns that capture nodes
and filter matches with predicates.`,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if flags.debug {
				logging.SetLevel("debug")
			}
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags.
	rootCmd.PersistentFlags().BoolVar(&flags.debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "path to config file")
	rootCmd.PersistentFlags().StringVar(&flags.color, "color", "auto",
		"colorize output: auto, always, never")

	// Add subcommands.
	rootCmd.AddCommand(newParseCommand(flags))
	rootCmd.AddCommand(newQueryCommand(flags))
	rootCmd.AddCommand(newLanguagesCommand(flags))
	rootCmd.AddCommand(newVersionCommand(info))

	return rootCmd
}

// loadConfig resolves configuration with flag overrides applied.
func loadConfig(flags *globalFlags) (*configloader.Config, error) {
	cfg, err := configloader.Load(configloader.LoadOptions{ExplicitPath: flags.configPath})
	if err != nil {
		return nil, err
	}
	if flags.color != "" && flags.color != "auto" {
		cfg.Color = flags.color
	}
	if flags.debug {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}
