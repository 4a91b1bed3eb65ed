package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yaklabco/cedar/internal/grammars"
	"github.com/yaklabco/cedar/internal/langdetect"
	"github.com/yaklabco/cedar/internal/logging"
	"github.com/yaklabco/cedar/internal/ui/pretty"
	"github.com/yaklabco/cedar/pkg/parser"
	"github.com/yaklabco/cedar/pkg/query"
)

func newQueryCommand(flags *globalFlags) *cobra.Command {
	var languageName string

	cmd := &cobra.Command{
		Use:   "query <pattern-file> <source-file>",
		Short: "Run a tree query against a source file",
		Long: `Compile the S-expression patterns in pattern-file, parse source-file,
and print every match with its captures in source order.`,
		Args: cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}

			patternSource, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("%w (%d)", err, ExitIOError)
			}
			content, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("%w (%d)", err, ExitIOError)
			}

			name := languageName
			if name == "" {
				name = cfg.Language
			}
			if name == "" {
				name = langdetect.Detect(args[1], content)
			}
			if name == "" {
				return fmt.Errorf("cannot detect language for %s; use --language", args[1])
			}
			lang, err := grammars.Get(name)
			if err != nil {
				return err
			}

			q, err := query.New(lang, patternSource)
			if err != nil {
				return err
			}

			p := parser.NewParser()
			if err := p.SetLanguage(lang); err != nil {
				return err
			}
			p.SetTimeoutMicros(cfg.TimeoutMicros)
			tree, err := p.Parse(content, nil)
			if err != nil {
				return err
			}

			cursor := query.NewQueryCursor()
			if cfg.MatchLimit > 0 {
				cursor.SetMatchLimit(cfg.MatchLimit)
			}
			matches := cursor.Matches(q, tree.RootNode(), content)

			out := os.Stdout
			styles := pretty.NewStyles(pretty.ColorEnabled(cfg.Color, out))
			fmt.Fprint(out, styles.RenderMatches(matches, q.CaptureNames(), content))

			logging.Default().Debug("query complete",
				logging.FieldQuery, args[0],
				logging.FieldMatches, len(matches),
			)
			if cursor.DidExceedMatchLimit() {
				logging.Default().Warn("match limit exceeded; results truncated")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&languageName, "language", "l", "", "language to parse with")
	return cmd
}
