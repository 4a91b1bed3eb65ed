package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/yaklabco/cedar/internal/grammars"
	"github.com/yaklabco/cedar/internal/langdetect"
	"github.com/yaklabco/cedar/internal/logging"
	"github.com/yaklabco/cedar/internal/ui/pretty"
	"github.com/yaklabco/cedar/pkg/cst"
	"github.com/yaklabco/cedar/pkg/parser"
)

func newParseCommand(flags *globalFlags) *cobra.Command {
	var languageName string
	var showTime bool
	var quiet bool
	var edits []string

	cmd := &cobra.Command{
		Use:   "parse <file>",
		Short: "Parse a file and print its syntax tree",
		Long: `Parse a file with a registered language and print the syntax tree.

With --edit, the edit is applied to the parsed tree and the file content,
and the document is re-parsed incrementally; reuse statistics are
reported. Edits take the form start,deletedLength,insertedText.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			logger := logging.Default()

			path := args[0]
			content, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("%w (%d)", err, ExitIOError)
			}
			if langdetect.IsBinary(content) {
				return fmt.Errorf("refusing to parse binary file %s", path)
			}

			name := languageName
			if name == "" {
				name = cfg.Language
			}
			if name == "" {
				name = langdetect.Detect(path, content)
			}
			if name == "" {
				return fmt.Errorf("cannot detect language for %s; use --language", path)
			}
			lang, err := grammars.Get(name)
			if err != nil {
				return err
			}

			p := parser.NewParser()
			if err := p.SetLanguage(lang); err != nil {
				return err
			}
			p.SetTimeoutMicros(cfg.TimeoutMicros)
			p.SetOperationLimit(cfg.OperationLimit)
			if flags.debug {
				p.SetLogger(logging.ParserEvents(logger))
			}

			start := time.Now()
			tree, err := p.Parse(content, nil)
			if err != nil {
				return err
			}
			elapsed := time.Since(start)
			stats := p.Stats()

			for _, spec := range edits {
				content, tree, err = applyEdit(p, tree, content, spec)
				if err != nil {
					return err
				}
			}

			out := os.Stdout
			styles := pretty.NewStyles(pretty.ColorEnabled(cfg.Color, out))
			if !quiet {
				fmt.Fprint(out, styles.RenderTree(tree.RootNode(), content))
			}
			if showTime {
				logger.Info("parsed",
					logging.FieldPath, path,
					logging.FieldLanguage, name,
					logging.FieldBytes, len(content),
					logging.FieldNodes, tree.RootNode().DescendantCount(),
					logging.FieldOperations, stats.Operations,
					logging.FieldTokens, stats.TokensLexed,
					logging.FieldDuration, elapsed,
				)
			}
			if tree.RootNode().HasError() {
				return ErrParseIssuesFound
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&languageName, "language", "l", "", "language to parse with")
	cmd.Flags().BoolVar(&showTime, "time", false, "report parse statistics")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "suppress the tree dump")
	cmd.Flags().StringArrayVar(&edits, "edit", nil,
		"apply an edit (start,deletedLength,insertedText) and re-parse incrementally")

	return cmd
}

// applyEdit parses a start,deleted,inserted spec, applies it to the
// content and tree, and re-parses incrementally.
func applyEdit(p *parser.Parser, tree *cst.Tree, content []byte, spec string) ([]byte, *cst.Tree, error) {
	parts := strings.SplitN(spec, ",", 3)
	if len(parts) != 3 {
		return nil, nil, fmt.Errorf("bad --edit %q: want start,deletedLength,insertedText", spec)
	}
	start, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		return nil, nil, fmt.Errorf("bad --edit start: %w", err)
	}
	deleted, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return nil, nil, fmt.Errorf("bad --edit deleted length: %w", err)
	}
	inserted := parts[2]
	if start > uint64(len(content)) || start+deleted > uint64(len(content)) {
		return nil, nil, fmt.Errorf("--edit %q out of bounds for %d bytes", spec, len(content))
	}

	oldEnd := uint32(start + deleted)
	newEnd := uint32(start) + uint32(len(inserted))

	edit := cst.InputEdit{
		StartByte:      uint32(start),
		OldEndByte:     oldEnd,
		NewEndByte:     newEnd,
		StartPosition:  pointAt(content, uint32(start)),
		OldEndPosition: pointAt(content, oldEnd),
	}

	edited := make([]byte, 0, uint64(len(content))-deleted+uint64(len(inserted)))
	edited = append(edited, content[:start]...)
	edited = append(edited, inserted...)
	edited = append(edited, content[start+deleted:]...)
	edit.NewEndPosition = pointAt(edited, newEnd)

	newTree, err := p.Parse(edited, tree.Edit(edit))
	if err != nil {
		return nil, nil, err
	}
	stats := p.Stats()
	logging.Default().Info("re-parsed",
		logging.FieldBytes, len(edited),
		logging.FieldOperations, stats.Operations,
		logging.FieldReused, stats.SubtreesReused,
	)
	return edited, newTree, nil
}

// pointAt computes the row/column of a byte offset.
func pointAt(content []byte, offset uint32) cst.Point {
	var p cst.Point
	for i := uint32(0); i < offset && int(i) < len(content); i++ {
		if content[i] == '\n' {
			p.Row++
			p.Column = 0
		} else {
			p.Column++
		}
	}
	return p
}
