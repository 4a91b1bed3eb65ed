package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yaklabco/cedar/internal/grammars"
	"github.com/yaklabco/cedar/pkg/language"
)

func newLanguagesCommand(_ *globalFlags) *cobra.Command {
	var emitDir string

	cmd := &cobra.Command{
		Use:   "languages",
		Short: "List the registered languages",
		Long: `List every registered language with its ABI version and counts.

With --emit, each language's compiled tables are serialized to
<dir>/<name>.cedarlang for distribution.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			for _, name := range grammars.Names() {
				lang, err := grammars.Get(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(os.Stdout, "%s\tabi=%d symbols=%d states=%d fields=%d\n",
					lang.Name(), lang.Version(), lang.SymbolCount(),
					lang.StateCount(), lang.FieldCount())

				if emitDir != "" {
					blob := language.Encode(lang)
					path := fmt.Sprintf("%s/%s.cedarlang", emitDir, name)
					if err := os.WriteFile(path, blob, 0o644); err != nil {
						return fmt.Errorf("emit %s: %w", path, err)
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&emitDir, "emit", "", "write language blobs to this directory")
	return cmd
}
