// Package pretty provides Lipgloss-based styled output for parse trees
// and query results.
package pretty

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"golang.org/x/term"
)

// Styles contains all styled renderers for CLI output.
type Styles struct {
	// Tree components
	NodeName  lipgloss.Style
	TokenText lipgloss.Style
	FieldName lipgloss.Style
	Location  lipgloss.Style
	ErrorNode lipgloss.Style
	Missing   lipgloss.Style

	// Query components
	CaptureName lipgloss.Style
	PatternIdx  lipgloss.Style

	// Misc
	Dim  lipgloss.Style
	Bold lipgloss.Style
}

// NewStyles creates a new Styles with the given color mode.
func NewStyles(colorEnabled bool) *Styles {
	if !colorEnabled {
		return &Styles{}
	}
	return &Styles{
		NodeName:  lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
		TokenText: lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		FieldName: lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Italic(true),
		Location:  lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		ErrorNode: lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		Missing:   lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true),

		CaptureName: lipgloss.NewStyle().Foreground(lipgloss.Color("13")),
		PatternIdx:  lipgloss.NewStyle().Foreground(lipgloss.Color("8")),

		Dim:  lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		Bold: lipgloss.NewStyle().Bold(true),
	}
}

// ColorEnabled resolves a color mode ("auto", "always", "never") against
// the output stream.
func ColorEnabled(mode string, out io.Writer) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	default:
		f, ok := out.(*os.File)
		return ok && isatty.IsTerminal(f.Fd())
	}
}

// TerminalWidth probes the output width, defaulting to 80 columns.
func TerminalWidth(out io.Writer) int {
	if f, ok := out.(*os.File); ok {
		if width, _, err := term.GetSize(int(f.Fd())); err == nil && width > 0 {
			return width
		}
	}
	return 80
}
