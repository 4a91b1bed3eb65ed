package pretty

import (
	"fmt"
	"strings"

	"github.com/yaklabco/cedar/pkg/cst"
	"github.com/yaklabco/cedar/pkg/query"
)

// RenderTree renders the visible tree below node, one node per line,
// indented by depth, with byte ranges and token text.
func (s *Styles) RenderTree(node cst.Node, source []byte) string {
	var b strings.Builder
	s.renderNode(&b, node, source, 0)
	return b.String()
}

func (s *Styles) renderNode(b *strings.Builder, n cst.Node, source []byte, depth int) {
	indent := strings.Repeat("  ", depth)
	location := s.Location.Render(fmt.Sprintf("[%d..%d]", n.StartByte(), n.EndByte()))

	var label string
	switch {
	case n.IsError():
		label = s.ErrorNode.Render("ERROR")
	case n.IsMissing():
		label = s.Missing.Render("MISSING " + n.Kind())
	case n.IsNamed():
		label = s.NodeName.Render(n.Kind())
	default:
		label = s.TokenText.Render(fmt.Sprintf("%q", n.Kind()))
	}

	if field := n.FieldName(); field != "" {
		label = s.FieldName.Render(field+": ") + label
	}

	fmt.Fprintf(b, "%s%s %s", indent, label, location)
	if n.ChildCount() == 0 && n.IsNamed() && len(source) > 0 {
		if text := n.Content(source); len(text) > 0 {
			fmt.Fprintf(b, " %s", s.Dim.Render(fmt.Sprintf("%q", text)))
		}
	}
	b.WriteByte('\n')

	for _, child := range n.Children() {
		s.renderNode(b, child, source, depth+1)
	}
}

// RenderMatches renders query matches, one capture per line.
func (s *Styles) RenderMatches(matches []query.Match, names []string, source []byte) string {
	var b strings.Builder
	for _, match := range matches {
		fmt.Fprintf(&b, "%s\n", s.PatternIdx.Render(fmt.Sprintf("pattern %d:", match.PatternIndex)))
		for _, capture := range match.Captures {
			name := ""
			if int(capture.Index) < len(names) {
				name = names[capture.Index]
			}
			fmt.Fprintf(&b, "  %s %s %s\n",
				s.CaptureName.Render("@"+name),
				s.Location.Render(capture.Node.Range().String()),
				s.Dim.Render(fmt.Sprintf("%q", capture.Node.Content(source))),
			)
		}
	}
	return b.String()
}
