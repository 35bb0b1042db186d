package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	xansi "github.com/charmbracelet/x/ansi"

	"github.com/lexcodex/godiagram/editor"
	"github.com/lexcodex/godiagram/layout"
	"github.com/lexcodex/godiagram/session"
)

// StatusBar renders connection state, model counts, pending edits, the pan
// offset and the active query.
type StatusBar struct {
	endpoint string
	state    session.State
	spinner  string
	packages int
	structs  int
	edges    int
	drawn    int
	pending  int
	pan      layout.Point
	minimap  bool
	query    string
	matches  int
}

func (m Model) statusBar(proj editor.Projection) StatusBar {
	packages, _, structs, edges := proj.Model.Counts()
	if proj.Model.IsPlaceholder() {
		packages = 0
	}
	return StatusBar{
		endpoint: m.title,
		state:    proj.State,
		spinner:  m.spinner.View(),
		packages: packages,
		structs:  structs,
		edges:    edges,
		drawn:    len(proj.Edges),
		pending:  len(proj.Pending),
		pan:      proj.Transform.Pan,
		minimap:  proj.Minimap,
		query:    proj.Query,
		matches:  proj.Marks.Count(),
	}
}

func (s StatusBar) View(width int) string {
	left := fmt.Sprintf("%s %s | %s", stateGlyph(s.state, s.spinner), s.state, truncate(s.endpoint, 28))
	right := fmt.Sprintf("%d pkgs %d structs | edges %d/%d | pending %d | pan %s",
		s.packages,
		s.structs,
		s.drawn,
		s.edges,
		s.pending,
		s.pan,
	)
	if s.minimap {
		right += " | minimap"
	}
	if s.query != "" {
		right += fmt.Sprintf(" | /%s (%d)", truncate(s.query, 16), s.matches)
	}
	padding := width - 2 - lipgloss.Width(left) - lipgloss.Width(right)
	if padding < 0 {
		padding = 0
	}
	return statusStyle.Render(left + strings.Repeat(" ", padding) + right)
}

func stateGlyph(state session.State, spin string) string {
	switch state {
	case session.StateConnected:
		return "●"
	case session.StateConnecting:
		return spin
	case session.StateErrored:
		return "✗"
	default:
		return "○"
	}
}

func truncate(s string, n int) string {
	if n <= 0 || xansi.StringWidth(s) <= n {
		return s
	}
	return xansi.Truncate(s, n, "…")
}
