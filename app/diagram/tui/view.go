package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/lexcodex/godiagram/dispatch"
	"github.com/lexcodex/godiagram/editor"
	"github.com/lexcodex/godiagram/filter"
	"github.com/lexcodex/godiagram/structure"
)

const functionsWidth = 36

const helpText = "tab focus · enter edit · / search · a field · x remove · n struct · D delete · m minimap · f functions · r reconnect · q quit"

// View renders the canvas, the function panel, the prompt and the status bar.
func (m Model) View() string {
	proj := m.editor.Projection()
	status := m.statusBar(proj).View(m.width)
	prompt := m.promptView(proj)
	canvasH := max(m.height-lipgloss.Height(status)-lipgloss.Height(prompt), 1)
	panel := m.functionsView(proj, canvasH)
	canvasW := max(m.width-lipgloss.Width(panel), 1)

	body := m.renderCanvas(proj, canvasW, canvasH)
	if panel != "" {
		body = lipgloss.JoinHorizontal(lipgloss.Top, body, panel)
	}
	view := lipgloss.JoinVertical(lipgloss.Left, body, prompt, status)
	if m.modal != nil {
		view = overlayCenter(view, m.modalView(), m.width, m.height)
	}
	return view
}

func (m Model) renderCanvas(proj editor.Projection, w, h int) string {
	if proj.Model.IsPlaceholder() {
		msg := m.spinner.View() + " waiting for the watcher at " + m.title
		return lipgloss.Place(w, h, lipgloss.Center, lipgloss.Center, msg)
	}
	tr := proj.Transform
	rects := make(map[structure.NodeRef]cellRect, len(m.diagram.boxes))
	for _, b := range m.diagram.boxes {
		x0, y0, x1, y1 := screenRect(b.bounds, tr)
		if proj.Minimap {
			x1, y1 = x0+lipgloss.Width(miniLabel(b.ref.Struct)), y0+1
		}
		rects[b.ref] = cellRect{x0, y0, x1, y1}
	}

	c := newCanvas(w, h)
	for _, e := range proj.Edges {
		c.plotEdge(e.Curve, rects[e.Edge.From], rects[e.Edge.To])
	}
	lines := c.lines(edgeStyle)

	var idx filter.Index
	idx.SetQuery(proj.Query)
	for _, lbl := range m.diagram.captions {
		if proj.Minimap && !lbl.pkg {
			continue
		}
		at := tr.Apply(lbl.at)
		overlayAt(lines, m.renderCaption(lbl, proj, &idx), w, round(at.X), round(at.Y))
	}
	pending := pendingLeaves(proj.Pending)
	for _, b := range m.diagram.boxes {
		r := rects[b.ref]
		var rendered string
		if proj.Minimap {
			rendered = m.renderMini(b, proj)
		} else {
			rendered = m.renderBox(b, proj, &idx, pending)
		}
		overlayAt(lines, rendered, w, r.x0, r.y0)
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderCaption(lbl caption, proj editor.Projection, idx *filter.Index) string {
	style := fileStyle
	selected := proj.Selection.IsFile(lbl.ref)
	if lbl.pkg {
		style = packageStyle
		selected = proj.Selection.IsPackage(lbl.ref.Package) && proj.Selection.File == ""
	}
	text := highlight(lbl.text, style, idx)
	if selected {
		return focusStyle.Render("▸") + " " + text
	}
	return text
}

func (m Model) renderMini(b box, proj editor.Projection) string {
	style := structNameStyle
	switch {
	case proj.Marks.Struct(b.ref):
		style = matchStyle
	case proj.Selection.IsStruct(b.ref):
		style = focusStyle
	}
	return style.Render(miniLabel(b.ref.Struct))
}

func (m Model) renderBox(b box, proj editor.Projection, idx *filter.Index, pending map[structure.Leaf]bool) string {
	rows := make([]string, 0, len(b.lines))
	for _, line := range b.lines {
		var sb strings.Builder
		for _, seg := range line {
			if seg.role == roleRule {
				sb.WriteString(dimStyle.Render(strings.Repeat("─", b.width)))
				continue
			}
			sb.WriteString(m.renderSegment(seg, idx, pending))
		}
		rows = append(rows, sb.String())
	}
	style := boxStyle
	switch {
	case proj.Selection.IsStruct(b.ref):
		style = selectedBoxStyle
	case proj.Transitioning:
		style = freshBoxStyle
	}
	return style.Width(b.width + 2).Render(strings.Join(rows, "\n"))
}

func (m Model) renderSegment(seg segment, idx *filter.Index, pending map[structure.Leaf]bool) string {
	text := seg.display()
	if seg.slot < 0 {
		return text
	}
	if seg.slot == m.focus && m.mode != ModeSearch {
		return focusStyle.Render(text)
	}
	style := roleStyle(seg.role)
	if pending[m.diagram.slots[seg.slot]] {
		style = pendingStyle
	}
	return highlight(text, style, idx)
}

func roleStyle(r role) lipgloss.Style {
	switch r {
	case roleStruct:
		return structNameStyle
	case roleType:
		return typeStyle
	case roleMethod:
		return methodStyle
	default:
		return lipgloss.NewStyle()
	}
}

// highlight renders text with the query matches emphasised.
func highlight(text string, style lipgloss.Style, idx *filter.Index) string {
	var sb strings.Builder
	for _, span := range idx.Spans(text) {
		if span.Match {
			sb.WriteString(matchStyle.Render(span.Text))
		} else {
			sb.WriteString(style.Render(span.Text))
		}
	}
	return sb.String()
}

// pendingLeaves translates pending edits to the names shown on screen: a
// live struct rename moves every leaf of that struct to the live name.
func pendingLeaves(pending []dispatch.PendingEdit) map[structure.Leaf]bool {
	renamed := make(map[structure.NodeRef]string)
	for _, p := range pending {
		if p.Leaf.Kind == structure.IntentRenameStruct {
			renamed[p.Leaf.Ref] = p.Live
		}
	}
	out := make(map[structure.Leaf]bool, len(pending))
	for _, p := range pending {
		leaf := p.Leaf
		if live, ok := renamed[leaf.Ref]; ok {
			leaf.Ref.Struct = live
		}
		out[leaf] = true
	}
	return out
}

func (m Model) functionsView(proj editor.Projection, h int) string {
	if len(proj.Functions) == 0 {
		return ""
	}
	inner := functionsWidth - 3
	lines := []string{sectionHeaderStyle.Render("Functions")}
	for _, g := range proj.Functions {
		arrow := "▶"
		if g.Expanded {
			arrow = "▼"
		}
		lines = append(lines, arrow+" "+packageStyle.Render(truncate(g.Package, inner-8))+dimStyle.Render(fmt.Sprintf(" (%d)", len(g.Functions))))
		if !g.Expanded {
			continue
		}
		for i, fn := range g.Functions {
			sig := truncate(fn.Signature(), inner-2)
			if proj.Marks.Function(g.Indexes[i]) {
				sig = matchStyle.Render(sig)
			} else {
				sig = methodStyle.Render(sig)
			}
			lines = append(lines, "  "+sig)
		}
	}
	if len(lines) > h {
		lines = lines[:h]
	}
	return panelStyle.Width(functionsWidth - 1).Height(h).Render(strings.Join(lines, "\n"))
}

// signature formats a free function as Name(p T, q U) R.
func (m Model) promptView(proj editor.Projection) string {
	bar := promptBarStyle.Width(max(m.width, 1))
	switch m.mode {
	case ModeSearch:
		return bar.Render("search " + m.input.View())
	case ModeEdit:
		return bar.Render(editLabel(m.editing.Kind) + " " + m.input.View())
	}
	limit := max(m.width-2, 1)
	if m.hint != "" {
		return bar.Render(warnStyle.Render(truncate(m.hint, limit)))
	}
	if n := len(proj.Notices); n > 0 {
		notice := proj.Notices[n-1]
		style := warnStyle
		if notice.Level == editor.NoticeError {
			style = errorStyle
		}
		return bar.Render(style.Render(truncate(notice.Message, limit)))
	}
	return bar.Render(dimStyle.Render(truncate(helpText, limit)))
}

func editLabel(kind structure.IntentKind) string {
	switch kind {
	case structure.IntentRenameStruct:
		return "struct"
	case structure.IntentRenameField:
		return "field"
	case structure.IntentRetypeField, structure.IntentRetypeMethodReturn:
		return "type"
	case structure.IntentRenameMethod:
		return "method"
	default:
		return string(kind)
	}
}

func (m Model) modalView() string {
	width := min(60, max(m.width-8, 20))
	body := errorStyle.Bold(true).Render("watcher error") + "\n\n" +
		m.modal.Message + "\n\n" +
		dimStyle.Render("press enter to dismiss")
	return modalStyle.Width(width).Render(body)
}
