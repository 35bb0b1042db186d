package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/lexcodex/godiagram/editor"
	"github.com/lexcodex/godiagram/internal/diagram/runtime"
	"github.com/lexcodex/godiagram/layout"
	"github.com/lexcodex/godiagram/session"
	"github.com/lexcodex/godiagram/structure"
)

// InputMode selects how keystrokes are interpreted.
type InputMode int

const (
	ModeBrowse InputMode = iota
	ModeSearch
	ModeEdit
)

type (
	eventMsg   struct{ ev session.Event }
	expireMsg  struct{ gen uint64 }
	connectMsg struct{ err error }
)

// Model is the Bubble Tea model for the diagram editor.
type Model struct {
	ctx     context.Context
	editor  *editor.Editor
	title   string
	input   textinput.Model
	spinner spinner.Model

	mode    InputMode
	diagram diagram
	focus   int
	// focusLeaf keeps the focus on the same slot across relayouts.
	focusLeaf structure.Leaf
	editing   structure.Leaf
	modal     *editor.Notice
	hint      string

	pressed bool
	moved   bool

	width  int
	height int
}

// NewModel builds the UI around an editor. title names the watcher endpoint.
func NewModel(ctx context.Context, ed *editor.Editor, title string) Model {
	if ctx == nil {
		ctx = context.Background()
	}
	input := textinput.New()
	input.Prompt = "› "
	input.CharLimit = 256

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := Model{
		ctx:     ctx,
		editor:  ed,
		title:   title,
		input:   input,
		spinner: sp,
		width:   100,
		height:  30,
	}
	m.sync()
	return m
}

// Run starts the Bubble Tea program against the runtime's editor.
func Run(ctx context.Context, rt *runtime.Runtime) error {
	model := NewModel(ctx, rt.Editor, rt.Config.Watcher.Endpoint().String())
	program := tea.NewProgram(model, tea.WithContext(ctx), tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithReportFocus())
	_, err := program.Run()
	return err
}

// Init starts listening for watcher events.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, m.listen())
}

func (m Model) listen() tea.Cmd {
	events := m.editor.Events()
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		return eventMsg{ev: <-events}
	}
}

func (m Model) reconnect() tea.Cmd {
	ed, ctx := m.editor, m.ctx
	return func() tea.Msg {
		return connectMsg{err: ed.Open(ctx)}
	}
}

// sync rebuilds the layout when the model changed and republishes geometry.
func (m *Model) sync() {
	current := m.editor.Model()
	if current != m.diagram.model {
		m.diagram = layoutDiagram(current)
		m.diagram.publish(m.editor.Registry())
	}
	if slot := m.diagram.slotOf(m.focusLeaf); slot >= 0 {
		m.focus = slot
	}
	if m.focus >= len(m.diagram.slots) {
		m.focus = len(m.diagram.slots) - 1
	}
	if m.focus < 0 {
		m.focus = 0
	}
	if len(m.diagram.slots) > 0 {
		m.focusLeaf = m.diagram.slots[m.focus]
	}
	if m.mode == ModeEdit && m.diagram.slotOf(m.editing) < 0 {
		m.mode = ModeBrowse
		m.input.Blur()
		m.hint = "edited item no longer exists"
	}
}

// focused returns the leaf under the cursor.
func (m Model) focused() (structure.Leaf, bool) {
	if m.focus < 0 || m.focus >= len(m.diagram.slots) {
		return structure.Leaf{}, false
	}
	return m.diagram.slots[m.focus], true
}

func toPoint(msg tea.MouseMsg) layout.Point {
	return layout.Point{X: float64(msg.X), Y: float64(msg.Y)}
}
