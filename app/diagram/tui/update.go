package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/lexcodex/godiagram/editor"
	"github.com/lexcodex/godiagram/layout"
	"github.com/lexcodex/godiagram/session"
	"github.com/lexcodex/godiagram/structure"
)

const (
	panStepX = 4
	panStepY = 2
)

// Update routes messages and keeps the layout in step with the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	next, cmd := m.update(msg)
	next.sync()
	return next, cmd
}

func (m Model) update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg), nil
	case eventMsg:
		return m.handleEvent(msg.ev)
	case expireMsg:
		m.editor.Expire(msg.gen)
		return m, nil
	case connectMsg:
		if msg.err != nil {
			m.hint = "connect failed: " + msg.err.Error()
		} else {
			m.hint = "connected"
		}
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.BlurMsg:
		m.editor.PointerLeave()
		m.pressed = false
		return m, nil
	case tea.MouseMsg:
		return m.handleMouse(msg), nil
	case tea.KeyMsg:
		if m.modal != nil {
			return m.handleModalKey(msg), nil
		}
		switch m.mode {
		case ModeSearch:
			return m.handleSearchKey(msg)
		case ModeEdit:
			return m.handleEditKey(msg)
		default:
			return m.handleBrowseKey(msg)
		}
	}
	return m, nil
}

func (m Model) handleResize(msg tea.WindowSizeMsg) Model {
	m.width = msg.Width
	m.height = msg.Height
	m.input.Width = max(msg.Width-8, 10)
	return m
}

func (m Model) handleEvent(ev session.Event) (Model, tea.Cmd) {
	up := m.editor.HandleEvent(ev)
	cmds := []tea.Cmd{m.listen()}
	if up.Transition {
		gen := up.Generation
		cmds = append(cmds, tea.Tick(m.editor.TransitionWindow(), func(time.Time) tea.Msg {
			return expireMsg{gen: gen}
		}))
	}
	if _, ok := ev.(session.PeerErrorEvent); ok && up.Notice != nil {
		m.modal = up.Notice
	}
	if closed, ok := ev.(session.ClosedEvent); ok {
		m.hint = "connection " + closed.State.String() + ", press r to reconnect"
	}
	return m, tea.Batch(cmds...)
}

func (m Model) handleModalKey(msg tea.KeyMsg) Model {
	switch msg.String() {
	case "enter", "esc", " ", "q":
		m.modal = nil
	}
	return m
}

func (m Model) handleMouse(msg tea.MouseMsg) Model {
	switch {
	case msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonWheelUp:
		m.editor.PanBy(layout.Point{Y: panStepY})
	case msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonWheelDown:
		m.editor.PanBy(layout.Point{Y: -panStepY})
	case msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft:
		m.editor.PointerDown(toPoint(msg))
		m.pressed, m.moved = true, false
	case msg.Action == tea.MouseActionMotion && m.pressed:
		m.editor.PointerMove(toPoint(msg))
		m.moved = true
	case msg.Action == tea.MouseActionRelease:
		m.editor.PointerUp()
		if m.pressed && !m.moved {
			m = m.clickAt(msg.X, msg.Y)
		}
		m.pressed = false
	}
	return m
}

// clickAt selects and focuses the struct under the cursor, or clears the
// selection when clicking empty space.
func (m Model) clickAt(x, y int) Model {
	proj := m.editor.Projection()
	b, ok := m.diagram.hit(x, y, proj.Transform, proj.Minimap)
	if !ok {
		m.editor.Select(editor.Selection{})
		return m
	}
	m.editor.Select(editor.Selection{Package: b.ref.Package, File: b.ref.File, Struct: b.ref.Struct})
	m.focusLeaf = structure.Leaf{Kind: structure.IntentRenameStruct, Ref: b.ref}
	return m
}

func (m Model) handleBrowseKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	m.hint = ""
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "up", "k":
		m.editor.PanBy(layout.Point{Y: panStepY})
	case "down", "j":
		m.editor.PanBy(layout.Point{Y: -panStepY})
	case "left", "h":
		m.editor.PanBy(layout.Point{X: panStepX})
	case "right", "l":
		m.editor.PanBy(layout.Point{X: -panStepX})
	case "0":
		m.editor.ResetPan()
	case "tab":
		m = m.moveFocus(1)
	case "shift+tab":
		m = m.moveFocus(-1)
	case "/":
		m.mode = ModeSearch
		m.input.SetValue(m.editor.Projection().Query)
		m.input.Placeholder = "search names and types"
		m.input.CursorEnd()
		cmd := m.input.Focus()
		return m, cmd
	case "enter", "e":
		return m.beginEdit()
	case "a":
		return m.dispatchOnStruct(structure.IntentAddField)
	case "D":
		return m.dispatchOnStruct(structure.IntentDeleteStruct)
	case "x":
		leaf, ok := m.focused()
		if !ok || (leaf.Kind != structure.IntentRenameField && leaf.Kind != structure.IntentRetypeField) {
			m.hint = "focus a field to remove it"
			return m, nil
		}
		return m.dispatch(structure.EditIntent{Kind: structure.IntentRemoveField, Ref: leaf.Ref, Index: leaf.Index})
	case "n":
		ref, ok := m.targetFile()
		if !ok {
			m.hint = "no file to add a struct to"
			return m, nil
		}
		return m.dispatch(structure.EditIntent{Kind: structure.IntentAddStruct, Ref: ref})
	case "m":
		if m.editor.ToggleMinimap() {
			m.hint = "minimap"
		}
	case "f":
		if pkg := m.functionPackage(); pkg != "" {
			m.editor.ToggleFunctions(pkg)
		}
	case " ":
		if leaf, ok := m.focused(); ok {
			ref := leaf.Ref
			m.editor.Select(editor.Selection{Package: ref.Package, File: ref.File, Struct: ref.Struct})
		}
	case "c":
		m.editor.DismissNotices()
	case "r":
		switch m.editor.Projection().State {
		case session.StateConnected, session.StateConnecting:
			m.hint = "already connected"
		default:
			m.hint = "connecting…"
			return m, m.reconnect()
		}
	}
	return m, nil
}

func (m Model) handleSearchKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.editor.SetQuery("")
		m.input.SetValue("")
		m.input.Blur()
		m.mode = ModeBrowse
		return m, nil
	case "enter":
		m.input.Blur()
		m.mode = ModeBrowse
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.editor.SetQuery(m.input.Value())
	return m, cmd
}

// beginEdit opens the focused leaf for text editing.
func (m Model) beginEdit() (Model, tea.Cmd) {
	leaf, ok := m.focused()
	if !ok {
		return m, nil
	}
	value, err := structure.LeafValue(m.editor.Model(), leaf)
	if err != nil {
		m.hint = err.Error()
		return m, nil
	}
	m.mode = ModeEdit
	m.editing = leaf
	m.input.Placeholder = ""
	m.input.SetValue(value)
	m.input.CursorEnd()
	cmd := m.input.Focus()
	return m, cmd
}

func (m Model) handleEditKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		if _, err := m.editor.Abandon(m.editing.Intent(m.input.Value())); err != nil {
			m.hint = err.Error()
		}
		m = m.endEdit()
		return m, nil
	case "enter", "tab", "shift+tab":
		if m.editing.Kind == structure.IntentRenameStruct && m.input.Value() == "" {
			m.hint = "struct name cannot be empty"
			return m, nil
		}
		if _, err := m.editor.Commit(m.editing.Intent(m.input.Value())); err != nil {
			m.hint = err.Error()
		}
		m = m.endEdit()
		switch msg.String() {
		case "tab":
			m = m.moveFocus(1)
		case "shift+tab":
			m = m.moveFocus(-1)
		}
		return m, nil
	case "ctrl+c":
		return m, tea.Quit
	}
	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	value := m.input.Value()
	switch {
	case value == before:
	case m.editing.Kind == structure.IntentRenameStruct && value == "":
		m.hint = "struct name cannot be empty"
	default:
		if _, err := m.editor.Live(m.editing.Intent(value)); err != nil {
			m.hint = err.Error()
		} else {
			m.hint = ""
			if m.editing.Kind == structure.IntentRenameStruct {
				m.editing.Ref.Struct = value
			}
		}
	}
	m.focusLeaf = m.editing
	return m, cmd
}

func (m Model) endEdit() Model {
	m.mode = ModeBrowse
	m.input.Blur()
	m.input.SetValue("")
	m.editing = structure.Leaf{}
	return m
}

func (m Model) moveFocus(delta int) Model {
	n := len(m.diagram.slots)
	if n == 0 {
		return m
	}
	m.focus = ((m.focus+delta)%n + n) % n
	m.focusLeaf = m.diagram.slots[m.focus]
	return m
}

func (m Model) dispatchOnStruct(kind structure.IntentKind) (Model, tea.Cmd) {
	leaf, ok := m.focused()
	if !ok {
		m.hint = "nothing focused"
		return m, nil
	}
	return m.dispatch(structure.EditIntent{Kind: kind, Ref: leaf.Ref})
}

func (m Model) dispatch(intent structure.EditIntent) (Model, tea.Cmd) {
	if _, err := m.editor.Dispatch(intent); err != nil {
		m.hint = err.Error()
	}
	return m, nil
}

// targetFile is the file a new struct goes into: the focused struct's file,
// else the first file of the model.
func (m Model) targetFile() (structure.NodeRef, bool) {
	if leaf, ok := m.focused(); ok {
		return leaf.Ref.FileRef(), true
	}
	model := m.editor.Model()
	if model.IsPlaceholder() {
		return structure.NodeRef{}, false
	}
	for _, pkg := range model.Packages {
		for _, file := range pkg.Files {
			return structure.NodeRef{Package: pkg.Name, File: file.Name}, true
		}
	}
	return structure.NodeRef{}, false
}

// functionPackage is the function group the f key toggles: the focused
// struct's package when it has one, else the first group.
func (m Model) functionPackage() string {
	groups := m.editor.Projection().Functions
	if len(groups) == 0 {
		return ""
	}
	if leaf, ok := m.focused(); ok {
		for _, g := range groups {
			if g.Package == leaf.Ref.Package {
				return g.Package
			}
		}
	}
	return groups[0].Package
}
