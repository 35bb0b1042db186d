package editor

import (
	"time"

	"github.com/lexcodex/godiagram/dispatch"
	"github.com/lexcodex/godiagram/filter"
	"github.com/lexcodex/godiagram/layout"
	"github.com/lexcodex/godiagram/session"
	"github.com/lexcodex/godiagram/structure"
)

type NoticeLevel string

const (
	NoticeInfo  NoticeLevel = "info"
	NoticeWarn  NoticeLevel = "warn"
	NoticeError NoticeLevel = "error"
)

// Notice is a user-visible notification, such as an error reported by the
// watcher.
type Notice struct {
	Time    time.Time   `json:"time"`
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
}

// Selection is the selected package, file or struct. Selecting a package
// clears the file and struct; selecting a file clears the struct.
type Selection struct {
	Package string `json:"package,omitempty"`
	File    string `json:"file,omitempty"`
	Struct  string `json:"struct,omitempty"`
}

func (s Selection) normalize() Selection {
	if s.Package == "" {
		return Selection{}
	}
	if s.File == "" {
		s.Struct = ""
	}
	return s
}

func (s Selection) IsPackage(name string) bool { return s.Package != "" && s.Package == name }

func (s Selection) IsFile(ref structure.NodeRef) bool {
	return s.File != "" && s.Package == ref.Package && s.File == ref.File
}

func (s Selection) IsStruct(ref structure.NodeRef) bool {
	return s.Struct != "" && s.IsFile(ref) && s.Struct == ref.Struct
}

// FunctionGroup is the global functions of one package, in model order.
type FunctionGroup struct {
	Package   string
	Expanded  bool
	Functions []structure.GlobalFunction
	// Indexes are positions in Model.GlobalFunctions, for looking up marks.
	Indexes []int
}

// Projection is everything a renderer needs for one frame.
type Projection struct {
	Model         *structure.Model
	Edges         []layout.EdgeCurve
	Misses        []*layout.GeometryMiss
	Marks         filter.Marks
	Query         string
	Transform     layout.Transform
	Minimap       bool
	Dragging      bool
	Transitioning bool
	Selection     Selection
	Functions     []FunctionGroup
	Pending       []dispatch.PendingEdit
	Notices       []Notice
	State         session.State
}

// Projection computes the current frame. Edges only include endpoints whose
// geometry has been published.
func (e *Editor) Projection() Projection {
	e.mu.Lock()
	defer e.mu.Unlock()
	model := e.store.Model()
	scale := 1.0
	if e.minimap {
		scale = layout.MinimapScale
	}
	tr := e.viewport.Transform(scale)
	curves, misses := layout.ResolveEdges(model, e.registry, tr)
	notices := make([]Notice, len(e.notices))
	copy(notices, e.notices)
	return Projection{
		Model:         model,
		Edges:         curves,
		Misses:        misses,
		Marks:         e.index.Marks(model),
		Query:         e.index.Query(),
		Transform:     tr,
		Minimap:       e.minimap,
		Dragging:      e.viewport.Dragging(),
		Transitioning: e.viewport.Transitioning(),
		Selection:     e.selection,
		Functions:     groupFunctions(model, e.expanded),
		Pending:       e.dispatcher.Pending(),
		Notices:       notices,
		State:         e.channel.State(),
	}
}

func groupFunctions(m *structure.Model, expanded map[string]bool) []FunctionGroup {
	var groups []FunctionGroup
	at := make(map[string]int)
	for i, fn := range m.GlobalFunctions {
		g, ok := at[fn.Package]
		if !ok {
			g = len(groups)
			at[fn.Package] = g
			groups = append(groups, FunctionGroup{Package: fn.Package, Expanded: expanded[fn.Package]})
		}
		groups[g].Functions = append(groups[g].Functions, fn)
		groups[g].Indexes = append(groups[g].Indexes, i)
	}
	return groups
}
