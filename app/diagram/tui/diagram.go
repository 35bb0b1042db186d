package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/lexcodex/godiagram/layout"
	"github.com/lexcodex/godiagram/structure"
)

const (
	columnGap = 6
	rowGap    = 1
)

type role int

const (
	rolePlain role = iota
	roleStruct
	roleField
	roleType
	roleMethod
	roleRule
)

// segment is a run of box text. slot indexes diagram.slots, or is -1 for
// text that cannot be edited.
type segment struct {
	text string
	role role
	slot int
}

func (s segment) display() string {
	if s.text == "" && s.slot >= 0 {
		return "_"
	}
	return s.text
}

type box struct {
	ref    structure.NodeRef
	bounds layout.Rect
	lines  [][]segment
	// width is the widest content line, without padding or border.
	width int
}

type caption struct {
	text string
	at   layout.Point
	pkg  bool
	ref  structure.NodeRef
}

// diagram is the world-space arrangement of one model: packages are columns,
// files stack inside them and every struct is a bordered box. Coordinates are
// terminal cells.
type diagram struct {
	model    *structure.Model
	boxes    []box
	captions []caption
	slots    []structure.Leaf
}

func layoutDiagram(m *structure.Model) diagram {
	d := diagram{model: m}
	if m == nil {
		return d
	}
	x := 0
	for _, pkg := range m.Packages {
		y := 0
		colW := lipgloss.Width(pkg.Name)
		d.captions = append(d.captions, caption{text: pkg.Name, at: cell(x, y), pkg: true, ref: structure.NodeRef{Package: pkg.Name}})
		y += 2
		for _, file := range pkg.Files {
			fileRef := structure.NodeRef{Package: pkg.Name, File: file.Name}
			d.captions = append(d.captions, caption{text: file.Name, at: cell(x, y), ref: fileRef})
			colW = max(colW, lipgloss.Width(file.Name))
			y++
			for _, st := range file.Structs {
				b := d.buildBox(fileRef.WithStruct(st.Name), st)
				w, h := b.width+4, len(b.lines)+2
				b.bounds = layout.RectAt(float64(x), float64(y), float64(w), float64(h))
				d.boxes = append(d.boxes, b)
				colW = max(colW, w)
				y += h + rowGap
			}
			y++
		}
		x += colW + columnGap
	}
	return d
}

func cell(x, y int) layout.Point { return layout.Point{X: float64(x), Y: float64(y)} }

func (d *diagram) slot(leaf structure.Leaf) int {
	d.slots = append(d.slots, leaf)
	return len(d.slots) - 1
}

func (d *diagram) buildBox(ref structure.NodeRef, st *structure.Struct) box {
	b := box{ref: ref}
	b.lines = append(b.lines, []segment{{text: st.Name, role: roleStruct, slot: d.slot(structure.Leaf{Kind: structure.IntentRenameStruct, Ref: ref})}})
	for i, f := range st.Fields {
		b.lines = append(b.lines, []segment{
			{text: f.Name, role: roleField, slot: d.slot(structure.Leaf{Kind: structure.IntentRenameField, Ref: ref, Index: i})},
			{text: " ", slot: -1},
			{text: f.Type.Literal, role: roleType, slot: d.slot(structure.Leaf{Kind: structure.IntentRetypeField, Ref: ref, Index: i})},
		})
	}
	if len(st.Methods) > 0 {
		b.lines = append(b.lines, []segment{{role: roleRule, slot: -1}})
	}
	for i, method := range st.Methods {
		line := []segment{
			{text: method.Name, role: roleMethod, slot: d.slot(structure.Leaf{Kind: structure.IntentRenameMethod, Ref: ref, Index: i})},
			{text: "()", slot: -1},
		}
		if n := len(method.ReturnType); n > 0 {
			open := " "
			if n > 1 {
				open = " ("
			}
			line = append(line, segment{text: open, slot: -1})
			for j, rt := range method.ReturnType {
				if j > 0 {
					line = append(line, segment{text: ", ", slot: -1})
				}
				line = append(line, segment{text: rt.Literal, role: roleType, slot: d.slot(structure.Leaf{Kind: structure.IntentRetypeMethodReturn, Ref: ref, Index: i, TypeIndex: j})})
			}
			if n > 1 {
				line = append(line, segment{text: ")", slot: -1})
			}
		}
		b.lines = append(b.lines, line)
	}
	for _, line := range b.lines {
		w := 0
		for _, seg := range line {
			w += lipgloss.Width(seg.display())
		}
		b.width = max(b.width, w)
	}
	return b
}

// publish stores every box's world bounds so edges can be resolved.
func (d diagram) publish(reg *layout.Registry) {
	for _, b := range d.boxes {
		reg.Publish(b.ref, layout.Geometry{Bounds: b.bounds})
	}
}

// slotOf finds the slot editing leaf, or -1.
func (d diagram) slotOf(leaf structure.Leaf) int {
	for i, l := range d.slots {
		if l == leaf {
			return i
		}
	}
	return -1
}

// boxOf returns the box holding a slot.
func (d diagram) boxOf(slot int) (box, bool) {
	if slot < 0 || slot >= len(d.slots) {
		return box{}, false
	}
	ref := d.slots[slot].Ref
	for _, b := range d.boxes {
		if b.ref == ref {
			return b, true
		}
	}
	return box{}, false
}

// screenRect maps a world rect through tr and rounds it to cells.
func screenRect(r layout.Rect, tr layout.Transform) (x0, y0, x1, y1 int) {
	lo, hi := tr.Apply(r.Min), tr.Apply(r.Max)
	return round(lo.X), round(lo.Y), round(hi.X), round(hi.Y)
}

// hit returns the box under a screen cell.
func (d diagram) hit(x, y int, tr layout.Transform, minimap bool) (box, bool) {
	for _, b := range d.boxes {
		x0, y0, x1, y1 := screenRect(b.bounds, tr)
		if minimap {
			x1, y1 = x0+lipgloss.Width(miniLabel(b.ref.Struct)), y0+1
		}
		if x >= x0 && x < x1 && y >= y0 && y < y1 {
			return b, true
		}
	}
	return box{}, false
}
