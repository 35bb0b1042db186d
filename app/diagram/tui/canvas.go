package tui

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	xansi "github.com/charmbracelet/x/ansi"

	"github.com/lexcodex/godiagram/layout"
)

// canvas is a rune grid the edges are plotted on before boxes are overlaid.
type canvas struct {
	w, h  int
	cells [][]rune
}

func newCanvas(w, h int) *canvas {
	c := &canvas{w: max(w, 0), h: max(h, 0)}
	c.cells = make([][]rune, c.h)
	for y := range c.cells {
		c.cells[y] = []rune(strings.Repeat(" ", c.w))
	}
	return c
}

func (c *canvas) set(x, y int, r rune) {
	if x < 0 || y < 0 || x >= c.w || y >= c.h {
		return
	}
	c.cells[y][x] = r
}

func (c *canvas) lines(style lipgloss.Style) []string {
	out := make([]string, c.h)
	for y, row := range c.cells {
		out[y] = style.Render(string(row))
	}
	return out
}

type cellRect struct{ x0, y0, x1, y1 int }

func (r cellRect) contains(x, y int) bool {
	return x >= r.x0 && x < r.x1 && y >= r.y0 && y < r.y1
}

// plotEdge traces a connector between two boxes. Cells inside either box are
// skipped; the arrow head goes on the last cell before the target.
func (c *canvas) plotEdge(curve layout.Curve, from, to cellRect) {
	span := math.Max(math.Abs(curve.End.X-curve.Start.X), math.Abs(curve.End.Y-curve.Start.Y))
	points := curve.Sample(int(span)*2 + 2)
	px, py := round(curve.Start.X), round(curve.Start.Y)
	tipX, tipY, tip := 0, 0, false
	for _, p := range points {
		x, y := round(p.X), round(p.Y)
		if x == px && y == py {
			continue
		}
		dx, dy := x-px, y-py
		px, py = x, y
		if from.contains(x, y) || to.contains(x, y) {
			continue
		}
		c.set(x, y, strokeGlyph(dx, dy))
		tipX, tipY, tip = x, y, true
	}
	if tip {
		c.set(tipX, tipY, arrowGlyph(curve.ArrowHeading()))
	}
}

func strokeGlyph(dx, dy int) rune {
	switch {
	case dy == 0:
		return '─'
	case dx == 0:
		return '│'
	case (dx > 0) == (dy > 0):
		return '╲'
	default:
		return '╱'
	}
}

// arrowGlyph picks the head for a heading in radians; screen y grows down.
func arrowGlyph(heading float64) rune {
	cos, sin := math.Cos(heading), math.Sin(heading)
	if math.Abs(cos) >= math.Abs(sin) {
		if cos >= 0 {
			return '▶'
		}
		return '◀'
	}
	if sin > 0 {
		return '▼'
	}
	return '▲'
}

func round(f float64) int { return int(math.Round(f)) }

// overlayAt draws fg over bg with its top-left corner at (x, y). Parts of fg
// outside [0, w) horizontally or outside bg vertically are clipped.
func overlayAt(bg []string, fg string, w, x, y int) {
	fgLines := strings.Split(fg, "\n")
	fgW := 0
	for _, ln := range fgLines {
		fgW = max(fgW, xansi.StringWidth(ln))
	}
	left, right := x, min(x+fgW, w)
	if left < 0 {
		left = 0
	}
	if left >= right {
		return
	}
	for i, line := range fgLines {
		row := y + i
		if row < 0 || row >= len(bg) {
			continue
		}
		line = xansi.Cut(line, left-x, right-x)
		if n := xansi.StringWidth(line); n < right-left {
			line += strings.Repeat(" ", right-left-n)
		}
		base := bg[row]
		if n := xansi.StringWidth(base); n < w {
			base += strings.Repeat(" ", w-n)
		}
		bg[row] = xansi.Cut(base, 0, left) + line + xansi.Cut(base, right, w)
	}
}

// overlayCenter draws fg in the middle of bg with a drop shadow.
func overlayCenter(bg, fg string, w, h int) string {
	bgLines := strings.Split(bg, "\n")
	for len(bgLines) < h {
		bgLines = append(bgLines, "")
	}
	fgW, fgH := lipgloss.Width(fg), lipgloss.Height(fg)
	x, y := max((w-fgW)/2, 0), max((h-fgH)/2, 0)
	shadowLine := shadowStyle.Render(strings.Repeat("░", fgW))
	shadow := strings.TrimSuffix(strings.Repeat(shadowLine+"\n", fgH), "\n")
	overlayAt(bgLines, shadow, w, x+1, y+1)
	overlayAt(bgLines, fg, w, x, y)
	return strings.Join(bgLines, "\n")
}

func miniLabel(name string) string { return "▪ " + name }
