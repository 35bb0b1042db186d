package layout

import (
	"fmt"
	"time"

	"github.com/lexcodex/godiagram/structure"
)

// DefaultTransitionWindow is how long the entry animation flag stays raised
// after the model changes.
const DefaultTransitionWindow = 300 * time.Millisecond

// Point is a position in diagram units.
type Point struct {
	X, Y float64
}

func (p Point) Add(q Point) Point { return Point{p.X + q.X, p.Y + q.Y} }

func (p Point) Sub(q Point) Point { return Point{p.X - q.X, p.Y - q.Y} }

func (p Point) Scale(f float64) Point { return Point{p.X * f, p.Y * f} }

func (p Point) String() string { return fmt.Sprintf("(%g,%g)", p.X, p.Y) }

// Lerp interpolates linearly between p and q.
func (p Point) Lerp(q Point, t float64) Point {
	return Point{p.X + (q.X-p.X)*t, p.Y + (q.Y-p.Y)*t}
}

// Viewport tracks the pan offset, the drag gesture and the transition flag.
// It is not safe for concurrent use.
type Viewport struct {
	pan      Point
	anchor   Point
	dragging bool

	window        time.Duration
	model         *structure.Model
	generation    uint64
	transitioning bool
}

// NewViewport returns a viewport at the origin. A non-positive window uses
// DefaultTransitionWindow.
func NewViewport(window time.Duration) *Viewport {
	if window <= 0 {
		window = DefaultTransitionWindow
	}
	return &Viewport{window: window}
}

// PointerDown starts a drag, anchoring it so the content under the pointer
// stays under the pointer.
func (v *Viewport) PointerDown(p Point) {
	v.dragging = true
	v.anchor = p.Sub(v.pan)
}

// PointerMove pans while dragging and is ignored otherwise.
func (v *Viewport) PointerMove(p Point) {
	if !v.dragging {
		return
	}
	v.pan = p.Sub(v.anchor)
}

// PointerUp ends the drag and keeps the pan offset.
func (v *Viewport) PointerUp() { v.dragging = false }

// PointerLeave ends the drag like PointerUp.
func (v *Viewport) PointerLeave() { v.dragging = false }

// PanBy shifts the offset directly, for keyboard navigation.
func (v *Viewport) PanBy(d Point) { v.pan = v.pan.Add(d) }

// ResetPan returns to the origin.
func (v *Viewport) ResetPan() { v.pan = Point{} }

func (v *Viewport) Pan() Point { return v.pan }

func (v *Viewport) Dragging() bool { return v.dragging }

func (v *Viewport) Transitioning() bool { return v.transitioning }

func (v *Viewport) Window() time.Duration { return v.window }

// Observe compares m with the last observed model by identity. On a change it
// raises the transition flag and returns a new generation; the caller arms a
// timer for Window and hands the generation back to Expire.
func (v *Viewport) Observe(m *structure.Model) (uint64, bool) {
	if m == v.model {
		return v.generation, false
	}
	v.model = m
	v.generation++
	v.transitioning = true
	return v.generation, true
}

// Expire clears the transition flag if gen is still the latest generation.
// Timers armed for earlier changes are ignored, so the window restarts on
// every change instead of accumulating.
func (v *Viewport) Expire(gen uint64) bool {
	if gen != v.generation || !v.transitioning {
		return false
	}
	v.transitioning = false
	return true
}

// Transform returns the current view transform with the given scale.
func (v *Viewport) Transform(scale float64) Transform {
	return Transform{Pan: v.pan, Scale: scale}
}

// Transform maps diagram coordinates to screen coordinates: scale first, then
// pan.
type Transform struct {
	Pan   Point
	Scale float64
}

// Identity is the unscaled, unpanned transform.
var Identity = Transform{Scale: 1}

// MinimapScale is the scale used for the overview rendering.
const MinimapScale = 0.3

func (t Transform) Apply(p Point) Point {
	scale := t.Scale
	if scale == 0 {
		scale = 1
	}
	return p.Scale(scale).Add(t.Pan)
}
