package layout

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/lexcodex/godiagram/structure"
)

// GeometryMiss reports an edge endpoint that could not be placed. Dangling
// endpoints no longer name a struct in the model; unmeasured ones do but have
// no published geometry yet.
type GeometryMiss struct {
	Edge     structure.Edge
	Ref      structure.NodeRef
	Dangling bool
}

func (e *GeometryMiss) Error() string {
	if e.Dangling {
		return fmt.Sprintf("edge endpoint %s does not resolve", e.Ref)
	}
	return fmt.Sprintf("edge endpoint %s has no geometry", e.Ref)
}

// Curve is a cubic Bézier from Start to End whose control points sit on the
// horizontal midpoint, giving a smooth C-shaped connector.
type Curve struct {
	Start, C1, C2, End Point
}

// NewCurve builds the connector between two anchors.
func NewCurve(start, end Point) Curve {
	mid := (start.X + end.X) / 2
	return Curve{
		Start: start,
		C1:    Point{mid, start.Y},
		C2:    Point{mid, end.Y},
		End:   end,
	}
}

// Path renders the curve as SVG path data.
func (c Curve) Path() string {
	var b strings.Builder
	b.WriteString("M")
	writePoint(&b, c.Start)
	b.WriteString(" C")
	writePoint(&b, c.C1)
	b.WriteString(" ")
	writePoint(&b, c.C2)
	b.WriteString(" ")
	writePoint(&b, c.End)
	return b.String()
}

func writePoint(b *strings.Builder, p Point) {
	b.WriteString(strconv.FormatFloat(p.X, 'f', -1, 64))
	b.WriteByte(',')
	b.WriteString(strconv.FormatFloat(p.Y, 'f', -1, 64))
}

// At evaluates the curve at t in [0,1].
func (c Curve) At(t float64) Point {
	u := 1 - t
	a := u * u * u
	b := 3 * u * u * t
	d := 3 * u * t * t
	e := t * t * t
	return Point{
		X: a*c.Start.X + b*c.C1.X + d*c.C2.X + e*c.End.X,
		Y: a*c.Start.Y + b*c.C1.Y + d*c.C2.Y + e*c.End.Y,
	}
}

// Sample returns n+1 evenly spaced points along the curve, endpoints
// included.
func (c Curve) Sample(n int) []Point {
	if n < 1 {
		n = 1
	}
	out := make([]Point, n+1)
	for i := 0; i <= n; i++ {
		out[i] = c.At(float64(i) / float64(n))
	}
	return out
}

// ArrowHeading is the direction of travel at End, in radians, for orienting
// the arrowhead.
func (c Curve) ArrowHeading() float64 {
	d := c.End.Sub(c.C2)
	if d.X == 0 && d.Y == 0 {
		d = c.End.Sub(c.Start)
	}
	return math.Atan2(d.Y, d.X)
}

// EdgeCurve pairs an edge with its on-screen connector.
type EdgeCurve struct {
	Edge  structure.Edge
	Curve Curve
}

// ResolveEdges places every edge whose endpoints both resolve to a struct
// with published geometry. The others are reported as misses and left out of
// this pass; the model's edge list is never changed.
func ResolveEdges(m *structure.Model, reg *Registry, tr Transform) ([]EdgeCurve, []*GeometryMiss) {
	if m == nil {
		return nil, nil
	}
	curves := make([]EdgeCurve, 0, len(m.Edges))
	var misses []*GeometryMiss
	for _, edge := range m.Edges {
		start, miss := anchor(m, reg, tr, edge, edge.From)
		if miss != nil {
			misses = append(misses, miss)
			continue
		}
		end, miss := anchor(m, reg, tr, edge, edge.To)
		if miss != nil {
			misses = append(misses, miss)
			continue
		}
		curves = append(curves, EdgeCurve{Edge: edge, Curve: NewCurve(start, end)})
	}
	return curves, misses
}

func anchor(m *structure.Model, reg *Registry, tr Transform, edge structure.Edge, ref structure.NodeRef) (Point, *GeometryMiss) {
	if ref.Struct == "" {
		return Point{}, &GeometryMiss{Edge: edge, Ref: ref, Dangling: true}
	}
	if _, ok := m.Lookup(ref); !ok {
		return Point{}, &GeometryMiss{Edge: edge, Ref: ref, Dangling: true}
	}
	if reg == nil {
		return Point{}, &GeometryMiss{Edge: edge, Ref: ref}
	}
	g, ok := reg.Lookup(ref)
	if !ok {
		return Point{}, &GeometryMiss{Edge: edge, Ref: ref}
	}
	return tr.Apply(g.Center()), nil
}
