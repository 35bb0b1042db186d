package layout

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexcodex/godiagram/structure"
)

func TestDragPansByPointerDelta(t *testing.T) {
	v := NewViewport(0)
	v.PointerDown(Point{100, 100})
	require.True(t, v.Dragging())
	v.PointerMove(Point{150, 130})
	require.Equal(t, Point{50, 30}, v.Pan())

	v.PointerUp()
	require.False(t, v.Dragging())
	require.Equal(t, Point{50, 30}, v.Pan())

	v.PointerMove(Point{500, 500})
	require.Equal(t, Point{50, 30}, v.Pan(), "moves after release are ignored")

	// A second gesture continues from the current offset.
	v.PointerDown(Point{10, 10})
	v.PointerMove(Point{0, 0})
	v.PointerLeave()
	require.Equal(t, Point{40, 20}, v.Pan())
	require.False(t, v.Dragging())
}

func TestTransitionWindowIsDebounced(t *testing.T) {
	v := NewViewport(0)
	require.Equal(t, DefaultTransitionWindow, v.Window())

	first := structure.Placeholder()
	gen1, changed := v.Observe(first)
	require.True(t, changed)
	require.True(t, v.Transitioning())

	_, changed = v.Observe(first)
	require.False(t, changed, "same model pointer is not a change")

	gen2, changed := v.Observe(structure.Placeholder())
	require.True(t, changed)
	require.False(t, v.Expire(gen1), "stale timer must not clear the flag")
	require.True(t, v.Transitioning())
	require.True(t, v.Expire(gen2))
	require.False(t, v.Transitioning())
}

func edgeModel() *structure.Model {
	return (&structure.Model{
		Packages: []*structure.Package{{
			Name: "p",
			Files: []*structure.File{{
				Name:    "f",
				Structs: []*structure.Struct{{Name: "A"}, {Name: "B"}, {Name: "C"}},
			}},
		}},
		Edges: []structure.Edge{
			{From: structure.NodeRef{Package: "p", File: "f", Struct: "A"}, To: structure.NodeRef{Package: "p", File: "f", Struct: "B"}},
			{From: structure.NodeRef{Package: "p", File: "f", Struct: "A"}, To: structure.NodeRef{Package: "p", File: "f", Struct: "Gone"}},
			{From: structure.NodeRef{Package: "p", File: "f", Struct: "C"}, To: structure.NodeRef{Package: "p", File: "f", Struct: "B"}},
		},
	}).Normalize()
}

func TestResolveEdgesOmitsMisses(t *testing.T) {
	m := edgeModel()
	reg := NewRegistry()
	reg.Publish(structure.NodeRef{Package: "p", File: "f", Struct: "A"}, Geometry{Bounds: RectAt(0, 0, 20, 10)})
	reg.Publish(structure.NodeRef{Package: "p", File: "f", Struct: "B"}, Geometry{Bounds: RectAt(100, 100, 20, 10)})

	curves, misses := ResolveEdges(m, reg, Transform{Pan: Point{5, 5}, Scale: 1})
	require.Len(t, curves, 1)
	require.Equal(t, Point{15, 10}, curves[0].Curve.Start)
	require.Equal(t, Point{115, 110}, curves[0].Curve.End)
	require.Len(t, misses, 2)
	require.Len(t, m.Edges, 3)

	var dangling, unmeasured int
	for _, miss := range misses {
		var gm *GeometryMiss
		require.True(t, errors.As(error(miss), &gm))
		if gm.Dangling {
			dangling++
		} else {
			unmeasured++
		}
	}
	assert.Equal(t, 1, dangling)
	assert.Equal(t, 1, unmeasured)

	// Once C is measured the third edge self-heals.
	reg.Publish(structure.NodeRef{Package: "p", File: "f", Struct: "C"}, Geometry{Bounds: RectAt(0, 50, 20, 10)})
	curves, _ = ResolveEdges(m, reg, Identity)
	require.Len(t, curves, 2)
}

func TestMinimapScaleAppliesBeforePan(t *testing.T) {
	tr := Transform{Pan: Point{10, 0}, Scale: MinimapScale}
	got := tr.Apply(Point{100, 50})
	assert.InDelta(t, 40, got.X, 1e-9)
	assert.InDelta(t, 15, got.Y, 1e-9)
}

func TestCurveShape(t *testing.T) {
	c := NewCurve(Point{0, 0}, Point{100, 60})
	require.Equal(t, "M0,0 C50,0 50,60 100,60", c.Path())

	samples := c.Sample(4)
	require.Len(t, samples, 5)
	require.Equal(t, c.Start, samples[0])
	require.Equal(t, c.End, samples[4])
	assert.InDelta(t, 50, samples[2].X, 1e-9)
	assert.InDelta(t, 30, samples[2].Y, 1e-9)

	assert.InDelta(t, 0, c.ArrowHeading(), 1e-9, "arrives travelling right")
	vertical := NewCurve(Point{10, 0}, Point{10, 40})
	assert.InDelta(t, math.Pi/2, vertical.ArrowHeading(), 1e-9)
}

func TestRegistryPrune(t *testing.T) {
	m := edgeModel()
	reg := NewRegistry()
	reg.Publish(structure.NodeRef{Package: "p", File: "f", Struct: "A"}, Geometry{})
	reg.Publish(structure.NodeRef{Package: "p", File: "f", Struct: "Old"}, Geometry{})
	require.Equal(t, 1, reg.Prune(m))
	require.Equal(t, 1, reg.Len())
	_, ok := reg.Lookup(structure.NodeRef{Package: "p", File: "f", Struct: "A"})
	require.True(t, ok)
}
