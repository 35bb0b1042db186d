package layout

import (
	"sync"

	"github.com/lexcodex/godiagram/structure"
)

// Rect is an axis-aligned box in diagram units.
type Rect struct {
	Min, Max Point
}

// RectAt builds a rect from its top-left corner and size.
func RectAt(x, y, w, h float64) Rect {
	return Rect{Min: Point{x, y}, Max: Point{x + w, y + h}}
}

func (r Rect) Center() Point { return r.Min.Lerp(r.Max, 0.5) }

func (r Rect) Width() float64 { return r.Max.X - r.Min.X }

func (r Rect) Height() float64 { return r.Max.Y - r.Min.Y }

// Geometry is the measured placement of one rendered node.
type Geometry struct {
	Bounds Rect
}

func (g Geometry) Center() Point { return g.Bounds.Center() }

// Registry holds the geometry each renderer publishes for its nodes, keyed by
// NodeRef.Key. Renderers publish after measuring; the layout engine only reads.
type Registry struct {
	mu    sync.RWMutex
	nodes map[string]Geometry
}

func NewRegistry() *Registry {
	return &Registry{nodes: make(map[string]Geometry)}
}

// Key is the registry key of ref.
func Key(ref structure.NodeRef) string { return ref.Key() }

func (r *Registry) Publish(ref structure.NodeRef, g Geometry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nodes[Key(ref)] = g
}

func (r *Registry) Lookup(ref structure.NodeRef) (Geometry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.nodes[Key(ref)]
	return g, ok
}

// Forget drops the geometry published for ref.
func (r *Registry) Forget(ref structure.NodeRef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.nodes, Key(ref))
}

// Reset drops every published geometry.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nodes = make(map[string]Geometry)
}

// Len reports how many nodes have published geometry.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nodes)
}

// Prune forgets geometry for structs no longer present in m.
func (r *Registry) Prune(m *structure.Model) int {
	live := make(map[string]struct{})
	if m != nil {
		for _, pkg := range m.Packages {
			for _, file := range pkg.Files {
				for _, st := range file.Structs {
					live[Key(structure.NodeRef{Package: pkg.Name, File: file.Name, Struct: st.Name})] = struct{}{}
				}
			}
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for key := range r.nodes {
		if _, ok := live[key]; !ok {
			delete(r.nodes, key)
			removed++
		}
	}
	return removed
}
