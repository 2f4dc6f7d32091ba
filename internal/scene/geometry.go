package scene

import (
	"sync/atomic"

	"github.com/Faultbox/decalview/pkg/math"
)

// resource is embedded by everything that owns GPU-side state.
type resource struct {
	disposed atomic.Bool
}

// Dispose marks the resource released. It is safe to call more than once.
func (r *resource) Dispose() {
	r.disposed.Store(true)
}

// Disposed reports whether Dispose has been called.
func (r *resource) Disposed() bool {
	return r.disposed.Load()
}

// Geometry holds vertex attributes and an optional index buffer.
// Without indices, every three consecutive positions form a triangle.
type Geometry struct {
	resource

	Positions []math.Vec3
	Normals   []math.Vec3
	UVs       []math.Vec2
	Indices   []uint32
}

// TriangleCount returns the number of triangles.
func (g *Geometry) TriangleCount() int {
	if g.Indices != nil {
		return len(g.Indices) / 3
	}
	return len(g.Positions) / 3
}

// Triangles calls fn with the vertex indices of each triangle.
func (g *Geometry) Triangles(fn func(a, b, c int)) {
	if g.Indices != nil {
		for i := 0; i+2 < len(g.Indices); i += 3 {
			fn(int(g.Indices[i]), int(g.Indices[i+1]), int(g.Indices[i+2]))
		}
		return
	}
	for i := 0; i+2 < len(g.Positions); i += 3 {
		fn(i, i+1, i+2)
	}
}

// Bounds returns the local-space bounding box.
func (g *Geometry) Bounds() math.Box3 {
	b := math.EmptyBox3()
	for _, p := range g.Positions {
		b = b.ExpandByPoint(p)
	}
	return b
}

// ComputeNormals fills Normals with area-weighted vertex normals, so vertices
// shared between triangles get a smoothed normal.
func (g *Geometry) ComputeNormals() {
	normals := make([]math.Vec3, len(g.Positions))
	g.Triangles(func(a, b, c int) {
		pa, pb, pc := g.Positions[a], g.Positions[b], g.Positions[c]
		// The cross product length is twice the area, which is the weight.
		n := pb.Sub(pa).Cross(pc.Sub(pa))
		normals[a] = normals[a].Add(n)
		normals[b] = normals[b].Add(n)
		normals[c] = normals[c].Add(n)
	})
	for i := range normals {
		n := normals[i].Normalize()
		if n == (math.Vec3{}) {
			n = math.Vec3{X: 0, Y: 1, Z: 0}
		}
		normals[i] = n
	}
	g.Normals = normals
}
