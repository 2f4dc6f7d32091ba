// Package batch turns a scene graph into an ordered draw list and packs
// geometry into interleaved vertex buffers. It does not touch the GPU.
package batch

import (
	"sort"

	"github.com/Faultbox/decalview/internal/scene"
	"github.com/Faultbox/decalview/pkg/math"
)

// FloatsPerVertex is the interleaved layout: position, normal, uv.
const FloatsPerVertex = 3 + 3 + 2

// Vertex attribute offsets in bytes.
const (
	PositionOffset = 0
	NormalOffset   = 3 * 4
	UVOffset       = 6 * 4
	Stride         = FloatsPerVertex * 4
)

// Pack interleaves a geometry's attributes. Missing normals default to +Y
// and missing UVs to zero. The index slice is nil for non-indexed geometry.
func Pack(g *scene.Geometry) (vertices []float32, indices []uint32) {
	vertices = make([]float32, 0, len(g.Positions)*FloatsPerVertex)
	for i, p := range g.Positions {
		n := math.Vec3{X: 0, Y: 1, Z: 0}
		if i < len(g.Normals) {
			n = g.Normals[i]
		}
		var uv math.Vec2
		if i < len(g.UVs) {
			uv = g.UVs[i]
		}
		vertices = append(vertices, p.X, p.Y, p.Z, n.X, n.Y, n.Z, uv.X, uv.Y)
	}
	if g.Indices != nil {
		indices = g.Indices
	}
	return vertices, indices
}

// Item is one mesh to draw.
type Item struct {
	Mesh  *scene.Mesh
	World math.Mat4
	// Distance from the eye to the mesh's world bounds center.
	Distance float32
}

// List holds opaque items in scene order and transparent items back to
// front.
type List struct {
	Opaque      []Item
	Transparent []Item
}

// Len returns the total number of items.
func (l List) Len() int {
	return len(l.Opaque) + len(l.Transparent)
}

// Collect gathers the drawable meshes under root followed by the overlays.
// Meshes with no geometry, no material, or disposed resources are skipped.
func Collect(root *scene.Node, overlays []*scene.Mesh, eye math.Vec3) List {
	var l List
	add := func(m *scene.Mesh) {
		if !Drawable(m) {
			return
		}
		world := m.WorldMatrix()
		item := Item{
			Mesh:     m,
			World:    world,
			Distance: m.Geometry.Bounds().Transform(world).Center().Distance(eye),
		}
		if IsTransparent(m.Material) {
			l.Transparent = append(l.Transparent, item)
		} else {
			l.Opaque = append(l.Opaque, item)
		}
	}

	if root != nil {
		for _, m := range root.Meshes() {
			add(m)
		}
	}
	for _, m := range overlays {
		add(m)
	}

	sort.SliceStable(l.Transparent, func(i, j int) bool {
		return l.Transparent[i].Distance > l.Transparent[j].Distance
	})
	return l
}

// Drawable reports whether a mesh has live geometry and material.
func Drawable(m *scene.Mesh) bool {
	if m == nil || m.Geometry == nil || m.Material == nil {
		return false
	}
	if m.Geometry.Disposed() || m.Material.Disposed() {
		return false
	}
	return len(m.Geometry.Positions) > 0
}

// IsTransparent reports whether a material needs blending.
func IsTransparent(mat scene.Material) bool {
	b, ok := mat.(*scene.BasicMaterial)
	return ok && (b.Transparent || b.Opacity < 1)
}
