package scene

import (
	"github.com/Faultbox/decalview/pkg/math"
)

// Mesh pairs a geometry with a material. A mesh attached to a Node takes the
// node's world transform; a detached mesh is drawn in world space.
type Mesh struct {
	Name     string
	Geometry *Geometry
	Material Material

	node *Node
}

// NewMesh creates a detached mesh.
func NewMesh(name string, geometry *Geometry, material Material) *Mesh {
	return &Mesh{Name: name, Geometry: geometry, Material: material}
}

// Node returns the node the mesh is attached to, or nil.
func (m *Mesh) Node() *Node {
	return m.node
}

// WorldMatrix returns the owning node's world matrix, or identity.
func (m *Mesh) WorldMatrix() math.Mat4 {
	if m.node == nil {
		return math.Identity()
	}
	return m.node.WorldMatrix()
}

// SetMaterial swaps the material and disposes the previous one.
func (m *Mesh) SetMaterial(mat Material) {
	if m.Material != nil && m.Material != mat {
		m.Material.Dispose()
	}
	m.Material = mat
}

// SurfaceArea returns the world-space area of all triangles.
func (m *Mesh) SurfaceArea() float32 {
	if m.Geometry == nil {
		return 0
	}
	world := m.WorldMatrix()
	var area float32
	m.Geometry.Triangles(func(a, b, c int) {
		pa := world.TransformVec3(m.Geometry.Positions[a])
		pb := world.TransformVec3(m.Geometry.Positions[b])
		pc := world.TransformVec3(m.Geometry.Positions[c])
		area += pb.Sub(pa).Cross(pc.Sub(pa)).Length() / 2
	})
	return area
}

// Dispose releases the geometry and material.
func (m *Mesh) Dispose() {
	if m.Geometry != nil {
		m.Geometry.Dispose()
	}
	if m.Material != nil {
		m.Material.Dispose()
	}
}
