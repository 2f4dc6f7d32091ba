// Package scene provides a GPU-free scene graph: nodes with transforms,
// meshes, geometry buffers and materials. Graphics resources are released by
// marking scene objects disposed; the renderer frees the matching GPU objects
// on its own thread.
package scene

import (
	"github.com/Faultbox/decalview/pkg/math"
)

// Node is a transform in the scene hierarchy with an optional mesh.
type Node struct {
	Name     string
	Position math.Vec3
	Rotation math.Quat
	Scale    math.Vec3

	mesh     *Mesh
	parent   *Node
	children []*Node
}

// NewNode creates a node with an identity transform.
func NewNode(name string) *Node {
	return &Node{
		Name:     name,
		Rotation: math.QuatIdentity(),
		Scale:    math.Vec3{X: 1, Y: 1, Z: 1},
	}
}

// Add attaches child to n, detaching it from any previous parent.
func (n *Node) Add(child *Node) {
	if child == nil || child == n {
		return
	}
	if child.parent != nil {
		child.parent.Remove(child)
	}
	child.parent = n
	n.children = append(n.children, child)
}

// Remove detaches child from n. It reports whether child was found.
func (n *Node) Remove(child *Node) bool {
	for i, c := range n.children {
		if c == child {
			n.children = append(n.children[:i], n.children[i+1:]...)
			child.parent = nil
			return true
		}
	}
	return false
}

// Parent returns the parent node, or nil for a root.
func (n *Node) Parent() *Node {
	return n.parent
}

// Children returns the direct children. The slice must not be modified.
func (n *Node) Children() []*Node {
	return n.children
}

// Mesh returns the mesh attached to n, if any.
func (n *Node) Mesh() *Mesh {
	return n.mesh
}

// SetMesh attaches m to n, replacing any previous mesh.
func (n *Node) SetMesh(m *Mesh) {
	if n.mesh != nil {
		n.mesh.node = nil
	}
	n.mesh = m
	if m != nil {
		m.node = n
	}
}

// LocalMatrix returns translation * rotation * scale.
func (n *Node) LocalMatrix() math.Mat4 {
	return math.Compose(n.Position, n.Rotation, n.Scale)
}

// WorldMatrix returns the node transform including all ancestors.
func (n *Node) WorldMatrix() math.Mat4 {
	m := n.LocalMatrix()
	for p := n.parent; p != nil; p = p.parent {
		m = p.LocalMatrix().Mul(m)
	}
	return m
}

// Traverse visits n and its descendants depth-first, parents before children,
// children in insertion order.
func (n *Node) Traverse(fn func(*Node)) {
	fn(n)
	for _, c := range n.children {
		c.Traverse(fn)
	}
}

// Meshes returns every mesh in the subtree in traversal order.
func (n *Node) Meshes() []*Mesh {
	var meshes []*Mesh
	n.Traverse(func(node *Node) {
		if node.mesh != nil {
			meshes = append(meshes, node.mesh)
		}
	})
	return meshes
}

// Dispose releases the geometry and material of every mesh in the subtree.
func (n *Node) Dispose() {
	for _, m := range n.Meshes() {
		m.Dispose()
	}
}
