package scene

import (
	"github.com/Faultbox/decalview/pkg/math"
)

// ComputeBounds returns the world-space bounding box of every vertex in the
// subtree rooted at root, including root's own transform.
func ComputeBounds(root *Node) math.Box3 {
	box := math.EmptyBox3()
	root.Traverse(func(n *Node) {
		m := n.Mesh()
		if m == nil || m.Geometry == nil {
			return
		}
		world := n.WorldMatrix()
		for _, p := range m.Geometry.Positions {
			box = box.ExpandByPoint(world.TransformVec3(p))
		}
	})
	return box
}
