package session

import (
	"fmt"
	"strings"

	"github.com/Faultbox/decalview/internal/scene"
)

// SurfacePolicy chooses the mesh a decal is projected onto.
type SurfacePolicy interface {
	Name() string
	// Select returns the chosen mesh, or nil when root has none.
	Select(root *scene.Node) *scene.Mesh
}

// Policy names accepted by ParsePolicy.
const (
	PolicyFirstMesh   = "first-mesh"
	PolicyLargestArea = "largest-area"
)

// FirstMesh picks the first mesh in depth-first pre-order.
type FirstMesh struct{}

// Name returns "first-mesh".
func (FirstMesh) Name() string { return PolicyFirstMesh }

// Select returns the first mesh found.
func (FirstMesh) Select(root *scene.Node) *scene.Mesh {
	var found *scene.Mesh
	root.Traverse(func(n *scene.Node) {
		if found == nil && n.Mesh() != nil {
			found = n.Mesh()
		}
	})
	return found
}

// LargestArea picks the mesh with the greatest world-space surface area.
// Ties go to the earlier mesh in traversal order.
type LargestArea struct{}

// Name returns "largest-area".
func (LargestArea) Name() string { return PolicyLargestArea }

// Select returns the mesh with the largest area.
func (LargestArea) Select(root *scene.Node) *scene.Mesh {
	var (
		best     *scene.Mesh
		bestArea float32 = -1
	)
	for _, m := range root.Meshes() {
		if a := m.SurfaceArea(); a > bestArea {
			best, bestArea = m, a
		}
	}
	return best
}

// ParsePolicy returns the policy with the given name. An empty name selects
// first-mesh.
func ParsePolicy(name string) (SurfacePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", PolicyFirstMesh:
		return FirstMesh{}, nil
	case PolicyLargestArea:
		return LargestArea{}, nil
	default:
		return nil, fmt.Errorf("unknown surface policy %q (want %s or %s)", name, PolicyFirstMesh, PolicyLargestArea)
	}
}
