// Package picking provides ray casting and mesh picking utilities.
package picking

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/decalview/internal/scene"
	"github.com/Faultbox/decalview/pkg/math"
)

// Ray represents a ray in 3D space with origin and direction.
type Ray struct {
	Origin    math.Vec3
	Direction math.Vec3 // Normalized direction
}

// ScreenToRay converts screen coordinates to a world-space ray.
// screenX, screenY are pixel coordinates from the top-left corner,
// viewportW/H are viewport dimensions.
// invViewProj is the inverse of the view-projection matrix.
func ScreenToRay(screenX, screenY, viewportW, viewportH float32, invViewProj math.Mat4) Ray {
	// Convert screen coords to normalized device coords (-1 to 1)
	ndcX := 2*screenX/viewportW - 1
	ndcY := 1 - 2*screenY/viewportH // Flip Y

	near := invViewProj.TransformVec3(math.V3(ndcX, ndcY, -1))
	far := invViewProj.TransformVec3(math.V3(ndcX, ndcY, 1))

	return Ray{Origin: near, Direction: far.Sub(near).Normalize()}
}

// At returns the point at distance t along the ray.
func (r Ray) At(t float32) math.Vec3 {
	return r.Origin.Add(r.Direction.Scale(t))
}

// IntersectBox tests ray intersection with an axis-aligned bounding box.
// Returns the distance to intersection (t) and whether intersection occurred.
// If the ray starts inside the box, returns the exit distance.
func (r Ray) IntersectBox(box math.Box3) (t float32, hit bool) {
	if box.IsEmpty() {
		return 0, false
	}
	tmin := float32(-math32.MaxFloat32)
	tmax := float32(math32.MaxFloat32)

	origin := r.Origin.Array()
	dir := r.Direction.Array()
	lo := box.Min.Array()
	hi := box.Max.Array()

	for axis := 0; axis < 3; axis++ {
		if dir[axis] == 0 {
			if origin[axis] < lo[axis] || origin[axis] > hi[axis] {
				return 0, false
			}
			continue
		}
		t1 := (lo[axis] - origin[axis]) / dir[axis]
		t2 := (hi[axis] - origin[axis]) / dir[axis]
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tmin = max(tmin, t1)
		tmax = min(tmax, t2)
	}

	if tmax < tmin || tmax < 0 {
		return 0, false
	}
	if tmin < 0 {
		return tmax, true
	}
	return tmin, true
}

// triangleEpsilon rejects rays nearly parallel to a triangle.
const triangleEpsilon = 1e-7

// IntersectTriangle tests the ray against triangle abc from both sides
// (Moller-Trumbore).
func (r Ray) IntersectTriangle(a, b, c math.Vec3) (t float32, hit bool) {
	edge1 := b.Sub(a)
	edge2 := c.Sub(a)
	p := r.Direction.Cross(edge2)
	det := edge1.Dot(p)
	if math32.Abs(det) < triangleEpsilon {
		return 0, false
	}
	inv := 1 / det

	s := r.Origin.Sub(a)
	u := s.Dot(p) * inv
	if u < 0 || u > 1 {
		return 0, false
	}
	q := s.Cross(edge1)
	v := r.Direction.Dot(q) * inv
	if v < 0 || u+v > 1 {
		return 0, false
	}
	t = edge2.Dot(q) * inv
	if t < 0 {
		return 0, false
	}
	return t, true
}

// Hit describes the closest mesh under a ray.
type Hit struct {
	Mesh     *scene.Mesh
	Distance float32
	Point    math.Vec3
}

// Pick returns the nearest mesh in root's subtree hit by r. Meshes whose
// world bounds the ray misses are skipped without testing triangles.
func Pick(root *scene.Node, r Ray) (Hit, bool) {
	var best Hit
	found := false
	if root == nil {
		return best, false
	}
	root.Traverse(func(n *scene.Node) {
		m := n.Mesh()
		if m == nil || m.Geometry == nil || m.Geometry.Disposed() {
			return
		}
		world := n.WorldMatrix()
		if _, ok := r.IntersectBox(m.Geometry.Bounds().Transform(world)); !ok {
			return
		}
		g := m.Geometry
		g.Triangles(func(ia, ib, ic int) {
			t, ok := r.IntersectTriangle(
				world.TransformVec3(g.Positions[ia]),
				world.TransformVec3(g.Positions[ib]),
				world.TransformVec3(g.Positions[ic]))
			if ok && (!found || t < best.Distance) {
				best = Hit{Mesh: m, Distance: t}
				found = true
			}
		})
	})
	if found {
		best.Point = r.At(best.Distance)
	}
	return best, found
}
