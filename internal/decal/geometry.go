package decal

import (
	"errors"

	"github.com/Faultbox/decalview/internal/scene"
	"github.com/Faultbox/decalview/pkg/math"
)

// ErrEmptyPatch is returned when no part of the surface lies inside the
// projector box.
var ErrEmptyPatch = errors.New("decal does not intersect the surface")

// ErrNoSurface is returned when the target mesh has no geometry.
var ErrNoSurface = errors.New("decal target has no geometry")

// minArea drops slivers produced by clipping exactly along an edge.
const minArea = 1e-10

type vertex struct {
	pos    math.Vec3
	normal math.Vec3
}

func (v vertex) lerp(other vertex, t float32) vertex {
	return vertex{
		pos:    v.pos.Lerp(other.pos, t),
		normal: v.normal.Lerp(other.normal, t),
	}
}

// clipPlanes are the box faces as (axis, sign) pairs.
var clipPlanes = [6]math.Vec3{
	{X: 1}, {X: -1},
	{Y: 1}, {Y: -1},
	{Z: 1}, {Z: -1},
}

// Build projects the placement's box onto target and returns the clipped
// patch in world space. The patch is a non-indexed triangle list with
// normals and UVs; UVs span [0, 1] across the box's X and Y extent.
func Build(target *scene.Mesh, p Placement) (*scene.Geometry, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if target == nil || target.Geometry == nil || len(target.Geometry.Positions) == 0 {
		return nil, ErrNoSurface
	}

	projector := p.Matrix()
	toDecal := projector.Inverse().Mul(target.WorldMatrix())
	world := target.WorldMatrix()
	src := target.Geometry
	half := p.Size.Scale(0.5)

	out := &scene.Geometry{}
	poly := make([]vertex, 0, 9)
	scratch := make([]vertex, 0, 9)

	src.Triangles(func(a, b, c int) {
		poly = poly[:0]
		face := faceNormal(src, a, b, c)
		for _, i := range [3]int{a, b, c} {
			n := face
			if len(src.Normals) == len(src.Positions) {
				n = src.Normals[i]
			}
			poly = append(poly, vertex{
				pos:    toDecal.TransformVec3(src.Positions[i]),
				normal: world.TransformNormal(n),
			})
		}

		for _, plane := range clipPlanes {
			limit := half.Mul(plane).Abs().MaxComponent()
			poly, scratch = clip(poly, scratch[:0], plane, limit), poly
			if len(poly) < 3 {
				return
			}
		}

		// Fan triangulation keeps the source winding.
		for i := 1; i+1 < len(poly); i++ {
			emit(out, projector, p.Size, poly[0], poly[i], poly[i+1])
		}
	})

	if len(out.Positions) == 0 {
		return nil, ErrEmptyPatch
	}
	return out, nil
}

// clip keeps the part of a convex polygon where dot(pos, plane) <= limit.
func clip(in, out []vertex, plane math.Vec3, limit float32) []vertex {
	for i := range in {
		cur := in[i]
		next := in[(i+1)%len(in)]
		dc := cur.pos.Dot(plane) - limit
		dn := next.pos.Dot(plane) - limit

		if dc <= 0 {
			out = append(out, cur)
		}
		if (dc <= 0) != (dn <= 0) {
			out = append(out, cur.lerp(next, dc/(dc-dn)))
		}
	}
	return out
}

func emit(g *scene.Geometry, projector math.Mat4, size math.Vec3, tri ...vertex) {
	a, b, c := tri[0].pos, tri[1].pos, tri[2].pos
	if b.Sub(a).Cross(c.Sub(a)).Length() < minArea {
		return
	}
	for _, v := range tri {
		g.UVs = append(g.UVs, math.Vec2{
			X: 0.5 + v.pos.X/size.X,
			Y: 0.5 + v.pos.Y/size.Y,
		})
		g.Positions = append(g.Positions, projector.TransformVec3(v.pos))
		g.Normals = append(g.Normals, v.normal.Normalize())
	}
}

func faceNormal(g *scene.Geometry, a, b, c int) math.Vec3 {
	pa, pb, pc := g.Positions[a], g.Positions[b], g.Positions[c]
	return pb.Sub(pa).Cross(pc.Sub(pa)).Normalize()
}
