// Package debug provides debug visualization utilities.
package debug

import "github.com/Faultbox/decalview/pkg/math"

// LineVertex is one endpoint of a helper line. Colors are display values and
// are written to the target unchanged.
type LineVertex struct {
	X, Y, Z float32 // Position
	R, G, B float32 // Color
}

// FloatsPerLineVertex is the packed size of a LineVertex.
const FloatsPerLineVertex = 6

// BoxVertexCount is the number of vertices for a box wireframe (12 edges × 2).
const BoxVertexCount = 24

// BoxColor is the default wireframe color for bounds.
var BoxColor = [3]float32{1, 0.8, 0}

// BoxLines returns the 12 edges of a box as line vertex pairs, or nil for an
// empty box.
func BoxLines(b math.Box3, color [3]float32) []LineVertex {
	if b.IsEmpty() {
		return nil
	}
	lo, hi := b.Min, b.Max
	corner := func(x, y, z bool) LineVertex {
		v := LineVertex{X: lo.X, Y: lo.Y, Z: lo.Z, R: color[0], G: color[1], B: color[2]}
		if x {
			v.X = hi.X
		}
		if y {
			v.Y = hi.Y
		}
		if z {
			v.Z = hi.Z
		}
		return v
	}

	lines := make([]LineVertex, 0, BoxVertexCount)
	for _, y := range []bool{false, true} {
		// Bottom then top face
		lines = append(lines,
			corner(false, y, false), corner(true, y, false),
			corner(true, y, false), corner(true, y, true),
			corner(true, y, true), corner(false, y, true),
			corner(false, y, true), corner(false, y, false),
		)
	}
	for _, x := range []bool{false, true} {
		for _, z := range []bool{false, true} {
			lines = append(lines, corner(x, false, z), corner(x, true, z))
		}
	}
	return lines
}

// Pack flattens vertices to [x, y, z, r, g, b] per vertex.
func Pack(vertices []LineVertex) []float32 {
	out := make([]float32, 0, len(vertices)*FloatsPerLineVertex)
	for _, v := range vertices {
		out = append(out, v.X, v.Y, v.Z, v.R, v.G, v.B)
	}
	return out
}
