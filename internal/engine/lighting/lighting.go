// Package lighting describes the light rig shared by the viewers.
package lighting

import (
	"github.com/Faultbox/decalview/internal/scene"
	"github.com/Faultbox/decalview/pkg/math"
)

// MaxDirectional is the number of directional lights the shaders accept.
const MaxDirectional = 4

// Ambient lights every surface evenly.
type Ambient struct {
	Color     scene.Color
	Intensity float32
}

// Directional shines from Position toward the origin.
type Directional struct {
	Color     scene.Color
	Intensity float32
	Position  math.Vec3
}

// Direction returns the unit vector from a surface toward the light.
func (d Directional) Direction() math.Vec3 {
	dir := d.Position.Normalize()
	if dir == (math.Vec3{}) {
		return math.Vec3{X: 0, Y: 1, Z: 0}
	}
	return dir
}

// Rig is a complete light setup.
type Rig struct {
	Ambient     Ambient
	Directional []Directional
}

// DefaultRig returns a soft white ambient light with a key and a fill light.
func DefaultRig() Rig {
	return Rig{
		Ambient: Ambient{Color: scene.White, Intensity: 3},
		Directional: []Directional{
			{Color: scene.White, Intensity: 1.5, Position: math.V3(5, 10, 5)},
			{Color: scene.White, Intensity: 1, Position: math.V3(-5, 10, -5)},
		},
	}
}

// Uniforms is a rig flattened for upload.
type Uniforms struct {
	Ambient    [3]float32
	Count      int32
	Directions [MaxDirectional * 3]float32
	Colors     [MaxDirectional * 3]float32
}

// Uniforms premultiplies colors by intensity. Lights past MaxDirectional are
// dropped.
func (r Rig) Uniforms() Uniforms {
	var u Uniforms
	a := r.Ambient.Color.MultiplyScalar(r.Ambient.Intensity)
	u.Ambient = [3]float32{a.R, a.G, a.B}

	for i, d := range r.Directional {
		if i == MaxDirectional {
			break
		}
		dir := d.Direction()
		c := d.Color.MultiplyScalar(d.Intensity)
		copy(u.Directions[i*3:], []float32{dir.X, dir.Y, dir.Z})
		copy(u.Colors[i*3:], []float32{c.R, c.G, c.B})
		u.Count++
	}
	return u
}
