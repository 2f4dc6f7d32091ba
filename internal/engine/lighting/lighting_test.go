package lighting

import (
	"testing"

	"github.com/chewxy/math32"

	"github.com/Faultbox/decalview/internal/scene"
	"github.com/Faultbox/decalview/pkg/math"
)

func TestDefaultRig(t *testing.T) {
	r := DefaultRig()
	if r.Ambient.Intensity != 3 {
		t.Errorf("ambient intensity = %v, want 3", r.Ambient.Intensity)
	}
	if len(r.Directional) != 2 {
		t.Fatalf("directional lights = %d, want 2", len(r.Directional))
	}
	if r.Directional[0].Intensity != 1.5 || r.Directional[1].Intensity != 1 {
		t.Errorf("intensities = %v, %v", r.Directional[0].Intensity, r.Directional[1].Intensity)
	}
}

func TestDirection(t *testing.T) {
	tests := []struct {
		name string
		pos  math.Vec3
		want math.Vec3
	}{
		{"above", math.V3(0, 4, 0), math.V3(0, 1, 0)},
		{"diagonal", math.V3(5, 10, 5), math.V3(5, 10, 5).Normalize()},
		{"origin", math.Vec3{}, math.V3(0, 1, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Directional{Position: tt.pos}.Direction()
			if got.Sub(tt.want).Length() > 1e-5 {
				t.Errorf("Direction() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUniforms(t *testing.T) {
	r := Rig{
		Ambient: Ambient{Color: scene.Color{R: 1, G: 0.5, B: 0}, Intensity: 2},
	}
	for i := 0; i < MaxDirectional+2; i++ {
		r.Directional = append(r.Directional, Directional{
			Color:     scene.White,
			Intensity: float32(i + 1),
			Position:  math.V3(0, 1, 0),
		})
	}

	u := r.Uniforms()
	if u.Ambient != [3]float32{2, 1, 0} {
		t.Errorf("ambient = %v", u.Ambient)
	}
	if u.Count != MaxDirectional {
		t.Errorf("count = %d, want %d", u.Count, MaxDirectional)
	}
	if u.Colors[3] != 2 || u.Directions[4] != 1 {
		t.Errorf("second light = color %v dir %v", u.Colors[3:6], u.Directions[3:6])
	}
	if math32.Abs(u.Directions[1]-1) > 1e-6 {
		t.Errorf("first direction = %v", u.Directions[0:3])
	}
}
