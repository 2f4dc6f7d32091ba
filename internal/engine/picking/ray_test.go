package picking

import (
	"testing"

	"github.com/chewxy/math32"

	"github.com/Faultbox/decalview/internal/engine/camera"
	"github.com/Faultbox/decalview/internal/scene"
	"github.com/Faultbox/decalview/pkg/math"
)

const eps = 1e-3

func near(a, b math.Vec3) bool {
	return a.Sub(b).Length() < eps
}

// quad is a 2x2 square in the XY plane facing +Z.
func quad() *scene.Geometry {
	return &scene.Geometry{
		Positions: []math.Vec3{{X: -1, Y: -1}, {X: 1, Y: -1}, {X: 1, Y: 1}, {X: -1, Y: 1}},
		Indices:   []uint32{0, 1, 2, 0, 2, 3},
	}
}

func quadNode(name string, z float32) *scene.Node {
	n := scene.NewNode(name)
	n.Position = math.V3(0, 0, z)
	n.SetMesh(scene.NewMesh(name, quad(), scene.NewStandardMaterial()))
	return n
}

func TestScreenToRayCenter(t *testing.T) {
	cam := camera.NewOrbitCamera(math.V3(0, 5, 15), math.V3(0, 0, 0), math32.Pi/4, 0.1, 200)
	aspect := float32(800) / 600
	inv := cam.ProjectionMatrix(aspect).Mul(cam.ViewMatrix()).Inverse()

	r := ScreenToRay(400, 300, 800, 600, inv)

	want := math.V3(0, 0, 0).Sub(cam.Position()).Normalize()
	if !near(r.Direction, want) {
		t.Errorf("Direction = %v, want %v", r.Direction, want)
	}
	if d := r.Origin.Distance(cam.Position()); d > 0.2 {
		t.Errorf("Origin %v is %.3f from the eye", r.Origin, d)
	}
}

func TestIntersectBox(t *testing.T) {
	box := math.Box3{Min: math.V3(-1, -1, -1), Max: math.V3(1, 1, 1)}

	tests := []struct {
		name  string
		ray   Ray
		hit   bool
		wantT float32
	}{
		{"front", Ray{math.V3(0, 0, 5), math.V3(0, 0, -1)}, true, 4},
		{"inside", Ray{math.V3(0, 0, 0), math.V3(1, 0, 0)}, true, 1},
		{"behind", Ray{math.V3(0, 0, 5), math.V3(0, 0, 1)}, false, 0},
		{"miss", Ray{math.V3(3, 0, 5), math.V3(0, 0, -1)}, false, 0},
		{"empty box", Ray{math.V3(0, 0, 5), math.V3(0, 0, -1)}, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := box
			if tt.name == "empty box" {
				b = math.EmptyBox3()
			}
			got, hit := tt.ray.IntersectBox(b)
			if hit != tt.hit {
				t.Fatalf("hit = %v, want %v", hit, tt.hit)
			}
			if hit && math32.Abs(got-tt.wantT) > eps {
				t.Errorf("t = %v, want %v", got, tt.wantT)
			}
		})
	}
}

func TestIntersectTriangle(t *testing.T) {
	a, b, c := math.V3(-1, -1, 0), math.V3(1, -1, 0), math.V3(0, 1, 0)

	tests := []struct {
		name string
		ray  Ray
		hit  bool
	}{
		{"front face", Ray{math.V3(0, 0, 2), math.V3(0, 0, -1)}, true},
		{"back face", Ray{math.V3(0, 0, -2), math.V3(0, 0, 1)}, true},
		{"outside", Ray{math.V3(2, 0, 2), math.V3(0, 0, -1)}, false},
		{"parallel", Ray{math.V3(0, 0, 2), math.V3(1, 0, 0)}, false},
		{"behind origin", Ray{math.V3(0, 0, 2), math.V3(0, 0, 1)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, hit := tt.ray.IntersectTriangle(a, b, c)
			if hit != tt.hit {
				t.Fatalf("hit = %v, want %v", hit, tt.hit)
			}
			if hit && math32.Abs(got-2) > eps {
				t.Errorf("t = %v, want 2", got)
			}
		})
	}
}

func TestPickNearest(t *testing.T) {
	root := scene.NewNode("root")
	root.Add(quadNode("far", -5))
	root.Add(quadNode("near", 0))

	hit, ok := Pick(root, Ray{math.V3(0.5, 0.5, 10), math.V3(0, 0, -1)})
	if !ok {
		t.Fatal("expected a hit")
	}
	if hit.Mesh.Name != "near" {
		t.Errorf("Mesh = %q, want near", hit.Mesh.Name)
	}
	if math32.Abs(hit.Distance-10) > eps {
		t.Errorf("Distance = %v, want 10", hit.Distance)
	}
	if !near(hit.Point, math.V3(0.5, 0.5, 0)) {
		t.Errorf("Point = %v", hit.Point)
	}
}

func TestPickSkipsDisposed(t *testing.T) {
	root := scene.NewNode("root")
	front := quadNode("near", 0)
	root.Add(front)
	root.Add(quadNode("far", -5))
	front.Mesh().Geometry.Dispose()

	hit, ok := Pick(root, Ray{math.V3(0, 0, 10), math.V3(0, 0, -1)})
	if !ok || hit.Mesh.Name != "far" {
		t.Errorf("Pick = %+v, %v; want far", hit, ok)
	}
}

func TestPickMiss(t *testing.T) {
	root := quadNode("only", 0)
	if _, ok := Pick(root, Ray{math.V3(5, 5, 10), math.V3(0, 0, -1)}); ok {
		t.Error("expected no hit")
	}
	if _, ok := Pick(nil, Ray{math.V3(0, 0, 10), math.V3(0, 0, -1)}); ok {
		t.Error("expected no hit for nil root")
	}
}
