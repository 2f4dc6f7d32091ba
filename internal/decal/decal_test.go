package decal

import (
	"errors"
	"testing"

	"github.com/chewxy/math32"

	"github.com/Faultbox/decalview/internal/scene"
	"github.com/Faultbox/decalview/pkg/math"
)

// wall returns a 40x40 quad in the plane x = 0 facing +X, attached to a node
// at the given position.
func wall(at math.Vec3) *scene.Mesh {
	geo := &scene.Geometry{
		Positions: []math.Vec3{
			{X: 0, Y: -20, Z: -20},
			{X: 0, Y: 20, Z: -20},
			{X: 0, Y: 20, Z: 20},
			{X: 0, Y: -20, Z: 20},
		},
		Indices: []uint32{0, 1, 3, 1, 2, 3},
	}
	mesh := scene.NewMesh("wall", geo, scene.NewStandardMaterial())
	node := scene.NewNode("wall")
	node.Position = at
	node.SetMesh(mesh)
	return mesh
}

func near(a, b float32) bool {
	return math32.Abs(a-b) < 1e-3
}

func patchArea(g *scene.Geometry) float32 {
	var area float32
	g.Triangles(func(a, b, c int) {
		pa, pb, pc := g.Positions[a], g.Positions[b], g.Positions[c]
		area += pb.Sub(pa).Cross(pc.Sub(pa)).Length() / 2
	})
	return area
}

func TestDefaultPlacement(t *testing.T) {
	p := DefaultPlacement()
	if p.Position != (math.Vec3{X: 10, Y: 1, Z: 1}) {
		t.Errorf("position = %v", p.Position)
	}
	if p.Rotation != (math.Euler{Y: math32.Pi / 2}) {
		t.Errorf("rotation = %v", p.Rotation)
	}
	if p.Size != (math.Vec3{X: 15, Y: 15, Z: 20}) {
		t.Errorf("size = %v", p.Size)
	}
}

func TestBuildDefaultPlacementOnWall(t *testing.T) {
	// The default projector looks down world X, so its box spans x in
	// [0, 20], y and z in [-6.5, 8.5].
	geo, err := Build(wall(math.Vec3{X: 5}), DefaultPlacement())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if len(geo.Positions)%3 != 0 || len(geo.Positions) == 0 {
		t.Fatalf("positions = %d, want a non-empty triangle list", len(geo.Positions))
	}
	if len(geo.Normals) != len(geo.Positions) || len(geo.UVs) != len(geo.Positions) {
		t.Fatalf("attribute counts differ: %d/%d/%d", len(geo.Positions), len(geo.Normals), len(geo.UVs))
	}
	if geo.Indices != nil {
		t.Error("patch should be non-indexed")
	}

	if area := patchArea(geo); !near(area, 225) {
		t.Errorf("area = %v, want 225", area)
	}

	b := geo.Bounds()
	if !near(b.Min.X, 5) || !near(b.Max.X, 5) {
		t.Errorf("x range = [%v, %v], want 5", b.Min.X, b.Max.X)
	}
	if !near(b.Min.Y, -6.5) || !near(b.Max.Y, 8.5) || !near(b.Min.Z, -6.5) || !near(b.Max.Z, 8.5) {
		t.Errorf("bounds = %v", b)
	}

	for i, p := range geo.Positions {
		uv := geo.UVs[i]
		if uv.X < -1e-4 || uv.X > 1+1e-4 || uv.Y < -1e-4 || uv.Y > 1+1e-4 {
			t.Fatalf("uv %d = %v outside [0,1]", i, uv)
		}
		// Box X runs along world -Z, box Y along world Y.
		if wantU := 0.5 - (p.Z-1)/15; !near(uv.X, wantU) {
			t.Errorf("u at %v = %v, want %v", p, uv.X, wantU)
		}
		if wantV := 0.5 + (p.Y-1)/15; !near(uv.Y, wantV) {
			t.Errorf("v at %v = %v, want %v", p, uv.Y, wantV)
		}
		if n := geo.Normals[i]; n.Distance(math.Vec3{X: 1}) > 1e-4 {
			t.Errorf("normal %d = %v, want +X", i, n)
		}
	}

	// Winding is preserved, so every patch triangle still faces +X.
	geo.Triangles(func(a, b, c int) {
		pa, pb, pc := geo.Positions[a], geo.Positions[b], geo.Positions[c]
		if n := pb.Sub(pa).Cross(pc.Sub(pa)); n.X <= 0 {
			t.Errorf("triangle %d faces %v", a/3, n)
		}
	})
}

func TestBuildRespectsWorldTransform(t *testing.T) {
	mesh := wall(math.Vec3{})
	mesh.Node().Position = math.Vec3{X: 12}
	mesh.Node().Scale = math.Vec3{X: 1, Y: 0.25, Z: 0.25}

	geo, err := Build(mesh, DefaultPlacement())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	b := geo.Bounds()
	if !near(b.Min.X, 12) || !near(b.Max.X, 12) {
		t.Errorf("x range = [%v, %v], want 12", b.Min.X, b.Max.X)
	}
	// The scaled wall is 10x10 and lies fully inside the box.
	if area := patchArea(geo); !near(area, 100) {
		t.Errorf("area = %v, want 100", area)
	}
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name      string
		mesh      *scene.Mesh
		placement Placement
		want      error
	}{
		{"outside box", wall(math.Vec3{X: 30}), DefaultPlacement(), ErrEmptyPatch},
		{"nil mesh", nil, DefaultPlacement(), ErrNoSurface},
		{"empty geometry", scene.NewMesh("e", &scene.Geometry{}, nil), DefaultPlacement(), ErrNoSurface},
		{"zero size", wall(math.Vec3{X: 5}), Placement{Size: math.Vec3{X: 1, Y: 0, Z: 1}}, ErrInvalidPlacement},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			geo, err := Build(tt.mesh, tt.placement)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
			if geo != nil {
				t.Error("geometry returned with error")
			}
		})
	}
}

func TestClipTriangle(t *testing.T) {
	oneFar := []vertex{
		{pos: math.Vec3{X: -1}},
		{pos: math.Vec3{X: 3}},
		{pos: math.Vec3{X: -1, Y: 2}},
	}
	twoFar := []vertex{
		{pos: math.Vec3{X: -1}},
		{pos: math.Vec3{X: 3}},
		{pos: math.Vec3{X: 3, Y: 2}},
	}

	tests := []struct {
		name  string
		tri   []vertex
		limit float32
		want  int
	}{
		{"all inside", oneFar, 5, 3},
		{"one vertex out", oneFar, 1, 4},
		{"two vertices out", twoFar, 1, 3},
		{"all outside", oneFar, -2, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := clip(tt.tri, nil, math.Vec3{X: 1}, tt.limit)
			if len(out) != tt.want {
				t.Fatalf("vertices = %d, want %d", len(out), tt.want)
			}
			for _, v := range out {
				if v.pos.X > tt.limit+1e-5 {
					t.Errorf("vertex %v beyond plane %v", v.pos, tt.limit)
				}
			}
		})
	}
}

func TestTable(t *testing.T) {
	def := DefaultPlacement()
	custom := Placement{Position: math.Vec3{Y: 3}, Size: math.Vec3{X: 5, Y: 5, Z: 5}}

	table := NewTable(def)
	table.Set("Model2.glb", custom)

	tests := []struct {
		model string
		want  Placement
	}{
		{"model2.glb", custom},
		{"MODEL2.GLB", custom},
		{"model1.glb", def},
		{"", def},
	}
	for _, tt := range tests {
		if got := table.Lookup(tt.model); got != tt.want {
			t.Errorf("Lookup(%q) = %v, want %v", tt.model, got, tt.want)
		}
	}
	if table.Len() != 1 {
		t.Errorf("Len = %d, want 1", table.Len())
	}

	var nilTable *Table
	if got := nilTable.Lookup("x"); got != def {
		t.Errorf("nil table Lookup = %v, want default", got)
	}
}

func TestNewMaterial(t *testing.T) {
	tex := scene.NewTexture("pattern.png", nil)
	m := NewMaterial(tex)

	if m.Map != tex {
		t.Error("map not set")
	}
	if !m.Transparent || m.Opacity != 1 {
		t.Errorf("transparent/opacity = %v/%v", m.Transparent, m.Opacity)
	}
	if m.DepthWrite {
		t.Error("depth write should be disabled")
	}
	if !m.DepthTest {
		t.Error("depth test should stay enabled")
	}
	if !m.PolygonOffset || m.PolygonOffsetFactor != -4 {
		t.Errorf("polygon offset = %v/%v", m.PolygonOffset, m.PolygonOffsetFactor)
	}
	if m.Side != scene.FrontSide {
		t.Errorf("side = %v", m.Side)
	}
	if tex.WrapS != scene.ClampToEdgeWrapping || tex.WrapT != scene.ClampToEdgeWrapping {
		t.Error("texture should clamp")
	}
	if tex.ColorSpace != scene.SRGBColorSpace || !tex.FlipY {
		t.Error("texture should be sRGB and flipped")
	}
}

func TestNewMesh(t *testing.T) {
	tex := scene.NewTexture("dots.png", nil)
	m, err := NewMesh(wall(math.Vec3{X: 5}), DefaultPlacement(), tex)
	if err != nil {
		t.Fatalf("NewMesh: %v", err)
	}
	if m.Name != "decal:dots.png" {
		t.Errorf("name = %q", m.Name)
	}
	if m.Node() != nil {
		t.Error("decal mesh should be detached")
	}

	if _, err := NewMesh(wall(math.Vec3{X: 40}), DefaultPlacement(), tex); !errors.Is(err, ErrEmptyPatch) {
		t.Errorf("err = %v, want ErrEmptyPatch", err)
	}
}
