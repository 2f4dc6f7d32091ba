package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"testing"

	"github.com/chewxy/math32"

	"github.com/Faultbox/decalview/internal/decal"
	"github.com/Faultbox/decalview/internal/scene"
	"github.com/Faultbox/decalview/pkg/math"
)

// boxGeometry returns a closed box of the given size centered at the origin.
func boxGeometry(size math.Vec3) *scene.Geometry {
	x, y, z := size.X/2, size.Y/2, size.Z/2
	return &scene.Geometry{
		Positions: []math.Vec3{
			{X: -x, Y: -y, Z: -z}, {X: x, Y: -y, Z: -z}, {X: x, Y: y, Z: -z}, {X: -x, Y: y, Z: -z},
			{X: -x, Y: -y, Z: z}, {X: x, Y: -y, Z: z}, {X: x, Y: y, Z: z}, {X: -x, Y: y, Z: z},
		},
		Indices: []uint32{
			0, 2, 1, 0, 3, 2,
			4, 5, 6, 4, 6, 7,
			0, 1, 5, 0, 5, 4,
			3, 6, 2, 3, 7, 6,
			0, 4, 7, 0, 7, 3,
			1, 2, 6, 1, 6, 5,
		},
	}
}

// boxModel returns a root with one box mesh per size, in order.
func boxModel(name string, sizes ...math.Vec3) *scene.Node {
	root := scene.NewNode(name)
	for i, size := range sizes {
		n := scene.NewNode(fmt.Sprintf("%s-part%d", name, i))
		n.SetMesh(scene.NewMesh(fmt.Sprintf("%s-mesh%d", name, i), boxGeometry(size), scene.NewStandardMaterial()))
		root.Add(n)
	}
	return root
}

type modelFunc func(ctx context.Context, source string) (*scene.Node, error)

func (f modelFunc) LoadModel(ctx context.Context, source string) (*scene.Node, error) {
	return f(ctx, source)
}

type textureFunc func(ctx context.Context, source string) (*scene.Texture, error)

func (f textureFunc) LoadTexture(ctx context.Context, source string) (*scene.Texture, error) {
	return f(ctx, source)
}

// fixture serves box models by name and blank textures, optionally blocking
// a source until its gate is closed.
type fixture struct {
	mu       sync.Mutex
	models   map[string]func() *scene.Node
	gates    map[string]chan struct{}
	started  map[string]chan struct{}
	textures []*scene.Texture
	texCalls int
}

func newFixture() *fixture {
	f := &fixture{
		models:  make(map[string]func() *scene.Node),
		gates:   make(map[string]chan struct{}),
		started: make(map[string]chan struct{}),
	}
	f.models["a.glb"] = func() *scene.Node { return boxModel("a", math.Vec3{X: 2, Y: 2, Z: 2}) }
	f.models["b.glb"] = func() *scene.Node {
		return boxModel("b", math.Vec3{X: 1, Y: 1, Z: 1}, math.Vec3{X: 4, Y: 1, Z: 4})
	}
	return f
}

// block makes the next load of source wait until release is called.
// The started channel is closed once the load is waiting.
func (f *fixture) block(source string) (started <-chan struct{}, release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	gate := make(chan struct{})
	s := make(chan struct{})
	f.gates[source] = gate
	f.started[source] = s
	return s, func() { close(gate) }
}

func (f *fixture) wait(ctx context.Context, source string) error {
	f.mu.Lock()
	gate, started := f.gates[source], f.started[source]
	delete(f.gates, source)
	delete(f.started, source)
	f.mu.Unlock()
	if gate == nil {
		return nil
	}
	close(started)
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fixture) loadModel(ctx context.Context, source string) (*scene.Node, error) {
	if err := f.wait(ctx, source); err != nil {
		return nil, err
	}
	f.mu.Lock()
	build, ok := f.models[source]
	f.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("open %s: no such file", source)
	}
	return build(), nil
}

func (f *fixture) loadTexture(ctx context.Context, source string) (*scene.Texture, error) {
	if err := f.wait(ctx, source); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texCalls++
	if source == "broken.png" {
		return nil, errors.New("png: invalid format")
	}
	tex := scene.NewTexture(source, image.NewNRGBA(image.Rect(0, 0, 4, 4)))
	f.textures = append(f.textures, tex)
	return tex, nil
}

func (f *fixture) session(t *testing.T, configure ...func(*Options)) *Session {
	t.Helper()
	opts := DefaultOptions(modelFunc(f.loadModel), textureFunc(f.loadTexture))
	for _, c := range configure {
		c(&opts)
	}
	s := New(opts)
	t.Cleanup(s.Close)
	return s
}

func mustLoad(t *testing.T, s *Session, source string) {
	t.Helper()
	if err := s.LoadModel(context.Background(), source); err != nil {
		t.Fatalf("LoadModel(%s): %v", source, err)
	}
}

func mustDecal(t *testing.T, s *Session, source string) *scene.Mesh {
	t.Helper()
	if err := s.ApplyDecal(context.Background(), source); err != nil {
		t.Fatalf("ApplyDecal(%s): %v", source, err)
	}
	d := s.Snapshot().Decal
	if d == nil {
		t.Fatalf("ApplyDecal(%s): no overlay installed", source)
	}
	return d
}

func assertDisposed(t *testing.T, what string, m *scene.Mesh) {
	t.Helper()
	if !m.Geometry.Disposed() {
		t.Errorf("%s geometry not disposed", what)
	}
	if !m.Material.Disposed() {
		t.Errorf("%s material not disposed", what)
	}
}

func TestNewSessionIsEmpty(t *testing.T) {
	s := newFixture().session(t)
	snap := s.Snapshot()
	if snap.State != StateEmpty || snap.Model != nil || snap.Decal != nil || snap.Surface != nil {
		t.Errorf("snapshot = %+v, want empty", snap)
	}
}

func TestLoadModelNormalizes(t *testing.T) {
	tests := []struct {
		name       string
		size       math.Vec3
		targetSize float32
	}{
		{"small cube", math.Vec3{X: 2, Y: 2, Z: 2}, 20},
		{"tall box", math.Vec3{X: 1, Y: 400, Z: 3}, 20},
		{"tiny flat", math.Vec3{X: 0.01, Y: 0.002, Z: 0}, 20},
		{"custom target", math.Vec3{X: 3, Y: 1, Z: 1}, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.models["m.glb"] = func() *scene.Node { return boxModel("m", tt.size) }
			s := f.session(t, func(o *Options) { o.TargetSize = tt.targetSize })

			mustLoad(t, s, "m.glb")

			snap := s.Snapshot()
			got := scene.ComputeBounds(snap.Model).Size().MaxComponent()
			if math32.Abs(got-tt.targetSize) > 1e-3 {
				t.Errorf("largest dimension = %v, want %v", got, tt.targetSize)
			}
			if snap.Model.Position != (math.Vec3{Y: DefaultVerticalOffset}) {
				t.Errorf("position = %v, want (0, %d, 0)", snap.Model.Position, DefaultVerticalOffset)
			}
			if snap.State != StateModel {
				t.Errorf("state = %v, want model", snap.State)
			}
		})
	}
}

func TestLoadModelRejectsEmptyAndDegenerate(t *testing.T) {
	f := newFixture()
	f.models["empty.glb"] = func() *scene.Node { return scene.NewNode("empty") }
	f.models["point.glb"] = func() *scene.Node { return boxModel("point", math.Vec3{}) }
	s := f.session(t)

	if err := s.LoadModel(context.Background(), "empty.glb"); !errors.Is(err, ErrEmptyModel) {
		t.Errorf("empty: err = %v, want ErrEmptyModel", err)
	}
	if err := s.LoadModel(context.Background(), "point.glb"); !errors.Is(err, ErrDegenerateModel) {
		t.Errorf("point: err = %v, want ErrDegenerateModel", err)
	}
	if s.State() != StateEmpty {
		t.Errorf("state = %v, want empty", s.State())
	}
}

func TestLoadModelFailureLeavesNoModel(t *testing.T) {
	f := newFixture()
	s := f.session(t)
	mustLoad(t, s, "a.glb")
	old := s.Snapshot().Model.Meshes()[0]

	err := s.LoadModel(context.Background(), "missing.glb")
	if !errors.Is(err, ErrLoadModel) {
		t.Fatalf("err = %v, want ErrLoadModel", err)
	}
	if s.State() != StateEmpty {
		t.Errorf("state = %v, want empty", s.State())
	}
	assertDisposed(t, "previous model", old)
}

func TestLoadBAfterA(t *testing.T) {
	f := newFixture()
	s := f.session(t)

	mustLoad(t, s, "a.glb")
	oldMesh := s.Snapshot().Model.Meshes()[0]
	oldDecal := mustDecal(t, s, "dots.png")

	mustLoad(t, s, "b.glb")

	snap := s.Snapshot()
	if snap.ModelSource != "b.glb" {
		t.Errorf("model source = %q", snap.ModelSource)
	}
	if snap.Decal != nil {
		t.Error("decal survived a model change")
	}
	if snap.State != StateModel {
		t.Errorf("state = %v, want model", snap.State)
	}
	assertDisposed(t, "old decal", oldDecal)
	assertDisposed(t, "old model", oldMesh)
	if !f.textures[0].Disposed() {
		t.Error("old decal texture not disposed")
	}
}

func TestApplyDecalWithoutModel(t *testing.T) {
	f := newFixture()
	s := f.session(t)

	err := s.ApplyDecal(context.Background(), "dots.png")
	if !errors.Is(err, ErrNoModel) {
		t.Fatalf("err = %v, want ErrNoModel", err)
	}
	if f.texCalls != 0 {
		t.Errorf("image loaded %d times without a model", f.texCalls)
	}
	if s.State() != StateEmpty {
		t.Errorf("state = %v, want empty", s.State())
	}
}

func TestApplyDecalReplacesPrevious(t *testing.T) {
	f := newFixture()
	s := f.session(t)
	mustLoad(t, s, "a.glb")

	d1 := mustDecal(t, s, "one.png")
	d2 := mustDecal(t, s, "two.png")

	if d1 == d2 {
		t.Fatal("second decal reused the first overlay")
	}
	snap := s.Snapshot()
	if snap.Decal != d2 || snap.DecalSource != "two.png" {
		t.Errorf("overlay source = %q, want two.png", snap.DecalSource)
	}
	assertDisposed(t, "first decal", d1)
	if d2.Geometry.Disposed() || d2.Material.Disposed() {
		t.Error("current decal disposed")
	}
}

func TestApplyDecalImageFailureClearsOverlay(t *testing.T) {
	f := newFixture()
	s := f.session(t)
	mustLoad(t, s, "a.glb")
	d1 := mustDecal(t, s, "one.png")

	err := s.ApplyDecal(context.Background(), "broken.png")
	if !errors.Is(err, ErrLoadImage) {
		t.Fatalf("err = %v, want ErrLoadImage", err)
	}
	if s.State() != StateModel {
		t.Errorf("state = %v, want model", s.State())
	}
	assertDisposed(t, "previous decal", d1)
}

func TestApplyDecalEmptyPatch(t *testing.T) {
	f := newFixture()
	table := decal.NewTable(decal.DefaultPlacement())
	table.Set("a.glb", decal.Placement{
		Position: math.Vec3{X: 500},
		Size:     math.Vec3{X: 1, Y: 1, Z: 1},
	})
	s := f.session(t, func(o *Options) { o.Placements = table })
	mustLoad(t, s, "a.glb")

	err := s.ApplyDecal(context.Background(), "dots.png")
	if !errors.Is(err, decal.ErrEmptyPatch) {
		t.Fatalf("err = %v, want ErrEmptyPatch", err)
	}
	if s.State() != StateModel {
		t.Errorf("state = %v, want model", s.State())
	}
	if !f.textures[0].Disposed() {
		t.Error("unused texture not disposed")
	}
}

func TestSetModelColor(t *testing.T) {
	f := newFixture()
	s := f.session(t)

	if s.SetModelColor(scene.White) {
		t.Error("SetModelColor without a model reported success")
	}
	if err := s.SetModelColorHex("#ff0000"); !errors.Is(err, ErrNoModel) {
		t.Errorf("hex without model: err = %v, want ErrNoModel", err)
	}

	mustLoad(t, s, "b.glb")
	meshes := s.Snapshot().Model.Meshes()
	var old []scene.Material
	for _, m := range meshes {
		old = append(old, m.Material)
	}

	c := scene.MustParseColor("#3498db")
	if !s.SetModelColor(c) {
		t.Fatal("SetModelColor reported no model")
	}

	for i, m := range meshes {
		mat, ok := m.Material.(*scene.StandardMaterial)
		if !ok {
			t.Fatalf("mesh %d material %T", i, m.Material)
		}
		if mat.Color != c {
			t.Errorf("mesh %d color = %v, want %v", i, mat.Color, c)
		}
		if mat.Emissive != c.MultiplyScalar(0.2) {
			t.Errorf("mesh %d emissive = %v", i, mat.Emissive)
		}
		if mat.EmissiveIntensity != 0.5 || mat.Roughness != 0.5 {
			t.Errorf("mesh %d intensity/roughness = %v/%v", i, mat.EmissiveIntensity, mat.Roughness)
		}
		if !old[i].Disposed() {
			t.Errorf("mesh %d old material not disposed", i)
		}
	}

	if err := s.SetModelColorHex("not-a-color"); err == nil {
		t.Error("invalid hex accepted")
	}
}

func TestSetModelColorKeepsDecal(t *testing.T) {
	f := newFixture()
	s := f.session(t)
	mustLoad(t, s, "a.glb")
	d := mustDecal(t, s, "dots.png")

	if err := s.SetModelColorHex("0x00ff00"); err != nil {
		t.Fatalf("SetModelColorHex: %v", err)
	}
	if s.Snapshot().Decal != d || d.Material.Disposed() {
		t.Error("recolor touched the decal")
	}
}

func TestScenarioLoadDecalReload(t *testing.T) {
	f := newFixture()
	s := f.session(t)

	mustLoad(t, s, "a.glb")
	surfaceA := s.Snapshot().Surface
	if surfaceA == nil || surfaceA.Name != "a-mesh0" {
		t.Fatalf("surface = %v, want a-mesh0", surfaceA)
	}

	overlay := mustDecal(t, s, "pattern.png")
	if s.State() != StateDecal {
		t.Errorf("state = %v, want model+decal", s.State())
	}

	mat, ok := overlay.Material.(*scene.BasicMaterial)
	if !ok {
		t.Fatalf("overlay material %T", overlay.Material)
	}
	if mat.DepthWrite {
		t.Error("overlay writes depth")
	}
	if overlay.Node() != nil {
		t.Error("overlay attached to the model hierarchy")
	}

	// Every patch vertex lies inside the default projector box.
	p := decal.DefaultPlacement()
	inv := p.Matrix().Inverse()
	half := p.Size.Scale(0.5)
	for _, v := range overlay.Geometry.Positions {
		l := inv.TransformVec3(v)
		if math32.Abs(l.X) > half.X+1e-3 || math32.Abs(l.Y) > half.Y+1e-3 || math32.Abs(l.Z) > half.Z+1e-3 {
			t.Fatalf("vertex %v outside projector box (local %v)", v, l)
		}
	}

	mustLoad(t, s, "b.glb")
	snap := s.Snapshot()
	if snap.Decal != nil {
		t.Error("overlay survived reload")
	}
	assertDisposed(t, "overlay", overlay)
	if snap.Surface == nil || snap.Surface.Name != "b-mesh0" {
		t.Errorf("surface = %v, want b-mesh0", snap.Surface)
	}
}

func TestLargestAreaPolicy(t *testing.T) {
	f := newFixture()
	s := f.session(t, func(o *Options) { o.Policy = LargestArea{} })
	mustLoad(t, s, "b.glb")

	if got := s.Snapshot().Surface.Name; got != "b-mesh1" {
		t.Errorf("surface = %q, want b-mesh1", got)
	}
	if s.Policy().Name() != PolicyLargestArea {
		t.Errorf("policy = %q", s.Policy().Name())
	}
}

func TestStaleModelLoadIsDiscarded(t *testing.T) {
	f := newFixture()
	s := f.session(t)

	started, release := f.block("a.glb")
	errA := make(chan error, 1)
	go func() { errA <- s.LoadModel(context.Background(), "a.glb") }()
	<-started

	// B is requested later and completes first.
	mustLoad(t, s, "b.glb")
	release()

	if err := <-errA; !errors.Is(err, ErrSuperseded) {
		t.Fatalf("stale load err = %v, want ErrSuperseded", err)
	}
	if got := s.Snapshot().ModelSource; got != "b.glb" {
		t.Errorf("model = %q, want b.glb", got)
	}
}

// noSurface selects nothing.
type noSurface struct{}

func (noSurface) Name() string { return "none" }

func (noSurface) Select(*scene.Node) *scene.Mesh { return nil }

func TestStaleRejectedModelIsSuperseded(t *testing.T) {
	tests := []struct {
		name      string
		source    string
		configure func(*Options)
	}{
		{"empty model", "empty.glb", nil},
		{"degenerate model", "flat.glb", nil},
		{"no surface", "a.glb", func(o *Options) { o.Policy = noSurface{} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.models["empty.glb"] = func() *scene.Node { return scene.NewNode("empty") }
			f.models["flat.glb"] = func() *scene.Node { return boxModel("flat", math.Vec3{}) }
			var configure []func(*Options)
			if tt.configure != nil {
				configure = append(configure, tt.configure)
			}
			s := f.session(t, configure...)

			// The rejection is only reported while the request is current.
			if err := s.LoadModel(context.Background(), tt.source); err == nil || errors.Is(err, ErrSuperseded) {
				t.Fatalf("current load err = %v, want a rejection", err)
			}

			started, release := f.block(tt.source)
			errBad := make(chan error, 1)
			go func() { errBad <- s.LoadModel(context.Background(), tt.source) }()
			<-started

			// A newer request starts before the bad model finishes loading.
			startedB, releaseB := f.block("b.glb")
			errB := make(chan error, 1)
			go func() { errB <- s.LoadModel(context.Background(), "b.glb") }()
			<-startedB
			release()

			if err := <-errBad; !errors.Is(err, ErrSuperseded) {
				t.Errorf("stale rejection err = %v, want ErrSuperseded", err)
			}
			releaseB()
			<-errB
		})
	}
}

func TestStaleDecalAfterModelChange(t *testing.T) {
	f := newFixture()
	s := f.session(t)
	mustLoad(t, s, "a.glb")

	started, release := f.block("slow.png")
	errD := make(chan error, 1)
	go func() { errD <- s.ApplyDecal(context.Background(), "slow.png") }()
	<-started

	mustLoad(t, s, "b.glb")
	release()

	if err := <-errD; !errors.Is(err, ErrSuperseded) {
		t.Fatalf("err = %v, want ErrSuperseded", err)
	}
	if s.State() != StateModel {
		t.Errorf("state = %v, want model", s.State())
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tex := range f.textures {
		if tex.Name == "slow.png" && !tex.Disposed() {
			t.Error("stale decal texture not disposed")
		}
	}
}

func TestStaleDecalLosesToNewerDecal(t *testing.T) {
	f := newFixture()
	s := f.session(t)
	mustLoad(t, s, "a.glb")

	started, release := f.block("slow.png")
	errD := make(chan error, 1)
	go func() { errD <- s.ApplyDecal(context.Background(), "slow.png") }()
	<-started

	mustDecal(t, s, "fast.png")
	release()

	if err := <-errD; !errors.Is(err, ErrSuperseded) {
		t.Fatalf("err = %v, want ErrSuperseded", err)
	}
	if got := s.Snapshot().DecalSource; got != "fast.png" {
		t.Errorf("decal = %q, want fast.png", got)
	}
}

func TestCancelledLoad(t *testing.T) {
	f := newFixture()
	s := f.session(t)

	started, _ := f.block("a.glb")
	ctx, cancel := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() { errA <- s.LoadModel(ctx, "a.glb") }()
	<-started
	cancel()

	err := <-errA
	if !errors.Is(err, ErrLoadModel) || !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want ErrLoadModel wrapping context.Canceled", err)
	}
}

func TestClose(t *testing.T) {
	f := newFixture()
	s := f.session(t)
	mustLoad(t, s, "a.glb")
	mesh := s.Snapshot().Model.Meshes()[0]
	d := mustDecal(t, s, "dots.png")

	s.Close()
	s.Close()

	if s.State() != StateEmpty {
		t.Errorf("state = %v, want empty", s.State())
	}
	assertDisposed(t, "model", mesh)
	assertDisposed(t, "decal", d)

	if err := s.LoadModel(context.Background(), "a.glb"); !errors.Is(err, ErrClosed) {
		t.Errorf("LoadModel after close: err = %v", err)
	}
	if err := s.ApplyDecal(context.Background(), "dots.png"); !errors.Is(err, ErrClosed) {
		t.Errorf("ApplyDecal after close: err = %v", err)
	}
}

func TestConcurrentOperations(t *testing.T) {
	f := newFixture()
	s := f.session(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(3)
		go func(i int) {
			defer wg.Done()
			_ = s.LoadModel(ctx, []string{"a.glb", "b.glb"}[i%2])
		}(i)
		go func(i int) {
			defer wg.Done()
			_ = s.ApplyDecal(ctx, fmt.Sprintf("p%d.png", i))
		}(i)
		go func() {
			defer wg.Done()
			s.SetModelColor(scene.White)
			s.Read(func(snap Snapshot) {
				if snap.Decal != nil && snap.Model == nil {
					t.Error("decal without model")
				}
			})
		}()
	}
	wg.Wait()

	snap := s.Snapshot()
	if snap.Model != nil {
		for _, m := range snap.Model.Meshes() {
			if m.Geometry.Disposed() {
				t.Error("installed model is disposed")
			}
		}
	}
	if snap.Decal != nil && snap.Decal.Geometry.Disposed() {
		t.Error("installed decal is disposed")
	}
}

func TestStateString(t *testing.T) {
	tests := map[State]string{
		StateEmpty: "empty",
		StateModel: "model",
		StateDecal: "model+decal",
	}
	for st, want := range tests {
		if st.String() != want {
			t.Errorf("%d.String() = %q, want %q", st, st.String(), want)
		}
	}
}
