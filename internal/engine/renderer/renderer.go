// Package renderer draws scene graphs with OpenGL. Scene objects stay
// GPU-free; the renderer uploads geometry and textures on first use and frees
// them once the scene marks them disposed.
package renderer

import (
	"fmt"

	"github.com/go-gl/gl/v4.1-core/gl"
	"go.uber.org/zap"

	"github.com/Faultbox/decalview/internal/engine/batch"
	"github.com/Faultbox/decalview/internal/engine/camera"
	"github.com/Faultbox/decalview/internal/engine/debug"
	"github.com/Faultbox/decalview/internal/engine/framebuffer"
	"github.com/Faultbox/decalview/internal/engine/lighting"
	"github.com/Faultbox/decalview/internal/engine/renderer/shaders"
	"github.com/Faultbox/decalview/internal/engine/shader"
	"github.com/Faultbox/decalview/internal/scene"
	"github.com/Faultbox/decalview/pkg/math"
)

// Options controls what is drawn besides the scene.
type Options struct {
	Background scene.Color
	Lights     lighting.Rig
	ShowAxes   bool
	AxesLength float32
	ShowBounds bool
}

// Frame is one scene to draw.
type Frame struct {
	Model    *scene.Node
	Overlays []*scene.Mesh
}

// Stats counts GPU objects currently held.
type Stats struct {
	Meshes   int
	Textures int
	Draws    int
}

// Renderer owns the GL programs and the GPU cache. All methods must be
// called on the thread that owns the GL context.
type Renderer struct {
	log  *zap.Logger
	opts Options

	standard *shader.Program
	basic    *shader.Program
	lines    *shader.Program

	meshes   map[*scene.Geometry]*gpuMesh
	textures map[*scene.Texture]uint32
	white    uint32

	axes   *lineBuffer
	bounds *lineBuffer

	draws int
}

// New compiles the programs. gl.Init must already have run on a current
// context.
func New(opts Options, log *zap.Logger) (*Renderer, error) {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Renderer{
		log:      log,
		opts:     opts,
		meshes:   make(map[*scene.Geometry]*gpuMesh),
		textures: make(map[*scene.Texture]uint32),
	}

	var err error
	if r.standard, err = shader.Compile("standard", shaders.MeshVertexShader, shaders.StandardFragmentShader); err != nil {
		return nil, err
	}
	if r.basic, err = shader.Compile("basic", shaders.MeshVertexShader, shaders.BasicFragmentShader); err != nil {
		r.Close()
		return nil, err
	}
	if r.lines, err = shader.Compile("line", shaders.LineVertexShader, shaders.LineFragmentShader); err != nil {
		r.Close()
		return nil, err
	}

	r.white = uploadWhite()
	r.axes = newLineBuffer()
	r.bounds = newLineBuffer()
	r.axes.set(debug.AxesLines(opts.AxesLength))

	log.Info("renderer ready",
		zap.String("gl_version", gl.GoStr(gl.GetString(gl.VERSION))),
		zap.String("gl_renderer", gl.GoStr(gl.GetString(gl.RENDERER))),
	)
	return r, nil
}

// SetOptions replaces the draw options.
func (r *Renderer) SetOptions(opts Options) {
	if opts.AxesLength != r.opts.AxesLength {
		r.axes.set(debug.AxesLines(opts.AxesLength))
	}
	r.opts = opts
}

// Options returns the current draw options.
func (r *Renderer) Options() Options {
	return r.opts
}

// Render draws f into fb as seen by cam.
func (r *Renderer) Render(fb *framebuffer.Framebuffer, cam *camera.OrbitCamera, f Frame) {
	restore := fb.Bind()
	defer restore()

	r.Purge()
	r.draws = 0

	bg := r.opts.Background
	br, bgG, bb := bg.SRGB()
	gl.ClearColor(br, bgG, bb, 1)
	gl.DepthMask(true)
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)

	gl.Enable(gl.DEPTH_TEST)
	gl.DepthFunc(gl.LEQUAL)

	view := cam.ViewMatrix()
	proj := cam.ProjectionMatrix(fb.Aspect())
	eye := cam.Position()

	list := batch.Collect(f.Model, f.Overlays, eye)

	gl.Disable(gl.BLEND)
	for _, it := range list.Opaque {
		r.drawItem(it, view, proj, eye)
	}

	gl.Enable(gl.DEPTH_TEST)
	gl.DepthMask(true)
	r.drawHelpers(f, view, proj)

	gl.Enable(gl.BLEND)
	gl.BlendFunc(gl.SRC_ALPHA, gl.ONE_MINUS_SRC_ALPHA)
	for _, it := range list.Transparent {
		r.drawItem(it, view, proj, eye)
	}

	// Leave state the way ImGui expects it.
	gl.Disable(gl.POLYGON_OFFSET_FILL)
	gl.Disable(gl.CULL_FACE)
	gl.Disable(gl.DEPTH_TEST)
	gl.DepthMask(true)
	gl.BindVertexArray(0)
}

func (r *Renderer) drawHelpers(f Frame, view, proj math.Mat4) {
	var boxes []debug.LineVertex
	if r.opts.ShowBounds && f.Model != nil {
		boxes = debug.BoxLines(scene.ComputeBounds(f.Model), debug.BoxColor)
	}
	r.bounds.set(boxes)

	if !r.opts.ShowAxes && len(boxes) == 0 {
		return
	}
	r.lines.Use()
	r.lines.SetMat4("uView", view)
	r.lines.SetMat4("uProjection", proj)
	if r.opts.ShowAxes {
		r.axes.draw()
	}
	r.bounds.draw()
}

func (r *Renderer) drawItem(it batch.Item, view, proj math.Mat4, eye math.Vec3) {
	gm, err := r.mesh(it.Mesh.Geometry)
	if err != nil {
		r.log.Warn("skipping mesh", zap.String("mesh", it.Mesh.Name), zap.Error(err))
		return
	}

	var prog *shader.Program
	switch m := it.Mesh.Material.(type) {
	case *scene.StandardMaterial:
		prog = r.standard
		prog.Use()
		r.applyStandard(m, eye)
		applySide(m.Side)
		gl.Enable(gl.DEPTH_TEST)
		gl.DepthMask(true)
		gl.Disable(gl.POLYGON_OFFSET_FILL)
	case *scene.BasicMaterial:
		prog = r.basic
		prog.Use()
		r.applyBasic(m)
	default:
		return
	}

	prog.SetMat4("uModel", it.World)
	prog.SetMat4("uView", view)
	prog.SetMat4("uProjection", proj)
	gm.draw()
	r.draws++
}

func (r *Renderer) applyStandard(m *scene.StandardMaterial, eye math.Vec3) {
	p := r.standard
	p.SetVec3("uCameraPos", eye.X, eye.Y, eye.Z)
	p.SetVec3("uBaseColor", m.Color.R, m.Color.G, m.Color.B)
	e := m.Emissive.MultiplyScalar(m.EmissiveIntensity)
	p.SetVec3("uEmissive", e.R, e.G, e.B)
	p.SetFloat("uRoughness", m.Roughness)
	p.SetFloat("uMetalness", m.Metalness)
	r.bindMap(p, m.Map)

	u := r.opts.Lights.Uniforms()
	p.SetVec3("uAmbient", u.Ambient[0], u.Ambient[1], u.Ambient[2])
	p.SetInt("uLightCount", u.Count)
	p.SetVec3Array("uLightDir", u.Directions[:])
	p.SetVec3Array("uLightColor", u.Colors[:])
}

func (r *Renderer) applyBasic(m *scene.BasicMaterial) {
	p := r.basic
	p.SetVec3("uColor", m.Color.R, m.Color.G, m.Color.B)
	p.SetFloat("uOpacity", m.Opacity)
	r.bindMap(p, m.Map)

	applySide(m.Side)
	if m.DepthTest {
		gl.Enable(gl.DEPTH_TEST)
	} else {
		gl.Disable(gl.DEPTH_TEST)
	}
	gl.DepthMask(m.DepthWrite)
	if m.PolygonOffset {
		gl.Enable(gl.POLYGON_OFFSET_FILL)
		gl.PolygonOffset(m.PolygonOffsetFactor, m.PolygonOffsetUnits)
	} else {
		gl.Disable(gl.POLYGON_OFFSET_FILL)
	}
}

func (r *Renderer) bindMap(p *shader.Program, t *scene.Texture) {
	gl.ActiveTexture(gl.TEXTURE0)
	p.SetInt("uMap", 0)

	id := r.white
	flip := false
	if t != nil && !t.Disposed() && t.Image != nil && len(t.Image.Pix) > 0 {
		id = r.texture(t)
		flip = t.FlipY
	}
	gl.BindTexture(gl.TEXTURE_2D, id)
	p.SetBool("uHasMap", id != r.white)
	p.SetBool("uFlipY", flip)
}

func applySide(s scene.Side) {
	switch s {
	case scene.DoubleSide:
		gl.Disable(gl.CULL_FACE)
	case scene.BackSide:
		gl.Enable(gl.CULL_FACE)
		gl.CullFace(gl.FRONT)
	default:
		gl.Enable(gl.CULL_FACE)
		gl.CullFace(gl.BACK)
	}
}

// Purge frees GPU objects whose scene resources were disposed.
func (r *Renderer) Purge() {
	for g, gm := range r.meshes {
		if g.Disposed() {
			gm.delete()
			delete(r.meshes, g)
		}
	}
	for t, id := range r.textures {
		if t.Disposed() {
			gl.DeleteTextures(1, &id)
			delete(r.textures, t)
		}
	}
}

// Stats reports the current cache size and the draw calls of the last frame.
func (r *Renderer) Stats() Stats {
	return Stats{Meshes: len(r.meshes), Textures: len(r.textures), Draws: r.draws}
}

// Close releases every GPU object the renderer owns.
func (r *Renderer) Close() {
	for g, gm := range r.meshes {
		gm.delete()
		delete(r.meshes, g)
	}
	for t, id := range r.textures {
		gl.DeleteTextures(1, &id)
		delete(r.textures, t)
	}
	if r.white != 0 {
		gl.DeleteTextures(1, &r.white)
		r.white = 0
	}
	for _, lb := range []*lineBuffer{r.axes, r.bounds} {
		if lb != nil {
			lb.delete()
		}
	}
	for _, p := range []*shader.Program{r.standard, r.basic, r.lines} {
		if p != nil {
			p.Delete()
		}
	}
	r.log.Debug("renderer closed")
}

func (r *Renderer) mesh(g *scene.Geometry) (*gpuMesh, error) {
	if gm, ok := r.meshes[g]; ok {
		return gm, nil
	}
	gm, err := uploadMesh(g)
	if err != nil {
		return nil, fmt.Errorf("upload geometry: %w", err)
	}
	r.meshes[g] = gm
	return gm, nil
}

func (r *Renderer) texture(t *scene.Texture) uint32 {
	if id, ok := r.textures[t]; ok {
		return id
	}
	id := uploadTexture(t)
	r.textures[t] = id
	w, h := t.Size()
	r.log.Debug("texture uploaded", zap.String("name", t.Name), zap.Int("width", w), zap.Int("height", h))
	return id
}
