package assets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"path/filepath"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"go.uber.org/zap"

	"github.com/Faultbox/decalview/internal/scene"
	"github.com/Faultbox/decalview/pkg/math"
)

// ErrInvalidModel is returned for glTF documents that reference missing or
// cyclic data.
var ErrInvalidModel = errors.New("invalid model")

// glTF attribute semantics.
const (
	attrPosition = "POSITION"
	attrNormal   = "NORMAL"
	attrTexcoord = "TEXCOORD_0"
)

var identityMatrix = [16]float64{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}

// ModelLoader decodes glTF 2.0 assets (.glb and .gltf) into scene graphs.
type ModelLoader struct {
	manager        *Manager
	maxTextureSize int
	log            *zap.Logger
}

// NewModelLoader creates a loader. A nil log discards messages.
func NewModelLoader(m *Manager, maxTextureSize int, log *zap.Logger) *ModelLoader {
	if log == nil {
		log = zap.NewNop()
	}
	return &ModelLoader{manager: m, maxTextureSize: maxTextureSize, log: log}
}

// LoadModel fetches source and converts its default scene. The returned root
// node is named after the source file and carries an identity transform.
func (l *ModelLoader) LoadModel(ctx context.Context, source string) (*scene.Node, error) {
	doc, base, err := l.open(ctx, source)
	if err != nil {
		return nil, err
	}

	b := &modelBuilder{
		ctx:       ctx,
		loader:    l,
		doc:       doc,
		base:      base,
		images:    make(map[int]imageResult),
		visiting:  make(map[int]bool),
		sourceTag: BaseName(source),
	}

	root := scene.NewNode(BaseName(source))
	for _, idx := range rootNodes(doc) {
		child, err := b.node(idx)
		if err != nil {
			root.Dispose()
			return nil, fmt.Errorf("loading %s: %w", source, err)
		}
		root.Add(child)
	}
	if err := ctx.Err(); err != nil {
		root.Dispose()
		return nil, err
	}

	l.log.Debug("model decoded",
		zap.String("source", source),
		zap.Int("meshes", len(root.Meshes())),
		zap.Int("nodes", len(doc.Nodes)))
	return root, nil
}

// open decodes the document and reads its external buffers through the
// manager, relative to the model's directory or URL.
func (l *ModelLoader) open(ctx context.Context, source string) (*gltf.Document, string, error) {
	data, err := l.manager.Load(ctx, source)
	if err != nil {
		return nil, "", err
	}

	format := Sniff(source, data)
	if format != FormatGLB && format != FormatGLTF {
		return nil, "", fmt.Errorf("loading %s: %w", source, ErrUnsupportedFormat)
	}

	var base string
	if IsURL(source) {
		base = urlDir(source)
	} else {
		p, err := l.manager.Locate(source)
		if err != nil {
			return nil, "", err
		}
		base = filepath.Dir(p)
	}

	doc := new(gltf.Document)
	if err := gltf.NewDecoder(bytes.NewReader(data)).Decode(doc); err != nil {
		return nil, "", fmt.Errorf("decoding %s: %w", source, err)
	}
	if err := l.readBuffers(ctx, doc, base); err != nil {
		return nil, "", fmt.Errorf("loading %s: %w", source, err)
	}
	return doc, base, nil
}

// readBuffers fills buffers that reference external files. Embedded and GLB
// buffers arrive filled by the decoder.
func (l *ModelLoader) readBuffers(ctx context.Context, doc *gltf.Document, base string) error {
	for i, buf := range doc.Buffers {
		if buf.URI == "" || buf.IsEmbeddedResource() || len(buf.Data) >= buf.ByteLength {
			continue
		}
		data, err := l.manager.Load(ctx, resolveURI(base, buf.URI))
		if err != nil {
			return fmt.Errorf("reading buffer %d (%s): %w", i, buf.URI, err)
		}
		if len(data) < buf.ByteLength {
			return fmt.Errorf("%w: buffer %d (%s) has %d bytes, want %d",
				ErrInvalidModel, i, buf.URI, len(data), buf.ByteLength)
		}
		buf.Data = data[:buf.ByteLength]
	}
	return nil
}

func urlDir(source string) string {
	u, err := url.Parse(source)
	if err != nil {
		return ""
	}
	u.Path = path.Dir(u.Path)
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

// rootNodes returns the nodes of the default scene, or every parentless node
// when the document has no scenes.
func rootNodes(doc *gltf.Document) []int {
	if len(doc.Scenes) > 0 {
		s := 0
		if doc.Scene != nil && *doc.Scene >= 0 && *doc.Scene < len(doc.Scenes) {
			s = *doc.Scene
		}
		return doc.Scenes[s].Nodes
	}

	isChild := make(map[int]bool)
	for _, n := range doc.Nodes {
		for _, c := range n.Children {
			isChild[c] = true
		}
	}
	var roots []int
	for i := range doc.Nodes {
		if !isChild[i] {
			roots = append(roots, i)
		}
	}
	return roots
}

type imageResult struct {
	img *scene.Texture
	err error
}

type modelBuilder struct {
	ctx       context.Context
	loader    *ModelLoader
	doc       *gltf.Document
	base      string
	images    map[int]imageResult
	visiting  map[int]bool
	sourceTag string
}

func (b *modelBuilder) node(idx int) (*scene.Node, error) {
	if idx < 0 || idx >= len(b.doc.Nodes) {
		return nil, fmt.Errorf("%w: node %d out of range", ErrInvalidModel, idx)
	}
	if b.visiting[idx] {
		return nil, fmt.Errorf("%w: node %d is its own ancestor", ErrInvalidModel, idx)
	}
	if err := b.ctx.Err(); err != nil {
		return nil, err
	}
	b.visiting[idx] = true
	defer delete(b.visiting, idx)

	src := b.doc.Nodes[idx]
	n := scene.NewNode(src.Name)
	n.Position, n.Rotation, n.Scale = nodeTransform(src)

	if src.Mesh != nil {
		if err := b.mesh(n, *src.Mesh); err != nil {
			n.Dispose()
			return nil, err
		}
	}
	for _, c := range src.Children {
		child, err := b.node(c)
		if err != nil {
			n.Dispose()
			return nil, err
		}
		n.Add(child)
	}
	return n, nil
}

func nodeTransform(n *gltf.Node) (math.Vec3, math.Quat, math.Vec3) {
	if n.Matrix != ([16]float64{}) && n.Matrix != identityMatrix {
		var m math.Mat4
		for i, v := range n.Matrix {
			m[i] = float32(v)
		}
		return m.Decompose()
	}

	pos := math.Vec3{X: float32(n.Translation[0]), Y: float32(n.Translation[1]), Z: float32(n.Translation[2])}
	rot := math.QuatIdentity()
	if n.Rotation != ([4]float64{}) {
		rot = math.Quat{
			X: float32(n.Rotation[0]),
			Y: float32(n.Rotation[1]),
			Z: float32(n.Rotation[2]),
			W: float32(n.Rotation[3]),
		}.Normalize()
	}
	scale := math.Vec3{X: 1, Y: 1, Z: 1}
	if n.Scale != ([3]float64{}) {
		scale = math.Vec3{X: float32(n.Scale[0]), Y: float32(n.Scale[1]), Z: float32(n.Scale[2])}
	}
	return pos, rot, scale
}

// mesh attaches the triangle primitives of mesh idx to n. A single primitive
// goes on n itself; several become child nodes.
func (b *modelBuilder) mesh(n *scene.Node, idx int) error {
	if idx < 0 || idx >= len(b.doc.Meshes) {
		return fmt.Errorf("%w: mesh %d out of range", ErrInvalidModel, idx)
	}
	src := b.doc.Meshes[idx]

	var meshes []*scene.Mesh
	for i, p := range src.Primitives {
		geo, err := b.geometry(p)
		if err != nil {
			for _, m := range meshes {
				m.Dispose()
			}
			return fmt.Errorf("mesh %q primitive %d: %w", src.Name, i, err)
		}
		if geo == nil {
			continue
		}
		meshes = append(meshes, scene.NewMesh(src.Name, geo, b.material(p.Material)))
	}

	if len(meshes) == 1 {
		n.SetMesh(meshes[0])
		return nil
	}
	for i, m := range meshes {
		child := scene.NewNode(fmt.Sprintf("%s_%d", src.Name, i))
		child.SetMesh(m)
		n.Add(child)
	}
	return nil
}

func (b *modelBuilder) accessor(idx int) (*gltf.Accessor, error) {
	if idx < 0 || idx >= len(b.doc.Accessors) {
		return nil, fmt.Errorf("%w: accessor %d out of range", ErrInvalidModel, idx)
	}
	return b.doc.Accessors[idx], nil
}

// geometry reads a primitive. Non-triangle primitives and primitives without
// positions return nil.
func (b *modelBuilder) geometry(p *gltf.Primitive) (*scene.Geometry, error) {
	if p.Mode != gltf.PrimitiveTriangles {
		b.loader.log.Debug("skipping non-triangle primitive", zap.String("model", b.sourceTag))
		return nil, nil
	}
	posIdx, ok := p.Attributes[attrPosition]
	if !ok {
		return nil, nil
	}

	acr, err := b.accessor(posIdx)
	if err != nil {
		return nil, err
	}
	positions, err := modeler.ReadPosition(b.doc, acr, nil)
	if err != nil {
		return nil, fmt.Errorf("reading positions: %w", err)
	}
	geo := &scene.Geometry{Positions: make([]math.Vec3, len(positions))}
	for i, v := range positions {
		geo.Positions[i] = math.Vec3{X: v[0], Y: v[1], Z: v[2]}
	}

	if p.Indices != nil {
		acr, err := b.accessor(*p.Indices)
		if err != nil {
			return nil, err
		}
		indices, err := modeler.ReadIndices(b.doc, acr, nil)
		if err != nil {
			return nil, fmt.Errorf("reading indices: %w", err)
		}
		for _, i := range indices {
			if int(i) >= len(positions) {
				return nil, fmt.Errorf("%w: index %d exceeds %d vertices", ErrInvalidModel, i, len(positions))
			}
		}
		geo.Indices = indices
	}

	if idx, ok := p.Attributes[attrNormal]; ok {
		acr, err := b.accessor(idx)
		if err != nil {
			return nil, err
		}
		normals, err := modeler.ReadNormal(b.doc, acr, nil)
		if err != nil {
			return nil, fmt.Errorf("reading normals: %w", err)
		}
		if len(normals) == len(positions) {
			geo.Normals = make([]math.Vec3, len(normals))
			for i, v := range normals {
				geo.Normals[i] = math.Vec3{X: v[0], Y: v[1], Z: v[2]}
			}
		}
	}
	if geo.Normals == nil {
		geo.ComputeNormals()
	}

	if idx, ok := p.Attributes[attrTexcoord]; ok {
		acr, err := b.accessor(idx)
		if err != nil {
			return nil, err
		}
		uvs, err := modeler.ReadTextureCoord(b.doc, acr, nil)
		if err != nil {
			return nil, fmt.Errorf("reading texture coordinates: %w", err)
		}
		if len(uvs) == len(positions) {
			geo.UVs = make([]math.Vec2, len(uvs))
			for i, v := range uvs {
				geo.UVs[i] = math.Vec2{X: v[0], Y: v[1]}
			}
		}
	}

	return geo, nil
}

// material converts a glTF material. Every primitive gets its own material
// so that disposing one never affects another mesh.
func (b *modelBuilder) material(idx *int) *scene.StandardMaterial {
	mat := scene.NewStandardMaterial()
	// glTF defaults metallic to 1.
	mat.Metalness = 1
	if idx == nil || *idx < 0 || *idx >= len(b.doc.Materials) {
		return mat
	}

	src := b.doc.Materials[*idx]
	mat.Name = src.Name
	mat.Emissive = scene.Color{
		R: float32(src.EmissiveFactor[0]),
		G: float32(src.EmissiveFactor[1]),
		B: float32(src.EmissiveFactor[2]),
	}
	if src.DoubleSided {
		mat.Side = scene.DoubleSide
	}

	pbr := src.PBRMetallicRoughness
	if pbr == nil {
		return mat
	}
	if f := pbr.BaseColorFactor; f != nil {
		mat.Color = scene.Color{R: float32(f[0]), G: float32(f[1]), B: float32(f[2])}
	}
	if pbr.MetallicFactor != nil {
		mat.Metalness = float32(*pbr.MetallicFactor)
	}
	if pbr.RoughnessFactor != nil {
		mat.Roughness = float32(*pbr.RoughnessFactor)
	}
	if pbr.BaseColorTexture != nil {
		tex, err := b.texture(pbr.BaseColorTexture.Index)
		if err != nil {
			b.loader.log.Warn("base color texture skipped",
				zap.String("model", b.sourceTag),
				zap.String("material", src.Name),
				zap.Error(err))
		} else {
			mat.Map = tex
		}
	}
	return mat
}

// texture returns a fresh texture sharing the decoded pixels of image idx.
func (b *modelBuilder) texture(idx int) (*scene.Texture, error) {
	if idx < 0 || idx >= len(b.doc.Textures) {
		return nil, fmt.Errorf("%w: texture %d out of range", ErrInvalidModel, idx)
	}
	src := b.doc.Textures[idx].Source
	if src == nil {
		return nil, fmt.Errorf("texture %d has no image", idx)
	}

	res, ok := b.images[*src]
	if !ok {
		res.img, res.err = b.image(*src)
		b.images[*src] = res
	}
	if res.err != nil {
		return nil, res.err
	}

	tex := scene.NewTexture(res.img.Name, res.img.Image)
	tex.ColorSpace = scene.SRGBColorSpace
	return tex, nil
}

func (b *modelBuilder) image(idx int) (*scene.Texture, error) {
	if idx < 0 || idx >= len(b.doc.Images) {
		return nil, fmt.Errorf("%w: image %d out of range", ErrInvalidModel, idx)
	}
	src := b.doc.Images[idx]
	name := src.Name
	if name == "" {
		name = fmt.Sprintf("image%d", idx)
	}

	var (
		data []byte
		err  error
	)
	switch {
	case src.BufferView != nil:
		if *src.BufferView < 0 || *src.BufferView >= len(b.doc.BufferViews) {
			return nil, fmt.Errorf("%w: buffer view %d out of range", ErrInvalidModel, *src.BufferView)
		}
		data, err = modeler.ReadBufferView(b.doc, b.doc.BufferViews[*src.BufferView])
	case src.IsEmbeddedResource():
		data, err = src.MarshalData()
	case src.URI != "":
		name = src.URI
		data, err = b.loader.manager.Load(b.ctx, b.resolve(src.URI))
	default:
		return nil, fmt.Errorf("image %d has no data", idx)
	}
	if err != nil {
		return nil, fmt.Errorf("reading image %s: %w", name, err)
	}

	img, err := DecodeImage(name, data, b.loader.maxTextureSize)
	if err != nil {
		return nil, err
	}
	return scene.NewTexture(name, img), nil
}

// resolve turns a URI relative to the model into a loadable source.
func (b *modelBuilder) resolve(uri string) string {
	return resolveURI(b.base, uri)
}

func resolveURI(base, uri string) string {
	if IsURL(uri) {
		return uri
	}
	if unescaped, err := url.PathUnescape(uri); err == nil {
		uri = unescaped
	}
	if IsURL(base) {
		return base + "/" + uri
	}
	return filepath.Join(base, filepath.FromSlash(uri))
}
