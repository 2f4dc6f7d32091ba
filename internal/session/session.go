// Package session owns the loaded model, its decal overlay and the surface
// the decal is projected onto.
//
// Loads run outside the session lock and install their result only if no
// newer request of the same kind was made in the meantime. A decal is also
// dropped if the model changed while its image was loading.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Faultbox/decalview/internal/assets"
	"github.com/Faultbox/decalview/internal/decal"
	"github.com/Faultbox/decalview/internal/scene"
)

// Errors returned by session operations.
var (
	ErrLoadModel       = errors.New("model load failed")
	ErrEmptyModel      = errors.New("model contains no meshes")
	ErrDegenerateModel = errors.New("model has zero extent")
	ErrNoModel         = errors.New("no model loaded")
	ErrLoadImage       = errors.New("decal image load failed")
	ErrSuperseded      = errors.New("superseded by a newer request")
	ErrClosed          = errors.New("session closed")
)

// Defaults for normalizing loaded models.
const (
	DefaultTargetSize     = 20
	DefaultVerticalOffset = -5
)

// Recolor material parameters.
const (
	recolorEmissiveScale     = 0.2
	recolorEmissiveIntensity = 0.5
	recolorRoughness         = 0.5
)

// ModelLoader loads a model hierarchy. The returned root must carry an
// identity transform.
type ModelLoader interface {
	LoadModel(ctx context.Context, source string) (*scene.Node, error)
}

// TextureLoader loads a decal image.
type TextureLoader interface {
	LoadTexture(ctx context.Context, source string) (*scene.Texture, error)
}

// State describes what the session currently holds.
type State int

// Session states.
const (
	StateEmpty State = iota
	StateModel
	StateDecal
)

func (s State) String() string {
	switch s {
	case StateModel:
		return "model"
	case StateDecal:
		return "model+decal"
	default:
		return "empty"
	}
}

// Options configures a Session.
type Options struct {
	Models   ModelLoader
	Textures TextureLoader
	Log      *zap.Logger

	// TargetSize is the largest bounding box dimension after normalization.
	TargetSize float32
	// VerticalOffset is the Y position of the normalized model.
	VerticalOffset float32

	Policy     SurfacePolicy
	Placements *decal.Table
}

// DefaultOptions returns options with the standard normalization, the
// first-mesh policy and the default decal placement.
func DefaultOptions(models ModelLoader, textures TextureLoader) Options {
	return Options{
		Models:         models,
		Textures:       textures,
		TargetSize:     DefaultTargetSize,
		VerticalOffset: DefaultVerticalOffset,
		Policy:         FirstMesh{},
		Placements:     decal.NewTable(decal.DefaultPlacement()),
	}
}

// Snapshot is a consistent view of the session contents.
type Snapshot struct {
	State       State
	Model       *scene.Node
	Surface     *scene.Mesh
	Decal       *scene.Mesh
	ModelSource string
	DecalSource string
}

// Session holds at most one model and at most one decal overlay.
type Session struct {
	opts Options
	log  *zap.Logger

	mu          sync.RWMutex
	model       *scene.Node
	modelSource string
	surface     *scene.Mesh
	decal       *scene.Mesh
	decalSource string
	modelGen    uint64
	decalGen    uint64
	closed      bool
}

// New creates an empty session. Zero-valued options fall back to defaults.
func New(opts Options) *Session {
	if opts.TargetSize <= 0 {
		opts.TargetSize = DefaultTargetSize
	}
	if opts.Policy == nil {
		opts.Policy = FirstMesh{}
	}
	if opts.Placements == nil {
		opts.Placements = decal.NewTable(decal.DefaultPlacement())
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{opts: opts, log: log}
}

// LoadModel replaces the current model with the one at source. The previous
// model and decal are released immediately, before the new model is fetched.
// On failure the session is left without a model.
func (s *Session) LoadModel(ctx context.Context, source string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.modelGen++
	gen := s.modelGen
	s.releaseModelLocked()
	s.mu.Unlock()

	log := s.log.With(zap.String("source", source), zap.Uint64("generation", gen))
	log.Debug("loading model")

	root, err := s.opts.Models.LoadModel(ctx, source)
	if err != nil {
		if s.staleModel(gen) {
			log.Debug("model load superseded", zap.Error(err))
			return ErrSuperseded
		}
		log.Error("model load failed", zap.Error(err))
		return fmt.Errorf("%w: %s: %w", ErrLoadModel, source, err)
	}

	if err := s.normalize(root); err != nil {
		return s.rejectModel(gen, root, log, fmt.Errorf("%s: %w", source, err))
	}
	surface := s.opts.Policy.Select(root)
	if surface == nil {
		return s.rejectModel(gen, root, log.With(zap.String("policy", s.opts.Policy.Name())),
			fmt.Errorf("%s: %w", source, ErrEmptyModel))
	}

	s.mu.Lock()
	if s.closed || gen != s.modelGen {
		s.mu.Unlock()
		root.Dispose()
		log.Debug("model load superseded")
		return ErrSuperseded
	}
	s.model = root
	s.modelSource = source
	s.surface = surface
	s.mu.Unlock()

	log.Info("model loaded",
		zap.Int("meshes", len(root.Meshes())),
		zap.String("surface", surface.Name),
		zap.String("policy", s.opts.Policy.Name()),
		zap.Float32("scale", root.Scale.X))
	return nil
}

// rejectModel releases a loaded model that cannot be installed. A newer
// request takes precedence over the rejection.
func (s *Session) rejectModel(gen uint64, root *scene.Node, log *zap.Logger, err error) error {
	root.Dispose()
	if s.staleModel(gen) {
		log.Debug("model load superseded", zap.Error(err))
		return ErrSuperseded
	}
	log.Error("model rejected", zap.Error(err))
	return err
}

// normalize scales root uniformly so its largest dimension equals the target
// size and moves it to the vertical offset.
func (s *Session) normalize(root *scene.Node) error {
	if len(root.Meshes()) == 0 {
		return ErrEmptyModel
	}
	bounds := scene.ComputeBounds(root)
	if bounds.IsEmpty() {
		return ErrEmptyModel
	}
	maxDim := bounds.Size().MaxComponent()
	if maxDim <= 0 {
		return ErrDegenerateModel
	}

	scale := s.opts.TargetSize / maxDim
	root.Scale = root.Scale.Scale(scale)
	root.Position.X = 0
	root.Position.Y = s.opts.VerticalOffset
	root.Position.Z = 0
	return nil
}

// ApplyDecal projects the image at imageSource onto the primary surface,
// replacing any existing decal. Without a model it returns ErrNoModel and
// changes nothing.
func (s *Session) ApplyDecal(ctx context.Context, imageSource string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.model == nil || s.surface == nil {
		s.mu.Unlock()
		return ErrNoModel
	}
	s.decalGen++
	gen := s.decalGen
	modelGen := s.modelGen
	target := s.surface
	placement := s.opts.Placements.Lookup(assets.BaseName(s.modelSource))
	s.releaseDecalLocked()
	s.mu.Unlock()

	log := s.log.With(zap.String("image", imageSource), zap.Uint64("generation", gen))
	log.Debug("applying decal")

	tex, err := s.opts.Textures.LoadTexture(ctx, imageSource)
	if err != nil {
		if s.staleDecal(gen, modelGen) {
			log.Debug("decal load superseded", zap.Error(err))
			return ErrSuperseded
		}
		log.Error("decal image load failed", zap.Error(err))
		return fmt.Errorf("%w: %s: %w", ErrLoadImage, imageSource, err)
	}

	// The target belongs to an installed model, whose geometry is never
	// written after installation.
	mesh, err := decal.NewMesh(target, placement, tex)
	if err != nil {
		tex.Dispose()
		if s.staleDecal(gen, modelGen) {
			return ErrSuperseded
		}
		log.Warn("decal not applied", zap.Error(err))
		return fmt.Errorf("%s: %w", imageSource, err)
	}

	s.mu.Lock()
	if s.closed || gen != s.decalGen || modelGen != s.modelGen {
		s.mu.Unlock()
		mesh.Dispose()
		log.Debug("decal superseded")
		return ErrSuperseded
	}
	s.decal = mesh
	s.decalSource = imageSource
	s.mu.Unlock()

	log.Info("decal applied",
		zap.String("surface", target.Name),
		zap.Int("triangles", mesh.Geometry.TriangleCount()))
	return nil
}

// SetModelColor gives every mesh of the model a new flat material of color
// c. It reports false when no model is loaded.
func (s *Session) SetModelColor(c scene.Color) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.model == nil {
		return false
	}
	meshes := s.model.Meshes()
	for _, m := range meshes {
		m.SetMaterial(recolorMaterial(c))
	}
	s.log.Debug("model recolored", zap.String("color", c.Hex()), zap.Int("meshes", len(meshes)))
	return true
}

// SetModelColorHex parses a hex color and applies it with SetModelColor.
func (s *Session) SetModelColorHex(hex string) error {
	c, err := scene.ParseColor(hex)
	if err != nil {
		return err
	}
	if !s.SetModelColor(c) {
		return ErrNoModel
	}
	return nil
}

func recolorMaterial(c scene.Color) *scene.StandardMaterial {
	m := scene.NewStandardMaterial()
	m.Color = c
	m.Emissive = c.MultiplyScalar(recolorEmissiveScale)
	m.EmissiveIntensity = recolorEmissiveIntensity
	m.Roughness = recolorRoughness
	return m
}

// Snapshot returns the current contents.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Read calls fn with the current contents while holding the read lock, so
// nothing is replaced or disposed until fn returns. fn must not call back
// into the session's mutating methods.
func (s *Session) Read(fn func(Snapshot)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.snapshotLocked())
}

// State reports what the session holds.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stateLocked()
}

// Policy returns the surface selection policy.
func (s *Session) Policy() SurfacePolicy {
	return s.opts.Policy
}

// Close releases the model and decal. Later operations return ErrClosed and
// in-flight loads are discarded when they complete.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.releaseModelLocked()
	s.log.Debug("session closed")
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		State:       s.stateLocked(),
		Model:       s.model,
		Surface:     s.surface,
		Decal:       s.decal,
		ModelSource: s.modelSource,
		DecalSource: s.decalSource,
	}
}

func (s *Session) stateLocked() State {
	switch {
	case s.model == nil:
		return StateEmpty
	case s.decal == nil:
		return StateModel
	default:
		return StateDecal
	}
}

func (s *Session) staleModel(gen uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed || gen != s.modelGen
}

func (s *Session) staleDecal(gen, modelGen uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed || gen != s.decalGen || modelGen != s.modelGen
}

// releaseModelLocked disposes the decal and the model.
func (s *Session) releaseModelLocked() {
	s.releaseDecalLocked()
	if s.model != nil {
		s.model.Dispose()
		s.model = nil
		s.modelSource = ""
	}
	s.surface = nil
}

func (s *Session) releaseDecalLocked() {
	if s.decal != nil {
		s.decal.Dispose()
		s.decal = nil
		s.decalSource = ""
	}
}
