package scene

// Side selects which triangle faces are drawn.
type Side int

// Face culling modes.
const (
	FrontSide Side = iota
	BackSide
	DoubleSide
)

// Material describes how a mesh is shaded.
type Material interface {
	Dispose()
	Disposed() bool
	// Texture returns the color map, or nil.
	Texture() *Texture
}

// StandardMaterial is a lit, physically based material.
type StandardMaterial struct {
	resource

	Name              string
	Color             Color
	Map               *Texture
	Emissive          Color
	EmissiveIntensity float32
	Roughness         float32
	Metalness         float32
	Side              Side
}

// NewStandardMaterial returns a white material with the glTF defaults.
func NewStandardMaterial() *StandardMaterial {
	return &StandardMaterial{
		Color:             White,
		EmissiveIntensity: 1,
		Roughness:         1,
		Metalness:         0,
	}
}

// Texture returns the base color map.
func (m *StandardMaterial) Texture() *Texture {
	return m.Map
}

// Dispose releases the material and its color map.
func (m *StandardMaterial) Dispose() {
	m.resource.Dispose()
	if m.Map != nil {
		m.Map.Dispose()
	}
}

// BasicMaterial is an unlit material, used for overlays.
type BasicMaterial struct {
	resource

	Color       Color
	Map         *Texture
	Transparent bool
	Opacity     float32
	Side        Side
	DepthTest   bool
	DepthWrite  bool

	// PolygonOffset shifts depth values by
	// factor*slope + units*r; negative values pull toward the camera.
	PolygonOffset       bool
	PolygonOffsetFactor float32
	PolygonOffsetUnits  float32
}

// NewBasicMaterial returns an opaque white material with depth testing and
// writing enabled.
func NewBasicMaterial() *BasicMaterial {
	return &BasicMaterial{
		Color:      White,
		Opacity:    1,
		DepthTest:  true,
		DepthWrite: true,
	}
}

// Texture returns the color map.
func (m *BasicMaterial) Texture() *Texture {
	return m.Map
}

// Dispose releases the material and its color map.
func (m *BasicMaterial) Dispose() {
	m.resource.Dispose()
	if m.Map != nil {
		m.Map.Dispose()
	}
}
