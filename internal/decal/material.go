package decal

import "github.com/Faultbox/decalview/internal/scene"

// polygonOffsetFactor pulls the overlay toward the camera so it wins the
// depth test against the surface it was cut from.
const polygonOffsetFactor = -4

// NewMaterial returns the overlay material for tex and configures tex for
// projection: clamped edges, sRGB, rows flipped so the top of the image maps
// to the top of the box.
func NewMaterial(tex *scene.Texture) *scene.BasicMaterial {
	if tex != nil {
		tex.WrapS = scene.ClampToEdgeWrapping
		tex.WrapT = scene.ClampToEdgeWrapping
		tex.ColorSpace = scene.SRGBColorSpace
		tex.FlipY = true
	}

	m := scene.NewBasicMaterial()
	m.Map = tex
	m.Transparent = true
	m.Opacity = 1
	m.Side = scene.FrontSide
	m.DepthTest = true
	m.DepthWrite = false
	m.PolygonOffset = true
	m.PolygonOffsetFactor = polygonOffsetFactor
	return m
}

// NewMesh builds the overlay mesh for target. On error nothing is retained
// and tex is left untouched.
func NewMesh(target *scene.Mesh, p Placement, tex *scene.Texture) (*scene.Mesh, error) {
	geo, err := Build(target, p)
	if err != nil {
		return nil, err
	}
	name := "decal"
	if tex != nil && tex.Name != "" {
		name = "decal:" + tex.Name
	}
	return scene.NewMesh(name, geo, NewMaterial(tex)), nil
}
