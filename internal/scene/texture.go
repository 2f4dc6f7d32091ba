package scene

import "image"

// Wrap is a texture addressing mode.
type Wrap int

// Addressing modes.
const (
	RepeatWrapping Wrap = iota
	ClampToEdgeWrapping
)

// ColorSpace tells the renderer how to interpret texel values.
type ColorSpace int

// Texture color spaces.
const (
	LinearColorSpace ColorSpace = iota
	SRGBColorSpace
)

// Texture is a CPU-side image plus sampling parameters.
type Texture struct {
	resource

	Name       string
	Image      *image.NRGBA
	WrapS      Wrap
	WrapT      Wrap
	ColorSpace ColorSpace

	// FlipY uploads the image bottom row first, so v=0 samples the bottom
	// of the picture.
	FlipY bool
}

// NewTexture wraps img with repeat wrapping in linear color space.
func NewTexture(name string, img *image.NRGBA) *Texture {
	return &Texture{Name: name, Image: img}
}

// Size returns the image dimensions.
func (t *Texture) Size() (int, int) {
	if t.Image == nil {
		return 0, 0
	}
	b := t.Image.Bounds()
	return b.Dx(), b.Dy()
}
