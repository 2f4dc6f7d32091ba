package assets

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"  // register GIF
	_ "image/jpeg" // register JPEG
	_ "image/png"  // register PNG

	"github.com/anthonynsimon/bild/transform"
	_ "golang.org/x/image/bmp"  // register BMP
	_ "golang.org/x/image/webp" // register WebP

	"github.com/Faultbox/decalview/internal/scene"
)

// DecodeImage decodes PNG, JPEG, GIF, BMP, WebP or TGA data. Images larger
// than maxSize on either side are scaled down preserving the aspect ratio;
// maxSize <= 0 keeps the original size.
func DecodeImage(name string, data []byte, maxSize int) (*image.NRGBA, error) {
	var (
		img image.Image
		err error
	)
	switch Sniff(name, data) {
	case FormatImage:
		img, _, err = image.Decode(bytes.NewReader(data))
	case FormatTGA:
		img, err = DecodeTGA(data)
	default:
		return nil, fmt.Errorf("decoding %s: %w", name, ErrUnsupportedFormat)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", name, err)
	}

	return FitImage(ImageToNRGBA(img), maxSize), nil
}

// FitImage scales img down so neither side exceeds maxSize.
func FitImage(img *image.NRGBA, maxSize int) *image.NRGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxSize <= 0 || (w <= maxSize && h <= maxSize) {
		return img
	}
	if w >= h {
		h = max(1, h*maxSize/w)
		w = maxSize
	} else {
		w = max(1, w*maxSize/h)
		h = maxSize
	}
	return ImageToNRGBA(transform.Resize(img, w, h, transform.Linear))
}

// ImageToNRGBA converts any image.Image to a zero-origin *image.NRGBA.
func ImageToNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Bounds().Min == (image.Point{}) {
		return n
	}
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

// ImageLoader turns image sources into textures.
type ImageLoader struct {
	fetcher Fetcher
	maxSize int
}

// NewImageLoader creates a loader that fetches through f and caps textures
// at maxSize pixels per side.
func NewImageLoader(f Fetcher, maxSize int) *ImageLoader {
	return &ImageLoader{fetcher: f, maxSize: maxSize}
}

// LoadTexture fetches and decodes source.
func (l *ImageLoader) LoadTexture(ctx context.Context, source string) (*scene.Texture, error) {
	data, err := l.fetcher.Load(ctx, source)
	if err != nil {
		return nil, err
	}
	img, err := DecodeImage(source, data, l.maxSize)
	if err != nil {
		return nil, err
	}
	return scene.NewTexture(BaseName(source), img), nil
}
