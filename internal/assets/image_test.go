package assets

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"
)

func encodePNG(t *testing.T, w, h int, c color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return buf.Bytes()
}

// tgaHeader builds an 18 byte header for a w x h image.
func tgaHeader(imageType byte, w, h int, bpp byte, descriptor byte) []byte {
	hdr := make([]byte, 18)
	hdr[2] = imageType
	hdr[12], hdr[13] = byte(w), byte(w>>8)
	hdr[14], hdr[15] = byte(h), byte(h>>8)
	hdr[16] = bpp
	hdr[17] = descriptor
	return hdr
}

func TestDecodeTGAUncompressed(t *testing.T) {
	// 2x2, bottom-to-top, 32 bit BGRA.
	data := tgaHeader(TGATypeUncompressed, 2, 2, 32, 0)
	data = append(data,
		0, 0, 255, 255,     // bottom-left red
		0, 255, 0, 255,     // bottom-right green
		255, 0, 0, 255,     // top-left blue
		255, 255, 255, 128, // top-right half-transparent white
	)

	img, err := DecodeTGA(data)
	if err != nil {
		t.Fatalf("DecodeTGA: %v", err)
	}

	tests := []struct {
		x, y int
		want color.NRGBA
	}{
		{0, 1, color.NRGBA{R: 255, A: 255}},
		{1, 1, color.NRGBA{G: 255, A: 255}},
		{0, 0, color.NRGBA{B: 255, A: 255}},
		{1, 0, color.NRGBA{R: 255, G: 255, B: 255, A: 128}},
	}
	for _, tt := range tests {
		if got := img.NRGBAAt(tt.x, tt.y); got != tt.want {
			t.Errorf("pixel (%d,%d) = %v, want %v", tt.x, tt.y, got, tt.want)
		}
	}
}

func TestDecodeTGARLE(t *testing.T) {
	// 3x1 top-to-bottom 24 bit: run of two red pixels, then one raw blue.
	data := tgaHeader(TGATypeRLE, 3, 1, 24, tgaDescriptorTopToBottom)
	data = append(data,
		0x81, 0, 0, 255,
		0x00, 255, 0, 0,
	)

	img, err := DecodeTGA(data)
	if err != nil {
		t.Fatalf("DecodeTGA: %v", err)
	}
	red := color.NRGBA{R: 255, A: 255}
	blue := color.NRGBA{B: 255, A: 255}
	for x, want := range []color.NRGBA{red, red, blue} {
		if got := img.NRGBAAt(x, 0); got != want {
			t.Errorf("pixel %d = %v, want %v", x, got, want)
		}
	}
}

func TestDecodeTGAGray(t *testing.T) {
	data := tgaHeader(TGATypeGray, 2, 1, 8, tgaDescriptorTopToBottom)
	data = append(data, 10, 200)

	img, err := DecodeTGA(data)
	if err != nil {
		t.Fatalf("DecodeTGA: %v", err)
	}
	if got := img.NRGBAAt(1, 0); got != (color.NRGBA{R: 200, G: 200, B: 200, A: 255}) {
		t.Errorf("pixel = %v", got)
	}
}

func TestDecodeTGAErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"short", []byte{1, 2, 3}},
		{"colormapped", func() []byte {
			h := tgaHeader(TGATypeUncompressed, 1, 1, 24, 0)
			h[1] = 1
			return h
		}()},
		{"bad type", tgaHeader(1, 1, 1, 24, 0)},
		{"bad depth", tgaHeader(TGATypeUncompressed, 1, 1, 16, 0)},
		{"zero size", tgaHeader(TGATypeUncompressed, 0, 1, 24, 0)},
		{"truncated raw", append(tgaHeader(TGATypeUncompressed, 2, 2, 24, 0), 1, 2, 3)},
		{"truncated rle", append(tgaHeader(TGATypeRLE, 4, 1, 24, 0), 0x81, 0, 0, 255)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeTGA(tt.data); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestDecodeImage(t *testing.T) {
	pngData := encodePNG(t, 4, 2, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	tga := append(tgaHeader(TGATypeUncompressed, 1, 1, 24, 0), 30, 20, 10)

	tests := []struct {
		name    string
		source  string
		data    []byte
		maxSize int
		wantW   int
		wantH   int
		wantErr error
	}{
		{"png", "a.png", pngData, 0, 4, 2, nil},
		{"png downscaled", "a.png", pngData, 2, 2, 1, nil},
		{"png name ignored", "a.bin", pngData, 0, 4, 2, nil},
		{"tga by extension", "decal.TGA", tga, 0, 1, 1, nil},
		{"garbage", "x.png", []byte("not an image"), 0, 0, 0, ErrUnsupportedFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := DecodeImage(tt.source, tt.data, tt.maxSize)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeImage: %v", err)
			}
			b := img.Bounds()
			if b.Dx() != tt.wantW || b.Dy() != tt.wantH {
				t.Errorf("size = %dx%d, want %dx%d", b.Dx(), b.Dy(), tt.wantW, tt.wantH)
			}
		})
	}
}

func TestFitImageTall(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 10, 40))
	got := FitImage(img, 20).Bounds()
	if got.Dx() != 5 || got.Dy() != 20 {
		t.Errorf("size = %dx%d, want 5x20", got.Dx(), got.Dy())
	}
}

func TestImageToNRGBAOffsetOrigin(t *testing.T) {
	src := image.NewRGBA(image.Rect(5, 5, 7, 6))
	src.Set(6, 5, color.RGBA{R: 255, A: 255})

	got := ImageToNRGBA(src)
	if got.Bounds() != image.Rect(0, 0, 2, 1) {
		t.Fatalf("bounds = %v", got.Bounds())
	}
	if c := got.NRGBAAt(1, 0); c != (color.NRGBA{R: 255, A: 255}) {
		t.Errorf("pixel = %v", c)
	}
}

func TestSniff(t *testing.T) {
	pngData := encodePNG(t, 1, 1, color.NRGBA{A: 255})
	tests := []struct {
		name   string
		source string
		data   []byte
		want   Format
	}{
		{"glb", "m.glb", append([]byte("glTF"), 2, 0, 0, 0), FormatGLB},
		{"gltf json", "m.gltf", []byte("  \n{\"asset\":{}}"), FormatGLTF},
		{"png", "p.png", pngData, FormatImage},
		{"tga", "p.tga", []byte{0, 0, 2}, FormatTGA},
		{"unknown", "p.txt", []byte("hello"), FormatUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sniff(tt.source, tt.data); got != tt.want {
				t.Errorf("Sniff = %v, want %v", got, tt.want)
			}
		})
	}
	if got := MIME(pngData); got != "image/png" {
		t.Errorf("MIME = %q, want image/png", got)
	}
}

func TestImageLoaderLoadTexture(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "patterns/dots.png", encodePNG(t, 8, 8, color.NRGBA{G: 255, A: 255}))

	l := NewImageLoader(NewManager(time.Second), 4)
	tex, err := l.LoadTexture(context.Background(), p)
	if err != nil {
		t.Fatalf("LoadTexture: %v", err)
	}
	if tex.Name != "dots.png" {
		t.Errorf("name = %q", tex.Name)
	}
	if w, h := tex.Size(); w != 4 || h != 4 {
		t.Errorf("size = %dx%d, want 4x4", w, h)
	}
}
