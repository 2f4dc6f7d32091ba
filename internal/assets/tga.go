package assets

import (
	"errors"
	"fmt"
	"image"
	"image/color"
)

// TGA image type constants.
const (
	TGATypeUncompressed = 2  // Uncompressed true-color
	TGATypeGray         = 3  // Uncompressed grayscale
	TGATypeRLE          = 10 // RLE compressed true-color
	TGATypeRLEGray      = 11 // RLE compressed grayscale
)

const (
	tgaHeaderSize            = 18
	tgaDescriptorTopToBottom = 0x20
)

var errTGATruncated = errors.New("TGA pixel data truncated")

// DecodeTGA decodes a TGA image. Supports true-color (24/32 bit) and
// grayscale (8 bit) images, uncompressed or RLE compressed.
func DecodeTGA(data []byte) (*image.NRGBA, error) {
	if len(data) < tgaHeaderSize {
		return nil, fmt.Errorf("TGA data too short")
	}

	idLength := int(data[0])
	colorMapType := data[1]
	imageType := data[2]
	width := int(data[12]) | int(data[13])<<8
	height := int(data[14]) | int(data[15])<<8
	bpp := int(data[16])
	descriptor := data[17]

	if colorMapType != 0 {
		return nil, fmt.Errorf("color-mapped TGA not supported")
	}

	gray := imageType == TGATypeGray || imageType == TGATypeRLEGray
	switch imageType {
	case TGATypeUncompressed, TGATypeRLE:
		if bpp != 24 && bpp != 32 {
			return nil, fmt.Errorf("unsupported TGA bit depth %d (only 24/32 supported)", bpp)
		}
	case TGATypeGray, TGATypeRLEGray:
		if bpp != 8 {
			return nil, fmt.Errorf("unsupported grayscale TGA bit depth %d", bpp)
		}
	default:
		return nil, fmt.Errorf("unsupported TGA type %d", imageType)
	}
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("TGA has zero size %dx%d", width, height)
	}

	offset := tgaHeaderSize + idLength
	if offset > len(data) {
		return nil, fmt.Errorf("TGA data truncated")
	}

	d := &tgaDecoder{
		img:           image.NewNRGBA(image.Rect(0, 0, width, height)),
		pix:           data[offset:],
		width:         width,
		height:        height,
		bytesPerPixel: bpp / 8,
		gray:          gray,
		topToBottom:   descriptor&tgaDescriptorTopToBottom != 0,
	}

	var err error
	if imageType == TGATypeRLE || imageType == TGATypeRLEGray {
		err = d.decodeRLE()
	} else {
		err = d.decodeRaw()
	}
	if err != nil {
		return nil, err
	}
	return d.img, nil
}

type tgaDecoder struct {
	img           *image.NRGBA
	pix           []byte
	width         int
	height        int
	bytesPerPixel int
	gray          bool
	topToBottom   bool
}

// pixel reads the color stored at byte offset i.
func (d *tgaDecoder) pixel(i int) color.NRGBA {
	if d.gray {
		v := d.pix[i]
		return color.NRGBA{R: v, G: v, B: v, A: 255}
	}
	c := color.NRGBA{R: d.pix[i+2], G: d.pix[i+1], B: d.pix[i], A: 255}
	if d.bytesPerPixel == 4 {
		c.A = d.pix[i+3]
	}
	return c
}

// set stores the n-th pixel in file order.
func (d *tgaDecoder) set(n int, c color.NRGBA) {
	x := n % d.width
	y := n / d.width
	if !d.topToBottom {
		y = d.height - 1 - y
	}
	d.img.SetNRGBA(x, y, c)
}

func (d *tgaDecoder) decodeRaw() error {
	count := d.width * d.height
	if len(d.pix) < count*d.bytesPerPixel {
		return errTGATruncated
	}
	for n := 0; n < count; n++ {
		d.set(n, d.pixel(n*d.bytesPerPixel))
	}
	return nil
}

func (d *tgaDecoder) decodeRLE() error {
	pixelCount := d.width * d.height
	pixelIdx := 0
	dataIdx := 0

	for pixelIdx < pixelCount {
		if dataIdx >= len(d.pix) {
			return errTGATruncated
		}
		packet := d.pix[dataIdx]
		dataIdx++
		count := int(packet&0x7F) + 1

		if packet&0x80 != 0 {
			// Run packet: one pixel repeated count times.
			if dataIdx+d.bytesPerPixel > len(d.pix) {
				return errTGATruncated
			}
			c := d.pixel(dataIdx)
			dataIdx += d.bytesPerPixel
			for i := 0; i < count && pixelIdx < pixelCount; i++ {
				d.set(pixelIdx, c)
				pixelIdx++
			}
			continue
		}

		for i := 0; i < count && pixelIdx < pixelCount; i++ {
			if dataIdx+d.bytesPerPixel > len(d.pix) {
				return errTGATruncated
			}
			d.set(pixelIdx, d.pixel(dataIdx))
			dataIdx += d.bytesPerPixel
			pixelIdx++
		}
	}

	return nil
}
