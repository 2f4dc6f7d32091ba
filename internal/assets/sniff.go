package assets

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
)

// ErrUnsupportedFormat is returned for content that is neither a known model
// nor a known image format.
var ErrUnsupportedFormat = errors.New("unsupported format")

// Format identifies the content of an asset.
type Format int

// Recognized formats.
const (
	FormatUnknown Format = iota
	FormatGLB
	FormatGLTF
	FormatImage
	FormatTGA
)

func (f Format) String() string {
	switch f {
	case FormatGLB:
		return "glb"
	case FormatGLTF:
		return "gltf"
	case FormatImage:
		return "image"
	case FormatTGA:
		return "tga"
	default:
		return "unknown"
	}
}

var glbMagic = []byte("glTF")

// Sniff guesses the format of data. The name is only consulted for formats
// without a signature (TGA).
func Sniff(name string, data []byte) Format {
	if bytes.HasPrefix(data, glbMagic) {
		return FormatGLB
	}
	if trimmed := bytes.TrimLeft(data, " \t\r\n\ufeff"); len(trimmed) > 0 && trimmed[0] == '{' {
		return FormatGLTF
	}
	if filetype.IsImage(data) {
		return FormatImage
	}
	if strings.EqualFold(filepath.Ext(stripQuery(name)), ".tga") {
		return FormatTGA
	}
	return FormatUnknown
}

// MIME returns the detected media type of data, or "" when unknown.
func MIME(data []byte) string {
	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown {
		return ""
	}
	return kind.MIME.Value
}

// BaseName returns the last path element of a file path or URL, without any
// query string.
func BaseName(source string) string {
	source = stripQuery(source)
	if i := strings.LastIndexAny(source, `/\`); i >= 0 {
		source = source[i+1:]
	}
	return source
}

func stripQuery(source string) string {
	if i := strings.IndexAny(source, "?#"); i >= 0 {
		return source[:i]
	}
	return source
}
