package renderer

import (
	"errors"

	"github.com/go-gl/gl/v4.1-core/gl"

	"github.com/Faultbox/decalview/internal/engine/batch"
	"github.com/Faultbox/decalview/internal/engine/debug"
	"github.com/Faultbox/decalview/internal/scene"
)

var errEmptyGeometry = errors.New("geometry has no vertices")

type gpuMesh struct {
	vao, vbo, ebo uint32
	count         int32
	indexed       bool
}

func uploadMesh(g *scene.Geometry) (*gpuMesh, error) {
	vertices, indices := batch.Pack(g)
	if len(vertices) == 0 {
		return nil, errEmptyGeometry
	}

	gm := &gpuMesh{}
	gl.GenVertexArrays(1, &gm.vao)
	gl.BindVertexArray(gm.vao)

	gl.GenBuffers(1, &gm.vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, gm.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(vertices)*4, gl.Ptr(vertices), gl.STATIC_DRAW)

	if len(indices) > 0 {
		gl.GenBuffers(1, &gm.ebo)
		gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, gm.ebo)
		gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(indices)*4, gl.Ptr(indices), gl.STATIC_DRAW)
		gm.count = int32(len(indices))
		gm.indexed = true
	} else {
		gm.count = int32(len(vertices) / batch.FloatsPerVertex)
	}

	gl.VertexAttribPointerWithOffset(0, 3, gl.FLOAT, false, batch.Stride, batch.PositionOffset)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointerWithOffset(1, 3, gl.FLOAT, false, batch.Stride, batch.NormalOffset)
	gl.EnableVertexAttribArray(1)
	gl.VertexAttribPointerWithOffset(2, 2, gl.FLOAT, false, batch.Stride, batch.UVOffset)
	gl.EnableVertexAttribArray(2)

	gl.BindVertexArray(0)
	return gm, nil
}

func (gm *gpuMesh) draw() {
	gl.BindVertexArray(gm.vao)
	if gm.indexed {
		gl.DrawElementsWithOffset(gl.TRIANGLES, gm.count, gl.UNSIGNED_INT, 0)
	} else {
		gl.DrawArrays(gl.TRIANGLES, 0, gm.count)
	}
}

func (gm *gpuMesh) delete() {
	gl.DeleteVertexArrays(1, &gm.vao)
	gl.DeleteBuffers(1, &gm.vbo)
	if gm.ebo != 0 {
		gl.DeleteBuffers(1, &gm.ebo)
	}
}

func uploadTexture(t *scene.Texture) uint32 {
	img := t.Image
	w, h := t.Size()

	internal := int32(gl.RGBA8)
	if t.ColorSpace == scene.SRGBColorSpace {
		internal = gl.SRGB8_ALPHA8
	}

	var id uint32
	gl.GenTextures(1, &id)
	gl.BindTexture(gl.TEXTURE_2D, id)
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	gl.PixelStorei(gl.UNPACK_ROW_LENGTH, int32(img.Stride/4))
	gl.TexImage2D(gl.TEXTURE_2D, 0, internal, int32(w), int32(h), 0,
		gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(img.Pix))
	gl.PixelStorei(gl.UNPACK_ROW_LENGTH, 0)

	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR_MIPMAP_LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, wrapMode(t.WrapS))
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, wrapMode(t.WrapT))
	gl.GenerateMipmap(gl.TEXTURE_2D)

	return id
}

func wrapMode(w scene.Wrap) int32 {
	if w == scene.ClampToEdgeWrapping {
		return gl.CLAMP_TO_EDGE
	}
	return gl.REPEAT
}

// uploadWhite creates the 1x1 texture bound when a material has no map.
func uploadWhite() uint32 {
	pixel := []uint8{255, 255, 255, 255}
	var id uint32
	gl.GenTextures(1, &id)
	gl.BindTexture(gl.TEXTURE_2D, id)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, 1, 1, 0, gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(pixel))
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.NEAREST)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.NEAREST)
	return id
}

// lineBuffer is a dynamic buffer of debug line vertices.
type lineBuffer struct {
	vao, vbo uint32
	count    int32
}

func newLineBuffer() *lineBuffer {
	lb := &lineBuffer{}
	gl.GenVertexArrays(1, &lb.vao)
	gl.BindVertexArray(lb.vao)
	gl.GenBuffers(1, &lb.vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, lb.vbo)

	stride := int32(debug.FloatsPerLineVertex * 4)
	gl.VertexAttribPointerWithOffset(0, 3, gl.FLOAT, false, stride, 0)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointerWithOffset(1, 3, gl.FLOAT, false, stride, 12)
	gl.EnableVertexAttribArray(1)

	gl.BindVertexArray(0)
	return lb
}

func (lb *lineBuffer) set(vertices []debug.LineVertex) {
	lb.count = int32(len(vertices))
	if lb.count == 0 {
		return
	}
	data := debug.Pack(vertices)
	gl.BindBuffer(gl.ARRAY_BUFFER, lb.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(data)*4, gl.Ptr(data), gl.DYNAMIC_DRAW)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
}

func (lb *lineBuffer) draw() {
	if lb.count == 0 {
		return
	}
	gl.BindVertexArray(lb.vao)
	gl.DrawArrays(gl.LINES, 0, lb.count)
}

func (lb *lineBuffer) delete() {
	gl.DeleteVertexArrays(1, &lb.vao)
	gl.DeleteBuffers(1, &lb.vbo)
}
