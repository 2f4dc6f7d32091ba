// Package ui provides ImGui-based user interface components.
package ui

import (
	"fmt"

	"github.com/AllenDang/cimgui-go/backend"
	"github.com/AllenDang/cimgui-go/backend/sdlbackend"
	"github.com/AllenDang/cimgui-go/imgui"
	"github.com/go-gl/gl/v4.1-core/gl"

	"github.com/Faultbox/decalview/internal/scene"
)

// Backend wraps the ImGui SDL backend.
type Backend struct {
	backend backend.Backend[sdlbackend.SDLWindowFlags]
}

// NewBackend creates the window and loads the GL function pointers.
func NewBackend(title string, width, height int, bg scene.Color) (*Backend, error) {
	b := &Backend{}

	var err error
	b.backend, err = backend.CreateBackend(sdlbackend.NewSDLBackend())
	if err != nil {
		return nil, fmt.Errorf("create backend: %w", err)
	}

	r, g, bl := bg.SRGB()
	b.backend.SetBgColor(imgui.NewVec4(r, g, bl, 1.0))
	b.backend.CreateWindow(title, width, height)

	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("init opengl: %w", err)
	}

	return b, nil
}

// Run starts the main render loop.
func (b *Backend) Run(renderFunc func()) {
	b.backend.Run(renderFunc)
}

// SetWindowTitle updates the window title.
func (b *Backend) SetWindowTitle(title string) {
	b.backend.SetWindowTitle(title)
}

// Viewport returns the main viewport work area.
func Viewport() (posX, posY, width, height float32) {
	viewport := imgui.MainViewport()
	workPos := viewport.WorkPos()
	workSize := viewport.WorkSize()
	return workPos.X, workPos.Y, workSize.X, workSize.Y
}

// Drag is pointer input over an image widget.
type Drag struct {
	Hovered bool
	X, Y    float32 // Pointer position relative to the image's top left
	DeltaX  float32
	DeltaY  float32
	Wheel   float32
}

// TextureView shows a GL texture and tracks drags across frames.
type TextureView struct {
	lastPos imgui.Vec2
}

// Draw shows texID at the given size, flipped for GL's bottom left origin,
// and reports pointer input over it.
func (v *TextureView) Draw(texID uint32, width, height float32) Drag {
	texRef := imgui.NewTextureRefTextureID(imgui.TextureID(texID))
	imgui.ImageWithBgV(
		*texRef,
		imgui.NewVec2(width, height),
		imgui.NewVec2(0, 1), // UV flipped
		imgui.NewVec2(1, 0),
		imgui.NewVec4(0, 0, 0, 0),
		imgui.NewVec4(1, 1, 1, 1),
	)

	var d Drag
	if !imgui.IsItemHovered() {
		return d
	}
	d.Hovered = true
	mousePos := imgui.MousePos()
	origin := imgui.ItemRectMin()
	d.X = mousePos.X - origin.X
	d.Y = mousePos.Y - origin.Y
	if imgui.IsMouseDragging(imgui.MouseButtonLeft) {
		d.DeltaX = mousePos.X - v.lastPos.X
		d.DeltaY = mousePos.Y - v.lastPos.Y
	}
	v.lastPos = mousePos
	d.Wheel = imgui.CurrentIO().MouseWheel()
	return d
}

// IsKeyPressed checks if a key was pressed this frame.
func IsKeyPressed(key imgui.Key) bool {
	return imgui.IsKeyChordPressed(imgui.KeyChord(key))
}
