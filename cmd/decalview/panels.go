package main

import (
	"fmt"
	"path/filepath"

	"github.com/AllenDang/cimgui-go/imgui"
	"go.uber.org/zap"

	"github.com/Faultbox/decalview/internal/engine/picking"
	"github.com/Faultbox/decalview/internal/engine/renderer"
	"github.com/Faultbox/decalview/internal/scene"
	"github.com/Faultbox/decalview/internal/session"
	"github.com/Faultbox/decalview/internal/viewer"
	"github.com/Faultbox/decalview/pkg/math"
)

// renderControls draws the model, color and pattern buttons.
func (app *App) renderControls() {
	assets := app.cfg.Assets

	imgui.Text("Models")
	for i, model := range assets.Models {
		if imgui.ButtonV(fmt.Sprintf("Load model %d##model%d", i+1, i), imgui.NewVec2(-1, 0)) {
			app.loadModel(model)
		}
		if imgui.IsItemHovered() {
			imgui.SetTooltip(model)
		}
	}
	if imgui.ButtonV("Open model...", imgui.NewVec2(-1, 0)) {
		app.openModelDialog()
	}

	imgui.Spacing()
	imgui.Separator()
	imgui.Text("Colors")
	for i, hex := range assets.Colors {
		if i > 0 && i%3 != 0 {
			imgui.SameLine()
		}
		if imgui.ButtonV(fmt.Sprintf("%s##color%d", hex, i), imgui.NewVec2(72, 0)) {
			app.setColor(hex)
		}
	}

	imgui.Spacing()
	imgui.Separator()
	imgui.Text("Decals")
	for i, pattern := range assets.Patterns {
		if imgui.ButtonV(fmt.Sprintf("Apply pattern %d##pattern%d", i+1, i), imgui.NewVec2(-1, 0)) {
			app.applyDecal(pattern)
		}
		if imgui.IsItemHovered() {
			imgui.SetTooltip(pattern)
		}
	}
	if imgui.ButtonV("Open image...", imgui.NewVec2(-1, 0)) {
		app.openImageDialog()
	}

	imgui.Spacing()
	imgui.Separator()
	app.renderViewOptions()
}

func (app *App) renderViewOptions() {
	imgui.Text("View")
	opts := app.renderer.Options()
	changed := imgui.Checkbox("Axes", &opts.ShowAxes)
	changed = imgui.Checkbox("Bounds", &opts.ShowBounds) || changed
	if changed {
		app.renderer.SetOptions(opts)
		app.cfg.Viewer.ShowAxes = opts.ShowAxes
		app.cfg.Viewer.ShowBounds = opts.ShowBounds
	}

	if imgui.ButtonV("Reset view", imgui.NewVec2(-1, 0)) {
		app.camera = newCamera(app.cfg.Camera)
	}
	if imgui.ButtonV("Frame model", imgui.NewVec2(-1, 0)) {
		app.viewer.Session().Read(func(s session.Snapshot) {
			if s.Model != nil {
				app.camera.FitToBounds(scene.ComputeBounds(s.Model))
			}
		})
	}
	if imgui.ButtonV("Save settings", imgui.NewVec2(-1, 0)) {
		path, err := app.cfg.Save()
		if err != nil {
			app.log.Error("saving settings", zap.Error(err))
			app.setStatus(err.Error(), true)
		} else {
			app.setStatus("Settings saved to "+path, false)
		}
	}
	imgui.TextDisabled("(Drag to rotate, scroll to zoom, F12 screenshot)")
}

// renderScene draws the 3D view sized to the panel.
func (app *App) renderScene() {
	avail := imgui.ContentRegionAvail()
	if avail.X < 1 || avail.Y < 1 {
		return
	}
	app.target.Resize(int32(avail.X), int32(avail.Y))
	app.camera.Update()

	drag := app.view.Draw(app.target.ColorTexture(), avail.X, avail.Y)

	app.viewer.Session().Read(func(s session.Snapshot) {
		frame := renderer.Frame{Model: s.Model}
		if s.Decal != nil {
			frame.Overlays = append(frame.Overlays, s.Decal)
		}
		app.renderer.Render(app.target, app.camera, frame)
		if !drag.Hovered || s.Model == nil {
			app.hover = hoverState{}
			return
		}
		h := hoverState{model: s.Model, eye: app.camera.Position(), x: drag.X, y: drag.Y}
		if h != app.hover.key() {
			h.name = app.pick(s.Model, drag.X, drag.Y, avail.X, avail.Y)
			app.hover = h
		}
	})

	if drag.DeltaX != 0 || drag.DeltaY != 0 {
		app.camera.HandleDrag(drag.DeltaX, drag.DeltaY)
	}
	if drag.Wheel != 0 {
		app.camera.HandleZoom(drag.Wheel)
	}
}

func (app *App) renderStatusBar() {
	snap := app.viewer.Session().Snapshot()

	if app.statusIsErr {
		imgui.TextColored(imgui.NewVec4(0.9, 0.2, 0.2, 1), app.status)
	} else {
		imgui.Text(app.status)
	}

	imgui.SameLine()
	imgui.TextDisabled(fmt.Sprintf("| %s", snap.State))
	if snap.ModelSource != "" {
		imgui.SameLine()
		imgui.TextDisabled(fmt.Sprintf("| model %s", filepath.Base(snap.ModelSource)))
	}
	if snap.Surface != nil {
		imgui.SameLine()
		imgui.TextDisabled(fmt.Sprintf("| surface %s (%s)", snap.Surface.Name, app.viewer.Session().Policy().Name()))
	}
	if n := len(app.pending); n > 0 {
		imgui.SameLine()
		imgui.TextDisabled(fmt.Sprintf("| %d loading", n))
	}
	if app.hover.name != "" {
		imgui.SameLine()
		imgui.TextDisabled(fmt.Sprintf("| pointer %s", app.hover.name))
	}
	stats := app.renderer.Stats()
	imgui.SameLine()
	imgui.TextDisabled(fmt.Sprintf("| %d meshes, %d textures, %d draws", stats.Meshes, stats.Textures, stats.Draws))
}

// hoverState caches the last pick so a still pointer costs nothing.
type hoverState struct {
	model *scene.Node
	eye   math.Vec3
	x, y  float32
	name  string
}

func (h hoverState) key() hoverState {
	h.name = ""
	return h
}

// pick names the mesh under the pointer.
func (app *App) pick(model *scene.Node, x, y, w, h float32) string {
	inv := app.camera.ProjectionMatrix(w / h).Mul(app.camera.ViewMatrix()).Inverse()
	hit, ok := picking.Pick(model, picking.ScreenToRay(x, y, w, h, inv))
	if !ok {
		return ""
	}
	if hit.Mesh.Name == "" {
		return "(unnamed mesh)"
	}
	return hit.Mesh.Name
}

// processPicks handles files chosen in dialogs since the last frame.
func (app *App) processPicks() {
	for {
		select {
		case p := <-app.picks:
			switch p.kind {
			case viewer.KindModel:
				app.loadModel(p.path)
			case viewer.KindDecal:
				app.applyDecal(p.path)
			}
		default:
			return
		}
	}
}
