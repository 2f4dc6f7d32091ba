package main

import (
	"errors"

	"github.com/sqweek/dialog"
	"go.uber.org/zap"

	"github.com/Faultbox/decalview/internal/viewer"
)

// openModelDialog shows a native file dialog for a glTF model.
func (app *App) openModelDialog() {
	// Run in goroutine to not block the UI; the result is applied on the
	// render thread by processPicks.
	go func() {
		filename, err := dialog.File().
			Filter("glTF Models", "glb", "gltf").
			Filter("All Files", "*").
			Title("Open Model").
			Load()
		app.deliver(viewer.KindModel, filename, err)
	}()
}

// openImageDialog shows a native file dialog for a decal image.
func (app *App) openImageDialog() {
	go func() {
		filename, err := dialog.File().
			Filter("Images", "png", "jpg", "jpeg", "gif", "bmp", "webp", "tga").
			Filter("All Files", "*").
			Title("Open Decal Image").
			Load()
		app.deliver(viewer.KindDecal, filename, err)
	}()
}

func (app *App) deliver(kind viewer.Kind, filename string, err error) {
	if err != nil {
		if !errors.Is(err, dialog.ErrCancelled) {
			app.log.Error("file dialog failed", zap.Error(err))
		}
		return
	}
	app.picks <- pick{kind: kind, path: filename}
}

// alert shows a blocking message box without stalling the render loop.
func (app *App) alert(msg string) {
	go dialog.Message("%s", msg).Title(app.cfg.Window.Title).Info()
}
