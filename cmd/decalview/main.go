// Decal Viewer - loads glTF models, recolors them and projects decal images
// onto their surface.
package main

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/AllenDang/cimgui-go/imgui"
	"go.uber.org/zap"

	"github.com/Faultbox/decalview/internal/config"
	"github.com/Faultbox/decalview/internal/engine/camera"
	"github.com/Faultbox/decalview/internal/engine/debug"
	"github.com/Faultbox/decalview/internal/engine/framebuffer"
	"github.com/Faultbox/decalview/internal/engine/lighting"
	"github.com/Faultbox/decalview/internal/engine/renderer"
	"github.com/Faultbox/decalview/internal/engine/ui"
	"github.com/Faultbox/decalview/internal/logger"
	"github.com/Faultbox/decalview/internal/scene"
	"github.com/Faultbox/decalview/internal/session"
	"github.com/Faultbox/decalview/internal/viewer"
	"github.com/Faultbox/decalview/pkg/math"
)

func main() {
	runtime.LockOSThread()

	config.ParseFlags()
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("=== Decal Viewer ===")
	logger.Sugar.Debugf("Config: %+v", cfg)

	app, err := NewApp(cfg)
	if err != nil {
		logger.Error("failed to start viewer", zap.Error(err))
		os.Exit(1)
	}
	defer app.Close()

	if model := cfg.StartupModel(); model != "" {
		app.loadModel(model)
	}

	app.Run()
	logger.Info("viewer closed normally")
}

// pick is a file chosen in a native dialog.
type pick struct {
	kind viewer.Kind
	path string
}

// App is the viewer application state.
type App struct {
	cfg *config.Config
	log *zap.Logger

	backend  *ui.Backend
	viewer   *viewer.Viewer
	renderer *renderer.Renderer
	target   *framebuffer.Framebuffer
	camera   *camera.OrbitCamera
	view     ui.TextureView
	shots    *debug.ScreenshotCapture

	// Dialog results, delivered to the render thread.
	picks chan pick

	// Status bar
	status      string
	statusIsErr bool
	pending     map[viewer.Kind]string
	hover       hoverState

	screenshotRequested bool
}

// NewApp creates the window, GL resources and the viewer.
func NewApp(cfg *config.Config) (*App, error) {
	bg, err := scene.ParseColor(cfg.Viewer.Background)
	if err != nil {
		return nil, err
	}

	app := &App{
		cfg:     cfg,
		log:     logger.Named("app"),
		picks:   make(chan pick, 4),
		pending: make(map[viewer.Kind]string),
		status:  "Ready",
		shots:   debug.NewScreenshotCapture(os.TempDir(), "decalview"),
	}

	app.backend, err = ui.NewBackend(cfg.Window.Title, cfg.Window.Width, cfg.Window.Height, bg)
	if err != nil {
		return nil, err
	}

	app.renderer, err = renderer.New(renderer.Options{
		Background: bg,
		Lights:     lighting.DefaultRig(),
		ShowAxes:   cfg.Viewer.ShowAxes,
		AxesLength: cfg.Viewer.AxesLength,
		ShowBounds: cfg.Viewer.ShowBounds,
	}, logger.Named("renderer"))
	if err != nil {
		return nil, fmt.Errorf("create renderer: %w", err)
	}

	app.target, err = framebuffer.New(int32(cfg.Window.Width), int32(cfg.Window.Height))
	if err != nil {
		app.renderer.Close()
		return nil, err
	}

	app.camera = newCamera(cfg.Camera)

	app.viewer, err = viewer.New(cfg, logger.Named("viewer"))
	if err != nil {
		app.target.Destroy()
		app.renderer.Close()
		return nil, err
	}

	return app, nil
}

func newCamera(c config.CameraConfig) *camera.OrbitCamera {
	cam := camera.NewOrbitCamera(math.FromArray(c.Position), math.FromArray(c.Target), c.FOVRadians(), c.Near, c.Far)
	cam.Damping = c.Damping
	return cam
}

// Run starts the main application loop.
func (app *App) Run() {
	app.backend.Run(app.render)
}

// Close releases the viewer before the GL objects that mirror its scene.
func (app *App) Close() {
	if app.viewer != nil {
		app.viewer.Close()
	}
	if app.target != nil {
		app.target.Destroy()
	}
	if app.renderer != nil {
		app.renderer.Close()
	}
}

func (app *App) loadModel(source string) {
	app.pending[viewer.KindModel] = source
	app.setStatus(fmt.Sprintf("Loading %s...", source), false)
	app.viewer.LoadModel(source)
}

func (app *App) applyDecal(source string) {
	if err := app.viewer.ApplyDecal(source); err != nil {
		if errors.Is(err, session.ErrNoModel) {
			app.alert("Load a model first.")
		}
		app.setStatus(err.Error(), true)
		return
	}
	app.pending[viewer.KindDecal] = source
	app.setStatus(fmt.Sprintf("Applying %s...", source), false)
}

func (app *App) setColor(hex string) {
	if err := app.viewer.SetColor(hex); err != nil {
		app.setStatus(err.Error(), true)
	}
}

func (app *App) setStatus(msg string, isErr bool) {
	app.status = msg
	app.statusIsErr = isErr
}

// drainEvents applies finished requests to the status bar.
func (app *App) drainEvents() {
	for {
		select {
		case ev := <-app.viewer.Events():
			app.handleEvent(ev)
		default:
			return
		}
	}
}

func (app *App) handleEvent(ev viewer.Event) {
	if ev.Kind != viewer.KindColor && app.pending[ev.Kind] == ev.Source {
		delete(app.pending, ev.Kind)
	}
	switch {
	case ev.Superseded():
		return
	case ev.Err != nil:
		app.setStatus(ev.Err.Error(), true)
	case ev.Kind == viewer.KindModel:
		app.setStatus(fmt.Sprintf("Loaded %s in %s", ev.Source, ev.Duration.Round(time.Millisecond)), false)
	case ev.Kind == viewer.KindDecal:
		app.setStatus(fmt.Sprintf("Applied %s", ev.Source), false)
	case ev.Kind == viewer.KindColor:
		app.setStatus(fmt.Sprintf("Color %s", ev.Source), false)
	}
}

// render is called each frame to draw the UI.
func (app *App) render() {
	// Capture at start of frame to get previous frame's rendered content
	if app.screenshotRequested {
		app.screenshotRequested = false
		app.captureScreenshot()
	}

	app.drainEvents()
	app.processPicks()

	if ui.IsKeyPressed(imgui.KeyF12) {
		app.screenshotRequested = true
	}

	workX, workY, workW, workH := ui.Viewport()

	leftPanelWidth := float32(260)
	statusBarHeight := float32(30)
	contentHeight := workH - statusBarHeight

	flags := imgui.WindowFlagsNoMove | imgui.WindowFlagsNoResize | imgui.WindowFlagsNoCollapse

	imgui.SetNextWindowPos(imgui.NewVec2(workX, workY))
	imgui.SetNextWindowSize(imgui.NewVec2(leftPanelWidth, contentHeight))
	if imgui.BeginV("Controls", nil, flags) {
		app.renderControls()
	}
	imgui.End()

	imgui.SetNextWindowPos(imgui.NewVec2(workX+leftPanelWidth, workY))
	imgui.SetNextWindowSize(imgui.NewVec2(workW-leftPanelWidth, contentHeight))
	if imgui.BeginV("Scene", nil, flags|imgui.WindowFlagsNoScrollbar) {
		app.renderScene()
	}
	imgui.End()

	imgui.SetNextWindowPos(imgui.NewVec2(workX, workY+contentHeight))
	imgui.SetNextWindowSize(imgui.NewVec2(workW, statusBarHeight))
	statusFlags := flags | imgui.WindowFlagsNoTitleBar | imgui.WindowFlagsNoScrollbar
	if imgui.BeginV("##StatusBar", nil, statusFlags) {
		app.renderStatusBar()
	}
	imgui.End()
}

func (app *App) captureScreenshot() {
	path, err := app.shots.Capture(app.target.ReadImage())
	if err != nil {
		app.log.Error("screenshot failed", zap.Error(err))
		app.setStatus(err.Error(), true)
		return
	}
	app.log.Info("screenshot saved", zap.String("path", path))
	app.setStatus("Saved "+path, false)
}
