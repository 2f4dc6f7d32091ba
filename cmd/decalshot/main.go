// decalshot renders a model with an optional color and decal to a PNG file
// without opening a visible window.
//
// Usage:
//
//	decalshot -model models/model1.glb -decal patterns/pattern1.png -color "#3498db" -out shot.png
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/decalview/internal/config"
	"github.com/Faultbox/decalview/internal/engine/camera"
	"github.com/Faultbox/decalview/internal/engine/debug"
	"github.com/Faultbox/decalview/internal/engine/framebuffer"
	"github.com/Faultbox/decalview/internal/engine/lighting"
	"github.com/Faultbox/decalview/internal/engine/renderer"
	"github.com/Faultbox/decalview/internal/engine/window"
	"github.com/Faultbox/decalview/internal/logger"
	"github.com/Faultbox/decalview/internal/scene"
	"github.com/Faultbox/decalview/internal/session"
	"github.com/Faultbox/decalview/internal/viewer"
	"github.com/Faultbox/decalview/pkg/math"
)

var (
	outPath  = flag.String("out", "decalshot.png", "Output PNG path")
	decalSrc = flag.String("decal", "", "Decal image path or URL")
	colorHex = flag.String("color", "", "Model color, e.g. #3498db")
	frame    = flag.Bool("frame", false, "Fit the camera to the model instead of using the configured view")
	timeout  = flag.Duration("timeout", time.Minute, "Load timeout")
)

func main() {
	config.ParseFlags()
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}
	cfg.Viewer.WatchFiles = false

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg); err != nil {
		logger.Error("render failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	log := logger.Named("decalshot")

	model := cfg.StartupModel()
	if model == "" {
		return fmt.Errorf("no model given")
	}
	bg, err := scene.ParseColor(cfg.Viewer.Background)
	if err != nil {
		return err
	}

	v, err := viewer.New(cfg, logger.Named("viewer"))
	if err != nil {
		return err
	}
	defer v.Close()
	sess := v.Session()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	start := time.Now()
	if err := sess.LoadModel(ctx, model); err != nil {
		return err
	}
	log.Info("model loaded", zap.String("source", model), zap.Duration("elapsed", time.Since(start)))

	if *colorHex != "" {
		if err := sess.SetModelColorHex(*colorHex); err != nil {
			return err
		}
	}
	if *decalSrc != "" {
		if err := sess.ApplyDecal(ctx, *decalSrc); err != nil {
			return err
		}
		log.Info("decal applied", zap.String("source", *decalSrc))
	}

	win, err := window.New(window.Config{
		Title:  "decalshot",
		Width:  cfg.Window.Width,
		Height: cfg.Window.Height,
		Hidden: true,
	}, logger.Named("window"))
	if err != nil {
		return err
	}
	defer win.Close()

	r, err := renderer.New(renderer.Options{
		Background: bg,
		Lights:     lighting.DefaultRig(),
		ShowAxes:   cfg.Viewer.ShowAxes,
		AxesLength: cfg.Viewer.AxesLength,
		ShowBounds: cfg.Viewer.ShowBounds,
	}, logger.Named("renderer"))
	if err != nil {
		return err
	}
	defer r.Close()

	fb, err := framebuffer.New(int32(cfg.Window.Width), int32(cfg.Window.Height))
	if err != nil {
		return err
	}
	defer fb.Destroy()

	c := cfg.Camera
	cam := camera.NewOrbitCamera(math.FromArray(c.Position), math.FromArray(c.Target), c.FOVRadians(), c.Near, c.Far)

	sess.Read(func(s session.Snapshot) {
		if *frame {
			cam.FitToBounds(scene.ComputeBounds(s.Model))
		}
		f := renderer.Frame{Model: s.Model}
		if s.Decal != nil {
			f.Overlays = append(f.Overlays, s.Decal)
		}
		r.Render(fb, cam, f)
	})

	if err := debug.SavePNG(*outPath, fb.ReadImage()); err != nil {
		return err
	}
	stats := r.Stats()
	log.Info("wrote image",
		zap.String("path", *outPath),
		zap.Int("meshes", stats.Meshes),
		zap.Int("draws", stats.Draws))
	return nil
}
