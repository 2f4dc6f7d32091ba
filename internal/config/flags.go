package config

import "flag"

var (
	flagConfig     = flag.String("config", "", "Path to config file")
	flagDebug      = flag.Bool("debug", false, "Enable debug logging")
	flagWidth      = flag.Int("width", 0, "Window width")
	flagHeight     = flag.Int("height", 0, "Window height")
	flagModel      = flag.String("model", "", "Model to load at startup (path or URL)")
	flagPolicy     = flag.String("policy", "", "Decal surface policy (first-mesh, largest-area)")
	flagTargetSize = flag.Float64("target-size", 0, "Largest model dimension after loading")
	flagWatch      = flag.Bool("watch", false, "Reload model and decal when their files change")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
		cfg.Viewer.ShowBounds = true
	}
	if *flagWidth > 0 {
		cfg.Window.Width = *flagWidth
	}
	if *flagHeight > 0 {
		cfg.Window.Height = *flagHeight
	}
	if *flagModel != "" {
		cfg.Viewer.StartupModel = *flagModel
	}
	if *flagPolicy != "" {
		cfg.Viewer.SurfacePolicy = *flagPolicy
	}
	if *flagTargetSize > 0 {
		cfg.Viewer.TargetSize = float32(*flagTargetSize)
	}
	if *flagWatch {
		cfg.Viewer.WatchFiles = true
	}
}
