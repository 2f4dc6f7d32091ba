// Package config handles viewer configuration loading and management.
package config

import (
	"fmt"
	"time"

	"github.com/chewxy/math32"

	"github.com/Faultbox/decalview/internal/decal"
	"github.com/Faultbox/decalview/pkg/math"
)

// Config holds all viewer settings.
type Config struct {
	Window  WindowConfig  `yaml:"window"`
	Viewer  ViewerConfig  `yaml:"viewer"`
	Camera  CameraConfig  `yaml:"camera"`
	Decal   DecalConfig   `yaml:"decal"`
	Assets  AssetsConfig  `yaml:"assets"`
	Logging LoggingConfig `yaml:"logging"`
}

// WindowConfig holds display settings.
type WindowConfig struct {
	Title  string `yaml:"title"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	VSync  bool   `yaml:"vsync"`
}

// ViewerConfig holds scene and model normalization settings.
type ViewerConfig struct {
	TargetSize     float32 `yaml:"target_size"`     // Largest model dimension after loading
	VerticalOffset float32 `yaml:"vertical_offset"` // Y position of the loaded model
	SurfacePolicy  string  `yaml:"surface_policy"`  // first-mesh or largest-area
	Background     string  `yaml:"background"`
	ShowAxes       bool    `yaml:"show_axes"`
	AxesLength     float32 `yaml:"axes_length"`
	ShowBounds     bool    `yaml:"show_bounds"`
	WatchFiles     bool    `yaml:"watch_files"` // Reload model and decal when their files change

	// StartupModel is loaded when the viewer opens. Empty means the first
	// entry of assets.models.
	StartupModel string `yaml:"startup_model"`
}

// CameraConfig holds the initial orbit camera.
type CameraConfig struct {
	Position [3]float32 `yaml:"position"`
	Target   [3]float32 `yaml:"target"`
	FOV      float32    `yaml:"fov"` // Vertical, degrees
	Near     float32    `yaml:"near"`
	Far      float32    `yaml:"far"`
	Damping  float32    `yaml:"damping"` // 0 disables smoothing
}

// PlacementConfig describes a decal projector. Rotation is in radians, XYZ
// order.
type PlacementConfig struct {
	Position [3]float32 `yaml:"position"`
	Rotation [3]float32 `yaml:"rotation"`
	Size     [3]float32 `yaml:"size"`
}

// DecalConfig holds the decal placement table.
type DecalConfig struct {
	Default    PlacementConfig            `yaml:"default"`
	Placements map[string]PlacementConfig `yaml:"placements"` // Keyed by model file name
}

// AssetsConfig holds asset locations and the viewer's button lists.
type AssetsConfig struct {
	Roots          []string      `yaml:"roots"` // Search directories for relative paths
	HTTPTimeout    time.Duration `yaml:"http_timeout"`
	MaxTextureSize int           `yaml:"max_texture_size"`
	CacheSize      int64         `yaml:"cache_size"` // Bytes of raw asset data kept in memory, <= 0 for no limit
	Models         []string      `yaml:"models"`
	Colors         []string      `yaml:"colors"`
	Patterns       []string      `yaml:"patterns"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Window: WindowConfig{
			Title:  "Decal Viewer",
			Width:  1280,
			Height: 800,
			VSync:  true,
		},
		Viewer: ViewerConfig{
			TargetSize:     20,
			VerticalOffset: -5,
			SurfacePolicy:  "first-mesh",
			Background:     "#f0f0f0",
			ShowAxes:       true,
			AxesLength:     15,
			ShowBounds:     false,
			WatchFiles:     false,
			StartupModel:   "",
		},
		Camera: CameraConfig{
			Position: [3]float32{0, 5, 15},
			Target:   [3]float32{0, 0, 0},
			FOV:      45,
			Near:     0.1,
			Far:      200,
			Damping:  0.05,
		},
		Decal: DecalConfig{
			Default:    FromPlacement(decal.DefaultPlacement()),
			Placements: map[string]PlacementConfig{},
		},
		Assets: AssetsConfig{
			Roots:          []string{"."},
			HTTPTimeout:    30 * time.Second,
			MaxTextureSize: 4096,
			CacheSize:      256 << 20,
			Models: []string{
				"models/model1.glb",
				"models/model2.glb",
				"models/model3.glb",
			},
			Colors: []string{"#e74c3c", "#3498db", "#2ecc71", "#f1c40f", "#ffffff"},
			Patterns: []string{
				"patterns/pattern1.png",
				"patterns/pattern2.png",
				"patterns/pattern3.png",
			},
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Placement converts the config to a decal placement.
func (p PlacementConfig) Placement() decal.Placement {
	return decal.Placement{
		Position: math.FromArray(p.Position),
		Rotation: math.Euler{X: p.Rotation[0], Y: p.Rotation[1], Z: p.Rotation[2]},
		Size:     math.FromArray(p.Size),
	}
}

// FromPlacement converts a decal placement to its config form.
func FromPlacement(p decal.Placement) PlacementConfig {
	return PlacementConfig{
		Position: p.Position.Array(),
		Rotation: [3]float32{p.Rotation.X, p.Rotation.Y, p.Rotation.Z},
		Size:     p.Size.Array(),
	}
}

// Table builds the decal placement table.
func (d DecalConfig) Table() (*decal.Table, error) {
	def := d.Default.Placement()
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("decal.default: %w", err)
	}
	t := decal.NewTable(def)
	for name, pc := range d.Placements {
		p := pc.Placement()
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("decal.placements[%s]: %w", name, err)
		}
		t.Set(name, p)
	}
	return t, nil
}

// StartupModel returns the model to load at startup, or "".
func (c *Config) StartupModel() string {
	if c.Viewer.StartupModel != "" {
		return c.Viewer.StartupModel
	}
	if len(c.Assets.Models) > 0 {
		return c.Assets.Models[0]
	}
	return ""
}

// FOVRadians returns the vertical field of view in radians.
func (c CameraConfig) FOVRadians() float32 {
	return c.FOV * math32.Pi / 180
}
