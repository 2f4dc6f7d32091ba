package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"github.com/Faultbox/decalview/internal/scene"
	"github.com/Faultbox/decalview/internal/session"
)

// Load loads configuration with priority: defaults < file < flags.
func Load() (*Config, error) {
	// Start with defaults
	cfg := Default()

	// Try to load from file (explicit path takes priority)
	configPath := ConfigPath()
	if configPath == "" {
		configPath = findConfigFile()
	}

	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", configPath, err)
		}
	}

	// Apply CLI flags (highest priority)
	applyFlags(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail later at runtime.
func (c *Config) Validate() error {
	var errs []error
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		errs = append(errs, fmt.Errorf("window size %dx%d must be positive", c.Window.Width, c.Window.Height))
	}
	if c.Viewer.TargetSize <= 0 {
		errs = append(errs, fmt.Errorf("viewer.target_size %v must be positive", c.Viewer.TargetSize))
	}
	if _, err := session.ParsePolicy(c.Viewer.SurfacePolicy); err != nil {
		errs = append(errs, fmt.Errorf("viewer.surface_policy: %w", err))
	}
	if _, err := scene.ParseColor(c.Viewer.Background); err != nil {
		errs = append(errs, fmt.Errorf("viewer.background: %w", err))
	}
	for i, hex := range c.Assets.Colors {
		if _, err := scene.ParseColor(hex); err != nil {
			errs = append(errs, fmt.Errorf("assets.colors[%d]: %w", i, err))
		}
	}
	if c.Camera.Near <= 0 || c.Camera.Far <= c.Camera.Near {
		errs = append(errs, fmt.Errorf("camera near/far %v/%v invalid", c.Camera.Near, c.Camera.Far))
	}
	if _, err := c.Decal.Table(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// findConfigFile looks for config in standard locations.
func findConfigFile() string {
	candidates := []string{
		"./config.yaml",
		filepath.Join(ConfigDir(), "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ConfigDir returns the OS-appropriate config directory.
func ConfigDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "DecalView")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "DecalView")
	default: // Linux and others
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "decalview")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "decalview")
	}
}

// loadFromFile loads config from a YAML file, merging with existing values.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}
