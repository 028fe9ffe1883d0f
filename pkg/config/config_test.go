package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
)

// TestLoadConfigMissingFile verifies defaults are used without a file
func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if cfg.Streamlines.DisplayFraction != 0.1 {
		t.Errorf("Expected display fraction 0.1, got %f", cfg.Streamlines.DisplayFraction)
	}
	if cfg.Streamlines.Percentile != 80 {
		t.Errorf("Expected percentile 80, got %f", cfg.Streamlines.Percentile)
	}
	if cfg.Figure.Width != 600 || cfg.Figure.Height != 600 {
		t.Errorf("Expected 600x600 figure, got %dx%d", cfg.Figure.Width, cfg.Figure.Height)
	}
	if !cfg.Volume.Guidelines || !cfg.Volume.OrientRadiology {
		t.Error("Expected guidelines and radiological orientation by default")
	}
	if cfg.ViewerOptions().AnimationSpeed != 300*time.Millisecond {
		t.Errorf("Expected 300ms animation speed, got %v", cfg.ViewerOptions().AnimationSpeed)
	}
	if cfg.LogLevel() != log.InfoLevel {
		t.Errorf("Expected info level, got %v", cfg.LogLevel())
	}
	if mesh := cfg.SurfaceOptions(); !mesh.ShowZeroes || mesh.Limits[2] != [2]float64{-100, 100} {
		t.Errorf("Expected zeroes shown within 100mm, got %+v", mesh)
	}
}

// TestLoadConfigOverrides verifies YAML values replace defaults
func TestLoadConfigOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "niwidgets.yaml")
	data := `
streamlines:
  skip: 4
  percentile: 50
  grayscale: true
  seed: 9
volume:
  colormaps: [gray, Reds]
  maskBackground: true
surface:
  colormaps: [Greens]
  showZeroes: false
  limit: 0
output:
  logLevel: debug
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	opts := cfg.PlotOptions()
	if opts.Skip != 4 || opts.Percentile != 50 || !opts.Grayscale || opts.Seed != 9 {
		t.Errorf("Unexpected plot options %+v", opts)
	}
	// untouched values keep their defaults
	if opts.DisplayFraction != 0.1 || opts.Width != 600 {
		t.Errorf("Expected defaults to survive, got %+v", opts)
	}
	if len(cfg.Volume.Colormaps) != 2 || !cfg.Volume.MaskBackground {
		t.Errorf("Unexpected volume section %+v", cfg.Volume)
	}
	mesh := cfg.SurfaceOptions()
	if mesh.ShowZeroes || len(mesh.Colormaps) != 1 || mesh.Limits != ([3][2]float64{}) {
		t.Errorf("Unexpected surface options %+v", mesh)
	}
	if cfg.LogLevel() != log.DebugLevel {
		t.Errorf("Expected debug level, got %v", cfg.LogLevel())
	}
}

// TestValidate verifies out of range values are rejected
func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero fraction", func(c *Config) { c.Streamlines.DisplayFraction = 0 }},
		{"large fraction", func(c *Config) { c.Streamlines.DisplayFraction = 1.5 }},
		{"negative skip", func(c *Config) { c.Streamlines.Skip = -1 }},
		{"percentile", func(c *Config) { c.Streamlines.Percentile = 101 }},
		{"figure", func(c *Config) { c.Figure.Width = 0 }},
		{"colormap", func(c *Config) { c.Volume.Colormaps = []string{"jet"} }},
		{"animation", func(c *Config) { c.Volume.AnimationSpeed = -5 }},
		{"surface colormap", func(c *Config) { c.Surface.Colormaps = []string{"jet"} }},
		{"surface limit", func(c *Config) { c.Surface.Limit = -1 }},
		{"log level", func(c *Config) { c.Output.LogLevel = "loud" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error, got nil")
			}
		})
	}

	// a stride makes the fraction irrelevant
	cfg := DefaultConfig()
	cfg.Streamlines.DisplayFraction = 0
	cfg.Streamlines.Skip = 2
	if err := cfg.Validate(); err != nil {
		t.Errorf("Unexpected error with a stride: %v", err)
	}
}

// TestSaveConfig verifies a saved config loads back
func TestSaveConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "niwidgets.yaml")

	cfg := DefaultConfig()
	cfg.Streamlines.Percentile = 60
	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if loaded.Streamlines.Percentile != 60 {
		t.Errorf("Expected percentile 60, got %f", loaded.Streamlines.Percentile)
	}

	if err := CreateDefaultConfigFile(path); err != nil {
		t.Fatalf("Failed to create default config: %v", err)
	}
}
