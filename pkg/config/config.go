// Package config provides configuration loading and management for niwidgets.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"niwidgets/pkg/streamlines"
	"niwidgets/pkg/surface"
	"niwidgets/pkg/visualization"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Streamline widget parameters
	Streamlines struct {
		// DisplayFraction is the random fraction of streamlines to show
		DisplayFraction float64 `yaml:"displayFraction"`

		// Skip keeps every Skip-th streamline instead; 0 disables it
		Skip int `yaml:"skip"`

		// Percentile of the length distribution used as the initial threshold
		Percentile float64 `yaml:"percentile"`

		// Grayscale draws all streamlines mid-gray
		Grayscale bool `yaml:"grayscale"`

		// Seed for the random selection; 0 means time based
		Seed uint64 `yaml:"seed"`
	} `yaml:"streamlines"`

	// Figure parameters
	Figure struct {
		Width  int `yaml:"width"`
		Height int `yaml:"height"`
	} `yaml:"figure"`

	// Volume widget parameters
	Volume struct {
		// Colormaps offered in the picker; one entry fixes the colormap
		Colormaps []string `yaml:"colormaps"`

		ReverseColors   bool `yaml:"reverseColors"`
		Guidelines      bool `yaml:"guidelines"`
		OrientRadiology bool `yaml:"orientRadiology"`

		// MaskBackground hides zero-valued clusters touching the image edges
		MaskBackground bool `yaml:"maskBackground"`

		// AnimationSpeed is the time between play frames in milliseconds
		AnimationSpeed int `yaml:"animationSpeed"`
	} `yaml:"volume"`

	// Surface widget parameters
	Surface struct {
		// Colormaps offered in the picker; one entry fixes the colormap
		Colormaps []string `yaml:"colormaps"`

		// ShowZeroes keeps faces touching zero-valued vertices
		ShowZeroes bool `yaml:"showZeroes"`

		// Limit is the half-width of the cubic scene; 0 fits the mesh
		Limit float64 `yaml:"limit"`
	} `yaml:"surface"`

	// Output parameters
	Output struct {
		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`

		// LogLevel is a logrus level name; it overrides Verbose when set
		LogLevel string `yaml:"logLevel"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	plot := streamlines.DefaultPlotOptions()
	cfg.Streamlines.DisplayFraction = plot.DisplayFraction
	cfg.Streamlines.Percentile = plot.Percentile
	cfg.Figure.Width = plot.Width
	cfg.Figure.Height = plot.Height

	view := visualization.DefaultOptions()
	cfg.Volume.Guidelines = view.Guidelines
	cfg.Volume.OrientRadiology = view.OrientRadiology
	cfg.Volume.AnimationSpeed = int(view.AnimationSpeed / time.Millisecond)

	mesh := surface.DefaultPlotOptions()
	cfg.Surface.ShowZeroes = mesh.ShowZeroes
	cfg.Surface.Limit = mesh.Limits[0][1]

	cfg.Output.Verbose = false
	cfg.Output.LogLevel = ""

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}

	return cfg, nil
}

// Validate checks value ranges that would otherwise only fail at plot time
func (c *Config) Validate() error {
	if c.Streamlines.Skip < 0 {
		return fmt.Errorf("streamlines.skip must not be negative, got %d", c.Streamlines.Skip)
	}
	if c.Streamlines.Skip == 0 {
		f := c.Streamlines.DisplayFraction
		if !(f > 0 && f <= 1) {
			return fmt.Errorf("streamlines.displayFraction: %w", streamlines.ErrInvalidDisplayFraction)
		}
	}
	if p := c.Streamlines.Percentile; p < 0 || p > 100 {
		return fmt.Errorf("streamlines.percentile must be in [0, 100], got %v", p)
	}
	if c.Figure.Width <= 0 || c.Figure.Height <= 0 {
		return fmt.Errorf("figure size must be positive, got %dx%d", c.Figure.Width, c.Figure.Height)
	}
	for _, name := range c.Volume.Colormaps {
		if _, err := visualization.LookupColormap(name); err != nil {
			return fmt.Errorf("volume.colormaps: %w", err)
		}
	}
	if c.Volume.AnimationSpeed < 0 {
		return fmt.Errorf("volume.animationSpeed must not be negative, got %d", c.Volume.AnimationSpeed)
	}
	for _, name := range c.Surface.Colormaps {
		if _, err := visualization.LookupColormap(name); err != nil {
			return fmt.Errorf("surface.colormaps: %w", err)
		}
	}
	if c.Surface.Limit < 0 {
		return fmt.Errorf("surface.limit must not be negative, got %v", c.Surface.Limit)
	}
	if c.Output.LogLevel != "" {
		if _, err := log.ParseLevel(c.Output.LogLevel); err != nil {
			return fmt.Errorf("output.logLevel: %w", err)
		}
	}
	return nil
}

// PlotOptions converts the streamline section into widget plot options
func (c *Config) PlotOptions() streamlines.PlotOptions {
	return streamlines.PlotOptions{
		DisplayFraction: c.Streamlines.DisplayFraction,
		Skip:            c.Streamlines.Skip,
		Percentile:      c.Streamlines.Percentile,
		Grayscale:       c.Streamlines.Grayscale,
		Width:           c.Figure.Width,
		Height:          c.Figure.Height,
		Seed:            c.Streamlines.Seed,
	}
}

// ViewerOptions converts the volume section into viewer options
func (c *Config) ViewerOptions() visualization.Options {
	return visualization.Options{
		Colormaps:       c.Volume.Colormaps,
		ReverseColors:   c.Volume.ReverseColors,
		Guidelines:      c.Volume.Guidelines,
		OrientRadiology: c.Volume.OrientRadiology,
		AnimationSpeed:  time.Duration(c.Volume.AnimationSpeed) * time.Millisecond,
	}
}

// SurfaceOptions converts the surface section into surface plot options
func (c *Config) SurfaceOptions() surface.PlotOptions {
	opts := surface.PlotOptions{
		Colormaps:  c.Surface.Colormaps,
		Width:      c.Figure.Width,
		Height:     c.Figure.Height,
		ShowZeroes: c.Surface.ShowZeroes,
	}
	if l := c.Surface.Limit; l > 0 {
		opts.Limits = [3][2]float64{{-l, l}, {-l, l}, {-l, l}}
	}
	return opts
}

// LogLevel returns the logrus level the configuration asks for
func (c *Config) LogLevel() log.Level {
	if c.Output.LogLevel != "" {
		if lvl, err := log.ParseLevel(c.Output.LogLevel); err == nil {
			return lvl
		}
	}
	if c.Output.Verbose {
		return log.DebugLevel
	}
	return log.InfoLevel
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
