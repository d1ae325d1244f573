// Package config provides configuration loading for the NEST analysis tool.
// It handles loading configuration from a YAML file and provides default
// values matching the reference acquisition layout.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML.
// All paths are explicit so pipelines can be constructed without ambient
// working-directory state.
type Config struct {
	// Input parameters
	Input struct {
		// Dir is the directory holding raw acquisition images.
		Dir string `yaml:"dir"`

		// Pattern is the filename glob selecting images within Dir.
		Pattern string `yaml:"pattern"`
	} `yaml:"input"`

	// Crop parameters
	Crop struct {
		// Dir is where circular crops are written, same base filenames.
		Dir string `yaml:"dir"`
	} `yaml:"crop"`

	// Analysis parameters
	Analysis struct {
		// OutputCSV is the path of the exported dataset.
		OutputCSV string `yaml:"outputCSV"`

		// Workers is the number of images scored concurrently.
		// 1 keeps the reference single-pass behavior.
		Workers int `yaml:"workers"`

		// Precision is the number of decimals kept for mean_intensity
		// in the exported CSV.
		Precision int `yaml:"precision"`
	} `yaml:"analysis"`

	// Chart parameters
	Chart struct {
		// Basename is the output path without extension.
		Basename string `yaml:"basename"`

		// Title is the chart title.
		Title string `yaml:"title"`

		// Threshold is the detection threshold line in intensity units.
		Threshold float64 `yaml:"threshold"`

		// Palette maps dose (CFU) to a hex line color.
		Palette map[int]string `yaml:"palette"`

		// Formats lists the file formats to save ("png", "svg", "pdf").
		Formats []string `yaml:"formats"`
	} `yaml:"chart"`

	// Log parameters
	Log struct {
		// Mode selects the logger preset: "development" or "release".
		Mode string `yaml:"mode"`
	} `yaml:"log"`
}

// Default returns a configuration with default values mirroring the
// reference workflow layout.
func Default() *Config {
	cfg := &Config{}

	cfg.Input.Dir = "img"
	cfg.Input.Pattern = "*.tif"
	cfg.Crop.Dir = filepath.Join("img", "circle")

	cfg.Analysis.OutputCSV = "fluorescence_analysis.csv"
	cfg.Analysis.Workers = 1
	cfg.Analysis.Precision = 2

	cfg.Chart.Basename = "fluorescence_plot"
	cfg.Chart.Title = "S. aureus"
	cfg.Chart.Threshold = 4000
	cfg.Chart.Palette = map[int]string{
		1:   "#4B8B9E",
		5:   "#5FAD98",
		10:  "#D6A46A",
		50:  "#C75D4B",
		100: "#A52A2A",
	}
	cfg.Chart.Formats = []string{"png", "svg", "pdf"}

	cfg.Log.Mode = "development"

	return cfg
}

// Load reads configuration from the given YAML file, overlaying it on the
// defaults. An empty path returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Analysis.Workers < 1 {
		return fmt.Errorf("analysis.workers must be >= 1, got %d", c.Analysis.Workers)
	}
	if c.Analysis.Workers > runtime.NumCPU()*4 {
		return fmt.Errorf("analysis.workers %d is unreasonably high for %d CPUs",
			c.Analysis.Workers, runtime.NumCPU())
	}
	if c.Analysis.Precision < 0 {
		return fmt.Errorf("analysis.precision must be >= 0, got %d", c.Analysis.Precision)
	}
	switch c.Log.Mode {
	case "development", "release":
	default:
		return fmt.Errorf("log.mode must be development or release, got %q", c.Log.Mode)
	}
	return nil
}
