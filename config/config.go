// Package config provides configuration loading and access for the FOV engine.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// ErrInvalidConfig is returned when a loaded configuration fails validation.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Weighting schemes.
const (
	WeightingAngular  = "angular"
	WeightingRayTable = "ray_table"
)

// Result shapes.
const (
	ShapeSquare = "square"
	ShapeCircle = "circle"
)

// Config holds all engine configuration parameters.
type Config struct {
	FOV       FOVConfig       `yaml:"fov"`
	RayTable  RayTableConfig  `yaml:"ray_table"`
	Parallel  ParallelConfig  `yaml:"parallel"`
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// FOVConfig holds query defaults and propagation parameters.
type FOVConfig struct {
	Radius    int     `yaml:"radius"`    // Default radius for ComputeDefault
	Threshold float64 `yaml:"threshold"` // Default visibility threshold
	Epsilon   float64 `yaml:"epsilon"`   // Ring early-exit outflux floor
	Weighting string  `yaml:"weighting"` // angular | ray_table
	Shape     string  `yaml:"shape"`     // square | circle
}

// RayTableConfig holds ray-marched weighting table parameters.
type RayTableConfig struct {
	RayCount        int `yaml:"ray_count"`         // Rays marched across one octant
	RayRadiusFactor int `yaml:"ray_radius_factor"` // Ray target distance = factor * radius
	InitialRadius   int `yaml:"initial_radius"`    // Table radius built up front
}

// ParallelConfig holds intra-ring worker parameters.
type ParallelConfig struct {
	Workers       int `yaml:"workers"`        // 0 = GOMAXPROCS, 1 = sequential
	RingThreshold int `yaml:"ring_threshold"` // Minimum ring cells before fanning out
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	PerfWindow int    `yaml:"perf_window"` // Queries in the rolling perf window
	OutputDir  string `yaml:"output_dir"`  // CSV output directory (empty = disabled)
	LogQueries bool   `yaml:"log_queries"` // Log queries and perf windows at Info
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	Workers int // Effective worker count
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Defaults returns the embedded default configuration.
func Defaults() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults: %v", err))
	}
	return cfg
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.computeDerived()

	return cfg, nil
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	f := c.FOV
	switch {
	case f.Radius < 0:
		return fmt.Errorf("%w: fov.radius %d is negative", ErrInvalidConfig, f.Radius)
	case math.IsNaN(f.Threshold) || f.Threshold < 0 || f.Threshold > 1:
		return fmt.Errorf("%w: fov.threshold %v outside [0,1]", ErrInvalidConfig, f.Threshold)
	case math.IsNaN(f.Epsilon) || f.Epsilon < 0 || f.Epsilon >= 1:
		return fmt.Errorf("%w: fov.epsilon %v outside [0,1)", ErrInvalidConfig, f.Epsilon)
	}
	switch f.Weighting {
	case WeightingAngular, WeightingRayTable:
	default:
		return fmt.Errorf("%w: fov.weighting %q", ErrInvalidConfig, f.Weighting)
	}
	switch f.Shape {
	case ShapeSquare, ShapeCircle:
	default:
		return fmt.Errorf("%w: fov.shape %q", ErrInvalidConfig, f.Shape)
	}

	r := c.RayTable
	if r.RayCount < 2 || r.RayRadiusFactor < 2 || r.InitialRadius < 0 {
		return fmt.Errorf("%w: ray_table needs ray_count >= 2, ray_radius_factor >= 2, initial_radius >= 0", ErrInvalidConfig)
	}
	if c.Parallel.Workers < 0 || c.Parallel.RingThreshold < 0 {
		return fmt.Errorf("%w: parallel values must be non-negative", ErrInvalidConfig)
	}
	if c.Telemetry.PerfWindow < 0 {
		return fmt.Errorf("%w: telemetry.perf_window %d is negative", ErrInvalidConfig, c.Telemetry.PerfWindow)
	}
	return nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.Workers = c.Parallel.Workers
	if c.Derived.Workers == 0 {
		c.Derived.Workers = runtime.GOMAXPROCS(0)
	}
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
