// Package config holds every tunable of a search and loads it from defaults,
// a YAML file and ZOOSEARCH_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/san-kum/zoosearch/internal/engine"
	"github.com/san-kum/zoosearch/internal/expr"
	"github.com/san-kum/zoosearch/internal/fly"
	"github.com/san-kum/zoosearch/internal/hologram"
)

const (
	EnvPrefix = "ZOOSEARCH_"

	DefaultAlphabet     = "abcdxyz"
	DefaultStateSymbols = "xyz"
	DefaultMinOpCount   = 0
	DefaultMaxOpCount   = 1
	DefaultGridRadius   = 20.0
	DefaultGridBins     = 64
	DefaultDataDir      = "zoosearch-data"
	maxConfigFileSize   = 1024 * 1024
)

type Config struct {
	Alphabet     string `yaml:"alphabet" koanf:"alphabet"`
	StateSymbols string `yaml:"state_symbols" koanf:"state_symbols"`
	// CacheOpCount is the largest opcount the enumerator precomputes.
	CacheOpCount int `yaml:"cache_opcount" koanf:"cache_opcount"`
	// MinOpCount..MaxOpCount is the candidate pool range.
	MinOpCount int `yaml:"min_opcount" koanf:"min_opcount"`
	MaxOpCount int `yaml:"max_opcount" koanf:"max_opcount"`

	SampleRate          int     `yaml:"sample_rate" koanf:"sample_rate"`
	Duration            float64 `yaml:"duration" koanf:"duration"`
	Bound               float64 `yaml:"bound" koanf:"bound"`
	FixedPointTolerance float64 `yaml:"fixed_point_tolerance" koanf:"fixed_point_tolerance"`

	Grid GridConfig `yaml:"grid" koanf:"grid"`

	InitialPosition []float64     `yaml:"initial_position" koanf:"initial_position"`
	Knobs           []engine.Knob `yaml:"knobs" koanf:"knobs"`
	Integrator      string        `yaml:"integrator" koanf:"integrator"`

	StopOnFault bool   `yaml:"stop_on_fault" koanf:"stop_on_fault"`
	Workers     int    `yaml:"workers" koanf:"workers"`
	DataDir     string `yaml:"data_dir" koanf:"data_dir"`

	Log LogConfig `yaml:"log" koanf:"log"`
}

// GridConfig sizes the occupancy grid. Bins applies to every axis unless a
// per-axis count is set.
type GridConfig struct {
	Radius float64 `yaml:"radius" koanf:"radius"`
	Bins   int     `yaml:"bins" koanf:"bins"`
	BinsX  int     `yaml:"bins_x,omitempty" koanf:"bins_x"`
	BinsY  int     `yaml:"bins_y,omitempty" koanf:"bins_y"`
	BinsZ  int     `yaml:"bins_z,omitempty" koanf:"bins_z"`
}

// Axes returns the bin count of the x, y and z axes.
func (g GridConfig) Axes() [3]int {
	axes := [3]int{g.Bins, g.Bins, g.Bins}
	for i, n := range [3]int{g.BinsX, g.BinsY, g.BinsZ} {
		if n != 0 {
			axes[i] = n
		}
	}
	return axes
}

type LogConfig struct {
	Level  string `yaml:"level" koanf:"level"`
	Format string `yaml:"format" koanf:"format"`
}

func DefaultConfig() *Config {
	return &Config{
		Alphabet:            DefaultAlphabet,
		StateSymbols:        DefaultStateSymbols,
		CacheOpCount:        expr.DefaultMaxOpCount,
		MinOpCount:          DefaultMinOpCount,
		MaxOpCount:          DefaultMaxOpCount,
		SampleRate:          fly.DefaultSampleRate,
		Duration:            fly.DefaultDuration,
		Bound:               fly.DefaultBound,
		FixedPointTolerance: fly.DefaultFixedPointTolerance,
		Grid:                GridConfig{Radius: DefaultGridRadius, Bins: DefaultGridBins},
		InitialPosition:     []float64{1.5, -0.5, 0.1},
		Knobs: []engine.Knob{
			{Center: 6.7, Spread: 1},
			{Center: 1, Spread: 1},
			{Center: 1, Spread: 1},
			{Center: 1, Spread: 1},
		},
		Integrator:  "rk4",
		StopOnFault: true,
		Workers:     1,
		DataDir:     DefaultDataDir,
		Log:         LogConfig{Level: "info", Format: "console"},
	}
}

// Load layers, lowest precedence first: defaults, the YAML file at path
// (skipped when path is empty), then ZOOSEARCH_* environment variables.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	defaults, err := yamlv3.Marshal(DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("encoding defaults: %w", err)
	}
	if err := k.Load(rawbytes.Provider(defaults), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path != "" {
		content, err := readConfigFile(path)
		if err != nil {
			return nil, err
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("config path %s is a directory", path)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file %s exceeds %d bytes", path, maxConfigFileSize)
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}

// envKey maps ZOOSEARCH_SAMPLE_RATE to sample_rate and ZOOSEARCH_GRID_BINS_X
// to grid.bins_x.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	for _, section := range []string{"grid", "log"} {
		if rest, ok := strings.CutPrefix(key, section+"_"); ok {
			return section + "." + rest
		}
	}
	return key
}

func Save(path string, cfg *Config) error {
	data, err := yamlv3.Marshal(cfg)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	var errs []error

	if err := expr.ValidateAlphabet(c.Alphabet); err != nil {
		errs = append(errs, err)
	}
	if len(c.StateSymbols) != engine.Channels {
		errs = append(errs, fmt.Errorf("state_symbols must name %d symbols, got %q", engine.Channels, c.StateSymbols))
	}
	for _, r := range c.StateSymbols {
		if !strings.ContainsRune(c.Alphabet, r) {
			errs = append(errs, fmt.Errorf("state symbol %q not in alphabet %q", r, c.Alphabet))
		}
	}
	if consts := len(c.Alphabet) - len(c.StateSymbols); len(c.Knobs) < consts {
		errs = append(errs, fmt.Errorf("alphabet has %d constant symbols but only %d knobs", consts, len(c.Knobs)))
	}

	if c.CacheOpCount < 0 {
		errs = append(errs, fmt.Errorf("cache_opcount must be non-negative, got %d", c.CacheOpCount))
	}
	if c.MinOpCount < 0 || c.MinOpCount > c.MaxOpCount {
		errs = append(errs, fmt.Errorf("opcount range %d..%d is empty or negative", c.MinOpCount, c.MaxOpCount))
	}
	if c.MaxOpCount > c.CacheOpCount {
		errs = append(errs, fmt.Errorf("max_opcount %d exceeds cache_opcount %d", c.MaxOpCount, c.CacheOpCount))
	}

	if err := c.FlyConfig().Validate(); err != nil {
		errs = append(errs, err)
	}

	if !(c.Grid.Radius > 0) {
		errs = append(errs, fmt.Errorf("grid radius must be positive, got %v", c.Grid.Radius))
	}
	for i, n := range c.Grid.Axes() {
		if n < hologram.MinBins || n > hologram.MaxBins {
			errs = append(errs, fmt.Errorf("grid bins on %s must be in %d..%d, got %d",
				hologram.AxisName(i), hologram.MinBins, hologram.MaxBins, n))
		}
	}

	if len(c.InitialPosition) != engine.Channels {
		errs = append(errs, fmt.Errorf("initial_position needs %d values, got %d", engine.Channels, len(c.InitialPosition)))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Workers))
	}
	return errors.Join(errs...)
}

func (c *Config) FlyConfig() fly.Config {
	return fly.Config{
		SampleRate: c.SampleRate,
		Duration:   c.Duration,
		Policy: fly.Policy{
			Bound:               c.Bound,
			FixedPointTolerance: c.FixedPointTolerance,
		},
	}
}

func (c *Config) EngineParams() engine.Params {
	var pos [3]float64
	copy(pos[:], c.InitialPosition)
	return engine.Params{
		Alphabet:        c.Alphabet,
		StateSymbols:    c.StateSymbols,
		InitialPosition: pos,
		Knobs:           append([]engine.Knob(nil), c.Knobs...),
		Integrator:      c.Integrator,
	}
}

func (c *Config) NewGrid() (*hologram.Grid, error) {
	b := c.Grid.Axes()
	return hologram.New(c.Grid.Radius, b[0], b[1], b[2])
}

// Scope identifies the physical parameters a classification depends on.
// Ledger entries are only reused under an identical scope.
func (c *Config) Scope() string {
	var b strings.Builder
	fmt.Fprintf(&b, "alphabet=%s state=%s integrator=%s rate=%d duration=%g bound=%g tol=%g pos=%v knobs=",
		c.Alphabet, c.StateSymbols, c.Integrator, c.SampleRate, c.Duration, c.Bound, c.FixedPointTolerance, c.InitialPosition)
	for i, k := range c.Knobs {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%g±%g", k.Center, k.Spread)
	}
	return b.String()
}
