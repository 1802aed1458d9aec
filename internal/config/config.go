// Package config loads service configuration from an optional YAML file with
// environment overrides on top.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"meshmap/core-go/internal/render"
)

type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Log      LogConfig      `yaml:"log"`
	Source   SourceConfig   `yaml:"source"`
	Refresh  RefreshConfig  `yaml:"refresh"`
	Map      MapConfig      `yaml:"map"`
	Coverage CoverageConfig `yaml:"coverage"`
	Style    render.Style   `yaml:"style"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// SourceConfig selects the snapshot backend. DatabaseURL wins when both are set.
type SourceConfig struct {
	DatabaseURL    string `yaml:"database_url"`
	NodeDBPath     string `yaml:"nodedb_path"`
	NodeDBReadOnly bool   `yaml:"nodedb_read_only"`
}

type RefreshConfig struct {
	Interval     time.Duration `yaml:"interval"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
	MaxBackoff   time.Duration `yaml:"max_backoff"`
}

type MapConfig struct {
	WindowHours float64 `yaml:"window_hours"`
}

type CoverageConfig struct {
	LegacyEllipse  bool `yaml:"legacy_ellipse"`
	EllipseSamples int  `yaml:"ellipse_samples"`
}

func Default() Config {
	return Config{
		HTTP: HTTPConfig{Addr: ":8081"},
		Log:  LogConfig{Level: "info"},
		Refresh: RefreshConfig{
			Interval:     30 * time.Second,
			FetchTimeout: 10 * time.Second,
			MaxBackoff:   5 * time.Minute,
		},
		Map:      MapConfig{WindowHours: 24},
		Coverage: CoverageConfig{EllipseSamples: 36},
		Style:    render.DefaultStyle(),
	}
}

// Load reads path (if non-empty) over the defaults, then applies environment
// overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(b))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	envOr := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	envOr("HTTP_ADDR", &c.HTTP.Addr)
	envOr("LOG_LEVEL", &c.Log.Level)
	envOr("DATABASE_URL", &c.Source.DatabaseURL)
	envOr("NODEDB_PATH", &c.Source.NodeDBPath)

	if v, ok := lookup("REFRESH_INTERVAL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("REFRESH_INTERVAL: %w", err)
		}
		c.Refresh.Interval = d
	}
	if v, ok := lookup("WINDOW_HOURS"); ok && v != "" {
		h, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("WINDOW_HOURS: %w", err)
		}
		c.Map.WindowHours = h
	}
	return nil
}

func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.HTTP.Addr) == "" {
		errs = append(errs, errors.New("http.addr is required"))
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level)); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Refresh.Interval < time.Second {
		errs = append(errs, fmt.Errorf("refresh.interval must be at least 1s, got %s", c.Refresh.Interval))
	}
	if c.Refresh.FetchTimeout <= 0 {
		errs = append(errs, errors.New("refresh.fetch_timeout must be positive"))
	}
	if math.IsNaN(c.Map.WindowHours) || c.Map.WindowHours < 1 || c.Map.WindowHours > 720 {
		errs = append(errs, fmt.Errorf("map.window_hours must be between 1 and 720, got %v", c.Map.WindowHours))
	}
	if c.Coverage.EllipseSamples < 0 {
		errs = append(errs, errors.New("coverage.ellipse_samples must not be negative"))
	}
	for name, v := range map[string]float64{
		"style.selected_opacity":      c.Style.SelectedOpacity,
		"style.selected_fill_opacity": c.Style.SelectedFillOpacity,
		"style.line_opacity":          c.Style.LineOpacity,
		"style.shape_fill_opacity":    c.Style.ShapeFillOpacity,
		"style.shape_opacity":         c.Style.ShapeOpacity,
		"style.circle_opacity":        c.Style.CircleOpacity,
	} {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("%s must be within 0..1, got %v", name, v))
		}
	}
	return errors.Join(errs...)
}

// HasSource reports whether any snapshot backend is configured.
func (c Config) HasSource() bool {
	return c.Source.DatabaseURL != "" || c.Source.NodeDBPath != ""
}
