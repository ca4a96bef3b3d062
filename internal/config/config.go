// Package config loads the fingerbrush configuration file.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ayusman/fingerbrush/internal/app"
	"github.com/ayusman/fingerbrush/internal/capture"
	"github.com/ayusman/fingerbrush/internal/gesture"
	"github.com/ayusman/fingerbrush/internal/stroke"
	"github.com/ayusman/fingerbrush/internal/surface"
)

// Config is the application configuration.
type Config struct {
	Addr string `yaml:"addr"`
	// DBPath is the sqlite database file. Empty means
	// ~/.fingerbrush/fingerbrush.db.
	DBPath    string `yaml:"dbPath"`
	StaticDir string `yaml:"staticDir"`
	LogLevel  string `yaml:"logLevel"`
	Tray      bool   `yaml:"tray"`

	Camera   CameraConfig   `yaml:"camera"`
	Canvas   CanvasConfig   `yaml:"canvas"`
	Gesture  GestureConfig  `yaml:"gesture"`
	Pipeline PipelineConfig `yaml:"pipeline"`
}

// CameraConfig selects and sizes the camera.
type CameraConfig struct {
	// Device ids for each facing; -1 disables one.
	UserDevice        int    `yaml:"userDevice"`
	EnvironmentDevice int    `yaml:"environmentDevice"`
	Facing            string `yaml:"facing"`
	Width             int    `yaml:"width"`
	Height            int    `yaml:"height"`
	// ProbeDevices is how many device ids to try when neither facing opens.
	ProbeDevices int `yaml:"probeDevices"`
}

// CanvasConfig sizes the drawing surface and sets the initial style.
type CanvasConfig struct {
	Width       int     `yaml:"width"`
	Height      int     `yaml:"height"`
	StrokeColor string  `yaml:"strokeColor"`
	LineWidth   float64 `yaml:"lineWidth"`
	Mode        string  `yaml:"mode"`
}

// GestureConfig tunes pinch detection.
type GestureConfig struct {
	PinchThreshold float64 `yaml:"pinchThreshold"`
	Smoothing      float64 `yaml:"smoothing"`
}

// PipelineConfig paces capture and detection.
type PipelineConfig struct {
	TickFPS         int           `yaml:"tickFPS"`
	IdleFPS         int           `yaml:"idleFPS"`
	ActiveFPS       int           `yaml:"activeFPS"`
	IdleTimeout     time.Duration `yaml:"idleTimeout"`
	MotionThreshold float64       `yaml:"motionThreshold"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Addr:     ":8080",
		LogLevel: "info",
		Camera: CameraConfig{
			UserDevice:        0,
			EnvironmentDevice: 1,
			Facing:            string(capture.FacingUser),
			Width:             capture.DefaultWidth,
			Height:            capture.DefaultHeight,
			ProbeDevices:      4,
		},
		Canvas: CanvasConfig{
			Width:       1280,
			Height:      720,
			StrokeColor: surface.DefaultColor,
			LineWidth:   surface.DefaultLineWidth,
			Mode:        stroke.Gesture.String(),
		},
		Gesture: GestureConfig{
			PinchThreshold: gesture.DefaultPinchThreshold,
			Smoothing:      gesture.DefaultSmoothing,
		},
		Pipeline: PipelineConfig{
			TickFPS:         app.TickFPS,
			IdleFPS:         app.IdleFPS,
			ActiveFPS:       app.ActiveFPS,
			IdleTimeout:     app.IdleTimeout,
			MotionThreshold: 1.0,
		},
	}
}

// Load reads the YAML file at path over the defaults. Unknown keys are
// rejected. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("reading %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for values the app cannot run with.
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Addr != "", "addr is required")
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}

	if _, err := capture.ParseFacingMode(c.Camera.Facing); err != nil {
		errs = append(errs, fmt.Errorf("camera.facing: %w", err))
	}
	check(c.Camera.Width >= 0 && c.Camera.Height >= 0, "camera size must not be negative")
	check(c.Camera.ProbeDevices >= 0, "camera.probeDevices must not be negative")

	check(c.Canvas.Width > 0 && c.Canvas.Height > 0, "canvas size must be positive, got %dx%d", c.Canvas.Width, c.Canvas.Height)
	check(c.Canvas.Width <= surface.MaxDimension && c.Canvas.Height <= surface.MaxDimension,
		"canvas size must be at most %d per side, got %dx%d", surface.MaxDimension, c.Canvas.Width, c.Canvas.Height)
	if _, _, err := surface.ParseColor(c.Canvas.StrokeColor); err != nil {
		errs = append(errs, fmt.Errorf("canvas.strokeColor: %w", err))
	}
	check(c.Canvas.LineWidth > 0, "canvas.lineWidth must be positive")
	if _, err := stroke.ParseInputMode(c.Canvas.Mode); err != nil {
		errs = append(errs, fmt.Errorf("canvas.mode: %w", err))
	}

	check(c.Gesture.PinchThreshold > 0 && c.Gesture.PinchThreshold < 1, "gesture.pinchThreshold must be in (0, 1)")
	check(c.Gesture.Smoothing > 0 && c.Gesture.Smoothing <= 1, "gesture.smoothing must be in (0, 1]")

	check(c.Pipeline.TickFPS > 0, "pipeline.tickFPS must be positive")
	check(c.Pipeline.IdleFPS > 0 && c.Pipeline.ActiveFPS >= c.Pipeline.IdleFPS,
		"pipeline fps must satisfy 0 < idleFPS <= activeFPS")
	check(c.Pipeline.IdleTimeout > 0, "pipeline.idleTimeout must be positive")
	check(c.Pipeline.MotionThreshold > 0, "pipeline.motionThreshold must be positive")

	return errors.Join(errs...)
}

// SlogLevel parses LogLevel.
func (c Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("logLevel: %w", err)
	}
	return level, nil
}
