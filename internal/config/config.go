// Package config loads the eyecue configuration: defaults, an optional YAML
// file and environment overrides, applied in that order.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/teslashibe/go-eyecue/pkg/gyro"
	"github.com/teslashibe/go-eyecue/pkg/tracking"
	"github.com/teslashibe/go-eyecue/pkg/web"
)

// Environment overrides.
const (
	EnvCamera           = "EYECUE_CAMERA"
	EnvPort             = "EYECUE_PORT"
	EnvStrategy         = "EYECUE_STRATEGY"
	EnvGyroPort         = "EYECUE_GYRO_PORT"
	EnvScreenDistanceMM = "EYECUE_SCREEN_DISTANCE_MM"
)

// CameraConfig selects the capture device.
type CameraConfig struct {
	Device string `yaml:"device"` // index ("0") or a path/URL
	Width  int    `yaml:"width"`  // requested capture size; 0 = driver default
	Height int    `yaml:"height"`
}

// GyroConfig enables the serial head-rotation sensor.
type GyroConfig struct {
	Port string `yaml:"port"` // empty disables the gyro
	Baud int    `yaml:"baud"`
}

// Config is the complete application configuration.
type Config struct {
	LogLevel string          `yaml:"log_level"`
	Camera   CameraConfig    `yaml:"camera"`
	Tracking tracking.Config `yaml:"tracking"`
	Web      web.Config      `yaml:"web"`
	Gyro     GyroConfig      `yaml:"gyro"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel: "info",
		Camera:   CameraConfig{Device: "0", Width: 1280, Height: 720},
		Tracking: tracking.DefaultConfig(),
		Web:      web.DefaultConfig(),
		Gyro:     GyroConfig{Baud: gyro.DefaultBaud},
	}
}

// Load builds the configuration. An empty path skips the file; a missing
// file is an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		r, err := os.Open(path)
		if err != nil {
			return Config{}, fmt.Errorf("error loading %s: %w", path, err)
		}
		defer r.Close()
		if err := Decode(r, &cfg); err != nil {
			return Config{}, fmt.Errorf("error reading config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Decode overlays YAML from r onto cfg. Keys absent from the document keep
// their current values. An empty document is not an error.
func Decode(r io.Reader, cfg *Config) error {
	d := yaml.NewDecoder(r)
	d.KnownFields(true)
	if err := d.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Save writes cfg as YAML to path.
func Save(path string, cfg Config) error {
	text, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error encoding config: %w", err)
	}
	if err := os.WriteFile(path, text, 0o644); err != nil {
		return fmt.Errorf("error writing config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv(EnvCamera); v != "" {
		c.Camera.Device = v
	}
	if v := getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(strings.TrimPrefix(v, ":"))
		if err != nil || port <= 0 || port > 65535 {
			return fmt.Errorf("config: %s=%q is not a port", EnvPort, v)
		}
		c.Web.Addr = ":" + strconv.Itoa(port)
	}
	if v := getenv(EnvStrategy); v != "" {
		k, err := tracking.ParseStrategy(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", EnvStrategy, err)
		}
		c.Tracking.Strategy = k
	}
	if v := getenv(EnvGyroPort); v != "" {
		c.Gyro.Port = v
	}
	if v := getenv(EnvScreenDistanceMM); v != "" {
		mm, err := strconv.ParseFloat(v, 64)
		if err != nil || mm <= 0 {
			return fmt.Errorf("config: %s=%q is not a positive distance", EnvScreenDistanceMM, v)
		}
		c.Tracking.Screen.DistanceMM = mm
	}
	return nil
}

// Validate rejects values the tracker cannot run with.
func (c Config) Validate() error {
	if _, err := tracking.ParseStrategy(string(c.Tracking.Strategy)); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Tracking.FrameInterval <= 0 {
		return fmt.Errorf("config: tracking.frame_interval must be positive, got %v", c.Tracking.FrameInterval)
	}
	if c.Tracking.Smoothing <= 0 || c.Tracking.Smoothing > 1 {
		return fmt.Errorf("config: tracking.smoothing must be in (0, 1], got %v", c.Tracking.Smoothing)
	}
	if c.Tracking.Screen.Width < 0 || c.Tracking.Screen.Height < 0 {
		return fmt.Errorf("config: negative screen size %dx%d", c.Tracking.Screen.Width, c.Tracking.Screen.Height)
	}
	if c.Camera.Device == "" {
		return errors.New("config: camera.device is empty")
	}
	if c.Gyro.Port != "" && c.Gyro.Baud <= 0 {
		return fmt.Errorf("config: gyro.baud must be positive, got %d", c.Gyro.Baud)
	}
	return nil
}

// CameraIndex returns the device as a camera index when it is numeric.
func (c CameraConfig) CameraIndex() (int, bool) {
	i, err := strconv.Atoi(c.Device)
	return i, err == nil && i >= 0
}
