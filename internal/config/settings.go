package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings are the persistent tool settings read from ~/.rtrk/config.yaml.
// Flags override them.
type Settings struct {
	// Device is the address or advertised name of the default gate.
	Device         string        `yaml:"device"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// RaceInterval is how often lap updates are read during a heat.
	RaceInterval time.Duration `yaml:"race_interval"`

	CalibrationInterval time.Duration `yaml:"calibration_interval"`
	CalibrationDeadline time.Duration `yaml:"calibration_deadline"`

	// Vocabulary optionally replaces the built-in command table.
	Vocabulary string `yaml:"vocabulary"`
	// StoreDir holds saved channel presets.
	StoreDir string `yaml:"store_dir"`
}

// Dir returns the tool's data directory, $HOME/.rtrk.
// Falls back to ".rtrk" if $HOME cannot be determined.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".rtrk"
	}
	return filepath.Join(home, ".rtrk")
}

// DefaultPath is where Load looks when no path is given.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// Defaults returns the settings used when no file is present.
func Defaults() *Settings {
	return &Settings{
		ConnectTimeout:      10 * time.Second,
		RaceInterval:        250 * time.Millisecond,
		CalibrationInterval: time.Second,
		CalibrationDeadline: 60 * time.Second,
		StoreDir:            filepath.Join(Dir(), "store"),
	}
}

// Load reads a YAML settings file over the defaults. A missing file is not
// an error. RTRK_DEVICE overrides the device in the file.
func Load(path string) (*Settings, error) {
	s := Defaults()
	if path == "" {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read settings: %w", err)
	default:
		if err := yaml.Unmarshal(data, s); err != nil {
			return nil, fmt.Errorf("parse settings %s: %w", path, err)
		}
	}

	if v := os.Getenv("RTRK_DEVICE"); v != "" {
		s.Device = v
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate rejects settings the tool cannot run with.
func (s *Settings) Validate() error {
	if s.ConnectTimeout <= 0 {
		return fmt.Errorf("connect_timeout must be > 0, got %s", s.ConnectTimeout)
	}
	if s.RaceInterval <= 0 {
		return fmt.Errorf("race_interval must be > 0, got %s", s.RaceInterval)
	}
	if s.CalibrationInterval <= 0 {
		return fmt.Errorf("calibration_interval must be > 0, got %s", s.CalibrationInterval)
	}
	if s.CalibrationDeadline < 0 {
		return fmt.Errorf("calibration_deadline must not be negative, got %s", s.CalibrationDeadline)
	}
	return nil
}
