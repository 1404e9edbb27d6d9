package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fxnlabs/cudabind/fixtures"
	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"
)

// FileName is the configuration file looked up inside a home directory.
const FileName = "config.yaml"

// DriverKind selects the driver implementation.
type DriverKind string

const (
	// DriverAuto loads the native library and falls back to the simulator.
	DriverAuto   DriverKind = "auto"
	DriverNative DriverKind = "native"
	DriverSim    DriverKind = "sim"
)

type Config struct {
	Logger struct {
		Verbosity string `yaml:"verbosity"`
	} `yaml:"logger"`
	Driver struct {
		Kind     DriverKind `yaml:"kind"`
		Library  string     `yaml:"library"`
		StageDir string     `yaml:"stageDir"`
	} `yaml:"driver"`
	Device struct {
		Index int `yaml:"index"`
	} `yaml:"device"`
	Sim struct {
		MemoryLimit int64    `yaml:"memoryLimit"`
		Devices     []string `yaml:"devices"`
	} `yaml:"sim"`
	Metrics struct {
		ListenAddress string `yaml:"listenAddress"`
	} `yaml:"metrics"`
}

// Default returns the configuration used when no file overrides a field.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Logger.Verbosity == "" {
		c.Logger.Verbosity = "info"
	}
	if c.Driver.Kind == "" {
		c.Driver.Kind = DriverAuto
	}
	if c.Sim.MemoryLimit == 0 {
		c.Sim.MemoryLimit = 1 << 30
	}
	if c.Metrics.ListenAddress == "" {
		c.Metrics.ListenAddress = ":9464"
	}
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	switch c.Driver.Kind {
	case DriverAuto, DriverNative, DriverSim:
	default:
		return fmt.Errorf("driver.kind: unknown driver %q (want auto, native or sim)", c.Driver.Kind)
	}
	if c.Device.Index < 0 {
		return fmt.Errorf("device.index: must not be negative, got %d", c.Device.Index)
	}
	if c.Sim.MemoryLimit < 0 {
		return fmt.Errorf("sim.memoryLimit: must not be negative, got %d", c.Sim.MemoryLimit)
	}
	return nil
}

// LoadConfig reads path, or path/config.yaml when path is a directory.
func LoadConfig(path string) (*Config, error) {
	path, err := homedir.Expand(path)
	if err != nil {
		return nil, err
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, FileName)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &config, nil
}

// GetDefaultConfigHome returns ~/.cudabind, or .cudabind in the working
// directory when the home directory cannot be determined.
func GetDefaultConfigHome() string {
	home, err := homedir.Dir()
	if err != nil {
		return ".cudabind"
	}
	return filepath.Join(home, ".cudabind")
}

// InitHome writes the configuration template into home unless a
// configuration file already exists there.
func InitHome(home string) (string, error) {
	home, err := homedir.Expand(home)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(home, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(home, FileName)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, os.ErrExist) {
		return path, nil
	}
	if err != nil {
		return "", err
	}
	if _, err := f.Write(fixtures.ConfigTemplate); err != nil {
		f.Close()
		return "", err
	}
	return path, f.Close()
}
