package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/samcharles93/devcopy/pkg/dtype"
)

// Config represents the devcopy configuration file
// (~/.config/devcopy/config.yaml). Pointer fields distinguish "not set"
// from zero values.
type Config struct {
	// Backend
	Backend     string `yaml:"backend"`
	HostDevices *int   `yaml:"host_devices"`

	// Copy defaults
	Casting string `yaml:"casting"`

	// Output
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Server
	ServerAddress string `yaml:"server_address"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "devcopy", "config.yaml")
}

// LoadConfig reads the config file at path, or at the default location when
// path is empty. A missing default file yields a zero Config.
func LoadConfig(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		path = configPath()
	}
	if path == "" {
		return Config{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// settings are the resolved global options shared by every command.
type settings struct {
	backend       string
	hostDevices   int
	casting       dtype.Casting
	logLevel      string
	logFormat     string
	serverAddress string
}

// resolveSettings applies config file values to every global flag the
// user did not set explicitly.
func resolveSettings(c *cli.Command, cfg Config) (settings, error) {
	s := settings{
		backend:       c.String("backend"),
		hostDevices:   int(c.Int("host-devices")),
		logLevel:      c.String("log-level"),
		logFormat:     c.String("log-format"),
		serverAddress: defaultServerAddress,
	}
	casting := c.String("casting")

	if cfg.Backend != "" && !c.IsSet("backend") {
		s.backend = cfg.Backend
	}
	if cfg.HostDevices != nil && !c.IsSet("host-devices") {
		s.hostDevices = *cfg.HostDevices
	}
	if cfg.Casting != "" && !c.IsSet("casting") {
		casting = cfg.Casting
	}
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		s.logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		s.logFormat = cfg.LogFormat
	}
	if cfg.ServerAddress != "" {
		s.serverAddress = cfg.ServerAddress
	}
	if c.Bool("debug") {
		s.logLevel = "debug"
	}

	var err error
	s.casting, err = dtype.ParseCasting(casting)
	if err != nil {
		return settings{}, err
	}
	return s, nil
}
