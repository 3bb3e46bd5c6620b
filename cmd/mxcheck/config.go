package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config represents the mxcheck configuration file (~/.config/mxcheck/config.yaml).
// Pointer fields distinguish "not set" from zero values.
type Config struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	Workers   *int64 `yaml:"workers"`

	Tolerance struct {
		Abs *float64 `yaml:"abs"`
		Rel *float64 `yaml:"rel"`
	} `yaml:"tolerance"`

	// Output
	DumpDir string `yaml:"dump_dir"`

	// Server
	ServerAddress string `yaml:"server_address"`
	MaxDim        *int64 `yaml:"max_dim"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "mxcheck", "config.yaml")
}

// LoadConfig reads the config file at path, or the default location when
// path is empty. A missing default file yields a zero Config; a missing
// explicit file is an error.
func LoadConfig(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		path = configPath()
		if path == "" {
			return Config{}, nil
		}
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

// applyGlobalConfig applies config file defaults to the global flag
// variables when the corresponding CLI flag was not explicitly set.
func applyGlobalConfig(c *cli.Command, cfg Config) {
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
	if cfg.Workers != nil && !c.IsSet("workers") {
		workers = *cfg.Workers
	}
	if cfg.Tolerance.Abs != nil && !c.IsSet("atol") {
		atol = *cfg.Tolerance.Abs
	}
	if cfg.Tolerance.Rel != nil && !c.IsSet("rtol") {
		rtol = *cfg.Tolerance.Rel
	}
}

// applyServeConfig applies config file defaults to serve command variables.
func applyServeConfig(c *cli.Command, cfg Config, addr *string, maxDim *int64) {
	if cfg.ServerAddress != "" && !c.IsSet("addr") {
		*addr = cfg.ServerAddress
	}
	if cfg.MaxDim != nil && !c.IsSet("max-dim") {
		*maxDim = *cfg.MaxDim
	}
}

// applyDumpConfig applies the dump directory default to the matrix command.
func applyDumpConfig(c *cli.Command, cfg Config, dumpDir *string) {
	if cfg.DumpDir != "" && !c.IsSet("dump-dir") {
		*dumpDir = cfg.DumpDir
	}
}
