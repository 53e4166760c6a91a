// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads geiger settings from geiger.yaml or geiger.toml.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// File names searched by Find, in order.
var FileNames = []string{"geiger.yaml", "geiger.yml", "geiger.toml"}

// MaxFileSizeLimit caps max_file_size (64MB).
const MaxFileSizeLimit = 64 * 1024 * 1024

var (
	// ErrUnsupportedFormat is returned for config files that are neither
	// YAML nor TOML, judged by extension.
	ErrUnsupportedFormat = errors.New("unsupported config format")

	// ErrUnknownKey is returned when a TOML file sets keys Config does not
	// define. YAML files report unknown keys through the decoder error.
	ErrUnknownKey = errors.New("unknown config key")
)

// configValidate validates Config values after loading.
var configValidate = validator.New()

// Config holds the scan settings.
type Config struct {
	// IncludeTests scans #[test] functions and #[cfg(test)] modules.
	IncludeTests bool `yaml:"include_tests" toml:"include_tests"`

	// StatsMode is "slot" (one shared record, nested regions overwrite it) or
	// "stack" (exact per-region numbers).
	StatsMode string `yaml:"stats_mode" toml:"stats_mode" validate:"oneof=slot stack"`

	// MaxFileSize is the largest source file parsed, in bytes.
	MaxFileSize int64 `yaml:"max_file_size" toml:"max_file_size" validate:"min=1,max=67108864"`

	// Workers bounds concurrent file scans.
	Workers int `yaml:"workers" toml:"workers" validate:"min=1,max=256"`

	LogLevel string `yaml:"log_level" toml:"log_level" validate:"oneof=debug info warn error"`
}

// DefaultConfig returns the settings used when no file is found.
func DefaultConfig() Config {
	return Config{
		IncludeTests: false,
		StatsMode:    "slot",
		MaxFileSize:  10 * 1024 * 1024,
		Workers:      4,
		LogLevel:     "info",
	}
}

// Validate checks every field against its constraints.
func (c *Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// SlogLevel maps LogLevel to a slog.Level. Unknown values map to Info.
func (c *Config) SlogLevel() slog.Level {
	return ParseLevel(c.LogLevel)
}

// ParseLevel maps "debug", "info", "warn" or "error" to a slog.Level.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Load reads path over the defaults and validates the result. Fields the
// file does not set keep their default values.
//
// Inputs:
//   - path: A .yaml, .yml or .toml file.
//
// Outputs:
//   - *Config: The merged, validated settings.
//   - error: I/O, decode or validation failure, wrapped with the path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg := DefaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case ".toml":
		md, err := toml.Decode(string(data), &cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("config %s: %w: %s", path, ErrUnknownKey, undecoded[0].String())
		}
	default:
		return nil, fmt.Errorf("config %s: %w", path, ErrUnsupportedFormat)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

// Find returns the first of FileNames that exists in dir, or "" if none
// does.
func Find(dir string) string {
	for _, name := range FileNames {
		p := filepath.Join(dir, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}

// Resolve loads explicit when it is set, otherwise the first config file
// found in dir, otherwise the defaults.
func Resolve(explicit, dir string) (*Config, string, error) {
	path := explicit
	if path == "" {
		path = Find(dir)
	}
	if path == "" {
		cfg := DefaultConfig()
		return &cfg, "", nil
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// YAML renders the config as a geiger.yaml document.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
