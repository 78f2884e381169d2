// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Loader resolves the effective configuration with the precedence
// ENV > file > defaults.
type Loader struct {
	path    string // config file path; empty means defaults + env only
	version string
}

// NewLoader creates a configuration loader. path may be empty.
func NewLoader(path, version string) *Loader {
	return &Loader{path: strings.TrimSpace(path), version: version}
}

// Load resolves and validates the configuration.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.path != "" {
		merged, err := mergeFile(cfg, l.path, false)
		if err != nil {
			return AppConfig{}, err
		}
		cfg = merged
	}

	cfg = mergeEnv(cfg)
	cfg.Version = l.version

	if cfg.DB.DSN == "" && cfg.DB.Type == "sqlite" {
		cfg.DB.DSN = "file:" + filepath.Join(cfg.DataDir, "reflectd.sqlite")
	}

	if err := Validate(cfg); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// Validate checks configuration invariants.
func Validate(cfg AppConfig) error {
	switch cfg.DB.Type {
	case "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("config: unsupported db type %q", cfg.DB.Type)
	}
	if cfg.DB.DSN == "" {
		return fmt.Errorf("config: db dsn is required for type %q", cfg.DB.Type)
	}
	if cfg.ListenAddr == "" {
		return fmt.Errorf("config: listen address must not be empty")
	}
	if cfg.DriftThreshold < 0 {
		return fmt.Errorf("config: drift threshold must not be negative")
	}
	if cfg.Harness.Enabled {
		if cfg.Harness.Interval <= 0 {
			return fmt.Errorf("config: harness interval must be positive")
		}
		if cfg.Harness.UserID == "" {
			return fmt.Errorf("config: harness user_id must not be empty")
		}
		if cfg.Harness.Limit <= 0 {
			return fmt.Errorf("config: harness limit must be positive")
		}
	}
	if cfg.RateLimitEnabled && cfg.RateLimitRPM <= 0 {
		return fmt.Errorf("config: rate limit rpm must be positive")
	}
	switch cfg.Tracing.ExporterType {
	case "", "noop", "grpc", "http":
	default:
		return fmt.Errorf("config: unsupported tracing exporter %q", cfg.Tracing.ExporterType)
	}
	if cfg.Tracing.SamplingRate < 0 || cfg.Tracing.SamplingRate > 1 {
		return fmt.Errorf("config: tracing sampling rate must be in [0,1]")
	}
	return nil
}
