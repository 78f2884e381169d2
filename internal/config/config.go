// SPDX-License-Identifier: MIT

// Package config loads and validates the reflectd configuration with the
// precedence ENV > file > defaults.
package config

import (
	"time"

	"github.com/daverunner/reflectd/internal/continuity"
)

// AppConfig is the complete runtime configuration of reflectd.
type AppConfig struct {
	// HTTP
	ListenAddr     string        `yaml:"listen"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	TrustedProxies string        `yaml:"trusted_proxies"` // CSV of CIDRs

	// Auth
	APIKey        string `yaml:"api_key"`
	AuthAnonymous bool   `yaml:"auth_anonymous"`

	// Logging
	LogLevel   string `yaml:"log_level"`
	LogService string `yaml:"log_service"`

	// Storage
	DataDir string `yaml:"data_dir"`
	DB      DB     `yaml:"db"`

	// Verification
	DriftThreshold float64 `yaml:"drift_threshold"`

	// Continuity harness
	Harness Harness `yaml:"harness"`

	// Rate limiting
	RateLimitEnabled bool `yaml:"rate_limit_enabled"`
	RateLimitRPM     int  `yaml:"rate_limit_rpm"`

	// Window cache
	Redis          Redis         `yaml:"redis"`
	WindowCacheTTL time.Duration `yaml:"window_cache_ttl"`

	// Tracing
	Tracing Tracing `yaml:"tracing"`

	// Version is injected by the daemon, not configurable.
	Version string `yaml:"-"`
}

// DB selects the Postgres-family backend of the memory bridge.
type DB struct {
	Type string `yaml:"type"` // "sqlite", "postgres" or "mysql"
	DSN  string `yaml:"dsn"`
}

// Harness configures the scheduled continuity cycle.
type Harness struct {
	Enabled   bool          `yaml:"enabled"`
	Interval  time.Duration `yaml:"interval"`
	UserID    string        `yaml:"user_id"`
	ThreadID  string        `yaml:"thread_id"`
	SessionID string        `yaml:"session_id"`
	Limit     int           `yaml:"limit"`
}

// Redis configures the optional window cache backend.
type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Tracing configures the OpenTelemetry exporter.
type Tracing struct {
	Enabled      bool    `yaml:"enabled"`
	ExporterType string  `yaml:"exporter"` // "grpc", "http" or "noop"
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
	Environment  string  `yaml:"environment"`
}

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		ListenAddr:     ":8080",
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   30 * time.Second,
		LogLevel:       "info",
		LogService:     "reflectd",
		DataDir:        "/tmp/reflectd",
		DB:             DB{Type: "sqlite"},
		DriftThreshold: continuity.DefaultDriftThreshold,
		Harness: Harness{
			Enabled:   true,
			Interval:  12 * time.Hour,
			UserID:    "phil",
			ThreadID:  "continuity_diary",
			SessionID: "continuity",
			Limit:     20,
		},
		RateLimitEnabled: true,
		RateLimitRPM:     600,
		WindowCacheTTL:   30 * time.Second,
		Tracing: Tracing{
			ExporterType: "noop",
			SamplingRate: 1.0,
			Environment:  "development",
		},
	}
}
