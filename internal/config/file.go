// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors AppConfig for YAML with optional fields, so a config
// file only overrides what it sets. Durations are strings ("12h", "90s").
type fileConfig struct {
	Listen         *string  `yaml:"listen"`
	ReadTimeout    *string  `yaml:"read_timeout"`
	WriteTimeout   *string  `yaml:"write_timeout"`
	TrustedProxies *string  `yaml:"trusted_proxies"`
	APIKey         *string  `yaml:"api_key"`
	AuthAnonymous  *bool    `yaml:"auth_anonymous"`
	LogLevel       *string  `yaml:"log_level"`
	LogService     *string  `yaml:"log_service"`
	DataDir        *string  `yaml:"data_dir"`
	DriftThreshold *float64 `yaml:"drift_threshold"`

	DB *struct {
		Type *string `yaml:"type"`
		DSN  *string `yaml:"dsn"`
	} `yaml:"db"`

	Harness *struct {
		Enabled   *bool   `yaml:"enabled"`
		Interval  *string `yaml:"interval"`
		UserID    *string `yaml:"user_id"`
		ThreadID  *string `yaml:"thread_id"`
		SessionID *string `yaml:"session_id"`
		Limit     *int    `yaml:"limit"`
	} `yaml:"harness"`

	RateLimitEnabled *bool `yaml:"rate_limit_enabled"`
	RateLimitRPM     *int  `yaml:"rate_limit_rpm"`

	Redis *struct {
		Addr     *string `yaml:"addr"`
		Password *string `yaml:"password"`
		DB       *int    `yaml:"db"`
	} `yaml:"redis"`
	WindowCacheTTL *string `yaml:"window_cache_ttl"`

	Tracing *struct {
		Enabled      *bool    `yaml:"enabled"`
		ExporterType *string  `yaml:"exporter"`
		Endpoint     *string  `yaml:"endpoint"`
		SamplingRate *float64 `yaml:"sampling_rate"`
		Environment  *string  `yaml:"environment"`
	} `yaml:"tracing"`
}

// mergeFile overlays the YAML file at path onto cfg. A missing file is not
// an error when optional is true.
func mergeFile(cfg AppConfig, path string, optional bool) (AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return cfg, fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString(&cfg.ListenAddr, fc.Listen)
	if err := setDuration(&cfg.ReadTimeout, fc.ReadTimeout); err != nil {
		return cfg, fmt.Errorf("read_timeout: %w", err)
	}
	if err := setDuration(&cfg.WriteTimeout, fc.WriteTimeout); err != nil {
		return cfg, fmt.Errorf("write_timeout: %w", err)
	}
	setString(&cfg.TrustedProxies, fc.TrustedProxies)
	setString(&cfg.APIKey, fc.APIKey)
	setBool(&cfg.AuthAnonymous, fc.AuthAnonymous)
	setString(&cfg.LogLevel, fc.LogLevel)
	setString(&cfg.LogService, fc.LogService)
	setString(&cfg.DataDir, fc.DataDir)
	setFloat(&cfg.DriftThreshold, fc.DriftThreshold)

	if fc.DB != nil {
		setString(&cfg.DB.Type, fc.DB.Type)
		setString(&cfg.DB.DSN, fc.DB.DSN)
	}

	if fc.Harness != nil {
		setBool(&cfg.Harness.Enabled, fc.Harness.Enabled)
		if err := setDuration(&cfg.Harness.Interval, fc.Harness.Interval); err != nil {
			return cfg, fmt.Errorf("harness.interval: %w", err)
		}
		setString(&cfg.Harness.UserID, fc.Harness.UserID)
		setString(&cfg.Harness.ThreadID, fc.Harness.ThreadID)
		setString(&cfg.Harness.SessionID, fc.Harness.SessionID)
		setInt(&cfg.Harness.Limit, fc.Harness.Limit)
	}

	setBool(&cfg.RateLimitEnabled, fc.RateLimitEnabled)
	setInt(&cfg.RateLimitRPM, fc.RateLimitRPM)

	if fc.Redis != nil {
		setString(&cfg.Redis.Addr, fc.Redis.Addr)
		setString(&cfg.Redis.Password, fc.Redis.Password)
		setInt(&cfg.Redis.DB, fc.Redis.DB)
	}
	if err := setDuration(&cfg.WindowCacheTTL, fc.WindowCacheTTL); err != nil {
		return cfg, fmt.Errorf("window_cache_ttl: %w", err)
	}

	if fc.Tracing != nil {
		setBool(&cfg.Tracing.Enabled, fc.Tracing.Enabled)
		setString(&cfg.Tracing.ExporterType, fc.Tracing.ExporterType)
		setString(&cfg.Tracing.Endpoint, fc.Tracing.Endpoint)
		setFloat(&cfg.Tracing.SamplingRate, fc.Tracing.SamplingRate)
		setString(&cfg.Tracing.Environment, fc.Tracing.Environment)
	}

	return cfg, nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func setFloat(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}

func setDuration(dst *time.Duration, src *string) error {
	if src == nil {
		return nil
	}
	d, err := time.ParseDuration(*src)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}
