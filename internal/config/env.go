// SPDX-License-Identifier: MIT

package config

import (
	"os"
	"strconv"
	"time"

	"github.com/daverunner/reflectd/internal/log"
)

// ParseString reads a string from an environment variable or returns the
// default value.
func ParseString(key, defaultValue string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return defaultValue
}

// ParseInt reads an integer from an environment variable, falling back to
// the default on absence or parse errors.
func ParseInt(key string, defaultValue int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
		logger := log.WithComponent("config")
		logger.Warn().
			Str("key", key).
			Str("value", v).
			Msg("invalid integer in environment, using default")
	}
	return defaultValue
}

// ParseBool reads a boolean from an environment variable.
func ParseBool(key string, defaultValue bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
		logger := log.WithComponent("config")
		logger.Warn().
			Str("key", key).
			Str("value", v).
			Msg("invalid boolean in environment, using default")
	}
	return defaultValue
}

// ParseFloat reads a float from an environment variable.
func ParseFloat(key string, defaultValue float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		logger := log.WithComponent("config")
		logger.Warn().
			Str("key", key).
			Str("value", v).
			Msg("invalid float in environment, using default")
	}
	return defaultValue
}

// ParseDuration reads a duration ("12h", "90s") from an environment variable.
func ParseDuration(key string, defaultValue time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		logger := log.WithComponent("config")
		logger.Warn().
			Str("key", key).
			Str("value", v).
			Msg("invalid duration in environment, using default")
	}
	return defaultValue
}

// mergeEnv overlays environment variables onto cfg. Environment wins over
// file values and defaults.
func mergeEnv(cfg AppConfig) AppConfig {
	cfg.ListenAddr = ParseString("REFLECTD_LISTEN", cfg.ListenAddr)
	cfg.ReadTimeout = ParseDuration("REFLECTD_READ_TIMEOUT", cfg.ReadTimeout)
	cfg.WriteTimeout = ParseDuration("REFLECTD_WRITE_TIMEOUT", cfg.WriteTimeout)
	cfg.TrustedProxies = ParseString("REFLECTD_TRUSTED_PROXIES", cfg.TrustedProxies)

	cfg.APIKey = ParseString("REFLECTD_API_KEY", cfg.APIKey)
	cfg.AuthAnonymous = ParseBool("REFLECTD_AUTH_ANONYMOUS", cfg.AuthAnonymous)

	cfg.LogLevel = ParseString("REFLECTD_LOG_LEVEL", cfg.LogLevel)
	cfg.LogService = ParseString("REFLECTD_LOG_SERVICE", cfg.LogService)

	cfg.DataDir = ParseString("REFLECTD_DATA", cfg.DataDir)
	cfg.DB.Type = ParseString("REFLECTD_DB_TYPE", cfg.DB.Type)
	cfg.DB.DSN = ParseString("REFLECTD_DB_DSN", cfg.DB.DSN)

	cfg.DriftThreshold = ParseFloat("REFLECTD_DRIFT_THRESHOLD", cfg.DriftThreshold)

	cfg.Harness.Enabled = ParseBool("REFLECTD_HARNESS_ENABLED", cfg.Harness.Enabled)
	cfg.Harness.Interval = ParseDuration("REFLECTD_HARNESS_INTERVAL", cfg.Harness.Interval)
	cfg.Harness.UserID = ParseString("REFLECTD_HARNESS_USER", cfg.Harness.UserID)
	cfg.Harness.ThreadID = ParseString("REFLECTD_HARNESS_THREAD", cfg.Harness.ThreadID)
	cfg.Harness.SessionID = ParseString("REFLECTD_HARNESS_SESSION", cfg.Harness.SessionID)
	cfg.Harness.Limit = ParseInt("REFLECTD_HARNESS_LIMIT", cfg.Harness.Limit)

	cfg.RateLimitEnabled = ParseBool("REFLECTD_RATE_LIMIT_ENABLED", cfg.RateLimitEnabled)
	cfg.RateLimitRPM = ParseInt("REFLECTD_RATE_LIMIT_RPM", cfg.RateLimitRPM)

	cfg.Redis.Addr = ParseString("REFLECTD_REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = ParseString("REFLECTD_REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = ParseInt("REFLECTD_REDIS_DB", cfg.Redis.DB)
	cfg.WindowCacheTTL = ParseDuration("REFLECTD_WINDOW_CACHE_TTL", cfg.WindowCacheTTL)

	cfg.Tracing.Enabled = ParseBool("REFLECTD_TRACING_ENABLED", cfg.Tracing.Enabled)
	cfg.Tracing.ExporterType = ParseString("REFLECTD_TRACING_EXPORTER", cfg.Tracing.ExporterType)
	cfg.Tracing.Endpoint = ParseString("REFLECTD_TRACING_ENDPOINT", cfg.Tracing.Endpoint)
	cfg.Tracing.SamplingRate = ParseFloat("REFLECTD_TRACING_SAMPLING_RATE", cfg.Tracing.SamplingRate)
	cfg.Tracing.Environment = ParseString("REFLECTD_TRACING_ENVIRONMENT", cfg.Tracing.Environment)

	return cfg
}
