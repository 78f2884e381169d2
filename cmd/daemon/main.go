// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/daverunner/reflectd/internal/api"
	"github.com/daverunner/reflectd/internal/cache"
	"github.com/daverunner/reflectd/internal/config"
	"github.com/daverunner/reflectd/internal/harness"
	"github.com/daverunner/reflectd/internal/health"
	"github.com/daverunner/reflectd/internal/log"
	"github.com/daverunner/reflectd/internal/store"
	"github.com/daverunner/reflectd/internal/telemetry"
)

var (
	version   = "v0.1.0"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	// Safe defaults until the configuration is loaded.
	log.Configure(log.Config{
		Level:   "info",
		Service: "reflectd",
		Version: version,
	})
	logger := log.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Config path: explicit via --config, otherwise auto-load
	// ${REFLECTD_DATA}/reflectd.yaml when it exists.
	effectiveConfigPath := strings.TrimSpace(*configPath)
	if effectiveConfigPath == "" {
		dataDir := strings.TrimSpace(config.ParseString("REFLECTD_DATA", "/tmp/reflectd"))
		autoPath := filepath.Join(dataDir, "reflectd.yaml")
		if _, err := os.Stat(autoPath); err == nil {
			effectiveConfigPath = autoPath
		}
	}

	loader := config.NewLoader(effectiveConfigPath, version)
	cfg, err := loader.Load()
	if err != nil {
		logger.Fatal().
			Err(err).
			Str(log.FieldEvent, "config.load_failed").
			Str("config_path", effectiveConfigPath).
			Msg("failed to load configuration")
	}

	// Re-configure the logger with the loaded configuration.
	log.Configure(log.Config{
		Level:   cfg.LogLevel,
		Service: cfg.LogService,
		Version: cfg.Version,
	})

	if effectiveConfigPath != "" {
		logger.Info().
			Str(log.FieldEvent, "config.loaded").
			Str("source", "file").
			Str("path", effectiveConfigPath).
			Msg("loaded configuration from file")
	} else {
		logger.Info().
			Str(log.FieldEvent, "config.loaded").
			Str("source", "env+defaults").
			Msg("loaded configuration from environment and defaults")
	}

	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		logger.Fatal().
			Err(err).
			Str("data_dir", cfg.DataDir).
			Msg("failed to create data directory")
	}

	logger.Info().
		Str(log.FieldEvent, "startup").
		Str("version", version).
		Str("commit", commit).
		Str("build_date", buildDate).
		Str("addr", cfg.ListenAddr).
		Msg("starting reflectd")

	logger.Info().Msgf("→ Database: %s", cfg.DB.Type)
	logger.Info().Msgf("→ Data dir: %s", cfg.DataDir)
	if cfg.APIKey != "" {
		logger.Info().Msg("→ API key: configured")
	} else if cfg.AuthAnonymous {
		logger.Warn().Msg("→ API key: NOT configured, anonymous access enabled")
	} else {
		logger.Warn().Msg("→ API key: NOT configured, memory endpoints fail closed. Set REFLECTD_API_KEY.")
	}
	if cfg.Harness.Enabled {
		logger.Info().Msgf("→ Continuity harness: every %s for %s", cfg.Harness.Interval, cfg.Harness.UserID)
	} else {
		logger.Info().Msg("→ Continuity harness: disabled")
	}

	// Tracing.
	provider, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Tracing.Enabled,
		ServiceName:    cfg.LogService,
		ServiceVersion: version,
		Environment:    cfg.Tracing.Environment,
		ExporterType:   cfg.Tracing.ExporterType,
		Endpoint:       cfg.Tracing.Endpoint,
		SamplingRate:   cfg.Tracing.SamplingRate,
	})
	if err != nil {
		logger.Fatal().
			Err(err).
			Str(log.FieldEvent, "telemetry.init_failed").
			Msg("failed to initialize tracing")
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("tracer shutdown failed")
		}
	}()

	// Memory bridge.
	st, err := store.Open(cfg.DB.Type, cfg.DB.DSN, store.DefaultConfig())
	if err != nil {
		logger.Fatal().
			Err(err).
			Str(log.FieldEvent, "store.open_failed").
			Str("db_type", cfg.DB.Type).
			Msg("failed to open memory bridge")
	}
	defer func() { _ = st.Close() }()

	// Recall window cache: Redis when configured, in-memory otherwise.
	var windowCache cache.WindowCache
	if cfg.Redis.Addr != "" {
		windowCache, err = cache.NewRedisCache(cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, log.WithComponent("cache"))
		if err != nil {
			logger.Warn().
				Err(err).
				Str(log.FieldEvent, "cache.redis_unavailable").
				Msg("redis unreachable, falling back to in-memory cache")
			windowCache = cache.NewMemoryCache()
		}
	} else {
		windowCache = cache.NewMemoryCache()
	}
	defer func() { _ = windowCache.Close() }()

	// Health checks.
	hm := health.NewManager(version, st.Ping)
	hm.RegisterChecker(health.NewDBChecker(st.Ping, 2*time.Second))

	// Continuity harness.
	var h *harness.Harness
	if cfg.Harness.Enabled {
		h = harness.New(harness.Config{
			UserID:         cfg.Harness.UserID,
			ThreadID:       cfg.Harness.ThreadID,
			SessionID:      cfg.Harness.SessionID,
			Limit:          cfg.Harness.Limit,
			Interval:       cfg.Harness.Interval,
			DriftThreshold: cfg.DriftThreshold,
			DataDir:        cfg.DataDir,
		}, st, windowCache)
		// Allow two missed cycles before reporting degraded.
		hm.RegisterChecker(health.NewLastCycleChecker(h.LastCycle, 3*cfg.Harness.Interval))
	}

	// Config hot reload.
	var watcher *config.Watcher
	if effectiveConfigPath != "" {
		watcher = config.NewWatcher(loader, effectiveConfigPath, cfg)
		watcher.OnReload(func(next config.AppConfig) {
			log.Configure(log.Config{
				Level:   next.LogLevel,
				Service: next.LogService,
				Version: next.Version,
			})
		})
	}

	server := api.New(cfg, st, windowCache, hm, h, watcher)
	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.Router(),
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().
			Str(log.FieldEvent, "http.listen").
			Str("addr", cfg.ListenAddr).
			Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if h != nil {
		g.Go(func() error {
			if err := h.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("harness: %w", err)
			}
			return nil
		})
	}

	if watcher != nil {
		g.Go(func() error {
			return watcher.Run(gctx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().
			Err(err).
			Str(log.FieldEvent, "daemon.failed").
			Msg("daemon exited with error")
	}

	stats := windowCache.Stats()
	logger.Info().
		Str(log.FieldEvent, "cache.stats").
		Int64("hits", stats.Hits).
		Int64("misses", stats.Misses).
		Int64("sets", stats.Sets).
		Msg("window cache counters at shutdown")

	logger.Info().Msg("server exiting")
}
