// SPDX-License-Identifier: MIT

// Package api exposes the memory bridge over authenticated HTTP.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/daverunner/reflectd/internal/cache"
	"github.com/daverunner/reflectd/internal/config"
	"github.com/daverunner/reflectd/internal/harness"
	"github.com/daverunner/reflectd/internal/health"
	"github.com/daverunner/reflectd/internal/log"
	"github.com/daverunner/reflectd/internal/middleware"
	"github.com/daverunner/reflectd/internal/store"
)

// Server serves the reflection memory API.
type Server struct {
	cfg     config.AppConfig
	store   store.Store
	cache   cache.WindowCache
	health  *health.Manager
	harness *harness.Harness
	watcher *config.Watcher
}

// New creates an API server. cache, harness and watcher may be nil.
func New(cfg config.AppConfig, st store.Store, wc cache.WindowCache, hm *health.Manager, h *harness.Harness, w *config.Watcher) *Server {
	return &Server{
		cfg:     cfg,
		store:   st,
		cache:   wc,
		health:  hm,
		harness: h,
		watcher: w,
	}
}

// Router builds the chi router with the canonical middleware stack.
func (s *Server) Router() http.Handler {
	trusted, err := middleware.ParseTrustedProxies(s.cfg.TrustedProxies)
	if err != nil {
		logger := log.WithComponent("api")
		logger.Warn().
			Err(err).
			Str(log.FieldEvent, "api.trusted_proxies_invalid").
			Msg("ignoring trusted proxy configuration")
	}

	tracingService := ""
	if s.cfg.Tracing.Enabled {
		tracingService = s.cfg.LogService
	}

	r := middleware.NewRouter(middleware.StackConfig{
		EnableSecurityHeaders: true,
		TrustedProxies:        trusted,
		EnableMetrics:         true,
		TracingService:        tracingService,
		EnableLogging:         true,
		EnableRateLimit:       s.cfg.RateLimitEnabled,
		RateLimitRPM:          s.cfg.RateLimitRPM,
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "unknown operation")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})

	// Public probes and metrics.
	r.Get("/healthz", s.health.ServeHealth)
	r.Get("/health", s.health.ServeHealth) // legacy alias
	r.Get("/readyz", s.health.ServeReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Memory surface, API key required.
	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)

		r.Get("/memory", s.handleGetMemory)
		r.Get("/get_memory", s.handleGetMemory) // legacy alias
		r.Post("/memory/save", s.handleSaveMemory)
		r.Post("/save_memory", s.handleSaveMemory) // legacy alias
		r.Post("/memory/scan", s.handleScan)
		r.Post("/memory/context-scan", s.handleContextScan)
		r.Post("/memory/verify", s.handleVerify)
		r.Post("/memory/cycle", s.handleCycle)
		r.Post("/internal/config/reload", s.handleConfigReload)
	})

	return r
}
