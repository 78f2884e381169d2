// SPDX-License-Identifier: MIT

// Package health provides health and readiness check functionality.
// It supports Docker HEALTHCHECK and Kubernetes probes with detailed
// component status.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/daverunner/reflectd/internal/log"
)

// Status represents the overall health/readiness status
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult represents the result of a component health check
type CheckResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HealthResponse represents the full health check response
type HealthResponse struct {
	OK          bool                   `json:"ok"`
	Status      Status                 `json:"status"`
	Version     string                 `json:"version,omitempty"`
	Timestamp   time.Time              `json:"timestamp"`
	DBConnected bool                   `json:"db_connected"`
	Checks      map[string]CheckResult `json:"checks,omitempty"`
}

// ReadinessResponse represents the readiness check response
type ReadinessResponse struct {
	Ready     bool                   `json:"ready"`
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// Checker defines the interface for health checks
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

// Manager manages health and readiness checks
type Manager struct {
	version  string
	checkers []Checker
	dbPing   func(ctx context.Context) error
}

// NewManager creates a new health check manager. dbPing reports memory
// bridge connectivity and feeds the db_connected field of the health
// response; it may be nil.
func NewManager(version string, dbPing func(ctx context.Context) error) *Manager {
	return &Manager{
		version:  version,
		checkers: make([]Checker, 0),
		dbPing:   dbPing,
	}
}

// RegisterChecker adds a health checker to the manager
func (m *Manager) RegisterChecker(checker Checker) {
	m.checkers = append(m.checkers, checker)
}

// Health performs a health check (liveness probe).
// The process is alive, so the response is always healthy unless a
// component check reports otherwise; db_connected is reported either way.
func (m *Manager) Health(ctx context.Context) HealthResponse {
	resp := HealthResponse{
		OK:        true,
		Status:    StatusHealthy,
		Version:   m.version,
		Timestamp: time.Now().UTC(),
	}
	if m.dbPing != nil {
		resp.DBConnected = m.dbPing(ctx) == nil
		if !resp.DBConnected {
			resp.Status = StatusDegraded
		}
	}
	return resp
}

// Ready performs a readiness check over all registered checkers.
func (m *Manager) Ready(ctx context.Context) ReadinessResponse {
	resp := ReadinessResponse{
		Ready:     true,
		Status:    StatusHealthy,
		Timestamp: time.Now().UTC(),
	}

	if len(m.checkers) == 0 {
		return resp
	}

	resp.Checks = make(map[string]CheckResult)
	hasUnhealthy := false
	hasDegraded := false

	for _, checker := range m.checkers {
		result := checker.Check(ctx)
		resp.Checks[checker.Name()] = result

		switch result.Status {
		case StatusUnhealthy:
			hasUnhealthy = true
			resp.Ready = false
		case StatusDegraded:
			hasDegraded = true
		}
	}

	if hasUnhealthy {
		resp.Status = StatusUnhealthy
	} else if hasDegraded {
		resp.Status = StatusDegraded
	}

	return resp
}

// ServeHealth handles HTTP health check requests
func (m *Manager) ServeHealth(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "health")

	resp := m.Health(r.Context())

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK) // Always 200 for liveness

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error().Err(err).Str(log.FieldEvent, "health.encode_error").Msg("failed to encode health response")
	}

	logger.Debug().
		Str(log.FieldEvent, "health.checked").
		Str("status", string(resp.Status)).
		Bool("db_connected", resp.DBConnected).
		Msg("health check performed")
}

// ServeReady handles HTTP readiness check requests
func (m *Manager) ServeReady(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "readiness")

	resp := m.Ready(r.Context())

	w.Header().Set("Content-Type", "application/json")
	if resp.Ready {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error().Err(err).Str(log.FieldEvent, "readiness.encode_error").Msg("failed to encode readiness response")
	}

	logger.Debug().
		Str(log.FieldEvent, "readiness.checked").
		Str("status", string(resp.Status)).
		Bool("ready", resp.Ready).
		Msg("readiness check performed")
}

// DBChecker verifies database connectivity with a bounded ping.
type DBChecker struct {
	ping    func(ctx context.Context) error
	timeout time.Duration
}

// NewDBChecker creates a checker around the store ping function.
func NewDBChecker(ping func(ctx context.Context) error, timeout time.Duration) *DBChecker {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &DBChecker{ping: ping, timeout: timeout}
}

func (c *DBChecker) Name() string {
	return "database"
}

func (c *DBChecker) Check(ctx context.Context) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.ping(ctx); err != nil {
		return CheckResult{
			Status: StatusUnhealthy,
			Error:  err.Error(),
		}
	}
	return CheckResult{
		Status:  StatusHealthy,
		Message: "database reachable",
	}
}

// LastCycleChecker checks the outcome of the last continuity cycle.
type LastCycleChecker struct {
	getLastCycle func() (time.Time, string)
	maxAge       time.Duration
}

// NewLastCycleChecker creates a checker for the continuity harness status.
// maxAge bounds how stale the last successful cycle may be before the
// service is reported degraded.
func NewLastCycleChecker(getLastCycle func() (time.Time, string), maxAge time.Duration) *LastCycleChecker {
	return &LastCycleChecker{getLastCycle: getLastCycle, maxAge: maxAge}
}

func (c *LastCycleChecker) Name() string {
	return "last_cycle"
}

func (c *LastCycleChecker) Check(ctx context.Context) CheckResult {
	lastRun, lastError := c.getLastCycle()

	if lastRun.IsZero() {
		return CheckResult{
			Status:  StatusDegraded,
			Message: "no continuity cycle completed yet",
		}
	}

	if lastError != "" {
		return CheckResult{
			Status:  StatusUnhealthy,
			Error:   lastError,
			Message: "last continuity cycle failed",
		}
	}

	if c.maxAge > 0 && time.Since(lastRun) > c.maxAge {
		return CheckResult{
			Status:  StatusDegraded,
			Message: "last successful cycle too long ago",
		}
	}

	return CheckResult{
		Status:  StatusHealthy,
		Message: "last continuity cycle successful",
	}
}
