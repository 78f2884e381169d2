// SPDX-License-Identifier: MIT

// Package harness runs the scheduled continuity cycle: ping the memory
// bridge, scan drift, verify checksums, archive the cycle report and
// export it to the data directory.
package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/renameio/v2"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/daverunner/reflectd/internal/cache"
	"github.com/daverunner/reflectd/internal/continuity"
	"github.com/daverunner/reflectd/internal/log"
	"github.com/daverunner/reflectd/internal/metrics"
	"github.com/daverunner/reflectd/internal/store"
	"github.com/daverunner/reflectd/internal/telemetry"
)

// ErrCycleInProgress is returned when a cycle is triggered while another
// one is still running.
var ErrCycleInProgress = errors.New("harness: cycle already in progress")

// ReportFileName is the exported continuity report in the data directory.
const ReportFileName = "continuity_report.json"

// Config holds the harness parameters.
type Config struct {
	UserID    string
	ThreadID  string
	SessionID string
	Limit     int

	Interval       time.Duration
	DriftThreshold float64
	DataDir        string
}

// Report is the outcome of one continuity cycle.
type Report struct {
	CycleID     string    `json:"cycle_id"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	DBConnected bool      `json:"db_connected"`

	Scan    continuity.ScanResult    `json:"scan_result"`
	Context continuity.ContextResult `json:"context_result"`

	TotalReflections int64 `json:"total_reflections"`

	Verified   int   `json:"verified"`
	Mismatched int   `json:"mismatched"`
	ArchivedID int64 `json:"archived_reflection_id"`

	Lawful bool `json:"lawful"`
}

// Status represents the current state of the harness.
type Status struct {
	LastRun   time.Time `json:"last_run"`
	LastError string    `json:"error,omitempty"`
	CyclesRun int64     `json:"cycles_run"`
	Report    *Report   `json:"report,omitempty"`
}

// Harness executes continuity cycles against the store.
type Harness struct {
	cfg   Config
	store store.Store
	cache cache.WindowCache

	running atomic.Bool

	mu     sync.RWMutex
	status Status
}

// New creates a harness. cache may be nil.
func New(cfg Config, st store.Store, wc cache.WindowCache) *Harness {
	if cfg.Limit <= 0 {
		cfg.Limit = 20
	}
	if cfg.DriftThreshold <= 0 {
		cfg.DriftThreshold = continuity.DefaultDriftThreshold
	}
	return &Harness{cfg: cfg, store: st, cache: wc}
}

// Status returns a snapshot of the harness state.
func (h *Harness) Status() Status {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status
}

// LastCycle reports the last run time and error for the readiness checker.
func (h *Harness) LastCycle() (time.Time, string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status.LastRun, h.status.LastError
}

// Run executes cycles on the configured interval until ctx is cancelled.
// One cycle runs immediately at startup.
func (h *Harness) Run(ctx context.Context) error {
	logger := log.WithComponent("harness")
	logger.Info().
		Str(log.FieldEvent, "harness.start").
		Str(log.FieldUserID, h.cfg.UserID).
		Dur("interval", h.cfg.Interval).
		Msg("continuity harness started")

	if _, err := h.RunCycle(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Str(log.FieldEvent, "harness.cycle_failed").Msg("startup cycle failed")
	}

	ticker := time.NewTicker(h.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Str(log.FieldEvent, "harness.stop").Msg("continuity harness stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := h.RunCycle(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Str(log.FieldEvent, "harness.cycle_failed").Msg("scheduled cycle failed")
			}
		}
	}
}

// RunCycle executes a single continuity cycle. Only one cycle runs at a
// time; concurrent triggers get ErrCycleInProgress.
func (h *Harness) RunCycle(ctx context.Context) (*Report, error) {
	if !h.running.CompareAndSwap(false, true) {
		return nil, ErrCycleInProgress
	}
	defer h.running.Store(false)

	cycleID := uuid.New().String()
	ctx = log.ContextWithCycleID(ctx, cycleID)
	logger := log.WithComponent("harness").With().Str(log.FieldCycleID, cycleID).Logger()

	ctx, span := telemetry.Tracer("harness").Start(ctx, "continuity.cycle",
		trace.WithAttributes(attribute.String(telemetry.CycleIDKey, cycleID)))
	defer span.End()

	start := time.Now()
	report, err := h.cycle(ctx, cycleID, start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "cycle failed")
	}

	h.mu.Lock()
	h.status.LastRun = start
	h.status.CyclesRun++
	if err != nil {
		h.status.LastError = err.Error()
	} else {
		h.status.LastError = ""
		h.status.Report = report
	}
	h.mu.Unlock()

	if err != nil {
		return nil, err
	}

	metrics.RecordCycle(time.Since(start))
	logger.Info().
		Str(log.FieldEvent, "harness.cycle_complete").
		Dur("duration", time.Since(start)).
		Bool("lawful", report.Lawful).
		Int("verified", report.Verified).
		Int("mismatched", report.Mismatched).
		Msg("continuity cycle complete")
	return report, nil
}

func (h *Harness) cycle(ctx context.Context, cycleID string, start time.Time) (*Report, error) {
	report := &Report{CycleID: cycleID, StartedAt: start.UTC()}

	// 1. health: abort when the bridge is unreachable.
	if err := h.store.Ping(ctx); err != nil {
		metrics.RecordCycleFailure("ping")
		return nil, fmt.Errorf("harness: db ping: %w", err)
	}
	report.DBConnected = true

	// 2. scan: bridge size and session stats for the harness user.
	total, err := h.store.CountReflections(ctx)
	if err != nil {
		metrics.RecordCycleFailure("scan")
		return nil, fmt.Errorf("harness: count reflections: %w", err)
	}
	report.TotalReflections = total
	metrics.RecordStored(total)

	all, err := h.store.ListByUser(ctx, h.cfg.UserID)
	if err != nil {
		metrics.RecordCycleFailure("scan")
		return nil, fmt.Errorf("harness: list reflections: %w", err)
	}
	report.Scan = continuity.Scan(h.cfg.UserID, all, h.cfg.DriftThreshold, true)
	metrics.RecordScan(report.Scan.AvgDrift, report.Scan.Lawful)

	// 3. context scan: continuity window for the harness thread.
	window, err := h.store.RecallWindow(ctx, h.cfg.UserID, h.cfg.ThreadID, h.cfg.SessionID, h.cfg.Limit)
	if err != nil {
		metrics.RecordCycleFailure("context_scan")
		return nil, fmt.Errorf("harness: recall window: %w", err)
	}
	report.Context = continuity.ScanWindow(h.cfg.UserID, h.cfg.ThreadID, h.cfg.SessionID, window, h.cfg.DriftThreshold, true)

	// 4. verify: checksum pass over the user's records.
	verified, mismatched, err := h.verify(ctx, all)
	if err != nil {
		metrics.RecordCycleFailure("verify")
		return nil, fmt.Errorf("harness: verify: %w", err)
	}
	report.Verified = verified
	report.Mismatched = mismatched
	report.Lawful = report.Scan.Lawful && mismatched == 0

	// 5. archive: persist the cycle report as a reflection.
	archived, err := h.archive(ctx, report)
	if err != nil {
		metrics.RecordCycleFailure("archive")
		return nil, fmt.Errorf("harness: archive: %w", err)
	}
	report.ArchivedID = archived

	report.FinishedAt = time.Now().UTC()

	// 6. export: atomic report file in the data directory.
	if err := h.export(report); err != nil {
		metrics.RecordCycleFailure("export")
		return nil, fmt.Errorf("harness: export: %w", err)
	}

	return report, nil
}

func (h *Harness) verify(ctx context.Context, reflections []continuity.Reflection) (int, int, error) {
	now := time.Now().UTC()
	verifiedIDs := make([]int64, 0, len(reflections))
	mismatched := 0

	for i := range reflections {
		r := &reflections[i]
		if r.VerifyChecksum() {
			verifiedIDs = append(verifiedIDs, r.ID)
			metrics.RecordVerification(true)
		} else {
			mismatched++
			metrics.RecordVerification(false)
			logger := log.WithComponentFromContext(ctx, "harness")
			logger.Warn().
				Str(log.FieldEvent, "harness.checksum_mismatch").
				Int64(log.FieldReflectionID, r.ID).
				Str(log.FieldChecksum, r.Checksum).
				Msg("reflection checksum mismatch")
		}
	}

	if len(verifiedIDs) > 0 {
		if err := h.store.MarkVerified(ctx, verifiedIDs, now); err != nil {
			return 0, 0, err
		}
	}
	return len(verifiedIDs), mismatched, nil
}

func (h *Harness) archive(ctx context.Context, report *Report) (int64, error) {
	seal := "lawful"
	if !report.Lawful {
		seal = "unlawful"
	}

	r := &continuity.Reflection{
		UserID:    h.cfg.UserID,
		ThreadID:  h.cfg.ThreadID,
		SessionID: h.cfg.SessionID,
		// Archived drift is rounded to the precision the checksum uses.
		DriftScore: math.Round(report.Scan.AvgDrift*10000) / 10000,
		Seal:       seal,
		Content:    h.renderReport(report),
	}
	r.ApplyDefaults()
	r.SealChecksum()

	id, err := h.store.SaveReflection(ctx, r)
	if err != nil {
		return 0, err
	}
	metrics.RecordSave()

	if h.cache != nil {
		h.cache.InvalidateUser(ctx, h.cfg.UserID)
	}
	return id, nil
}

func (h *Harness) renderReport(report *Report) string {
	return fmt.Sprintf(
		"continuity cycle %s: %s | %s | verified %d, mismatched %d",
		report.CycleID,
		report.Scan.Summary,
		report.Context.Summary,
		report.Verified,
		report.Mismatched,
	)
}

func (h *Harness) export(report *Report) error {
	if h.cfg.DataDir == "" {
		return nil
	}
	if err := os.MkdirAll(h.cfg.DataDir, 0o750); err != nil {
		return err
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}

	path := filepath.Join(h.cfg.DataDir, ReportFileName)
	return renameio.WriteFile(path, data, 0o644)
}
