// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/daverunner/reflectd/internal/cache"
	"github.com/daverunner/reflectd/internal/continuity"
	"github.com/daverunner/reflectd/internal/harness"
	"github.com/daverunner/reflectd/internal/log"
	"github.com/daverunner/reflectd/internal/metrics"
	"github.com/daverunner/reflectd/internal/middleware"
	"github.com/daverunner/reflectd/internal/store"
	"github.com/daverunner/reflectd/internal/telemetry"
)

const (
	defaultRecallLimit = 5
	maxRecallLimit     = 100
)

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultRecallLimit
	}
	if limit > maxRecallLimit {
		return maxRecallLimit
	}
	return limit
}

// storeError maps store failures onto the response envelope.
func storeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, "reflection not found")
		return
	}
	logger := log.WithComponentFromContext(r.Context(), "api")
	logger.Error().
		Err(err).
		Str(log.FieldEvent, "api.store_error").
		Str("path", r.URL.Path).
		Msg("memory bridge error")
	writeError(w, r, http.StatusServiceUnavailable, "memory bridge unavailable")
}

// recallWindow loads a window through the cache when one is configured.
func (s *Server) recallWindow(r *http.Request, userID, threadID, sessionID string, limit int) ([]continuity.Reflection, error) {
	ctx := r.Context()

	if s.cache == nil {
		return s.store.RecallWindow(ctx, userID, threadID, sessionID, limit)
	}

	key := cache.Key(userID, threadID, sessionID, limit)
	if window, ok := s.cache.Get(ctx, key); ok {
		metrics.RecordWindowCache(true)
		return window, nil
	}
	metrics.RecordWindowCache(false)

	window, err := s.store.RecallWindow(ctx, userID, threadID, sessionID, limit)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, key, window, s.cfg.WindowCacheTTL)
	return window, nil
}

// handleGetMemory serves the recall window: the most recent reflections of
// a user, newest first.
func (s *Server) handleGetMemory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID := q.Get("user_id")
	if userID == "" {
		writeError(w, r, http.StatusBadRequest, "user_id is required")
		return
	}

	limit := defaultRecallLimit
	if raw := q.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = parsed
	}
	limit = clampLimit(limit)

	window, err := s.recallWindow(r, userID, q.Get("thread_id"), q.Get("session_id"), limit)
	if err != nil {
		storeError(w, r, err)
		return
	}
	metrics.RecordRecall(len(window))
	middleware.AddSpanAttributes(r, telemetry.WindowAttributes(userID, q.Get("thread_id"), q.Get("session_id"), len(window))...)

	writeData(w, r, http.StatusOK, map[string]any{
		"user_id":     userID,
		"count":       len(window),
		"reflections": window,
	})
}

// saveRequest wraps the reflection with a pointer drift so an omitted
// drift_score is distinguishable from an explicit zero.
type saveRequest struct {
	continuity.Reflection
	DriftScore *float64 `json:"drift_score"`
}

// handleSaveMemory persists a reflection, applying the canonical defaults
// and sealing the checksum.
func (s *Server) handleSaveMemory(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.UserID == "" {
		writeError(w, r, http.StatusBadRequest, "user_id is required")
		return
	}

	reflection := req.Reflection
	if req.DriftScore != nil {
		reflection.DriftScore = *req.DriftScore
	} else {
		reflection.DriftScore = continuity.DefaultDriftScore
	}

	reflection.ID = 0
	reflection.VerifiedAt = nil
	reflection.ApplyDefaults()
	reflection.SealChecksum()

	id, err := s.store.SaveReflection(r.Context(), &reflection)
	if err != nil {
		storeError(w, r, err)
		return
	}
	metrics.RecordSave()

	if s.cache != nil {
		s.cache.InvalidateUser(r.Context(), reflection.UserID)
	}

	logger := log.WithComponentFromContext(r.Context(), "api")
	logger.Info().
		Str(log.FieldEvent, "memory.saved").
		Int64(log.FieldReflectionID, id).
		Str(log.FieldUserID, reflection.UserID).
		Str(log.FieldThreadID, reflection.ThreadID).
		Str(log.FieldSeal, reflection.Seal).
		Msg("reflection saved")

	writeData(w, r, http.StatusOK, map[string]any{
		"reflection_id": id,
		"checksum":      reflection.Checksum,
	})
}

type scanRequest struct {
	UserID    string `json:"user_id"`
	ThreadID  string `json:"thread_id"`
	SessionID string `json:"session_id"`
	Limit     int    `json:"limit"`
	Summary   bool   `json:"summary"`
}

// handleScan computes per-session drift statistics for a user.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.UserID == "" {
		writeError(w, r, http.StatusBadRequest, "user_id is required")
		return
	}

	all, err := s.store.ListByUser(r.Context(), req.UserID)
	if err != nil {
		storeError(w, r, err)
		return
	}

	result := continuity.Scan(req.UserID, all, s.cfg.DriftThreshold, req.Summary)
	metrics.RecordScan(result.AvgDrift, result.Lawful)
	writeData(w, r, http.StatusOK, result)
}

// handleContextScan combines the continuity view of a recall window with
// the global session scan.
func (s *Server) handleContextScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.UserID == "" {
		writeError(w, r, http.StatusBadRequest, "user_id is required")
		return
	}
	limit := clampLimit(req.Limit)

	window, err := s.recallWindow(r, req.UserID, req.ThreadID, req.SessionID, limit)
	if err != nil {
		storeError(w, r, err)
		return
	}

	all, err := s.store.ListByUser(r.Context(), req.UserID)
	if err != nil {
		storeError(w, r, err)
		return
	}

	contextResult := continuity.ScanWindow(req.UserID, req.ThreadID, req.SessionID, window, s.cfg.DriftThreshold, req.Summary)
	scanResult := continuity.Scan(req.UserID, all, s.cfg.DriftThreshold, req.Summary)

	writeData(w, r, http.StatusOK, map[string]any{
		"context_result": contextResult,
		"scan_result":    scanResult,
	})
}

// handleVerify runs a checksum verification pass over a user's records
// and stamps verified_at on the ones that match.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.UserID == "" {
		writeError(w, r, http.StatusBadRequest, "user_id is required")
		return
	}

	all, err := s.store.ListByUser(r.Context(), req.UserID)
	if err != nil {
		storeError(w, r, err)
		return
	}

	now := time.Now().UTC()
	verifiedIDs := make([]int64, 0, len(all))
	mismatched := make([]int64, 0)
	for i := range all {
		if all[i].VerifyChecksum() {
			verifiedIDs = append(verifiedIDs, all[i].ID)
			metrics.RecordVerification(true)
		} else {
			mismatched = append(mismatched, all[i].ID)
			metrics.RecordVerification(false)
		}
	}

	if len(verifiedIDs) > 0 {
		if err := s.store.MarkVerified(r.Context(), verifiedIDs, now); err != nil {
			storeError(w, r, err)
			return
		}
	}

	logger := log.WithComponentFromContext(r.Context(), "api")
	logger.Info().
		Str(log.FieldEvent, "memory.verified").
		Str(log.FieldUserID, req.UserID).
		Int("verified", len(verifiedIDs)).
		Int("mismatched", len(mismatched)).
		Msg("verification pass complete")

	writeData(w, r, http.StatusOK, map[string]any{
		"user_id":        req.UserID,
		"verified":       len(verifiedIDs),
		"mismatched":     len(mismatched),
		"mismatched_ids": mismatched,
	})
}

// handleCycle triggers a continuity cycle outside the schedule.
func (s *Server) handleCycle(w http.ResponseWriter, r *http.Request) {
	if s.harness == nil {
		writeError(w, r, http.StatusServiceUnavailable, "continuity harness disabled")
		return
	}

	report, err := s.harness.RunCycle(r.Context())
	if err != nil {
		if errors.Is(err, harness.ErrCycleInProgress) {
			w.Header().Set("Retry-After", "30")
			writeError(w, r, http.StatusConflict, "a continuity cycle is already in progress")
			return
		}
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().
			Err(err).
			Str(log.FieldEvent, "api.cycle_failed").
			Msg("manual continuity cycle failed")
		writeError(w, r, http.StatusServiceUnavailable, "continuity cycle failed")
		return
	}

	writeData(w, r, http.StatusOK, report)
}

// handleConfigReload re-resolves the configuration from disk.
func (s *Server) handleConfigReload(w http.ResponseWriter, r *http.Request) {
	if s.watcher == nil {
		writeError(w, r, http.StatusServiceUnavailable, "config reload not available")
		return
	}

	if err := s.watcher.Reload(); err != nil {
		metrics.RecordConfigReload(false)
		writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	metrics.RecordConfigReload(true)
	writeData(w, r, http.StatusOK, map[string]any{"reloaded": true})
}
