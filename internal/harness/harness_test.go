// SPDX-License-Identifier: MIT

package harness

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/daverunner/reflectd/internal/cache"
	"github.com/daverunner/reflectd/internal/continuity"
	"github.com/daverunner/reflectd/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.Open("sqlite", ":memory:", store.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func seedReflection(t *testing.T, st store.Store, userID, threadID, sessionID string, drift float64) int64 {
	t.Helper()
	r := &continuity.Reflection{
		UserID:     userID,
		ThreadID:   threadID,
		SessionID:  sessionID,
		DriftScore: drift,
		Content:    "seeded reflection",
	}
	r.ApplyDefaults()
	r.SealChecksum()
	id, err := st.SaveReflection(context.Background(), r)
	require.NoError(t, err)
	return id
}

func testConfig(dataDir string) Config {
	return Config{
		UserID:         "phil",
		ThreadID:       "continuity_diary",
		SessionID:      "continuity",
		Limit:          20,
		Interval:       time.Hour,
		DriftThreshold: 0.05,
		DataDir:        dataDir,
	}
}

func TestRunCycle(t *testing.T) {
	st := newTestStore(t)
	seedReflection(t, st, "phil", "continuity_diary", "continuity", 0.02)
	seedReflection(t, st, "phil", "continuity_diary", "continuity", 0.04)

	dataDir := t.TempDir()
	h := New(testConfig(dataDir), st, cache.NewMemoryCache())

	report, err := h.RunCycle(context.Background())
	require.NoError(t, err)

	assert.True(t, report.DBConnected)
	assert.True(t, report.Lawful)
	assert.Equal(t, 2, report.Verified)
	assert.Zero(t, report.Mismatched)
	assert.NotZero(t, report.ArchivedID)
	assert.EqualValues(t, 2, report.TotalReflections)
	assert.InDelta(t, 0.03, report.Scan.AvgDrift, 1e-9)

	// Archived reflection carries the rounded drift and a fresh checksum.
	archived, err := st.GetReflection(context.Background(), report.ArchivedID)
	require.NoError(t, err)
	assert.Equal(t, "lawful", archived.Seal)
	assert.True(t, archived.VerifyChecksum())
	assert.InDelta(t, 0.03, archived.DriftScore, 1e-9)

	// Report file exported atomically to the data dir.
	data, err := os.ReadFile(filepath.Join(dataDir, ReportFileName))
	require.NoError(t, err)
	var exported Report
	require.NoError(t, json.Unmarshal(data, &exported))
	assert.Equal(t, report.CycleID, exported.CycleID)
	assert.Equal(t, report.ArchivedID, exported.ArchivedID)

	status := h.Status()
	assert.False(t, status.LastRun.IsZero())
	assert.Empty(t, status.LastError)
	assert.EqualValues(t, 1, status.CyclesRun)
}

func TestRunCycleUnlawfulDrift(t *testing.T) {
	st := newTestStore(t)
	seedReflection(t, st, "phil", "continuity_diary", "continuity", 0.2)

	h := New(testConfig(t.TempDir()), st, nil)

	report, err := h.RunCycle(context.Background())
	require.NoError(t, err)

	assert.False(t, report.Lawful)
	assert.False(t, report.Scan.Lawful)

	archived, err := st.GetReflection(context.Background(), report.ArchivedID)
	require.NoError(t, err)
	assert.Equal(t, "unlawful", archived.Seal)
}

func TestRunCycleDetectsTamperedChecksum(t *testing.T) {
	st := newTestStore(t)

	r := &continuity.Reflection{
		UserID:     "phil",
		ThreadID:   "continuity_diary",
		SessionID:  "continuity",
		DriftScore: 0.01,
		Content:    "original content",
	}
	r.ApplyDefaults()
	r.SealChecksum()
	r.Content = "tampered content"
	_, err := st.SaveReflection(context.Background(), r)
	require.NoError(t, err)

	h := New(testConfig(t.TempDir()), st, nil)
	report, err := h.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Mismatched)
	assert.False(t, report.Lawful)
}

func TestRunCycleConcurrentTrigger(t *testing.T) {
	st := newTestStore(t)
	h := New(testConfig(t.TempDir()), st, nil)

	h.running.Store(true)
	_, err := h.RunCycle(context.Background())
	assert.ErrorIs(t, err, ErrCycleInProgress)
	h.running.Store(false)
}

func TestLastCycle(t *testing.T) {
	st := newTestStore(t)
	h := New(testConfig(t.TempDir()), st, nil)

	lastRun, lastErr := h.LastCycle()
	assert.True(t, lastRun.IsZero())
	assert.Empty(t, lastErr)

	_, err := h.RunCycle(context.Background())
	require.NoError(t, err)

	lastRun, lastErr = h.LastCycle()
	assert.False(t, lastRun.IsZero())
	assert.Empty(t, lastErr)
}

func TestRunStopsOnCancel(t *testing.T) {
	st := newTestStore(t)
	h := New(testConfig(t.TempDir()), st, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	// Give the startup cycle a moment, then stop.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("harness did not stop on context cancel")
	}
}
