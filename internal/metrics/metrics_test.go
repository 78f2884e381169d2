// SPDX-License-Identifier: MIT

package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/daverunner/reflectd/internal/metrics"
)

func scrape(t *testing.T) string {
	t.Helper()
	recorder := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(recorder.Body)
	if err != nil {
		t.Fatal(err)
	}
	return string(body)
}

func TestCollectorsExposed(t *testing.T) {
	metrics.RecordSave()
	metrics.RecordRecall(5)
	metrics.RecordStored(42)
	metrics.RecordVerification(true)
	metrics.RecordVerification(false)
	metrics.RecordScan(0.031, true)
	metrics.RecordCycle(120 * time.Millisecond)
	metrics.RecordCycleFailure("scan")
	metrics.RecordWindowCache(true)
	metrics.RecordWindowCache(false)
	metrics.RecordConfigReload(true)

	body := scrape(t)
	for _, name := range []string{
		"reflectd_reflections_saved_total",
		"reflectd_reflections_recalled_total",
		"reflectd_reflections_stored",
		`reflectd_verifications_total{outcome="verified"}`,
		`reflectd_verifications_total{outcome="mismatch"}`,
		"reflectd_scan_drift_mean",
		"reflectd_scan_lawful",
		"reflectd_cycle_duration_seconds",
		`reflectd_cycle_failures_total{stage="scan"}`,
		"reflectd_last_cycle_timestamp",
		`reflectd_window_cache_total{outcome="hit"}`,
		`reflectd_config_reloads_total{outcome="success"}`,
	} {
		if !strings.Contains(body, name) {
			t.Errorf("metric %s not exposed", name)
		}
	}
}
