// SPDX-License-Identifier: MIT

// Package metrics holds the Prometheus collectors for the memory bridge
// and the continuity harness.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reflectionsSavedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reflectd_reflections_saved_total",
		Help: "Number of reflections persisted",
	})

	reflectionsRecalledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reflectd_reflections_recalled_total",
		Help: "Number of reflections returned by recall windows",
	})

	reflectionsStored = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "reflectd_reflections_stored",
		Help: "Total number of reflections in the memory bridge",
	})

	verificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reflectd_verifications_total",
		Help: "Checksum verifications by outcome",
	}, []string{"outcome"}) // outcome=verified|mismatch

	scanDriftMean = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "reflectd_scan_drift_mean",
		Help: "Mean drift score across sessions in the last scan",
	})

	scanLawful = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "reflectd_scan_lawful",
		Help: "Whether the last scan was lawful (1) or not (0)",
	})

	cycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "reflectd_cycle_duration_seconds",
		Help:    "Duration of continuity cycles in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2.0, 12), // 10ms .. ~20s
	})

	cycleFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reflectd_cycle_failures_total",
		Help: "Continuity cycle failures by stage",
	}, []string{"stage"}) // stage=ping|scan|context_scan|verify|archive|export

	lastCycleTime = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "reflectd_last_cycle_timestamp",
		Help: "Timestamp of the last successful continuity cycle (Unix)",
	})

	windowCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reflectd_window_cache_total",
		Help: "Recall window cache lookups by outcome",
	}, []string{"outcome"}) // outcome=hit|miss

	configReloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reflectd_config_reloads_total",
		Help: "Configuration reloads by outcome",
	}, []string{"outcome"}) // outcome=success|failure
)

// RecordSave counts a persisted reflection.
func RecordSave() {
	reflectionsSavedTotal.Inc()
}

// RecordRecall counts reflections returned by a recall window.
func RecordRecall(n int) {
	reflectionsRecalledTotal.Add(float64(n))
}

// RecordStored publishes the total number of stored reflections.
func RecordStored(total int64) {
	reflectionsStored.Set(float64(total))
}

// RecordVerification counts a checksum verification outcome.
func RecordVerification(verified bool) {
	outcome := "verified"
	if !verified {
		outcome = "mismatch"
	}
	verificationsTotal.WithLabelValues(outcome).Inc()
}

// RecordScan publishes the drift state of the last scan.
func RecordScan(meanDrift float64, lawful bool) {
	scanDriftMean.Set(meanDrift)
	if lawful {
		scanLawful.Set(1)
	} else {
		scanLawful.Set(0)
	}
}

// RecordCycle records a completed continuity cycle.
func RecordCycle(duration time.Duration) {
	cycleDuration.Observe(duration.Seconds())
	lastCycleTime.Set(float64(time.Now().Unix()))
}

// RecordCycleFailure counts a cycle failure at the given stage.
func RecordCycleFailure(stage string) {
	cycleFailuresTotal.WithLabelValues(stage).Inc()
}

// RecordWindowCache counts a cache lookup outcome.
func RecordWindowCache(hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	windowCacheTotal.WithLabelValues(outcome).Inc()
}

// RecordConfigReload counts a configuration reload outcome.
func RecordConfigReload(ok bool) {
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	configReloadsTotal.WithLabelValues(outcome).Inc()
}
