// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"
	"time"
)

type staticChecker struct {
	name   string
	result CheckResult
}

func (c staticChecker) Name() string                        { return c.name }
func (c staticChecker) Check(_ context.Context) CheckResult { return c.result }

func TestHealthReportsDBConnected(t *testing.T) {
	m := NewManager("v1.0.0", func(ctx context.Context) error { return nil })

	resp := m.Health(context.Background())
	if !resp.OK {
		t.Error("health must report ok")
	}
	if !resp.DBConnected {
		t.Error("db_connected = false, want true")
	}
	if resp.Status != StatusHealthy {
		t.Errorf("status = %s, want healthy", resp.Status)
	}
}

func TestHealthDegradedWhenDBDown(t *testing.T) {
	m := NewManager("v1.0.0", func(ctx context.Context) error { return errors.New("dial refused") })

	resp := m.Health(context.Background())
	if resp.DBConnected {
		t.Error("db_connected = true, want false")
	}
	if resp.Status != StatusDegraded {
		t.Errorf("status = %s, want degraded", resp.Status)
	}
}

func TestServeHealthAlways200(t *testing.T) {
	m := NewManager("v1.0.0", func(ctx context.Context) error { return errors.New("down") })

	rec := httptest.NewRecorder()
	m.ServeHealth(rec, httptest.NewRequest("GET", "/healthz", nil))

	if rec.Code != 200 {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if resp.DBConnected {
		t.Error("db_connected = true, want false")
	}
}

func TestReadyNoCheckers(t *testing.T) {
	m := NewManager("v1.0.0", nil)

	resp := m.Ready(context.Background())
	if !resp.Ready {
		t.Error("ready = false with no checkers, want true")
	}
}

func TestReadyUnhealthyChecker(t *testing.T) {
	m := NewManager("v1.0.0", nil)
	m.RegisterChecker(staticChecker{name: "database", result: CheckResult{Status: StatusUnhealthy, Error: "down"}})
	m.RegisterChecker(staticChecker{name: "last_cycle", result: CheckResult{Status: StatusHealthy}})

	rec := httptest.NewRecorder()
	m.ServeReady(rec, httptest.NewRequest("GET", "/readyz", nil))

	if rec.Code != 503 {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestReadyDegradedStillReady(t *testing.T) {
	m := NewManager("v1.0.0", nil)
	m.RegisterChecker(staticChecker{name: "last_cycle", result: CheckResult{Status: StatusDegraded}})

	resp := m.Ready(context.Background())
	if !resp.Ready {
		t.Error("degraded checker must not flip readiness")
	}
	if resp.Status != StatusDegraded {
		t.Errorf("status = %s, want degraded", resp.Status)
	}
}

func TestDBChecker(t *testing.T) {
	ok := NewDBChecker(func(ctx context.Context) error { return nil }, time.Second)
	if got := ok.Check(context.Background()); got.Status != StatusHealthy {
		t.Errorf("status = %s, want healthy", got.Status)
	}

	bad := NewDBChecker(func(ctx context.Context) error { return errors.New("refused") }, time.Second)
	if got := bad.Check(context.Background()); got.Status != StatusUnhealthy {
		t.Errorf("status = %s, want unhealthy", got.Status)
	}
}

func TestLastCycleChecker(t *testing.T) {
	tests := []struct {
		name      string
		lastRun   time.Time
		lastError string
		want      Status
	}{
		{"never ran", time.Time{}, "", StatusDegraded},
		{"recent success", time.Now().Add(-time.Hour), "", StatusHealthy},
		{"failed", time.Now().Add(-time.Hour), "scan failed", StatusUnhealthy},
		{"stale", time.Now().Add(-48 * time.Hour), "", StatusDegraded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewLastCycleChecker(func() (time.Time, string) { return tt.lastRun, tt.lastError }, 24*time.Hour)
			if got := c.Check(context.Background()); got.Status != tt.want {
				t.Errorf("status = %s, want %s", got.Status, tt.want)
			}
		})
	}
}
