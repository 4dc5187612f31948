package telemetry

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestParseLogLevel(t *testing.T) {
	cases := []struct {
		in      string
		wantErr bool
	}{
		{"trace", false},
		{"debug", false},
		{"", false},
		{"info", false},
		{"warn", false},
		{"warning", false},
		{"error", false},
		{"fatal", false},
		{"verbose", true},
	}
	for _, tc := range cases {
		_, err := parseLogLevel(tc.in)
		if (err != nil) != tc.wantErr {
			t.Fatalf("parseLogLevel(%q): err=%v wantErr=%v", tc.in, err, tc.wantErr)
		}
	}
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	cfg := DefaultLoggingConfig()
	cfg.Level = "chatty"
	if _, err := NewLogger(cfg); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestDisabledMetricsAreNoOps(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	m.RecordTransition("order", "accepted")
	m.RecordTransitionRejected("order")
	m.RecordScheduleOperation("generate", "ok")
	m.RecordScheduleConflicts(3)
	m.SetScheduleItemsPlanned(5)
	m.RecordSPCMeasurement("diameter")
	m.RecordSPCOutOfControl("diameter", "single_point_beyond_3_sigma")
	m.ObserveOperationDuration("generate", time.Millisecond)
	if m.Handler() != nil {
		t.Fatalf("disabled metrics must not expose a handler")
	}
	if m.StartMetricsServer() != nil {
		t.Fatalf("disabled metrics must not start a server")
	}
}

func TestMetricsHandlerServesCounters(t *testing.T) {
	m := NewMetrics(DefaultMetricsConfig())
	m.RecordTransition("order", "accepted")
	m.RecordSPCMeasurement("diameter")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	if !strings.Contains(body, "mescore_transitions_total") {
		t.Fatalf("transitions counter missing from exposition:\n%s", body)
	}
	if !strings.Contains(body, "mescore_spc_measurements_total") {
		t.Fatalf("spc counter missing from exposition:\n%s", body)
	}
}

func TestTimerObservesDuration(t *testing.T) {
	m := NewMetrics(DefaultMetricsConfig())
	done := m.Timer("generate")
	done()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "mescore_operation_duration_seconds") {
		t.Fatalf("duration histogram missing from exposition")
	}
}
