package observability

import (
	"testing"
	"time"
)

func TestMetricsRecordingIsNilSafe(t *testing.T) {
	var metrics *Metrics

	metrics.RecordBusPublish("events:task")
	metrics.RecordBusDrop("events:task")
	metrics.RecordEmbedCall("openai", 10*time.Millisecond, nil)
	metrics.RecordVectorSearch("chromem", "session-1", time.Millisecond, 3)
	metrics.RecordCouncilDecision("HIGH", "pending_human")
	metrics.RecordArchiveSweep("ok")
	metrics.RecordHTTPRequest("GET", "/v1/whiteboard", 200, time.Millisecond, 0, 128)

	t.Log("nil *Metrics absorbs every Record call without panicking")
}

func TestNewMetricsDisabledReturnsNil(t *testing.T) {
	m, err := NewMetrics(&MetricsConfig{Enabled: false})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m != nil {
		t.Fatalf("expected nil Metrics when disabled")
	}
}

func TestNewMetricsEnabledRegistersCollectors(t *testing.T) {
	m, err := NewMetrics(&MetricsConfig{Enabled: true, Namespace: "backplane_test"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m == nil {
		t.Fatal("expected non-nil Metrics when enabled")
	}
	m.RecordBusPublish("events:task")
	m.RecordHTTPRequest("GET", "/health", 200, time.Millisecond, 10, 20)

	if testing.Short() {
		return
	}
	if m.Registry() == nil {
		t.Fatal("expected a populated prometheus registry")
	}
}

func TestStatusCodeLabel(t *testing.T) {
	cases := map[int]string{
		200: "2xx",
		301: "3xx",
		404: "4xx",
		500: "5xx",
		0:   "unknown",
	}
	for code, want := range cases {
		if got := statusCodeLabel(code); got != want {
			t.Errorf("statusCodeLabel(%d) = %q, want %q", code, got, want)
		}
	}
}

func TestNoopManagerIsSafe(t *testing.T) {
	m := NoopManager()
	if m.TracingEnabled() {
		t.Fatal("expected tracing disabled on a noop manager")
	}
	if m.MetricsEnabled() {
		t.Fatal("expected metrics disabled on a noop manager")
	}
	if m.MetricsHandler() == nil {
		t.Fatal("expected a non-nil fallback metrics handler")
	}
}
