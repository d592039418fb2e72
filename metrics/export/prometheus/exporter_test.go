package prometheus

import (
	"net/http/httptest"
	"strings"
	"testing"

	goPasskey "github.com/MrEthical07/goPasskey"
)

type fakeSource struct {
	snapshot goPasskey.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() goPasskey.MetricsSnapshot { return f.snapshot }

func (f *fakeSource) AuditDropped() uint64 { return f.dropped }

func testSnapshot() goPasskey.MetricsSnapshot {
	return goPasskey.MetricsSnapshot{
		Counters: map[goPasskey.MetricID]uint64{
			goPasskey.MetricLoginSuccess:   7,
			goPasskey.MetricReplayDetected: 2,
		},
		Histograms: map[goPasskey.MetricID][]uint64{
			goPasskey.MetricValidateLatency: {3, 1, 0, 0, 0, 0, 0, 1},
		},
	}
}

func TestRenderEmptySource(t *testing.T) {
	exporter := NewPrometheusExporterFromSource(&fakeSource{
		snapshot: goPasskey.MetricsSnapshot{
			Counters:   map[goPasskey.MetricID]uint64{},
			Histograms: map[goPasskey.MetricID][]uint64{},
		},
	})

	if out := exporter.Render(); out != "" {
		t.Fatalf("expected empty output, got %q", out)
	}
}

func TestRenderCountersAndHistogram(t *testing.T) {
	exporter := NewPrometheusExporterFromSource(&fakeSource{
		snapshot: testSnapshot(),
		dropped:  4,
	})

	out := exporter.Render()

	for _, want := range []string{
		"# TYPE gopasskey_login_success_total counter",
		"gopasskey_login_success_total 7",
		"gopasskey_replay_detected_total 2",
		"gopasskey_registration_success_total 0",
		"# TYPE gopasskey_validate_latency_seconds histogram",
		`gopasskey_validate_latency_seconds_bucket{le="0.005"} 3`,
		`gopasskey_validate_latency_seconds_bucket{le="0.01"} 4`,
		`gopasskey_validate_latency_seconds_bucket{le="+Inf"} 5`,
		"gopasskey_validate_latency_seconds_count 5",
		"gopasskey_audit_dropped_total 4",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("render output missing %q:\n%s", want, out)
		}
	}
}

func TestHandlerServesTextFormat(t *testing.T) {
	exporter := NewPrometheusExporterFromSource(&fakeSource{snapshot: testSnapshot()})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	exporter.Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("unexpected content type: %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "gopasskey_login_success_total 7") {
		t.Fatalf("body missing counter:\n%s", rec.Body.String())
	}
}

func TestRenderNilExporter(t *testing.T) {
	var exporter *PrometheusExporter
	if out := exporter.Render(); out != "" {
		t.Fatalf("expected empty output from nil exporter, got %q", out)
	}
}
