package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHandler_nilMetrics(t *testing.T) {
	var m *Metrics
	m.IncSnapshotRefresh("ok")
	m.SetRenderEntities("lines", 1)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)

	m.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	if got := rr.Body.String(); !strings.Contains(got, "metrics unavailable") {
		t.Fatalf("expected body to mention metrics unavailable, got %q", got)
	}
}

func TestHandler_exposesRegisteredMetrics(t *testing.T) {
	m := New()
	m.ObserveHTTPRequest(http.MethodGet, "/readyz", http.StatusOK, 12*time.Millisecond)
	m.IncSnapshotRefresh("ok")
	m.IncSnapshotRefresh("error")
	m.ObserveSnapshotRefreshDuration(40 * time.Millisecond)
	m.SetRenderEntities("shapes", 7)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)

	m.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	body := rr.Body.String()
	if !strings.Contains(body, "meshmap_http_requests_total") {
		t.Fatalf("expected http_requests_total metric to be present")
	}
	if !strings.Contains(body, "meshmap_http_requests_total{method=\"GET\",path=\"/readyz\",status=\"200\"} 1") {
		t.Fatalf("expected labeled request counter to be incremented; body=%s", body)
	}
	if !strings.Contains(body, "meshmap_snapshot_refreshes_total{result=\"ok\"} 1") {
		t.Fatalf("expected ok refresh counter to be incremented; body=%s", body)
	}
	if !strings.Contains(body, "meshmap_snapshot_refresh_duration_seconds_count 1") {
		t.Fatalf("expected refresh duration histogram to have one observation; body=%s", body)
	}
	if !strings.Contains(body, "meshmap_render_entities{kind=\"shapes\"} 7") {
		t.Fatalf("expected render entity gauge to be set; body=%s", body)
	}
}
