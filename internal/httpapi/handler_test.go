package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"meshmap/core-go/internal/geo"
	"meshmap/core-go/internal/mesh"
	"meshmap/core-go/internal/metrics"
	"meshmap/core-go/internal/nodedb"
	"meshmap/core-go/internal/render"
	"meshmap/core-go/internal/session"
)

type fakeRefresher struct {
	triggers  int
	ignoreFn  func(ctx context.Context, nodeID string, ignored bool) error
	lastID    string
	lastValue bool
}

func (f *fakeRefresher) Trigger() { f.triggers++ }

func (f *fakeRefresher) SetNodeIgnored(ctx context.Context, nodeID string, ignored bool) error {
	f.lastID, f.lastValue = nodeID, ignored
	if f.ignoreFn == nil {
		return nil
	}
	return f.ignoreFn(ctx, nodeID, ignored)
}

func testSnapshot() mesh.Snapshot {
	return mesh.Snapshot{
		Nodes: []mesh.Node{
			{ID: "!r", Position: geo.Position{Lat: 0, Lon: 0}},
			{ID: "!a", Position: geo.Position{Lat: 0.01, Lon: 0}},
			{ID: "!b", Position: geo.Position{Lat: 0, Lon: 0.01}},
		},
		DirectConnections: []mesh.DirectConnection{{From: "!r", To: "!a", PacketCount: 25}},
		IndirectCoverage:  []mesh.IndirectCoverageRecord{{RelayNodeID: "!r", Hop2: []string{"!a", "!b"}}},
	}
}

func newTestHandler(t *testing.T, applied bool) (*Handler, *session.Session, *fakeRefresher) {
	t.Helper()
	m := metrics.New()
	sess := session.New(zerolog.Nop(), session.Options{}, m)
	ref := &fakeRefresher{}
	sess.SetTrigger(ref.Trigger)
	if applied {
		sess.ApplySnapshot(testSnapshot())
	}
	return NewHandler(zerolog.New(io.Discard), sess, ref, m), sess, ref
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var v map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to decode body as json: %v\nbody=%s", err, rr.Body.String())
	}
	return v
}

func decodeModel(t *testing.T, rr *httptest.ResponseRecorder) render.Model {
	t.Helper()
	var m render.Model
	if err := json.Unmarshal(rr.Body.Bytes(), &m); err != nil {
		t.Fatalf("failed to decode model: %v\nbody=%s", err, rr.Body.String())
	}
	return m
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	body := decodeBody(t, rr)
	e, ok := body["error"].(map[string]any)
	if !ok {
		t.Fatalf("expected error envelope, got %v", body)
	}
	code, _ := e["code"].(string)
	return code
}

func TestHealthz(t *testing.T) {
	h, _, _ := newTestHandler(t, false)
	rr := do(t, h.Router(), http.MethodGet, "/healthz", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if decodeBody(t, rr)["ok"] != true {
		t.Fatalf("unexpected body %s", rr.Body.String())
	}
}

func TestReadyz_UnavailableUntilSnapshotApplied(t *testing.T) {
	h, sess, _ := newTestHandler(t, false)
	router := h.Router()

	rr := do(t, router, http.MethodGet, "/readyz", "")
	if rr.Code != http.StatusServiceUnavailable || errorCode(t, rr) != "not_ready" {
		t.Fatalf("expected 503 not_ready, got %d: %s", rr.Code, rr.Body.String())
	}

	sess.ApplySnapshot(testSnapshot())
	rr = do(t, router, http.MethodGet, "/readyz", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 once ready, got %d", rr.Code)
	}
}

func TestReadyz_NoSession(t *testing.T) {
	h := NewHandler(zerolog.Nop(), nil, nil, nil)
	rr := do(t, h.Router(), http.MethodGet, "/readyz", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h, _, _ := newTestHandler(t, true)
	router := h.Router()
	_ = do(t, router, http.MethodGet, "/api/v1/map", "")

	rr := do(t, router, http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, `meshmap_http_requests_total{method="GET",path="/api/v1/map`) {
		t.Fatalf("expected request counter keyed by route pattern, got:\n%s", body)
	}
	if !strings.Contains(body, "meshmap_render_entities") {
		t.Fatalf("expected render entity gauge, got:\n%s", body)
	}
}

func TestDecodeJSONStrict(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "ok", body: `{"hours": 12}`},
		{name: "unknown field", body: `{"hours": 12, "days": 1}`, wantErr: true},
		{name: "trailing data", body: `{"hours": 12}{}`, wantErr: true},
		{name: "not json", body: `hours=12`, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(tc.body))
			var dst windowUpdate
			err := decodeJSONStrict(req, &dst)
			if (err != nil) != tc.wantErr {
				t.Fatalf("wantErr=%v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestWriteMapError_Mapping(t *testing.T) {
	h := NewHandler(zerolog.Nop(), nil, nil, nil)
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{err: session.ErrInvalidWindow, status: http.StatusBadRequest, code: "validation_failed"},
		{err: session.ErrUnknownEntity, status: http.StatusNotFound, code: "not_found"},
		{err: mesh.ErrNodeNotFound, status: http.StatusNotFound, code: "not_found"},
		{err: nodedb.ErrReadOnly, status: http.StatusConflict, code: "read_only"},
		{err: errors.New("boom"), status: http.StatusInternalServerError, code: "internal_error"},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		h.writeMapError(rr, tc.err)
		if rr.Code != tc.status || errorCode(t, rr) != tc.code {
			t.Fatalf("%v: expected %d/%s, got %d: %s", tc.err, tc.status, tc.code, rr.Code, rr.Body.String())
		}
	}
}
