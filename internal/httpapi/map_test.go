package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"meshmap/core-go/internal/mesh"
	"meshmap/core-go/internal/nodedb"
	"meshmap/core-go/internal/selection"
)

func TestMap_GetNotReady(t *testing.T) {
	h, _, _ := newTestHandler(t, false)
	rr := do(t, h.Router(), http.MethodGet, "/api/v1/map", "")
	if rr.Code != http.StatusServiceUnavailable || errorCode(t, rr) != "not_ready" {
		t.Fatalf("expected 503 not_ready, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestMap_GetReturnsModel(t *testing.T) {
	h, _, _ := newTestHandler(t, true)
	rr := do(t, h.Router(), http.MethodGet, "/api/v1/map", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	m := decodeModel(t, rr)
	if len(m.Markers) != 3 || len(m.Lines) != 1 || len(m.Shapes) != 1 {
		t.Fatalf("unexpected model sizes markers=%d lines=%d shapes=%d", len(m.Markers), len(m.Lines), len(m.Shapes))
	}
	if m.Shapes[0].ID != "!r:hop_2" || m.Revision == "" {
		t.Fatalf("unexpected model %+v", m.Shapes[0])
	}
}

func TestMap_GetWithHoursChangesWindow(t *testing.T) {
	h, sess, ref := newTestHandler(t, true)
	router := h.Router()

	rr := do(t, router, http.MethodGet, "/api/v1/map?hours=48", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if sess.WindowHours() != 48 || ref.triggers != 1 {
		t.Fatalf("expected window 48 and one trigger, got %v / %d", sess.WindowHours(), ref.triggers)
	}

	rr = do(t, router, http.MethodGet, "/api/v1/map?hours=48", "")
	if rr.Code != http.StatusOK || ref.triggers != 1 {
		t.Fatalf("same window must not trigger again, got %d triggers", ref.triggers)
	}

	for _, bad := range []string{"abc", "0", "721", "NaN", "Inf", "-Inf"} {
		rr = do(t, router, http.MethodGet, "/api/v1/map?hours="+bad, "")
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("hours=%s: expected 400, got %d", bad, rr.Code)
		}
	}
	if sess.WindowHours() != 48 {
		t.Fatalf("invalid hours must not change the window, got %v", sess.WindowHours())
	}

	rr = do(t, router, http.MethodGet, "/api/v1/map", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("map must still render after rejected hours, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestMap_GeoJSON(t *testing.T) {
	h, _, _ := newTestHandler(t, true)
	rr := do(t, h.Router(), http.MethodGet, "/api/v1/map/geojson", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/geo+json" {
		t.Fatalf("unexpected content type %q", ct)
	}
	body := decodeBody(t, rr)
	if body["type"] != "FeatureCollection" {
		t.Fatalf("unexpected body %v", body)
	}
	features, _ := body["features"].([]any)
	if len(features) == 0 {
		t.Fatalf("expected features, got none")
	}
}

func TestMap_Refresh(t *testing.T) {
	h, _, ref := newTestHandler(t, false)
	rr := do(t, h.Router(), http.MethodPost, "/api/v1/map/refresh", "")
	if rr.Code != http.StatusAccepted || ref.triggers != 1 {
		t.Fatalf("expected 202 and one trigger, got %d / %d", rr.Code, ref.triggers)
	}
}

func TestMap_SetWindow(t *testing.T) {
	h, sess, ref := newTestHandler(t, true)
	router := h.Router()

	rr := do(t, router, http.MethodPut, "/api/v1/map/window", `{"hours": 6}`)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rr.Code, rr.Body.String())
	}
	if sess.WindowHours() != 6 || ref.triggers != 1 {
		t.Fatalf("expected window 6 and a trigger, got %v / %d", sess.WindowHours(), ref.triggers)
	}

	cases := map[string]string{
		"missing hours": `{}`,
		"unknown field": `{"hours": 6, "minutes": 1}`,
		"out of range":  `{"hours": 1000}`,
	}
	for name, body := range cases {
		rr := do(t, router, http.MethodPut, "/api/v1/map/window", body)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d: %s", name, rr.Code, rr.Body.String())
		}
	}
}

func TestMap_SelectAndClear(t *testing.T) {
	h, _, _ := newTestHandler(t, true)
	router := h.Router()

	rr := do(t, router, http.MethodPost, "/api/v1/map/selection", `{"kind":"node","id":"!a"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	m := decodeModel(t, rr)
	if m.Selection.ID != "!a" || m.Selection.Kind != selection.KindNode {
		t.Fatalf("unexpected selection %+v", m.Selection)
	}
	if !m.Lines[0].Related || m.Lines[0].Opacity != 0.9 {
		t.Fatalf("expected line touching !a to be highlighted, got %+v", m.Lines[0])
	}
	if !m.Shapes[0].Related {
		t.Fatalf("expected shape containing !a to be related")
	}

	rr = do(t, router, http.MethodPost, "/api/v1/map/selection", `{"kind":"shape","id":"!r:hop_2"}`)
	if rr.Code != http.StatusOK || decodeModel(t, rr).Selection.ID != "!r:hop_2" {
		t.Fatalf("expected shape selection, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = do(t, router, http.MethodDelete, "/api/v1/map/selection", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	m = decodeModel(t, rr)
	if !m.Selection.Idle() || m.Lines[0].Related || m.Lines[0].Opacity != 0.6 {
		t.Fatalf("expected cleared selection with default styling, got %+v / %+v", m.Selection, m.Lines[0])
	}
}

func TestMap_SelectErrors(t *testing.T) {
	h, _, _ := newTestHandler(t, true)
	router := h.Router()

	cases := []struct {
		name   string
		body   string
		status int
	}{
		{name: "unknown node", body: `{"kind":"node","id":"!zzz"}`, status: http.StatusNotFound},
		{name: "bad kind", body: `{"kind":"link","id":"!a"}`, status: http.StatusBadRequest},
		{name: "missing id", body: `{"kind":"node"}`, status: http.StatusBadRequest},
		{name: "unknown field", body: `{"kind":"node","id":"!a","x":1}`, status: http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := do(t, router, http.MethodPost, "/api/v1/map/selection", tc.body)
			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, rr.Code, rr.Body.String())
			}
		})
	}
}

func TestMap_ClearBeforeReady(t *testing.T) {
	h, _, _ := newTestHandler(t, false)
	rr := do(t, h.Router(), http.MethodDelete, "/api/v1/map/selection", "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
}

func TestMap_ToggleLayer(t *testing.T) {
	h, sess, _ := newTestHandler(t, true)
	router := h.Router()

	rr := do(t, router, http.MethodPut, "/api/v1/map/layers/hop2Coverage", `{"visible": false}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	m := decodeModel(t, rr)
	if m.Shapes[0].Visible {
		t.Fatalf("expected hop_2 shape to be hidden")
	}
	if !m.Lines[0].Visible {
		t.Fatalf("direct links must stay visible")
	}
	if sess.LayerVisibility().Visible(selection.LayerHop2Coverage) {
		t.Fatalf("expected session visibility to be updated")
	}

	rr = do(t, router, http.MethodPut, "/api/v1/map/layers/hop_2_coverage", `{"visible": true}`)
	if rr.Code != http.StatusOK || !decodeModel(t, rr).Shapes[0].Visible {
		t.Fatalf("expected normalized key to re-show the layer, got %d", rr.Code)
	}

	rr = do(t, router, http.MethodPut, "/api/v1/map/layers/heatmap", `{"visible": true}`)
	if rr.Code != http.StatusNotFound || errorCode(t, rr) != "unknown_layer" {
		t.Fatalf("expected 404 unknown_layer, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = do(t, router, http.MethodPut, "/api/v1/map/layers/signalCircles", `{}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing visible, got %d", rr.Code)
	}
}

func TestNodes_SetIgnored(t *testing.T) {
	h, _, ref := newTestHandler(t, true)
	router := h.Router()

	rr := do(t, router, http.MethodPut, "/api/v1/nodes/!a/ignored", `{"ignored": true}`)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rr.Code, rr.Body.String())
	}
	if ref.lastID != "!a" || !ref.lastValue {
		t.Fatalf("expected refresher call for !a, got %q %v", ref.lastID, ref.lastValue)
	}

	ref.ignoreFn = func(ctx context.Context, nodeID string, ignored bool) error {
		if strings.HasPrefix(nodeID, "!ro") {
			return nodedb.ErrReadOnly
		}
		return errors.Join(errors.New("update"), mesh.ErrNodeNotFound)
	}
	rr = do(t, router, http.MethodPut, "/api/v1/nodes/!missing/ignored", `{"ignored": false}`)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	rr = do(t, router, http.MethodPut, "/api/v1/nodes/!ro1/ignored", `{"ignored": true}`)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
	rr = do(t, router, http.MethodPut, "/api/v1/nodes/!a/ignored", `{"ignore": true}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rr.Code)
	}
}

func TestNodes_SetIgnoredWithoutSource(t *testing.T) {
	h := NewHandler(zerolog.Nop(), nil, nil, nil)
	rr := do(t, h.Router(), http.MethodPut, "/api/v1/nodes/!a/ignored", `{"ignored": true}`)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}
