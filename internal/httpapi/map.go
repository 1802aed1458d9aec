package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"meshmap/core-go/internal/mesh"
	"meshmap/core-go/internal/nodedb"
	"meshmap/core-go/internal/refresher"
	"meshmap/core-go/internal/render"
	"meshmap/core-go/internal/selection"
	"meshmap/core-go/internal/session"
)

const geoJSONContentType = "application/geo+json"

type windowUpdate struct {
	Hours *float64 `json:"hours"`
}

type selectionRequest struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

type layerUpdate struct {
	Visible *bool `json:"visible"`
}

type ignoredUpdate struct {
	Ignored *bool `json:"ignored"`
}

func (h *Handler) handleGetMap(w http.ResponseWriter, r *http.Request) {
	if !h.ensureSession(w) {
		return
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("hours")); raw != "" {
		hours, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "validation_failed", "hours must be a number", map[string]any{"hours": raw})
			return
		}
		if hours != h.session.WindowHours() {
			if err := h.session.OnTimeWindowChanged(hours); err != nil {
				h.writeMapError(w, err)
				return
			}
		}
	}

	m, ok := h.currentModel(w)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, m)
}

func (h *Handler) handleGetMapGeoJSON(w http.ResponseWriter, r *http.Request) {
	if !h.ensureSession(w) {
		return
	}
	m, ok := h.currentModel(w)
	if !ok {
		return
	}
	h.writeTyped(w, http.StatusOK, geoJSONContentType, render.GeoJSON(m))
}

func (h *Handler) currentModel(w http.ResponseWriter) (render.Model, bool) {
	m, ok := h.session.Model()
	if !ok {
		h.writeError(w, http.StatusServiceUnavailable, "not_ready", "no snapshot applied yet", nil)
		return render.Model{}, false
	}
	return m, true
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if h.refresher == nil {
		h.writeError(w, http.StatusServiceUnavailable, "source_unavailable", "no snapshot source configured", nil)
		return
	}
	h.refresher.Trigger()
	h.writeJSON(w, http.StatusAccepted, map[string]any{"status": "queued"})
}

func (h *Handler) handleSetWindow(w http.ResponseWriter, r *http.Request) {
	if !h.ensureSession(w) {
		return
	}

	var req windowUpdate
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON body", map[string]any{"error": err.Error()})
		return
	}
	if req.Hours == nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "hours is required", nil)
		return
	}
	if err := h.session.OnTimeWindowChanged(*req.Hours); err != nil {
		h.writeMapError(w, err)
		return
	}

	h.writeJSON(w, http.StatusAccepted, map[string]any{"window_hours": *req.Hours})
}

func (h *Handler) handleSelect(w http.ResponseWriter, r *http.Request) {
	if !h.ensureSession(w) {
		return
	}

	var req selectionRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON body", map[string]any{"error": err.Error()})
		return
	}
	req.ID = strings.TrimSpace(req.ID)
	if req.ID == "" {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "id is required", nil)
		return
	}

	m, err := h.session.Select(selection.Kind(strings.ToLower(strings.TrimSpace(req.Kind))), req.ID)
	if err != nil {
		h.writeMapError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, m)
}

func (h *Handler) handleClearSelection(w http.ResponseWriter, r *http.Request) {
	if !h.ensureSession(w) {
		return
	}
	m := h.session.OnBackgroundClicked()
	if !h.session.Ready() {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.writeJSON(w, http.StatusOK, m)
}

func (h *Handler) handleSetLayer(w http.ResponseWriter, r *http.Request) {
	if !h.ensureSession(w) {
		return
	}

	var req layerUpdate
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON body", map[string]any{"error": err.Error()})
		return
	}
	if req.Visible == nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "visible is required", nil)
		return
	}

	key := chi.URLParam(r, "key")
	m, err := h.session.OnLayerToggled(key, *req.Visible)
	if err != nil {
		h.writeMapError(w, err)
		return
	}
	if !h.session.Ready() {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.writeJSON(w, http.StatusOK, m)
}

func (h *Handler) handleSetNodeIgnored(w http.ResponseWriter, r *http.Request) {
	if h.refresher == nil {
		h.writeError(w, http.StatusServiceUnavailable, "source_unavailable", "no snapshot source configured", nil)
		return
	}

	var req ignoredUpdate
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON body", map[string]any{"error": err.Error()})
		return
	}
	if req.Ignored == nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "ignored is required", nil)
		return
	}

	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if err := h.refresher.SetNodeIgnored(r.Context(), id, *req.Ignored); err != nil {
		h.writeMapError(w, err)
		return
	}

	h.writeJSON(w, http.StatusAccepted, map[string]any{"node_id": id, "ignored": *req.Ignored})
}

// writeMapError maps domain sentinels to the error envelope.
func (h *Handler) writeMapError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrInvalidWindow):
		h.writeError(w, http.StatusBadRequest, "validation_failed", "hours must be between 1 and 720", nil)
	case errors.Is(err, session.ErrInvalidKind):
		h.writeError(w, http.StatusBadRequest, "validation_failed", "kind must be node or shape", nil)
	case errors.Is(err, session.ErrUnknownEntity):
		h.writeError(w, http.StatusNotFound, "not_found", "entity not on the current map", map[string]any{"error": err.Error()})
	case errors.Is(err, selection.ErrUnknownLayer):
		h.writeError(w, http.StatusNotFound, "unknown_layer", "unknown layer", map[string]any{"layers": selection.AllLayers()})
	case errors.Is(err, mesh.ErrNodeNotFound):
		h.writeError(w, http.StatusNotFound, "not_found", "node not found", nil)
	case errors.Is(err, nodedb.ErrReadOnly):
		h.writeError(w, http.StatusConflict, "read_only", "node database is read-only", nil)
	case errors.Is(err, refresher.ErrNoSource):
		h.writeError(w, http.StatusServiceUnavailable, "source_unavailable", "no snapshot source configured", nil)
	default:
		h.log.Error().Err(err).Msg("map request failed")
		h.writeError(w, http.StatusInternalServerError, "internal_error", "request failed", nil)
	}
}
