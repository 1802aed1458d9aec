package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"meshmap/core-go/internal/metrics"
	"meshmap/core-go/internal/render"
	"meshmap/core-go/internal/selection"
)

// MapSession is the slice of *session.Session the API drives.
type MapSession interface {
	Model() (render.Model, bool)
	Ready() bool
	WindowHours() float64
	Select(kind selection.Kind, id string) (render.Model, error)
	OnBackgroundClicked() render.Model
	OnLayerToggled(key string, visible bool) (render.Model, error)
	OnTimeWindowChanged(hours float64) error
}

// Refresher is the slice of *refresher.Worker the API drives.
type Refresher interface {
	Trigger()
	SetNodeIgnored(ctx context.Context, nodeID string, ignored bool) error
}

type Handler struct {
	log       zerolog.Logger
	session   MapSession
	refresher Refresher
	metrics   *metrics.Metrics
}

func NewHandler(log zerolog.Logger, sess MapSession, ref Refresher, m *metrics.Metrics) *Handler {
	return &Handler{log: log, session: sess, refresher: ref, metrics: m}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))
	r.Use(h.accessLog)

	// Health
	r.Get("/healthz", h.handleHealthz)
	r.Get("/readyz", h.handleReadyZ)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	}

	// API
	r.Route("/api", func(r chi.Router) {
		r.Route("/v1", func(r chi.Router) {
			r.Route("/map", func(r chi.Router) {
				r.Get("/", h.handleGetMap)
				r.Get("/geojson", h.handleGetMapGeoJSON)
				r.Post("/refresh", h.handleRefresh)
				r.Put("/window", h.handleSetWindow)
				r.Post("/selection", h.handleSelect)
				r.Delete("/selection", h.handleClearSelection)
				r.Put("/layers/{key}", h.handleSetLayer)
			})

			r.Put("/nodes/{id}/ignored", h.handleSetNodeIgnored)
		})
	})

	return r
}

func (h *Handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		h.metrics.ObserveHTTPRequest(r.Method, route, ww.Status(), time.Since(start))

		h.log.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Msg("http_request")
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	h.writeTyped(w, status, "application/json", v)
}

func (h *Handler) writeTyped(w http.ResponseWriter, status int, contentType string, v any) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, msg string, details map[string]any) {
	resp := map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": msg,
		},
	}
	if details != nil {
		resp["error"].(map[string]any)["details"] = details
	}
	h.writeJSON(w, status, resp)
}

func decodeJSONStrict(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return errors.New("unexpected extra data after JSON body")
		}
		return err
	}
	return nil
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) handleReadyZ(w http.ResponseWriter, r *http.Request) {
	if h.session == nil {
		h.writeError(w, http.StatusServiceUnavailable, "not_ready", "map session not configured", nil)
		return
	}
	if !h.session.Ready() {
		h.writeError(w, http.StatusServiceUnavailable, "not_ready", "no snapshot applied yet", nil)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"ready": true})
}

func (h *Handler) ensureSession(w http.ResponseWriter) bool {
	if h.session == nil {
		h.writeError(w, http.StatusServiceUnavailable, "session_unavailable", "map session not configured", nil)
		return false
	}
	return true
}
