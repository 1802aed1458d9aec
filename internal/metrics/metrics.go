package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes application metrics that are safe to scrape via Prometheus.
type Metrics struct {
	registry               *prometheus.Registry
	httpRequests           *prometheus.CounterVec
	httpRequestDuration    *prometheus.HistogramVec
	snapshotRefreshes      *prometheus.CounterVec
	snapshotRefreshLatency prometheus.Histogram
	renderEntities         *prometheus.GaugeVec
}

// New creates a fresh Metrics registry with HTTP, refresh and render metrics registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "meshmap",
		Name:      "http_requests_total",
		Help:      "Count of HTTP requests processed by the map service",
	}, []string{"method", "path", "status"})

	httpRequestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "meshmap",
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests served by the map service",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	snapshotRefreshes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "meshmap",
		Name:      "snapshot_refreshes_total",
		Help:      "Snapshot refresh attempts by result (ok, error, stale)",
	}, []string{"result"})

	snapshotRefreshLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "meshmap",
		Name:      "snapshot_refresh_duration_seconds",
		Help:      "Duration of a snapshot fetch plus derivation",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})

	renderEntities := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "meshmap",
		Name:      "render_entities",
		Help:      "Entities in the current render model by kind",
	}, []string{"kind"})

	registry.MustRegister(
		httpRequests,
		httpRequestDuration,
		snapshotRefreshes,
		snapshotRefreshLatency,
		renderEntities,
	)

	return &Metrics{
		registry:               registry,
		httpRequests:           httpRequests,
		httpRequestDuration:    httpRequestDuration,
		snapshotRefreshes:      snapshotRefreshes,
		snapshotRefreshLatency: snapshotRefreshLatency,
		renderEntities:         renderEntities,
	}
}

// ObserveHTTPRequest records a single HTTP request/response cycle.
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{
		"method": method,
		"path":   path,
		"status": strconv.Itoa(status),
	}
	m.httpRequests.With(labels).Inc()
	m.httpRequestDuration.With(labels).Observe(duration.Seconds())
}

// IncSnapshotRefresh counts one refresh attempt.
func (m *Metrics) IncSnapshotRefresh(result string) {
	if m == nil {
		return
	}
	m.snapshotRefreshes.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveSnapshotRefreshDuration(duration time.Duration) {
	if m == nil {
		return
	}
	m.snapshotRefreshLatency.Observe(duration.Seconds())
}

// SetRenderEntities records how many entities of kind the current model holds.
func (m *Metrics) SetRenderEntities(kind string, n int) {
	if m == nil {
		return
	}
	m.renderEntities.WithLabelValues(kind).Set(float64(n))
}

// Handler exposes the Prometheus registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("metrics unavailable"))
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
