package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Mutation kinds counted by the bootstrap scheduler.
const (
	MutationForeign   = "foreign"
	MutationSelf      = "self"
	MutationCoalesced = "coalesced"
)

// Metrics mengumpulkan metrik Prometheus untuk operator overlay.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	mutations       *prometheus.CounterVec
	refreshSkipped  prometheus.Counter
	visibleRows     prometheus.Gauge
	diagnostics     *prometheus.CounterVec
}

// NewMetrics menginisialisasi registry dan metrik dasar.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "overlay_http_requests_total",
		Help: "Operator HTTP requests by route and status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "overlay_http_request_duration_seconds",
		Help:    "Operator HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	mutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "overlay_dom_mutations_total",
		Help: "Host mutation batches seen by the scheduler, by kind.",
	}, []string{"kind"})
	skipped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "overlay_refresh_throttled_total",
		Help: "Refresh triggers dropped inside the minimum interval.",
	})
	visible := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "overlay_visible_rows",
		Help: "Rows left visible by the last quick filter pass.",
	})
	diagnostics := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "overlay_diagnostics_total",
		Help: "Failures published on the diagnostics channel, by kind.",
	}, []string{"kind"})
	registry.MustRegister(requests, duration, mutations, skipped, visible, diagnostics)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		mutations:       mutations,
		refreshSkipped:  skipped,
		visibleRows:     visible,
		diagnostics:     diagnostics,
	}
}

// Handler mengembalikan http.Handler untuk endpoint /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware mencatat metrik untuk setiap permintaan HTTP.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Registerer mengekspos registry untuk pendaftaran metrik khusus.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// ObserveMutation counts one mutation batch of the given kind.
func (m *Metrics) ObserveMutation(kind string) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(kind).Inc()
}

// RefreshThrottled counts a dropped refresh trigger.
func (m *Metrics) RefreshThrottled() {
	if m == nil {
		return
	}
	m.refreshSkipped.Inc()
}

// SetVisibleRows records the quick filter result.
func (m *Metrics) SetVisibleRows(n int) {
	if m == nil {
		return
	}
	m.visibleRows.Set(float64(n))
}

func (m *Metrics) countDiagnostic(kind string) {
	if m == nil {
		return
	}
	m.diagnostics.WithLabelValues(kind).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
