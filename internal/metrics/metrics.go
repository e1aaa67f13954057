package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/motorlot/apiserver/pkg/query"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns the service's prometheus collectors and registry.
type Metrics struct {
	registry        *prometheus.Registry
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	queryResults    *prometheus.HistogramVec
	imageUploads    *prometheus.CounterVec
	sessionEvents   *prometheus.CounterVec
}

// New registers the collectors on a fresh registry.
func New(serviceName string) *Metrics {
	constLabels := prometheus.Labels{"service": serviceName}
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "http_requests_total",
			Help:        "Total number of HTTP requests",
			ConstLabels: constLabels,
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "http_request_duration_seconds",
			Help:        "Duration of HTTP requests in seconds",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: constLabels,
		}, []string{"method", "route", "status"}),
		queryResults: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "listing_query_results",
			Help:        "Number of listings matched by a listing view query",
			Buckets:     []float64{0, 1, 5, 12, 24, 48, 100, 500, 1000},
			ConstLabels: constLabels,
		}, []string{"view"}),
		imageUploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "listing_image_uploads_total",
			Help:        "Listing image uploads by outcome",
			ConstLabels: constLabels,
		}, []string{"outcome"}),
		sessionEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "session_events_total",
			Help:        "Session events published by type",
			ConstLabels: constLabels,
		}, []string{"type"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.requestDuration,
		m.queryResults,
		m.imageUploads,
		m.sessionEvents,
	)
	return m
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Middleware records request count and latency labelled by chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		labels := []string{r.Method, route, strconv.Itoa(status)}
		m.requests.WithLabelValues(labels...).Inc()
		m.requestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
	})
}

// ObserveQuery implements query.Observer.
func (m *Metrics) ObserveQuery(view query.View, fetched, matched int) {
	m.queryResults.WithLabelValues(string(view)).Observe(float64(matched))
}

// ImageUploaded counts one image upload attempt.
func (m *Metrics) ImageUploaded(err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.imageUploads.WithLabelValues(outcome).Inc()
}

// SessionEvent counts one published session event.
func (m *Metrics) SessionEvent(eventType string) {
	m.sessionEvents.WithLabelValues(eventType).Inc()
}
