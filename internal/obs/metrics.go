package obs

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP metrics
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	gateDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_gate_decisions_total",
			Help: "Permission gate decisions by policy and reason.",
		},
		[]string{"policy", "reason"},
	)

	cacheInvalidationFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_cache_invalidation_failures_total",
			Help: "Cache invalidations that could not reach the cache backend.",
		},
		[]string{"entity"},
	)
)

var initOnce sync.Once

// Init registers the service metrics in the default registry. Safe to call
// more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(httpInFlight, httpRequestsTotal, httpRequestDuration, gateDecisions, cacheInvalidationFailures)
	})
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveGateDecision counts one gate evaluation.
func ObserveGateDecision(policy, reason string) {
	gateDecisions.WithLabelValues(policy, reason).Inc()
}

// ObserveCacheInvalidationFailure counts one failed cache invalidation.
func ObserveCacheInvalidationFailure(entity string) {
	cacheInvalidationFailures.WithLabelValues(entity).Inc()
}

// Instrument records in-flight, count and latency per canonical path.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		defer httpInFlight.Dec()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	})
}

// identifierCollections are the /v1 collections followed by an identifier.
var identifierCollections = map[string]struct{}{
	"organizations":  {},
	"users":          {},
	"business-units": {},
	"action-types":   {},
}

// CanonicalPath collapses identifiers in API paths so metric labels stay
// bounded: /v1/organizations/org_1/users becomes /v1/organizations/:id/users.
func CanonicalPath(raw string) string {
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		raw = raw[:i]
	}
	if raw == "" {
		return "/"
	}
	parts := strings.Split(strings.Trim(raw, "/"), "/")
	if len(parts) < 3 || parts[0] != "v1" {
		return raw
	}
	for i := 2; i < len(parts); i++ {
		if _, ok := identifierCollections[parts[i-1]]; ok {
			parts[i] = ":id"
		}
	}
	return "/" + strings.Join(parts, "/")
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
