// Package metrics exposes the service's Prometheus collectors and the helpers the
// other packages use to update them.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "launchsim"

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	catalogRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_refresh_total",
			Help:      "Catalog refresh attempts by result.",
		},
		[]string{"result"},
	)

	catalogObjects = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "catalog_objects",
		Help:      "Number of objects in the live catalog.",
	})

	catalogDropped = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "catalog_dropped_records",
		Help:      "Records rejected while building the live catalog.",
	})

	catalogAgeSeconds = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "catalog_age_seconds",
		Help:      "Age of the live catalog's source data in seconds.",
	})

	propagationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "propagation_batch_duration_seconds",
		Help:      "Duration of one whole-catalog propagation batch.",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	})

	propagationObjects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "propagation_objects_total",
			Help:      "Objects propagated, by outcome.",
		},
		[]string{"outcome"},
	)

	propagationWorkers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "propagation_workers",
		Help:      "Size of the propagation worker pool.",
	})

	riskEvaluationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "risk_evaluation_duration_seconds",
		Help:      "Duration of a full launch risk evaluation.",
		Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
	})

	riskEventsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "risk_events_total",
		Help:      "Close-approach events reported by risk evaluations.",
	})

	engineRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_requests_total",
			Help:      "Engine requests by type and result.",
		},
		[]string{"type", "result"},
	)

	streamsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "streams_active",
		Help:      "Open position streams.",
	})

	streamConnectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_connections_total",
			Help:      "Stream connection events.",
		},
		[]string{"event"},
	)

	streamMessagesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stream_messages_total",
		Help:      "Position frames sent on streams.",
	})

	streamBytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stream_bytes_total",
		Help:      "Bytes written to streams.",
	})

	streamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_errors_total",
			Help:      "Stream errors by reason.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		catalogRefreshTotal,
		catalogObjects,
		catalogDropped,
		catalogAgeSeconds,
		propagationDuration,
		propagationObjects,
		propagationWorkers,
		riskEvaluationDuration,
		riskEventsTotal,
		engineRequestsTotal,
		streamsActive,
		streamConnectionsTotal,
		streamMessagesTotal,
		streamBytesTotal,
		streamErrorsTotal,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// IncCatalogRefresh counts a refresh attempt; result is "ok" or "error".
func IncCatalogRefresh(result string) {
	catalogRefreshTotal.WithLabelValues(result).Inc()
}

// SetCatalogObjects records the live catalog size.
func SetCatalogObjects(n int) {
	catalogObjects.Set(float64(n))
}

// SetCatalogDropped records how many records the live catalog rejected.
func SetCatalogDropped(n int) {
	catalogDropped.Set(float64(n))
}

// SetCatalogAge records the live catalog age; negative means no catalog.
func SetCatalogAge(seconds float64) {
	catalogAgeSeconds.Set(seconds)
}

// RecordPropagation records one propagation batch.
func RecordPropagation(d time.Duration, ok, failed int) {
	propagationDuration.Observe(d.Seconds())
	propagationObjects.WithLabelValues("ok").Add(float64(ok))
	propagationObjects.WithLabelValues("failed").Add(float64(failed))
}

// SetPropagationWorkers records the worker pool size.
func SetPropagationWorkers(n int) {
	propagationWorkers.Set(float64(n))
}

// RecordRiskEvaluation records one completed risk evaluation.
func RecordRiskEvaluation(d time.Duration, events int) {
	riskEvaluationDuration.Observe(d.Seconds())
	riskEventsTotal.Add(float64(events))
}

// IncEngineRequest counts a dispatched engine request.
func IncEngineRequest(kind, result string) {
	engineRequestsTotal.WithLabelValues(kind, result).Inc()
}

// IncStreamsActive and DecStreamsActive track open streams.
func IncStreamsActive() { streamsActive.Inc() }

func DecStreamsActive() { streamsActive.Dec() }

// IncStreamConnections counts stream connection events ("connect", "disconnect").
func IncStreamConnections(event string) {
	streamConnectionsTotal.WithLabelValues(event).Inc()
}

func IncStreamMessages() { streamMessagesTotal.Inc() }

func AddStreamBytes(n int64) { streamBytesTotal.Add(float64(n)) }

// IncStreamErrors counts a stream error by reason.
func IncStreamErrors(reason string) {
	streamErrorsTotal.WithLabelValues(reason).Inc()
}

// knownRoutes are the exact paths that get their own label.
var knownRoutes = map[string]bool{
	"/":                        true,
	"/healthz":                 true,
	"/readyz":                  true,
	"/metrics":                 true,
	"/api/v1/engine":           true,
	"/api/v1/catalog":          true,
	"/api/v1/catalog/refresh":  true,
	"/api/v1/propagate":        true,
	"/api/v1/risk":             true,
	"/api/v1/stream/positions": true,
}

// normalizeRoute maps a request path to a bounded set of labels. Unknown paths
// (scanners, typos) collapse to "other".
func normalizeRoute(path string) string {
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	if knownRoutes[path] {
		return path
	}
	return "other"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush lets streaming handlers flush through the wrapper.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the connection, so streams can clear
// the server write deadline.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		route := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(route, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(duration)
	})
}
