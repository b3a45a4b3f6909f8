package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/lexrag/internal/core/domain"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	ragRequestsTotal  *prometheus.CounterVec
	ragCacheTotal     *prometheus.CounterVec
	ragDegradedTotal  *prometheus.CounterVec
	ragNoContextTotal *prometheus.CounterVec
	ragSources        *prometheus.HistogramVec
	ragConfidence     *prometheus.HistogramVec
	ragDuration       *prometheus.HistogramVec
	backendTotal      *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lexrag",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lexrag",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   "lexrag",
			Subsystem:   "http",
			Name:        "in_flight_requests",
			Help:        "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{"service": service},
		},
	)
	ragRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lexrag",
			Subsystem: "rag",
			Name:      "requests_total",
			Help:      "Total completed RAG requests by retrieval mode.",
		},
		[]string{"service", "mode"},
	)
	ragCacheTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lexrag",
			Subsystem: "rag",
			Name:      "cache_total",
			Help:      "Semantic cache outcomes for cache-enabled requests.",
		},
		[]string{"service", "result"},
	)
	ragDegradedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lexrag",
			Subsystem: "rag",
			Name:      "degraded_total",
			Help:      "Total answers produced on a degraded path, by reason.",
		},
		[]string{"service", "reason"},
	)
	ragNoContextTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lexrag",
			Subsystem: "rag",
			Name:      "no_context_total",
			Help:      "Total answers generated without supporting sources.",
		},
		[]string{"service"},
	)
	ragSources := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lexrag",
			Subsystem: "rag",
			Name:      "cited_sources",
			Help:      "Distribution of cited sources per answer.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8},
		},
		[]string{"service"},
	)
	ragConfidence := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lexrag",
			Subsystem: "rag",
			Name:      "confidence",
			Help:      "Distribution of blended answer confidence.",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		},
		[]string{"service"},
	)
	ragDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lexrag",
			Subsystem: "rag",
			Name:      "duration_seconds",
			Help:      "End-to-end answer latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "cache_hit"},
	)
	backendTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lexrag",
			Subsystem: "llm",
			Name:      "backend_calls_total",
			Help:      "Backend outcomes per answer: one produced, others failed.",
		},
		[]string{"service", "backend", "outcome"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		ragRequestsTotal,
		ragCacheTotal,
		ragDegradedTotal,
		ragNoContextTotal,
		ragSources,
		ragConfidence,
		ragDuration,
		backendTotal,
	)

	return &HTTPServerMetrics{
		registry:          registry,
		requestTotal:      requestTotal,
		requestDuration:   requestDuration,
		requestInFlight:   requestInFlight,
		ragRequestsTotal:  ragRequestsTotal,
		ragCacheTotal:     ragCacheTotal,
		ragDegradedTotal:  ragDegradedTotal,
		ragNoContextTotal: ragNoContextTotal,
		ragSources:        ragSources,
		ragConfidence:     ragConfidence,
		ragDuration:       ragDuration,
		backendTotal:      backendTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(service, r.Method, path, strconv.Itoa(recorder.statusCode)).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/sources/"):
		if strings.HasSuffix(path, "/verify") {
			return "/v1/sources/{document_id}/verify"
		}
		return "/v1/sources/{document_id}"
	default:
		return path
	}
}

// RecordAnswer folds one completed answer into the pipeline metrics.
func (m *HTTPServerMetrics) RecordAnswer(service, mode string, cacheEnabled bool, answer *domain.Answer) {
	if answer == nil {
		return
	}
	if mode == "" {
		mode = "unknown"
	}
	m.ragRequestsTotal.WithLabelValues(service, mode).Inc()

	if cacheEnabled {
		result := "miss"
		if answer.CacheHit {
			result = "hit"
		}
		m.ragCacheTotal.WithLabelValues(service, result).Inc()
	}
	if answer.Degraded {
		m.ragDegradedTotal.WithLabelValues(service, answer.DegradationReason).Inc()
	}
	if answer.NoSources {
		m.ragNoContextTotal.WithLabelValues(service).Inc()
	}
	m.ragSources.WithLabelValues(service).Observe(float64(len(answer.Sources)))
	m.ragConfidence.WithLabelValues(service).Observe(answer.Confidence)
	m.ragDuration.WithLabelValues(service, strconv.FormatBool(answer.CacheHit)).Observe(answer.Latency.Seconds())

	if answer.Backend != "" && !answer.CacheHit {
		m.backendTotal.WithLabelValues(service, answer.Backend, "produced").Inc()
	}
	for _, attempt := range answer.Attempts {
		m.backendTotal.WithLabelValues(service, attempt.Backend, "failed").Inc()
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
