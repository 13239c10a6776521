// Package metrics exposes Prometheus metrics for the HTTP layer and the bill pipeline.
package metrics

import (
	"bufio"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
)

const namespace = "parsetastic"

// Metrics owns a private registry. Every recording method is safe on a nil *Metrics.
type Metrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	documentsIngested  *prometheus.CounterVec
	reviewReasons      *prometheus.CounterVec
	overallConfidence  prometheus.Histogram
	oracleFailures     *prometheus.CounterVec
	billingSubmissions *prometheus.CounterVec
	correctionsTotal   prometheus.Counter
}

func New(service string) *Metrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "http",
			Name:        "in_flight_requests",
			Help:        "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{"service": service},
		},
	)
	documentsIngested := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "documents_ingested_total",
			Help:      "Ingested documents by review decision.",
		},
		[]string{"decision"},
	)
	reviewReasons := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "review_reasons_total",
			Help:      "Reasons that sent a document to human review.",
		},
		[]string{"reason"},
	)
	overallConfidence := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "overall_confidence",
			Help:      "Minimum field confidence per ingested document.",
			Buckets:   []float64{0.5, 0.7, 0.8, 0.85, 0.9, 0.95, 0.98, 0.99, 0.995, 1},
		},
	)
	oracleFailures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "oracle_failures_total",
			Help:      "Failed calls to an external model, by oracle.",
		},
		[]string{"oracle"},
	)
	billingSubmissions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "billing_submissions_total",
			Help:      "Submissions to the billing API by outcome.",
		},
		[]string{"outcome"},
	)
	correctionsTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "corrections_recorded_total",
			Help:      "Reviewer corrections stored.",
		},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		documentsIngested,
		reviewReasons,
		overallConfidence,
		oracleFailures,
		billingSubmissions,
		correctionsTotal,
	)

	return &Metrics{
		registry:           registry,
		requestTotal:       requestTotal,
		requestDuration:    requestDuration,
		requestInFlight:    requestInFlight,
		documentsIngested:  documentsIngested,
		reviewReasons:      reviewReasons,
		overallConfidence:  overallConfidence,
		oracleFailures:     oracleFailures,
		billingSubmissions: billingSubmissions,
		correctionsTotal:   correctionsTotal,
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Middleware(service string, next http.Handler) http.Handler {
	if m == nil {
		return next
	}
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
	case strings.HasPrefix(path, "/api/documents/") && strings.HasSuffix(path, "/approve"):
		return "/api/documents/{id}/approve"
	case strings.HasPrefix(path, "/api/documents/"):
		return "/api/documents/{id}"
	default:
		return path
	}
}

// DocumentIngested records one gate decision with its reasons and overall confidence.
func (m *Metrics) DocumentIngested(requiresReview bool, reasons []string, overall float64) {
	if m == nil {
		return
	}
	decision := "auto_approved"
	if requiresReview {
		decision = "review"
	}
	m.documentsIngested.WithLabelValues(decision).Inc()
	m.overallConfidence.Observe(overall)
	for _, r := range reasons {
		m.reviewReasons.WithLabelValues(ReasonLabel(r)).Inc()
	}
}

// ReasonLabel buckets a free text review reason into a low cardinality label.
func ReasonLabel(reason string) string {
	switch {
	case strings.HasPrefix(reason, "critical fields"):
		return "critical_fields"
	case strings.HasPrefix(reason, "overall confidence"):
		return "overall_confidence"
	case strings.HasPrefix(reason, "autopilot"):
		return "autopilot_disabled"
	case strings.HasPrefix(reason, "validation requested"):
		return "validation_hitl"
	case strings.HasPrefix(reason, "validation failed"):
		return "validation_failed"
	case strings.HasPrefix(reason, "validation result missing"):
		return "validation_missing"
	default:
		return "other"
	}
}

func (m *Metrics) OracleFailure(oracle string) {
	if m == nil {
		return
	}
	m.oracleFailures.WithLabelValues(oracle).Inc()
}

func (m *Metrics) BillingSubmission(err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.billingSubmissions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) CorrectionsRecorded(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.correctionsTotal.Add(float64(n))
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
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, eris.New("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}
