// Package metrics exposes Prometheus collectors for TSA traffic and the HTTP
// API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tsaclient_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tsaclient_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route"},
	)

	// TSA metrics
	timestampRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tsaclient_timestamp_requests_total",
			Help: "Total number of timestamp requests by outcome",
		},
		[]string{"outcome"},
	)

	tsaRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tsaclient_tsa_request_duration_seconds",
			Help:    "Round trip time of requests to the TSA in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"kind"},
	)

	validations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tsaclient_validations_total",
			Help: "Total number of token validations by result",
		},
		[]string{"result"},
	)

	creditQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tsaclient_credit_queries_total",
			Help: "Total number of vendor credit queries by outcome",
		},
		[]string{"outcome"},
	)

	vendorAuthFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tsaclient_vendor_auth_fallbacks_total",
			Help: "Vendor TSA requests sent without an identity header",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request counts and latency per chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(wrapped.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordTimestampRequest records a completed timestamp request.
func RecordTimestampRequest(err error) {
	timestampRequests.WithLabelValues(outcome(err)).Inc()
}

// RecordTSARoundTrip records the duration of one HTTP exchange with the TSA.
// kind is "timestamp" or "credit".
func RecordTSARoundTrip(kind string, d time.Duration) {
	tsaRequestDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// RecordValidation records a validation report.
func RecordValidation(valid bool) {
	result := "invalid"
	if valid {
		result = "valid"
	}
	validations.WithLabelValues(result).Inc()
}

// RecordCreditQuery records a vendor credit query.
func RecordCreditQuery(err error) {
	creditQueries.WithLabelValues(outcome(err)).Inc()
}

// RecordVendorAuthFallback records a vendor request sent unauthenticated.
func RecordVendorAuthFallback() {
	vendorAuthFallbacks.Inc()
}
