// Package metrics holds the prometheus collectors shared by the booking
// service and the chi middleware that records request metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"
)

var (
	TokenRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "machinebook_token_requests_total",
			Help: "Upstream token requests by credential source and outcome",
		},
		[]string{"source", "outcome"},
	)

	Bookings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "machinebook_bookings_total",
			Help: "Booking attempts by mode (interactive, scheduled) and outcome",
		},
		[]string{"mode", "outcome"},
	)

	SchedulerAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "machinebook_scheduler_attempts_total",
			Help: "Auto-booking attempts by outcome",
		},
		[]string{"outcome"},
	)

	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "machinebook_upstream_breaker_state",
			Help: "Upstream circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "machinebook_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "machinebook_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

func init() {
	prometheus.MustRegister(TokenRequests, Bookings, SchedulerAttempts, BreakerState, httpRequests, httpDuration)
}

// Outcome labels.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// StateValue maps breaker states onto the BreakerState gauge.
func StateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Middleware records request count and latency keyed by chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		path := "unknown"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			path = rc.RoutePattern()
		}
		httpRequests.WithLabelValues(r.Method, path, strconv.Itoa(sw.status)).Inc()
		httpDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}
