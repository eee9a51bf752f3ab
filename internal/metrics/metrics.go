// Package metrics exposes the service's prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "roombook"

// Metrics owns a dedicated registry so tests can build independent instances.
type Metrics struct {
	registry *prometheus.Registry

	// bookingOperations counts booking mutations.
	// Labels: operation (create, update, cancel, status, delete, complete), result (ok, conflict, ...)
	bookingOperations *prometheus.CounterVec

	// bookingConflicts counts requests rejected by the no-overlap rule.
	bookingConflicts prometheus.Counter

	// completedBookings counts bookings closed by the completion sweep.
	completedBookings prometheus.Counter

	// requestDuration measures HTTP latency.
	// Labels: method, route (chi pattern), status
	requestDuration *prometheus.HistogramVec
}

// New registers every collector on a fresh registry, including the Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		bookingOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bookings",
			Name:      "operations_total",
			Help:      "Booking operations by outcome",
		}, []string{"operation", "result"}),
		bookingConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bookings",
			Name:      "conflicts_total",
			Help:      "Booking writes rejected because the room was taken",
		}),
		completedBookings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bookings",
			Name:      "completed_total",
			Help:      "Bookings marked completed by the sweeper",
		}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"method", "route", "status"}),
	}
	reg.MustRegister(
		m.bookingOperations,
		m.bookingConflicts,
		m.completedBookings,
		m.requestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry backing the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// BookingOperation records the outcome of a booking mutation.
func (m *Metrics) BookingOperation(operation, result string) {
	if m == nil {
		return
	}
	m.bookingOperations.WithLabelValues(operation, result).Inc()
	if result == "conflict" {
		m.bookingConflicts.Inc()
	}
}

// BookingsCompleted adds n to the sweeper counter.
func (m *Metrics) BookingsCompleted(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.completedBookings.Add(float64(n))
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware observes request latency labelled by the matched chi route.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		m.requestDuration.
			WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).
			Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
