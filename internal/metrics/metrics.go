// Package metrics provides Prometheus instrumentation for the pool engine.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// OperationsTotal counts engine operations by name and outcome
	// ("ok" or the rejecting error class).
	OperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pool_operations_total",
		Help: "Total number of ledger operations",
	}, []string{"op", "result"})

	// OperationLatency tracks time spent inside the engine lock.
	OperationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pool_operation_latency_seconds",
		Help:    "Ledger operation latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	// StakedMutez counts value accepted into pools, by outcome.
	StakedMutez = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pool_staked_mutez_total",
		Help: "Cumulative mutez staked",
	}, []string{"outcome"})

	// PaidMutez counts value leaving pools, by journal kind.
	PaidMutez = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pool_paid_mutez_total",
		Help: "Cumulative mutez refunded or paid out",
	}, []string{"kind"})

	// ExitFeesMutez counts fees credited to jackpots.
	ExitFeesMutez = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pool_exit_fees_mutez_total",
		Help: "Cumulative exit fees credited to jackpots",
	})

	// Remainder mirrors the global remainder.
	Remainder = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pool_remainder_mutez",
		Help: "Value collected from deleted events",
	})

	// ActiveEvents tracks the number of live events.
	ActiveEvents = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pool_active_events",
		Help: "Number of live events",
	})

	// AutoLocks counts events locked by the lifecycle ticker.
	AutoLocks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pool_auto_locks_total",
		Help: "Events locked automatically at their lock time",
	})

	// PersistErrors counts store or publish failures after a committed operation.
	PersistErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pool_persist_errors_total",
		Help: "Failures persisting or publishing committed state",
	}, []string{"target"})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pool_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pool_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pool_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the route pattern for path label to avoid high cardinality.
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack lets WebSocket upgrades pass through the middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
