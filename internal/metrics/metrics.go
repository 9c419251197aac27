// Package metrics provides Prometheus instrumentation for the pool engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ResultsRecorded counts allotment results recorded, partitioned by
	// outcome.
	ResultsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ipopool_results_recorded_total",
		Help: "Total number of allotment results recorded",
	}, []string{"status"})

	// ActiveIPOs tracks the number of IPOs currently being managed.
	ActiveIPOs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ipopool_active_ipos",
		Help: "Number of IPOs currently tracked",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ipopool_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ipopool_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ipopool_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})

	// CapacityRejections counts participant additions rejected by the
	// capacity limiter.
	CapacityRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ipopool_capacity_rejections_total",
		Help: "Participant additions rejected by capacity limits",
	})

	// CSVExports counts report CSV downloads.
	CSVExports = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ipopool_csv_exports_total",
		Help: "Report CSV exports served",
	})
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
