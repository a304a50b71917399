// This code was originally written by Rene Zbinden and modified by Vladimir Konovalov.
// Copied from https://github.com/766b/chi-prometheus and further adapted.

package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	chi_middleware "github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Builds can keep a request open for many minutes.
	defaultBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600, 1200}
)

const (
	reqsName    = "requests_total"
	latencyName = "request_duration_seconds"
)

// Prometheus is a handler that exposes prometheus metrics for the number of requests
// and the latency, partitioned by status code, method and HTTP route.
type Prometheus struct {
	reqs    *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

func PrometheusMiddleware(name string, registerer prometheus.Registerer, buckets ...float64) *Prometheus {
	var m Prometheus
	m.reqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        reqsName,
			Help:        "How many HTTP requests processed, partitioned by status code, method and HTTP path.",
			ConstLabels: prometheus.Labels{"service": name},
		},
		[]string{"code", "method", "path"},
	)

	if len(buckets) == 0 {
		buckets = defaultBuckets
	}
	m.latency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        latencyName,
		Help:        "How long it took to process the request, partitioned by status code, method and HTTP path.",
		ConstLabels: prometheus.Labels{"service": name},
		Buckets:     buckets,
	},
		[]string{"code", "method", "path"},
	)

	registerer.MustRegister(m.reqs)
	registerer.MustRegister(m.latency)

	return &m
}

// Initialize pre-populates the metrics for a path, so that they are exported before the first request.
func (m *Prometheus) Initialize(path, method string, code int) {
	m.reqs.WithLabelValues(strconv.Itoa(code), method, path)
}

func (m *Prometheus) Handler() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chi_middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			statusCode := strconv.Itoa(ww.Status())
			path := routePattern(r)
			duration := time.Since(start)
			m.reqs.WithLabelValues(statusCode, r.Method, path).Inc()
			m.latency.WithLabelValues(statusCode, r.Method, path).Observe(duration.Seconds())
		}
		return http.HandlerFunc(fn)
	}
}

// Unknown paths are collapsed into one label value, so scanners cannot blow up cardinality.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return r.URL.Path
	}
	if pattern := rctx.RoutePattern(); pattern != "" {
		return pattern
	}
	return "unmatched"
}
