package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/JonMunkholm/moviedata/internal/core"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for one server. Each server owns
// its registry so tests can build several without duplicate registration.
type Metrics struct {
	registry *prometheus.Registry

	requests  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	runs      *prometheus.CounterVec
	rows      *prometheus.CounterVec
	cleanTime prometheus.Histogram
}

// NewMetrics registers the server's collectors plus the Go and process
// collectors. limiter feeds the clean_active gauge.
func NewMetrics(limiter *core.Limiter) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "moviecleaner",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern, method and status.",
		}, []string{"route", "method", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "moviecleaner",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "moviecleaner",
			Name:      "clean_runs_total",
			Help:      "Clean runs by outcome.",
		}, []string{"outcome"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "moviecleaner",
			Name:      "rows_total",
			Help:      "Rows seen by stage: loaded or kept after cleaning.",
		}, []string{"stage"}),
		cleanTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "moviecleaner",
			Name:      "clean_duration_seconds",
			Help:      "Time spent loading and cleaning one upload.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 4, 8),
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests, m.latency, m.runs, m.rows, m.cleanTime,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "moviecleaner",
			Name:      "clean_active",
			Help:      "Clean runs currently holding a slot.",
		}, func() float64 { return float64(limiter.Active()) }),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Instrument records request count and latency per chi route pattern.
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		m.latency.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

func (m *Metrics) observeRun(outcome string, loaded, kept int, elapsed time.Duration) {
	m.runs.WithLabelValues(outcome).Inc()
	if loaded > 0 {
		m.rows.WithLabelValues("loaded").Add(float64(loaded))
	}
	if kept > 0 {
		m.rows.WithLabelValues("kept").Add(float64(kept))
	}
	m.cleanTime.Observe(elapsed.Seconds())
}
