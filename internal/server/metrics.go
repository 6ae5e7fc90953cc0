package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/knotwork-db/knotwork/internal/graph"
)

// Metrics holds the Prometheus registry and collectors exposed on /metrics.
type Metrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics builds a registry with process, Go runtime, HTTP and graph size
// collectors. The node and relationship gauges read the store directly so
// they are always current without instrumenting every mutation path.
func NewMetrics(store *graph.Store) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "knotwork_http_requests_total",
		Help: "HTTP requests handled, by method and status code.",
	}, []string{"method", "status"})

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "knotwork_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})

	registry.MustRegister(requests, duration)

	if store != nil {
		registry.MustRegister(
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Name: "knotwork_nodes",
				Help: "Nodes currently in the store.",
			}, func() float64 { return float64(store.NodeCount()) }),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Name: "knotwork_relationships",
				Help: "Relationships currently in the store.",
			}, func() float64 { return float64(store.RelationshipCount()) }),
		)
	}

	return &Metrics{
		registry: registry,
		requests: requests,
		duration: duration,
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) observe(method string, status int, elapsed time.Duration) {
	m.requests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(method).Observe(elapsed.Seconds())
}
