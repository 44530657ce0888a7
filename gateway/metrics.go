package gateway

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// metrics are registered on a per-server registry so that several gateways
// can live in one process.
type metrics struct {
	requestDuration  *prometheus.HistogramVec
	sseStartup       *prometheus.HistogramVec
	upstreamFailures *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "devlens_http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		sseStartup: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "devlens_sse_startup_latency_seconds",
			Help:    "Latency until first SSE event is relayed.",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		upstreamFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "devlens_gateway_upstream_failures_total",
			Help: "Relayed requests that failed, by phase.",
		}, []string{"phase"}),
	}
	reg.MustRegister(m.requestDuration, m.sseStartup, m.upstreamFailures)
	return m
}

func (m *metrics) observeRequest(method, path string, status int, d time.Duration) {
	m.requestDuration.WithLabelValues(method, path, strconv.Itoa(status)).Observe(d.Seconds())
}

func (m *metrics) observeSSEStartup(endpoint string, d time.Duration) {
	m.sseStartup.WithLabelValues(endpoint).Observe(max(d.Seconds(), 0))
}

func (m *metrics) upstreamFailed(phase string) {
	m.upstreamFailures.WithLabelValues(phase).Inc()
}
