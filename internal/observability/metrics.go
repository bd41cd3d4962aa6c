package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rtmctl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rtmctl",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	remoteCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rtmctl",
			Subsystem: "remote",
			Name:      "calls_total",
			Help:      "Remote object invocations made by the wire client.",
		},
		[]string{"role", "method", "outcome"},
	)
	remoteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rtmctl",
			Subsystem: "remote",
			Name:      "call_duration_seconds",
			Help:      "Remote object invocation round trip in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"role", "method", "outcome"},
	)
	servedCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rtmctl",
			Subsystem: "served",
			Name:      "calls_total",
			Help:      "Invocations dispatched by the wire server.",
		},
		[]string{"method", "outcome"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, remoteCalls, remoteDuration, servedCalls)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

// RecordRemoteCall counts one client-side invocation. outcome is "ok" or an
// error code such as "not_found" or "transport".
func RecordRemoteCall(role, method, outcome string, duration time.Duration) {
	RegisterMetrics()
	remoteCalls.WithLabelValues(role, method, outcome).Inc()
	remoteDuration.WithLabelValues(role, method, outcome).Observe(duration.Seconds())
}

func RecordServedCall(method, outcome string) {
	RegisterMetrics()
	servedCalls.WithLabelValues(method, outcome).Inc()
}
