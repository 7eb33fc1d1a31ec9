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
			Namespace: "clipqueue",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests on the admin surface.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "clipqueue",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	peersConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "clipqueue",
			Subsystem: "queue",
			Name:      "peers_connected",
			Help:      "Clients currently connected to this host.",
		},
	)
	itemsRelayed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clipqueue",
			Subsystem: "queue",
			Name:      "items_relayed_total",
			Help:      "Clipboard items accepted and relayed or delivered to observers.",
		},
		[]string{"role"},
	)
	itemsDeduped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clipqueue",
			Subsystem: "queue",
			Name:      "items_deduped_total",
			Help:      "Clipboard items dropped by the dedup cache.",
		},
		[]string{"role"},
	)
	authFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "clipqueue",
			Subsystem: "queue",
			Name:      "auth_failures_total",
			Help:      "Rejected join handshakes.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,
			peersConnected,
			itemsRelayed,
			itemsDeduped,
			authFailures,
		)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

func SetPeersConnected(n int) {
	RegisterMetrics()
	peersConnected.Set(float64(n))
}

func RecordItemRelayed(role string) {
	RegisterMetrics()
	itemsRelayed.WithLabelValues(role).Inc()
}

func RecordItemDeduped(role string) {
	RegisterMetrics()
	itemsDeduped.WithLabelValues(role).Inc()
}

func RecordAuthFailure() {
	RegisterMetrics()
	authFailures.Inc()
}
