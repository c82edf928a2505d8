package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "whereitwent",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "whereitwent",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	// Search engine metrics
	SearchesIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "whereitwent",
		Subsystem: "search",
		Name:      "queries_total",
		Help:      "Total nearby-place queries resolved",
	}, []string{"outcome"})

	StreamBatches = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "whereitwent",
		Subsystem: "search",
		Name:      "stream_batches_total",
		Help:      "Total partial place batches streamed to clients",
	})

	SearchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "whereitwent",
		Subsystem: "search",
		Name:      "query_duration_seconds",
		Help:      "Duration of nearby-place query resolution",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	UpstreamFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "whereitwent",
		Subsystem: "search",
		Name:      "upstream_fetches_total",
		Help:      "Total upstream places API calls per cell",
	}, []string{"status"})

	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "whereitwent",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Current number of active WebSocket connections",
	})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "whereitwent",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"operation"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "whereitwent",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"operation"})

	SpendingLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "whereitwent",
		Subsystem: "spending",
		Name:      "lookups_total",
		Help:      "Total award searches against the spending API",
	}, []string{"status"})
)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)

		return err
	}
}

// Handler returns a Fiber handler serving the Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}
