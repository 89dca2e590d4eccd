package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pagewright",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pagewright",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "route"},
	)

	renders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pagewright",
			Subsystem: "render",
			Name:      "templates_total",
			Help:      "Template render attempts by outcome.",
		},
		[]string{"status"},
	)

	renderDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "pagewright",
			Subsystem: "render",
			Name:      "template_duration_seconds",
			Help:      "Duration of template executions.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
	)

	reorders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pagewright",
			Subsystem: "placements",
			Name:      "reorders_total",
			Help:      "Reorder requests by protocol and outcome.",
		},
		[]string{"protocol", "success"},
	)

	autoCreates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pagewright",
			Subsystem: "page_parts",
			Name:      "auto_creates_total",
			Help:      "Page part auto-creation attempts by result.",
		},
		[]string{"result"},
	)
)

func init() {
	Registry.MustRegister(
		httpRequests,
		httpDuration,
		renders,
		renderDuration,
		reorders,
		autoCreates,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency per matched route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// RecordRender records one template render outcome.
func RecordRender(status string, duration time.Duration) {
	renders.WithLabelValues(status).Inc()
	if duration > 0 {
		renderDuration.Observe(duration.Seconds())
	}
}

// RecordReorder records a reorder request.
func RecordReorder(protocol string, success bool) {
	reorders.WithLabelValues(protocol, strconv.FormatBool(success)).Inc()
}

// RecordAutoCreate records a page part auto-creation attempt.
func RecordAutoCreate(result string) {
	autoCreates.WithLabelValues(result).Inc()
}
