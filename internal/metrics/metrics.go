// Package metrics registers Punchlist's Prometheus metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/zulandar/punchlist/internal/apperr"
)

var (
	// OperationsTotal counts workflow operations by outcome. result is "ok"
	// or the apperr kind of the failure.
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "punchlist_operations_total",
			Help: "Workflow operations by outcome",
		},
		[]string{"operation", "result"},
	)

	// TasksOverdue is the number of open tasks past their due date, per
	// project, as of the last digest sweep.
	TasksOverdue = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "punchlist_tasks_overdue",
			Help: "Open tasks past their due date",
		},
		[]string{"project"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "punchlist_http_requests_total",
			Help: "HTTP requests served",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "punchlist_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Observe records the outcome of one operation.
func Observe(operation string, err error) {
	result := "ok"
	if err != nil {
		result = string(apperr.KindOf(err))
	}
	OperationsTotal.WithLabelValues(operation, result).Inc()
}

// Middleware records request counts and latency. Paths are labelled by
// route template so ids do not explode cardinality.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		httpRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
