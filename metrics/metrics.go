package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RequestCounter counts all HTTP requests with labels
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// RequestDurationHistogram records request duration in seconds
	RequestDurationHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	LedgerMovementCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inventory_ledger_movements_total",
			Help: "Committed stock movements by movement type",
		},
		[]string{"movement_type"},
	)

	WorkflowOperationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inventory_workflow_operations_total",
			Help: "Workflow operations by outcome (ok, error)",
		},
		[]string{"operation", "outcome"},
	)

	WorkflowDurationHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "inventory_workflow_duration_seconds",
			Help:    "Duration of workflow transactions in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	NotificationDispatchCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_dispatch_total",
			Help: "Notification publish attempts by outcome (sent, retry, failed)",
		},
		[]string{"outcome"},
	)
)

var registerOnce sync.Once

// Register adds every collector to the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			RequestCounter,
			RequestDurationHistogram,
			LedgerMovementCounter,
			WorkflowOperationCounter,
			WorkflowDurationHistogram,
			NotificationDispatchCounter,
		)
	})
}

func ObserveWorkflow(operation string, started time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	WorkflowOperationCounter.WithLabelValues(operation, outcome).Inc()
	WorkflowDurationHistogram.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

func CountMovement(movementType string) {
	LedgerMovementCounter.WithLabelValues(movementType).Inc()
}

func CountNotification(outcome string) {
	NotificationDispatchCounter.WithLabelValues(outcome).Inc()
}

// Middleware records request count and latency per route template.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		RequestCounter.WithLabelValues(c.Request.Method, path, status).Inc()
		RequestDurationHistogram.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler exposes the default registry for scraping.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
