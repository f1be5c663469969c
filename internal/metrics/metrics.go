package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pharmacheck/inventory/backend-go/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the reconciliation and HTTP instruments.
type Metrics struct {
	runs          *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	ledgerEntries *prometheus.CounterVec
	newItems      *prometheus.CounterVec
	parseWarnings *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
}

var _ pipeline.Observer = (*Metrics)(nil)

// New registers the instruments on registerer, or the default registerer when nil.
func New(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inventory_reconciliation_runs_total",
			Help: "Reconciliation runs by category and final status.",
		}, []string{"category", "status"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "inventory_reconciliation_duration_seconds",
			Help:    "Wall time of a reconciliation run from file read to commit.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"category"}),
		ledgerEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inventory_ledger_entries_total",
			Help: "Ledger entries committed by completed runs.",
		}, []string{"category"}),
		newItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inventory_ledger_new_items_total",
			Help: "Products first seen in incoming or dispensed exports.",
		}, []string{"category"}),
		parseWarnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inventory_parse_warnings_total",
			Help: "Quantity cells defaulted to zero during ingestion.",
		}, []string{"category"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inventory_http_requests_total",
			Help: "HTTP requests by route and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "inventory_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	registerer.MustRegister(
		m.runs,
		m.runDuration,
		m.ledgerEntries,
		m.newItems,
		m.parseWarnings,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// ObserveRun records the outcome of a reconciliation run.
func (m *Metrics) ObserveRun(run *pipeline.ReconciliationRun, elapsed time.Duration) {
	if m == nil || run == nil {
		return
	}
	category := string(run.Category)
	m.runs.WithLabelValues(category, string(run.Status)).Inc()
	m.runDuration.WithLabelValues(category).Observe(elapsed.Seconds())
	if run.Status != pipeline.StatusCompleted {
		return
	}
	m.ledgerEntries.WithLabelValues(category).Add(float64(run.Entries))
	m.newItems.WithLabelValues(category).Add(float64(run.NewItems))
	m.parseWarnings.WithLabelValues(category).Add(float64(run.Warnings))
}

// GinMiddleware counts requests per matched route.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		m.httpRequests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}
