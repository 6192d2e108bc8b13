package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the attribution engine.
type Metrics struct {
	// Attribution run metrics
	AttributionRuns    *prometheus.CounterVec
	RunLatency         *prometheus.HistogramVec
	OrdersProcessed    prometheus.Counter
	OrdersUnattributed prometheus.Counter
	RowsEmitted        *prometheus.HistogramVec

	// Report metrics
	ReportsBuilt  *prometheus.CounterVec
	ReportLatency prometheus.Histogram

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPLatency  *prometheus.HistogramVec

	// Rate limiting metrics
	RateLimitHits *prometheus.CounterVec

	// Warehouse metrics
	DBConnections *prometheus.GaugeVec

	// Tracking health metrics
	TrackingPercentage  prometheus.Gauge
	ClickIDCoverage     prometheus.Gauge
	OrderSourceCoverage prometheus.Gauge
}

var (
	// DefaultMetrics is the global metrics instance
	DefaultMetrics *Metrics
)

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		// Attribution run metrics
		AttributionRuns: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "attribution_runs_total",
				Help:      "Total attribution runs by model and status",
			},
			[]string{"model", "status"},
		),
		RunLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "attribution_run_seconds",
				Help:      "Attribution run latency in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"model"},
		),
		OrdersProcessed: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "orders_processed_total",
				Help:      "Total orders processed across attribution runs",
			},
		),
		OrdersUnattributed: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "orders_unattributed_total",
				Help:      "Orders with no touchpoint in the lookback window",
			},
		),
		RowsEmitted: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "attribution_rows_emitted",
				Help:      "Dimension rows emitted per attribution run",
				Buckets:   []float64{1, 10, 50, 100, 500, 1000, 5000},
			},
			[]string{"model"},
		),

		// Report metrics
		ReportsBuilt: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reports_built_total",
				Help:      "Reports built by breakdown and status",
			},
			[]string{"breakdown", "status"},
		),
		ReportLatency: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "report_build_seconds",
				Help:      "Report build latency in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
		),

		// HTTP metrics
		HTTPRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total HTTP requests by path and status code",
			},
			[]string{"path", "status"},
		),
		HTTPLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 5},
			},
			[]string{"path"},
		),

		// Rate limiting metrics
		RateLimitHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limit_hits_total",
				Help:      "Rate limit rejections",
			},
			[]string{"endpoint", "ip"},
		),

		// Warehouse metrics
		DBConnections: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "db_connections",
				Help:      "Database connection pool stats",
			},
			[]string{"backend", "state"}, // idle, in_use, total
		),

		// Tracking health metrics
		TrackingPercentage: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "tracking_percentage",
				Help:      "Blended tracking coverage percentage",
			},
		),
		ClickIDCoverage: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "click_id_coverage_percent",
				Help:      "Share of sessions carrying a click ID",
			},
		),
		OrderSourceCoverage: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "order_source_coverage_percent",
				Help:      "Share of orders with a touchpoint in the lookback",
			},
		),
	}

	DefaultMetrics = m
	return m
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordRun records an attribution run outcome.
func (m *Metrics) RecordRun(model, status string, latency time.Duration, orders, unattributed, rows int) {
	m.AttributionRuns.WithLabelValues(model, status).Inc()
	m.RunLatency.WithLabelValues(model).Observe(latency.Seconds())
	if status == "ok" {
		m.OrdersProcessed.Add(float64(orders))
		m.OrdersUnattributed.Add(float64(unattributed))
		m.RowsEmitted.WithLabelValues(model).Observe(float64(rows))
	}
}

// RecordReport records a report build outcome.
func (m *Metrics) RecordReport(breakdown, status string, latency time.Duration) {
	m.ReportsBuilt.WithLabelValues(breakdown, status).Inc()
	if status == "ok" {
		m.ReportLatency.Observe(latency.Seconds())
	}
}

// RecordHTTPRequest records one served HTTP request.
func (m *Metrics) RecordHTTPRequest(path, status string, latency time.Duration) {
	m.HTTPRequests.WithLabelValues(path, status).Inc()
	m.HTTPLatency.WithLabelValues(path).Observe(latency.Seconds())
}

// RecordRateLimitHit records a rate limit hit.
func (m *Metrics) RecordRateLimitHit(endpoint, ip string) {
	m.RateLimitHits.WithLabelValues(endpoint, ip).Inc()
}

// UpdateDBStats updates connection pool metrics for one backend.
func (m *Metrics) UpdateDBStats(backend string, idle, inUse, total int) {
	m.DBConnections.WithLabelValues(backend, "idle").Set(float64(idle))
	m.DBConnections.WithLabelValues(backend, "in_use").Set(float64(inUse))
	m.DBConnections.WithLabelValues(backend, "total").Set(float64(total))
}

// UpdateTrackingHealth updates the tracking coverage gauges.
func (m *Metrics) UpdateTrackingHealth(trackingPct, clickIDPct, orderSourcePct float64) {
	m.TrackingPercentage.Set(trackingPct)
	m.ClickIDCoverage.Set(clickIDPct)
	m.OrderSourceCoverage.Set(orderSourcePct)
}
