package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Bulk processing metrics
	BatchesTotal      *prometheus.CounterVec
	BatchItemsTotal   *prometheus.CounterVec
	BatchItemDuration *prometheus.HistogramVec

	// Permission metrics
	PermissionDenialsTotal *prometheus.CounterVec

	// Schema metrics
	SchemaValidationsTotal *prometheus.CounterVec
	SchemaDocumentsLoaded  prometheus.Gauge

	// Allocator metrics
	DraftIDsMintedTotal *prometheus.CounterVec
}

// NewMetrics creates all Prometheus metrics (unregistered)
func NewMetrics() *Metrics {
	return &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bcodb_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bcodb_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		BatchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bcodb_batches_total",
				Help: "Total number of bulk batches processed, by operation and aggregate outcome",
			},
			[]string{"operation", "outcome"},
		),
		BatchItemsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bcodb_batch_items_total",
				Help: "Total number of batch items processed, by operation and item status",
			},
			[]string{"operation", "status"},
		),
		BatchItemDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bcodb_batch_item_duration_seconds",
				Help:    "Per-item processing duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		PermissionDenialsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bcodb_permission_denials_total",
				Help: "Total number of permission denials, by action and reason",
			},
			[]string{"action", "reason"},
		),
		SchemaValidationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bcodb_schema_validations_total",
				Help: "Total number of schema validations, by schema and result",
			},
			[]string{"schema", "result"},
		),
		SchemaDocumentsLoaded: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "bcodb_schema_documents_loaded",
				Help: "Number of schema documents currently loaded",
			},
		),
		DraftIDsMintedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bcodb_draft_ids_minted_total",
				Help: "Total number of draft object IDs minted, by prefix",
			},
			[]string{"prefix"},
		),
	}
}

// MustRegister registers all metrics with the given registerer
func (m *Metrics) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.BatchesTotal,
		m.BatchItemsTotal,
		m.BatchItemDuration,
		m.PermissionDenialsTotal,
		m.SchemaValidationsTotal,
		m.SchemaDocumentsLoaded,
		m.DraftIDsMintedTotal,
	)
}

// Handler returns the Prometheus scrape handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}
