package catalog

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Batch outcomes used as the "result" label.
const (
	ResultOK       = "ok"
	ResultInvalid  = "invalid"
	ResultBusy     = "busy"
	ResultConflict = "conflict" // insert-only batch named existing products
	ResultError    = "error"
)

// Metrics holds the store's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	batches       *prometheus.CounterVec
	records       prometheus.Counter
	issues        prometheus.Counter
	backups       prometheus.Counter
	pruned        prometheus.Counter
	products      prometheus.Gauge
	batchDuration prometheus.Histogram
}

// NewMetrics registers the catalog collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		batches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_upsert_batches_total",
			Help: "Upsert batches by result",
		}, []string{"result"}),
		records: factory.NewCounter(prometheus.CounterOpts{
			Name: "catalog_upsert_records_total",
			Help: "Records accepted by successful upserts",
		}),
		issues: factory.NewCounter(prometheus.CounterOpts{
			Name: "catalog_validation_issues_total",
			Help: "Schema violations found in rejected batches",
		}),
		backups: factory.NewCounter(prometheus.CounterOpts{
			Name: "catalog_backups_created_total",
			Help: "Snapshots written",
		}),
		pruned: factory.NewCounter(prometheus.CounterOpts{
			Name: "catalog_backups_pruned_total",
			Help: "Snapshots removed by retention",
		}),
		products: factory.NewGauge(prometheus.GaugeOpts{
			Name: "catalog_document_products",
			Help: "Products in the document after the last successful upsert",
		}),
		batchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "catalog_upsert_duration_seconds",
			Help:    "Wall time of successful upserts",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
	}
}

// Registry returns the registry holding the catalog collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes the current values in the node-exporter textfile
// format, replacing path atomically.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

func (m *Metrics) batchDone(result string) {
	if m == nil {
		return
	}
	m.batches.WithLabelValues(result).Inc()
}

func (m *Metrics) accepted(n, total int, took time.Duration) {
	if m == nil {
		return
	}
	m.batches.WithLabelValues(ResultOK).Inc()
	m.records.Add(float64(n))
	m.products.Set(float64(total))
	m.batchDuration.Observe(took.Seconds())
}

func (m *Metrics) rejected(issues int) {
	if m == nil {
		return
	}
	m.batches.WithLabelValues(ResultInvalid).Inc()
	m.issues.Add(float64(issues))
}

func (m *Metrics) backupCreated() {
	if m == nil {
		return
	}
	m.backups.Inc()
}

func (m *Metrics) backupsPruned(n int) {
	if m == nil || n == 0 {
		return
	}
	m.pruned.Add(float64(n))
}
