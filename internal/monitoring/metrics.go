package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus instrument the batch pipeline and
// compliance engine report against.
type Metrics struct {
	StageOutcomes   *prometheus.CounterVec
	BatchDuration   *prometheus.HistogramVec
	RecordsIngested *prometheus.CounterVec
	MatchOutcomes   *prometheus.CounterVec
	ResearchQueueSize *prometheus.GaugeVec
	BreachCount     *prometheus.GaugeVec
	CatalogSize     prometheus.Gauge
}

// NewMetrics constructs and registers all instruments against the default
// registerer.
func NewMetrics() *Metrics {
	return &Metrics{
		StageOutcomes: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_stage_outcomes_total",
				Help: "Total pipeline stage completions by stage and outcome",
			},
			[]string{"stage", "outcome"}, // outcome: ok, error
		),

		BatchDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "catalog_batch_duration_seconds",
				Help:    "Duration of a full ingest->commit batch run",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"source", "method"},
		),

		RecordsIngested: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_records_ingested_total",
				Help: "Total records read from feed envelopes by validity",
			},
			[]string{"source", "valid"}, // valid: true, false
		),

		MatchOutcomes: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_match_outcomes_total",
				Help: "Total match resolutions by query method and routing",
			},
			[]string{"query_method", "routing"}, // routing: accepted, needs_review
		),

		ResearchQueueSize: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "catalog_research_queue_size",
				Help: "Current number of distinct names pending manual research",
			},
			[]string{"source"},
		),

		BreachCount: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "catalog_compliance_breach_count",
				Help: "Current number of institutions exceeding their effective limit, by severity",
			},
			[]string{"severity"}, // medium, high, critical
		),

		CatalogSize: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "catalog_products_total",
				Help: "Current number of distinct products in the deduplicated catalog",
			},
		),
	}
}

// RecordStage records one stage's terminal outcome for a batch.
func (m *Metrics) RecordStage(stage, outcome string) {
	m.StageOutcomes.WithLabelValues(stage, outcome).Inc()
}

// RecordBatch records a completed batch's end-to-end duration.
func (m *Metrics) RecordBatch(source, method string, seconds float64) {
	m.BatchDuration.WithLabelValues(source, method).Observe(seconds)
}

// RecordIngested records one record's validity outcome during stage A.
func (m *Metrics) RecordIngested(source string, valid bool) {
	validLabel := "false"
	if valid {
		validLabel = "true"
	}
	m.RecordsIngested.WithLabelValues(source, validLabel).Inc()
}

// RecordMatch records one name's resolution outcome during stage D.
func (m *Metrics) RecordMatch(queryMethod, routing string) {
	m.MatchOutcomes.WithLabelValues(queryMethod, routing).Inc()
}

// SetResearchQueueSize sets the current backlog gauge for a source.
func (m *Metrics) SetResearchQueueSize(source string, size int) {
	m.ResearchQueueSize.WithLabelValues(source).Set(float64(size))
}

// SetBreachCounts sets the current breach gauges, one per severity.
func (m *Metrics) SetBreachCounts(medium, high, critical int) {
	m.BreachCount.WithLabelValues("medium").Set(float64(medium))
	m.BreachCount.WithLabelValues("high").Set(float64(high))
	m.BreachCount.WithLabelValues("critical").Set(float64(critical))
}

// SetCatalogSize sets the current deduplicated product count.
func (m *Metrics) SetCatalogSize(n int) {
	m.CatalogSize.Set(float64(n))
}
