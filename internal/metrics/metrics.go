package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the reconciliation counters. A nil *Metrics is valid and
// records nothing, which keeps tests and the CLI free of registry setup.
type Metrics struct {
	RunsTotal          *prometheus.CounterVec
	RunDuration        *prometheus.HistogramVec
	ItemsFetched       prometheus.Counter
	PageFailures       prometheus.Counter
	DuplicateSKUs      prometheus.Counter
	RecordsSaved       prometheus.Counter
	RecordsFailed      prometheus.Counter
	DiscrepancyRows    *prometheus.GaugeVec
	LedgerEntries      prometheus.Gauge
	SnapshotSKUs       prometheus.Gauge
	LastSuccessfulSync prometheus.Gauge
}

// New creates the metric set with the given name prefix and registers it.
func New(reg prometheus.Registerer, prefix string) *Metrics {
	if prefix == "" {
		prefix = "stockrecon"
	}

	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_runs_total",
				Help: "Reconciliation runs by kind and final status",
			},
			[]string{"kind", "status"},
		),
		RunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    prefix + "_run_duration_seconds",
				Help:    "Duration of reconciliation runs in seconds",
				Buckets: []float64{1, 5, 15, 30, 60, 180, 600, 1800, 3600},
			},
			[]string{"kind"},
		),
		ItemsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_catalog_items_fetched_total",
			Help: "Catalog items received from the storefront",
		}),
		PageFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_catalog_page_failures_total",
			Help: "Catalog pages skipped after a transient failure",
		}),
		DuplicateSKUs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_duplicate_skus_total",
			Help: "SKU collisions resolved by last-write-wins",
		}),
		RecordsSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_snapshot_records_saved_total",
			Help: "Snapshot records upserted successfully",
		}),
		RecordsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_snapshot_records_failed_total",
			Help: "Snapshot records rejected in batch and individually",
		}),
		DiscrepancyRows: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: prefix + "_discrepancy_rows",
				Help: "Rows of the last discrepancy report by category",
			},
			[]string{"category"},
		),
		LedgerEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: prefix + "_ledger_entries",
			Help: "Ledger lines in the last report",
		}),
		SnapshotSKUs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: prefix + "_snapshot_skus",
			Help: "Snapshot SKUs read for the last report",
		}),
		LastSuccessfulSync: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: prefix + "_last_successful_sync_timestamp_seconds",
			Help: "Unix time of the last completed catalog sync",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.RunsTotal, m.RunDuration, m.ItemsFetched, m.PageFailures,
			m.DuplicateSKUs, m.RecordsSaved, m.RecordsFailed, m.DiscrepancyRows,
			m.LedgerEntries, m.SnapshotSKUs, m.LastSuccessfulSync,
		)
	}
	return m
}

// ObserveRun records the outcome of one run.
func (m *Metrics) ObserveRun(kind, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(kind, status).Inc()
	m.RunDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// ObserveFetch records catalog walk counters.
func (m *Metrics) ObserveFetch(items, pageFailures, duplicates int) {
	if m == nil {
		return
	}
	m.ItemsFetched.Add(float64(items))
	m.PageFailures.Add(float64(pageFailures))
	m.DuplicateSKUs.Add(float64(duplicates))
}

// ObservePersist records snapshot write counters.
func (m *Metrics) ObservePersist(saved, failed int, at time.Time) {
	if m == nil {
		return
	}
	m.RecordsSaved.Add(float64(saved))
	m.RecordsFailed.Add(float64(failed))
	m.LastSuccessfulSync.Set(float64(at.Unix()))
}

// ObserveReport replaces the per-category gauges with the latest report.
func (m *Metrics) ObserveReport(byCategory map[string]int, snapshotSKUs, ledgerEntries int) {
	if m == nil {
		return
	}
	m.DiscrepancyRows.Reset()
	for category, n := range byCategory {
		m.DiscrepancyRows.WithLabelValues(category).Set(float64(n))
	}
	m.SnapshotSKUs.Set(float64(snapshotSKUs))
	m.LedgerEntries.Set(float64(ledgerEntries))
}
