package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRun("full_sync", "success", time.Second)
		m.ObserveFetch(1, 2, 3)
		m.ObservePersist(1, 0, time.Now())
		m.ObserveReport(map[string]int{"x": 1}, 1, 1)
	})
}

func TestObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg, "")

	m.ObserveFetch(120, 2, 5)
	m.ObservePersist(110, 5, time.Unix(1700000000, 0))
	m.ObserveRun("full_sync", "partial", 3*time.Second)

	assert.Equal(t, 120.0, testutil.ToFloat64(m.ItemsFetched))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.PageFailures))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.DuplicateSKUs))
	assert.Equal(t, 110.0, testutil.ToFloat64(m.RecordsSaved))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.RecordsFailed))
	assert.Equal(t, 1700000000.0, testutil.ToFloat64(m.LastSuccessfulSync))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("full_sync", "partial")))

	count, err := testutil.GatherAndCount(reg, "stockrecon_runs_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestObserveReportReplacesCategories(t *testing.T) {
	m := New(prometheus.NewRegistry(), "t")

	m.ObserveReport(map[string]int{"zero-in-catalog": 3, "quantity-mismatch": 1}, 10, 8)
	m.ObserveReport(map[string]int{"quantity-mismatch": 2}, 11, 9)

	assert.Equal(t, 1, testutil.CollectAndCount(m.DiscrepancyRows))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.DiscrepancyRows.WithLabelValues("quantity-mismatch")))
	assert.Equal(t, 11.0, testutil.ToFloat64(m.SnapshotSKUs))
	assert.Equal(t, 9.0, testutil.ToFloat64(m.LedgerEntries))
}
